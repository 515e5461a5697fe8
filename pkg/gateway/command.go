package gateway

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// runCommand implements §4.6.1's command message state machine. On
// success it returns the Acknowledge body, which the caller wraps in an
// AcknowledgeMessage; an unrecognized operation returns an error that
// the caller reports with the "CommandError" fault code.
func (h *Handler) runCommand(op string, msg *commandMessage) (interface{}, error) {
	switch op {
	case "PING", "DISCONNECT":
		return "", nil
	case "LOGIN":
		return h.runLogin(msg)
	case "LOGOUT":
		h.Auth.ClearIdentity()
		return "", nil
	default:
		return nil, fmt.Errorf("CommandMessage::%s not implemented", op)
	}
}

func (h *Handler) runLogin(msg *commandMessage) (interface{}, error) {
	raw, _ := msg.Body.(string)
	userid, password, err := decodeUseridPassword(raw)
	if err != nil {
		return nil, fmt.Errorf("CommandMessage::LOGIN malformed credentials")
	}

	h.Auth.SetCredentials(userid, password)
	result := h.Auth.Authenticate()
	if !result.Valid {
		return nil, fmt.Errorf("CommandMessage::LOGIN authentication failed")
	}
	if result.Identity.Token != "" {
		return result.Identity.ID + ":" + result.Identity.Token, nil
	}
	return "", nil
}

// decodeUseridPassword decodes a base64("userid:password") payload,
// the shared wire form of both the Credentials header and a LOGIN
// command's body.
func decodeUseridPassword(raw string) (userid, password string, err error) {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", "", err
	}
	userid, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", fmt.Errorf("malformed userid:password pair")
	}
	return userid, password, nil
}

// commandMessage is the subset of a decoded CommandMessage the state
// machine needs.
type commandMessage struct {
	Operation string
	Body      interface{}
}
