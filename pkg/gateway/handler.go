// Package gateway implements C7: the per-packet message handler that
// ties the dispatch table, ACL engine, authentication collaborator,
// and parameter casting together around the envelope codec. Grounded
// in the teacher's pkg/protocol/rtmp onCommand switch (inspect the
// decoded value, route by shape, never let one failure abort the
// connection) generalized to per-body isolation across a packet.
package gateway

import (
	"errors"
	"fmt"
	"strings"

	"amfgw/pkg/acl"
	"amfgw/pkg/auth"
	"amfgw/pkg/cast"
	"amfgw/pkg/dispatch"
	"amfgw/pkg/envelope"
	"amfgw/pkg/idgen"
	"amfgw/pkg/log"

	"amfgw/pkg/amfval"
)

// Handler is the C7 message handler. Table, ACL, and Auth are the
// engine's collaborators; GuestRole names the role an unauthenticated
// caller is evaluated under, if any.
type Handler struct {
	Table      *dispatch.Table
	ACL        *acl.ACL
	Auth       auth.Authenticator
	Caster     *cast.Caster
	GuestRole  string
	Production bool
	IDs        *idgen.Worker
}

// Handle processes one inbound packet end to end and returns the
// response packet. Errors in one body never abort sibling bodies;
// this function itself never returns an error because an envelope
// that parsed at all always produces a well-formed response.
func (h *Handler) Handle(pkt *envelope.Packet) *envelope.Packet {
	traceID := int64(0)
	if h.IDs != nil {
		if id, err := h.IDs.NextID(); err == nil {
			traceID = id
		}
	}
	logger := log.WithTrace(traceID)

	resp := &envelope.Packet{Version: pkt.Version}

	var packetAuthErr error
	if hdr, ok := findHeader(pkt.Headers, envelope.WellKnownCredentialsHeader); ok {
		if err := h.authenticateHeader(hdr); err != nil {
			packetAuthErr = err
			logger.Warn("credentials header authentication failed: %v", err)
		} else {
			resp.Headers = append(resp.Headers, envelope.Header{
				Name: envelope.WellKnownCredentialsHeader, Data: nil,
			})
		}
	}

	for _, body := range pkt.Bodies {
		if packetAuthErr != nil {
			resp.Bodies = append(resp.Bodies, h.errorResponse(pkt.Version, body, packetAuthErr))
			continue
		}
		resp.Bodies = append(resp.Bodies, h.handleBody(logger, body))
	}
	return resp
}

func findHeader(headers []envelope.Header, name string) (envelope.Header, bool) {
	for _, h := range headers {
		if h.Name == name {
			return h, true
		}
	}
	return envelope.Header{}, false
}

func (h *Handler) authenticateHeader(hdr envelope.Header) error {
	raw, _ := hdr.Data.(string)
	userid, password, err := decodeUseridPassword(raw)
	if err != nil {
		return fmt.Errorf("malformed credentials header: %w", err)
	}
	h.Auth.SetCredentials(userid, password)
	result := h.Auth.Authenticate()
	if !result.Valid {
		return fmt.Errorf("authentication rejected")
	}
	return nil
}

// handleBody dispatches a single body and always returns a response
// body: either a success or a well-formed error response.
func (h *Handler) handleBody(logger *log.Logger, body envelope.Body) envelope.Body {
	switch payload := body.Data.(type) {
	case *amfval.Object:
		switch payload.Trait.Alias {
		case "CommandMessage":
			return h.handleCommandMessage(body, payload)
		case "RemotingMessage":
			return h.handleRemotingMessage(logger, body, payload)
		}
	}
	return h.handlePlainCall(logger, body)
}

func (h *Handler) handleCommandMessage(body envelope.Body, msg *amfval.Object) envelope.Body {
	op := fieldString(msg, "operation")
	cmd := &commandMessage{Operation: op, Body: valueOrNil(field(msg, "body"))}
	result, err := h.runCommand(op, cmd)
	if err != nil {
		return h.errorBody(body, newErrorMessage(msg, "CommandError", err.Error(), "", h.Production))
	}
	return envelope.Body{
		TargetURI:   "",
		ResponseURI: body.ResponseURI + envelope.SuffixOnResult,
		Length:      -1,
		Data:        newAcknowledge(msg, result),
	}
}

func (h *Handler) handleRemotingMessage(logger *log.Logger, body envelope.Body, msg *amfval.Object) envelope.Body {
	source := fieldString(msg, "source")
	method := fieldString(msg, "operation")
	args := argList(msg)

	result, err := h.invoke(logger, source, method, args)
	if err != nil {
		return h.errorBody(body, newErrorMessage(msg, faultCode(err), err.Error(), "", h.Production))
	}
	return envelope.Body{
		ResponseURI: body.ResponseURI + envelope.SuffixOnResult,
		Length:      -1,
		Data:        newAcknowledge(msg, result),
	}
}

func (h *Handler) handlePlainCall(logger *log.Logger, body envelope.Body) envelope.Body {
	source, method := splitTarget(body.TargetURI)
	var args []interface{}
	if arr, ok := body.Data.(*amfval.Array); ok {
		args = arr.Dense
	} else if body.Data != nil {
		args = []interface{}{body.Data}
	}

	result, err := h.invoke(logger, source, method, args)
	if err != nil {
		return h.errorBody(body, errorObjectAMF0(faultCode(err), err.Error(), "", h.Production))
	}
	return envelope.Body{
		ResponseURI: body.ResponseURI + envelope.SuffixOnResult,
		Length:      -1,
		Data:        result,
	}
}

// splitTarget implements §4.6's target computation: split on the
// last '.'; no '.' means a bare method name with no source class.
func splitTarget(targetURI string) (source, method string) {
	idx := strings.LastIndex(targetURI, ".")
	if idx < 0 {
		return "", targetURI
	}
	return targetURI[:idx], targetURI[idx+1:]
}

// invoke resolves, casts, authorizes, and calls one invocable.
func (h *Handler) invoke(logger *log.Logger, source, method string, args []interface{}) (interface{}, error) {
	d, err := h.Table.Lookup(source, method)
	if err != nil {
		return nil, err
	}

	callArgs := append(append([]interface{}{}, args...), d.FixedArgs()...)
	if h.Caster != nil {
		callArgs = h.Caster.Args(d, callArgs)
	}

	role, err := h.callerRole()
	if err != nil {
		return nil, err
	}
	if !h.ACL.IsAllowed(role, source, method) {
		return nil, fmt.Errorf("access denied for %s.%s", source, method)
	}

	logger.Debug("dispatch %s.%s as role %q", source, method, role)
	result, err := d.Invoke(nil, callArgs)
	if err != nil {
		return nil, invocableError{err}
	}
	return result, nil
}

func (h *Handler) callerRole() (string, error) {
	if h.Auth.HasIdentity() {
		return h.Auth.GetIdentity().Role, nil
	}
	if h.GuestRole != "" {
		return h.GuestRole, nil
	}
	return "", fmt.Errorf("no identity and no guest role configured")
}

// invocableError marks an error as having originated inside user code
// (spec §7 InvocableError), so faultCode can tell it apart from a
// dispatch/authorization failure.
type invocableError struct{ err error }

func (e invocableError) Error() string { return e.err.Error() }
func (e invocableError) Unwrap() error { return e.err }

func faultCode(err error) string {
	switch {
	case errors.Is(err, dispatch.ErrMethodNotExist):
		return "Server.Processing.MethodNotExist"
	case isInvocableError(err):
		return "Server.Processing.InvocableError"
	default:
		return "Server.Processing"
	}
}

func isInvocableError(err error) bool {
	_, ok := err.(invocableError)
	return ok
}

func (h *Handler) errorBody(body envelope.Body, errValue interface{}) envelope.Body {
	return envelope.Body{
		ResponseURI: body.ResponseURI + envelope.SuffixOnStatus,
		Length:      -1,
		Data:        errValue,
	}
}

func (h *Handler) errorResponse(version envelope.Version, body envelope.Body, err error) envelope.Body {
	if version == envelope.VersionAMF3 {
		return h.errorBody(body, newErrorMessage(nil, "Server.Auth", err.Error(), "", h.Production))
	}
	return h.errorBody(body, errorObjectAMF0("Server.Auth", err.Error(), "", h.Production))
}

func valueOrNil(v interface{}, ok bool) interface{} {
	if !ok {
		return nil
	}
	return v
}
