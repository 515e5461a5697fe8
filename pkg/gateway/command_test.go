package gateway

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amfgw/pkg/auth"
)

func newTestHandler() *Handler {
	return &Handler{
		Auth:      auth.NewMemoryAuthenticator(),
		GuestRole: "guest",
	}
}

func TestRunCommandPing(t *testing.T) {
	h := newTestHandler()
	result, err := h.runCommand("PING", &commandMessage{})
	require.NoError(t, err)
	assert.Equal(t, "", result)
}

func TestRunCommandDisconnect(t *testing.T) {
	h := newTestHandler()
	result, err := h.runCommand("DISCONNECT", &commandMessage{})
	require.NoError(t, err)
	assert.Equal(t, "", result)
}

func TestRunCommandLoginSuccess(t *testing.T) {
	h := newTestHandler()
	mem := h.Auth.(*auth.MemoryAuthenticator)
	mem.Register("alice", "secret", auth.Identity{Role: "member", ID: "1"})

	body := base64.StdEncoding.EncodeToString([]byte("alice:secret"))
	_, err := h.runCommand("LOGIN", &commandMessage{Body: body})
	require.NoError(t, err)
	assert.True(t, mem.HasIdentity())
	assert.Equal(t, "member", mem.GetIdentity().Role)
}

func TestRunCommandLoginWithTokenIdentityReturnsIDAndToken(t *testing.T) {
	h := newTestHandler()
	mem := h.Auth.(*auth.MemoryAuthenticator)
	mem.Register("alice", "secret", auth.Identity{Role: "member", ID: "42", Token: "tok"})

	body := base64.StdEncoding.EncodeToString([]byte("alice:secret"))
	result, err := h.runCommand("LOGIN", &commandMessage{Body: body})
	require.NoError(t, err)
	assert.Equal(t, "42:tok", result)
}

func TestRunCommandLoginFailsForBadCredentials(t *testing.T) {
	h := newTestHandler()
	body := base64.StdEncoding.EncodeToString([]byte("alice:wrong"))
	_, err := h.runCommand("LOGIN", &commandMessage{Body: body})
	assert.Error(t, err)
}

func TestRunCommandLoginRejectsMalformedBody(t *testing.T) {
	h := newTestHandler()
	_, err := h.runCommand("LOGIN", &commandMessage{Body: "not base64!!"})
	assert.Error(t, err)
}

func TestRunCommandLogoutClearsIdentity(t *testing.T) {
	h := newTestHandler()
	mem := h.Auth.(*auth.MemoryAuthenticator)
	mem.Register("alice", "secret", auth.Identity{Role: "member", ID: "1"})
	body := base64.StdEncoding.EncodeToString([]byte("alice:secret"))
	_, err := h.runCommand("LOGIN", &commandMessage{Body: body})
	require.NoError(t, err)
	require.True(t, mem.HasIdentity())

	_, err = h.runCommand("LOGOUT", &commandMessage{})
	require.NoError(t, err)
	assert.False(t, mem.HasIdentity())
}

func TestRunCommandUnknownOperationErrors(t *testing.T) {
	h := newTestHandler()
	_, err := h.runCommand("SOMETHING_ELSE", &commandMessage{})
	assert.Error(t, err)
}
