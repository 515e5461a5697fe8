package gateway

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amfgw/pkg/acl"
	"amfgw/pkg/amfval"
	"amfgw/pkg/auth"
	"amfgw/pkg/dispatch"
	"amfgw/pkg/envelope"
	"amfgw/pkg/log"
	"amfgw/pkg/registry"
)

func newWiredHandler(t *testing.T) *Handler {
	t.Helper()
	table, err := dispatch.New(registry.New(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, table.Register("Foo", "bar", &dispatch.Func{
		Name: "Foo.bar",
		Invocable: func(args []interface{}) (interface{}, error) {
			if len(args) == 0 {
				return "no-args", nil
			}
			return args[0], nil
		},
	}))

	rules := acl.New()
	rules.SetRule(acl.OpAdd, acl.Allow, []string{"guest"}, []string{"Foo"}, []string{"bar"}, nil)

	return &Handler{
		Table:     table,
		ACL:       rules,
		Auth:      auth.NewMemoryAuthenticator(),
		GuestRole: "guest",
	}
}

func TestSplitTarget(t *testing.T) {
	source, method := splitTarget("Foo.bar")
	assert.Equal(t, "Foo", source)
	assert.Equal(t, "bar", method)

	source, method = splitTarget("bareMethod")
	assert.Equal(t, "", source)
	assert.Equal(t, "bareMethod", method)
}

func TestCallerRoleFallsBackToGuest(t *testing.T) {
	h := newWiredHandler(t)
	role, err := h.callerRole()
	require.NoError(t, err)
	assert.Equal(t, "guest", role)
}

func TestCallerRoleErrorsWithoutIdentityOrGuest(t *testing.T) {
	h := newWiredHandler(t)
	h.GuestRole = ""
	_, err := h.callerRole()
	assert.Error(t, err)
}

func TestInvokeSucceedsWhenAllowed(t *testing.T) {
	h := newWiredHandler(t)
	result, err := h.invoke(log.WithTrace(0), "Foo", "bar", []interface{}{"echoed"})
	require.NoError(t, err)
	assert.Equal(t, "echoed", result)
}

func TestInvokeDeniedByACL(t *testing.T) {
	h := newWiredHandler(t)
	h.ACL = acl.New() // default deny, no rules granted
	_, err := h.invoke(log.WithTrace(0), "Foo", "bar", nil)
	assert.Error(t, err)
}

func TestInvokeMissingMethodReturnsMethodNotExist(t *testing.T) {
	h := newWiredHandler(t)
	_, err := h.invoke(log.WithTrace(0), "Foo", "missing", nil)
	require.True(t, errors.Is(err, dispatch.ErrMethodNotExist))
	assert.EqualError(t, err, `Method "Foo.missing" does not exist`)
	assert.Equal(t, "Server.Processing.MethodNotExist", faultCode(err))
}

func TestHandlePlainCallEndToEnd(t *testing.T) {
	h := newWiredHandler(t)
	pkt := &envelope.Packet{
		Version: envelope.VersionAMF0,
		Bodies: []envelope.Body{
			{TargetURI: "Foo.bar", ResponseURI: "/1", Length: -1, Data: "hello"},
		},
	}

	resp := h.Handle(pkt)
	require.Len(t, resp.Bodies, 1)
	assert.Equal(t, "/1"+envelope.SuffixOnResult, resp.Bodies[0].ResponseURI)
	assert.Equal(t, "hello", resp.Bodies[0].Data)
}

func TestHandleRemotingMessageEndToEnd(t *testing.T) {
	h := newWiredHandler(t)
	trait := &amfval.Trait{Alias: "RemotingMessage", Dynamic: true}
	msg := amfval.NewObject(trait)
	msg.Dynamic.Set("source", "Foo")
	msg.Dynamic.Set("operation", "bar")
	argArr := amfval.NewArray()
	argArr.Dense = []interface{}{"world"}
	msg.Dynamic.Set("body", argArr)
	msg.Dynamic.Set("messageId", "msg-1")

	pkt := &envelope.Packet{
		Version: envelope.VersionAMF3,
		Bodies:  []envelope.Body{{TargetURI: "", ResponseURI: "/1", Length: -1, Data: msg}},
	}

	resp := h.Handle(pkt)
	require.Len(t, resp.Bodies, 1)
	ack, ok := resp.Bodies[0].Data.(*amfval.Object)
	require.True(t, ok)
	assert.Equal(t, "AcknowledgeMessage", ack.Trait.Alias)
	body, _ := ack.Dynamic.Get("body")
	assert.Equal(t, "world", body)
}

func TestHandleCommandMessagePing(t *testing.T) {
	h := newWiredHandler(t)
	trait := &amfval.Trait{Alias: "CommandMessage", Dynamic: true}
	msg := amfval.NewObject(trait)
	msg.Dynamic.Set("operation", "PING")

	pkt := &envelope.Packet{
		Version: envelope.VersionAMF3,
		Bodies:  []envelope.Body{{TargetURI: "", ResponseURI: "/1", Length: -1, Data: msg}},
	}

	resp := h.Handle(pkt)
	require.Len(t, resp.Bodies, 1)
	ack, ok := resp.Bodies[0].Data.(*amfval.Object)
	require.True(t, ok)
	assert.Equal(t, "AcknowledgeMessage", ack.Trait.Alias)
}

func TestHandleBadCredentialsHeaderFailsEveryBody(t *testing.T) {
	h := newWiredHandler(t)
	pkt := &envelope.Packet{
		Version: envelope.VersionAMF0,
		Headers: []envelope.Header{{Name: envelope.WellKnownCredentialsHeader, Data: "not-valid-base64!!"}},
		Bodies: []envelope.Body{
			{TargetURI: "Foo.bar", ResponseURI: "/1", Length: -1, Data: "x"},
			{TargetURI: "Foo.bar", ResponseURI: "/2", Length: -1, Data: "y"},
		},
	}

	resp := h.Handle(pkt)
	require.Len(t, resp.Bodies, 2)
	for i, body := range resp.Bodies {
		assert.Contains(t, body.ResponseURI, envelope.SuffixOnStatus, "body %d should be an error response", i)
	}
}
