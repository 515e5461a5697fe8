package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amfgw/pkg/amfval"
	"amfgw/pkg/registry"
)

func TestEncodeDecodeRoundTripAMF0(t *testing.T) {
	reg := registry.New()
	pkt := &Packet{
		Version: VersionAMF0,
		Headers: []Header{{Name: "Credentials", MustUnderstand: true, Length: -1, Data: "dXNlcjpwYXNz"}},
		Bodies: []Body{
			{TargetURI: "Foo.bar", ResponseURI: "/1", Length: -1, Data: 3.0},
		},
	}

	data, err := Encode(pkt, reg)
	require.NoError(t, err)

	got, err := Decode(data, reg)
	require.NoError(t, err)
	assert.Equal(t, VersionAMF0, got.Version)
	require.Len(t, got.Headers, 1)
	assert.Equal(t, "Credentials", got.Headers[0].Name)
	assert.True(t, got.Headers[0].MustUnderstand)
	require.Len(t, got.Bodies, 1)
	assert.Equal(t, "Foo.bar", got.Bodies[0].TargetURI)
	assert.Equal(t, 3.0, got.Bodies[0].Data)
}

func TestUnwrapMessaging(t *testing.T) {
	reg := registry.New()
	cmd := amfval.NewObject(&amfval.Trait{Alias: "CommandMessage", Dynamic: true})
	cmd.Dynamic.Set("operation", "PING")
	wrapper := amfval.NewArray()
	wrapper.Dense = []interface{}{cmd}

	pkt := &Packet{
		Version: VersionAMF3,
		Bodies:  []Body{{TargetURI: "", ResponseURI: "/1", Length: -1, Data: wrapper}},
	}
	data, err := Encode(pkt, reg)
	require.NoError(t, err)

	got, err := Decode(data, reg)
	require.NoError(t, err)
	require.Len(t, got.Bodies, 1)
	obj, ok := got.Bodies[0].Data.(*amfval.Object)
	require.True(t, ok, "expected unwrap to a bare CommandMessage object, got %T", got.Bodies[0].Data)
	assert.Equal(t, "CommandMessage", obj.Trait.Alias)
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	reg := registry.New()
	_, err := Decode([]byte{0x00, 0x42, 0x00, 0x00}, reg)
	assert.Error(t, err)
}

func TestDecodeTruncatedInputIsFatal(t *testing.T) {
	reg := registry.New()
	_, err := Decode([]byte{0x00, 0x00}, reg)
	assert.Error(t, err)
}
