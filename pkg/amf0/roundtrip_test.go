package amf0

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amfgw/pkg/amfval"
	"amfgw/pkg/registry"
)

func roundTrip(t *testing.T, v interface{}) interface{} {
	t.Helper()
	reg := registry.New()
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf, reg).Encode(v))
	got, err := NewDecoder(&buf, reg).Decode()
	require.NoError(t, err)
	return got
}

func TestRoundTripPrimitives(t *testing.T) {
	cases := []interface{}{
		nil,
		amfval.Undefined{},
		true,
		false,
		3.25,
		"hello",
		"",
		amfval.Date(1700000000000),
		amfval.XML{Data: "<a/>", Legacy: true},
	}
	for _, v := range cases {
		got := roundTrip(t, v)
		assert.True(t, amfval.Equal(v, got), "want %#v got %#v", v, got)
	}
}

func TestRoundTripLongString(t *testing.T) {
	s := make([]byte, longStringThreshold+10)
	for i := range s {
		s[i] = 'x'
	}
	got := roundTrip(t, string(s))
	assert.Equal(t, string(s), got)
}

func TestStrictArrayTieBreak(t *testing.T) {
	arr := amfval.NewArray()
	arr.Dense = []interface{}{1.0, 2.0, 3.0}

	got := roundTrip(t, arr)
	gotArr, ok := got.(*amfval.Array)
	require.True(t, ok)
	assert.Equal(t, []interface{}{1.0, 2.0, 3.0}, gotArr.Dense)
}

func TestEcmaArrayTieBreak(t *testing.T) {
	// Numeric but non-sequential keys: classifyAssoc falls to
	// classEcma, not classStrict (positions don't match "0".."n-1")
	// and not classObject (every key still parses as a number).
	arr := amfval.NewArray()
	arr.Assoc.Set("5", "five")
	arr.Assoc.Set("6", "six")

	reg := registry.New()
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf, reg).Encode(arr))
	assert.Equal(t, byte(markerEcmaArray), buf.Bytes()[0])

	got, err := NewDecoder(&buf, reg).Decode()
	require.NoError(t, err)
	gotArr, ok := got.(*amfval.Array)
	require.True(t, ok)
	assert.True(t, amfval.Equal(arr, gotArr))
}

// TestAssocWithNonNumericKeyBecomesObject exercises the third branch
// of the tie-break rule: any non-numeric associative key writes an
// anonymous Object instead of an EcmaArray.
func TestAssocWithNonNumericKeyBecomesObject(t *testing.T) {
	arr := amfval.NewArray()
	arr.Assoc.Set("0", "zero")
	arr.Assoc.Set("name", "alice")

	reg := registry.New()
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf, reg).Encode(arr))
	assert.Equal(t, byte(markerObject), buf.Bytes()[0])
}

func TestTypedObjectRoundTrip(t *testing.T) {
	trait := &amfval.Trait{Alias: "com.example.Widget", Dynamic: true}
	obj := amfval.NewObject(trait)
	obj.Dynamic.Set("id", 1.0)
	obj.Dynamic.Set("name", "widget")

	got := roundTrip(t, obj)
	gotObj, ok := got.(*amfval.Object)
	require.True(t, ok)
	assert.True(t, amfval.Equal(obj, gotObj))
}

func TestUnderscorePrefixedFieldSkippedOnWrite(t *testing.T) {
	trait := &amfval.Trait{Dynamic: true}
	obj := amfval.NewObject(trait)
	obj.Dynamic.Set("_private", "hidden")
	obj.Dynamic.Set("public", "visible")

	got := roundTrip(t, obj)
	gotObj, ok := got.(*amfval.Object)
	require.True(t, ok)
	_, hasPrivate := gotObj.Dynamic.Get("_private")
	assert.False(t, hasPrivate)
	v, hasPublic := gotObj.Dynamic.Get("public")
	assert.True(t, hasPublic)
	assert.Equal(t, "visible", v)
}

// TestAvmPlusEscape exercises the AMF0->AMF3 escape hatch with a value
// AMF0 cannot itself represent.
func TestAvmPlusEscape(t *testing.T) {
	got := roundTrip(t, amfval.ByteArray([]byte{9, 8, 7}))
	gotBA, ok := got.(amfval.ByteArray)
	require.True(t, ok)
	assert.Equal(t, amfval.ByteArray([]byte{9, 8, 7}), gotBA)
}

func TestObjectReferenceDedup(t *testing.T) {
	reg := registry.New()
	shared := amfval.NewObject(&amfval.Trait{Dynamic: true})
	shared.Dynamic.Set("v", 1.0)

	outer := amfval.NewArray()
	outer.Dense = []interface{}{shared, shared}

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf, reg).Encode(outer))

	got, err := NewDecoder(&buf, reg).Decode()
	require.NoError(t, err)
	gotOuter := got.(*amfval.Array)
	assert.Same(t, gotOuter.Dense[0], gotOuter.Dense[1])
}
