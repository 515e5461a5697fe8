package dispatch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amfgw/pkg/registry"
)

func echoFunc(name string) *Func {
	return &Func{
		Name:      name,
		Prototype: []Param{{Name: "x", Type: "String"}},
		Invocable: func(args []interface{}) (interface{}, error) {
			if len(args) == 0 {
				return nil, nil
			}
			return args[0], nil
		},
	}
}

func TestQualifiedName(t *testing.T) {
	assert.Equal(t, "bar", QualifiedName("", "bar"))
	assert.Equal(t, "foo.bar", QualifiedName("foo", "bar"))
}

func TestRegisterAndLookup(t *testing.T) {
	table, err := New(registry.New(), nil, nil)
	require.NoError(t, err)

	require.NoError(t, table.Register("Foo", "bar", echoFunc("Foo.bar")))

	d, err := table.Lookup("Foo", "bar")
	require.NoError(t, err)
	assert.Equal(t, "Foo.bar", d.QualifiedName())
}

func TestDuplicateRegistrationIsFatal(t *testing.T) {
	table, err := New(registry.New(), nil, nil)
	require.NoError(t, err)

	require.NoError(t, table.Register("Foo", "bar", echoFunc("Foo.bar")))
	err = table.Register("Foo", "bar", echoFunc("Foo.bar-again"))
	assert.Error(t, err)
}

func TestLookupMissWithNoLoaderReturnsMethodNotExist(t *testing.T) {
	table, err := New(registry.New(), nil, nil)
	require.NoError(t, err)

	_, err = table.Lookup("Foo", "bar")
	require.True(t, errors.Is(err, ErrMethodNotExist))
	assert.EqualError(t, err, `Method "Foo.bar" does not exist`)
}

func TestLookupTranslatesSourceThroughRegistry(t *testing.T) {
	reg := registry.New()
	reg.SetMapping("wire.Foo", "Foo")
	table, err := New(reg, nil, nil)
	require.NoError(t, err)

	require.NoError(t, table.Register("Foo", "bar", echoFunc("Foo.bar")))

	d, err := table.Lookup("wire.Foo", "bar")
	require.NoError(t, err)
	assert.Equal(t, "Foo.bar", d.QualifiedName())
}

type fakeLoader struct {
	classes map[string]interface{}
}

func (f *fakeLoader) LoadClass(name string) (interface{}, bool) {
	c, ok := f.classes[name]
	return c, ok
}

type fakeReflector struct {
	results map[string][]AutoLoadResult
	calls   int
}

func (f *fakeReflector) ReflectClass(class interface{}) ([]AutoLoadResult, error) {
	f.calls++
	name := class.(string)
	return f.results[name], nil
}

func TestLookupAutoLoadsOnMissAndRegisters(t *testing.T) {
	loader := &fakeLoader{classes: map[string]interface{}{"Foo": "Foo"}}
	reflector := &fakeReflector{results: map[string][]AutoLoadResult{
		"Foo": {{ShortName: "bar", Dispatchable: echoFunc("Foo.bar")}},
	}}
	table, err := New(registry.New(), loader, reflector)
	require.NoError(t, err)

	d, err := table.Lookup("Foo", "bar")
	require.NoError(t, err)
	assert.Equal(t, "Foo.bar", d.QualifiedName())
	assert.Equal(t, 1, reflector.calls)

	// Second lookup hits the now-registered entry without reflecting again.
	_, err = table.Lookup("Foo", "bar")
	require.NoError(t, err)
	assert.Equal(t, 1, reflector.calls)
}

func TestLookupAutoLoadMissIsCachedAndConsistent(t *testing.T) {
	loader := &fakeLoader{classes: map[string]interface{}{}}
	reflector := &fakeReflector{results: map[string][]AutoLoadResult{}}
	table, err := New(registry.New(), loader, reflector)
	require.NoError(t, err)

	_, err = table.Lookup("Unknown", "bar")
	require.True(t, errors.Is(err, ErrMethodNotExist))
	assert.EqualError(t, err, `Method "Unknown.bar" does not exist`)

	_, err = table.Lookup("Unknown", "bar")
	require.True(t, errors.Is(err, ErrMethodNotExist))
	assert.Equal(t, 0, reflector.calls)
}
