package cast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amfgw/pkg/amfval"
	"amfgw/pkg/dispatch"
)

type fakeDispatchable struct {
	protos [][]dispatch.Param
}

func (f *fakeDispatchable) QualifiedName() string                 { return "Fake.method" }
func (f *fakeDispatchable) ParameterPrototypes() [][]dispatch.Param { return f.protos }
func (f *fakeDispatchable) FixedArgs() []interface{}               { return nil }
func (f *fakeDispatchable) Target() dispatch.TargetKind            { return dispatch.TargetFree }
func (f *fakeDispatchable) Invoke(_ interface{}, args []interface{}) (interface{}, error) {
	return args, nil
}

func TestArgsSkipsDeclaredSkipType(t *testing.T) {
	c := &Caster{}
	d := &fakeDispatchable{protos: [][]dispatch.Param{{{Name: "x", Type: "String"}}}}

	got := c.Args(d, []interface{}{"unchanged"})
	assert.Equal(t, "unchanged", got[0])
}

func TestArgsCastsArraySuffixElementwise(t *testing.T) {
	calls := 0
	c := &Caster{
		NewInstance: func(typeName string, v interface{}) bool {
			calls++
			return false
		},
	}
	d := &fakeDispatchable{protos: [][]dispatch.Param{{{Name: "xs", Type: "com.example.Widget[]"}}}}

	arr := amfval.NewArray()
	arr.Dense = []interface{}{"a", "b"}
	got := c.Args(d, []interface{}{arr})

	out, ok := got[0].([]interface{})
	require.True(t, ok)
	assert.Len(t, out, 2)
	assert.Equal(t, 2, calls)
}

func TestArgsLeavesExistingInstanceUntouched(t *testing.T) {
	type widget struct{}
	w := &widget{}
	c := &Caster{
		NewInstance: func(typeName string, v interface{}) bool {
			_, ok := v.(*widget)
			return typeName == "Widget" && ok
		},
	}
	d := &fakeDispatchable{protos: [][]dispatch.Param{{{Name: "w", Type: "Widget"}}}}

	got := c.Args(d, []interface{}{w})
	assert.Same(t, w, got[0])
}

func TestArgsConstructsRecordFromAssocArray(t *testing.T) {
	type widget struct {
		Name string
	}
	c := &Caster{
		Construct: func(typeName string) (interface{}, FieldSetter, bool) {
			if typeName != "Widget" {
				return nil, nil, false
			}
			w := &widget{}
			return w, func(name string, value interface{}) {
				if name == "name" {
					w.Name, _ = value.(string)
				}
			}, true
		},
	}
	d := &fakeDispatchable{protos: [][]dispatch.Param{{{Name: "w", Type: "Widget"}}}}

	arr := amfval.NewArray()
	arr.Assoc.Set("name", "alice")
	got := c.Args(d, []interface{}{arr})

	w, ok := got[0].(*widget)
	require.True(t, ok)
	assert.Equal(t, "alice", w.Name)
}

func TestArgsNullsOutScalarAgainstClassTarget(t *testing.T) {
	c := &Caster{}
	d := &fakeDispatchable{protos: [][]dispatch.Param{{{Name: "w", Type: "Widget"}}}}

	got := c.Args(d, []interface{}{"not-a-widget"})
	assert.Nil(t, got[0])
}

func TestArgsSelectsPrototypeByArity(t *testing.T) {
	c := &Caster{}
	d := &fakeDispatchable{protos: [][]dispatch.Param{
		{{Name: "a", Type: "String"}},
		{{Name: "a", Type: "String"}, {Name: "b", Type: "String"}},
	}}

	got := c.Args(d, []interface{}{"x", "y"})
	assert.Equal(t, []interface{}{"x", "y"}, got)
}
