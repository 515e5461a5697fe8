// Package cast implements C9: casting a caller's argument list against
// an invocable's declared parameter prototype before invocation.
// Grounded in the teacher's pkg/protocol/rtmp command argument
// handling (best-effort reshaping of decoded AMF values into the
// types a handler expects), generalized to sequence/record casting
// against dispatch.Param declarations.
package cast

import (
	"strings"

	"amfgw/pkg/amfval"
	"amfgw/pkg/dispatch"
)

// skipTypes are declared types left untouched by casting, matching
// them case-insensitively against the prototype (spec §4.8).
var skipTypes = map[string]bool{
	"null": true, "mixed": true, "void": true, "unknown": true,
	"bool": true, "boolean": true, "number": true, "int": true,
	"integer": true, "double": true, "float": true, "string": true,
	"array": true, "object": true, "anonymous-record": true,
}

// Constructor builds a new instance of a named target type and a
// FieldSetter to copy record fields onto it by name. Supplied by the
// reflection collaborator; casting itself has no notion of Go types
// beyond this seam.
type Constructor func(typeName string) (instance interface{}, setField FieldSetter, ok bool)

// FieldSetter copies one named field's value onto the instance a
// Constructor produced.
type FieldSetter func(name string, value interface{})

// InstanceChecker reports whether v is already an instance of the
// named target type, in which case casting leaves it untouched.
type InstanceChecker func(typeName string, v interface{}) bool

// Caster applies C9 casting using collaborators supplied by the
// reflection layer.
type Caster struct {
	NewInstance InstanceChecker
	Construct   Constructor
}

// Args casts a copy of args against the best-matching prototype of d
// (the first prototype whose length matches len(args), else the last
// prototype defined) and returns the cast copy; args itself is left
// unchanged.
func (c *Caster) Args(d dispatch.Dispatchable, args []interface{}) []interface{} {
	proto := selectPrototype(d.ParameterPrototypes(), len(args))
	if proto == nil {
		return args
	}
	out := make([]interface{}, len(args))
	copy(out, args)
	for i, param := range proto {
		if i >= len(out) {
			break
		}
		if skipTypes[strings.ToLower(param.Type)] {
			continue
		}
		out[i] = c.castOne(param.Type, out[i])
	}
	return out
}

func selectPrototype(prototypes [][]dispatch.Param, argc int) []dispatch.Param {
	for _, proto := range prototypes {
		if len(proto) == argc {
			return proto
		}
	}
	if len(prototypes) > 0 {
		return prototypes[len(prototypes)-1]
	}
	return nil
}

func (c *Caster) castOne(declaredType string, v interface{}) interface{} {
	if strings.HasSuffix(declaredType, "[]") {
		elemType := strings.TrimSuffix(declaredType, "[]")
		seq, ok := asSequence(v)
		if !ok {
			return v
		}
		out := make([]interface{}, len(seq))
		for i, el := range seq {
			out[i] = c.castOne(elemType, el)
		}
		return out
	}

	if c.NewInstance != nil && c.NewInstance(declaredType, v) {
		return v
	}

	fields, isRecord := asRecord(v)
	if isRecord && c.Construct != nil {
		instance, setField, ok := c.Construct(declaredType)
		if ok {
			for name, val := range fields {
				setField(name, val)
			}
			return instance
		}
	}

	if isScalar(v) {
		return nil
	}
	return v
}

// asSequence returns the elements of v if it is an Array's dense
// segment or a plain Go slice.
func asSequence(v interface{}) ([]interface{}, bool) {
	switch val := v.(type) {
	case *amfval.Array:
		return val.Dense, true
	case []interface{}:
		return val, true
	default:
		return nil, false
	}
}

// asRecord returns the name/value fields of v if it is an Object (its
// dynamic members and sealed fields) or an Array with a non-empty
// associative segment.
func asRecord(v interface{}) (map[string]interface{}, bool) {
	switch val := v.(type) {
	case *amfval.Object:
		out := make(map[string]interface{})
		if val.Dynamic != nil {
			val.Dynamic.Each(func(k string, value interface{}) { out[k] = value })
		}
		for i, name := range val.Trait.Sealed {
			if i < len(val.Sealed) {
				out[name] = val.Sealed[i]
			}
		}
		return out, true
	case *amfval.Array:
		if val.Assoc == nil || val.Assoc.Len() == 0 {
			return nil, false
		}
		out := make(map[string]interface{})
		val.Assoc.Each(func(k string, value interface{}) { out[k] = value })
		return out, true
	default:
		return nil, false
	}
}

func isScalar(v interface{}) bool {
	switch v.(type) {
	case nil, bool, float64, int, int32, string, amfval.Int, amfval.Undefined:
		return true
	default:
		return false
	}
}
