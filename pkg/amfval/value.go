// Package amfval defines the generic value graph the AMF0 and AMF3
// codecs read into and write out of: the tagged union described in
// spec §3, plus the ordered-map and equality helpers the codecs and
// their round-trip tests share.
package amfval

import "math"

// Undefined is the AMF "undefined" value, distinct from Null (nil).
type Undefined struct{}

// Int is an AMF3 29-bit integer. Kept distinct from Double so a
// round-tripped INTEGER marker doesn't silently become a DOUBLE.
type Int int32

// Date is milliseconds since the Unix epoch, UTC, as carried on the
// wire (a double, so fractional milliseconds are representable).
type Date float64

// ByteArray is an opaque AMF3 byte array / AMF0 has no equivalent.
type ByteArray []byte

// XML is an XML document: AMF0's XMLDocument type, and either of
// AMF3's two XML markers (Legacy distinguishes the legacy XMLDocument
// marker from the e4x XML marker; AMF0 only ever produces Legacy).
type XML struct {
	Data   string
	Legacy bool
}

// VectorKind identifies the fixed element type of a Vector.
type VectorKind int

const (
	VectorInt VectorKind = iota
	VectorUint
	VectorDouble
	VectorObject
)

// Vector is an AMF3 typed vector. ObjectType is only meaningful when
// Kind == VectorObject; it is the element type name ("*" for untyped).
type Vector struct {
	Kind       VectorKind
	Fixed      bool
	ObjectType string
	Elements   []interface{}
}

// DictEntry is one key/value pair of a Dictionary, in insertion order.
type DictEntry struct {
	Key   interface{}
	Value interface{}
}

// Dictionary is an AMF3 Dictionary. WeakKeys is carried for wire
// fidelity but not semantically enforced (spec §3).
type Dictionary struct {
	WeakKeys bool
	Entries  []DictEntry
}

// Array is the spec's Array value: a dense segment plus an
// associative (string-keyed) segment, both order-preserving.
type Array struct {
	Dense []interface{}
	Assoc *OrderedMap
}

// NewArray returns an empty Array ready for appends.
func NewArray() *Array {
	return &Array{Assoc: NewOrderedMap()}
}

// Trait describes an AMF3 object's class: wire alias (empty for
// anonymous), dynamic/externalizable flags, and ordered sealed field
// names. Two traits are equal iff all four fields are equal.
type Trait struct {
	Alias          string
	Dynamic        bool
	Externalizable bool
	Sealed         []string
}

// Equal reports whether two traits describe the same class shape.
func (t *Trait) Equal(o *Trait) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil {
		return false
	}
	if t.Alias != o.Alias || t.Dynamic != o.Dynamic || t.Externalizable != o.Externalizable {
		return false
	}
	if len(t.Sealed) != len(o.Sealed) {
		return false
	}
	for i, name := range t.Sealed {
		if o.Sealed[i] != name {
			return false
		}
	}
	return true
}

// Object is a sealed+dynamic AMF3 object graph node.
type Object struct {
	Trait   *Trait
	Sealed  []interface{} // values positionally matching Trait.Sealed
	Dynamic *OrderedMap   // present iff Trait.Dynamic
}

// NewObject returns an Object for the given trait with room for its
// sealed field values and, if dynamic, an empty dynamic member map.
func NewObject(trait *Trait) *Object {
	obj := &Object{Trait: trait, Sealed: make([]interface{}, len(trait.Sealed))}
	if trait.Dynamic {
		obj.Dynamic = NewOrderedMap()
	}
	return obj
}

// Externalizable is an object whose body encoding is opaque to the
// codec; the user class owns encode/decode of Data.
type Externalizable struct {
	Alias string
	Data  []byte
}

// Equal performs a structural, round-trip-oriented comparison of two
// decoded values: NaN compares equal to NaN (spec §8), Date compares
// at millisecond precision, and Array/Object/Vector/Dictionary compare
// element-wise and field-wise.
func Equal(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return false
		}
		if math.IsNaN(av) && math.IsNaN(bv) {
			return true
		}
		return av == bv
	case Date:
		bv, ok := b.(Date)
		return ok && math.Floor(float64(av)) == math.Floor(float64(bv))
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case Undefined:
		_, ok := b.(Undefined)
		return ok
	case XML:
		bv, ok := b.(XML)
		return ok && av == bv
	case ByteArray:
		bv, ok := b.(ByteArray)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	case *Array:
		bv, ok := b.(*Array)
		if !ok {
			return false
		}
		return equalArray(av, bv)
	case *Vector:
		bv, ok := b.(*Vector)
		if !ok {
			return false
		}
		return equalVector(av, bv)
	case *Dictionary:
		bv, ok := b.(*Dictionary)
		if !ok {
			return false
		}
		return equalDictionary(av, bv)
	case *Object:
		bv, ok := b.(*Object)
		if !ok {
			return false
		}
		return equalObject(av, bv)
	case *Externalizable:
		bv, ok := b.(*Externalizable)
		return ok && av.Alias == bv.Alias && Equal(ByteArray(av.Data), ByteArray(bv.Data))
	default:
		return a == b
	}
}

func equalArray(a, b *Array) bool {
	if len(a.Dense) != len(b.Dense) {
		return false
	}
	for i := range a.Dense {
		if !Equal(a.Dense[i], b.Dense[i]) {
			return false
		}
	}
	return equalOrderedMap(a.Assoc, b.Assoc)
}

func equalVector(a, b *Vector) bool {
	if a.Kind != b.Kind || a.Fixed != b.Fixed || a.ObjectType != b.ObjectType {
		return false
	}
	if len(a.Elements) != len(b.Elements) {
		return false
	}
	for i := range a.Elements {
		if !Equal(a.Elements[i], b.Elements[i]) {
			return false
		}
	}
	return true
}

func equalDictionary(a, b *Dictionary) bool {
	if a.WeakKeys != b.WeakKeys || len(a.Entries) != len(b.Entries) {
		return false
	}
	for i := range a.Entries {
		if !Equal(a.Entries[i].Key, b.Entries[i].Key) || !Equal(a.Entries[i].Value, b.Entries[i].Value) {
			return false
		}
	}
	return true
}

func equalObject(a, b *Object) bool {
	if !a.Trait.Equal(b.Trait) {
		return false
	}
	if len(a.Sealed) != len(b.Sealed) {
		return false
	}
	for i := range a.Sealed {
		if !Equal(a.Sealed[i], b.Sealed[i]) {
			return false
		}
	}
	return equalOrderedMap(a.Dynamic, b.Dynamic)
}

func equalOrderedMap(a, b *OrderedMap) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Len() != b.Len() {
		return false
	}
	for i, k := range a.Keys() {
		if k != b.Keys()[i] {
			return false
		}
		av, _ := a.Get(k)
		bv, _ := b.Get(k)
		if !Equal(av, bv) {
			return false
		}
	}
	return true
}
