package amf0

import (
	"fmt"
	"strconv"

	"amfgw/pkg/amf3"
	"amfgw/pkg/amfio"
	"amfgw/pkg/amfval"
	"amfgw/pkg/registry"
)

const longStringThreshold = 65535

// Encoder writes AMF0 values, tracking the single object reference
// table spec §4.3 describes and applying the Array/Object/EcmaArray
// tie-break rule on write.
type Encoder struct {
	w          amfio.Writer
	reg        *registry.Registry
	objectRefs map[interface{}]int
	objectSeq  int

	amf3Externals map[string]amf3.ExternalWriter
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w amfio.Writer, reg *registry.Registry) *Encoder {
	return &Encoder{w: w, reg: reg, objectRefs: make(map[interface{}]int)}
}

// WithAMF3Externals registers externalizable body writers for use if
// this stream escapes into AMF3 via the AvmPlus marker.
func (e *Encoder) WithAMF3Externals(externals map[string]amf3.ExternalWriter) *Encoder {
	e.amf3Externals = externals
	return e
}

// Encode writes v as a single marker-delimited AMF0 value.
func (e *Encoder) Encode(v interface{}) error {
	switch val := v.(type) {
	case nil:
		return amfio.WriteByte(e.w, markerNull)
	case amfval.Undefined:
		return amfio.WriteByte(e.w, markerUndefined)
	case bool:
		return e.encodeBoolean(val)
	case float64:
		return e.encodeNumber(val)
	case int:
		return e.encodeNumber(float64(val))
	case int32:
		return e.encodeNumber(float64(val))
	case string:
		return e.encodeString(val)
	case amfval.Date:
		return e.encodeDate(val)
	case amfval.XML:
		return e.encodeXMLDocument(val)
	case *amfval.Array:
		return e.encodeArray(val)
	case *amfval.Object:
		return e.encodeObject(val)
	case amfval.Int, amfval.ByteArray, *amfval.Vector, *amfval.Dictionary, *amfval.Externalizable:
		return e.encodeAvmPlus(val)
	default:
		return fmt.Errorf("amf0: unsupported value type %T", v)
	}
}

func (e *Encoder) encodeBoolean(b bool) error {
	if err := amfio.WriteByte(e.w, markerBoolean); err != nil {
		return err
	}
	if b {
		return amfio.WriteByte(e.w, 1)
	}
	return amfio.WriteByte(e.w, 0)
}

func (e *Encoder) encodeNumber(v float64) error {
	if err := amfio.WriteByte(e.w, markerNumber); err != nil {
		return err
	}
	return amfio.WriteDouble(e.w, v)
}

func (e *Encoder) encodeString(s string) error {
	if len(s) > longStringThreshold {
		if err := amfio.WriteByte(e.w, markerLongString); err != nil {
			return err
		}
		return amfio.WriteLongUTF(e.w, s)
	}
	if err := amfio.WriteByte(e.w, markerString); err != nil {
		return err
	}
	return amfio.WriteUTF(e.w, s)
}

func (e *Encoder) encodeDate(d amfval.Date) error {
	if err := amfio.WriteByte(e.w, markerDate); err != nil {
		return err
	}
	if err := amfio.WriteDouble(e.w, float64(d)); err != nil {
		return err
	}
	return amfio.WriteRaw(e.w, []byte{0x00, 0x00})
}

func (e *Encoder) encodeXMLDocument(x amfval.XML) error {
	if err := amfio.WriteByte(e.w, markerXMLDocument); err != nil {
		return err
	}
	return amfio.WriteLongUTF(e.w, x.Data)
}

// refOrReserve mirrors the AMF3 encoder's identity-based dedup, using
// AMF0's flat u16 reference index instead of a U29.
func (e *Encoder) refOrReserve(v interface{}) (wroteRef bool, err error) {
	if idx, ok := e.objectRefs[v]; ok {
		if err := amfio.WriteByte(e.w, markerReference); err != nil {
			return false, err
		}
		return true, amfio.WriteInt(e.w, idx)
	}
	e.objectRefs[v] = e.objectSeq
	e.objectSeq++
	return false, nil
}

// encodeArray applies spec §4.3's tie-break: a Dense-only array writes
// as StrictArray; otherwise the Assoc keys decide between StrictArray
// (keys are exactly "0".."n-1" in order), Object (any non-numeric
// key), or EcmaArray.
func (e *Encoder) encodeArray(arr *amfval.Array) error {
	if arr.Assoc == nil || arr.Assoc.Len() == 0 {
		return e.encodeStrictArray(arr.Dense)
	}
	if arr.Dense != nil && len(arr.Dense) > 0 {
		return e.encodeEcmaArray(arr)
	}
	switch classifyAssoc(arr.Assoc) {
	case classStrict:
		dense := make([]interface{}, arr.Assoc.Len())
		for i, key := range arr.Assoc.Keys() {
			v, _ := arr.Assoc.Get(key)
			dense[i] = v
		}
		return e.encodeStrictArray(dense)
	case classObject:
		obj := amfval.NewObject(&amfval.Trait{Dynamic: true})
		for _, key := range arr.Assoc.Keys() {
			v, _ := arr.Assoc.Get(key)
			obj.Dynamic.Set(key, v)
		}
		return e.encodeObject(obj)
	default:
		return e.encodeEcmaArray(arr)
	}
}

type assocClass int

const (
	classEcma assocClass = iota
	classStrict
	classObject
)

func classifyAssoc(assoc *amfval.OrderedMap) assocClass {
	class := classStrict
	for i, key := range assoc.Keys() {
		if _, err := strconv.Atoi(key); err != nil {
			return classObject
		}
		if key != strconv.Itoa(i) {
			class = classEcma
		}
	}
	return class
}

func (e *Encoder) encodeStrictArray(dense []interface{}) error {
	wroteRef, err := e.refOrReserve(sentinelFor(dense))
	if err != nil || wroteRef {
		return err
	}
	if err := amfio.WriteByte(e.w, markerStrictArray); err != nil {
		return err
	}
	if err := amfio.WriteUint32(e.w, uint32(len(dense))); err != nil {
		return err
	}
	for _, v := range dense {
		if err := e.Encode(v); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) encodeEcmaArray(arr *amfval.Array) error {
	wroteRef, err := e.refOrReserve(arr)
	if err != nil || wroteRef {
		return err
	}
	if err := amfio.WriteByte(e.w, markerEcmaArray); err != nil {
		return err
	}
	if err := amfio.WriteUint32(e.w, uint32(arr.Assoc.Len())); err != nil {
		return err
	}
	for _, key := range arr.Assoc.Keys() {
		if isUnderscorePrefixed(key) {
			continue
		}
		v, _ := arr.Assoc.Get(key)
		if err := amfio.WriteUTF(e.w, key); err != nil {
			return err
		}
		if err := e.Encode(v); err != nil {
			return err
		}
	}
	if err := amfio.WriteUTF(e.w, ""); err != nil {
		return err
	}
	return amfio.WriteByte(e.w, markerObjectEnd)
}

// sentinelFor gives a StrictArray's dense slice an identity for
// ref-table dedup. Slices are not comparable map keys, so a non-empty
// slice is keyed by the address of its first element, which is stable
// when a caller encodes the same *Array's backing array again; a slice
// freshly built from an Assoc map therefore never dedups. An empty
// slice is keyed by the address of its own header copy and never
// dedups either.
func sentinelFor(dense []interface{}) interface{} {
	if len(dense) == 0 {
		return &dense
	}
	return &dense[0]
}

func (e *Encoder) encodeObject(obj *amfval.Object) error {
	wroteRef, err := e.refOrReserve(obj)
	if err != nil || wroteRef {
		return err
	}
	if obj.Trait.Alias != "" {
		if err := amfio.WriteByte(e.w, markerTypedObject); err != nil {
			return err
		}
		if err := amfio.WriteUTF(e.w, e.resolveWireAlias(obj.Trait.Alias)); err != nil {
			return err
		}
	} else {
		if err := amfio.WriteByte(e.w, markerObject); err != nil {
			return err
		}
	}

	for i, name := range obj.Trait.Sealed {
		if isUnderscorePrefixed(name) {
			continue
		}
		if err := amfio.WriteUTF(e.w, name); err != nil {
			return err
		}
		if err := e.Encode(obj.Sealed[i]); err != nil {
			return err
		}
	}
	if obj.Dynamic != nil {
		for _, key := range obj.Dynamic.Keys() {
			if isUnderscorePrefixed(key) {
				continue
			}
			v, _ := obj.Dynamic.Get(key)
			if err := amfio.WriteUTF(e.w, key); err != nil {
				return err
			}
			if err := e.Encode(v); err != nil {
				return err
			}
		}
	}
	if err := amfio.WriteUTF(e.w, ""); err != nil {
		return err
	}
	return amfio.WriteByte(e.w, markerObjectEnd)
}

func isUnderscorePrefixed(key string) bool {
	return len(key) > 0 && key[0] == '_'
}

func (e *Encoder) resolveWireAlias(alias string) string {
	if mapped, ok := e.reg.GetMappedClassName(alias); ok {
		return mapped
	}
	return alias
}

// encodeAvmPlus escapes into a fresh AMF3 sub-stream for value kinds
// AMF0 cannot itself represent (spec §4.3): Int, ByteArray, Vector,
// Dictionary and Externalizable. Reference tables restart inside the
// sub-stream; the AMF0 reference table does not see the escaped value.
func (e *Encoder) encodeAvmPlus(v interface{}) error {
	if err := amfio.WriteByte(e.w, markerAvmPlusObject); err != nil {
		return err
	}
	sub := amf3.NewEncoder(e.w, e.reg).WithExternals(e.amf3Externals)
	return sub.Encode(v)
}
