package amf3

import (
	"fmt"

	"amfgw/pkg/amfio"
	"amfgw/pkg/amfval"
	"amfgw/pkg/registry"
)

// ExternalWriter writes the body of an externalizable object for a
// given wire alias.
type ExternalWriter func(w amfio.Writer, data []byte) error

// Encoder writes AMF3 values, maintaining the string/object/trait
// reference tables for exactly one packet (spec §5).
type Encoder struct {
	w         amfio.Writer
	reg       *registry.Registry
	externals map[string]ExternalWriter

	strings    map[string]int
	objectRefs map[interface{}]int
	objectSeq  int
	traits     []*amfval.Trait
}

// NewEncoder returns an Encoder writing to w, resolving server-class
// ids to wire aliases through reg.
func NewEncoder(w amfio.Writer, reg *registry.Registry) *Encoder {
	return &Encoder{
		w:          w,
		reg:        reg,
		strings:    make(map[string]int),
		objectRefs: make(map[interface{}]int),
	}
}

// WithExternals registers per-alias externalizable body writers.
func (e *Encoder) WithExternals(externals map[string]ExternalWriter) *Encoder {
	e.externals = externals
	return e
}

// Encode writes v as a single marker-delimited AMF3 value.
func (e *Encoder) Encode(v interface{}) error {
	switch val := v.(type) {
	case nil:
		return e.writeMarkerOnly(markerNull)
	case amfval.Undefined:
		return e.writeMarkerOnly(markerUndefined)
	case bool:
		if val {
			return e.writeMarkerOnly(markerTrue)
		}
		return e.writeMarkerOnly(markerFalse)
	case amfval.Int:
		return e.encodeIntOrDouble(int64(val))
	case int:
		return e.encodeIntOrDouble(int64(val))
	case int32:
		return e.encodeIntOrDouble(int64(val))
	case float64:
		return e.encodeDouble(val)
	case string:
		return e.encodeString(val)
	case amfval.Date:
		return e.encodeDate(val)
	case amfval.ByteArray:
		return e.encodeByteArray(val)
	case amfval.XML:
		return e.encodeXML(val)
	case *amfval.Array:
		return e.encodeArray(val)
	case *amfval.Object:
		return e.encodeObject(val)
	case *amfval.Vector:
		return e.encodeVector(val)
	case *amfval.Dictionary:
		return e.encodeDictionary(val)
	case *amfval.Externalizable:
		return e.encodeExternalizable(val)
	default:
		return fmt.Errorf("amf3: unsupported value type %T", v)
	}
}

func (e *Encoder) writeMarkerOnly(marker byte) error {
	return amfio.WriteByte(e.w, marker)
}

func (e *Encoder) encodeIntOrDouble(v int64) error {
	if !fitsI29(v) {
		return e.encodeDouble(float64(v))
	}
	if err := amfio.WriteByte(e.w, markerInteger); err != nil {
		return err
	}
	u29 := uint32(v) & u29Max
	return WriteU29(e.w, u29)
}

func (e *Encoder) encodeDouble(v float64) error {
	if err := amfio.WriteByte(e.w, markerDouble); err != nil {
		return err
	}
	return amfio.WriteDouble(e.w, v)
}

func (e *Encoder) encodeString(s string) error {
	if err := amfio.WriteByte(e.w, markerString); err != nil {
		return err
	}
	return e.writeUTF(s)
}

// writeUTF implements the U29S-ref/U29-value string encoding shared
// by the String marker and every other marker's inline string fields
// (class names, member keys). The empty string is never interned.
func (e *Encoder) writeUTF(s string) error {
	if s != "" {
		if idx, ok := e.strings[s]; ok {
			return WriteU29(e.w, uint32(idx)<<1)
		}
	}
	if err := WriteU29(e.w, uint32(len(s))<<1|0x01); err != nil {
		return err
	}
	if err := amfio.WriteRaw(e.w, []byte(s)); err != nil {
		return err
	}
	if s != "" {
		e.strings[s] = len(e.strings)
	}
	return nil
}

// refOrReserve looks up v by identity in the object table. If present
// it writes a reference marker and returns (true, nil) so the caller
// skips re-encoding. Otherwise it reserves the next index for v and
// returns (false, nil) so the caller can write the inline form.
func (e *Encoder) refOrReserve(marker byte, v interface{}) (wroteRef bool, err error) {
	if idx, ok := e.objectRefs[v]; ok {
		if err := amfio.WriteByte(e.w, marker); err != nil {
			return false, err
		}
		return true, WriteU29(e.w, uint32(idx)<<1)
	}
	e.objectRefs[v] = e.objectSeq
	e.objectSeq++
	return false, nil
}

// reserveObjectSlot advances the object reference counter to keep it
// aligned with the decoder's object table (every decoded Date,
// ByteArray, and XML occupies a slot, spec §4.2) without registering v
// for a future back-reference lookup. ByteArray wraps a slice and
// can't be an objectRefs map key at all; Date and XML could be, but
// this encoder never emits a back-reference for either, so there's no
// lookup to support.
func (e *Encoder) reserveObjectSlot() {
	e.objectSeq++
}

func (e *Encoder) encodeDate(d amfval.Date) error {
	e.reserveObjectSlot()
	if err := amfio.WriteByte(e.w, markerDate); err != nil {
		return err
	}
	if err := WriteU29(e.w, 0x01); err != nil {
		return err
	}
	return amfio.WriteDouble(e.w, float64(d))
}

func (e *Encoder) encodeByteArray(b amfval.ByteArray) error {
	e.reserveObjectSlot()
	if err := amfio.WriteByte(e.w, markerByteArray); err != nil {
		return err
	}
	if err := WriteU29(e.w, uint32(len(b))<<1|0x01); err != nil {
		return err
	}
	return amfio.WriteRaw(e.w, b)
}

func (e *Encoder) encodeXML(x amfval.XML) error {
	e.reserveObjectSlot()
	marker := byte(markerXML)
	if x.Legacy {
		marker = markerXMLDoc
	}
	if err := amfio.WriteByte(e.w, marker); err != nil {
		return err
	}
	if err := WriteU29(e.w, uint32(len(x.Data))<<1|0x01); err != nil {
		return err
	}
	return amfio.WriteRaw(e.w, []byte(x.Data))
}

func (e *Encoder) encodeArray(arr *amfval.Array) error {
	wroteRef, err := e.refOrReserve(markerArray, arr)
	if err != nil || wroteRef {
		return err
	}
	if err := amfio.WriteByte(e.w, markerArray); err != nil {
		return err
	}
	if err := WriteU29(e.w, uint32(len(arr.Dense))<<1|0x01); err != nil {
		return err
	}
	if arr.Assoc != nil {
		for _, key := range arr.Assoc.Keys() {
			val, _ := arr.Assoc.Get(key)
			if err := e.writeUTF(key); err != nil {
				return err
			}
			if err := e.Encode(val); err != nil {
				return err
			}
		}
	}
	if err := e.writeUTF(""); err != nil {
		return err
	}
	for _, val := range arr.Dense {
		if err := e.Encode(val); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) traitIndex(t *amfval.Trait) int {
	for i, existing := range e.traits {
		if existing.Equal(t) {
			return i
		}
	}
	return -1
}

func (e *Encoder) encodeObject(obj *amfval.Object) error {
	wroteRef, err := e.refOrReserve(markerObject, obj)
	if err != nil || wroteRef {
		return err
	}
	if err := amfio.WriteByte(e.w, markerObject); err != nil {
		return err
	}

	trait := obj.Trait
	if idx := e.traitIndex(trait); idx >= 0 {
		if err := WriteU29(e.w, uint32(idx)<<2|0x01); err != nil {
			return err
		}
	} else {
		header := uint32(0x03) // bit0 object-inline, bit1 traits-inline
		header |= uint32(len(trait.Sealed)) << 4
		if trait.Externalizable {
			header |= 0x04
		}
		if trait.Dynamic {
			header |= 0x08
		}
		if err := WriteU29(e.w, header); err != nil {
			return err
		}
		if err := e.writeUTF(e.resolveWireAlias(trait.Alias)); err != nil {
			return err
		}
		for _, name := range trait.Sealed {
			if err := e.writeUTF(name); err != nil {
				return err
			}
		}
		e.traits = append(e.traits, trait)
	}

	for _, v := range obj.Sealed {
		if err := e.Encode(v); err != nil {
			return err
		}
	}
	if trait.Dynamic && obj.Dynamic != nil {
		for _, key := range obj.Dynamic.Keys() {
			val, _ := obj.Dynamic.Get(key)
			if err := e.writeUTF(key); err != nil {
				return err
			}
			if err := e.Encode(val); err != nil {
				return err
			}
		}
	}
	if trait.Dynamic {
		if err := e.writeUTF(""); err != nil {
			return err
		}
	}
	return nil
}

// resolveWireAlias maps a server-class-id to its wire alias via the
// registry (spec §4.2); identifiers with no mapping (and the empty,
// anonymous alias) are written as-is.
func (e *Encoder) resolveWireAlias(alias string) string {
	if alias == "" {
		return ""
	}
	if mapped, ok := e.reg.GetMappedClassName(alias); ok {
		return mapped
	}
	return alias
}

func (e *Encoder) encodeExternalizable(ext *amfval.Externalizable) error {
	wroteRef, err := e.refOrReserve(markerObject, ext)
	if err != nil || wroteRef {
		return err
	}
	if err := amfio.WriteByte(e.w, markerObject); err != nil {
		return err
	}
	if err := WriteU29(e.w, 0x07); err != nil { // inline trait, externalizable, 0 sealed
		return err
	}
	if err := e.writeUTF(e.resolveWireAlias(ext.Alias)); err != nil {
		return err
	}
	if writer, ok := e.externals[ext.Alias]; ok {
		return writer(e.w, ext.Data)
	}
	return amfio.WriteRaw(e.w, ext.Data)
}

func (e *Encoder) encodeVector(vec *amfval.Vector) error {
	marker := vectorMarker(vec.Kind)
	wroteRef, err := e.refOrReserve(marker, vec)
	if err != nil || wroteRef {
		return err
	}
	if err := amfio.WriteByte(e.w, marker); err != nil {
		return err
	}
	if err := WriteU29(e.w, uint32(len(vec.Elements))<<1|0x01); err != nil {
		return err
	}
	fixed := byte(0)
	if vec.Fixed {
		fixed = 1
	}
	if err := amfio.WriteByte(e.w, fixed); err != nil {
		return err
	}
	if vec.Kind == amfval.VectorObject {
		typeName := vec.ObjectType
		if typeName == "" {
			typeName = "*"
		}
		if err := e.writeUTF(typeName); err != nil {
			return err
		}
	}
	for i, el := range vec.Elements {
		switch vec.Kind {
		case amfval.VectorInt:
			v, _ := el.(int32)
			if err := amfio.WriteLong(e.w, v); err != nil {
				return err
			}
		case amfval.VectorUint:
			v, _ := el.(uint32)
			if err := amfio.WriteUint32(e.w, v); err != nil {
				return err
			}
		case amfval.VectorDouble:
			v, _ := el.(float64)
			if err := amfio.WriteDouble(e.w, v); err != nil {
				return err
			}
		case amfval.VectorObject:
			if err := e.Encode(el); err != nil {
				return fmt.Errorf("amf3: encode vector<object> element %d: %w", i, err)
			}
		}
	}
	return nil
}

func vectorMarker(kind amfval.VectorKind) byte {
	switch kind {
	case amfval.VectorInt:
		return markerVectorInt
	case amfval.VectorUint:
		return markerVectorUint
	case amfval.VectorDouble:
		return markerVectorDouble
	default:
		return markerVectorObject
	}
}

func (e *Encoder) encodeDictionary(dict *amfval.Dictionary) error {
	wroteRef, err := e.refOrReserve(markerDictionary, dict)
	if err != nil || wroteRef {
		return err
	}
	if err := amfio.WriteByte(e.w, markerDictionary); err != nil {
		return err
	}
	if err := WriteU29(e.w, uint32(len(dict.Entries))<<1|0x01); err != nil {
		return err
	}
	weak := byte(0)
	if dict.WeakKeys {
		weak = 1
	}
	if err := amfio.WriteByte(e.w, weak); err != nil {
		return err
	}
	for _, entry := range dict.Entries {
		if err := e.Encode(entry.Key); err != nil {
			return err
		}
		if err := e.Encode(entry.Value); err != nil {
			return err
		}
	}
	return nil
}
