package amf3

import (
	"fmt"

	"amfgw/pkg/amfio"
	"amfgw/pkg/amfval"
	"amfgw/pkg/registry"
)

// ExternalReader decodes the body of an externalizable object for a
// given wire alias, returning the raw bytes it consumed so the value
// graph can carry them as amfval.Externalizable. The core has no way
// to know the payload's length without delegating to the class that
// owns the encoding (spec §4.2), so an alias with no registered
// reader is a decoding error.
type ExternalReader func(r amfio.Reader) ([]byte, error)

// Decoder reads one AMF3 packet's worth of values. Its three
// reference tables (strings, objects, traits) are confined to this
// instance and must not be reused or shared across packets (spec §5).
type Decoder struct {
	r         amfio.Reader
	reg       *registry.Registry
	externals map[string]ExternalReader

	strings []string
	objects []interface{}
	traits  []*amfval.Trait
}

// NewDecoder returns a Decoder reading from r, resolving typed-object
// aliases through reg.
func NewDecoder(r amfio.Reader, reg *registry.Registry) *Decoder {
	return &Decoder{r: r, reg: reg}
}

// WithExternals registers per-alias externalizable body readers.
func (d *Decoder) WithExternals(externals map[string]ExternalReader) *Decoder {
	d.externals = externals
	return d
}

// Decode reads one marker-delimited value from the stream.
func (d *Decoder) Decode() (interface{}, error) {
	marker, err := amfio.ReadByte(d.r)
	if err != nil {
		return nil, fmt.Errorf("amf3: read marker: %w", err)
	}
	return d.decodeMarker(marker)
}

func (d *Decoder) decodeMarker(marker byte) (interface{}, error) {
	switch marker {
	case markerUndefined:
		return amfval.Undefined{}, nil
	case markerNull:
		return nil, nil
	case markerFalse:
		return false, nil
	case markerTrue:
		return true, nil
	case markerInteger:
		u29, err := ReadU29(d.r)
		if err != nil {
			return nil, fmt.Errorf("amf3: decode integer: %w", err)
		}
		return amfval.Int(signedI29(u29)), nil
	case markerDouble:
		v, err := amfio.ReadDouble(d.r)
		if err != nil {
			return nil, fmt.Errorf("amf3: decode double: %w", err)
		}
		return v, nil
	case markerString:
		return d.decodeString()
	case markerXMLDoc, markerXML:
		x, err := d.decodeXMLLike(marker == markerXMLDoc)
		return x, err
	case markerDate:
		return d.decodeDate()
	case markerArray:
		return d.decodeArray()
	case markerObject:
		return d.decodeObject()
	case markerByteArray:
		return d.decodeByteArray()
	case markerVectorInt:
		return d.decodeVector(amfval.VectorInt)
	case markerVectorUint:
		return d.decodeVector(amfval.VectorUint)
	case markerVectorDouble:
		return d.decodeVector(amfval.VectorDouble)
	case markerVectorObject:
		return d.decodeVector(amfval.VectorObject)
	case markerDictionary:
		return d.decodeDictionary()
	default:
		return nil, fmt.Errorf("amf3: unsupported marker 0x%02X", marker)
	}
}

// decodeRefHeader reads a U29 header and splits it into the
// reference bit and the payload bits shared by String/Object/Date/
// ByteArray/Array/Vector/Dictionary/XML encodings.
func decodeRefHeader(r amfio.Reader) (isInline bool, payload uint32, err error) {
	u29, err := ReadU29(r)
	if err != nil {
		return false, 0, err
	}
	return u29&0x01 == 0x01, u29 >> 1, nil
}

func (d *Decoder) decodeString() (string, error) {
	inline, payload, err := decodeRefHeader(d.r)
	if err != nil {
		return "", fmt.Errorf("amf3: decode string header: %w", err)
	}
	if !inline {
		idx := int(payload)
		if idx < 0 || idx >= len(d.strings) {
			return "", fmt.Errorf("amf3: string reference %d out of range", idx)
		}
		return d.strings[idx], nil
	}
	length := int(payload)
	if length == 0 {
		return "", nil
	}
	buf, err := amfio.ReadRaw(d.r, length)
	if err != nil {
		return "", fmt.Errorf("amf3: decode string body: %w", err)
	}
	s := string(buf)
	d.strings = append(d.strings, s) // empty string is never interned, but length>0 here
	return s, nil
}

func (d *Decoder) decodeXMLLike(legacy bool) (amfval.XML, error) {
	inline, payload, err := decodeRefHeader(d.r)
	if err != nil {
		return amfval.XML{}, fmt.Errorf("amf3: decode xml header: %w", err)
	}
	if !inline {
		idx := int(payload)
		if idx < 0 || idx >= len(d.objects) {
			return amfval.XML{}, fmt.Errorf("amf3: object reference %d out of range", idx)
		}
		x, _ := d.objects[idx].(amfval.XML)
		return x, nil
	}
	buf, err := amfio.ReadRaw(d.r, int(payload))
	if err != nil {
		return amfval.XML{}, fmt.Errorf("amf3: decode xml body: %w", err)
	}
	x := amfval.XML{Data: string(buf), Legacy: legacy}
	d.objects = append(d.objects, x)
	return x, nil
}

func (d *Decoder) decodeDate() (amfval.Date, error) {
	inline, payload, err := decodeRefHeader(d.r)
	if err != nil {
		return 0, fmt.Errorf("amf3: decode date header: %w", err)
	}
	if !inline {
		idx := int(payload)
		if idx < 0 || idx >= len(d.objects) {
			return 0, fmt.Errorf("amf3: object reference %d out of range", idx)
		}
		date, _ := d.objects[idx].(amfval.Date)
		return date, nil
	}
	ms, err := amfio.ReadDouble(d.r)
	if err != nil {
		return 0, fmt.Errorf("amf3: decode date value: %w", err)
	}
	date := amfval.Date(ms)
	d.objects = append(d.objects, date)
	return date, nil
}

func (d *Decoder) decodeByteArray() (amfval.ByteArray, error) {
	inline, payload, err := decodeRefHeader(d.r)
	if err != nil {
		return nil, fmt.Errorf("amf3: decode bytearray header: %w", err)
	}
	if !inline {
		idx := int(payload)
		if idx < 0 || idx >= len(d.objects) {
			return nil, fmt.Errorf("amf3: object reference %d out of range", idx)
		}
		ba, _ := d.objects[idx].(amfval.ByteArray)
		return ba, nil
	}
	buf, err := amfio.ReadRaw(d.r, int(payload))
	if err != nil {
		return nil, fmt.Errorf("amf3: decode bytearray body: %w", err)
	}
	ba := amfval.ByteArray(buf)
	d.objects = append(d.objects, ba)
	return ba, nil
}

func (d *Decoder) decodeArray() (*amfval.Array, error) {
	inline, payload, err := decodeRefHeader(d.r)
	if err != nil {
		return nil, fmt.Errorf("amf3: decode array header: %w", err)
	}
	if !inline {
		idx := int(payload)
		if idx < 0 || idx >= len(d.objects) {
			return nil, fmt.Errorf("amf3: object reference %d out of range", idx)
		}
		arr, _ := d.objects[idx].(*amfval.Array)
		return arr, nil
	}

	arr := amfval.NewArray()
	d.objects = append(d.objects, arr) // register before recursing: supports cycles

	// associative segment, terminated by the empty string
	for {
		key, err := d.decodeString()
		if err != nil {
			return nil, fmt.Errorf("amf3: decode array assoc key: %w", err)
		}
		if key == "" {
			break
		}
		val, err := d.Decode()
		if err != nil {
			return nil, fmt.Errorf("amf3: decode array assoc value: %w", err)
		}
		arr.Assoc.Set(key, val)
	}

	// dense segment
	length := int(payload)
	arr.Dense = make([]interface{}, length)
	for i := 0; i < length; i++ {
		val, err := d.Decode()
		if err != nil {
			return nil, fmt.Errorf("amf3: decode array element %d: %w", i, err)
		}
		arr.Dense[i] = val
	}
	return arr, nil
}

func (d *Decoder) decodeObject() (interface{}, error) {
	inline, payload, err := decodeRefHeader(d.r)
	if err != nil {
		return nil, fmt.Errorf("amf3: decode object header: %w", err)
	}
	if !inline {
		idx := int(payload)
		if idx < 0 || idx >= len(d.objects) {
			return nil, fmt.Errorf("amf3: object reference %d out of range", idx)
		}
		return d.objects[idx], nil
	}

	var trait *amfval.Trait
	if payload&0x01 == 0 {
		// trait reference: remaining bits are the trait index
		idx := int(payload >> 1)
		if idx < 0 || idx >= len(d.traits) {
			return nil, fmt.Errorf("amf3: trait reference %d out of range", idx)
		}
		trait = d.traits[idx]
	} else {
		externalizable := payload&0x02 != 0
		dynamic := payload&0x04 != 0
		sealedCount := int(payload >> 3)

		alias, err := d.decodeString()
		if err != nil {
			return nil, fmt.Errorf("amf3: decode trait alias: %w", err)
		}
		sealed := make([]string, sealedCount)
		for i := range sealed {
			name, err := d.decodeString()
			if err != nil {
				return nil, fmt.Errorf("amf3: decode trait sealed name %d: %w", i, err)
			}
			sealed[i] = name
		}
		if alias != "" {
			if class, ok := d.reg.GetMappedClassName(alias); ok {
				alias = class
			}
		}
		trait = &amfval.Trait{Alias: alias, Dynamic: dynamic, Externalizable: externalizable, Sealed: sealed}
		d.traits = append(d.traits, trait)
	}

	if trait.Externalizable {
		reader, ok := d.externals[trait.Alias]
		if !ok {
			return nil, fmt.Errorf("amf3: externalizable class %q has no registered reader", trait.Alias)
		}
		placeholder := &amfval.Externalizable{Alias: trait.Alias}
		d.objects = append(d.objects, placeholder)
		data, err := reader(d.r)
		if err != nil {
			return nil, fmt.Errorf("amf3: externalizable %q: %w", trait.Alias, err)
		}
		placeholder.Data = data
		return placeholder, nil
	}

	obj := amfval.NewObject(trait)
	d.objects = append(d.objects, obj) // register before recursing: supports cycles

	for i := range trait.Sealed {
		val, err := d.Decode()
		if err != nil {
			return nil, fmt.Errorf("amf3: decode sealed field %q: %w", trait.Sealed[i], err)
		}
		obj.Sealed[i] = val
	}

	if trait.Dynamic {
		for {
			key, err := d.decodeString()
			if err != nil {
				return nil, fmt.Errorf("amf3: decode dynamic member key: %w", err)
			}
			if key == "" {
				break
			}
			val, err := d.Decode()
			if err != nil {
				return nil, fmt.Errorf("amf3: decode dynamic member %q: %w", key, err)
			}
			obj.Dynamic.Set(key, val)
		}
	}

	return obj, nil
}

func (d *Decoder) decodeVector(kind amfval.VectorKind) (*amfval.Vector, error) {
	inline, payload, err := decodeRefHeader(d.r)
	if err != nil {
		return nil, fmt.Errorf("amf3: decode vector header: %w", err)
	}
	if !inline {
		idx := int(payload)
		if idx < 0 || idx >= len(d.objects) {
			return nil, fmt.Errorf("amf3: object reference %d out of range", idx)
		}
		v, _ := d.objects[idx].(*amfval.Vector)
		return v, nil
	}

	count := int(payload)
	fixedByte, err := amfio.ReadByte(d.r)
	if err != nil {
		return nil, fmt.Errorf("amf3: decode vector fixed flag: %w", err)
	}
	vec := &amfval.Vector{Kind: kind, Fixed: fixedByte == 1}
	d.objects = append(d.objects, vec)

	if kind == amfval.VectorObject {
		typeName, err := d.decodeString()
		if err != nil {
			return nil, fmt.Errorf("amf3: decode vector object type: %w", err)
		}
		vec.ObjectType = typeName
	}

	vec.Elements = make([]interface{}, count)
	for i := 0; i < count; i++ {
		switch kind {
		case amfval.VectorInt:
			v, err := amfio.ReadLong(d.r)
			if err != nil {
				return nil, fmt.Errorf("amf3: decode vector<int> element %d: %w", i, err)
			}
			vec.Elements[i] = v
		case amfval.VectorUint:
			v, err := amfio.ReadUint32(d.r)
			if err != nil {
				return nil, fmt.Errorf("amf3: decode vector<uint> element %d: %w", i, err)
			}
			vec.Elements[i] = v
		case amfval.VectorDouble:
			v, err := amfio.ReadDouble(d.r)
			if err != nil {
				return nil, fmt.Errorf("amf3: decode vector<double> element %d: %w", i, err)
			}
			vec.Elements[i] = v
		case amfval.VectorObject:
			v, err := d.Decode()
			if err != nil {
				return nil, fmt.Errorf("amf3: decode vector<object> element %d: %w", i, err)
			}
			vec.Elements[i] = v
		}
	}
	return vec, nil
}

func (d *Decoder) decodeDictionary() (*amfval.Dictionary, error) {
	inline, payload, err := decodeRefHeader(d.r)
	if err != nil {
		return nil, fmt.Errorf("amf3: decode dictionary header: %w", err)
	}
	if !inline {
		idx := int(payload)
		if idx < 0 || idx >= len(d.objects) {
			return nil, fmt.Errorf("amf3: object reference %d out of range", idx)
		}
		dict, _ := d.objects[idx].(*amfval.Dictionary)
		return dict, nil
	}

	count := int(payload)
	weakByte, err := amfio.ReadByte(d.r)
	if err != nil {
		return nil, fmt.Errorf("amf3: decode dictionary weak-keys flag: %w", err)
	}
	dict := &amfval.Dictionary{WeakKeys: weakByte != 0}
	d.objects = append(d.objects, dict)

	dict.Entries = make([]amfval.DictEntry, count)
	for i := 0; i < count; i++ {
		key, err := d.Decode()
		if err != nil {
			return nil, fmt.Errorf("amf3: decode dictionary key %d: %w", i, err)
		}
		val, err := d.Decode()
		if err != nil {
			return nil, fmt.Errorf("amf3: decode dictionary value %d: %w", i, err)
		}
		dict.Entries[i] = amfval.DictEntry{Key: key, Value: val}
	}
	return dict, nil
}
