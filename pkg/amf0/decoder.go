package amf0

import (
	"fmt"

	"amfgw/pkg/amf3"
	"amfgw/pkg/amfio"
	"amfgw/pkg/amfval"
	"amfgw/pkg/registry"
)

// Decoder reads AMF0-encoded values, tracking the single object
// reference table spec §4.3 describes. Confined to one packet; never
// share across concurrent decodes (spec §5).
type Decoder struct {
	r       amfio.Reader
	reg     *registry.Registry
	objects []interface{}

	// externals/AMF3 sub-decode options, forwarded verbatim to any
	// AvmPlus escape encountered.
	amf3Externals map[string]amf3.ExternalReader
}

// NewDecoder returns a Decoder reading from r, using reg both for its
// own TypedObject alias lookups and for any AMF3 escape it encounters.
func NewDecoder(r amfio.Reader, reg *registry.Registry) *Decoder {
	return &Decoder{r: r, reg: reg}
}

// WithAMF3Externals registers externalizable readers for use if this
// stream escapes into AMF3 via the AvmPlus marker.
func (d *Decoder) WithAMF3Externals(externals map[string]amf3.ExternalReader) *Decoder {
	d.amf3Externals = externals
	return d
}

// Decode reads one AMF0 marker-delimited value.
func (d *Decoder) Decode() (interface{}, error) {
	marker, err := amfio.ReadByte(d.r)
	if err != nil {
		return nil, fmt.Errorf("amf0: read marker: %w", err)
	}
	return d.decodeMarker(marker)
}

func (d *Decoder) decodeMarker(marker byte) (interface{}, error) {
	switch marker {
	case markerNumber:
		return amfio.ReadDouble(d.r)
	case markerBoolean:
		b, err := amfio.ReadByte(d.r)
		if err != nil {
			return nil, fmt.Errorf("amf0: decode boolean: %w", err)
		}
		return b != 0, nil
	case markerString:
		return amfio.ReadUTF(d.r)
	case markerObject:
		return d.decodeObjectBody("")
	case markerMovieclip:
		return nil, fmt.Errorf("amf0: unsupported type movieclip")
	case markerNull:
		return nil, nil
	case markerUndefined:
		return amfval.Undefined{}, nil
	case markerReference:
		idx, err := amfio.ReadInt(d.r)
		if err != nil {
			return nil, fmt.Errorf("amf0: decode reference index: %w", err)
		}
		if idx < 0 || idx >= len(d.objects) {
			return nil, fmt.Errorf("amf0: reference %d out of range", idx)
		}
		return d.objects[idx], nil
	case markerEcmaArray:
		return d.decodeEcmaArray()
	case markerObjectEnd:
		return nil, fmt.Errorf("amf0: unexpected object-end marker")
	case markerStrictArray:
		return d.decodeStrictArray()
	case markerDate:
		return d.decodeDate()
	case markerLongString:
		return amfio.ReadLongUTF(d.r)
	case markerUnsupported:
		return nil, nil
	case markerRecordset:
		return nil, fmt.Errorf("amf0: unsupported type recordset")
	case markerXMLDocument:
		s, err := amfio.ReadLongUTF(d.r)
		if err != nil {
			return nil, fmt.Errorf("amf0: decode xml document: %w", err)
		}
		return amfval.XML{Data: s, Legacy: true}, nil
	case markerTypedObject:
		alias, err := amfio.ReadUTF(d.r)
		if err != nil {
			return nil, fmt.Errorf("amf0: decode typed object alias: %w", err)
		}
		if class, ok := d.reg.GetMappedClassName(alias); ok {
			alias = class
		}
		return d.decodeObjectBody(alias)
	case markerAvmPlusObject:
		return d.decodeAvmPlus()
	default:
		return nil, fmt.Errorf("amf0: unsupported marker 0x%02X", marker)
	}
}

// decodeObjectBody reads name/value pairs terminated by an empty name
// followed by the object-end marker, used by both Object and
// TypedObject. The resulting object is registered in the reference
// table before its fields are read so self-referential graphs decode.
func (d *Decoder) decodeObjectBody(alias string) (*amfval.Object, error) {
	trait := &amfval.Trait{Alias: alias, Dynamic: true}
	obj := amfval.NewObject(trait)
	d.objects = append(d.objects, obj)

	for {
		key, err := amfio.ReadUTF(d.r)
		if err != nil {
			return nil, fmt.Errorf("amf0: decode object key: %w", err)
		}
		if key == "" {
			end, err := amfio.ReadByte(d.r)
			if err != nil {
				return nil, fmt.Errorf("amf0: decode object-end marker: %w", err)
			}
			if end != markerObjectEnd {
				return nil, fmt.Errorf("amf0: expected object-end marker, got 0x%02X", end)
			}
			break
		}
		val, err := d.Decode()
		if err != nil {
			return nil, fmt.Errorf("amf0: decode object value %q: %w", key, err)
		}
		obj.Dynamic.Set(key, val)
	}
	return obj, nil
}

func (d *Decoder) decodeEcmaArray() (*amfval.Array, error) {
	if _, err := amfio.ReadUint32(d.r); err != nil { // nominal length, not load-bearing
		return nil, fmt.Errorf("amf0: decode ecma-array length: %w", err)
	}
	arr := amfval.NewArray()
	d.objects = append(d.objects, arr)
	for {
		key, err := amfio.ReadUTF(d.r)
		if err != nil {
			return nil, fmt.Errorf("amf0: decode ecma-array key: %w", err)
		}
		if key == "" {
			end, err := amfio.ReadByte(d.r)
			if err != nil {
				return nil, fmt.Errorf("amf0: decode ecma-array end marker: %w", err)
			}
			if end != markerObjectEnd {
				return nil, fmt.Errorf("amf0: expected object-end marker, got 0x%02X", end)
			}
			break
		}
		val, err := d.Decode()
		if err != nil {
			return nil, fmt.Errorf("amf0: decode ecma-array value %q: %w", key, err)
		}
		arr.Assoc.Set(key, val)
	}
	return arr, nil
}

func (d *Decoder) decodeStrictArray() (*amfval.Array, error) {
	length, err := amfio.ReadUint32(d.r)
	if err != nil {
		return nil, fmt.Errorf("amf0: decode strict-array length: %w", err)
	}
	arr := amfval.NewArray()
	d.objects = append(d.objects, arr)
	arr.Dense = make([]interface{}, length)
	for i := uint32(0); i < length; i++ {
		val, err := d.Decode()
		if err != nil {
			return nil, fmt.Errorf("amf0: decode strict-array element %d: %w", i, err)
		}
		arr.Dense[i] = val
	}
	return arr, nil
}

func (d *Decoder) decodeDate() (amfval.Date, error) {
	ms, err := amfio.ReadDouble(d.r)
	if err != nil {
		return 0, fmt.Errorf("amf0: decode date value: %w", err)
	}
	if _, err := amfio.ReadRaw(d.r, 2); err != nil { // reserved timezone, always 0x0000
		return 0, fmt.Errorf("amf0: decode date timezone: %w", err)
	}
	return amfval.Date(ms), nil
}

// decodeAvmPlus implements the escape hatch: from here to the end of
// the current value, decode as AMF3 with fresh reference tables.
func (d *Decoder) decodeAvmPlus() (interface{}, error) {
	sub := amf3.NewDecoder(d.r, d.reg).WithExternals(d.amf3Externals)
	return sub.Decode()
}
