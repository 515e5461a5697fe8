package envelope

import (
	"bytes"
	"fmt"

	"amfgw/pkg/amf0"
	"amfgw/pkg/amf3"
	"amfgw/pkg/amfio"
	"amfgw/pkg/amfval"
	"amfgw/pkg/registry"
)

// messagingClasses are the server-class-ids the registry resolves
// Flex messaging wire aliases to; a body's AMF3 Array-wrapped payload
// unwraps only when its first element carries one of these.
var messagingClasses = map[string]bool{
	"CommandMessage":     true,
	"RemotingMessage":    true,
	"AcknowledgeMessage": true,
	"ErrorMessage":       true,
}

// Decode parses a full envelope from data.
func Decode(data []byte, reg *registry.Registry) (*Packet, error) {
	r := bytes.NewReader(data)

	rawVersion, err := amfio.ReadInt(r)
	if err != nil {
		return nil, fmt.Errorf("envelope: read version: %w", err)
	}
	version := Version(rawVersion)
	if version != VersionAMF0 && version != VersionAMF3 && version != VersionFMS {
		return nil, fmt.Errorf("envelope: unsupported version %d", rawVersion)
	}

	headerCount, err := amfio.ReadInt(r)
	if err != nil {
		return nil, fmt.Errorf("envelope: read header count: %w", err)
	}
	headers := make([]Header, headerCount)
	for i := range headers {
		name, err := amfio.ReadUTF(r)
		if err != nil {
			return nil, fmt.Errorf("envelope: read header %d name: %w", i, err)
		}
		mustUnderstandByte, err := amfio.ReadByte(r)
		if err != nil {
			return nil, fmt.Errorf("envelope: read header %d must-understand: %w", i, err)
		}
		length, err := amfio.ReadLong(r)
		if err != nil {
			return nil, fmt.Errorf("envelope: read header %d length: %w", i, err)
		}
		val, err := decodeValue(r, version, reg)
		if err != nil {
			return nil, fmt.Errorf("envelope: read header %d value: %w", i, err)
		}
		headers[i] = Header{Name: name, MustUnderstand: mustUnderstandByte != 0, Length: length, Data: val}
	}

	bodyCount, err := amfio.ReadInt(r)
	if err != nil {
		return nil, fmt.Errorf("envelope: read body count: %w", err)
	}
	bodies := make([]Body, bodyCount)
	for i := range bodies {
		target, err := amfio.ReadUTF(r)
		if err != nil {
			return nil, fmt.Errorf("envelope: read body %d target: %w", i, err)
		}
		response, err := amfio.ReadUTF(r)
		if err != nil {
			return nil, fmt.Errorf("envelope: read body %d response: %w", i, err)
		}
		length, err := amfio.ReadLong(r)
		if err != nil {
			return nil, fmt.Errorf("envelope: read body %d length: %w", i, err)
		}
		val, err := decodeValue(r, version, reg)
		if err != nil {
			return nil, fmt.Errorf("envelope: read body %d value: %w", i, err)
		}
		bodies[i] = Body{TargetURI: target, ResponseURI: response, Length: length, Data: unwrapMessaging(val)}
	}

	return &Packet{Version: version, Headers: headers, Bodies: bodies}, nil
}

func decodeValue(r amfio.Reader, version Version, reg *registry.Registry) (interface{}, error) {
	if version == VersionAMF3 {
		return amf3.NewDecoder(r, reg).Decode()
	}
	return amf0.NewDecoder(r, reg).Decode()
}

// unwrapMessaging implements the AMF3 messaging unwrap: if v is an
// Array whose first dense element is a messaging Message subtype, the
// body's payload becomes that element instead of the wrapping array.
func unwrapMessaging(v interface{}) interface{} {
	arr, ok := v.(*amfval.Array)
	if !ok || len(arr.Dense) == 0 {
		return v
	}
	obj, ok := arr.Dense[0].(*amfval.Object)
	if !ok || !messagingClasses[obj.Trait.Alias] {
		return v
	}
	return obj
}

// Encode writes pkt. Header and body length fields are always written
// as -1 (unknown): precomputing them would require double-buffering
// the encoded value first.
func Encode(pkt *Packet, reg *registry.Registry) ([]byte, error) {
	var buf bytes.Buffer

	if err := amfio.WriteInt(&buf, int(pkt.Version)); err != nil {
		return nil, fmt.Errorf("envelope: write version: %w", err)
	}
	if err := amfio.WriteInt(&buf, len(pkt.Headers)); err != nil {
		return nil, fmt.Errorf("envelope: write header count: %w", err)
	}
	for i, h := range pkt.Headers {
		if err := amfio.WriteUTF(&buf, h.Name); err != nil {
			return nil, fmt.Errorf("envelope: write header %d name: %w", i, err)
		}
		mustUnderstand := byte(0)
		if h.MustUnderstand {
			mustUnderstand = 1
		}
		if err := amfio.WriteByte(&buf, mustUnderstand); err != nil {
			return nil, fmt.Errorf("envelope: write header %d must-understand: %w", i, err)
		}
		if err := amfio.WriteLong(&buf, -1); err != nil {
			return nil, fmt.Errorf("envelope: write header %d length: %w", i, err)
		}
		if err := encodeValue(&buf, pkt.Version, reg, h.Data); err != nil {
			return nil, fmt.Errorf("envelope: write header %d value: %w", i, err)
		}
	}

	if err := amfio.WriteInt(&buf, len(pkt.Bodies)); err != nil {
		return nil, fmt.Errorf("envelope: write body count: %w", err)
	}
	for i, b := range pkt.Bodies {
		if err := amfio.WriteUTF(&buf, b.TargetURI); err != nil {
			return nil, fmt.Errorf("envelope: write body %d target: %w", i, err)
		}
		if err := amfio.WriteUTF(&buf, b.ResponseURI); err != nil {
			return nil, fmt.Errorf("envelope: write body %d response: %w", i, err)
		}
		if err := amfio.WriteLong(&buf, -1); err != nil {
			return nil, fmt.Errorf("envelope: write body %d length: %w", i, err)
		}
		if err := encodeValue(&buf, pkt.Version, reg, b.Data); err != nil {
			return nil, fmt.Errorf("envelope: write body %d value: %w", i, err)
		}
	}

	return buf.Bytes(), nil
}

func encodeValue(w amfio.Writer, version Version, reg *registry.Registry, v interface{}) error {
	if version == VersionAMF3 {
		return amf3.NewEncoder(w, reg).Encode(v)
	}
	return amf0.NewEncoder(w, reg).Encode(v)
}
