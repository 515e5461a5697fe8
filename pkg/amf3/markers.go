// Package amf3 implements C4: the AMF3 codec, with its three
// per-packet reference tables (strings, objects, traits), U29 integer
// encoding, trait-driven object encoding, typed vectors, byte arrays,
// and dictionaries. Grounded in the teacher's pkg/protocol/amf
// amf3.go marker switch and U29 read loop, generalized to the full
// wire format spec §4.2 describes.
package amf3

// AMF3 markers.
const (
	markerUndefined    = 0x00
	markerNull         = 0x01
	markerFalse        = 0x02
	markerTrue         = 0x03
	markerInteger      = 0x04
	markerDouble       = 0x05
	markerString       = 0x06
	markerXMLDoc       = 0x07
	markerDate         = 0x08
	markerArray        = 0x09
	markerObject       = 0x0A
	markerXML          = 0x0B
	markerByteArray    = 0x0C
	markerVectorInt    = 0x0D
	markerVectorUint   = 0x0E
	markerVectorDouble = 0x0F
	markerVectorObject = 0x10
	markerDictionary   = 0x11
)
