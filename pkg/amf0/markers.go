// Package amf0 implements C3: the AMF0 codec, with its single
// object-reference table and the escape hatch (AvmPlus, 0x11) into a
// fresh AMF3 sub-stream. Grounded in the teacher's
// pkg/protocol/amf/amf0.go marker switch, generalized to the
// reference-table and typed-object handling spec §4.3 requires and
// restored to the corrected (non-buggy) array-length write behavior
// spec.md §9 calls out.
package amf0

const (
	markerNumber        = 0x00
	markerBoolean       = 0x01
	markerString        = 0x02
	markerObject        = 0x03
	markerMovieclip     = 0x04 // reserved, not supported
	markerNull          = 0x05
	markerUndefined     = 0x06
	markerReference     = 0x07
	markerEcmaArray     = 0x08
	markerObjectEnd     = 0x09
	markerStrictArray   = 0x0A
	markerDate          = 0x0B
	markerLongString    = 0x0C
	markerUnsupported   = 0x0D
	markerRecordset     = 0x0E // reserved, not supported
	markerXMLDocument   = 0x0F
	markerTypedObject   = 0x10
	markerAvmPlusObject = 0x11
)
