package amf3

import (
	"fmt"

	"amfgw/pkg/amfio"
)

// maxI29 / minI29 bound the signed interpretation of a U29 used only
// for the INTEGER marker (spec §4.2, §8).
const (
	maxI29 = 1<<28 - 1
	minI29 = -(1 << 28)
	u29Max = 1<<29 - 1
)

// ReadU29 reads the variable-length unsigned 29-bit integer: up to 3
// bytes with a continuation bit, a 4th byte contributing a final 8
// bits with no continuation bit.
func ReadU29(r amfio.Reader) (uint32, error) {
	var result uint32
	for i := 0; i < 3; i++ {
		b, err := amfio.ReadByte(r)
		if err != nil {
			return 0, fmt.Errorf("amf3: read U29: %w", err)
		}
		result = result<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			return result, nil
		}
	}
	b, err := amfio.ReadByte(r)
	if err != nil {
		return 0, fmt.Errorf("amf3: read U29 (4th byte): %w", err)
	}
	return result<<8 | uint32(b), nil
}

// WriteU29 writes val, which must fit in 29 bits.
func WriteU29(w amfio.Writer, val uint32) error {
	switch {
	case val <= 0x7F:
		return amfio.WriteByte(w, byte(val))
	case val <= 0x3FFF:
		return amfio.WriteRaw(w, []byte{byte(val>>7 | 0x80), byte(val & 0x7F)})
	case val <= 0x1FFFFF:
		return amfio.WriteRaw(w, []byte{
			byte(val>>14 | 0x80), byte(val>>7&0x7F | 0x80), byte(val & 0x7F),
		})
	case val <= u29Max:
		return amfio.WriteRaw(w, []byte{
			byte(val>>22 | 0x80), byte(val>>15&0x7F | 0x80), byte(val>>8&0x7F | 0x80), byte(val),
		})
	default:
		return fmt.Errorf("amf3: U29 value %d out of range", val)
	}
}

// signedI29 sign-extends a 29-bit value for the INTEGER marker.
func signedI29(u uint32) int32 {
	if u > maxI29 {
		return int32(u) - (1 << 29)
	}
	return int32(u)
}

// fitsI29 reports whether v can be written as a signed 29-bit INTEGER
// without widening to DOUBLE (spec §4.2, §8).
func fitsI29(v int64) bool {
	return v >= minI29 && v <= maxI29
}
