package encoding

import (
	"encoding/binary"
	"fmt"
	"time"
	"unicode/utf16"
)

// MarshalBothByteOrders32 converts a uint32 value into an 8-byte field that
// encodes the value in both little-endian and big-endian orders, as required
// by ECMA-119 7.3.3.
func MarshalBothByteOrders32(val uint32) [8]byte {
	var data [8]byte
	binary.LittleEndian.PutUint32(data[0:4], val)
	binary.BigEndian.PutUint32(data[4:8], val)
	return data
}

// UnmarshalUint32LSBMSB converts an 8-byte field encoded in both little-
// and big-endian orders back to a uint32 value. It verifies that both halves
// are equal. If they are not, it returns an error.
func UnmarshalUint32LSBMSB(data []byte) (uint32, error) {
	if len(data) < 8 {
		return 0, fmt.Errorf("both-byte-order field requires 8 bytes, have %d", len(data))
	}
	little := binary.LittleEndian.Uint32(data[0:4])
	big := binary.BigEndian.Uint32(data[4:8])
	if little != big {
		return 0, fmt.Errorf("mismatched both-byte orders: little-endian value %d != big-endian value %d", little, big)
	}
	return little, nil
}

// MarshalBothByteOrders16 converts a uint16 value into a 4-byte field that
// encodes the value in both little-endian and big-endian orders (ECMA-119
// 7.2.3). For the value 0x1234 it returns [0x34, 0x12, 0x12, 0x34].
func MarshalBothByteOrders16(val uint16) [4]byte {
	var data [4]byte
	binary.LittleEndian.PutUint16(data[0:2], val)
	binary.BigEndian.PutUint16(data[2:4], val)
	return data
}

// UnmarshalUint16LSBMSB converts a 4-byte field encoded in both little-
// and big-endian orders back to a uint16 value. It verifies that both halves
// match; if they do not, it returns an error.
func UnmarshalUint16LSBMSB(data []byte) (uint16, error) {
	if len(data) < 4 {
		return 0, fmt.Errorf("both-byte-order field requires 4 bytes, have %d", len(data))
	}
	little := binary.LittleEndian.Uint16(data[0:2])
	big := binary.BigEndian.Uint16(data[2:4])
	if little != big {
		return 0, fmt.Errorf("mismatched both-byte orders: little-endian value %d != big-endian value %d", little, big)
	}
	return little, nil
}

// Swab32 byte-swaps a 32-bit value.
func Swab32(val uint32) uint32 {
	return val<<24 | (val&0xff00)<<8 | (val>>8)&0xff00 | val>>24
}

// Swab16 byte-swaps a 16-bit value.
func Swab16(val uint16) uint16 {
	return val<<8 | val>>8
}

// CeilingDiv divides numer by denom, rounding up.
func CeilingDiv(numer, denom uint32) uint32 {
	return (numer + denom - 1) / denom
}

// PadString space-pads (or truncates) a string into a field of the given
// length, per the ECMA-119 a/d-string filler rules.
func PadString(s string, length int) []byte {
	b := make([]byte, length)
	copy(b, s)
	for i := len(s); i < length; i++ {
		b[i] = ' '
	}
	return b
}

// PadNulString NUL-pads (or truncates) a string into a field of the given
// length. Used for boot system identifiers and similar binary fields.
func PadNulString(s string, length int) []byte {
	b := make([]byte, length)
	copy(b, s)
	return b
}

// PadLen returns the number of zero bytes needed to bring dataSize up to the
// next multiple of padSize. It returns 0 when dataSize is already aligned.
func PadLen(dataSize, padSize int64) int64 {
	pad := padSize - (dataSize % padSize)
	if pad == padSize {
		return 0
	}
	return pad
}

// EncodeUTF16BE encodes text as big-endian UTF-16, the Joliet identifier
// encoding.
func EncodeUTF16BE(s string) []byte {
	codes := utf16.Encode([]rune(s))
	out := make([]byte, 2*len(codes))
	for i, c := range codes {
		binary.BigEndian.PutUint16(out[2*i:], c)
	}
	return out
}

// DecodeUTF16BE decodes big-endian UTF-16 bytes back into text. A trailing
// odd byte is dropped.
func DecodeUTF16BE(b []byte) string {
	codes := make([]uint16, len(b)/2)
	for i := range codes {
		codes[i] = binary.BigEndian.Uint16(b[2*i:])
	}
	return string(utf16.Decode(codes))
}

// GMTOffset returns the time's offset from GMT in 15-minute intervals, the
// unit both ISO9660 date forms record.
func GMTOffset(t time.Time) int8 {
	_, offsetSec := t.Zone()
	return int8(offsetSec / 900)
}
