package pathtable

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/iso-forge/pkg/directory"
	"github.com/bgrewell/iso-forge/pkg/encoding"
)

// recordFixedSize is the fixed part of a path table record (ECMA-119 9.4).
const recordFixedSize = 8

// Record is a single ISO9660 path table record. Each directory of a volume
// has one; the table is serialized twice, little- and big-endian.
type Record struct {
	// Length of Directory Identifier.
	LenDI uint8
	// Extended Attribute Record length.
	XAttrLength uint8
	// Extent location of the directory this record mirrors. Refreshed from
	// the linked directory record after each extent reshuffle.
	ExtentLocation uint32
	// Directory number of this record's parent. Root is its own parent.
	ParentDirectoryNum uint16
	// The directory identifier bytes; a single 0x00 for the root.
	DirectoryIdentifier string

	// DirectoryNum is this record's own number: 1 for root, otherwise the
	// parent's number plus one.
	DirectoryNum uint16

	// The directory record whose identifier this record mirrors.
	DirRecord *directory.Record
}

// RecordLength returns the on-disk length of a path table record holding an
// identifier of the given length, including the pad byte for odd lengths.
func RecordLength(lenDI int) int {
	return recordFixedSize + lenDI + (lenDI % 2)
}

// ParseRecord parses one path table record. littleEndian selects how the
// extent location and parent number halves are read.
func ParseRecord(data []byte, littleEndian bool) (*Record, error) {
	if len(data) < recordFixedSize+1 {
		return nil, fmt.Errorf("path table record truncated")
	}
	r := &Record{
		LenDI:       data[0],
		XAttrLength: data[1],
	}
	if littleEndian {
		r.ExtentLocation = binary.LittleEndian.Uint32(data[2:6])
		r.ParentDirectoryNum = binary.LittleEndian.Uint16(data[6:8])
	} else {
		r.ExtentLocation = binary.BigEndian.Uint32(data[2:6])
		r.ParentDirectoryNum = binary.BigEndian.Uint16(data[6:8])
	}

	if len(data) < RecordLength(int(r.LenDI)) {
		return nil, fmt.Errorf("path table record identifier truncated")
	}
	r.DirectoryIdentifier = string(data[recordFixedSize : recordFixedSize+int(r.LenDI)])

	if r.DirectoryIdentifier == "\x00" {
		// The root path table record is directory number one.
		r.DirectoryNum = 1
	} else {
		r.DirectoryNum = r.ParentDirectoryNum + 1
	}
	return r, nil
}

// record serializes the fixed fields with the given byte forms and appends
// the identifier plus its pad byte.
func (r *Record) record(extLoc uint32, parentDirNum uint16) []byte {
	out := make([]byte, 0, RecordLength(int(r.LenDI)))
	out = append(out, r.LenDI, r.XAttrLength)
	out = binary.LittleEndian.AppendUint32(out, extLoc)
	out = binary.LittleEndian.AppendUint16(out, parentDirNum)
	out = append(out, r.DirectoryIdentifier...)
	if r.LenDI%2 != 0 {
		out = append(out, 0x00)
	}
	return out
}

// RecordLittleEndian returns the little-endian on-disk form.
func (r *Record) RecordLittleEndian() []byte {
	return r.record(r.ExtentLocation, r.ParentDirectoryNum)
}

// RecordBigEndian returns the big-endian on-disk form.
func (r *Record) RecordBigEndian() []byte {
	return r.record(encoding.Swab32(r.ExtentLocation), encoding.Swab16(r.ParentDirectoryNum))
}

// newRecord is the common constructor.
func newRecord(name string, dirRecord *directory.Record, parentDirNum uint16) *Record {
	r := &Record{
		LenDI:               uint8(len(name)),
		ParentDirectoryNum:  parentDirNum,
		DirectoryIdentifier: name,
		DirRecord:           dirRecord,
	}
	if name == "\x00" {
		r.DirectoryNum = 1
	} else {
		r.DirectoryNum = parentDirNum + 1
	}
	return r
}

// NewRoot creates the root path table record; the root is directory number
// one and its own parent.
func NewRoot(dirRecord *directory.Record) *Record {
	return newRecord("\x00", dirRecord, 1)
}

// NewDir creates a path table record for a directory.
func NewDir(name string, dirRecord *directory.Record, parentDirNum uint16) *Record {
	return newRecord(name, dirRecord, parentDirNum)
}

// UpdateExtentLocation refreshes this record's extent from its linked
// directory record; called after each extent reshuffle.
func (r *Record) UpdateExtentLocation() {
	r.ExtentLocation = r.DirRecord.ExtentLocation()
}

// EqualToLittleEndian compares a big-endian parsed record to its
// little-endian counterpart. Both sides are held in decoded form, so the
// fields must match exactly when the two tables agree.
func (r *Record) EqualToLittleEndian(le *Record) bool {
	return r.LenDI == le.LenDI &&
		r.XAttrLength == le.XAttrLength &&
		r.ExtentLocation == le.ExtentLocation &&
		r.ParentDirectoryNum == le.ParentDirectoryNum &&
		r.DirectoryIdentifier == le.DirectoryIdentifier
}

// IdentLess is the path table sorting order: the root's 0x00 identifier
// first, the 0x01 identifier second, then plain lexicographic comparison.
func IdentLess(a, b string) bool {
	if a == "\x00" {
		return b != "\x00"
	}
	if b == "\x00" {
		return false
	}
	if a == "\x01" {
		return b != "\x00" && b != "\x01"
	}
	if b == "\x01" {
		return false
	}
	return a < b
}

// Less orders path table records by their directory identifiers.
func (r *Record) Less(other *Record) bool {
	return IdentLess(r.DirectoryIdentifier, other.DirectoryIdentifier)
}
