package directory

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/bgrewell/iso-forge/pkg/encoding"
	"github.com/bgrewell/iso-forge/pkg/susp"
)

// recordHeaderSize is the fixed part of a directory record (ECMA-119 9.1),
// up to and including the Length of File Identifier field.
const recordHeaderSize = 33

// maxRecordSize is the largest a directory record can be; the length field
// is a single byte.
const maxRecordSize = 255

// DataLocation tags where a file record's content comes from.
type DataLocation int

const (
	// DataOnOriginalISO means the content lives on the source image at the
	// original extent location; reads seek the image's byte source.
	DataOnOriginalISO DataLocation = iota
	// DataInExternalSource means the content is served from a byte source
	// attached at mutation time.
	DataInExternalSource
)

// ErrDuplicateChild is returned by AddChild when a non-associated sibling
// with the same identifier already exists.
type ErrDuplicateChild struct {
	Parent string
	Child  string
}

func (e *ErrDuplicateChild) Error() string {
	return fmt.Sprintf("parent %q already has a child named %q", e.Parent, e.Child)
}

// ErrDirectoryOverflow is returned when, during parsing, a directory's
// records exceed its recorded data length; the image is corrupt.
type ErrDirectoryOverflow struct {
	Ident string
}

func (e *ErrDirectoryOverflow) Error() string {
	return fmt.Sprintf("more records than fit into directory %q; image is corrupt", e.Ident)
}

// Volume is the slice of a volume descriptor that child bookkeeping needs;
// it is satisfied by descriptor.VolumeDescriptor.
type Volume interface {
	LogicalBlockSize() uint16
	AddToSpaceSize(additionBytes uint32)
	RemoveFromSpaceSize(removalBytes uint32)
}

// Record is an ISO9660 directory record: one node of the directory tree.
type Record struct {
	// Length of Directory Record, in bytes, always even. Media exist whose
	// stored length disagrees with the record contents; the stored value is
	// carried, not recomputed.
	DRLen uint8
	// Extended Attribute Record length; zero when no EAR is recorded.
	XAttrLen uint8
	// Data Length of the file section. Both-byte-order on disk; media with
	// disagreeing halves exist, so the little-endian value wins.
	DataLength uint32
	// File flag bits; see flags.go.
	FileFlags uint8
	// File Unit Size and Interleave Gap Size for interleaved files; zero
	// otherwise.
	FileUnitSize      uint8
	InterleaveGapSize uint8
	// Volume Sequence Number of the volume holding this extent.
	SeqNum uint16
	// File identifier bytes: 0x00 for dot, 0x01 for dotdot, otherwise the
	// name, possibly with a ;version suffix.
	Ident string

	IsDir  bool
	IsRoot bool

	Parent   *Record
	Children []*Record

	// CurrLength is the byte total of child records currently recorded in
	// this directory's extent; always at most DataLength.
	CurrLength int

	// RockRidge holds the SUSP entries of the system use area, if any.
	RockRidge *susp.RockRidge

	// Where this record's content comes from and the byte source that backs
	// it. The source must outlive the image object.
	Location DataLocation
	Source   io.ReadSeeker

	// PrimaryRecord links a supplementary-volume file record to the primary
	// record whose data it mirrors. The allocator refreshes this record's
	// extent from the primary after every reshuffle.
	PrimaryRecord *Record

	origExtent uint32
	newExtent  uint32
	hasNew     bool
}

// ParseRecord parses a directory record out of its on-disk bytes. The source
// is attached for deferred content reads; parent is nil only for the root
// record embedded in a volume descriptor.
func ParseRecord(record []byte, source io.ReadSeeker, parent *Record) (*Record, error) {
	if len(record) > maxRecordSize {
		return nil, fmt.Errorf("directory record longer than %d bytes", maxRecordSize)
	}
	if len(record) < recordHeaderSize+1 {
		return nil, fmt.Errorf("directory record truncated")
	}

	rec := &Record{
		Parent:   parent,
		Location: DataOnOriginalISO,
		Source:   source,
	}

	rec.DRLen = record[0]
	rec.XAttrLen = record[1]

	extentLE := binary.LittleEndian.Uint32(record[2:6])
	extentBE := binary.BigEndian.Uint32(record[6:10])
	if extentLE != extentBE {
		return nil, fmt.Errorf("little-endian (%d) and big-endian (%d) extent location disagree", extentLE, extentBE)
	}
	rec.origExtent = extentLE

	// Media in the wild carry disagreeing data length halves; the
	// little-endian value is taken as the actual size.
	rec.DataLength = binary.LittleEndian.Uint32(record[10:14])

	if _, err := encoding.ParseRecordingTimestamp(record[18:25]); err != nil {
		return nil, err
	}

	rec.FileFlags = record[25]
	rec.FileUnitSize = record[26]
	rec.InterleaveGapSize = record[27]

	seqLE := binary.LittleEndian.Uint16(record[28:30])
	seqBE := binary.BigEndian.Uint16(record[30:32])
	if seqLE != seqBE {
		return nil, fmt.Errorf("little-endian and big-endian volume sequence number disagree")
	}
	rec.SeqNum = seqLE

	lenFI := int(record[32])

	if parent == nil {
		rec.IsRoot = true
		rec.IsDir = true
		// A root directory record always has the single 0x00 identifier.
		if record[33] != 0x00 {
			return nil, fmt.Errorf("invalid root directory record identifier")
		}
		rec.Ident = "\x00"
	} else {
		offset := recordHeaderSize
		if offset+lenFI > len(record) {
			return nil, fmt.Errorf("directory record identifier truncated")
		}
		rec.Ident = string(record[offset : offset+lenFI])
		offset += lenFI
		if rec.FileFlags&FileFlagDirectory != 0 {
			rec.IsDir = true
		}
		if lenFI%2 == 0 {
			offset++
		}

		if offset < len(record) && susp.IsSUSPTag(record[offset:]) {
			isFirstOfRoot := rec.Ident == "\x00" && parent.Parent == nil
			bytesToSkip := 0
			switch {
			case isFirstOfRoot:
			case parent.Parent == nil:
				if len(parent.Children) > 0 && parent.Children[0].RockRidge != nil {
					bytesToSkip = parent.Children[0].RockRidge.BytesToSkip
				}
			case parent.RockRidge != nil:
				bytesToSkip = parent.RockRidge.BytesToSkip
			}
			rr, err := susp.ParseRockRidge(record[offset:], isFirstOfRoot, bytesToSkip)
			if err != nil {
				return nil, err
			}
			rec.RockRidge = rr
		}
	}

	if rec.XAttrLen != 0 {
		if rec.FileFlags&FileFlagRecord != 0 {
			return nil, fmt.Errorf("record bit not allowed with extended attributes")
		}
		if rec.FileFlags&FileFlagProtection != 0 {
			return nil, fmt.Errorf("protection bit not allowed with extended attributes")
		}
	}

	return rec, nil
}

// newRecord is the common constructor behind the typed New* helpers.
func newRecord(mangledName string, parent *Record, seqNum uint16, isDir bool, length uint32, rockRidge bool, rrName, rrSymlinkTarget string) (*Record, error) {
	rec := &Record{
		DataLength: length,
		Ident:      mangledName,
		IsDir:      isDir,
		SeqNum:     seqNum,
		Parent:     parent,
		Location:   DataOnOriginalISO,
	}

	if parent == nil {
		rec.IsRoot = true
	}
	if isDir {
		rec.FileFlags |= FileFlagDirectory
	}

	drLen := recordHeaderSize + len(mangledName)
	drLen += drLen % 2

	if rockRidge {
		isFirstOfRoot := mangledName == "\x00" && parent != nil && parent.Parent == nil
		rr, newLen, err := susp.NewRockRidge(isFirstOfRoot, rrName, isDir, rrSymlinkTarget, drLen)
		if err != nil {
			return nil, err
		}
		rec.RockRidge = rr
		drLen = newLen

		if isDir {
			if err := rec.newDirLinkBookkeeping(); err != nil {
				return nil, err
			}
		}
	}
	rec.DRLen = uint8(drLen)

	return rec, nil
}

// newDirLinkBookkeeping applies the POSIX nlink updates that creating a
// directory record implies. A directory's dot and dotdot participate in the
// counts of its parent and grandparent.
func (rec *Record) newDirLinkBookkeeping() error {
	parent := rec.Parent
	if parent.Parent != nil {
		switch rec.Ident {
		case "\x00":
			if err := parent.RockRidge.AddToFileLinks(); err != nil {
				return err
			}
			return rec.RockRidge.AddToFileLinks()
		case "\x01":
			return rec.RockRidge.CopyFileLinks(parent.Parent.Children[1].RockRidge)
		default:
			if err := parent.RockRidge.AddToFileLinks(); err != nil {
				return err
			}
			return parent.Children[0].RockRidge.AddToFileLinks()
		}
	}

	// The parent is the root.
	if rec.Ident != "\x00" && rec.Ident != "\x01" {
		if err := parent.Children[0].RockRidge.AddToFileLinks(); err != nil {
			return err
		}
		return parent.Children[1].RockRidge.AddToFileLinks()
	}
	return rec.RockRidge.AddToFileLinks()
}

// NewRoot creates the root directory record of a volume descriptor.
func NewRoot(seqNum uint16, logBlockSize uint16) (*Record, error) {
	return newRecord("\x00", nil, seqNum, true, uint32(logBlockSize), false, "", "")
}

// NewDot creates the "dot" record of a directory.
func NewDot(parent *Record, seqNum uint16, rockRidge bool, logBlockSize uint16) (*Record, error) {
	return newRecord("\x00", parent, seqNum, true, uint32(logBlockSize), rockRidge, "", "")
}

// NewDotDot creates the "dotdot" record of a directory.
func NewDotDot(parent *Record, seqNum uint16, rockRidge bool, logBlockSize uint16) (*Record, error) {
	return newRecord("\x01", parent, seqNum, true, uint32(logBlockSize), rockRidge, "", "")
}

// NewDir creates a directory record for a new directory.
func NewDir(name string, parent *Record, seqNum uint16, rockRidge bool, rrName string, logBlockSize uint16) (*Record, error) {
	return newRecord(name, parent, seqNum, true, uint32(logBlockSize), rockRidge, rrName, "")
}

// NewFile creates a directory record for a new file whose content is served
// from the given byte source.
func NewFile(source io.ReadSeeker, length uint32, isoName string, parent *Record, seqNum uint16, rockRidge bool, rrName string) (*Record, error) {
	rec, err := newRecord(isoName, parent, seqNum, false, length, rockRidge, rrName, "")
	if err != nil {
		return nil, err
	}
	rec.Location = DataInExternalSource
	rec.Source = source
	return rec, nil
}

// NewSymlink creates a directory record for a symlink; this implies Rock
// Ridge.
func NewSymlink(name string, parent *Record, rrTarget string, seqNum uint16, rrName string) (*Record, error) {
	return newRecord(name, parent, seqNum, false, 0, true, rrName, rrTarget)
}

// identLess is the ISO9660 child ordering: dot sorts first, dotdot second,
// and everything else byte-lexicographically. The exact ECMA-119 9.3
// space-padded comparison is approximated by the plain byte compare.
func identLess(a, b string) bool {
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

// Less orders directory records by their identifiers.
func (rec *Record) Less(other *Record) bool {
	return identLess(rec.Ident, other.Ident)
}

// AddChild inserts a child into this directory's ordered children list. It
// is called both while parsing and while mutating; when the cumulative child
// record length overflows the directory's data length, a full logical block
// is added while mutating, and the image is declared corrupt while parsing.
func (rec *Record) AddChild(child *Record, vd Volume, parsing bool) error {
	if !rec.IsDir {
		return fmt.Errorf("cannot add a child to a record that is not a directory")
	}

	for _, c := range rec.Children {
		if c.Ident == child.Ident {
			if !c.IsAssociated() && !child.IsAssociated() {
				return &ErrDuplicateChild{Parent: rec.Ident, Child: child.Ident}
			}
		}
	}

	idx := sort.Search(len(rec.Children), func(i int) bool {
		return !rec.Children[i].Less(child)
	})
	rec.Children = append(rec.Children, nil)
	copy(rec.Children[idx+1:], rec.Children[idx:])
	rec.Children[idx] = child

	rec.CurrLength += int(child.DRLen)
	if rec.CurrLength > int(rec.DataLength) {
		if parsing {
			return &ErrDirectoryOverflow{Ident: rec.Ident}
		}
		blockSize := uint32(vd.LogicalBlockSize())
		rec.DataLength += blockSize
		vd.AddToSpaceSize(blockSize)
	}
	return nil
}

// RemoveChild removes a child from this directory, shrinking the directory
// extent by a block when a full block has become unused and undoing the Rock
// Ridge link counts the child contributed.
func (rec *Record) RemoveChild(child *Record, vd Volume) error {
	idx := -1
	for i, c := range rec.Children {
		if c == child {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("child %q not found in %q", child.Ident, rec.Ident)
	}

	rec.CurrLength -= int(child.DRLen)
	blockSize := uint32(vd.LogicalBlockSize())
	if int(rec.DataLength)-rec.CurrLength > int(blockSize) {
		rec.DataLength -= blockSize
		vd.RemoveFromSpaceSize(blockSize)
	}

	if child.IsDir && child.RockRidge != nil {
		if rec.Parent == nil {
			if err := rec.Children[0].RockRidge.RemoveFromFileLinks(); err != nil {
				return err
			}
			if err := rec.Children[1].RockRidge.RemoveFromFileLinks(); err != nil {
				return err
			}
		} else {
			if err := rec.RockRidge.RemoveFromFileLinks(); err != nil {
				return err
			}
			if err := rec.Children[0].RockRidge.RemoveFromFileLinks(); err != nil {
				return err
			}
		}
	}

	rec.Children = append(rec.Children[:idx], rec.Children[idx+1:]...)
	return nil
}

// IsDot reports whether this is the "dot" record.
func (rec *Record) IsDot() bool { return rec.Ident == "\x00" }

// IsDotDot reports whether this is the "dotdot" record.
func (rec *Record) IsDotDot() bool { return rec.Ident == "\x01" }

// IsFile reports whether this record identifies a file.
func (rec *Record) IsFile() bool { return !rec.IsDir }

// IsAssociated reports whether the associated-file flag is set.
func (rec *Record) IsAssociated() bool { return rec.FileFlags&FileFlagAssociated != 0 }

// RecordLength is the on-disk length of this directory record.
func (rec *Record) RecordLength() int { return int(rec.DRLen) }

// FileIdentifier returns the human form of the identifier: "/" for the
// root, "." and ".." for the special records, the raw identifier otherwise.
func (rec *Record) FileIdentifier() string {
	switch {
	case rec.IsRoot:
		return "/"
	case rec.Ident == "\x00":
		return "."
	case rec.Ident == "\x01":
		return ".."
	}
	return rec.Ident
}

// FileLength is the length of this record's data.
func (rec *Record) FileLength() uint32 { return rec.DataLength }

// ExtentLocation is the record's current extent: the reassigned one when the
// allocator has run, the parsed one otherwise.
func (rec *Record) ExtentLocation() uint32 {
	if rec.hasNew {
		return rec.newExtent
	}
	return rec.origExtent
}

// OrigExtentLocation is the extent this record had on the source image.
func (rec *Record) OrigExtentLocation() uint32 { return rec.origExtent }

// SetExtentLocation reassigns the record's extent; used by the allocator.
func (rec *Record) SetExtentLocation(extent uint32) {
	rec.newExtent = extent
	rec.hasNew = true
}

// OpenData positions the backing byte source for reading this record's
// content and returns it with the content length. Content served from the
// original image seeks to the original extent; external content rewinds.
func (rec *Record) OpenData(logBlockSize uint16) (io.ReadSeeker, uint32, error) {
	if rec.IsDir {
		return nil, 0, fmt.Errorf("cannot open the data of a directory")
	}
	if rec.Source == nil {
		return nil, 0, fmt.Errorf("no data source attached to %q", rec.Ident)
	}

	if rec.Location == DataOnOriginalISO {
		if _, err := rec.Source.Seek(int64(rec.origExtent)*int64(logBlockSize), io.SeekStart); err != nil {
			return nil, 0, err
		}
	} else {
		if _, err := rec.Source.Seek(0, io.SeekStart); err != nil {
			return nil, 0, err
		}
	}
	return rec.Source, rec.DataLength, nil
}

// Marshal generates the on-disk form of this directory record. Per ECMA-119
// 9.1.5 the recording timestamp reflects when the record was written, so it
// is stamped here.
func (rec *Record) Marshal() []byte {
	out := make([]byte, 0, rec.DRLen)

	extent := rec.ExtentLocation()

	out = append(out, rec.DRLen, rec.XAttrLen)
	extentBoth := encoding.MarshalBothByteOrders32(extent)
	out = append(out, extentBoth[:]...)
	lengthBoth := encoding.MarshalBothByteOrders32(rec.DataLength)
	out = append(out, lengthBoth[:]...)
	stamp := encoding.NewRecordingTimestamp(time.Now()).Record()
	out = append(out, stamp[:]...)
	out = append(out, rec.FileFlags, rec.FileUnitSize, rec.InterleaveGapSize)
	seqBoth := encoding.MarshalBothByteOrders16(rec.SeqNum)
	out = append(out, seqBoth[:]...)
	out = append(out, uint8(len(rec.Ident)))
	out = append(out, rec.Ident...)
	if (recordHeaderSize+len(rec.Ident))%2 != 0 {
		out = append(out, 0x00)
	}

	if rec.RockRidge != nil {
		out = append(out, rec.RockRidge.Record()...)
	}
	if len(out)%2 != 0 {
		out = append(out, 0x00)
	}

	return out
}
