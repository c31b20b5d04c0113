package descriptor

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/bgrewell/iso-forge/pkg/consts"
	"github.com/bgrewell/iso-forge/pkg/directory"
	"github.com/bgrewell/iso-forge/pkg/encoding"
	"github.com/bgrewell/iso-forge/pkg/pathtable"
)

// VolumeDescriptorType dispatches the first byte of each 2048-byte frame.
type VolumeDescriptorType byte

const (
	TYPE_BOOT_RECORD              VolumeDescriptorType = 0x00
	TYPE_PRIMARY_DESCRIPTOR       VolumeDescriptorType = 0x01
	TYPE_SUPPLEMENTARY_DESCRIPTOR VolumeDescriptorType = 0x02
	TYPE_PARTITION_DESCRIPTOR     VolumeDescriptorType = 0x03
	TYPE_TERMINATOR_DESCRIPTOR    VolumeDescriptorType = 0xFF
)

// String converts a VolumeDescriptorType to its string representation.
func (vdt VolumeDescriptorType) String() string {
	switch vdt {
	case TYPE_BOOT_RECORD:
		return "Boot Record"
	case TYPE_PRIMARY_DESCRIPTOR:
		return "Primary Volume Descriptor"
	case TYPE_SUPPLEMENTARY_DESCRIPTOR:
		return "Supplementary Volume Descriptor"
	case TYPE_PARTITION_DESCRIPTOR:
		return "Partition Volume Descriptor"
	case TYPE_TERMINATOR_DESCRIPTOR:
		return "Volume Descriptor Set Terminator"
	default:
		return fmt.Sprintf("Unknown Volume Descriptor (0x%X)", byte(vdt))
	}
}

// PVDExtent is the fixed extent of the Primary Volume Descriptor.
const PVDExtent = 16

// Params carries the caller-supplied identity of a new volume descriptor.
type Params struct {
	SystemIdentifier    string
	VolumeIdentifier    string
	SetSize             uint16
	SeqNum              uint16
	LogBlockSize        uint16
	VolumeSetIdentifier string
	Publisher           FileOrTextIdentifier
	Preparer            FileOrTextIdentifier
	Application         FileOrTextIdentifier
	CopyrightFile       string
	AbstractFile        string
	BibliographicFile   string
	ExpirationDate      time.Time
	ApplicationUse      []byte
}

// VolumeDescriptor models a Primary or Supplementary (possibly Joliet)
// volume descriptor: the 2048-byte frame plus the root directory tree and
// path table records it owns.
type VolumeDescriptor struct {
	Type VolumeDescriptorType

	// Flags; always zero for a PVD (the field is unused there).
	Flags byte

	// Escape sequences; for Joliet one of the %/@, %/C, %/E UCS-2 levels.
	EscapeSequences [32]byte

	// Joliet is set when this is a supplementary descriptor whose flags and
	// escape sequences identify a Joliet hierarchy.
	Joliet bool

	SystemIdentifier string
	VolumeIdentifier string

	// SpaceSize is the count of logical blocks the mastered image occupies.
	SpaceSize uint32

	SetSize      uint16
	SeqNum       uint16
	LogBlockSize uint16

	// PathTblSize is the byte size of one path table copy; the number of
	// extents each copy spans is tracked alongside.
	PathTblSize         uint32
	PathTableNumExtents uint32

	PathTableLocationLE    uint32
	PathTableLocationBE    uint32
	OptPathTableLocationLE uint32
	OptPathTableLocationBE uint32

	Root *directory.Record

	VolumeSetIdentifier string

	Publisher   FileOrTextIdentifier
	Preparer    FileOrTextIdentifier
	Application FileOrTextIdentifier

	CopyrightFile     string
	AbstractFile      string
	BibliographicFile string

	CreationDate     encoding.VolumeDescriptorDate
	ModificationDate encoding.VolumeDescriptorDate
	ExpirationDate   encoding.VolumeDescriptorDate
	EffectiveDate    encoding.VolumeDescriptorDate

	FileStructureVersion byte
	ApplicationUse       [consts.ISO9660_APPLICATION_USE_SIZE]byte

	// PathTableRecords is kept in path table sort order; index 0 is always
	// the root.
	PathTableRecords []*pathtable.Record

	origExtent uint32
	newExtent  uint32
	hasNew     bool
}

// IsPrimary reports whether this is the primary descriptor.
func (vd *VolumeDescriptor) IsPrimary() bool {
	return vd.Type == TYPE_PRIMARY_DESCRIPTOR
}

// parseCommon decodes the fields shared by primary and supplementary
// descriptors, cross-checking every dual-endian field.
func (vd *VolumeDescriptor) parseCommon(data []byte, source io.ReadSeeker) error {
	if len(data) != consts.ISO9660_SECTOR_SIZE {
		return fmt.Errorf("volume descriptor must be %d bytes, have %d", consts.ISO9660_SECTOR_SIZE, len(data))
	}
	if string(data[1:6]) != consts.ISO9660_STD_IDENTIFIER {
		return fmt.Errorf("invalid volume descriptor identifier %q", string(data[1:6]))
	}
	if data[6] != consts.ISO9660_VOLUME_DESC_VERSION {
		return fmt.Errorf("invalid volume descriptor version %d", data[6])
	}

	vd.SystemIdentifier = string(data[8:40])
	vd.VolumeIdentifier = string(data[40:72])

	for _, b := range data[72:80] {
		if b != 0 {
			return fmt.Errorf("data in unused field not zero")
		}
	}

	var err error
	if vd.SpaceSize, err = encoding.UnmarshalUint32LSBMSB(data[80:88]); err != nil {
		return fmt.Errorf("space size: %w", err)
	}
	copy(vd.EscapeSequences[:], data[88:120])
	if vd.SetSize, err = encoding.UnmarshalUint16LSBMSB(data[120:124]); err != nil {
		return fmt.Errorf("set size: %w", err)
	}
	if vd.SeqNum, err = encoding.UnmarshalUint16LSBMSB(data[124:128]); err != nil {
		return fmt.Errorf("volume sequence number: %w", err)
	}
	if vd.LogBlockSize, err = encoding.UnmarshalUint16LSBMSB(data[128:132]); err != nil {
		return fmt.Errorf("logical block size: %w", err)
	}
	if vd.PathTblSize, err = encoding.UnmarshalUint32LSBMSB(data[132:140]); err != nil {
		return fmt.Errorf("path table size: %w", err)
	}
	vd.PathTableNumExtents = encoding.CeilingDiv(vd.PathTblSize, consts.ISO9660_PATH_TABLE_UNIT) * 2

	vd.PathTableLocationLE = binary.LittleEndian.Uint32(data[140:144])
	vd.OptPathTableLocationLE = binary.LittleEndian.Uint32(data[144:148])
	vd.PathTableLocationBE = binary.BigEndian.Uint32(data[148:152])
	vd.OptPathTableLocationBE = binary.BigEndian.Uint32(data[152:156])

	if vd.Root, err = directory.ParseRecord(data[156:190], source, nil); err != nil {
		return fmt.Errorf("root directory record: %w", err)
	}

	vd.VolumeSetIdentifier = string(data[190:318])

	isPrimary := vd.Type == TYPE_PRIMARY_DESCRIPTOR
	if vd.Publisher, err = ParseFileOrTextIdentifier(data[318:446], isPrimary); err != nil {
		return fmt.Errorf("publisher identifier: %w", err)
	}
	if vd.Preparer, err = ParseFileOrTextIdentifier(data[446:574], isPrimary); err != nil {
		return fmt.Errorf("preparer identifier: %w", err)
	}
	if vd.Application, err = ParseFileOrTextIdentifier(data[574:702], isPrimary); err != nil {
		return fmt.Errorf("application identifier: %w", err)
	}

	vd.CopyrightFile = string(data[702:739])
	vd.AbstractFile = string(data[739:776])
	vd.BibliographicFile = string(data[776:813])

	if vd.CreationDate, err = encoding.ParseVolumeDescriptorDate(data[813:830]); err != nil {
		return fmt.Errorf("creation date: %w", err)
	}
	if vd.ModificationDate, err = encoding.ParseVolumeDescriptorDate(data[830:847]); err != nil {
		return fmt.Errorf("modification date: %w", err)
	}
	if vd.ExpirationDate, err = encoding.ParseVolumeDescriptorDate(data[847:864]); err != nil {
		return fmt.Errorf("expiration date: %w", err)
	}
	if vd.EffectiveDate, err = encoding.ParseVolumeDescriptorDate(data[864:881]); err != nil {
		return fmt.Errorf("effective date: %w", err)
	}

	vd.FileStructureVersion = data[881]
	if vd.FileStructureVersion != 1 {
		return fmt.Errorf("file structure version expected to be 1")
	}
	if data[882] != 0 {
		return fmt.Errorf("data in unused field not zero")
	}
	copy(vd.ApplicationUse[:], data[883:1395])
	for _, b := range data[1395:2048] {
		if b != 0 {
			return fmt.Errorf("data in reserved field not zero")
		}
	}

	return nil
}

// ParsePrimary parses a Primary Volume Descriptor out of its 2048-byte
// frame. The source backs deferred reads of the root directory tree.
func ParsePrimary(data []byte, source io.ReadSeeker) (*VolumeDescriptor, error) {
	vd := &VolumeDescriptor{Type: TYPE_PRIMARY_DESCRIPTOR, origExtent: PVDExtent}
	if len(data) != consts.ISO9660_SECTOR_SIZE {
		return nil, fmt.Errorf("volume descriptor must be %d bytes, have %d", consts.ISO9660_SECTOR_SIZE, len(data))
	}
	if VolumeDescriptorType(data[0]) != TYPE_PRIMARY_DESCRIPTOR {
		return nil, fmt.Errorf("invalid primary volume descriptor type %d", data[0])
	}
	if data[7] != 0 {
		return nil, fmt.Errorf("data in unused field not zero")
	}
	for _, b := range data[88:120] {
		if b != 0 {
			return nil, fmt.Errorf("data in unused field not zero")
		}
	}
	if err := vd.parseCommon(data, source); err != nil {
		return nil, err
	}
	return vd, nil
}

// ParseSupplementary parses a Supplementary Volume Descriptor. The
// descriptor is deemed Joliet when flags bit 0 is clear and the escape
// sequences announce a UCS-2 level.
func ParseSupplementary(data []byte, source io.ReadSeeker, extent uint32) (*VolumeDescriptor, error) {
	vd := &VolumeDescriptor{Type: TYPE_SUPPLEMENTARY_DESCRIPTOR, origExtent: extent}
	if len(data) != consts.ISO9660_SECTOR_SIZE {
		return nil, fmt.Errorf("volume descriptor must be %d bytes, have %d", consts.ISO9660_SECTOR_SIZE, len(data))
	}
	if VolumeDescriptorType(data[0]) != TYPE_SUPPLEMENTARY_DESCRIPTOR {
		return nil, fmt.Errorf("invalid supplementary volume descriptor type %d", data[0])
	}
	vd.Flags = data[7]
	if err := vd.parseCommon(data, source); err != nil {
		return nil, err
	}

	switch string(vd.EscapeSequences[:3]) {
	case consts.JOLIET_LEVEL_1_ESCAPE, consts.JOLIET_LEVEL_2_ESCAPE, consts.JOLIET_LEVEL_3_ESCAPE:
		vd.Joliet = vd.Flags&0x1 == 0
	}
	return vd, nil
}

// initialSpaceSize is what a fresh volume occupies: the 16-sector system
// area, the descriptor itself, a set terminator, the version descriptor, two
// extents for each endianness of the path table, and the root directory.
const initialSpaceSize = 24

// initialPathTblSize is the byte size of a path table holding only the root
// record.
const initialPathTblSize = 10

// newCommon fills the fields shared by NewPrimary and NewSupplementary.
func newCommon(vd *VolumeDescriptor, p Params, sysIdent, volIdent, volSetIdent, copyrightFile, abstractFile, bibliFile string) error {
	if len(sysIdent) > 32 {
		return fmt.Errorf("the system identifier has a maximum length of 32")
	}
	if len(volIdent) > 32 {
		return fmt.Errorf("the volume identifier has a maximum length of 32")
	}
	if len(volSetIdent) > 128 {
		return fmt.Errorf("the volume set identifier has a maximum length of 128")
	}
	if len(copyrightFile) > 37 || len(abstractFile) > 37 || len(bibliFile) > 37 {
		return fmt.Errorf("file identifiers in the volume descriptor have a maximum length of 37")
	}
	if len(p.ApplicationUse) > consts.ISO9660_APPLICATION_USE_SIZE {
		return fmt.Errorf("the application use field has a maximum length of %d", consts.ISO9660_APPLICATION_USE_SIZE)
	}
	if p.SeqNum > p.SetSize {
		return fmt.Errorf("sequence number must be less than or equal to set size")
	}

	vd.SystemIdentifier = string(encoding.PadString(sysIdent, 32))
	vd.VolumeIdentifier = string(encoding.PadString(volIdent, 32))
	vd.SpaceSize = initialSpaceSize
	vd.SetSize = p.SetSize
	vd.SeqNum = p.SeqNum
	vd.LogBlockSize = p.LogBlockSize
	vd.PathTblSize = initialPathTblSize
	vd.PathTableNumExtents = encoding.CeilingDiv(vd.PathTblSize, consts.ISO9660_PATH_TABLE_UNIT) * 2
	// Default locations; reshuffle recomputes them before any write.
	vd.PathTableLocationLE = 19
	vd.PathTableLocationBE = 21

	root, err := directory.NewRoot(p.SeqNum, p.LogBlockSize)
	if err != nil {
		return err
	}
	vd.Root = root

	vd.VolumeSetIdentifier = string(encoding.PadString(volSetIdent, 128))

	isPrimary := vd.Type == TYPE_PRIMARY_DESCRIPTOR
	vd.Publisher = p.Publisher
	if err := vd.Publisher.CheckFilename(isPrimary); err != nil {
		return err
	}
	vd.Preparer = p.Preparer
	if err := vd.Preparer.CheckFilename(isPrimary); err != nil {
		return err
	}
	vd.Application = p.Application
	if err := vd.Application.CheckFilename(isPrimary); err != nil {
		return err
	}

	vd.CopyrightFile = string(encoding.PadString(copyrightFile, 37))
	vd.AbstractFile = string(encoding.PadString(abstractFile, 37))
	vd.BibliographicFile = string(encoding.PadString(bibliFile, 37))

	// Valid creation and modification dates are recorded here, but both are
	// refreshed at mastering time.
	now := time.Now()
	vd.CreationDate = encoding.NewVolumeDescriptorDate(now)
	vd.ModificationDate = encoding.NewVolumeDescriptorDate(now)
	vd.ExpirationDate = encoding.NewVolumeDescriptorDate(p.ExpirationDate)
	vd.EffectiveDate = encoding.NewVolumeDescriptorDate(now)
	vd.FileStructureVersion = 1
	copy(vd.ApplicationUse[:], p.ApplicationUse)

	return nil
}

// NewPrimary creates a new Primary Volume Descriptor.
func NewPrimary(p Params) (*VolumeDescriptor, error) {
	vd := &VolumeDescriptor{Type: TYPE_PRIMARY_DESCRIPTOR, origExtent: PVDExtent}
	err := newCommon(vd, p, p.SystemIdentifier, p.VolumeIdentifier, p.VolumeSetIdentifier,
		p.CopyrightFile, p.AbstractFile, p.BibliographicFile)
	if err != nil {
		return nil, err
	}
	return vd, nil
}

// NewSupplementary creates a new Joliet Supplementary Volume Descriptor; the
// text identifiers are encoded big-endian UTF-16.
func NewSupplementary(p Params) (*VolumeDescriptor, error) {
	vd := &VolumeDescriptor{Type: TYPE_SUPPLEMENTARY_DESCRIPTOR}
	err := newCommon(vd, p,
		string(encoding.EncodeUTF16BE(p.SystemIdentifier)),
		string(encoding.EncodeUTF16BE(p.VolumeIdentifier)),
		string(encoding.EncodeUTF16BE(p.VolumeSetIdentifier)),
		string(encoding.EncodeUTF16BE(p.CopyrightFile)),
		string(encoding.EncodeUTF16BE(p.AbstractFile)),
		string(encoding.EncodeUTF16BE(p.BibliographicFile)))
	if err != nil {
		return nil, err
	}
	copy(vd.EscapeSequences[:], consts.JOLIET_LEVEL_3_ESCAPE)
	vd.Joliet = true
	return vd, nil
}

// Marshal generates the 2048-byte frame. The creation and modification
// dates are stamped at serialization time.
func (vd *VolumeDescriptor) Marshal() []byte {
	out := make([]byte, consts.ISO9660_SECTOR_SIZE)

	out[0] = byte(vd.Type)
	copy(out[1:6], consts.ISO9660_STD_IDENTIFIER)
	out[6] = consts.ISO9660_VOLUME_DESC_VERSION
	out[7] = vd.Flags
	copy(out[8:40], vd.SystemIdentifier)
	copy(out[40:72], vd.VolumeIdentifier)

	space := encoding.MarshalBothByteOrders32(vd.SpaceSize)
	copy(out[80:88], space[:])
	copy(out[88:120], vd.EscapeSequences[:])
	setSize := encoding.MarshalBothByteOrders16(vd.SetSize)
	copy(out[120:124], setSize[:])
	seq := encoding.MarshalBothByteOrders16(vd.SeqNum)
	copy(out[124:128], seq[:])
	block := encoding.MarshalBothByteOrders16(vd.LogBlockSize)
	copy(out[128:132], block[:])
	ptSize := encoding.MarshalBothByteOrders32(vd.PathTblSize)
	copy(out[132:140], ptSize[:])

	binary.LittleEndian.PutUint32(out[140:144], vd.PathTableLocationLE)
	binary.LittleEndian.PutUint32(out[144:148], vd.OptPathTableLocationLE)
	binary.BigEndian.PutUint32(out[148:152], vd.PathTableLocationBE)
	binary.BigEndian.PutUint32(out[152:156], vd.OptPathTableLocationBE)

	copy(out[156:190], vd.Root.Marshal())

	copy(out[190:318], vd.VolumeSetIdentifier)
	copy(out[318:446], vd.Publisher.Record())
	copy(out[446:574], vd.Preparer.Record())
	copy(out[574:702], vd.Application.Record())
	copy(out[702:739], vd.CopyrightFile)
	copy(out[739:776], vd.AbstractFile)
	copy(out[776:813], vd.BibliographicFile)

	now := time.Now()
	created := encoding.NewVolumeDescriptorDate(now).Record()
	copy(out[813:830], created[:])
	modified := encoding.NewVolumeDescriptorDate(now).Record()
	copy(out[830:847], modified[:])
	expire := vd.ExpirationDate.Record()
	copy(out[847:864], expire[:])
	effective := vd.EffectiveDate.Record()
	copy(out[864:881], effective[:])

	out[881] = vd.FileStructureVersion
	copy(out[883:1395], vd.ApplicationUse[:])

	return out
}

// RootDirectoryRecord returns this descriptor's root directory record.
func (vd *VolumeDescriptor) RootDirectoryRecord() *directory.Record {
	return vd.Root
}

// LogicalBlockSize returns this descriptor's logical block size.
func (vd *VolumeDescriptor) LogicalBlockSize() uint16 {
	return vd.LogBlockSize
}

// SequenceNumber returns this descriptor's volume sequence number.
func (vd *VolumeDescriptor) SequenceNumber() uint16 {
	return vd.SeqNum
}

// PathTableSize returns the byte size of one path table copy.
func (vd *VolumeDescriptor) PathTableSize() uint32 {
	return vd.PathTblSize
}

// ExtentLocation returns this descriptor's current extent.
func (vd *VolumeDescriptor) ExtentLocation() uint32 {
	if vd.hasNew {
		return vd.newExtent
	}
	return vd.origExtent
}

// SetExtentLocation reassigns this descriptor's extent.
func (vd *VolumeDescriptor) SetExtentLocation(extent uint32) {
	vd.newExtent = extent
	vd.hasNew = true
}

// AddToSpaceSize rounds a byte count up to whole logical blocks and adds it
// to the space size.
func (vd *VolumeDescriptor) AddToSpaceSize(additionBytes uint32) {
	vd.SpaceSize += encoding.CeilingDiv(additionBytes, uint32(vd.LogBlockSize))
}

// RemoveFromSpaceSize rounds a byte count up to whole logical blocks and
// removes it from the space size.
func (vd *VolumeDescriptor) RemoveFromSpaceSize(removalBytes uint32) {
	vd.SpaceSize -= encoding.CeilingDiv(removalBytes, uint32(vd.LogBlockSize))
}

// AddPathTableRecord inserts a path table record in sorted position.
func (vd *VolumeDescriptor) AddPathTableRecord(ptr *pathtable.Record) {
	idx := sort.Search(len(vd.PathTableRecords), func(i int) bool {
		return !vd.PathTableRecords[i].Less(ptr)
	})
	vd.PathTableRecords = append(vd.PathTableRecords, nil)
	copy(vd.PathTableRecords[idx+1:], vd.PathTableRecords[idx:])
	vd.PathTableRecords[idx] = ptr
}

// findPTRIndex locates the path table record matching a directory
// identifier. Index 0 is always the root and is never searched.
func (vd *VolumeDescriptor) findPTRIndex(childIdent string) (int, error) {
	lo, hi := 1, len(vd.PathTableRecords)
	for lo < hi {
		mid := (lo + hi) / 2
		if pathtable.IdentLess(vd.PathTableRecords[mid].DirectoryIdentifier, childIdent) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == len(vd.PathTableRecords) || vd.PathTableRecords[lo].DirectoryIdentifier != childIdent {
		return 0, fmt.Errorf("could not find path table record for %q", childIdent)
	}
	return lo, nil
}

// SetPTRDirRecord links a parsed directory record to the path table record
// that mirrors its identifier; used during directory walking so that extents
// can later be refreshed from the live tree.
func (vd *VolumeDescriptor) SetPTRDirRecord(rec *directory.Record) error {
	idx := 0
	if !rec.IsRoot {
		var err error
		if idx, err = vd.findPTRIndex(rec.Ident); err != nil {
			return err
		}
	}
	vd.PathTableRecords[idx].DirRecord = rec
	return nil
}

// FindParentDirNum returns the directory number of the path table record
// matching the parent directory record.
func (vd *VolumeDescriptor) FindParentDirNum(parent *directory.Record) (uint16, error) {
	if parent.IsRoot {
		return vd.PathTableRecords[0].DirectoryNum, nil
	}
	idx, err := vd.findPTRIndex(parent.Ident)
	if err != nil {
		return 0, err
	}
	return vd.PathTableRecords[idx].DirectoryNum, nil
}

// AddEntry adds a new file or directory to this volume's bookkeeping: the
// path table grows by ptrSize bytes (zero for files) and the space size by
// the entry length. Growing the path table past its current extents claims
// four more extents, two per endianness.
func (vd *VolumeDescriptor) AddEntry(flen uint32, ptrSize uint32) {
	vd.PathTblSize += ptrSize
	if encoding.CeilingDiv(vd.PathTblSize, consts.ISO9660_PATH_TABLE_UNIT)*2 > vd.PathTableNumExtents {
		// Two new extents for the little endian table and two for the big
		// endian one; locations are fixed up during reshuffle.
		vd.AddToSpaceSize(4 * uint32(vd.LogBlockSize))
		vd.PathTableNumExtents += 2
	}
	vd.AddToSpaceSize(flen)
}

// RemoveEntry removes a file or directory from this volume's bookkeeping;
// directoryIdent, when non-empty, also drops the matching path table record
// and shrinks the table.
func (vd *VolumeDescriptor) RemoveEntry(flen uint32, directoryIdent string) error {
	vd.RemoveFromSpaceSize(flen)

	if directoryIdent == "" {
		return nil
	}

	idx, err := vd.findPTRIndex(directoryIdent)
	if err != nil {
		return err
	}

	vd.PathTblSize -= uint32(pathtable.RecordLength(int(vd.PathTableRecords[idx].LenDI)))
	newExtents := encoding.CeilingDiv(vd.PathTblSize, consts.ISO9660_PATH_TABLE_UNIT) * 2
	if newExtents > vd.PathTableNumExtents {
		return fmt.Errorf("path table extents grew while removing an entry")
	}
	if newExtents < vd.PathTableNumExtents {
		vd.RemoveFromSpaceSize(4 * uint32(vd.LogBlockSize))
		vd.PathTableNumExtents -= 2
	}

	vd.PathTableRecords = append(vd.PathTableRecords[:idx], vd.PathTableRecords[idx+1:]...)
	return nil
}

// UpdatePTRExtentLocations refreshes every path table record's extent from
// its linked directory record; called after each extent reshuffle.
func (vd *VolumeDescriptor) UpdatePTRExtentLocations() {
	for _, ptr := range vd.PathTableRecords {
		ptr.UpdateExtentLocation()
	}
}

// MarshalPathTable serializes one endianness of the path table, padded to
// whole path-table units.
func (vd *VolumeDescriptor) MarshalPathTable(littleEndian bool) []byte {
	var buf bytes.Buffer
	for _, ptr := range vd.PathTableRecords {
		if littleEndian {
			buf.Write(ptr.RecordLittleEndian())
		} else {
			buf.Write(ptr.RecordBigEndian())
		}
	}
	pad := encoding.PadLen(int64(buf.Len()), consts.ISO9660_PATH_TABLE_UNIT)
	buf.Write(make([]byte, pad))
	return buf.Bytes()
}
