package eltorito

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/iso-forge/pkg/descriptor"
	"github.com/bgrewell/iso-forge/pkg/directory"
)

// EntrySize is the size of every boot catalog slot.
const EntrySize = 32

// Platform identifies the target booting system.
type Platform uint8

const (
	PlatformX86 Platform = 0x0
	PlatformPPC Platform = 0x1
	PlatformMac Platform = 0x2
)

// Media is the boot media emulation type.
type Media uint8

const (
	MediaNoEmulation Media = 0x0
	MediaFloppy12    Media = 0x1
	MediaFloppy144   Media = 0x2
	MediaFloppy288   Media = 0x3
	MediaHardDisk    Media = 0x4
)

// Boot indicator values for initial and section entries.
const (
	BootIndicatorBootable    = 0x88
	BootIndicatorNotBootable = 0x00
)

// Section header indicator values.
const (
	headerIndicatorMore = 0x90
	headerIndicatorLast = 0x91
)

// checksum computes the 16-bit little-endian word sum of a 32-byte entry.
// The carry is discarded on overflow, not folded back in.
func checksum(data []byte) uint16 {
	var s uint16
	for i := 0; i+1 < len(data); i += 2 {
		s += binary.LittleEndian.Uint16(data[i : i+2])
	}
	return s
}

// ValidationEntry is the 32-byte entry that leads every boot catalog. Its
// checksum field is chosen so the whole entry sums to zero modulo 2^16, and
// the final key bytes are 0x55 0xAA.
type ValidationEntry struct {
	PlatformID Platform
	IDString   [24]byte
	Checksum   uint16
}

// ParseValidationEntry parses and verifies a validation entry.
func ParseValidationEntry(data []byte) (*ValidationEntry, error) {
	if len(data) < EntrySize {
		return nil, fmt.Errorf("validation entry truncated")
	}
	if data[0] != 0x01 {
		return nil, fmt.Errorf("validation entry header ID is not 1")
	}
	v := &ValidationEntry{
		PlatformID: Platform(data[1]),
		Checksum:   binary.LittleEndian.Uint16(data[28:30]),
	}
	if v.PlatformID > PlatformMac {
		return nil, fmt.Errorf("validation entry platform ID %d not valid", data[1])
	}
	copy(v.IDString[:], data[4:28])
	if data[30] != 0x55 || data[31] != 0xaa {
		return nil, fmt.Errorf("validation entry key bytes not 0x55 0xAA")
	}
	if checksum(data[:EntrySize]) != 0 {
		return nil, fmt.Errorf("validation entry checksum not correct")
	}
	return v, nil
}

// NewValidationEntry creates a validation entry with a correct checksum.
func NewValidationEntry() *ValidationEntry {
	v := &ValidationEntry{}
	v.Checksum = -checksum(v.record())
	return v
}

func (v *ValidationEntry) record() []byte {
	out := make([]byte, EntrySize)
	out[0] = 0x01
	out[1] = byte(v.PlatformID)
	copy(out[4:28], v.IDString[:])
	binary.LittleEndian.PutUint16(out[28:30], v.Checksum)
	out[30] = 0x55
	out[31] = 0xaa
	return out
}

// Record returns the 32-byte on-disk form.
func (v *ValidationEntry) Record() []byte {
	return v.record()
}

// InitialEntry is the required initial/default boot entry.
type InitialEntry struct {
	BootIndicator uint8
	BootMediaType Media
	LoadSegment   uint16
	SystemType    uint8
	SectorCount   uint16
	LoadRBA       uint32
}

// ParseInitialEntry parses an initial entry. The specification wants the
// trailing unused bytes zero, but media in the wild disagree, so only the
// leading unused byte is enforced.
func ParseInitialEntry(data []byte) (*InitialEntry, error) {
	if len(data) < EntrySize {
		return nil, fmt.Errorf("initial entry truncated")
	}
	e := &InitialEntry{
		BootIndicator: data[0],
		BootMediaType: Media(data[1]),
		LoadSegment:   binary.LittleEndian.Uint16(data[2:4]),
		SystemType:    data[4],
		SectorCount:   binary.LittleEndian.Uint16(data[6:8]),
		LoadRBA:       binary.LittleEndian.Uint32(data[8:12]),
	}
	if e.BootIndicator != BootIndicatorBootable && e.BootIndicator != BootIndicatorNotBootable {
		return nil, fmt.Errorf("invalid initial entry boot indicator 0x%x", e.BootIndicator)
	}
	if e.BootMediaType > MediaHardDisk {
		return nil, fmt.Errorf("invalid boot media type %d", e.BootMediaType)
	}
	if data[5] != 0 {
		return nil, fmt.Errorf("initial entry unused field must be 0")
	}
	return e, nil
}

// NewInitialEntry creates a bootable no-emulation initial entry; the load
// RBA is assigned by the allocator.
func NewInitialEntry(sectorCount uint16) *InitialEntry {
	return &InitialEntry{
		BootIndicator: BootIndicatorBootable,
		BootMediaType: MediaNoEmulation,
		SectorCount:   sectorCount,
	}
}

// SetRBA updates the load RBA; called from the allocator once the boot
// file's extent is known.
func (e *InitialEntry) SetRBA(rba uint32) {
	e.LoadRBA = rba
}

// Record returns the 32-byte on-disk form.
func (e *InitialEntry) Record() []byte {
	out := make([]byte, EntrySize)
	out[0] = e.BootIndicator
	out[1] = byte(e.BootMediaType)
	binary.LittleEndian.PutUint16(out[2:4], e.LoadSegment)
	out[4] = e.SystemType
	binary.LittleEndian.PutUint16(out[6:8], e.SectorCount)
	binary.LittleEndian.PutUint32(out[8:12], e.LoadRBA)
	return out
}

// SectionHeader groups section entries; indicator 0x91 marks the last
// header in the catalog.
type SectionHeader struct {
	HeaderIndicator   uint8
	PlatformID        Platform
	NumSectionEntries uint16
	IDString          [28]byte
}

// ParseSectionHeader parses a section header.
func ParseSectionHeader(data []byte) (*SectionHeader, error) {
	if len(data) < EntrySize {
		return nil, fmt.Errorf("section header truncated")
	}
	h := &SectionHeader{
		HeaderIndicator:   data[0],
		PlatformID:        Platform(data[1]),
		NumSectionEntries: binary.LittleEndian.Uint16(data[2:4]),
	}
	copy(h.IDString[:], data[4:32])
	return h, nil
}

// Record returns the 32-byte on-disk form.
func (h *SectionHeader) Record() []byte {
	out := make([]byte, EntrySize)
	out[0] = h.HeaderIndicator
	out[1] = byte(h.PlatformID)
	binary.LittleEndian.PutUint16(out[2:4], h.NumSectionEntries)
	copy(out[4:32], h.IDString[:])
	return out
}

// SectionEntry is one bootable entry beyond the initial one. Extended
// selection criteria continue into 0x44 extension slots.
type SectionEntry struct {
	BootIndicator         uint8
	BootMediaType         Media
	LoadSegment           uint16
	SystemType            uint8
	SectorCount           uint16
	LoadRBA               uint32
	SelectionCriteriaType uint8
	SelectionCriteria     []byte
}

// ParseSectionEntry parses a section entry.
func ParseSectionEntry(data []byte) (*SectionEntry, error) {
	if len(data) < EntrySize {
		return nil, fmt.Errorf("section entry truncated")
	}
	e := &SectionEntry{
		BootIndicator:         data[0],
		BootMediaType:         Media(data[1]),
		LoadSegment:           binary.LittleEndian.Uint16(data[2:4]),
		SystemType:            data[4],
		SectorCount:           binary.LittleEndian.Uint16(data[6:8]),
		LoadRBA:               binary.LittleEndian.Uint32(data[8:12]),
		SelectionCriteriaType: data[12],
	}
	if data[5] != 0 {
		return nil, fmt.Errorf("section entry unused field must be 0")
	}
	e.SelectionCriteria = append(e.SelectionCriteria, data[13:32]...)
	return e, nil
}

// ExtendSelectionCriteria appends the payload of a 0x44 extension slot.
func (e *SectionEntry) ExtendSelectionCriteria(data []byte) {
	e.SelectionCriteria = append(e.SelectionCriteria, data[2:]...)
}

// Record returns the 32-byte on-disk form (extensions are not re-split).
func (e *SectionEntry) Record() []byte {
	out := make([]byte, EntrySize)
	out[0] = e.BootIndicator
	out[1] = byte(e.BootMediaType)
	binary.LittleEndian.PutUint16(out[2:4], e.LoadSegment)
	out[4] = e.SystemType
	binary.LittleEndian.PutUint16(out[6:8], e.SectorCount)
	binary.LittleEndian.PutUint32(out[8:12], e.LoadRBA)
	out[12] = e.SelectionCriteriaType
	copy(out[13:32], e.SelectionCriteria)
	return out
}

// Boot catalog parser states.
const (
	expectingValidationEntry = iota
	expectingInitialEntry
	expectingSectionHeaderOrDone
	expectingSectionEntry
)

// BootCatalog is the El Torito boot catalog: a validation entry, an initial
// entry, and zero or more section headers with their entries. On the image
// it occupies one logical block presented as a fake file; the directory
// records for the catalog and for the initial entry's boot file are bound
// here so the allocator can keep the cross-references consistent.
type BootCatalog struct {
	BR         *descriptor.BootRecord
	Validation *ValidationEntry
	Initial    *InitialEntry
	Sections   []*SectionHeader
	Entries    []*SectionEntry

	// DirRecord is the fake file serving the catalog; InitialEntryDirRecord
	// is the boot file the initial entry points at.
	DirRecord             *directory.Record
	InitialEntryDirRecord *directory.Record

	state int
}

// NewBootCatalogForParsing starts an empty catalog associated with its boot
// record; feed it 32-byte slots with ParseSlot until it reports done.
func NewBootCatalogForParsing(br *descriptor.BootRecord) *BootCatalog {
	return &BootCatalog{BR: br, state: expectingValidationEntry}
}

// ParseSlot consumes one sequential 32-byte catalog slot and returns true
// once the catalog is complete.
func (bc *BootCatalog) ParseSlot(data []byte) (bool, error) {
	if len(data) < EntrySize {
		return false, fmt.Errorf("boot catalog slot truncated")
	}

	switch bc.state {
	case expectingValidationEntry:
		v, err := ParseValidationEntry(data)
		if err != nil {
			return false, err
		}
		bc.Validation = v
		bc.state = expectingInitialEntry
	case expectingInitialEntry:
		e, err := ParseInitialEntry(data)
		if err != nil {
			return false, err
		}
		bc.Initial = e
		bc.state = expectingSectionHeaderOrDone
	default:
		switch data[0] {
		case 0x00:
			// An empty slot ends the catalog.
			return true, nil
		case headerIndicatorMore, headerIndicatorLast:
			h, err := ParseSectionHeader(data)
			if err != nil {
				return false, err
			}
			bc.Sections = append(bc.Sections, h)
			if data[0] == headerIndicatorLast {
				bc.state = expectingSectionEntry
			}
		case BootIndicatorBootable:
			e, err := ParseSectionEntry(data)
			if err != nil {
				return false, err
			}
			bc.Entries = append(bc.Entries, e)
		case 0x44:
			if len(bc.Entries) == 0 {
				return false, fmt.Errorf("section entry extension without a section entry")
			}
			bc.Entries[len(bc.Entries)-1].ExtendSelectionCriteria(data)
		default:
			return false, fmt.Errorf("invalid boot catalog entry 0x%x", data[0])
		}
	}
	return false, nil
}

// NewBootCatalog creates a catalog with a fresh validation entry and a
// bootable initial entry of the given sector count.
func NewBootCatalog(br *descriptor.BootRecord, sectorCount uint16) *BootCatalog {
	return &BootCatalog{
		BR:         br,
		Validation: NewValidationEntry(),
		Initial:    NewInitialEntry(sectorCount),
	}
}

// Record serializes the validation and initial entries; this is the content
// of the catalog's fake file.
func (bc *BootCatalog) Record() []byte {
	out := append([]byte{}, bc.Validation.Record()...)
	return append(out, bc.Initial.Record()...)
}

// UpdateInitialEntryLocation points the initial entry at a new extent.
func (bc *BootCatalog) UpdateInitialEntryLocation(rba uint32) {
	bc.Initial.SetRBA(rba)
}

// SetDirRecord binds the fake file serving this catalog. The association is
// not in the El Torito specification, but every known implementation makes
// it.
func (bc *BootCatalog) SetDirRecord(rec *directory.Record) {
	bc.DirRecord = rec
}

// SetInitialEntryDirRecord binds the boot file the initial entry points at.
func (bc *BootCatalog) SetInitialEntryDirRecord(rec *directory.Record) {
	bc.InitialEntryDirRecord = rec
}

// ExtentLocation is the catalog's extent, read from the owning boot
// record's boot system use field.
func (bc *BootCatalog) ExtentLocation() uint32 {
	return binary.LittleEndian.Uint32(bc.BR.BootSystemUse[:4])
}
