package susp

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/bgrewell/iso-forge/pkg/encoding"
)

// SystemUseEntryType is the two-letter tag that starts every SUSP entry.
type SystemUseEntryType string

const (
	SHARING_PROTOCOL_INDICATOR SystemUseEntryType = "SP"
	ROCK_RIDGE_SIGNATURE       SystemUseEntryType = "RR"
	CONTINUATION_AREA          SystemUseEntryType = "CE"
	POSIX_FILE_ATTRIBUTES      SystemUseEntryType = "PX"
	EXTENSION_REFERENCE        SystemUseEntryType = "ER"
	EXTENSION_SELECTOR         SystemUseEntryType = "ES"
	POSIX_DEVICE_NUMBER        SystemUseEntryType = "PN"
	SYMBOLIC_LINK              SystemUseEntryType = "SL"
	ALTERNATE_NAME             SystemUseEntryType = "NM"
	CHILD_LINK                 SystemUseEntryType = "CL"
	PARENT_LINK                SystemUseEntryType = "PL"
	RELOCATED_DIR              SystemUseEntryType = "RE"
	TIME_STAMPS                SystemUseEntryType = "TF"
	SPARSE_FILE                SystemUseEntryType = "SF"
	PADDING_FIELD              SystemUseEntryType = "PD"
	AREA_TERMINATOR            SystemUseEntryType = "ST"
)

// SU_ENTRY_VERSION is the System Use Entry Version; always 1.
const SU_ENTRY_VERSION = 1

// ALLOWED_DR_SIZE is how large a directory record may grow before Rock Ridge
// fields spill into a continuation area.
const ALLOWED_DR_SIZE = 254

// TF_FLAGS_DEFAULT selects access, modification and attribute-change stamps,
// which is what gets recorded on newly created entries.
const TF_FLAGS_DEFAULT = 0x0e

// IsSUSPTag reports whether data begins with a known SUSP entry tag. The
// directory record parser peeks at the system use area with this to decide
// whether Rock Ridge parsing should be attempted.
func IsSUSPTag(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	switch SystemUseEntryType(data[:2]) {
	case SHARING_PROTOCOL_INDICATOR, ROCK_RIDGE_SIGNATURE, CONTINUATION_AREA,
		POSIX_FILE_ATTRIBUTES, EXTENSION_REFERENCE, EXTENSION_SELECTOR,
		POSIX_DEVICE_NUMBER, SYMBOLIC_LINK, ALTERNATE_NAME, CHILD_LINK,
		PARENT_LINK, RELOCATED_DIR, TIME_STAMPS, SPARSE_FILE:
		return true
	}
	return false
}

// SPRecord is a Sharing Protocol record. It indicates that SUSP is in use and
// how many bytes to skip prior to parsing Rock Ridge out of each directory
// record. Only valid as the first entry of the root's first directory record.
type SPRecord struct {
	BytesToSkip uint8
}

const SPRecordLength = 7

func (r *SPRecord) Parse(data []byte) error {
	if len(data) < SPRecordLength {
		return fmt.Errorf("SP record truncated")
	}
	if data[2] != SPRecordLength {
		return fmt.Errorf("invalid length on SP record")
	}
	if data[4] != 0xbe || data[5] != 0xef {
		return fmt.Errorf("invalid check bytes on SP record")
	}
	r.BytesToSkip = data[6]
	return nil
}

func (r *SPRecord) Record() []byte {
	return []byte{'S', 'P', SPRecordLength, SU_ENTRY_VERSION, 0xbe, 0xef, r.BytesToSkip}
}

// RRRecord is the Rock Ridge 1.09 signature record: a bitmap of which other
// fields are recorded for this directory record.
type RRRecord struct {
	Flags uint8
}

const RRRecordLength = 5

var rrFieldBits = map[SystemUseEntryType]uint8{
	POSIX_FILE_ATTRIBUTES: 1 << 0,
	POSIX_DEVICE_NUMBER:   1 << 1,
	SYMBOLIC_LINK:         1 << 2,
	ALTERNATE_NAME:        1 << 3,
	CHILD_LINK:            1 << 4,
	PARENT_LINK:           1 << 5,
	RELOCATED_DIR:         1 << 6,
	TIME_STAMPS:           1 << 7,
}

func (r *RRRecord) Parse(data []byte) error {
	if len(data) < RRRecordLength {
		return fmt.Errorf("RR record truncated")
	}
	if data[2] != RRRecordLength {
		return fmt.Errorf("invalid length on RR record")
	}
	r.Flags = data[4]
	return nil
}

// AppendField marks a field type as present in this directory record.
func (r *RRRecord) AppendField(field SystemUseEntryType) {
	if bit, ok := rrFieldBits[field]; ok {
		r.Flags |= bit
	}
}

func (r *RRRecord) Record() []byte {
	return []byte{'R', 'R', RRRecordLength, SU_ENTRY_VERSION, r.Flags}
}

// CERecord points at a continuation area holding the fields that did not fit
// into the directory record. All three values are dual-endian on disk.
type CERecord struct {
	Continuation *Continuation
}

const CERecordLength = 28

func (r *CERecord) Parse(data []byte) error {
	if len(data) < CERecordLength {
		return fmt.Errorf("CE record truncated")
	}
	if data[2] != CERecordLength {
		return fmt.Errorf("invalid length on CE record")
	}
	block, err := encoding.UnmarshalUint32LSBMSB(data[4:12])
	if err != nil {
		return fmt.Errorf("CE block location: %w", err)
	}
	offset, err := encoding.UnmarshalUint32LSBMSB(data[12:20])
	if err != nil {
		return fmt.Errorf("CE offset: %w", err)
	}
	length, err := encoding.UnmarshalUint32LSBMSB(data[20:28])
	if err != nil {
		return fmt.Errorf("CE length: %w", err)
	}
	r.Continuation = &Continuation{
		origExtent: block,
		Offset:     offset,
		Length:     length,
	}
	return nil
}

func (r *CERecord) Record() []byte {
	out := make([]byte, 0, CERecordLength)
	out = append(out, 'C', 'E', CERecordLength, SU_ENTRY_VERSION)
	loc := encoding.MarshalBothByteOrders32(r.Continuation.ExtentLocation())
	off := encoding.MarshalBothByteOrders32(r.Continuation.Offset)
	length := encoding.MarshalBothByteOrders32(r.Continuation.Length)
	out = append(out, loc[:]...)
	out = append(out, off[:]...)
	return append(out, length[:]...)
}

// PXRecord carries the POSIX file attributes: mode, link count, uid and gid,
// plus a serial number in the Rock Ridge 1.12 form. The length is 36 bytes
// for 1.09 and 44 for 1.12; whichever length was parsed is re-recorded.
type PXRecord struct {
	FileMode     uint32
	FileLinks    uint32
	UserID       uint32
	GroupID      uint32
	SerialNumber uint32
	hasSerial    bool
}

// Creation defaults, from the reference mastering tools.
const (
	PXModeDirectory = 0o40555
	PXModeSymlink   = 0o120555
	PXModeRegular   = 0o100444
)

func PXRecordLength(hasSerial bool) int {
	if hasSerial {
		return 44
	}
	return 36
}

// NewPXRecord builds the POSIX attributes for a newly created entry.
func NewPXRecord(isDir bool, isSymlink bool) *PXRecord {
	mode := uint32(PXModeRegular)
	if isDir {
		mode = PXModeDirectory
	} else if isSymlink {
		mode = PXModeSymlink
	}
	return &PXRecord{FileMode: mode, FileLinks: 1}
}

func (r *PXRecord) Parse(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("PX record truncated")
	}
	suLen := int(data[2])
	if suLen != 36 && suLen != 44 {
		return fmt.Errorf("invalid length %d on PX record", suLen)
	}
	if len(data) < suLen {
		return fmt.Errorf("PX record truncated")
	}
	var err error
	if r.FileMode, err = encoding.UnmarshalUint32LSBMSB(data[4:12]); err != nil {
		return fmt.Errorf("PX file mode: %w", err)
	}
	if r.FileLinks, err = encoding.UnmarshalUint32LSBMSB(data[12:20]); err != nil {
		return fmt.Errorf("PX file links: %w", err)
	}
	if r.UserID, err = encoding.UnmarshalUint32LSBMSB(data[20:28]); err != nil {
		return fmt.Errorf("PX user id: %w", err)
	}
	if r.GroupID, err = encoding.UnmarshalUint32LSBMSB(data[28:36]); err != nil {
		return fmt.Errorf("PX group id: %w", err)
	}
	if suLen == 44 {
		r.hasSerial = true
		// Serial numbers with disagreeing halves exist in the wild; take the
		// little-endian value.
		r.SerialNumber = binary.LittleEndian.Uint32(data[36:40])
	}
	return nil
}

func (r *PXRecord) Record() []byte {
	out := make([]byte, 0, PXRecordLength(r.hasSerial))
	out = append(out, 'P', 'X', byte(PXRecordLength(r.hasSerial)), SU_ENTRY_VERSION)
	for _, v := range []uint32{r.FileMode, r.FileLinks, r.UserID, r.GroupID} {
		both := encoding.MarshalBothByteOrders32(v)
		out = append(out, both[:]...)
	}
	if r.hasSerial {
		both := encoding.MarshalBothByteOrders32(r.SerialNumber)
		out = append(out, both[:]...)
	}
	return out
}

// ERRecord identifies the extension specification in force; recorded once on
// the root directory's first directory record.
type ERRecord struct {
	ExtID         string
	ExtDescriptor string
	ExtSource     string
}

func ERRecordLength(id, des, src string) int {
	return 8 + len(id) + len(des) + len(src)
}

func (r *ERRecord) Parse(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("ER record truncated")
	}
	lenID, lenDes, lenSrc := int(data[4]), int(data[5]), int(data[6])
	if len(data) < 8+lenID+lenDes+lenSrc {
		return fmt.Errorf("ER record truncated")
	}
	offset := 8
	r.ExtID = string(data[offset : offset+lenID])
	offset += lenID
	r.ExtDescriptor = string(data[offset : offset+lenDes])
	offset += lenDes
	r.ExtSource = string(data[offset : offset+lenSrc])
	return nil
}

func (r *ERRecord) Record() []byte {
	out := make([]byte, 0, ERRecordLength(r.ExtID, r.ExtDescriptor, r.ExtSource))
	out = append(out, 'E', 'R',
		byte(ERRecordLength(r.ExtID, r.ExtDescriptor, r.ExtSource)), SU_ENTRY_VERSION,
		byte(len(r.ExtID)), byte(len(r.ExtDescriptor)), byte(len(r.ExtSource)), 1)
	out = append(out, r.ExtID...)
	out = append(out, r.ExtDescriptor...)
	return append(out, r.ExtSource...)
}

// ESRecord selects an extension sequence; parsed but never created.
type ESRecord struct {
	ExtensionSequence uint8
}

const ESRecordLength = 5

func (r *ESRecord) Parse(data []byte) error {
	if len(data) < ESRecordLength {
		return fmt.Errorf("ES record truncated")
	}
	if data[2] != ESRecordLength {
		return fmt.Errorf("invalid length on ES record")
	}
	r.ExtensionSequence = data[4]
	return nil
}

func (r *ESRecord) Record() []byte {
	return []byte{'E', 'S', ESRecordLength, SU_ENTRY_VERSION, r.ExtensionSequence}
}

// PNRecord carries the POSIX device number for block/character specials.
type PNRecord struct {
	DevTHigh uint32
	DevTLow  uint32
}

const PNRecordLength = 20

func (r *PNRecord) Parse(data []byte) error {
	if len(data) < PNRecordLength {
		return fmt.Errorf("PN record truncated")
	}
	if data[2] != PNRecordLength {
		return fmt.Errorf("invalid length on PN record")
	}
	var err error
	if r.DevTHigh, err = encoding.UnmarshalUint32LSBMSB(data[4:12]); err != nil {
		return fmt.Errorf("PN dev_t high: %w", err)
	}
	if r.DevTLow, err = encoding.UnmarshalUint32LSBMSB(data[12:20]); err != nil {
		return fmt.Errorf("PN dev_t low: %w", err)
	}
	return nil
}

func (r *PNRecord) Record() []byte {
	out := make([]byte, 0, PNRecordLength)
	out = append(out, 'P', 'N', PNRecordLength, SU_ENTRY_VERSION)
	high := encoding.MarshalBothByteOrders32(r.DevTHigh)
	low := encoding.MarshalBothByteOrders32(r.DevTLow)
	out = append(out, high[:]...)
	return append(out, low[:]...)
}

// SLRecord holds some or all of a symbolic link target. Each path component
// is a separate component entry; CURRENT, PARENT and ROOT components are
// encoded by flag bits with zero length. A record must fit in 255 bytes, so
// long targets chain across multiple SL records.
type SLRecord struct {
	Flags      uint8
	Components []string
}

// Component flag bits.
const (
	SLFlagContinue = 1 << 0
	SLFlagCurrent  = 1 << 1
	SLFlagParent   = 1 << 2
	SLFlagRoot     = 1 << 3
)

func (r *SLRecord) Parse(data []byte) error {
	if len(data) < 5 {
		return fmt.Errorf("SL record truncated")
	}
	suLen := int(data[2])
	if len(data) < suLen {
		return fmt.Errorf("SL record truncated")
	}
	r.Flags = data[4]

	offset := 5
	name := ""
	for offset < suLen {
		if offset+2 > suLen {
			return fmt.Errorf("SL component entry truncated")
		}
		crFlags := data[offset]
		lenCP := int(data[offset+1])
		offset += 2

		switch crFlags {
		case 0, SLFlagContinue, SLFlagCurrent, SLFlagParent, SLFlagRoot:
		default:
			return fmt.Errorf("invalid symlink component flags 0x%x", crFlags)
		}
		if crFlags&(SLFlagCurrent|SLFlagParent|SLFlagRoot) != 0 {
			if lenCP != 0 {
				return fmt.Errorf("symlink dot, dotdot and root components must have zero length")
			}
			if name != "" {
				return fmt.Errorf("symlink component cannot both continue and be dot, dotdot or root")
			}
		}

		switch {
		case crFlags&SLFlagCurrent != 0:
			name += "."
		case crFlags&SLFlagParent != 0:
			name += ".."
		case crFlags&SLFlagRoot != 0:
			name += "/"
		default:
			if offset+lenCP > suLen {
				return fmt.Errorf("SL component entry truncated")
			}
			name += string(data[offset : offset+lenCP])
		}

		if crFlags&SLFlagContinue == 0 {
			r.Components = append(r.Components, name)
			name = ""
		}
		offset += lenCP
	}
	return nil
}

// AddComponent appends one path component; the record must stay under 255
// bytes.
func (r *SLRecord) AddComponent(comp string) error {
	if r.CurrentLength()+2+len(comp) > 255 {
		return fmt.Errorf("symlink record would be longer than 255 bytes")
	}
	r.Components = append(r.Components, comp)
	return nil
}

// CurrentLength is the on-disk size of this record as currently populated.
func (r *SLRecord) CurrentLength() int {
	return SLRecordLength(r.Components)
}

// ComponentLength is the encoded size of a single component entry.
func ComponentLength(comp string) int {
	if comp == "." || comp == ".." || comp == "/" {
		return 2
	}
	return 2 + len(comp)
}

// SLRecordLength is the encoded size of a record holding the components.
func SLRecordLength(components []string) int {
	length := 5
	for _, comp := range components {
		length += ComponentLength(comp)
	}
	return length
}

// Target renders the components back into a path fragment.
func (r *SLRecord) Target() string {
	out := ""
	for _, comp := range r.Components {
		out += comp
		if comp != "/" {
			out += "/"
		}
	}
	if len(out) > 0 && out[len(out)-1] == '/' {
		out = out[:len(out)-1]
	}
	return out
}

func (r *SLRecord) Record() []byte {
	out := make([]byte, 0, r.CurrentLength())
	out = append(out, 'S', 'L', byte(SLRecordLength(r.Components)), SU_ENTRY_VERSION, r.Flags)
	for _, comp := range r.Components {
		switch comp {
		case ".":
			out = append(out, SLFlagCurrent, 0)
		case "..":
			out = append(out, SLFlagParent, 0)
		case "/":
			out = append(out, SLFlagRoot, 0)
		default:
			out = append(out, 0, byte(len(comp)))
			out = append(out, comp...)
		}
	}
	return out
}

// NMRecord carries the alternate (POSIX) name. Long names split across a
// local NM and a continuation NM, chained with the CONTINUE flag.
type NMRecord struct {
	Flags uint8
	Name  string
}

const (
	NMFlagContinue = 1 << 0
	NMFlagCurrent  = 1 << 1
	NMFlagParent   = 1 << 2
)

func NMRecordLength(name string) int {
	return 5 + len(name)
}

func (r *NMRecord) Parse(data []byte) error {
	if len(data) < 5 {
		return fmt.Errorf("NM record truncated")
	}
	suLen := int(data[2])
	if len(data) < suLen {
		return fmt.Errorf("NM record truncated")
	}
	r.Flags = data[4]
	if r.Flags&0x7 != 0 && r.Flags&0x7 != NMFlagContinue &&
		r.Flags&0x7 != NMFlagCurrent && r.Flags&0x7 != NMFlagParent {
		return fmt.Errorf("invalid NM record flags 0x%x", r.Flags)
	}
	nameLen := suLen - 5
	if nameLen != 0 {
		// CURRENT, PARENT and the historical host-name bit forbid a payload.
		if r.Flags&(NMFlagCurrent|NMFlagParent|1<<5) != 0 {
			return fmt.Errorf("invalid name in NM record (flags 0x%x, length %d)", r.Flags, nameLen)
		}
		r.Name = string(data[5:suLen])
	}
	return nil
}

// SetContinued marks the name as continuing into the next NM record.
func (r *NMRecord) SetContinued() {
	r.Flags |= NMFlagContinue
}

func (r *NMRecord) Record() []byte {
	out := make([]byte, 0, NMRecordLength(r.Name))
	out = append(out, 'N', 'M', byte(NMRecordLength(r.Name)), SU_ENTRY_VERSION, r.Flags)
	return append(out, r.Name...)
}

// CLRecord is a child link: the logical block of a relocated directory.
// Creation leaves the block number at zero; deep relocation is not produced.
type CLRecord struct {
	ChildLogBlockNum uint32
}

const CLRecordLength = 12

func (r *CLRecord) Parse(data []byte) error {
	if len(data) < CLRecordLength {
		return fmt.Errorf("CL record truncated")
	}
	if data[2] != CLRecordLength {
		return fmt.Errorf("invalid length on CL record")
	}
	num, err := encoding.UnmarshalUint32LSBMSB(data[4:12])
	if err != nil {
		return fmt.Errorf("CL block number: %w", err)
	}
	r.ChildLogBlockNum = num
	return nil
}

func (r *CLRecord) Record() []byte {
	out := make([]byte, 0, CLRecordLength)
	out = append(out, 'C', 'L', CLRecordLength, SU_ENTRY_VERSION)
	both := encoding.MarshalBothByteOrders32(r.ChildLogBlockNum)
	return append(out, both[:]...)
}

// PLRecord is a parent link: the logical block a relocated directory came
// from.
type PLRecord struct {
	ParentLogBlockNum uint32
}

const PLRecordLength = 12

func (r *PLRecord) Parse(data []byte) error {
	if len(data) < PLRecordLength {
		return fmt.Errorf("PL record truncated")
	}
	if data[2] != PLRecordLength {
		return fmt.Errorf("invalid length on PL record")
	}
	num, err := encoding.UnmarshalUint32LSBMSB(data[4:12])
	if err != nil {
		return fmt.Errorf("PL block number: %w", err)
	}
	r.ParentLogBlockNum = num
	return nil
}

func (r *PLRecord) Record() []byte {
	out := make([]byte, 0, PLRecordLength)
	out = append(out, 'P', 'L', PLRecordLength, SU_ENTRY_VERSION)
	both := encoding.MarshalBothByteOrders32(r.ParentLogBlockNum)
	return append(out, both[:]...)
}

// RERecord marks a directory as relocated.
type RERecord struct{}

const RERecordLength = 4

func (r *RERecord) Parse(data []byte) error {
	if len(data) < RERecordLength {
		return fmt.Errorf("RE record truncated")
	}
	if data[2] != RERecordLength {
		return fmt.Errorf("invalid length on RE record")
	}
	return nil
}

func (r *RERecord) Record() []byte {
	return []byte{'R', 'E', RERecordLength, SU_ENTRY_VERSION}
}

// TFRecord carries up to seven timestamps selected by a flag bitfield; bit 7
// selects the long (17-byte) stamp form over the short (7-byte) form.
type TFRecord struct {
	TimeFlags uint8
	Short     []encoding.RecordingTimestamp
	Long      []encoding.VolumeDescriptorDate
}

const TFFlagLongForm = 1 << 7

func TFRecordLength(timeFlags uint8) int {
	each := 7
	if timeFlags&TFFlagLongForm != 0 {
		each = 17
	}
	count := 0
	for i := 0; i < 7; i++ {
		if timeFlags&(1<<i) != 0 {
			count++
		}
	}
	return 5 + each*count
}

// NewTFRecord stamps the current time for every timestamp the flags select.
func NewTFRecord(timeFlags uint8) *TFRecord {
	r := &TFRecord{TimeFlags: timeFlags}
	now := time.Now()
	for i := 0; i < 7; i++ {
		if timeFlags&(1<<i) == 0 {
			continue
		}
		if timeFlags&TFFlagLongForm != 0 {
			r.Long = append(r.Long, encoding.NewVolumeDescriptorDate(now))
		} else {
			r.Short = append(r.Short, encoding.NewRecordingTimestamp(now))
		}
	}
	return r
}

func (r *TFRecord) Parse(data []byte) error {
	if len(data) < 5 {
		return fmt.Errorf("TF record truncated")
	}
	suLen := int(data[2])
	if len(data) < suLen {
		return fmt.Errorf("TF record truncated")
	}
	r.TimeFlags = data[4]
	if suLen != TFRecordLength(r.TimeFlags) {
		return fmt.Errorf("TF record length %d does not match flags 0x%x", suLen, r.TimeFlags)
	}

	offset := 5
	for i := 0; i < 7; i++ {
		if r.TimeFlags&(1<<i) == 0 {
			continue
		}
		if r.TimeFlags&TFFlagLongForm != 0 {
			d, err := encoding.ParseVolumeDescriptorDate(data[offset : offset+17])
			if err != nil {
				return fmt.Errorf("TF timestamp: %w", err)
			}
			r.Long = append(r.Long, d)
			offset += 17
		} else {
			ts, err := encoding.ParseRecordingTimestamp(data[offset : offset+7])
			if err != nil {
				return fmt.Errorf("TF timestamp: %w", err)
			}
			r.Short = append(r.Short, ts)
			offset += 7
		}
	}
	return nil
}

func (r *TFRecord) Record() []byte {
	out := make([]byte, 0, TFRecordLength(r.TimeFlags))
	out = append(out, 'T', 'F', byte(TFRecordLength(r.TimeFlags)), SU_ENTRY_VERSION, r.TimeFlags)
	if r.TimeFlags&TFFlagLongForm != 0 {
		for _, d := range r.Long {
			rec := d.Record()
			out = append(out, rec[:]...)
		}
	} else {
		for _, ts := range r.Short {
			rec := ts.Record()
			out = append(out, rec[:]...)
		}
	}
	return out
}

// SFRecord carries the virtual size of a sparse file; parsed but never
// created.
type SFRecord struct {
	VirtualFileSizeHigh uint32
	VirtualFileSizeLow  uint32
	TableDepth          uint8
}

const SFRecordLength = 21

func (r *SFRecord) Parse(data []byte) error {
	if len(data) < SFRecordLength {
		return fmt.Errorf("SF record truncated")
	}
	if data[2] != SFRecordLength {
		return fmt.Errorf("invalid length on SF record")
	}
	var err error
	if r.VirtualFileSizeHigh, err = encoding.UnmarshalUint32LSBMSB(data[4:12]); err != nil {
		return fmt.Errorf("SF virtual size high: %w", err)
	}
	if r.VirtualFileSizeLow, err = encoding.UnmarshalUint32LSBMSB(data[12:20]); err != nil {
		return fmt.Errorf("SF virtual size low: %w", err)
	}
	r.TableDepth = data[20]
	return nil
}

func (r *SFRecord) Record() []byte {
	out := make([]byte, 0, SFRecordLength)
	out = append(out, 'S', 'F', SFRecordLength, SU_ENTRY_VERSION)
	high := encoding.MarshalBothByteOrders32(r.VirtualFileSizeHigh)
	low := encoding.MarshalBothByteOrders32(r.VirtualFileSizeLow)
	out = append(out, high[:]...)
	out = append(out, low[:]...)
	return append(out, r.TableDepth)
}
