package susp

import (
	"fmt"
	"strings"

	"github.com/bgrewell/iso-forge/pkg/consts"
)

// EntrySet is the collection of SUSP entries recorded for one directory
// record or one continuation area; both hold the same grammar.
type EntrySet struct {
	SP *SPRecord
	RR *RRRecord
	CE *CERecord
	PX *PXRecord
	ER *ERRecord
	ES *ESRecord
	PN *PNRecord
	SL []*SLRecord
	NM *NMRecord
	CL *CLRecord
	PL *PLRecord
	TF *TFRecord
	SF *SFRecord
	RE *RERecord
}

// parse consumes concatenated SUSP entries. A trailing single zero byte is
// permitted padding; any other short tail is an error.
func (e *EntrySet) parse(data []byte, bytesToSkip int, isFirstRecordOfRoot bool) error {
	offset := bytesToSkip
	left := len(data) - bytesToSkip
	for {
		if left <= 0 {
			break
		}
		if left == 1 {
			if data[offset] != 0x00 {
				return fmt.Errorf("invalid pad byte in system use area")
			}
			break
		}
		if left < 4 {
			return fmt.Errorf("not enough bytes left in the system use area")
		}

		tag := SystemUseEntryType(data[offset : offset+2])
		suLen := int(data[offset+2])
		version := data[offset+3]
		if version != SU_ENTRY_VERSION {
			return fmt.Errorf("invalid SUSP entry version %d", version)
		}
		if suLen < 4 || suLen > left {
			return fmt.Errorf("invalid SUSP entry length %d", suLen)
		}
		entry := data[offset : offset+suLen]

		var err error
		switch tag {
		case SHARING_PROTOCOL_INDICATOR:
			if left < SPRecordLength || !isFirstRecordOfRoot {
				return fmt.Errorf("SP record is only valid on the first directory record of root")
			}
			e.SP = &SPRecord{}
			err = e.SP.Parse(entry)
		case ROCK_RIDGE_SIGNATURE:
			e.RR = &RRRecord{}
			err = e.RR.Parse(entry)
		case CONTINUATION_AREA:
			e.CE = &CERecord{}
			err = e.CE.Parse(entry)
		case POSIX_FILE_ATTRIBUTES:
			e.PX = &PXRecord{}
			err = e.PX.Parse(entry)
		case EXTENSION_REFERENCE:
			e.ER = &ERRecord{}
			err = e.ER.Parse(entry)
		case EXTENSION_SELECTOR:
			e.ES = &ESRecord{}
			err = e.ES.Parse(entry)
		case POSIX_DEVICE_NUMBER:
			e.PN = &PNRecord{}
			err = e.PN.Parse(entry)
		case SYMBOLIC_LINK:
			sl := &SLRecord{}
			if err = sl.Parse(entry); err == nil {
				e.SL = append(e.SL, sl)
			}
		case ALTERNATE_NAME:
			e.NM = &NMRecord{}
			err = e.NM.Parse(entry)
		case CHILD_LINK:
			e.CL = &CLRecord{}
			err = e.CL.Parse(entry)
		case PARENT_LINK:
			e.PL = &PLRecord{}
			err = e.PL.Parse(entry)
		case RELOCATED_DIR:
			e.RE = &RERecord{}
			err = e.RE.Parse(entry)
		case TIME_STAMPS:
			e.TF = &TFRecord{}
			err = e.TF.Parse(entry)
		case SPARSE_FILE:
			e.SF = &SFRecord{}
			err = e.SF.Parse(entry)
		case PADDING_FIELD:
			// No work to do.
		case AREA_TERMINATOR:
			if suLen != 4 {
				return fmt.Errorf("invalid length on ST record")
			}
		default:
			return fmt.Errorf("unknown SUSP entry tag %q", string(tag))
		}
		if err != nil {
			return err
		}

		offset += suLen
		left -= suLen
	}
	return nil
}

// record serializes the entries. SP leads (it must be first in the root's
// system use area), CE must come before ER per SUSP, and the rare parse-only
// entries are re-emitted so a parsed image survives a round trip.
func (e *EntrySet) record() []byte {
	var out []byte
	if e.SP != nil {
		out = append(out, e.SP.Record()...)
	}
	if e.RR != nil {
		out = append(out, e.RR.Record()...)
	}
	if e.NM != nil {
		out = append(out, e.NM.Record()...)
	}
	if e.PX != nil {
		out = append(out, e.PX.Record()...)
	}
	for _, sl := range e.SL {
		out = append(out, sl.Record()...)
	}
	if e.TF != nil {
		out = append(out, e.TF.Record()...)
	}
	if e.CL != nil {
		out = append(out, e.CL.Record()...)
	}
	if e.PL != nil {
		out = append(out, e.PL.Record()...)
	}
	if e.RE != nil {
		out = append(out, e.RE.Record()...)
	}
	if e.ES != nil {
		out = append(out, e.ES.Record()...)
	}
	if e.PN != nil {
		out = append(out, e.PN.Record()...)
	}
	if e.SF != nil {
		out = append(out, e.SF.Record()...)
	}
	if e.CE != nil {
		out = append(out, e.CE.Record()...)
	}
	if e.ER != nil {
		out = append(out, e.ER.Record()...)
	}
	return out
}

// Continuation is a continuation area: a byte region inside a logical block
// where overflow Rock Ridge entries live, addressed by (extent, offset,
// length). A freshly parsed continuation keeps its original extent; the
// allocator assigns a new one on reshuffle.
type Continuation struct {
	EntrySet

	origExtent uint32
	newExtent  uint32
	hasNew     bool

	Offset uint32
	Length uint32
}

// ExtentLocation returns the continuation's current extent: the reassigned
// one when the allocator has run, the parsed one otherwise.
func (c *Continuation) ExtentLocation() uint32 {
	if c.hasNew {
		return c.newExtent
	}
	return c.origExtent
}

// SetExtentLocation reassigns the continuation area; used by the allocator.
func (c *Continuation) SetExtentLocation(extent uint32) {
	c.newExtent = extent
	c.hasNew = true
}

// IncrementLength grows the recorded length of this continuation area.
func (c *Continuation) IncrementLength(n int) {
	c.Length += uint32(n)
}

func (c *Continuation) length() int           { return int(c.Length) }
func (c *Continuation) incrementLength(n int) { c.IncrementLength(n) }

// Parse parses the continuation area bytes in place.
func (c *Continuation) Parse(data []byte, bytesToSkip int) error {
	return c.EntrySet.parse(data, bytesToSkip, false)
}

// Record serializes the continuation area contents.
func (c *Continuation) Record() []byte {
	return c.EntrySet.record()
}

// RockRidge is the Rock Ridge bundle attached to a directory record: the
// entries recorded directly in the system use area, plus the continuation
// area reachable through CE when the entries did not fit.
type RockRidge struct {
	EntrySet

	// BytesToSkip is the skip count announced by the root SP record and
	// applied to every subsequent system use area in the image.
	BytesToSkip int
}

// ParseRockRidge parses the system use area of a directory record. The
// continuation area, if any, is parsed separately by the caller once it has
// read the referenced region.
func ParseRockRidge(data []byte, isFirstRecordOfRoot bool, bytesToSkip int) (*RockRidge, error) {
	rr := &RockRidge{BytesToSkip: bytesToSkip}
	if err := rr.EntrySet.parse(data, bytesToSkip, isFirstRecordOfRoot); err != nil {
		return nil, err
	}
	if rr.SP != nil {
		rr.BytesToSkip = int(rr.SP.BytesToSkip)
	}
	return rr, nil
}

// Record serializes the directly recorded entries (not the continuation
// area).
func (rr *RockRidge) Record() []byte {
	return rr.EntrySet.record()
}

// drLen lets the directory record length share the packing interface with a
// continuation area.
type drLen struct {
	n int
}

func (d *drLen) length() int           { return d.n }
func (d *drLen) incrementLength(n int) { d.n += n }

type lengthTracker interface {
	length() int
	incrementLength(int)
}

// NewRockRidge builds the Rock Ridge bundle for a newly created directory
// record. currDRLen is the record length before Rock Ridge; the returned
// value is the record length after the fields that stayed local were added.
// Fields that would push the record past the allowed size move into a
// continuation area reachable through a CE record; NM and SL may split
// between the two.
func NewRockRidge(isFirstRecordOfRoot bool, rrName string, isDir bool, symlinkTarget string, currDRLen int) (*RockRidge, int, error) {
	rr := &RockRidge{}

	// First compute the total this extension would take if everything stayed
	// local; that decides up front whether a continuation entry is needed.
	tmpDRLen := currDRLen
	if isFirstRecordOfRoot {
		tmpDRLen += SPRecordLength
		tmpDRLen += ERRecordLength(consts.ROCK_RIDGE_IDENTIFIER, consts.ROCK_RIDGE_DESCRIPTION, consts.ROCK_RIDGE_SOURCE)
	}
	tmpDRLen += RRRecordLength
	if rrName != "" {
		tmpDRLen += NMRecordLength(rrName)
	}
	tmpDRLen += PXRecordLength(false)
	if symlinkTarget != "" {
		tmpDRLen += SLRecordLength(strings.Split(symlinkTarget, "/"))
	}
	tmpDRLen += TFRecordLength(TF_FLAGS_DEFAULT)

	local := &drLen{n: currDRLen}
	if tmpDRLen > ALLOWED_DR_SIZE {
		rr.CE = &CERecord{Continuation: &Continuation{}}
		local.incrementLength(CERecordLength)
	}

	if isFirstRecordOfRoot {
		sp := &SPRecord{}
		if local.length()+SPRecordLength > ALLOWED_DR_SIZE {
			rr.CE.Continuation.SP = sp
			rr.CE.Continuation.incrementLength(SPRecordLength)
		} else {
			rr.SP = sp
			local.incrementLength(SPRecordLength)
		}
	}

	newRR := &RRRecord{}
	if local.length()+RRRecordLength > ALLOWED_DR_SIZE {
		rr.CE.Continuation.RR = newRR
		rr.CE.Continuation.incrementLength(RRRecordLength)
	} else {
		rr.RR = newRR
		local.incrementLength(RRRecordLength)
	}

	if rrName != "" {
		if local.length()+NMRecordLength(rrName) > ALLOWED_DR_SIZE {
			// The part kept local is the maximum that fits, minus the 5 bytes
			// of NM metadata; the remainder goes to the continuation area.
			lenHere := ALLOWED_DR_SIZE - local.length() - 5
			rr.NM = &NMRecord{Name: rrName[:lenHere]}
			rr.NM.SetContinued()
			local.incrementLength(NMRecordLength(rrName[:lenHere]))

			rr.CE.Continuation.NM = &NMRecord{Name: rrName[lenHere:]}
			rr.CE.Continuation.incrementLength(NMRecordLength(rrName[lenHere:]))
		} else {
			rr.NM = &NMRecord{Name: rrName}
			local.incrementLength(NMRecordLength(rrName))
		}
		newRR.AppendField(ALTERNATE_NAME)
	}

	px := NewPXRecord(isDir, symlinkTarget != "")
	if local.length()+PXRecordLength(false) > ALLOWED_DR_SIZE {
		rr.CE.Continuation.PX = px
		rr.CE.Continuation.incrementLength(PXRecordLength(false))
	} else {
		rr.PX = px
		local.incrementLength(PXRecordLength(false))
	}
	newRR.AppendField(POSIX_FILE_ATTRIBUTES)

	if symlinkTarget != "" {
		currSL := &SLRecord{}
		var meta lengthTracker
		if local.length()+5+2+1 < ALLOWED_DR_SIZE {
			rr.SL = append(rr.SL, currSL)
			meta = local
		} else {
			rr.CE.Continuation.SL = append(rr.CE.Continuation.SL, currSL)
			meta = rr.CE.Continuation
		}
		meta.incrementLength(5)

		for _, comp := range strings.Split(symlinkTarget, "/") {
			switch {
			case currSL.CurrentLength()+2+len(comp) < 255:
				// The whole component fits in this symlink record.
				if err := currSL.AddComponent(comp); err != nil {
					return nil, 0, err
				}
				meta.incrementLength(ComponentLength(comp))
			case currSL.CurrentLength()+2+1 < 255:
				// Part of the component fits; the rest opens a new record in
				// the continuation area.
				lenHere := 255 - currSL.CurrentLength() - 2
				if err := currSL.AddComponent(comp[:lenHere]); err != nil {
					return nil, 0, err
				}
				meta.incrementLength(ComponentLength(comp[:lenHere]))

				currSL = &SLRecord{Components: []string{comp[lenHere:]}}
				rr.CE.Continuation.SL = append(rr.CE.Continuation.SL, currSL)
				meta = rr.CE.Continuation
				meta.incrementLength(5 + ComponentLength(comp[lenHere:]))
			default:
				// Nothing fits; the component starts a fresh record.
				currSL = &SLRecord{Components: []string{comp}}
				rr.CE.Continuation.SL = append(rr.CE.Continuation.SL, currSL)
				meta = rr.CE.Continuation
				meta.incrementLength(5 + ComponentLength(comp))
			}
		}
		newRR.AppendField(SYMBOLIC_LINK)
	}

	tf := NewTFRecord(TF_FLAGS_DEFAULT)
	if local.length()+TFRecordLength(TF_FLAGS_DEFAULT) > ALLOWED_DR_SIZE {
		rr.CE.Continuation.TF = tf
		rr.CE.Continuation.incrementLength(TFRecordLength(TF_FLAGS_DEFAULT))
	} else {
		rr.TF = tf
		local.incrementLength(TFRecordLength(TF_FLAGS_DEFAULT))
	}
	newRR.AppendField(TIME_STAMPS)

	if isFirstRecordOfRoot {
		er := &ERRecord{
			ExtID:         consts.ROCK_RIDGE_IDENTIFIER,
			ExtDescriptor: consts.ROCK_RIDGE_DESCRIPTION,
			ExtSource:     consts.ROCK_RIDGE_SOURCE,
		}
		erLen := ERRecordLength(er.ExtID, er.ExtDescriptor, er.ExtSource)
		if local.length()+erLen > ALLOWED_DR_SIZE {
			rr.CE.Continuation.ER = er
			rr.CE.Continuation.incrementLength(erLen)
		} else {
			rr.ER = er
			local.incrementLength(erLen)
		}
	}

	local.incrementLength(local.length() % 2)

	return rr, local.length(), nil
}

// pxRecord resolves where the POSIX attributes of this bundle live: locally
// or in the continuation area.
func (rr *RockRidge) pxRecord() (*PXRecord, error) {
	if rr.PX != nil {
		return rr.PX, nil
	}
	if rr.CE == nil || rr.CE.Continuation == nil || rr.CE.Continuation.PX == nil {
		return nil, fmt.Errorf("no POSIX file attributes and no continuation entry")
	}
	return rr.CE.Continuation.PX, nil
}

// AddToFileLinks increments the POSIX link count on this entry by one.
func (rr *RockRidge) AddToFileLinks() error {
	px, err := rr.pxRecord()
	if err != nil {
		return err
	}
	px.FileLinks++
	return nil
}

// RemoveFromFileLinks decrements the POSIX link count on this entry by one.
func (rr *RockRidge) RemoveFromFileLinks() error {
	px, err := rr.pxRecord()
	if err != nil {
		return err
	}
	px.FileLinks--
	return nil
}

// CopyFileLinks copies the POSIX link count from the source entry.
func (rr *RockRidge) CopyFileLinks(src *RockRidge) error {
	srcPX, err := src.pxRecord()
	if err != nil {
		return err
	}
	px, err := rr.pxRecord()
	if err != nil {
		return err
	}
	px.FileLinks = srcPX.FileLinks
	return nil
}

// FileLinks returns the POSIX link count, or zero without attributes.
func (rr *RockRidge) FileLinks() uint32 {
	px, err := rr.pxRecord()
	if err != nil {
		return 0
	}
	return px.FileLinks
}

// Name returns the alternate name, joining the local NM with the
// continuation NM when the name was split.
func (rr *RockRidge) Name() string {
	name := ""
	if rr.NM != nil {
		name += rr.NM.Name
	}
	if rr.CE != nil && rr.CE.Continuation != nil && rr.CE.Continuation.NM != nil {
		name += rr.CE.Continuation.NM.Name
	}
	return name
}

// IsSymlink reports whether this bundle describes a symbolic link.
func (rr *RockRidge) IsSymlink() bool {
	if len(rr.SL) > 0 {
		return true
	}
	return rr.CE != nil && rr.CE.Continuation != nil && len(rr.CE.Continuation.SL) > 0
}

// SymlinkPath joins all symlink records, local then continuation, back into
// the target path.
func (rr *RockRidge) SymlinkPath() (string, error) {
	if !rr.IsSymlink() {
		return "", fmt.Errorf("entry is not a symlink")
	}

	out := ""
	appendRecords := func(records []*SLRecord) {
		for _, sl := range records {
			target := sl.Target()
			out += target
			if target != "/" {
				out += "/"
			}
		}
	}
	appendRecords(rr.SL)
	if rr.CE != nil && rr.CE.Continuation != nil {
		appendRecords(rr.CE.Continuation.SL)
	}
	return strings.TrimSuffix(out, "/"), nil
}
