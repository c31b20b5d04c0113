package isohybrid

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"github.com/bgrewell/iso-forge/pkg/consts"
)

// MBRSize is the size of the hybrid MBR prepended to the image.
const MBRSize = 512

// BootstrapSize is the exact size of the bootstrap code blob (the isolinux
// isohdpfx family).
const BootstrapSize = 432

// partitionTableOffset is where the four 16-byte partition entries start.
const partitionTableOffset = 446

// DefaultPartType is the partition type assigned when the caller does not
// choose one (0x17: hidden NTFS, what isohybrid tooling uses).
const DefaultPartType = 0x17

// IsoHybrid is the 512-byte MBR wrapper that makes an ISO image bootable
// from block devices as well as optical media: the bootstrap blob, a
// pointer to the boot image, an MBR id, and a single active partition
// covering the image in CHS terms.
type IsoHybrid struct {
	MBR   [BootstrapSize]byte
	RBA   uint32
	MBRID uint32

	// PartEntry is the 1-based slot of the active partition.
	PartEntry int

	BHead      uint8
	BSect      uint8
	BCyle      uint8
	PType      uint8
	EHead      uint8
	PartOffset uint32

	GeometryHeads   int
	GeometrySectors int
}

// Parse parses hybridization info out of the first 512 bytes of an image.
// Anything without the isolinux bootstrap sentinel is rejected.
func Parse(data []byte) (*IsoHybrid, error) {
	if len(data) != MBRSize {
		return nil, fmt.Errorf("isohybrid MBR must be %d bytes, have %d", MBRSize, len(data))
	}
	if string(data[:2]) != consts.ISOHYBRID_MBR_MAGIC {
		return nil, fmt.Errorf("isohybrid bootstrap sentinel not present")
	}

	h := &IsoHybrid{}
	copy(h.MBR[:], data[:BootstrapSize])
	h.RBA = binary.LittleEndian.Uint32(data[432:436])
	if binary.LittleEndian.Uint32(data[436:440]) != 0 {
		return nil, fmt.Errorf("invalid isohybrid header section")
	}
	h.MBRID = binary.LittleEndian.Uint32(data[440:444])
	if binary.LittleEndian.Uint16(data[444:446]) != 0 {
		return nil, fmt.Errorf("invalid isohybrid header section")
	}

	offset := partitionTableOffset
	for i := 1; i <= 4; i++ {
		if data[offset] == 0x80 {
			h.PartEntry = i
			h.BHead = data[offset+1]
			h.BSect = data[offset+2]
			h.BCyle = data[offset+3]
			h.PType = data[offset+4]
			h.EHead = data[offset+5]
			h.PartOffset = binary.LittleEndian.Uint32(data[offset+8 : offset+12])
			break
		}
		offset += 16
	}
	if h.PartEntry == 0 {
		return nil, fmt.Errorf("no valid partition found in isohybrid MBR")
	}

	if data[510] != 0x55 || data[511] != 0xaa {
		return nil, fmt.Errorf("invalid tail on isohybrid MBR")
	}

	h.GeometryHeads = int(h.EHead) + 1
	// There is no way to recover the sector count from the on-disk data;
	// 32 is what the tooling always uses.
	h.GeometrySectors = 32

	return h, nil
}

// New builds hybridization state from a 432-byte bootstrap blob. An mbrID of
// zero draws a random one.
func New(bootstrap []byte, rba uint32, partEntry int, mbrID uint32, partOffset uint32, geometrySectors, geometryHeads int, partType uint8) (*IsoHybrid, error) {
	if len(bootstrap) != BootstrapSize {
		return nil, fmt.Errorf("the isohybrid bootstrap must be exactly %d bytes", BootstrapSize)
	}

	h := &IsoHybrid{
		RBA:             rba,
		MBRID:           mbrID,
		PartEntry:       partEntry,
		PType:           partType,
		PartOffset:      partOffset,
		GeometryHeads:   geometryHeads,
		GeometrySectors: geometrySectors,
	}
	copy(h.MBR[:], bootstrap)
	if h.MBRID == 0 {
		h.MBRID = rand.Uint32()
	}

	h.BHead = uint8((partOffset / uint32(geometrySectors)) % uint32(geometryHeads))
	h.BSect = uint8(partOffset%uint32(geometrySectors)) + 1
	bcyle := partOffset / uint32(uint32(geometryHeads)*uint32(geometrySectors))
	h.BSect += uint8((bcyle & 0x300) >> 2)
	h.BCyle = uint8(bcyle & 0xff)
	h.EHead = uint8(geometryHeads - 1)

	return h, nil
}

// calcCC computes the clamped cylinder count and the byte padding needed to
// round the image up to a whole cylinder.
func (h *IsoHybrid) calcCC(isoSize int64) (int64, int64) {
	cylSize := int64(h.GeometryHeads) * int64(h.GeometrySectors) * 512
	frac := isoSize % cylSize
	var padding int64
	if frac > 0 {
		padding = cylSize - frac
	}
	cc := (isoSize + padding) / cylSize
	if cc > 1024 {
		cc = 1024
	}
	return cc, padding
}

// Record generates the 512-byte MBR for an image of the given size
// (excluding the hybridization itself).
func (h *IsoHybrid) Record(isoSize int64) []byte {
	out := make([]byte, MBRSize)
	copy(out[:BootstrapSize], h.MBR[:])
	binary.LittleEndian.PutUint32(out[432:436], h.RBA)
	binary.LittleEndian.PutUint32(out[440:444], h.MBRID)

	offset := partitionTableOffset
	for i := 1; i <= 4; i++ {
		if i == h.PartEntry {
			cc, _ := h.calcCC(isoSize)
			esect := uint8(h.GeometrySectors) + uint8(((cc-1)&0x300)>>2)
			ecyle := uint8((cc - 1) & 0xff)
			psize := uint32(cc)*uint32(h.GeometryHeads)*uint32(h.GeometrySectors) - h.PartOffset
			out[offset] = 0x80
			out[offset+1] = h.BHead
			out[offset+2] = h.BSect
			out[offset+3] = h.BCyle
			out[offset+4] = h.PType
			out[offset+5] = h.EHead
			out[offset+6] = esect
			out[offset+7] = ecyle
			binary.LittleEndian.PutUint32(out[offset+8:offset+12], h.PartOffset)
			binary.LittleEndian.PutUint32(out[offset+12:offset+16], psize)
		}
		offset += 16
	}

	out[510] = 0x55
	out[511] = 0xaa
	return out
}

// RecordPadding returns the zero padding appended after the image to round
// it up to a whole cylinder.
func (h *IsoHybrid) RecordPadding(isoSize int64) []byte {
	_, padding := h.calcCC(isoSize)
	return make([]byte, padding)
}
