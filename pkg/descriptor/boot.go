package descriptor

import (
	"fmt"

	"github.com/bgrewell/iso-forge/pkg/consts"
	"github.com/bgrewell/iso-forge/pkg/encoding"
)

// bootSystemUseSize is the size of the boot system use field (ECMA-119 8.2.5).
const bootSystemUseSize = 1977

// BootRecord is an ISO9660 Boot Record volume descriptor. When its boot
// system identifier is the El Torito string, the first four bytes of the
// boot system use field locate the boot catalog (little-endian extent).
type BootRecord struct {
	// BootSystemIdentifier, NUL-padded to 32 bytes.
	BootSystemIdentifier string
	// BootIdentifier, NUL-padded to 32 bytes.
	BootIdentifier string
	// BootSystemUse carries whatever the boot system needs; 1977 bytes.
	BootSystemUse [bootSystemUseSize]byte

	origExtent uint32
	newExtent  uint32
	hasNew     bool
}

// ParseBootRecord parses a Boot Record out of its 2048-byte frame.
func ParseBootRecord(data []byte, extent uint32) (*BootRecord, error) {
	if len(data) != consts.ISO9660_SECTOR_SIZE {
		return nil, fmt.Errorf("boot record must be %d bytes, have %d", consts.ISO9660_SECTOR_SIZE, len(data))
	}
	if VolumeDescriptorType(data[0]) != TYPE_BOOT_RECORD {
		return nil, fmt.Errorf("invalid boot record descriptor type %d", data[0])
	}
	if string(data[1:6]) != consts.ISO9660_STD_IDENTIFIER {
		return nil, fmt.Errorf("invalid boot record identifier %q", string(data[1:6]))
	}
	if data[6] != consts.ISO9660_VOLUME_DESC_VERSION {
		return nil, fmt.Errorf("invalid boot record version %d", data[6])
	}

	br := &BootRecord{
		BootSystemIdentifier: string(data[7:39]),
		BootIdentifier:       string(data[39:71]),
		origExtent:           extent,
	}
	copy(br.BootSystemUse[:], data[71:2048])
	return br, nil
}

// NewBootRecord creates a new Boot Record with the given boot system
// identifier.
func NewBootRecord(bootSystemID string) *BootRecord {
	return &BootRecord{
		BootSystemIdentifier: string(encoding.PadNulString(bootSystemID, 32)),
		BootIdentifier:       string(encoding.PadNulString("", 32)),
	}
}

// IsElTorito reports whether this boot record announces an El Torito boot
// catalog.
func (br *BootRecord) IsElTorito() bool {
	return br.BootSystemIdentifier == string(encoding.PadNulString(consts.EL_TORITO_BOOT_SYSTEM_ID, 32))
}

// UpdateBootSystemUse replaces the whole boot system use field: use is
// copied to its start and the rest of the field is zeroed.
func (br *BootRecord) UpdateBootSystemUse(use []byte) {
	var fresh [bootSystemUseSize]byte
	copy(fresh[:], use)
	br.BootSystemUse = fresh
}

// Marshal generates the 2048-byte frame.
func (br *BootRecord) Marshal() []byte {
	out := make([]byte, consts.ISO9660_SECTOR_SIZE)
	out[0] = byte(TYPE_BOOT_RECORD)
	copy(out[1:6], consts.ISO9660_STD_IDENTIFIER)
	out[6] = consts.ISO9660_VOLUME_DESC_VERSION
	copy(out[7:39], br.BootSystemIdentifier)
	copy(out[39:71], br.BootIdentifier)
	copy(out[71:2048], br.BootSystemUse[:])
	return out
}

// ExtentLocation returns this boot record's current extent.
func (br *BootRecord) ExtentLocation() uint32 {
	if br.hasNew {
		return br.newExtent
	}
	return br.origExtent
}

// SetExtentLocation reassigns this boot record's extent.
func (br *BootRecord) SetExtentLocation(extent uint32) {
	br.newExtent = extent
	br.hasNew = true
}
