package descriptor

import (
	"fmt"

	"github.com/bgrewell/iso-forge/pkg/consts"
)

// SetTerminator is a Volume Descriptor Set Terminator: it closes the volume
// descriptor sequence.
type SetTerminator struct {
	origExtent uint32
	newExtent  uint32
	hasNew     bool
}

// ParseSetTerminator parses a Volume Descriptor Set Terminator. ECMA-119
// 8.3.4 wants the body to be all zero, but media in the wild put data there,
// so the body is ignored.
func ParseSetTerminator(data []byte, extent uint32) (*SetTerminator, error) {
	if len(data) != consts.ISO9660_SECTOR_SIZE {
		return nil, fmt.Errorf("set terminator must be %d bytes, have %d", consts.ISO9660_SECTOR_SIZE, len(data))
	}
	if VolumeDescriptorType(data[0]) != TYPE_TERMINATOR_DESCRIPTOR {
		return nil, fmt.Errorf("invalid set terminator descriptor type %d", data[0])
	}
	if string(data[1:6]) != consts.ISO9660_STD_IDENTIFIER {
		return nil, fmt.Errorf("invalid set terminator identifier %q", string(data[1:6]))
	}
	if data[6] != consts.ISO9660_VOLUME_DESC_VERSION {
		return nil, fmt.Errorf("invalid set terminator version %d", data[6])
	}
	return &SetTerminator{origExtent: extent}, nil
}

// NewSetTerminator creates a new Volume Descriptor Set Terminator.
func NewSetTerminator() *SetTerminator {
	return &SetTerminator{hasNew: true}
}

// Marshal generates the 2048-byte frame.
func (st *SetTerminator) Marshal() []byte {
	out := make([]byte, consts.ISO9660_SECTOR_SIZE)
	out[0] = byte(TYPE_TERMINATOR_DESCRIPTOR)
	copy(out[1:6], consts.ISO9660_STD_IDENTIFIER)
	out[6] = consts.ISO9660_VOLUME_DESC_VERSION
	return out
}

// ExtentLocation returns this terminator's current extent.
func (st *SetTerminator) ExtentLocation() uint32 {
	if st.hasNew {
		return st.newExtent
	}
	return st.origExtent
}

// SetExtentLocation reassigns this terminator's extent.
func (st *SetTerminator) SetExtentLocation(extent uint32) {
	st.newExtent = extent
	st.hasNew = true
}
