package descriptor

// VersionDescriptor occupies the logical block immediately after the set
// terminator. It is not part of any standard, but the common mastering tools
// emit it, so it is modeled; its content is written as all zeros.
type VersionDescriptor struct {
	origExtent uint32
	newExtent  uint32
	hasNew     bool
}

// ParseVersionDescriptor notes the extent the version descriptor occupies on
// the source image; its content is not interpreted.
func ParseVersionDescriptor(extent uint32) *VersionDescriptor {
	return &VersionDescriptor{origExtent: extent}
}

// NewVersionDescriptor creates a new version descriptor.
func NewVersionDescriptor() *VersionDescriptor {
	return &VersionDescriptor{}
}

// Marshal generates one logical block of zeros.
func (v *VersionDescriptor) Marshal(logBlockSize uint16) []byte {
	return make([]byte, logBlockSize)
}

// ExtentLocation returns this descriptor's current extent.
func (v *VersionDescriptor) ExtentLocation() uint32 {
	if v.hasNew {
		return v.newExtent
	}
	return v.origExtent
}

// SetExtentLocation reassigns this descriptor's extent.
func (v *VersionDescriptor) SetExtentLocation(extent uint32) {
	v.newExtent = extent
	v.hasNew = true
}
