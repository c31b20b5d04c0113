package directory

// File flag bits from ECMA-119 9.1.6, LSB first.
const (
	// FileFlagExistence set means the file need not be made known to the
	// user (hidden).
	FileFlagExistence = 1 << 0
	// FileFlagDirectory set means the record identifies a directory.
	FileFlagDirectory = 1 << 1
	// FileFlagAssociated set means the file is an Associated File.
	FileFlagAssociated = 1 << 2
	// FileFlagRecord set means the file structure is described by the Record
	// Format field of the associated Extended Attribute Record.
	FileFlagRecord = 1 << 3
	// FileFlagProtection set means owner/group identification is recorded in
	// the Extended Attribute Record.
	FileFlagProtection = 1 << 4
	// FileFlagMultiExtent set means this is not the final directory record
	// for the file.
	FileFlagMultiExtent = 1 << 7
)
