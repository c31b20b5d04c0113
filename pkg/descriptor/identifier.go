package descriptor

import (
	"fmt"
	"strings"

	"github.com/bgrewell/iso-forge/pkg/encoding"
	"github.com/bgrewell/iso-forge/pkg/validation"
)

// fileIdentifierFlag marks a publisher/preparer/application identifier as
// naming a file in the root directory rather than carrying free text
// (ECMA-119 8.4.20 through 8.4.22).
const fileIdentifierFlag = 0x5f

// identifierFieldSize is the recorded size of these identifier fields.
const identifierFieldSize = 128

// FileOrTextIdentifier is a publisher, data preparer or application
// identifier: either free text, or (flagged by a leading 0x5F byte) the name
// of a file in the root directory, which must then satisfy the interchange
// rules — level 1 in the primary descriptor, level 3 in a supplementary one.
type FileOrTextIdentifier struct {
	Text     string
	Filename string
	IsFile   bool
}

// ParseFileOrTextIdentifier parses the 128-byte identifier field. isPrimary
// selects the interchange level applied to the filename form.
func ParseFileOrTextIdentifier(data []byte, isPrimary bool) (FileOrTextIdentifier, error) {
	var ident FileOrTextIdentifier
	if len(data) != identifierFieldSize {
		return ident, fmt.Errorf("identifier field must be %d bytes, have %d", identifierFieldSize, len(data))
	}
	ident.Text = string(data)

	if data[0] != fileIdentifierFlag {
		return ident, nil
	}

	rest := string(data[1:])
	spaceIndex := strings.IndexByte(rest, ' ')
	level := validation.InterchangeLevel3
	if isPrimary {
		if spaceIndex == -1 {
			return ident, fmt.Errorf("invalid filename for file identifier")
		}
		level = validation.InterchangeLevel1
	}
	if spaceIndex == -1 {
		ident.Filename = rest
	} else {
		ident.Filename = rest[:spaceIndex]
	}

	if err := validation.CheckFileIdentifier(ident.Filename, level); err != nil {
		return ident, err
	}

	ident.IsFile = true
	ident.Text = rest
	return ident, nil
}

// NewFileOrTextIdentifier creates an identifier from caller-provided text.
// The filename form is not validated here; CheckFilename runs once the
// owning descriptor knows which interchange level applies.
func NewFileOrTextIdentifier(text string, isFile bool) (FileOrTextIdentifier, error) {
	// The filename form gives up one byte of the field to its 0x5F flag.
	maxLen := identifierFieldSize
	if isFile {
		maxLen--
	}
	if len(text) > maxLen {
		return FileOrTextIdentifier{}, fmt.Errorf("identifier text has a maximum length of %d", maxLen)
	}
	ident := FileOrTextIdentifier{IsFile: isFile}
	if isFile {
		ident.Text = string(encoding.PadString(text, identifierFieldSize-1))
		ident.Filename = text
	} else {
		ident.Text = string(encoding.PadString(text, identifierFieldSize))
	}
	return ident, nil
}

// CheckFilename validates the filename form, if this identifier is one,
// against the interchange level the owning descriptor implies.
func (ident FileOrTextIdentifier) CheckFilename(isPrimary bool) error {
	if !ident.IsFile {
		return nil
	}
	level := validation.InterchangeLevel3
	if isPrimary {
		level = validation.InterchangeLevel1
	}
	return validation.CheckFileIdentifier(ident.Filename, level)
}

// Record returns the 128-byte on-disk form.
func (ident FileOrTextIdentifier) Record() []byte {
	if ident.IsFile {
		out := make([]byte, 0, identifierFieldSize)
		out = append(out, fileIdentifierFlag)
		return append(out, ident.Text...)
	}
	return []byte(ident.Text)
}
