package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bgrewell/iso-forge/pkg/consts"
)

// Interchange levels dictate the rules on identifier lengths. Level 2 exists
// in the standard but carries the same length rules as level 3 here.
const (
	InterchangeLevel1 = 1
	InterchangeLevel2 = 2
	InterchangeLevel3 = 3
)

// Normalize upper-cases an identifier; this is the only transformation
// applied before character validation, and it is idempotent.
func Normalize(name string) string {
	return strings.ToUpper(name)
}

// CheckD1Characters checks that a name only uses d1-characters as defined by
// ISO9660 (after normalization).
func CheckD1Characters(name string) error {
	for _, r := range name {
		if !strings.ContainsRune(consts.D1_CHARACTERS, r) {
			return fmt.Errorf("%q is not a valid ISO9660 identifier (it contains invalid characters)", name)
		}
	}
	return nil
}

// CheckFileIdentifier checks that a file identifier conforms to the ISO9660
// rules (ECMA-119 7.5) for a particular interchange level.
//
// ECMA-119 says that filenames must end with a semicolon-number, but media
// exist that do not follow this, so names both with and without the
// semi+version are accepted.
func CheckFileIdentifier(fullname string, interchangeLevel int) error {
	namesplit := strings.Split(fullname, ";")
	switch len(namesplit) {
	case 1:
		// No version; tolerated.
	case 2:
		version, err := strconv.Atoi(namesplit[1])
		if err != nil || version < 1 || version > 32767 {
			return fmt.Errorf("%q has an invalid version number (must be between 1 and 32767)", fullname)
		}
	default:
		return fmt.Errorf("%q contains multiple semicolons", fullname)
	}

	nameAndExt := namesplit[0]

	// ECMA-119 7.5 names are x.y; everything up to the last dot is the name.
	var name, extension string
	if idx := strings.LastIndex(nameAndExt, "."); idx == -1 {
		name = nameAndExt
	} else {
		name = nameAndExt[:idx]
		extension = nameAndExt[idx+1:]
	}

	// ECMA-119 7.5.1: at least one of name or extension must be non-empty.
	if len(name) == 0 && len(extension) == 0 {
		return fmt.Errorf("%q is not a valid ISO9660 filename (either the name or extension must be non-empty)", fullname)
	}

	if interchangeLevel == InterchangeLevel1 {
		// ECMA-119 10.1: at level 1 the name is at most 8 characters and the
		// extension at most 3.
		if len(name) > 8 || len(extension) > 3 {
			return fmt.Errorf("%q is not a valid ISO9660 filename at interchange level 1", fullname)
		}
	}
	// At the other levels the 7.5.2 length cap is not enforced; media in the
	// wild exceed it.

	if err := CheckD1Characters(Normalize(name)); err != nil {
		return err
	}
	return CheckD1Characters(Normalize(extension))
}

// CheckDirIdentifier checks that a directory identifier conforms to the
// ISO9660 rules (ECMA-119 7.6) for a particular interchange level.
func CheckDirIdentifier(fullname string, interchangeLevel int) error {
	// ECMA-119 7.6.1: at least one character.
	if len(fullname) < 1 {
		return fmt.Errorf("a directory identifier must be at least 1 character long")
	}

	if interchangeLevel == InterchangeLevel1 {
		if len(fullname) > 8 {
			return fmt.Errorf("%q is not a valid ISO9660 directory name at interchange level 1", fullname)
		}
	} else if len(fullname) > 207 {
		// 7.6.3 says 31; 207 is what actually fits in a directory record and
		// what media in the wild use.
		return fmt.Errorf("%q is not a valid ISO9660 directory name (it is longer than 207 characters)", fullname)
	}

	return CheckD1Characters(Normalize(fullname))
}

// InferInterchangeLevel determines the interchange level of an identifier
// found on an ISO. The identifier is tried against level 1 first and level 3
// on failure; an identifier valid at neither level is an error.
func InferInterchangeLevel(identifier string, isDir bool) (int, error) {
	check := CheckFileIdentifier
	if isDir {
		check = CheckDirIdentifier
	}

	if check(identifier, InterchangeLevel1) == nil {
		return InterchangeLevel1, nil
	}
	if err := check(identifier, InterchangeLevel3); err != nil {
		return 0, err
	}
	return InterchangeLevel3, nil
}
