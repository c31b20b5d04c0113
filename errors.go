package iso

import (
	"github.com/pkg/errors"
)

// Error kinds surfaced by the engine. Wrapped errors carry detail; match
// with errors.Is.
var (
	// ErrNotInitialized is returned by any call on a fresh or closed image.
	ErrNotInitialized = errors.New("image not initialized; call New or Open first")

	// ErrAlreadyInitialized is returned when creating or opening over a live
	// image.
	ErrAlreadyInitialized = errors.New("image already initialized; close it first")

	// ErrMalformedImage is returned when the source bytes violate the
	// on-disk formats beyond the tolerated anomalies.
	ErrMalformedImage = errors.New("malformed image")

	// ErrInvalidArgument is returned for caller mistakes: illegal names,
	// bad paths, out-of-range values.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupported is returned for valid images using features the engine
	// does not implement.
	ErrUnsupported = errors.New("unsupported feature")

	// ErrDuplicate is returned when two non-associated siblings would share
	// an identifier.
	ErrDuplicate = errors.New("duplicate identifier")
)

// malformed attaches the MalformedImage kind to a parse error.
func malformed(err error) error {
	if err == nil {
		return nil
	}
	return errors.WithMessage(ErrMalformedImage, err.Error())
}

// invalidArgf builds an InvalidArgument error with detail.
func invalidArgf(format string, args ...interface{}) error {
	return errors.WithMessagef(ErrInvalidArgument, format, args...)
}

// unsupportedf builds an Unsupported error with detail.
func unsupportedf(format string, args ...interface{}) error {
	return errors.WithMessagef(ErrUnsupported, format, args...)
}
