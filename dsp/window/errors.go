package window

import "errors"

var (
	errUnknownType      = errors.New("unknown window type")
	errMismatchedLength = errors.New("samples and coefficients must have same length")
)
