package granular

import "errors"

var (
	// ErrBlockMismatch is returned by Process when input and output lengths
	// differ.
	ErrBlockMismatch = errors.New("granular: input and output block lengths differ")
	// ErrInvalidInterOnset is returned for an inter-onset range with
	// min < 1 or min > max.
	ErrInvalidInterOnset = errors.New("granular: invalid inter-onset range")
)
