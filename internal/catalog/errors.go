package catalog

import "errors"

// Load errors. Every error returned by Load wraps one of these.
var (
	// ErrInvalidFixture is returned for a fixture with a bad address, channel map or mode.
	ErrInvalidFixture = errors.New("catalog: invalid fixture")

	// ErrInvalidColor is returned for a palette or custom color that is not #RRGGBB.
	ErrInvalidColor = errors.New("catalog: invalid color")

	// ErrInvalidMatch is returned for a match_color descriptor that cannot be compiled.
	ErrInvalidMatch = errors.New("catalog: invalid match_color")

	// ErrInvalidValues is returned for a value map with non-numeric channel values.
	ErrInvalidValues = errors.New("catalog: invalid value map")

	// ErrMalformed is returned when a definition file cannot be decoded.
	ErrMalformed = errors.New("catalog: malformed file")
)
