package nn

import "github.com/pkg/errors"

// Error taxonomy of the training engine.
//
// Functions wrap these sentinels with context; callers match them with
// errors.Is.
var (
	// ErrInvalidParameter covers bad shapes, missing inputs, out-of-range
	// indices and unrecognized configuration.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNotInitialized is returned when an operation needs storage or
	// configuration that has not been set up yet.
	ErrNotInitialized = errors.New("not initialized")

	// ErrIOFailure is returned when persisting or restoring values fails.
	ErrIOFailure = errors.New("i/o failure")
)

// invalidf wraps ErrInvalidParameter with a formatted message.
func invalidf(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidParameter, format, args...)
}
