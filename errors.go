package elmo

import "errors"

var (
	// ErrConnection wraps every failure talking to the panel.
	ErrConnection = errors.New("modbus connection failed")

	ErrCodeRequired      = errors.New("a valid code is required to control this alarm panel")
	ErrInvalidCode       = errors.New("invalid code provided")
	ErrModeNotConfigured = errors.New("no sectors configured for mode")
	ErrInvalidSelection  = errors.New("invalid selection")
	ErrDuplicateCode     = errors.New("duplicate code")
)

// IsPermanent reports whether retrying err cannot succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrCodeRequired) ||
		errors.Is(err, ErrInvalidCode) ||
		errors.Is(err, ErrModeNotConfigured) ||
		errors.Is(err, ErrInvalidSelection)
}
