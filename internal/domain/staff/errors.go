package staff

import "errors"

var (
	ErrStaffNotFound       = errors.New("staff not found")
	ErrInvalidPayType      = errors.New("invalid pay type")
	ErrMissingCompensation = errors.New("staff has no compensation configured")
)
