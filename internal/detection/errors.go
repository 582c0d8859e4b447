package detection

import "errors"

var (
	ErrInvalidOptions = errors.New("invalid detection options")
	ErrStatusNotFound = errors.New("status not found")
)
