package services

import "errors"

// Sentinel errors the HTTP layer translates into status codes. Anything a
// service returns that does not wrap one of these is treated as aborted.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("permission denied")
	ErrInvalidArgument = errors.New("invalid argument")
)
