package models

import "errors"

// Error taxonomy shared by services and handlers. Validation and conflict
// errors map to 4xx responses; gateway errors are retryable and surface as a
// generic message; signature errors reject a webhook with no state change.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
	ErrGateway    = errors.New("payment gateway unavailable")
	ErrSignature  = errors.New("signature verification failed")
)
