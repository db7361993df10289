package contract

import "errors"

// Domain error taxonomy. Tool dispatch converts these into textual payloads
// handed back to the model; only catastrophic failures reach the HTTP
// boundary.
var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrAlreadyExists       = errors.New("already exists")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

var (
	ErrModelInvoke = errors.New("model invoke failed")
	ErrValidation  = errors.New("validation failed")
)
