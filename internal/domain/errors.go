package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrInvalidRecord   = errors.New("invalid message record")
	ErrInvalidPath     = errors.New("invalid collection path")
	ErrStoreClosed     = errors.New("document store closed")
	ErrInvalidIdentity = errors.New("invalid identity")
)
