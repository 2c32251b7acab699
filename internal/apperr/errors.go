// Package apperr defines the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnknownTemplate = errors.New("unknown template")
	ErrPreviewMode     = errors.New("structure is locked in preview mode")

	// Form model.
	ErrValidation      = errors.New("validation failed")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// Persistence.
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrCorruptState       = errors.New("corrupt state")
	ErrInvalidDocument    = errors.New("invalid document")
)
