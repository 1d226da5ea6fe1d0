package event

import (
	"github.com/pkg/errors"
)

// Errors returned by hook management operations. Dispatch never returns an error.
// Wrapped errors can be compared with errors.Cause(err) == ErrX.
var (
	ErrDuplicateHookName = errors.New("duplicate hook name")
	ErrHookNotFound      = errors.New("hook not found")
	ErrGroupNotFound     = errors.New("hook group not found")
	ErrInvalidFilter     = errors.New("invalid address filter")
	ErrCallbackType      = errors.New("callback is not callable")
	ErrInvalidEvent      = errors.New("invalid event")
	ErrInvalidWhen       = errors.New("invalid when")
)
