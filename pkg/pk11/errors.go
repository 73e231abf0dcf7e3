package pk11

import "github.com/coinbase/pk11-go/pkg/pk11/internal/backend"

// Error is returned by every operation in this module. Code carries the
// native error code when the failure came from the engine; Err carries the
// sentinel or validation cause.
type Error = backend.Error

// Kind classifies an Error.
type Kind = backend.Kind

const (
	KindNative           = backend.KindNative
	KindNotInitialized   = backend.KindNotInitialized
	KindInvalidKey       = backend.KindInvalidKey
	KindInvalidAlgorithm = backend.KindInvalidAlgorithm
	KindValidation       = backend.KindValidation
	KindState            = backend.KindState
)

var (
	// ErrNotInitialized is matched by errors.Is when the engine reports
	// SEC_ERROR_NOT_INITIALIZED.
	ErrNotInitialized = backend.ErrNotInitialized

	// ErrInvalidKey is matched for SEC_ERROR_INVALID_KEY and
	// SEC_ERROR_BAD_KEY.
	ErrInvalidKey = backend.ErrInvalidKey

	// ErrInvalidAlgorithm is matched for SEC_ERROR_INVALID_ALGORITHM.
	ErrInvalidAlgorithm = backend.ErrInvalidAlgorithm

	// ErrAlreadyInitialized is returned by Configure while initialized.
	ErrAlreadyInitialized = backend.ErrAlreadyInitialized
)
