package symm

import "errors"

var (
	ErrContextNotInitialized = errors.New("symm: cipher context not initialized")
	ErrInvalidKeyLength      = errors.New("symm: invalid key length")
	ErrInvalidIVLength       = errors.New("symm: invalid IV length")
	ErrUnsupportedKind       = errors.New("symm: unsupported cipher kind")
	ErrInvalidMode           = errors.New("symm: invalid mode")
)
