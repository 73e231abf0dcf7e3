package backend

import (
	"errors"
	"fmt"

	"github.com/coinbase/pk11-go/internal/bindings"
)

// Kind classifies an Error.
type Kind int

const (
	// KindNative is an unclassified native failure; inspect Code.
	KindNative Kind = iota
	KindNotInitialized
	KindInvalidKey
	KindInvalidAlgorithm
	// KindValidation reports arguments rejected before any native call.
	KindValidation
	// KindState reports an operation invoked in the wrong object state.
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindNotInitialized:
		return "not initialized"
	case KindInvalidKey:
		return "invalid key"
	case KindInvalidAlgorithm:
		return "invalid algorithm"
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	ErrNotInitialized   = errors.New("pk11: library not initialized")
	ErrInvalidKey       = errors.New("pk11: invalid key")
	ErrInvalidAlgorithm = errors.New("pk11: invalid algorithm")
)

// Error is the error type returned by every pk11 operation.
type Error struct {
	Op   string        // operation that failed
	Code bindings.Code // native code, zero for validation and state errors
	Kind Kind
	Err  error // sentinel or wrapped cause, may be nil for KindNative
}

func (e *Error) Error() string {
	if e.Code != bindings.OK {
		// The message table is only consulted when the error is rendered.
		return fmt.Sprintf("pk11.%s: %s (%s)", e.Op, bindings.ErrorText(e.Code), e.Code)
	}
	return fmt.Sprintf("pk11.%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Native translates a native code. A zero code next to a null handle still
// means failure; it is reported as PR_UNKNOWN_ERROR.
func Native(op string, code bindings.Code) error {
	if code == bindings.OK {
		code = bindings.PR_UNKNOWN_ERROR
	}
	e := &Error{Op: op, Code: code, Kind: KindNative}
	switch code {
	case bindings.SEC_ERROR_NOT_INITIALIZED:
		e.Kind, e.Err = KindNotInitialized, ErrNotInitialized
	case bindings.SEC_ERROR_INVALID_KEY, bindings.SEC_ERROR_BAD_KEY:
		e.Kind, e.Err = KindInvalidKey, ErrInvalidKey
	case bindings.SEC_ERROR_INVALID_ALGORITHM:
		e.Kind, e.Err = KindInvalidAlgorithm, ErrInvalidAlgorithm
	}
	return e
}

// Check returns nil for OK and the translated error otherwise.
func Check(op string, code bindings.Code) error {
	if code == bindings.OK {
		return nil
	}
	return Native(op, code)
}

// Invalid reports arguments rejected before reaching native code.
func Invalid(op string, err error) error {
	return &Error{Op: op, Kind: KindValidation, Err: err}
}

// StateErr reports an operation invoked in the wrong state.
func StateErr(op string, err error) error {
	return &Error{Op: op, Kind: KindState, Err: err}
}
