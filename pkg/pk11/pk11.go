package pk11

import (
	"context"

	"github.com/coinbase/pk11-go/pkg/pk11/internal/backend"
)

// State of the process-wide native library.
type State = backend.State

const (
	Uninitialized = backend.Uninitialized
	Initializing  = backend.Initializing
	Initialized   = backend.Initialized
)

// Initialize bootstraps the native library. Only the first successful call
// reaches native code; later calls return nil immediately. It is safe to call
// from many goroutines at once, and every façade in this module calls it
// before touching native state. A failed bootstrap leaves the library
// uninitialized and may be retried.
func Initialize() error {
	return backend.Initialize()
}

// Shutdown tears the native library down. It does nothing if the library is
// not initialized. All keys and crypters must be closed first; otherwise the
// engine refuses with SEC_ERROR_BUSY and the library stays initialized.
func Shutdown() error {
	return backend.Shutdown()
}

// CurrentState reports whether the native library is initialized.
func CurrentState() State {
	return backend.CurrentState()
}

// Configure selects the native engine described by cfg. It must be called
// before the library is initialized (or after Shutdown) and returns
// ErrAlreadyInitialized otherwise.
func Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	lib, err := cfg.library()
	if err != nil {
		return err
	}
	if _, err := backend.Install(lib, cfg.Logger); err != nil {
		return err
	}
	backend.Logger().Debug(context.Background(), "engine configured", "engine", lib.Name())
	return nil
}

// EngineName identifies the active native engine.
func EngineName() string {
	return backend.Lib().Name()
}
