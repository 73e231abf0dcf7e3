package backend

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/coinbase/pk11-go/internal/bindings"
	"github.com/coinbase/pk11-go/pkg/pk11/logging"
)

// State of the process-wide native library.
type State int32

const (
	Uninitialized State = iota
	Initializing
	Initialized
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Initialized:
		return "initialized"
	default:
		return "unknown"
	}
}

// ErrAlreadyInitialized is returned when the engine is swapped while the
// library is initialized.
var ErrAlreadyInitialized = errors.New("pk11: library already initialized")

type engine struct {
	lib bindings.Library
	log logging.Logger
}

var (
	// mu serializes state transitions; state is also read without it on
	// the fast path.
	mu    sync.Mutex
	state atomic.Int32

	current atomic.Pointer[engine]
)

func init() {
	current.Store(&engine{lib: bindings.NewSoft(), log: logging.New(nil)})
}

// Lib returns the active engine.
func Lib() bindings.Library {
	return current.Load().lib
}

// Logger returns the logger attached to the active engine.
func Logger() logging.Logger {
	return current.Load().log
}

// CurrentState reports the library state.
func CurrentState() State {
	return State(state.Load())
}

// Install selects lib (and log, when non-nil) as the active engine and
// returns a function that restores the previous one. It fails with
// ErrAlreadyInitialized unless the library is uninitialized.
func Install(lib bindings.Library, log logging.Logger) (restore func() error, err error) {
	mu.Lock()
	defer mu.Unlock()
	if State(state.Load()) != Uninitialized {
		return nil, ErrAlreadyInitialized
	}
	prev := current.Load()
	if log == nil {
		log = prev.log
	}
	current.Store(&engine{lib: lib, log: log})
	return func() error {
		mu.Lock()
		defer mu.Unlock()
		if State(state.Load()) != Uninitialized {
			return ErrAlreadyInitialized
		}
		current.Store(prev)
		return nil
	}, nil
}

// Initialize performs the native bootstrap once. Concurrent callers block
// until the winner finishes and then observe its outcome. On failure the
// state returns to Uninitialized so a later call can retry.
func Initialize() error {
	if State(state.Load()) == Initialized {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	if State(state.Load()) == Initialized {
		return nil
	}

	e := current.Load()
	ctx := context.Background()
	state.Store(int32(Initializing))
	if code := e.lib.Init(); code != bindings.OK {
		state.Store(int32(Uninitialized))
		err := Native("Initialize", code)
		e.log.Warn(ctx, "native library initialization failed", "engine", e.lib.Name(), "error", err)
		return err
	}
	state.Store(int32(Initialized))
	e.log.Debug(ctx, "native library initialized", "engine", e.lib.Name())
	return nil
}

// Shutdown tears the native library down once per successful Initialize.
// It is a no-op while uninitialized. If the engine refuses (for example
// because native objects are still alive) the library stays initialized.
func Shutdown() error {
	mu.Lock()
	defer mu.Unlock()
	if State(state.Load()) != Initialized {
		return nil
	}

	e := current.Load()
	ctx := context.Background()
	state.Store(int32(Initializing))
	if code := e.lib.Shutdown(); code != bindings.OK {
		state.Store(int32(Initialized))
		err := Native("Shutdown", code)
		e.log.Warn(ctx, "native library shutdown failed", "engine", e.lib.Name(), "error", err)
		return err
	}
	state.Store(int32(Uninitialized))
	e.log.Debug(ctx, "native library shut down", "engine", e.lib.Name())
	return nil
}
