package pk11test

import (
	"testing"

	"github.com/coinbase/pk11-go/internal/bindings"
	"github.com/coinbase/pk11-go/pkg/pk11"
	"github.com/coinbase/pk11-go/pkg/pk11/internal/backend"
	"github.com/coinbase/pk11-go/pkg/pk11/logging"
)

// Install shuts the library down, makes lib the active engine for the rest
// of the test and restores the previous engine on cleanup. Library log
// records are discarded while lib is installed. Tests using it
// must not run in parallel with each other.
func Install(t testing.TB, lib bindings.Library) {
	t.Helper()
	if err := pk11.Shutdown(); err != nil {
		t.Fatalf("pk11test: shutdown before install: %v", err)
	}
	restore, err := backend.Install(lib, logging.Discard())
	if err != nil {
		t.Fatalf("pk11test: install engine: %v", err)
	}
	t.Cleanup(func() {
		if err := pk11.Shutdown(); err != nil {
			t.Errorf("pk11test: shutdown after test: %v", err)
		}
		if err := restore(); err != nil {
			t.Errorf("pk11test: restore engine: %v", err)
		}
	})
}

// Soft installs a fresh software token wrapped in a Counting mediator and
// fails the test if native objects are still alive when it ends.
func Soft(t testing.TB) *Counting {
	t.Helper()
	c := NewCounting(bindings.NewSoft())
	Install(t, c)
	t.Cleanup(func() {
		if n := c.Live(); n != 0 {
			t.Errorf("pk11test: %d native objects leaked", n)
		}
	})
	return c
}
