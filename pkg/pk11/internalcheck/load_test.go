package internalcheck

import (
	"testing"

	"golang.org/x/tools/go/packages"
)

var checkedPatterns = []string{
	"github.com/coinbase/pk11-go/pkg/pk11/...",
	"github.com/coinbase/pk11-go/internal/bindings",
}

func loadChecked(t *testing.T, mode packages.LoadMode) []*packages.Package {
	t.Helper()
	pkgs, err := packages.Load(&packages.Config{Mode: mode}, checkedPatterns...)
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		t.Fatalf("packages failed to load")
	}
	return pkgs
}
