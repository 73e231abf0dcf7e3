// Package internalcheck holds source policy tests for the library packages.
//
// The tests load the non-test sources of pkg/pk11/... and internal/bindings
// with golang.org/x/tools/go/packages and fail on constructs that risk
// leaking key material: variable-time byte slice comparison and hex
// rendering of byte data. The package has no exported API.
package internalcheck
