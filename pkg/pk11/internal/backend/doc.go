// Package backend owns everything that sits directly on top of the native
// ABI: the selected engine, the process-wide initialization state, the
// generic handle owner and the translation of native codes into errors.
// The public packages under pkg/pk11 never talk to internal/bindings
// without going through it.
package backend
