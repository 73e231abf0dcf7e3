// Package bindings is the native ABI of pk11-go.
//
// The Library interface is shaped after the C API of an NSS-style PKCS#11
// library: opaque integer handles, a null handle plus an error Code on
// failure, caller-allocated output buffers and one destroy function per
// handle kind. Two engines implement it:
//
//   - Soft, a software token built on the Go crypto packages. It is the
//     default engine and needs no native code.
//   - the PKCS#11 engine returned by NewPKCS11, which loads a PKCS#11 module
//     through github.com/miekg/pkcs11. It requires cgo.
//
// Nothing in this package owns handles on behalf of callers; lifetime
// management lives in pkg/pk11/internal/backend.
package bindings
