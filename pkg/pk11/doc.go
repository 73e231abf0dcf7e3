// Package pk11 is a memory-safe Go wrapper around an NSS-style PKCS#11
// cryptographic library.
//
// The root package manages the process-wide native library: Initialize and
// Shutdown guard its one-time bootstrap and teardown, and Configure chooses
// the engine behind it. By default a built-in software token is used; with
// cgo enabled any PKCS#11 module (SoftHSM, NSS softokn, an HSM) can be
// loaded instead:
//
//	cfg, err := pk11.LoadConfig("pk11.yaml")
//	if err != nil {
//		return err
//	}
//	if err := pk11.Configure(cfg); err != nil {
//		return err
//	}
//	defer pk11.Shutdown()
//
// Cryptography lives in the subpackages:
//
//   - pkey: RSA key import, export, generation and encryption.
//   - symm: AES and DES block ciphers in ECB and CBC mode.
//
// Every native object (slot, key, cipher context, parameter buffer) is owned
// by exactly one Go value and released exactly once by its Close method.
// Errors are *Error values; use errors.Is with ErrNotInitialized,
// ErrInvalidKey and ErrInvalidAlgorithm to match the classified native
// failures, or inspect Error.Code for the rest.
package pk11
