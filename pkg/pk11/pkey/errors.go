package pkey

import "errors"

var (
	// ErrInvalidPadding reports a Padding outside the defined set.
	ErrInvalidPadding = errors.New("pkey: invalid padding scheme")

	// ErrInvalidKeySize reports an RSA modulus size GeneratePrivateKey
	// cannot produce.
	ErrInvalidKeySize = errors.New("pkey: invalid key size")

	// ErrClosed reports use of a key after Close.
	ErrClosed = errors.New("pkey: key is closed")
)
