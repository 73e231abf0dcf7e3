package pkey

import (
	"bytes"
	"fmt"
	"runtime"

	"github.com/coinbase/pk11-go/internal/bindings"
	"github.com/coinbase/pk11-go/pkg/pk11"
	"github.com/coinbase/pk11-go/pkg/pk11/internal/backend"
)

const (
	// PublicExponent is used for every generated key.
	PublicExponent = 65537

	// MinKeyBits is the smallest size the native library accepts. The soft
	// token follows the Go runtime, which refuses moduli under 1024 bits
	// unless the program sets GODEBUG=rsa1024min=0 (or the equivalent
	// //go:debug directive in its main package).
	MinKeyBits = 512
	MaxKeyBits = 16384
)

// PrivateKey is an RSA private key held by the native library.
type PrivateKey struct {
	lib bindings.Library
	h   *backend.Owned[bindings.PrivateKey]
}

// LoadPrivateKey imports a DER encoded PKCS#8 PrivateKeyInfo into the internal
// key slot.
func LoadPrivateKey(der []byte) (*PrivateKey, error) {
	const op = "LoadPrivateKey"
	if err := pk11.Initialize(); err != nil {
		return nil, err
	}
	lib := backend.Lib()

	s, code := lib.InternalKeySlot()
	slot, err := backend.Wrap(op, s, code, lib.FreeSlot)
	if err != nil {
		return nil, err
	}
	defer slot.Close()

	k, code := lib.ImportPrivateKeyInfo(slot.Get(), der)
	h, err := backend.Wrap(op, k, code, lib.DestroyPrivateKey)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{lib: lib, h: h}, nil
}

// GeneratePrivateKey creates a new RSA key pair of the given modulus size with
// public exponent 65537 and returns its private half. Sizes below 1024 bits
// fail with SEC_ERROR_KEYGEN_FAIL on the soft token unless rsa1024min=0 is
// set; see MinKeyBits.
func GeneratePrivateKey(bits int) (*PrivateKey, error) {
	const op = "GeneratePrivateKey"
	if bits < MinKeyBits || bits > MaxKeyBits {
		return nil, backend.Invalid(op, fmt.Errorf("%w: %d bits, want %d to %d", ErrInvalidKeySize, bits, MinKeyBits, MaxKeyBits))
	}
	if err := pk11.Initialize(); err != nil {
		return nil, err
	}
	lib := backend.Lib()

	s, code := lib.InternalKeySlot()
	slot, err := backend.Wrap(op, s, code, lib.FreeSlot)
	if err != nil {
		return nil, err
	}
	defer slot.Close()

	priv, pub, code := lib.GenerateKeyPair(slot.Get(), bits, PublicExponent)
	// The public half can always be derived again; release it right away.
	if sibling, err := backend.Wrap(op, pub, code, lib.DestroyPublicKey); err == nil {
		sibling.Close()
	}
	h, err := backend.Wrap(op, priv, code, lib.DestroyPrivateKey)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{lib: lib, h: h}, nil
}

func (k *PrivateKey) handle(op string) (bindings.PrivateKey, error) {
	if k == nil || !k.h.Valid() {
		return 0, backend.StateErr(op, ErrClosed)
	}
	return k.h.Get(), nil
}

// Save exports the key as DER encoded PKCS#8 PrivateKeyInfo.
func (k *PrivateKey) Save() ([]byte, error) {
	const op = "PrivateKey.Save"
	raw, err := k.handle(op)
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(k)

	it, code := k.lib.ExportPrivateKeyInfo(raw)
	item, err := backend.Wrap(op, it, code, k.lib.FreeItem)
	if err != nil {
		return nil, err
	}
	defer item.Close()
	return bytes.Clone(k.lib.ItemData(item.Get())), nil
}

// PublicKey derives a new, independently owned public key.
func (k *PrivateKey) PublicKey() (*PublicKey, error) {
	const op = "PrivateKey.PublicKey"
	raw, err := k.handle(op)
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(k)

	p, code := k.lib.ConvertToPublicKey(raw)
	h, err := backend.Wrap(op, p, code, k.lib.DestroyPublicKey)
	if err != nil {
		return nil, err
	}
	return &PublicKey{lib: k.lib, h: h}, nil
}

// KeyLen returns the modulus length in bytes, or 0 if the public key cannot
// be derived. KeySize reports the failure instead.
func (k *PrivateKey) KeyLen() int {
	n, err := k.KeySize()
	if err != nil {
		return 0
	}
	return n
}

// KeySize returns the modulus length in bytes.
func (k *PrivateKey) KeySize() (int, error) {
	pub, err := k.PublicKey()
	if err != nil {
		return 0, err
	}
	defer pub.Close()
	return pub.KeySize()
}

// Encrypt encrypts data with the public half of the key.
func (k *PrivateKey) Encrypt(padding Padding, data []byte) ([]byte, error) {
	if _, _, err := padding.mechanism(); err != nil {
		return nil, backend.Invalid("PrivateKey.Encrypt", err)
	}
	pub, err := k.PublicKey()
	if err != nil {
		return nil, err
	}
	defer pub.Close()
	return pub.Encrypt(padding, data)
}

// Decrypt decrypts data, which must be exactly one modulus long.
func (k *PrivateKey) Decrypt(padding Padding, data []byte) ([]byte, error) {
	const op = "PrivateKey.Decrypt"
	mech, params, err := padding.mechanism()
	if err != nil {
		return nil, backend.Invalid(op, err)
	}
	raw, err := k.handle(op)
	if err != nil {
		return nil, err
	}
	size, err := k.KeySize()
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(k)

	out := make([]byte, size)
	n, code := k.lib.PrivDecrypt(raw, mech, params, out, data)
	if err := backend.Check(op, code); err != nil {
		return nil, err
	}
	return out[:n], nil
}

// Close releases the native key. It is safe to call more than once.
func (k *PrivateKey) Close() {
	if k == nil {
		return
	}
	k.h.Close()
}
