package pkey

import (
	"bytes"
	"runtime"

	"github.com/coinbase/pk11-go/internal/bindings"
	"github.com/coinbase/pk11-go/pkg/pk11"
	"github.com/coinbase/pk11-go/pkg/pk11/internal/backend"
)

// PublicKey is an RSA public key held by the native library. Encrypt may be
// called from several goroutines at once; Close must not race with other
// methods.
type PublicKey struct {
	lib bindings.Library
	h   *backend.Owned[bindings.PublicKey]
}

// LoadPublicKey imports a DER encoded SubjectPublicKeyInfo.
func LoadPublicKey(der []byte) (*PublicKey, error) {
	const op = "LoadPublicKey"
	if err := pk11.Initialize(); err != nil {
		return nil, err
	}
	lib := backend.Lib()

	sp, code := lib.DecodeSubjectPublicKeyInfo(der)
	spki, err := backend.Wrap(op, sp, code, lib.DestroySubjectPublicKeyInfo)
	if err != nil {
		return nil, err
	}
	defer spki.Close()

	p, code := lib.ExtractPublicKey(spki.Get())
	h, err := backend.Wrap(op, p, code, lib.DestroyPublicKey)
	if err != nil {
		return nil, err
	}
	return &PublicKey{lib: lib, h: h}, nil
}

func (k *PublicKey) handle(op string) (bindings.PublicKey, error) {
	if k == nil || !k.h.Valid() {
		return 0, backend.StateErr(op, ErrClosed)
	}
	return k.h.Get(), nil
}

// Save exports the key as DER encoded SubjectPublicKeyInfo.
func (k *PublicKey) Save() ([]byte, error) {
	const op = "PublicKey.Save"
	raw, err := k.handle(op)
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(k)

	it, code := k.lib.EncodeSubjectPublicKeyInfo(raw)
	item, err := backend.Wrap(op, it, code, k.lib.FreeItem)
	if err != nil {
		return nil, err
	}
	defer item.Close()
	return bytes.Clone(k.lib.ItemData(item.Get())), nil
}

// KeyLen returns the modulus length in bytes, or 0 for a closed key.
func (k *PublicKey) KeyLen() int {
	raw, err := k.handle("PublicKey.KeyLen")
	if err != nil {
		return 0
	}
	defer runtime.KeepAlive(k)
	return k.lib.PublicKeyStrength(raw)
}

// KeySize returns the modulus length in bytes.
func (k *PublicKey) KeySize() (int, error) {
	const op = "PublicKey.KeySize"
	raw, err := k.handle(op)
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(k)
	n := k.lib.PublicKeyStrength(raw)
	if n <= 0 {
		return 0, backend.Native(op, bindings.SEC_ERROR_INVALID_KEY)
	}
	return n, nil
}

// Encrypt encrypts data. The output is one modulus long.
func (k *PublicKey) Encrypt(padding Padding, data []byte) ([]byte, error) {
	const op = "PublicKey.Encrypt"
	mech, params, err := padding.mechanism()
	if err != nil {
		return nil, backend.Invalid(op, err)
	}
	size, err := k.KeySize()
	if err != nil {
		return nil, err
	}
	raw, err := k.handle(op)
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(k)

	out := make([]byte, size)
	n, code := k.lib.PubEncrypt(raw, mech, params, out, data)
	if err := backend.Check(op, code); err != nil {
		return nil, err
	}
	return out[:n], nil
}

// Close releases the native key. It is safe to call more than once.
func (k *PublicKey) Close() {
	if k == nil {
		return
	}
	k.h.Close()
}
