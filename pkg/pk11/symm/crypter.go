package symm

import (
	"context"
	"fmt"
	"runtime"

	"github.com/coinbase/pk11-go/internal/bindings"
	"github.com/coinbase/pk11-go/pkg/pk11"
	"github.com/coinbase/pk11-go/pkg/pk11/internal/backend"
)

// headroom is added to every output buffer to absorb a block the native
// layer flushes from earlier calls.
const headroom = 128

// Crypter is a streaming block cipher. It is not safe for concurrent use.
type Crypter struct {
	kind Kind
	pad  bool

	lib bindings.Library
	ctx *backend.Owned[bindings.Context]
}

// New returns an unconfigured Crypter for kind. With pad set, encryption
// appends PKCS#7 padding and decryption removes it.
func New(kind Kind, pad bool) *Crypter {
	return &Crypter{kind: kind, pad: pad}
}

// NewCrypter returns a Crypter that is already initialized.
func NewCrypter(kind Kind, pad bool, mode Mode, key, iv []byte) (*Crypter, error) {
	c := New(kind, pad)
	if err := c.Init(mode, key, iv); err != nil {
		return nil, err
	}
	return c, nil
}

// Kind returns the cipher the Crypter was built for.
func (c *Crypter) Kind() Kind { return c.kind }

// Padded reports whether PKCS#7 padding is applied.
func (c *Crypter) Padded() bool { return c.pad }

// Init discards any active context and starts a new one. The key must be
// exactly Kind.KeyLen bytes and, for CBC, the IV exactly one block. ECB
// ignores the IV. Arguments are checked before the native library is touched.
func (c *Crypter) Init(mode Mode, key, iv []byte) error {
	const op = "Crypter.Init"
	c.reset()

	mech, ok := c.kind.mechanism(c.pad)
	if !ok {
		return backend.Invalid(op, fmt.Errorf("%w: %v", ErrUnsupportedKind, c.kind))
	}
	attr, ok := mode.operation()
	if !ok {
		return backend.Invalid(op, fmt.Errorf("%w: %v", ErrInvalidMode, mode))
	}
	if want := c.kind.KeyLen(); len(key) != want {
		return backend.Invalid(op, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidKeyLength, len(key), want))
	}
	if !mech.UsesIV() {
		iv = nil
	} else if want := c.kind.IVLen(); len(iv) != want {
		return backend.Invalid(op, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidIVLength, len(iv), want))
	}

	if err := pk11.Initialize(); err != nil {
		return err
	}
	lib := backend.Lib()

	s, code := lib.BestSlot(mech)
	slot, err := backend.Wrap(op, s, code, lib.FreeSlot)
	if err != nil {
		return err
	}
	defer slot.Close()

	k, code := lib.ImportSymKey(slot.Get(), mech, attr, key)
	symKey, err := backend.Wrap(op, k, code, lib.FreeSymKey)
	if err != nil {
		return err
	}
	defer symKey.Close()

	p, code := lib.ParamFromIV(mech, iv)
	param, err := backend.Wrap(op, p, code, lib.FreeItem)
	if err != nil {
		return err
	}
	defer param.Close()

	h, code := lib.CreateContextBySymKey(mech, attr, symKey.Get(), param.Get())
	ctx, err := backend.Wrap(op, h, code, lib.DestroyContext)
	if err != nil {
		return err
	}
	c.lib, c.ctx = lib, ctx
	backend.Logger().Debug(context.Background(), "cipher context created", "kind", c.kind, "mode", mode, "pad", c.pad)
	return nil
}

// Update feeds data through the cipher and returns whatever output is ready.
// The result may be shorter than data while a block is buffered.
func (c *Crypter) Update(data []byte) ([]byte, error) {
	const op = "Crypter.Update"
	if !c.ctx.Valid() {
		return nil, backend.StateErr(op, ErrContextNotInitialized)
	}
	defer runtime.KeepAlive(c)

	out := make([]byte, len(data)+headroom)
	n, code := c.lib.CipherOp(c.ctx.Get(), out, data)
	if err := backend.Check(op, code); err != nil {
		return nil, err
	}
	return out[:n], nil
}

// Finalize flushes the last block and seals the context. The context is
// released whether or not the flush succeeds.
func (c *Crypter) Finalize() ([]byte, error) {
	const op = "Crypter.Finalize"
	if !c.ctx.Valid() {
		return nil, backend.StateErr(op, ErrContextNotInitialized)
	}
	defer runtime.KeepAlive(c)
	defer c.reset()

	out := make([]byte, headroom)
	n, code := c.lib.CipherFinal(c.ctx.Get(), out)
	if err := backend.Check(op, code); err != nil {
		return nil, err
	}
	return out[:n], nil
}

// FinalizeWith runs data through Update and then Finalize, returning both
// outputs joined. The context is sealed on every path.
func (c *Crypter) FinalizeWith(data []byte) ([]byte, error) {
	head, err := c.Update(data)
	if err != nil {
		c.reset()
		return nil, err
	}
	tail, err := c.Finalize()
	if err != nil {
		return nil, err
	}
	return append(head, tail...), nil
}

// Close releases the active context, if any. The Crypter can be initialized
// again afterwards.
func (c *Crypter) Close() {
	c.reset()
}

func (c *Crypter) reset() {
	if c.ctx != nil {
		c.ctx.Close()
		c.ctx = nil
	}
}

// Encrypt encrypts data in one call.
func Encrypt(kind Kind, pad bool, key, iv, data []byte) ([]byte, error) {
	return oneShot(kind, pad, ModeEncrypt, key, iv, data)
}

// Decrypt decrypts data in one call.
func Decrypt(kind Kind, pad bool, key, iv, data []byte) ([]byte, error) {
	return oneShot(kind, pad, ModeDecrypt, key, iv, data)
}

func oneShot(kind Kind, pad bool, mode Mode, key, iv, data []byte) ([]byte, error) {
	c, err := NewCrypter(kind, pad, mode, key, iv)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.FinalizeWith(data)
}
