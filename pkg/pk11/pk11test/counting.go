package pk11test

import (
	"sync"

	"github.com/coinbase/pk11-go/internal/bindings"
)

// Counting forwards every native call to Inner and records how often each
// method was invoked. Failures can be injected per method with FailNext.
type Counting struct {
	Inner bindings.Library

	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bindings.Code
}

var _ bindings.Library = (*Counting)(nil)

// NewCounting wraps inner.
func NewCounting(inner bindings.Library) *Counting {
	return &Counting{
		Inner: inner,
		calls: make(map[string]int),
		fail:  make(map[string]bindings.Code),
	}
}

// Calls returns how often method was invoked.
func (c *Counting) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// Total returns the number of native calls of any kind.
func (c *Counting) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

// Reset clears the counters and pending failures.
func (c *Counting) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.calls)
	clear(c.fail)
}

// FailNext makes the next call of method fail with code without reaching
// Inner.
func (c *Counting) FailNext(method string, code bindings.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail[method] = code
}

// Live forwards to Inner when it can count its objects, else returns -1.
func (c *Counting) Live() int {
	if lc, ok := c.Inner.(bindings.LiveCounter); ok {
		return lc.Live()
	}
	return -1
}

func (c *Counting) hit(method string) bindings.Code {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[method]++
	code, ok := c.fail[method]
	if !ok {
		return bindings.OK
	}
	delete(c.fail, method)
	return code
}

func (c *Counting) Name() string { return "counting(" + c.Inner.Name() + ")" }

func (c *Counting) Init() bindings.Code {
	if code := c.hit("Init"); code != bindings.OK {
		return code
	}
	return c.Inner.Init()
}

func (c *Counting) Shutdown() bindings.Code {
	if code := c.hit("Shutdown"); code != bindings.OK {
		return code
	}
	return c.Inner.Shutdown()
}

func (c *Counting) InternalKeySlot() (bindings.Slot, bindings.Code) {
	if code := c.hit("InternalKeySlot"); code != bindings.OK {
		return 0, code
	}
	return c.Inner.InternalKeySlot()
}

func (c *Counting) BestSlot(mech bindings.Mechanism) (bindings.Slot, bindings.Code) {
	if code := c.hit("BestSlot"); code != bindings.OK {
		return 0, code
	}
	return c.Inner.BestSlot(mech)
}

func (c *Counting) FreeSlot(s bindings.Slot) {
	c.hit("FreeSlot")
	c.Inner.FreeSlot(s)
}

func (c *Counting) ImportPrivateKeyInfo(s bindings.Slot, der []byte) (bindings.PrivateKey, bindings.Code) {
	if code := c.hit("ImportPrivateKeyInfo"); code != bindings.OK {
		return 0, code
	}
	return c.Inner.ImportPrivateKeyInfo(s, der)
}

func (c *Counting) GenerateKeyPair(s bindings.Slot, bits int, exponent int) (bindings.PrivateKey, bindings.PublicKey, bindings.Code) {
	if code := c.hit("GenerateKeyPair"); code != bindings.OK {
		return 0, 0, code
	}
	return c.Inner.GenerateKeyPair(s, bits, exponent)
}

func (c *Counting) ExportPrivateKeyInfo(k bindings.PrivateKey) (bindings.Item, bindings.Code) {
	if code := c.hit("ExportPrivateKeyInfo"); code != bindings.OK {
		return 0, code
	}
	return c.Inner.ExportPrivateKeyInfo(k)
}

func (c *Counting) ConvertToPublicKey(k bindings.PrivateKey) (bindings.PublicKey, bindings.Code) {
	if code := c.hit("ConvertToPublicKey"); code != bindings.OK {
		return 0, code
	}
	return c.Inner.ConvertToPublicKey(k)
}

func (c *Counting) DestroyPrivateKey(k bindings.PrivateKey) {
	c.hit("DestroyPrivateKey")
	c.Inner.DestroyPrivateKey(k)
}

func (c *Counting) DecodeSubjectPublicKeyInfo(der []byte) (bindings.SPKI, bindings.Code) {
	if code := c.hit("DecodeSubjectPublicKeyInfo"); code != bindings.OK {
		return 0, code
	}
	return c.Inner.DecodeSubjectPublicKeyInfo(der)
}

func (c *Counting) ExtractPublicKey(spki bindings.SPKI) (bindings.PublicKey, bindings.Code) {
	if code := c.hit("ExtractPublicKey"); code != bindings.OK {
		return 0, code
	}
	return c.Inner.ExtractPublicKey(spki)
}

func (c *Counting) DestroySubjectPublicKeyInfo(spki bindings.SPKI) {
	c.hit("DestroySubjectPublicKeyInfo")
	c.Inner.DestroySubjectPublicKeyInfo(spki)
}

func (c *Counting) EncodeSubjectPublicKeyInfo(k bindings.PublicKey) (bindings.Item, bindings.Code) {
	if code := c.hit("EncodeSubjectPublicKeyInfo"); code != bindings.OK {
		return 0, code
	}
	return c.Inner.EncodeSubjectPublicKeyInfo(k)
}

func (c *Counting) PublicKeyStrength(k bindings.PublicKey) int {
	if code := c.hit("PublicKeyStrength"); code != bindings.OK {
		return 0
	}
	return c.Inner.PublicKeyStrength(k)
}

func (c *Counting) DestroyPublicKey(k bindings.PublicKey) {
	c.hit("DestroyPublicKey")
	c.Inner.DestroyPublicKey(k)
}

func (c *Counting) PubEncrypt(k bindings.PublicKey, mech bindings.Mechanism, params *bindings.OAEPParams, out, in []byte) (int, bindings.Code) {
	if code := c.hit("PubEncrypt"); code != bindings.OK {
		return 0, code
	}
	return c.Inner.PubEncrypt(k, mech, params, out, in)
}

func (c *Counting) PrivDecrypt(k bindings.PrivateKey, mech bindings.Mechanism, params *bindings.OAEPParams, out, in []byte) (int, bindings.Code) {
	if code := c.hit("PrivDecrypt"); code != bindings.OK {
		return 0, code
	}
	return c.Inner.PrivDecrypt(k, mech, params, out, in)
}

func (c *Counting) ItemData(it bindings.Item) []byte {
	c.hit("ItemData")
	return c.Inner.ItemData(it)
}

func (c *Counting) FreeItem(it bindings.Item) {
	c.hit("FreeItem")
	c.Inner.FreeItem(it)
}

func (c *Counting) ImportSymKey(s bindings.Slot, mech bindings.Mechanism, op bindings.Operation, key []byte) (bindings.SymKey, bindings.Code) {
	if code := c.hit("ImportSymKey"); code != bindings.OK {
		return 0, code
	}
	return c.Inner.ImportSymKey(s, mech, op, key)
}

func (c *Counting) FreeSymKey(k bindings.SymKey) {
	c.hit("FreeSymKey")
	c.Inner.FreeSymKey(k)
}

func (c *Counting) ParamFromIV(mech bindings.Mechanism, iv []byte) (bindings.Item, bindings.Code) {
	if code := c.hit("ParamFromIV"); code != bindings.OK {
		return 0, code
	}
	return c.Inner.ParamFromIV(mech, iv)
}

func (c *Counting) CreateContextBySymKey(mech bindings.Mechanism, op bindings.Operation, k bindings.SymKey, param bindings.Item) (bindings.Context, bindings.Code) {
	if code := c.hit("CreateContextBySymKey"); code != bindings.OK {
		return 0, code
	}
	return c.Inner.CreateContextBySymKey(mech, op, k, param)
}

func (c *Counting) CipherOp(ctx bindings.Context, out, in []byte) (int, bindings.Code) {
	if code := c.hit("CipherOp"); code != bindings.OK {
		return 0, code
	}
	return c.Inner.CipherOp(ctx, out, in)
}

func (c *Counting) CipherFinal(ctx bindings.Context, out []byte) (int, bindings.Code) {
	if code := c.hit("CipherFinal"); code != bindings.OK {
		return 0, code
	}
	return c.Inner.CipherFinal(ctx, out)
}

func (c *Counting) DestroyContext(ctx bindings.Context) {
	c.hit("DestroyContext")
	c.Inner.DestroyContext(ctx)
}
