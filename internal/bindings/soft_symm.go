package bindings

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/subtle"
	"sync"
)

type softSymKey struct {
	mech Mechanism
	op   Operation
	key  []byte
}

// softContext is a streaming block cipher operation. Padded decryption holds
// back the final block until CipherFinal so the padding can be stripped.
type softContext struct {
	mu sync.Mutex

	op    Operation
	pad   bool
	block cipher.Block
	mode  cipher.BlockMode // nil for ECB
	buf   []byte
	done  bool
}

func (s *Soft) ImportSymKey(sl Slot, mech Mechanism, op Operation, key []byte) (SymKey, Code) {
	if c := s.ready(); c != OK {
		return 0, c
	}
	if !s.slot(sl) {
		return 0, SEC_ERROR_NO_SLOT_SELECTED
	}
	if !s.mechs[mech] || mech.BlockSize() == 0 {
		return 0, SEC_ERROR_INVALID_ALGORITHM
	}
	if op != CKA_ENCRYPT && op != CKA_DECRYPT {
		return 0, SEC_ERROR_INVALID_ARGS
	}
	if !validSymKeyLen(mech, len(key)) {
		return 0, SEC_ERROR_INVALID_KEY
	}
	k := &softSymKey{mech: mech, op: op, key: append([]byte(nil), key...)}
	return SymKey(s.objs.put(k)), OK
}

func (s *Soft) FreeSymKey(k SymKey) {
	if key, ok := release[*softSymKey](s.objs, uintptr(k)); ok {
		zero(key.key)
	}
}

// ParamFromIV returns an empty item for mechanisms without an IV.
func (s *Soft) ParamFromIV(mech Mechanism, iv []byte) (Item, Code) {
	if c := s.ready(); c != OK {
		return 0, c
	}
	if mech.BlockSize() == 0 {
		return 0, SEC_ERROR_INVALID_ALGORITHM
	}
	if !mech.UsesIV() {
		return s.newItem(nil), OK
	}
	return s.newItem(append([]byte(nil), iv...)), OK
}

func (s *Soft) CreateContextBySymKey(mech Mechanism, op Operation, k SymKey, param Item) (Context, Code) {
	if c := s.ready(); c != OK {
		return 0, c
	}
	key, ok := lookup[*softSymKey](s.objs, uintptr(k))
	if !ok {
		return 0, SEC_ERROR_INVALID_ARGS
	}
	if key.op != op {
		return 0, SEC_ERROR_INVALID_KEY
	}
	if !s.mechs[mech] || mech.BlockSize() != key.mech.BlockSize() {
		return 0, SEC_ERROR_INVALID_ALGORITHM
	}

	var (
		block cipher.Block
		err   error
	)
	if mech.BlockSize() == aes.BlockSize {
		block, err = aes.NewCipher(key.key)
	} else {
		block, err = des.NewCipher(key.key)
	}
	if err != nil {
		return 0, SEC_ERROR_INVALID_KEY
	}

	ctx := &softContext{op: op, pad: mech.Padded(), block: block}
	if mech.UsesIV() {
		item, ok := lookup[*softItem](s.objs, uintptr(param))
		if !ok || len(item.data) != block.BlockSize() {
			return 0, SEC_ERROR_INVALID_ARGS
		}
		if op == CKA_ENCRYPT {
			ctx.mode = cipher.NewCBCEncrypter(block, item.data)
		} else {
			ctx.mode = cipher.NewCBCDecrypter(block, item.data)
		}
	}
	return Context(s.objs.put(ctx)), OK
}

func (s *Soft) CipherOp(c Context, out, in []byte) (int, Code) {
	if code := s.ready(); code != OK {
		return 0, code
	}
	ctx, ok := lookup[*softContext](s.objs, uintptr(c))
	if !ok {
		return 0, SEC_ERROR_INVALID_ARGS
	}
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if ctx.done {
		return 0, PR_INVALID_STATE_ERROR
	}

	bs := ctx.block.BlockSize()
	if !ctx.pad {
		if len(in)%bs != 0 {
			return 0, SEC_ERROR_INPUT_LEN
		}
		if len(out) < len(in) {
			return 0, SEC_ERROR_OUTPUT_LEN
		}
		ctx.crypt(out[:len(in)], in)
		return len(in), OK
	}

	data := make([]byte, 0, len(ctx.buf)+len(in))
	data = append(data, ctx.buf...)
	data = append(data, in...)
	n := len(data) - len(data)%bs
	if ctx.op == CKA_DECRYPT && n == len(data) && n > 0 {
		n -= bs
	}
	if len(out) < n {
		return 0, SEC_ERROR_OUTPUT_LEN
	}
	ctx.crypt(out[:n], data[:n])
	zero(ctx.buf)
	ctx.buf = append(ctx.buf[:0], data[n:]...)
	zero(data)
	return n, OK
}

func (s *Soft) CipherFinal(c Context, out []byte) (int, Code) {
	if code := s.ready(); code != OK {
		return 0, code
	}
	ctx, ok := lookup[*softContext](s.objs, uintptr(c))
	if !ok {
		return 0, SEC_ERROR_INVALID_ARGS
	}
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if ctx.done {
		return 0, PR_INVALID_STATE_ERROR
	}
	ctx.done = true

	if !ctx.pad {
		return 0, OK
	}

	bs := ctx.block.BlockSize()
	last := make([]byte, bs)
	defer zero(last)

	if ctx.op == CKA_ENCRYPT {
		n := copy(last, ctx.buf)
		p := byte(bs - n)
		for i := n; i < bs; i++ {
			last[i] = p
		}
		if len(out) < bs {
			return 0, SEC_ERROR_OUTPUT_LEN
		}
		ctx.crypt(out[:bs], last)
		return bs, OK
	}

	if len(ctx.buf) != bs {
		return 0, SEC_ERROR_INPUT_LEN
	}
	ctx.crypt(last, ctx.buf)
	n, ok := unpad(last)
	if !ok {
		return 0, SEC_ERROR_BAD_DATA
	}
	if len(out) < n {
		return 0, SEC_ERROR_OUTPUT_LEN
	}
	return copy(out, last[:n]), OK
}

func (s *Soft) DestroyContext(c Context) {
	if ctx, ok := release[*softContext](s.objs, uintptr(c)); ok {
		ctx.mu.Lock()
		zero(ctx.buf)
		ctx.buf = nil
		ctx.mu.Unlock()
	}
}

func (c *softContext) crypt(dst, src []byte) {
	if c.mode != nil {
		c.mode.CryptBlocks(dst, src)
		return
	}
	bs := c.block.BlockSize()
	for i := 0; i < len(src); i += bs {
		if c.op == CKA_ENCRYPT {
			c.block.Encrypt(dst[i:i+bs], src[i:i+bs])
		} else {
			c.block.Decrypt(dst[i:i+bs], src[i:i+bs])
		}
	}
}

// unpad validates PKCS#7 padding on a single block and returns the length of
// the data in front of it.
func unpad(block []byte) (int, bool) {
	bs := len(block)
	p := int(block[bs-1])
	if p == 0 || p > bs {
		return 0, false
	}
	good := 1
	for i := bs - p; i < bs; i++ {
		good &= subtle.ConstantTimeByteEq(block[i], byte(p))
	}
	if good != 1 {
		return 0, false
	}
	return bs - p, true
}

func validSymKeyLen(mech Mechanism, n int) bool {
	if mech.BlockSize() == aes.BlockSize {
		return n == 16 || n == 24 || n == 32
	}
	return n == des.BlockSize
}
