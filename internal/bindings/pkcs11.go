//go:build cgo

package bindings

import (
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"math/big"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/miekg/pkcs11"
)

// p11 drives a PKCS#11 module. Keys live as session objects on one long-lived
// session opened at Init; every cipher context gets a dedicated session so
// that streaming operations do not interfere with each other.
type p11 struct {
	opts PKCS11Options

	mu          sync.RWMutex
	initialized bool
	ctx         *pkcs11.Ctx
	slotID      uint
	session     pkcs11.SessionHandle
	mechs       map[Mechanism]bool

	// opMu serializes operations on the shared session.
	opMu sync.Mutex

	objs *registry
}

type p11Slot struct {
	id uint
}

type p11PrivateKey struct {
	obj pkcs11.ObjectHandle
}

type p11PublicKey struct {
	obj pkcs11.ObjectHandle
}

type p11SPKI struct {
	pub any
}

type p11SymKey struct {
	obj  pkcs11.ObjectHandle
	mech Mechanism
	op   Operation
}

type p11Context struct {
	mu      sync.Mutex
	session pkcs11.SessionHandle
	key     pkcs11.ObjectHandle
	op      Operation
	done    bool
}

var _ Library = (*p11)(nil)
var _ LiveCounter = (*p11)(nil)

// NewPKCS11 returns an engine for the module at opts.ModulePath. The module is
// loaded by Init.
func NewPKCS11(opts PKCS11Options) (Library, error) {
	if opts.ModulePath == "" {
		return nil, ErrNoModule
	}
	return &p11{opts: opts, objs: newRegistry()}, nil
}

func (p *p11) Name() string { return "pkcs11:" + p.opts.ModulePath }

func (p *p11) Live() int { return p.objs.len() }

func (p *p11) Init() Code {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return OK
	}

	ctx := pkcs11.New(p.opts.ModulePath)
	if ctx == nil {
		return PR_LOAD_LIBRARY_ERROR
	}
	if err := ctx.Initialize(); err != nil && !isCKR(err, pkcs11.CKR_CRYPTOKI_ALREADY_INITIALIZED) {
		ctx.Destroy()
		return p11Code(err)
	}

	fail := func(code Code) Code {
		_ = ctx.Finalize()
		ctx.Destroy()
		return code
	}

	slot, code := p.pickSlot(ctx)
	if code != OK {
		return fail(code)
	}
	sh, err := ctx.OpenSession(slot, pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		return fail(p11Code(err))
	}
	if p.opts.PIN != "" {
		if err := ctx.Login(sh, pkcs11.CKU_USER, p.opts.PIN); err != nil && !isCKR(err, pkcs11.CKR_USER_ALREADY_LOGGED_IN) {
			_ = ctx.CloseSession(sh)
			return fail(p11Code(err))
		}
	}
	list, err := ctx.GetMechanismList(slot)
	if err != nil {
		_ = ctx.CloseSession(sh)
		return fail(p11Code(err))
	}
	mechs := make(map[Mechanism]bool, len(list))
	for _, m := range list {
		mechs[Mechanism(m.Mechanism)] = true
	}

	p.ctx = ctx
	p.slotID = slot
	p.session = sh
	p.mechs = mechs
	p.initialized = true
	return OK
}

func (p *p11) pickSlot(ctx *pkcs11.Ctx) (uint, Code) {
	slots, err := ctx.GetSlotList(true)
	if err != nil {
		return 0, p11Code(err)
	}
	if len(slots) == 0 {
		return 0, SEC_ERROR_NO_TOKEN
	}
	switch {
	case p.opts.SlotID != nil:
		for _, id := range slots {
			if id == *p.opts.SlotID {
				return id, OK
			}
		}
		return 0, SEC_ERROR_NO_TOKEN
	case p.opts.TokenLabel != "":
		for _, id := range slots {
			info, err := ctx.GetTokenInfo(id)
			if err != nil {
				continue
			}
			if strings.TrimSpace(info.Label) == strings.TrimSpace(p.opts.TokenLabel) {
				return id, OK
			}
		}
		return 0, SEC_ERROR_NO_TOKEN
	default:
		return slots[0], OK
	}
}

func (p *p11) Shutdown() Code {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return SEC_ERROR_NOT_INITIALIZED
	}
	if p.objs.len() > 0 {
		return SEC_ERROR_BUSY
	}
	if p.opts.PIN != "" {
		_ = p.ctx.Logout(p.session)
	}
	_ = p.ctx.CloseSession(p.session)
	err := p.ctx.Finalize()
	p.ctx.Destroy()
	p.ctx = nil
	p.initialized = false
	if err != nil {
		return p11Code(err)
	}
	return OK
}

// withSession runs fn on the shared session.
func (p *p11) withSession(fn func(ctx *pkcs11.Ctx, sh pkcs11.SessionHandle) error) Code {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized {
		return SEC_ERROR_NOT_INITIALIZED
	}
	p.opMu.Lock()
	defer p.opMu.Unlock()
	if err := fn(p.ctx, p.session); err != nil {
		return p11Code(err)
	}
	return OK
}

func (p *p11) ready() Code {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized {
		return SEC_ERROR_NOT_INITIALIZED
	}
	return OK
}

func (p *p11) InternalKeySlot() (Slot, Code) {
	if c := p.ready(); c != OK {
		return 0, c
	}
	p.mu.RLock()
	id := p.slotID
	p.mu.RUnlock()
	return Slot(p.objs.put(&p11Slot{id: id})), OK
}

func (p *p11) BestSlot(mech Mechanism) (Slot, Code) {
	if c := p.ready(); c != OK {
		return 0, c
	}
	p.mu.RLock()
	id, ok := p.slotID, p.mechs[mech]
	p.mu.RUnlock()
	if !ok {
		return 0, SEC_ERROR_NO_TOKEN
	}
	return Slot(p.objs.put(&p11Slot{id: id})), OK
}

func (p *p11) FreeSlot(s Slot) {
	release[*p11Slot](p.objs, uintptr(s))
}

func (p *p11) slot(s Slot) bool {
	_, ok := lookup[*p11Slot](p.objs, uintptr(s))
	return ok
}

func (p *p11) destroyObject(obj pkcs11.ObjectHandle) {
	p.withSession(func(ctx *pkcs11.Ctx, sh pkcs11.SessionHandle) error {
		return ctx.DestroyObject(sh, obj)
	})
}

func (p *p11) createObject(tmpl []*pkcs11.Attribute) (pkcs11.ObjectHandle, Code) {
	var obj pkcs11.ObjectHandle
	code := p.withSession(func(ctx *pkcs11.Ctx, sh pkcs11.SessionHandle) error {
		var err error
		obj, err = ctx.CreateObject(sh, tmpl)
		return err
	})
	return obj, code
}

func (p *p11) attributes(obj pkcs11.ObjectHandle, types ...uint) ([][]byte, Code) {
	query := make([]*pkcs11.Attribute, len(types))
	for i, t := range types {
		query[i] = pkcs11.NewAttribute(t, nil)
	}
	var got []*pkcs11.Attribute
	code := p.withSession(func(ctx *pkcs11.Ctx, sh pkcs11.SessionHandle) error {
		var err error
		got, err = ctx.GetAttributeValue(sh, obj, query)
		return err
	})
	if code != OK {
		return nil, code
	}
	if len(got) != len(types) {
		return nil, SEC_ERROR_PKCS11_GENERAL_ERROR
	}
	out := make([][]byte, len(got))
	for i, a := range got {
		out[i] = a.Value
	}
	return out, OK
}

// objectIdentity labels every object created by the engine so it can be
// traced on the token.
func objectIdentity() []*pkcs11.Attribute {
	id := uuid.New()
	return []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, "pk11-go-"+id.String()),
		pkcs11.NewAttribute(pkcs11.CKA_ID, id[:]),
	}
}

func (p *p11) ImportPrivateKeyInfo(s Slot, der []byte) (PrivateKey, Code) {
	if c := p.ready(); c != OK {
		return 0, c
	}
	if !p.slot(s) {
		return 0, SEC_ERROR_NO_SLOT_SELECTED
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return 0, SEC_ERROR_BAD_DER
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok || len(key.Primes) != 2 {
		return 0, SEC_ERROR_UNSUPPORTED_KEYALG
	}
	key.Precompute()

	tmpl := append([]*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PRIVATE_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_RSA),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, false),
		pkcs11.NewAttribute(pkcs11.CKA_PRIVATE, true),
		pkcs11.NewAttribute(pkcs11.CKA_SENSITIVE, false),
		pkcs11.NewAttribute(pkcs11.CKA_EXTRACTABLE, true),
		pkcs11.NewAttribute(pkcs11.CKA_DECRYPT, true),
		pkcs11.NewAttribute(pkcs11.CKA_MODULUS, key.N.Bytes()),
		pkcs11.NewAttribute(pkcs11.CKA_PUBLIC_EXPONENT, big.NewInt(int64(key.E)).Bytes()),
		pkcs11.NewAttribute(pkcs11.CKA_PRIVATE_EXPONENT, key.D.Bytes()),
		pkcs11.NewAttribute(pkcs11.CKA_PRIME_1, key.Primes[0].Bytes()),
		pkcs11.NewAttribute(pkcs11.CKA_PRIME_2, key.Primes[1].Bytes()),
		pkcs11.NewAttribute(pkcs11.CKA_EXPONENT_1, key.Precomputed.Dp.Bytes()),
		pkcs11.NewAttribute(pkcs11.CKA_EXPONENT_2, key.Precomputed.Dq.Bytes()),
		pkcs11.NewAttribute(pkcs11.CKA_COEFFICIENT, key.Precomputed.Qinv.Bytes()),
	}, objectIdentity()...)

	obj, code := p.createObject(tmpl)
	if code != OK {
		return 0, code
	}
	return PrivateKey(p.objs.put(&p11PrivateKey{obj: obj})), OK
}

func (p *p11) GenerateKeyPair(s Slot, bits int, exponent int) (PrivateKey, PublicKey, Code) {
	if c := p.ready(); c != OK {
		return 0, 0, c
	}
	if !p.slot(s) {
		return 0, 0, SEC_ERROR_NO_SLOT_SELECTED
	}
	if bits <= 0 || exponent <= 0 {
		return 0, 0, SEC_ERROR_INVALID_ARGS
	}
	ident := objectIdentity()
	pubTmpl := append([]*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, false),
		pkcs11.NewAttribute(pkcs11.CKA_ENCRYPT, true),
		pkcs11.NewAttribute(pkcs11.CKA_MODULUS_BITS, bits),
		pkcs11.NewAttribute(pkcs11.CKA_PUBLIC_EXPONENT, big.NewInt(int64(exponent)).Bytes()),
	}, ident...)
	privTmpl := append([]*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, false),
		pkcs11.NewAttribute(pkcs11.CKA_PRIVATE, true),
		pkcs11.NewAttribute(pkcs11.CKA_SENSITIVE, false),
		pkcs11.NewAttribute(pkcs11.CKA_EXTRACTABLE, true),
		pkcs11.NewAttribute(pkcs11.CKA_DECRYPT, true),
	}, ident...)
	mech := []*pkcs11.Mechanism{pkcs11.NewMechanism(uint(CKM_RSA_PKCS_KEY_PAIR_GEN), nil)}

	var pubObj, privObj pkcs11.ObjectHandle
	code := p.withSession(func(ctx *pkcs11.Ctx, sh pkcs11.SessionHandle) error {
		var err error
		pubObj, privObj, err = ctx.GenerateKeyPair(sh, mech, pubTmpl, privTmpl)
		return err
	})
	if code != OK {
		return 0, 0, SEC_ERROR_KEYGEN_FAIL
	}
	priv := PrivateKey(p.objs.put(&p11PrivateKey{obj: privObj}))
	pub := PublicKey(p.objs.put(&p11PublicKey{obj: pubObj}))
	return priv, pub, OK
}

func (p *p11) ExportPrivateKeyInfo(k PrivateKey) (Item, Code) {
	if c := p.ready(); c != OK {
		return 0, c
	}
	priv, ok := lookup[*p11PrivateKey](p.objs, uintptr(k))
	if !ok {
		return 0, SEC_ERROR_INVALID_ARGS
	}
	vals, code := p.attributes(priv.obj,
		pkcs11.CKA_MODULUS,
		pkcs11.CKA_PUBLIC_EXPONENT,
		pkcs11.CKA_PRIVATE_EXPONENT,
		pkcs11.CKA_PRIME_1,
		pkcs11.CKA_PRIME_2,
	)
	if code != OK {
		return 0, code
	}
	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{
			N: new(big.Int).SetBytes(vals[0]),
			E: int(new(big.Int).SetBytes(vals[1]).Int64()),
		},
		D:      new(big.Int).SetBytes(vals[2]),
		Primes: []*big.Int{new(big.Int).SetBytes(vals[3]), new(big.Int).SetBytes(vals[4])},
	}
	key.Precompute()
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return 0, SEC_ERROR_LIBRARY_FAILURE
	}
	return Item(p.objs.put(&softItem{data: der})), OK
}

func (p *p11) publicFromObject(obj pkcs11.ObjectHandle) (*rsa.PublicKey, Code) {
	vals, code := p.attributes(obj, pkcs11.CKA_MODULUS, pkcs11.CKA_PUBLIC_EXPONENT)
	if code != OK {
		return nil, code
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(vals[0]),
		E: int(new(big.Int).SetBytes(vals[1]).Int64()),
	}, OK
}

func (p *p11) createPublic(pub *rsa.PublicKey) (PublicKey, Code) {
	tmpl := append([]*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PUBLIC_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_RSA),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, false),
		pkcs11.NewAttribute(pkcs11.CKA_ENCRYPT, true),
		pkcs11.NewAttribute(pkcs11.CKA_MODULUS, pub.N.Bytes()),
		pkcs11.NewAttribute(pkcs11.CKA_PUBLIC_EXPONENT, big.NewInt(int64(pub.E)).Bytes()),
	}, objectIdentity()...)
	obj, code := p.createObject(tmpl)
	if code != OK {
		return 0, code
	}
	return PublicKey(p.objs.put(&p11PublicKey{obj: obj})), OK
}

func (p *p11) ConvertToPublicKey(k PrivateKey) (PublicKey, Code) {
	if c := p.ready(); c != OK {
		return 0, c
	}
	priv, ok := lookup[*p11PrivateKey](p.objs, uintptr(k))
	if !ok {
		return 0, SEC_ERROR_INVALID_ARGS
	}
	pub, code := p.publicFromObject(priv.obj)
	if code != OK {
		return 0, code
	}
	return p.createPublic(pub)
}

func (p *p11) DestroyPrivateKey(k PrivateKey) {
	if priv, ok := release[*p11PrivateKey](p.objs, uintptr(k)); ok {
		p.destroyObject(priv.obj)
	}
}

func (p *p11) DecodeSubjectPublicKeyInfo(der []byte) (SPKI, Code) {
	if c := p.ready(); c != OK {
		return 0, c
	}
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return 0, SEC_ERROR_BAD_DER
	}
	return SPKI(p.objs.put(&p11SPKI{pub: pub})), OK
}

func (p *p11) ExtractPublicKey(spki SPKI) (PublicKey, Code) {
	if c := p.ready(); c != OK {
		return 0, c
	}
	info, ok := lookup[*p11SPKI](p.objs, uintptr(spki))
	if !ok {
		return 0, SEC_ERROR_INVALID_ARGS
	}
	pub, ok := info.pub.(*rsa.PublicKey)
	if !ok {
		return 0, SEC_ERROR_UNSUPPORTED_KEYALG
	}
	return p.createPublic(pub)
}

func (p *p11) DestroySubjectPublicKeyInfo(spki SPKI) {
	release[*p11SPKI](p.objs, uintptr(spki))
}

func (p *p11) EncodeSubjectPublicKeyInfo(k PublicKey) (Item, Code) {
	if c := p.ready(); c != OK {
		return 0, c
	}
	key, ok := lookup[*p11PublicKey](p.objs, uintptr(k))
	if !ok {
		return 0, SEC_ERROR_INVALID_ARGS
	}
	pub, code := p.publicFromObject(key.obj)
	if code != OK {
		return 0, code
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return 0, SEC_ERROR_LIBRARY_FAILURE
	}
	return Item(p.objs.put(&softItem{data: der})), OK
}

func (p *p11) PublicKeyStrength(k PublicKey) int {
	key, ok := lookup[*p11PublicKey](p.objs, uintptr(k))
	if !ok {
		return 0
	}
	vals, code := p.attributes(key.obj, pkcs11.CKA_MODULUS)
	if code != OK {
		return 0
	}
	return (new(big.Int).SetBytes(vals[0]).BitLen() + 7) / 8
}

func (p *p11) DestroyPublicKey(k PublicKey) {
	if pub, ok := release[*p11PublicKey](p.objs, uintptr(k)); ok {
		p.destroyObject(pub.obj)
	}
}

func rsaMechanism(mech Mechanism, params *OAEPParams) []*pkcs11.Mechanism {
	if params == nil {
		return []*pkcs11.Mechanism{pkcs11.NewMechanism(uint(mech), nil)}
	}
	oaep := pkcs11.NewOAEPParams(uint(params.HashAlg), uint(params.MGF), params.Source, params.SourceData)
	return []*pkcs11.Mechanism{pkcs11.NewMechanism(uint(mech), oaep)}
}

func (p *p11) PubEncrypt(k PublicKey, mech Mechanism, params *OAEPParams, out, in []byte) (int, Code) {
	key, ok := lookup[*p11PublicKey](p.objs, uintptr(k))
	if !ok {
		if c := p.ready(); c != OK {
			return 0, c
		}
		return 0, SEC_ERROR_INVALID_ARGS
	}
	var ct []byte
	code := p.withSession(func(ctx *pkcs11.Ctx, sh pkcs11.SessionHandle) error {
		if err := ctx.EncryptInit(sh, rsaMechanism(mech, params), key.obj); err != nil {
			return err
		}
		var err error
		ct, err = ctx.Encrypt(sh, in)
		return err
	})
	if code != OK {
		return 0, code
	}
	if len(out) < len(ct) {
		return 0, SEC_ERROR_OUTPUT_LEN
	}
	return copy(out, ct), OK
}

func (p *p11) PrivDecrypt(k PrivateKey, mech Mechanism, params *OAEPParams, out, in []byte) (int, Code) {
	key, ok := lookup[*p11PrivateKey](p.objs, uintptr(k))
	if !ok {
		if c := p.ready(); c != OK {
			return 0, c
		}
		return 0, SEC_ERROR_INVALID_ARGS
	}
	var pt []byte
	code := p.withSession(func(ctx *pkcs11.Ctx, sh pkcs11.SessionHandle) error {
		if err := ctx.DecryptInit(sh, rsaMechanism(mech, params), key.obj); err != nil {
			return err
		}
		var err error
		pt, err = ctx.Decrypt(sh, in)
		return err
	})
	if code != OK {
		return 0, code
	}
	defer zero(pt)
	if len(out) < len(pt) {
		return 0, SEC_ERROR_OUTPUT_LEN
	}
	return copy(out, pt), OK
}

func (p *p11) ItemData(it Item) []byte {
	item, ok := lookup[*softItem](p.objs, uintptr(it))
	if !ok {
		return nil
	}
	return item.data
}

func (p *p11) FreeItem(it Item) {
	if item, ok := release[*softItem](p.objs, uintptr(it)); ok {
		zero(item.data)
	}
}

func (p *p11) ImportSymKey(s Slot, mech Mechanism, op Operation, key []byte) (SymKey, Code) {
	if c := p.ready(); c != OK {
		return 0, c
	}
	if !p.slot(s) {
		return 0, SEC_ERROR_NO_SLOT_SELECTED
	}
	if op != CKA_ENCRYPT && op != CKA_DECRYPT {
		return 0, SEC_ERROR_INVALID_ARGS
	}
	keyType := uint(pkcs11.CKK_DES)
	switch mech.BlockSize() {
	case 16:
		keyType = pkcs11.CKK_AES
	case 8:
	default:
		return 0, SEC_ERROR_INVALID_ALGORITHM
	}
	tmpl := append([]*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_SECRET_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, keyType),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, false),
		pkcs11.NewAttribute(pkcs11.CKA_SENSITIVE, false),
		pkcs11.NewAttribute(uint(op), true),
		pkcs11.NewAttribute(pkcs11.CKA_VALUE, key),
	}, objectIdentity()...)
	obj, code := p.createObject(tmpl)
	if code != OK {
		return 0, code
	}
	return SymKey(p.objs.put(&p11SymKey{obj: obj, mech: mech, op: op})), OK
}

func (p *p11) FreeSymKey(k SymKey) {
	if key, ok := release[*p11SymKey](p.objs, uintptr(k)); ok {
		p.destroyObject(key.obj)
	}
}

func (p *p11) ParamFromIV(mech Mechanism, iv []byte) (Item, Code) {
	if c := p.ready(); c != OK {
		return 0, c
	}
	if mech.BlockSize() == 0 {
		return 0, SEC_ERROR_INVALID_ALGORITHM
	}
	var data []byte
	if mech.UsesIV() {
		data = append([]byte(nil), iv...)
	}
	return Item(p.objs.put(&softItem{data: data})), OK
}

// CreateContextBySymKey copies the key into a dedicated session, so the
// context stays usable after the caller frees the key.
func (p *p11) CreateContextBySymKey(mech Mechanism, op Operation, k SymKey, param Item) (Context, Code) {
	key, ok := lookup[*p11SymKey](p.objs, uintptr(k))
	if !ok {
		if c := p.ready(); c != OK {
			return 0, c
		}
		return 0, SEC_ERROR_INVALID_ARGS
	}
	if key.op != op {
		return 0, SEC_ERROR_INVALID_KEY
	}
	var iv []byte
	if mech.UsesIV() {
		item, ok := lookup[*softItem](p.objs, uintptr(param))
		if !ok {
			return 0, SEC_ERROR_INVALID_ARGS
		}
		iv = item.data
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized {
		return 0, SEC_ERROR_NOT_INITIALIZED
	}
	sh, err := p.ctx.OpenSession(p.slotID, pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		return 0, p11Code(err)
	}
	copied, err := p.ctx.CopyObject(sh, key.obj, nil)
	if err != nil {
		_ = p.ctx.CloseSession(sh)
		return 0, p11Code(err)
	}
	m := []*pkcs11.Mechanism{pkcs11.NewMechanism(uint(mech), iv)}
	if op == CKA_ENCRYPT {
		err = p.ctx.EncryptInit(sh, m, copied)
	} else {
		err = p.ctx.DecryptInit(sh, m, copied)
	}
	if err != nil {
		_ = p.ctx.DestroyObject(sh, copied)
		_ = p.ctx.CloseSession(sh)
		return 0, p11Code(err)
	}
	return Context(p.objs.put(&p11Context{session: sh, key: copied, op: op})), OK
}

func (p *p11) withContext(c Context, fn func(ctx *pkcs11.Ctx, cc *p11Context) ([]byte, error), out []byte) (int, Code) {
	cc, ok := lookup[*p11Context](p.objs, uintptr(c))
	if !ok {
		if code := p.ready(); code != OK {
			return 0, code
		}
		return 0, SEC_ERROR_INVALID_ARGS
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized {
		return 0, SEC_ERROR_NOT_INITIALIZED
	}
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.done {
		return 0, PR_INVALID_STATE_ERROR
	}
	res, err := fn(p.ctx, cc)
	if err != nil {
		return 0, p11Code(err)
	}
	if len(out) < len(res) {
		return 0, SEC_ERROR_OUTPUT_LEN
	}
	return copy(out, res), OK
}

func (p *p11) CipherOp(c Context, out, in []byte) (int, Code) {
	return p.withContext(c, func(ctx *pkcs11.Ctx, cc *p11Context) ([]byte, error) {
		if cc.op == CKA_ENCRYPT {
			return ctx.EncryptUpdate(cc.session, in)
		}
		return ctx.DecryptUpdate(cc.session, in)
	}, out)
}

func (p *p11) CipherFinal(c Context, out []byte) (int, Code) {
	return p.withContext(c, func(ctx *pkcs11.Ctx, cc *p11Context) ([]byte, error) {
		cc.done = true
		if cc.op == CKA_ENCRYPT {
			return ctx.EncryptFinal(cc.session)
		}
		return ctx.DecryptFinal(cc.session)
	}, out)
}

// DestroyContext closes the context session, which also terminates an
// unfinished operation and drops the copied key.
func (p *p11) DestroyContext(c Context) {
	cc, ok := release[*p11Context](p.objs, uintptr(c))
	if !ok {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized {
		return
	}
	cc.mu.Lock()
	defer cc.mu.Unlock()
	_ = p.ctx.DestroyObject(cc.session, cc.key)
	_ = p.ctx.CloseSession(cc.session)
}

func isCKR(err error, ckr uint) bool {
	var e pkcs11.Error
	return errors.As(err, &e) && uint(e) == ckr
}

// p11Code maps a CKR return value onto the NSS code space.
func p11Code(err error) Code {
	var e pkcs11.Error
	if !errors.As(err, &e) {
		return SEC_ERROR_LIBRARY_FAILURE
	}
	switch e {
	case pkcs11.CKR_CRYPTOKI_NOT_INITIALIZED:
		return SEC_ERROR_NOT_INITIALIZED
	case pkcs11.CKR_KEY_HANDLE_INVALID, pkcs11.CKR_KEY_SIZE_RANGE,
		pkcs11.CKR_KEY_TYPE_INCONSISTENT, pkcs11.CKR_KEY_FUNCTION_NOT_PERMITTED:
		return SEC_ERROR_INVALID_KEY
	case pkcs11.CKR_MECHANISM_INVALID, pkcs11.CKR_MECHANISM_PARAM_INVALID:
		return SEC_ERROR_INVALID_ALGORITHM
	case pkcs11.CKR_DATA_LEN_RANGE, pkcs11.CKR_ENCRYPTED_DATA_LEN_RANGE:
		return SEC_ERROR_INPUT_LEN
	case pkcs11.CKR_DATA_INVALID, pkcs11.CKR_ENCRYPTED_DATA_INVALID:
		return SEC_ERROR_BAD_DATA
	case pkcs11.CKR_BUFFER_TOO_SMALL:
		return SEC_ERROR_OUTPUT_LEN
	case pkcs11.CKR_ARGUMENTS_BAD, pkcs11.CKR_ATTRIBUTE_VALUE_INVALID:
		return SEC_ERROR_INVALID_ARGS
	case pkcs11.CKR_TEMPLATE_INCOMPLETE, pkcs11.CKR_TEMPLATE_INCONSISTENT:
		return SEC_ERROR_BAD_TEMPLATE
	case pkcs11.CKR_HOST_MEMORY, pkcs11.CKR_DEVICE_MEMORY:
		return SEC_ERROR_NO_MEMORY
	case pkcs11.CKR_USER_NOT_LOGGED_IN:
		return SEC_ERROR_TOKEN_NOT_LOGGED_IN
	case pkcs11.CKR_PIN_INCORRECT:
		return SEC_ERROR_BAD_PASSWORD
	case pkcs11.CKR_TOKEN_NOT_PRESENT, pkcs11.CKR_SLOT_ID_INVALID:
		return SEC_ERROR_NO_TOKEN
	case pkcs11.CKR_OPERATION_ACTIVE, pkcs11.CKR_OPERATION_NOT_INITIALIZED:
		return PR_INVALID_STATE_ERROR
	case pkcs11.CKR_DEVICE_ERROR:
		return SEC_ERROR_PKCS11_DEVICE_ERROR
	case pkcs11.CKR_FUNCTION_FAILED:
		return SEC_ERROR_PKCS11_FUNCTION_FAILED
	case pkcs11.CKR_GENERAL_ERROR:
		return SEC_ERROR_PKCS11_GENERAL_ERROR
	default:
		return SEC_ERROR_LIBRARY_FAILURE
	}
}
