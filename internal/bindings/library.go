package bindings

// Library is the native ABI consumed by the public packages. It follows the C
// conventions of an NSS-style library: constructors return a null handle plus
// a Code on failure, outputs are written into caller-provided buffers whose
// used length is returned, and every handle has an explicit destroy function.
//
// Destroy functions accept the null handle and unknown handles and do nothing
// with them.
type Library interface {
	// Name identifies the engine, for logs and version output.
	Name() string

	Init() Code
	Shutdown() Code

	InternalKeySlot() (Slot, Code)
	BestSlot(mech Mechanism) (Slot, Code)
	FreeSlot(s Slot)

	ImportPrivateKeyInfo(s Slot, der []byte) (PrivateKey, Code)
	GenerateKeyPair(s Slot, bits int, exponent int) (PrivateKey, PublicKey, Code)
	ExportPrivateKeyInfo(k PrivateKey) (Item, Code)
	ConvertToPublicKey(k PrivateKey) (PublicKey, Code)
	DestroyPrivateKey(k PrivateKey)

	DecodeSubjectPublicKeyInfo(der []byte) (SPKI, Code)
	ExtractPublicKey(spki SPKI) (PublicKey, Code)
	DestroySubjectPublicKeyInfo(spki SPKI)
	EncodeSubjectPublicKeyInfo(k PublicKey) (Item, Code)
	// PublicKeyStrength returns the modulus length in bytes, or 0.
	PublicKeyStrength(k PublicKey) int
	DestroyPublicKey(k PublicKey)

	PubEncrypt(k PublicKey, mech Mechanism, params *OAEPParams, out, in []byte) (int, Code)
	PrivDecrypt(k PrivateKey, mech Mechanism, params *OAEPParams, out, in []byte) (int, Code)

	// ItemData exposes the bytes of an item. The slice aliases native memory
	// and is valid only until FreeItem.
	ItemData(it Item) []byte
	FreeItem(it Item)

	ImportSymKey(s Slot, mech Mechanism, op Operation, key []byte) (SymKey, Code)
	FreeSymKey(k SymKey)
	ParamFromIV(mech Mechanism, iv []byte) (Item, Code)
	CreateContextBySymKey(mech Mechanism, op Operation, k SymKey, param Item) (Context, Code)
	CipherOp(c Context, out, in []byte) (int, Code)
	CipherFinal(c Context, out []byte) (int, Code)
	DestroyContext(c Context)
}

// LiveCounter is implemented by engines that can report how many native
// objects are currently allocated.
type LiveCounter interface {
	Live() int
}
