package bindings

import "errors"

// Opaque native handles. The zero value is the null handle: every constructor
// in the ABI returns zero together with a non-zero Code on failure.
type (
	Slot       uintptr
	PrivateKey uintptr
	PublicKey  uintptr
	SPKI       uintptr
	SymKey     uintptr
	Context    uintptr
	Item       uintptr
)

// Mechanism is a PKCS#11 mechanism type (CK_MECHANISM_TYPE).
type Mechanism uint

// Mechanism values as defined by PKCS#11 v2.40.
const (
	CKM_RSA_PKCS_KEY_PAIR_GEN Mechanism = 0x00000000
	CKM_RSA_PKCS              Mechanism = 0x00000001
	CKM_RSA_PKCS_OAEP         Mechanism = 0x00000009

	CKM_DES_ECB     Mechanism = 0x00000121
	CKM_DES_CBC     Mechanism = 0x00000122
	CKM_DES_CBC_PAD Mechanism = 0x00000125

	CKM_SHA_1  Mechanism = 0x00000220
	CKM_SHA256 Mechanism = 0x00000250
	CKM_SHA224 Mechanism = 0x00000255
	CKM_SHA384 Mechanism = 0x00000260
	CKM_SHA512 Mechanism = 0x00000270

	CKM_AES_ECB     Mechanism = 0x00001081
	CKM_AES_CBC     Mechanism = 0x00001082
	CKM_AES_CBC_PAD Mechanism = 0x00001085

	CKM_VENDOR_DEFINED Mechanism = 0x80000000
)

// ECB with PKCS#7 padding has no standard mechanism. The soft token exposes
// it under the vendor range; other tokens simply will not list it.
const (
	CKM_DES_ECB_PAD = CKM_VENDOR_DEFINED | CKM_DES_ECB
	CKM_AES_ECB_PAD = CKM_VENDOR_DEFINED | CKM_AES_ECB
)

// MGF is a PKCS#11 mask generation function (CK_RSA_PKCS_MGF_TYPE).
type MGF uint

const (
	CKG_MGF1_SHA1   MGF = 0x00000001
	CKG_MGF1_SHA256 MGF = 0x00000002
	CKG_MGF1_SHA384 MGF = 0x00000003
	CKG_MGF1_SHA512 MGF = 0x00000004
	CKG_MGF1_SHA224 MGF = 0x00000005
)

// CKZ_DATA_SPECIFIED is the only OAEP label source defined by PKCS#11.
const CKZ_DATA_SPECIFIED uint = 0x00000001

// Operation is the key usage attribute a symmetric key is imported for.
type Operation uint

const (
	CKA_ENCRYPT Operation = 0x00000104
	CKA_DECRYPT Operation = 0x00000105
)

// OAEPParams mirrors CK_RSA_PKCS_OAEP_PARAMS.
type OAEPParams struct {
	HashAlg    Mechanism
	MGF        MGF
	Source     uint
	SourceData []byte
}

// BlockSize returns the cipher block size of a symmetric mechanism, or 0 when
// the mechanism is not a block cipher mode the ABI knows about.
func (m Mechanism) BlockSize() int {
	switch m &^ CKM_VENDOR_DEFINED {
	case CKM_AES_ECB, CKM_AES_CBC, CKM_AES_CBC_PAD:
		return 16
	case CKM_DES_ECB, CKM_DES_CBC, CKM_DES_CBC_PAD:
		return 8
	default:
		return 0
	}
}

// UsesIV reports whether the mechanism consumes an initialization vector.
func (m Mechanism) UsesIV() bool {
	switch m {
	case CKM_AES_CBC, CKM_AES_CBC_PAD, CKM_DES_CBC, CKM_DES_CBC_PAD:
		return true
	default:
		return false
	}
}

// Padded reports whether the mechanism applies PKCS#7 padding.
func (m Mechanism) Padded() bool {
	switch m {
	case CKM_AES_CBC_PAD, CKM_DES_CBC_PAD, CKM_AES_ECB_PAD, CKM_DES_ECB_PAD:
		return true
	default:
		return false
	}
}

var (
	// ErrCGONotEnabled signals that the package was compiled without cgo and
	// therefore cannot load a PKCS#11 module.
	ErrCGONotEnabled = errors.New("pk11/internal/bindings: cgo not enabled")

	// ErrNoModule reports a PKCS#11 engine configured without a module path.
	ErrNoModule = errors.New("pk11/internal/bindings: no PKCS#11 module path configured")
)

// PKCS11Options selects the module and token driven by the PKCS#11 engine.
type PKCS11Options struct {
	ModulePath string
	// SlotID pins a slot. When nil, TokenLabel is matched, and failing
	// that the first slot with a token present is used.
	SlotID     *uint
	TokenLabel string
	PIN        string
}
