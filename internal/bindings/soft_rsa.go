package bindings

import (
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"errors"
	"hash"
	"math/big"
)

const (
	minRSABits = 512
	maxRSABits = 16384
)

type softPrivateKey struct {
	key *rsa.PrivateKey
}

type softPublicKey struct {
	key *rsa.PublicKey
}

type softSPKI struct {
	pub any
}

func (s *Soft) ImportPrivateKeyInfo(sl Slot, der []byte) (PrivateKey, Code) {
	if c := s.ready(); c != OK {
		return 0, c
	}
	if !s.slot(sl) {
		return 0, SEC_ERROR_NO_SLOT_SELECTED
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return 0, SEC_ERROR_BAD_DER
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return 0, SEC_ERROR_UNSUPPORTED_KEYALG
	}
	return PrivateKey(s.objs.put(&softPrivateKey{key: key})), OK
}

func (s *Soft) GenerateKeyPair(sl Slot, bits int, exponent int) (PrivateKey, PublicKey, Code) {
	if c := s.ready(); c != OK {
		return 0, 0, c
	}
	if !s.slot(sl) {
		return 0, 0, SEC_ERROR_NO_SLOT_SELECTED
	}
	// crypto/rsa only generates keys with the F4 exponent.
	if bits < minRSABits || bits > maxRSABits || exponent != 65537 {
		return 0, 0, SEC_ERROR_INVALID_ARGS
	}
	key, err := rsa.GenerateKey(s.rand, bits)
	if err != nil {
		return 0, 0, SEC_ERROR_KEYGEN_FAIL
	}
	priv := PrivateKey(s.objs.put(&softPrivateKey{key: key}))
	pub := PublicKey(s.objs.put(&softPublicKey{key: clonePublic(&key.PublicKey)}))
	return priv, pub, OK
}

func (s *Soft) ExportPrivateKeyInfo(k PrivateKey) (Item, Code) {
	if c := s.ready(); c != OK {
		return 0, c
	}
	priv, ok := lookup[*softPrivateKey](s.objs, uintptr(k))
	if !ok {
		return 0, SEC_ERROR_INVALID_ARGS
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv.key)
	if err != nil {
		return 0, SEC_ERROR_LIBRARY_FAILURE
	}
	return s.newItem(der), OK
}

func (s *Soft) ConvertToPublicKey(k PrivateKey) (PublicKey, Code) {
	if c := s.ready(); c != OK {
		return 0, c
	}
	priv, ok := lookup[*softPrivateKey](s.objs, uintptr(k))
	if !ok {
		return 0, SEC_ERROR_INVALID_ARGS
	}
	return PublicKey(s.objs.put(&softPublicKey{key: clonePublic(&priv.key.PublicKey)})), OK
}

func (s *Soft) DestroyPrivateKey(k PrivateKey) {
	release[*softPrivateKey](s.objs, uintptr(k))
}

func (s *Soft) DecodeSubjectPublicKeyInfo(der []byte) (SPKI, Code) {
	if c := s.ready(); c != OK {
		return 0, c
	}
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return 0, SEC_ERROR_BAD_DER
	}
	return SPKI(s.objs.put(&softSPKI{pub: pub})), OK
}

func (s *Soft) ExtractPublicKey(spki SPKI) (PublicKey, Code) {
	if c := s.ready(); c != OK {
		return 0, c
	}
	info, ok := lookup[*softSPKI](s.objs, uintptr(spki))
	if !ok {
		return 0, SEC_ERROR_INVALID_ARGS
	}
	pub, ok := info.pub.(*rsa.PublicKey)
	if !ok {
		return 0, SEC_ERROR_UNSUPPORTED_KEYALG
	}
	return PublicKey(s.objs.put(&softPublicKey{key: clonePublic(pub)})), OK
}

func (s *Soft) DestroySubjectPublicKeyInfo(spki SPKI) {
	release[*softSPKI](s.objs, uintptr(spki))
}

func (s *Soft) EncodeSubjectPublicKeyInfo(k PublicKey) (Item, Code) {
	if c := s.ready(); c != OK {
		return 0, c
	}
	pub, ok := lookup[*softPublicKey](s.objs, uintptr(k))
	if !ok {
		return 0, SEC_ERROR_INVALID_ARGS
	}
	der, err := x509.MarshalPKIXPublicKey(pub.key)
	if err != nil {
		return 0, SEC_ERROR_LIBRARY_FAILURE
	}
	return s.newItem(der), OK
}

func (s *Soft) PublicKeyStrength(k PublicKey) int {
	if s.ready() != OK {
		return 0
	}
	pub, ok := lookup[*softPublicKey](s.objs, uintptr(k))
	if !ok {
		return 0
	}
	return pub.key.Size()
}

func (s *Soft) DestroyPublicKey(k PublicKey) {
	release[*softPublicKey](s.objs, uintptr(k))
}

func (s *Soft) PubEncrypt(k PublicKey, mech Mechanism, params *OAEPParams, out, in []byte) (int, Code) {
	if c := s.ready(); c != OK {
		return 0, c
	}
	pub, ok := lookup[*softPublicKey](s.objs, uintptr(k))
	if !ok {
		return 0, SEC_ERROR_INVALID_ARGS
	}

	var (
		ct  []byte
		err error
	)
	switch mech {
	case CKM_RSA_PKCS:
		ct, err = rsa.EncryptPKCS1v15(s.rand, pub.key, in)
	case CKM_RSA_PKCS_OAEP:
		newHash, label, c := oaepHash(params)
		if c != OK {
			return 0, c
		}
		ct, err = rsa.EncryptOAEP(newHash(), s.rand, pub.key, in, label)
	default:
		return 0, SEC_ERROR_INVALID_ALGORITHM
	}
	if err != nil {
		return 0, rsaCode(err)
	}
	if len(out) < len(ct) {
		return 0, SEC_ERROR_OUTPUT_LEN
	}
	return copy(out, ct), OK
}

func (s *Soft) PrivDecrypt(k PrivateKey, mech Mechanism, params *OAEPParams, out, in []byte) (int, Code) {
	if c := s.ready(); c != OK {
		return 0, c
	}
	priv, ok := lookup[*softPrivateKey](s.objs, uintptr(k))
	if !ok {
		return 0, SEC_ERROR_INVALID_ARGS
	}
	if len(in) != priv.key.Size() {
		return 0, SEC_ERROR_INPUT_LEN
	}

	var (
		pt  []byte
		err error
	)
	switch mech {
	case CKM_RSA_PKCS:
		pt, err = rsa.DecryptPKCS1v15(nil, priv.key, in)
	case CKM_RSA_PKCS_OAEP:
		newHash, label, c := oaepHash(params)
		if c != OK {
			return 0, c
		}
		pt, err = rsa.DecryptOAEP(newHash(), nil, priv.key, in, label)
	default:
		return 0, SEC_ERROR_INVALID_ALGORITHM
	}
	if err != nil {
		return 0, rsaCode(err)
	}
	defer zero(pt)
	if len(out) < len(pt) {
		return 0, SEC_ERROR_OUTPUT_LEN
	}
	return copy(out, pt), OK
}

// oaepHash resolves the digest for an OAEP parameter block. crypto/rsa uses
// the same digest for MGF1, so a mismatched MGF is rejected.
func oaepHash(p *OAEPParams) (func() hash.Hash, []byte, Code) {
	if p == nil {
		return nil, nil, SEC_ERROR_INVALID_ARGS
	}
	if p.Source != CKZ_DATA_SPECIFIED {
		return nil, nil, SEC_ERROR_INVALID_ARGS
	}

	var (
		h   func() hash.Hash
		mgf MGF
	)
	switch p.HashAlg {
	case CKM_SHA_1:
		h, mgf = sha1.New, CKG_MGF1_SHA1
	case CKM_SHA224:
		h, mgf = sha256.New224, CKG_MGF1_SHA224
	case CKM_SHA256:
		h, mgf = sha256.New, CKG_MGF1_SHA256
	case CKM_SHA384:
		h, mgf = sha512.New384, CKG_MGF1_SHA384
	case CKM_SHA512:
		h, mgf = sha512.New, CKG_MGF1_SHA512
	default:
		return nil, nil, SEC_ERROR_INVALID_ALGORITHM
	}
	if p.MGF != mgf {
		return nil, nil, SEC_ERROR_INVALID_ALGORITHM
	}
	return h, p.SourceData, OK
}

func rsaCode(err error) Code {
	switch {
	case errors.Is(err, rsa.ErrMessageTooLong):
		return SEC_ERROR_INPUT_LEN
	case errors.Is(err, rsa.ErrDecryption):
		return SEC_ERROR_BAD_DATA
	default:
		// crypto/rsa rejects keys it considers unusable, e.g. below the
		// minimum size enforced by the runtime.
		return SEC_ERROR_INVALID_KEY
	}
}

func clonePublic(pub *rsa.PublicKey) *rsa.PublicKey {
	return &rsa.PublicKey{N: new(big.Int).Set(pub.N), E: pub.E}
}
