package bindings

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"strings"
	"testing"
)

func initSoft(t *testing.T) *Soft {
	t.Helper()
	s := NewSoft()
	if code := s.Init(); code != OK {
		t.Fatalf("init: %v", code)
	}
	t.Cleanup(func() {
		if n := s.Live(); n != 0 {
			t.Errorf("%d native objects leaked", n)
		}
		s.Shutdown()
	})
	return s
}

func TestSoftRejectsCallsBeforeInit(t *testing.T) {
	s := NewSoft()

	if _, code := s.InternalKeySlot(); code != SEC_ERROR_NOT_INITIALIZED {
		t.Fatalf("InternalKeySlot code = %v, want %v", code, SEC_ERROR_NOT_INITIALIZED)
	}
	if _, code := s.DecodeSubjectPublicKeyInfo([]byte{0x30}); code != SEC_ERROR_NOT_INITIALIZED {
		t.Fatalf("DecodeSubjectPublicKeyInfo code = %v", code)
	}
	if code := s.Shutdown(); code != SEC_ERROR_NOT_INITIALIZED {
		t.Fatalf("Shutdown code = %v", code)
	}
}

func TestSoftShutdownBusy(t *testing.T) {
	s := NewSoft()
	if code := s.Init(); code != OK {
		t.Fatalf("init: %v", code)
	}
	slot, code := s.InternalKeySlot()
	if code != OK || slot == 0 {
		t.Fatalf("InternalKeySlot: %v", code)
	}
	if code := s.Shutdown(); code != SEC_ERROR_BUSY {
		t.Fatalf("Shutdown with live slot = %v, want %v", code, SEC_ERROR_BUSY)
	}
	s.FreeSlot(slot)
	s.FreeSlot(slot)
	if code := s.Shutdown(); code != OK {
		t.Fatalf("Shutdown: %v", code)
	}
}

func TestSoftBestSlotUnknownMechanism(t *testing.T) {
	s := initSoft(t)
	slot, code := s.BestSlot(Mechanism(0x1234))
	if slot != 0 || code != SEC_ERROR_NO_TOKEN {
		t.Fatalf("BestSlot = (%d, %v), want (0, %v)", slot, code, SEC_ERROR_NO_TOKEN)
	}
}

func newContext(t *testing.T, s *Soft, mech Mechanism, op Operation, key, iv []byte) Context {
	t.Helper()
	slot, code := s.BestSlot(mech)
	if code != OK {
		t.Fatalf("BestSlot: %v", code)
	}
	defer s.FreeSlot(slot)
	k, code := s.ImportSymKey(slot, mech, op, key)
	if code != OK {
		t.Fatalf("ImportSymKey: %v", code)
	}
	defer s.FreeSymKey(k)
	param, code := s.ParamFromIV(mech, iv)
	if code != OK {
		t.Fatalf("ParamFromIV: %v", code)
	}
	defer s.FreeItem(param)
	ctx, code := s.CreateContextBySymKey(mech, op, k, param)
	if code != OK {
		t.Fatalf("CreateContextBySymKey: %v", code)
	}
	return ctx
}

func TestSoftStreamingMatchesOneShot(t *testing.T) {
	s := initSoft(t)
	key := bytes.Repeat([]byte{0x42}, 16)
	iv := bytes.Repeat([]byte{0x24}, 16)
	msg := []byte(strings.Repeat("streaming block cipher ", 5))

	ctx := newContext(t, s, CKM_AES_CBC_PAD, CKA_ENCRYPT, key, iv)
	defer s.DestroyContext(ctx)

	var ct []byte
	for _, chunk := range [][]byte{msg[:3], msg[3:40], msg[40:]} {
		out := make([]byte, len(chunk)+128)
		n, code := s.CipherOp(ctx, out, chunk)
		if code != OK {
			t.Fatalf("CipherOp: %v", code)
		}
		ct = append(ct, out[:n]...)
	}
	out := make([]byte, 128)
	n, code := s.CipherFinal(ctx, out)
	if code != OK {
		t.Fatalf("CipherFinal: %v", code)
	}
	ct = append(ct, out[:n]...)

	block, _ := aes.NewCipher(key)
	pad := aes.BlockSize - len(msg)%aes.BlockSize
	padded := append(append([]byte(nil), msg...), bytes.Repeat([]byte{byte(pad)}, pad)...)
	want := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(want, padded)

	if !bytes.Equal(ct, want) {
		t.Fatalf("ciphertext mismatch:\n got %x\nwant %x", ct, want)
	}

	if _, code := s.CipherOp(ctx, out, msg[:16]); code != PR_INVALID_STATE_ERROR {
		t.Fatalf("CipherOp after final = %v, want %v", code, PR_INVALID_STATE_ERROR)
	}
}

func TestSoftNoPadRequiresBlockMultiple(t *testing.T) {
	s := initSoft(t)
	ctx := newContext(t, s, CKM_AES_ECB, CKA_ENCRYPT, make([]byte, 16), nil)
	defer s.DestroyContext(ctx)

	out := make([]byte, 128)
	if _, code := s.CipherOp(ctx, out, make([]byte, 15)); code != SEC_ERROR_INPUT_LEN {
		t.Fatalf("CipherOp(15 bytes) = %v, want %v", code, SEC_ERROR_INPUT_LEN)
	}
	if _, code := s.CipherOp(ctx, out[:8], make([]byte, 16)); code != SEC_ERROR_OUTPUT_LEN {
		t.Fatalf("CipherOp(short out) = %v, want %v", code, SEC_ERROR_OUTPUT_LEN)
	}
}

func TestSoftBadPadding(t *testing.T) {
	s := initSoft(t)
	key := make([]byte, 8)

	// The block decrypts to a trailing zero byte, which is never valid padding.
	enc := newContext(t, s, CKM_DES_ECB, CKA_ENCRYPT, key, nil)
	plain := []byte{1, 2, 3, 4, 5, 6, 7, 0}
	ct := make([]byte, 8)
	if _, code := s.CipherOp(enc, ct, plain); code != OK {
		t.Fatalf("encrypt: %v", code)
	}
	s.DestroyContext(enc)

	dec := newContext(t, s, CKM_DES_ECB_PAD, CKA_DECRYPT, key, nil)
	defer s.DestroyContext(dec)
	out := make([]byte, 128)
	n, code := s.CipherOp(dec, out, ct)
	if code != OK || n != 0 {
		t.Fatalf("CipherOp = (%d, %v), want held back block", n, code)
	}
	if _, code := s.CipherFinal(dec, out); code != SEC_ERROR_BAD_DATA {
		t.Fatalf("CipherFinal = %v, want %v", code, SEC_ERROR_BAD_DATA)
	}
}

func TestSoftContextKeyUsage(t *testing.T) {
	s := initSoft(t)
	slot, _ := s.BestSlot(CKM_AES_CBC)
	defer s.FreeSlot(slot)
	k, code := s.ImportSymKey(slot, CKM_AES_CBC, CKA_ENCRYPT, make([]byte, 16))
	if code != OK {
		t.Fatalf("ImportSymKey: %v", code)
	}
	defer s.FreeSymKey(k)
	param, _ := s.ParamFromIV(CKM_AES_CBC, make([]byte, 16))
	defer s.FreeItem(param)

	if ctx, code := s.CreateContextBySymKey(CKM_AES_CBC, CKA_DECRYPT, k, param); ctx != 0 || code != SEC_ERROR_INVALID_KEY {
		t.Fatalf("decrypt with encrypt-only key = (%d, %v)", ctx, code)
	}
	short, _ := s.ParamFromIV(CKM_AES_CBC, make([]byte, 8))
	defer s.FreeItem(short)
	if ctx, code := s.CreateContextBySymKey(CKM_AES_CBC, CKA_ENCRYPT, k, short); ctx != 0 || code != SEC_ERROR_INVALID_ARGS {
		t.Fatalf("short IV = (%d, %v)", ctx, code)
	}
}

func TestSoftImportSymKeyLength(t *testing.T) {
	s := initSoft(t)
	slot, _ := s.BestSlot(CKM_DES_CBC)
	defer s.FreeSlot(slot)
	if k, code := s.ImportSymKey(slot, CKM_DES_CBC, CKA_ENCRYPT, make([]byte, 16)); k != 0 || code != SEC_ERROR_INVALID_KEY {
		t.Fatalf("ImportSymKey = (%d, %v), want (0, %v)", k, code, SEC_ERROR_INVALID_KEY)
	}
}

func TestSoftOAEPParameterChecks(t *testing.T) {
	s := initSoft(t)
	slot, _ := s.InternalKeySlot()
	defer s.FreeSlot(slot)
	priv, pub, code := s.GenerateKeyPair(slot, 1024, 65537)
	if code != OK {
		t.Fatalf("GenerateKeyPair: %v", code)
	}
	defer s.DestroyPrivateKey(priv)
	defer s.DestroyPublicKey(pub)

	if got := s.PublicKeyStrength(pub); got != 128 {
		t.Fatalf("PublicKeyStrength = %d, want 128", got)
	}

	out := make([]byte, 128)
	cases := []struct {
		name   string
		params *OAEPParams
		want   Code
	}{
		{"missing", nil, SEC_ERROR_INVALID_ARGS},
		{"mgf mismatch", &OAEPParams{HashAlg: CKM_SHA256, MGF: CKG_MGF1_SHA1, Source: CKZ_DATA_SPECIFIED}, SEC_ERROR_INVALID_ALGORITHM},
		{"unknown hash", &OAEPParams{HashAlg: Mechanism(0x999), MGF: CKG_MGF1_SHA1, Source: CKZ_DATA_SPECIFIED}, SEC_ERROR_INVALID_ALGORITHM},
		{"bad source", &OAEPParams{HashAlg: CKM_SHA_1, MGF: CKG_MGF1_SHA1}, SEC_ERROR_INVALID_ARGS},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, code := s.PubEncrypt(pub, CKM_RSA_PKCS_OAEP, tc.params, out, []byte("x")); code != tc.want {
				t.Fatalf("PubEncrypt = %v, want %v", code, tc.want)
			}
		})
	}

	if _, code := s.PrivDecrypt(priv, CKM_RSA_PKCS, nil, out, make([]byte, 64)); code != SEC_ERROR_INPUT_LEN {
		t.Fatalf("PrivDecrypt(short) = %v, want %v", code, SEC_ERROR_INPUT_LEN)
	}
	if _, code := s.PubEncrypt(pub, CKM_RSA_PKCS, nil, out[:10], []byte("x")); code != SEC_ERROR_OUTPUT_LEN {
		t.Fatalf("PubEncrypt(short out) = %v, want %v", code, SEC_ERROR_OUTPUT_LEN)
	}
}

func TestSoftImportRejectsGarbage(t *testing.T) {
	s := initSoft(t)
	slot, _ := s.InternalKeySlot()
	defer s.FreeSlot(slot)

	if k, code := s.ImportPrivateKeyInfo(slot, []byte("not der")); k != 0 || code != SEC_ERROR_BAD_DER {
		t.Fatalf("ImportPrivateKeyInfo = (%d, %v)", k, code)
	}
	if k, code := s.DecodeSubjectPublicKeyInfo(nil); k != 0 || code != SEC_ERROR_BAD_DER {
		t.Fatalf("DecodeSubjectPublicKeyInfo = (%d, %v)", k, code)
	}
}

func TestCodeText(t *testing.T) {
	if got := SEC_ERROR_INVALID_KEY.String(); got != "SEC_ERROR_INVALID_KEY" {
		t.Fatalf("String() = %q", got)
	}
	if got := ErrorText(SEC_ERROR_BUSY); !strings.Contains(got, "still in use") {
		t.Fatalf("ErrorText = %q", got)
	}
	if got := ErrorText(Code(-1)); !strings.Contains(got, "-1") {
		t.Fatalf("ErrorText(unknown) = %q", got)
	}
	if OK.String() != "OK" {
		t.Fatalf("OK.String() = %q", OK.String())
	}
}
