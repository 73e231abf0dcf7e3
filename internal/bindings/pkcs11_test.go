//go:build cgo

package bindings

import (
	"bytes"
	"os"
	"testing"
)

// pkcs11Engine returns an initialized engine for the module named by
// PK11_GO_MODULE, e.g. /usr/lib/softhsm/libsofthsm2.so.
func pkcs11Engine(t *testing.T) Library {
	t.Helper()
	path := os.Getenv("PK11_GO_MODULE")
	if path == "" {
		t.Skip("PK11_GO_MODULE not set; skipping PKCS#11 engine tests")
	}
	lib, err := NewPKCS11(PKCS11Options{
		ModulePath: path,
		TokenLabel: os.Getenv("PK11_GO_TOKEN"),
		PIN:        os.Getenv("PK11_GO_PIN"),
	})
	if err != nil {
		t.Fatalf("NewPKCS11: %v", err)
	}
	if code := lib.Init(); code != OK {
		t.Fatalf("init: %v (%s)", code, ErrorText(code))
	}
	t.Cleanup(func() {
		if code := lib.Shutdown(); code != OK {
			t.Errorf("shutdown: %v", code)
		}
	})
	return lib
}

func TestPKCS11RequiresModulePath(t *testing.T) {
	if _, err := NewPKCS11(PKCS11Options{}); err != ErrNoModule {
		t.Fatalf("NewPKCS11 err = %v, want %v", err, ErrNoModule)
	}
}

func TestPKCS11RSARoundTrip(t *testing.T) {
	lib := pkcs11Engine(t)

	slot, code := lib.InternalKeySlot()
	if code != OK {
		t.Fatalf("InternalKeySlot: %v", code)
	}
	defer lib.FreeSlot(slot)

	priv, pub, code := lib.GenerateKeyPair(slot, 2048, 65537)
	if code != OK {
		t.Fatalf("GenerateKeyPair: %v", code)
	}
	defer lib.DestroyPrivateKey(priv)
	defer lib.DestroyPublicKey(pub)

	size := lib.PublicKeyStrength(pub)
	if size != 256 {
		t.Fatalf("PublicKeyStrength = %d, want 256", size)
	}

	params := &OAEPParams{HashAlg: CKM_SHA256, MGF: CKG_MGF1_SHA256, Source: CKZ_DATA_SPECIFIED}
	msg := []byte("pkcs11 engine")
	ct := make([]byte, size)
	n, code := lib.PubEncrypt(pub, CKM_RSA_PKCS_OAEP, params, ct, msg)
	if code != OK {
		t.Fatalf("PubEncrypt: %v", code)
	}
	pt := make([]byte, size)
	m, code := lib.PrivDecrypt(priv, CKM_RSA_PKCS_OAEP, params, pt, ct[:n])
	if code != OK {
		t.Fatalf("PrivDecrypt: %v", code)
	}
	if !bytes.Equal(pt[:m], msg) {
		t.Fatalf("round trip mismatch")
	}
}

func TestPKCS11CipherRoundTrip(t *testing.T) {
	lib := pkcs11Engine(t)
	key := bytes.Repeat([]byte{7}, 16)
	iv := bytes.Repeat([]byte{9}, 16)
	msg := []byte("a message that spans several aes blocks")

	run := func(op Operation, in []byte) []byte {
		slot, code := lib.BestSlot(CKM_AES_CBC_PAD)
		if code != OK {
			t.Skipf("token lacks CKM_AES_CBC_PAD: %v", code)
		}
		defer lib.FreeSlot(slot)
		k, code := lib.ImportSymKey(slot, CKM_AES_CBC_PAD, op, key)
		if code != OK {
			t.Fatalf("ImportSymKey: %v", code)
		}
		param, code := lib.ParamFromIV(CKM_AES_CBC_PAD, iv)
		if code != OK {
			t.Fatalf("ParamFromIV: %v", code)
		}
		ctx, code := lib.CreateContextBySymKey(CKM_AES_CBC_PAD, op, k, param)
		lib.FreeItem(param)
		lib.FreeSymKey(k)
		if code != OK {
			t.Fatalf("CreateContextBySymKey: %v", code)
		}
		defer lib.DestroyContext(ctx)

		out := make([]byte, len(in)+128)
		n, code := lib.CipherOp(ctx, out, in)
		if code != OK {
			t.Fatalf("CipherOp: %v", code)
		}
		m, code := lib.CipherFinal(ctx, out[n:])
		if code != OK {
			t.Fatalf("CipherFinal: %v", code)
		}
		return out[:n+m]
	}

	ct := run(CKA_ENCRYPT, msg)
	if got := run(CKA_DECRYPT, ct); !bytes.Equal(got, msg) {
		t.Fatalf("round trip mismatch: %q", got)
	}
}
