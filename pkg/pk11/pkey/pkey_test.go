//go:debug rsa1024min=0

package pkey_test

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinbase/pk11-go/internal/bindings"
	"github.com/coinbase/pk11-go/pkg/pk11"
	"github.com/coinbase/pk11-go/pkg/pk11/pk11test"
	"github.com/coinbase/pk11-go/pkg/pk11/pkey"
)

const (
	pubBase64  = "MFwwDQYJKoZIhvcNAQEBBQADSwAwSAJBAL3F6TIc3JEYsugo+a2fPU3W+Epv/FeIX21DC86WYnpFtW4srFtz2oNUzyLUzDHZdb+k//8dcT3IAOzUUi3R2eMCAwEAAQ=="
	privBase64 = "MIIBVQIBADANBgkqhkiG9w0BAQEFAASCAT8wggE7AgEAAkEAvcXpMhzckRiy6Cj5rZ89Tdb4Sm/8V4hfbUMLzpZiekW1biysW3Pag1TPItTMMdl1v6T//x1xPcgA7NRSLdHZ4wIDAQABAkEAjh8+4qncwcmGivnM6ytbpQT+k/jEOeXG2bQhjojvnXN3FazGCEFXvpuIBcJVfaIJS9YBCMOzzrAtO0+k2hWnOQIhAOC4NVbo8FQhZS4yXM1M86kMl47FA9ui//OUfbhlAdw1AiEA2DBmIXnsboKB+OHver69p0gNeWlvcJc9bjDVfdLVsLcCIQCPtV3vGYJv2vdwxqZQaHC+YB4gIGAqOqBCbmjD3lyFLQIgA+VTYdUNoqwtZWvE4gRf7IzK2V5CCNhg3gR5RGwxN58CIGCcafoRrUKsM66ISg0ITI04G9V/w+wMx91wjEEB+QBz"
)

func decode(t *testing.T, s string) []byte {
	t.Helper()
	b, err := base64.StdEncoding.DecodeString(s)
	require.NoError(t, err)
	return b
}

func loadPair(t *testing.T) (*pkey.PrivateKey, *pkey.PublicKey) {
	t.Helper()
	priv, err := pkey.LoadPrivateKey(decode(t, privBase64))
	require.NoError(t, err)
	t.Cleanup(priv.Close)
	pub, err := pkey.LoadPublicKey(decode(t, pubBase64))
	require.NoError(t, err)
	t.Cleanup(pub.Close)
	return priv, pub
}

func TestSaveRoundTrip(t *testing.T) {
	pk11test.Soft(t)
	priv, pub := loadPair(t)

	der, err := priv.Save()
	require.NoError(t, err)
	assert.Equal(t, decode(t, privBase64), der)

	der, err = pub.Save()
	require.NoError(t, err)
	assert.Equal(t, decode(t, pubBase64), der)
}

func TestKeyLen(t *testing.T) {
	pk11test.Soft(t)
	priv, pub := loadPair(t)

	assert.Equal(t, 64, pub.KeyLen())
	assert.Equal(t, 64, priv.KeyLen())

	derived, err := priv.PublicKey()
	require.NoError(t, err)
	defer derived.Close()
	assert.Equal(t, 64, derived.KeyLen())

	// The private key stays usable after deriving its public half.
	n, err := priv.KeySize()
	require.NoError(t, err)
	assert.Equal(t, 64, n)
}

func TestLoadedKeysInteroperate(t *testing.T) {
	pk11test.Soft(t)
	priv, pub := loadPair(t)
	// OAEP-SHA224 leaves room for 6 bytes in a 64 byte modulus.
	msg := []byte("hello!")

	for _, p := range []pkey.Padding{pkey.PKCS1v15, pkey.OAEPSHA1, pkey.OAEPSHA224} {
		t.Run(p.String(), func(t *testing.T) {
			ct, err := pub.Encrypt(p, msg)
			require.NoError(t, err)
			require.Len(t, ct, 64)

			pt, err := priv.Decrypt(p, ct)
			require.NoError(t, err)
			assert.Equal(t, msg, pt)
		})
	}
}

func TestEveryPaddingRoundTrip(t *testing.T) {
	pk11test.Soft(t)
	priv, err := pkey.GeneratePrivateKey(2048)
	require.NoError(t, err)
	defer priv.Close()
	require.Equal(t, 256, priv.KeyLen())

	msg := []byte("attack at dawn")
	for _, p := range []pkey.Padding{
		pkey.PKCS1v15, pkey.OAEPSHA1, pkey.OAEPSHA224,
		pkey.OAEPSHA256, pkey.OAEPSHA384, pkey.OAEPSHA512,
	} {
		t.Run(p.String(), func(t *testing.T) {
			ct, err := priv.Encrypt(p, msg)
			require.NoError(t, err)
			require.Len(t, ct, 256)

			pt, err := priv.Decrypt(p, ct)
			require.NoError(t, err)
			assert.Equal(t, msg, pt)
		})
	}
}

func TestMismatchedPaddingFails(t *testing.T) {
	pk11test.Soft(t)
	priv, pub := loadPair(t)

	ct, err := pub.Encrypt(pkey.OAEPSHA1, []byte("hello"))
	require.NoError(t, err)

	_, err = priv.Decrypt(pkey.OAEPSHA224, ct)
	var perr *pk11.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, pk11.KindNative, perr.Kind)
	assert.Equal(t, bindings.SEC_ERROR_BAD_DATA, perr.Code)
}

func TestMessageTooLong(t *testing.T) {
	pk11test.Soft(t)
	_, pub := loadPair(t)

	// OAEP with SHA-256 leaves no room for data in a 64 byte modulus.
	_, err := pub.Encrypt(pkey.OAEPSHA256, []byte("x"))
	var perr *pk11.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, bindings.SEC_ERROR_INPUT_LEN, perr.Code)
}

func TestMessageLengthLimits(t *testing.T) {
	pk11test.Soft(t)
	priv, err := pkey.GeneratePrivateKey(2048)
	require.NoError(t, err)
	defer priv.Close()
	pub, err := priv.PublicKey()
	require.NoError(t, err)
	defer pub.Close()

	// 256 byte modulus: PKCS#1 v1.5 reserves 11 bytes, OAEP 2*hLen+2.
	limits := []struct {
		padding pkey.Padding
		max     int
	}{
		{pkey.PKCS1v15, 245},
		{pkey.OAEPSHA1, 214},
		{pkey.OAEPSHA224, 198},
		{pkey.OAEPSHA256, 190},
		{pkey.OAEPSHA384, 158},
		{pkey.OAEPSHA512, 126},
	}
	for _, tc := range limits {
		t.Run(tc.padding.String(), func(t *testing.T) {
			msg := bytes.Repeat([]byte{0x5a}, tc.max)
			ct, err := pub.Encrypt(tc.padding, msg)
			require.NoError(t, err)
			pt, err := priv.Decrypt(tc.padding, ct)
			require.NoError(t, err)
			assert.Equal(t, msg, pt)

			_, err = pub.Encrypt(tc.padding, append(msg, 0x5a))
			var perr *pk11.Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, bindings.SEC_ERROR_INPUT_LEN, perr.Code)
		})
	}
}

func TestInvalidPadding(t *testing.T) {
	c := pk11test.Soft(t)
	priv, pub := loadPair(t)
	c.Reset()

	for _, p := range []pkey.Padding{0, pkey.OAEPSHA512 + 1} {
		_, err := pub.Encrypt(p, []byte("x"))
		require.ErrorIs(t, err, pkey.ErrInvalidPadding)
		_, err = priv.Encrypt(p, []byte("x"))
		require.ErrorIs(t, err, pkey.ErrInvalidPadding)
		_, err = priv.Decrypt(p, make([]byte, 64))
		require.ErrorIs(t, err, pkey.ErrInvalidPadding)
	}
	assert.Zero(t, c.Total(), "invalid padding must not reach the native library")
	assert.Equal(t, "Padding(0)", pkey.Padding(0).String())
}

func TestLoadGarbage(t *testing.T) {
	pk11test.Soft(t)
	garbage := []byte("not a key")

	_, err := pkey.LoadPrivateKey(garbage)
	var perr *pk11.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "LoadPrivateKey", perr.Op)
	assert.NotEqual(t, bindings.OK, perr.Code)

	_, err = pkey.LoadPublicKey(garbage)
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "LoadPublicKey", perr.Op)
	assert.NotEqual(t, bindings.OK, perr.Code)
}

func TestGenerateKeySizes(t *testing.T) {
	c := pk11test.Soft(t)
	c.Reset()

	for _, bits := range []int{0, 511, 16385} {
		_, err := pkey.GeneratePrivateKey(bits)
		require.ErrorIs(t, err, pkey.ErrInvalidKeySize, "bits=%d", bits)
	}
	assert.Zero(t, c.Total())

	priv, err := pkey.GeneratePrivateKey(512)
	require.NoError(t, err)
	defer priv.Close()
	assert.Equal(t, 64, priv.KeyLen())

	der, err := priv.Save()
	require.NoError(t, err)
	again, err := pkey.LoadPrivateKey(der)
	require.NoError(t, err)
	defer again.Close()
	assert.Equal(t, 64, again.KeyLen())
}

func TestGenerateFailureIsTranslated(t *testing.T) {
	c := pk11test.Soft(t)
	require.NoError(t, pk11.Initialize())
	c.FailNext("GenerateKeyPair", bindings.SEC_ERROR_KEYGEN_FAIL)

	_, err := pkey.GeneratePrivateKey(1024)
	var perr *pk11.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "GeneratePrivateKey", perr.Op)
	assert.Equal(t, bindings.SEC_ERROR_KEYGEN_FAIL, perr.Code)
}

func TestClosedKey(t *testing.T) {
	pk11test.Soft(t)
	priv, pub := loadPair(t)
	priv.Close()
	priv.Close()
	pub.Close()

	_, err := priv.Save()
	require.ErrorIs(t, err, pkey.ErrClosed)
	_, err = priv.PublicKey()
	require.ErrorIs(t, err, pkey.ErrClosed)
	_, err = priv.Decrypt(pkey.OAEPSHA1, make([]byte, 64))
	require.ErrorIs(t, err, pkey.ErrClosed)
	_, err = pub.Encrypt(pkey.OAEPSHA1, []byte("x"))
	require.ErrorIs(t, err, pkey.ErrClosed)
	assert.Zero(t, priv.KeyLen())
	assert.Zero(t, pub.KeyLen())

	var perr *pk11.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, pk11.KindState, perr.Kind)
}

func TestConcurrentPublicEncrypt(t *testing.T) {
	pk11test.Soft(t)
	priv, pub := loadPair(t)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg := []byte(fmt.Sprintf("message %d", i))
			ct, err := pub.Encrypt(pkey.OAEPSHA1, msg)
			if err != nil {
				errs <- err
				return
			}
			pt, err := priv.Decrypt(pkey.OAEPSHA1, ct)
			if err != nil {
				errs <- err
				return
			}
			if string(pt) != string(msg) {
				errs <- fmt.Errorf("goroutine %d: got %q", i, pt)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestParsePadding(t *testing.T) {
	for _, p := range []pkey.Padding{pkey.PKCS1v15, pkey.OAEPSHA1, pkey.OAEPSHA512} {
		got, err := pkey.ParsePadding(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := pkey.ParsePadding("OAEP-MD5")
	require.ErrorIs(t, err, pkey.ErrInvalidPadding)
}
