// Package pkey loads, generates and uses RSA keys held by the native
// library.
//
// Keys are imported from DER (PKCS#8 PrivateKeyInfo for private keys,
// SubjectPublicKeyInfo for public keys) and exported back to the same
// encodings. Every key owns exactly one native handle, released by Close or,
// failing that, when the key is garbage collected.
//
//	priv, err := pkey.LoadPrivateKey(der)
//	if err != nil {
//		return err
//	}
//	defer priv.Close()
//
//	ct, err := priv.Encrypt(pkey.OAEPSHA256, msg)
//
// The library is initialized on first use; callers that want to control
// startup call pk11.Initialize themselves.
package pkey
