// Package symm streams data through AES and DES block ciphers in ECB or CBC
// mode, optionally with PKCS#7 padding, using the native library.
//
// A Crypter moves through three states. Init binds it to a key, an IV and a
// direction; Update may then be called any number of times, each call
// returning the next piece of output; Finalize flushes the last block,
// applies or strips padding and seals the context. A sealed or fresh Crypter
// rejects Update with ErrContextNotInitialized until Init is called again.
//
//	c := symm.New(symm.AES128CBC, true)
//	defer c.Close()
//	if err := c.Init(symm.ModeEncrypt, key, iv); err != nil {
//		return err
//	}
//	out, err := c.Update(msg)
//	...
//	tail, err := c.Finalize()
//
// Without padding every Update must supply a whole number of blocks.
package symm
