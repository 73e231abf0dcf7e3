package commands

import (
	"github.com/spf13/cobra"

	"github.com/coinbase/pk11-go/pkg/pk11"
	"github.com/coinbase/pk11-go/pkg/pk11/pkey"
)

type rsaFlags struct {
	key     string
	padding string
	in      string
	out     string
}

func (f *rsaFlags) register(cmd *cobra.Command, keyUsage string) {
	cmd.Flags().StringVarP(&f.key, "key", "k", "", keyUsage)
	cmd.Flags().StringVarP(&f.padding, "padding", "p", pkey.OAEPSHA256.String(), "PKCS1v15 or OAEP-SHA1, OAEP-SHA224, OAEP-SHA256, OAEP-SHA384, OAEP-SHA512")
	cmd.Flags().StringVarP(&f.in, "in", "i", stdio, "input file, - for stdin")
	cmd.Flags().StringVarP(&f.out, "out", "o", stdio, "output file, - for stdout")
	_ = cmd.MarkFlagRequired("key")
}

func newRSACommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rsa",
		Short: "Encrypt or decrypt a single RSA block",
	}

	var enc rsaFlags
	encrypt := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt with a DER SubjectPublicKeyInfo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			padding, err := pkey.ParsePadding(enc.padding)
			if err != nil {
				return err
			}
			der, err := readInput(cmd, enc.key)
			if err != nil {
				return err
			}
			pub, err := pkey.LoadPublicKey(der)
			if err != nil {
				return err
			}
			defer pub.Close()

			msg, err := readInput(cmd, enc.in)
			if err != nil {
				return err
			}
			ct, err := pub.Encrypt(padding, msg)
			if err != nil {
				return err
			}
			a.logger().DebugContext(a.ctx(cmd), "rsa encrypt", "padding", padding, "modulus_bytes", pub.KeyLen())
			return writeOutput(cmd, enc.out, ct, 0o644)
		},
	}
	enc.register(encrypt, "public key file (DER SubjectPublicKeyInfo)")

	var dec rsaFlags
	decrypt := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt with a DER PKCS#8 private key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			padding, err := pkey.ParsePadding(dec.padding)
			if err != nil {
				return err
			}
			der, err := readInput(cmd, dec.key)
			if err != nil {
				return err
			}
			defer pk11.ZeroizeBytes(der)
			priv, err := pkey.LoadPrivateKey(der)
			if err != nil {
				return err
			}
			defer priv.Close()

			ct, err := readInput(cmd, dec.in)
			if err != nil {
				return err
			}
			pt, err := priv.Decrypt(padding, ct)
			if err != nil {
				return err
			}
			defer pk11.ZeroizeBytes(pt)
			a.logger().DebugContext(a.ctx(cmd), "rsa decrypt", "padding", padding)
			return writeOutput(cmd, dec.out, pt, 0o600)
		},
	}
	dec.register(decrypt, "private key file (DER PKCS#8)")

	cmd.AddCommand(encrypt, decrypt)
	return cmd
}
