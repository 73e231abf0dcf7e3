package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/coinbase/pk11-go/pkg/pk11"
	"github.com/coinbase/pk11-go/pkg/pk11/logging"
	"github.com/coinbase/pk11-go/pkg/pk11/symm"
)

const chunkSize = 32 << 10

func newCipherCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cipher",
		Short: "Stream data through an AES or DES block cipher",
		Long: `cipher streams --in through the block cipher named by --kind
(AES-128-ECB, AES-128-CBC, AES-192-ECB, AES-192-CBC, AES-256-ECB,
AES-256-CBC, DES-ECB, DES-CBC). Key and IV are given in hex; ECB ignores
the IV. With --pad the data is PKCS#7 padded; without it the input must be
a whole number of blocks.`,
	}
	cmd.AddCommand(
		newCipherRunCommand(a, "encrypt", symm.ModeEncrypt),
		newCipherRunCommand(a, "decrypt", symm.ModeDecrypt),
	)
	return cmd
}

func newCipherRunCommand(a *app, use string, mode symm.Mode) *cobra.Command {
	var (
		kind    string
		pad     bool
		in, out string
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Run the block cipher in %s mode", mode),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := symm.ParseKind(kind)
			if err != nil {
				return err
			}
			key, err := decodeHexFlag(cmd, "key")
			if err != nil {
				return err
			}
			defer pk11.ZeroizeBytes(key)
			iv, err := decodeHexFlag(cmd, "iv")
			if err != nil {
				return err
			}

			c, err := symm.NewCrypter(k, pad, mode, key, iv)
			if err != nil {
				return err
			}
			defer c.Close()
			a.logger().DebugContext(a.ctx(cmd), "cipher started", "kind", k, "mode", mode, "pad", pad, logging.Redacted("key"))

			r, err := openInput(cmd, in)
			if err != nil {
				return err
			}
			defer r.Close()
			w, err := openOutput(cmd, out, 0o600)
			if err != nil {
				return err
			}

			n, err := stream(c, r, w)
			if cerr := w.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			a.logger().InfoContext(a.ctx(cmd), "cipher finished", "kind", k, "mode", mode, "bytes", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", symm.AES128CBC.String(), "cipher and chaining mode")
	cmd.Flags().BoolVar(&pad, "pad", true, "apply or strip PKCS#7 padding")
	cmd.Flags().String("key", "", "key in hex")
	cmd.Flags().String("iv", "", "IV in hex, one block for CBC")
	cmd.Flags().StringVarP(&in, "in", "i", stdio, "input file, - for stdin")
	cmd.Flags().StringVarP(&out, "out", "o", stdio, "output file, - for stdout")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

// stream copies r through c into w. Without padding each chunk must hold
// whole blocks, which chunkSize guarantees for every full read.
func stream(c *symm.Crypter, r io.Reader, w io.Writer) (int64, error) {
	var written int64
	buf := make([]byte, chunkSize)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			out, uerr := c.Update(buf[:n])
			if uerr != nil {
				return written, uerr
			}
			m, werr := w.Write(out)
			written += int64(m)
			if werr != nil {
				return written, werr
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return written, fmt.Errorf("read input: %w", err)
		}
	}
	tail, err := c.Finalize()
	if err != nil {
		return written, err
	}
	m, err := w.Write(tail)
	written += int64(m)
	return written, err
}
