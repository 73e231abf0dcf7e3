package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/coinbase/pk11-go/pkg/pk11"
	"github.com/coinbase/pk11-go/pkg/pk11/pkey"
)

func newGenKeyCommand(a *app) *cobra.Command {
	var (
		bits int
		dir  string
	)
	cmd := &cobra.Command{
		Use:   "genkey [path]",
		Short: "Generate an RSA key pair",
		Long: `genkey generates an RSA key pair with public exponent 65537. The private
key is written as DER PKCS#8 to path and the public key as DER
SubjectPublicKeyInfo to path.pub. Without a path a random name is chosen
in --dir.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(dir, uuid.NewString()+"-rsa.der")
			if len(args) == 1 {
				path = args[0]
			}

			s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
			s.Suffix = fmt.Sprintf(" Generating %d-bit RSA key...", bits)
			s.Start()
			priv, err := pkey.GeneratePrivateKey(bits)
			if err != nil {
				s.FinalMSG = color.RedString("✗") + " Key generation failed\n"
				s.Stop()
				return err
			}
			s.Stop()
			defer priv.Close()

			privDER, err := priv.Save()
			if err != nil {
				return err
			}
			defer pk11.ZeroizeBytes(privDER)

			pub, err := priv.PublicKey()
			if err != nil {
				return err
			}
			defer pub.Close()
			pubDER, err := pub.Save()
			if err != nil {
				return err
			}

			if err := writeOutput(cmd, path, privDER, 0o600); err != nil {
				return err
			}
			if err := writeOutput(cmd, path+".pub", pubDER, 0o644); err != nil {
				return err
			}
			a.logger().InfoContext(a.ctx(cmd), "key pair written", "path", path, "bits", bits)
			done(cmd, "%d-bit key written to %s and %s.pub", bits, path, path)
			return nil
		},
	}
	cmd.Flags().IntVarP(&bits, "bits", "b", 2048, "RSA modulus size in bits")
	cmd.Flags().StringVar(&dir, "dir", ".", "directory for the key when no path is given")
	return cmd
}
