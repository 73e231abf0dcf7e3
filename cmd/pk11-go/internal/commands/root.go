// Package commands implements the pk11-go command tree.
package commands

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/coinbase/pk11-go/pkg/pk11"
	"github.com/coinbase/pk11-go/pkg/pk11/logging"
)

// app is the state shared by every sub-command of one invocation.
type app struct {
	configPath string
	verbose    bool

	cfg    pk11.Config
	log    *slog.Logger
	closer io.Closer
}

// Run executes the command line in args and shuts the library down
// afterwards, whether or not the command succeeded.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root, a := newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if terr := a.teardown(); err == nil {
		err = terr
	}
	return err
}

func newRootCommand() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:   "pk11-go",
		Short: "RSA and block cipher operations through a native crypto token",
		Long: `pk11-go runs RSA key generation, RSA encryption and AES/DES block
cipher operations through the pk11 library.

By default the built-in software token is used. Point --config at a YAML
file with "backend: pkcs11" and a module_path to drive a PKCS#11 module
instead; the user PIN may be supplied through the PK11_GO_PIN environment
variable.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML configuration file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newGenKeyCommand(a),
		newRSACommand(a),
		newCipherCommand(a),
		newVersionCommand(),
	)
	return root, a
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg := pk11.DefaultConfig()
	if a.configPath != "" {
		loaded, err := pk11.LoadConfig(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}

	log, closer, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.log, a.closer = log, closer
	cfg.Logger = logging.New(log)

	if err := pk11.Configure(cfg); err != nil {
		return err
	}
	a.cfg = cfg
	a.log.DebugContext(a.ctx(cmd), "configured", "backend", cfg.Backend, logging.Redacted("pin"))
	return nil
}

func (a *app) teardown() error {
	err := pk11.Shutdown()
	if a.closer != nil {
		if cerr := a.closer.Close(); err == nil {
			err = cerr
		}
		a.closer = nil
	}
	return err
}

func (a *app) logger() *slog.Logger {
	if a.log == nil {
		return slog.Default()
	}
	return a.log
}

func (a *app) ctx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
