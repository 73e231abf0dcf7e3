//go:debug rsa1024min=0

// Command pk11-go drives the pk11 library from the shell: RSA key
// generation and encryption, and streaming AES/DES encryption.
package main

import (
	"context"
	"os"

	"github.com/fatih/color"

	"github.com/coinbase/pk11-go/cmd/pk11-go/internal/commands"
)

func main() {
	if err := commands.Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "✗", err)
		os.Exit(1)
	}
}
