//go:build !cgo

package bindings

// NewPKCS11 reports ErrCGONotEnabled: loading a PKCS#11 module needs cgo.
func NewPKCS11(opts PKCS11Options) (Library, error) {
	if opts.ModulePath == "" {
		return nil, ErrNoModule
	}
	return nil, ErrCGONotEnabled
}
