package symm

import (
	"fmt"

	"github.com/coinbase/pk11-go/internal/bindings"
)

// Kind is a block cipher and chaining mode.
type Kind int

const (
	AES128ECB Kind = iota + 1
	AES128CBC
	AES192ECB
	AES192CBC
	AES256ECB
	AES256CBC
	DESECB
	DESCBC
)

type kindInfo struct {
	name   string
	keyLen int
	plain  bindings.Mechanism
	padded bindings.Mechanism
}

var kinds = map[Kind]kindInfo{
	AES128ECB: {"AES-128-ECB", 16, bindings.CKM_AES_ECB, bindings.CKM_AES_ECB_PAD},
	AES128CBC: {"AES-128-CBC", 16, bindings.CKM_AES_CBC, bindings.CKM_AES_CBC_PAD},
	AES192ECB: {"AES-192-ECB", 24, bindings.CKM_AES_ECB, bindings.CKM_AES_ECB_PAD},
	AES192CBC: {"AES-192-CBC", 24, bindings.CKM_AES_CBC, bindings.CKM_AES_CBC_PAD},
	AES256ECB: {"AES-256-ECB", 32, bindings.CKM_AES_ECB, bindings.CKM_AES_ECB_PAD},
	AES256CBC: {"AES-256-CBC", 32, bindings.CKM_AES_CBC, bindings.CKM_AES_CBC_PAD},
	DESECB:    {"DES-ECB", 8, bindings.CKM_DES_ECB, bindings.CKM_DES_ECB_PAD},
	DESCBC:    {"DES-CBC", 8, bindings.CKM_DES_CBC, bindings.CKM_DES_CBC_PAD},
}

// ParseKind maps a name such as "AES-128-CBC" (case sensitive) back to its Kind.
func ParseKind(name string) (Kind, error) {
	for k, info := range kinds {
		if info.name == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedKind, name)
}

func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// KeyLen returns the key length in bytes, or 0 for an unknown kind.
func (k Kind) KeyLen() int {
	return kinds[k].keyLen
}

// BlockSize returns the cipher block size in bytes, or 0 for an unknown kind.
func (k Kind) BlockSize() int {
	return kinds[k].plain.BlockSize()
}

// IVLen returns the IV length in bytes; ECB kinds take no IV.
func (k Kind) IVLen() int {
	info := kinds[k]
	if !info.plain.UsesIV() {
		return 0
	}
	return info.plain.BlockSize()
}

func (k Kind) mechanism(pad bool) (bindings.Mechanism, bool) {
	info, ok := kinds[k]
	if !ok {
		return 0, false
	}
	if pad {
		return info.padded, true
	}
	return info.plain, true
}

// Mode selects the direction of a Crypter.
type Mode int

const (
	ModeEncrypt Mode = iota + 1
	ModeDecrypt
)

func (m Mode) String() string {
	switch m {
	case ModeEncrypt:
		return "encrypt"
	case ModeDecrypt:
		return "decrypt"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func (m Mode) operation() (bindings.Operation, bool) {
	switch m {
	case ModeEncrypt:
		return bindings.CKA_ENCRYPT, true
	case ModeDecrypt:
		return bindings.CKA_DECRYPT, true
	default:
		return 0, false
	}
}
