package pkey

import (
	"fmt"

	"github.com/coinbase/pk11-go/internal/bindings"
)

// Padding is an RSA encryption padding scheme. The zero value is not a valid
// scheme.
type Padding int

const (
	PKCS1v15 Padding = iota + 1
	OAEPSHA1
	OAEPSHA224
	OAEPSHA256
	OAEPSHA384
	OAEPSHA512
)

type paddingInfo struct {
	name string
	hash bindings.Mechanism
	mgf  bindings.MGF
}

var paddings = map[Padding]paddingInfo{
	PKCS1v15:   {name: "PKCS1v15"},
	OAEPSHA1:   {"OAEP-SHA1", bindings.CKM_SHA_1, bindings.CKG_MGF1_SHA1},
	OAEPSHA224: {"OAEP-SHA224", bindings.CKM_SHA224, bindings.CKG_MGF1_SHA224},
	OAEPSHA256: {"OAEP-SHA256", bindings.CKM_SHA256, bindings.CKG_MGF1_SHA256},
	OAEPSHA384: {"OAEP-SHA384", bindings.CKM_SHA384, bindings.CKG_MGF1_SHA384},
	OAEPSHA512: {"OAEP-SHA512", bindings.CKM_SHA512, bindings.CKG_MGF1_SHA512},
}

// ParsePadding maps a name such as "OAEP-SHA256" back to its Padding.
func ParsePadding(name string) (Padding, error) {
	for p, info := range paddings {
		if info.name == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPadding, name)
}

func (p Padding) String() string {
	if info, ok := paddings[p]; ok {
		return info.name
	}
	return fmt.Sprintf("Padding(%d)", int(p))
}

// mechanism returns the native mechanism and, for OAEP, its parameter block:
// MGF1 over the same digest and an empty label.
func (p Padding) mechanism() (bindings.Mechanism, *bindings.OAEPParams, error) {
	info, ok := paddings[p]
	if !ok {
		return 0, nil, fmt.Errorf("%w: %v", ErrInvalidPadding, p)
	}
	if p == PKCS1v15 {
		return bindings.CKM_RSA_PKCS, nil, nil
	}
	return bindings.CKM_RSA_PKCS_OAEP, &bindings.OAEPParams{
		HashAlg: info.hash,
		MGF:     info.mgf,
		Source:  bindings.CKZ_DATA_SPECIFIED,
	}, nil
}
