package bindings

import (
	"crypto/rand"
	"io"
	"runtime"
	"sync"
)

// Soft is the built-in software token. It implements the Library ABI on top
// of the Go standard crypto packages while keeping the calling conventions of
// a native library: integer handles, error codes and explicit destruction.
// Every entry point except Init fails with SEC_ERROR_NOT_INITIALIZED until the
// token has been initialized.
type Soft struct {
	mu          sync.RWMutex
	initialized bool

	objs  *registry
	rand  io.Reader
	mechs map[Mechanism]bool
}

type softSlot struct {
	name string
}

type softItem struct {
	data []byte
}

var _ Library = (*Soft)(nil)
var _ LiveCounter = (*Soft)(nil)

// NewSoft returns an uninitialized software token.
func NewSoft() *Soft {
	return &Soft{
		objs: newRegistry(),
		rand: rand.Reader,
		mechs: map[Mechanism]bool{
			CKM_RSA_PKCS_KEY_PAIR_GEN: true,
			CKM_RSA_PKCS:              true,
			CKM_RSA_PKCS_OAEP:         true,
			CKM_AES_ECB:               true,
			CKM_AES_ECB_PAD:           true,
			CKM_AES_CBC:               true,
			CKM_AES_CBC_PAD:           true,
			CKM_DES_ECB:               true,
			CKM_DES_ECB_PAD:           true,
			CKM_DES_CBC:               true,
			CKM_DES_CBC_PAD:           true,
		},
	}
}

func (s *Soft) Name() string { return "soft" }

// Init is idempotent, like NSS_NoDB_Init on an already initialized library.
func (s *Soft) Init() Code {
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
	return OK
}

// Shutdown refuses to tear down while native objects are still allocated.
func (s *Soft) Shutdown() Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return SEC_ERROR_NOT_INITIALIZED
	}
	if s.objs.len() > 0 {
		return SEC_ERROR_BUSY
	}
	s.initialized = false
	return OK
}

// Live reports the number of allocated native objects.
func (s *Soft) Live() int {
	return s.objs.len()
}

func (s *Soft) ready() Code {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return SEC_ERROR_NOT_INITIALIZED
	}
	return OK
}

func (s *Soft) InternalKeySlot() (Slot, Code) {
	if c := s.ready(); c != OK {
		return 0, c
	}
	return Slot(s.objs.put(&softSlot{name: "internal"})), OK
}

func (s *Soft) BestSlot(mech Mechanism) (Slot, Code) {
	if c := s.ready(); c != OK {
		return 0, c
	}
	if !s.mechs[mech] {
		return 0, SEC_ERROR_NO_TOKEN
	}
	return Slot(s.objs.put(&softSlot{name: "internal"})), OK
}

func (s *Soft) FreeSlot(sl Slot) {
	release[*softSlot](s.objs, uintptr(sl))
}

func (s *Soft) slot(sl Slot) bool {
	_, ok := lookup[*softSlot](s.objs, uintptr(sl))
	return ok
}

func (s *Soft) newItem(data []byte) Item {
	return Item(s.objs.put(&softItem{data: data}))
}

func (s *Soft) ItemData(it Item) []byte {
	item, ok := lookup[*softItem](s.objs, uintptr(it))
	if !ok {
		return nil
	}
	return item.data
}

func (s *Soft) FreeItem(it Item) {
	if item, ok := release[*softItem](s.objs, uintptr(it)); ok {
		zero(item.data)
	}
}

// zero is a local copy of pk11.ZeroizeBytes; bindings cannot import the
// public package.
func zero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
	runtime.KeepAlive(buf)
}
