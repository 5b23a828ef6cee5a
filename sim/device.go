package sim

import (
	"sync"

	"github.com/arloliu/go-onewire/bus"
)

// Device is a simulated slave on the bus.
type Device interface {
	// Address returns the ROM address.
	Address() bus.Address
	// MaxSpeed returns the fastest bus speed the device answers at.
	MaxSpeed() bus.Speed
	// Present reports whether the device answers resets.
	Present() bool
	// SetPresent attaches or detaches the device electrically.
	SetPresent(present bool)
	// Image returns a copy of the non-volatile state.
	Image() []byte
	// LoadImage replaces the non-volatile state.
	LoadImage(img []byte) error

	// reset drops any function command in progress.
	reset()
	// touch exchanges one byte. spu is true when the strong pull-up is on or
	// armed to start right after this byte.
	touch(b byte, spu bool) byte
	// programPulse applies the EPROM programming pulse.
	programPulse()
}

type base struct {
	mu       sync.Mutex
	addr     bus.Address
	maxSpeed bus.Speed
	present  bool
}

func newBase(addr bus.Address, maxSpeed bus.Speed) base {
	return base{addr: addr, maxSpeed: maxSpeed, present: true}
}

func (b *base) Address() bus.Address { return b.addr }

func (b *base) MaxSpeed() bus.Speed { return b.maxSpeed }

func (b *base) Present() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.present
}

func (b *base) SetPresent(present bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.present = present
}

func (b *base) programPulse() {}

// New creates the model for the family code of addr.
func New(addr bus.Address) (Device, bool) {
	switch addr.Family() {
	case FamilyDS2430:
		return newDS2430(addr), true
	case FamilyDS2431:
		return newDS2431(addr), true
	case FamilyDS2502:
		return newDS2502(addr), true
	case FamilyDS1977:
		return newDS1977(addr), true
	default:
		return nil, false
	}
}

// Family codes of the simulated models.
const (
	FamilyDS2502 byte = 0x09
	FamilyDS2430 byte = 0x14
	FamilyDS2431 byte = 0x2D
	FamilyDS1977 byte = 0x37
)
