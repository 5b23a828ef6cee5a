package sim

import (
	"fmt"
	"slices"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-onewire/bus"
	"github.com/arloliu/go-onewire/logger"
)

// Adapter is a software bus adapter.
//
// All methods are goroutine-safe, but like a hardware adapter it keeps one
// selection state for the whole bus; compound sequences still need a
// bus.Port.
type Adapter struct {
	devices *xsync.MapOf[bus.Address, Device]
	logger  logger.Logger

	mu         sync.Mutex
	selected   Device
	rom        *romState
	speed      bus.Speed
	maxSpeed   bus.Speed
	canPower   bool
	canProgram bool
	powerArmed bool
	powered    bool
	powerFor   bus.PowerDuration
	pulseFor   bus.PowerDuration
	shifted    int64
	faults     []fault
}

var (
	_ bus.Adapter      = (*Adapter)(nil)
	_ bus.AlarmChecker = (*Adapter)(nil)
)

// Option configures an Adapter.
type Option func(*Adapter)

// WithoutPowerDelivery removes the strong pull-up capability.
func WithoutPowerDelivery() Option {
	return func(a *Adapter) { a.canPower = false }
}

// WithoutProgramPulse removes the EPROM programming pulse capability.
func WithoutProgramPulse() Option {
	return func(a *Adapter) { a.canProgram = false }
}

// WithMaxSpeed limits the speeds SetSpeed accepts. Default SpeedOverdrive.
func WithMaxSpeed(s bus.Speed) Option {
	return func(a *Adapter) { a.maxSpeed = s }
}

// WithLogger sets the logger of the adapter.
func WithLogger(l logger.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAdapter creates an empty simulated bus.
func NewAdapter(opts ...Option) *Adapter {
	a := &Adapter{
		devices:    xsync.NewMapOf[bus.Address, Device](),
		logger:     logger.GetLogger(),
		speed:      bus.SpeedRegular,
		maxSpeed:   bus.SpeedOverdrive,
		canPower:   true,
		canProgram: true,
	}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Attach puts dev on the bus, replacing any device with the same address.
func (a *Adapter) Attach(dev Device) {
	a.devices.Store(dev.Address(), dev)
	a.logger.Debug("sim: device attached", "address", dev.Address().String())
}

// Detach removes the device with addr from the bus.
func (a *Adapter) Detach(addr bus.Address) bool {
	_, ok := a.devices.LoadAndDelete(addr)

	a.mu.Lock()
	if a.selected != nil && a.selected.Address() == addr {
		a.selected = nil
	}
	a.mu.Unlock()

	return ok
}

// Device returns the device with addr.
func (a *Adapter) Device(addr bus.Address) (Device, bool) {
	return a.devices.Load(addr)
}

// Devices returns all attached devices ordered by address.
func (a *Adapter) Devices() []Device {
	devs := make([]Device, 0, a.devices.Size())
	a.devices.Range(func(_ bus.Address, d Device) bool {
		devs = append(devs, d)
		return true
	})
	slices.SortFunc(devs, func(x, y Device) int {
		return cmpAddress(x.Address(), y.Address())
	})

	return devs
}

func cmpAddress(x, y bus.Address) int {
	xv, yv := x.Uint64(), y.Uint64()
	switch {
	case xv < yv:
		return -1
	case xv > yv:
		return 1
	default:
		return 0
	}
}

// CorruptNext XORs mask into the byte read from the line after skip further
// bytes have been shifted. CorruptNext(0, 0x01) corrupts the next byte.
func (a *Adapter) CorruptNext(skip int, mask byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.faults = append(a.faults, fault{at: a.shifted + int64(skip), mask: mask})
}

// Powered reports whether the strong pull-up is currently on.
func (a *Adapter) Powered() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.powered
}

type fault struct {
	at   int64
	mask byte
}

// romState collects a ROM command after a bare reset.
type romState struct {
	cmd  byte
	rom  []byte
	done bool
}

func (a *Adapter) answers(d Device) bool {
	return d.Present() && d.MaxSpeed() >= a.speed
}

func (a *Adapter) resetLocked() (bus.ResetResult, bool) {
	a.selected = nil
	a.rom = nil

	present := false
	a.devices.Range(func(_ bus.Address, d Device) bool {
		d.reset()
		if a.answers(d) {
			present = true
		}
		return true
	})
	if !present {
		return bus.ResetNoPresence, false
	}
	a.rom = &romState{}

	return bus.ResetPresence, true
}

func (a *Adapter) Select(addr bus.Address) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.resetLocked(); !ok {
		return false, nil
	}
	a.rom = nil

	d, ok := a.devices.Load(addr)
	if !ok || !a.answers(d) {
		return false, nil
	}
	a.selected = d

	return true, nil
}

func (a *Adapter) Reset() (bus.ResetResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, _ := a.resetLocked()

	return r, nil
}

func (a *Adapter) DataBlock(buf []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range buf {
		buf[i] = a.touchLocked(buf[i])
	}

	return nil
}

func (a *Adapter) PutByte(b byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.touchLocked(b)

	return nil
}

func (a *Adapter) GetByte() (byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.touchLocked(0xFF), nil
}

func (a *Adapter) touchLocked(b byte) byte {
	spu := a.powered || a.powerArmed

	out := byte(0xFF)
	switch {
	case a.selected != nil:
		if a.selected.Present() {
			out = a.selected.touch(b, spu)
		}
	case a.rom != nil:
		out = a.romTouch(b)
	}
	out &= b

	if a.powerArmed {
		a.powerArmed = false
		a.powered = true
	}

	for i := 0; i < len(a.faults); {
		if a.faults[i].at == a.shifted {
			out ^= a.faults[i].mask
			a.faults = slices.Delete(a.faults, i, i+1)
			continue
		}
		i++
	}
	a.shifted++

	return out
}

func (a *Adapter) romTouch(b byte) byte {
	r := a.rom
	if r.done {
		return 0xFF
	}
	if r.cmd == 0 {
		r.cmd = b
		switch b {
		case bus.SkipROMCommand, bus.OverdriveSkipCommand:
			r.done = true
			if b == bus.OverdriveSkipCommand {
				a.speed = bus.SpeedOverdrive
			}
			var only Device
			count := 0
			a.devices.Range(func(_ bus.Address, d Device) bool {
				if a.answers(d) {
					only = d
					count++
				}
				return true
			})
			if count == 1 {
				a.selected = only
			}
		case bus.MatchROMCommand:
		default:
			r.done = true
		}

		return 0xFF
	}

	r.rom = append(r.rom, b)
	if len(r.rom) == len(bus.Address{}) {
		r.done = true
		var addr bus.Address
		copy(addr[:], r.rom)
		if d, ok := a.devices.Load(addr); ok && a.answers(d) {
			a.selected = d
		}
	}

	return 0xFF
}

func (a *Adapter) SetSpeed(s bus.Speed) error {
	if s > a.maxSpeed {
		return fmt.Errorf("%w: %s", bus.ErrUnsupportedSpeed, s)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.speed = s

	return nil
}

func (a *Adapter) Speed() bus.Speed {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.speed
}

func (a *Adapter) CanDeliverPower() bool { return a.canPower }

func (a *Adapter) CanProgram() bool { return a.canProgram }

func (a *Adapter) SetPowerDuration(d bus.PowerDuration) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.powerFor = d

	return nil
}

// PowerDuration returns the last strong pull-up duration set on the adapter.
func (a *Adapter) PowerDuration() bus.PowerDuration {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.powerFor
}

func (a *Adapter) StartPowerDelivery(c bus.Condition) (bool, error) {
	if !a.canPower {
		return false, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if c == bus.ConditionNow {
		a.powered = true
	} else {
		a.powerArmed = true
	}

	return true, nil
}

func (a *Adapter) SetPowerNormal() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.powered = false
	a.powerArmed = false

	return nil
}

func (a *Adapter) SetProgramPulseDuration(d bus.PowerDuration) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pulseFor = d

	return nil
}

// ProgramPulseDuration returns the last program pulse duration set on the
// adapter.
func (a *Adapter) ProgramPulseDuration() bus.PowerDuration {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.pulseFor
}

func (a *Adapter) StartProgramPulse(bus.Condition) (bool, error) {
	if !a.canProgram {
		return false, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.selected != nil && a.selected.Present() {
		a.selected.programPulse()
	}

	return true, nil
}

// IsAlarming reports false for every attached device; none of the models
// implement alarm conditions.
func (a *Adapter) IsAlarming(addr bus.Address) (bool, error) {
	if _, ok := a.devices.Load(addr); !ok {
		return false, fmt.Errorf("%w: %s", bus.ErrNotPresent, addr)
	}

	return false, nil
}
