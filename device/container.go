package device

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-onewire/bus"
	"github.com/arloliu/go-onewire/logger"
	"github.com/arloliu/go-onewire/memory"
)

// ErrUnknownFamily indicates an address whose family code is not supported.
var ErrUnknownFamily = errors.New("device: unknown family")

// Container is one memory device on a bus with its assembled banks.
type Container struct {
	family *Family
	id     *bus.Device
	cfg    *memory.BankConfig
	banks  []memory.MemoryBank
	logger logger.Logger
}

// New assembles the banks of the device at addr on adapter a.
func New(a bus.Adapter, addr bus.Address, opts ...Option) (*Container, error) {
	f, ok := Lookup(addr.Family())
	if !ok {
		return nil, fmt.Errorf("%w: 0x%02X (%s)", ErrUnknownFamily, addr.Family(), addr)
	}

	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	bankOpts := append([]memory.BankOption{memory.WithLogger(o.logger)}, o.bankOpts...)
	cfg, err := memory.NewBankConfig(bankOpts...)
	if err != nil {
		return nil, fmt.Errorf("device: %s: %w", f.Name, err)
	}

	id := bus.NewDevice(a, addr,
		bus.WithMaxSpeed(min(f.MaxSpeed, o.maxSpeed)),
		bus.WithSpeedCheck(o.speedCheck),
		bus.WithDeviceLogger(o.logger),
	)

	c := &Container{
		family: f,
		id:     id,
		cfg:    cfg,
		banks:  f.build(id, cfg),
		logger: o.logger.With("device", addr.String(), "family", f.Name),
	}
	c.logger.Debug("device: container created", "banks", len(c.banks))

	return c, nil
}

func (c *Container) Address() bus.Address { return c.id.Address() }

func (c *Container) Family() *Family { return c.family }

// Name returns the part name, for example "DS2431".
func (c *Container) Name() string { return c.family.Name }

func (c *Container) Description() string { return c.family.Description }

// Identity returns the bus identity the banks use.
func (c *Container) Identity() *bus.Device { return c.id }

// Metrics returns the counters shared by all banks of the device.
func (c *Container) Metrics() *memory.BankMetrics { return c.cfg.Metrics() }

// Banks returns the memory banks, general-purpose memory first.
func (c *Container) Banks() []memory.MemoryBank {
	return append([]memory.MemoryBank(nil), c.banks...)
}

// Bank returns bank i of Banks.
func (c *Container) Bank(i int) (memory.MemoryBank, error) {
	if i < 0 || i >= len(c.banks) {
		return nil, fmt.Errorf("%w: %s has no bank %d", memory.ErrRange, c.family.Name, i)
	}

	return c.banks[i], nil
}

// Passwords returns the password controls of password protected devices.
func (c *Container) Passwords() (memory.PasswordProtected, bool) {
	for _, b := range c.banks {
		if pp, ok := b.(memory.PasswordProtected); ok {
			return pp, true
		}
	}

	return nil, false
}

// IsPresent reports whether the device answers on the bus.
func (c *Container) IsPresent() (bool, error) { return c.id.IsPresent() }

// ForceVerify makes every bank renegotiate speed on its next operation.
func (c *Container) ForceVerify() {
	for _, b := range c.banks {
		if v, ok := b.(interface{ ForceVerify() }); ok {
			v.ForceVerify()
		}
	}
}
