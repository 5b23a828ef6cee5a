package bus

import (
	"fmt"
	"sync"

	"github.com/arloliu/go-onewire/logger"
)

// Identity is the device-identity collaborator consumed by memory banks.
type Identity interface {
	// Address returns the ROM address of the device.
	Address() Address
	// Adapter returns the transport the device is reached through.
	Adapter() Adapter
	// DoSpeed negotiates the bus speed for this device and confirms presence.
	DoSpeed() error
	// IsPresent reports whether the device answers a select.
	IsPresent() (bool, error)
	// IsAlarming reports whether the device is in an alarm state.
	IsAlarming() (bool, error)
}

// Device is the Identity of one ROM address on an adapter.
type Device struct {
	adapter  Adapter
	address  Address
	maxSpeed Speed
	logger   logger.Logger

	mu         sync.Mutex
	speedCheck bool
}

var _ Identity = (*Device)(nil)

// DeviceOption configures a Device.
type DeviceOption func(*Device)

// WithMaxSpeed sets the fastest speed the device supports. Default SpeedRegular.
func WithMaxSpeed(s Speed) DeviceOption {
	return func(d *Device) { d.maxSpeed = s }
}

// WithSpeedCheck enables or disables speed negotiation in DoSpeed. Enabled by
// default; disable it when the application manages the adapter speed itself.
func WithSpeedCheck(enabled bool) DeviceOption {
	return func(d *Device) { d.speedCheck = enabled }
}

// WithDeviceLogger sets the logger of the device.
func WithDeviceLogger(l logger.Logger) DeviceOption {
	return func(d *Device) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDevice creates the identity for addr on adapter a.
func NewDevice(a Adapter, addr Address, opts ...DeviceOption) *Device {
	d := &Device{
		adapter:    a,
		address:    addr,
		maxSpeed:   SpeedRegular,
		speedCheck: true,
		logger:     logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("device", addr.String())

	return d
}

func (d *Device) Address() Address { return d.address }

func (d *Device) Adapter() Adapter { return d.adapter }

// MaxSpeed returns the fastest speed the device supports.
func (d *Device) MaxSpeed() Speed { return d.maxSpeed }

// SetSpeedCheck enables or disables speed negotiation.
func (d *Device) SetSpeedCheck(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.speedCheck = enabled
}

// DoSpeed brings the adapter to the device's speed and confirms that the
// device answers at that speed. When the device does not answer at overdrive
// it falls back to regular speed once before giving up.
func (d *Device) DoSpeed() error {
	d.mu.Lock()
	check := d.speedCheck
	d.mu.Unlock()

	if !check {
		return nil
	}

	target := d.maxSpeed
	if target > SpeedOverdrive {
		target = SpeedOverdrive
	}

	if err := d.trySpeed(target); err == nil {
		return nil
	} else if target == SpeedRegular {
		return err
	}

	d.logger.Debug("bus: no answer at speed, falling back", "speed", target.String())

	return d.trySpeed(SpeedRegular)
}

func (d *Device) trySpeed(s Speed) error {
	if d.adapter.Speed() != s {
		if err := d.adapter.SetSpeed(s); err != nil {
			return fmt.Errorf("bus: set speed %s: %w", s, err)
		}
	}

	present, err := d.adapter.Select(d.address)
	if err != nil {
		return fmt.Errorf("bus: select at %s: %w", s, err)
	}
	if !present {
		return fmt.Errorf("%w: %s at %s speed", ErrNotPresent, d.address, s)
	}

	return nil
}

// IsPresent reports whether the device answers a select.
func (d *Device) IsPresent() (bool, error) {
	return d.adapter.Select(d.address)
}

// IsAlarming reports whether the device is alarming. Adapters that cannot run
// a conditional search report false.
func (d *Device) IsAlarming() (bool, error) {
	if ac, ok := d.adapter.(AlarmChecker); ok {
		return ac.IsAlarming(d.address)
	}

	return false, nil
}
