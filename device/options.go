package device

import (
	"fmt"

	"github.com/arloliu/go-onewire/bus"
	"github.com/arloliu/go-onewire/logger"
	"github.com/arloliu/go-onewire/memory"
)

type options struct {
	bankOpts   []memory.BankOption
	logger     logger.Logger
	maxSpeed   bus.Speed
	speedCheck bool
}

// Option is a functional option for New and NewRegistry.
type Option interface {
	apply(*options) error
}

type optFunc func(*options) error

func (f optFunc) apply(o *options) error { return f(o) }

// WithBankOptions configures the banks of the device.
func WithBankOptions(opts ...memory.BankOption) Option {
	return optFunc(func(o *options) error {
		o.bankOpts = append(o.bankOpts, opts...)
		return nil
	})
}

// WithLogger sets the logger of the container and, unless a bank option
// overrides it, of its banks.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(o *options) error {
		if l == nil {
			return fmt.Errorf("device: logger is nil")
		}
		o.logger = l

		return nil
	})
}

// WithMaxSpeed caps the speed used for the device below the family maximum.
func WithMaxSpeed(s bus.Speed) Option {
	return optFunc(func(o *options) error {
		if s < bus.SpeedRegular || s > bus.SpeedOverdrive {
			return fmt.Errorf("device: unsupported max speed %s", s)
		}
		o.maxSpeed = s

		return nil
	})
}

// WithSpeedCheck enables or disables speed negotiation. Default true.
func WithSpeedCheck(enabled bool) Option {
	return optFunc(func(o *options) error {
		o.speedCheck = enabled
		return nil
	})
}

func newOptions(opts []Option) (*options, error) {
	o := &options{
		logger:     logger.GetLogger(),
		maxSpeed:   bus.SpeedOverdrive,
		speedCheck: true,
	}
	for _, opt := range opts {
		if err := opt.apply(o); err != nil {
			return nil, err
		}
	}

	return o, nil
}
