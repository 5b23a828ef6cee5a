package memory

import (
	"fmt"
	"time"

	"github.com/arloliu/go-onewire/logger"
)

// Default transaction timing.
const (
	DefaultCopyDwell     = 10 * time.Millisecond // scratchpad copy under strong pull-up
	DefaultPasswordDwell = 5 * time.Millisecond  // password verification under strong pull-up
	DefaultProgramDwell  = 1 * time.Millisecond  // settle time after an EPROM program pulse

	DefaultBusyPollAttempts = 6
	DefaultBusyPollDelay    = 2 * time.Millisecond
)

// Option range limits.
const (
	MaxCopyDwell     = 1 * time.Second
	MaxPasswordDwell = 1 * time.Second
	MaxProgramDwell  = 100 * time.Millisecond

	MaxBusyPollAttempts = 32
	MaxBusyPollDelay    = 500 * time.Millisecond
)

// BankConfig holds the tunables shared by the banks of one device.
//
// Dwell times and retry counts are tuned per silicon family; the defaults
// match the common EEPROM parts and can be overridden per bank kind.
type BankConfig struct {
	writeVerification bool

	copyDwell     time.Duration
	passwordDwell time.Duration
	programDwell  time.Duration

	busyPollAttempts int
	busyPollDelay    time.Duration

	metrics *BankMetrics
	logger  logger.Logger
}

// NewBankConfig creates a bank configuration with opts applied in order.
func NewBankConfig(opts ...BankOption) (*BankConfig, error) {
	cfg := &BankConfig{
		writeVerification: true,
		copyDwell:         DefaultCopyDwell,
		passwordDwell:     DefaultPasswordDwell,
		programDwell:      DefaultProgramDwell,
		busyPollAttempts:  DefaultBusyPollAttempts,
		busyPollDelay:     DefaultBusyPollDelay,
		metrics:           &BankMetrics{},
		logger:            logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// defaultConfig is used by constructors given a nil config.
func defaultConfig(cfg *BankConfig) *BankConfig {
	if cfg != nil {
		return cfg
	}
	cfg, _ = NewBankConfig()

	return cfg
}

// WriteVerification returns the initial write verification setting of banks.
func (cfg *BankConfig) WriteVerification() bool { return cfg.writeVerification }

// CopyDwell returns the strong pull-up time of a scratchpad copy.
func (cfg *BankConfig) CopyDwell() time.Duration { return cfg.copyDwell }

// PasswordDwell returns the strong pull-up time of a password verification.
func (cfg *BankConfig) PasswordDwell() time.Duration { return cfg.passwordDwell }

// ProgramDwell returns the settle time after an EPROM program pulse.
func (cfg *BankConfig) ProgramDwell() time.Duration { return cfg.programDwell }

// BusyPollAttempts returns the number of status reads before all ones is accepted as data.
func (cfg *BankConfig) BusyPollAttempts() int { return cfg.busyPollAttempts }

// BusyPollDelay returns the first delay between busy polls.
func (cfg *BankConfig) BusyPollDelay() time.Duration { return cfg.busyPollDelay }

// Metrics returns the metrics shared by banks created with this config.
func (cfg *BankConfig) Metrics() *BankMetrics { return cfg.metrics }

// GetLogger returns the configured logger.
func (cfg *BankConfig) GetLogger() logger.Logger { return cfg.logger }

// BankOption is a functional option for configuring a BankConfig.
type BankOption interface {
	apply(*BankConfig) error
}

type bankOptFunc func(*BankConfig) error

func (f bankOptFunc) apply(cfg *BankConfig) error { return f(cfg) }

// WithLogger sets the logger of the banks.
func WithLogger(l logger.Logger) BankOption {
	return bankOptFunc(func(cfg *BankConfig) error {
		if l == nil {
			return fmt.Errorf("memory: logger is nil")
		}
		cfg.logger = l

		return nil
	})
}

// WithWriteVerification sets the initial write verification setting. Default true.
func WithWriteVerification(enabled bool) BankOption {
	return bankOptFunc(func(cfg *BankConfig) error {
		cfg.writeVerification = enabled
		return nil
	})
}

// WithCopyDwell sets how long the strong pull-up is held for a scratchpad copy.
// Must be in [0, 1s].
func WithCopyDwell(d time.Duration) BankOption {
	return bankOptFunc(func(cfg *BankConfig) error {
		if d < 0 || d > MaxCopyDwell {
			return fmt.Errorf("memory: copy dwell %v out of range [0, %v]", d, MaxCopyDwell)
		}
		cfg.copyDwell = d

		return nil
	})
}

// WithPasswordDwell sets how long the strong pull-up is held for a password
// verification. Must be in [0, 1s].
func WithPasswordDwell(d time.Duration) BankOption {
	return bankOptFunc(func(cfg *BankConfig) error {
		if d < 0 || d > MaxPasswordDwell {
			return fmt.Errorf("memory: password dwell %v out of range [0, %v]", d, MaxPasswordDwell)
		}
		cfg.passwordDwell = d

		return nil
	})
}

// WithProgramDwell sets the settle time after an EPROM program pulse.
// Must be in [0, 100ms].
func WithProgramDwell(d time.Duration) BankOption {
	return bankOptFunc(func(cfg *BankConfig) error {
		if d < 0 || d > MaxProgramDwell {
			return fmt.Errorf("memory: program dwell %v out of range [0, %v]", d, MaxProgramDwell)
		}
		cfg.programDwell = d

		return nil
	})
}

// WithBusyPollAttempts sets how many status reads return all ones before the
// value is accepted as data. Must be in [1, 32].
func WithBusyPollAttempts(n int) BankOption {
	return bankOptFunc(func(cfg *BankConfig) error {
		if n < 1 || n > MaxBusyPollAttempts {
			return fmt.Errorf("memory: busy poll attempts %d out of range [1, %d]", n, MaxBusyPollAttempts)
		}
		cfg.busyPollAttempts = n

		return nil
	})
}

// WithBusyPollDelay sets the first delay between busy polls; later delays
// double up to eight times this value. Must be in [0, 500ms].
func WithBusyPollDelay(d time.Duration) BankOption {
	return bankOptFunc(func(cfg *BankConfig) error {
		if d < 0 || d > MaxBusyPollDelay {
			return fmt.Errorf("memory: busy poll delay %v out of range [0, %v]", d, MaxBusyPollDelay)
		}
		cfg.busyPollDelay = d

		return nil
	})
}

// WithMetrics makes the banks count into m instead of a private BankMetrics.
func WithMetrics(m *BankMetrics) BankOption {
	return bankOptFunc(func(cfg *BankConfig) error {
		if m == nil {
			return fmt.Errorf("memory: metrics is nil")
		}
		cfg.metrics = m

		return nil
	})
}
