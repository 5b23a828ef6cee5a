package bus

import (
	"context"

	"github.com/arloliu/go-onewire/logger"
)

// Port serializes access to an Adapter.
//
// Port embeds the Adapter, so it can be passed anywhere an Adapter is
// expected; the embedded methods are not locked individually. Only
// Exclusive provides mutual exclusion.
type Port struct {
	Adapter

	sem    chan struct{}
	logger logger.Logger
}

// PortOption configures a Port.
type PortOption func(*Port)

// WithPortLogger sets the logger of the port.
func WithPortLogger(l logger.Logger) PortOption {
	return func(p *Port) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPort wraps a in a Port.
func NewPort(a Adapter, opts ...PortOption) *Port {
	p := &Port{
		Adapter: a,
		sem:     make(chan struct{}, 1),
		logger:  logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Exclusive runs fn while holding the bus.
//
// Waiting for the bus is cancelled by ctx. The body itself always runs to
// completion.
func (p *Port) Exclusive(ctx context.Context, fn func(Adapter) error) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.sem }()

	return fn(p.Adapter)
}

// TryExclusive runs fn only if the bus is free. It reports whether fn ran.
func (p *Port) TryExclusive(fn func(Adapter) error) (bool, error) {
	select {
	case p.sem <- struct{}{}:
	default:
		p.logger.Debug("bus: port busy")
		return false, nil
	}
	defer func() { <-p.sem }()

	return true, fn(p.Adapter)
}
