package memory

import (
	"fmt"
	"sync"

	"github.com/arloliu/go-onewire/bus"
	"github.com/arloliu/go-onewire/logger"
)

// speedPolicy caches whether the bus speed of a device has been confirmed.
// Banks sharing a scratchpad share one policy.
type speedPolicy struct {
	id      bus.Identity
	metrics *BankMetrics
	logger  logger.Logger

	mu        sync.Mutex
	confirmed bool
}

func newSpeedPolicy(id bus.Identity, cfg *BankConfig) *speedPolicy {
	return &speedPolicy{
		id:      id,
		metrics: cfg.metrics,
		logger:  cfg.logger,
	}
}

// check negotiates the speed on first use and after forceVerify.
func (s *speedPolicy) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.confirmed {
		return nil
	}

	s.metrics.incSpeedCheckCount()
	if err := s.id.DoSpeed(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCommunication, s.id.Address(), err)
	}
	s.confirmed = true

	return nil
}

// forceVerify clears the cache so the next call renegotiates.
func (s *speedPolicy) forceVerify() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.confirmed {
		s.logger.Debug("memory: speed cache cleared", "device", s.id.Address().String())
	}
	s.confirmed = false
}

// selectDevice resets the bus and addresses the device.
func (s *speedPolicy) selectDevice() error {
	ok, err := s.id.Adapter().Select(s.id.Address())
	if err != nil {
		return fmt.Errorf("%w: select %s: %w", ErrCommunication, s.id.Address(), err)
	}
	if !ok {
		return fmt.Errorf("%w: %s not present", ErrCommunication, s.id.Address())
	}

	return nil
}

// begin prepares a top-level operation. With cont set the device is assumed
// to be still selected from the previous operation.
func (s *speedPolicy) begin(cont bool) error {
	if cont {
		return nil
	}
	if err := s.check(); err != nil {
		return err
	}

	return s.selectDevice()
}

// fail clears the speed cache when err requires it and returns err.
func (s *speedPolicy) fail(err error) error {
	if err != nil && renegotiates(err) {
		s.forceVerify()
	}

	return err
}

// transport wraps an adapter error as a communication failure.
func transport(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCommunication, op, err)
}
