package memory

import (
	"fmt"
	"sync/atomic"

	"github.com/arloliu/go-onewire/bus"
	"github.com/arloliu/go-onewire/logger"
)

// bankCore carries the state every bank kind shares.
type bankCore struct {
	desc    Descriptor
	id      bus.Identity
	cfg     *BankConfig
	speed   *speedPolicy
	metrics *BankMetrics
	logger  logger.Logger

	verify atomic.Bool
}

func (b *bankCore) init(id bus.Identity, desc Descriptor, cfg *BankConfig, speed *speedPolicy) {
	b.desc = desc
	b.id = id
	b.cfg = cfg
	b.speed = speed
	b.metrics = cfg.metrics
	b.logger = cfg.logger.With("bank", desc.Description, "device", id.Address().String())
	b.verify.Store(cfg.writeVerification)
}

func (b *bankCore) Descriptor() Descriptor { return b.desc }

func (b *bankCore) SetWriteVerification(enabled bool) { b.verify.Store(enabled) }

func (b *bankCore) WriteVerification() bool { return b.verify.Load() }

// ForceVerify clears the cached speed state so the next operation
// renegotiates speed and presence.
func (b *bankCore) ForceVerify() { b.speed.forceVerify() }

// Metrics returns the counters the bank updates.
func (b *bankCore) Metrics() *BankMetrics { return b.metrics }

func (b *bankCore) adapter() bus.Adapter { return b.id.Adapter() }

func (b *bankCore) checkRange(addr, n int) error {
	if addr < 0 || n < 0 || addr > b.desc.Size-n {
		return fmt.Errorf("%w: %s: %d bytes at offset %d outside [0, %d)", ErrRange, b.desc.Description, n, addr, b.desc.Size)
	}

	return nil
}

func (b *bankCore) checkPage(page int) error {
	if page < 0 || page >= b.desc.NumberPages {
		return fmt.Errorf("%w: %s page %d outside [0, %d)", ErrRange, b.desc.Description, page, b.desc.NumberPages)
	}

	return nil
}

// checkWrite validates a write request against the bank capabilities and
// the adapter power features.
func (b *bankCore) checkWrite(addr int, p []byte) error {
	if err := b.checkRange(addr, len(p)); err != nil {
		return err
	}
	if b.desc.Has(CapReadOnly) {
		return fmt.Errorf("%w: %s is read-only", ErrCapability, b.desc.Description)
	}

	return b.checkPower()
}

func (b *bankCore) checkPower() error {
	if b.desc.Has(CapPowerDelivery) && !b.adapter().CanDeliverPower() {
		return fmt.Errorf("%w: %s needs power delivery", ErrPowerUnavailable, b.desc.Description)
	}
	if b.desc.Has(CapProgramPulse) && !b.adapter().CanProgram() {
		return fmt.Errorf("%w: %s needs a program pulse", ErrPowerUnavailable, b.desc.Description)
	}

	return nil
}

// block shifts buf through the adapter.
func (b *bankCore) block(buf []byte) error {
	if err := b.adapter().DataBlock(buf); err != nil {
		return transport("data block", err)
	}

	return nil
}

// done ends a public operation: failures are counted and clear the speed
// cache when needed.
func (b *bankCore) done(err error) error {
	if err == nil {
		return nil
	}
	b.metrics.countErr(err)

	return b.speed.fail(err)
}

// compare checks read-back data against what was written.
func (b *bankCore) compare(addr int, want, got []byte) error {
	for i := range want {
		if want[i] != got[i] {
			return fmt.Errorf("%w: %s offset %d: wrote 0x%02X, read 0x%02X",
				ErrVerification, b.desc.Description, addr+i, want[i], got[i])
		}
	}

	return nil
}

// ffBlock returns a buffer of n bytes set to 0xFF, the value written to read.
func ffBlock(n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = 0xFF
	}

	return buf
}
