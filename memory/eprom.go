package memory

import (
	"fmt"

	"github.com/arloliu/go-onewire/bus"
	"github.com/arloliu/go-onewire/crc"
	"github.com/arloliu/go-onewire/internal/pool"
)

// EPROMCommands is the command set of one EPROM bank.
type EPROMCommands struct {
	// Read starts a read; the device answers with the CRC8 of the command
	// and address before the data.
	Read byte
	// ReadPageCRC starts a paged read that ends every page with a CRC8.
	ReadPageCRC byte
	// Write programs bytes one at a time.
	Write byte
}

var (
	// EPROMMainCommands drive the data memory of an add-only EPROM.
	EPROMMainCommands = EPROMCommands{Read: 0xF0, ReadPageCRC: 0xC3, Write: 0x0F}
	// EPROMStatusCommands drive the status memory of an add-only EPROM.
	EPROMStatusCommands = EPROMCommands{Read: 0xAA, ReadPageCRC: 0xAA, Write: 0x55}
)

// EPROMStatusLayout locates the page state inside the status bank.
//
// Lock and redirect-lock bitmaps use one bit per page, cleared when set.
// Redirection bytes hold the one's complement of the replacement page, one
// byte per page.
type EPROMStatusLayout struct {
	LockOffset         int
	RedirectOffset     int
	RedirectLockOffset int
}

// EPROM is a write-once bank programmed byte by byte with a program pulse.
// Bits can only go from 1 to 0.
type EPROM struct {
	paged

	cmds   EPROMCommands
	status *EPROM
	layout EPROMStatusLayout
}

var _ OTPMemoryBank = (*EPROM)(nil)

// NewEPROM creates an EPROM bank. A nil cfg uses the defaults.
func NewEPROM(id bus.Identity, desc Descriptor, cmds EPROMCommands, cfg *BankConfig) *EPROM {
	cfg = defaultConfig(cfg)

	e := &EPROM{cmds: cmds}
	e.init(id, desc, cfg, newSpeedPolicy(id, cfg))
	e.io = e

	return e
}

// SetStatusBank makes status the holder of this bank's page lock and
// redirection state. Both banks share one speed cache afterwards.
func (e *EPROM) SetStatusBank(status *EPROM, layout EPROMStatusLayout) {
	e.status = status
	e.layout = layout
	status.speed = e.speed
}

func (e *EPROM) Read(addr int, cont bool, p []byte) error {
	if err := e.checkRange(addr, len(p)); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	e.metrics.incReadCount()

	return e.done(e.read(e.desc.PhysicalAddress(addr), cont, p))
}

func (e *EPROM) read(phys int, cont bool, p []byte) error {
	if cont {
		buf := ffBlock(len(p))
		if err := e.block(buf); err != nil {
			return err
		}
		copy(p, buf)

		return nil
	}

	if err := e.speed.begin(false); err != nil {
		return err
	}
	// command, TA1, TA2, CRC8, data
	buf := append([]byte{e.cmds.Read, byte(phys), byte(phys >> 8), 0xFF}, ffBlock(len(p))...)
	if err := e.block(buf); err != nil {
		return err
	}
	if crc.CRC8(buf[:4], 0) != 0 {
		return fmt.Errorf("%w: read command echo at 0x%04X", ErrIntegrity, phys)
	}
	copy(p, buf[4:])

	return nil
}

func (e *EPROM) readPage(page int, cont bool, p, _ []byte, withCRC bool) error {
	e.metrics.incReadCount()
	phys := e.desc.PhysicalAddress(e.desc.PageAddress(page))
	if !withCRC {
		return e.done(e.read(phys, cont, p))
	}

	return e.done(e.readPageCRC(phys, cont, p))
}

func (e *EPROM) readPageCRC(phys int, cont bool, p []byte) error {
	var head []byte
	if !cont {
		if err := e.speed.begin(false); err != nil {
			return err
		}
		head = []byte{e.cmds.ReadPageCRC, byte(phys), byte(phys >> 8), 0xFF}
	}

	buf := append(head, ffBlock(len(p)+1)...)
	if err := e.block(buf); err != nil {
		return err
	}
	if len(head) > 0 && crc.CRC8(buf[:len(head)], 0) != 0 {
		return fmt.Errorf("%w: read command echo at 0x%04X", ErrIntegrity, phys)
	}

	data := buf[len(head):]
	if crc.CRC8(data, 0) != 0 {
		return fmt.Errorf("%w: page at 0x%04X", ErrIntegrity, phys)
	}
	copy(p, data)

	return nil
}

func (e *EPROM) Write(addr int, p []byte) error {
	if err := e.checkWrite(addr, p); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	e.metrics.incWriteCount()

	return e.done(e.write(addr, p, e.WriteVerification()))
}

func (e *EPROM) write(addr int, p []byte, verify bool) error {
	if e.status != nil {
		pl := e.desc.PageLength
		for page := addr / pl; page <= (addr+len(p)-1)/pl; page++ {
			locked, err := e.isPageLocked(page)
			if err != nil {
				return err
			}
			if locked {
				return fmt.Errorf("%w: page %d is locked", ErrVerification, page)
			}
		}
	}

	if err := e.speed.begin(false); err != nil {
		return err
	}

	a := e.adapter()
	phys := e.desc.PhysicalAddress(addr)
	for i, d := range p {
		if err := e.programByte(a, phys+i, d, i > 0); err != nil {
			return err
		}

		got, err := a.GetByte()
		if err != nil {
			return transport("program read-back", err)
		}
		if verify && got != d {
			return fmt.Errorf("%w: %s offset %d: programmed 0x%02X, read 0x%02X",
				ErrVerification, e.desc.Description, addr+i, d, got)
		}
	}

	return nil
}

// programByte sends one byte, checks the CRC8 echo and applies the
// program pulse. The first byte carries the command and address; later
// bytes continue at the next address.
func (e *EPROM) programByte(a bus.Adapter, phys int, d byte, next bool) error {
	if !next {
		buf := []byte{e.cmds.Write, byte(phys), byte(phys >> 8), d, 0xFF}
		if err := e.block(buf); err != nil {
			return err
		}
		if crc.CRC8(buf, 0) != 0 {
			return fmt.Errorf("%w: program echo at 0x%04X", ErrIntegrity, phys)
		}
	} else {
		if err := a.PutByte(d); err != nil {
			return transport("program byte", err)
		}
		echo, err := a.GetByte()
		if err != nil {
			return transport("program echo", err)
		}
		if crc.Update8(byte(phys), d) != echo {
			return fmt.Errorf("%w: program echo at 0x%04X", ErrIntegrity, phys)
		}
	}

	if err := a.SetProgramPulseDuration(bus.DeliveryEPROM); err != nil {
		return transport("program pulse duration", err)
	}
	ok, err := a.StartProgramPulse(bus.ConditionNow)
	if err != nil {
		return transport("program pulse", err)
	}
	if !ok {
		return fmt.Errorf("%w: adapter refused program pulse", ErrPowerUnavailable)
	}
	pool.Sleep(e.cfg.programDwell)

	return nil
}

// statusByte reads one byte of the status bank.
func (e *EPROM) statusByte(offset int) (byte, error) {
	buf := make([]byte, 1)
	if err := e.status.read(e.status.desc.PhysicalAddress(offset), false, buf); err != nil {
		return 0, err
	}

	return buf[0], nil
}

// clearStatusBits programs mask into the status byte at offset. Other bits
// of the byte may already be cleared, so the byte is not verified.
func (e *EPROM) clearStatusBits(offset int, value byte) error {
	if err := e.status.checkPower(); err != nil {
		return err
	}

	return e.status.write(offset, []byte{value}, false)
}

func (e *EPROM) CanLockPage() bool { return e.status != nil }

func (e *EPROM) CanRedirectPage() bool { return e.status != nil }

func (e *EPROM) CanLockRedirectPage() bool { return e.status != nil }

func (e *EPROM) otpCheck(page int) error {
	if err := e.checkPage(page); err != nil {
		return err
	}
	if e.status == nil {
		return fmt.Errorf("%w: %s has no status memory", ErrCapability, e.desc.Description)
	}

	return nil
}

func (e *EPROM) LockPage(page int) error {
	if err := e.otpCheck(page); err != nil {
		return err
	}

	err := e.clearStatusBits(e.layout.LockOffset+page/8, ^byte(1<<(page%8)))
	if err == nil {
		var locked bool
		locked, err = e.isPageLocked(page)
		if err == nil && !locked {
			err = fmt.Errorf("%w: page %d did not lock", ErrVerification, page)
		}
	}
	if err != nil {
		return e.done(err)
	}
	e.logger.Info("memory: page locked", "page", page)

	return nil
}

func (e *EPROM) IsPageLocked(page int) (bool, error) {
	if err := e.checkPage(page); err != nil {
		return false, err
	}
	if e.status == nil {
		return false, nil
	}
	locked, err := e.isPageLocked(page)

	return locked, e.done(err)
}

func (e *EPROM) isPageLocked(page int) (bool, error) {
	v, err := e.statusByte(e.layout.LockOffset + page/8)
	if err != nil {
		return false, err
	}

	return v&(1<<(page%8)) == 0, nil
}

func (e *EPROM) RedirectPage(page, newPage int) error {
	if err := e.otpCheck(page); err != nil {
		return err
	}
	if err := e.checkPage(newPage); err != nil {
		return err
	}

	err := e.clearStatusBits(e.layout.RedirectOffset+page, ^byte(newPage))
	if err == nil {
		var got int
		got, err = e.redirectedPage(page)
		if err == nil && got != newPage {
			err = fmt.Errorf("%w: page %d redirects to %d, want %d", ErrVerification, page, got, newPage)
		}
	}
	if err != nil {
		return e.done(err)
	}
	e.logger.Info("memory: page redirected", "page", page, "to", newPage)

	return nil
}

func (e *EPROM) RedirectedPage(page int) (int, error) {
	if err := e.checkPage(page); err != nil {
		return 0, err
	}
	if e.status == nil {
		return 0, nil
	}
	p, err := e.redirectedPage(page)

	return p, e.done(err)
}

func (e *EPROM) redirectedPage(page int) (int, error) {
	v, err := e.statusByte(e.layout.RedirectOffset + page)
	if err != nil {
		return 0, err
	}

	return int(^v), nil
}

func (e *EPROM) LockRedirectPage(page int) error {
	if err := e.otpCheck(page); err != nil {
		return err
	}

	err := e.clearStatusBits(e.layout.RedirectLockOffset+page/8, ^byte(1<<(page%8)))
	if err == nil {
		var locked bool
		locked, err = e.isRedirectPageLocked(page)
		if err == nil && !locked {
			err = fmt.Errorf("%w: redirection of page %d did not lock", ErrVerification, page)
		}
	}
	if err != nil {
		return e.done(err)
	}
	e.logger.Info("memory: page redirection locked", "page", page)

	return nil
}

func (e *EPROM) IsRedirectPageLocked(page int) (bool, error) {
	if err := e.checkPage(page); err != nil {
		return false, err
	}
	if e.status == nil {
		return false, nil
	}
	locked, err := e.isRedirectPageLocked(page)

	return locked, e.done(err)
}

func (e *EPROM) isRedirectPageLocked(page int) (bool, error) {
	v, err := e.statusByte(e.layout.RedirectLockOffset + page/8)
	if err != nil {
		return false, err
	}

	return v&(1<<(page%8)) == 0, nil
}
