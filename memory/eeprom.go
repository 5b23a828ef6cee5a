package memory

import "fmt"

// ReadMemoryCommand reads memory from a start address to the end of the device.
const ReadMemoryCommand byte = 0xF0

// Page protection values of the EEPROM memory control bank.
const (
	ProtectionWrite byte = 0x55 // page is write protected
	ProtectionEPROM byte = 0xAA // page bits can only be cleared
)

// EEPROM is a rewritable bank written through a Scratchpad.
//
// Writes are split at scratchpad rows; rows only partially covered by the
// request are read first and written back merged. Banks with a lock bank
// keep one protection byte per page there.
type EEPROM struct {
	paged

	sp       *Scratchpad
	lockBank *EEPROM
	poller   busyPoller
}

var _ OTPMemoryBank = (*EEPROM)(nil)

// NewEEPROM creates a bank described by desc behind scratchpad sp. The bank
// shares the configuration and speed cache of sp.
func NewEEPROM(sp *Scratchpad, desc Descriptor) *EEPROM {
	e := &EEPROM{
		sp:     sp,
		poller: newBusyPoller(sp.cfg),
	}
	e.init(sp.id, desc, sp.cfg, sp.speed)
	e.io = e

	return e
}

// SetLockBank sets the bank holding the protection byte of each page, one
// byte per page starting at its offset 0.
func (e *EEPROM) SetLockBank(lock *EEPROM) { e.lockBank = lock }

// Scratchpad returns the scratchpad the bank writes through.
func (e *EEPROM) Scratchpad() *Scratchpad { return e.sp }

func (e *EEPROM) Read(addr int, cont bool, p []byte) error {
	if err := e.checkRange(addr, len(p)); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	e.metrics.incReadCount()

	return e.done(e.read(e.desc.PhysicalAddress(addr), cont, p))
}

func (e *EEPROM) readPage(page int, cont bool, p, _ []byte, _ bool) error {
	e.metrics.incReadCount()
	phys := e.desc.PhysicalAddress(e.desc.PageAddress(page))

	return e.done(e.read(phys, cont, p))
}

func (e *EEPROM) readHeader(phys int) []byte {
	if e.sp.kind == ScratchpadPlain {
		return []byte{ReadMemoryCommand, byte(phys)}
	}

	return []byte{ReadMemoryCommand, byte(phys), byte(phys >> 8)}
}

func (e *EEPROM) read(phys int, cont bool, p []byte) error {
	var head []byte
	if !cont {
		if err := e.speed.begin(false); err != nil {
			return err
		}
		head = e.readHeader(phys)
	}

	buf := append(head, ffBlock(len(p))...)
	if err := e.block(buf); err != nil {
		return err
	}
	copy(p, buf[len(head):])

	return nil
}

// readSettled reads n bytes, polling while the device still reads as busy.
func (e *EEPROM) readSettled(phys, n int) ([]byte, error) {
	return e.poller.poll(func() ([]byte, error) {
		buf := make([]byte, n)
		if err := e.read(phys, false, buf); err != nil {
			return nil, err
		}

		return buf, nil
	})
}

func (e *EEPROM) Write(addr int, p []byte) error {
	if err := e.checkWrite(addr, p); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	e.metrics.incWriteCount()

	return e.done(e.write(addr, p))
}

func (e *EEPROM) write(addr int, p []byte) error {
	row := e.sp.size
	phys := e.desc.PhysicalAddress(addr)
	end := phys + len(p)

	committed := false
	for start := phys; start < end; {
		rowStart := start - start%row
		rowEnd := min(rowStart+row, end)

		data := make([]byte, row)
		if start != rowStart || rowEnd != rowStart+row {
			var current []byte
			var err error
			if committed {
				current, err = e.readSettled(rowStart, row)
			} else {
				current = data
				err = e.read(rowStart, false, current)
			}
			if err != nil {
				return err
			}
			copy(data, current)
		}
		copy(data[start-rowStart:], p[start-phys:rowEnd-phys])

		if err := e.sp.Commit(rowStart, data); err != nil {
			return err
		}
		committed = true
		start = rowEnd
	}

	if !e.WriteVerification() {
		return nil
	}
	got, err := e.readSettled(phys, len(p))
	if err != nil {
		return err
	}

	return e.compare(addr, p, got)
}

func (e *EEPROM) CanLockPage() bool { return e.lockBank != nil }

func (e *EEPROM) CanRedirectPage() bool { return false }

func (e *EEPROM) CanLockRedirectPage() bool { return false }

// LockPage write protects page.
func (e *EEPROM) LockPage(page int) error {
	return e.setProtection(page, ProtectionWrite)
}

func (e *EEPROM) IsPageLocked(page int) (bool, error) {
	v, err := e.protection(page)

	return v == ProtectionWrite, err
}

// SetPageEPROMMode puts page in EPROM mode: afterwards writes can only clear bits.
func (e *EEPROM) SetPageEPROMMode(page int) error {
	return e.setProtection(page, ProtectionEPROM)
}

// IsPageEPROMMode reports whether page is in EPROM mode.
func (e *EEPROM) IsPageEPROMMode(page int) (bool, error) {
	v, err := e.protection(page)

	return v == ProtectionEPROM, err
}

func (e *EEPROM) setProtection(page int, value byte) error {
	if err := e.checkPage(page); err != nil {
		return err
	}
	if !e.CanLockPage() {
		return fmt.Errorf("%w: %s has no page protection", ErrCapability, e.desc.Description)
	}

	// errors are already counted by the lock bank
	if err := e.lockBank.Write(page, []byte{value}); err != nil {
		return err
	}

	v, err := e.protection(page)
	if err != nil {
		return err
	}
	if v != value {
		return e.done(fmt.Errorf("%w: page %d protection reads 0x%02X, want 0x%02X", ErrVerification, page, v, value))
	}
	e.logger.Info("memory: page protection set", "page", page, "protection", fmt.Sprintf("0x%02X", value))

	return nil
}

func (e *EEPROM) protection(page int) (byte, error) {
	if err := e.checkPage(page); err != nil {
		return 0, err
	}
	if !e.CanLockPage() {
		return 0, nil
	}

	phys := e.lockBank.desc.PhysicalAddress(page)
	v, err := e.lockBank.readSettled(phys, 1)
	if err != nil {
		return 0, e.done(err)
	}

	return v[0], nil
}

func (e *EEPROM) RedirectPage(int, int) error {
	return fmt.Errorf("%w: %s cannot redirect pages", ErrCapability, e.desc.Description)
}

func (e *EEPROM) RedirectedPage(int) (int, error) { return 0, nil }

func (e *EEPROM) LockRedirectPage(int) error {
	return fmt.Errorf("%w: %s cannot redirect pages", ErrCapability, e.desc.Description)
}

func (e *EEPROM) IsRedirectPageLocked(int) (bool, error) { return false, nil }
