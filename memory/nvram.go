package memory

import (
	"fmt"

	"github.com/arloliu/go-onewire/crc"
)

// ReadMemoryPWCommand reads password protected memory.
const ReadMemoryPWCommand byte = 0x69

// NVRAM is a password protected bank written through a ScratchpadPassword
// scratchpad.
//
// Reads always run to the end of a device page and check the CRC16 the
// device appends there, so a read with cont set continues at the next page.
// A device rejecting the read password answers with all ones, which fails
// the CRC; the bank then challenges the device to tell ErrAuthentication
// from ErrIntegrity.
type NVRAM struct {
	paged
	*passwordGuard

	sp *Scratchpad
}

var (
	_ PagedMemoryBank   = (*NVRAM)(nil)
	_ PasswordProtected = (*NVRAM)(nil)
)

// NewPasswordNVRAM creates the data bank and the password register bank of
// a device behind scratchpad sp. The register bank must contain the password
// and control registers of layout. Both banks share host secrets and control
// state.
func NewPasswordNVRAM(sp *Scratchpad, desc, regDesc Descriptor, layout PasswordLayout) (*NVRAM, *NVRAM) {
	guard := &passwordGuard{sp: sp, layout: layout}

	main := newNVRAM(sp, desc, guard)
	reg := newNVRAM(sp, regDesc, guard)
	guard.register = reg

	return main, reg
}

func newNVRAM(sp *Scratchpad, desc Descriptor, guard *passwordGuard) *NVRAM {
	n := &NVRAM{sp: sp, passwordGuard: guard}
	n.init(sp.id, desc, sp.cfg, sp.speed)
	n.io = n

	return n
}

// Scratchpad returns the scratchpad the bank writes through.
func (n *NVRAM) Scratchpad() *Scratchpad { return n.sp }

func (n *NVRAM) Read(addr int, cont bool, p []byte) error {
	if err := n.checkRange(addr, len(p)); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	n.metrics.incReadCount()

	return n.done(n.read(n.desc.PhysicalAddress(addr), cont, p))
}

func (n *NVRAM) readPage(page int, cont bool, p, _ []byte, _ bool) error {
	n.metrics.incReadCount()
	phys := n.desc.PhysicalAddress(n.desc.PageAddress(page))

	return n.done(n.read(phys, cont, p))
}

func (n *NVRAM) read(phys int, cont bool, p []byte) error {
	var head []byte
	var seed uint16
	if !cont {
		if err := n.speed.begin(false); err != nil {
			return err
		}
		secret, _ := n.readSecret()
		head = []byte{ReadMemoryPWCommand, byte(phys), byte(phys >> 8)}
		seed = crc.CRC16(head, 0)
		head = append(head, padPassword(secret)...)
	}

	pageLen := n.desc.PageLength
	end := phys + len(p)
	buf := head
	for a := phys; a < end; a = (a/pageLen + 1) * pageLen {
		buf = append(buf, ffBlock((a/pageLen+1)*pageLen-a+2)...)
	}
	if err := n.block(buf); err != nil {
		return err
	}

	pos := len(head)
	for a := phys; a < end; {
		segEnd := (a/pageLen + 1) * pageLen
		seg := buf[pos : pos+segEnd-a+2]
		data := seg[:segEnd-a]
		if crc.CRC16(seg, seed) != crc.Accept16 {
			return n.readFailure(a, data)
		}
		copy(p[a-phys:], data)

		pos += len(seg)
		a = segEnd
		seed = 0
	}

	return nil
}

// readFailure classifies a page whose CRC did not match.
func (n *NVRAM) readFailure(phys int, data []byte) error {
	if allOnes(data) {
		secret, target := n.readSecret()
		ok, err := n.sp.VerifyPassword(target, secret)
		if err == nil && !ok {
			return fmt.Errorf("%w: read password rejected at 0x%04X", ErrAuthentication, phys)
		}
	}

	return fmt.Errorf("%w: %s read at 0x%04X", ErrIntegrity, n.desc.Description, phys)
}

func (n *NVRAM) Write(addr int, p []byte) error {
	return n.writeChecked(addr, p, n.WriteVerification())
}

func (n *NVRAM) writeChecked(addr int, p []byte, verify bool) error {
	if err := n.checkWrite(addr, p); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	n.metrics.incWriteCount()

	return n.done(n.write(addr, p, verify))
}

func (n *NVRAM) write(addr int, p []byte, verify bool) error {
	enforced, err := n.enforced()
	if err != nil {
		return err
	}
	rw := n.secret(ReadWritePassword)

	row := n.sp.size
	phys := n.desc.PhysicalAddress(addr)
	end := phys + len(p)
	for start := phys; start < end; {
		segEnd := min(start-start%row+row, end)

		t, err := n.sp.Begin(start, p[start-phys:segEnd-phys])
		if err != nil {
			return err
		}
		if err := t.Verify(); err != nil {
			return err
		}
		if enforced {
			err = t.VerifyPassword(n.layout.ReadWriteAddress, rw)
		} else {
			t.SetPassword(rw)
		}
		if err != nil {
			return err
		}
		if err := t.Copy(); err != nil {
			return err
		}
		start = segEnd
	}

	if !verify {
		return nil
	}
	got := make([]byte, len(p))
	if err := n.read(phys, false, got); err != nil {
		return err
	}

	return n.compare(addr, p, got)
}
