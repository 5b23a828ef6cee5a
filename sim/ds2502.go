package sim

import (
	"fmt"

	"github.com/arloliu/go-onewire/bus"
	"github.com/arloliu/go-onewire/crc"
)

const (
	ds2502MemSize    = 128
	ds2502PageSize   = 32
	ds2502StatusSize = 8
	ds2502ImageSize  = ds2502MemSize + ds2502StatusSize

	// status memory layout
	statusLockByte         = 0
	statusRedirectFirst    = 1
	statusRedirectLockByte = 5
)

type writeStep int

const (
	stepData writeStep = iota
	stepCRC
	stepProgram
	stepVerify
	stepNext
)

// DS2502 models a 1 Kb add-only EPROM.
//
// Bytes only change from 1 to 0, and only during a program pulse. The
// status memory holds the page lock bitmap (byte 0, bit clear = locked), the
// one's complement of the redirection page for pages 0-3 (bytes 1-4) and the
// redirection lock bitmap (byte 5).
type DS2502 struct {
	base

	mem    [ds2502MemSize]byte
	status [ds2502StatusSize]byte

	cmd      byte
	pos      int
	addr     int
	crc      byte
	data     byte
	step     writeStep
	crcPhase bool
}

func newDS2502(addr bus.Address) *DS2502 {
	d := &DS2502{base: newBase(addr, bus.SpeedRegular)}
	for i := range d.mem {
		d.mem[i] = 0xFF
	}
	for i := range d.status {
		d.status[i] = 0xFF
	}

	return d
}

// NewDS2502 creates a DS2502 with the given serial number.
func NewDS2502(serial uint64) *DS2502 {
	return newDS2502(bus.NewAddress(FamilyDS2502, serial))
}

// Image layout: 128 bytes data memory, 8 bytes status memory.
func (d *DS2502) Image() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	img := make([]byte, 0, ds2502ImageSize)
	img = append(img, d.mem[:]...)

	return append(img, d.status[:]...)
}

func (d *DS2502) LoadImage(img []byte) error {
	if len(img) != ds2502ImageSize {
		return fmt.Errorf("sim: DS2502 image is %d bytes, want %d", len(img), ds2502ImageSize)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	copy(d.mem[:], img[:ds2502MemSize])
	copy(d.status[:], img[ds2502MemSize:])

	return nil
}

func (d *DS2502) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cmd = 0
	d.pos = 0
}

func (d *DS2502) touch(b byte, _ bool) byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cmd == 0 {
		d.cmd = b
		d.pos = 0
		d.crc = crc.Update8(0, b)
		d.step = stepData
		d.crcPhase = false
		return 0xFF
	}
	defer func() { d.pos++ }()

	switch d.pos {
	case 0:
		d.addr = int(b)
		d.crc = crc.Update8(d.crc, b)
		return 0xFF
	case 1:
		d.addr |= int(b) << 8
		d.crc = crc.Update8(d.crc, b)
		return 0xFF
	}

	switch d.cmd {
	case 0xF0:
		if d.pos == 2 {
			return d.crc
		}
		if d.addr >= ds2502MemSize {
			return 0xFF
		}
		v := d.mem[d.addr]
		d.addr++
		return v
	case 0xC3:
		return d.readPaged(d.mem[:], ds2502PageSize)
	case 0xAA:
		return d.readPaged(d.status[:], ds2502StatusSize)
	case 0x0F, 0x55:
		return d.write(b)
	}

	return 0xFF
}

// readPaged emits the command CRC8, then each page from the start address
// to its end followed by the CRC8 of the bytes sent for that page.
func (d *DS2502) readPaged(mem []byte, pageSize int) byte {
	if d.pos == 2 {
		v := d.crc
		d.crc = 0
		return v
	}
	if d.crcPhase {
		d.crcPhase = false
		v := d.crc
		d.crc = 0
		return v
	}
	if d.addr >= len(mem) {
		return 0xFF
	}
	v := mem[d.addr]
	d.crc = crc.Update8(d.crc, v)
	d.addr++
	if d.addr%pageSize == 0 {
		d.crcPhase = true
	}

	return v
}

func (d *DS2502) write(b byte) byte {
	switch d.step {
	case stepData:
		d.data = b
		d.crc = crc.Update8(d.crc, b)
		d.step = stepCRC
	case stepNext:
		d.addr++
		d.data = b
		d.crc = crc.Update8(byte(d.addr), b)
		d.step = stepCRC
	case stepCRC:
		d.step = stepProgram
		return d.crc
	case stepVerify:
		d.step = stepNext
		if v, ok := d.target(); ok {
			return *v
		}
	}

	return 0xFF
}

func (d *DS2502) target() (*byte, bool) {
	switch d.cmd {
	case 0x0F:
		if d.addr < ds2502MemSize {
			return &d.mem[d.addr], true
		}
	case 0x55:
		if d.addr < ds2502StatusSize {
			return &d.status[d.addr], true
		}
	}

	return nil, false
}

func (d *DS2502) writable() bool {
	switch d.cmd {
	case 0x0F:
		page := d.addr / ds2502PageSize
		return d.status[statusLockByte]&(1<<page) != 0
	case 0x55:
		if d.addr >= statusRedirectFirst && d.addr < statusRedirectLockByte {
			return d.status[statusRedirectLockByte]&(1<<(d.addr-statusRedirectFirst)) != 0
		}
		return true
	}

	return false
}

func (d *DS2502) programPulse() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.step != stepProgram {
		return
	}
	d.step = stepVerify

	if v, ok := d.target(); ok && d.writable() {
		*v &= d.data
	}
}
