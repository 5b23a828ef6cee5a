package sim

import (
	"bytes"
	"fmt"

	"github.com/arloliu/go-onewire/bus"
	"github.com/arloliu/go-onewire/crc"
)

const (
	ds1977MemSize   = 0x8000
	ds1977PageSize  = 64
	ds1977ROAddr    = 0x7FC0
	ds1977RWAddr    = 0x7FC8
	ds1977PCRAddr   = 0x7FD0
	ds1977PWLength  = 8
	ds1977Enabled   = 0xAA
	ds1977ESPartial = 0x40
	ds1977ESAuth    = 0x80
)

// DS1977 models a 32 KB password protected EEPROM with a 64-byte scratchpad.
//
// Read-only and read-write passwords live at 0x7FC0 and 0x7FC8 and always
// read back as zeros. Writing 0xAA to the password control register at
// 0x7FD0 enables both passwords; while enabled, memory reads need either
// password and copies need the read-write password.
type DS1977 struct {
	base

	mem [ds1977MemSize]byte
	sp  [ds1977PageSize]byte
	ta  uint16
	es  byte

	cmd   byte
	pos   int
	out   []byte
	crc   uint16
	count int
	pw    []byte
	ok    bool
	addr  int
}

func newDS1977(addr bus.Address) *DS1977 {
	d := &DS1977{base: newBase(addr, bus.SpeedOverdrive)}
	for i := 0; i < ds1977ROAddr; i++ {
		d.mem[i] = 0xFF
	}

	return d
}

// NewDS1977 creates a DS1977 with the given serial number.
func NewDS1977(serial uint64) *DS1977 {
	return newDS1977(bus.NewAddress(FamilyDS1977, serial))
}

// PasswordsEnabled reports whether the password control register is set.
func (d *DS1977) PasswordsEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.enabled()
}

func (d *DS1977) enabled() bool {
	return d.mem[ds1977PCRAddr] == ds1977Enabled
}

func (d *DS1977) Image() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]byte(nil), d.mem[:]...)
}

func (d *DS1977) LoadImage(img []byte) error {
	if len(img) != ds1977MemSize {
		return fmt.Errorf("sim: DS1977 image is %d bytes, want %d", len(img), ds1977MemSize)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	copy(d.mem[:], img)

	return nil
}

func (d *DS1977) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cmd = 0
	d.pos = 0
	d.out = nil
}

func (d *DS1977) touch(b byte, spu bool) byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cmd == 0 {
		d.start(b)
		return 0xFF
	}
	defer func() { d.pos++ }()

	switch d.cmd {
	case 0x0F:
		return d.writeScratchpad(b)
	case 0xAA:
		if d.pos < len(d.out) {
			return d.out[d.pos]
		}
	case 0x99:
		return d.copyScratchpad(b, spu)
	case 0x69:
		return d.readMemory(b)
	case 0xC3:
		return d.verifyPassword(b, spu)
	}

	return 0xFF
}

func (d *DS1977) start(cmd byte) {
	d.cmd = cmd
	d.pos = 0
	d.out = nil
	d.pw = d.pw[:0]
	d.ok = false
	d.crc = crc.Update16(0, cmd)
	d.count = 0

	if cmd == 0xAA {
		off := int(d.ta % ds1977PageSize)
		end := int(d.es & 0x3F)
		d.out = []byte{byte(d.ta), byte(d.ta >> 8), d.es}
		if end >= off {
			d.out = append(d.out, d.sp[off:end+1]...)
		}
		d.out = crc.Append16(d.out, d.out, crc.Update16(0, cmd))
	}
}

func (d *DS1977) writeScratchpad(b byte) byte {
	switch d.pos {
	case 0:
		d.ta = uint16(b)
		d.crc = crc.Update16(d.crc, b)
		return 0xFF
	case 1:
		d.ta |= uint16(b) << 8
		d.crc = crc.Update16(d.crc, b)
		d.es = ds1977ESPartial
		return 0xFF
	}

	off := int(d.ta % ds1977PageSize)
	if off+d.count < ds1977PageSize {
		i := off + d.count
		d.sp[i] = b
		d.crc = crc.Update16(d.crc, b)
		d.count++
		d.es = byte(i)
		if i == ds1977PageSize-1 {
			inv := ^d.crc
			d.out = []byte{byte(inv), byte(inv >> 8)}
		}

		return 0xFF
	}
	if idx := d.pos - 2 - d.count; idx < len(d.out) {
		return d.out[idx]
	}

	return 0xFF
}

func (d *DS1977) copyScratchpad(b byte, spu bool) byte {
	switch {
	case d.pos == 0:
		d.ok = b == byte(d.ta)
	case d.pos == 1:
		d.ok = d.ok && b == byte(d.ta>>8)
	case d.pos == 2:
		d.ok = d.ok && b == d.es && d.es&(ds1977ESPartial|ds1977ESAuth) == 0
	case d.pos < 3+ds1977PWLength:
		d.pw = append(d.pw, b)
		if len(d.pw) < ds1977PWLength {
			return 0xFF
		}
		d.ok = d.ok && spu && (!d.enabled() || bytes.Equal(d.pw, d.mem[ds1977RWAddr:ds1977RWAddr+ds1977PWLength]))
		if d.ok {
			page := int(d.ta &^ (ds1977PageSize - 1))
			off := int(d.ta % ds1977PageSize)
			end := int(d.es & 0x3F)
			copy(d.mem[page+off:page+end+1], d.sp[off:end+1])
			d.es |= ds1977ESAuth
		}
	default:
		if d.ok {
			return 0xAA
		}
	}

	return 0xFF
}

func (d *DS1977) readMemory(b byte) byte {
	switch {
	case d.pos == 0:
		d.addr = int(b)
		d.crc = crc.Update16(d.crc, b)
		return 0xFF
	case d.pos == 1:
		d.addr |= int(b) << 8
		d.crc = crc.Update16(d.crc, b)
		return 0xFF
	case d.pos < 2+ds1977PWLength:
		d.pw = append(d.pw, b)
		if len(d.pw) == ds1977PWLength {
			d.ok = !d.enabled() ||
				bytes.Equal(d.pw, d.mem[ds1977ROAddr:ds1977ROAddr+ds1977PWLength]) ||
				bytes.Equal(d.pw, d.mem[ds1977RWAddr:ds1977RWAddr+ds1977PWLength])
		}
		return 0xFF
	}

	if !d.ok {
		return 0xFF
	}
	if len(d.out) > 0 {
		v := d.out[0]
		d.out = d.out[1:]
		return v
	}
	if d.addr >= ds1977MemSize {
		return 0xFF
	}

	v := d.mem[d.addr]
	if d.addr >= ds1977ROAddr && d.addr < ds1977PCRAddr {
		v = 0x00
	}
	d.crc = crc.Update16(d.crc, v)
	d.addr++
	if d.addr%ds1977PageSize == 0 {
		inv := ^d.crc
		d.out = []byte{byte(inv), byte(inv >> 8)}
		d.crc = 0
	}

	return v
}

func (d *DS1977) verifyPassword(b byte, spu bool) byte {
	switch {
	case d.pos == 0:
		d.addr = int(b)
		return 0xFF
	case d.pos == 1:
		d.addr |= int(b) << 8
		return 0xFF
	case d.pos < 2+ds1977PWLength:
		d.pw = append(d.pw, b)
		if len(d.pw) == ds1977PWLength && spu &&
			(d.addr == ds1977ROAddr || d.addr == ds1977RWAddr) {
			d.ok = bytes.Equal(d.pw, d.mem[d.addr:d.addr+ds1977PWLength])
		}
		return 0xFF
	}
	if d.ok {
		return 0xAA
	}

	return 0xFF
}
