package sim

import (
	"fmt"

	"github.com/arloliu/go-onewire/bus"
	"github.com/arloliu/go-onewire/crc"
)

const (
	ds2431DataSize    = 0x80
	ds2431MemSize     = 0x90
	ds2431RowSize     = 8
	ds2431PageSize    = 32
	ds2431CopyProtect = 0x84

	protectWrite byte = 0x55
	protectEPROM byte = 0xAA
)

// DS2431 models a 1 Kb EEPROM with an 8-byte address-echo scratchpad.
//
// Memory 0x00-0x7F holds four 32-byte data pages, 0x80-0x83 their protection
// bytes (0x55 write protected, 0xAA EPROM mode), 0x84 the copy protection
// byte and 0x85-0x8F reserved registers.
type DS2431 struct {
	base

	mem [ds2431MemSize]byte
	sp  [ds2431RowSize]byte
	ta  uint16
	es  byte

	cmd    byte
	pos    int
	out    []byte
	addr   uint16
	crc    uint16
	count  int
	copyOK bool
	busy   bool

	busyReads int
	busyLeft  int
}

func newDS2431(addr bus.Address) *DS2431 {
	d := &DS2431{base: newBase(addr, bus.SpeedOverdrive)}
	for i := 0; i < ds2431DataSize; i++ {
		d.mem[i] = 0xFF
	}

	return d
}

// NewDS2431 creates a DS2431 with the given serial number.
func NewDS2431(serial uint64) *DS2431 {
	return newDS2431(bus.NewAddress(FamilyDS2431, serial))
}

// SetBusyReads makes the first n memory reads after every successful copy
// return all ones, as a device still busy with its internal write cycle.
func (d *DS2431) SetBusyReads(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.busyReads = n
}

func (d *DS2431) Image() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]byte(nil), d.mem[:]...)
}

func (d *DS2431) LoadImage(img []byte) error {
	if len(img) != ds2431MemSize {
		return fmt.Errorf("sim: DS2431 image is %d bytes, want %d", len(img), ds2431MemSize)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	copy(d.mem[:], img)

	return nil
}

func (d *DS2431) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cmd = 0
	d.pos = 0
	d.out = nil
}

func (d *DS2431) touch(b byte, spu bool) byte {
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
		return d.emit()
	case 0x55:
		return d.copyScratchpad(b, spu)
	case 0xF0:
		return d.readMemory(b)
	default:
		return 0xFF
	}
}

func (d *DS2431) start(cmd byte) {
	d.cmd = cmd
	d.pos = 0
	d.out = nil

	switch cmd {
	case 0x0F:
		d.crc = crc.Update16(0, cmd)
		d.count = 0
	case 0xAA:
		off := int(d.ta & 0x07)
		end := int(d.es & 0x07)
		d.out = []byte{byte(d.ta), byte(d.ta >> 8), d.es}
		if end >= off {
			d.out = append(d.out, d.sp[off:end+1]...)
		}
		seed := crc.Update16(0, cmd)
		d.out = crc.Append16(d.out, d.out, seed)
	case 0x55:
		d.copyOK = false
	case 0xF0:
		d.busy = false
	}
}

func (d *DS2431) emit() byte {
	if d.pos < len(d.out) {
		return d.out[d.pos]
	}

	return 0xFF
}

func (d *DS2431) writeScratchpad(b byte) byte {
	switch {
	case d.pos == 0:
		d.ta = uint16(b)
		d.crc = crc.Update16(d.crc, b)
	case d.pos == 1:
		d.ta |= uint16(b) << 8
		d.crc = crc.Update16(d.crc, b)
		d.es = byte(d.ta&0x07) - 1
		d.es &= 0x07
	default:
		off := int(d.ta & 0x07)
		if off+d.count < ds2431RowSize {
			i := off + d.count
			d.sp[i] = d.scratchByte(int(d.ta&^0x07)+i, b)
			d.crc = crc.Update16(d.crc, b)
			d.count++
			d.es = byte(i)
			if i == ds2431RowSize-1 {
				inv := ^d.crc
				d.out = []byte{byte(inv), byte(inv >> 8)}
			}

			return 0xFF
		}
		idx := d.pos - 2 - d.count
		if idx >= 0 && idx < len(d.out) {
			return d.out[idx]
		}
	}

	return 0xFF
}

// scratchByte applies the protection rules to a byte loaded into the
// scratchpad for target address addr.
func (d *DS2431) scratchByte(addr int, b byte) byte {
	switch {
	case addr < ds2431DataSize:
		switch d.mem[ds2431DataSize+addr/ds2431PageSize] {
		case protectWrite:
			return d.mem[addr]
		case protectEPROM:
			return d.mem[addr] & b
		}
	case addr <= ds2431CopyProtect:
		if v := d.mem[addr]; v == protectWrite || v == protectEPROM {
			return v
		}
	case addr < ds2431MemSize:
		if v := d.mem[ds2431CopyProtect]; v == protectWrite || v == protectEPROM {
			return d.mem[addr]
		}
	}

	return b
}

func (d *DS2431) copyScratchpad(b byte, spu bool) byte {
	switch d.pos {
	case 0:
		d.copyOK = b == byte(d.ta)
	case 1:
		d.copyOK = d.copyOK && b == byte(d.ta>>8)
	case 2:
		d.copyOK = d.copyOK && b == d.es && spu &&
			d.ta&0x07 == 0 && d.es&0x07 == 0x07 && int(d.ta) < ds2431MemSize
		if d.copyOK {
			copy(d.mem[d.ta:int(d.ta)+ds2431RowSize], d.sp[:])
			d.es |= 0x80
			d.busyLeft = d.busyReads
		}
	default:
		if d.copyOK {
			return 0xAA
		}
	}

	return 0xFF
}

func (d *DS2431) readMemory(b byte) byte {
	switch d.pos {
	case 0:
		d.addr = uint16(b)
		return 0xFF
	case 1:
		d.addr |= uint16(b) << 8
		if d.busyLeft > 0 {
			d.busyLeft--
			d.busy = true
		}

		return 0xFF
	}

	if d.busy || int(d.addr) >= ds2431MemSize {
		return 0xFF
	}
	v := d.mem[d.addr]
	d.addr++

	return v
}
