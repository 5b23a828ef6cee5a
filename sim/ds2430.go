package sim

import (
	"fmt"

	"github.com/arloliu/go-onewire/bus"
)

const (
	ds2430MemSize    = 32
	ds2430AppRegSize = 8
	ds2430ImageSize  = ds2430MemSize + ds2430AppRegSize + 1

	validationKey byte = 0xA5
	appRegLocked  byte = 0xFC
)

// DS2430 models a 256-bit EEPROM with a plain 32-byte scratchpad and a
// 64-bit one-time application register.
type DS2430 struct {
	base

	mem    [ds2430MemSize]byte
	sp     [ds2430MemSize]byte
	app    [ds2430AppRegSize]byte
	locked bool

	cmd    byte
	pos    int
	addr   byte
	copyOK bool
}

func newDS2430(addr bus.Address) *DS2430 {
	d := &DS2430{base: newBase(addr, bus.SpeedRegular)}
	for i := range d.mem {
		d.mem[i] = 0xFF
	}
	for i := range d.app {
		d.app[i] = 0xFF
	}

	return d
}

// NewDS2430 creates a DS2430 with the given serial number.
func NewDS2430(serial uint64) *DS2430 {
	return newDS2430(bus.NewAddress(FamilyDS2430, serial))
}

// Image layout: 32 bytes EEPROM, 8 bytes application register, lock flag.
func (d *DS2430) Image() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	img := make([]byte, 0, ds2430ImageSize)
	img = append(img, d.mem[:]...)
	img = append(img, d.app[:]...)
	if d.locked {
		return append(img, 1)
	}

	return append(img, 0)
}

func (d *DS2430) LoadImage(img []byte) error {
	if len(img) != ds2430ImageSize {
		return fmt.Errorf("sim: DS2430 image is %d bytes, want %d", len(img), ds2430ImageSize)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	copy(d.mem[:], img[:ds2430MemSize])
	copy(d.app[:], img[ds2430MemSize:ds2430MemSize+ds2430AppRegSize])
	d.locked = img[ds2430ImageSize-1] != 0

	return nil
}

func (d *DS2430) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cmd = 0
	d.pos = 0
}

func (d *DS2430) touch(b byte, spu bool) byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cmd == 0 {
		d.cmd = b
		d.pos = 0
		d.copyOK = false
		return 0xFF
	}
	defer func() { d.pos++ }()

	if d.pos == 0 {
		switch d.cmd {
		case 0x0F, 0xAA, 0xF0:
			d.addr = b & (ds2430MemSize - 1)
		case 0x99, 0xC3:
			d.addr = b & (ds2430AppRegSize - 1)
		case 0x55:
			d.copyOK = b == validationKey && spu
			if d.copyOK {
				d.mem = d.sp
			}
		case 0x5A:
			if b == validationKey && spu && !d.locked {
				d.locked = true
			}
		}

		return 0xFF
	}

	switch d.cmd {
	case 0x0F:
		d.sp[d.addr] = b
		d.addr = (d.addr + 1) & (ds2430MemSize - 1)
	case 0xAA:
		v := d.sp[d.addr]
		d.addr = (d.addr + 1) & (ds2430MemSize - 1)
		return v
	case 0x55:
		if d.copyOK {
			return 0xAA
		}
	case 0xF0:
		i := int(d.addr) + d.pos - 1
		if i >= ds2430MemSize {
			return 0xFF
		}
		return d.mem[i]
	case 0x99:
		if !d.locked {
			d.app[d.addr] = b
		}
		d.addr = (d.addr + 1) & (ds2430AppRegSize - 1)
	case 0xC3:
		v := d.app[d.addr]
		d.addr = (d.addr + 1) & (ds2430AppRegSize - 1)
		return v
	case 0x66:
		if d.locked {
			return appRegLocked
		}
	}

	return 0xFF
}
