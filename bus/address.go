package bus

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/arloliu/go-onewire/crc"
)

// Address is the 64-bit ROM address of a device: family code in byte 0, a
// 48-bit serial number in bytes 1-6 and the CRC8 of bytes 0-6 in byte 7.
type Address [8]byte

// NewAddress builds an address from a family code and a 48-bit serial number
// and fills in the CRC8 byte.
func NewAddress(family byte, serial uint64) Address {
	var a Address
	a[0] = family
	for i := 1; i < 7; i++ {
		a[i] = byte(serial)
		serial >>= 8
	}
	a[7] = crc.CRC8(a[:7], 0)

	return a
}

// ParseAddress parses the 16 hex digit form produced by String.
func ParseAddress(s string) (Address, error) {
	var a Address

	s = strings.TrimSpace(s)
	if len(s) != 16 {
		return a, fmt.Errorf("bus: invalid address %q: want 16 hex digits", s)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("bus: invalid address %q: %w", s, err)
	}
	// String prints the CRC byte first and the family code last.
	for i := 0; i < 8; i++ {
		a[i] = raw[7-i]
	}
	if !a.Valid() {
		return a, fmt.Errorf("bus: invalid address %q: CRC8 mismatch", s)
	}

	return a, nil
}

// Family returns the family code.
func (a Address) Family() byte { return a[0] }

// Serial returns the 48-bit serial number.
func (a Address) Serial() uint64 {
	var buf [8]byte
	copy(buf[:6], a[1:7])

	return binary.LittleEndian.Uint64(buf[:])
}

// Valid reports whether the CRC8 byte matches the rest of the address.
func (a Address) Valid() bool {
	return crc.CRC8(a[:], 0) == 0
}

// Uint64 returns the address as a little-endian integer.
func (a Address) Uint64() uint64 {
	return binary.LittleEndian.Uint64(a[:])
}

// String returns the conventional display form: CRC byte first, family code last.
func (a Address) String() string {
	var rev [8]byte
	for i := 0; i < 8; i++ {
		rev[i] = a[7-i]
	}

	return strings.ToUpper(hex.EncodeToString(rev[:]))
}
