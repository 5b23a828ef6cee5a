package crc

const (
	// Poly16 is the reflected CRC16 polynomial.
	Poly16 = 0xA001

	// Accept16 is the residual of a seeded CRC16 run over data followed by the
	// inverted CRC16 of that data, low byte first.
	Accept16 uint16 = 0xB001
)

var table16 = makeTable16()

func makeTable16() [256]uint16 {
	var t [256]uint16
	for i := range t {
		crc := uint16(i)
		for j := 0; j < 8; j++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ Poly16
			} else {
				crc >>= 1
			}
		}
		t[i] = crc
	}

	return t
}

// Update16 shifts a single byte through the CRC16 generator.
func Update16(seed uint16, b byte) uint16 {
	return (seed >> 8) ^ table16[byte(seed)^b]
}

// CRC16 computes the CRC16 of data starting from seed.
func CRC16(data []byte, seed uint16) uint16 {
	crc := seed
	for _, b := range data {
		crc = (crc >> 8) ^ table16[byte(crc)^b]
	}

	return crc
}

// Append16 appends the inverted CRC16 of data, low byte first, to dst.
func Append16(dst []byte, data []byte, seed uint16) []byte {
	inv := ^CRC16(data, seed)

	return append(dst, byte(inv), byte(inv>>8))
}

// Valid16 reports whether data, whose last two bytes are its inverted CRC16,
// is intact for the given seed.
func Valid16(data []byte, seed uint16) bool {
	return len(data) >= 2 && CRC16(data, seed) == Accept16
}
