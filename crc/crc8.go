package crc

// Poly8 is the reflected Dallas/Maxim CRC8 polynomial.
const Poly8 = 0x8C

var table8 = makeTable8()

func makeTable8() [256]byte {
	var t [256]byte
	for i := range t {
		crc := byte(i)
		for j := 0; j < 8; j++ {
			if crc&0x01 != 0 {
				crc = (crc >> 1) ^ Poly8
			} else {
				crc >>= 1
			}
		}
		t[i] = crc
	}

	return t
}

// Update8 shifts a single byte through the CRC8 generator.
func Update8(seed byte, b byte) byte {
	return table8[seed^b]
}

// CRC8 computes the CRC8 of data starting from seed.
func CRC8(data []byte, seed byte) byte {
	crc := seed
	for _, b := range data {
		crc = table8[crc^b]
	}

	return crc
}

// Valid8 reports whether data, whose last byte is its own CRC8, is intact.
func Valid8(data []byte, seed byte) bool {
	return len(data) > 0 && CRC8(data, seed) == 0
}
