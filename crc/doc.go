// Package crc implements the 8-bit and 16-bit cyclic redundancy checks used on
// the 1-Wire bus.
//
// CRC8 is the Dallas/Maxim x^8+x^5+x^4+1 polynomial in reflected form. A block
// that carries its own CRC8 as the trailing byte is valid when the CRC8 over the
// whole block, including that byte, is zero.
//
// CRC16 is the x^16+x^15+x^2+1 polynomial in reflected form (0xA001). Devices
// and the Universal Data Packet emit the bit-inverted CRC16, low byte first.
// Running the same seeded CRC16 over the data and the two emitted bytes yields
// the fixed residual Accept16 when the block is intact. The seed lets a caller
// bind the checksum to a context value such as the absolute page number.
package crc
