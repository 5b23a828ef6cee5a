package memory

import (
	"fmt"

	"github.com/arloliu/go-onewire/crc"
)

// PacketOverhead is the number of framing bytes in a Universal Data Packet.
const PacketOverhead = 3

// EncodePacket frames payload as a Universal Data Packet for page:
// [len][payload][crc_lo][crc_hi], with the CRC16 seeded by the absolute page
// index and emitted inverted.
func EncodePacket(page int, payload []byte) ([]byte, error) {
	if len(payload) > 0xFF {
		return nil, fmt.Errorf("%w: payload length %d exceeds 255", ErrFormat, len(payload))
	}

	buf := make([]byte, 0, len(payload)+PacketOverhead)
	buf = append(buf, byte(len(payload)))
	buf = append(buf, payload...)

	return crc.Append16(buf, buf, uint16(page)), nil
}

// DecodePacket validates the Universal Data Packet at the start of raw for
// page and returns its payload, which aliases raw. The length byte is
// checked against maxLen before any CRC work.
func DecodePacket(page int, raw []byte, maxLen int) ([]byte, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty page", ErrFormat)
	}

	n := int(raw[0])
	if n > maxLen || n+PacketOverhead > len(raw) {
		return nil, fmt.Errorf("%w: packet length %d exceeds %d", ErrFormat, n, maxLen)
	}
	if crc.CRC16(raw[:n+PacketOverhead], uint16(page)) != crc.Accept16 {
		return nil, fmt.Errorf("%w: packet on page %d", ErrIntegrity, page)
	}

	return raw[1 : n+1], nil
}
