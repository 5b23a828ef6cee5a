package memory

import "fmt"

// pageIO is implemented by the concrete bank kinds.
type pageIO interface {
	// readPage reads one whole page into p (len(p) == page length). When
	// withCRC is set the device generated CRC is checked. extra is nil or
	// ExtraInfoLength bytes.
	readPage(page int, cont bool, p, extra []byte, withCRC bool) error
	Write(addr int, p []byte) error
}

// paged implements the page level operations on top of pageIO.
type paged struct {
	bankCore

	io pageIO
}

func (b *paged) pageBuf(page int, p []byte) ([]byte, error) {
	if err := b.checkPage(page); err != nil {
		return nil, err
	}
	if len(p) < b.desc.PageLength {
		return nil, fmt.Errorf("%w: buffer of %d bytes for page of %d", ErrRange, len(p), b.desc.PageLength)
	}

	return p[:b.desc.PageLength], nil
}

func (b *paged) extraBuf(extra []byte) ([]byte, error) {
	if !b.desc.Has(CapExtraInfo) {
		return nil, fmt.Errorf("%w: %s has no extra information", ErrCapability, b.desc.Description)
	}
	if len(extra) < b.desc.ExtraInfoLength {
		return nil, fmt.Errorf("%w: extra buffer of %d bytes, need %d", ErrRange, len(extra), b.desc.ExtraInfoLength)
	}

	return extra[:b.desc.ExtraInfoLength], nil
}

// absolutePage returns the device wide page index used as packet seed.
func (b *paged) absolutePage(page int) int {
	return page + b.desc.StartAddress/b.desc.PageLength
}

func (b *paged) ReadPage(page int, cont bool, p []byte) error {
	buf, err := b.pageBuf(page, p)
	if err != nil {
		return err
	}

	return b.io.readPage(page, cont, buf, nil, false)
}

func (b *paged) ReadPageExtra(page int, cont bool, p, extra []byte) error {
	buf, err := b.pageBuf(page, p)
	if err != nil {
		return err
	}
	ex, err := b.extraBuf(extra)
	if err != nil {
		return err
	}

	return b.io.readPage(page, cont, buf, ex, false)
}

func (b *paged) ReadPageCRC(page int, cont bool, p []byte) error {
	if !b.desc.Has(CapPageAutoCRC) {
		return fmt.Errorf("%w: %s has no device CRC", ErrCapability, b.desc.Description)
	}
	buf, err := b.pageBuf(page, p)
	if err != nil {
		return err
	}

	return b.io.readPage(page, cont, buf, nil, true)
}

func (b *paged) ReadPageCRCExtra(page int, cont bool, p, extra []byte) error {
	if !b.desc.Has(CapPageAutoCRC) {
		return fmt.Errorf("%w: %s has no device CRC", ErrCapability, b.desc.Description)
	}
	buf, err := b.pageBuf(page, p)
	if err != nil {
		return err
	}
	ex, err := b.extraBuf(extra)
	if err != nil {
		return err
	}

	return b.io.readPage(page, cont, buf, ex, true)
}

func (b *paged) ReadPagePacket(page int, cont bool, p []byte) (int, error) {
	return b.readPacket(page, cont, p, nil)
}

func (b *paged) ReadPagePacketExtra(page int, cont bool, p, extra []byte) (int, error) {
	ex, err := b.extraBuf(extra)
	if err != nil {
		return 0, err
	}

	return b.readPacket(page, cont, p, ex)
}

func (b *paged) readPacket(page int, cont bool, p, extra []byte) (int, error) {
	if err := b.checkPage(page); err != nil {
		return 0, err
	}

	raw := make([]byte, b.desc.PageLength)
	if err := b.io.readPage(page, cont, raw, extra, false); err != nil {
		return 0, err
	}

	payload, err := DecodePacket(b.absolutePage(page), raw, b.desc.MaxPacketDataLength)
	if err != nil {
		return 0, b.done(fmt.Errorf("%s page %d: %w", b.desc.Description, page, err))
	}
	if len(p) < len(payload) {
		return 0, fmt.Errorf("%w: buffer of %d bytes for packet of %d", ErrRange, len(p), len(payload))
	}

	return copy(p, payload), nil
}

func (b *paged) WritePagePacket(page int, p []byte) error {
	if len(p) > b.desc.MaxPacketDataLength {
		return fmt.Errorf("%w: packet length %d exceeds %d", ErrFormat, len(p), b.desc.MaxPacketDataLength)
	}
	if !b.desc.Has(CapGeneralPurpose) {
		return fmt.Errorf("%w: %s is not general-purpose memory", ErrCapability, b.desc.Description)
	}
	if err := b.checkPage(page); err != nil {
		return err
	}

	pkt, err := EncodePacket(b.absolutePage(page), p)
	if err != nil {
		return err
	}

	return b.io.Write(b.desc.PageAddress(page), pkt)
}
