package memory

import "fmt"

// MemoryBank is byte-addressable storage inside a device.
type MemoryBank interface {
	Descriptor() Descriptor

	// Read fills p from bank offset addr. When cont is true the device is
	// not re-selected; this is only valid inside one exclusive bus window
	// right after another read on the same bank.
	Read(addr int, cont bool, p []byte) error
	// Write stores p at bank offset addr. With write verification enabled
	// the written range is read back and compared.
	Write(addr int, p []byte) error

	SetWriteVerification(enabled bool)
	WriteVerification() bool
}

// PagedMemoryBank is a MemoryBank with page structure and the Universal Data
// Packet framing.
type PagedMemoryBank interface {
	MemoryBank

	// ReadPage reads one whole page into p.
	ReadPage(page int, cont bool, p []byte) error
	// ReadPageExtra reads one page and its extra information.
	ReadPageExtra(page int, cont bool, p, extra []byte) error

	// ReadPagePacket decodes the Universal Data Packet stored in page,
	// copies its payload into p and returns the payload length.
	ReadPagePacket(page int, cont bool, p []byte) (int, error)
	// ReadPagePacketExtra is ReadPagePacket that also returns extra information.
	ReadPagePacketExtra(page int, cont bool, p, extra []byte) (int, error)
	// WritePagePacket encodes p as a Universal Data Packet and writes it at
	// the start of page.
	WritePagePacket(page int, p []byte) error

	// ReadPageCRC reads one page checked with the device generated CRC.
	ReadPageCRC(page int, cont bool, p []byte) error
	// ReadPageCRCExtra is ReadPageCRC that also returns extra information.
	ReadPageCRCExtra(page int, cont bool, p, extra []byte) error
}

// OTPMemoryBank is a PagedMemoryBank with one-way page lock and redirection.
//
// Locked and redirect-locked pages stay that way; nothing in this contract
// reverses them. Banks without redirection report 0 and false from the
// queries and ErrCapability from the mutating calls.
type OTPMemoryBank interface {
	PagedMemoryBank

	CanLockPage() bool
	CanRedirectPage() bool
	CanLockRedirectPage() bool

	LockPage(page int) error
	IsPageLocked(page int) (bool, error)

	// RedirectPage marks page as replaced by newPage.
	RedirectPage(page, newPage int) error
	// RedirectedPage returns the replacement of page, or 0 when not redirected.
	RedirectedPage(page int) (int, error)
	LockRedirectPage(page int) error
	IsRedirectPageLocked(page int) (bool, error)
}

// ResolvePage follows the redirection chain of page and returns the page
// that holds its data.
func ResolvePage(b OTPMemoryBank, page int) (int, error) {
	if !b.CanRedirectPage() {
		return page, nil
	}

	n := b.Descriptor().NumberPages
	for hops := 0; hops < n; hops++ {
		next, err := b.RedirectedPage(page)
		if err != nil {
			return 0, err
		}
		if next == 0 {
			return page, nil
		}
		if next >= n {
			return 0, fmt.Errorf("%w: page %d redirected to %d of %d pages", ErrRange, page, next, n)
		}
		page = next
	}

	return 0, fmt.Errorf("%w: redirection loop at page %d", ErrVerification, page)
}
