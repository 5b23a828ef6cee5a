// Package memory implements the memory transaction engine for devices on a
// 1-Wire style bus.
//
// A device exposes one or more banks of byte-addressable storage. Every bank
// implements MemoryBank; paged banks add PagedMemoryBank with the Universal
// Data Packet framing, write-once media add OTPMemoryBank, and password gated
// banks add PasswordProtected. Callers discover the optional contracts with
// type assertions:
//
//	if otp, ok := bank.(memory.OTPMemoryBank); ok && otp.CanLockPage() {
//		err = otp.LockPage(0)
//	}
//
// Non-volatile writes go through a Scratchpad: the payload is staged in the
// device, read back and compared, and only then copied into the cells under
// a strong pull-up. A Transaction tracks one staging cycle and holds the
// scratchpad until it is committed or aborted.
//
// Banks are not goroutine-safe with respect to the bus. Share an adapter
// between goroutines through bus.Port and run compound sequences inside
// Port.Exclusive.
//
// All failures are reported with the sentinel errors of this package wrapped
// with context; match them with errors.Is.
package memory
