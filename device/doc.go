// Package device assembles the memory banks of the supported 1-Wire memory
// devices.
//
// The set of families is closed: each family code maps to an entry in a
// package-level table holding the part name, its description, its maximum
// bus speed and the bank layout. New builds a Container for one address:
//
//	c, err := device.New(adapter, addr)
//	if err != nil {
//		return err
//	}
//	for _, b := range c.Banks() {
//		if otp, ok := b.(memory.OTPMemoryBank); ok && otp.CanLockPage() {
//			// ...
//		}
//	}
//
// A Registry caches containers per address so that banks sharing a device
// also share its speed cache and scratchpad lock.
package device
