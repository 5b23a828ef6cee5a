// Package bus defines the contracts go-onewire consumes from the 1-Wire bus
// transport and from the device-identity layer.
//
// The transport (Adapter) shifts bytes on a single half-duplex line, selects
// devices by ROM address and controls the two power features memory devices
// depend on: strong pull-up power delivery for EEPROM/NVRAM copy operations
// and the EPROM programming pulse. Bit-level signalling, search and the
// physical drivers are out of scope; this package only names what the memory
// layer needs from them.
//
// # Exclusive Access
//
// The bus supports exactly one in-flight transaction. A Port wraps an Adapter
// with a mutual-exclusion scope so compound sequences (select, block, select,
// block) from different goroutines never interleave:
//
//	err := port.Exclusive(ctx, func(a bus.Adapter) error {
//		return bank.WritePagePacket(0, payload)
//	})
//
// Acquiring the scope honours ctx; once the body runs it is not interrupted,
// because a power pulse that was started must be allowed to finish.
//
// # Identity and Speed
//
// Device implements Identity for a single ROM address: it negotiates the bus
// speed, checks presence and reports the alarm state.
package bus
