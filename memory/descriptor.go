package memory

import "strings"

// Capability is a set of bank feature flags.
type Capability uint16

const (
	// CapGeneralPurpose marks memory free for application data.
	CapGeneralPurpose Capability = 1 << iota
	// CapReadWrite marks memory that can be rewritten.
	CapReadWrite
	// CapWriteOnce marks memory whose bits can only be cleared.
	CapWriteOnce
	// CapReadOnly marks memory that cannot be written.
	CapReadOnly
	// CapNonVolatile marks memory that survives power loss.
	CapNonVolatile
	// CapProgramPulse marks memory that needs the EPROM program pulse to write.
	CapProgramPulse
	// CapPowerDelivery marks memory that needs the strong pull-up to write.
	CapPowerDelivery
	// CapPageAutoCRC marks banks whose device generates a CRC on page reads.
	CapPageAutoCRC
	// CapExtraInfo marks banks that return extra information with each page.
	CapExtraInfo
)

var capNames = []struct {
	c    Capability
	name string
}{
	{CapGeneralPurpose, "general-purpose"},
	{CapReadWrite, "read-write"},
	{CapWriteOnce, "write-once"},
	{CapReadOnly, "read-only"},
	{CapNonVolatile, "non-volatile"},
	{CapProgramPulse, "program-pulse"},
	{CapPowerDelivery, "power-delivery"},
	{CapPageAutoCRC, "page-auto-crc"},
	{CapExtraInfo, "extra-info"},
}

func (c Capability) String() string {
	var names []string
	for _, n := range capNames {
		if c&n.c != 0 {
			names = append(names, n.name)
		}
	}

	return strings.Join(names, ",")
}

// Descriptor describes a bank. It is immutable after bank construction.
type Descriptor struct {
	Description string
	// Size is the bank size in bytes.
	Size int
	// StartAddress is the physical address of bank offset 0.
	StartAddress int
	PageLength   int
	NumberPages  int
	// MaxPacketDataLength is the largest Universal Data Packet payload.
	MaxPacketDataLength int
	Capabilities        Capability

	ExtraInfoLength      int
	ExtraInfoDescription string
}

// Has reports whether all capabilities in c are set.
func (d Descriptor) Has(c Capability) bool {
	return d.Capabilities&c == c
}

// PageAddress returns the bank offset of page.
func (d Descriptor) PageAddress(page int) int {
	return page * d.PageLength
}

// PhysicalAddress returns the device address of bank offset addr.
func (d Descriptor) PhysicalAddress(addr int) int {
	return d.StartAddress + addr
}
