package device

import (
	"cmp"
	"slices"

	"github.com/arloliu/go-onewire/bus"
	"github.com/arloliu/go-onewire/memory"
)

// Family codes of the supported devices.
const (
	FamilyDS2502 byte = 0x09
	FamilyDS2430 byte = 0x14
	FamilyDS2431 byte = 0x2D
	FamilyDS1977 byte = 0x37
)

// Family describes one supported device family.
type Family struct {
	Code        byte
	Name        string
	AltName     string
	Description string
	MaxSpeed    bus.Speed

	build func(id bus.Identity, cfg *memory.BankConfig) []memory.MemoryBank
}

// DS2431 banks.
var (
	DS2431Main = memory.Descriptor{
		Description:         "Main memory",
		Size:                128,
		PageLength:          32,
		NumberPages:         4,
		MaxPacketDataLength: 29,
		Capabilities: memory.CapGeneralPurpose | memory.CapReadWrite |
			memory.CapNonVolatile | memory.CapPowerDelivery,
	}
	DS2431Control = memory.Descriptor{
		Description:         "Write protect pages, page redirection, lock control",
		Size:                16,
		StartAddress:        0x80,
		PageLength:          8,
		NumberPages:         2,
		MaxPacketDataLength: 5,
		Capabilities:        memory.CapReadWrite | memory.CapNonVolatile | memory.CapPowerDelivery,
	}
)

// DS2430 banks. The application register uses memory.AppRegisterDescriptor.
var DS2430Main = memory.Descriptor{
	Description:         "Main Memory",
	Size:                32,
	PageLength:          32,
	NumberPages:         1,
	MaxPacketDataLength: 29,
	Capabilities: memory.CapGeneralPurpose | memory.CapReadWrite |
		memory.CapNonVolatile | memory.CapPowerDelivery,
}

// DS2502 banks and status memory layout.
var (
	DS2502Main = memory.Descriptor{
		Description:         "Main Memory",
		Size:                128,
		PageLength:          32,
		NumberPages:         4,
		MaxPacketDataLength: 29,
		Capabilities: memory.CapGeneralPurpose | memory.CapWriteOnce | memory.CapNonVolatile |
			memory.CapProgramPulse | memory.CapPageAutoCRC,
	}
	DS2502Status = memory.Descriptor{
		Description:         "Write protect pages and page redirection",
		Size:                8,
		PageLength:          8,
		NumberPages:         1,
		MaxPacketDataLength: 5,
		Capabilities: memory.CapWriteOnce | memory.CapNonVolatile |
			memory.CapProgramPulse | memory.CapPageAutoCRC,
	}
	DS2502StatusLayout = memory.EPROMStatusLayout{LockOffset: 0, RedirectOffset: 1, RedirectLockOffset: 5}
)

// DS1977 banks and password registers.
var (
	DS1977Main = memory.Descriptor{
		Description:         "Main Memory",
		Size:                0x7FC0,
		PageLength:          64,
		NumberPages:         511,
		MaxPacketDataLength: 61,
		Capabilities: memory.CapGeneralPurpose | memory.CapReadWrite | memory.CapNonVolatile |
			memory.CapPowerDelivery | memory.CapPageAutoCRC,
	}
	DS1977Registers = memory.Descriptor{
		Description:         "Passwords and password control",
		Size:                64,
		StartAddress:        0x7FC0,
		PageLength:          64,
		NumberPages:         1,
		MaxPacketDataLength: 61,
		Capabilities: memory.CapReadWrite | memory.CapNonVolatile |
			memory.CapPowerDelivery | memory.CapPageAutoCRC,
	}
	DS1977Passwords = memory.PasswordLayout{
		Kinds:            memory.ReadOnlyPassword | memory.ReadWritePassword,
		ReadOnlyAddress:  0x7FC0,
		ReadWriteAddress: 0x7FC8,
		ControlAddress:   0x7FD0,
		EnableValue:      0xAA,
		DisableValue:     0x00,
	}
)

var families = map[byte]*Family{
	FamilyDS2502: {
		Code:        FamilyDS2502,
		Name:        "DS2502",
		AltName:     "DS1982",
		Description: "1024 bit Electrically Programmable Read Only Memory (EPROM) partitioned into four 256 bit pages.",
		MaxSpeed:    bus.SpeedRegular,
		build:       buildDS2502,
	},
	FamilyDS2430: {
		Code:        FamilyDS2430,
		Name:        "DS2430",
		AltName:     "DS1971",
		Description: "256 bit EEPROM with a 64 bit one-time programmable application register.",
		MaxSpeed:    bus.SpeedRegular,
		build:       buildDS2430,
	},
	FamilyDS2431: {
		Code:        FamilyDS2431,
		Name:        "DS2431",
		AltName:     "DS1972",
		Description: "1024 bit EEPROM in four 256 bit pages with page write protection and EPROM emulation.",
		MaxSpeed:    bus.SpeedOverdrive,
		build:       buildDS2431,
	},
	FamilyDS1977: {
		Code:        FamilyDS1977,
		Name:        "DS1977",
		Description: "32 KB password protected EEPROM in 64 byte pages.",
		MaxSpeed:    bus.SpeedOverdrive,
		build:       buildDS1977,
	},
}

// Lookup returns the family with code.
func Lookup(code byte) (*Family, bool) {
	f, ok := families[code]
	return f, ok
}

// Families returns the supported families ordered by code.
func Families() []*Family {
	out := make([]*Family, 0, len(families))
	for _, f := range families {
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b *Family) int { return cmp.Compare(a.Code, b.Code) })

	return out
}

func buildDS2502(id bus.Identity, cfg *memory.BankConfig) []memory.MemoryBank {
	main := memory.NewEPROM(id, DS2502Main, memory.EPROMMainCommands, cfg)
	status := memory.NewEPROM(id, DS2502Status, memory.EPROMStatusCommands, cfg)
	main.SetStatusBank(status, DS2502StatusLayout)

	return []memory.MemoryBank{main, status}
}

func buildDS2430(id bus.Identity, cfg *memory.BankConfig) []memory.MemoryBank {
	sp := memory.NewScratchpad(id, memory.ScratchpadPlain, 32, cfg)

	return []memory.MemoryBank{
		memory.NewEEPROM(sp, DS2430Main),
		memory.NewAppRegister(id, cfg),
	}
}

func buildDS2431(id bus.Identity, cfg *memory.BankConfig) []memory.MemoryBank {
	sp := memory.NewScratchpad(id, memory.ScratchpadAddressEcho, 8, cfg)
	main := memory.NewEEPROM(sp, DS2431Main)
	ctrl := memory.NewEEPROM(sp, DS2431Control)
	main.SetLockBank(ctrl)

	return []memory.MemoryBank{main, ctrl}
}

func buildDS1977(id bus.Identity, cfg *memory.BankConfig) []memory.MemoryBank {
	sp := memory.NewScratchpad(id, memory.ScratchpadPassword, 64, cfg)
	main, reg := memory.NewPasswordNVRAM(sp, DS1977Main, DS1977Registers, DS1977Passwords)

	return []memory.MemoryBank{main, reg}
}
