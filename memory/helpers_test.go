package memory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-onewire/bus"
	"github.com/arloliu/go-onewire/sim"
)

var (
	testEEPROMMain = Descriptor{
		Description:         "Main memory",
		Size:                128,
		PageLength:          32,
		NumberPages:         4,
		MaxPacketDataLength: 29,
		Capabilities:        CapGeneralPurpose | CapReadWrite | CapNonVolatile | CapPowerDelivery,
	}
	testEEPROMControl = Descriptor{
		Description:         "Memory control",
		Size:                16,
		StartAddress:        0x80,
		PageLength:          8,
		NumberPages:         2,
		MaxPacketDataLength: 5,
		Capabilities:        CapReadWrite | CapNonVolatile | CapPowerDelivery,
	}
	testPlainMain = Descriptor{
		Description:         "Main memory",
		Size:                32,
		PageLength:          32,
		NumberPages:         1,
		MaxPacketDataLength: 29,
		Capabilities:        CapGeneralPurpose | CapReadWrite | CapNonVolatile | CapPowerDelivery,
	}
	testEPROMMain = Descriptor{
		Description:         "Main memory",
		Size:                128,
		PageLength:          32,
		NumberPages:         4,
		MaxPacketDataLength: 29,
		Capabilities:        CapGeneralPurpose | CapWriteOnce | CapNonVolatile | CapProgramPulse | CapPageAutoCRC,
	}
	testEPROMStatus = Descriptor{
		Description:         "Status memory",
		Size:                8,
		PageLength:          8,
		NumberPages:         1,
		MaxPacketDataLength: 5,
		Capabilities:        CapWriteOnce | CapNonVolatile | CapProgramPulse | CapPageAutoCRC,
	}
	testNVRAMMain = Descriptor{
		Description:         "Main memory",
		Size:                0x7FC0,
		PageLength:          64,
		NumberPages:         511,
		MaxPacketDataLength: 61,
		Capabilities:        CapGeneralPurpose | CapReadWrite | CapNonVolatile | CapPowerDelivery | CapPageAutoCRC,
	}
	testNVRAMRegisters = Descriptor{
		Description:         "Password registers",
		Size:                64,
		StartAddress:        0x7FC0,
		PageLength:          64,
		NumberPages:         1,
		MaxPacketDataLength: 61,
		Capabilities:        CapReadWrite | CapNonVolatile | CapPowerDelivery | CapPageAutoCRC,
	}
	testPasswordLayout = PasswordLayout{
		Kinds:            ReadOnlyPassword | ReadWritePassword,
		ReadOnlyAddress:  0x7FC0,
		ReadWriteAddress: 0x7FC8,
		ControlAddress:   0x7FD0,
		EnableValue:      0xAA,
		DisableValue:     0x00,
	}
)

// rig is a simulated bus with one device and fast bank timing.
type rig struct {
	adapter *sim.Adapter
	id      *bus.Device
	metrics *BankMetrics
	cfg     *BankConfig
}

func newRig(t *testing.T, dev sim.Device, opts ...sim.Option) *rig {
	t.Helper()

	a := sim.NewAdapter(opts...)
	a.Attach(dev)

	r := &rig{
		adapter: a,
		id:      bus.NewDevice(a, dev.Address(), bus.WithMaxSpeed(dev.MaxSpeed())),
		metrics: &BankMetrics{},
	}
	r.cfg = r.config(t)

	return r
}

// config returns a fast config counting into the rig metrics.
func (r *rig) config(t *testing.T, opts ...BankOption) *BankConfig {
	t.Helper()

	base := []BankOption{
		WithCopyDwell(0),
		WithPasswordDwell(0),
		WithProgramDwell(0),
		WithBusyPollDelay(0),
		WithMetrics(r.metrics),
	}
	cfg, err := NewBankConfig(append(base, opts...)...)
	require.NoError(t, err)

	return cfg
}

// eeprom returns the main and control banks of a DS2431 style device.
func (r *rig) eeprom() (*EEPROM, *EEPROM) {
	sp := NewScratchpad(r.id, ScratchpadAddressEcho, 8, r.cfg)
	main := NewEEPROM(sp, testEEPROMMain)
	ctrl := NewEEPROM(sp, testEEPROMControl)
	main.SetLockBank(ctrl)

	return main, ctrl
}

// eprom returns the main and status banks of a DS2502 style device.
func (r *rig) eprom() (*EPROM, *EPROM) {
	main := NewEPROM(r.id, testEPROMMain, EPROMMainCommands, r.cfg)
	status := NewEPROM(r.id, testEPROMStatus, EPROMStatusCommands, r.cfg)
	main.SetStatusBank(status, EPROMStatusLayout{LockOffset: 0, RedirectOffset: 1, RedirectLockOffset: 5})

	return main, status
}

// nvram returns the main and register banks of a DS1977 style device.
func (r *rig) nvram() (*NVRAM, *NVRAM) {
	sp := NewScratchpad(r.id, ScratchpadPassword, 64, r.cfg)

	return NewPasswordNVRAM(sp, testNVRAMMain, testNVRAMRegisters, testPasswordLayout)
}

func seq(n int, start byte) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = start + byte(i)
	}

	return p
}
