package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-onewire/bus"
	"github.com/arloliu/go-onewire/sim"
)

func TestEEPROM_WriteRead(t *testing.T) {
	r := newRig(t, sim.NewDS2431(1))
	main, _ := r.eeprom()

	// crosses the row at 8 and leaves both rows partially covered
	data := seq(10, 0x10)
	require.NoError(t, main.Write(3, data))

	got := make([]byte, 16)
	require.NoError(t, main.Read(0, false, got))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF}, got[:3])
	assert.Equal(t, data, got[3:13])
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF}, got[13:])

	assert.EqualValues(t, 2, r.metrics.CommitCount.Load())
	assert.EqualValues(t, 1, r.metrics.SpeedCheckCount.Load())
	assert.Equal(t, bus.DeliveryInfinite, r.adapter.PowerDuration())
}

func TestEEPROM_ReadIdempotent(t *testing.T) {
	r := newRig(t, sim.NewDS2431(2))
	main, _ := r.eeprom()
	require.NoError(t, main.Write(32, seq(32, 0x40)))

	first := make([]byte, 32)
	second := make([]byte, 32)
	require.NoError(t, main.ReadPage(1, false, first))
	require.NoError(t, main.ReadPage(1, false, second))
	assert.Equal(t, first, second)
	assert.Equal(t, seq(32, 0x40), first)
}

func TestEEPROM_ReadContinue(t *testing.T) {
	r := newRig(t, sim.NewDS2431(3))
	main, _ := r.eeprom()
	require.NoError(t, main.Write(0, seq(64, 0)))

	p0 := make([]byte, 32)
	p1 := make([]byte, 32)
	require.NoError(t, main.ReadPage(0, false, p0))
	require.NoError(t, main.ReadPage(1, true, p1))
	assert.Equal(t, seq(32, 0), p0)
	assert.Equal(t, seq(32, 32), p1)
}

func TestEEPROM_Boundaries(t *testing.T) {
	r := newRig(t, sim.NewDS2431(4))
	main, _ := r.eeprom()

	require.NoError(t, main.Write(main.Descriptor().Size-1, []byte{0x42}))
	require.ErrorIs(t, main.Write(main.Descriptor().Size, []byte{0x42}), ErrRange)
	require.ErrorIs(t, main.Write(-1, []byte{0x42}), ErrRange)
	require.ErrorIs(t, main.Read(120, false, make([]byte, 9)), ErrRange)
	require.ErrorIs(t, main.ReadPage(4, false, make([]byte, 32)), ErrRange)
	require.ErrorIs(t, main.ReadPage(0, false, make([]byte, 31)), ErrRange)
	require.NoError(t, main.Write(0, nil))

	got := make([]byte, 1)
	require.NoError(t, main.Read(127, false, got))
	assert.Equal(t, byte(0x42), got[0])
}

func TestEEPROM_Packet(t *testing.T) {
	r := newRig(t, sim.NewDS2431(5))
	main, _ := r.eeprom()

	require.NoError(t, main.WritePagePacket(2, []byte("ABC")))

	p := make([]byte, 29)
	n, err := main.ReadPagePacket(2, false, p)
	require.NoError(t, err)
	assert.Equal(t, []byte("ABC"), p[:n])

	raw := make([]byte, 32)
	require.NoError(t, main.ReadPage(2, false, raw))
	want, err := EncodePacket(2, []byte("ABC"))
	require.NoError(t, err)
	assert.Equal(t, want, raw[:len(want)])

	require.ErrorIs(t, main.WritePagePacket(0, make([]byte, 30)), ErrFormat)
	require.ErrorIs(t, main.ReadPageCRC(0, false, raw), ErrCapability)
	require.ErrorIs(t, main.ReadPageExtra(0, false, raw, make([]byte, 1)), ErrCapability)

	// an erased page has length byte 0xFF
	_, err = main.ReadPagePacket(3, false, p)
	require.ErrorIs(t, err, ErrFormat)
}

func TestEEPROM_PacketNotGeneralPurpose(t *testing.T) {
	r := newRig(t, sim.NewDS2431(6))
	_, ctrl := r.eeprom()

	require.ErrorIs(t, ctrl.WritePagePacket(0, []byte{1}), ErrCapability)
}

func TestEEPROM_CorruptReadRenegotiates(t *testing.T) {
	r := newRig(t, sim.NewDS2431(7))
	main, _ := r.eeprom()
	require.NoError(t, main.WritePagePacket(0, []byte("ABC")))
	checks := r.metrics.SpeedCheckCount.Load()

	// command, TA1, TA2, then the length byte and 'A'
	r.adapter.CorruptNext(4, 0x01)
	p := make([]byte, 29)
	_, err := main.ReadPagePacket(0, false, p)
	require.ErrorIs(t, err, ErrIntegrity)
	assert.EqualValues(t, 1, r.metrics.IntegrityErrCount.Load())
	assert.Equal(t, checks, r.metrics.SpeedCheckCount.Load())

	n, err := main.ReadPagePacket(0, false, p)
	require.NoError(t, err)
	assert.Equal(t, []byte("ABC"), p[:n])
	assert.Equal(t, checks+1, r.metrics.SpeedCheckCount.Load())
}

func TestEEPROM_CorruptScratchpadAborts(t *testing.T) {
	r := newRig(t, sim.NewDS2431(8))
	main, _ := r.eeprom()

	// a full row write: command, TA1, TA2, 8 data bytes, CRC16
	r.adapter.CorruptNext(4, 0x80)
	err := main.Write(0, seq(8, 1))
	require.ErrorIs(t, err, ErrIntegrity)
	assert.EqualValues(t, 1, r.metrics.AbortCount.Load())
	assert.Zero(t, r.metrics.CommitCount.Load())

	got := make([]byte, 8)
	require.NoError(t, main.Read(0, false, got))
	assert.Equal(t, ffBlock(8), got)
}

func TestEEPROM_BusyPoll(t *testing.T) {
	dev := sim.NewDS2431(9)
	dev.SetBusyReads(2)
	r := newRig(t, dev)
	main, _ := r.eeprom()

	require.NoError(t, main.Write(0, seq(8, 1)))
	assert.EqualValues(t, 2, r.metrics.BusyPollCount.Load())
}

func TestEEPROM_BusyPollGivesUp(t *testing.T) {
	dev := sim.NewDS2431(10)
	dev.SetBusyReads(4)
	r := newRig(t, dev)
	sp := NewScratchpad(r.id, ScratchpadAddressEcho, 8, r.config(t, WithBusyPollAttempts(2)))
	main := NewEEPROM(sp, testEEPROMMain)

	err := main.Write(0, seq(8, 1))
	require.ErrorIs(t, err, ErrVerification)
	assert.EqualValues(t, 1, r.metrics.BusyPollCount.Load())
}

func TestEEPROM_WriteVerificationToggle(t *testing.T) {
	r := newRig(t, sim.NewDS2431(11))
	sp := NewScratchpad(r.id, ScratchpadAddressEcho, 8, r.config(t, WithWriteVerification(false)))
	main := NewEEPROM(sp, testEEPROMMain)

	assert.False(t, main.WriteVerification())
	main.SetWriteVerification(true)
	assert.True(t, main.WriteVerification())

	require.NoError(t, main.Write(0, []byte{1, 2}))
	got := make([]byte, 2)
	require.NoError(t, main.Read(0, false, got))
	assert.Equal(t, []byte{1, 2}, got)
}

func TestEEPROM_PowerUnavailable(t *testing.T) {
	r := newRig(t, sim.NewDS2431(12), sim.WithoutPowerDelivery())
	main, _ := r.eeprom()

	require.ErrorIs(t, main.Write(0, []byte{1}), ErrPowerUnavailable)

	got := make([]byte, 4)
	require.NoError(t, main.Read(0, false, got))
}

func TestEEPROM_NotPresent(t *testing.T) {
	dev := sim.NewDS2431(13)
	r := newRig(t, dev)
	main, _ := r.eeprom()
	dev.SetPresent(false)

	err := main.Read(0, false, make([]byte, 4))
	require.ErrorIs(t, err, ErrCommunication)
	assert.EqualValues(t, 1, r.metrics.CommErrCount.Load())

	dev.SetPresent(true)
	require.NoError(t, main.Read(0, false, make([]byte, 4)))
	assert.EqualValues(t, 2, r.metrics.SpeedCheckCount.Load())
}

func TestEEPROM_LockPage(t *testing.T) {
	r := newRig(t, sim.NewDS2431(14))
	main, ctrl := r.eeprom()
	require.NoError(t, main.Write(32, []byte{0x11}))

	assert.True(t, main.CanLockPage())
	assert.False(t, main.CanRedirectPage())
	locked, err := main.IsPageLocked(1)
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, main.LockPage(1))

	locked, err = main.IsPageLocked(1)
	require.NoError(t, err)
	assert.True(t, locked)
	locked, err = main.IsPageLocked(0)
	require.NoError(t, err)
	assert.False(t, locked)

	require.ErrorIs(t, main.Write(32, []byte{0x22}), ErrVerification)
	require.NoError(t, main.Write(0, []byte{0x22}))

	// protection bytes are one way
	require.ErrorIs(t, ctrl.Write(1, []byte{0x00}), ErrVerification)
	locked, err = main.IsPageLocked(1)
	require.NoError(t, err)
	assert.True(t, locked)

	got := make([]byte, 1)
	require.NoError(t, main.Read(32, false, got))
	assert.Equal(t, byte(0x11), got[0])
}

func TestEEPROM_EPROMMode(t *testing.T) {
	r := newRig(t, sim.NewDS2431(15))
	main, _ := r.eeprom()

	require.NoError(t, main.Write(64, []byte{0xF0}))
	require.NoError(t, main.SetPageEPROMMode(2))

	on, err := main.IsPageEPROMMode(2)
	require.NoError(t, err)
	assert.True(t, on)
	locked, err := main.IsPageLocked(2)
	require.NoError(t, err)
	assert.False(t, locked)

	// clearing bits works, setting them does not
	require.NoError(t, main.Write(64, []byte{0x30}))
	require.ErrorIs(t, main.Write(64, []byte{0xFF}), ErrVerification)
}

func TestEEPROM_NoLockBank(t *testing.T) {
	r := newRig(t, sim.NewDS2431(16))
	_, ctrl := r.eeprom()

	assert.False(t, ctrl.CanLockPage())
	require.ErrorIs(t, ctrl.LockPage(0), ErrCapability)
	require.ErrorIs(t, ctrl.RedirectPage(0, 1), ErrCapability)
	require.ErrorIs(t, ctrl.LockRedirectPage(0), ErrCapability)

	page, err := ctrl.RedirectedPage(0)
	require.NoError(t, err)
	assert.Zero(t, page)
}

func TestEEPROM_PlainScratchpad(t *testing.T) {
	r := newRig(t, sim.NewDS2430(1))
	sp := NewScratchpad(r.id, ScratchpadPlain, 32, r.cfg)
	main := NewEEPROM(sp, testPlainMain)

	require.NoError(t, main.Write(4, []byte("plain")))
	require.NoError(t, main.WritePagePacket(0, []byte("hi")))

	p := make([]byte, 29)
	n, err := main.ReadPagePacket(0, false, p)
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), p[:n])

	require.ErrorIs(t, main.Write(32, []byte{1}), ErrRange)
}
