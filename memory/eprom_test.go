package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-onewire/bus"
	"github.com/arloliu/go-onewire/logger"
	"github.com/arloliu/go-onewire/sim"
)

func TestEPROM_WriteRead(t *testing.T) {
	r := newRig(t, sim.NewDS2502(1))
	main, _ := r.eprom()

	require.NoError(t, main.Write(30, []byte("hello")))

	got := make([]byte, 5)
	require.NoError(t, main.Read(30, false, got))
	assert.Equal(t, []byte("hello"), got)

	page := make([]byte, 32)
	require.NoError(t, main.ReadPageCRC(1, false, page))
	assert.Equal(t, []byte("llo"), page[:3])
	assert.Equal(t, ffBlock(29), page[3:])
	assert.Equal(t, bus.DeliveryEPROM, r.adapter.ProgramPulseDuration())
}

func TestEPROM_ReadPageCRCContinue(t *testing.T) {
	r := newRig(t, sim.NewDS2502(2))
	main, _ := r.eprom()
	require.NoError(t, main.Write(0, seq(40, 0)))

	p0 := make([]byte, 32)
	p1 := make([]byte, 32)
	require.NoError(t, main.ReadPageCRC(0, false, p0))
	require.NoError(t, main.ReadPageCRC(1, true, p1))
	assert.Equal(t, seq(32, 0), p0)
	assert.Equal(t, seq(8, 32), p1[:8])
}

func TestEPROM_CorruptPageCRC(t *testing.T) {
	r := newRig(t, sim.NewDS2502(3))
	main, _ := r.eprom()

	// command, TA1, TA2, command CRC, then page data
	r.adapter.CorruptNext(6, 0x04)
	err := main.ReadPageCRC(0, false, make([]byte, 32))
	require.ErrorIs(t, err, ErrIntegrity)
	assert.EqualValues(t, 1, r.metrics.IntegrityErrCount.Load())
}

func TestEPROM_Packet(t *testing.T) {
	r := newRig(t, sim.NewDS2502(4))
	main, _ := r.eprom()

	require.NoError(t, main.WritePagePacket(3, []byte("ABC")))
	p := make([]byte, 29)
	n, err := main.ReadPagePacket(3, false, p)
	require.NoError(t, err)
	assert.Equal(t, []byte("ABC"), p[:n])
}

func TestEPROM_WriteOnce(t *testing.T) {
	r := newRig(t, sim.NewDS2502(5))
	main, _ := r.eprom()

	require.NoError(t, main.Write(0, []byte{0x0F}))
	require.NoError(t, main.Write(0, []byte{0x05}))
	require.ErrorIs(t, main.Write(0, []byte{0xF5}), ErrVerification)
	assert.EqualValues(t, 1, r.metrics.VerificationErrCount.Load())

	main.SetWriteVerification(false)
	require.NoError(t, main.Write(0, []byte{0xFF}))

	got := make([]byte, 1)
	require.NoError(t, main.Read(0, false, got))
	assert.Equal(t, byte(0x05), got[0])
}

func TestEPROM_ProgramPulseUnavailable(t *testing.T) {
	r := newRig(t, sim.NewDS2502(6), sim.WithoutProgramPulse())
	main, _ := r.eprom()

	require.ErrorIs(t, main.Write(0, []byte{0}), ErrPowerUnavailable)
	require.ErrorIs(t, main.LockPage(0), ErrPowerUnavailable)
}

func TestEPROM_LockPage(t *testing.T) {
	r := newRig(t, sim.NewDS2502(7))
	main, _ := r.eprom()

	assert.True(t, main.CanLockPage())
	require.NoError(t, main.LockPage(1))

	locked, err := main.IsPageLocked(1)
	require.NoError(t, err)
	assert.True(t, locked)
	locked, err = main.IsPageLocked(2)
	require.NoError(t, err)
	assert.False(t, locked)

	require.ErrorIs(t, main.Write(40, []byte{0}), ErrVerification)
	require.NoError(t, main.Write(70, []byte{0}))

	// locking again keeps the page locked
	require.NoError(t, main.LockPage(1))
	locked, err = main.IsPageLocked(1)
	require.NoError(t, err)
	assert.True(t, locked)

	require.ErrorIs(t, main.LockPage(4), ErrRange)
}

func TestEPROM_Redirect(t *testing.T) {
	r := newRig(t, sim.NewDS2502(8))
	main, _ := r.eprom()

	page, err := main.RedirectedPage(0)
	require.NoError(t, err)
	assert.Zero(t, page)

	require.NoError(t, main.RedirectPage(0, 2))
	page, err = main.RedirectedPage(0)
	require.NoError(t, err)
	assert.Equal(t, 2, page)

	resolved, err := ResolvePage(main, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, resolved)
	resolved, err = ResolvePage(main, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)

	require.NoError(t, main.LockRedirectPage(0))
	locked, err := main.IsRedirectPageLocked(0)
	require.NoError(t, err)
	assert.True(t, locked)
	locked, err = main.IsRedirectPageLocked(1)
	require.NoError(t, err)
	assert.False(t, locked)

	require.ErrorIs(t, main.RedirectPage(0, 3), ErrVerification)
	page, err = main.RedirectedPage(0)
	require.NoError(t, err)
	assert.Equal(t, 2, page)

	require.ErrorIs(t, main.RedirectPage(0, 4), ErrRange)
}

func TestEPROM_StatusBank(t *testing.T) {
	r := newRig(t, sim.NewDS2502(9))
	main, status := r.eprom()
	require.NoError(t, main.LockPage(0))

	got := make([]byte, 8)
	require.NoError(t, status.Read(0, false, got))
	assert.Equal(t, byte(0xFE), got[0])
	assert.Equal(t, ffBlock(7), got[1:])

	require.NoError(t, status.ReadPageCRC(0, false, got))
	assert.Equal(t, byte(0xFE), got[0])

	assert.False(t, status.CanLockPage())
	require.ErrorIs(t, status.LockPage(0), ErrCapability)
	require.ErrorIs(t, status.WritePagePacket(0, []byte{1}), ErrCapability)
}

func TestEPROM_LockLogged(t *testing.T) {
	r := newRig(t, sim.NewDS2502(12))
	log := logger.NewMockLogger()
	log.On("Info", "memory: page locked", []any{"page", 2}).Once()
	log.On("Info", "memory: page redirected", []any{"page", 3, "to", 1}).Once()

	r.cfg = r.config(t, WithLogger(log))
	main, _ := r.eprom()

	require.NoError(t, main.LockPage(2))
	require.NoError(t, main.RedirectPage(3, 1))
	log.AssertExpectations(t)
}
