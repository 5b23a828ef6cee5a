package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-onewire/bus"
)

func TestAdapter_Select(t *testing.T) {
	require := require.New(t)

	a := NewAdapter()
	dev := NewDS2431(1)
	a.Attach(dev)

	ok, err := a.Select(dev.Address())
	require.NoError(err)
	require.True(ok)

	ok, err = a.Select(bus.NewAddress(FamilyDS2431, 2))
	require.NoError(err)
	require.False(ok)

	dev.SetPresent(false)
	ok, err = a.Select(dev.Address())
	require.NoError(err)
	require.False(ok)

	r, err := a.Reset()
	require.NoError(err)
	require.Equal(bus.ResetNoPresence, r)
}

func TestAdapter_MatchROM(t *testing.T) {
	require := require.New(t)

	a := NewAdapter()
	dev := NewDS2431(7)
	a.Attach(dev)
	a.Attach(NewDS2502(8))

	r, err := a.Reset()
	require.NoError(err)
	require.Equal(bus.ResetPresence, r)

	addr := dev.Address()
	buf := append([]byte{bus.MatchROMCommand}, addr[:]...)
	require.NoError(a.DataBlock(buf))

	// read memory at 0x0000
	buf = []byte{0xF0, 0x00, 0x00, 0xFF, 0xFF}
	require.NoError(a.DataBlock(buf))
	require.Equal([]byte{0xFF, 0xFF}, buf[3:])
}

func TestAdapter_SkipROMNeedsSingleDevice(t *testing.T) {
	require := require.New(t)

	a := NewAdapter()
	a.Attach(NewDS2430(1))
	a.Attach(NewDS2430(2))

	_, err := a.Reset()
	require.NoError(err)
	require.NoError(a.PutByte(bus.SkipROMCommand))
	require.NoError(a.PutByte(0x66))
	require.NoError(a.PutByte(0x00))
	b, err := a.GetByte()
	require.NoError(err)
	require.Equal(byte(0xFF), b)
}

func TestAdapter_WiredAnd(t *testing.T) {
	a := NewAdapter()
	dev := NewDS2430(3)
	a.Attach(dev)

	ok, err := a.Select(dev.Address())
	require.NoError(t, err)
	require.True(t, ok)

	buf := []byte{0xF0, 0x00, 0x0F}
	require.NoError(t, a.DataBlock(buf))
	assert.Equal(t, []byte{0xF0, 0x00, 0x0F}, buf)
}

func TestAdapter_CorruptNext(t *testing.T) {
	require := require.New(t)

	a := NewAdapter()
	dev := NewDS2430(4)
	a.Attach(dev)

	_, err := a.Select(dev.Address())
	require.NoError(err)

	a.CorruptNext(2, 0x01)
	buf := []byte{0xF0, 0x00, 0xFF, 0xFF}
	require.NoError(a.DataBlock(buf))
	require.Equal([]byte{0xF0, 0x00, 0xFE, 0xFF}, buf)
}

func TestAdapter_SpeedFiltersDevices(t *testing.T) {
	require := require.New(t)

	a := NewAdapter()
	slow := NewDS2502(1)
	fast := NewDS2431(1)
	a.Attach(slow)
	a.Attach(fast)

	require.NoError(a.SetSpeed(bus.SpeedOverdrive))

	ok, err := a.Select(slow.Address())
	require.NoError(err)
	require.False(ok)

	ok, err = a.Select(fast.Address())
	require.NoError(err)
	require.True(ok)

	b := NewAdapter(WithMaxSpeed(bus.SpeedRegular))
	require.ErrorIs(b.SetSpeed(bus.SpeedOverdrive), bus.ErrUnsupportedSpeed)
}

func TestAdapter_PowerCapabilities(t *testing.T) {
	require := require.New(t)

	a := NewAdapter(WithoutPowerDelivery(), WithoutProgramPulse())
	require.False(a.CanDeliverPower())
	require.False(a.CanProgram())

	ok, err := a.StartPowerDelivery(bus.ConditionNow)
	require.NoError(err)
	require.False(ok)

	b := NewAdapter()
	ok, err = b.StartPowerDelivery(bus.ConditionAfterByte)
	require.NoError(err)
	require.True(ok)
	require.False(b.Powered())
	require.NoError(b.PutByte(0xFF))
	require.True(b.Powered())
	require.NoError(b.SetPowerNormal())
	require.False(b.Powered())
}

func TestAdapter_Devices(t *testing.T) {
	a := NewAdapter()
	a.Attach(NewDS1977(2))
	a.Attach(NewDS2502(9))
	a.Attach(NewDS2430(5))

	devs := a.Devices()
	require.Len(t, devs, 3)
	for i := 1; i < len(devs); i++ {
		assert.Less(t, devs[i-1].Address().Uint64(), devs[i].Address().Uint64())
	}

	assert.True(t, a.Detach(devs[0].Address()))
	assert.False(t, a.Detach(devs[0].Address()))
	assert.Len(t, a.Devices(), 2)

	_, err := a.IsAlarming(devs[0].Address())
	assert.ErrorIs(t, err, bus.ErrNotPresent)
}

func TestNew(t *testing.T) {
	for _, family := range []byte{FamilyDS2430, FamilyDS2431, FamilyDS2502, FamilyDS1977} {
		dev, ok := New(bus.NewAddress(family, 1))
		require.True(t, ok)
		assert.Equal(t, family, dev.Address().Family())

		img := dev.Image()
		require.NoError(t, dev.LoadImage(img))
		assert.Error(t, dev.LoadImage(img[1:]))
	}

	_, ok := New(bus.NewAddress(0x10, 1))
	assert.False(t, ok)
}
