package memory

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-onewire/sim"
)

// redirectBank is an OTPMemoryBank with a fixed redirection table.
type redirectBank struct {
	OTPMemoryBank

	pages int
	next  map[int]int
}

func (b *redirectBank) Descriptor() Descriptor { return Descriptor{NumberPages: b.pages} }

func (b *redirectBank) CanRedirectPage() bool { return b.next != nil }

func (b *redirectBank) RedirectedPage(page int) (int, error) { return b.next[page], nil }

func TestResolvePage(t *testing.T) {
	b := &redirectBank{pages: 8, next: map[int]int{1: 3, 3: 5}}

	page, err := ResolvePage(b, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, page)

	page, err = ResolvePage(b, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, page)

	b.next[5] = 1
	_, err = ResolvePage(b, 1)
	require.ErrorIs(t, err, ErrVerification)

	b.next[5] = 9
	_, err = ResolvePage(b, 1)
	require.ErrorIs(t, err, ErrRange)

	page, err = ResolvePage(&redirectBank{pages: 8}, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, page)
}

func TestDescriptor(t *testing.T) {
	d := testEEPROMControl

	assert.Equal(t, 8, d.PageAddress(1))
	assert.Equal(t, 0x89, d.PhysicalAddress(d.PageAddress(1)+1))
	assert.True(t, d.Has(CapReadWrite|CapPowerDelivery))
	assert.False(t, d.Has(CapGeneralPurpose|CapReadWrite))
	assert.Equal(t, "read-write,non-volatile,power-delivery", d.Capabilities.String())
}

func TestRenegotiates(t *testing.T) {
	assert.True(t, renegotiates(ErrIntegrity))
	assert.True(t, renegotiates(ErrStaleState))
	assert.True(t, renegotiates(errors.Join(errors.New("x"), ErrCommit)))
	assert.False(t, renegotiates(ErrAuthentication))
	assert.False(t, renegotiates(ErrRange))
}

// testBanks returns the main bank of every bank kind, each on its own bus.
func testBanks(t *testing.T) []struct {
	name string
	rig  *rig
	bank PagedMemoryBank
} {
	t.Helper()

	eepromRig := newRig(t, sim.NewDS2431(40))
	eeprom, _ := eepromRig.eeprom()
	epromRig := newRig(t, sim.NewDS2502(41))
	eprom, _ := epromRig.eprom()
	appRig := newRig(t, sim.NewDS2430(42))
	nvramRig := newRig(t, sim.NewDS1977(43))
	nvram, _ := nvramRig.nvram()

	return []struct {
		name string
		rig  *rig
		bank PagedMemoryBank
	}{
		{"eeprom", eepromRig, eeprom},
		{"eprom", epromRig, eprom},
		{"appreg", appRig, NewAppRegister(appRig.id, appRig.cfg)},
		{"nvram", nvramRig, nvram},
	}
}

func TestBank_RangeOverflow(t *testing.T) {
	for _, tc := range testBanks(t) {
		t.Run(tc.name, func(t *testing.T) {
			buf := make([]byte, 1)
			for _, addr := range []int{math.MaxInt, math.MaxInt - 1, math.MinInt} {
				require.ErrorIs(t, tc.bank.Read(addr, false, buf), ErrRange, "read at %d", addr)
				require.ErrorIs(t, tc.bank.Write(addr, []byte{1}), ErrRange, "write at %d", addr)
			}
			require.ErrorIs(t, tc.bank.Read(1, false, make([]byte, tc.bank.Descriptor().Size)), ErrRange)

			// rejected before any bus traffic
			assert.Zero(t, tc.rig.metrics.ReadCount.Load())
			assert.Zero(t, tc.rig.metrics.WriteCount.Load())
			assert.Zero(t, tc.rig.metrics.CommitCount.Load())
		})
	}
}

func TestBank_PacketRoundTrip(t *testing.T) {
	for _, tc := range testBanks(t) {
		t.Run(tc.name, func(t *testing.T) {
			d := tc.bank.Descriptor()
			last := d.NumberPages - 1

			// distinct pages where the bank has them, so write-once banks
			// only ever program blank pages
			cases := []struct{ page, n int }{
				{0, d.MaxPacketDataLength},
				{min(1, last), 0},
				{max(last-1, 0), 1},
				{last, d.MaxPacketDataLength},
			}
			for _, c := range cases {
				payload := seq(c.n, byte(c.page+c.n))
				require.NoError(t, tc.bank.WritePagePacket(c.page, payload), "page %d len %d", c.page, c.n)

				got := make([]byte, d.MaxPacketDataLength)
				m, err := tc.bank.ReadPagePacket(c.page, false, got)
				require.NoError(t, err, "page %d len %d", c.page, c.n)
				assert.Equal(t, payload, got[:m], "page %d len %d", c.page, c.n)
			}

			require.ErrorIs(t, tc.bank.WritePagePacket(0, make([]byte, d.MaxPacketDataLength+1)), ErrFormat)
		})
	}
}
