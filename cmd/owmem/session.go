package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/go-onewire/bus"
	"github.com/arloliu/go-onewire/device"
	"github.com/arloliu/go-onewire/internal/store"
	"github.com/arloliu/go-onewire/memory"
	"github.com/arloliu/go-onewire/sim"
)

// session is one opened store with its devices attached to a simulated bus.
type session struct {
	store    *store.Store
	adapter  *sim.Adapter
	port     *bus.Port
	registry *device.Registry
	// addr is the device the session works on, if any.
	addr  bus.Address
	dirty bool
}

func (a *app) open() (*session, error) {
	st, err := store.Open(a.cfg.storePath)
	if err != nil {
		return nil, err
	}

	adapter := sim.NewAdapter(sim.WithLogger(a.log))
	n, err := st.LoadBus(adapter)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	a.log.Debug("owmem: bus loaded", "store", a.cfg.storePath, "devices", n)

	port := bus.NewPort(adapter, bus.WithPortLogger(a.log))
	reg := device.NewRegistry(port,
		device.WithLogger(a.log),
		device.WithBankOptions(memory.WithWriteVerification(a.cfg.verify)),
	)

	return &session{store: st, adapter: adapter, port: port, registry: reg}, nil
}

// withSession opens a session, runs fn and closes the session.
func (a *app) withSession(fn func(*session) error) error {
	s, err := a.open()
	if err != nil {
		return err
	}

	return errors.Join(fn(s), s.close())
}

// close persists the device images when the session changed them.
func (s *session) close() error {
	var err error
	if s.dirty {
		err = s.store.SaveBus(s.adapter)
	}

	return errors.Join(err, s.store.Close())
}

// container returns the device at the address in arg, with its stored host
// passwords applied.
func (s *session) container(arg string) (*device.Container, error) {
	addr, err := bus.ParseAddress(arg)
	if err != nil {
		return nil, err
	}
	if _, ok := s.adapter.Device(addr); !ok {
		return nil, fmt.Errorf("owmem: no device %s in the store", addr)
	}

	c, err := s.registry.Get(addr)
	if err != nil {
		return nil, err
	}

	if pp, ok := c.Passwords(); ok {
		pw, err := s.store.Passwords(addr)
		if err != nil {
			return nil, err
		}
		if err := pp.SetPasswords(pw); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// bank returns bank number arg of c.
func (s *session) bank(c *device.Container, arg string) (memory.MemoryBank, error) {
	i, err := strconv.Atoi(arg)
	if err != nil {
		return nil, fmt.Errorf("owmem: invalid bank %q", arg)
	}

	return c.Bank(i)
}

// exclusive runs fn while holding the bus.
func (s *session) exclusive(ctx context.Context, fn func() error) error {
	return s.port.Exclusive(ctx, func(bus.Adapter) error { return fn() })
}

// parseFamily accepts a part name such as DS2431 or DS1972, or a family code
// such as 2D or 0x2D.
func parseFamily(s string) (*device.Family, error) {
	for _, f := range device.Families() {
		if strings.EqualFold(s, f.Name) || (f.AltName != "" && strings.EqualFold(s, f.AltName)) {
			return f, nil
		}
	}

	code, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 8)
	if err == nil {
		if f, ok := device.Lookup(byte(code)); ok {
			return f, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", device.ErrUnknownFamily, s)
}
