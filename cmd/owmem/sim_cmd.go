package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-onewire/bus"
	"github.com/arloliu/go-onewire/sim"
)

const maxSerial = 1<<48 - 1

func newSimCmd(a *app) *cobra.Command {
	simCmd := &cobra.Command{
		Use:   "sim",
		Short: "Manage the devices of the simulated bus",
	}

	addCmd := &cobra.Command{
		Use:   "add <family> [serial]",
		Short: "Add a blank device to the store",
		Long: `Add a blank device of the given family to the store. The family is a part
name (DS2431, DS1972, ...) or a family code (2D, 0x2D). Without a serial
number the lowest free one is used.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFamily(args[0])
			if err != nil {
				return err
			}

			var addr bus.Address
			err = a.withSession(func(s *session) error {
				var serial uint64
				if len(args) == 2 {
					serial, err = strconv.ParseUint(args[1], 0, 64)
					if err != nil || serial > maxSerial {
						return fmt.Errorf("owmem: invalid serial number %q", args[1])
					}
				} else {
					serial = freeSerial(s.adapter, f.Code)
				}

				addr = bus.NewAddress(f.Code, serial)
				if _, ok := s.adapter.Device(addr); ok {
					return fmt.Errorf("owmem: device %s already exists", addr)
				}
				dev, ok := sim.New(addr)
				if !ok {
					return fmt.Errorf("owmem: no simulation for %s", f.Name)
				}
				s.adapter.Attach(dev)
				s.dirty = true

				return nil
			})
			if err != nil {
				return err
			}

			a.log.Info("owmem: device added", "device", addr.String(), "family", f.Name)
			fmt.Fprintf(a.out, "%s %s\n", addr, f.Name)

			return nil
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <address>",
		Short: "Remove a device and its stored passwords",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := bus.ParseAddress(args[0])
			if err != nil {
				return err
			}

			return a.withSession(func(s *session) error {
				if !s.adapter.Detach(addr) {
					return fmt.Errorf("owmem: no device %s in the store", addr)
				}

				return s.store.Delete(addr)
			})
		},
	}

	simCmd.AddCommand(addCmd, removeCmd)

	return simCmd
}

func freeSerial(a *sim.Adapter, family byte) uint64 {
	for serial := uint64(1); ; serial++ {
		if _, ok := a.Device(bus.NewAddress(family, serial)); !ok {
			return serial
		}
	}
}
