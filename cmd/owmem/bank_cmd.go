package main

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-onewire/memory"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the stored devices and their banks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(func(s *session) error {
				for _, dev := range s.adapter.Devices() {
					c, err := s.registry.Get(dev.Address())
					if err != nil {
						return err
					}
					fmt.Fprintf(a.out, "%s %s %s\n", c.Address(), c.Name(), c.Description())
					for i, b := range c.Banks() {
						d := b.Descriptor()
						fmt.Fprintf(a.out, "  %d: %s, %d bytes, %d x %d [%s]\n",
							i, d.Description, d.Size, d.NumberPages, d.PageLength, d.Capabilities)
					}
				}

				return nil
			})
		},
	}
}

func newReadCmd(a *app) *cobra.Command {
	var packet, checked bool

	readCmd := &cobra.Command{
		Use:   "read <address> <bank> [page]",
		Short: "Read a bank or one page of it",
		Long: `Read a whole bank, or one page of it when a page number is given. With
--packet the page is decoded as a Universal Data Packet; with --crc it is
read with the device generated CRC.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (packet || checked) && len(args) < 3 {
				return fmt.Errorf("owmem: --packet and --crc need a page")
			}

			var out []byte
			err := a.withSession(func(s *session) error {
				c, err := s.container(args[0])
				if err != nil {
					return err
				}
				b, err := s.bank(c, args[1])
				if err != nil {
					return err
				}
				d := b.Descriptor()

				return s.exclusive(cmd.Context(), func() error {
					if len(args) == 2 {
						out = make([]byte, d.Size)
						return b.Read(0, false, out)
					}

					page, err := strconv.Atoi(args[2])
					if err != nil {
						return fmt.Errorf("owmem: invalid page %q", args[2])
					}
					pb, ok := b.(memory.PagedMemoryBank)
					if !ok {
						return fmt.Errorf("%w: bank %s has no pages", memory.ErrCapability, args[1])
					}

					switch {
					case packet:
						buf := make([]byte, d.MaxPacketDataLength)
						n, err := pb.ReadPagePacket(page, false, buf)
						out = buf[:n]
						return err
					case checked:
						out = make([]byte, d.PageLength)
						return pb.ReadPageCRC(page, false, out)
					default:
						out = make([]byte, d.PageLength)
						return pb.ReadPage(page, false, out)
					}
				})
			})
			if err != nil {
				return err
			}

			if packet {
				fmt.Fprintf(a.out, "%q\n", out)
			} else {
				fmt.Fprintln(a.out, hex.EncodeToString(out))
			}

			return nil
		},
	}
	readCmd.Flags().BoolVar(&packet, "packet", false, "decode the page as a Universal Data Packet")
	readCmd.Flags().BoolVar(&checked, "crc", false, "read the page with the device generated CRC")
	readCmd.MarkFlagsMutuallyExclusive("packet", "crc")

	return readCmd
}

func newWriteCmd(a *app) *cobra.Command {
	var packet bool

	writeCmd := &cobra.Command{
		Use:   "write <address> <bank> <offset|page> <data>",
		Short: "Write hex data at a bank offset, or a text packet to a page",
		Long: `Write hex encoded data at a bank offset. With --packet the third argument
is a page number and the data is stored there as a Universal Data Packet.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("owmem: invalid offset %q", args[2])
			}

			var data []byte
			if packet {
				data = []byte(args[3])
			} else if data, err = hex.DecodeString(args[3]); err != nil {
				return fmt.Errorf("owmem: invalid hex data: %w", err)
			}

			return a.withSession(func(s *session) error {
				c, err := s.container(args[0])
				if err != nil {
					return err
				}
				b, err := s.bank(c, args[1])
				if err != nil {
					return err
				}

				// a failed write may still have changed part of the range
				s.dirty = true

				return s.exclusive(cmd.Context(), func() error {
					if !packet {
						return b.Write(at, data)
					}
					pb, ok := b.(memory.PagedMemoryBank)
					if !ok {
						return fmt.Errorf("%w: bank %s has no pages", memory.ErrCapability, args[1])
					}

					return pb.WritePagePacket(at, data)
				})
			})
		},
	}
	writeCmd.Flags().BoolVar(&packet, "packet", false, "store the data as a Universal Data Packet")

	return writeCmd
}

func newLockCmd(a *app) *cobra.Command {
	var redirect bool

	lockCmd := &cobra.Command{
		Use:   "lock <address> <bank> <page>",
		Short: "Permanently lock a page",
		Long: `Permanently lock a page against writes, or with --redirect lock its
redirection. Locks cannot be undone.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("owmem: invalid page %q", args[2])
			}

			return a.withSession(func(s *session) error {
				c, err := s.container(args[0])
				if err != nil {
					return err
				}
				b, err := s.bank(c, args[1])
				if err != nil {
					return err
				}
				ob, ok := b.(memory.OTPMemoryBank)
				if !ok {
					return fmt.Errorf("%w: bank %s cannot lock pages", memory.ErrCapability, args[1])
				}

				s.dirty = true

				return s.exclusive(cmd.Context(), func() error {
					if redirect {
						return ob.LockRedirectPage(page)
					}

					return ob.LockPage(page)
				})
			})
		},
	}
	lockCmd.Flags().BoolVar(&redirect, "redirect", false, "lock the redirection of the page instead")

	return lockCmd
}

func newDumpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <address>",
		Short: "Hex dump every bank of a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(func(s *session) error {
				c, err := s.container(args[0])
				if err != nil {
					return err
				}

				return s.exclusive(cmd.Context(), func() error {
					for i, b := range c.Banks() {
						d := b.Descriptor()
						buf := make([]byte, d.Size)
						if err := b.Read(0, false, buf); err != nil {
							return fmt.Errorf("bank %d: %w", i, err)
						}
						fmt.Fprintf(a.out, "bank %d: %s @0x%04X\n", i, d.Description, d.StartAddress)
						fmt.Fprint(a.out, hex.Dump(buf))
					}

					return nil
				})
			})
		},
	}
}
