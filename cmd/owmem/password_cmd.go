package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-onewire/memory"
)

func newPasswordCmd(a *app) *cobra.Command {
	passwordCmd := &cobra.Command{
		Use:   "password",
		Short: "Manage device and host passwords",
		Long: `Manage the passwords of password protected devices. Host passwords are the
secrets owmem presents to the device; they are kept in the store next to
the device image. Kinds are ro (read-only), rw (read-write) and wo
(write-only); secrets are 16 hex digits.`,
	}

	statusCmd := &cobra.Command{
		Use:   "status <address>",
		Short: "Show the password control state and the stored host passwords",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withProtected(args[0], func(s *session, pp memory.PasswordProtected) error {
				var state memory.ControlState
				err := s.exclusive(cmd.Context(), func() error {
					var err error
					state, err = pp.ReadControl()
					return err
				})
				if err != nil {
					return err
				}

				fmt.Fprintf(a.out, "enforced: %t\n", state.Enforced())
				host := pp.Passwords()
				for _, kind := range kinds(pp.PasswordKinds()) {
					fmt.Fprintf(a.out, "%s: enabled=%t host=%t\n", kind, state.Enabled(kind), host.IsSet(kind))
				}

				return nil
			})
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <address> <kind> <secret>",
		Short: "Write a password into the device and store it as host password",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, secret, err := parseSecret(args[1], args[2])
			if err != nil {
				return err
			}

			return a.withProtected(args[0], func(s *session, pp memory.PasswordProtected) error {
				s.dirty = true
				err := s.exclusive(cmd.Context(), func() error {
					return pp.SetDevicePassword(kind, secret)
				})
				if err != nil {
					return err
				}

				return s.store.PutPasswords(s.addr, pp.Passwords())
			})
		},
	}

	hostCmd := &cobra.Command{
		Use:   "host <address> <kind> [secret]",
		Short: "Store a host password without touching the device",
		Long:  "Store a host password without touching the device. Without a secret the host password is cleared.",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				kind   memory.PasswordKind
				secret []byte
				err    error
			)
			if len(args) == 3 {
				kind, secret, err = parseSecret(args[1], args[2])
			} else {
				kind, err = parseKind(args[1])
			}
			if err != nil {
				return err
			}

			return a.withProtected(args[0], func(s *session, pp memory.PasswordProtected) error {
				pw := withSecret(pp.Passwords(), kind, secret)
				if err := pp.SetPasswords(pw); err != nil {
					return err
				}

				return s.store.PutPasswords(s.addr, pw)
			})
		},
	}

	passwordCmd.AddCommand(statusCmd, setCmd, hostCmd,
		newPasswordControlCmd(a, "enable", true),
		newPasswordControlCmd(a, "disable", false),
	)

	return passwordCmd
}

func newPasswordControlCmd(a *app, use string, on bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <address>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " password checking in the device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withProtected(args[0], func(s *session, pp memory.PasswordProtected) error {
				s.dirty = true

				return s.exclusive(cmd.Context(), func() error {
					state, err := pp.ReadControl()
					if err != nil {
						return err
					}

					return pp.WriteControl(state.WithEnabled(pp.PasswordKinds(), on))
				})
			})
		},
	}
}

// withProtected runs fn with the password interface of the device at addr.
func (a *app) withProtected(addr string, fn func(*session, memory.PasswordProtected) error) error {
	return a.withSession(func(s *session) error {
		c, err := s.container(addr)
		if err != nil {
			return err
		}
		pp, ok := c.Passwords()
		if !ok {
			return fmt.Errorf("%w: %s has no passwords", memory.ErrCapability, c.Name())
		}
		s.addr = c.Address()

		return fn(s, pp)
	})
}

func parseKind(s string) (memory.PasswordKind, error) {
	switch strings.ToLower(s) {
	case "ro", "read-only":
		return memory.ReadOnlyPassword, nil
	case "rw", "read-write":
		return memory.ReadWritePassword, nil
	case "wo", "write-only":
		return memory.WriteOnlyPassword, nil
	default:
		return 0, fmt.Errorf("owmem: unknown password kind %q", s)
	}
}

func parseSecret(kindArg, secretArg string) (memory.PasswordKind, []byte, error) {
	kind, err := parseKind(kindArg)
	if err != nil {
		return 0, nil, err
	}
	secret, err := hex.DecodeString(secretArg)
	if err != nil || len(secret) != memory.PasswordLength {
		return 0, nil, fmt.Errorf("owmem: password must be %d hex digits", 2*memory.PasswordLength)
	}

	return kind, secret, nil
}

func kinds(set memory.PasswordKind) []memory.PasswordKind {
	var out []memory.PasswordKind
	for _, k := range []memory.PasswordKind{memory.ReadOnlyPassword, memory.ReadWritePassword, memory.WriteOnlyPassword} {
		if set&k != 0 {
			out = append(out, k)
		}
	}

	return out
}

func withSecret(p memory.Passwords, kind memory.PasswordKind, secret []byte) memory.Passwords {
	switch kind {
	case memory.ReadOnlyPassword:
		p.ReadOnly = secret
	case memory.ReadWritePassword:
		p.ReadWrite = secret
	case memory.WriteOnlyPassword:
		p.WriteOnly = secret
	}

	return p
}
