package memory

import (
	"bytes"
	"fmt"
	"sync"
)

// PasswordKind is a set of device passwords.
type PasswordKind uint8

const (
	ReadOnlyPassword PasswordKind = 1 << iota
	ReadWritePassword
	WriteOnlyPassword
)

func (k PasswordKind) String() string {
	switch k {
	case ReadOnlyPassword:
		return "read-only"
	case ReadWritePassword:
		return "read-write"
	case WriteOnlyPassword:
		return "write-only"
	case 0:
		return "none"
	default:
		return fmt.Sprintf("set(0x%02X)", uint8(k))
	}
}

// Passwords holds the secrets a host presents to a device. A nil secret is
// unset and is sent as zeros.
type Passwords struct {
	ReadOnly  []byte
	ReadWrite []byte
	WriteOnly []byte
}

// Get returns the secret of kind.
func (p Passwords) Get(kind PasswordKind) []byte {
	switch kind {
	case ReadOnlyPassword:
		return p.ReadOnly
	case ReadWritePassword:
		return p.ReadWrite
	case WriteOnlyPassword:
		return p.WriteOnly
	default:
		return nil
	}
}

// IsSet reports whether the secret of kind is set.
func (p Passwords) IsSet(kind PasswordKind) bool { return p.Get(kind) != nil }

func (p Passwords) clone() Passwords {
	return Passwords{
		ReadOnly:  bytes.Clone(p.ReadOnly),
		ReadWrite: bytes.Clone(p.ReadWrite),
		WriteOnly: bytes.Clone(p.WriteOnly),
	}
}

// ControlState is one reading of a device's password control register.
//
// It is produced by ReadControl and consumed by WriteControl. Each write
// advances the device version, so a state can only be written back once
// and never after another write.
type ControlState struct {
	version uint64
	enabled PasswordKind
}

// Version returns the control version the state was read at.
func (s ControlState) Version() uint64 { return s.version }

// Enabled reports whether all passwords in kind are enabled.
func (s ControlState) Enabled(kind PasswordKind) bool { return s.enabled&kind == kind }

// Enforced reports whether any password is enabled.
func (s ControlState) Enforced() bool { return s.enabled != 0 }

// EnabledKinds returns the set of enabled passwords.
func (s ControlState) EnabledKinds() PasswordKind { return s.enabled }

// WithEnabled returns a copy of s with the passwords in kind enabled or disabled.
func (s ControlState) WithEnabled(kind PasswordKind, on bool) ControlState {
	if on {
		s.enabled |= kind
	} else {
		s.enabled &^= kind
	}

	return s
}

// PasswordProtected is implemented by banks of password gated devices.
type PasswordProtected interface {
	// PasswordKinds returns the passwords the device supports.
	PasswordKinds() PasswordKind
	// SinglePasswordEnable reports whether passwords can be enabled one at a time.
	SinglePasswordEnable() bool

	// SetPasswords sets the secrets used for subsequent bank access.
	SetPasswords(p Passwords) error
	// Passwords returns a copy of the secrets used for bank access.
	Passwords() Passwords

	ReadControl() (ControlState, error)
	// WriteControl stores s in the device. Enabling a password needs the
	// matching host secret; changing an enforced state needs the read-write
	// password to pass the device challenge.
	WriteControl(s ControlState) error

	// SetDevicePassword writes secret into the device and, once the device
	// accepts it, uses it as host secret.
	SetDevicePassword(kind PasswordKind, secret []byte) error
	// VerifyPassword challenges the device with secret.
	VerifyPassword(kind PasswordKind, secret []byte) (bool, error)
}

// PasswordLayout locates the password registers of a device.
type PasswordLayout struct {
	// Kinds is the set of supported passwords.
	Kinds PasswordKind

	ReadOnlyAddress  int
	ReadWriteAddress int
	WriteOnlyAddress int

	// ControlAddress is the password control register. EnableValue in it
	// enables every supported password, DisableValue disables them.
	ControlAddress int
	EnableValue    byte
	DisableValue   byte
}

func (l PasswordLayout) address(kind PasswordKind) (int, error) {
	if l.Kinds&kind == 0 {
		return 0, fmt.Errorf("%w: no %s password", ErrCapability, kind)
	}
	switch kind {
	case ReadOnlyPassword:
		return l.ReadOnlyAddress, nil
	case ReadWritePassword:
		return l.ReadWriteAddress, nil
	case WriteOnlyPassword:
		return l.WriteOnlyAddress, nil
	default:
		return 0, fmt.Errorf("%w: password kind %s", ErrCapability, kind)
	}
}

// passwordGuard holds the host secrets and control state shared by the
// banks of one device.
type passwordGuard struct {
	sp       *Scratchpad
	layout   PasswordLayout
	register *NVRAM

	// ctl serializes control register writes with their version check.
	ctl sync.Mutex

	mu        sync.Mutex
	passwords Passwords
	version   uint64
}

func (g *passwordGuard) PasswordKinds() PasswordKind { return g.layout.Kinds }

func (g *passwordGuard) SinglePasswordEnable() bool { return false }

func (g *passwordGuard) SetPasswords(p Passwords) error {
	for _, kind := range []PasswordKind{ReadOnlyPassword, ReadWritePassword, WriteOnlyPassword} {
		secret := p.Get(kind)
		if secret == nil {
			continue
		}
		if g.layout.Kinds&kind == 0 {
			return fmt.Errorf("%w: no %s password", ErrCapability, kind)
		}
		if len(secret) != PasswordLength {
			return fmt.Errorf("%w: %s password is %d bytes, want %d", ErrRange, kind, len(secret), PasswordLength)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.passwords = p.clone()

	return nil
}

func (g *passwordGuard) Passwords() Passwords {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.passwords.clone()
}

func (g *passwordGuard) secret(kind PasswordKind) []byte {
	g.mu.Lock()
	defer g.mu.Unlock()

	return bytes.Clone(g.passwords.Get(kind))
}

// readSecret returns the secret sent with memory reads and the address of
// the password it is checked against.
func (g *passwordGuard) readSecret() ([]byte, int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.layout.Kinds&ReadOnlyPassword != 0 && g.passwords.ReadOnly != nil {
		return bytes.Clone(g.passwords.ReadOnly), g.layout.ReadOnlyAddress
	}

	return bytes.Clone(g.passwords.ReadWrite), g.layout.ReadWriteAddress
}

func (g *passwordGuard) VerifyPassword(kind PasswordKind, secret []byte) (bool, error) {
	addr, err := g.layout.address(kind)
	if err != nil {
		return false, err
	}

	return g.sp.VerifyPassword(addr, secret)
}

// controlRaw reads the password control register.
func (g *passwordGuard) controlRaw() (byte, error) {
	buf := make([]byte, 1)
	if err := g.register.read(g.layout.ControlAddress, false, buf); err != nil {
		return 0, err
	}

	return buf[0], nil
}

// enforced reports whether the device currently checks passwords.
func (g *passwordGuard) enforced() (bool, error) {
	raw, err := g.controlRaw()

	return raw == g.layout.EnableValue, err
}

func (g *passwordGuard) ReadControl() (ControlState, error) {
	raw, err := g.controlRaw()
	if err != nil {
		return ControlState{}, g.register.done(err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	s := ControlState{version: g.version}
	if raw == g.layout.EnableValue {
		s.enabled = g.layout.Kinds
	}

	return s, nil
}

func (g *passwordGuard) WriteControl(s ControlState) error {
	g.ctl.Lock()
	defer g.ctl.Unlock()

	g.mu.Lock()
	version := g.version
	passwords := g.passwords.clone()
	g.mu.Unlock()

	if s.version != version {
		return fmt.Errorf("%w: version %d, current %d", ErrStaleState, s.version, version)
	}

	var value byte
	switch s.enabled {
	case 0:
		value = g.layout.DisableValue
	case g.layout.Kinds:
		value = g.layout.EnableValue
		for _, kind := range []PasswordKind{ReadOnlyPassword, ReadWritePassword, WriteOnlyPassword} {
			if g.layout.Kinds&kind != 0 && !passwords.IsSet(kind) {
				return fmt.Errorf("%w: host %s password not set", ErrAuthentication, kind)
			}
		}
	default:
		return fmt.Errorf("%w: passwords %s must be enabled together", ErrCapability, g.layout.Kinds)
	}

	offset := g.layout.ControlAddress - g.register.desc.StartAddress
	if err := g.register.Write(offset, []byte{value}); err != nil {
		return err
	}

	g.mu.Lock()
	g.version++
	g.mu.Unlock()

	g.register.logger.Info("memory: password control written", "enabled", s.enabled.String())

	return nil
}

func (g *passwordGuard) SetDevicePassword(kind PasswordKind, secret []byte) error {
	addr, err := g.layout.address(kind)
	if err != nil {
		return err
	}
	if len(secret) != PasswordLength {
		return fmt.Errorf("%w: %s password is %d bytes, want %d", ErrRange, kind, len(secret), PasswordLength)
	}

	// password registers read back as zeros, so the write is checked with
	// the device challenge instead
	offset := addr - g.register.desc.StartAddress
	if err := g.register.writeChecked(offset, secret, false); err != nil {
		return err
	}

	ok, err := g.VerifyPassword(kind, secret)
	if err != nil {
		return err
	}
	if !ok {
		return g.register.done(fmt.Errorf("%w: device did not accept new %s password", ErrVerification, kind))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	switch kind {
	case ReadOnlyPassword:
		g.passwords.ReadOnly = bytes.Clone(secret)
	case ReadWritePassword:
		g.passwords.ReadWrite = bytes.Clone(secret)
	case WriteOnlyPassword:
		g.passwords.WriteOnly = bytes.Clone(secret)
	}

	return nil
}
