package memory

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/arloliu/go-onewire/bus"
	"github.com/arloliu/go-onewire/crc"
	"github.com/arloliu/go-onewire/internal/pool"
	"github.com/arloliu/go-onewire/logger"
)

// Scratchpad function commands.
const (
	WriteScratchpadCommand    byte = 0x0F
	ReadScratchpadCommand     byte = 0xAA
	CopyScratchpadCommand     byte = 0x55
	CopyScratchpadPWCommand   byte = 0x99
	VerifyPasswordCommand     byte = 0xC3
	ScratchpadValidationKey   byte = 0xA5
	ScratchpadCopyConfirmed   byte = 0xAA
	scratchpadCopyFailed      byte = 0xFF
	scratchpadAuthAccept      byte = 0xAA
	scratchpadStatusAuthorize byte = 0x80
)

// PasswordLength is the length of a device password in bytes.
const PasswordLength = 8

// ScratchpadKind selects the staging protocol variant of a device.
type ScratchpadKind int

const (
	// ScratchpadPlain stages at a one byte address and commits with the
	// validation key. There is no address echo and no CRC.
	ScratchpadPlain ScratchpadKind = iota
	// ScratchpadAddressEcho latches TA1, TA2 and E/S, returns a CRC16 after a
	// write that fills the scratchpad and on every read-back, and commits
	// when the latched values are presented again.
	ScratchpadAddressEcho
	// ScratchpadPassword is ScratchpadAddressEcho whose copy carries the
	// read-write password and which supports password verification.
	ScratchpadPassword
)

func (k ScratchpadKind) String() string {
	switch k {
	case ScratchpadPlain:
		return "plain"
	case ScratchpadAddressEcho:
		return "address-echo"
	case ScratchpadPassword:
		return "password"
	default:
		return "unknown"
	}
}

// TxnState is the lifecycle state of a scratchpad Transaction.
type TxnState int

const (
	TxnWritten TxnState = iota
	TxnVerified
	TxnCommitted
	TxnAborted
)

func (s TxnState) String() string {
	switch s {
	case TxnWritten:
		return "written"
	case TxnVerified:
		return "verified"
	case TxnCommitted:
		return "committed"
	case TxnAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Scratchpad is the staging buffer of one device.
//
// A Scratchpad serializes its transactions: Begin blocks until the previous
// transaction is committed or aborted. Bus level exclusion against other
// devices is still the caller's job.
type Scratchpad struct {
	kind  ScratchpadKind
	size  int
	id    bus.Identity
	cfg   *BankConfig
	speed *speedPolicy

	metrics *BankMetrics
	logger  logger.Logger

	mu sync.Mutex
}

// NewScratchpad creates the scratchpad of the device behind id. size is the
// scratchpad length in bytes, a power of two. A nil cfg uses the defaults.
func NewScratchpad(id bus.Identity, kind ScratchpadKind, size int, cfg *BankConfig) *Scratchpad {
	cfg = defaultConfig(cfg)

	return &Scratchpad{
		kind:    kind,
		size:    size,
		id:      id,
		cfg:     cfg,
		speed:   newSpeedPolicy(id, cfg),
		metrics: cfg.metrics,
		logger:  cfg.logger.With("device", id.Address().String(), "scratchpad", kind.String()),
	}
}

func (s *Scratchpad) Kind() ScratchpadKind { return s.kind }

func (s *Scratchpad) Size() int { return s.size }

// endMask covers the ending offset bits of the E/S byte.
func (s *Scratchpad) endMask() byte { return byte(s.size - 1) }

// partialFlag is the E/S bit set when the last byte was incomplete.
func (s *Scratchpad) partialFlag() byte {
	if s.size > 32 {
		return 0x40
	}

	return 0x20
}

// Transaction is one staging cycle: Written, then Verified, then Committed,
// or Aborted after any failure. A Transaction holds its Scratchpad until it
// reaches a terminal state.
type Transaction struct {
	ID   xid.ID
	Addr int
	Data []byte

	// Address echo latched by the device.
	TA1 byte
	TA2 byte
	ES  byte

	state  TxnState
	secret []byte
	sp     *Scratchpad
}

// State returns the lifecycle state.
func (t *Transaction) State() TxnState { return t.state }

// Begin stages data for the physical address addr and returns the Written
// transaction. The range must not cross the end of the scratchpad.
func (s *Scratchpad) Begin(addr int, data []byte) (*Transaction, error) {
	off := addr % s.size
	if addr < 0 || len(data) == 0 || len(data) > s.size-off {
		return nil, fmt.Errorf("%w: %d bytes at scratchpad offset %d of %d", ErrRange, len(data), off, s.size)
	}
	if !s.id.Adapter().CanDeliverPower() {
		return nil, fmt.Errorf("%w: scratchpad copy needs power delivery", ErrPowerUnavailable)
	}
	if err := s.speed.check(); err != nil {
		return nil, err
	}

	s.mu.Lock()

	t := &Transaction{
		ID:   xid.New(),
		Addr: addr,
		Data: bytes.Clone(data),
		TA1:  byte(addr),
		TA2:  byte(addr >> 8),
		sp:   s,
	}
	if s.kind != ScratchpadPlain {
		t.ES = byte(off + len(data) - 1)
	}

	if err := s.write(t); err != nil {
		t.abort(err)
		return nil, err
	}
	t.state = TxnWritten
	s.logger.Debug("memory: scratchpad written", "txn", t.ID.String(), "addr", fmt.Sprintf("0x%04X", addr), "len", len(data))

	return t, nil
}

// Verify reads the scratchpad back and compares it with the staged data and
// address echo. Any mismatch aborts the transaction.
func (t *Transaction) Verify() error {
	if t.state != TxnWritten {
		return t.outOfOrder("verify")
	}
	if err := t.sp.verify(t); err != nil {
		t.abort(err)
		return err
	}
	t.state = TxnVerified

	return nil
}

// VerifyPassword challenges the device with secret for the password stored
// at physical address target. On success secret is also used for the copy.
// A rejected password aborts the transaction with ErrAuthentication.
func (t *Transaction) VerifyPassword(target int, secret []byte) error {
	if t.sp.kind != ScratchpadPassword {
		err := fmt.Errorf("%w: %s scratchpad has no password", ErrCapability, t.sp.kind)
		if t.live() {
			t.abort(err)
		}
		return err
	}
	if t.state != TxnVerified {
		return t.outOfOrder("password check")
	}

	ok, err := t.sp.verifyPassword(target, secret)
	if err == nil && !ok {
		err = fmt.Errorf("%w: password at 0x%04X", ErrAuthentication, target)
	}
	if err != nil {
		t.abort(err)
		return err
	}
	t.secret = bytes.Clone(secret)

	return nil
}

// SetPassword sets the password sent with the copy of a password scratchpad
// without challenging the device first.
func (t *Transaction) SetPassword(secret []byte) {
	t.secret = bytes.Clone(secret)
}

// Copy commits the verified scratchpad under power delivery and releases
// the scratchpad.
func (t *Transaction) Copy() error {
	if t.state != TxnVerified {
		return t.outOfOrder("copy")
	}
	if err := t.sp.copy(t); err != nil {
		t.abort(err)
		return err
	}

	t.state = TxnCommitted
	t.sp.metrics.incCommitCount()
	t.sp.logger.Debug("memory: scratchpad committed", "txn", t.ID.String(), "addr", fmt.Sprintf("0x%04X", t.Addr))
	t.sp.mu.Unlock()

	return nil
}

// Abort drops a transaction that has not reached a terminal state.
func (t *Transaction) Abort() {
	if t.live() {
		t.abort(nil)
	}
}

// live reports whether t still holds the scratchpad.
func (t *Transaction) live() bool {
	return t.state == TxnWritten || t.state == TxnVerified
}

// outOfOrder aborts a live transaction on a step called in the wrong state.
func (t *Transaction) outOfOrder(step string) error {
	err := fmt.Errorf("memory: transaction %s: %s in state %s", t.ID, step, t.state)
	if t.live() {
		t.abort(err)
	}

	return err
}

func (t *Transaction) abort(cause error) {
	t.state = TxnAborted
	t.sp.metrics.incAbortCount()
	if cause != nil {
		_ = t.sp.speed.fail(cause)
		t.sp.logger.Warn("memory: scratchpad transaction aborted", "txn", t.ID.String(),
			"addr", fmt.Sprintf("0x%04X", t.Addr), "error", cause)
	}
	t.sp.mu.Unlock()
}

// Commit runs a whole Begin, Verify, Copy cycle.
func (s *Scratchpad) Commit(addr int, data []byte) error {
	t, err := s.Begin(addr, data)
	if err != nil {
		return err
	}
	if err := t.Verify(); err != nil {
		return err
	}

	return t.Copy()
}

// VerifyPassword challenges the device with secret for the password stored
// at physical address target and reports whether it was accepted.
func (s *Scratchpad) VerifyPassword(target int, secret []byte) (bool, error) {
	if s.kind != ScratchpadPassword {
		return false, fmt.Errorf("%w: %s scratchpad has no password", ErrCapability, s.kind)
	}
	if !s.id.Adapter().CanDeliverPower() {
		return false, fmt.Errorf("%w: password verification needs power delivery", ErrPowerUnavailable)
	}
	if err := s.speed.check(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.verifyPassword(target, secret)

	return ok, s.speed.fail(err)
}

func (s *Scratchpad) block(buf []byte) error {
	if err := s.id.Adapter().DataBlock(buf); err != nil {
		return transport("data block", err)
	}

	return nil
}

func (s *Scratchpad) write(t *Transaction) error {
	if err := s.speed.selectDevice(); err != nil {
		return err
	}

	if s.kind == ScratchpadPlain {
		buf := make([]byte, 0, 2+len(t.Data))
		buf = append(buf, WriteScratchpadCommand, t.TA1)
		buf = append(buf, t.Data...)

		return s.block(buf)
	}

	// The device appends a CRC16 when the write reaches the end of the
	// scratchpad.
	withCRC := t.Addr%s.size+len(t.Data) == s.size
	buf := make([]byte, 0, 5+len(t.Data))
	buf = append(buf, WriteScratchpadCommand, t.TA1, t.TA2)
	buf = append(buf, t.Data...)
	if withCRC {
		buf = append(buf, 0xFF, 0xFF)
	}
	if err := s.block(buf); err != nil {
		return err
	}
	if withCRC && crc.CRC16(buf, 0) != crc.Accept16 {
		return fmt.Errorf("%w: scratchpad write to 0x%04X", ErrIntegrity, t.Addr)
	}

	return nil
}

func (s *Scratchpad) verify(t *Transaction) error {
	if err := s.speed.selectDevice(); err != nil {
		return err
	}

	n := len(t.Data)
	if s.kind == ScratchpadPlain {
		buf := append([]byte{ReadScratchpadCommand, t.TA1}, ffBlock(n)...)
		if err := s.block(buf); err != nil {
			return err
		}
		if !bytes.Equal(buf[2:], t.Data) {
			return fmt.Errorf("%w: scratchpad data at 0x%04X", ErrVerification, t.Addr)
		}

		return nil
	}

	// command, TA1, TA2, E/S, data, CRC16
	buf := append([]byte{ReadScratchpadCommand}, ffBlock(3+n+2)...)
	if err := s.block(buf); err != nil {
		return err
	}
	if crc.CRC16(buf, 0) != crc.Accept16 {
		return fmt.Errorf("%w: scratchpad read-back at 0x%04X", ErrIntegrity, t.Addr)
	}

	ta1, ta2, es := buf[1], buf[2], buf[3]
	if ta1 != t.TA1 || ta2 != t.TA2 {
		return fmt.Errorf("%w: scratchpad address echo 0x%02X%02X, want 0x%02X%02X",
			ErrVerification, ta2, ta1, t.TA2, t.TA1)
	}
	if es&s.endMask() != t.ES || es&(s.partialFlag()|scratchpadStatusAuthorize) != 0 {
		return fmt.Errorf("%w: scratchpad status 0x%02X, want ending offset 0x%02X", ErrVerification, es, t.ES)
	}
	if !bytes.Equal(buf[4:4+n], t.Data) {
		return fmt.Errorf("%w: scratchpad data at 0x%04X", ErrVerification, t.Addr)
	}
	t.ES = es

	return nil
}

func (s *Scratchpad) copy(t *Transaction) error {
	if err := s.speed.selectDevice(); err != nil {
		return err
	}

	var head []byte
	var last byte
	switch s.kind {
	case ScratchpadPlain:
		head = []byte{CopyScratchpadCommand}
		last = ScratchpadValidationKey
	case ScratchpadAddressEcho:
		head = []byte{CopyScratchpadCommand, t.TA1, t.TA2}
		last = t.ES
	case ScratchpadPassword:
		pw := padPassword(t.secret)
		head = append([]byte{CopyScratchpadPWCommand, t.TA1, t.TA2, t.ES}, pw[:PasswordLength-1]...)
		last = pw[PasswordLength-1]
	}

	if err := s.block(head); err != nil {
		return err
	}
	confirm, err := s.powered(last, s.cfg.copyDwell)
	if err != nil {
		return err
	}
	if confirm == scratchpadCopyFailed {
		return fmt.Errorf("%w: copy to 0x%04X", ErrCommit, t.Addr)
	}

	return nil
}

func (s *Scratchpad) verifyPassword(target int, secret []byte) (bool, error) {
	if err := s.speed.selectDevice(); err != nil {
		return false, err
	}

	pw := padPassword(secret)
	head := append([]byte{VerifyPasswordCommand, byte(target), byte(target >> 8)}, pw[:PasswordLength-1]...)
	if err := s.block(head); err != nil {
		return false, err
	}
	answer, err := s.powered(pw[PasswordLength-1], s.cfg.passwordDwell)
	if err != nil {
		return false, err
	}

	return answer == scratchpadAuthAccept, nil
}

// powered sends last with the strong pull-up starting right after it, holds
// the pull-up for dwell and returns the byte the device answers with.
func (s *Scratchpad) powered(last byte, dwell time.Duration) (byte, error) {
	a := s.id.Adapter()
	if err := sendPowered(a, last, dwell); err != nil {
		return 0, err
	}

	b, err := a.GetByte()
	if err != nil {
		return 0, transport("confirmation byte", err)
	}

	return b, nil
}

// sendPowered writes last with the strong pull-up armed to start after it,
// holds the pull-up for dwell and returns the line to normal.
func sendPowered(a bus.Adapter, last byte, dwell time.Duration) error {
	// the host ends the pull-up itself after dwell
	if err := a.SetPowerDuration(bus.DeliveryInfinite); err != nil {
		return transport("power duration", err)
	}
	ok, err := a.StartPowerDelivery(bus.ConditionAfterByte)
	if err != nil {
		return transport("start power delivery", err)
	}
	if !ok {
		return fmt.Errorf("%w: adapter refused power delivery", ErrPowerUnavailable)
	}

	err = a.PutByte(last)
	if err == nil {
		pool.Sleep(dwell)
	}
	if perr := a.SetPowerNormal(); err == nil {
		err = perr
	}
	if err != nil {
		return transport("powered byte", err)
	}

	return nil
}

// padPassword returns secret zero padded or truncated to PasswordLength.
func padPassword(secret []byte) []byte {
	pw := make([]byte, PasswordLength)
	copy(pw, secret)

	return pw
}
