package memory

import (
	"fmt"

	"github.com/arloliu/go-onewire/bus"
)

// Application register commands.
const (
	AppRegWriteCommand    byte = 0x99
	AppRegReadCommand     byte = 0xC3
	AppRegCopyLockCommand byte = 0x5A
	AppRegStatusCommand   byte = 0x66

	// AppRegLocked is the status byte of a locked application register.
	AppRegLocked byte = 0xFC
)

// AppRegisterDescriptor describes the 8-byte application register.
var AppRegisterDescriptor = Descriptor{
	Description:          "Application register",
	Size:                 8,
	PageLength:           8,
	NumberPages:          1,
	MaxPacketDataLength:  8 - PacketOverhead,
	Capabilities:         CapGeneralPurpose | CapReadWrite | CapNonVolatile | CapPowerDelivery | CapExtraInfo,
	ExtraInfoLength:      1,
	ExtraInfoDescription: "Page Locked flag",
}

// AppRegister is a one page register that is written directly and made
// read-only for good with copy-and-lock.
type AppRegister struct {
	paged
}

var _ OTPMemoryBank = (*AppRegister)(nil)

// NewAppRegister creates the application register bank. A nil cfg uses the
// defaults.
func NewAppRegister(id bus.Identity, cfg *BankConfig) *AppRegister {
	cfg = defaultConfig(cfg)

	r := &AppRegister{}
	r.init(id, AppRegisterDescriptor, cfg, newSpeedPolicy(id, cfg))
	r.io = r

	return r
}

func (r *AppRegister) Read(addr int, cont bool, p []byte) error {
	if err := r.checkRange(addr, len(p)); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	r.metrics.incReadCount()

	return r.done(r.read(addr, cont, p))
}

func (r *AppRegister) read(addr int, cont bool, p []byte) error {
	var head []byte
	if !cont {
		if err := r.speed.begin(false); err != nil {
			return err
		}
		head = []byte{AppRegReadCommand, byte(addr)}
	}

	buf := append(head, ffBlock(len(p))...)
	if err := r.block(buf); err != nil {
		return err
	}
	copy(p, buf[len(head):])

	return nil
}

func (r *AppRegister) readPage(_ int, cont bool, p, extra []byte, _ bool) error {
	r.metrics.incReadCount()
	if err := r.read(0, cont, p); err != nil {
		return r.done(err)
	}
	if extra != nil {
		status, err := r.status()
		if err != nil {
			return r.done(err)
		}
		extra[0] = status
	}

	return nil
}

func (r *AppRegister) status() (byte, error) {
	if err := r.speed.begin(false); err != nil {
		return 0, err
	}

	buf := []byte{AppRegStatusCommand, 0x00, 0xFF}
	if err := r.block(buf); err != nil {
		return 0, err
	}

	return buf[2], nil
}

func (r *AppRegister) Write(addr int, p []byte) error {
	if err := r.checkWrite(addr, p); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	r.metrics.incWriteCount()

	return r.done(r.write(addr, p))
}

func (r *AppRegister) write(addr int, p []byte) error {
	status, err := r.status()
	if err != nil {
		return err
	}
	if status == AppRegLocked {
		return fmt.Errorf("%w: application register is locked", ErrVerification)
	}

	if err := r.speed.selectDevice(); err != nil {
		return err
	}
	buf := append([]byte{AppRegWriteCommand, byte(addr)}, p...)
	if err := r.block(buf); err != nil {
		return err
	}

	if !r.WriteVerification() {
		return nil
	}
	got := make([]byte, len(p))
	if err := r.read(addr, false, got); err != nil {
		return err
	}

	return r.compare(addr, p, got)
}

func (r *AppRegister) CanLockPage() bool { return true }

func (r *AppRegister) CanRedirectPage() bool { return false }

func (r *AppRegister) CanLockRedirectPage() bool { return false }

// LockPage copies the register into its read-only cells. It cannot be undone.
func (r *AppRegister) LockPage(page int) error {
	if err := r.checkPage(page); err != nil {
		return err
	}
	if err := r.checkPower(); err != nil {
		return err
	}

	err := r.lock()
	if err == nil {
		var status byte
		status, err = r.status()
		if err == nil && status != AppRegLocked {
			err = fmt.Errorf("%w: application register did not lock", ErrVerification)
		}
	}
	if err != nil {
		return r.done(err)
	}
	r.logger.Info("memory: application register locked")

	return nil
}

func (r *AppRegister) lock() error {
	if err := r.speed.begin(false); err != nil {
		return err
	}
	if err := r.adapter().PutByte(AppRegCopyLockCommand); err != nil {
		return transport("copy and lock", err)
	}

	return sendPowered(r.adapter(), ScratchpadValidationKey, r.cfg.copyDwell)
}

func (r *AppRegister) IsPageLocked(page int) (bool, error) {
	if err := r.checkPage(page); err != nil {
		return false, err
	}
	status, err := r.status()

	return status == AppRegLocked, r.done(err)
}

func (r *AppRegister) RedirectPage(int, int) error {
	return fmt.Errorf("%w: application register cannot redirect pages", ErrCapability)
}

func (r *AppRegister) RedirectedPage(int) (int, error) { return 0, nil }

func (r *AppRegister) LockRedirectPage(int) error {
	return fmt.Errorf("%w: application register cannot redirect pages", ErrCapability)
}

func (r *AppRegister) IsRedirectPageLocked(int) (bool, error) { return false, nil }
