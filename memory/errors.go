package memory

import (
	"errors"
	"fmt"
)

var (
	// ErrRange indicates an address or length outside the bank.
	ErrRange = errors.New("memory: address out of range")

	// ErrCapability indicates an operation the bank does not support.
	ErrCapability = errors.New("memory: operation not supported")

	// ErrFormat indicates a packet length inconsistent with the page capacity.
	ErrFormat = errors.New("memory: invalid packet format")

	// ErrIntegrity indicates a CRC8 or CRC16 mismatch.
	ErrIntegrity = errors.New("memory: CRC mismatch")

	// ErrVerification indicates that a read-back did not match what was written.
	ErrVerification = errors.New("memory: verification failed")

	// ErrAuthentication indicates that the device rejected a password.
	ErrAuthentication = errors.New("memory: password rejected")

	// ErrCommit indicates that the device reported a failed scratchpad copy.
	ErrCommit = errors.New("memory: scratchpad copy failed")

	// ErrCommunication indicates a select or presence failure on the bus.
	ErrCommunication = errors.New("memory: device not responding")

	// ErrPowerUnavailable indicates that the adapter lacks a required power feature.
	ErrPowerUnavailable = errors.New("memory: power feature unavailable")

	// ErrStaleState indicates a control state write whose version is no
	// longer current. It is a verification failure.
	ErrStaleState = fmt.Errorf("%w: stale control state", ErrVerification)
)

// renegotiates reports whether err must clear the cached speed state.
func renegotiates(err error) bool {
	return errors.Is(err, ErrVerification) ||
		errors.Is(err, ErrIntegrity) ||
		errors.Is(err, ErrCommunication) ||
		errors.Is(err, ErrCommit)
}
