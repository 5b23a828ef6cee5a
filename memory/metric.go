package memory

import (
	"errors"
	"sync/atomic"
)

// BankMetrics contains atomic counters for the banks of a device.
// Metrics can be used as the value of a prometheus CounterFunc.
type BankMetrics struct {
	// ReadCount indicates the number of bank read operations.
	ReadCount atomic.Uint64
	// WriteCount indicates the number of bank write operations.
	WriteCount atomic.Uint64

	// CommitCount indicates the number of committed scratchpad transactions.
	CommitCount atomic.Uint64
	// AbortCount indicates the number of aborted scratchpad transactions.
	AbortCount atomic.Uint64

	// IntegrityErrCount indicates the number of CRC failures.
	IntegrityErrCount atomic.Uint64
	// VerificationErrCount indicates the number of read-back mismatches.
	VerificationErrCount atomic.Uint64
	// AuthErrCount indicates the number of rejected passwords.
	AuthErrCount atomic.Uint64
	// CommErrCount indicates the number of select and presence failures.
	CommErrCount atomic.Uint64

	// SpeedCheckCount indicates the number of speed negotiations.
	SpeedCheckCount atomic.Uint64
	// BusyPollCount indicates the number of busy status re-reads.
	BusyPollCount atomic.Uint64
}

func (m *BankMetrics) incReadCount() {
	m.ReadCount.Add(1)
}

func (m *BankMetrics) incWriteCount() {
	m.WriteCount.Add(1)
}

func (m *BankMetrics) incCommitCount() {
	m.CommitCount.Add(1)
}

func (m *BankMetrics) incAbortCount() {
	m.AbortCount.Add(1)
}

func (m *BankMetrics) incSpeedCheckCount() {
	m.SpeedCheckCount.Add(1)
}

func (m *BankMetrics) incBusyPollCount() {
	m.BusyPollCount.Add(1)
}

// countErr increments the counter matching err.
func (m *BankMetrics) countErr(err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrIntegrity):
		m.IntegrityErrCount.Add(1)
	case errors.Is(err, ErrVerification), errors.Is(err, ErrCommit):
		m.VerificationErrCount.Add(1)
	case errors.Is(err, ErrAuthentication):
		m.AuthErrCount.Add(1)
	case errors.Is(err, ErrCommunication):
		m.CommErrCount.Add(1)
	}
}
