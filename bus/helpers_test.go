package bus

import (
	"github.com/stretchr/testify/mock"
)

// mockAdapter is a testify mock of Adapter.
type mockAdapter struct {
	mock.Mock
}

var _ Adapter = (*mockAdapter)(nil)

func (m *mockAdapter) Select(addr Address) (bool, error) {
	args := m.Called(addr)
	return args.Bool(0), args.Error(1)
}

func (m *mockAdapter) Reset() (ResetResult, error) {
	args := m.Called()
	return args.Get(0).(ResetResult), args.Error(1)
}

func (m *mockAdapter) DataBlock(buf []byte) error {
	return m.Called(buf).Error(0)
}

func (m *mockAdapter) PutByte(b byte) error {
	return m.Called(b).Error(0)
}

func (m *mockAdapter) GetByte() (byte, error) {
	args := m.Called()
	return args.Get(0).(byte), args.Error(1)
}

func (m *mockAdapter) SetSpeed(s Speed) error {
	return m.Called(s).Error(0)
}

func (m *mockAdapter) Speed() Speed {
	return m.Called().Get(0).(Speed)
}

func (m *mockAdapter) CanDeliverPower() bool {
	return m.Called().Bool(0)
}

func (m *mockAdapter) CanProgram() bool {
	return m.Called().Bool(0)
}

func (m *mockAdapter) SetPowerDuration(d PowerDuration) error {
	return m.Called(d).Error(0)
}

func (m *mockAdapter) StartPowerDelivery(c Condition) (bool, error) {
	args := m.Called(c)
	return args.Bool(0), args.Error(1)
}

func (m *mockAdapter) SetPowerNormal() error {
	return m.Called().Error(0)
}

func (m *mockAdapter) SetProgramPulseDuration(d PowerDuration) error {
	return m.Called(d).Error(0)
}

func (m *mockAdapter) StartProgramPulse(c Condition) (bool, error) {
	args := m.Called(c)
	return args.Bool(0), args.Error(1)
}

// alarmAdapter adds AlarmChecker to mockAdapter.
type alarmAdapter struct {
	mockAdapter
}

func (m *alarmAdapter) IsAlarming(addr Address) (bool, error) {
	args := m.Called(addr)
	return args.Bool(0), args.Error(1)
}
