package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-onewire/bus"
	"github.com/arloliu/go-onewire/device"
	"github.com/arloliu/go-onewire/internal/store"
	"github.com/arloliu/go-onewire/logger"
	"github.com/arloliu/go-onewire/memory"
	"github.com/arloliu/go-onewire/sim"
)

func run(t *testing.T, storePath string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--store", storePath, "--log-level", "error"}, args...))

	err := cmd.Execute()

	return out.String(), err
}

func newStorePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "owmem.db")
}

func TestSimAddListRemove(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	path := newStorePath(t)
	addr := bus.NewAddress(sim.FamilyDS2431, 1)

	out, err := run(t, path, "sim", "add", "DS2431")
	require.NoError(err)
	assert.Equal(addr.String()+" DS2431\n", out)

	_, err = run(t, path, "sim", "add", "0x2d", "1")
	require.Error(err)
	assert.Contains(err.Error(), "already exists")

	out, err = run(t, path, "sim", "add", "DS1982", "0x10")
	require.NoError(err)
	assert.Equal(bus.NewAddress(sim.FamilyDS2502, 0x10).String()+" DS2502\n", out)

	out, err = run(t, path, "list")
	require.NoError(err)
	assert.Contains(out, addr.String()+" DS2431")
	assert.Contains(out, "DS2502")
	assert.Contains(out, "  0: ")
	assert.Contains(out, "  1: ")

	_, err = run(t, path, "sim", "remove", addr.String())
	require.NoError(err)

	out, err = run(t, path, "list")
	require.NoError(err)
	assert.NotContains(out, addr.String())

	_, err = run(t, path, "sim", "remove", addr.String())
	require.Error(err)
}

func TestSimAdd_UnknownFamily(t *testing.T) {
	path := newStorePath(t)

	_, err := run(t, path, "sim", "add", "DS9999")
	require.ErrorIs(t, err, device.ErrUnknownFamily)

	_, err = run(t, path, "sim", "add", "DS2431", "0x1000000000000")
	require.Error(t, err)
}

func TestWriteRead(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	path := newStorePath(t)
	addr := bus.NewAddress(sim.FamilyDS2431, 1).String()
	_, err := run(t, path, "sim", "add", "DS2431")
	require.NoError(err)

	_, err = run(t, path, "write", addr, "0", "0", "01020304")
	require.NoError(err)

	out, err := run(t, path, "read", addr, "0", "0")
	require.NoError(err)
	assert.Equal("01020304"+strings.Repeat("ff", 28)+"\n", out)

	out, err = run(t, path, "read", addr, "0")
	require.NoError(err)
	assert.Len(strings.TrimSpace(out), 2*128)

	_, err = run(t, path, "write", "--packet", addr, "0", "1", "hello")
	require.NoError(err)

	out, err = run(t, path, "read", "--packet", addr, "0", "1")
	require.NoError(err)
	assert.Equal("\"hello\"\n", out)

	out, err = run(t, path, "dump", addr)
	require.NoError(err)
	assert.Contains(out, "bank 0:")
	assert.Contains(out, "bank 1:")
}

func TestWriteRead_Errors(t *testing.T) {
	path := newStorePath(t)
	addr := bus.NewAddress(sim.FamilyDS2431, 1).String()
	_, err := run(t, path, "sim", "add", "DS2431")
	require.NoError(t, err)

	_, err = run(t, path, "write", addr, "0", "0", "zz")
	require.Error(t, err)

	_, err = run(t, path, "write", addr, "0", "126", "010203")
	require.ErrorIs(t, err, memory.ErrRange)

	_, err = run(t, path, "read", addr, "7")
	require.ErrorIs(t, err, memory.ErrRange)

	_, err = run(t, path, "read", "--crc", addr, "0")
	require.Error(t, err)

	_, err = run(t, path, "read", bus.NewAddress(sim.FamilyDS2431, 2).String(), "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no device")
}

func TestLock(t *testing.T) {
	require := require.New(t)

	path := newStorePath(t)
	addr := bus.NewAddress(sim.FamilyDS2502, 1).String()
	_, err := run(t, path, "sim", "add", "DS2502")
	require.NoError(err)

	_, err = run(t, path, "write", addr, "0", "0", "aa55")
	require.NoError(err)

	out, err := run(t, path, "read", "--crc", addr, "0", "0")
	require.NoError(err)
	require.True(strings.HasPrefix(out, "aa55ff"))

	_, err = run(t, path, "lock", addr, "0", "0")
	require.NoError(err)

	_, err = run(t, path, "write", addr, "0", "4", "00")
	require.ErrorIs(err, memory.ErrVerification)

	// a bank without page locks
	ds2430 := bus.NewAddress(sim.FamilyDS2430, 1).String()
	_, err = run(t, path, "sim", "add", "DS2430")
	require.NoError(err)
	_, err = run(t, path, "lock", ds2430, "0", "0")
	require.ErrorIs(err, memory.ErrCapability)
}

func TestPasswords(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	path := newStorePath(t)
	addr := bus.NewAddress(sim.FamilyDS1977, 1).String()
	_, err := run(t, path, "sim", "add", "DS1977")
	require.NoError(err)

	out, err := run(t, path, "password", "status", addr)
	require.NoError(err)
	assert.Contains(out, "enforced: false")

	// enabling needs every host password
	_, err = run(t, path, "password", "enable", addr)
	require.ErrorIs(err, memory.ErrAuthentication)

	_, err = run(t, path, "password", "set", addr, "rw", "0102030405060708")
	require.NoError(err)
	_, err = run(t, path, "password", "set", addr, "ro", "1112131415161718")
	require.NoError(err)
	_, err = run(t, path, "password", "enable", addr)
	require.NoError(err)

	out, err = run(t, path, "password", "status", addr)
	require.NoError(err)
	assert.Contains(out, "enforced: true")
	assert.Contains(out, "read-only: enabled=true host=true")
	assert.Contains(out, "read-write: enabled=true host=true")

	// the stored host passwords open the device in later invocations
	_, err = run(t, path, "write", "--packet", addr, "0", "0", "secret")
	require.NoError(err)
	out, err = run(t, path, "read", "--packet", addr, "0", "0")
	require.NoError(err)
	assert.Equal("\"secret\"\n", out)

	_, err = run(t, path, "password", "host", addr, "ro")
	require.NoError(err)
	_, err = run(t, path, "password", "host", addr, "rw", "ffffffffffffffff")
	require.NoError(err)
	_, err = run(t, path, "read", addr, "0", "0")
	require.ErrorIs(err, memory.ErrAuthentication)

	_, err = run(t, path, "password", "host", addr, "rw", "0102030405060708")
	require.NoError(err)
	_, err = run(t, path, "password", "disable", addr)
	require.NoError(err)

	st, err := store.Open(path)
	require.NoError(err)
	defer st.Close()
	a, err := bus.ParseAddress(addr)
	require.NoError(err)
	pw, err := st.Passwords(a)
	require.NoError(err)
	assert.Nil(pw.ReadOnly)
	assert.Equal([]byte{1, 2, 3, 4, 5, 6, 7, 8}, pw.ReadWrite)
}

func TestPasswords_Errors(t *testing.T) {
	path := newStorePath(t)
	addr := bus.NewAddress(sim.FamilyDS2431, 1).String()
	_, err := run(t, path, "sim", "add", "DS2431")
	require.NoError(t, err)

	_, err = run(t, path, "password", "status", addr)
	require.ErrorIs(t, err, memory.ErrCapability)

	_, err = run(t, path, "password", "set", addr, "xx", "0102030405060708")
	require.Error(t, err)

	_, err = run(t, path, "password", "set", addr, "rw", "0102")
	require.Error(t, err)
}

func TestConfig(t *testing.T) {
	t.Setenv(envStore, "/tmp/devices.db")
	t.Setenv(envLogLevel, "debug")
	t.Setenv(envVerify, "false")

	cfg := loadConfig()
	assert.Equal(t, "/tmp/devices.db", cfg.storePath)
	assert.Equal(t, "debug", cfg.logLevel)
	assert.False(t, cfg.verify)

	lvl, err := parseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, logger.WarnLevel, lvl)

	_, err = parseLevel("loud")
	require.Error(t, err)

	_, err = run(t, newStorePath(t), "--log-level", "loud", "list")
	require.Error(t, err)
}
