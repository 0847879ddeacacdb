package serial

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.New(os.Stderr)
}

func mockOpener(kind deviceKind) Opener {
	return func(cfg PortConfig) (Porter, error) {
		return NewMockPort(kind), nil
	}
}

func validConfig(name string) PortConfig {
	return PortConfig{
		Name:       name,
		DevicePath: "/dev/mock0",
		BaudRate:   9600,
		DataBits:   8,
		StopBits:   StopBits1,
		Parity:     ParityNone,
		Enabled:    true,
	}
}

func TestSessionSendIsReceivedByDevice(t *testing.T) {
	s, err := Open(validConfig("a"), mockOpener(DeviceGeneric), testLogger())
	require.NoError(t, err)
	defer s.Stop()

	sub := s.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Send(ctx, []byte("STATUS?\n")))

	data, lag, ok := sub.Recv(ctx)
	require.True(t, ok)
	require.Nil(t, lag)
	assert.Equal(t, []byte("OK\r\n"), data)

	stats := s.Stats()
	assert.Equal(t, uint64(len("STATUS?\n")), stats.BytesSent)
	assert.True(t, stats.IsConnected)
}

func TestSessionStopClosesDeviceAndMarksDisconnected(t *testing.T) {
	s, err := Open(validConfig("b"), mockOpener(DeviceGeneric), testLogger())
	require.NoError(t, err)

	s.Stop()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session did not shut down")
	}

	assert.False(t, s.Stats().IsConnected)
}

func TestSessionSendAfterStopFails(t *testing.T) {
	s, err := Open(validConfig("c"), mockOpener(DeviceGeneric), testLogger())
	require.NoError(t, err)

	s.Stop()
	<-s.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err = s.Send(ctx, []byte("x"))
	assert.Error(t, err)
}

func TestSessionWritesAuditLog(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "a.log")

	cfg := validConfig("logged")
	cfg.LoggingEnabled = true
	cfg.LoggingPath = logPath

	s, err := Open(cfg, mockOpener(DeviceGeneric), testLogger())
	require.NoError(t, err)
	defer s.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Send(ctx, []byte("VERSION?\n")))

	time.Sleep(50 * time.Millisecond)

	contents, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "TX")
	assert.Contains(t, string(contents), "9 bytes")
}

func TestSessionDeviceEOFTerminatesSession(t *testing.T) {
	s, err := Open(validConfig("d"), mockOpener(DeviceGeneric), testLogger())
	require.NoError(t, err)

	mock := s.port.(*MockPort)
	mock.Close()

	select {
	case <-s.readerDone:
	case <-time.After(time.Second):
		t.Fatal("reader did not exit on EOF")
	}
	assert.False(t, s.Stats().IsConnected)

	s.Stop()
	<-s.Done()
}
