package serial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sendAndRead(t *testing.T, m *MockPort, cmd string) string {
	t.Helper()
	_, err := m.Write([]byte(cmd + "\n"))
	require.NoError(t, err)

	buf := make([]byte, 256)
	n, err := m.Read(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func TestMockPortIoTSensorCommandTable(t *testing.T) {
	m := NewMockPort(DeviceIoTSensor)
	defer m.Close()

	assert.Equal(t, "STATUS:OK\r\n", sendAndRead(t, m, "STATUS?"))
	assert.Equal(t, "VERSION:1.0.0\r\n", sendAndRead(t, m, "VERSION?"))
	assert.Equal(t, "ID:IOT-SENSOR-001\r\n", sendAndRead(t, m, "ID?"))
	assert.Equal(t, "TEMP:23.45\r\n", sendAndRead(t, m, "TEMP?"))
	assert.Equal(t, "HUMIDITY:58.2\r\n", sendAndRead(t, m, "HUMIDITY?"))
	assert.Equal(t, "COMMANDS: STATUS, VERSION, ID, TEMP, HUMIDITY, HELP\r\n", sendAndRead(t, m, "HELP?"))
	assert.Equal(t, "ERROR:UNKNOWN_COMMAND:FOO\r\n", sendAndRead(t, m, "foo"))
}

func TestMockPortEmbeddedMCUCommandTable(t *testing.T) {
	m := NewMockPort(DeviceEmbeddedMCU)
	defer m.Close()

	assert.Equal(t, "OK\r\n", sendAndRead(t, m, "STATUS?"))
	assert.Equal(t, "MCU v2.1.0\r\n", sendAndRead(t, m, "VERSION?"))
	assert.Equal(t, "ARDUINO-MEGA-2560\r\n", sendAndRead(t, m, "ID?"))
	assert.Equal(t, "ADC0:512,ADC1:768,ADC2:256\r\n", sendAndRead(t, m, "READ?"))
	assert.Equal(t, "RESETTING...\r\nOK\r\n", sendAndRead(t, m, "RESET"))
}

func TestMockPortIndustrialPLCCommandTable(t *testing.T) {
	m := NewMockPort(DeviceIndustrialPLC)
	defer m.Close()

	assert.Equal(t, "PLC:RUNNING,MODE:AUTO\r\n", sendAndRead(t, m, "STATUS?"))
	assert.Equal(t, "PLC-5000 v3.2.1\r\n", sendAndRead(t, m, "VERSION?"))
	assert.Equal(t, "PLC-5000-SN:98765\r\n", sendAndRead(t, m, "ID?"))
	assert.Equal(t, "PRESSURE:105.3 PSI\r\n", sendAndRead(t, m, "PRESSURE?"))
	assert.Equal(t, "SYSTEM:STOPPED\r\n", sendAndRead(t, m, "STOP"))
	assert.Equal(t, "SYSTEM:STARTED\r\n", sendAndRead(t, m, "START"))
	assert.Equal(t, "ERR:INVALID_CMD:FOO\r\n", sendAndRead(t, m, "foo"))
}

func TestMockPortIndustrialPLCEmitsTelemetry(t *testing.T) {
	m := NewMockPort(DeviceIndustrialPLC)
	defer m.Close()

	buf := make([]byte, 256)
	n, err := m.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "PRESSURE:")
	assert.Contains(t, string(buf[:n]), "CYCLE:")
}

func TestMockPortCommandsAreCaseInsensitive(t *testing.T) {
	m := NewMockPort(DeviceEmbeddedMCU)
	defer m.Close()

	assert.Equal(t, "OK\r\n", sendAndRead(t, m, "status?"))
}

func TestMockPortReadBlocksUntilDataOrClose(t *testing.T) {
	m := NewMockPort(DeviceGeneric)

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 8)
		n, err := m.Read(buf)
		assert.Equal(t, 0, n)
		assert.Error(t, err)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, m.Close())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Read did not unblock on Close")
	}
}

func TestMockPortWriteAfterCloseFails(t *testing.T) {
	m := NewMockPort(DeviceGeneric)
	require.NoError(t, m.Close())

	_, err := m.Write([]byte("STATUS?\n"))
	assert.Error(t, err)
}

func TestMockPortRespondIgnoresBlankLines(t *testing.T) {
	m := NewMockPort(DeviceGeneric)
	defer m.Close()

	_, err := m.Write([]byte("\n\nSTATUS?\n"))
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := m.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("OK\r\n"), buf[:n])
}
