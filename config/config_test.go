package config

import (
	"testing"

	"github.com/serialmux/serialmux/internal/serial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConnection(name string) SerialConnectionConfig {
	return SerialConnectionConfig{
		Name:        name,
		Port:        "/dev/pts/3",
		BaudRate:    9600,
		DataBits:    8,
		StopBits:    1,
		Parity:      "none",
		FlowControl: "none",
		Enabled:     true,
		Logging:     ConnectionLogConfig{Enabled: false},
	}
}

func TestSerialConnectionToPortConfig(t *testing.T) {
	conn := validConnection("a")
	conn.FlowControl = "hardware"

	pc, err := conn.ToPortConfig()
	require.NoError(t, err)

	assert.Equal(t, serial.PortConfig{
		Name:        "a",
		DevicePath:  "/dev/pts/3",
		BaudRate:    9600,
		DataBits:    8,
		StopBits:    serial.StopBits1,
		Parity:      serial.ParityNone,
		FlowControl: serial.FlowControlHardware,
		Enabled:     true,
	}, pc)
}

func TestSerialConnectionToPortConfigInvalidParity(t *testing.T) {
	conn := validConnection("a")
	conn.Parity = "invalid"

	_, err := conn.ToPortConfig()
	assert.Error(t, err)
}

func TestDefaultConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidateConfigLoad(t *testing.T) {
	cfg := &Config{
		Server:            ServerConfig{Host: "0.0.0.0", Port: 8080},
		SerialConnections: []SerialConnectionConfig{validConnection("a")},
	}
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsDuplicateName(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Port: 8080},
		SerialConnections: []SerialConnectionConfig{
			validConnection("dup"),
			validConnection("dup"),
		},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Duplicate connection name")
}

func TestValidateRejectsZeroServerPort(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Port: 0},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Server port must be greater than 0")
}

func TestValidateSkipsDisabledConnections(t *testing.T) {
	conn := validConnection("disabled")
	conn.Enabled = false
	conn.Parity = "not-a-real-parity"

	cfg := &Config{
		Server:            ServerConfig{Port: 8080},
		SerialConnections: []SerialConnectionConfig{conn},
	}

	assert.NoError(t, cfg.Validate())
}
