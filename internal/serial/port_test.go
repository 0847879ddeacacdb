package serial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.bug.st/serial"
)

func TestSerialModeMapsStopBitsToNamedConstants(t *testing.T) {
	cfg := PortConfig{BaudRate: 9600, DataBits: 8, StopBits: StopBits1}
	assert.Equal(t, serial.OneStopBit, cfg.SerialMode().StopBits)

	cfg.StopBits = StopBits2
	assert.Equal(t, serial.TwoStopBits, cfg.SerialMode().StopBits)
}

func TestSerialModeMapsParity(t *testing.T) {
	cfg := PortConfig{BaudRate: 9600, DataBits: 8, StopBits: StopBits1, Parity: ParityOdd}
	assert.Equal(t, serial.OddParity, cfg.SerialMode().Parity)

	cfg.Parity = ParityEven
	assert.Equal(t, serial.EvenParity, cfg.SerialMode().Parity)

	cfg.Parity = ParityNone
	assert.Equal(t, serial.NoParity, cfg.SerialMode().Parity)
}
