package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/serialmux/serialmux/internal/serial"
)

func TestBridgeStreamsDeviceBytesToClient(t *testing.T) {
	s, registry := testServer(t)
	require.NoError(t, registry.Add(serial.PortConfig{
		Name: "a", DevicePath: "/dev/a", BaudRate: 9600, DataBits: 8, StopBits: serial.StopBits1, Enabled: true,
	}))

	httpSrv := httptest.NewServer(s.Handler())
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/api/connections/a/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("STATUS?\n")))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, msgType)
	require.Equal(t, []byte("OK\r\n"), data)
}

func TestBridgeUnknownConnectionSendsErrorAndCloses(t *testing.T) {
	s, _ := testServer(t)

	httpSrv := httptest.NewServer(s.Handler())
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/api/connections/nope/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, msgType)
	require.Contains(t, string(data), "connection not found")

	_, _, err = conn.ReadMessage()
	require.Error(t, err)
}
