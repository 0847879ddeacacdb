package api

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/serialmux/serialmux/internal/serial"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebsocket upgrades the request and hands off to a bridge pairing
// the socket with the named session's broadcast (spec.md §4.3). If the
// session does not exist, a single text error frame is sent before closing.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	session := s.registry.Get(name)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	if session == nil {
		conn.WriteMessage(websocket.TextMessage, []byte("connection not found: "+name))
		conn.Close()
		return
	}

	runBridge(conn, session, s.logger)
}

// runBridge runs the outbound and inbound halves and waits for either to
// exit, then tears the whole bridge down. Whichever side exits first
// aborts the other (spec.md §4.3: "the socket is closed").
func runBridge(conn *websocket.Conn, session *serial.Session, logger *log.Logger) {
	sub := session.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{}, 2)

	go func() {
		defer func() { done <- struct{}{} }()
		outbound(ctx, conn, sub)
	}()
	go func() {
		defer func() { done <- struct{}{} }()
		inbound(ctx, conn, session)
	}()

	<-done
	cancel()
	conn.Close()
}

// outbound forwards broadcast blocks to the client as binary frames. Lagged
// notices are dropped silently, never terminating the bridge.
func outbound(ctx context.Context, conn *websocket.Conn, sub *serial.Subscription) {
	for {
		data, lag, ok := sub.Recv(ctx)
		if !ok {
			return
		}
		if lag != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			return
		}
	}
}

// inbound forwards client frames into the session's write mailbox. Binary
// frames forward verbatim; text frames forward their UTF-8 bytes. A close
// frame, read error, or send-to-session error ends the loop.
func inbound(ctx context.Context, conn *websocket.Conn, session *serial.Session) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		switch msgType {
		case websocket.BinaryMessage, websocket.TextMessage:
			if err := session.Send(ctx, data); err != nil {
				return
			}
		case websocket.CloseMessage:
			return
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
