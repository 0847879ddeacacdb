package api

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// connectionListItem is the shape returned by GET /api/connections.
type connectionListItem struct {
	Name string `json:"name"`
}

// connectionInfo is the shape returned by GET /api/connections/{name}.
type connectionInfo struct {
	Name        string `json:"name"`
	Port        string `json:"port"`
	BaudRate    int    `json:"baud_rate"`
	DataBits    int    `json:"data_bits"`
	StopBits    int    `json:"stop_bits"`
	Parity      string `json:"parity"`
	Description string `json:"description"`
}

// sendRequest is the body of POST /api/connections/{name}/send.
type sendRequest struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

// statsResponse is the shape returned by GET /api/connections/{name}/stats.
type statsResponse struct {
	BytesReceived uint64  `json:"bytes_received"`
	BytesSent     uint64  `json:"bytes_sent"`
	IsConnected   bool    `json:"is_connected"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError renders every API-layer error the same way: HTTP 500 with a
// {"error": "..."} body. spec.md §7, §9 call this a deliberately preserved
// quirk, not a bug to fix.
func writeError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": message})
}

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	names := s.registry.List()
	items := make([]connectionListItem, 0, len(names))
	for _, name := range names {
		items = append(items, connectionListItem{Name: name})
	}
	writeJSON(w, http.StatusOK, items)
}

// handleGetConnection preserves the source's quirk: a missing connection
// returns HTTP 200 with a zero-valued body whose name echoes the request,
// not a 404 (spec.md §4.5, §9).
func (s *Server) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	session := s.registry.Get(name)
	if session == nil {
		writeJSON(w, http.StatusOK, connectionInfo{Name: name})
		return
	}

	cfg := session.Config
	writeJSON(w, http.StatusOK, connectionInfo{
		Name:        cfg.Name,
		Port:        cfg.DevicePath,
		BaudRate:    cfg.BaudRate,
		DataBits:    cfg.DataBits,
		StopBits:    int(cfg.StopBits),
		Parity:      cfg.Parity.String(),
		Description: cfg.Description,
	})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body")
		return
	}
	if req.Format == "" {
		req.Format = "text"
	}

	data, err := decodePayload(req.Data, req.Format)
	if err != nil {
		writeError(w, err.Error())
		return
	}

	session := s.registry.Get(name)
	if session == nil {
		writeError(w, "Connection not found: "+name)
		return
	}

	if err := session.Send(r.Context(), data); err != nil {
		writeError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, "Data sent")
}

// decodePayload decodes a send request body per format. Hex decoding
// ignores interspersed ASCII spaces (spec.md §4.5, §8).
func decodePayload(data, format string) ([]byte, error) {
	switch format {
	case "text":
		return []byte(data), nil
	case "hex":
		cleaned := strings.ReplaceAll(data, " ", "")
		decoded, err := hex.DecodeString(cleaned)
		if err != nil {
			return nil, fmt.Errorf("invalid hex payload: %w", err)
		}
		return decoded, nil
	case "base64":
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 payload: %w", err)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	session := s.registry.Get(name)
	if session == nil {
		writeError(w, "Connection not found: "+name)
		return
	}

	stats := session.Stats()
	writeJSON(w, http.StatusOK, statsResponse{
		BytesReceived: stats.BytesReceived,
		BytesSent:     stats.BytesSent,
		IsConnected:   stats.IsConnected,
		UptimeSeconds: time.Since(stats.StartTime).Seconds(),
	})
}
