package channels

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/vigilcell/vigil/internal/bus"
)

// webOut is the output channel drained by the web front-end's poll endpoint.
const webOut = bus.Prefix + ":web:out"

// Web exposes the queue over a small JSON API: POST /api/chat enqueues a
// message, GET /api/poll drains pending replies.
type Web struct {
	addr  string
	queue *bus.Queue
}

// NewWeb creates the web bridge listening on addr.
func NewWeb(addr string, queue *bus.Queue) *Web {
	return &Web{addr: addr, queue: queue}
}

// Handler returns the bridge's HTTP handler.
func (w *Web) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", w.handleChat)
	mux.HandleFunc("/api/poll", w.handlePoll)
	mux.HandleFunc("/", w.handleIndex)
	return mux
}

// Run serves the API until the context is cancelled.
func (w *Web) Run(ctx context.Context) {
	srv := &http.Server{Addr: w.addr, Handler: w.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Web bridge listening", "addr", w.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Web bridge failed", "error", err)
	}
}

func (w *Web) handleChat(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Content   string `json:"content"`
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		http.Error(rw, "content required", http.StatusBadRequest)
		return
	}

	env := bus.Envelope{Source: "web", Content: req.Content, SessionID: req.SessionID}
	if err := w.queue.PushJSON(bus.Inbox, env); err != nil {
		slog.Error("Web inbound push failed", "error", err)
		http.Error(rw, "queue unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(rw, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (w *Web) handlePoll(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	messages := []string{}
	for {
		msg, err := w.queue.Pop(r.Context(), webOut, 0)
		if errors.Is(err, bus.ErrEmpty) {
			break
		}
		if err != nil {
			slog.Error("Web outbound pop failed", "error", err)
			break
		}
		messages = append(messages, msg)
	}
	writeJSON(rw, http.StatusOK, map[string]any{"messages": messages})
}

func (w *Web) handleIndex(rw http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(rw, r)
		return
	}
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	rw.Write([]byte(indexPage))
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(v)
}

const indexPage = `<!doctype html>
<html>
<head><title>vigil</title></head>
<body>
<h1>vigil</h1>
<p>POST /api/chat {"content": "..."} &mdash; GET /api/poll</p>
</body>
</html>
`
