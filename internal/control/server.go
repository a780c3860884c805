// Package control exposes the device's control surface over HTTP: the control and
// mesh-control writes, status and info reads, and a websocket that carries status
// notifications to subscribed clients.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/softboxd/internal/command"
	"github.com/dokzlo13/softboxd/internal/device"
)

// Device is the read side of the device controller.
type Device interface {
	Snapshot() device.Snapshot
	WithSnapshot(fn func(device.Snapshot))
	Info() device.Info
}

// Presser injects a button press.
type Presser interface {
	Press(source string) bool
}

// Config holds the server settings.
type Config struct {
	Host      string
	Port      int
	RateLimit float64 // requests per second across all write endpoints
	Burst     int
}

// Server is the control HTTP server.
type Server struct {
	addr    string
	dev     Device
	norm    *command.Normalizer
	button  Presser
	limiter *rate.Limiter
	hub     *Hub

	httpServer *http.Server
}

// NewServer creates a control server. button may be nil.
func NewServer(cfg Config, dev Device, norm *command.Normalizer, button Presser) *Server {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	s := &Server{
		addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		dev:     dev,
		norm:    norm,
		button:  button,
		limiter: rate.NewLimiter(limit, burst),
	}
	s.hub = newHub(s)
	return s
}

// Hub returns the websocket hub. Its Notify method is a device subscriber.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /control", s.limited(s.handleControl))
	mux.HandleFunc("POST /mesh", s.limited(s.handleMesh))
	mux.HandleFunc("POST /button", s.limited(s.handleButton))
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /info", s.handleInfo)
	mux.HandleFunc("GET /ws", s.hub.handleWebSocket)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []byte(`{"status":"healthy"}`))
	})
	return mux
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	log.Info().Str("addr", s.addr).Msg("Starting control server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.hub.closeAll()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Control server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) limited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}
		next(w, r)
	}
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	s.handleWrite(w, r, s.norm.HandleControl)
}

func (s *Server) handleMesh(w http.ResponseWriter, r *http.Request) {
	s.handleWrite(w, r, s.norm.HandleMesh)
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request, apply func([]byte) (int, device.Result, error)) {
	body, err := io.ReadAll(io.LimitReader(r.Body, command.MaxPayload+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	n, _, err := apply(body)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, command.ErrPayloadTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, fmt.Appendf(nil, `{"accepted":%d}`, n))
}

func (s *Server) handleButton(w http.ResponseWriter, r *http.Request) {
	if s.button == nil {
		writeError(w, http.StatusNotFound, errors.New("no button"))
		return
	}
	if !s.button.Press("http") {
		writeJSON(w, http.StatusOK, []byte(`{"pressed":false}`))
		return
	}
	writeJSON(w, http.StatusAccepted, []byte(`{"pressed":true}`))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	body, err := command.EncodeStatus(s.dev.Snapshot())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	body, err := command.EncodeInfo(s.dev.Info())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	body, _ := json.Marshal(map[string]string{"error": err.Error()})
	writeJSON(w, status, body)
}
