// Package portal serves the captive configuration form used to provision the
// network name.
package portal

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/softboxd/internal/netconfig"
)

const maxFormBytes = 1024

var (
	indexPage = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html><head>
<title>Softbox Configuration</title>
<meta name="viewport" content="width=device-width, initial-scale=1">
</head><body>
<h1>Softbox Setup</h1>
<p>{{.Device}} {{.Version}}</p>
<p>Configure your mesh lighting network name below.</p>
<form action="/config" method="POST">
<label for="network">Network Name:</label>
<input type="text" id="network" name="network" placeholder="Living Room" maxlength="{{.MaxLen}}" required>
<input type="submit" value="Save Configuration">
</form>
</body></html>
`))

	successPage = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html><head>
<title>Softbox Configuration</title>
<meta http-equiv="refresh" content="5;url=/">
</head><body>
<h1>Configuration Saved</h1>
<p>The device will now join the network.</p>
<p><strong>Network:</strong> {{.}}</p>
</body></html>
`))
)

// Server is the captive configuration HTTP server. It is started when the device
// enters configuration mode and stopped before leaving it.
type Server struct {
	addr    string
	device  string
	version string

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	submitted  string
	done       chan struct{}
}

// NewServer creates a portal listening on host:port.
func NewServer(host string, port int, device, version string) *Server {
	return &Server{
		addr:    fmt.Sprintf("%s:%d", host, port),
		device:  device,
		version: version,
	}
}

// Handler returns the portal's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	return mux
}

// Start listens and serves in the background. Any earlier submission is discarded.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.submitted = ""
	s.listener = ln
	s.httpServer = &http.Server{Handler: s.Handler()}
	s.done = make(chan struct{})

	srv, done := s.httpServer, s.done
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Configuration portal error")
		}
	}()

	log.Info().Str("addr", ln.Addr().String()).Msg("Configuration portal started")
	return nil
}

// Addr returns the bound address while the server runs.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down and releases the socket.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.httpServer, s.done
	s.httpServer, s.listener, s.done = nil, nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	<-done
	log.Info().Msg("Configuration portal stopped")
	return err
}

// Submitted returns the accepted network name, if any.
func (s *Server) Submitted() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitted, s.submitted != ""
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/":
		s.handleIndex(w)
	case r.Method == http.MethodPost && r.URL.Path == "/config":
		s.handleConfig(w, r)
	default:
		http.Error(w, "404 Not Found", http.StatusNotFound)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := indexPage.Execute(w, map[string]any{
		"Device":  s.device,
		"Version": s.version,
		"MaxLen":  netconfig.MaxNameLength,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to render portal page")
	}
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxFormBytes))
	if err != nil || len(body) == 0 {
		http.Error(w, "Missing form data", http.StatusBadRequest)
		return
	}

	form, err := url.ParseQuery(string(body))
	if err != nil || !form.Has("network") {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	name := truncateName(strings.TrimSpace(form.Get("network")))
	if err := netconfig.ValidateName(name); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.submitted = name
	s.mu.Unlock()

	log.Info().Str("network", name).Msg("Configuration received")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := successPage.Execute(w, name); err != nil {
		log.Error().Err(err).Msg("Failed to render portal page")
	}
}

// truncateName cuts name to at most MaxNameLength bytes without splitting a rune.
func truncateName(name string) string {
	if len(name) <= netconfig.MaxNameLength {
		return name
	}
	n := netconfig.MaxNameLength
	for n > 0 && !utf8.RuneStart(name[n]) {
		n--
	}
	return strings.TrimSpace(name[:n])
}
