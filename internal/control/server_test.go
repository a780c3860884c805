package control

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dokzlo13/softboxd/internal/command"
	"github.com/dokzlo13/softboxd/internal/device"
	"github.com/dokzlo13/softboxd/internal/strip"
)

type fakeButton struct {
	presses []string
}

func (b *fakeButton) Press(source string) bool {
	b.presses = append(b.presses, source)
	return true
}

func newTestServer(t *testing.T, cfg Config) (*Server, *device.Controller, *fakeButton) {
	t.Helper()
	ctl := device.NewController(strip.NewAdapter(strip.NewMemoryDriver(1)), device.Options{
		Name:    "softbox",
		Version: "test",
		Seed:    1,
		Initial: device.DefaultState(),
	})
	btn := &fakeButton{}
	s := NewServer(cfg, ctl, command.NewNormalizer(ctl, nil), btn)
	ctl.Subscribe(s.Hub().Notify)
	return s, ctl, btn
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestControlWrite(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"static color", "/control", `{"power":true,"brightness":128,"r":10,"g":20,"b":30}`, http.StatusOK, `{"accepted":52}`},
		{"yaml flow", "/control", `{power: 1}`, http.StatusOK, `{"accepted":10}`},
		{"empty", "/control", ``, http.StatusBadRequest, `"error"`},
		{"not a map", "/control", `[1,2,3]`, http.StatusBadRequest, `"error"`},
		{"oversized", "/control", `{"r":1,"x":"` + strings.Repeat("a", 600) + `"}`, http.StatusRequestEntityTooLarge, `"error"`},
		{"mesh effect", "/mesh", `{"effect":1}`, http.StatusOK, `{"accepted":12}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newTestServer(t, Config{})
			rec := do(t, s.Handler(), http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want %s", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestStatusAfterWrite(t *testing.T) {
	s, _, _ := newTestServer(t, Config{})
	h := s.Handler()

	do(t, h, http.MethodPost, "/control", `{"power":true,"brightness":128,"r":10,"g":20,"b":30}`)
	rec := do(t, h, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var st command.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if !st.Power || st.Brightness != 128 || st.Color.R != 10 || st.Color.G != 20 || st.Color.B != 30 {
		t.Errorf("status = %+v", st)
	}
	if len(st.Pixels) != command.StatusPixels || st.Pixels[0].R != 5 || st.Pixels[0].G != 10 || st.Pixels[0].B != 15 {
		t.Errorf("pixels = %+v", st.Pixels)
	}
}

func TestInfo(t *testing.T) {
	s, _, _ := newTestServer(t, Config{})
	rec := do(t, s.Handler(), http.MethodGet, "/info", "")

	var info device.Info
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info.Device != "softbox" || info.Pixels != strip.NumPixels || info.Effects != 13 {
		t.Errorf("info = %+v", info)
	}
}

func TestRateLimit(t *testing.T) {
	s, _, _ := newTestServer(t, Config{RateLimit: 0.001, Burst: 2})
	h := s.Handler()

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = do(t, h, http.MethodPost, "/control", `{"power":true}`).Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}

	// Reads are not limited.
	if code := do(t, h, http.MethodGet, "/status", "").Code; code != http.StatusOK {
		t.Errorf("status read = %d", code)
	}
}

func TestButtonEndpoint(t *testing.T) {
	s, _, btn := newTestServer(t, Config{})
	rec := do(t, s.Handler(), http.MethodPost, "/button", "")
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d", rec.Code)
	}
	if len(btn.presses) != 1 || btn.presses[0] != "http" {
		t.Errorf("presses = %v", btn.presses)
	}
}

func TestUnknownRoute(t *testing.T) {
	s, _, _ := newTestServer(t, Config{})
	if code := do(t, s.Handler(), http.MethodGet, "/control", "").Code; code != http.StatusMethodNotAllowed {
		t.Errorf("GET /control = %d", code)
	}
	if code := do(t, s.Handler(), http.MethodGet, "/nope", "").Code; code != http.StatusNotFound {
		t.Errorf("GET /nope = %d", code)
	}
}

func readStatus(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(msg, &m); err != nil {
		t.Fatalf("decode %s: %v", msg, err)
	}
	return m
}

func TestWebSocketNotifications(t *testing.T) {
	s, _, _ := newTestServer(t, Config{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	initial := readStatus(t, conn)
	if initial["power"] != true || initial["brightness"] != float64(128) {
		t.Errorf("initial = %v", initial)
	}

	resp, err := http.Post(ts.URL+"/control", "application/json", strings.NewReader(`{"brightness":64}`))
	if err != nil {
		t.Fatal(err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if got := readStatus(t, conn); got["brightness"] != float64(64) {
		t.Errorf("after POST = %v", got)
	}

	// Frames written by the client are control writes.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"power":false}`)); err != nil {
		t.Fatal(err)
	}
	if got := readStatus(t, conn); got["power"] != false {
		t.Errorf("after ws write = %v", got)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`[1]`)); err != nil {
		t.Fatal(err)
	}
	if got := readStatus(t, conn); got["error"] == nil {
		t.Errorf("rejected write = %v", got)
	}
}
