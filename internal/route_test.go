package internal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	ctlAdmin "github.com/gdbrns/go-whatsapp-webhook-bridge/internal/admin"
	ctlDevice "github.com/gdbrns/go-whatsapp-webhook-bridge/internal/device"
	ctlIndex "github.com/gdbrns/go-whatsapp-webhook-bridge/internal/index"
	ctlMessage "github.com/gdbrns/go-whatsapp-webhook-bridge/internal/message"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/internal/webhook"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/auth"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/router"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/session"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/whatsapp"
)

const testJWTSecret = "route-test-secret"

type sendCall struct {
	chatID string
	text   string
}

type fakeSession struct {
	mu         sync.Mutex
	status     session.Status
	sendErr    error
	sends      []sendCall
	logouts    int
	reconnects int
}

func (s *fakeSession) Snapshot() session.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *fakeSession) SendText(_ context.Context, chatID string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, sendCall{chatID: chatID, text: text})
	return s.sendErr
}

func (s *fakeSession) Logout(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logouts++
	return nil
}

func (s *fakeSession) Reconnect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnects++
	return nil
}

func (s *fakeSession) sendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sends)
}

type fakeVersions struct {
	status pkgWhatsApp.VersionStatus
	err    error
	forced []bool
}

func (v *fakeVersions) Status() pkgWhatsApp.VersionStatus { return v.status }

func (v *fakeVersions) Refresh(_ context.Context, force bool) (pkgWhatsApp.VersionStatus, bool, error) {
	v.forced = append(v.forced, force)
	return v.status, v.err == nil, v.err
}

type fakeStats struct{ stats webhook.Stats }

func (f fakeStats) Stats() webhook.Stats { return f.stats }

func newTestApp(s *fakeSession, jwtSecret string) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: router.HttpErrorHandler})
	Routes(app, Controllers{
		Index:   ctlIndex.NewController(s),
		Device:  ctlDevice.NewController(s),
		Message: ctlMessage.NewController(s),
		Admin: ctlAdmin.NewController(
			&fakeVersions{status: pkgWhatsApp.VersionStatus{CurrentVersion: "2.3000.1"}},
			fakeStats{stats: webhook.Stats{Delivered: 3}},
		),
	}, jwtSecret)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method string, target string, body string, header map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test %s %s: %v", method, target, err)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func connectedSession() *fakeSession {
	return &fakeSession{status: session.Status{
		State:     session.StateConnected,
		Connected: true,
		Me:        "6281234567890@s.whatsapp.net",
		ChangedAt: time.Now(),
	}}
}

func TestSendMessageValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing chatId", `{"message":"hi"}`},
		{"missing message", `{"chatId":"6281234567890"}`},
		{"empty body", `{}`},
		{"blank chatId", `{"chatId":"  ","message":"hi"}`},
		{"malformed json", `{"chatId":`},
		{"invalid chat id", `{"chatId":"abc","message":"hi"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := connectedSession()
			app := newTestApp(s, "")

			resp, body := doRequest(t, app, http.MethodPost, "/sendMessage", tt.body, nil)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", resp.StatusCode, body)
			}
			var res router.Response
			if err := json.Unmarshal(body, &res); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if res.Error == "" {
				t.Fatalf("expected a descriptive error, got %s", body)
			}
			if n := s.sendCount(); n != 0 {
				t.Fatalf("send invoked %d times", n)
			}
		})
	}
}

func TestSendMessageSuccess(t *testing.T) {
	s := connectedSession()
	app := newTestApp(s, "")

	resp, body := doRequest(t, app, http.MethodPost, "/sendMessage", `{"chatId":"6281234567890@s.whatsapp.net","message":"hello there"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", resp.StatusCode, body)
	}

	var res map[string]any
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res["status"] != "success" || res["sent"] != "hello there" {
		t.Fatalf("body = %v", res)
	}
	if len(s.sends) != 1 || s.sends[0].chatID != "6281234567890@s.whatsapp.net" || s.sends[0].text != "hello there" {
		t.Fatalf("sends = %+v", s.sends)
	}
}

func TestSendMessageFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not connected", session.ErrNotConnected, http.StatusBadRequest},
		{"invalid jid", pkgWhatsApp.ErrInvalidJID, http.StatusBadRequest},
		{"send error", errors.New("socket closed"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := connectedSession()
			s.sendErr = tt.err
			app := newTestApp(s, "")

			resp, body := doRequest(t, app, http.MethodPost, "/sendMessage", `{"chatId":"6281234567890","message":"hi"}`, nil)
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, tt.want, body)
			}
		})
	}
}

func TestQRFormats(t *testing.T) {
	s := &fakeSession{status: session.Status{State: session.StateAwaitingQR, QR: "2@pairing-code,abc,def"}}
	app := newTestApp(s, "")

	resp, body := doRequest(t, app, http.MethodGet, "/qr", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("html status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `<img src="data:image/png;base64,`) {
		t.Fatalf("html body missing data URL image: %s", body)
	}

	resp, body = doRequest(t, app, http.MethodGet, "/qr?format=png", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("png status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "image/png" {
		t.Fatalf("png content type = %q", got)
	}
	if len(body) < 8 || string(body[1:4]) != "PNG" {
		t.Fatalf("png body is not a PNG image")
	}

	resp, body = doRequest(t, app, http.MethodGet, "/qr?format=json", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("json status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `"qr_code":"2@pairing-code,abc,def"`) {
		t.Fatalf("json body = %s", body)
	}

	resp, _ = doRequest(t, app, http.MethodGet, "/qr?format=svg", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("svg status = %d, want 400", resp.StatusCode)
	}
}

func TestQRUnavailableWhenConnected(t *testing.T) {
	app := newTestApp(connectedSession(), "")

	resp, body := doRequest(t, app, http.MethodGet, "/qr", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("html status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "already connected") {
		t.Fatalf("body = %s", body)
	}

	for _, format := range []string{"png", "json"} {
		resp, _ = doRequest(t, app, http.MethodGet, "/qr?format="+format, "", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s status = %d, want 404", format, resp.StatusCode)
		}
	}
}

func TestHealthAndConnectionStatus(t *testing.T) {
	s := connectedSession()
	app := newTestApp(s, "")

	resp, body := doRequest(t, app, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
	var health map[string]any
	if err := json.Unmarshal(body, &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health["status"] != "ok" || health["connected"] != true {
		t.Fatalf("health = %v", health)
	}
	if _, err := time.Parse(time.RFC3339, health["timestamp"].(string)); err != nil {
		t.Fatalf("timestamp: %v", err)
	}

	resp, body = doRequest(t, app, http.MethodGet, "/connection-status", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("connection-status status = %d", resp.StatusCode)
	}
	var status map[string]any
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status["connected"] != true || status["state"] != "connected" {
		t.Fatalf("status = %v", status)
	}
	if status["jid"] != "628123456xxxx@s.whatsapp.net" {
		t.Fatalf("jid = %v", status["jid"])
	}
	if _, ok := status["qr"]; ok {
		t.Fatalf("qr should be omitted once connected: %v", status)
	}
}

func TestConnectionStatusWhilePairing(t *testing.T) {
	s := &fakeSession{status: session.Status{State: session.StateAwaitingQR, QR: "2@code"}}
	app := newTestApp(s, "")

	_, body := doRequest(t, app, http.MethodGet, "/connection-status", "", nil)
	var status map[string]any
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status["connected"] != false {
		t.Fatalf("connected = %v", status["connected"])
	}
	qr, _ := status["qr"].(string)
	if !strings.HasPrefix(qr, "data:image/png;base64,") {
		t.Fatalf("qr = %q", qr)
	}
}

func TestBearerProtection(t *testing.T) {
	s := connectedSession()
	app := newTestApp(s, testJWTSecret)

	resp, _ := doRequest(t, app, http.MethodPost, "/sendMessage", `{"chatId":"6281234567890","message":"hi"}`, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated send status = %d, want 401", resp.StatusCode)
	}
	if s.sendCount() != 0 {
		t.Fatal("send invoked without a token")
	}

	token, err := auth.GenerateToken(testJWTSecret, "ops", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	bearer := map[string]string{"Authorization": "Bearer " + token}

	resp, _ = doRequest(t, app, http.MethodPost, "/sendMessage", `{"chatId":"6281234567890","message":"hi"}`, bearer)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated send status = %d", resp.StatusCode)
	}

	for _, path := range []string{"/logout", "/reconnect"} {
		resp, _ = doRequest(t, app, http.MethodPost, path, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s without token = %d", path, resp.StatusCode)
		}
		resp, _ = doRequest(t, app, http.MethodPost, path, "", bearer)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s with token = %d", path, resp.StatusCode)
		}
	}
	if s.logouts != 1 || s.reconnects != 1 {
		t.Fatalf("logouts = %d, reconnects = %d", s.logouts, s.reconnects)
	}

	for _, path := range []string{"/qr", "/health", "/connection-status"} {
		resp, _ = doRequest(t, app, http.MethodGet, path, "", nil)
		if resp.StatusCode == http.StatusUnauthorized {
			t.Fatalf("%s should stay public", path)
		}
	}
}

func TestAdminEndpoints(t *testing.T) {
	app := newTestApp(connectedSession(), "")

	resp, body := doRequest(t, app, http.MethodGet, "/admin/whatsapp/version", "", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "2.3000.1") {
		t.Fatalf("version status = %d body = %s", resp.StatusCode, body)
	}

	resp, body = doRequest(t, app, http.MethodPost, "/admin/whatsapp/version/refresh?force=true", "", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"refreshed":true`) {
		t.Fatalf("refresh status = %d body = %s", resp.StatusCode, body)
	}

	resp, body = doRequest(t, app, http.MethodGet, "/admin/webhook/stats", "", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"delivered":3`) {
		t.Fatalf("stats status = %d body = %s", resp.StatusCode, body)
	}
}
