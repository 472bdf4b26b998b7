package http

import (
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"repertoire/internal/logx"
	"repertoire/internal/server/core"
	"repertoire/internal/server/processor"
	"repertoire/internal/server/scheduler"
	"repertoire/internal/server/service"
	"repertoire/internal/server/session"
	"repertoire/internal/server/storage"
	"repertoire/internal/server/winrate"

	"github.com/gofiber/fiber/v2"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func newTestApp(t *testing.T, opts Options) *fiber.App {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "repertoire.db"), true, logx.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.InitDB(); err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	src := winrate.NewSource(winrate.NewCorpusCounter(store), time.Second, 1, logx.Nop())
	svc := service.New(store, src, scheduler.New(scheduler.Leitner()),
		session.NewRegistry(time.Hour, logx.Nop()), service.Options{}, logx.Nop())
	if opts.RateLimit == 0 {
		opts.RateLimit = 1000
	}
	return NewFiberApp(processor.New(svc, logx.Nop()), svc, opts, logx.Nop())
}

type call struct {
	method  string
	path    string
	body    string
	session string
}

func do(t *testing.T, app *fiber.App, c call) (int, []byte, nethttp.Header) {
	t.Helper()
	var body io.Reader
	if c.body != "" {
		body = strings.NewReader(c.body)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != "" {
		req.Header.Set(sessionHeader, c.session)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", c.method, c.path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data, resp.Header
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, Options{})
	status, body, hdr := do(t, app, call{method: "GET", path: "/health"})
	if status != fiber.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if !strings.Contains(string(body), `"status":"healthy"`) {
		t.Errorf("body = %s", body)
	}
	if len(hdr.Get(requestIDHeader)) != 8 {
		t.Errorf("request id = %q", hdr.Get(requestIDHeader))
	}
}

func TestRepertoireRoutes(t *testing.T) {
	app := newTestApp(t, Options{})

	status, body, _ := do(t, app, call{method: "POST", path: "/api/v1/repertoires", body: `{"name":"Italian","color":"white","elo":1200}`})
	if status != fiber.StatusCreated {
		t.Fatalf("create status = %d body = %s", status, body)
	}
	rep := decode[core.Repertoire](t, body)
	if rep.ID == 0 || rep.Side != core.SideWhite {
		t.Fatalf("created = %+v", rep)
	}

	status, body, _ = do(t, app, call{method: "GET", path: "/api/v1/repertoires"})
	if status != fiber.StatusOK || len(decode[[]core.Repertoire](t, body)) != 1 {
		t.Errorf("list status = %d body = %s", status, body)
	}

	status, body, _ = do(t, app, call{method: "PUT", path: "/api/v1/repertoires/1", body: `{"name":"Giuoco","elo":1600,"coverage":80}`})
	if status != fiber.StatusOK {
		t.Fatalf("update status = %d body = %s", status, body)
	}
	if got := decode[core.Repertoire](t, body); got.Name != "Giuoco" || got.EloBracket != 1600 || got.CoverageTarget != 80 {
		t.Errorf("updated = %+v", got)
	}

	status, body, _ = do(t, app, call{method: "GET", path: "/api/v1/repertoires/1/due-count"})
	if status != fiber.StatusOK || decode[core.CountResponse](t, body).Count != 0 {
		t.Errorf("due-count status = %d body = %s", status, body)
	}

	status, _, hdr := do(t, app, call{method: "GET", path: "/api/v1/repertoires/1/export"})
	if status != fiber.StatusOK || hdr.Get("Content-Type") != fiber.MIMEOctetStream {
		t.Errorf("export status = %d type = %q", status, hdr.Get("Content-Type"))
	}

	status, _, _ = do(t, app, call{method: "DELETE", path: "/api/v1/repertoires/1"})
	if status != fiber.StatusNoContent {
		t.Errorf("delete status = %d", status)
	}

	status, body, _ = do(t, app, call{method: "GET", path: "/api/v1/repertoires/1"})
	if status != fiber.StatusNotFound || decode[core.ErrorResponse](t, body).Code != core.ErrRepertoireNotFound {
		t.Errorf("get deleted status = %d body = %s", status, body)
	}
}

func TestRequestRejects(t *testing.T) {
	app := newTestApp(t, Options{})

	tests := []struct {
		name   string
		req    call
		ctype  string
		status int
		code   string
	}{
		{"bad color", call{method: "POST", path: "/api/v1/repertoires", body: `{"name":"x","color":"green"}`}, "", fiber.StatusBadRequest, core.ErrInvalidRequest},
		{"missing name", call{method: "POST", path: "/api/v1/repertoires", body: `{"color":"white"}`}, "", fiber.StatusBadRequest, core.ErrInvalidRequest},
		{"bad bracket", call{method: "POST", path: "/api/v1/repertoires", body: `{"name":"x","color":"white","elo":1300}`}, "", fiber.StatusBadRequest, core.ErrInvalidRequest},
		{"malformed json", call{method: "POST", path: "/api/v1/repertoires", body: `{"name":`}, "", fiber.StatusBadRequest, core.ErrInvalidRequest},
		{"content type", call{method: "POST", path: "/api/v1/repertoires", body: `name=x`}, "text/plain", fiber.StatusUnsupportedMediaType, core.ErrInvalidContent},
		{"bad id", call{method: "GET", path: "/api/v1/repertoires/abc"}, "", fiber.StatusBadRequest, core.ErrInvalidRequest},
		{"bad session header", call{method: "GET", path: "/api/v1/session/cursor", session: "not-a-uuid"}, "", fiber.StatusBadRequest, core.ErrInvalidRequest},
		{"unknown session", call{method: "GET", path: "/api/v1/session/cursor", session: "6f1c1c3e-8d7a-4b7e-9a53-3f0f4a3b2c11"}, "", fiber.StatusNotFound, core.ErrSessionNotFound},
		{"bad fen", call{method: "PUT", path: "/api/v1/session/fen", body: `{"fen":"not a fen"}`}, "", fiber.StatusBadRequest, core.ErrInvalidFEN},
		{"no selection", call{method: "POST", path: "/api/v1/session/edges", body: `{"san":"e4"}`}, "", fiber.StatusBadRequest, core.ErrNoRepertoire},
		{"unknown route", call{method: "GET", path: "/api/v1/nowhere"}, "", fiber.StatusNotFound, core.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.req.body != "" {
				body = strings.NewReader(tt.req.body)
			}
			req := httptest.NewRequest(tt.req.method, tt.req.path, body)
			ctype := tt.ctype
			if ctype == "" && tt.req.body != "" {
				ctype = "application/json"
			}
			if ctype != "" {
				req.Header.Set("Content-Type", ctype)
			}
			if tt.req.session != "" {
				req.Header.Set(sessionHeader, tt.req.session)
			}

			resp, err := app.Test(req, -1)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()
			data, _ := io.ReadAll(resp.Body)

			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d (body %s)", resp.StatusCode, tt.status, data)
			}
			if got := decode[core.ErrorResponse](t, data).Code; got != tt.code {
				t.Errorf("code = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestSessionRoutes(t *testing.T) {
	app := newTestApp(t, Options{})

	status, body, _ := do(t, app, call{method: "POST", path: "/api/v1/repertoires", body: `{"name":"Italian","color":"white","elo":1200}`})
	if status != fiber.StatusCreated {
		t.Fatalf("create status = %d", status)
	}
	rep := decode[core.Repertoire](t, body)

	status, body, _ = do(t, app, call{method: "POST", path: "/api/v1/sessions"})
	if status != fiber.StatusCreated {
		t.Fatalf("session status = %d", status)
	}
	sess := decode[core.SessionResponse](t, body).SessionID

	status, body, _ = do(t, app, call{method: "POST", path: "/api/v1/session/select", body: `{"id":1}`, session: sess})
	if status != fiber.StatusOK {
		t.Fatalf("select status = %d body = %s", status, body)
	}
	if cur := decode[core.CursorResponse](t, body); cur.RepertoireID != rep.ID || cur.FEN != startFEN {
		t.Errorf("selected cursor = %+v", cur)
	}

	// playing an uncommitted move is refused
	status, body, _ = do(t, app, call{method: "POST", path: "/api/v1/session/play", body: `{"san":"e4"}`, session: sess})
	if status != fiber.StatusNotFound {
		t.Errorf("play before add status = %d body = %s", status, body)
	}

	status, body, _ = do(t, app, call{method: "POST", path: "/api/v1/session/edges", body: `{"san":"e4"}`, session: sess})
	if status != fiber.StatusOK {
		t.Fatalf("add status = %d body = %s", status, body)
	}
	if e := decode[core.Edge](t, body); e.SAN != "e4" || e.UCI != "e2e4" {
		t.Errorf("edge = %+v", e)
	}

	status, body, _ = do(t, app, call{method: "POST", path: "/api/v1/session/edges", body: `{"san":"Ke2"}`, session: sess})
	if status != fiber.StatusBadRequest || decode[core.ErrorResponse](t, body).Code != core.ErrIllegalMove {
		t.Errorf("illegal add status = %d body = %s", status, body)
	}

	status, body, _ = do(t, app, call{method: "GET", path: "/api/v1/session/edges", session: sess})
	if edges := decode[core.EdgesResponse](t, body); status != fiber.StatusOK || len(edges.Moves) != 1 {
		t.Errorf("edges status = %d body = %s", status, body)
	}

	status, body, _ = do(t, app, call{method: "POST", path: "/api/v1/session/play", body: `{"san":"e4"}`, session: sess})
	if cur := decode[core.CursorResponse](t, body); status != fiber.StatusOK || len(cur.Moves) != 1 || cur.Moves[0] != "e4" {
		t.Errorf("play status = %d body = %s", status, body)
	}

	// the default cursor is untouched by the session
	status, body, _ = do(t, app, call{method: "GET", path: "/api/v1/session/cursor"})
	if cur := decode[core.CursorResponse](t, body); status != fiber.StatusOK || cur.RepertoireID != 0 || cur.FEN != startFEN {
		t.Errorf("default cursor status = %d body = %s", status, body)
	}

	status, body, _ = do(t, app, call{method: "POST", path: "/api/v1/session/back", session: sess})
	if cur := decode[core.CursorResponse](t, body); status != fiber.StatusOK || cur.FEN != startFEN {
		t.Errorf("back status = %d body = %s", status, body)
	}

	status, body, _ = do(t, app, call{method: "GET", path: "/api/v1/session/due", session: sess})
	if due := decode[core.DueResponse](t, body); status != fiber.StatusOK || len(due.FENs) != 1 {
		t.Errorf("due status = %d body = %s", status, body)
	}

	status, body, _ = do(t, app, call{method: "POST", path: "/api/v1/session/drill", body: `{"san":"d4"}`, session: sess})
	if res := decode[core.TestResult](t, body); status != fiber.StatusOK || res.Correct {
		t.Errorf("drill status = %d body = %s", status, body)
	}

	status, body, _ = do(t, app, call{method: "DELETE", path: "/api/v1/session/edges", body: `{"san":"e4"}`, session: sess})
	if edges := decode[core.EdgesResponse](t, body); status != fiber.StatusOK || len(edges.Moves) != 0 {
		t.Errorf("delete edge status = %d body = %s", status, body)
	}

	status, _, _ = do(t, app, call{method: "DELETE", path: "/api/v1/sessions/" + sess})
	if status != fiber.StatusNoContent {
		t.Errorf("delete session status = %d", status)
	}
	status, _, _ = do(t, app, call{method: "GET", path: "/api/v1/session/cursor", session: sess})
	if status != fiber.StatusNotFound {
		t.Errorf("deleted session status = %d", status)
	}
}

func TestRateLimit(t *testing.T) {
	app := newTestApp(t, Options{RateLimit: 1})

	status, _, _ := do(t, app, call{method: "GET", path: "/api/v1/repertoires"})
	if status != fiber.StatusOK {
		t.Fatalf("first status = %d", status)
	}
	status, body, _ := do(t, app, call{method: "GET", path: "/api/v1/repertoires"})
	if status != fiber.StatusTooManyRequests || decode[core.ErrorResponse](t, body).Code != core.ErrRateLimitExceeded {
		t.Errorf("second status = %d body = %s", status, body)
	}

	// health is outside the limiter
	status, _, _ = do(t, app, call{method: "GET", path: "/health"})
	if status != fiber.StatusOK {
		t.Errorf("health status = %d", status)
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[string]int{
		core.ErrNotFound:           fiber.StatusNotFound,
		core.ErrRepertoireNotFound: fiber.StatusNotFound,
		core.ErrSessionNotFound:    fiber.StatusNotFound,
		core.ErrConflict:           fiber.StatusConflict,
		core.ErrCorpusUnavailable:  fiber.StatusServiceUnavailable,
		core.ErrInternalError:      fiber.StatusInternalServerError,
		core.ErrIllegalMove:        fiber.StatusBadRequest,
		core.ErrNoRepertoire:       fiber.StatusBadRequest,
	}
	for code, want := range tests {
		if got := statusFor(code); got != want {
			t.Errorf("statusFor(%s) = %d, want %d", code, got, want)
		}
	}
}

func TestValidationDetails(t *testing.T) {
	app := newTestApp(t, Options{})

	tests := []struct {
		name string
		body string
		want []string
	}{
		{"missing fields", `{}`, []string{"Name is required", "Color is required"}},
		{"bad color", `{"name":"x","color":"green"}`, []string{"Color must be one of [white black]"}},
		{"long name", `{"name":"` + strings.Repeat("n", 101) + `","color":"white"}`, []string{"Name must be at most 100 characters"}},
		{"elo range", `{"name":"x","color":"white","elo":4000}`, []string{"Elo must be at most 3000"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body, _ := do(t, app, call{method: "POST", path: "/api/v1/repertoires", body: tt.body})
			if status != fiber.StatusBadRequest {
				t.Fatalf("status = %d, body %s", status, body)
			}
			resp := decode[core.ErrorResponse](t, body)
			for _, w := range tt.want {
				if !strings.Contains(resp.Details, w) {
					t.Errorf("details %q missing %q", resp.Details, w)
				}
			}
		})
	}
}
