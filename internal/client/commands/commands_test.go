package commands

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"repertoire/internal/client/api"
	"repertoire/internal/client/session"
	"repertoire/internal/server/core"
)

// fakeServer answers the routes the tests drive with canned cursor states
func fakeServer(t *testing.T) *session.Session {
	t.Helper()
	rep := core.Repertoire{ID: 1, Name: "Italian", Side: core.SideWhite, EloBracket: 1200}
	var played []string

	mux := http.NewServeMux()
	reply := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}
	cursor := func() core.CursorResponse {
		fen := startFEN
		if len(played) == 1 {
			fen = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"
		}
		return core.CursorResponse{RepertoireID: rep.ID, FEN: fen, Moves: played}
	}

	mux.HandleFunc("POST /api/v1/repertoires", func(w http.ResponseWriter, r *http.Request) {
		var req core.CreateRepertoireRequest
		json.NewDecoder(r.Body).Decode(&req)
		rep.Name = req.Name
		w.WriteHeader(http.StatusCreated)
		reply(w, rep)
	})
	mux.HandleFunc("GET /api/v1/repertoires/1", func(w http.ResponseWriter, r *http.Request) {
		reply(w, rep)
	})
	mux.HandleFunc("POST /api/v1/session/select", func(w http.ResponseWriter, r *http.Request) {
		reply(w, cursor())
	})
	mux.HandleFunc("POST /api/v1/session/edges", func(w http.ResponseWriter, r *http.Request) {
		var req core.MoveRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.SAN != "e4" {
			w.WriteHeader(http.StatusBadRequest)
			reply(w, core.ErrorResponse{Error: "illegal move", Code: core.ErrIllegalMove})
			return
		}
		reply(w, core.Edge{SAN: "e4", UCI: "e2e4"})
	})
	mux.HandleFunc("POST /api/v1/session/play", func(w http.ResponseWriter, r *http.Request) {
		var req core.MoveRequest
		json.NewDecoder(r.Body).Decode(&req)
		played = append(played, req.SAN)
		reply(w, cursor())
	})

	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	c := api.New(srv.URL)
	c.Out = io.Discard
	return &session.Session{APIBaseURL: srv.URL, Client: c}
}

func TestRegistryFlow(t *testing.T) {
	s := fakeServer(t)
	r := NewRegistry(s)

	if !r.Execute("new white 1200 Italian Game") {
		t.Fatal("new failed")
	}
	if !r.Execute("use 1") {
		t.Fatal("use failed")
	}
	if s.Repertoire == nil || s.Repertoire.Name != "Italian Game" {
		t.Errorf("repertoire = %+v", s.Repertoire)
	}

	if !r.Execute("line e4") {
		t.Fatal("line failed")
	}
	if len(s.Moves) != 1 || s.Moves[0] != "e4" {
		t.Errorf("moves = %v", s.Moves)
	}

	if r.Execute("a Ke2") {
		t.Error("illegal add reported success")
	}
	if r.Execute("nosuchcommand") {
		t.Error("unknown command reported success")
	}
	if r.Execute("new purple 1200 x") {
		t.Error("bad side reported success")
	}
}

func TestShortNames(t *testing.T) {
	r := NewRegistry(&session.Session{Client: api.New("http://localhost:0")})
	for short, name := range map[string]string{"l": "list", "u": "use", "w": "winrates", "t": "test", "dr": "drill", "?": "help"} {
		cmd, ok := r.Lookup(short)
		if !ok || cmd.Name != name {
			t.Errorf("Lookup(%q) = %v, want %s", short, cmd, name)
		}
	}
}

func TestLineStart(t *testing.T) {
	tests := []struct {
		fen   string
		n     int
		full  int
		white bool
	}{
		{startFEN, 0, 1, true},
		{"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1", 1, 1, true},
		{"r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3", 3, 1, false},
		{"r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3", 9, 1, true},
	}
	for _, tt := range tests {
		full, white := lineStart(tt.fen, tt.n)
		if full != tt.full || white != tt.white {
			t.Errorf("lineStart(%q, %d) = %d, %v; want %d, %v", tt.fen, tt.n, full, white, tt.full, tt.white)
		}
	}
}
