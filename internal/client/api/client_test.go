package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"repertoire/internal/server/core"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(srv.URL + "/")
	c.Out = io.Discard
	return c
}

func TestSessionHeader(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get(sessionHeader))
		mu.Unlock()
		switch r.URL.Path {
		case "/api/v1/sessions":
			json.NewEncoder(w).Encode(core.SessionResponse{SessionID: "s-1"})
		case "/api/v1/sessions/s-1":
			w.WriteHeader(http.StatusNoContent)
		default:
			json.NewEncoder(w).Encode(core.CursorResponse{FEN: "x"})
		}
	})

	if _, err := c.Cursor(); err != nil {
		t.Fatal(err)
	}
	if id, err := c.OpenSession(); err != nil || id != "s-1" {
		t.Fatalf("OpenSession = %q, %v", id, err)
	}
	if _, err := c.Cursor(); err != nil {
		t.Fatal(err)
	}
	if err := c.CloseSession(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Cursor(); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"", "", "s-1", "s-1", ""}
	if len(seen) != len(want) {
		t.Fatalf("requests = %q", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("request %d session = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestRequestBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/v1/session/edges" {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		var req core.MoveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SAN != "Nf3" {
			t.Errorf("body = %+v, %v", req, err)
		}
		json.NewEncoder(w).Encode(core.EdgesResponse{FEN: "f", Moves: []string{"e4"}})
	})

	resp, err := c.DeleteEdge("Nf3")
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Moves) != 1 || resp.Moves[0] != "e4" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestErrorResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(core.ErrorResponse{Error: "repertoire not found: id 9", Code: core.ErrRepertoireNotFound})
	})

	_, err := c.GetRepertoire(9)
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Code != core.ErrRepertoireNotFound {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if apiErr.Error() != "repertoire not found: id 9 (REPERTOIRE_NOT_FOUND)" {
		t.Errorf("message = %q", apiErr.Error())
	}
}
