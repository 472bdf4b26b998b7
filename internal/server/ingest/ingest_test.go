package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"repertoire/internal/logx"
	"repertoire/internal/server/position"
	"repertoire/internal/server/storage"
	"repertoire/internal/server/winrate"

	"github.com/freeeve/pgn/v3"
)

type memStore struct {
	mu     sync.Mutex
	counts map[string]storage.CorpusMove
	calls  int
}

func newMemStore() *memStore {
	return &memStore{counts: make(map[string]storage.CorpusMove)}
}

func (m *memStore) AddCorpusCounts(_ context.Context, batch []storage.CorpusMove) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for _, c := range batch {
		id := c.PosKey + "|" + c.UCI
		cur := m.counts[id]
		cur.PosKey, cur.Bracket, cur.UCI, cur.SAN = c.PosKey, c.Bracket, c.UCI, c.SAN
		cur.White += c.White
		cur.Draws += c.Draws
		cur.Black += c.Black
		m.counts[id] = cur
	}
	return nil
}

func (m *memStore) get(key, uci string) storage.CorpusMove {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key+"|"+uci]
}

func mustMoves(t *testing.T, sans ...string) []pgn.Mv {
	t.Helper()
	gs := pgn.NewStartingPosition()
	var moves []pgn.Mv
	for _, san := range sans {
		mv, err := pgn.ParseSAN(gs, san)
		if err != nil {
			t.Fatalf("ParseSAN(%s): %v", san, err)
		}
		if err := pgn.ApplyMove(gs, mv); err != nil {
			t.Fatalf("ApplyMove(%s): %v", san, err)
		}
		moves = append(moves, mv)
	}
	return moves
}

func TestCountGame(t *testing.T) {
	in := New(newMemStore(), Config{MaxPlies: 2, Logger: logx.Nop()})
	moves := mustMoves(t, "e4", "e5", "Nf3")

	acc := newAccumulator()
	n := in.countGame(acc, map[string]string{"WhiteElo": "1500", "BlackElo": "1550", "Result": "0-1"}, moves)
	if n != 2 {
		t.Fatalf("plies = %d, want 2", n)
	}
	if acc.len() != 2 {
		t.Fatalf("accumulated %d moves, want 2", acc.len())
	}

	start := position.Start().Key()
	var found bool
	for _, m := range acc.drain() {
		if m.PosKey == start {
			found = true
			if m.UCI != "e2e4" || m.SAN != "e4" || m.Black != 1 || m.White != 0 || m.Bracket != 1400 {
				t.Errorf("start move = %+v", m)
			}
		}
	}
	if !found {
		t.Error("no counter for the starting position")
	}
	if acc.len() != 0 {
		t.Error("drain did not reset the accumulator")
	}
}

func TestCountGameSkips(t *testing.T) {
	in := New(newMemStore(), Config{RatingMin: 1000, Logger: logx.Nop()})
	moves := mustMoves(t, "d4", "d5")

	tests := []struct {
		name string
		tags map[string]string
	}{
		{"unrated white", map[string]string{"BlackElo": "1500", "Result": "1-0"}},
		{"unknown rating", map[string]string{"WhiteElo": "?", "BlackElo": "1500", "Result": "1-0"}},
		{"unfinished", map[string]string{"WhiteElo": "1500", "BlackElo": "1500", "Result": "*"}},
		{"below floor", map[string]string{"WhiteElo": "900", "BlackElo": "1500", "Result": "1-0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := newAccumulator()
			if n := in.countGame(acc, tt.tags, moves); n != 0 || acc.len() != 0 {
				t.Errorf("counted %d plies", n)
			}
		})
	}
}

func TestAccumulatorMerges(t *testing.T) {
	acc := newAccumulator()
	acc.add("k", 1200, "e2e4", "e4", storage.CorpusMove{White: 1})
	acc.add("k", 1200, "e2e4", "e4", storage.CorpusMove{Draws: 1})
	acc.add("k", 1400, "e2e4", "e4", storage.CorpusMove{Black: 1})

	if acc.len() != 2 {
		t.Fatalf("len = %d, want brackets kept apart", acc.len())
	}
	for _, m := range acc.drain() {
		if m.Bracket == 1200 && (m.White != 1 || m.Draws != 1) {
			t.Errorf("1200 = %+v", m)
		}
	}
}

const samplePGN = `[Event "Rated Rapid game"]
[White "a"]
[Black "b"]
[Result "1-0"]
[WhiteElo "1210"]
[BlackElo "1290"]

1. e4 e5 2. Nf3 Nc6 3. Bc4 1-0

[Event "Rated Rapid game"]
[White "c"]
[Black "d"]
[Result "1/2-1/2"]
[WhiteElo "1250"]
[BlackElo "1230"]

1. e4 c5 1/2-1/2

[Event "Casual game"]
[White "e"]
[Black "f"]
[Result "0-1"]

1. d4 d5 0-1

`

func TestRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.pgn")
	if err := os.WriteFile(path, []byte(samplePGN), 0644); err != nil {
		t.Fatal(err)
	}

	store := newMemStore()
	in := New(store, Config{Workers: 1, MaxPlies: 4, BatchGames: 1, Logger: logx.Nop()})

	sum, err := in.Run(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Files != 1 || sum.Games != 2 || sum.Skipped != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.Positions != 6 {
		t.Errorf("positions = %d, want 6", sum.Positions)
	}

	e4 := store.get(position.Start().Key(), "e2e4")
	if e4.White != 1 || e4.Draws != 1 || e4.Black != 0 || e4.Bracket != 1200 {
		t.Errorf("e4 counters = %+v", e4)
	}
	if d4 := store.get(position.Start().Key(), "d2d4"); d4.Total() != 0 {
		t.Errorf("unrated game counted: %+v", d4)
	}
}

func TestRunFeedsWinrateQueries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "games.pgn")
	if err := os.WriteFile(path, []byte(samplePGN), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := storage.NewStore(filepath.Join(dir, "corpus.db"), false, logx.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()
	if err := store.InitDB(); err != nil {
		t.Fatalf("InitDB: %v", err)
	}

	in := New(store, Config{Workers: 1, MaxPlies: 4, Logger: logx.Nop()})
	if _, err := in.Run(context.Background(), []string{path}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	src := winrate.NewSource(winrate.NewCorpusCounter(store), time.Second, 1, logx.Nop())
	tests := []struct {
		name      string
		fen       string
		wantTotal int64
		wantMoves []string
	}{
		{"start", position.StartingFEN, 2, []string{"e4"}},
		{"after e4", "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1", 2, []string{"e5", "c5"}},
		{"after e4 with ep square", "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1", 2, []string{"e5", "c5"}},
		{"after e4 e5", "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 2", 1, []string{"Nf3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pw, err := src.Query(context.Background(), tt.fen, 1200, 0)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if pw.Total != tt.wantTotal {
				t.Errorf("total = %d, want %d", pw.Total, tt.wantTotal)
			}
			got := map[string]bool{}
			for _, m := range pw.Moves {
				got[m.SAN] = m.Total > 0
			}
			if len(got) != len(tt.wantMoves) {
				t.Errorf("moves = %+v, want %v", pw.Moves, tt.wantMoves)
			}
			for _, san := range tt.wantMoves {
				if !got[san] {
					t.Errorf("missing %s in %+v", san, pw.Moves)
				}
			}
		})
	}
}
