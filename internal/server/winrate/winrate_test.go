package winrate

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"repertoire/internal/logx"
	"repertoire/internal/server/core"
	"repertoire/internal/server/position"
	"repertoire/internal/server/storage"
)

type fakeCounter struct {
	counts Counts
	err    error
	block  bool
	calls  int
}

func (f *fakeCounter) Name() string { return "fake" }

func (f *fakeCounter) Counts(ctx context.Context, _ *position.Position, _ int) (Counts, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return Counts{}, ctx.Err()
	}
	return f.counts, f.err
}

func sample() Counts {
	return Counts{
		White: 500, Draws: 100, Black: 400,
		Moves: []MoveCount{
			{SAN: "e5", UCI: "e7e5", White: 150, Draws: 50, Black: 100},
			{SAN: "c5", UCI: "c7c5", White: 200, Draws: 20, Black: 180},
			{SAN: "e6", UCI: "e7e6", White: 80, Draws: 10, Black: 60},
			{SAN: "d5", UCI: "d7d5", White: 40, Draws: 5, Black: 5},
			{SAN: "a6", UCI: "a7a6", White: 1, Draws: 0, Black: 0},
		},
	}
}

func sans(moves []core.MoveWinrate) []string {
	out := make([]string, len(moves))
	for i, m := range moves {
		out[i] = m.SAN
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name     string
		coverage float64
		minGames int64
		want     []string
	}{
		{"no trimming", 0, 1, []string{"c5", "e5", "e6", "d5", "a6"}},
		{"full coverage uses floor", 100, 10, []string{"c5", "e5", "e6", "d5"}},
		{"first move enough", 40, 1, []string{"c5"}},
		{"two moves", 60, 1, []string{"c5", "e5"}},
		{"exact boundary", 70, 1, []string{"c5", "e5"}},
		{"three moves", 85, 1, []string{"c5", "e5", "e6"}},
		{"unreachable falls back to floor", 99.99, 2, []string{"c5", "e5", "e6", "d5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(sample(), tt.coverage, tt.minGames)
			if !equalStrings(sans(got.Moves), tt.want) {
				t.Errorf("moves = %v, want %v", sans(got.Moves), tt.want)
			}
		})
	}
}

func TestAggregateRates(t *testing.T) {
	got := Aggregate(sample(), 0, 1)
	if got.Total != 1000 {
		t.Fatalf("total = %d, want 1000", got.Total)
	}
	if got.WhiteRate != 50 || got.DrawRate != 10 || got.BlackRate != 40 {
		t.Errorf("rates = %v/%v/%v", got.WhiteRate, got.DrawRate, got.BlackRate)
	}

	sum := 0.0
	for i, m := range got.Moves {
		sum += m.Chance
		if i > 0 && m.Chance > got.Moves[i-1].Chance {
			t.Errorf("moves not sorted by chance at %d", i)
		}
		if r := m.WhiteRate + m.DrawRate + m.BlackRate; math.Abs(r-100) > 1e-9 {
			t.Errorf("%s rates sum to %v", m.SAN, r)
		}
	}
	if sum > 100+1e-9 {
		t.Errorf("chance sums to %v", sum)
	}

	c5 := got.Moves[0]
	if c5.SAN != "c5" || c5.Total != 400 || c5.Chance != 40 || c5.WhiteRate != 50 {
		t.Errorf("c5 = %+v", c5)
	}
}

func TestAggregateEmpty(t *testing.T) {
	got := Aggregate(Counts{}, 50, 1)
	if got.Total != 0 {
		t.Errorf("total = %d", got.Total)
	}
	if got.Moves == nil || len(got.Moves) != 0 {
		t.Errorf("moves = %v, want empty non-nil slice", got.Moves)
	}
}

func TestAggregateTieBreak(t *testing.T) {
	c := Counts{Moves: []MoveCount{
		{SAN: "Nf3", UCI: "g1f3", White: 5},
		{SAN: "d4", UCI: "d2d4", White: 5},
		{SAN: "c4", UCI: "c2c4", White: 5},
	}}
	got := Aggregate(c, 0, 1)
	if got.Total != 15 {
		t.Errorf("total = %d, want totals derived from moves", got.Total)
	}
	if want := []string{"Nf3", "c4", "d4"}; !equalStrings(sans(got.Moves), want) {
		t.Errorf("order = %v, want %v", sans(got.Moves), want)
	}
}

func TestSourceQuery(t *testing.T) {
	counter := &fakeCounter{counts: sample()}
	src := NewSource(counter, time.Second, 1, logx.Nop())

	got, err := src.Query(context.Background(), position.StartingFEN, 1200, 60)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !equalStrings(sans(got.Moves), []string{"c5", "e5"}) {
		t.Errorf("moves = %v", sans(got.Moves))
	}
}

func TestSourceRejects(t *testing.T) {
	src := NewSource(&fakeCounter{}, time.Second, 1, logx.Nop())

	tests := []struct {
		name     string
		fen      string
		bracket  int
		coverage float64
		want     error
	}{
		{"unknown bracket", position.StartingFEN, 1300, 0, core.ErrInvalidInput},
		{"negative coverage", position.StartingFEN, 1200, -1, core.ErrInvalidInput},
		{"coverage above 100", position.StartingFEN, 1200, 101, core.ErrInvalidInput},
		{"bad fen", "not a fen", 1200, 0, core.ErrInvalidPosition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := src.Query(context.Background(), tt.fen, tt.bracket, tt.coverage)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSourceTimeout(t *testing.T) {
	src := NewSource(&fakeCounter{block: true}, 20*time.Millisecond, 1, logx.Nop())

	_, err := src.Query(context.Background(), position.StartingFEN, 1200, 0)
	if !errors.Is(err, core.ErrCorpusUnreachable) {
		t.Fatalf("err = %v, want corpus unavailable", err)
	}
	if core.CodeFor(err) != core.ErrCorpusUnavailable {
		t.Errorf("code = %s", core.CodeFor(err))
	}
}

func TestSourceBackendError(t *testing.T) {
	src := NewSource(&fakeCounter{err: errors.New("disk gone")}, time.Second, 1, logx.Nop())
	_, err := src.Query(context.Background(), position.StartingFEN, 1200, 0)
	if !errors.Is(err, core.ErrCorpusUnreachable) {
		t.Errorf("err = %v, want corpus unavailable", err)
	}
}

type fakeCorpus struct {
	rows   []storage.CorpusMove
	gotKey string
	gotElo int
}

func (f *fakeCorpus) CorpusMoves(_ context.Context, posKey string, bracket int) ([]storage.CorpusMove, error) {
	f.gotKey, f.gotElo = posKey, bracket
	return f.rows, nil
}

func TestCorpusCounter(t *testing.T) {
	store := &fakeCorpus{rows: []storage.CorpusMove{
		{UCI: "e2e4", SAN: "e4", White: 3, Draws: 1, Black: 2},
		{UCI: "g1f3", White: 1},
		{UCI: "e2e5", White: 9},
	}}
	pos := position.Start()

	counts, err := NewCorpusCounter(store).Counts(context.Background(), pos, 1400)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if store.gotKey != pos.Key() || store.gotElo != 1400 {
		t.Errorf("queried %q/%d", store.gotKey, store.gotElo)
	}
	if len(counts.Moves) != 2 {
		t.Fatalf("moves = %+v, want illegal row skipped", counts.Moves)
	}
	if counts.Moves[1].SAN != "Nf3" {
		t.Errorf("SAN not derived from UCI: %+v", counts.Moves[1])
	}
	if counts.White != 4 || counts.Draws != 1 || counts.Black != 2 {
		t.Errorf("position counts = %d/%d/%d", counts.White, counts.Draws, counts.Black)
	}
}

func TestExplorerCounter(t *testing.T) {
	var gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("fen") + "|" + r.URL.Query().Get("ratings") + "|" + r.URL.Query().Get("speeds")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"white":60,"draws":10,"black":30,"moves":[
			{"uci":"e7e5","san":"e5","white":30,"draws":5,"black":15},
			{"uci":"c7c5","san":"c5","white":20,"draws":5,"black":15}],
			"opening":{"eco":"B00","name":"King's Pawn"}}`))
	}))
	defer srv.Close()

	pos, err := position.Parse("rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	counter := NewExplorerCounter(srv.URL, "secret", "blitz", time.Second)
	counts, err := counter.Counts(context.Background(), pos, 1600)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if want := pos.FEN() + "|1600|blitz"; gotQuery != want {
		t.Errorf("query = %q, want %q", gotQuery, want)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth = %q", gotAuth)
	}
	if counts.White != 60 || len(counts.Moves) != 2 || counts.Moves[0].SAN != "e5" {
		t.Errorf("counts = %+v", counts)
	}

	got := Aggregate(counts, 0, 1)
	if got.Total != 100 || got.Moves[0].Chance != 50 {
		t.Errorf("aggregate = %+v", got)
	}
}

func TestExplorerCounterStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	src := NewSource(NewExplorerCounter(srv.URL, "", "", time.Second), time.Second, 1, logx.Nop())
	_, err := src.Query(context.Background(), position.StartingFEN, 1200, 0)
	if !errors.Is(err, core.ErrCorpusUnreachable) {
		t.Errorf("err = %v, want corpus unavailable", err)
	}
}
