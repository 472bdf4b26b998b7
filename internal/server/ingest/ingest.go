// FILE: repertoire/internal/server/ingest/ingest.go
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"repertoire/internal/server/core"
	"repertoire/internal/server/position"
	"repertoire/internal/server/storage"

	"github.com/freeeve/pgn/v3"
	"github.com/rs/zerolog"
)

const (
	DefaultMaxPlies   = 30
	DefaultBatchGames = 500
)

// CounterStore receives aggregated counters.
type CounterStore interface {
	AddCorpusCounts(ctx context.Context, batch []storage.CorpusMove) error
}

type Config struct {
	Workers    int // files ingested in parallel
	MaxPlies   int // plies counted per game
	BatchGames int // games between flushes
	RatingMin  int // both players must be rated at least this
	Logger     zerolog.Logger
}

// Summary totals every file of a run.
type Summary struct {
	Files     int
	Failed    int
	Games     int64
	Skipped   int64
	Positions int64
	Elapsed   time.Duration
}

// Ingester replays PGN games into per-bracket move counters.
type Ingester struct {
	cfg   Config
	store CounterStore
	log   zerolog.Logger
}

func New(store CounterStore, cfg Config) *Ingester {
	if cfg.Workers < 1 {
		cfg.Workers = 2
	}
	if cfg.MaxPlies <= 0 {
		cfg.MaxPlies = DefaultMaxPlies
	}
	if cfg.BatchGames <= 0 {
		cfg.BatchGames = DefaultBatchGames
	}
	return &Ingester{
		cfg:   cfg,
		store: store,
		log:   cfg.Logger.With().Str("component", "ingest").Logger(),
	}
}

// Run ingests paths on the worker pool. Counters of games read before
// cancellation are still flushed.
func (in *Ingester) Run(ctx context.Context, paths []string) (Summary, error) {
	start := time.Now()
	q := NewQueue(in.cfg.Workers, in.processFile)

	stop := context.AfterFunc(ctx, q.Cancel)
	defer stop()

	results := make(chan FileResult, len(paths))
	submitted := 0
	for _, p := range paths {
		if err := q.Submit(FileTask{Path: p, Response: results}); err != nil {
			in.log.Warn().Err(err).Int("remaining", len(paths)-submitted).Msg("ingest cancelled before every file was queued")
			break
		}
		submitted++
	}

	var sum Summary
	var firstErr error
collect:
	for i := 0; i < submitted; i++ {
		select {
		case r := <-results:
			sum.Files++
			sum.Games += r.Games
			sum.Skipped += r.Skipped
			sum.Positions += r.Positions
			if r.Error != nil {
				sum.Failed++
				if firstErr == nil {
					firstErr = fmt.Errorf("ingest %s: %w", r.Path, r.Error)
				}
				in.log.Error().Err(r.Error).Str("file", r.Path).Msg("ingest failed")
			}
		case <-ctx.Done():
			break collect
		}
	}

	if err := q.Shutdown(5 * time.Second); err != nil {
		in.log.Warn().Err(err).Msg("ingest workers did not stop")
	}
	sum.Elapsed = time.Since(start)

	in.log.Info().
		Int("files", sum.Files).
		Int("failed", sum.Failed).
		Int64("games", sum.Games).
		Int64("skipped", sum.Skipped).
		Int64("positions", sum.Positions).
		Dur("elapsed", sum.Elapsed).
		Msg("ingest complete")

	if firstErr == nil && ctx.Err() != nil {
		firstErr = ctx.Err()
	}
	return sum, firstErr
}

// processFile ingests a single PGN file (.pgn or .pgn.zst).
func (in *Ingester) processFile(ctx context.Context, workerID int, path string) FileResult {
	in.log.Info().Str("path", path).Int("worker", workerID).Msg("starting file ingest")

	startTime := time.Now()
	lastLog := startTime
	var res FileResult
	acc := newAccumulator()

	// Flushes outlive cancellation so counted games are not lost
	flushCtx := context.WithoutCancel(ctx)
	flush := func() error {
		if acc.len() == 0 {
			return nil
		}
		if err := in.store.AddCorpusCounts(flushCtx, acc.drain()); err != nil {
			return fmt.Errorf("flush counters: %w", err)
		}
		return nil
	}

	parser := pgn.Games(path)
	stopped := false
gameLoop:
	for game := range parser.Games {
		select {
		case <-ctx.Done():
			if !stopped {
				parser.Stop()
				stopped = true
			}
			break gameLoop
		default:
		}

		n := in.countGame(acc, game.Tags, game.Moves)
		if n == 0 {
			res.Skipped++
			continue
		}
		res.Games++
		res.Positions += int64(n)

		if res.Games%int64(in.cfg.BatchGames) == 0 {
			if err := flush(); err != nil {
				res.Error = err
				if !stopped {
					parser.Stop()
					stopped = true
				}
				break gameLoop
			}
		}

		if time.Since(lastLog) > 10*time.Second {
			in.log.Info().
				Str("file", filepath.Base(path)).
				Int("worker", workerID).
				Int64("games", res.Games).
				Int64("skipped", res.Skipped).
				Msg("ingest progress")
			lastLog = time.Now()
		}
	}

	if res.Error == nil && !stopped {
		if err := parser.Err(); err != nil {
			res.Error = err
		}
	}
	if err := flush(); err != nil && res.Error == nil {
		res.Error = err
	}
	if res.Error == nil && stopped {
		res.Error = ctx.Err()
	}

	res.Elapsed = time.Since(startTime)
	in.log.Info().
		Str("file", filepath.Base(path)).
		Int("worker", workerID).
		Int64("games", res.Games).
		Int64("skipped", res.Skipped).
		Int64("positions", res.Positions).
		Dur("elapsed", res.Elapsed).
		Msg("file ingest complete")
	return res
}

// countGame replays up to MaxPlies of a game into acc and returns the number
// of plies counted. Unrated, unfinished and below-floor games count nothing.
func (in *Ingester) countGame(acc *accumulator, tags map[string]string, moves []pgn.Mv) int {
	whiteElo := parseRating(tags["WhiteElo"])
	blackElo := parseRating(tags["BlackElo"])
	if whiteElo == 0 || blackElo == 0 {
		return 0
	}
	if whiteElo < in.cfg.RatingMin || blackElo < in.cfg.RatingMin {
		return 0
	}

	var outcome storage.CorpusMove
	switch tags["Result"] {
	case "1-0":
		outcome.White = 1
	case "0-1":
		outcome.Black = 1
	case "1/2-1/2":
		outcome.Draws = 1
	default:
		return 0
	}
	bracket := core.BracketFor((whiteElo + blackElo) / 2)

	gs := pgn.NewStartingPosition()
	plies := 0
	for _, mv := range moves {
		if plies >= in.cfg.MaxPlies {
			break
		}
		key, err := position.KeyOf(gs)
		if err != nil {
			break
		}
		uci := position.UCI(mv)
		san := position.SAN(gs, mv)
		if err := pgn.ApplyMove(gs, mv); err != nil {
			break
		}
		acc.add(key, bracket, uci, san, outcome)
		plies++
	}
	return plies
}

type accumulator struct {
	moves map[string]*storage.CorpusMove
}

func newAccumulator() *accumulator {
	return &accumulator{moves: make(map[string]*storage.CorpusMove)}
}

func (a *accumulator) add(key string, bracket int, uci, san string, outcome storage.CorpusMove) {
	id := key + "|" + strconv.Itoa(bracket) + "|" + uci
	m, ok := a.moves[id]
	if !ok {
		m = &storage.CorpusMove{PosKey: key, Bracket: bracket, UCI: uci, SAN: san}
		a.moves[id] = m
	}
	m.White += outcome.White
	m.Draws += outcome.Draws
	m.Black += outcome.Black
}

func (a *accumulator) len() int { return len(a.moves) }

func (a *accumulator) drain() []storage.CorpusMove {
	batch := make([]storage.CorpusMove, 0, len(a.moves))
	for _, m := range a.moves {
		batch = append(batch, *m)
	}
	a.moves = make(map[string]*storage.CorpusMove)
	return batch
}

func parseRating(s string) int {
	if s == "" || s == "?" || s == "-" {
		return 0
	}
	r, _ := strconv.Atoi(s)
	return r
}
