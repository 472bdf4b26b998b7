// FILE: repertoire/internal/server/winrate/winrate.go
package winrate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"repertoire/internal/server/core"
	"repertoire/internal/server/position"

	"github.com/rs/zerolog"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultMinGames = 1
)

// MoveCount holds outcome counters for one candidate move.
type MoveCount struct {
	SAN   string
	UCI   string
	White int64
	Draws int64
	Black int64
}

func (m MoveCount) Total() int64 { return m.White + m.Draws + m.Black }

// Counts is what a backend knows about one position. Position totals may
// exceed the sum over Moves when the backend omits rare moves.
type Counts struct {
	White int64
	Draws int64
	Black int64
	Moves []MoveCount
}

// Counter fetches raw counts for a position in a rating bracket. It must
// honor ctx cancellation.
type Counter interface {
	Counts(ctx context.Context, pos *position.Position, bracket int) (Counts, error)
	Name() string
}

// Source answers winrate queries on top of a Counter: bracket validation,
// a per-query timeout, aggregation and coverage trimming.
type Source struct {
	counter  Counter
	timeout  time.Duration
	minGames int64
	log      zerolog.Logger
}

func NewSource(counter Counter, timeout time.Duration, minGames int, log zerolog.Logger) *Source {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if minGames < 0 {
		minGames = DefaultMinGames
	}
	return &Source{
		counter:  counter,
		timeout:  timeout,
		minGames: int64(minGames),
		log:      log.With().Str("component", "winrate").Str("source", counter.Name()).Logger(),
	}
}

// Query aggregates candidate moves at fen for bracket and trims them to the
// coverage target (percent). A position without games yields Total 0 and an
// empty move list.
func (s *Source) Query(ctx context.Context, fen string, bracket int, coverage float64) (core.PositionWinrate, error) {
	if !core.ValidBracket(bracket) {
		return core.PositionWinrate{}, fmt.Errorf("%w: unknown elo bracket %d", core.ErrInvalidInput, bracket)
	}
	if coverage < 0 || coverage > 100 {
		return core.PositionWinrate{}, fmt.Errorf("%w: coverage %.1f outside 0..100", core.ErrInvalidInput, coverage)
	}
	pos, err := position.Parse(fen)
	if err != nil {
		return core.PositionWinrate{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	counts, err := s.counter.Counts(ctx, pos, bracket)
	if err != nil {
		s.log.Warn().Err(err).Str("fen", pos.FEN()).Int("bracket", bracket).Dur("elapsed", time.Since(start)).Msg("winrate query failed")
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return core.PositionWinrate{}, fmt.Errorf("%w: %w", core.ErrCorpusUnreachable, err)
		}
		if errors.Is(err, core.ErrCorpusUnreachable) {
			return core.PositionWinrate{}, err
		}
		return core.PositionWinrate{}, fmt.Errorf("%w: %v", core.ErrCorpusUnreachable, err)
	}

	s.log.Debug().Str("fen", pos.FEN()).Int("bracket", bracket).Int("moves", len(counts.Moves)).
		Dur("elapsed", time.Since(start)).Msg("winrate query")

	return Aggregate(counts, coverage, s.minGames), nil
}

// Aggregate turns counts into rates (percent) sorted by descending chance.
// With 0 < coverage < 100 the list is cut to the shortest prefix whose
// cumulative chance reaches coverage; otherwise, or when no prefix reaches
// it, every move with at least minGames games is returned.
func Aggregate(c Counts, coverage float64, minGames int64) core.PositionWinrate {
	total := c.White + c.Draws + c.Black
	if moveSum := sumMoves(c.Moves); moveSum > total {
		total = moveSum
	}

	result := core.PositionWinrate{Total: total, Moves: []core.MoveWinrate{}}
	if total == 0 {
		return result
	}

	white, draws, black := c.White, c.Draws, c.Black
	if white+draws+black == 0 {
		for _, m := range c.Moves {
			white += m.White
			draws += m.Draws
			black += m.Black
		}
	}
	result.WhiteRate = percent(white, total)
	result.DrawRate = percent(draws, total)
	result.BlackRate = percent(black, total)

	moves := make([]core.MoveWinrate, 0, len(c.Moves))
	for _, m := range c.Moves {
		mt := m.Total()
		if mt == 0 {
			continue
		}
		moves = append(moves, core.MoveWinrate{
			SAN:       m.SAN,
			UCI:       m.UCI,
			Total:     mt,
			WhiteRate: percent(m.White, mt),
			DrawRate:  percent(m.Draws, mt),
			BlackRate: percent(m.Black, mt),
			Chance:    percent(mt, total),
		})
	}
	sort.SliceStable(moves, func(i, j int) bool {
		if moves[i].Total != moves[j].Total {
			return moves[i].Total > moves[j].Total
		}
		return moves[i].SAN < moves[j].SAN
	})

	result.Moves = trim(moves, coverage, minGames)
	return result
}

func trim(moves []core.MoveWinrate, coverage float64, minGames int64) []core.MoveWinrate {
	if coverage > 0 && coverage < 100 {
		// chance is derived from integer counts; tolerate float rounding
		const eps = 1e-9
		cum := 0.0
		for i, m := range moves {
			cum += m.Chance
			if cum+eps >= coverage {
				return moves[:i+1]
			}
		}
	}

	kept := make([]core.MoveWinrate, 0, len(moves))
	for _, m := range moves {
		if m.Total >= minGames {
			kept = append(kept, m)
		}
	}
	return kept
}

func sumMoves(moves []MoveCount) int64 {
	var n int64
	for _, m := range moves {
		n += m.Total()
	}
	return n
}

func percent(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}
