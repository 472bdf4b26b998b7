package winrate

import (
	"context"

	"repertoire/internal/server/position"
	"repertoire/internal/server/storage"
)

type corpusStore interface {
	CorpusMoves(ctx context.Context, posKey string, bracket int) ([]storage.CorpusMove, error)
}

// CorpusCounter reads counts ingested into the local corpus tables. Position
// totals are the sum over recorded moves.
type CorpusCounter struct {
	store corpusStore
}

func NewCorpusCounter(store corpusStore) *CorpusCounter {
	return &CorpusCounter{store: store}
}

func (c *CorpusCounter) Name() string { return "corpus" }

func (c *CorpusCounter) Counts(ctx context.Context, pos *position.Position, bracket int) (Counts, error) {
	rows, err := c.store.CorpusMoves(ctx, pos.Key(), bracket)
	if err != nil {
		return Counts{}, err
	}

	var counts Counts
	for _, r := range rows {
		san := r.SAN
		// rows ingested before SAN was recorded only carry UCI
		if san == "" {
			if s, err := pos.SANForUCI(r.UCI); err == nil {
				san = s
			} else {
				continue
			}
		}
		counts.White += r.White
		counts.Draws += r.Draws
		counts.Black += r.Black
		counts.Moves = append(counts.Moves, MoveCount{
			SAN:   san,
			UCI:   r.UCI,
			White: r.White,
			Draws: r.Draws,
			Black: r.Black,
		})
	}
	return counts, nil
}
