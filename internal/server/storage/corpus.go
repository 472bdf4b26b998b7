package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// CorpusMoves returns the counters of every move recorded from posKey in
// bracket.
func (s *Store) CorpusMoves(ctx context.Context, posKey string, bracket int) ([]CorpusMove, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pos_key, bracket, uci, san, white, draws, black
		FROM corpus_moves WHERE pos_key = ? AND bracket = ?`, posKey, bracket)
	if err != nil {
		return nil, fmt.Errorf("corpus moves: %w", err)
	}
	defer rows.Close()

	var moves []CorpusMove
	for rows.Next() {
		var m CorpusMove
		if err := rows.Scan(&m.PosKey, &m.Bracket, &m.UCI, &m.SAN, &m.White, &m.Draws, &m.Black); err != nil {
			return nil, fmt.Errorf("scan corpus move: %w", err)
		}
		moves = append(moves, m)
	}
	return moves, rows.Err()
}

// AddCorpusCounts adds the counters of batch onto the stored ones in a single
// transaction.
func (s *Store) AddCorpusCounts(ctx context.Context, batch []CorpusMove) error {
	if len(batch) == 0 {
		return nil
	}
	return s.write(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO corpus_moves (pos_key, bracket, uci, san, white, draws, black)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (pos_key, bracket, uci) DO UPDATE SET
				white = white + excluded.white,
				draws = draws + excluded.draws,
				black = black + excluded.black`)
		if err != nil {
			return fmt.Errorf("prepare corpus upsert: %w", err)
		}
		defer stmt.Close()

		for _, m := range batch {
			if _, err := stmt.Exec(m.PosKey, m.Bracket, m.UCI, m.SAN, m.White, m.Draws, m.Black); err != nil {
				return fmt.Errorf("upsert corpus move: %w", err)
			}
		}
		return nil
	})
}

// CorpusSize returns the number of (position, bracket, move) rows.
func (s *Store) CorpusSize(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM corpus_moves`).Scan(&n); err != nil {
		return 0, fmt.Errorf("corpus size: %w", err)
	}
	return n, nil
}
