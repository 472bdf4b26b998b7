package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"repertoire/internal/server/core"
)

// masteredStage is the interval stage from which an edge counts as learned.
const masteredStage = 4

// RecordReview asynchronously appends a practice answer to the review log.
func (s *Store) RecordReview(record ReviewRecord) {
	s.enqueue(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO review_log (repertoire_id, from_key, submitted, correct, stage_after, reviewed_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			record.RepertoireID, record.FromKey, record.Submitted, record.Correct,
			record.StageAfter, millis(record.ReviewedAt))
		return err
	})
}

// ReviewStats summarizes edges, due positions and review history. Due
// positions use the same reachability and side filter as DueEdges.
func (s *Store) ReviewStats(ctx context.Context, repertoireID int64, now time.Time, sideToMove string) (core.ReviewStats, error) {
	stats := core.ReviewStats{RepertoireID: repertoireID}

	if _, err := getRepertoire(ctx, s.db, repertoireID); err != nil {
		return stats, err
	}

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(CASE WHEN s.interval_stage >= ? THEN 1 ELSE 0 END), 0)
		FROM edges e JOIN schedules s ON s.edge_id = e.id WHERE e.repertoire_id = ?`,
		masteredStage, repertoireID).Scan(&stats.Edges, &stats.Mastered)
	if err != nil {
		return stats, fmt.Errorf("edge stats: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(correct), 0) FROM review_log WHERE repertoire_id = ?`,
		repertoireID).Scan(&stats.Reviews, &stats.Correct)
	if err != nil {
		return stats, fmt.Errorf("review stats: %w", err)
	}
	if stats.Reviews > 0 {
		stats.Accuracy = float64(stats.Correct) * 100 / float64(stats.Reviews)
	}

	due, err := s.DueEdges(ctx, repertoireID, now, sideToMove)
	if err != nil {
		return stats, err
	}
	seen := make(map[string]bool, len(due))
	for _, e := range due {
		if !seen[e.FromFEN] {
			seen[e.FromFEN] = true
			stats.DuePositions++
		}
	}
	return stats, nil
}
