package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"repertoire/internal/server/core"
)

// reachCTE binds ?1 to the repertoire id and yields every node key reachable
// from the root. UNION terminates on cycles (a position can repeat).
const reachCTE = `WITH RECURSIVE reach(k) AS (
	SELECT root_key FROM repertoires WHERE id = ?1
	UNION
	SELECT e.to_key FROM edges e JOIN reach r ON e.from_key = r.k WHERE e.repertoire_id = ?1
) `

const edgeSelect = `SELECT e.id, e.repertoire_id, nf.fen, e.san, e.uci, nt.fen,
	s.due_at, s.interval_stage, s.last_result, s.review_count
FROM edges e
JOIN nodes nf ON nf.repertoire_id = e.repertoire_id AND nf.pos_key = e.from_key
JOIN nodes nt ON nt.repertoire_id = e.repertoire_id AND nt.pos_key = e.to_key
JOIN schedules s ON s.edge_id = e.id `

func scanEdge(row interface{ Scan(...any) error }) (core.Edge, error) {
	var (
		e      core.Edge
		due    int64
		result int
	)
	if err := row.Scan(&e.ID, &e.RepertoireID, &e.FromFEN, &e.SAN, &e.UCI, &e.ToFEN,
		&due, &e.Schedule.IntervalStage, &result, &e.Schedule.ReviewCount); err != nil {
		return core.Edge{}, err
	}
	e.Schedule.DueAt = fromMillis(due)
	e.Schedule.LastResult = core.ReviewResult(result)
	return e, nil
}

func collectEdges(rows *sql.Rows) ([]core.Edge, error) {
	defer rows.Close()
	edges := []core.Edge{}
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func insertNode(tx *sql.Tx, repertoireID int64, n NodeRecord) error {
	_, err := tx.Exec(`INSERT OR IGNORE INTO nodes (repertoire_id, pos_key, fen, side_to_move) VALUES (?, ?, ?, ?)`,
		repertoireID, n.Key, n.FEN, n.SideToMove)
	if err != nil {
		return fmt.Errorf("insert node: %w", err)
	}
	return nil
}

// AddEdge commits e together with its target node and a schedule that is due
// at now. Adding an existing (repertoire, from, san) returns the stored edge
// with created=false and leaves its schedule untouched.
func (s *Store) AddEdge(ctx context.Context, e EdgeRecord, now time.Time) (edge core.Edge, created bool, err error) {
	err = s.write(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRow(`SELECT COUNT(*) FROM repertoires WHERE id = ?`, e.RepertoireID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check repertoire: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("%w: id %d", core.ErrRepertoireMissing, e.RepertoireID)
		}

		if err := insertNode(tx, e.RepertoireID, e.From); err != nil {
			return err
		}
		if err := insertNode(tx, e.RepertoireID, e.To); err != nil {
			return err
		}

		res, err := tx.Exec(`INSERT OR IGNORE INTO edges (repertoire_id, from_key, san, uci, to_key) VALUES (?, ?, ?, ?, ?)`,
			e.RepertoireID, e.From.Key, e.SAN, e.UCI, e.To.Key)
		if err != nil {
			return fmt.Errorf("insert edge: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert edge: %w", err)
		}

		if n == 1 {
			created = true
			edgeID, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("edge id: %w", err)
			}
			if _, err := tx.Exec(`INSERT INTO schedules (edge_id, due_at, interval_stage, last_result, review_count) VALUES (?, ?, 0, 0, 0)`,
				edgeID, millis(now)); err != nil {
				return fmt.Errorf("insert schedule: %w", err)
			}
		}

		row := tx.QueryRow(edgeSelect+`WHERE e.repertoire_id = ? AND e.from_key = ? AND e.san = ?`,
			e.RepertoireID, e.From.Key, e.SAN)
		edge, err = scanEdge(row)
		if err != nil {
			return fmt.Errorf("read edge: %w", err)
		}
		return nil
	})
	return edge, created, err
}

// DeleteEdge removes one edge and its schedule. With cascade set, nodes and
// edges no longer reachable from the root go in the same transaction. A
// missing edge is not an error.
func (s *Store) DeleteEdge(ctx context.Context, repertoireID int64, fromKey, san string, cascade bool) (deleted bool, err error) {
	err = s.write(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM schedules WHERE edge_id IN
			(SELECT id FROM edges WHERE repertoire_id = ? AND from_key = ? AND san = ?)`,
			repertoireID, fromKey, san); err != nil {
			return fmt.Errorf("delete schedule: %w", err)
		}
		res, err := tx.Exec(`DELETE FROM edges WHERE repertoire_id = ? AND from_key = ? AND san = ?`,
			repertoireID, fromKey, san)
		if err != nil {
			return fmt.Errorf("delete edge: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete edge: %w", err)
		}
		deleted = n > 0

		if deleted && cascade {
			if _, err := sweep(tx, repertoireID); err != nil {
				return err
			}
		}
		return nil
	})
	return deleted, err
}

// Sweep removes nodes and edges that are no longer reachable from the root
// and returns the number of edges removed.
func (s *Store) Sweep(ctx context.Context, repertoireID int64) (int64, error) {
	var removed int64
	err := s.write(ctx, func(tx *sql.Tx) error {
		var err error
		removed, err = sweep(tx, repertoireID)
		return err
	})
	return removed, err
}

func sweep(tx *sql.Tx, repertoireID int64) (int64, error) {
	if _, err := tx.Exec(reachCTE+`DELETE FROM schedules WHERE edge_id IN
		(SELECT id FROM edges WHERE repertoire_id = ?1 AND from_key NOT IN (SELECT k FROM reach))`,
		repertoireID); err != nil {
		return 0, fmt.Errorf("sweep schedules: %w", err)
	}

	res, err := tx.Exec(reachCTE+`DELETE FROM edges WHERE repertoire_id = ?1 AND from_key NOT IN (SELECT k FROM reach)`,
		repertoireID)
	if err != nil {
		return 0, fmt.Errorf("sweep edges: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep edges: %w", err)
	}

	if _, err := tx.Exec(reachCTE+`DELETE FROM nodes WHERE repertoire_id = ?1 AND pos_key NOT IN (SELECT k FROM reach)`,
		repertoireID); err != nil {
		return 0, fmt.Errorf("sweep nodes: %w", err)
	}
	return removed, nil
}

// EdgesFrom lists the committed edges leaving fromKey in insertion order.
func (s *Store) EdgesFrom(ctx context.Context, repertoireID int64, fromKey string) ([]core.Edge, error) {
	rows, err := s.db.QueryContext(ctx, edgeSelect+`WHERE e.repertoire_id = ? AND e.from_key = ? ORDER BY e.id`,
		repertoireID, fromKey)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	return collectEdges(rows)
}

// AllEdges lists every edge of the repertoire, reachable or not, in
// insertion order.
func (s *Store) AllEdges(ctx context.Context, repertoireID int64) ([]core.Edge, error) {
	rows, err := s.db.QueryContext(ctx, edgeSelect+`WHERE e.repertoire_id = ? ORDER BY e.id`, repertoireID)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	return collectEdges(rows)
}

// IsReachable reports whether key can be reached from the repertoire root.
func (s *Store) IsReachable(ctx context.Context, repertoireID int64, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, reachCTE+`SELECT 1 FROM reach WHERE k = ?2 LIMIT 1`, repertoireID, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reachability: %w", err)
	}
	return true, nil
}

// DueEdges lists reachable edges with due_at <= now, earliest first, ties
// broken by insertion order. sideToMove filters by the side to move at the
// source position ("w"/"b"); empty keeps all.
func (s *Store) DueEdges(ctx context.Context, repertoireID int64, now time.Time, sideToMove string) ([]core.Edge, error) {
	query := reachCTE + edgeSelect + `WHERE e.repertoire_id = ?1 AND s.due_at <= ?2
		AND e.from_key IN (SELECT k FROM reach)`
	args := []any{repertoireID, millis(now)}
	if sideToMove != "" {
		query += ` AND nf.side_to_move = ?3`
		args = append(args, sideToMove)
	}
	query += ` ORDER BY s.due_at, e.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("due edges: %w", err)
	}
	return collectEdges(rows)
}

// ReviewPosition loads the edges leaving fromKey inside a write transaction,
// lets decide compute the new schedules, and stores them atomically.
func (s *Store) ReviewPosition(ctx context.Context, repertoireID int64, fromKey string,
	decide func(edges []core.Edge) ([]ScheduleUpdate, error)) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		rows, err := tx.Query(edgeSelect+`WHERE e.repertoire_id = ? AND e.from_key = ? ORDER BY e.id`,
			repertoireID, fromKey)
		if err != nil {
			return fmt.Errorf("load edges: %w", err)
		}
		edges, err := collectEdges(rows)
		if err != nil {
			return err
		}

		updates, err := decide(edges)
		if err != nil {
			return err
		}

		for _, u := range updates {
			if _, err := tx.Exec(`UPDATE schedules SET due_at = ?, interval_stage = ?, last_result = ?,
				review_count = review_count + 1, reviewed_at = ? WHERE edge_id = ?`,
				millis(u.DueAt), u.IntervalStage, u.LastResult, millis(u.ReviewedAt), u.EdgeID); err != nil {
				return fmt.Errorf("update schedule %d: %w", u.EdgeID, err)
			}
		}
		return nil
	})
}
