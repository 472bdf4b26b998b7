package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"repertoire/internal/server/core"
)

const repertoireColumns = `id, name, side, elo_bracket, coverage_target, created_at`

func scanRepertoire(row interface{ Scan(...any) error }) (core.Repertoire, error) {
	var (
		r       core.Repertoire
		side    string
		created int64
	)
	if err := row.Scan(&r.ID, &r.Name, &side, &r.EloBracket, &r.CoverageTarget, &created); err != nil {
		return core.Repertoire{}, err
	}
	r.Side = core.Side(side)
	r.CreatedAt = fromMillis(created)
	return r, nil
}

// CreateRepertoire inserts r with its root node and returns it with the
// assigned id.
func (s *Store) CreateRepertoire(ctx context.Context, r core.Repertoire, root NodeRecord) (core.Repertoire, error) {
	err := s.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`INSERT INTO repertoires (name, side, elo_bracket, coverage_target, root_key, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			r.Name, string(r.Side), r.EloBracket, r.CoverageTarget, root.Key, millis(r.CreatedAt))
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: repertoire %q", core.ErrDuplicate, r.Name)
			}
			return fmt.Errorf("insert repertoire: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("repertoire id: %w", err)
		}
		r.ID = id

		if err := insertNode(tx, id, root); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return core.Repertoire{}, err
	}
	r.CreatedAt = fromMillis(millis(r.CreatedAt))
	return r, nil
}

// ListRepertoires returns all repertoires ordered by id.
func (s *Store) ListRepertoires(ctx context.Context) ([]core.Repertoire, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+repertoireColumns+` FROM repertoires ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list repertoires: %w", err)
	}
	defer rows.Close()

	reps := []core.Repertoire{}
	for rows.Next() {
		r, err := scanRepertoire(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repertoire: %w", err)
		}
		reps = append(reps, r)
	}
	return reps, rows.Err()
}

// GetRepertoire loads one repertoire.
func (s *Store) GetRepertoire(ctx context.Context, id int64) (core.Repertoire, error) {
	return getRepertoire(ctx, s.db, id)
}

func getRepertoire(ctx context.Context, q queryer, id int64) (core.Repertoire, error) {
	row := q.QueryRowContext(ctx, `SELECT `+repertoireColumns+` FROM repertoires WHERE id = ?`, id)
	r, err := scanRepertoire(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Repertoire{}, fmt.Errorf("%w: id %d", core.ErrRepertoireMissing, id)
	}
	if err != nil {
		return core.Repertoire{}, fmt.Errorf("get repertoire: %w", err)
	}
	return r, nil
}

// RootKey returns the key of the repertoire's root node.
func (s *Store) RootKey(ctx context.Context, id int64) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx, `SELECT root_key FROM repertoires WHERE id = ?`, id).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: id %d", core.ErrRepertoireMissing, id)
	}
	if err != nil {
		return "", fmt.Errorf("root key: %w", err)
	}
	return key, nil
}

// UpdateRepertoire changes name, elo bracket and coverage target. Side is
// never written.
func (s *Store) UpdateRepertoire(ctx context.Context, r core.Repertoire) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE repertoires SET name = ?, elo_bracket = ?, coverage_target = ? WHERE id = ?`,
			r.Name, r.EloBracket, r.CoverageTarget, r.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: repertoire %q", core.ErrDuplicate, r.Name)
			}
			return fmt.Errorf("update repertoire: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update repertoire: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: id %d", core.ErrRepertoireMissing, r.ID)
		}
		return nil
	})
}

// DeleteRepertoire removes the repertoire with its graph, schedules and
// review log. Deleting a missing id succeeds.
func (s *Store) DeleteRepertoire(ctx context.Context, id int64) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		stmts := []string{
			`DELETE FROM review_log WHERE repertoire_id = ?`,
			`DELETE FROM schedules WHERE edge_id IN (SELECT id FROM edges WHERE repertoire_id = ?)`,
			`DELETE FROM edges WHERE repertoire_id = ?`,
			`DELETE FROM nodes WHERE repertoire_id = ?`,
			`DELETE FROM repertoires WHERE id = ?`,
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(stmt, id); err != nil {
				return fmt.Errorf("delete repertoire %d: %w", id, err)
			}
		}
		return nil
	})
}
