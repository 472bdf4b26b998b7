package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"repertoire/internal/server/core"

	"github.com/klauspost/compress/zstd"
)

const backupVersion = 1

// Backup is the portable form of one repertoire.
type Backup struct {
	Version    int             `json:"version"`
	Repertoire core.Repertoire `json:"repertoire"`
	Edges      []core.Edge     `json:"edges"`
}

// Snapshot collects a repertoire and all of its edges in insertion order.
func (s *Store) Snapshot(ctx context.Context, repertoireID int64) (Backup, error) {
	rep, err := s.GetRepertoire(ctx, repertoireID)
	if err != nil {
		return Backup{}, err
	}
	edges, err := s.AllEdges(ctx, repertoireID)
	if err != nil {
		return Backup{}, err
	}
	return Backup{Version: backupVersion, Repertoire: rep, Edges: edges}, nil
}

// RestoreSchedule overwrites the schedule of an edge, review count included.
func (s *Store) RestoreSchedule(ctx context.Context, edgeID int64, st core.ScheduleState) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE schedules SET due_at = ?, interval_stage = ?, last_result = ?, review_count = ?
			WHERE edge_id = ?`,
			millis(st.DueAt), st.IntervalStage, int(st.LastResult), st.ReviewCount, edgeID)
		if err != nil {
			return fmt.Errorf("restore schedule %d: %w", edgeID, err)
		}
		return nil
	})
}

// WriteBackup encodes b as zstd-compressed JSON.
func WriteBackup(w io.Writer, b Backup) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(b); err != nil {
		enc.Close()
		return fmt.Errorf("encode backup: %w", err)
	}
	return enc.Close()
}

// ReadBackup decodes a document written by WriteBackup.
func ReadBackup(r io.Reader) (Backup, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return Backup{}, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	var b Backup
	if err := json.NewDecoder(dec).Decode(&b); err != nil {
		return Backup{}, fmt.Errorf("%w: decode backup: %v", core.ErrInvalidInput, err)
	}
	if b.Version != backupVersion {
		return Backup{}, fmt.Errorf("%w: unsupported backup version %d", core.ErrInvalidInput, b.Version)
	}
	return b, nil
}
