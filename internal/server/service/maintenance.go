package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"repertoire/internal/server/core"
	"repertoire/internal/server/storage"
)

// Sweep removes the parts of a repertoire no longer reachable from its root.
func (s *Service) Sweep(ctx context.Context, id int64) (int64, error) {
	if _, err := s.store.GetRepertoire(ctx, id); err != nil {
		return 0, err
	}
	removed, err := s.store.Sweep(ctx, id)
	if err != nil {
		return 0, err
	}
	s.log.Info().Int64("repertoire", id).Int64("edges_removed", removed).Msg("repertoire swept")
	return removed, nil
}

// Export writes a compressed backup of one repertoire to w.
func (s *Service) Export(ctx context.Context, id int64, w io.Writer) (int, error) {
	b, err := s.store.Snapshot(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := storage.WriteBackup(w, b); err != nil {
		return 0, err
	}
	return len(b.Edges), nil
}

// Import recreates a repertoire from a backup, replaying every edge through
// move validation and restoring its schedule. name overrides the stored name
// when set. A failed import leaves nothing behind.
func (s *Service) Import(ctx context.Context, r io.Reader, name string) (core.Repertoire, error) {
	b, err := storage.ReadBackup(r)
	if err != nil {
		return core.Repertoire{}, err
	}
	if strings.TrimSpace(name) == "" {
		name = b.Repertoire.Name
	}

	rep, err := s.Create(ctx, name, b.Repertoire.Side, b.Repertoire.EloBracket)
	if err != nil {
		return core.Repertoire{}, err
	}

	if err := s.restore(ctx, &rep, b); err != nil {
		if derr := s.store.DeleteRepertoire(ctx, rep.ID); derr != nil {
			s.log.Error().Err(derr).Int64("repertoire", rep.ID).Msg("failed to remove partial import")
		}
		return core.Repertoire{}, err
	}

	s.log.Info().Int64("repertoire", rep.ID).Int("edges", len(b.Edges)).Msg("repertoire imported")
	return rep, nil
}

func (s *Service) restore(ctx context.Context, rep *core.Repertoire, b storage.Backup) error {
	if b.Repertoire.CoverageTarget != 0 {
		rep.CoverageTarget = b.Repertoire.CoverageTarget
		if err := s.Update(ctx, *rep); err != nil {
			return err
		}
	}

	for i, e := range b.Edges {
		edge, _, err := s.addEdge(ctx, rep.ID, e.FromFEN, e.SAN)
		if err != nil {
			return fmt.Errorf("edge %d (%s at %s): %w", i, e.SAN, e.FromFEN, err)
		}
		if err := s.store.RestoreSchedule(ctx, edge.ID, e.Schedule); err != nil {
			return err
		}
	}
	return nil
}
