package service

import (
	"context"
	"fmt"
	"strings"

	"repertoire/internal/server/core"
	"repertoire/internal/server/position"
	"repertoire/internal/server/scheduler"
	"repertoire/internal/server/storage"
)

const maxNameLength = 100

func validateRepertoire(name string, elo int, coverage float64) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return "", fmt.Errorf("%w: name must be 1-%d characters", core.ErrInvalidInput, maxNameLength)
	}
	if !core.ValidBracket(elo) {
		return "", fmt.Errorf("%w: elo must be one of %v", core.ErrInvalidInput, core.EloBrackets)
	}
	if coverage < 0 || coverage > 100 {
		return "", fmt.Errorf("%w: coverage must be between 0 and 100", core.ErrInvalidInput)
	}
	return name, nil
}

func rootNode() storage.NodeRecord {
	start := position.Start()
	return storage.NodeRecord{Key: start.Key(), FEN: start.FEN(), SideToMove: start.Turn()}
}

// List returns all repertoires.
func (s *Service) List(ctx context.Context) ([]core.Repertoire, error) {
	return s.store.ListRepertoires(ctx)
}

// Create adds an empty repertoire rooted at the starting position.
func (s *Service) Create(ctx context.Context, name string, side core.Side, elo int) (core.Repertoire, error) {
	name, err := validateRepertoire(name, elo, 0)
	if err != nil {
		return core.Repertoire{}, err
	}
	side, err = core.ParseSide(string(side))
	if err != nil {
		return core.Repertoire{}, err
	}

	rep, err := s.store.CreateRepertoire(ctx, core.Repertoire{
		Name:       name,
		Side:       side,
		EloBracket: elo,
		CreatedAt:  s.sched.Now(),
	}, rootNode())
	if err != nil {
		return core.Repertoire{}, err
	}

	s.log.Info().Int64("repertoire", rep.ID).Str("name", rep.Name).Str("side", string(rep.Side)).Msg("repertoire created")
	return rep, nil
}

// Update changes name, elo bracket and coverage target. The side of a
// repertoire never changes.
func (s *Service) Update(ctx context.Context, r core.Repertoire) error {
	name, err := validateRepertoire(r.Name, r.EloBracket, r.CoverageTarget)
	if err != nil {
		return err
	}
	r.Name = name
	return s.store.UpdateRepertoire(ctx, r)
}

// Get returns one repertoire.
func (s *Service) Get(ctx context.Context, id int64) (core.Repertoire, error) {
	return s.store.GetRepertoire(ctx, id)
}

// Delete removes a repertoire with its graph and schedules and rewinds every
// cursor that had it selected. Deleting a missing repertoire succeeds.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteRepertoire(ctx, id); err != nil {
		return err
	}
	n := s.sessions.Detach(id)
	s.log.Info().Int64("repertoire", id).Int("cursors_reset", n).Msg("repertoire deleted")
	return nil
}

// CountDueNodes counts the distinct positions with a due edge.
func (s *Service) CountDueNodes(ctx context.Context, id int64) (int, error) {
	rep, err := s.store.GetRepertoire(ctx, id)
	if err != nil {
		return 0, err
	}
	fens, err := s.dueFENs(ctx, rep)
	if err != nil {
		return 0, err
	}
	return len(fens), nil
}

// ReviewStats summarizes practice progress of a repertoire.
func (s *Service) ReviewStats(ctx context.Context, id int64) (core.ReviewStats, error) {
	rep, err := s.store.GetRepertoire(ctx, id)
	if err != nil {
		return core.ReviewStats{}, err
	}
	return s.store.ReviewStats(ctx, id, s.sched.Now(), s.sideFilter(rep))
}

func (s *Service) dueFENs(ctx context.Context, rep core.Repertoire) ([]string, error) {
	edges, err := s.store.DueEdges(ctx, rep.ID, s.sched.Now(), s.sideFilter(rep))
	if err != nil {
		return nil, err
	}
	return scheduler.DueFENs(edges), nil
}
