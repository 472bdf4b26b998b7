package service

import (
	"context"
	"fmt"

	"repertoire/internal/server/core"
	"repertoire/internal/server/position"
	"repertoire/internal/server/session"
	"repertoire/internal/server/storage"
)

// SelectRepertoire points the cursor at id and rewinds it to the root.
func (s *Service) SelectRepertoire(ctx context.Context, cur *session.Cursor, id int64) error {
	return cur.Exec(func(st *session.State) error {
		if _, err := s.store.GetRepertoire(ctx, id); err != nil {
			return err
		}
		st.Select(id)
		return nil
	})
}

// GetCurrentFEN reads the cursor position.
func (s *Service) GetCurrentFEN(cur *session.Cursor) string {
	return cur.FEN()
}

// SetCurrentFEN jumps the cursor. The starting position is always accepted;
// any other position must be reachable in the selected repertoire.
func (s *Service) SetCurrentFEN(ctx context.Context, cur *session.Cursor, fen string) (string, error) {
	pos, err := position.Parse(fen)
	if err != nil {
		return "", err
	}

	err = cur.Exec(func(st *session.State) error {
		if pos.Key() == position.Start().Key() {
			st.Jump(pos.FEN())
			return nil
		}
		if !st.Selected() {
			return fmt.Errorf("%w: only the starting position is available without a repertoire", core.ErrNotSelected)
		}
		ok, err := s.store.IsReachable(ctx, st.RepertoireID, pos.Key())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: position is not part of repertoire %d", core.ErrMissing, st.RepertoireID)
		}
		st.Jump(pos.FEN())
		return nil
	})
	if err != nil {
		return "", err
	}
	return pos.FEN(), nil
}

// GetCurrentWinrates queries candidate moves at the cursor with the selected
// repertoire's bracket and coverage target. The cursor is not held during
// the query.
func (s *Service) GetCurrentWinrates(ctx context.Context, cur *session.Cursor) (core.PositionWinrate, error) {
	st := cur.Snapshot()

	bracket, coverage := core.DefaultEloBracket, 0.0
	if st.Selected() {
		rep, err := s.store.GetRepertoire(ctx, st.RepertoireID)
		if err != nil {
			return core.PositionWinrate{}, err
		}
		bracket, coverage = rep.EloBracket, rep.CoverageTarget
	}

	return s.winrates.Query(ctx, st.FEN(), bracket, coverage)
}

// ListEdges returns the committed moves at the cursor in insertion order.
func (s *Service) ListEdges(ctx context.Context, cur *session.Cursor) ([]string, error) {
	st := cur.Snapshot()
	if _, err := s.selected(ctx, &st); err != nil {
		return nil, err
	}

	key, err := position.Key(st.FEN())
	if err != nil {
		return nil, err
	}
	edges, err := s.store.EdgesFrom(ctx, st.RepertoireID, key)
	if err != nil {
		return nil, err
	}

	sans := make([]string, 0, len(edges))
	for _, e := range edges {
		sans = append(sans, e.SAN)
	}
	return sans, nil
}

// AddEdge commits san at the cursor. The cursor does not move. Adding an
// existing move returns the stored edge.
func (s *Service) AddEdge(ctx context.Context, cur *session.Cursor, san string) (core.Edge, error) {
	var edge core.Edge
	err := cur.Exec(func(st *session.State) error {
		if _, err := s.selected(ctx, st); err != nil {
			return err
		}
		e, created, err := s.addEdge(ctx, st.RepertoireID, st.FEN(), san)
		if err != nil {
			return err
		}
		if created {
			s.log.Debug().Int64("repertoire", st.RepertoireID).Str("san", e.SAN).Str("from", e.FromFEN).Msg("edge added")
		}
		edge = e
		return nil
	})
	return edge, err
}

// addEdge validates san at fromFEN and stores the edge with a schedule that
// is due immediately.
func (s *Service) addEdge(ctx context.Context, repID int64, fromFEN, san string) (core.Edge, bool, error) {
	from, err := position.Parse(fromFEN)
	if err != nil {
		return core.Edge{}, false, err
	}
	to, mv, err := from.ApplySAN(san)
	if err != nil {
		return core.Edge{}, false, err
	}

	return s.store.AddEdge(ctx, storage.EdgeRecord{
		RepertoireID: repID,
		From:         storage.NodeRecord{Key: from.Key(), FEN: from.FEN(), SideToMove: from.Turn()},
		SAN:          mv.SAN,
		UCI:          mv.UCI,
		To:           storage.NodeRecord{Key: to.Key(), FEN: to.FEN(), SideToMove: to.Turn()},
	}, s.sched.Initial().DueAt)
}

// DeleteEdge removes the committed move san at the cursor. Removing a move
// that is not committed succeeds and reports false.
func (s *Service) DeleteEdge(ctx context.Context, cur *session.Cursor, san string) (bool, error) {
	var deleted bool
	err := cur.Exec(func(st *session.State) error {
		if _, err := s.selected(ctx, st); err != nil {
			return err
		}
		from, err := position.Parse(st.FEN())
		if err != nil {
			return err
		}

		// an illegal move cannot have been committed
		_, mv, err := from.ApplySAN(san)
		if err != nil {
			return nil
		}

		deleted, err = s.store.DeleteEdge(ctx, st.RepertoireID, from.Key(), mv.SAN, s.opts.CascadeDelete)
		if err != nil {
			return err
		}
		if deleted {
			s.log.Debug().Int64("repertoire", st.RepertoireID).Str("san", mv.SAN).Bool("cascade", s.opts.CascadeDelete).Msg("edge deleted")
		}
		return nil
	})
	return deleted, err
}

// PlayMoveSAN advances the cursor along a committed move. It never writes to
// the store.
func (s *Service) PlayMoveSAN(ctx context.Context, cur *session.Cursor, san string) (string, error) {
	var fen string
	err := cur.Exec(func(st *session.State) error {
		if !st.Selected() {
			return core.ErrNotSelected
		}
		from, err := position.Parse(st.FEN())
		if err != nil {
			return err
		}
		to, mv, err := from.ApplySAN(san)
		if err != nil {
			return err
		}

		edges, err := s.store.EdgesFrom(ctx, st.RepertoireID, from.Key())
		if err != nil {
			return err
		}
		if !hasSAN(edges, mv.SAN) {
			return fmt.Errorf("%w: %s is not in the repertoire at this position", core.ErrMissing, mv.SAN)
		}

		st.Push(to.FEN(), mv.SAN)
		fen = to.FEN()
		return nil
	})
	return fen, err
}

// Back undoes the last move played on the cursor. At the start of a walk it
// leaves the cursor in place.
func (s *Service) Back(cur *session.Cursor) string {
	var fen string
	_ = cur.Exec(func(st *session.State) error {
		st.Back()
		fen = st.FEN()
		return nil
	})
	return fen
}

// Board renders the cursor position as text.
func (s *Service) Board(cur *session.Cursor) (core.BoardResponse, error) {
	fen := cur.FEN()
	pos, err := position.Parse(fen)
	if err != nil {
		return core.BoardResponse{}, err
	}
	return core.BoardResponse{FEN: pos.FEN(), Board: pos.ToASCII()}, nil
}

func hasSAN(edges []core.Edge, san string) bool {
	for _, e := range edges {
		if e.SAN == san {
			return true
		}
	}
	return false
}
