package service

import (
	"context"
	"fmt"
	"time"

	"repertoire/internal/server/core"
	"repertoire/internal/server/position"
	"repertoire/internal/server/scheduler"
	"repertoire/internal/server/session"
	"repertoire/internal/server/storage"
)

// GetDueFENs lists the positions of the selected repertoire that have a due
// edge, earliest due first.
func (s *Service) GetDueFENs(ctx context.Context, cur *session.Cursor) ([]string, error) {
	st := cur.Snapshot()
	rep, err := s.selected(ctx, &st)
	if err != nil {
		return nil, err
	}
	return s.dueFENs(ctx, rep)
}

// TestCurrentPositionWithDueDate judges san at the cursor and reschedules.
// A matching edge advances; a wrong answer resets every edge at the position
// and makes it due again. An illegal move is rejected without touching any
// schedule. A correct answer moves the cursor along the edge.
func (s *Service) TestCurrentPositionWithDueDate(ctx context.Context, cur *session.Cursor, san string) (core.TestResult, error) {
	var result core.TestResult
	err := cur.Exec(func(st *session.State) error {
		if _, err := s.selected(ctx, st); err != nil {
			return err
		}
		from, to, mv, err := applyAtCursor(st, san)
		if err != nil {
			return err
		}

		result = core.TestResult{Submitted: mv.SAN}
		var stageAfter int
		err = s.store.ReviewPosition(ctx, st.RepertoireID, from.Key(), func(edges []core.Edge) ([]storage.ScheduleUpdate, error) {
			if len(edges) == 0 {
				return nil, fmt.Errorf("%w: no committed move at this position", core.ErrMissing)
			}
			match, expected := scheduler.Judge(edges, mv.SAN)
			result.ExpectedSAN = expected

			if match != nil {
				next := s.sched.Review(match.Schedule, true)
				result.Correct = true
				result.Schedule = next
				stageAfter = next.IntervalStage
				return []storage.ScheduleUpdate{update(match.ID, next, s.sched.Now())}, nil
			}

			updates := make([]storage.ScheduleUpdate, 0, len(edges))
			for i, e := range edges {
				next := s.sched.Review(e.Schedule, false)
				if i == 0 {
					result.Schedule = next
				}
				updates = append(updates, update(e.ID, next, s.sched.Now()))
			}
			return updates, nil
		})
		if err != nil {
			return err
		}

		s.store.RecordReview(storage.ReviewRecord{
			RepertoireID: st.RepertoireID,
			FromKey:      from.Key(),
			Submitted:    mv.SAN,
			Correct:      result.Correct,
			StageAfter:   stageAfter,
			ReviewedAt:   s.sched.Now(),
		})

		if result.Correct {
			st.Push(to.FEN(), mv.SAN)
		}
		result.FEN = st.FEN()
		return nil
	})
	if err != nil {
		return core.TestResult{}, err
	}

	s.log.Debug().Int64("repertoire", cur.RepertoireID()).Str("san", result.Submitted).
		Bool("correct", result.Correct).Int("stage", result.Schedule.IntervalStage).Msg("practice answer")
	return result, nil
}

// TestCurrentPosition judges san at the cursor without touching schedules.
// A correct answer moves the cursor along the edge.
func (s *Service) TestCurrentPosition(ctx context.Context, cur *session.Cursor, san string) (core.TestResult, error) {
	var result core.TestResult
	err := cur.Exec(func(st *session.State) error {
		if _, err := s.selected(ctx, st); err != nil {
			return err
		}
		from, to, mv, err := applyAtCursor(st, san)
		if err != nil {
			return err
		}

		edges, err := s.store.EdgesFrom(ctx, st.RepertoireID, from.Key())
		if err != nil {
			return err
		}
		if len(edges) == 0 {
			return fmt.Errorf("%w: no committed move at this position", core.ErrMissing)
		}

		match, expected := scheduler.Judge(edges, mv.SAN)
		result = core.TestResult{Submitted: mv.SAN, ExpectedSAN: expected, Correct: match != nil}
		if match != nil {
			result.Schedule = match.Schedule
			st.Push(to.FEN(), mv.SAN)
		}
		result.FEN = st.FEN()
		return nil
	})
	return result, err
}

func applyAtCursor(st *session.State, san string) (*position.Position, *position.Position, position.Move, error) {
	from, err := position.Parse(st.FEN())
	if err != nil {
		return nil, nil, position.Move{}, err
	}
	to, mv, err := from.ApplySAN(san)
	if err != nil {
		return nil, nil, position.Move{}, err
	}
	return from, to, mv, nil
}

func update(edgeID int64, st core.ScheduleState, at time.Time) storage.ScheduleUpdate {
	return storage.ScheduleUpdate{
		EdgeID:        edgeID,
		DueAt:         st.DueAt,
		IntervalStage: st.IntervalStage,
		LastResult:    int(st.LastResult),
		ReviewedAt:    at,
	}
}
