// FILE: repertoire/internal/server/service/service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"repertoire/internal/server/core"
	"repertoire/internal/server/scheduler"
	"repertoire/internal/server/session"
	"repertoire/internal/server/storage"

	"github.com/rs/zerolog"
)

// Winrates answers candidate-move statistics for a position.
type Winrates interface {
	Query(ctx context.Context, fen string, bracket int, coverage float64) (core.PositionWinrate, error)
}

type Options struct {
	CascadeDelete bool // DeleteEdge also sweeps unreachable nodes
	OwnMovesOnly  bool // due lists keep only positions where the repertoire side moves
}

// Service coordinates the repertoire store, the winrate source, the
// scheduler and the session cursors.
type Service struct {
	store    *storage.Store
	winrates Winrates
	sched    *scheduler.Scheduler
	sessions *session.Registry
	opts     Options
	log      zerolog.Logger
}

// New creates a new service instance
func New(store *storage.Store, winrates Winrates, sched *scheduler.Scheduler,
	sessions *session.Registry, opts Options, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		winrates: winrates,
		sched:    sched,
		sessions: sessions,
		opts:     opts,
		log:      log.With().Str("component", "service").Logger(),
	}
}

// Sessions exposes the cursor registry to the transport layer.
func (s *Service) Sessions() *session.Registry {
	return s.sessions
}

// GetStorageHealth returns the storage component status
func (s *Service) GetStorageHealth() string {
	if s.store == nil {
		return "disabled"
	}
	if s.store.IsHealthy() {
		return "ok"
	}
	return "degraded"
}

// RunCleanupJob evicts idle sessions until ctx is done.
func (s *Service) RunCleanupJob(ctx context.Context, interval time.Duration) {
	s.sessions.RunCleanupJob(ctx, interval)
}

// Shutdown gracefully shuts down the service
func (s *Service) Shutdown(timeout time.Duration) error {
	var errs []error

	done := make(chan error, 1)
	go func() { done <- s.store.Close() }()

	select {
	case err := <-done:
		if err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	case <-time.After(timeout):
		errs = append(errs, fmt.Errorf("storage: close timed out"))
	}

	return errors.Join(errs...)
}

// sideFilter returns the side-to-move restriction for due lists.
func (s *Service) sideFilter(rep core.Repertoire) string {
	if !s.opts.OwnMovesOnly {
		return ""
	}
	return rep.Side.ToMove()
}

// selected resolves the repertoire a cursor state points at.
func (s *Service) selected(ctx context.Context, st *session.State) (core.Repertoire, error) {
	if !st.Selected() {
		return core.Repertoire{}, core.ErrNotSelected
	}
	return s.store.GetRepertoire(ctx, st.RepertoireID)
}
