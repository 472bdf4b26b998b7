// FILE: repertoire/internal/server/session/registry.go
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"repertoire/internal/server/core"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultTTL             = 24 * time.Hour
	DefaultCleanupInterval = 10 * time.Minute
)

// Registry holds the cursors of connected clients plus a default cursor for
// clients that never open a session.
type Registry struct {
	mu      sync.RWMutex
	cursors map[string]*Cursor
	def     *Cursor
	ttl     time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

func NewRegistry(ttl time.Duration, log zerolog.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		cursors: make(map[string]*Cursor),
		def:     NewCursor(),
		ttl:     ttl,
		now:     time.Now,
		log:     log.With().Str("component", "session").Logger(),
	}
}

// Default returns the shared cursor.
func (r *Registry) Default() *Cursor {
	return r.def
}

// Create opens a new cursor and returns its id.
func (r *Registry) Create() (string, *Cursor) {
	id := uuid.New().String()
	c := NewCursor()

	r.mu.Lock()
	r.cursors[id] = c
	r.mu.Unlock()

	r.log.Debug().Str("session", id).Msg("session created")
	return id, c
}

// Get returns the cursor for id; an empty id selects the default cursor.
func (r *Registry) Get(id string) (*Cursor, error) {
	if id == "" {
		return r.def, nil
	}
	r.mu.RLock()
	c, ok := r.cursors[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionMissing, id)
	}
	c.touch()
	return c, nil
}

// Delete closes a session. Closing an unknown session is not an error.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.cursors, id)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cursors)
}

// Detach rewinds every cursor that has repID selected and returns how many
// were reset.
func (r *Registry) Detach(repID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	if r.def.detach(repID) {
		n++
	}
	for _, c := range r.cursors {
		if c.detach(repID) {
			n++
		}
	}
	return n
}

// RunCleanupJob evicts idle sessions until ctx is done.
func (r *Registry) RunCleanupJob(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.cleanupExpired(); n > 0 {
				r.log.Info().Int("evicted", n).Int("active", r.Len()).Msg("cleanup: idle sessions evicted")
			}
		}
	}
}

func (r *Registry) cleanupExpired() int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, c := range r.cursors {
		if c.idleSince(now) > r.ttl {
			delete(r.cursors, id)
			n++
		}
	}
	return n
}
