// FILE: repertoire/internal/server/session/cursor.go
package session

import (
	"sync"
	"time"

	"repertoire/internal/server/position"
)

// Snapshot is one step of the cursor's walk through the graph.
type Snapshot struct {
	FEN          string `json:"fen"`
	PreviousMove string `json:"previousMove"`
}

// State is the mutable content of a cursor. Operations receive a copy and
// the cursor keeps it only if they succeed.
type State struct {
	RepertoireID int64 // 0 when nothing is selected
	snapshots    []Snapshot
}

func newState() State {
	return State{snapshots: []Snapshot{{FEN: position.StartingFEN}}}
}

func (s *State) clone() State {
	c := State{RepertoireID: s.RepertoireID, snapshots: make([]Snapshot, len(s.snapshots))}
	copy(c.snapshots, s.snapshots)
	return c
}

// Current returns the latest snapshot
func (s *State) Current() Snapshot {
	return s.snapshots[len(s.snapshots)-1]
}

func (s *State) FEN() string {
	return s.Current().FEN
}

// Selected reports whether a repertoire is selected.
func (s *State) Selected() bool {
	return s.RepertoireID != 0
}

// Push records a move to fen.
func (s *State) Push(fen, move string) {
	s.snapshots = append(s.snapshots, Snapshot{FEN: fen, PreviousMove: move})
}

// Jump replaces the walk with a single position.
func (s *State) Jump(fen string) {
	s.snapshots = []Snapshot{{FEN: fen}}
}

// Back drops the last move. It returns false at the start of the walk.
func (s *State) Back() bool {
	if len(s.snapshots) < 2 {
		return false
	}
	s.snapshots = s.snapshots[:len(s.snapshots)-1]
	return true
}

// Select switches repertoire and rewinds to the starting position.
func (s *State) Select(repID int64) {
	s.RepertoireID = repID
	s.Jump(position.StartingFEN)
}

// Moves lists the moves played since the last jump.
func (s *State) Moves() []string {
	moves := make([]string, 0, len(s.snapshots)-1)
	for _, snap := range s.snapshots[1:] {
		moves = append(moves, snap.PreviousMove)
	}
	return moves
}

// Cursor is one client's position in one repertoire. Calls on a cursor are
// serialized.
type Cursor struct {
	mu       sync.Mutex
	state    State
	lastUsed time.Time
}

func NewCursor() *Cursor {
	return &Cursor{state: newState(), lastUsed: time.Now()}
}

// Exec runs fn on a copy of the state and commits it when fn returns nil.
func (c *Cursor) Exec(fn func(st *State) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.state.clone()
	if err := fn(&next); err != nil {
		return err
	}
	c.state = next
	c.lastUsed = time.Now()
	return nil
}

// Snapshot returns a copy of the current state.
func (c *Cursor) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

func (c *Cursor) FEN() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.FEN()
}

func (c *Cursor) RepertoireID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.RepertoireID
}

// detach clears the selection if it points at repID.
func (c *Cursor) detach(repID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.RepertoireID != repID {
		return false
	}
	c.state = newState()
	return true
}

func (c *Cursor) idleSince(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.lastUsed)
}

func (c *Cursor) touch() {
	c.mu.Lock()
	c.lastUsed = time.Now()
	c.mu.Unlock()
}
