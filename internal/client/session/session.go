// FILE: repertoire/internal/client/session/session.go
package session

import (
	"repertoire/internal/client/api"
	"repertoire/internal/server/core"
)

// Session holds the REPL state mirrored from the server cursor
type Session struct {
	APIBaseURL string
	Client     *api.Client
	Verbose    bool

	Repertoire *core.Repertoire
	FEN        string
	Moves      []string // played since the last jump
}

func (s *Session) GetAPIBaseURL() string            { return s.APIBaseURL }
func (s *Session) SetAPIBaseURL(url string)         { s.APIBaseURL = url }
func (s *Session) GetClient() *api.Client           { return s.Client }
func (s *Session) IsVerbose() bool                  { return s.Verbose }
func (s *Session) GetRepertoire() *core.Repertoire  { return s.Repertoire }
func (s *Session) SetRepertoire(r *core.Repertoire) { s.Repertoire = r }
func (s *Session) GetFEN() string                   { return s.FEN }
func (s *Session) GetMoves() []string               { return s.Moves }

// SetCursor records the server cursor after a command
func (s *Session) SetCursor(cur *core.CursorResponse) {
	s.FEN = cur.FEN
	s.Moves = append(s.Moves[:0], cur.Moves...)
	if cur.RepertoireID == 0 {
		s.Repertoire = nil
	}
}
