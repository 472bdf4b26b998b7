// FILE: repertoire/internal/server/core/error.go
package core

import (
	"context"
	"errors"
)

// Error codes
const (
	ErrRepertoireNotFound = "REPERTOIRE_NOT_FOUND"
	ErrNotFound           = "NOT_FOUND"
	ErrIllegalMove        = "ILLEGAL_MOVE"
	ErrConflict           = "CONFLICT"
	ErrNoRepertoire       = "NO_REPERTOIRE"
	ErrCorpusUnavailable  = "CORPUS_UNAVAILABLE"
	ErrRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrInvalidContent     = "INVALID_CONTENT_TYPE"
	ErrInvalidRequest     = "INVALID_REQUEST"
	ErrInvalidFEN         = "INVALID_FEN"
	ErrInternalError      = "INTERNAL_ERROR"
	ErrSessionNotFound    = "SESSION_NOT_FOUND"
)

// Error kinds shared across layers. Wrap with fmt.Errorf("...: %w", ...).
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidPosition    = errors.New("invalid FEN")
	ErrIllegal            = errors.New("illegal move")
	ErrMissing            = errors.New("not found")
	ErrRepertoireMissing  = errors.New("repertoire not found")
	ErrSessionMissing     = errors.New("session not found")
	ErrDuplicate          = errors.New("already exists")
	ErrNotSelected        = errors.New("no repertoire selected")
	ErrCorpusUnreachable  = errors.New("winrate corpus unavailable")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// CodeFor maps an error chain to its wire error code.
func CodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidPosition):
		return ErrInvalidFEN
	case errors.Is(err, ErrIllegal):
		return ErrIllegalMove
	case errors.Is(err, ErrRepertoireMissing):
		return ErrRepertoireNotFound
	case errors.Is(err, ErrSessionMissing):
		return ErrSessionNotFound
	case errors.Is(err, ErrMissing):
		return ErrNotFound
	case errors.Is(err, ErrDuplicate):
		return ErrConflict
	case errors.Is(err, ErrNotSelected):
		return ErrNoRepertoire
	case errors.Is(err, ErrCorpusUnreachable), errors.Is(err, context.DeadlineExceeded):
		return ErrCorpusUnavailable
	case errors.Is(err, ErrInvalidInput):
		return ErrInvalidRequest
	default:
		return ErrInternalError
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}
