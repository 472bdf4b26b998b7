// FILE: repertoire/internal/server/processor/command.go
package processor

import (
	"repertoire/internal/server/core"
)

// CommandType defines the type of command being executed
type CommandType int

const (
	CmdListRepertoires CommandType = iota
	CmdCreateRepertoire
	CmdGetRepertoire
	CmdUpdateRepertoire
	CmdDeleteRepertoire
	CmdCountDue
	CmdReviewStats
	CmdSweep
	CmdCreateSession
	CmdDeleteSession
	CmdSelectRepertoire
	CmdGetCursor
	CmdSetFEN
	CmdGetWinrates
	CmdListEdges
	CmdAddEdge
	CmdDeleteEdge
	CmdPlayMove
	CmdBack
	CmdGetDue
	CmdTestMove
	CmdDrillMove
	CmdGetBoard
)

// Command is a unified structure for all processor operations
type Command struct {
	Type         CommandType
	SessionID    string // cursor scope; empty selects the default cursor
	RepertoireID int64  // for repertoire-specific commands
	Args         any    // Command-specific arguments
}

// ProcessorResponse wraps the response with metadata
type ProcessorResponse struct {
	Success bool                `json:"success"`
	Data    any                 `json:"data,omitempty"`
	Error   *core.ErrorResponse `json:"error,omitempty"`
}

func NewListRepertoiresCommand() Command {
	return Command{Type: CmdListRepertoires}
}

func NewCreateRepertoireCommand(req core.CreateRepertoireRequest) Command {
	return Command{Type: CmdCreateRepertoire, Args: req}
}

func NewGetRepertoireCommand(id int64) Command {
	return Command{Type: CmdGetRepertoire, RepertoireID: id}
}

func NewUpdateRepertoireCommand(id int64, req core.UpdateRepertoireRequest) Command {
	return Command{Type: CmdUpdateRepertoire, RepertoireID: id, Args: req}
}

func NewDeleteRepertoireCommand(id int64) Command {
	return Command{Type: CmdDeleteRepertoire, RepertoireID: id}
}

func NewCountDueCommand(id int64) Command {
	return Command{Type: CmdCountDue, RepertoireID: id}
}

func NewReviewStatsCommand(id int64) Command {
	return Command{Type: CmdReviewStats, RepertoireID: id}
}

func NewSweepCommand(id int64) Command {
	return Command{Type: CmdSweep, RepertoireID: id}
}

func NewCreateSessionCommand() Command {
	return Command{Type: CmdCreateSession}
}

func NewDeleteSessionCommand(sessionID string) Command {
	return Command{Type: CmdDeleteSession, SessionID: sessionID}
}

func NewSelectRepertoireCommand(sessionID string, req core.SelectRepertoireRequest) Command {
	return Command{Type: CmdSelectRepertoire, SessionID: sessionID, Args: req}
}

func NewGetCursorCommand(sessionID string) Command {
	return Command{Type: CmdGetCursor, SessionID: sessionID}
}

func NewSetFENCommand(sessionID string, req core.SetFENRequest) Command {
	return Command{Type: CmdSetFEN, SessionID: sessionID, Args: req}
}

func NewGetWinratesCommand(sessionID string) Command {
	return Command{Type: CmdGetWinrates, SessionID: sessionID}
}

func NewListEdgesCommand(sessionID string) Command {
	return Command{Type: CmdListEdges, SessionID: sessionID}
}

func NewAddEdgeCommand(sessionID string, req core.MoveRequest) Command {
	return Command{Type: CmdAddEdge, SessionID: sessionID, Args: req}
}

func NewDeleteEdgeCommand(sessionID string, req core.MoveRequest) Command {
	return Command{Type: CmdDeleteEdge, SessionID: sessionID, Args: req}
}

func NewPlayMoveCommand(sessionID string, req core.MoveRequest) Command {
	return Command{Type: CmdPlayMove, SessionID: sessionID, Args: req}
}

func NewBackCommand(sessionID string) Command {
	return Command{Type: CmdBack, SessionID: sessionID}
}

func NewGetDueCommand(sessionID string) Command {
	return Command{Type: CmdGetDue, SessionID: sessionID}
}

func NewTestMoveCommand(sessionID string, req core.MoveRequest) Command {
	return Command{Type: CmdTestMove, SessionID: sessionID, Args: req}
}

func NewDrillMoveCommand(sessionID string, req core.MoveRequest) Command {
	return Command{Type: CmdDrillMove, SessionID: sessionID, Args: req}
}

func NewGetBoardCommand(sessionID string) Command {
	return Command{Type: CmdGetBoard, SessionID: sessionID}
}
