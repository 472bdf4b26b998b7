// FILE: repertoire/internal/server/processor/processor.go
package processor

import (
	"context"
	"fmt"
	"regexp"
	"unicode"

	"repertoire/internal/server/core"
	"repertoire/internal/server/service"
	"repertoire/internal/server/session"

	"github.com/rs/zerolog"
)

// SAN charset: pieces, files, ranks, capture, promotion, castling, suffixes
var sanPattern = regexp.MustCompile(`^[KQRBNa-h1-8xO0=+#!?-]+$`)

// Processor handles command execution on top of the service layer
type Processor struct {
	svc *service.Service
	log zerolog.Logger
}

// New creates a processor
func New(svc *service.Service, log zerolog.Logger) *Processor {
	return &Processor{
		svc: svc,
		log: log.With().Str("component", "processor").Logger(),
	}
}

func (p *Processor) Execute(ctx context.Context, cmd Command) ProcessorResponse {
	switch cmd.Type {
	case CmdListRepertoires:
		return p.handleListRepertoires(ctx)
	case CmdCreateRepertoire:
		return p.handleCreateRepertoire(ctx, cmd)
	case CmdGetRepertoire:
		return p.result(p.svc.Get(ctx, cmd.RepertoireID))
	case CmdUpdateRepertoire:
		return p.handleUpdateRepertoire(ctx, cmd)
	case CmdDeleteRepertoire:
		if err := p.svc.Delete(ctx, cmd.RepertoireID); err != nil {
			return p.fail(err)
		}
		return ProcessorResponse{Success: true}
	case CmdCountDue:
		n, err := p.svc.CountDueNodes(ctx, cmd.RepertoireID)
		if err != nil {
			return p.fail(err)
		}
		return p.ok(core.CountResponse{Count: n})
	case CmdReviewStats:
		return p.result(p.svc.ReviewStats(ctx, cmd.RepertoireID))
	case CmdSweep:
		n, err := p.svc.Sweep(ctx, cmd.RepertoireID)
		if err != nil {
			return p.fail(err)
		}
		return p.ok(core.CountResponse{Count: int(n)})
	case CmdCreateSession:
		id, _ := p.svc.Sessions().Create()
		return p.ok(core.SessionResponse{SessionID: id})
	case CmdDeleteSession:
		p.svc.Sessions().Delete(cmd.SessionID)
		return ProcessorResponse{Success: true}
	}

	cur, err := p.svc.Sessions().Get(cmd.SessionID)
	if err != nil {
		return p.fail(err)
	}

	switch cmd.Type {
	case CmdSelectRepertoire:
		return p.handleSelectRepertoire(ctx, cur, cmd)
	case CmdGetCursor:
		return p.ok(cursorResponse(cur))
	case CmdSetFEN:
		return p.handleSetFEN(ctx, cur, cmd)
	case CmdGetWinrates:
		return p.result(p.svc.GetCurrentWinrates(ctx, cur))
	case CmdListEdges:
		return p.handleListEdges(ctx, cur)
	case CmdAddEdge:
		return p.withMove(cmd, func(san string) ProcessorResponse {
			return p.result(p.svc.AddEdge(ctx, cur, san))
		})
	case CmdDeleteEdge:
		return p.withMove(cmd, func(san string) ProcessorResponse {
			if _, err := p.svc.DeleteEdge(ctx, cur, san); err != nil {
				return p.fail(err)
			}
			return p.handleListEdges(ctx, cur)
		})
	case CmdPlayMove:
		return p.withMove(cmd, func(san string) ProcessorResponse {
			if _, err := p.svc.PlayMoveSAN(ctx, cur, san); err != nil {
				return p.fail(err)
			}
			return p.ok(cursorResponse(cur))
		})
	case CmdBack:
		p.svc.Back(cur)
		return p.ok(cursorResponse(cur))
	case CmdGetDue:
		fens, err := p.svc.GetDueFENs(ctx, cur)
		if err != nil {
			return p.fail(err)
		}
		return p.ok(core.DueResponse{FENs: fens})
	case CmdTestMove:
		return p.withMove(cmd, func(san string) ProcessorResponse {
			return p.result(p.svc.TestCurrentPositionWithDueDate(ctx, cur, san))
		})
	case CmdDrillMove:
		return p.withMove(cmd, func(san string) ProcessorResponse {
			return p.result(p.svc.TestCurrentPosition(ctx, cur, san))
		})
	case CmdGetBoard:
		return p.result(p.svc.Board(cur))
	default:
		return p.errorResponse("unknown command", core.ErrInvalidRequest)
	}
}

// isFENSafe checks for control characters before the FEN reaches the codec
func (p *Processor) isFENSafe(fen string) bool {
	for _, r := range fen {
		if unicode.IsControl(r) {
			return false
		}
	}
	return fen != ""
}

func (p *Processor) isMoveSafe(move string) bool {
	for _, r := range move {
		if unicode.IsControl(r) {
			return false
		}
	}
	if len(move) < 2 || len(move) > 10 {
		return false
	}
	return sanPattern.MatchString(move)
}

func (p *Processor) withMove(cmd Command, fn func(san string) ProcessorResponse) ProcessorResponse {
	req, ok := cmd.Args.(core.MoveRequest)
	if !ok {
		return p.errorResponse("invalid request type", core.ErrInvalidRequest)
	}
	if !p.isMoveSafe(req.SAN) {
		return p.errorResponse(fmt.Sprintf("malformed move %q", req.SAN), core.ErrIllegalMove)
	}
	return fn(req.SAN)
}

func (p *Processor) handleListRepertoires(ctx context.Context) ProcessorResponse {
	reps, err := p.svc.List(ctx)
	if err != nil {
		return p.fail(err)
	}
	if reps == nil {
		reps = []core.Repertoire{}
	}
	return p.ok(reps)
}

func (p *Processor) handleCreateRepertoire(ctx context.Context, cmd Command) ProcessorResponse {
	req, ok := cmd.Args.(core.CreateRepertoireRequest)
	if !ok {
		return p.errorResponse("invalid request type", core.ErrInvalidRequest)
	}
	return p.result(p.svc.Create(ctx, req.Name, core.Side(req.Color), req.Elo))
}

func (p *Processor) handleUpdateRepertoire(ctx context.Context, cmd Command) ProcessorResponse {
	req, ok := cmd.Args.(core.UpdateRepertoireRequest)
	if !ok {
		return p.errorResponse("invalid request type", core.ErrInvalidRequest)
	}

	err := p.svc.Update(ctx, core.Repertoire{
		ID:             cmd.RepertoireID,
		Name:           req.Name,
		EloBracket:     req.Elo,
		CoverageTarget: req.Coverage,
	})
	if err != nil {
		return p.fail(err)
	}
	return p.result(p.svc.Get(ctx, cmd.RepertoireID))
}

func (p *Processor) handleSelectRepertoire(ctx context.Context, cur *session.Cursor, cmd Command) ProcessorResponse {
	req, ok := cmd.Args.(core.SelectRepertoireRequest)
	if !ok {
		return p.errorResponse("invalid request type", core.ErrInvalidRequest)
	}
	if err := p.svc.SelectRepertoire(ctx, cur, req.ID); err != nil {
		return p.fail(err)
	}
	return p.ok(cursorResponse(cur))
}

func (p *Processor) handleSetFEN(ctx context.Context, cur *session.Cursor, cmd Command) ProcessorResponse {
	req, ok := cmd.Args.(core.SetFENRequest)
	if !ok {
		return p.errorResponse("invalid request type", core.ErrInvalidRequest)
	}
	if !p.isFENSafe(req.FEN) {
		return p.errorResponse("invalid FEN format", core.ErrInvalidFEN)
	}
	if _, err := p.svc.SetCurrentFEN(ctx, cur, req.FEN); err != nil {
		return p.fail(err)
	}
	return p.ok(cursorResponse(cur))
}

func (p *Processor) handleListEdges(ctx context.Context, cur *session.Cursor) ProcessorResponse {
	moves, err := p.svc.ListEdges(ctx, cur)
	if err != nil {
		return p.fail(err)
	}
	return p.ok(core.EdgesResponse{FEN: cur.FEN(), Moves: moves})
}

func cursorResponse(cur *session.Cursor) core.CursorResponse {
	st := cur.Snapshot()
	return core.CursorResponse{RepertoireID: st.RepertoireID, FEN: st.FEN(), Moves: st.Moves()}
}

func (p *Processor) ok(data any) ProcessorResponse {
	return ProcessorResponse{Success: true, Data: data}
}

func (p *Processor) result(data any, err error) ProcessorResponse {
	if err != nil {
		return p.fail(err)
	}
	return p.ok(data)
}

// fail maps err to its wire code. Internal errors are logged and not echoed.
func (p *Processor) fail(err error) ProcessorResponse {
	code := core.CodeFor(err)
	if code == core.ErrInternalError {
		p.log.Error().Err(err).Msg("command failed")
		return p.errorResponse("internal error", code)
	}
	return p.errorResponse(err.Error(), code)
}

// errorResponse creates error response
func (p *Processor) errorResponse(message, code string) ProcessorResponse {
	return ProcessorResponse{
		Success: false,
		Error: &core.ErrorResponse{
			Error: message,
			Code:  code,
		},
	}
}
