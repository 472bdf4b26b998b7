package core

// Request types

type CreateRepertoireRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=100"`
	Color string `json:"color" validate:"required,oneof=white black"`
	Elo   int    `json:"elo" validate:"min=0,max=3000"`
}

type UpdateRepertoireRequest struct {
	Name     string  `json:"name" validate:"required,min=1,max=100"`
	Elo      int     `json:"elo" validate:"min=0,max=3000"`
	Coverage float64 `json:"coverage" validate:"min=0,max=100"`
}

type SelectRepertoireRequest struct {
	ID int64 `json:"id" validate:"required,min=1"`
}

type SetFENRequest struct {
	FEN string `json:"fen" validate:"required,max=100"`
}

type MoveRequest struct {
	SAN string `json:"san" validate:"required,min=2,max=10"`
}

// Response types

type SessionResponse struct {
	SessionID string `json:"sessionId"`
}

type CursorResponse struct {
	RepertoireID int64    `json:"repertoireId,omitempty"`
	FEN          string   `json:"fen"`
	Moves        []string `json:"moves,omitempty"` // played since the last jump
}

type EdgesResponse struct {
	FEN   string   `json:"fen"`
	Moves []string `json:"moves"`
}

type DueResponse struct {
	FENs []string `json:"fens"`
}

type CountResponse struct {
	Count int `json:"count"`
}

type BoardResponse struct {
	FEN   string `json:"fen"`
	Board string `json:"board"` // ASCII representation
}
