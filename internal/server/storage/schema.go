package storage

import "time"

// NodeRecord is a position in one repertoire's graph.
type NodeRecord struct {
	Key        string `db:"pos_key"`
	FEN        string `db:"fen"`
	SideToMove string `db:"side_to_move"` // "w" or "b"
}

// EdgeRecord is the write shape of a committed move.
type EdgeRecord struct {
	RepertoireID int64
	From         NodeRecord
	SAN          string
	UCI          string
	To           NodeRecord
}

// ScheduleUpdate replaces the schedule of one edge after a review.
type ScheduleUpdate struct {
	EdgeID        int64
	DueAt         time.Time
	IntervalStage int
	LastResult    int
	ReviewedAt    time.Time
}

// ReviewRecord is one row of the append-only review log.
type ReviewRecord struct {
	RepertoireID int64
	FromKey      string
	Submitted    string
	Correct      bool
	StageAfter   int
	ReviewedAt   time.Time
}

// CorpusMove holds outcome counters for one move from one position in one
// rating bracket.
type CorpusMove struct {
	PosKey  string `db:"pos_key" json:"-"`
	Bracket int    `db:"bracket" json:"-"`
	UCI     string `db:"uci" json:"uci"`
	SAN     string `db:"san" json:"san"`
	White   int64  `db:"white" json:"white"`
	Draws   int64  `db:"draws" json:"draws"`
	Black   int64  `db:"black" json:"black"`
}

// Total is the number of games that played the move.
func (m CorpusMove) Total() int64 {
	return m.White + m.Draws + m.Black
}
