package core

import (
	"fmt"
	"strings"
	"time"
)

type Side string

const (
	SideWhite Side = "white"
	SideBlack Side = "black"
)

// ParseSide accepts "white"/"black" and the FEN letters "w"/"b".
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return SideWhite, nil
	case "black", "b":
		return SideBlack, nil
	default:
		return "", fmt.Errorf("%w: side must be white or black, got %q", ErrInvalidInput, s)
	}
}

// ToMove returns the FEN side-to-move letter for the side.
func (s Side) ToMove() string {
	if s == SideBlack {
		return "b"
	}
	return "w"
}

// EloBrackets are the rating buckets the corpus is aggregated by.
var EloBrackets = []int{0, 1000, 1200, 1400, 1600, 1800, 2000, 2200, 2500}

const DefaultEloBracket = 1200

// ValidBracket reports whether elo is one of EloBrackets.
func ValidBracket(elo int) bool {
	for _, b := range EloBrackets {
		if b == elo {
			return true
		}
	}
	return false
}

// BracketFor returns the largest bracket not above rating.
func BracketFor(rating int) int {
	bracket := EloBrackets[0]
	for _, b := range EloBrackets {
		if b <= rating {
			bracket = b
		}
	}
	return bracket
}

type Repertoire struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Side           Side      `json:"color"`
	EloBracket     int       `json:"elo"`
	CoverageTarget float64   `json:"coverage"` // percent, 0 disables trimming
	CreatedAt      time.Time `json:"createdAt"`
}

// Edge is a committed move from one position to the next within a repertoire.
type Edge struct {
	ID           int64         `json:"id"`
	RepertoireID int64         `json:"repertoireId"`
	FromFEN      string        `json:"fromFen"`
	SAN          string        `json:"san"`
	UCI          string        `json:"uci"`
	ToFEN        string        `json:"toFen"`
	Schedule     ScheduleState `json:"schedule"`
}

type MoveWinrate struct {
	SAN       string  `json:"san"`
	UCI       string  `json:"uci"`
	Total     int64   `json:"total"`
	WhiteRate float64 `json:"whiteRate"`
	BlackRate float64 `json:"blackRate"`
	DrawRate  float64 `json:"drawRate"`
	Chance    float64 `json:"chance"`
}

type PositionWinrate struct {
	Total     int64         `json:"total"`
	WhiteRate float64       `json:"whiteRate"`
	BlackRate float64       `json:"blackRate"`
	DrawRate  float64       `json:"drawRate"`
	Moves     []MoveWinrate `json:"moves"`
}

// TestResult is the verdict on a practice answer.
type TestResult struct {
	Correct     bool          `json:"correct"`
	Submitted   string        `json:"submitted"`
	ExpectedSAN []string      `json:"expected"`
	FEN         string        `json:"fen"` // cursor after the answer
	Schedule    ScheduleState `json:"schedule"`
}

type ReviewStats struct {
	RepertoireID int64   `json:"repertoireId"`
	Edges        int     `json:"edges"`
	DuePositions int     `json:"duePositions"`
	Reviews      int     `json:"reviews"`
	Correct      int     `json:"correct"`
	Accuracy     float64 `json:"accuracy"` // percent
	Mastered     int     `json:"mastered"`
}
