// FILE: repertoire/internal/server/position/position.go
package position

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"repertoire/internal/server/core"

	"github.com/freeeve/pgn/v3"
)

const (
	StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	maxFENLen   = 100
)

// FEN shape check before any field parsing
var fenPattern = regexp.MustCompile(`^[rnbqkpRNBQKP1-8/]+ [wb] [KQkq-]+ [a-h1-8-]+ \d+ \d+$`)

// Position is an immutable parsed position. Node identity uses Key, which
// ignores the halfmove and fullmove counters.
type Position struct {
	fen  string
	turn string
	key  string
}

// Move is a legal move in both notations.
type Move struct {
	SAN string `json:"san"`
	UCI string `json:"uci"`
}

// Parse validates fen and returns the position it describes.
func Parse(fen string) (*Position, error) {
	if err := validateFEN(fen); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidPosition, err)
	}

	gs, err := pgn.NewGame(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidPosition, err)
	}

	return fromState(gs)
}

// Start returns the standard starting position.
func Start() *Position {
	p, err := Parse(StartingFEN)
	if err != nil {
		panic("position: starting FEN rejected: " + err.Error())
	}
	return p
}

// fromState canonicalizes gs. The en passant square is kept only when an en
// passant capture is legal, so positions reached by different move orders
// share a key.
func fromState(gs *pgn.GameState) (*Position, error) {
	fen := gs.ToFEN()
	fields := strings.Fields(fen)
	if len(fields) != 6 {
		return nil, fmt.Errorf("%w: unexpected FEN %q", core.ErrInvalidPosition, fen)
	}

	if fields[3] != "-" && !hasEnPassant(gs) {
		fields[3] = "-"
		fen = strings.Join(fields, " ")
		stripped, err := pgn.NewGame(fen)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrInvalidPosition, err)
		}
		gs = stripped
	}

	return &Position{
		fen:  fen,
		turn: fields[1],
		key:  gs.Pack().String(),
	}, nil
}

// KeyOf returns the node key of gs, canonicalized the same way as Parse.
func KeyOf(gs *pgn.GameState) (string, error) {
	p, err := fromState(gs)
	if err != nil {
		return "", err
	}
	return p.key, nil
}

func hasEnPassant(gs *pgn.GameState) bool {
	for _, mv := range pgn.GenerateLegalMoves(gs) {
		if mv.Flags == flagEnPassant {
			return true
		}
	}
	return false
}

func (p *Position) FEN() string { return p.fen }

// Key is the packed position key: board, side to move, castling rights
// and en passant square.
func (p *Position) Key() string { return p.key }

// Turn returns "w" or "b".
func (p *Position) Turn() string { return p.turn }

func (p *Position) state() (*pgn.GameState, error) {
	gs, err := pgn.NewGame(p.fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidPosition, err)
	}
	return gs, nil
}

// ApplySAN plays san and returns the successor. p is left untouched.
func (p *Position) ApplySAN(san string) (*Position, Move, error) {
	gs, err := p.state()
	if err != nil {
		return nil, Move{}, err
	}

	mv, err := findLegal(gs, san)
	if err != nil {
		return nil, Move{}, err
	}

	played := Move{SAN: SAN(gs, mv), UCI: UCI(mv)}
	if err := pgn.ApplyMove(gs, mv); err != nil {
		return nil, Move{}, fmt.Errorf("%w: %s: %v", core.ErrIllegal, san, err)
	}

	next, err := fromState(gs)
	if err != nil {
		return nil, Move{}, err
	}
	return next, played, nil
}

// LegalMoves lists every legal move in generation order.
func (p *Position) LegalMoves() []Move {
	gs, err := p.state()
	if err != nil {
		return nil
	}
	legal := pgn.GenerateLegalMoves(gs)
	moves := make([]Move, 0, len(legal))
	for _, mv := range legal {
		moves = append(moves, Move{SAN: SAN(gs, mv), UCI: UCI(mv)})
	}
	return moves
}

// SANForUCI converts a UCI move legal in p into SAN.
func (p *Position) SANForUCI(uci string) (string, error) {
	for _, mv := range p.LegalMoves() {
		if mv.UCI == uci {
			return mv.SAN, nil
		}
	}
	return "", fmt.Errorf("%w: %s", core.ErrIllegal, uci)
}

// ToASCII renders the board with rank 8 on top.
func (p *Position) ToASCII() string {
	board := strings.Fields(p.fen)[0]
	ranks := strings.Split(board, "/")

	var sb strings.Builder
	sb.WriteString("  a b c d e f g h\n")
	for r, rank := range ranks {
		sb.WriteString(fmt.Sprintf("%d ", 8-r))
		for _, ch := range rank {
			if ch >= '1' && ch <= '8' {
				sb.WriteString(strings.Repeat(". ", int(ch-'0')))
				continue
			}
			sb.WriteString(fmt.Sprintf("%c ", ch))
		}
		sb.WriteString(fmt.Sprintf(" %d\n", 8-r))
	}
	sb.WriteString("  a b c d e f g h")
	return sb.String()
}

// ApplySAN parses fen, plays san and returns the successor FEN with the
// move in canonical SAN and UCI.
func ApplySAN(fen, san string) (string, Move, error) {
	p, err := Parse(fen)
	if err != nil {
		return "", Move{}, err
	}
	next, mv, err := p.ApplySAN(san)
	if err != nil {
		return "", Move{}, err
	}
	return next.FEN(), mv, nil
}

// Normalize returns the canonical FEN of fen.
func Normalize(fen string) (string, error) {
	p, err := Parse(fen)
	if err != nil {
		return "", err
	}
	return p.FEN(), nil
}

// Key returns the node identity key of fen.
func Key(fen string) (string, error) {
	p, err := Parse(fen)
	if err != nil {
		return "", err
	}
	return p.Key(), nil
}

// Equal compares positions ignoring move counters. Invalid FENs are never equal.
func Equal(a, b string) bool {
	ka, err := Key(a)
	if err != nil {
		return false
	}
	kb, err := Key(b)
	if err != nil {
		return false
	}
	return ka == kb
}

func findLegal(gs *pgn.GameState, san string) (pgn.Mv, error) {
	cleaned := cleanSAN(san)
	if cleaned == "" || !isSANSafe(cleaned) {
		return pgn.Mv{}, fmt.Errorf("%w: malformed SAN %q", core.ErrIllegal, san)
	}

	mv, err := pgn.ParseSAN(gs, cleaned)
	if err != nil {
		return pgn.Mv{}, fmt.Errorf("%w: %s: %v", core.ErrIllegal, san, err)
	}

	for _, legal := range pgn.GenerateLegalMoves(gs) {
		if legal.From == mv.From && legal.To == mv.To && legal.Promo == mv.Promo {
			return legal, nil
		}
	}
	return pgn.Mv{}, fmt.Errorf("%w: %s", core.ErrIllegal, san)
}

// cleanSAN strips check marks and annotation glyphs.
func cleanSAN(san string) string {
	san = strings.TrimSpace(san)
	san = strings.TrimRight(san, "+#!?")
	switch san {
	case "0-0":
		return "O-O"
	case "0-0-0":
		return "O-O-O"
	}
	return san
}

func isSANSafe(san string) bool {
	if len(san) > 10 {
		return false
	}
	for _, r := range san {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return false
		}
		if !strings.ContainsRune("abcdefgh12345678KQRBNOx=-", r) {
			return false
		}
	}
	return true
}

// validateFEN checks field structure so pgn never sees a malformed record.
func validateFEN(fen string) error {
	if len(fen) > maxFENLen {
		return fmt.Errorf("FEN longer than %d characters", maxFENLen)
	}
	for _, r := range fen {
		if unicode.IsControl(r) {
			return fmt.Errorf("control character in FEN")
		}
	}
	if !fenPattern.MatchString(fen) {
		return fmt.Errorf("expected 6 space separated fields")
	}

	parts := strings.Fields(fen)
	ranks := strings.Split(parts[0], "/")
	if len(ranks) != 8 {
		return fmt.Errorf("expected 8 ranks, got %d", len(ranks))
	}

	kings := map[rune]int{}
	for r, rank := range ranks {
		file := 0
		for _, ch := range rank {
			if ch >= '1' && ch <= '8' {
				file += int(ch - '0')
				continue
			}
			if file >= 8 {
				return fmt.Errorf("too many pieces in rank %d", 8-r)
			}
			if ch == 'K' || ch == 'k' {
				kings[ch]++
			}
			if (ch == 'P' || ch == 'p') && (r == 0 || r == 7) {
				return fmt.Errorf("pawn on back rank %d", 8-r)
			}
			file++
		}
		if file != 8 {
			return fmt.Errorf("rank %d has %d files", 8-r, file)
		}
	}
	if kings['K'] != 1 || kings['k'] != 1 {
		return fmt.Errorf("each side needs exactly one king")
	}

	if castling := parts[2]; castling != "-" {
		seen := map[rune]bool{}
		for _, ch := range castling {
			if ch == '-' || seen[ch] {
				return fmt.Errorf("invalid castling field %q", castling)
			}
			seen[ch] = true
		}
	}

	if ep := parts[3]; ep != "-" {
		if len(ep) != 2 || ep[0] < 'a' || ep[0] > 'h' || (ep[1] != '3' && ep[1] != '6') {
			return fmt.Errorf("invalid en passant square %q", ep)
		}
	}

	if _, err := strconv.Atoi(parts[4]); err != nil {
		return fmt.Errorf("halfmove counter: %v", err)
	}
	full, err := strconv.Atoi(parts[5])
	if err != nil || full < 1 {
		return fmt.Errorf("fullmove counter must be a positive integer")
	}
	return nil
}
