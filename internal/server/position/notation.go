package position

import (
	"github.com/freeeve/pgn/v3"
)

const (
	files = "abcdefgh"
	ranks = "12345678"

	flagEnPassant = 2
	flagCastle    = 4
)

// UCI renders mv as e.g. "e2e4" or "e7e8q".
func UCI(mv pgn.Mv) string {
	uci := square(int(mv.From)) + square(int(mv.To))
	if p := promoLetter(mv); p != 0 {
		uci += string(p + ('a' - 'A'))
	}
	return uci
}

// SAN renders mv, which must be legal in gs, in standard algebraic notation
// including the check or mate suffix.
func SAN(gs *pgn.GameState, mv pgn.Mv) string {
	san := sanBody(gs, mv)

	after := gs.Pack().Unpack()
	if after != nil && pgn.ApplyMove(after, mv) == nil && after.IsInCheck() {
		if len(pgn.GenerateLegalMoves(after)) == 0 {
			return san + "#"
		}
		return san + "+"
	}
	return san
}

func sanBody(gs *pgn.GameState, mv pgn.Mv) string {
	if mv.Flags == flagCastle {
		if mv.To > mv.From {
			return "O-O"
		}
		return "O-O-O"
	}

	from, to := int(mv.From), int(mv.To)
	piece := upper(byte(gs.PieceAt(mv.From)))
	isCapture := gs.PieceAt(mv.To) != 0 || (piece == 'P' && mv.Flags == flagEnPassant)

	if piece == 'P' {
		san := ""
		if isCapture {
			san = string(files[from%8]) + "x"
		}
		san += square(to)
		if p := promoLetter(mv); p != 0 {
			san += "=" + string(p)
		}
		return san
	}

	san := string(piece) + disambiguation(gs, mv, piece)
	if isCapture {
		san += "x"
	}
	return san + square(to)
}

// disambiguation follows the file, then rank, then square preference.
func disambiguation(gs *pgn.GameState, mv pgn.Mv, piece byte) string {
	from := int(mv.From)
	sameFile, sameRank, rivals := false, false, false
	for _, other := range pgn.GenerateLegalMoves(gs) {
		if other.To != mv.To || other.From == mv.From || upper(byte(gs.PieceAt(other.From))) != piece {
			continue
		}
		rivals = true
		if int(other.From)%8 == from%8 {
			sameFile = true
		}
		if int(other.From)/8 == from/8 {
			sameRank = true
		}
	}

	switch {
	case !rivals:
		return ""
	case !sameFile:
		return string(files[from%8])
	case !sameRank:
		return string(ranks[from/8])
	default:
		return square(from)
	}
}

func square(sq int) string {
	return string(files[sq%8]) + string(ranks[sq/8])
}

func upper(piece byte) byte {
	if piece >= 'a' && piece <= 'z' {
		return piece - ('a' - 'A')
	}
	return piece
}

func promoLetter(mv pgn.Mv) byte {
	switch mv.Promo {
	case pgn.PromoQueen:
		return 'Q'
	case pgn.PromoRook:
		return 'R'
	case pgn.PromoBishop:
		return 'B'
	case pgn.PromoKnight:
		return 'N'
	}
	return 0
}
