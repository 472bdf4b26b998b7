// FILE: repertoire/internal/client/display/board.go
package display

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"repertoire/internal/server/core"
)

// RenderBoard renders an ASCII board with colored pieces
func RenderBoard(w io.Writer, asciiBoard string) {
	lines := strings.Split(asciiBoard, "\n")

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		isFileLine := (i == 0) || (i == len(lines)-1)

		for _, char := range line {
			switch {
			case char >= 'a' && char <= 'h' && isFileLine:
				fmt.Fprintf(w, "%s%c%s", Cyan, char, Reset)
			case char >= 'A' && char <= 'Z':
				fmt.Fprintf(w, "%s%c%s", Blue, char, Reset)
			case char >= 'a' && char <= 'z' && !isFileLine:
				fmt.Fprintf(w, "%s%c%s", Red, char, Reset)
			case char >= '1' && char <= '8':
				fmt.Fprintf(w, "%s%c%s", Cyan, char, Reset)
			default:
				fmt.Fprintf(w, "%c", char)
			}
		}
		fmt.Fprintln(w)
	}
}

// SideToMove returns the colored side-to-move field of a FEN
func SideToMove(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) > 1 && fields[1] == "b" {
		return Red + "Black" + Reset
	}
	return Blue + "White" + Reset
}

// RenderWinrates prints the candidate move table. Moves already in the
// repertoire are marked with an asterisk.
func RenderWinrates(w io.Writer, pw *core.PositionWinrate, committed []string) {
	fmt.Fprintf(w, "%sGames: %d%s  white %.1f%%  draw %.1f%%  black %.1f%%\n",
		Cyan, pw.Total, Reset, pw.WhiteRate, pw.DrawRate, pw.BlackRate)
	if len(pw.Moves) == 0 {
		fmt.Fprintln(w, "No corpus moves for this position")
		return
	}

	in := make(map[string]bool, len(committed))
	for _, san := range committed {
		in[san] = true
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Move\tGames\tChance\tWhite\tDraw\tBlack\t")
	for _, m := range pw.Moves {
		mark := ""
		if in[m.SAN] {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s%s\t%d\t%.1f%%\t%.1f%%\t%.1f%%\t%.1f%%\t\n",
			mark, m.SAN, m.Total, m.Chance, m.WhiteRate, m.DrawRate, m.BlackRate)
	}
	tw.Flush()
}
