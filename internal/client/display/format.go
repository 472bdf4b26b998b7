// FILE: repertoire/internal/client/display/format.go
package display

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// PrettyPrintJSON prints formatted JSON
func PrettyPrintJSON(w io.Writer, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "%sError formatting JSON: %s%s\n", Red, err.Error(), Reset)
		return
	}
	fmt.Fprintln(w, string(data))
}

// MoveList numbers a move sequence from the given full move, e.g.
// "1. e4 e5 2. Nf3". whiteFirst is false when the first move is Black's.
func MoveList(moves []string, fullMove int, whiteFirst bool) string {
	var sb strings.Builder
	n := fullMove
	white := whiteFirst
	for i, m := range moves {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if white {
			fmt.Fprintf(&sb, "%d. ", n)
		} else if i == 0 {
			fmt.Fprintf(&sb, "%d... ", n)
		}
		sb.WriteString(m)
		if !white {
			n++
		}
		white = !white
	}
	return sb.String()
}
