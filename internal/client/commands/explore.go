// FILE: repertoire/internal/client/commands/explore.go
package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"repertoire/internal/client/display"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func (r *Registry) registerExploreCommands() {
	r.Register(&Command{
		Name:        "show",
		ShortName:   "s",
		Description: "Show the board, line and committed moves",
		Usage:       "show",
		Handler:     showHandler,
	})

	r.Register(&Command{
		Name:        "fen",
		ShortName:   "f",
		Description: "Jump to a position (start, or a FEN in the repertoire)",
		Usage:       "fen <start|fen...>",
		Handler:     fenHandler,
	})

	r.Register(&Command{
		Name:        "winrates",
		ShortName:   "w",
		Description: "Show corpus winrates for candidate moves",
		Usage:       "winrates",
		Handler:     winratesHandler,
	})

	r.Register(&Command{
		Name:        "add",
		ShortName:   "a",
		Description: "Commit a move at the cursor",
		Usage:       "add <san>",
		Handler:     addHandler,
	})

	r.Register(&Command{
		Name:        "line",
		Description: "Commit and play a sequence of moves",
		Usage:       "line <san> [san...]",
		Handler:     lineHandler,
	})

	r.Register(&Command{
		Name:        "delete",
		ShortName:   "d",
		Description: "Delete a committed move at the cursor",
		Usage:       "delete <san>",
		Handler:     deleteHandler,
	})

	r.Register(&Command{
		Name:        "play",
		ShortName:   "p",
		Description: "Follow committed moves",
		Usage:       "play <san> [san...]",
		Handler:     playHandler,
	})

	r.Register(&Command{
		Name:        "back",
		ShortName:   "b",
		Description: "Take back moves",
		Usage:       "back [count]",
		Handler:     backHandler,
	})

	r.addGroup("Explore Commands", "show", "fen", "winrates", "add", "line", "delete", "play", "back")
}

// lineStart returns the move number and side of the first move in a line of
// n plies ending at fen
func lineStart(fen string, n int) (int, bool) {
	fields := strings.Fields(fen)
	full := 1
	if len(fields) > 5 {
		if v, err := strconv.Atoi(fields[5]); err == nil && v > 0 {
			full = v
		}
	}
	ply := 2 * (full - 1)
	if len(fields) > 1 && fields[1] == "b" {
		ply++
	}
	ply -= n
	if ply < 0 {
		ply = 0
	}
	return ply/2 + 1, ply%2 == 0
}

func printCursor(s Session) {
	fen := s.GetFEN()
	fmt.Printf("%sFEN:%s %s\n", display.Cyan, display.Reset, fen)
	if moves := s.GetMoves(); len(moves) > 0 {
		full, white := lineStart(fen, len(moves))
		fmt.Printf("%sLine:%s %s\n", display.Cyan, display.Reset, display.MoveList(moves, full, white))
	}
	fmt.Printf("%sTo move:%s %s\n", display.Cyan, display.Reset, display.SideToMove(fen))
}

func showHandler(s Session, args []string) error {
	c := s.GetClient()
	cur, err := c.Cursor()
	if err != nil {
		return err
	}
	s.SetCursor(cur)

	board, err := c.Board()
	if err != nil {
		return err
	}
	fmt.Println()
	display.RenderBoard(os.Stdout, board.Board)
	fmt.Println()
	printCursor(s)

	if s.GetRepertoire() == nil {
		return nil
	}
	edges, err := c.Edges()
	if err != nil {
		return err
	}
	if len(edges.Moves) == 0 {
		fmt.Printf("%sNo committed moves here%s\n", display.Yellow, display.Reset)
	} else {
		fmt.Printf("%sCommitted:%s %s\n", display.Cyan, display.Reset, strings.Join(edges.Moves, " "))
	}
	return nil
}

func fenHandler(s Session, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: fen <start|fen...>")
	}
	fen := strings.Join(args, " ")
	if fen == "start" {
		fen = startFEN
	}

	cur, err := s.GetClient().SetFEN(fen)
	if err != nil {
		return err
	}
	s.SetCursor(cur)
	printCursor(s)
	return nil
}

func winratesHandler(s Session, args []string) error {
	c := s.GetClient()
	wr, err := c.Winrates()
	if err != nil {
		return err
	}

	var committed []string
	if s.GetRepertoire() != nil {
		if edges, err := c.Edges(); err == nil {
			committed = edges.Moves
		}
	}

	display.RenderWinrates(os.Stdout, wr, committed)
	return nil
}

func addHandler(s Session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: add <san>")
	}
	edge, err := s.GetClient().AddEdge(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%sCommitted %s (%s)%s\n", display.Green, edge.SAN, edge.UCI, display.Reset)
	return nil
}

func lineHandler(s Session, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: line <san> [san...]")
	}
	c := s.GetClient()
	for _, san := range args {
		if _, err := c.AddEdge(san); err != nil {
			return fmt.Errorf("%s: %w", san, err)
		}
		cur, err := c.Play(san)
		if err != nil {
			return fmt.Errorf("%s: %w", san, err)
		}
		s.SetCursor(cur)
	}
	printCursor(s)
	return nil
}

func deleteHandler(s Session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: delete <san>")
	}
	edges, err := s.GetClient().DeleteEdge(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%sRemaining:%s %s\n", display.Cyan, display.Reset, strings.Join(edges.Moves, " "))
	return nil
}

func playHandler(s Session, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: play <san> [san...]")
	}
	c := s.GetClient()
	for _, san := range args {
		cur, err := c.Play(san)
		if err != nil {
			return fmt.Errorf("%s: %w", san, err)
		}
		s.SetCursor(cur)
	}
	printCursor(s)
	return nil
}

func backHandler(s Session, args []string) error {
	count := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid count: %s", args[0])
		}
		count = n
	}

	c := s.GetClient()
	for i := 0; i < count; i++ {
		cur, err := c.Back()
		if err != nil {
			return err
		}
		s.SetCursor(cur)
	}
	printCursor(s)
	return nil
}
