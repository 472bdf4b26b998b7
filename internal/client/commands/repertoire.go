// FILE: repertoire/internal/client/commands/repertoire.go
package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"repertoire/internal/client/display"
	"repertoire/internal/server/core"
)

func (r *Registry) registerRepertoireCommands() {
	r.Register(&Command{
		Name:        "list",
		ShortName:   "l",
		Description: "List repertoires",
		Usage:       "list",
		Handler:     listHandler,
	})

	r.Register(&Command{
		Name:        "new",
		ShortName:   "n",
		Description: "Create a repertoire",
		Usage:       "new <white|black> <elo> <name...>",
		Handler:     newHandler,
	})

	r.Register(&Command{
		Name:        "use",
		ShortName:   "u",
		Description: "Select a repertoire on the cursor",
		Usage:       "use <id>",
		Handler:     useHandler,
	})

	r.Register(&Command{
		Name:        "edit",
		ShortName:   "e",
		Description: "Change elo bracket, coverage target or name",
		Usage:       "edit <id> <elo> <coverage%> [name...]",
		Handler:     editHandler,
	})

	r.Register(&Command{
		Name:        "remove",
		ShortName:   "rm",
		Description: "Delete a repertoire",
		Usage:       "remove <id>",
		Handler:     removeHandler,
	})

	r.Register(&Command{
		Name:        "stats",
		ShortName:   "st",
		Description: "Show review statistics",
		Usage:       "stats [id]",
		Handler:     statsHandler,
	})

	r.Register(&Command{
		Name:        "sweep",
		Description: "Remove moves no longer reachable from the start",
		Usage:       "sweep [id]",
		Handler:     sweepHandler,
	})

	r.addGroup("Repertoire Commands", "list", "new", "use", "edit", "remove", "stats", "sweep")
}

// repertoireArg resolves an explicit id argument or the selected repertoire
func repertoireArg(s Session, args []string) (int64, error) {
	if len(args) > 0 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id < 1 {
			return 0, fmt.Errorf("invalid repertoire id: %s", args[0])
		}
		return id, nil
	}
	if rep := s.GetRepertoire(); rep != nil {
		return rep.ID, nil
	}
	return 0, fmt.Errorf("no repertoire selected (use 'use <id>' or pass an id)")
}

func listHandler(s Session, args []string) error {
	reps, err := s.GetClient().ListRepertoires()
	if err != nil {
		return err
	}
	if len(reps) == 0 {
		fmt.Println("No repertoires found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tName\tColor\tElo\tCoverage")
	for _, rep := range reps {
		marker := ""
		if cur := s.GetRepertoire(); cur != nil && cur.ID == rep.ID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s%d\t%s\t%s\t%d\t%.0f%%\n", marker, rep.ID, rep.Name, rep.Side, rep.EloBracket, rep.CoverageTarget)
	}
	return w.Flush()
}

func newHandler(s Session, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: new <white|black> <elo> <name...>")
	}
	side, err := core.ParseSide(args[0])
	if err != nil {
		return err
	}
	elo, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid elo: %s", args[1])
	}

	rep, err := s.GetClient().CreateRepertoire(strings.Join(args[2:], " "), string(side), elo)
	if err != nil {
		return err
	}

	fmt.Printf("%sCreated repertoire %d: %s (%s, %d)%s\n", display.Green, rep.ID, rep.Name, rep.Side, rep.EloBracket, display.Reset)
	return nil
}

func useHandler(s Session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: use <id>")
	}
	id, err := repertoireArg(s, args)
	if err != nil {
		return err
	}

	c := s.GetClient()
	cur, err := c.Select(id)
	if err != nil {
		return err
	}
	rep, err := c.GetRepertoire(id)
	if err != nil {
		return err
	}
	s.SetCursor(cur)
	s.SetRepertoire(rep)

	fmt.Printf("%sSelected %s (%s)%s\n", display.Green, rep.Name, rep.Side, display.Reset)
	return nil
}

func editHandler(s Session, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: edit <id> <elo> <coverage%%> [name...]")
	}
	id, err := repertoireArg(s, args[:1])
	if err != nil {
		return err
	}
	elo, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid elo: %s", args[1])
	}
	coverage, err := strconv.ParseFloat(strings.TrimSuffix(args[2], "%"), 64)
	if err != nil {
		return fmt.Errorf("invalid coverage: %s", args[2])
	}

	c := s.GetClient()
	name := strings.Join(args[3:], " ")
	if name == "" {
		current, err := c.GetRepertoire(id)
		if err != nil {
			return err
		}
		name = current.Name
	}

	rep, err := c.UpdateRepertoire(id, core.UpdateRepertoireRequest{Name: name, Elo: elo, Coverage: coverage})
	if err != nil {
		return err
	}
	if cur := s.GetRepertoire(); cur != nil && cur.ID == rep.ID {
		s.SetRepertoire(rep)
	}

	fmt.Printf("%sUpdated %s: elo %d, coverage %.0f%%%s\n", display.Green, rep.Name, rep.EloBracket, rep.CoverageTarget, display.Reset)
	return nil
}

func removeHandler(s Session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: remove <id>")
	}
	id, err := repertoireArg(s, args)
	if err != nil {
		return err
	}

	c := s.GetClient()
	if err := c.DeleteRepertoire(id); err != nil {
		return err
	}
	if cur := s.GetRepertoire(); cur != nil && cur.ID == id {
		s.SetRepertoire(nil)
		if cursor, err := c.Cursor(); err == nil {
			s.SetCursor(cursor)
		}
	}

	fmt.Printf("%sRepertoire %d deleted%s\n", display.Green, id, display.Reset)
	return nil
}

func statsHandler(s Session, args []string) error {
	id, err := repertoireArg(s, args)
	if err != nil {
		return err
	}

	stats, err := s.GetClient().ReviewStats(id)
	if err != nil {
		return err
	}

	fmt.Printf("%sRepertoire %d:%s\n", display.Cyan, id, display.Reset)
	fmt.Printf("  Moves:         %d\n", stats.Edges)
	fmt.Printf("  Due positions: %d\n", stats.DuePositions)
	fmt.Printf("  Mastered:      %d\n", stats.Mastered)
	fmt.Printf("  Reviews:       %d (%d correct, %.1f%%)\n", stats.Reviews, stats.Correct, stats.Accuracy)
	return nil
}

func sweepHandler(s Session, args []string) error {
	id, err := repertoireArg(s, args)
	if err != nil {
		return err
	}

	n, err := s.GetClient().Sweep(id)
	if err != nil {
		return err
	}

	fmt.Printf("%sRemoved %d unreachable move(s)%s\n", display.Green, n, display.Reset)
	return nil
}
