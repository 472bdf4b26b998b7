// FILE: repertoire/internal/client/commands/practice.go
package commands

import (
	"fmt"
	"strings"

	"repertoire/internal/client/display"
	"repertoire/internal/server/core"
)

func (r *Registry) registerPracticeCommands() {
	r.Register(&Command{
		Name:        "due",
		Description: "List positions due for review",
		Usage:       "due",
		Handler:     dueHandler,
	})

	r.Register(&Command{
		Name:        "next",
		ShortName:   "nx",
		Description: "Jump to the next due position",
		Usage:       "next",
		Handler:     nextHandler,
	})

	r.Register(&Command{
		Name:        "test",
		ShortName:   "t",
		Description: "Answer the position at the cursor (updates schedule)",
		Usage:       "test <san>",
		Handler:     testHandler,
	})

	r.Register(&Command{
		Name:        "drill",
		ShortName:   "dr",
		Description: "Answer without affecting the schedule",
		Usage:       "drill <san>",
		Handler:     drillHandler,
	})

	r.Register(&Command{
		Name:        "session",
		ShortName:   "ss",
		Description: "Open or close a private cursor",
		Usage:       "session <open|close>",
		Handler:     sessionHandler,
	})

	r.addGroup("Practice Commands", "due", "next", "test", "drill", "session")
}

func dueHandler(s Session, args []string) error {
	fens, err := s.GetClient().Due()
	if err != nil {
		return err
	}
	if len(fens) == 0 {
		fmt.Printf("%sNothing due%s\n", display.Green, display.Reset)
		return nil
	}
	for i, fen := range fens {
		fmt.Printf("%3d. %s\n", i+1, fen)
	}
	return nil
}

func nextHandler(s Session, args []string) error {
	c := s.GetClient()
	fens, err := c.Due()
	if err != nil {
		return err
	}
	if len(fens) == 0 {
		fmt.Printf("%sNothing due%s\n", display.Green, display.Reset)
		return nil
	}

	cur, err := c.SetFEN(fens[0])
	if err != nil {
		return err
	}
	s.SetCursor(cur)
	return showHandler(s, nil)
}

func testHandler(s Session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: test <san>")
	}
	res, err := s.GetClient().Test(args[0])
	if err != nil {
		return err
	}
	printResult(s, res)
	if res.Correct {
		fmt.Printf("Next review: %s (stage %d)\n", res.Schedule.DueAt.Local().Format("2006-01-02 15:04"), res.Schedule.IntervalStage)
	}
	return nil
}

func drillHandler(s Session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: drill <san>")
	}
	res, err := s.GetClient().Drill(args[0])
	if err != nil {
		return err
	}
	printResult(s, res)
	return nil
}

func printResult(s Session, res *core.TestResult) {
	if res.Correct {
		fmt.Printf("%sCorrect: %s%s\n", display.Green, res.Submitted, display.Reset)
		if cur, err := s.GetClient().Cursor(); err == nil {
			s.SetCursor(cur)
		}
		return
	}
	fmt.Printf("%sIncorrect: %s, expected %s%s\n", display.Red, res.Submitted, strings.Join(res.ExpectedSAN, " or "), display.Reset)
}

func sessionHandler(s Session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: session <open|close>")
	}
	c := s.GetClient()
	switch args[0] {
	case "open":
		if err := c.CloseSession(); err != nil {
			return err
		}
		id, err := c.OpenSession()
		if err != nil {
			return err
		}
		fmt.Printf("%sSession %s opened%s\n", display.Green, id, display.Reset)
	case "close":
		if err := c.CloseSession(); err != nil {
			return err
		}
		fmt.Printf("%sBack on the shared cursor%s\n", display.Green, display.Reset)
	default:
		return fmt.Errorf("usage: session <open|close>")
	}

	s.SetRepertoire(nil)
	cur, err := c.Cursor()
	if err != nil {
		return err
	}
	s.SetCursor(cur)
	if cur.RepertoireID != 0 {
		rep, err := c.GetRepertoire(cur.RepertoireID)
		if err != nil {
			return err
		}
		s.SetRepertoire(rep)
	}
	return nil
}
