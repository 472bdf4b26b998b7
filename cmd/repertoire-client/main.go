// FILE: repertoire/cmd/repertoire-client/main.go
// Package main implements an interactive client for the repertoire server API.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"repertoire/internal/client/api"
	"repertoire/internal/client/commands"
	"repertoire/internal/client/display"
	"repertoire/internal/client/session"

	"github.com/chzyer/readline"
)

func main() {
	apiURL := flag.String("api", "http://localhost:8080", "Repertoire server URL")
	private := flag.Bool("session", false, "Open a private cursor instead of the shared one")
	flag.Parse()

	s := &session.Session{
		APIBaseURL: *apiURL,
		Client:     api.New(*apiURL),
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          display.Prompt("repertoire"),
		HistoryFile:     ".repertoire_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("%s%s%s\n", display.Red, err.Error(), display.Reset)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Printf("%sOpening Repertoire Client%s\n", display.Cyan, display.Reset)
	fmt.Printf("%sAPI: %s%s\n", display.Cyan, s.APIBaseURL, display.Reset)
	fmt.Printf("Type 'help' for commands\n\n")

	registry := commands.NewRegistry(s)
	if *private {
		registry.Execute("session open")
	} else {
		registry.Execute("state")
	}

	for {
		rl.SetPrompt(buildPrompt(s))

		line, err := rl.Readline()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if line == "exit" || line == "quit" || line == "x" {
			break
		}

		if strings.HasSuffix(line, " -v") {
			s.Verbose = true
			line = strings.TrimSuffix(line, " -v")
		} else {
			s.Verbose = false
		}

		registry.Execute(line)
	}

	if err := s.Client.CloseSession(); err != nil {
		fmt.Printf("%sSession not closed: %s%s\n", display.Red, err.Error(), display.Reset)
	}
}

func buildPrompt(s *session.Session) string {
	promptStr := "repertoire"

	if rep := s.Repertoire; rep != nil {
		promptStr += fmt.Sprintf("%s [%s %s%s]",
			display.Yellow, display.Paint(display.Magenta, rep.Name),
			display.Paint(display.SideColor(rep.Side), string(rep.Side)), display.Yellow)
	}

	if n := len(s.Moves); n > 0 {
		promptStr += fmt.Sprintf(" - %s%s%s", display.White, s.Moves[n-1], display.Yellow)
	}

	return display.Prompt(promptStr)
}
