// FILE: repertoire/internal/client/commands/debug.go
package commands

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"repertoire/internal/client/display"
)

func (r *Registry) registerDebugCommands() {
	r.Register(&Command{
		Name:        "health",
		ShortName:   ".",
		Description: "Check server health and round-trip time",
		Usage:       "health",
		Handler:     healthHandler,
	})

	r.Register(&Command{
		Name:        "url",
		ShortName:   "/",
		Description: "Show or change the server address",
		Usage:       "url [host:port|http(s)://...]",
		Handler:     urlHandler,
	})

	r.Register(&Command{
		Name:        "raw",
		ShortName:   ":",
		Description: "Send a request to any API path",
		Usage:       "raw <method> <path> [json-body]",
		Handler:     rawRequestHandler,
	})

	r.Register(&Command{
		Name:        "clear",
		ShortName:   "-",
		Description: "Clear screen",
		Usage:       "clear",
		Handler:     clearHandler,
	})

	r.Register(&Command{
		Name:        "state",
		Description: "Compare client state with the server cursor",
		Usage:       "state",
		Handler:     stateHandler,
	})

	r.addGroup("Utility Commands", "health", "url", "raw", "state", "clear")
}

func healthHandler(s Session, args []string) error {
	start := time.Now()
	resp, err := s.GetClient().Health()
	if err != nil {
		return err
	}
	rtt := time.Since(start)

	storageColor := display.Green
	if resp.Storage != "ok" {
		storageColor = display.Red
	}

	fmt.Printf("%s%s%s in %s\n", display.Cyan, resp.Status, display.Reset, rtt.Round(time.Millisecond))
	fmt.Printf("  server time  %s\n", time.Unix(resp.Time, 0).Format(time.DateTime))
	fmt.Printf("  storage      %s%s%s\n", storageColor, resp.Storage, display.Reset)
	fmt.Printf("  cursors      %d\n", resp.Sessions)
	return nil
}

func urlHandler(s Session, args []string) error {
	if len(args) == 0 {
		fmt.Printf("Server: %s\n", s.GetAPIBaseURL())
		return nil
	}

	raw := args[0]
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid server address %q", args[0])
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	base := strings.TrimRight(u.String(), "/")
	s.SetAPIBaseURL(base)
	s.GetClient().SetBaseURL(base)
	fmt.Printf("%sServer set to %s%s\n", display.Cyan, base, display.Reset)

	// Report reachability without failing the command
	if _, err := s.GetClient().Health(); err != nil {
		fmt.Printf("%sServer not reachable: %v%s\n", display.Yellow, err, display.Reset)
	}
	return nil
}

func rawRequestHandler(s Session, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: raw <method> <path> [json-body]")
	}

	method := strings.ToUpper(args[0])
	path := args[1]
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	// Short paths are relative to the API root
	if path != "/health" && !strings.HasPrefix(path, "/api/") {
		path = "/api/v1" + path
	}

	return s.GetClient().RawRequest(method, path, strings.Join(args[2:], " "))
}

func clearHandler(s Session, args []string) error {
	fmt.Print("\033[H\033[2J")
	return nil
}

func stateHandler(s Session, args []string) error {
	fmt.Printf("%sClient%s\n", display.Cyan, display.Reset)
	fmt.Printf("  server      %s\n", s.GetAPIBaseURL())
	if rep := s.GetRepertoire(); rep != nil {
		fmt.Printf("  repertoire  %d %s (%s)\n", rep.ID, rep.Name, rep.Side)
	} else {
		fmt.Printf("  repertoire  none\n")
	}
	fmt.Printf("  fen         %s\n", s.GetFEN())

	cur, err := s.GetClient().Cursor()
	if err != nil {
		return err
	}
	if cur.FEN != s.GetFEN() {
		fmt.Printf("%sServer cursor moved since the last command%s\n", display.Yellow, display.Reset)
	}
	s.SetCursor(cur)

	fmt.Printf("%sServer cursor%s\n", display.Cyan, display.Reset)
	display.PrettyPrintJSON(os.Stdout, cur)
	return nil
}
