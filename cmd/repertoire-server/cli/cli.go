// FILE: repertoire/cmd/repertoire-server/cli/cli.go
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"repertoire/internal/logx"
	"repertoire/internal/server/ingest"
	"repertoire/internal/server/scheduler"
	"repertoire/internal/server/service"
	"repertoire/internal/server/session"
	"repertoire/internal/server/storage"
	"repertoire/internal/server/winrate"

	"github.com/rs/zerolog"
)

// Run is the entry point for the maintenance mini-app. args[0] is the
// command group: db or corpus.
func Run(args []string) error {
	return run(args, os.Stdout)
}

func run(args []string, out io.Writer) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: db <init|delete|list|sweep|export|import> | corpus <ingest|size>")
	}

	switch args[0] {
	case "db":
		switch args[1] {
		case "init":
			return runInit(args[2:], out)
		case "delete":
			return runDelete(args[2:], out)
		case "list":
			return runList(args[2:], out)
		case "sweep":
			return runSweep(args[2:], out)
		case "export":
			return runExport(args[2:], out)
		case "import":
			return runImport(args[2:], out)
		default:
			return fmt.Errorf("unknown db subcommand: %s", args[1])
		}
	case "corpus":
		switch args[1] {
		case "ingest":
			return runIngest(args[2:], out)
		case "size":
			return runSize(args[2:], out)
		default:
			return fmt.Errorf("unknown corpus subcommand: %s", args[1])
		}
	default:
		return fmt.Errorf("unknown command group: %s", args[0])
	}
}

// openStore opens the database at path and ensures the schema is current
func openStore(path string, log zerolog.Logger) (*storage.Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path required")
	}
	store, err := storage.NewStore(path, false, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if err := store.InitDB(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

// newService wires a service for offline maintenance. Callers close it with
// Shutdown so queued review log writes are drained.
func newService(store *storage.Store, log zerolog.Logger) *service.Service {
	winrates := winrate.NewSource(winrate.NewCorpusCounter(store), winrate.DefaultTimeout, winrate.DefaultMinGames, log)
	return service.New(store, winrates, scheduler.New(scheduler.Leitner()),
		session.NewRegistry(session.DefaultTTL, log), service.Options{}, log)
}

func runInit(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("db init", flag.ContinueOnError)
	path := fs.String("path", "", "Database file path (required)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(*path, logx.Nop())
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Fprintf(out, "Database initialized at: %s\n", *path)
	return nil
}

func runDelete(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("db delete", flag.ContinueOnError)
	path := fs.String("path", "", "Database file path (required)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *path == "" {
		return fmt.Errorf("database path required")
	}

	store, err := storage.NewStore(*path, false, logx.Nop())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	if err := store.DeleteDB(); err != nil {
		return fmt.Errorf("failed to delete database: %w", err)
	}

	fmt.Fprintf(out, "Database deleted: %s\n", *path)
	return nil
}

func runList(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("db list", flag.ContinueOnError)
	path := fs.String("path", "", "Database file path (required)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(*path, logx.Nop())
	if err != nil {
		return err
	}
	defer store.Close()

	reps, err := store.ListRepertoires(context.Background())
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if len(reps) == 0 {
		fmt.Fprintln(out, "No repertoires found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tName\tColor\tElo\tCoverage\tCreated")
	fmt.Fprintln(w, strings.Repeat("-", 72))

	for _, r := range reps {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%.0f%%\t%s\n",
			r.ID,
			r.Name,
			r.Side,
			r.EloBracket,
			r.CoverageTarget,
			r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\nFound %d repertoire(s)\n", len(reps))
	return nil
}

func runSweep(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("db sweep", flag.ContinueOnError)
	path := fs.String("path", "", "Database file path (required)")
	id := fs.Int64("id", 0, "Repertoire ID (required)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id < 1 {
		return fmt.Errorf("repertoire id required")
	}

	store, err := openStore(*path, logx.Nop())
	if err != nil {
		return err
	}
	svc := newService(store, logx.Nop())
	defer svc.Shutdown(5 * time.Second)

	n, err := svc.Sweep(context.Background(), *id)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	fmt.Fprintf(out, "Removed %d unreachable edge(s) from repertoire %d\n", n, *id)
	return nil
}

func runExport(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("db export", flag.ContinueOnError)
	path := fs.String("path", "", "Database file path (required)")
	id := fs.Int64("id", 0, "Repertoire ID (required)")
	dest := fs.String("out", "", "Backup file (required)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id < 1 {
		return fmt.Errorf("repertoire id required")
	}
	if *dest == "" {
		return fmt.Errorf("output file required")
	}

	store, err := openStore(*path, logx.Nop())
	if err != nil {
		return err
	}
	svc := newService(store, logx.Nop())
	defer svc.Shutdown(5 * time.Second)

	f, err := os.Create(*dest)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}

	n, err := svc.Export(context.Background(), *id, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(*dest)
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Fprintf(out, "Exported repertoire %d (%d edges) to %s\n", *id, n, *dest)
	return nil
}

func runImport(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("db import", flag.ContinueOnError)
	path := fs.String("path", "", "Database file path (required)")
	src := fs.String("in", "", "Backup file (required)")
	name := fs.String("name", "", "Name for the restored repertoire (default: name in backup)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *src == "" {
		return fmt.Errorf("input file required")
	}

	f, err := os.Open(*src)
	if err != nil {
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	defer f.Close()

	store, err := openStore(*path, logx.Nop())
	if err != nil {
		return err
	}
	svc := newService(store, logx.Nop())
	defer svc.Shutdown(5 * time.Second)

	rep, err := svc.Import(context.Background(), f, *name)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Fprintf(out, "Imported repertoire %q as ID %d\n", rep.Name, rep.ID)
	return nil
}

func runIngest(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("corpus ingest", flag.ContinueOnError)
	path := fs.String("path", "", "Database file path (required)")
	pgnFiles := fs.String("pgn", "", "Comma-separated PGN files (or pass them as arguments)")
	maxPlies := fs.Int("max-plies", ingest.DefaultMaxPlies, "Plies counted per game")
	workers := fs.Int("workers", 2, "Files ingested in parallel")
	ratingMin := fs.Int("rating-min", 0, "Minimum rating of both players")
	batch := fs.Int("batch", ingest.DefaultBatchGames, "Games between database flushes")
	level := fs.String("log-level", "info", "Log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	var paths []string
	for _, p := range strings.Split(*pgnFiles, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	paths = append(paths, fs.Args()...)
	if len(paths) == 0 {
		return fmt.Errorf("at least one PGN file required")
	}

	log := logx.New(os.Stderr, *level)
	store, err := openStore(*path, log)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in := ingest.New(store, ingest.Config{
		Workers:    *workers,
		MaxPlies:   *maxPlies,
		BatchGames: *batch,
		RatingMin:  *ratingMin,
		Logger:     log,
	})
	sum, err := in.Run(ctx, paths)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Files\t%d (%d failed)\n", sum.Files, sum.Failed)
	fmt.Fprintf(w, "Games\t%d\n", sum.Games)
	fmt.Fprintf(w, "Skipped\t%d\n", sum.Skipped)
	fmt.Fprintf(w, "Positions\t%d\n", sum.Positions)
	fmt.Fprintf(w, "Elapsed\t%s\n", sum.Elapsed.Round(time.Millisecond))
	return w.Flush()
}

func runSize(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("corpus size", flag.ContinueOnError)
	path := fs.String("path", "", "Database file path (required)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(*path, logx.Nop())
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.CorpusSize(context.Background())
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	fmt.Fprintf(out, "Corpus holds %s move counter(s)\n", strconv.FormatInt(n, 10))
	return nil
}
