package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"repertoire/internal/logx"
	"repertoire/internal/server/core"
)

const games = `[Event "Rated Rapid game"]
[Result "1-0"]
[WhiteElo "1210"]
[BlackElo "1290"]

1. e4 e5 2. Nf3 Nc6 3. Bc4 1-0

[Event "Rated Rapid game"]
[Result "1/2-1/2"]
[WhiteElo "1250"]
[BlackElo "1230"]

1. e4 c5 1/2-1/2

`

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	if err := run(args, &out); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out.String()
}

func TestDBCommands(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "repertoire.db")

	if out := runCLI(t, "db", "init", "-path", db); !strings.Contains(out, "Database initialized") {
		t.Errorf("init output = %q", out)
	}
	if out := runCLI(t, "db", "list", "-path", db); !strings.Contains(out, "No repertoires found") {
		t.Errorf("empty list output = %q", out)
	}

	store, err := openStore(db, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	svc := newService(store, logx.Nop())
	rep, err := svc.Create(context.Background(), "Italian", core.SideWhite, 1200)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Shutdown(time.Second); err != nil {
		t.Fatal(err)
	}

	backup := filepath.Join(dir, "italian.json.zst")
	id := "1"
	if rep.ID != 1 {
		t.Fatalf("repertoire id = %d", rep.ID)
	}
	runCLI(t, "db", "export", "-path", db, "-id", id, "-out", backup)
	if _, err := os.Stat(backup); err != nil {
		t.Fatalf("backup not written: %v", err)
	}

	if out := runCLI(t, "db", "import", "-path", db, "-in", backup, "-name", "Italian copy"); !strings.Contains(out, `"Italian copy"`) {
		t.Errorf("import output = %q", out)
	}

	out := runCLI(t, "db", "list", "-path", db)
	if !strings.Contains(out, "Italian copy") || !strings.Contains(out, "Found 2 repertoire(s)") {
		t.Errorf("list output = %q", out)
	}

	if out := runCLI(t, "db", "sweep", "-path", db, "-id", id); !strings.Contains(out, "Removed 0") {
		t.Errorf("sweep output = %q", out)
	}

	runCLI(t, "db", "delete", "-path", db)
	if _, err := os.Stat(db); !os.IsNotExist(err) {
		t.Errorf("database still present: %v", err)
	}
}

func TestCorpusCommands(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "repertoire.db")
	pgnPath := filepath.Join(dir, "games.pgn")
	if err := os.WriteFile(pgnPath, []byte(games), 0644); err != nil {
		t.Fatal(err)
	}

	out := runCLI(t, "corpus", "ingest", "-path", db, "-log-level", "error", pgnPath)
	if !strings.Contains(out, "Games") || !strings.Contains(out, "2") {
		t.Errorf("ingest output = %q", out)
	}

	if out := runCLI(t, "corpus", "size", "-path", db); !strings.Contains(out, "Corpus holds 6 move counter(s)") {
		t.Errorf("size output = %q", out)
	}
}

func TestRunRejects(t *testing.T) {
	tests := [][]string{
		{"db"},
		{"db", "nope"},
		{"corpus", "nope"},
		{"other", "init"},
		{"db", "list"},
		{"db", "sweep", "-path", "x.db"},
		{"corpus", "ingest", "-path", "x.db"},
	}
	for _, args := range tests {
		if err := run(args, &bytes.Buffer{}); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}
