package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueueProcessesAll(t *testing.T) {
	var seen atomic.Int32
	q := NewQueue(3, func(ctx context.Context, id int, path string) FileResult {
		seen.Add(1)
		return FileResult{Games: 1}
	})

	results := make(chan FileResult, 5)
	for _, p := range []string{"a", "b", "c", "d", "e"} {
		if err := q.Submit(FileTask{Path: p, Response: results}); err != nil {
			t.Fatalf("Submit(%s): %v", p, err)
		}
	}

	got := map[string]bool{}
	for i := 0; i < 5; i++ {
		select {
		case r := <-results:
			got[r.Path] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for results")
		}
	}
	if len(got) != 5 || seen.Load() != 5 {
		t.Errorf("got %v, processed %d", got, seen.Load())
	}
	if err := q.Shutdown(time.Second); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestQueueCancel(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	q := NewQueue(1, func(ctx context.Context, id int, path string) FileResult {
		close(started)
		select {
		case <-ctx.Done():
			return FileResult{Error: ctx.Err()}
		case <-release:
			return FileResult{}
		}
	})
	defer close(release)

	results := make(chan FileResult, 1)
	if err := q.Submit(FileTask{Path: "slow", Response: results}); err != nil {
		t.Fatal(err)
	}
	<-started
	q.Cancel()

	select {
	case r := <-results:
		if !errors.Is(r.Error, context.Canceled) {
			t.Errorf("error = %v, want canceled", r.Error)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancel did not reach the worker")
	}

	if err := q.Submit(FileTask{Path: "late", Response: results}); err == nil {
		t.Error("submit after cancel accepted")
	}
}

func TestQueueSubmitWaitsForRoom(t *testing.T) {
	const files = queueSize*4 + 3
	var seen atomic.Int32
	q := NewQueue(1, func(ctx context.Context, id int, path string) FileResult {
		seen.Add(1)
		time.Sleep(time.Millisecond)
		return FileResult{}
	})

	results := make(chan FileResult, files)
	for i := 0; i < files; i++ {
		if err := q.Submit(FileTask{Path: fmt.Sprintf("f%d.pgn", i), Response: results}); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}
	if err := q.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if n := seen.Load(); n != files {
		t.Errorf("processed %d files, want %d", n, files)
	}
	if len(results) != files {
		t.Errorf("%d results, want %d", len(results), files)
	}
}
