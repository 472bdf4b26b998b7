package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCodeFor(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("parse: %w", ErrInvalidPosition), ErrInvalidFEN},
		{fmt.Errorf("%w: Ke9", ErrIllegal), ErrIllegalMove},
		{fmt.Errorf("id 7: %w", ErrRepertoireMissing), ErrRepertoireNotFound},
		{ErrMissing, ErrNotFound},
		{ErrDuplicate, ErrConflict},
		{ErrNotSelected, ErrNoRepertoire},
		{fmt.Errorf("query: %w", context.DeadlineExceeded), ErrCorpusUnavailable},
		{ErrCorpusUnreachable, ErrCorpusUnavailable},
		{ErrInvalidInput, ErrInvalidRequest},
		{errors.New("disk on fire"), ErrInternalError},
	} {
		if got := CodeFor(tc.err); got != tc.want {
			t.Errorf("CodeFor(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestBrackets(t *testing.T) {
	for _, tc := range []struct {
		rating int
		want   int
	}{
		{-5, 0},
		{850, 0},
		{1000, 1000},
		{1399, 1200},
		{2150, 2000},
		{2499, 2200},
		{3100, 2500},
	} {
		if got := BracketFor(tc.rating); got != tc.want {
			t.Errorf("BracketFor(%d) = %d, want %d", tc.rating, got, tc.want)
		}
	}
	if !ValidBracket(1200) || ValidBracket(1300) {
		t.Error("ValidBracket mismatch")
	}
}

func TestParseSide(t *testing.T) {
	for in, want := range map[string]Side{"white": SideWhite, "W": SideWhite, " black ": SideBlack, "b": SideBlack} {
		got, err := ParseSide(in)
		if err != nil || got != want {
			t.Errorf("ParseSide(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseSide("green"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ParseSide(green) err = %v", err)
	}
}

func TestScheduleStatus(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	fresh := ScheduleState{DueAt: now}
	if fresh.Status(now) != StatusNew || !fresh.IsDue(now) {
		t.Errorf("fresh edge status = %v", fresh.Status(now))
	}

	reviewed := ScheduleState{DueAt: now.Add(-time.Minute), ReviewCount: 2}
	if reviewed.Status(now) != StatusDue {
		t.Errorf("overdue status = %v", reviewed.Status(now))
	}

	later := ScheduleState{DueAt: now.Add(time.Hour), ReviewCount: 1}
	if later.Status(now) != StatusScheduled || later.IsDue(now) {
		t.Errorf("future status = %v", later.Status(now))
	}
}
