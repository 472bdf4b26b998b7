package winrate

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"repertoire/internal/server/position"

	"github.com/gofiber/fiber/v2"
)

// explorerResponse mirrors the lichess opening explorer payload.
type explorerResponse struct {
	White int64 `json:"white"`
	Draws int64 `json:"draws"`
	Black int64 `json:"black"`
	Moves []struct {
		UCI   string `json:"uci"`
		SAN   string `json:"san"`
		White int64  `json:"white"`
		Draws int64  `json:"draws"`
		Black int64  `json:"black"`
	} `json:"moves"`
	Opening *struct {
		ECO  string `json:"eco"`
		Name string `json:"name"`
	} `json:"opening"`
}

// ExplorerCounter queries a lichess-compatible opening explorer.
type ExplorerCounter struct {
	baseURL string
	token   string
	speeds  string
	timeout time.Duration
}

func NewExplorerCounter(baseURL, token, speeds string, timeout time.Duration) *ExplorerCounter {
	if speeds == "" {
		speeds = "rapid"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ExplorerCounter{baseURL: baseURL, token: token, speeds: speeds, timeout: timeout}
}

func (e *ExplorerCounter) Name() string { return "explorer" }

func (e *ExplorerCounter) url(fen string, bracket int) string {
	q := url.Values{}
	q.Set("variant", "standard")
	q.Set("speeds", e.speeds)
	q.Set("ratings", strconv.Itoa(bracket))
	q.Set("fen", fen)
	return e.baseURL + "?" + q.Encode()
}

func (e *ExplorerCounter) Counts(ctx context.Context, pos *position.Position, bracket int) (Counts, error) {
	timeout := e.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return Counts{}, context.DeadlineExceeded
	}

	agent := fiber.Get(e.url(pos.FEN(), bracket)).Timeout(timeout)
	if e.token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+e.token)
	}

	type result struct {
		resp explorerResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		var r result
		status, _, errs := agent.Struct(&r.resp)
		switch {
		case len(errs) > 0:
			r.err = errs[0]
		case status != fiber.StatusOK:
			r.err = fmt.Errorf("explorer returned status %d", status)
		}
		done <- r
	}()

	select {
	case <-ctx.Done():
		return Counts{}, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return Counts{}, r.err
		}
		return r.resp.counts(), nil
	}
}

func (r explorerResponse) counts() Counts {
	c := Counts{White: r.White, Draws: r.Draws, Black: r.Black}
	for _, m := range r.Moves {
		c.Moves = append(c.Moves, MoveCount{SAN: m.SAN, UCI: m.UCI, White: m.White, Draws: m.Draws, Black: m.Black})
	}
	return c
}
