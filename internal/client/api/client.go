// FILE: repertoire/internal/client/api/client.go
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"repertoire/internal/client/display"
	"repertoire/internal/server/core"
)

const sessionHeader = "X-Session-ID"

// HealthResponse mirrors the server health check
type HealthResponse struct {
	Status   string `json:"status"`
	Time     int64  `json:"time"`
	Storage  string `json:"storage"`
	Sessions int    `json:"sessions"`
}

// Error is a non-2xx API reply
type Error struct {
	Status  int
	Message string
	Code    string
	Details string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

type Client struct {
	BaseURL    string
	SessionID  string // sent as X-Session-ID; empty uses the server's default cursor
	HTTPClient *http.Client
	Verbose    bool
	Out        io.Writer // request trace
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		Out: os.Stdout,
	}
}

func (c *Client) SetVerbose(v bool) {
	c.Verbose = v
}

// SetBaseURL updates the API base URL for the client
func (c *Client) SetBaseURL(url string) {
	c.BaseURL = strings.TrimRight(url, "/")
}

func (c *Client) doRequest(method, path string, body any, result any) error {
	url := c.BaseURL + path

	var bodyReader io.Reader
	var bodyStr string
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(jsonData)
		bodyStr = string(jsonData)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.SessionID != "" {
		req.Header.Set(sessionHeader, c.SessionID)
	}

	fmt.Fprintf(c.Out, "\n%s[API] %s %s%s\n", display.Blue, method, path, display.Reset)
	if bodyStr != "" {
		if c.Verbose {
			var prettyBody any
			json.Unmarshal([]byte(bodyStr), &prettyBody)
			prettyJSON, _ := json.MarshalIndent(prettyBody, "", "  ")
			fmt.Fprintf(c.Out, "%sRequest Body:%s\n%s\n", display.Cyan, display.Reset, string(prettyJSON))
		} else {
			fmt.Fprintf(c.Out, "%s%s%s\n", display.Blue, bodyStr, display.Reset)
		}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		fmt.Fprintf(c.Out, "%s[ERROR] %s%s\n", display.Red, err.Error(), display.Reset)
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	statusColor := display.Green
	if resp.StatusCode >= 400 {
		statusColor = display.Red
	}
	fmt.Fprintf(c.Out, "%s[%d %s]%s\n", statusColor, resp.StatusCode, http.StatusText(resp.StatusCode), display.Reset)

	if c.Verbose && len(respBody) > 0 {
		var prettyResp any
		if err := json.Unmarshal(respBody, &prettyResp); err == nil {
			prettyJSON, _ := json.MarshalIndent(prettyResp, "", "  ")
			fmt.Fprintf(c.Out, "%sResponse Body:%s\n%s\n", display.Cyan, display.Reset, string(prettyJSON))
		} else {
			fmt.Fprintf(c.Out, "%sResponse:%s\n%s\n", display.Cyan, display.Reset, string(respBody))
		}
	}

	if resp.StatusCode >= 400 {
		apiErr := &Error{Status: resp.StatusCode}
		var errResp core.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			apiErr.Message, apiErr.Code, apiErr.Details = errResp.Error, errResp.Code, errResp.Details
			if errResp.Details != "" && !c.Verbose {
				fmt.Fprintf(c.Out, "%sDetails: %s%s\n", display.Red, errResp.Details, display.Reset)
			}
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			fmt.Fprintf(c.Out, "%sResponse parse error: %s%s\n", display.Red, err.Error(), display.Reset)
			fmt.Fprintf(c.Out, "%sRaw response: %s%s\n", display.Green, string(respBody), display.Reset)
			return err
		}
	}

	return nil
}

func repertoirePath(id int64) string {
	return "/api/v1/repertoires/" + strconv.FormatInt(id, 10)
}

// API Methods

func (c *Client) Health() (*HealthResponse, error) {
	var resp HealthResponse
	err := c.doRequest("GET", "/health", nil, &resp)
	return &resp, err
}

func (c *Client) ListRepertoires() ([]core.Repertoire, error) {
	var resp []core.Repertoire
	err := c.doRequest("GET", "/api/v1/repertoires", nil, &resp)
	return resp, err
}

func (c *Client) CreateRepertoire(name, color string, elo int) (*core.Repertoire, error) {
	req := &core.CreateRepertoireRequest{Name: name, Color: color, Elo: elo}
	var resp core.Repertoire
	err := c.doRequest("POST", "/api/v1/repertoires", req, &resp)
	return &resp, err
}

func (c *Client) GetRepertoire(id int64) (*core.Repertoire, error) {
	var resp core.Repertoire
	err := c.doRequest("GET", repertoirePath(id), nil, &resp)
	return &resp, err
}

func (c *Client) UpdateRepertoire(id int64, req core.UpdateRepertoireRequest) (*core.Repertoire, error) {
	var resp core.Repertoire
	err := c.doRequest("PUT", repertoirePath(id), &req, &resp)
	return &resp, err
}

func (c *Client) DeleteRepertoire(id int64) error {
	return c.doRequest("DELETE", repertoirePath(id), nil, nil)
}

func (c *Client) CountDue(id int64) (int, error) {
	var resp core.CountResponse
	err := c.doRequest("GET", repertoirePath(id)+"/due-count", nil, &resp)
	return resp.Count, err
}

func (c *Client) ReviewStats(id int64) (*core.ReviewStats, error) {
	var resp core.ReviewStats
	err := c.doRequest("GET", repertoirePath(id)+"/stats", nil, &resp)
	return &resp, err
}

func (c *Client) Sweep(id int64) (int, error) {
	var resp core.CountResponse
	err := c.doRequest("POST", repertoirePath(id)+"/sweep", nil, &resp)
	return resp.Count, err
}

// OpenSession creates a server cursor and binds the client to it
func (c *Client) OpenSession() (string, error) {
	var resp core.SessionResponse
	if err := c.doRequest("POST", "/api/v1/sessions", nil, &resp); err != nil {
		return "", err
	}
	c.SessionID = resp.SessionID
	return resp.SessionID, nil
}

// CloseSession drops the bound cursor and falls back to the default one
func (c *Client) CloseSession() error {
	if c.SessionID == "" {
		return nil
	}
	err := c.doRequest("DELETE", "/api/v1/sessions/"+c.SessionID, nil, nil)
	c.SessionID = ""
	return err
}

func (c *Client) Select(id int64) (*core.CursorResponse, error) {
	var resp core.CursorResponse
	err := c.doRequest("POST", "/api/v1/session/select", &core.SelectRepertoireRequest{ID: id}, &resp)
	return &resp, err
}

func (c *Client) Cursor() (*core.CursorResponse, error) {
	var resp core.CursorResponse
	err := c.doRequest("GET", "/api/v1/session/cursor", nil, &resp)
	return &resp, err
}

func (c *Client) SetFEN(fen string) (*core.CursorResponse, error) {
	var resp core.CursorResponse
	err := c.doRequest("PUT", "/api/v1/session/fen", &core.SetFENRequest{FEN: fen}, &resp)
	return &resp, err
}

func (c *Client) Winrates() (*core.PositionWinrate, error) {
	var resp core.PositionWinrate
	err := c.doRequest("GET", "/api/v1/session/winrates", nil, &resp)
	return &resp, err
}

func (c *Client) Edges() (*core.EdgesResponse, error) {
	var resp core.EdgesResponse
	err := c.doRequest("GET", "/api/v1/session/edges", nil, &resp)
	return &resp, err
}

func (c *Client) AddEdge(san string) (*core.Edge, error) {
	var resp core.Edge
	err := c.doRequest("POST", "/api/v1/session/edges", &core.MoveRequest{SAN: san}, &resp)
	return &resp, err
}

func (c *Client) DeleteEdge(san string) (*core.EdgesResponse, error) {
	var resp core.EdgesResponse
	err := c.doRequest("DELETE", "/api/v1/session/edges", &core.MoveRequest{SAN: san}, &resp)
	return &resp, err
}

func (c *Client) Play(san string) (*core.CursorResponse, error) {
	var resp core.CursorResponse
	err := c.doRequest("POST", "/api/v1/session/play", &core.MoveRequest{SAN: san}, &resp)
	return &resp, err
}

func (c *Client) Back() (*core.CursorResponse, error) {
	var resp core.CursorResponse
	err := c.doRequest("POST", "/api/v1/session/back", nil, &resp)
	return &resp, err
}

func (c *Client) Due() ([]string, error) {
	var resp core.DueResponse
	err := c.doRequest("GET", "/api/v1/session/due", nil, &resp)
	return resp.FENs, err
}

// Test answers a practice prompt and updates the schedule
func (c *Client) Test(san string) (*core.TestResult, error) {
	var resp core.TestResult
	err := c.doRequest("POST", "/api/v1/session/test", &core.MoveRequest{SAN: san}, &resp)
	return &resp, err
}

// Drill answers a practice prompt without scheduling
func (c *Client) Drill(san string) (*core.TestResult, error) {
	var resp core.TestResult
	err := c.doRequest("POST", "/api/v1/session/drill", &core.MoveRequest{SAN: san}, &resp)
	return &resp, err
}

func (c *Client) Board() (*core.BoardResponse, error) {
	var resp core.BoardResponse
	err := c.doRequest("GET", "/api/v1/session/board", nil, &resp)
	return &resp, err
}

// RawRequest performs a raw HTTP request for debugging purposes
func (c *Client) RawRequest(method, path string, body string) error {
	var bodyData any
	if body != "" {
		if err := json.Unmarshal([]byte(body), &bodyData); err != nil {
			bodyData = body
		}
	}

	return c.doRequest(method, path, bodyData, nil)
}
