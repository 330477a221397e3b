package huntlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Huntline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Event represents the API event model.
type Event struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	StartTime     int64   `json:"start_time"`
	EndTime       int64   `json:"end_time"`
	RewardAmount  int64   `json:"reward_amount"`
	BonusBps      int64   `json:"bonus_bps"`
	TokenMetadata string  `json:"token_metadata,omitempty"`
	PuzzleIDs     []int64 `json:"puzzle_ids"`
	Cancelled     bool    `json:"cancelled"`
}

// Completion is the response to a recorded completion.
type Completion struct {
	Participant string `json:"participant"`
	PuzzleID    int64  `json:"puzzle_id"`
	Score       int64  `json:"score"`
	Total       int64  `json:"total"`
}

// Claim is a recorded reward claim.
type Claim struct {
	EventID     int64  `json:"event_id"`
	Participant string `json:"participant"`
	Amount      int64  `json:"amount"`
}

// Token is a minted commemorative token.
type Token struct {
	ID       int64  `json:"id"`
	EventID  int64  `json:"event_id"`
	Owner    string `json:"owner"`
	Metadata string `json:"metadata,omitempty"`
	MintedAt int64  `json:"minted_at"`
}

// Score is a participant's running total for an event.
type Score struct {
	EventID     int64  `json:"event_id"`
	Participant string `json:"participant"`
	Score       int64  `json:"score"`
}

// LedgerEntry is one record of the mutation ledger.
type LedgerEntry struct {
	ID      int64          `json:"id"`
	TS      string         `json:"ts"`
	Type    string         `json:"type"`
	EventID int64          `json:"event_id,omitempty"`
	Entity  string         `json:"entity"`
	Actor   string         `json:"actor"`
	Payload map[string]any `json:"payload,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateEvent creates an event.
func (c *Client) CreateEvent(ctx context.Context, name string, start, end, reward, bonusBps int64, metadata string, puzzleIDs []int64) (Event, error) {
	body := map[string]any{
		"name":           name,
		"start_time":     start,
		"end_time":       end,
		"reward_amount":  reward,
		"bonus_bps":      bonusBps,
		"token_metadata": metadata,
		"puzzle_ids":     puzzleIDs,
	}
	var resp Event
	err := c.do(ctx, http.MethodPost, "v0/events", body, &resp)
	return resp, err
}

// GetEvent fetches an event by id.
func (c *Client) GetEvent(ctx context.Context, eventID int64) (Event, error) {
	var resp Event
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v0/events/%d", eventID), nil, &resp)
	return resp, err
}

// ListEvents returns all events.
func (c *Client) ListEvents(ctx context.Context) ([]Event, error) {
	var resp []Event
	err := c.do(ctx, http.MethodGet, "v0/events", nil, &resp)
	return resp, err
}

// RecordCompletion reports a scored puzzle completion for a participant.
func (c *Client) RecordCompletion(ctx context.Context, eventID int64, participant string, puzzleID, score int64) (Completion, error) {
	body := map[string]any{
		"participant": participant,
		"puzzle_id":   puzzleID,
		"score":       score,
	}
	var resp Completion
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/events/%d/completions", eventID), body, &resp)
	return resp, err
}

// ClaimReward claims the authenticated participant's one-time reward.
func (c *Client) ClaimReward(ctx context.Context, eventID int64) (Claim, error) {
	var resp Claim
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/events/%d/claim", eventID), nil, &resp)
	return resp, err
}

// MintToken mints the authenticated participant's commemorative token.
func (c *Client) MintToken(ctx context.Context, eventID int64) (Token, error) {
	var resp Token
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/events/%d/tokens", eventID), nil, &resp)
	return resp, err
}

// GetScore returns a participant's running total for an event.
func (c *Client) GetScore(ctx context.Context, eventID int64, participant string) (Score, error) {
	var resp Score
	endpoint := fmt.Sprintf("v0/events/%d/participants/%s/score", eventID, url.PathEscape(participant))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// IsEventActive reports the event's activity at the server's current time.
func (c *Client) IsEventActive(ctx context.Context, eventID int64) (bool, error) {
	var resp map[string]bool
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v0/events/%d/active", eventID), nil, &resp)
	return resp["active"], err
}

// Ledger returns recent ledger entries.
func (c *Client) Ledger(ctx context.Context, limit int) ([]LedgerEntry, error) {
	endpoint := "v0/ledger"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []LedgerEntry
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
