package leaderboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 5 * time.Second

// Notifier forwards a participant's updated score to the ranking
// collaborator. The call runs inside the caller's transaction boundary:
// a returned error aborts the whole completion recording.
type Notifier interface {
	SubmitScore(ctx context.Context, target, source, participant string, score int64) error
}

// Client submits scores to an HTTP leaderboard endpoint.
type Client struct {
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewClient builds a Client with the given timeout; zero means default.
func NewClient(timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger,
	}
}

type submission struct {
	Source      string `json:"source"`
	Participant string `json:"participant"`
	Score       int64  `json:"score"`
}

// SubmitScore posts the new running total to the target endpoint. Any
// transport or non-2xx failure is returned to the caller, which treats it
// as a transaction failure, not a dropped notification.
func (c *Client) SubmitScore(ctx context.Context, target, source, participant string, score int64) error {
	body, err := json.Marshal(submission{Source: source, Participant: participant, Score: score})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Huntline-Source", source)

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		c.Logger.Warn("leaderboard submit failed", zap.String("target", target), zap.Error(err))
		return fmt.Errorf("submit score: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		c.Logger.Warn("leaderboard rejected score",
			zap.String("target", target),
			zap.Int("status", res.StatusCode))
		return fmt.Errorf("submit score: status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}
	c.Logger.Debug("leaderboard score submitted",
		zap.String("participant", participant),
		zap.Int64("score", score))
	return nil
}
