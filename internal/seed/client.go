package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/okian/wcs/internal/domain/leaderboard"
	"github.com/okian/wcs/internal/domain/model"
)

// outcome of one submission.
type outcome int

const (
	outcomeAccepted outcome = iota
	outcomeDuplicate
	outcomeFailed
)

// Client talks to the credit score HTTP API.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{base: baseURL, http: &http.Client{Timeout: timeout}}
}

// submission mirrors the POST /activities body.
type submission struct {
	SubmissionID string `json:"submission_id"`
	model.ActivityRecord
}

type ack struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Health checks that /healthz answers 200.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	return drain(resp, http.StatusOK, nil)
}

// PutEmployee upserts a roster entry.
func (c *Client) PutEmployee(ctx context.Context, e model.Employee) error {
	resp, err := c.do(ctx, http.MethodPut, "/employees/"+url.PathEscape(e.ID), e)
	if err != nil {
		return err
	}
	return drain(resp, http.StatusOK, nil)
}

// PutTeamWeights stores a team's weights.
func (c *Client) PutTeamWeights(ctx context.Context, team string, w model.Weights) error {
	resp, err := c.do(ctx, http.MethodPut, "/teams/"+url.PathEscape(team)+"/weights", w)
	if err != nil {
		return err
	}
	return drain(resp, http.StatusOK, nil)
}

// Submit posts one activity and classifies the answer.
func (c *Client) Submit(ctx context.Context, sub model.Submission) (outcome, error) {
	resp, err := c.do(ctx, http.MethodPost, "/activities", submission{SubmissionID: sub.ID, ActivityRecord: sub.Activity})
	if err != nil {
		return outcomeFailed, err
	}
	var a ack
	switch resp.StatusCode {
	case http.StatusAccepted:
		return outcomeAccepted, drain(resp, http.StatusAccepted, &a)
	case http.StatusOK:
		if err := drain(resp, http.StatusOK, &a); err != nil {
			return outcomeFailed, err
		}
		if a.Duplicate {
			return outcomeDuplicate, nil
		}
		return outcomeAccepted, nil
	default:
		return outcomeFailed, drain(resp, http.StatusAccepted, nil)
	}
}

// Leaderboard fetches up to limit entries in view order.
func (c *Client) Leaderboard(ctx context.Context, view leaderboard.View, limit int) ([]leaderboard.Entry, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("sort", string(view))
	resp, err := c.do(ctx, http.MethodGet, "/leaderboard?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var entries []leaderboard.Entry
	if err := drain(resp, http.StatusOK, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Rank fetches one employee's entry.
func (c *Client) Rank(ctx context.Context, employeeID string) (leaderboard.Entry, error) {
	resp, err := c.do(ctx, http.MethodGet, "/rank/"+url.PathEscape(employeeID), nil)
	if err != nil {
		return leaderboard.Entry{}, err
	}
	var e leaderboard.Entry
	if err := drain(resp, http.StatusOK, &e); err != nil {
		return leaderboard.Entry{}, err
	}
	return e, nil
}

// Stats fetches /stats.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	resp, err := c.do(ctx, http.MethodGet, "/stats", nil)
	if err != nil {
		return nil, err
	}
	stats := map[string]any{}
	if err := drain(resp, http.StatusOK, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// drain reads and closes the body, decoding it into v when the status
// matches want.
func drain(resp *http.Response, want int, v any) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != want {
		return fmt.Errorf("%w: HTTP %d: %s", ErrUnexpectedStatus, resp.StatusCode, bytes.TrimSpace(body))
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
