// Package apiclient is the HTTP client side of the attendance API, used by
// the check-in orchestrator.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"attendmate/internal/apperr"
	"attendmate/internal/attendance"
	"attendmate/internal/session"
)

// Client calls the attendance service with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client. A zero timeout gets a conservative default.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type apiError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// do runs one request and decodes either the result or the service's typed
// error body. Transport failures surface as the network kind.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindNetwork, err, "attendance service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Kind == "" {
			return apperr.New(apperr.KindNetwork, "attendance service error %d", resp.StatusCode)
		}
		return apperr.New(apperr.Kind(apiErr.Kind), "%s", apiErr.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ActiveSession returns the session currently collecting for a class.
func (c *Client) ActiveSession(ctx context.Context, classID string) (session.Session, error) {
	var s session.Session
	err := c.do(ctx, http.MethodGet, "/v1/classes/"+classID+"/session", nil, &s)
	return s, err
}

type checkInBody struct {
	SessionID string    `json:"session_id"`
	Lat       float64   `json:"lat"`
	Long      float64   `json:"long"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckIn submits one check-in for the token's student.
func (c *Client) CheckIn(ctx context.Context, sessionID string, coords attendance.Coordinates, observedAt time.Time) (attendance.CheckInResult, error) {
	var result attendance.CheckInResult
	err := c.do(ctx, http.MethodPost, "/v1/checkins", checkInBody{
		SessionID: sessionID,
		Lat:       coords.Lat,
		Long:      coords.Long,
		Timestamp: observedAt,
	}, &result)
	return result, err
}
