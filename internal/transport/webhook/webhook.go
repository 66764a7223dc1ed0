// Package webhook implements the anonymous transport: a script endpoint
// that accepts appended rows by POST and returns the sheet by GET.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/marcus/fueltrack/internal/transport"
)

// DefaultTimeout bounds a single webhook request
const DefaultTimeout = 60 * time.Second

const userAgent = "fueltrack-webhook/1"

// exportRequest is the POST body understood by the script.
type exportRequest struct {
	Action  string  `json:"action"`
	Records [][]any `json:"records"`
}

// importResponse is the GET body returned by the script. Data includes the
// header row.
type importResponse struct {
	Success bool    `json:"success"`
	Data    [][]any `json:"data"`
	Error   string  `json:"error,omitempty"`
}

// Client talks to one webhook URL
type Client struct {
	URL  string
	HTTP *http.Client
}

// New creates a client. A zero timeout uses DefaultTimeout.
func New(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{URL: url, HTTP: &http.Client{Timeout: timeout}}
}

// Push posts the batch. The endpoint's response is opaque, so any
// completed request counts as delivered; only transport-level failures
// are errors.
func (c *Client) Push(ctx context.Context, records []transport.Record) (transport.PushResult, error) {
	body, err := json.Marshal(exportRequest{Action: "export", Records: transport.Rows(records)})
	if err != nil {
		return transport.PushResult{}, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return transport.PushResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return transport.PushResult{}, fmt.Errorf("POST webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	slog.Debug("webhook push", "records", len(records), "status", resp.StatusCode)
	return transport.PushResult{}, nil
}

// Pull fetches the whole sheet and maps data rows by position.
func (c *Client) Pull(ctx context.Context) ([]transport.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET webhook: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var body importResponse
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: the webhook did not return JSON (HTTP %d); check that the script is deployed for anonymous access",
			transport.ErrMalformedResponse, resp.StatusCode)
	}
	if !body.Success {
		msg := body.Error
		if msg == "" {
			msg = "script returned success=false"
		}
		return nil, fmt.Errorf("%w: %s", transport.ErrRemoteFailure, msg)
	}

	return parseRows(body.Data), nil
}

// parseRows skips the header row and any row that cannot be mapped.
func parseRows(data [][]any) []transport.Record {
	if len(data) <= 1 {
		return nil
	}
	records := make([]transport.Record, 0, len(data)-1)
	for i, row := range data[1:] {
		r, err := transport.ParseRow(row)
		if err != nil {
			slog.Warn("skipping remote row", "row", i+2, "err", err)
			continue
		}
		records = append(records, r)
	}
	return records
}
