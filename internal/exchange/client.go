package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"linkdrop/internal/logger"
)

var (
	ErrNetwork    = errors.New("network error")
	ErrHTTPStatus = errors.New("unexpected http status")
)

const DefaultClientTimeout = 15 * time.Second

// TransportError is returned by Send for every delivery failure. Err is ErrNetwork
// or ErrHTTPStatus; Cause carries the underlying error for network failures.
type TransportError struct {
	Status int
	Err    error
	Cause  error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("exchange: %v: %d", e.Err, e.Status)
	}
	if e.Cause != nil {
		return fmt.Sprintf("exchange: %v: %v", e.Err, e.Cause)
	}
	return "exchange: " + e.Err.Error()
}

func (e *TransportError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

type Client struct {
	http *http.Client
}

// NewClient returns a client whose requests time out after timeout; 0 disables it.
func NewClient(timeout time.Duration) *Client {
	return &Client{http: &http.Client{Timeout: timeout}}
}

// Send seals p with token and POSTs it once to url. The token embedded in p is
// sent as given.
func (c *Client) Send(ctx context.Context, url, token string, p Payload) error {
	env, err := Seal(p, token)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		sendsTotal.WithLabelValues(resultError).Inc()
		return &TransportError{Err: ErrNetwork, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		sendsTotal.WithLabelValues(resultError).Inc()
		return &TransportError{Err: ErrNetwork, Cause: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		sendsTotal.WithLabelValues(resultRejected).Inc()
		return &TransportError{Status: resp.StatusCode, Err: ErrHTTPStatus}
	}

	sendsTotal.WithLabelValues(resultAccepted).Inc()
	logger.Log.Debugf("Delivered %s %q to %s", p.Type, p.Name, url)
	return nil
}
