// Package probe checks whether a profile carries traffic by fetching a URL
// through the local SOCKS inbound.
package probe

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"linkdrop/internal/logger"
)

const (
	DefaultURL     = "https://www.gstatic.com/generate_204"
	DefaultTimeout = 10 * time.Second
)

type Options struct {
	URL string
	// Timeout bounds each attempt.
	Timeout time.Duration
	// Retries is the number of extra attempts after the first failure.
	Retries int
}

func (o Options) withDefaults() Options {
	if o.URL == "" {
		o.URL = DefaultURL
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	return o
}

// Result describes a successful check. Attempt is zero-based.
type Result struct {
	Attempt int
	Latency time.Duration
	Status  int
}

type Prober struct {
	opts   Options
	client *http.Client
	stats  *Stats
	// backoff between attempts
	backoff time.Duration
}

// New returns a prober that dials through the SOCKS5 proxy at socksAddr.
// stats may be nil.
func New(socksAddr string, opts Options, stats *Stats) *Prober {
	opts = opts.withDefaults()
	proxyURL := &url.URL{Scheme: "socks5", Host: socksAddr}
	client := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyURL(proxyURL),
			DialContext: (&net.Dialer{
				Timeout:   opts.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ResponseHeaderTimeout: opts.Timeout,
			DisableKeepAlives:     true,
		},
	}
	return NewWithClient(client, opts, stats)
}

// NewWithClient uses client as is.
func NewWithClient(client *http.Client, opts Options, stats *Stats) *Prober {
	return &Prober{
		opts:    opts.withDefaults(),
		client:  client,
		stats:   stats,
		backoff: 200 * time.Millisecond,
	}
}

// Check fetches the probe URL, retrying up to Retries times. Any 2xx or 3xx
// status counts as success.
func (p *Prober) Check(ctx context.Context) (Result, error) {
	var lastErr error
	for i := 0; i <= p.opts.Retries; i++ {
		res, err := p.attempt(ctx)
		if err == nil {
			res.Attempt = i
			if p.stats != nil {
				p.stats.RecordSuccess(i, res.Latency)
			}
			return res, nil
		}

		lastErr = err
		if p.stats != nil {
			p.stats.RecordFailure(err)
		}
		logger.Log.Debugf("Probe attempt %d failed: %v", i+1, err)

		if i < p.opts.Retries {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(p.backoff):
			}
		}
	}
	return Result{}, lastErr
}

func (p *Prober) attempt(ctx context.Context) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.opts.URL, nil)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	latency := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return Result{}, fmt.Errorf("probe failed with status: %d", resp.StatusCode)
	}
	return Result{Latency: latency, Status: resp.StatusCode}, nil
}
