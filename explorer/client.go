// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/ordswap/ordswap/swap"
	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"
	"golang.org/x/net/proxy"
)

const (
	// DefaultTimeout bounds a single request to the ord server.
	DefaultTimeout = 15 * time.Second

	// maxFailingRequests is the number of requests the breaker observes
	// before it may trip.
	maxFailingRequests = 5

	// failingRatio is the share of failed requests that trips the breaker.
	failingRatio = 0.7

	// maxBodySize bounds the response bodies read from the server.
	maxBodySize = 1 << 20
)

var (
	// ErrUnexpectedStatus is returned for any response that is neither a
	// success nor a known not found.
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// Config holds the ord server connection settings.
type Config struct {
	// URL is the base URL of the ord server, e.g. http://127.0.0.1:80.
	URL string

	// Proxy is an optional SOCKS5 proxy address (host:port).
	Proxy string

	// RequestsPerSecond caps the request rate. Zero disables the limit.
	RequestsPerSecond int

	// Timeout bounds every request. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Client is a swap.MetadataService backed by the JSON API of an ord server.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	limiter ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker
}

// A compile-time assertion to ensure Client implements swap.MetadataService.
var _ swap.MetadataService = (*Client)(nil)

// response is a completed HTTP exchange. Only transport failures and
// server errors are reported to the circuit breaker.
type response struct {
	status int
	body   []byte
}

// NewClient returns a client for the ord server described by cfg.
func NewClient(cfg *Config) (*Client, error) {
	baseURL, err := url.Parse(strings.TrimSuffix(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid ord url %q: %w", cfg.URL, err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid ord url %q: unsupported "+
			"scheme", cfg.URL)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Proxy != "" {
		dialer, err := proxy.SOCKS5(
			"tcp", cfg.Proxy, nil, &net.Dialer{},
		)
		if err != nil {
			return nil, fmt.Errorf("invalid ord proxy %q: %w",
				cfg.Proxy, err)
		}
		ctxDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("ord proxy %q does not support "+
				"contexts", cfg.Proxy)
		}
		transport.Proxy = nil
		transport.DialContext = ctxDialer.DialContext
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	limiter := ratelimit.NewUnlimited()
	if cfg.RequestsPerSecond > 0 {
		limiter = ratelimit.New(cfg.RequestsPerSecond)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "ord",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) /
				float64(counts.Requests)
			return counts.Requests > maxFailingRequests &&
				ratio >= failingRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Infof("Circuit breaker %v changed from %v to %v",
				name, from, to)
		},
	})

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Transport: transport, Timeout: timeout},
		limiter: limiter,
		breaker: breaker,
	}, nil
}

// Inscription fetches an inscription by id or number. Unknown inscriptions
// yield swap.ErrUnknownArtifact.
func (c *Client) Inscription(ctx context.Context,
	id string) (*Inscription, error) {

	resp, err := c.get(ctx, "inscription/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	switch resp.status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("inscription %s: %w", id,
			swap.ErrUnknownArtifact)
	default:
		return nil, fmt.Errorf("inscription %s: %w %d", id,
			ErrUnexpectedStatus, resp.status)
	}

	var inscription Inscription
	if err := json.Unmarshal(resp.body, &inscription); err != nil {
		return nil, fmt.Errorf("inscription %s: %w", id, err)
	}

	return &inscription, nil
}

// Output fetches what the server knows about an output. Every status other
// than 200, a 404 included, is an error.
func (c *Client) Output(ctx context.Context, op wire.OutPoint) (*Output, error) {
	resp, err := c.get(ctx, "output/"+op.String())
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, fmt.Errorf("output %v: %w %d", op,
			ErrUnexpectedStatus, resp.status)
	}

	var output Output
	if err := json.Unmarshal(resp.body, &output); err != nil {
		return nil, fmt.Errorf("output %v: %w", op, err)
	}

	return &output, nil
}

// Locate returns the inscription's location as reported by the inscription
// endpoint, followed by the location the holding output reports. An output
// that does not list the inscription is reported with a zero outpoint so
// the two never agree.
func (c *Client) Locate(ctx context.Context,
	artifactID string) ([]swap.Location, error) {

	inscription, err := c.Inscription(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	op, offset, err := inscription.Location()
	if err != nil {
		return nil, err
	}

	locations := []swap.Location{{
		OutPoint: op,
		Offset:   offset,
		Address:  inscription.Address,
	}}

	output, err := c.Output(ctx, op)
	if err != nil {
		return nil, err
	}
	held := swap.Location{Offset: offset, Address: output.Address}
	if output.HasInscription(inscription.ID) {
		held.OutPoint = op
	} else {
		log.Warnf("Output %v does not list inscription %s", op,
			inscription.ID)
	}

	return append(locations, held), nil
}

// IsProtected reports whether the output carries inscriptions or runes.
func (c *Client) IsProtected(ctx context.Context,
	op wire.OutPoint) (bool, error) {

	output, err := c.Output(ctx, op)
	if err != nil {
		return false, err
	}
	if output.Protected() {
		log.Debugf("Output %v is protected: %d inscriptions, "+
			"runes=%v", op, len(output.Inscriptions),
			output.HasRunes())
		return true, nil
	}

	return false, nil
}

// get performs a rate limited GET through the circuit breaker.
func (c *Client) get(ctx context.Context, path string) (*response, error) {
	endpoint := c.baseURL.String() + "/" + path

	result, err := c.breaker.Execute(func() (interface{}, error) {
		c.limiter.Take()

		req, err := http.NewRequestWithContext(
			ctx, http.MethodGet, endpoint, nil,
		)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("GET %s: %w %d", path,
				ErrUnexpectedStatus, resp.StatusCode)
		}

		return &response{status: resp.StatusCode, body: body}, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*response), nil
}
