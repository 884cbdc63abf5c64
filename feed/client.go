/*
Copyright 2024

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

var (
	// ErrFetchTimeout is returned when the feed endpoint does not answer
	// within the configured timeout.
	ErrFetchTimeout = errors.New("feed fetch timed out")

	// ErrFetch is returned on transport failure or a non-2xx response.
	ErrFetch = errors.New("feed fetch failed")

	// ErrInvalidShape is returned when the response body is not a JSON
	// object with a top-level "data" array.
	ErrInvalidShape = errors.New("feed response has invalid shape")
)

// RawRow is one untyped row from the external feed. The feed does not
// guarantee field presence or numeric typing; normalization happens in the
// normalize package.
type RawRow map[string]any

// envelope is the expected top-level response shape. Data is kept raw so a
// missing or non-array value can be told apart from an empty one.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// Client fetches the raw quote feed over HTTP.
type Client struct {
	url     string
	timeout time.Duration
	http    *resty.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying resty client, mainly for tests.
func WithHTTPClient(hc *resty.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a feed client for the given endpoint. A timeout of zero
// falls back to 30s.
func NewClient(url string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		url:     url,
		timeout: timeout,
		http:    resty.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch issues one GET to the feed endpoint and returns the raw rows. The
// request is cancelled when the timeout elapses or ctx is cancelled. Retry
// policy belongs to the caller.
func (c *Client) Fetch(ctx context.Context) ([]RawRow, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(c.url)
	if err != nil {
		if isTimeout(err) {
			log.Warn().Err(err).Str("Url", c.url).Msg("feed request timed out")
			return nil, fmt.Errorf("%w: %v", ErrFetchTimeout, err)
		}
		log.Error().Err(err).Str("Url", c.url).Msg("error when requesting feed")
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if resp.StatusCode() >= 300 {
		log.Error().Int("StatusCode", resp.StatusCode()).Str("Url", c.url).Msg("feed returned error status")
		return nil, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode())
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}
	// A JSON null decodes into a nil row slice without error, so it has to
	// be rejected here along with an absent field.
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("%w: missing data field", ErrInvalidShape)
	}

	var rows []RawRow
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return nil, fmt.Errorf("%w: data is not an array of objects: %v", ErrInvalidShape, err)
	}

	log.Debug().Int("Rows", len(rows)).Str("Url", c.url).Msg("fetched feed")
	return rows, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
