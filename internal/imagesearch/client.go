// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package imagesearch talks to a Pixabay-compatible image search API. It
// makes exactly one search call and one image fetch per request, with no
// retries and no caching.
package imagesearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Z3NTL3/img-shuffle/internal/helpers"
)

var (
	ErrNoResults     = errors.New("search returned no images")
	ErrMissingAPIKey = errors.New("search API key is not configured")
)

type Config struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKeyEnv string `mapstructure:"api_key_env"`
	ImageType string `mapstructure:"image_type"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:   "https://pixabay.com",
		APIKeyEnv: "API_KEY",
		ImageType: "photo",
	}
}

// Hit is one search result.
type Hit struct {
	LargeImageURL string `json:"largeImageURL"`
}

type searchResponse struct {
	Hits []Hit `json:"hits"`
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	lookupKey  func(string) (string, bool)
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithKeyLookup replaces the environment lookup used to find the API key.
func WithKeyLookup(fn func(string) (string, bool)) Option {
	return func(c *Client) {
		c.lookupKey = fn
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = defaults.APIKeyEnv
	}
	if cfg.ImageType == "" {
		cfg.ImageType = defaults.ImageType
	}

	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		lookupKey: helpers.LookupTrimmedEnv,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search returns the first hit for query. The API key is looked up on every
// call so a rotated key takes effect without a restart.
func (c *Client) Search(ctx context.Context, query string) (hit Hit, err error) {
	start := time.Now()
	defer func() { recordUpstream(ctx, stageSearch, time.Since(start), err) }()

	key, ok := c.lookupKey(c.cfg.APIKeyEnv)
	if !ok {
		return Hit{}, fmt.Errorf("%w: %s is unset", ErrMissingAPIKey, c.cfg.APIKeyEnv)
	}

	u, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/") + "/api/")
	if err != nil {
		return Hit{}, fmt.Errorf("invalid search base URL: %w", err)
	}
	u.RawQuery = url.Values{
		"key":        {key},
		"q":          {query},
		"image_type": {c.cfg.ImageType},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Hit{}, fmt.Errorf("build search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Hit{}, fmt.Errorf("search request failed: %w", redactURL(err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Hit{}, fmt.Errorf("search request failed: upstream returned %s", resp.Status)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Hit{}, fmt.Errorf("decode search response: %w", err)
	}
	if len(body.Hits) == 0 || body.Hits[0].LargeImageURL == "" {
		return Hit{}, ErrNoResults
	}
	return body.Hits[0], nil
}

// Fetch starts downloading imageURL. On success the caller owns the
// response and must close its body.
func (c *Client) Fetch(ctx context.Context, imageURL string) (resp *http.Response, err error) {
	start := time.Now()
	defer func() { recordUpstream(ctx, stageFetch, time.Since(start), err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}

	resp, err = c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("image request failed: upstream returned %s", resp.Status)
	}
	return resp, nil
}

// redactURL strips the request URL, which carries the API key, from
// transport errors.
func redactURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
