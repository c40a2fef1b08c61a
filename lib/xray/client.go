/**
 * Copyright 2025 Adobe. All rights reserved.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License. You may obtain a copy
 * of the License at http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software distributed under
 * the License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR REPRESENTATIONS
 * OF ANY KIND, either express or implied. See the License for the specific language
 * governing permissions and limitations under the License.
 */

// Package xray publishes the scenario outcomes into Xray test executions
package xray

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/adobe/pos-autotest/lib/log"
)

const (
	cloudAuthPath    = "/api/v2/authenticate"
	cloudImportPath  = "/api/v2/import/execution"
	serverImportPath = "/rest/raven/2.0/import/execution"
)

// APIError is the non-2xx answer of Xray
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("xray: API error: %s (status %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Client talks to Xray cloud or server import API
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter

	tokenMu sync.Mutex
	token   string
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom http client
func WithHTTPClient(cli *http.Client) ClientOption {
	return func(c *Client) {
		c.http = cli
	}
}

// NewClient creates the client, config should be validated
func NewClient(cfg Config, opts ...ClientOption) *Client {
	burst := int(cfg.RateLimit)
	if burst < 1 {
		burst = 1
	}
	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ImportResult identifies the created or updated test execution issue
type ImportResult struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// ImportExecution posts the execution results
func (c *Client) ImportExecution(ctx context.Context, exec *Execution) (*ImportResult, error) {
	path := cloudImportPath
	if c.cfg.Deployment == Server {
		path = serverImportPath
	}

	data, err := c.post(ctx, path, exec, true)
	if err != nil {
		return nil, err
	}

	// Server wraps the issue into testExecIssue
	var out struct {
		ImportResult
		TestExecIssue *ImportResult `json:"testExecIssue"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("xray: unable to decode import response: %w", err)
	}
	if out.TestExecIssue != nil {
		return out.TestExecIssue, nil
	}
	return &out.ImportResult, nil
}

// authenticate exchanges the cloud client credentials to the token, server uses PAT as is
func (c *Client) authenticate(ctx context.Context, renew bool) (string, error) {
	if c.cfg.Deployment == Server {
		return c.cfg.Token, nil
	}

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.token != "" && !renew {
		return c.token, nil
	}

	creds := map[string]string{"client_id": c.cfg.ClientID, "client_secret": c.cfg.ClientSecret}
	data, err := c.post(ctx, cloudAuthPath, creds, false)
	if err != nil {
		return "", fmt.Errorf("xray: authentication failed: %w", err)
	}
	// The token is returned as JSON string
	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return "", fmt.Errorf("xray: unexpected authentication response: %w", err)
	}
	c.token = token
	log.WithFunc("xray", "authenticate").Debug("Authenticated in Xray cloud", "client_id", c.cfg.ClientID)
	return token, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, auth bool) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("xray: unable to encode payload: %w", err)
	}

	renewed := false
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("xray: rate limit wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("xray: failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if auth {
			token, err := c.authenticate(ctx, renewed)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "Bearer "+token)
		}

		log.WithFunc("xray", "post").Debug("Xray API request", "url", c.cfg.BaseURL+path)
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("xray: failed to execute request: %w", err)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("xray: failed to read response: %w", err)
		}

		// Cloud tokens expire, one renewal per request
		if resp.StatusCode == http.StatusUnauthorized && auth && c.cfg.Deployment == Cloud && !renewed {
			renewed = true
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data)), Endpoint: path}
		}
		return data, nil
	}
}

// IsAuthError reports whether Xray rejected the credentials
func IsAuthError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden)
}
