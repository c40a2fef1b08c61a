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

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/steinfletcher/apitest"
	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"

	"github.com/adobe/pos-autotest/lib/log"
	"github.com/adobe/pos-autotest/lib/platform"
	"github.com/adobe/pos-autotest/lib/session"
)

// Handle is the request context of one scenario: cookie jar, default headers and the last response
type Handle struct {
	id        session.ContextID
	cfg       Config
	transport *http.Transport
	client    *http.Client

	mu     sync.Mutex
	last   *Response
	closed bool
}

// Response keeps the fully read answer so steps could check it multiple times
type Response struct {
	Status   int
	Header   http.Header
	Body     []byte
	Duration time.Duration
}

// From returns the api handle of the bound session
func From(s *session.Session) (*Handle, error) {
	h, err := s.Handle(platform.KindAPI)
	if err != nil {
		return nil, err
	}
	ah, ok := h.(*Handle)
	if !ok {
		return nil, fmt.Errorf("api: unexpected handle type %T", h)
	}
	return ah, nil
}

// Kind of the handle
func (*Handle) Kind() platform.Kind {
	return platform.KindAPI
}

// Client returns the instrumented http client with the context cookie jar
func (h *Handle) Client() *http.Client {
	return h.client
}

// URL resolves the path against configured base url, absolute urls are kept as is
func (h *Handle) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") || h.cfg.BaseURL == "" {
		return path
	}
	return h.cfg.BaseURL + "/" + strings.TrimPrefix(path, "/")
}

// Headers returns the default headers including the bearer token
func (h *Handle) Headers() map[string]string {
	out := make(map[string]string, len(h.cfg.Headers)+1)
	for k, v := range h.cfg.Headers {
		out[k] = v
	}
	if h.cfg.Token != "" {
		out["Authorization"] = "Bearer " + h.cfg.Token
	}
	return out
}

// Do sends the request and stores the response as the last one. Body could be nil, []byte,
// string or any value encoded as JSON.
func (h *Handle) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	logger := log.WithContext("api", "Do", string(h.id))

	var reader io.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	case string:
		reader = strings.NewReader(b)
		if json.Valid([]byte(b)) {
			contentType = "application/json"
		}
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("api: unable to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, h.URL(path), reader)
	if err != nil {
		return nil, fmt.Errorf("api: unable to create request: %w", err)
	}
	for k, v := range h.Headers() {
		req.Header.Set(k, v)
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	started := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		logger.Debug("Request failed", "method", method, "url", req.URL.String(), "err", err)
		return nil, fmt.Errorf("api: %s %s: %w", method, req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("api: unable to read response body: %w", err)
	}
	out := &Response{
		Status:   resp.StatusCode,
		Header:   resp.Header,
		Body:     data,
		Duration: time.Since(started),
	}
	logger.Debug("Request done", "method", method, "url", req.URL.String(), "status", out.Status, "took", out.Duration)

	h.mu.Lock()
	h.last = out
	h.mu.Unlock()
	return out, nil
}

// Last returns the response of the latest Do call or nil
func (h *Handle) Last() *Response {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Request creates apitest request over the real network with the context client and headers,
// the caller finishes it with Expect(t)
func (h *Handle) Request(method, path string) *apitest.Request {
	return apitest.New().
		EnableNetworking(h.client).
		Method(method).
		URL(h.URL(path)).
		Headers(h.Headers())
}

// Close drops the idle connections, second close is a no-op
func (h *Handle) Close(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.transport.CloseIdleConnections()
	log.WithContext("api", "Close", string(h.id)).Debug("Request context closed")
	return nil
}

// Field looks up the value by gjson path (dotted keys, `items.0.id`, `items.#`)
func (r *Response) Field(path string) (gjson.Result, error) {
	if !gjson.ValidBytes(r.Body) {
		return gjson.Result{}, fmt.Errorf("api: response body is not JSON")
	}
	res := gjson.GetBytes(r.Body, path)
	if !res.Exists() {
		return res, fmt.Errorf("api: no field %q in response", path)
	}
	return res, nil
}

// MatchesSchema validates the body against the JSON schema document
func (r *Response) MatchesSchema(schema []byte) error {
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewBytesLoader(r.Body))
	if err != nil {
		return fmt.Errorf("api: unable to validate response: %w", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("api: response does not match schema: %s", strings.Join(msgs, "; "))
}
