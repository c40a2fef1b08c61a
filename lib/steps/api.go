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

package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"
	"github.com/stretchr/testify/assert"

	"github.com/adobe/pos-autotest/lib/drivers/api"
	"github.com/adobe/pos-autotest/lib/scenario"
)

func (l *Library) registerAPI(sc *godog.ScenarioContext) {
	sc.Step(`^I send a (GET|POST|PUT|PATCH|DELETE) request to "([^"]*)"$`, l.send)
	sc.Step(`^I send a (GET|POST|PUT|PATCH|DELETE) request to "([^"]*)" with body:$`, l.sendBody)
	sc.Step(`^the response status should (softly )?be (\d+)$`, l.status)
	sc.Step(`^the response field "([^"]*)" should (softly )?be "([^"]*)"$`, l.field)
	sc.Step(`^the response should match schema "([^"]*)"$`, l.schema)
	sc.Step(`^I remember the response field "([^"]*)" as "([^"]*)"$`, l.rememberField)
	sc.Step(`^a (GET|HEAD|DELETE) request to "([^"]*)" should answer (\d+)$`, l.answers)
}

func apiHandle(c *scenario.Context) (*api.Handle, error) {
	if c.Session() == nil {
		return nil, fmt.Errorf("steps: no session bound")
	}
	return api.From(c.Session())
}

func lastResponse(c *scenario.Context) (*api.Response, error) {
	h, err := apiHandle(c)
	if err != nil {
		return nil, err
	}
	resp := h.Last()
	if resp == nil {
		return nil, fmt.Errorf("steps: no request was sent yet")
	}
	return resp, nil
}

func (l *Library) send(ctx context.Context, method, path string) error {
	return l.do(ctx, method, path, nil)
}

func (l *Library) sendBody(ctx context.Context, method, path string, body *godog.DocString) error {
	return l.do(ctx, method, path, body)
}

func (*Library) do(ctx context.Context, method, path string, body *godog.DocString) error {
	return run(ctx, func(c *scenario.Context) error {
		h, err := apiHandle(c)
		if err != nil {
			return err
		}
		var payload any
		if body != nil {
			payload = expand(c, body.Content)
		}
		c.Inc("api.requests")
		_, err = h.Do(c.Context(), method, expand(c, path), payload)
		return err
	})
}

func (*Library) status(ctx context.Context, soft string, code int) error {
	return run(ctx, func(c *scenario.Context) error {
		resp, err := lastResponse(c)
		if err != nil {
			return err
		}
		if !assert.Equal(c, code, resp.Status, "response status, body: %s", resp.Body) {
			c.Attach("response body", resp.Header.Get("Content-Type"), resp.Body)
			must(c, soft, false)
		}
		return nil
	})
}

func (*Library) field(ctx context.Context, path, soft, want string) error {
	return run(ctx, func(c *scenario.Context) error {
		resp, err := lastResponse(c)
		if err != nil {
			return err
		}
		v, err := resp.Field(path)
		if err != nil {
			return err
		}
		must(c, soft, assert.Equal(c, expand(c, want), v.String(), "response field %s", path))
		return nil
	})
}

func (l *Library) schema(ctx context.Context, name string) error {
	return run(ctx, func(c *scenario.Context) error {
		resp, err := lastResponse(c)
		if err != nil {
			return err
		}
		path := name
		if !filepath.IsAbs(path) && l.SchemaDir != "" {
			path = filepath.Join(l.SchemaDir, name)
		}
		doc, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("steps: unable to read schema: %w", err)
		}
		return resp.MatchesSchema(doc)
	})
}

func (*Library) rememberField(ctx context.Context, path, name string) error {
	return run(ctx, func(c *scenario.Context) error {
		resp, err := lastResponse(c)
		if err != nil {
			return err
		}
		v, err := resp.Field(path)
		if err != nil {
			return err
		}
		c.Set(name, v.String())
		return nil
	})
}

// answers checks the endpoint with apitest, the context collects its assertion failures
func (*Library) answers(ctx context.Context, method, path string, code int) error {
	return run(ctx, func(c *scenario.Context) error {
		h, err := apiHandle(c)
		if err != nil {
			return err
		}
		h.Request(method, expand(c, path)).
			Expect(c).
			Status(code).
			End()
		c.Checkpoint()
		return nil
	})
}
