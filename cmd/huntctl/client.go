// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/huntboard/huntboard/internal/apperr"
)

// client is a thin wrapper over the recommendation API. It decodes the
// response envelope and turns server-side error kinds back into apperr
// values so exit codes match what the server decided.
type client struct {
	base     string
	token    string
	clientID string
	http     *http.Client
}

func newClient(server, token, clientID string) *client {
	return &client{
		base:     server,
		token:    token,
		clientID: clientID,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// envelope mirrors the server's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Kind    string          `json:"kind"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details,omitempty"`
		ErrorID string          `json:"errorId"`
	} `json:"error"`
	Pagination json.RawMessage `json:"pagination,omitempty"`
	Meta       json.RawMessage `json:"meta,omitempty"`
}

func (c *client) get(ctx context.Context, path string, query url.Values) (*envelope, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

func (c *client) post(ctx context.Context, path string, body interface{}) (*envelope, error) {
	return c.do(ctx, http.MethodPost, path, nil, body)
}

func (c *client) put(ctx context.Context, path string, body interface{}) (*envelope, error) {
	return c.do(ctx, http.MethodPut, path, nil, body)
}

func (c *client) do(ctx context.Context, method, path string, query url.Values, body interface{}) (*envelope, error) {
	u := c.base + "/api/v1/recs" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindValidation, "encode request body")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindValidation, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.clientID != "" {
		req.Header.Set("X-Client-Id", c.clientID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindUnavailable, "server unreachable")
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal,
			fmt.Sprintf("malformed response (HTTP %d)", resp.StatusCode))
	}
	if !env.Success {
		return &env, envelopeError(&env, resp.StatusCode)
	}
	return &env, nil
}

// envelopeError rebuilds an apperr from the wire error so ExitCode maps it
// the same way the server classified it.
func envelopeError(env *envelope, status int) error {
	if env.Error == nil {
		return apperr.Newf(apperr.KindInternal, "request failed with HTTP %d", status)
	}
	return apperr.New(apperr.Kind(env.Error.Kind),
		fmt.Sprintf("%s (errorId %s)", env.Error.Message, env.Error.ErrorID))
}

// printJSON pretty-prints a raw JSON fragment to stdout.
func printJSON(raw json.RawMessage) error {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return apperr.Wrap(err, apperr.KindInternal, "format response")
	}
	fmt.Println(out.String())
	return nil
}

// printFeed prints the data, pagination, and meta sections of a feed reply.
func printFeed(env *envelope) error {
	if err := printJSON(env.Data); err != nil {
		return err
	}
	if len(env.Meta) > 0 {
		fmt.Print("meta: ")
		if err := printJSON(env.Meta); err != nil {
			return err
		}
	}
	if len(env.Pagination) > 0 {
		fmt.Print("pagination: ")
		if err := printJSON(env.Pagination); err != nil {
			return err
		}
	}
	return nil
}
