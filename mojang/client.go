// Copyright 2026 The Govisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mojang resolves player names through the public Mojang profile
// API.
package mojang

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/gdamore/mcvisor"
)

const (
	DefaultBaseURL = "https://api.mojang.com/users/profiles/minecraft/"
	DefaultTimeout = 5 * time.Second
)

type profile struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

// Client implements mcvisor.IdentityProvider.  Lookups are throttled,
// since the API answers bursts with 429.
type Client struct {
	base    string
	client  *http.Client
	limiter *rate.Limiter
}

// SetBaseURL points the client somewhere else, such as a test server.
// The name is appended to it.
func (c *Client) SetBaseURL(base string) {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	c.base = base
}

// Lookup returns the canonical name and dashed UUID for username.
func (c *Client) Lookup(ctx context.Context, username string) (mcvisor.Player, error) {
	if e := c.limiter.Wait(ctx); e != nil {
		return mcvisor.Player{}, &mcvisor.LookupError{Name: username, Err: e}
	}
	req, e := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+url.PathEscape(username), nil)
	if e != nil {
		return mcvisor.Player{}, &mcvisor.LookupError{Name: username, Err: e}
	}
	req.Header.Set("Accept", "application/json")
	res, e := c.client.Do(req)
	if e != nil {
		return mcvisor.Player{}, &mcvisor.LookupError{Name: username, Err: e}
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent, http.StatusNotFound:
		return mcvisor.Player{}, mcvisor.ErrPlayerNotFound
	default:
		return mcvisor.Player{}, &mcvisor.LookupError{
			Name: username,
			Err:  fmt.Errorf("profile service answered %s", res.Status),
		}
	}
	body, e := io.ReadAll(io.LimitReader(res.Body, 1<<16))
	if e != nil {
		return mcvisor.Player{}, &mcvisor.LookupError{Name: username, Err: e}
	}
	var p profile
	if e := json.Unmarshal(body, &p); e != nil {
		return mcvisor.Player{}, &mcvisor.LookupError{Name: username, Err: e}
	}
	if p.Id == "" || p.Name == "" {
		return mcvisor.Player{}, mcvisor.ErrPlayerNotFound
	}
	id, e := uuid.Parse(p.Id)
	if e != nil {
		return mcvisor.Player{}, &mcvisor.LookupError{Name: username, Err: e}
	}
	return mcvisor.Player{UUID: id.String(), Name: p.Name}, nil
}

// NewClient returns a Client that makes at most perMinute lookups a
// minute.  A nil client gets one with DefaultTimeout.
func NewClient(client *http.Client, perMinute int) *Client {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if perMinute <= 0 {
		perMinute = 60
	}
	every := time.Minute / time.Duration(perMinute)
	return &Client{
		base:    DefaultBaseURL,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(every), 1),
	}
}
