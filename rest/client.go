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

package rest

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/gdamore/mcvisor"
)

// Client talks to a Handler.  Every call takes a context, which bounds
// it; long running server side actions answer as soon as they start.
type Client struct {
	base   string // URI to root of tree on server
	client *http.Client
	dialer *websocket.Dialer
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, e := json.Marshal(in)
		if e != nil {
			return e
		}
		body = bytes.NewReader(b)
	}
	req, e := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if e != nil {
		return e
	}
	if in != nil {
		req.Header.Set("Content-Type", mimeJson)
	}
	req.Header.Set("Accept", mimeJson)

	res, e := c.client.Do(req)
	if e != nil {
		return e
	}
	defer res.Body.Close()
	b, e := ioutil.ReadAll(res.Body)
	if e != nil {
		return e
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		re := &Error{}
		if json.Unmarshal(b, re) != nil || re.Message == "" {
			re.Code = res.StatusCode
			re.Message = strings.TrimSpace(string(b))
			if re.Message == "" {
				re.Message = res.Status
			}
		}
		return re
	}
	if out == nil || len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, out)
}

func esc(s string) string {
	return url.PathEscape(s)
}

func (c *Client) Status(ctx context.Context) (*mcvisor.Status, error) {
	st := &mcvisor.Status{}
	return st, c.do(ctx, "GET", "/status", nil, st)
}

// Logs returns the retained output lines.
func (c *Client) Logs(ctx context.Context) ([]string, error) {
	info := &LogsInfo{}
	e := c.do(ctx, "GET", "/logs", nil, info)
	return info.Lines, e
}

// WatchLogs returns the lines logged after mark.  When there are none
// yet, the server holds the request for up to wait.  The returned Id is
// the mark for the next call; a zero mark returns every retained line.
func (c *Client) WatchLogs(ctx context.Context, mark int64, wait time.Duration) (*LogsInfo, error) {
	q := url.Values{}
	q.Set("since", strconv.FormatInt(mark, 10))
	if wait > 0 {
		q.Set("wait", wait.String())
	}
	info := &LogsInfo{}
	if e := c.do(ctx, "GET", "/logs?"+q.Encode(), nil, info); e != nil {
		return nil, e
	}
	return info, nil
}

func (c *Client) Start(ctx context.Context) error {
	return c.do(ctx, "POST", "/start", nil, nil)
}

func (c *Client) Stop(ctx context.Context) error {
	return c.do(ctx, "POST", "/stop", nil, nil)
}

func (c *Client) StopGracefully(ctx context.Context) error {
	return c.do(ctx, "POST", "/stop/graceful", nil, nil)
}

func (c *Client) CancelCountdown(ctx context.Context) (bool, error) {
	res := &CancelResult{}
	e := c.do(ctx, "POST", "/stop/cancel", nil, res)
	return res.Cancelled, e
}

func (c *Client) Restart(ctx context.Context) error {
	return c.do(ctx, "POST", "/restart", nil, nil)
}

func (c *Client) Command(ctx context.Context, text string) error {
	return c.do(ctx, "POST", "/command", &CommandRequest{Command: text}, nil)
}

func (c *Client) Kick(ctx context.Context, player string) error {
	return c.do(ctx, "POST", "/players/"+esc(player)+"/kick", nil, nil)
}

func (c *Client) Ban(ctx context.Context, player string) error {
	return c.do(ctx, "POST", "/players/"+esc(player)+"/ban", nil, nil)
}

func (c *Client) GameRule(ctx context.Context, rule, value string) error {
	return c.do(ctx, "POST", "/gamerule", &GameRuleRequest{Rule: rule, Value: value}, nil)
}

func (c *Client) Worlds(ctx context.Context) (*WorldsInfo, error) {
	info := &WorldsInfo{}
	return info, c.do(ctx, "GET", "/worlds", nil, info)
}

func (c *Client) CreateWorld(ctx context.Context, name string) (*mcvisor.WorldConfig, error) {
	cfg := &mcvisor.WorldConfig{}
	return cfg, c.do(ctx, "POST", "/worlds", &NameRequest{Name: name}, cfg)
}

func (c *Client) SwitchWorld(ctx context.Context, name string) (*mcvisor.WorldConfig, error) {
	cfg := &mcvisor.WorldConfig{}
	return cfg, c.do(ctx, "POST", "/worlds/"+esc(name)+"/switch", nil, cfg)
}

func (c *Client) DeleteWorld(ctx context.Context, name string) error {
	return c.do(ctx, "DELETE", "/worlds/"+esc(name), nil, nil)
}

func (c *Client) WorldConfig(ctx context.Context, name string) (*mcvisor.WorldConfig, error) {
	cfg := &mcvisor.WorldConfig{}
	return cfg, c.do(ctx, "GET", "/worlds/"+esc(name)+"/config", nil, cfg)
}

func (c *Client) Backups(ctx context.Context, world string) ([]mcvisor.BackupInfo, error) {
	var infos []mcvisor.BackupInfo
	e := c.do(ctx, "GET", "/worlds/"+esc(world)+"/backups", nil, &infos)
	return infos, e
}

func (c *Client) Backup(ctx context.Context) (*mcvisor.BackupInfo, error) {
	info := &mcvisor.BackupInfo{}
	return info, c.do(ctx, "POST", "/backup", nil, info)
}

func (c *Client) Restore(ctx context.Context, world, file string) (*RestoreResult, error) {
	res := &RestoreResult{}
	return res, c.do(ctx, "POST", "/worlds/"+esc(world)+"/restore", &RestoreRequest{File: file}, res)
}

// Config returns the configuration of the active world.
func (c *Client) Config(ctx context.Context) (*mcvisor.WorldConfig, error) {
	cfg := &mcvisor.WorldConfig{}
	return cfg, c.do(ctx, "GET", "/config", nil, cfg)
}

// SetConfig starts a reconfiguration of the active world.  The server
// restarts if it was running.
func (c *Client) SetConfig(ctx context.Context, maxPlayers int, whitelist bool) error {
	req := &ConfigRequest{MaxPlayers: maxPlayers, WhitelistEnabled: whitelist}
	return c.do(ctx, "PUT", "/config", req, nil)
}

func (c *Client) Whitelist(ctx context.Context) ([]mcvisor.Player, error) {
	var list []mcvisor.Player
	e := c.do(ctx, "GET", "/whitelist", nil, &list)
	return list, e
}

func (c *Client) AddPlayer(ctx context.Context, name string) (*mcvisor.Player, error) {
	p := &mcvisor.Player{}
	return p, c.do(ctx, "POST", "/whitelist", &NameRequest{Name: name}, p)
}

func (c *Client) RemovePlayer(ctx context.Context, name string) error {
	return c.do(ctx, "DELETE", "/whitelist/"+esc(name), nil, nil)
}

func (c *Client) Requests(ctx context.Context) ([]mcvisor.Request, error) {
	var reqs []mcvisor.Request
	e := c.do(ctx, "GET", "/requests", nil, &reqs)
	return reqs, e
}

func (c *Client) Approve(ctx context.Context, name string) (*mcvisor.Player, error) {
	p := &mcvisor.Player{}
	return p, c.do(ctx, "POST", "/requests/"+esc(name)+"/approve", nil, p)
}

func (c *Client) Reject(ctx context.Context, name string) error {
	return c.do(ctx, "POST", "/requests/"+esc(name)+"/reject", nil, nil)
}

// StreamLogs follows the server output, calling fn with each batch of
// new lines until ctx is done or the connection fails.  With replay the
// retained lines are delivered first.
func (c *Client) StreamLogs(ctx context.Context, replay bool, fn func([]string)) error {
	u := c.base + "/logs/ws"
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	if replay {
		u += "?replay=true"
	}
	conn, _, e := c.dialer.DialContext(ctx, u, nil)
	if e != nil {
		return e
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	for {
		var batch LogBatch
		if e := conn.ReadJSON(&batch); e != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return e
		}
		fn(batch.Lines)
	}
}

// NewClient returns a Client for the Handler rooted at base, such as
// http://127.0.0.1:8321.  A nil client selects http.DefaultClient.
func NewClient(client *http.Client, base string) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		base:   strings.TrimSuffix(base, "/"),
		client: client,
		dialer: websocket.DefaultDialer,
	}
}
