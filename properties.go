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

package mcvisor

import (
	"bufio"
	"bytes"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Names of the server.properties keys that a WorldConfig governs.
const (
	PropMaxPlayers = "max-players"
	PropWhiteList  = "white-list"
)

const DefaultMaxPlayers = 20

// WorldConfig is the configuration remembered for each world, whether
// or not it is the active one.
type WorldConfig struct {
	MaxPlayers       int      `json:"max_players"`
	WhitelistEnabled bool     `json:"whitelist_enabled"`
	WhitelistPlayers []Player `json:"whitelist_players"`
}

// DefaultWorldConfig is what a freshly created world starts with.
func DefaultWorldConfig() WorldConfig {
	return WorldConfig{
		MaxPlayers:       DefaultMaxPlayers,
		WhitelistEnabled: false,
		WhitelistPlayers: []Player{},
	}
}

// ConfigSync translates between WorldConfig records and the live
// server.properties and whitelist.json files.  Files that the server
// reads on startup are only rewritten while it is stopped.
type ConfigSync struct {
	layout  Layout
	console Console
	mx      sync.Mutex
}

func NewConfigSync(l Layout, c Console) *ConfigSync {
	return &ConfigSync{layout: l, console: c}
}

// propertyKey returns the key of a settings line, or "" for comments,
// blank lines, and anything else without an equals sign.
func propertyKey(line string) string {
	if strings.HasPrefix(line, "#") {
		return ""
	}
	i := strings.IndexByte(line, '=')
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(line[:i])
}

// Properties parses server.properties.  A missing file is empty.
func (c *ConfigSync) Properties() (map[string]string, error) {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.properties()
}

func (c *ConfigSync) properties() (map[string]string, error) {
	props := map[string]string{}
	b, e := os.ReadFile(c.layout.PropertiesFile())
	if os.IsNotExist(e) {
		return props, nil
	} else if e != nil {
		return nil, ioErr("read properties", e)
	}
	scanner := bufio.NewScanner(bytes.NewReader(b))
	for scanner.Scan() {
		line := scanner.Text()
		if k := propertyKey(line); k != "" {
			v := line[strings.IndexByte(line, '=')+1:]
			props[k] = strings.TrimSpace(v)
		}
	}
	return props, nil
}

// UpdateProperties rewrites the named keys in place, appends the ones
// the file lacks, and leaves every other line exactly as it was.  It
// refuses with ErrServerRunning while the server is live.
func (c *ConfigSync) UpdateProperties(updates map[string]string) error {
	if c.console.Running() {
		return ErrServerRunning
	}
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.updateProperties(updates)
}

func (c *ConfigSync) updateProperties(updates map[string]string) error {
	path := c.layout.PropertiesFile()
	b, e := os.ReadFile(path)
	if e != nil && !os.IsNotExist(e) {
		return ioErr("read properties", e)
	}
	pending := make(map[string]string, len(updates))
	for k, v := range updates {
		pending[k] = v
	}

	var out bytes.Buffer
	if len(b) > 0 {
		text := strings.TrimSuffix(string(b), "\n")
		for _, line := range strings.Split(text, "\n") {
			k := propertyKey(strings.TrimSuffix(line, "\r"))
			if v, ok := pending[k]; ok && k != "" {
				line = k + "=" + v
				// Later duplicates of the key are left alone.
				delete(pending, k)
			}
			out.WriteString(line)
			out.WriteByte('\n')
		}
	}
	keys := make([]string, 0, len(pending))
	for k := range pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out.WriteString(k + "=" + pending[k] + "\n")
	}
	if e := writeFileAtomic(path, out.Bytes(), 0644); e != nil {
		return ioErr("write properties", e)
	}
	return nil
}

// Capture reads the live files into a WorldConfig.  Unreadable or
// malformed values fall back to the defaults.
func (c *ConfigSync) Capture() WorldConfig {
	c.mx.Lock()
	defer c.mx.Unlock()
	cfg := DefaultWorldConfig()
	if props, e := c.properties(); e == nil {
		if n, e := strconv.Atoi(props[PropMaxPlayers]); e == nil {
			cfg.MaxPlayers = n
		}
		cfg.WhitelistEnabled = props[PropWhiteList] == "true"
	}
	cfg.WhitelistPlayers = c.whitelist()
	return cfg
}

// Apply writes cfg onto the live files.  The server must be stopped.
func (c *ConfigSync) Apply(cfg WorldConfig) error {
	if c.console.Running() {
		return ErrServerRunning
	}
	c.mx.Lock()
	defer c.mx.Unlock()
	e := c.updateProperties(map[string]string{
		PropMaxPlayers: strconv.Itoa(cfg.MaxPlayers),
		PropWhiteList:  strconv.FormatBool(cfg.WhitelistEnabled),
	})
	if e != nil {
		return errors.WithMessage(e, "apply world config")
	}
	return c.writeWhitelist(cfg.WhitelistPlayers)
}
