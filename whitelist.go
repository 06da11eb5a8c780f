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
	"context"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const kickReason = "Removed from the whitelist"

// canonicalUUID returns the dashed lower case form of id, accepting the
// undashed form as well.
func canonicalUUID(id string) (string, error) {
	u, e := uuid.Parse(strings.TrimSpace(id))
	if e != nil {
		return "", e
	}
	return u.String(), nil
}

func findPlayer(list []Player, name string) int {
	for i, p := range list {
		if strings.EqualFold(p.Name, name) {
			return i
		}
	}
	return -1
}

// Whitelist returns the entries of whitelist.json.  A missing or corrupt
// file reads as an empty list.
func (c *ConfigSync) Whitelist() []Player {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.whitelist()
}

func (c *ConfigSync) whitelist() []Player {
	list := []Player{}
	b, e := os.ReadFile(c.layout.WhitelistFile())
	if e != nil {
		return list
	}
	if e := json.Unmarshal(b, &list); e != nil || list == nil {
		return []Player{}
	}
	return list
}

// WriteWhitelist replaces whitelist.json.
func (c *ConfigSync) WriteWhitelist(list []Player) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.writeWhitelist(list)
}

func (c *ConfigSync) writeWhitelist(list []Player) error {
	if list == nil {
		list = []Player{}
	}
	b, e := json.MarshalIndent(list, "", "  ")
	if e != nil {
		return ioErr("encode whitelist", e)
	}
	if e := writeFileAtomic(c.layout.WhitelistFile(), append(b, '\n'), 0644); e != nil {
		return ioErr("write whitelist", e)
	}
	return nil
}

// Listed reports whether a player of that name, in any case, is on the
// whitelist.
func (c *ConfigSync) Listed(name string) bool {
	return findPlayer(c.Whitelist(), name) >= 0
}

// AddPlayer resolves username through the identity provider and admits
// the result, returning the entry as stored.
func (c *ConfigSync) AddPlayer(ctx context.Context, ids IdentityProvider, username string) (Player, error) {
	p, e := c.Resolve(ctx, ids, username)
	if e != nil {
		return p, e
	}
	return p, c.Admit(p)
}

// Resolve looks username up through the identity provider, returning the
// canonical name and dashed UUID.  Names already present, in any case,
// are refused with ErrPlayerListed before the provider is consulted.
// Nothing is written.
func (c *ConfigSync) Resolve(ctx context.Context, ids IdentityProvider, username string) (Player, error) {
	username = strings.TrimSpace(username)
	if !ValidPlayerName(username) {
		return Player{}, ErrBadPlayerName
	}
	if c.Listed(username) {
		return Player{}, ErrPlayerListed
	}
	if ids == nil {
		return Player{}, &LookupError{Name: username, Err: errors.New("no identity provider")}
	}
	p, e := ids.Lookup(ctx, username)
	if e != nil {
		if errors.Is(e, ErrPlayerNotFound) {
			return Player{}, ErrPlayerNotFound
		}
		var le *LookupError
		if !errors.As(e, &le) {
			e = &LookupError{Name: username, Err: e}
		}
		return Player{}, e
	}
	id, e := canonicalUUID(p.UUID)
	if e != nil {
		return Player{}, &LookupError{Name: username, Err: errors.Wrap(e, "bad identifier")}
	}
	p.UUID = id
	return p, nil
}

// Admit appends a player whose identifier is already known.  When the
// server is live it is told to reload the list; when it is stopped and
// whitelisting is off, whitelisting is switched on.
func (c *ConfigSync) Admit(p Player) error {
	if !ValidPlayerName(p.Name) {
		return ErrBadPlayerName
	}
	if id, e := canonicalUUID(p.UUID); e == nil {
		p.UUID = id
	}
	c.mx.Lock()
	list := c.whitelist()
	if findPlayer(list, p.Name) >= 0 {
		c.mx.Unlock()
		return ErrPlayerListed
	}
	for _, x := range list {
		if p.UUID != "" && strings.EqualFold(x.UUID, p.UUID) {
			c.mx.Unlock()
			return ErrPlayerListed
		}
	}
	list = append(list, p)
	if e := c.writeWhitelist(list); e != nil {
		c.mx.Unlock()
		return e
	}
	c.mx.Unlock()

	if c.console.Running() {
		c.console.SendCommand("whitelist reload")
		return nil
	}
	c.mx.Lock()
	defer c.mx.Unlock()
	props, e := c.properties()
	if e != nil {
		return e
	}
	if props[PropWhiteList] != "true" {
		return c.updateProperties(map[string]string{PropWhiteList: "true"})
	}
	return nil
}

// RemovePlayer drops every entry matching username in any case.  Removing
// a player who is not listed succeeds.  A live server reloads the list
// and kicks the player.
func (c *ConfigSync) RemovePlayer(username string) error {
	if !ValidPlayerName(username) {
		return ErrBadPlayerName
	}
	c.mx.Lock()
	list := c.whitelist()
	kept := make([]Player, 0, len(list))
	for _, p := range list {
		if !strings.EqualFold(p.Name, username) {
			kept = append(kept, p)
		}
	}
	removed := len(kept) != len(list)
	var e error
	if removed {
		e = c.writeWhitelist(kept)
	}
	c.mx.Unlock()
	if e != nil || !removed {
		return e
	}
	if c.console.Running() {
		c.console.SendCommand("whitelist reload")
		c.console.SendCommand("kick " + username + " " + kickReason)
	}
	return nil
}
