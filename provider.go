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
	"regexp"
)

// Console is the part of the supervisor that other components drive.
// Implementations must be safe for concurrent use.
type Console interface {
	// Running reports whether the server process is live.
	Running() bool

	// SendCommand writes one line to the server console.  It returns
	// ErrNotRunning if no process is live.
	SendCommand(text string) error
}

// Server adds lifecycle control to Console.  Supervisor implements it.
type Server interface {
	Console

	// Start launches the process, failing with ErrAlreadyRunning if
	// one is already live.
	Start() error

	// Stop blocks until the process is gone.  It fails with
	// ErrNotRunning if there was none.
	Stop() error
}

// Player is a whitelist entry.  UUID is the canonical dashed form.
type Player struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

var playerNameRe = regexp.MustCompile(`^[A-Za-z0-9_]{1,16}$`)

// ValidPlayerName reports whether name is a possible Minecraft username.
// Names are spliced into console commands, so nothing else is accepted.
func ValidPlayerName(name string) bool {
	return playerNameRe.MatchString(name)
}

// IdentityProvider resolves a username to its canonical spelling and
// identifier.  It is slow and fallible, and is only consulted when a
// player is added to the whitelist by name.  A player that does not
// exist must be reported with ErrPlayerNotFound.
type IdentityProvider interface {
	Lookup(ctx context.Context, username string) (Player, error)
}
