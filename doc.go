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

// Package mcvisor manages a single Minecraft server process and the
// worlds it plays.
//
// A Supervisor owns the server process.  It launches it with a fixed
// command, writes console commands to its standard input, and reads its
// merged output a line at a time into a Log ring, which any number of
// readers can follow independently.
//
// Worlds are named save states.  The active world's save data lives in
// the server directory where the server expects it, and every other
// world is archived beside its stored configuration.  Switching worlds
// records the live server.properties and whitelist.json for the outgoing
// world and applies the stored ones of the incoming world.  Backups are
// lz4 compressed tar archives of a running world, checked with blake3
// when restored.
//
// The Manager composes these parts, serializes the operations that touch
// the disk or the process, and runs the announced shutdown and restart
// countdowns in the background.  The rest package exposes a Manager over
// HTTP, and mcvisord is the daemon that hosts it.
package mcvisor
