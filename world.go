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
	"io/ioutil"
	"log"
	"os"
	"strings"

	json "github.com/goccy/go-json"
)

// WorldStore keeps the named worlds.  The active world's save data lives
// in the server directory; every other world is archived under the
// worlds directory next to its config.json.  None of the mutating
// operations run while the server is live, and none of them lock; the
// Manager serializes them.
type WorldStore struct {
	layout  Layout
	console Console
	files   *ConfigSync
	logger  *log.Logger
}

func NewWorldStore(l Layout, c Console, files *ConfigSync, logger *log.Logger) *WorldStore {
	if logger == nil {
		logger = log.New(ioutil.Discard, "", 0)
	}
	return &WorldStore{layout: l, console: c, files: files, logger: logger}
}

// List returns the archived world names.
func (w *WorldStore) List() ([]string, error) {
	dir := w.layout.WorldsDir()
	if e := os.MkdirAll(dir, 0755); e != nil {
		return nil, ioErr("create worlds directory", e)
	}
	ents, e := os.ReadDir(dir)
	if e != nil {
		return nil, ioErr("list worlds", e)
	}
	names := make([]string, 0, len(ents))
	for _, ent := range ents {
		if ent.IsDir() && !strings.HasPrefix(ent.Name(), ".") {
			names = append(names, ent.Name())
		}
	}
	return names, nil
}

// Active returns the tracked active world, or DefaultWorld when nothing
// is tracked.
func (w *WorldStore) Active() string {
	b, e := os.ReadFile(w.layout.MarkerFile())
	if e != nil {
		return DefaultWorld
	}
	name := strings.TrimSpace(string(b))
	if !ValidName(name) {
		return DefaultWorld
	}
	return name
}

func (w *WorldStore) setActive(name string) error {
	if e := writeFileAtomic(w.layout.MarkerFile(), []byte(name), 0644); e != nil {
		return ioErr("write active world marker", e)
	}
	return nil
}

// Config returns the stored configuration for a world.  Missing or
// corrupt records read as the defaults, and missing fields keep their
// default values.
func (w *WorldStore) Config(name string) WorldConfig {
	cfg := DefaultWorldConfig()
	if !ValidName(name) {
		return cfg
	}
	b, e := os.ReadFile(w.layout.WorldConfigFile(name))
	if e != nil {
		return cfg
	}
	if e := json.Unmarshal(b, &cfg); e != nil {
		return DefaultWorldConfig()
	}
	if cfg.WhitelistPlayers == nil {
		cfg.WhitelistPlayers = []Player{}
	}
	return cfg
}

// SaveConfig stores the configuration for a world, creating its
// directory if needed.
func (w *WorldStore) SaveConfig(name string, cfg WorldConfig) error {
	if !ValidName(name) {
		return ErrBadWorldName
	}
	if cfg.WhitelistPlayers == nil {
		cfg.WhitelistPlayers = []Player{}
	}
	b, e := json.MarshalIndent(cfg, "", "  ")
	if e != nil {
		return ioErr("encode world config", e)
	}
	if e := writeFileAtomic(w.layout.WorldConfigFile(name), append(b, '\n'), 0644); e != nil {
		return ioErr("write world config", e)
	}
	return nil
}

// archive moves the active save directory under the worlds directory as
// name, after recording the live configuration for it.  A stale archive
// of the same name is replaced, but only once the move has succeeded.
func (w *WorldStore) archive(name string) error {
	cfg := w.files.Capture()
	if e := w.SaveConfig(name, cfg); e != nil {
		return e
	}
	dst := w.layout.WorldDir(name)
	stale := ""
	if exists(dst) {
		stale = sidePath(dst, "stale")
		if e := os.Rename(dst, stale); e != nil {
			return ioErr("set aside stale archive", e)
		}
	}
	if e := moveDir(w.layout.SaveDir(), dst); e != nil {
		if stale != "" {
			os.Rename(stale, dst)
		}
		return ioErr("archive world "+name, e)
	}
	// The move replaced the directory holding the config written above.
	if e := w.SaveConfig(name, cfg); e != nil {
		return e
	}
	if stale != "" {
		if e := os.RemoveAll(stale); e != nil {
			w.logger.Printf("Failed removing stale archive %s: %v", stale, e)
		}
	}
	w.logger.Printf("Archived world %s", name)
	return nil
}

// copyIn copies an archived world into the active save directory.  The
// copy is assembled aside and renamed into place, so a failure leaves no
// partial save directory behind.
func (w *WorldStore) copyIn(name string) error {
	save := w.layout.SaveDir()
	if e := os.MkdirAll(w.layout.Server, 0755); e != nil {
		return ioErr("create server directory", e)
	}
	tmp := sidePath(save, "incoming")
	skip := func(rel string) bool { return rel == worldConfigName }
	if e := copyDir(w.layout.WorldDir(name), tmp, skip); e != nil {
		os.RemoveAll(tmp)
		return ioErr("copy world "+name, e)
	}
	if e := os.Rename(tmp, save); e != nil {
		os.RemoveAll(tmp)
		return ioErr("install world "+name, e)
	}
	return nil
}

// Switch makes name the active world.  The outgoing world is archived
// with its live configuration, the incoming one is copied into place,
// and its configuration is applied to the live files.
func (w *WorldStore) Switch(name string) (WorldConfig, error) {
	if !ValidName(name) {
		return WorldConfig{}, ErrBadWorldName
	}
	if w.console.Running() {
		return WorldConfig{}, ErrServerRunning
	}
	if !isDir(w.layout.WorldDir(name)) {
		return WorldConfig{}, ErrWorldNotFound
	}
	active := w.Active()
	if isDir(w.layout.SaveDir()) {
		if active == name {
			cfg := w.Config(name)
			return cfg, w.files.Apply(cfg)
		}
		if e := w.archive(active); e != nil {
			return WorldConfig{}, e
		}
	}
	if e := w.copyIn(name); e != nil {
		return WorldConfig{}, e
	}
	if e := w.setActive(name); e != nil {
		return WorldConfig{}, e
	}
	cfg := w.Config(name)
	if e := w.files.Apply(cfg); e != nil {
		return cfg, e
	}
	w.logger.Printf("Switched to world %s", name)
	return cfg, nil
}

// Create reserves a new world with the default configuration and makes
// it active.  Its save data is not created here; the server generates it
// on the next start.
func (w *WorldStore) Create(name string) (WorldConfig, error) {
	if !ValidName(name) {
		return WorldConfig{}, ErrBadWorldName
	}
	if exists(w.layout.WorldDir(name)) {
		return WorldConfig{}, ErrWorldExists
	}
	// The live save is the active world even before it is archived.
	if name == w.Active() && isDir(w.layout.SaveDir()) {
		return WorldConfig{}, ErrWorldExists
	}
	if w.console.Running() {
		return WorldConfig{}, ErrServerRunning
	}
	if isDir(w.layout.SaveDir()) {
		if e := w.archive(w.Active()); e != nil {
			return WorldConfig{}, e
		}
	}
	cfg := DefaultWorldConfig()
	if e := w.SaveConfig(name, cfg); e != nil {
		return WorldConfig{}, e
	}
	if e := w.files.Apply(cfg); e != nil {
		return WorldConfig{}, e
	}
	if e := w.setActive(name); e != nil {
		return WorldConfig{}, e
	}
	w.logger.Printf("Created world %s", name)
	return cfg, nil
}

// Delete removes an archived world and all of its backups.
func (w *WorldStore) Delete(name string) error {
	if !ValidName(name) {
		return ErrBadWorldName
	}
	if name == w.Active() && w.console.Running() {
		return ErrActiveWorld
	}
	dir := w.layout.WorldDir(name)
	if !isDir(dir) {
		return ErrWorldNotFound
	}
	if e := os.RemoveAll(dir); e != nil {
		return ioErr("delete world "+name, e)
	}
	if e := os.RemoveAll(w.layout.BackupDir(name)); e != nil {
		return ioErr("delete backups of "+name, e)
	}
	w.logger.Printf("Deleted world %s", name)
	return nil
}

func (w *WorldStore) hasConfig(name string) bool {
	return exists(w.layout.WorldConfigFile(name))
}
