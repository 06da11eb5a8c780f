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
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	DefaultWorld     = "world" // name used when nothing is tracked yet
	saveDirName      = "world"
	worldConfigName  = "config.json"
	markerName       = ".current_world"
	propertiesName   = "server.properties"
	whitelistName    = "whitelist.json"
	safetyPrefix     = "world_before_restore_"
	backupPrefix     = "backup_"
	backupSuffix     = ".tar.lz4"
	checksumSuffix   = ".b3"
	defaultBaseName  = "minecraft-manager"
	defaultServerSub = "server/current"
)

// Layout names every path the manager touches.
//
//	<Base>/.current_world                  active world marker
//	<Base>/worlds/<name>/                  archived save data
//	<Base>/worlds/<name>/config.json       per-world configuration
//	<Base>/backups/worlds/<name>/*.tar.lz4 backup archives
//	<Server>/world/                        the active save directory
//	<Server>/server.properties, whitelist.json
type Layout struct {
	Base   string
	Server string
}

// NewLayout returns a Layout rooted at base.  An empty server directory
// selects <base>/server/current.
func NewLayout(base, server string) Layout {
	if base == "" {
		base = DefaultBaseDir()
	}
	if server == "" {
		server = filepath.Join(base, filepath.FromSlash(defaultServerSub))
	}
	return Layout{Base: base, Server: server}
}

// DefaultBaseDir honors $MCVISORDIR, and otherwise uses a directory
// under the user's home.
func DefaultBaseDir() string {
	if dir := os.Getenv("MCVISORDIR"); dir != "" {
		return dir
	}
	home := os.Getenv("HOME")
	switch runtime.GOOS {
	case "windows":
		if home == "" {
			home = os.Getenv("USERPROFILE")
		}
		if home == "" {
			home = "C:\\"
		}
	default:
		if home == "" {
			home = "."
		}
	}
	return filepath.Join(home, defaultBaseName)
}

func (l Layout) SaveDir() string        { return filepath.Join(l.Server, saveDirName) }
func (l Layout) PropertiesFile() string { return filepath.Join(l.Server, propertiesName) }
func (l Layout) WhitelistFile() string  { return filepath.Join(l.Server, whitelistName) }
func (l Layout) MarkerFile() string     { return filepath.Join(l.Base, markerName) }
func (l Layout) WorldsDir() string      { return filepath.Join(l.Base, "worlds") }
func (l Layout) BackupsDir() string     { return filepath.Join(l.Base, "backups", "worlds") }

func (l Layout) WorldDir(name string) string {
	return filepath.Join(l.WorldsDir(), name)
}

func (l Layout) WorldConfigFile(name string) string {
	return filepath.Join(l.WorldDir(name), worldConfigName)
}

func (l Layout) BackupDir(name string) string {
	return filepath.Join(l.BackupsDir(), name)
}

// ValidName reports whether name can safely be used as a single path
// element for a world.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, "/\\") || strings.ContainsRune(name, os.PathSeparator) {
		return false
	}
	return strings.TrimSpace(name) == name
}
