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
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultBackupSettle = 2 * time.Second
	backupStamp         = "2006-01-02_15h04"
)

// BackupInfo describes one backup archive.
type BackupInfo struct {
	World    string    `json:"world"`
	Name     string    `json:"name"`
	File     string    `json:"file"`
	Size     int64     `json:"size"`
	Time     time.Time `json:"time"`
	Checksum string    `json:"checksum,omitempty"`
}

// BackupEngine snapshots the active save directory and restores
// snapshots into it.
type BackupEngine struct {
	layout  Layout
	console Console
	worlds  *WorldStore
	logger  *log.Logger
	settle  time.Duration
	now     func() time.Time
}

func NewBackupEngine(l Layout, c Console, w *WorldStore, logger *log.Logger) *BackupEngine {
	if logger == nil {
		logger = log.New(ioutil.Discard, "", 0)
	}
	return &BackupEngine{
		layout:  l,
		console: c,
		worlds:  w,
		logger:  logger,
		settle:  DefaultBackupSettle,
		now:     time.Now,
	}
}

// SetSettle sets how long Backup waits after asking the server to flush.
func (b *BackupEngine) SetSettle(d time.Duration) {
	b.settle = d
}

func backupFileName(t time.Time) string {
	return backupPrefix + t.Format(backupStamp) + backupSuffix
}

func validBackupFile(file string) bool {
	return ValidName(file) && strings.HasPrefix(file, backupPrefix) &&
		strings.HasSuffix(file, backupSuffix)
}

// Backup archives the active save directory of a running server.  The
// server is told to flush and stop autosaving for the duration.
func (b *BackupEngine) Backup() (BackupInfo, error) {
	if !b.console.Running() {
		return BackupInfo{}, ErrNotRunning
	}
	save := b.layout.SaveDir()
	if !isDir(save) {
		return BackupInfo{}, ErrNoActiveSave
	}
	world := b.worlds.Active()
	dir := b.layout.BackupDir(world)
	if e := os.MkdirAll(dir, 0755); e != nil {
		return BackupInfo{}, ioErr("create backup directory", e)
	}

	b.console.SendCommand("say §e[BACKUP] Backup in progress...")
	b.console.SendCommand("save-off")
	if e := b.console.SendCommand("save-all flush"); e != nil {
		return BackupInfo{}, e
	}
	defer b.console.SendCommand("save-on")
	time.Sleep(b.settle)

	stamp := b.now()
	file := backupFileName(stamp)
	path := filepath.Join(dir, file)
	// A backup earlier in the same minute is replaced, checksum and all.
	if e := os.Remove(path + checksumSuffix); e != nil && !os.IsNotExist(e) {
		return BackupInfo{}, ioErr("remove old checksum", e)
	}
	sum, e := packDir(save, path)
	if e != nil {
		b.console.SendCommand("say §c[BACKUP] Failed!")
		return BackupInfo{}, ioErr("archive world "+world, e)
	}
	if e := writeFileAtomic(path+checksumSuffix, []byte(sum+"\n"), 0644); e != nil {
		b.logger.Printf("Failed writing checksum for %s: %v", file, e)
	}
	b.console.SendCommand("say §a[BACKUP] Done!")

	info := BackupInfo{World: world, File: file, Checksum: sum, Time: stamp}
	info.Name = strings.TrimSuffix(file, backupSuffix)
	if fi, e := os.Stat(path); e == nil {
		info.Size = fi.Size()
	}
	b.logger.Printf("Backed up world %s to %s", world, file)
	return info, nil
}

// List returns the backups of a world, newest first.
func (b *BackupEngine) List(world string) ([]BackupInfo, error) {
	if !ValidName(world) {
		return nil, ErrBadWorldName
	}
	dir := b.layout.BackupDir(world)
	ents, e := os.ReadDir(dir)
	if os.IsNotExist(e) {
		return []BackupInfo{}, nil
	} else if e != nil {
		return nil, ioErr("list backups", e)
	}
	infos := []BackupInfo{}
	for _, ent := range ents {
		file := ent.Name()
		if ent.IsDir() || !validBackupFile(file) {
			continue
		}
		fi, e := ent.Info()
		if e != nil {
			continue
		}
		info := BackupInfo{
			World: world,
			Name:  strings.TrimSuffix(file, backupSuffix),
			File:  file,
			Size:  fi.Size(),
			Time:  fi.ModTime(),
		}
		stamp := strings.TrimPrefix(info.Name, backupPrefix)
		if t, e := time.ParseInLocation(backupStamp, stamp, time.Local); e == nil {
			info.Time = t
		}
		if s, e := os.ReadFile(filepath.Join(dir, file+checksumSuffix)); e == nil {
			info.Checksum = strings.TrimSpace(string(s))
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].File > infos[j].File
	})
	return infos, nil
}

// locate finds a backup file, preferring the given world's directory and
// otherwise searching the other worlds in name order.
func (b *BackupEngine) locate(world, file string) (string, error) {
	path := filepath.Join(b.layout.BackupDir(world), file)
	if exists(path) {
		return path, nil
	}
	ents, e := os.ReadDir(b.layout.BackupsDir())
	if e != nil {
		return "", ErrBackupNotFound
	}
	for _, ent := range ents {
		if ent.IsDir() {
			p := filepath.Join(b.layout.BackupsDir(), ent.Name(), file)
			if exists(p) {
				return p, nil
			}
		}
	}
	return "", ErrBackupNotFound
}

func (b *BackupEngine) verify(path string) error {
	want, e := os.ReadFile(path + checksumSuffix)
	if e != nil {
		// Nothing recorded to check against.
		return nil
	}
	got, e := fileChecksum(path)
	if e != nil {
		return ioErr("checksum backup", e)
	}
	if strings.TrimSpace(string(want)) != got {
		return errors.Wrap(ErrBackupCorrupt, filepath.Base(path))
	}
	return nil
}

// Restore replaces the active save directory with the contents of a
// backup and makes world the active world.  An existing save directory
// is renamed aside, never deleted.  The backup is looked up under world
// first, and then under every other world, so a snapshot can be restored
// as a different world.
func (b *BackupEngine) Restore(world, file string) (string, error) {
	if !ValidName(world) {
		return "", ErrBadWorldName
	}
	if !validBackupFile(file) {
		return "", ErrBadBackupName
	}
	if b.console.Running() {
		return "", ErrServerRunning
	}
	path, e := b.locate(world, file)
	if e != nil {
		return "", e
	}
	if e := b.verify(path); e != nil {
		return "", e
	}

	save := b.layout.SaveDir()
	safety := ""
	if exists(save) {
		safety = b.safetyPath()
		if e := os.Rename(save, safety); e != nil {
			return "", ioErr("set aside active world", e)
		}
		b.logger.Printf("Moved active save data to %s", safety)
	}
	if e := unpackFile(path, save); e != nil {
		if safety != "" {
			os.Rename(safety, save)
		}
		return "", ioErr("extract "+file, e)
	}
	if e := b.worlds.setActive(world); e != nil {
		return safety, e
	}
	if b.worlds.hasConfig(world) {
		if e := b.worlds.files.Apply(b.worlds.Config(world)); e != nil {
			return safety, e
		}
	}
	b.logger.Printf("Restored %s as world %s", file, world)
	return safety, nil
}

func (b *BackupEngine) safetyPath() string {
	base := filepath.Join(b.layout.Server, safetyPrefix+strconv.FormatInt(b.now().Unix(), 10))
	p := base
	for i := 1; exists(p); i++ {
		p = base + "_" + strconv.Itoa(i)
	}
	return p
}
