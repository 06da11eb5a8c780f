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
	"log"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBackup(t *testing.T) {
	Convey("Given a running server", t, func() {
		l := NewLayout(t.TempDir(), "")
		con := &testConsole{running: true}
		files := NewConfigSync(l, con)
		logger := log.New(&testLog{t: t}, "", 0)
		ws := NewWorldStore(l, con, files, logger)
		b := NewBackupEngine(l, con, ws, logger)
		b.SetSettle(0)
		stamp := time.Date(2026, 3, 4, 5, 6, 0, 0, time.Local)
		b.now = func() time.Time { return stamp }

		level := filepath.Join(l.SaveDir(), "level.dat")
		region := filepath.Join(l.SaveDir(), "region", "r.0.0.mca")

		Convey("Nothing is backed up without save data", func() {
			_, e := b.Backup()
			So(e, ShouldEqual, ErrNoActiveSave)
		})

		Convey("Nothing is backed up while stopped", func() {
			writeFile(level, "alpha")
			con.setRunning(false)
			_, e := b.Backup()
			So(e, ShouldEqual, ErrNotRunning)
			con.setRunning(true)
		})

		writeFile(level, "alpha")
		writeFile(region, "region")
		writeFile(l.PropertiesFile(), "max-players=20\n")

		info, e := b.Backup()
		So(e, ShouldBeNil)
		So(info.World, ShouldEqual, "world")
		So(info.File, ShouldEqual, "backup_2026-03-04_05h06.tar.lz4")
		So(info.Name, ShouldEqual, "backup_2026-03-04_05h06")
		So(len(info.Checksum), ShouldEqual, 64)
		So(info.Size, ShouldBeGreaterThan, 0)
		path := filepath.Join(l.BackupDir("world"), info.File)
		So(strings.TrimSpace(readFile(path+".b3")), ShouldEqual, info.Checksum)

		Convey("Autosave is paused around the archive", func() {
			So(con.Sent(), ShouldResemble, []string{
				"say §e[BACKUP] Backup in progress...",
				"save-off",
				"save-all flush",
				"say §a[BACKUP] Done!",
				"save-on",
			})
		})

		Convey("Backups are listed newest first", func() {
			stamp = stamp.Add(time.Hour)
			_, e := b.Backup()
			So(e, ShouldBeNil)
			infos, e := b.List("world")
			So(e, ShouldBeNil)
			So(len(infos), ShouldEqual, 2)
			So(infos[0].File, ShouldEqual, "backup_2026-03-04_06h06.tar.lz4")
			So(infos[1].Time.Equal(time.Date(2026, 3, 4, 5, 6, 0, 0, time.Local)), ShouldBeTrue)
			So(infos[1].Checksum, ShouldEqual, info.Checksum)

			infos, e = b.List("elsewhere")
			So(e, ShouldBeNil)
			So(infos, ShouldBeEmpty)
		})

		Convey("A second backup in the same minute replaces the first", func() {
			writeFile(path+".b3", "deadbeef\n")
			writeFile(level, "beta")
			again, e := b.Backup()
			So(e, ShouldBeNil)
			So(again.File, ShouldEqual, info.File)
			So(strings.TrimSpace(readFile(path+".b3")), ShouldEqual, again.Checksum)

			con.setRunning(false)
			writeFile(level, "gamma")
			_, e = b.Restore("world", again.File)
			So(e, ShouldBeNil)
			So(readFile(level), ShouldEqual, "beta")
		})

		Convey("Restoring is refused while running", func() {
			_, e := b.Restore("world", info.File)
			So(e, ShouldEqual, ErrServerRunning)
		})

		Convey("Once stopped", func() {
			con.setRunning(false)
			writeFile(level, "changed")

			Convey("A restore sets the old save data aside", func() {
				safety, e := b.Restore("world", info.File)
				So(e, ShouldBeNil)
				So(filepath.Base(safety), ShouldStartWith, "world_before_restore_")
				So(readFile(filepath.Join(safety, "level.dat")), ShouldEqual, "changed")
				So(readFile(level), ShouldEqual, "alpha")
				So(readFile(region), ShouldEqual, "region")
				So(ws.Active(), ShouldEqual, "world")

				Convey("Twice in a row keeps both", func() {
					safety2, e := b.Restore("world", info.File)
					So(e, ShouldBeNil)
					So(safety2, ShouldNotEqual, safety)
					So(readFile(filepath.Join(safety, "level.dat")), ShouldEqual, "changed")
				})
			})

			Convey("A restore applies stored settings", func() {
				cfg := DefaultWorldConfig()
				cfg.MaxPlayers = 4
				So(ws.SaveConfig("world", cfg), ShouldBeNil)
				_, e := b.Restore("world", info.File)
				So(e, ShouldBeNil)
				props, _ := files.Properties()
				So(props[PropMaxPlayers], ShouldEqual, "4")
			})

			Convey("A backup can be restored as another world", func() {
				_, e := b.Restore("copy", info.File)
				So(e, ShouldBeNil)
				So(ws.Active(), ShouldEqual, "copy")
				So(readFile(level), ShouldEqual, "alpha")
			})

			Convey("A damaged backup is not restored", func() {
				writeFile(path+".b3", "deadbeef\n")
				_, e := b.Restore("world", info.File)
				So(errors.Is(e, ErrBackupCorrupt), ShouldBeTrue)
				So(KindOf(e), ShouldEqual, KindIOFailure)
				So(readFile(level), ShouldEqual, "changed")
			})

			Convey("Bad requests are refused", func() {
				_, e := b.Restore("world", "backup_1999-01-01_00h00.tar.lz4")
				So(e, ShouldEqual, ErrBackupNotFound)
				_, e = b.Restore("../world", info.File)
				So(e, ShouldEqual, ErrBadWorldName)
				_, e = b.Restore("world", "../../etc/passwd")
				So(e, ShouldEqual, ErrBadBackupName)
				So(readFile(level), ShouldEqual, "changed")
			})
		})
	})
}
