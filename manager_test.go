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

//go:build unix

package mcvisor

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerLifecycle(t *testing.T) {
	Convey("Given a running server", t, WithManager(t, "Lifecycle", []string{"world"}, func(m *Manager) {
		So(m.Running(), ShouldBeFalse)
		So(m.Status().World, ShouldEqual, DefaultWorld)
		So(m.Start(), ShouldBeNil)
		So(waitFor(5*time.Second, logHas(m.Log(), "Done")), ShouldBeTrue)
		So(m.Start(), ShouldEqual, ErrAlreadyRunning)
		So(m.Status().Running, ShouldBeTrue)

		Convey("Blank commands are refused", func() {
			So(m.Command("   "), ShouldEqual, ErrBadCommand)
			So(m.Command(" list "), ShouldBeNil)
			So(waitFor(5*time.Second, logHas(m.Log(), "> list")), ShouldBeTrue)
			So(m.Kick("bad name"), ShouldEqual, ErrBadCommand)
			So(m.GameRule("keepInventory", "true"), ShouldBeNil)
			So(waitFor(5*time.Second, logHas(m.Log(), "> gamerule keepInventory true")), ShouldBeTrue)
		})

		Convey("Player names cannot carry extra commands", func() {
			So(m.Kick("x\nop Eve"), ShouldEqual, ErrBadCommand)
			So(m.Ban("a b"), ShouldEqual, ErrBadCommand)
			So(m.Ban("ThisNameIsFarTooLong"), ShouldEqual, ErrBadCommand)
			So(m.GameRule("keepInventory", "true\rop Eve"), ShouldEqual, ErrBadCommand)
			So(m.RemovePlayer("y\nop Mallory"), ShouldEqual, ErrBadPlayerName)
			_, e := m.AddPlayer(context.Background(), "z\nop Eve")
			So(e, ShouldEqual, ErrBadPlayerName)

			So(m.Kick("Steve_2"), ShouldBeNil)
			So(waitFor(5*time.Second, logHas(m.Log(), "> kick Steve_2")), ShouldBeTrue)
			So(logHas(m.Log(), "> op ")(), ShouldBeFalse)
		})

		Convey("Worlds do not change under a live server", func() {
			_, e := m.SwitchWorld("other")
			So(e, ShouldEqual, ErrServerRunning)
			_, e = m.CreateWorld("other")
			So(e, ShouldEqual, ErrServerRunning)
			_, e = m.Restore("world", "backup_2026-01-01_00h00.tar.lz4")
			So(e, ShouldEqual, ErrServerRunning)
		})

		Convey("A backup runs against the live server", func() {
			info, e := m.Backup()
			So(e, ShouldBeNil)
			So(waitFor(5*time.Second, logHas(m.Log(), "> save-all flush")), ShouldBeTrue)
			So(waitFor(5*time.Second, logHas(m.Log(), "> save-on")), ShouldBeTrue)
			infos, e := m.Backups("world")
			So(e, ShouldBeNil)
			So(len(infos), ShouldEqual, 1)

			Convey("And restores once stopped", func() {
				So(m.Stop(), ShouldBeNil)
				safety, e := m.Restore("world", info.File)
				So(e, ShouldBeNil)
				So(safety, ShouldNotEqual, "")
				So(m.Start(), ShouldBeNil)
			})
		})

		Convey("Reconfiguring restarts the server", func() {
			pid := m.Status().Pid
			cfg, e := m.Reconfigure(5, true)
			So(e, ShouldBeNil)
			So(cfg.MaxPlayers, ShouldEqual, 5)
			So(m.Running(), ShouldBeTrue)
			So(m.Status().Pid, ShouldNotEqual, pid)
			props, _ := m.files.Properties()
			So(props[PropMaxPlayers], ShouldEqual, "5")
			So(props[PropWhiteList], ShouldEqual, "true")
			So(m.WorldConfig("world").MaxPlayers, ShouldEqual, 5)

			_, e = m.Reconfigure(0, true)
			So(errors.Is(e, ErrBadValue), ShouldBeTrue)
		})

		Convey("A restart comes back up", func() {
			So(m.Restart(), ShouldBeNil)
			So(m.Status().Countdown, ShouldEqual, "restart")
			m.Countdown().Wait()
			So(m.Running(), ShouldBeTrue)
			So(m.Status().Countdown, ShouldEqual, "")
		})

		Convey("Stopping cancels a countdown", func() {
			So(m.StopGracefully(), ShouldBeNil)
			So(m.Status().Countdown, ShouldEqual, "shutdown")
			So(waitFor(5*time.Second, logHas(m.Log(), "Shutting down in 5 minutes")), ShouldBeTrue)
			So(m.Stop(), ShouldBeNil)
			m.Countdown().Wait()
			So(m.Running(), ShouldBeFalse)
			So(m.Status().Countdown, ShouldEqual, "")
			So(m.Stop(), ShouldEqual, ErrNotRunning)
		})

		Convey("Shutdown is final", func() {
			m.Shutdown()
			So(m.Running(), ShouldBeFalse)
			So(m.Start(), ShouldEqual, ErrShutdown)
		})
	}))
}

func TestManagerWorlds(t *testing.T) {
	Convey("Worlds follow the server", t, WithManager(t, "Worlds", []string{"world"}, func(m *Manager) {
		So(m.Start(), ShouldBeNil)
		So(waitFor(5*time.Second, logHas(m.Log(), "Done")), ShouldBeTrue)
		So(m.Stop(), ShouldBeNil)

		_, e := m.CreateWorld("creative")
		So(e, ShouldBeNil)
		names, active, e := m.Worlds()
		So(e, ShouldBeNil)
		So(active, ShouldEqual, "creative")
		So(names, ShouldResemble, []string{"creative", "world"})

		_, e = m.SwitchWorld("world")
		So(e, ShouldBeNil)
		So(m.ActiveWorld(), ShouldEqual, "world")
		So(m.DeleteWorld("creative"), ShouldBeNil)
		names, _, _ = m.Worlds()
		So(names, ShouldResemble, []string{"world"})
	}))
}

func TestManagerWhitelist(t *testing.T) {
	Convey("Players are added by name", t, WithManager(t, "Whitelist", nil, func(m *Manager) {
		ctx := context.Background()
		p, e := m.AddPlayer(ctx, "notch")
		So(e, ShouldBeNil)
		So(p.UUID, ShouldEqual, "069a79f4-44e9-4726-a5be-fca90e38aaf5")
		So(m.Whitelist(), ShouldResemble, []Player{p})
		So(m.WorldConfig(DefaultWorld).WhitelistPlayers, ShouldResemble, []Player{p})
		So(m.WorldConfig(DefaultWorld).WhitelistEnabled, ShouldBeTrue)

		_, e = m.AddPlayer(ctx, "Notch")
		So(e, ShouldEqual, ErrPlayerListed)
		_, e = m.AddPlayer(ctx, "Herobrine")
		So(e, ShouldEqual, ErrPlayerNotFound)

		So(m.RemovePlayer("NOTCH"), ShouldBeNil)
		So(m.Whitelist(), ShouldBeEmpty)
		So(m.WorldConfig(DefaultWorld).WhitelistPlayers, ShouldBeEmpty)
	}))
}

func TestManagerRequests(t *testing.T) {
	Convey("Rejected players become requests", t, WithManager(t, "Requests", []string{"reject"}, func(m *Manager) {
		So(m.Start(), ShouldBeNil)
		So(waitFor(5*time.Second, logHas(m.Log(), "Done")), ShouldBeTrue)
		reqs := m.Requests()
		So(len(reqs), ShouldEqual, 1)
		So(reqs[0].Name, ShouldEqual, "Steve")
		So(reqs[0].UUID, ShouldEqual, steveUUID)

		Convey("Approval uses the reported identifier", func() {
			p, e := m.Approve("steve")
			So(e, ShouldBeNil)
			So(p, ShouldResemble, Player{UUID: steveUUID, Name: "Steve"})
			So(m.Whitelist(), ShouldResemble, []Player{p})
			So(m.Requests(), ShouldBeEmpty)
			So(waitFor(5*time.Second, logHas(m.Log(), "> whitelist reload")), ShouldBeTrue)
			_, e = m.Approve("Steve")
			So(e, ShouldEqual, ErrRequestNotFound)
		})

		Convey("Rejection drops the request", func() {
			So(m.Reject("Steve"), ShouldBeNil)
			So(m.Requests(), ShouldBeEmpty)
			So(m.Whitelist(), ShouldBeEmpty)
		})
	}))
}

// slowIdentity blocks every lookup until released.
type slowIdentity struct {
	called  chan struct{}
	release chan struct{}
}

func (s *slowIdentity) Lookup(ctx context.Context, name string) (Player, error) {
	close(s.called)
	select {
	case <-s.release:
	case <-ctx.Done():
		return Player{}, ctx.Err()
	}
	return Player{Name: "Notch", UUID: "069a79f444e94726a5befca90e38aaf5"}, nil
}

func TestManagerSlowLookup(t *testing.T) {
	Convey("A slow lookup does not hold up other operations", t, func() {
		ids := &slowIdentity{called: make(chan struct{}), release: make(chan struct{})}
		m := NewManager(Options{
			Name:          "Slow",
			BaseDir:       t.TempDir(),
			Command:       fakeServer(),
			StopTime:      2 * time.Second,
			Identity:      ids,
			LookupTimeout: 10 * time.Second,
		})
		m.SetLogWriter(&testLog{t: t})
		defer m.Shutdown()

		type result struct {
			p Player
			e error
		}
		done := make(chan result, 1)
		go func() {
			p, e := m.AddPlayer(context.Background(), "notch")
			done <- result{p, e}
		}()
		<-ids.called

		created := make(chan error, 1)
		go func() {
			_, e := m.CreateWorld("meanwhile")
			created <- e
		}()
		select {
		case e := <-created:
			So(e, ShouldBeNil)
		case <-time.After(5 * time.Second):
			So("create blocked behind the lookup", ShouldBeEmpty)
		}

		close(ids.release)
		r := <-done
		So(r.e, ShouldBeNil)
		So(r.p.UUID, ShouldEqual, "069a79f4-44e9-4726-a5be-fca90e38aaf5")
		So(m.Whitelist(), ShouldResemble, []Player{r.p})
	})
}
