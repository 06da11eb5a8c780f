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

package rest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/gdamore/mcvisor"
)

type fixedIdentity map[string]mcvisor.Player

func (f fixedIdentity) Lookup(ctx context.Context, name string) (mcvisor.Player, error) {
	if p, ok := f[strings.ToLower(name)]; ok {
		return p, nil
	}
	return mcvisor.Player{}, mcvisor.ErrPlayerNotFound
}

type testLog struct {
	t *testing.T
}

func (l *testLog) Write(b []byte) (int, error) {
	l.t.Log(strings.TrimRight(string(b), "\n"))
	return len(b), nil
}

func fakeServer() []string {
	dir, _ := os.Getwd()
	return []string{"/bin/sh", filepath.Join(dir, "..", "testdata", "fake_server.sh"), "world"}
}

func waitFor(d time.Duration, fn func() bool) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if fn() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fn()
}

func WithServer(t *testing.T, fn func(m *mcvisor.Manager, c *Client)) func() {
	return func() {
		m := mcvisor.NewManager(mcvisor.Options{
			Name:     "rest",
			BaseDir:  t.TempDir(),
			Command:  fakeServer(),
			StopTime: 2 * time.Second,
			Identity: fixedIdentity{
				"alex": {Name: "Alex", UUID: "6ab43178-89fd-4905-97f6-0f67d9d76fd9"},
			},
		})
		m.SetLogWriter(&testLog{t: t})
		h := NewHandler(m)
		h.SetPollInterval(20 * time.Millisecond)
		srv := httptest.NewServer(h)
		Reset(func() {
			srv.CloseClientConnections()
			srv.Close()
			m.Shutdown()
		})
		fn(m, NewClient(srv.Client(), srv.URL+"/"))
	}
}

func TestHandler(t *testing.T) {
	Convey("Given a handler around a stopped server", t, WithServer(t, func(m *mcvisor.Manager, c *Client) {
		ctx := context.Background()

		Convey("Status reports it stopped", func() {
			st, e := c.Status(ctx)
			So(e, ShouldBeNil)
			So(st.Name, ShouldEqual, "rest")
			So(st.Running, ShouldBeFalse)
		})

		Convey("Stop is a conflict", func() {
			e := c.Stop(ctx)
			So(e, ShouldNotBeNil)
			So(errors.Is(e, mcvisor.ErrNotRunning), ShouldBeTrue)
			var re *Error
			So(errors.As(e, &re), ShouldBeTrue)
			So(re.Code, ShouldEqual, http.StatusConflict)
		})

		Convey("Commands need a running server", func() {
			So(errors.Is(c.Command(ctx, "list"), mcvisor.ErrNotRunning), ShouldBeTrue)
		})

		Convey("Blank commands are rejected", func() {
			e := c.Command(ctx, "   ")
			var re *Error
			So(errors.As(e, &re), ShouldBeTrue)
			So(re.Code, ShouldEqual, http.StatusBadRequest)
			So(re.Kind, ShouldEqual, mcvisor.KindInvalidName.String())
		})

		Convey("Garbled bodies are rejected", func() {
			res, e := http.Post(c.base+"/command", mimeJson, strings.NewReader("{"))
			So(e, ShouldBeNil)
			res.Body.Close()
			So(res.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Bad log marks are rejected", func() {
			res, e := http.Get(c.base + "/logs?since=soon")
			So(e, ShouldBeNil)
			res.Body.Close()
			So(res.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Bad log waits are rejected", func() {
			for _, q := range []string{"wait=soon", "wait=-1s"} {
				res, e := http.Get(c.base + "/logs?since=1&" + q)
				So(e, ShouldBeNil)
				res.Body.Close()
				So(res.StatusCode, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("Worlds can be created and listed", func() {
			cfg, e := c.CreateWorld(ctx, "alpha")
			So(e, ShouldBeNil)
			So(cfg.MaxPlayers, ShouldEqual, mcvisor.DefaultWorldConfig().MaxPlayers)

			info, e := c.Worlds(ctx)
			So(e, ShouldBeNil)
			So(info.Worlds, ShouldContain, "alpha")
			So(info.Current, ShouldEqual, "alpha")

			_, e = c.CreateWorld(ctx, "alpha")
			var re *Error
			So(errors.As(e, &re), ShouldBeTrue)
			So(re.Code, ShouldEqual, http.StatusConflict)
		})

		Convey("Unknown worlds are not found", func() {
			_, e := c.SwitchWorld(ctx, "nowhere")
			var re *Error
			So(errors.As(e, &re), ShouldBeTrue)
			So(re.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Bad world names are rejected", func() {
			_, e := c.WorldConfig(ctx, " padded")
			var re *Error
			So(errors.As(e, &re), ShouldBeTrue)
			So(re.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Players are added with their canonical names", func() {
			p, e := c.AddPlayer(ctx, "ALEX")
			So(e, ShouldBeNil)
			So(p.Name, ShouldEqual, "Alex")
			list, e := c.Whitelist(ctx)
			So(e, ShouldBeNil)
			So(len(list), ShouldEqual, 1)

			So(c.RemovePlayer(ctx, "alex"), ShouldBeNil)
			So(c.RemovePlayer(ctx, "alex"), ShouldBeNil)
			list, e = c.Whitelist(ctx)
			So(e, ShouldBeNil)
			So(len(list), ShouldEqual, 0)
		})

		Convey("Unknown players are not found", func() {
			_, e := c.AddPlayer(ctx, "nobody")
			var re *Error
			So(errors.As(e, &re), ShouldBeTrue)
			So(re.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Nothing is pending", func() {
			reqs, e := c.Requests(ctx)
			So(e, ShouldBeNil)
			So(len(reqs), ShouldEqual, 0)
			So(c.Reject(ctx, "steve"), ShouldNotBeNil)
		})

		Convey("Cancel with no countdown reports false", func() {
			done, e := c.CancelCountdown(ctx)
			So(e, ShouldBeNil)
			So(done, ShouldBeFalse)
		})

		Convey("Zero player limits are rejected", func() {
			e := c.SetConfig(ctx, 0, true)
			var re *Error
			So(errors.As(e, &re), ShouldBeTrue)
			So(re.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When started", func() {
			So(c.Start(ctx), ShouldBeNil)
			So(errors.Is(c.Start(ctx), mcvisor.ErrAlreadyRunning), ShouldBeTrue)

			st, e := c.Status(ctx)
			So(e, ShouldBeNil)
			So(st.Running, ShouldBeTrue)
			So(st.Pid, ShouldNotEqual, 0)

			Convey("Commands reach the console", func() {
				So(c.Command(ctx, "say hi"), ShouldBeNil)
				So(waitFor(5*time.Second, func() bool {
					lines, _ := c.Logs(ctx)
					for _, l := range lines {
						if strings.Contains(l, "> say hi") {
							return true
						}
					}
					return false
				}), ShouldBeTrue)
			})

			Convey("Worlds cannot be switched", func() {
				_, e := c.CreateWorld(ctx, "beta")
				So(errors.Is(e, mcvisor.ErrServerRunning), ShouldBeTrue)
			})

			Convey("Stop stops it", func() {
				So(c.Stop(ctx), ShouldBeNil)
				st, e := c.Status(ctx)
				So(e, ShouldBeNil)
				So(st.Running, ShouldBeFalse)
			})
		})
	}))
}

func TestStreamLogs(t *testing.T) {
	Convey("Given a running server", t, WithServer(t, func(m *mcvisor.Manager, c *Client) {
		So(m.Start(), ShouldBeNil)
		So(waitFor(5*time.Second, func() bool {
			for _, l := range m.Logs() {
				if strings.Contains(l, "Done (") {
					return true
				}
			}
			return false
		}), ShouldBeTrue)

		Convey("A replaying stream sees old and new lines", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			var mx sync.Mutex
			var seen []string
			found := func(s string) bool {
				mx.Lock()
				defer mx.Unlock()
				for _, l := range seen {
					if strings.Contains(l, s) {
						return true
					}
				}
				return false
			}
			done := make(chan error, 1)
			go func() {
				done <- c.StreamLogs(ctx, true, func(lines []string) {
					mx.Lock()
					seen = append(seen, lines...)
					mx.Unlock()
				})
			}()

			So(waitFor(5*time.Second, func() bool { return found("Done (") }), ShouldBeTrue)
			So(m.Command("say streamed"), ShouldBeNil)
			So(waitFor(5*time.Second, func() bool { return found("> say streamed") }), ShouldBeTrue)

			cancel()
			select {
			case e := <-done:
				So(e, ShouldNotBeNil)
			case <-time.After(5 * time.Second):
				So("stream did not end", ShouldBeEmpty)
			}
		})

		Convey("A log poll waits for the next line", func() {
			ctx := context.Background()
			info, e := c.WatchLogs(ctx, 0, 0)
			So(e, ShouldBeNil)
			So(strings.Join(info.Lines, "\n"), ShouldContainSubstring, "Done (")
			mark := info.Id

			start := time.Now()
			idle, e := c.WatchLogs(ctx, mark, 100*time.Millisecond)
			So(e, ShouldBeNil)
			So(idle.Lines, ShouldBeEmpty)
			So(idle.Id, ShouldEqual, mark)
			So(time.Since(start), ShouldBeGreaterThanOrEqualTo, 100*time.Millisecond)

			go func() {
				time.Sleep(100 * time.Millisecond)
				m.Command("say later")
			}()
			start = time.Now()
			next, e := c.WatchLogs(ctx, mark, 30*time.Second)
			So(e, ShouldBeNil)
			So(time.Since(start), ShouldBeLessThan, 20*time.Second)
			So(next.Id, ShouldNotEqual, mark)
			So(next.Lines, ShouldNotBeEmpty)
			So(next.Lines[0], ShouldNotContainSubstring, "Done (")
		})

		Convey("The event stream announces itself", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			req, _ := http.NewRequestWithContext(ctx, "GET", c.base+"/logs/stream", nil)
			res, e := http.DefaultClient.Do(req)
			So(e, ShouldBeNil)
			defer res.Body.Close()
			So(res.Header.Get("Content-Type"), ShouldEqual, mimeSSE)
			buf := make([]byte, len("data: [CONNECTED]"))
			_, e = io.ReadFull(res.Body, buf)
			So(e, ShouldBeNil)
			So(string(buf), ShouldEqual, "data: [CONNECTED]")
		})
	}))
}
