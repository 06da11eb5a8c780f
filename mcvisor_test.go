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
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type testLog struct {
	t *testing.T
}

func (tl *testLog) Write(p []byte) (n int, err error) {
	s := string(p)
	s = strings.Trim(s, "\n")
	tl.t.Log(s)
	return len(p), nil
}

// testConsole stands in for a server process.
type testConsole struct {
	running bool
	sent    []string
	starts  int
	stops   int
	sync.Mutex
}

func (c *testConsole) Running() bool {
	c.Lock()
	defer c.Unlock()
	return c.running
}

func (c *testConsole) SendCommand(text string) error {
	c.Lock()
	defer c.Unlock()
	if !c.running {
		return ErrNotRunning
	}
	c.sent = append(c.sent, text)
	return nil
}

func (c *testConsole) Start() error {
	c.Lock()
	defer c.Unlock()
	if c.running {
		return ErrAlreadyRunning
	}
	c.running = true
	c.starts++
	return nil
}

func (c *testConsole) Stop() error {
	c.Lock()
	defer c.Unlock()
	if !c.running {
		return ErrNotRunning
	}
	c.running = false
	c.stops++
	return nil
}

func (c *testConsole) setRunning(b bool) {
	c.Lock()
	c.running = b
	c.Unlock()
}

func (c *testConsole) Sent() []string {
	c.Lock()
	defer c.Unlock()
	return append([]string(nil), c.sent...)
}

func (c *testConsole) counts() (int, int) {
	c.Lock()
	defer c.Unlock()
	return c.starts, c.stops
}

// testIdentity resolves names from a fixed table.
type testIdentity struct {
	players map[string]Player
	err     error
	calls   int
	sync.Mutex
}

func (ti *testIdentity) Lookup(ctx context.Context, name string) (Player, error) {
	ti.Lock()
	defer ti.Unlock()
	ti.calls++
	if ti.err != nil {
		return Player{}, ti.err
	}
	p, ok := ti.players[strings.ToLower(name)]
	if !ok {
		return Player{}, ErrPlayerNotFound
	}
	return p, nil
}

func newTestIdentity() *testIdentity {
	return &testIdentity{players: map[string]Player{
		"notch": {Name: "Notch", UUID: "069a79f444e94726a5befca90e38aaf5"},
		"alex":  {Name: "Alex", UUID: "6ab43178-89fd-4905-97f6-0f67d9d76fd9"},
	}}
}

// fakeServer returns the command line running the stand-in server
// script with the given behaviors.
func fakeServer(modes ...string) []string {
	dir, _ := os.Getwd()
	argv := []string{"/bin/sh", filepath.Join(dir, "testdata", "fake_server.sh")}
	return append(argv, modes...)
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

func logHas(l *Log, s string) func() bool {
	return func() bool {
		for _, line := range l.Lines() {
			if strings.Contains(line, s) {
				return true
			}
		}
		return false
	}
}

func writeFile(path, text string) {
	os.MkdirAll(filepath.Dir(path), 0755)
	if e := os.WriteFile(path, []byte(text), 0644); e != nil {
		panic(e)
	}
}

func readFile(path string) string {
	b, e := os.ReadFile(path)
	if e != nil {
		return ""
	}
	return string(b)
}

// WithManager runs fn against a Manager on a private directory tree
// that launches the stand-in server with modes.
func WithManager(t *testing.T, name string, modes []string, fn func(m *Manager)) func() {
	return func() {
		base := t.TempDir()
		m := NewManager(Options{
			Name:         name,
			BaseDir:      base,
			Command:      fakeServer(modes...),
			StopTime:     2 * time.Second,
			BackupSettle: time.Millisecond,
			Identity:     newTestIdentity(),
		})
		So(m, ShouldNotBeNil)
		m.SetLogWriter(&testLog{t: t})
		Reset(func() {
			m.Shutdown()
		})
		fn(m)
	}
}
