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
	"io/ioutil"
	"log"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Step is one announcement, followed by a pause.  An empty Message only
// pauses.
type Step struct {
	Message string
	Delay   time.Duration
}

// Script is a countdown that ends by stopping the server, and optionally
// starting it again after Settle.
type Script struct {
	Name    string
	Steps   []Step
	Restart bool
	Settle  time.Duration
}

// Duration is the scripted time before the server is stopped.
func (s Script) Duration() time.Duration {
	var d time.Duration
	for _, st := range s.Steps {
		d += st.Delay
	}
	return d
}

// ShutdownScript warns players over five minutes and then stops.
var ShutdownScript = Script{
	Name: "shutdown",
	Steps: []Step{
		{"§c[SERVER] Shutting down in 5 minutes!", time.Minute},
		{"§c[SERVER] Shutting down in 4 minutes!", time.Minute},
		{"§c[SERVER] Shutting down in 3 minutes!", time.Minute},
		{"§c[SERVER] Shutting down in 2 minutes!", time.Minute},
		{"§c[SERVER] Shutting down in 1 minute!", 30 * time.Second},
		{"§c[SERVER] Shutting down in 30 seconds!", 20 * time.Second},
		{"§c[SERVER] Shutting down in 10 seconds!", 5 * time.Second},
		{"§c[SERVER] 5...", time.Second},
		{"§c[SERVER] 4...", time.Second},
		{"§c[SERVER] 3...", time.Second},
		{"§c[SERVER] 2...", time.Second},
		{"§c[SERVER] 1...", time.Second},
		{"§c[SERVER] Shutting down now!", time.Second},
	},
}

// RestartScript is the periodic restart: a minute of warnings, then a
// stop and a start.
var RestartScript = Script{
	Name: "auto-restart",
	Steps: []Step{
		{"§c[AUTO-RESTART] Restarting in 1 minute!", 30 * time.Second},
		{"§c[AUTO-RESTART] Restarting in 30 seconds!", 20 * time.Second},
		{"§c[AUTO-RESTART] Restarting in 10 seconds!", 10 * time.Second},
	},
	Restart: true,
	Settle:  5 * time.Second,
}

// QuickRestartScript is an operator requested restart.
var QuickRestartScript = Script{
	Name: "restart",
	Steps: []Step{
		{"§e[RESTART] Restarting the server...", 2 * time.Second},
	},
	Restart: true,
	Settle:  3 * time.Second,
}

// Countdown runs at most one Script at a time in the background.  A new
// script supersedes the one in flight: the old one is cancelled, and the
// new one does not begin announcing until the old one has returned.
type Countdown struct {
	server Server
	logger *log.Logger
	name   string
	cancel context.CancelFunc
	done   chan struct{}
	mx     sync.Mutex
}

func NewCountdown(s Server, logger *log.Logger) *Countdown {
	if logger == nil {
		logger = log.New(ioutil.Discard, "", 0)
	}
	return &Countdown{server: s, logger: logger}
}

// Begin starts script in the background.  It fails with ErrNotRunning
// if the server is not live.
func (c *Countdown) Begin(script Script) error {
	if !c.server.Running() {
		return ErrNotRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mx.Lock()
	prev := c.done
	if c.cancel != nil {
		c.logger.Printf("Countdown %s superseded by %s", c.name, script.Name)
		c.cancel()
	}
	c.name = script.Name
	c.cancel = cancel
	c.done = done
	c.mx.Unlock()

	go func() {
		defer close(done)
		defer c.finish(done)
		if prev != nil {
			<-prev
		}
		if e := c.Run(ctx, script); e != nil && !errors.Is(e, context.Canceled) {
			c.logger.Printf("Countdown %s failed: %v", script.Name, e)
		}
	}()
	return nil
}

func (c *Countdown) finish(done chan struct{}) {
	c.mx.Lock()
	if c.done == done {
		c.cancel()
		c.cancel = nil
		c.done = nil
		c.name = ""
	}
	c.mx.Unlock()
}

// Cancel stops the countdown in flight, if any, and reports whether
// there was one.  A restart cancelled after its stop leaves the server
// stopped.
func (c *Countdown) Cancel() bool {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.cancel == nil {
		return false
	}
	c.logger.Printf("Countdown %s cancelled", c.name)
	c.cancel()
	return true
}

// Active returns the name of the script in flight.
func (c *Countdown) Active() (string, bool) {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.name, c.cancel != nil
}

// Wait blocks until the script in flight, if any, has returned.
func (c *Countdown) Wait() {
	c.mx.Lock()
	done := c.done
	c.mx.Unlock()
	if done != nil {
		<-done
	}
}

// Run executes script synchronously.  Announcements to a server that has
// gone away are dropped.  It returns the context error if cancelled
// before the stop, or between the stop and the restart.
func (c *Countdown) Run(ctx context.Context, script Script) error {
	c.logger.Printf("Countdown %s started", script.Name)
	for _, st := range script.Steps {
		if st.Message != "" {
			c.server.SendCommand("say " + st.Message)
		}
		if e := sleep(ctx, st.Delay); e != nil {
			return e
		}
	}
	if e := c.server.Stop(); e != nil && !errors.Is(e, ErrNotRunning) {
		return e
	}
	if !script.Restart {
		return nil
	}
	if e := sleep(ctx, script.Settle); e != nil {
		c.logger.Printf("Countdown %s cancelled before restart", script.Name)
		return e
	}
	return c.server.Start()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
