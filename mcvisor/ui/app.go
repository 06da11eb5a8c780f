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

// Package ui implements the interactive console of the mcvisor client:
// the live server log with a command line under it.
package ui

import (
	"context"
	"log"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/gdamore/mcvisor"
	"github.com/gdamore/mcvisor/rest"
)

// MaxLines bounds the scrollback the console keeps.
const MaxLines = 2000

type App struct {
	app     *views.Application
	view    views.View
	panel   views.Widget
	console *ConsolePanel
	help    *HelpPanel
	client  *rest.Client
	url     string
	logger  *log.Logger

	status    *mcvisor.Status
	err       error
	lines     []string
	notice    string
	noticeBad bool

	ctx    context.Context
	cancel context.CancelFunc

	views.WidgetWatchers
}

func (a *App) show(w views.Widget) {
	if w != a.panel {
		a.panel.SetView(nil)
		a.panel = w
	}
	a.panel.SetView(a.view)
	a.panel.Resize()
	a.app.Refresh()
}

func (a *App) ShowHelp() {
	a.show(a.help)
}

func (a *App) ShowConsole() {
	a.show(a.console)
}

func (a *App) Quit() {
	a.app.Quit()
}

func (a *App) Update() {
	a.app.Update()
}

func (a *App) SetLogger(logger *log.Logger) {
	a.logger = logger
}

func (a *App) Logf(fmt string, v ...interface{}) {
	if a.logger != nil {
		a.logger.Printf(fmt, v...)
	}
}

// act runs fn off the event loop, and reports how it went.
func (a *App) act(what string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 30*time.Second)
		defer cancel()
		e := fn(ctx)
		a.app.PostFunc(func() {
			if e != nil {
				a.Logf("%s: %v", what, e)
				a.notice = what + ": " + e.Error()
				a.noticeBad = true
			} else {
				a.notice = what
				a.noticeBad = false
			}
			a.app.Update()
		})
	}()
}

func (a *App) Send(cmd string) {
	a.act("Sent "+cmd, func(ctx context.Context) error {
		return a.client.Command(ctx, cmd)
	})
}

func (a *App) Start() {
	a.act("Start requested", a.client.Start)
}

func (a *App) StopGracefully() {
	a.act("Shutdown countdown started", a.client.StopGracefully)
}

func (a *App) CancelCountdown() {
	a.act("Countdown cancelled", func(ctx context.Context) error {
		_, e := a.client.CancelCountdown(ctx)
		return e
	})
}

func (a *App) Restart() {
	a.act("Restart started", a.client.Restart)
}

func (a *App) Backup() {
	a.act("Backup finished", func(ctx context.Context) error {
		_, e := a.client.Backup(ctx)
		return e
	})
}

func (a *App) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		// Intercept a few control keys up front, for global handling.
		case tcell.KeyCtrlC:
			a.Quit()
			return true
		case tcell.KeyCtrlL:
			a.app.Refresh()
			return true
		}
	}

	if a.panel != nil {
		return a.panel.HandleEvent(ev)
	}
	return false
}

func (a *App) Draw() {
	if a.panel != nil {
		a.panel.Draw()
	}
}

func (a *App) Resize() {
	if a.panel != nil {
		a.panel.Resize()
	}
}

func (a *App) SetView(view views.View) {
	a.view = view
	if a.panel != nil {
		a.panel.SetView(view)
	}
}

func (a *App) Size() (int, int) {
	if a.panel != nil {
		return a.panel.Size()
	}
	return 0, 0
}

func (a *App) GetClient() *rest.Client {
	return a.client
}

func (a *App) GetAppName() string {
	return "mcvisor " + a.url
}

func (a *App) GetStatus() (*mcvisor.Status, error) {
	return a.status, a.err
}

func (a *App) GetLines() []string {
	return a.lines
}

func (a *App) GetNotice() (string, bool) {
	return a.notice, a.noticeBad
}

// refresh keeps the status current.
func (a *App) refresh() {
	for {
		ctx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
		st, e := a.client.Status(ctx)
		cancel()
		if e != nil {
			st = nil
		}
		a.app.PostFunc(func() {
			a.status = st
			a.err = e
			a.app.Update()
		})
		select {
		case <-a.ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

// stream follows the server output, reconnecting as needed.  Each
// connection replays what the daemon retains, so the scrollback starts
// over.
func (a *App) stream() {
	for {
		first := true
		e := a.client.StreamLogs(a.ctx, true, func(lines []string) {
			reset := first
			first = false
			a.app.PostFunc(func() {
				if reset {
					a.lines = nil
				}
				a.lines = append(a.lines, lines...)
				if n := len(a.lines); n > MaxLines {
					a.lines = append([]string(nil), a.lines[n-MaxLines:]...)
				}
				a.app.Update()
			})
		})
		if a.ctx.Err() != nil {
			return
		}
		a.Logf("Log stream: %v", e)
		select {
		case <-a.ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (a *App) Run() error {
	a.Logf("Starting up user interface")
	defer a.cancel()
	a.app.SetRootWidget(a)
	a.ShowConsole()
	go a.refresh()
	go a.stream()
	return a.app.Run()
}

func NewApp(client *rest.Client, url string) *App {
	app := &App{}
	app.app = &views.Application{}
	app.client = client
	app.url = url
	app.ctx, app.cancel = context.WithCancel(context.Background())
	app.console = NewConsolePanel(app)
	app.help = NewHelpPanel(app)
	app.panel = app.console
	return app
}
