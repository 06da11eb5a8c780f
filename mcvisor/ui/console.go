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

package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/gdamore/mcvisor/mcvisor/util"
)

// ConsolePanel shows the server output above a command line.  The log
// follows new output until the user scrolls back.
type ConsolePanel struct {
	text   *views.TextArea
	input  *views.Text
	box    *views.BoxLayout
	line   []rune
	follow bool

	Panel
}

func NewConsolePanel(app *App) *ConsolePanel {
	p := &ConsolePanel{follow: true}
	p.Panel.Init(app)

	p.text = views.NewTextArea()
	p.text.EnableCursor(false)
	p.text.SetStyle(tcell.StyleDefault.
		Foreground(tcell.ColorSilver).Background(tcell.ColorBlack))

	p.input = views.NewText()
	p.input.SetStyle(tcell.StyleDefault.
		Foreground(tcell.ColorWhite).Background(tcell.ColorNavy))

	p.box = views.NewBoxLayout(views.Vertical)
	p.box.AddWidget(p.text, 1.0)
	p.box.AddWidget(p.input, 0.0)
	p.SetContent(p.box)
	p.update()
	return p
}

func (p *ConsolePanel) Draw() {
	p.update()
	p.Panel.Draw()
}

func (p *ConsolePanel) HandleEvent(ev tcell.Event) bool {
	app := p.app
	ek, ok := ev.(*tcell.EventKey)
	if !ok {
		return p.Panel.HandleEvent(ev)
	}
	switch ek.Key() {
	case tcell.KeyEnter:
		cmd := strings.TrimSpace(string(p.line))
		p.line = nil
		if cmd != "" {
			p.follow = true
			app.Send(cmd)
		}
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if n := len(p.line); n > 0 {
			p.line = p.line[:n-1]
		}
	case tcell.KeyEsc:
		p.line = nil
	case tcell.KeyRune:
		p.line = append(p.line, ek.Rune())
	case tcell.KeyF1:
		app.ShowHelp()
	case tcell.KeyF2:
		app.Start()
	case tcell.KeyF3:
		app.StopGracefully()
	case tcell.KeyF4:
		app.CancelCountdown()
	case tcell.KeyF5:
		app.Restart()
	case tcell.KeyF6:
		app.Backup()
	case tcell.KeyPgUp, tcell.KeyUp, tcell.KeyHome:
		p.follow = false
		return p.text.HandleEvent(ev)
	case tcell.KeyPgDn, tcell.KeyDown:
		return p.text.HandleEvent(ev)
	case tcell.KeyEnd:
		p.follow = true
	default:
		return p.Panel.HandleEvent(ev)
	}
	app.Update()
	return true
}

// update must be called from the application goroutine.
func (p *ConsolePanel) update() {
	st, err := p.app.GetStatus()
	notice, bad := p.app.GetNotice()

	switch {
	case err != nil:
		p.SetTitle("Unreachable")
		p.SetStatus(fmt.Sprintf("No data: %v", err))
		p.SetError()
	case st == nil:
		p.SetTitle("Loading")
		p.SetStatus("Loading ...")
		p.SetNormal()
	default:
		p.SetTitle(fmt.Sprintf("%s: %s", st.Name, st.World))
		status := util.State(st)
		if up := util.Uptime(st, time.Now()); up != "" {
			status += "  up " + up
		}
		if st.Countdown != "" {
			status += "  (" + st.Countdown + " countdown)"
		}
		if notice != "" {
			status += "  " + notice
		}
		p.SetStatus(status)
		switch {
		case bad:
			p.SetError()
		case st.Countdown != "":
			p.SetWarn()
		case st.Running:
			p.SetGood()
		case st.Exit != "":
			p.SetError()
		default:
			p.SetNormal()
		}
	}

	words := []string{"[F1] Help"}
	if st != nil {
		if st.Running {
			if st.Countdown != "" {
				words = append(words, "[F4] Cancel")
			} else {
				words = append(words, "[F3] Stop", "[F5] Restart")
			}
			words = append(words, "[F6] Backup")
		} else {
			words = append(words, "[F2] Start")
		}
	}
	words = append(words, "[^C] Quit")
	p.SetKeys(words)

	lines := p.app.GetLines()
	if len(lines) == 0 {
		lines = []string{""}
	}
	p.text.SetLines(lines)
	if p.follow {
		p.text.MakeVisible(0, len(lines)-1)
	}
	p.input.SetText("> " + string(p.line) + "_")
}
