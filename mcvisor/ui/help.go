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
	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"
)

type HelpPanel struct {
	text *views.TextArea
	Panel
}

func (h *HelpPanel) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEsc, tcell.KeyF1:
			h.app.ShowConsole()
			return true
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'Q', 'q':
				h.app.ShowConsole()
				return true
			}
		}
	}
	return h.Panel.HandleEvent(ev)
}

func NewHelpPanel(app *App) *HelpPanel {
	h := &HelpPanel{}
	h.Panel.Init(app)
	h.SetTitle("Help")
	h.SetKeys([]string{"[ESC] Console"})

	h.text = views.NewTextArea()
	h.text.EnableCursor(false)
	h.text.SetLines([]string{
		"Type a server console command and press <ENTER> to send it.",
		"",
		"  <ENTER>          : send the command line",
		"  <ESC>            : clear the command line",
		"  <PGUP>, <PGDN>   : scroll the server log",
		"  <F1>             : show this help",
		"  <F2>             : start the server",
		"  <F3>             : stop the server with a countdown",
		"  <F4>             : cancel a countdown",
		"  <F5>             : restart the server",
		"  <F6>             : back up the active world",
		"  <CTRL-L>         : refresh the screen",
		"  <CTRL-C>         : quit",
		"",
		"This program is distributed under the Apache 2.0 License",
		"Copyright 2026 The Govisor Authors",
	})
	h.SetContent(h.text)
	return h
}
