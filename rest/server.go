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

package rest

import (
	"context"
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/gdamore/mcvisor"
)

// DefaultPollInterval is how often each log stream checks for new lines.
const DefaultPollInterval = 500 * time.Millisecond

// MaxLogWait caps how long a GET /logs request may hold for new lines.
const MaxLogWait = time.Minute

// Handler wraps a Manager, adding http.Handler functionality.
type Handler struct {
	m        *mcvisor.Manager
	r        *mux.Router
	logger   *log.Logger
	poll     time.Duration
	upgrader websocket.Upgrader
}

func (h *Handler) internalError(w http.ResponseWriter, e error) {
	http.Error(w, e.Error(), http.StatusInternalServerError)
}

func (h *Handler) writeJsonCode(w http.ResponseWriter, code int, v interface{}) {
	if b, e := json.Marshal(v); e != nil {
		h.internalError(w, e)
	} else {
		w.Header().Set("Content-Type", mimeJson)
		w.WriteHeader(code)
		w.Write(b)
	}
}

func (h *Handler) writeJson(w http.ResponseWriter, v interface{}) {
	h.writeJsonCode(w, http.StatusOK, v)
}

func (h *Handler) writeError(w http.ResponseWriter, e *Error) {
	h.writeJsonCode(w, e.Code, e)
}

// fail renders an error from the manager.
func (h *Handler) fail(w http.ResponseWriter, e error) {
	h.writeError(w, errorOf(e))
}

// readJson decodes the request body into v, answering 400 itself on
// failure.
func (h *Handler) readJson(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	b, e := ioutil.ReadAll(io.LimitReader(r.Body, 1<<20))
	if e == nil {
		e = json.Unmarshal(b, v)
	}
	if e != nil {
		h.writeError(w, &Error{http.StatusBadRequest, "BadRequest", e.Error()})
		return false
	}
	return true
}

func (h *Handler) reply(w http.ResponseWriter, e error) {
	if e != nil {
		h.fail(w, e)
	} else {
		h.writeJson(w, ok)
	}
}

// background runs fn after answering 202.  Failures can only be logged.
func (h *Handler) background(w http.ResponseWriter, action string, fn func() error) {
	go func() {
		if e := fn(); e != nil {
			h.logger.Printf("%s failed: %v", action, e)
		}
	}()
	h.writeJsonCode(w, http.StatusAccepted, &Accepted{Action: action})
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJson(w, h.m.Status())
}

func (h *Handler) getLogs(w http.ResponseWriter, r *http.Request) {
	var since int64
	if s := r.URL.Query().Get("since"); s != "" {
		var e error
		if since, e = strconv.ParseInt(s, 10, 64); e != nil {
			h.writeError(w, &Error{http.StatusBadRequest, "BadRequest", "Bad since parameter"})
			return
		}
	}
	var wait time.Duration
	if s := r.URL.Query().Get("wait"); s != "" {
		var e error
		if wait, e = time.ParseDuration(s); e != nil || wait < 0 {
			h.writeError(w, &Error{http.StatusBadRequest, "BadRequest", "Bad wait parameter"})
			return
		}
		if wait > MaxLogWait {
			wait = MaxLogWait
		}
	}
	if wait > 0 && since != 0 {
		h.m.Log().Watch(since, wait)
	}
	recs, id := h.m.Log().Since(since)
	info := &LogsInfo{Id: id, Lines: make([]string, 0, len(recs))}
	for _, rec := range recs {
		info.Lines = append(info.Lines, rec.Text)
	}
	h.writeJson(w, info)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	h.reply(w, h.m.Start())
}

func (h *Handler) stop(w http.ResponseWriter, r *http.Request) {
	h.reply(w, h.m.Stop())
}

func (h *Handler) stopGracefully(w http.ResponseWriter, r *http.Request) {
	if e := h.m.StopGracefully(); e != nil {
		h.fail(w, e)
		return
	}
	h.writeJsonCode(w, http.StatusAccepted, &Accepted{Action: mcvisor.ShutdownScript.Name})
}

func (h *Handler) cancelCountdown(w http.ResponseWriter, r *http.Request) {
	h.writeJson(w, &CancelResult{Cancelled: h.m.CancelCountdown()})
}

func (h *Handler) restart(w http.ResponseWriter, r *http.Request) {
	if e := h.m.Restart(); e != nil {
		h.fail(w, e)
		return
	}
	h.writeJsonCode(w, http.StatusAccepted, &Accepted{Action: mcvisor.QuickRestartScript.Name})
}

func (h *Handler) command(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if h.readJson(w, r, &req) {
		h.reply(w, h.m.Command(req.Command))
	}
}

func (h *Handler) kick(w http.ResponseWriter, r *http.Request) {
	h.reply(w, h.m.Kick(mux.Vars(r)["player"]))
}

func (h *Handler) ban(w http.ResponseWriter, r *http.Request) {
	h.reply(w, h.m.Ban(mux.Vars(r)["player"]))
}

func (h *Handler) gameRule(w http.ResponseWriter, r *http.Request) {
	var req GameRuleRequest
	if h.readJson(w, r, &req) {
		h.reply(w, h.m.GameRule(req.Rule, req.Value))
	}
}

func (h *Handler) listWorlds(w http.ResponseWriter, r *http.Request) {
	names, cur, e := h.m.Worlds()
	if e != nil {
		h.fail(w, e)
		return
	}
	h.writeJson(w, &WorldsInfo{Worlds: names, Current: cur})
}

func (h *Handler) createWorld(w http.ResponseWriter, r *http.Request) {
	var req NameRequest
	if !h.readJson(w, r, &req) {
		return
	}
	if cfg, e := h.m.CreateWorld(req.Name); e != nil {
		h.fail(w, e)
	} else {
		h.writeJsonCode(w, http.StatusCreated, cfg)
	}
}

func (h *Handler) switchWorld(w http.ResponseWriter, r *http.Request) {
	if cfg, e := h.m.SwitchWorld(mux.Vars(r)["world"]); e != nil {
		h.fail(w, e)
	} else {
		h.writeJson(w, cfg)
	}
}

func (h *Handler) deleteWorld(w http.ResponseWriter, r *http.Request) {
	h.reply(w, h.m.DeleteWorld(mux.Vars(r)["world"]))
}

func (h *Handler) worldConfig(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["world"]
	if !mcvisor.ValidName(name) {
		h.fail(w, mcvisor.ErrBadWorldName)
		return
	}
	h.writeJson(w, h.m.WorldConfig(name))
}

func (h *Handler) listBackups(w http.ResponseWriter, r *http.Request) {
	if infos, e := h.m.Backups(mux.Vars(r)["world"]); e != nil {
		h.fail(w, e)
	} else {
		h.writeJson(w, infos)
	}
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	var req RestoreRequest
	if !h.readJson(w, r, &req) {
		return
	}
	world := mux.Vars(r)["world"]
	if safety, e := h.m.Restore(world, req.File); e != nil {
		h.fail(w, e)
	} else {
		h.writeJson(w, &RestoreResult{World: world, File: req.File, Safety: safety})
	}
}

func (h *Handler) backup(w http.ResponseWriter, r *http.Request) {
	if info, e := h.m.Backup(); e != nil {
		h.fail(w, e)
	} else {
		h.writeJsonCode(w, http.StatusCreated, info)
	}
}

func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	h.writeJson(w, h.m.WorldConfig(h.m.ActiveWorld()))
}

func (h *Handler) putConfig(w http.ResponseWriter, r *http.Request) {
	var req ConfigRequest
	if !h.readJson(w, r, &req) {
		return
	}
	if req.MaxPlayers < 1 {
		h.fail(w, mcvisor.ErrBadValue)
		return
	}
	h.background(w, "reconfigure", func() error {
		_, e := h.m.Reconfigure(req.MaxPlayers, req.WhitelistEnabled)
		return e
	})
}

func (h *Handler) getWhitelist(w http.ResponseWriter, r *http.Request) {
	h.writeJson(w, h.m.Whitelist())
}

func (h *Handler) addPlayer(w http.ResponseWriter, r *http.Request) {
	var req NameRequest
	if !h.readJson(w, r, &req) {
		return
	}
	if p, e := h.m.AddPlayer(r.Context(), req.Name); e != nil {
		h.fail(w, e)
	} else {
		h.writeJsonCode(w, http.StatusCreated, p)
	}
}

func (h *Handler) removePlayer(w http.ResponseWriter, r *http.Request) {
	h.reply(w, h.m.RemovePlayer(mux.Vars(r)["player"]))
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request) {
	h.writeJson(w, h.m.Requests())
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	if p, e := h.m.Approve(mux.Vars(r)["player"]); e != nil {
		h.fail(w, e)
	} else {
		h.writeJson(w, p)
	}
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.reply(w, h.m.Reject(mux.Vars(r)["player"]))
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.r.ServeHTTP(w, req)
}

// SetPollInterval changes how often log streams look for new lines.
func (h *Handler) SetPollInterval(d time.Duration) {
	if d > 0 {
		h.poll = d
	}
}

// SetLogger sets where failures of background actions are reported.
func (h *Handler) SetLogger(l *log.Logger) {
	h.logger = l
}

func NewHandler(m *mcvisor.Manager) *Handler {
	r := mux.NewRouter()
	h := &Handler{m: m, r: r, logger: m.Logger(), poll: DefaultPollInterval}
	r.HandleFunc("/status", h.getStatus).Methods("GET")
	r.HandleFunc("/logs", h.getLogs).Methods("GET")
	r.HandleFunc("/logs/stream", h.streamLogs).Methods("GET")
	r.HandleFunc("/logs/ws", h.socketLogs).Methods("GET")
	r.HandleFunc("/start", h.start).Methods("POST")
	r.HandleFunc("/stop", h.stop).Methods("POST")
	r.HandleFunc("/stop/graceful", h.stopGracefully).Methods("POST")
	r.HandleFunc("/stop/cancel", h.cancelCountdown).Methods("POST")
	r.HandleFunc("/restart", h.restart).Methods("POST")
	r.HandleFunc("/command", h.command).Methods("POST")
	r.HandleFunc("/gamerule", h.gameRule).Methods("POST")
	r.HandleFunc("/players/{player}/kick", h.kick).Methods("POST")
	r.HandleFunc("/players/{player}/ban", h.ban).Methods("POST")

	r.HandleFunc("/worlds", h.listWorlds).Methods("GET")
	r.HandleFunc("/worlds", h.createWorld).Methods("POST")
	r.HandleFunc("/worlds/{world}", h.deleteWorld).Methods("DELETE")
	r.HandleFunc("/worlds/{world}/switch", h.switchWorld).Methods("POST")
	r.HandleFunc("/worlds/{world}/config", h.worldConfig).Methods("GET")
	r.HandleFunc("/worlds/{world}/backups", h.listBackups).Methods("GET")
	r.HandleFunc("/worlds/{world}/restore", h.restore).Methods("POST")
	r.HandleFunc("/backup", h.backup).Methods("POST")
	r.HandleFunc("/config", h.getConfig).Methods("GET")
	r.HandleFunc("/config", h.putConfig).Methods("PUT")

	r.HandleFunc("/whitelist", h.getWhitelist).Methods("GET")
	r.HandleFunc("/whitelist", h.addPlayer).Methods("POST")
	r.HandleFunc("/whitelist/{player}", h.removePlayer).Methods("DELETE")
	r.HandleFunc("/requests", h.listRequests).Methods("GET")
	r.HandleFunc("/requests/{player}/approve", h.approve).Methods("POST")
	r.HandleFunc("/requests/{player}/reject", h.reject).Methods("POST")
	return h
}

// Shutdown is a convenience for daemons: it stops accepting requests on
// srv and then stops the managed server.
func Shutdown(ctx context.Context, srv *http.Server, m *mcvisor.Manager) error {
	e := srv.Shutdown(ctx)
	m.Shutdown()
	return e
}
