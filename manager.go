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
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const DefaultLookupTimeout = 5 * time.Second

// Options configures a Manager.  Zero values select defaults.
type Options struct {
	Name          string           // Shown in logs
	BaseDir       string           // See Layout
	ServerDir     string           // See Layout
	Command       []string         // Server launch command
	StopTime      time.Duration    // Bound on a clean stop
	BackupSettle  time.Duration    // Pause between flush and archive
	Identity      IdentityProvider // Resolves whitelist names
	LookupTimeout time.Duration    // Bound on one identity lookup
}

// Status is a summary of the manager suitable for display.
type Status struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	Pid       int       `json:"pid,omitempty"`
	Started   time.Time `json:"started,omitempty"`
	Exit      string    `json:"exit,omitempty"`
	World     string    `json:"world"`
	Countdown string    `json:"countdown,omitempty"`
	Created   time.Time `json:"created"`
}

// Manager ties the supervised server to its worlds, configuration,
// backups, and whitelist.  Operations that change what is on disk, or
// whether the server runs, are serialized by a single lock so that, for
// example, a world switch cannot interleave with a start.
type Manager struct {
	name       string
	layout     Layout
	logger     *log.Logger
	mlog       *MultiLogger
	log        *Log
	proc       *Supervisor
	files      *ConfigSync
	worlds     *WorldStore
	backups    *BackupEngine
	requests   *RequestTracker
	countdown  *Countdown
	identity   IdentityProvider
	lookupTime time.Duration
	createTime time.Time
	closing    bool
	opmx       sync.Mutex
}

func (m *Manager) lock() {
	m.opmx.Lock()
}

func (m *Manager) unlock() {
	m.opmx.Unlock()
}

// Name returns the name the manager was allocated with.
func (m *Manager) Name() string {
	return m.name
}

func (m *Manager) Layout() Layout {
	return m.layout
}

// SetLogger is used to establish a logger.  It replaces the one set
// previously, leaving any added with AddLogger alone.
func (m *Manager) SetLogger(l *log.Logger) {
	if m.logger != nil {
		m.mlog.DelLogger(m.logger)
	}
	m.logger = l
	m.mlog.AddLogger(l)
}

// AddLogger adds another destination for operational messages.
func (m *Manager) AddLogger(l *log.Logger) {
	m.mlog.AddLogger(l)
}

// SetLogWriter is a shorthand for SetLogger with an unadorned logger.
func (m *Manager) SetLogWriter(w io.Writer) {
	m.SetLogger(log.New(w, "", 0))
}

// Logger returns the logger components write operational messages to.
func (m *Manager) Logger() *log.Logger {
	return m.mlog.Logger()
}

func (m *Manager) logf(format string, v ...interface{}) {
	m.mlog.Logger().Printf(format, v...)
}

// Log returns the buffer of recent server output.
func (m *Manager) Log() *Log {
	return m.log
}

// Logs returns a snapshot of recent server output, oldest first.
func (m *Manager) Logs() []string {
	return m.log.Lines()
}

// Start launches the server.
func (m *Manager) Start() error {
	m.lock()
	defer m.unlock()
	if m.closing {
		return ErrShutdown
	}
	if e := os.MkdirAll(m.layout.Server, 0755); e != nil {
		return ioErr("create server directory", e)
	}
	if e := m.proc.Start(); e != nil {
		return e
	}
	m.requests.Forget()
	return nil
}

// Stop stops the server immediately, cancelling any countdown that has
// not yet reached its stop.
func (m *Manager) Stop() error {
	m.countdown.Cancel()
	return m.stop()
}

func (m *Manager) stop() error {
	m.lock()
	defer m.unlock()
	return m.proc.Stop()
}

// Running reports whether the server process is live.
func (m *Manager) Running() bool {
	return m.proc.Running()
}

// SendCommand writes a line to the server console.
func (m *Manager) SendCommand(text string) error {
	return m.proc.SendCommand(text)
}

// Command is SendCommand for operator input: surrounding space is
// removed and blank input is refused.
func (m *Manager) Command(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrBadCommand
	}
	return m.proc.SendCommand(text)
}

func (m *Manager) Kick(player string) error {
	if !ValidPlayerName(player) {
		return ErrBadCommand
	}
	return m.proc.SendCommand("kick " + player)
}

func (m *Manager) Ban(player string) error {
	if !ValidPlayerName(player) {
		return ErrBadCommand
	}
	return m.proc.SendCommand("ban " + player)
}

func (m *Manager) GameRule(rule, value string) error {
	rule = strings.TrimSpace(rule)
	value = strings.TrimSpace(value)
	if rule == "" || value == "" || strings.ContainsAny(rule+value, " \t\r\n") {
		return ErrBadCommand
	}
	return m.proc.SendCommand("gamerule " + rule + " " + value)
}

// countdownServer gives the countdown lifecycle control that goes
// through the manager lock, without the cancellation Stop performs.
type countdownServer struct {
	m *Manager
}

func (c countdownServer) Running() bool               { return c.m.Running() }
func (c countdownServer) SendCommand(text string) error { return c.m.SendCommand(text) }
func (c countdownServer) Start() error                 { return c.m.Start() }
func (c countdownServer) Stop() error                  { return c.m.stop() }

// StopGracefully announces a five minute countdown and then stops.  It
// returns at once.
func (m *Manager) StopGracefully() error {
	return m.countdown.Begin(ShutdownScript)
}

// Restart announces briefly, then stops and starts the server.  It
// returns at once.
func (m *Manager) Restart() error {
	return m.countdown.Begin(QuickRestartScript)
}

// AutoRestart runs the periodic restart countdown in the background.
func (m *Manager) AutoRestart() error {
	return m.countdown.Begin(RestartScript)
}

// RunScript runs a countdown script in the background.
func (m *Manager) RunScript(s Script) error {
	return m.countdown.Begin(s)
}

// CancelCountdown cancels the countdown in flight.
func (m *Manager) CancelCountdown() bool {
	return m.countdown.Cancel()
}

// Countdown returns the countdown runner.
func (m *Manager) Countdown() *Countdown {
	return m.countdown
}

func (m *Manager) Status() Status {
	ps := m.proc.Status()
	st := Status{
		Name:    m.name,
		Running: ps.Running,
		Pid:     ps.Pid,
		Started: ps.Started,
		Exit:    ps.Exit,
		World:   m.worlds.Active(),
		Created: m.createTime,
	}
	st.Countdown, _ = m.countdown.Active()
	return st
}

// Worlds returns the archived world names and the active world.
func (m *Manager) Worlds() ([]string, string, error) {
	names, e := m.worlds.List()
	return names, m.worlds.Active(), e
}

func (m *Manager) ActiveWorld() string {
	return m.worlds.Active()
}

func (m *Manager) SwitchWorld(name string) (WorldConfig, error) {
	m.lock()
	defer m.unlock()
	return m.worlds.Switch(name)
}

func (m *Manager) CreateWorld(name string) (WorldConfig, error) {
	m.lock()
	defer m.unlock()
	return m.worlds.Create(name)
}

func (m *Manager) DeleteWorld(name string) error {
	m.lock()
	defer m.unlock()
	return m.worlds.Delete(name)
}

// WorldConfig returns the stored configuration of a world.
func (m *Manager) WorldConfig(name string) WorldConfig {
	return m.worlds.Config(name)
}

// Reconfigure changes the player limit and whitelist switch of the
// active world.  The live whitelist is kept.  A running server is
// stopped for the change and started again afterwards.
func (m *Manager) Reconfigure(maxPlayers int, whitelist bool) (WorldConfig, error) {
	if maxPlayers < 1 {
		return WorldConfig{}, errors.Wrapf(ErrBadValue, "player limit %d", maxPlayers)
	}
	m.countdown.Cancel()
	m.lock()
	defer m.unlock()

	name := m.worlds.Active()
	cfg := m.worlds.Config(name)
	cfg.MaxPlayers = maxPlayers
	cfg.WhitelistEnabled = whitelist
	cfg.WhitelistPlayers = m.files.Whitelist()
	if e := m.worlds.SaveConfig(name, cfg); e != nil {
		return cfg, e
	}
	restart := m.proc.Running()
	if restart {
		if e := m.proc.Stop(); e != nil && !errors.Is(e, ErrNotRunning) {
			return cfg, e
		}
	}
	if e := m.files.Apply(cfg); e != nil {
		return cfg, e
	}
	m.logf("Reconfigured world %s: max players %d, whitelist %v",
		name, maxPlayers, whitelist)
	if restart && !m.closing {
		if e := m.proc.Start(); e != nil {
			return cfg, e
		}
	}
	return cfg, nil
}

// Backup snapshots the active world.
func (m *Manager) Backup() (BackupInfo, error) {
	m.lock()
	defer m.unlock()
	return m.backups.Backup()
}

// Backups lists the snapshots of a world, newest first.
func (m *Manager) Backups(world string) ([]BackupInfo, error) {
	return m.backups.List(world)
}

// Restore installs a snapshot as the active save data of world.  It
// returns where the previous save data was moved, if there was any.
func (m *Manager) Restore(world, file string) (string, error) {
	m.lock()
	defer m.unlock()
	return m.backups.Restore(world, file)
}

// Whitelist returns the live whitelist.
func (m *Manager) Whitelist() []Player {
	return m.files.Whitelist()
}

// recordWhitelist stores the live configuration as the active world's.
// Call with lock held.
func (m *Manager) recordWhitelist() error {
	return m.worlds.SaveConfig(m.worlds.Active(), m.files.Capture())
}

// AddPlayer looks a player up by name and whitelists them.  The lookup
// happens before the operation lock is taken.
func (m *Manager) AddPlayer(ctx context.Context, name string) (Player, error) {
	ctx, cancel := context.WithTimeout(ctx, m.lookupTime)
	p, e := m.files.Resolve(ctx, m.identity, name)
	cancel()
	if e != nil {
		return p, e
	}
	m.lock()
	defer m.unlock()
	if e := m.files.Admit(p); e != nil {
		return p, e
	}
	m.logf("Whitelisted %s (%s)", p.Name, p.UUID)
	return p, m.recordWhitelist()
}

// RemovePlayer removes a player from the whitelist.
func (m *Manager) RemovePlayer(name string) error {
	m.lock()
	defer m.unlock()
	if e := m.files.RemovePlayer(name); e != nil {
		return e
	}
	return m.recordWhitelist()
}

// ScanRequests looks for new whitelist rejections in the server output.
// Players already whitelisted are not reported.
func (m *Manager) ScanRequests() []Request {
	var added []Request
	for _, r := range m.requests.Scan(m.log.Tail(IdentityWindow)) {
		if m.files.Listed(r.Name) {
			m.requests.Reject(r.Name)
			continue
		}
		m.logf("Whitelist request from %s (%s)", r.Name, r.UUID)
		added = append(added, r)
	}
	return added
}

// Requests returns the pending whitelist requests after a fresh scan.
func (m *Manager) Requests() []Request {
	m.ScanRequests()
	return m.requests.Pending()
}

// Approve whitelists a player who asked to join, using the identifier
// the server reported for them.
func (m *Manager) Approve(name string) (Player, error) {
	r, e := m.requests.Take(name)
	if e != nil {
		return Player{}, e
	}
	m.lock()
	defer m.unlock()
	p := Player{UUID: r.UUID, Name: r.Name}
	if e := m.files.Admit(p); e != nil {
		if !errors.Is(e, ErrPlayerListed) {
			m.requests.Put(r)
		}
		return p, e
	}
	m.logf("Approved whitelist request from %s", r.Name)
	return p, m.recordWhitelist()
}

// Reject discards a pending whitelist request.
func (m *Manager) Reject(name string) error {
	return m.requests.Reject(name)
}

// Shutdown cancels any countdown and stops the server.
func (m *Manager) Shutdown() {
	m.lock()
	m.closing = true
	m.unlock()
	m.countdown.Cancel()
	if e := m.stop(); e == nil {
		m.logf("*** Server stopped for shutdown: %s ***", m.name)
	}
	m.countdown.Wait()
}

func NewManager(opts Options) *Manager {
	name := opts.Name
	if name == "" {
		name = "mcvisor"
	}
	m := &Manager{
		name:       name,
		layout:     NewLayout(opts.BaseDir, opts.ServerDir),
		identity:   opts.Identity,
		lookupTime: opts.LookupTimeout,
		createTime: time.Now(),
	}
	if m.lookupTime <= 0 {
		m.lookupTime = DefaultLookupTimeout
	}
	m.mlog = NewMultiLogger()
	logger := m.mlog.Logger()
	m.log = NewLog(MaxLogRecords)
	m.proc = NewSupervisor(SupervisorConfig{
		Dir:      m.layout.Server,
		Command:  opts.Command,
		StopTime: opts.StopTime,
	}, m.log, logger)
	m.files = NewConfigSync(m.layout, m.proc)
	m.worlds = NewWorldStore(m.layout, m.proc, m.files, logger)
	m.backups = NewBackupEngine(m.layout, m.proc, m.worlds, logger)
	if opts.BackupSettle > 0 {
		m.backups.SetSettle(opts.BackupSettle)
	}
	m.requests = NewRequestTracker()
	m.countdown = NewCountdown(countdownServer{m}, logger)
	return m
}
