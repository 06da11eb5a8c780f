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
	"bufio"
	"io"
	"io/ioutil"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	DefaultStopCommand = "stop"
	DefaultStopTime    = time.Minute
	DefaultJar         = "server.jar"
)

// DefaultJVMArgs are the options handed to java ahead of -jar.
var DefaultJVMArgs = []string{"-Djava.awt.headless=true", "-Xmx1024M", "-Xms1024M"}

// LaunchCommand builds the argument vector used to run the game server.
func LaunchCommand(java string, jvmArgs []string, jar string) []string {
	if java == "" {
		java = "java"
	}
	if jar == "" {
		jar = DefaultJar
	}
	if jvmArgs == nil {
		jvmArgs = DefaultJVMArgs
	}
	argv := append([]string{java}, jvmArgs...)
	return append(argv, "-jar", jar, "nogui")
}

// SupervisorConfig describes how the server process is launched and
// stopped.  Zero fields select the defaults.
type SupervisorConfig struct {
	Dir         string        // Working directory of the server
	Command     []string      // Argument vector, Command[0] is the program
	StopCommand string        // Console line that asks the server to exit
	StopTime    time.Duration // How long Stop waits before killing
}

// ProcessStatus is a snapshot of the supervised process.
type ProcessStatus struct {
	Running bool      `json:"running"`
	Pid     int       `json:"pid,omitempty"`
	Started time.Time `json:"started,omitempty"`
	Exit    string    `json:"exit,omitempty"`
}

// Supervisor owns the one game server process.  At most one process is
// live at any time.  Its merged stdout and stderr are read a line at a
// time into a Log, and mirrored to the operational logger.
type Supervisor struct {
	dir      string
	argv     []string
	stopCmd  string
	stopTime time.Duration
	log      *Log
	logger   *log.Logger

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	done    chan struct{}
	started time.Time
	reason  error // how the last process exited

	mx sync.Mutex
}

func (s *Supervisor) lock() {
	s.mx.Lock()
}

func (s *Supervisor) unlock() {
	s.mx.Unlock()
}

// live reports whether a process exists and has not exited.  Call with
// lock held.
func (s *Supervisor) live() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Supervisor) emit(line string) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return
	}
	s.log.Append(line)
	s.logger.Print("server> ", line)
}

func (s *Supervisor) doLog(r io.ReadCloser, cmd *exec.Cmd) {
	defer r.Close()
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if err == nil {
			s.emit(line)
			continue
		}
		// Whatever was buffered without a final newline.
		for _, l := range strings.Split(line, "\n") {
			s.emit(l)
		}
		if err != io.EOF && !isClosedPipe(err) {
			s.logger.Printf("Server output failed: %v", err)
			s.abandon(cmd)
		}
		return
	}
}

func isClosedPipe(err error) bool {
	return err == os.ErrClosed || strings.Contains(err.Error(), "file already closed")
}

// abandon kills a process whose output can no longer be observed, so that
// it stops counting as live.
func (s *Supervisor) abandon(cmd *exec.Cmd) {
	s.lock()
	defer s.unlock()
	if s.cmd == cmd && s.live() {
		s.logger.Printf("Killing unobservable server (pid %d)", cmd.Process.Pid)
		killProcess(cmd)
	}
}

func (s *Supervisor) doWait(cmd *exec.Cmd, done chan struct{}) {
	e := cmd.Wait()
	s.lock()
	if e != nil {
		s.logger.Printf("Server exited: %v", e)
	} else {
		s.logger.Printf("Server exited")
	}
	s.reason = e
	close(done)
	if s.cmd == cmd {
		s.cmd = nil
		s.stdin = nil
	}
	s.unlock()
}

// Start launches the server.  It returns ErrAlreadyRunning, without side
// effects, if a process is already live.  It does not wait for the
// server to become ready.
func (s *Supervisor) Start() error {
	s.lock()
	defer s.unlock()

	if s.live() {
		return ErrAlreadyRunning
	}
	s.log.Clear()

	cmd := exec.Command(s.argv[0], s.argv[1:]...)
	cmd.Dir = s.dir
	setProcAttr(cmd)

	stdin, e := cmd.StdinPipe()
	if e != nil {
		return ioErr("open server input", e)
	}
	r, w, e := os.Pipe()
	if e != nil {
		stdin.Close()
		return ioErr("open server output", e)
	}
	cmd.Stdout = w
	cmd.Stderr = w

	if e := cmd.Start(); e != nil {
		r.Close()
		w.Close()
		s.reason = e
		return ioErr("start server", e)
	}
	// The child holds its own copy; ours must go so that the reader
	// sees EOF when the child exits.
	w.Close()

	done := make(chan struct{})
	s.cmd = cmd
	s.stdin = stdin
	s.done = done
	s.started = time.Now()
	s.reason = nil
	s.logger.Printf("Server started (pid %d)", cmd.Process.Pid)

	go s.doLog(r, cmd)
	go s.doWait(cmd, done)
	return nil
}

// Stop asks the server to exit by writing the stop command, and waits up
// to the stop time for it to do so.  After that the process is killed.
// It returns ErrNotRunning if there was nothing to stop; otherwise the
// process is gone when Stop returns.
func (s *Supervisor) Stop() error {
	s.lock()
	if !s.live() {
		s.unlock()
		return ErrNotRunning
	}
	cmd := s.cmd
	done := s.done
	s.logger.Printf("Stopping server (pid %d)", cmd.Process.Pid)
	if _, e := io.WriteString(s.stdin, s.stopCmd+"\n"); e != nil {
		s.logger.Printf("Failed sending stop command: %v", e)
		killProcess(cmd)
	}
	s.unlock()

	timer := time.NewTimer(s.stopTime)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
	}

	s.logger.Printf("Graceful shutdown timed out")
	s.lock()
	killProcess(cmd)
	s.unlock()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		s.logger.Printf("Server (pid %d) did not die after kill", cmd.Process.Pid)
	}
	return nil
}

// SendCommand writes one console line to the server.
func (s *Supervisor) SendCommand(text string) error {
	s.lock()
	defer s.unlock()
	if !s.live() {
		return ErrNotRunning
	}
	if _, e := io.WriteString(s.stdin, text+"\n"); e != nil {
		return ioErr("send command", e)
	}
	return nil
}

// Running reports whether the server process is live.
func (s *Supervisor) Running() bool {
	s.lock()
	defer s.unlock()
	return s.live()
}

func (s *Supervisor) Status() ProcessStatus {
	s.lock()
	defer s.unlock()
	st := ProcessStatus{Running: s.live()}
	if st.Running && s.cmd != nil {
		st.Pid = s.cmd.Process.Pid
		st.Started = s.started
	}
	if s.reason != nil {
		st.Exit = s.reason.Error()
	}
	return st
}

// Log returns the buffer that receives the server's output.
func (s *Supervisor) Log() *Log {
	return s.log
}

// NewSupervisor returns a Supervisor that writes output to buf.  A nil
// buf gets a fresh Log, and a nil logger discards.
func NewSupervisor(cfg SupervisorConfig, buf *Log, logger *log.Logger) *Supervisor {
	s := &Supervisor{
		dir:      cfg.Dir,
		argv:     cfg.Command,
		stopCmd:  cfg.StopCommand,
		stopTime: cfg.StopTime,
		log:      buf,
		logger:   logger,
	}
	if len(s.argv) == 0 {
		s.argv = LaunchCommand("", nil, "")
	}
	if s.stopCmd == "" {
		s.stopCmd = DefaultStopCommand
	}
	if s.stopTime <= 0 {
		s.stopTime = DefaultStopTime
	}
	if s.log == nil {
		s.log = NewLog(0)
	}
	if s.logger == nil {
		s.logger = log.New(ioutil.Discard, "", 0)
	}
	return s
}
