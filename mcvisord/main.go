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

// Command mcvisord supervises a Minecraft server and serves the REST
// interface used by the mcvisor client.
//
// Settings come from flags, whose defaults come from the environment.
// A .env file in the working directory is loaded first, without
// overriding variables already set.  Run with -h for the list.
package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"golang.org/x/net/netutil"

	"github.com/gdamore/mcvisor"
	"github.com/gdamore/mcvisor/mojang"
	"github.com/gdamore/mcvisor/rest"
)

// quiet drops the errors a periodic job expects when there is nothing
// for it to do.
func quiet(e error) error {
	if errors.Is(e, mcvisor.ErrNotRunning) || errors.Is(e, mcvisor.ErrNoActiveSave) {
		return nil
	}
	return e
}

func main() {
	console := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		Prefix:          "mcvisord",
	})

	cfg, e := loadConfig(os.Args[1:], ".env")
	if e != nil {
		console.Fatal("bad configuration", "err", e)
	}
	if cfg.debug {
		console.SetLevel(charmlog.DebugLevel)
	}
	argv, e := cfg.command()
	if e != nil {
		console.Fatal("bad launch command", "err", e)
	}

	m := mcvisor.NewManager(mcvisor.Options{
		Name:      cfg.name,
		BaseDir:   cfg.dir,
		ServerDir: cfg.serverDir,
		Command:   argv,
		StopTime:  cfg.stopTime,
		Identity:  mojang.NewClient(nil, cfg.lookupRate),
	})
	m.SetLogger(console.StandardLog(charmlog.StandardLogOptions{
		ForceLevel: charmlog.InfoLevel,
	}))
	if cfg.logfile != "" {
		f, e := os.OpenFile(cfg.logfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if e != nil {
			console.Fatal("cannot open log file", "file", cfg.logfile, "err", e)
		}
		defer f.Close()
		m.AddLogger(log.New(f, "", log.LstdFlags))
	}
	lay := m.Layout()
	console.Info("starting", "name", cfg.name, "base", lay.Base, "server", lay.Server)
	console.Debug("launch command", "argv", argv)

	jobs := mcvisor.NewJobs(m.Logger())
	jobs.Add("backup", cfg.backupEvery, func() error {
		_, e := m.Backup()
		return quiet(e)
	})
	jobs.Add("restart", cfg.restartEvery, func() error {
		return quiet(m.AutoRestart())
	})
	jobs.Add("requests", cfg.scanEvery, func() error {
		for _, r := range m.ScanRequests() {
			console.Debug("whitelist request", "player", r.Name, "uuid", r.UUID)
		}
		return nil
	})
	jobs.Start()

	if cfg.start {
		if e := m.Start(); e != nil {
			console.Error("cannot start server", "err", e)
		}
	}

	ln, e := net.Listen("tcp", cfg.addr)
	if e != nil {
		console.Fatal("cannot listen", "addr", cfg.addr, "err", e)
	}
	ln = netutil.LimitListener(ln, cfg.maxConns)
	srv := &http.Server{
		Handler:           rest.NewHandler(m),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if e := srv.Serve(ln); e != nil && e != http.ErrServerClosed {
			console.Fatal("serve failed", "err", e)
		}
	}()
	console.Info("listening", "addr", cfg.addr, "max-conns", cfg.maxConns)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	sig := <-sigs
	console.Info("shutting down", "signal", sig.String())

	jobs.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.stopTime+30*time.Second)
	defer cancel()
	if e := rest.Shutdown(ctx, srv, m); e != nil {
		console.Warn("unclean shutdown", "err", e)
	}
}
