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

package main

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/buildkite/shellwords"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/gdamore/mcvisor"
)

type config struct {
	addr         string
	dir          string
	serverDir    string
	name         string
	java         string
	jar          string
	jvmArgs      string
	stopTime     time.Duration
	backupEvery  time.Duration
	restartEvery time.Duration
	scanEvery    time.Duration
	maxConns     int
	lookupRate   int
	logfile      string
	start        bool
	debug        bool
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if d, e := time.ParseDuration(envString(key, "")); e == nil {
		return d
	}
	return def
}

func envInt(key string, def int) int {
	if n, e := strconv.Atoi(envString(key, "")); e == nil {
		return n
	}
	return def
}

func envBool(key string, def bool) bool {
	if b, e := strconv.ParseBool(envString(key, "")); e == nil {
		return b
	}
	return def
}

// loadConfig reads .env files (if present) into the environment, and
// then parses flags, whose defaults come from the environment.
func loadConfig(args []string, envFiles ...string) (*config, error) {
	for _, f := range envFiles {
		if e := godotenv.Load(f); e != nil && !os.IsNotExist(errors.Cause(e)) {
			return nil, errors.Wrapf(e, "loading %s", f)
		}
	}

	c := &config{}
	fs := flag.NewFlagSet("mcvisord", flag.ContinueOnError)
	fs.StringVar(&c.addr, "a", envString("MCVISOR_ADDR", "127.0.0.1:8321"), "listen address")
	fs.StringVar(&c.dir, "d", envString("MCVISOR_DIR", mcvisor.DefaultBaseDir()), "base directory")
	fs.StringVar(&c.serverDir, "server", envString("MCVISOR_SERVER_DIR", ""), "server directory (default <base>/server/current)")
	fs.StringVar(&c.name, "n", envString("MCVISOR_NAME", "mcvisord"), "manager name")
	fs.StringVar(&c.java, "java", envString("MCVISOR_JAVA", "java"), "java binary")
	fs.StringVar(&c.jar, "jar", envString("MCVISOR_JAR", mcvisor.DefaultJar), "server jar, relative to the server directory")
	fs.StringVar(&c.jvmArgs, "jvm-args", envString("MCVISOR_JAVA_ARGS", strings.Join(mcvisor.DefaultJVMArgs, " ")), "JVM options")
	fs.DurationVar(&c.stopTime, "stop-time", envDuration("MCVISOR_STOP_TIME", mcvisor.DefaultStopTime), "time allowed for a clean stop")
	fs.DurationVar(&c.backupEvery, "backup-every", envDuration("MCVISOR_BACKUP_EVERY", 30*time.Minute), "backup interval, 0 disables")
	fs.DurationVar(&c.restartEvery, "restart-every", envDuration("MCVISOR_RESTART_EVERY", 150*time.Minute), "restart interval, 0 disables")
	fs.DurationVar(&c.scanEvery, "scan-every", envDuration("MCVISOR_SCAN_EVERY", 10*time.Second), "whitelist request scan interval")
	fs.IntVar(&c.maxConns, "max-conns", envInt("MCVISOR_MAX_CONNS", 64), "maximum concurrent connections")
	fs.IntVar(&c.lookupRate, "lookup-rate", envInt("MCVISOR_LOOKUP_RATE", 60), "player lookups per minute")
	fs.StringVar(&c.logfile, "logfile", envString("MCVISOR_LOGFILE", ""), "also log to this file")
	fs.BoolVar(&c.start, "s", envBool("MCVISOR_START", false), "start the server at once")
	fs.BoolVar(&c.debug, "debug", envBool("MCVISOR_DEBUG", false), "verbose logging")
	if e := fs.Parse(args); e != nil {
		return nil, e
	}
	if c.maxConns < 1 {
		return nil, errors.Errorf("bad connection limit %d", c.maxConns)
	}
	return c, nil
}

// command returns the server launch command.
func (c *config) command() ([]string, error) {
	args, e := shellwords.SplitPosix(c.jvmArgs)
	if e != nil {
		return nil, errors.Wrap(e, "parsing JVM options")
	}
	return mcvisor.LaunchCommand(c.java, args, c.jar), nil
}
