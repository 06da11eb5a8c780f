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

// Command mcvisor is the client for mcvisord.  It uses subcommands.
//
// The flags are
//
//	-a <address>	- the daemon address, default is http://127.0.0.1:8321,
//			  or $MCVISOR_URL
//
// Subcommands are
//
//	status                  - show the server status
//	start                   - start the server
//	stop [-now]             - stop the server, normally with a countdown
//	cancel                  - cancel a countdown
//	restart                 - restart the server after a short warning
//	command <text>          - send a console command
//	log [-f]                - show (or follow) the server output
//	console                 - interactive console
//	worlds                  - list the worlds
//	world create|switch|delete|config <name>
//	backup                  - back up the active world
//	backups [<world>]       - list backups
//	restore <world> <file>  - restore a backup
//	config [<max> <on|off>] - show or change the active world settings
//	whitelist [add|remove <player>]
//	requests [approve|reject <player>]
//	kick|ban <player>, gamerule <rule> <value>
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/rodaine/table"
	"github.com/urfave/cli/v3"

	"github.com/gdamore/mcvisor/mcvisor/ui"
	"github.com/gdamore/mcvisor/mcvisor/util"
	"github.com/gdamore/mcvisor/rest"
)

var (
	labelStyle   = lipgloss.NewStyle().Bold(true).Width(10)
	goodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	badStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	defaultAddr  = "http://127.0.0.1:8321"
	errUsage     = errors.New("wrong number of arguments")
	callDeadline = time.Minute
)

func client(cmd *cli.Command) *rest.Client {
	return rest.NewClient(nil, cmd.String("addr"))
}

func call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, callDeadline)
}

// nargs checks the positional argument count.
func nargs(cmd *cli.Command, min, max int) error {
	if n := cmd.Args().Len(); n < min || n > max {
		return errors.Wrapf(errUsage, "usage: %s %s", cmd.FullName(), cmd.ArgsUsage)
	}
	return nil
}

func label(s string) string {
	return labelStyle.Render(s + ":")
}

func stateStyle(state string) lipgloss.Style {
	switch state {
	case "running":
		return goodStyle
	case "stopping":
		return warnStyle
	case "exited":
		return badStyle
	}
	return subtleStyle
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func showStatus(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel := call(ctx)
	defer cancel()
	st, e := client(cmd).Status(ctx)
	if e != nil {
		return e
	}
	state := util.State(st)
	fmt.Println(label("Name"), st.Name)
	fmt.Println(label("State"), stateStyle(state).Render(state))
	fmt.Println(label("World"), st.World)
	if st.Running {
		fmt.Println(label("Pid"), st.Pid)
		fmt.Println(label("Uptime"), util.Uptime(st, time.Now()))
	}
	if st.Countdown != "" {
		fmt.Println(label("Countdown"), warnStyle.Render(st.Countdown))
	}
	if st.Exit != "" {
		fmt.Println(label("Exit"), badStyle.Render(st.Exit))
	}
	fmt.Println(label("Since"), util.FormatDuration(time.Since(st.Created)))
	return nil
}

func simple(fn func(c *rest.Client, ctx context.Context) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		if e := nargs(cmd, 0, 0); e != nil {
			return e
		}
		ctx, cancel := call(ctx)
		defer cancel()
		return fn(client(cmd), ctx)
	}
}

func onePlayer(fn func(c *rest.Client, ctx context.Context, name string) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		if e := nargs(cmd, 1, 1); e != nil {
			return e
		}
		ctx, cancel := call(ctx)
		defer cancel()
		return fn(client(cmd), ctx, cmd.Args().First())
	}
}

func showLog(ctx context.Context, cmd *cli.Command) error {
	c := client(cmd)
	if !cmd.Bool("follow") {
		ctx, cancel := call(ctx)
		defer cancel()
		lines, e := c.Logs(ctx)
		if e != nil {
			return e
		}
		for _, line := range lines {
			fmt.Println(line)
		}
		return nil
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	e := c.StreamLogs(ctx, true, func(lines []string) {
		for _, line := range lines {
			fmt.Println(line)
		}
	})
	if ctx.Err() != nil {
		return nil
	}
	return e
}

func listWorlds(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel := call(ctx)
	defer cancel()
	info, e := client(cmd).Worlds(ctx)
	if e != nil {
		return e
	}
	t := table.New("World", "Active").WithWriter(os.Stdout)
	for _, w := range info.Worlds {
		active := ""
		if w == info.Current {
			active = "*"
		}
		t.AddRow(w, active)
	}
	t.Print()
	return nil
}

func showConfig(name string, max int, wl bool) {
	fmt.Println(label("World"), name)
	fmt.Println(label("Players"), max)
	fmt.Println(label("Whitelist"), onOff(wl))
}

func worldCmd(op string) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		if e := nargs(cmd, 1, 1); e != nil {
			return e
		}
		ctx, cancel := call(ctx)
		defer cancel()
		c := client(cmd)
		name := cmd.Args().First()
		switch op {
		case "delete":
			return c.DeleteWorld(ctx, name)
		case "create":
			cfg, e := c.CreateWorld(ctx, name)
			if e == nil {
				showConfig(name, cfg.MaxPlayers, cfg.WhitelistEnabled)
			}
			return e
		case "switch":
			cfg, e := c.SwitchWorld(ctx, name)
			if e == nil {
				showConfig(name, cfg.MaxPlayers, cfg.WhitelistEnabled)
			}
			return e
		}
		cfg, e := c.WorldConfig(ctx, name)
		if e == nil {
			showConfig(name, cfg.MaxPlayers, cfg.WhitelistEnabled)
		}
		return e
	}
}

func doBackup(ctx context.Context, cmd *cli.Command) error {
	if e := nargs(cmd, 0, 0); e != nil {
		return e
	}
	// Backups wait for the world to settle, and can be large.
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()
	info, e := client(cmd).Backup(ctx)
	if e != nil {
		return e
	}
	fmt.Println(goodStyle.Render("Backup complete"))
	fmt.Println(label("World"), info.World)
	fmt.Println(label("File"), info.Name)
	fmt.Println(label("Size"), util.FormatSize(info.Size))
	fmt.Println(label("BLAKE3"), subtleStyle.Render(info.Checksum))
	return nil
}

func listBackups(ctx context.Context, cmd *cli.Command) error {
	if e := nargs(cmd, 0, 1); e != nil {
		return e
	}
	ctx, cancel := call(ctx)
	defer cancel()
	c := client(cmd)
	world := cmd.Args().First()
	if world == "" {
		info, e := c.Worlds(ctx)
		if e != nil {
			return e
		}
		world = info.Current
	}
	infos, e := c.Backups(ctx, world)
	if e != nil {
		return e
	}
	t := table.New("File", "Taken", "Size").WithWriter(os.Stdout)
	for _, b := range infos {
		t.AddRow(b.Name, b.Time.Format("2006-01-02 15:04"), util.FormatSize(b.Size))
	}
	t.Print()
	return nil
}

func doRestore(ctx context.Context, cmd *cli.Command) error {
	if e := nargs(cmd, 2, 2); e != nil {
		return e
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()
	res, e := client(cmd).Restore(ctx, cmd.Args().Get(0), cmd.Args().Get(1))
	if e != nil {
		return e
	}
	fmt.Println(goodStyle.Render("Restored " + res.File + " as " + res.World))
	if res.Safety != "" {
		fmt.Println(label("Previous"), res.Safety)
	}
	return nil
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, errors.Errorf("bad whitelist setting %q", s)
}

func doConfig(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 0 && cmd.Args().Len() != 2 {
		return nargs(cmd, 2, 2)
	}
	ctx, cancel := call(ctx)
	defer cancel()
	c := client(cmd)
	if cmd.Args().Len() == 0 {
		cfg, e := c.Config(ctx)
		if e != nil {
			return e
		}
		fmt.Println(label("Players"), cfg.MaxPlayers)
		fmt.Println(label("Whitelist"), onOff(cfg.WhitelistEnabled))
		return nil
	}
	max, e := strconv.Atoi(cmd.Args().Get(0))
	if e != nil {
		return errors.Errorf("bad player count %q", cmd.Args().Get(0))
	}
	wl, e := parseSwitch(cmd.Args().Get(1))
	if e != nil {
		return e
	}
	if e := c.SetConfig(ctx, max, wl); e != nil {
		return e
	}
	fmt.Println(warnStyle.Render("Reconfiguring; the server restarts if it is running"))
	return nil
}

func showWhitelist(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel := call(ctx)
	defer cancel()
	list, e := client(cmd).Whitelist(ctx)
	if e != nil {
		return e
	}
	t := table.New("Player", "UUID").WithWriter(os.Stdout)
	for _, p := range list {
		t.AddRow(p.Name, p.UUID)
	}
	t.Print()
	return nil
}

func showRequests(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel := call(ctx)
	defer cancel()
	reqs, e := client(cmd).Requests(ctx)
	if e != nil {
		return e
	}
	t := table.New("Player", "UUID", "Seen").WithWriter(os.Stdout)
	for _, r := range reqs {
		t.AddRow(r.Name, r.UUID, r.Detected.Format(time.Stamp))
	}
	t.Print()
	return nil
}

func runConsole(ctx context.Context, cmd *cli.Command) error {
	return ui.NewApp(client(cmd), cmd.String("addr")).Run()
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcvisor",
		Usage: "control a Minecraft server managed by mcvisord",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Value:   defaultAddr,
				Usage:   "mcvisord address",
				Sources: cli.EnvVars("MCVISOR_URL"),
			},
		},
		DefaultCommand: "status",
		Commands: []*cli.Command{
			{Name: "status", Usage: "show the server status", Action: showStatus},
			{Name: "start", Usage: "start the server", Action: simple((*rest.Client).Start)},
			{
				Name:  "stop",
				Usage: "stop the server, warning players first",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "now", Usage: "skip the countdown"}},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Bool("now") {
						// Stopping without warning can take the full stop time.
						ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
						defer cancel()
						return client(cmd).Stop(ctx)
					}
					return simple((*rest.Client).StopGracefully)(ctx, cmd)
				},
			},
			{
				Name:  "cancel",
				Usage: "cancel a countdown",
				Action: simple(func(c *rest.Client, ctx context.Context) error {
					cancelled, e := c.CancelCountdown(ctx)
					if e == nil && !cancelled {
						fmt.Println(subtleStyle.Render("No countdown in progress"))
					}
					return e
				}),
			},
			{Name: "restart", Usage: "restart the server", Action: simple((*rest.Client).Restart)},
			{
				Name:      "command",
				Aliases:   []string{"cmd"},
				Usage:     "send a console command",
				ArgsUsage: "<text>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() == 0 {
						return nargs(cmd, 1, 1)
					}
					ctx, cancel := call(ctx)
					defer cancel()
					return client(cmd).Command(ctx, strings.Join(cmd.Args().Slice(), " "))
				},
			},
			{
				Name:   "log",
				Usage:  "show the server output",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "follow", Aliases: []string{"f"}, Usage: "keep following"}},
				Action: showLog,
			},
			{Name: "console", Usage: "interactive console", Action: runConsole},
			{Name: "worlds", Usage: "list the worlds", Action: listWorlds},
			{
				Name:  "world",
				Usage: "manage one world",
				Commands: []*cli.Command{
					{Name: "create", ArgsUsage: "<name>", Usage: "create an empty world", Action: worldCmd("create")},
					{Name: "switch", ArgsUsage: "<name>", Usage: "make a world active", Action: worldCmd("switch")},
					{Name: "delete", ArgsUsage: "<name>", Usage: "delete a world and its backups", Action: worldCmd("delete")},
					{Name: "config", ArgsUsage: "<name>", Usage: "show a world's settings", Action: worldCmd("config")},
				},
			},
			{Name: "backup", Usage: "back up the active world", Action: doBackup},
			{Name: "backups", ArgsUsage: "[<world>]", Usage: "list backups", Action: listBackups},
			{Name: "restore", ArgsUsage: "<world> <file>", Usage: "restore a backup", Action: doRestore},
			{Name: "config", ArgsUsage: "[<max-players> <on|off>]", Usage: "show or change the active world settings", Action: doConfig},
			{
				Name:   "whitelist",
				Usage:  "show or change the whitelist",
				Action: showWhitelist,
				Commands: []*cli.Command{
					{
						Name: "add", ArgsUsage: "<player>", Usage: "look up and admit a player",
						Action: onePlayer(func(c *rest.Client, ctx context.Context, name string) error {
							p, e := c.AddPlayer(ctx, name)
							if e == nil {
								fmt.Println(goodStyle.Render("Added "+p.Name), subtleStyle.Render(p.UUID))
							}
							return e
						}),
					},
					{Name: "remove", ArgsUsage: "<player>", Usage: "remove a player", Action: onePlayer((*rest.Client).RemovePlayer)},
				},
			},
			{
				Name:   "requests",
				Usage:  "show pending whitelist requests",
				Action: showRequests,
				Commands: []*cli.Command{
					{
						Name: "approve", ArgsUsage: "<player>", Usage: "whitelist a requesting player",
						Action: onePlayer(func(c *rest.Client, ctx context.Context, name string) error {
							p, e := c.Approve(ctx, name)
							if e == nil {
								fmt.Println(goodStyle.Render("Approved "+p.Name), subtleStyle.Render(p.UUID))
							}
							return e
						}),
					},
					{Name: "reject", ArgsUsage: "<player>", Usage: "dismiss a request", Action: onePlayer((*rest.Client).Reject)},
				},
			},
			{Name: "kick", ArgsUsage: "<player>", Usage: "kick a player", Action: onePlayer((*rest.Client).Kick)},
			{Name: "ban", ArgsUsage: "<player>", Usage: "ban a player", Action: onePlayer((*rest.Client).Ban)},
			{
				Name:      "gamerule",
				ArgsUsage: "<rule> <value>",
				Usage:     "set a game rule",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if e := nargs(cmd, 2, 2); e != nil {
						return e
					}
					ctx, cancel := call(ctx)
					defer cancel()
					return client(cmd).GameRule(ctx, cmd.Args().Get(0), cmd.Args().Get(1))
				},
			},
		},
	}
}

func main() {
	if e := newCommand().Run(context.Background(), os.Args); e != nil {
		fmt.Fprintln(os.Stderr, badStyle.Render("Failed:"), e)
		os.Exit(1)
	}
}
