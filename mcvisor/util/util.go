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

// Package util is used for internal implementation bits in the CLI/UI.
package util

import (
	"fmt"
	"time"

	"github.com/gdamore/mcvisor"
)

// State names the server state the way the CLI and console show it.
func State(s *mcvisor.Status) string {
	switch {
	case s == nil:
		return "unknown"
	case s.Countdown != "":
		return "stopping"
	case s.Running:
		return "running"
	case s.Exit != "":
		return "exited"
	}
	return "stopped"
}

func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int((d % time.Minute) / time.Second)
	min := int((d % time.Hour) / time.Minute)
	hour := int(d / time.Hour)

	return fmt.Sprintf("%d:%02d:%02d", hour, min, sec)
}

// Uptime is the time since the server started, or empty when stopped.
func Uptime(s *mcvisor.Status, now time.Time) string {
	if s == nil || !s.Running || s.Started.IsZero() {
		return ""
	}
	return FormatDuration(now.Sub(s.Started))
}

// FormatSize renders a byte count in binary units.
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
