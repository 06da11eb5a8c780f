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
	"net/http"

	"github.com/gdamore/mcvisor"
)

const (
	mimeJson = "application/json; charset=UTF-8"
	mimeSSE  = "text/event-stream"
)

var ok struct{}

type WorldsInfo struct {
	Worlds  []string `json:"worlds"`
	Current string   `json:"current"`
}

type LogsInfo struct {
	Id    int64    `json:"id,string"`
	Lines []string `json:"lines"`
}

// LogBatch is one message on the log stream socket.
type LogBatch struct {
	Lines []string `json:"lines"`
}

type CommandRequest struct {
	Command string `json:"command"`
}

type NameRequest struct {
	Name string `json:"name"`
}

type GameRuleRequest struct {
	Rule  string `json:"rule"`
	Value string `json:"value"`
}

type RestoreRequest struct {
	File string `json:"file"`
}

type RestoreResult struct {
	World  string `json:"world"`
	File   string `json:"file"`
	Safety string `json:"safety,omitempty"`
}

type ConfigRequest struct {
	MaxPlayers       int  `json:"max_players"`
	WhitelistEnabled bool `json:"whitelist_enabled"`
}

// Accepted answers a request whose work continues in the background.
type Accepted struct {
	Action string `json:"action"`
}

type CancelResult struct {
	Cancelled bool `json:"cancelled"`
}

type Error struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// Is lets callers of Client test for the lifecycle sentinels.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case mcvisor.KindNotRunning.String():
		return target == mcvisor.ErrNotRunning
	case mcvisor.KindAlreadyRunning.String():
		return target == mcvisor.ErrAlreadyRunning || target == mcvisor.ErrServerRunning
	}
	return false
}

func statusOf(k mcvisor.Kind) int {
	switch k {
	case mcvisor.KindAlreadyRunning, mcvisor.KindNotRunning, mcvisor.KindAlreadyExists:
		return http.StatusConflict
	case mcvisor.KindNotFound:
		return http.StatusNotFound
	case mcvisor.KindInvalidName:
		return http.StatusBadRequest
	case mcvisor.KindLookupFailure:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func errorOf(e error) *Error {
	k := mcvisor.KindOf(e)
	return &Error{Code: statusOf(k), Kind: k.String(), Message: e.Error()}
}
