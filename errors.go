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
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrAlreadyRunning  = errors.New("Server is already running")
	ErrNotRunning      = errors.New("Server is not running")
	ErrServerRunning   = errors.New("Server must be stopped first")
	ErrWorldNotFound   = errors.New("World not found")
	ErrWorldExists     = errors.New("World already exists")
	ErrBadWorldName    = errors.New("Invalid world name")
	ErrActiveWorld     = errors.New("Cannot delete the active world while running")
	ErrNoActiveSave    = errors.New("No active save directory")
	ErrBackupNotFound  = errors.New("Backup not found")
	ErrBadBackupName   = errors.New("Invalid backup file name")
	ErrBackupCorrupt   = errors.New("Backup checksum mismatch")
	ErrPlayerNotFound  = errors.New("Player not found")
	ErrBadPlayerName   = errors.New("Invalid player name")
	ErrPlayerListed    = errors.New("Player already whitelisted")
	ErrRequestNotFound = errors.New("No pending request for player")
	ErrBadCommand      = errors.New("Invalid command")
	ErrBadValue        = errors.New("Invalid value")
	ErrShutdown        = errors.New("Manager is shutting down")
)

// Kind classifies an error for callers that need to render it, such as the
// REST boundary.  It does not replace errors.Is on the sentinels.
type Kind int

const (
	KindUnknown Kind = iota
	KindAlreadyRunning
	KindNotRunning
	KindNotFound
	KindAlreadyExists
	KindInvalidName
	KindIOFailure
	KindLookupFailure
)

var kindNames = map[Kind]string{
	KindUnknown:        "Unknown",
	KindAlreadyRunning: "AlreadyRunning",
	KindNotRunning:     "NotRunning",
	KindNotFound:       "NotFound",
	KindAlreadyExists:  "AlreadyExists",
	KindInvalidName:    "InvalidName",
	KindIOFailure:      "IOFailure",
	KindLookupFailure:  "ExternalLookupFailure",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IOError wraps a filesystem or process failure with the operation that
// was being attempted.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// LookupError reports a failure of the identity lookup collaborator that
// is not simply "no such player".
type LookupError struct {
	Name string
	Err  error
}

func (e *LookupError) Error() string {
	return "lookup " + e.Name + ": " + e.Err.Error()
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

func ioErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Err: errors.WithStack(err)}
}

// KindOf maps an error to its place in the taxonomy.  A nil error has
// KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	switch {
	case errors.Is(err, ErrAlreadyRunning), errors.Is(err, ErrServerRunning),
		errors.Is(err, ErrActiveWorld):
		return KindAlreadyRunning
	case errors.Is(err, ErrNotRunning), errors.Is(err, ErrShutdown):
		return KindNotRunning
	case errors.Is(err, ErrWorldNotFound), errors.Is(err, ErrBackupNotFound),
		errors.Is(err, ErrPlayerNotFound), errors.Is(err, ErrRequestNotFound),
		errors.Is(err, ErrNoActiveSave):
		return KindNotFound
	case errors.Is(err, ErrWorldExists), errors.Is(err, ErrPlayerListed):
		return KindAlreadyExists
	case errors.Is(err, ErrBadWorldName), errors.Is(err, ErrBadBackupName),
		errors.Is(err, ErrBadCommand), errors.Is(err, ErrBadValue),
		errors.Is(err, ErrBadPlayerName):
		return KindInvalidName
	}
	var le *LookupError
	if errors.As(err, &le) {
		return KindLookupFailure
	}
	var ie *IOError
	if errors.As(err, &ie) {
		return KindIOFailure
	}
	if errors.Is(err, ErrBackupCorrupt) {
		return KindIOFailure
	}
	return KindUnknown
}
