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
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	RejectWindow   = 50  // newest lines searched for rejections
	IdentityWindow = 100 // newest lines searched for identifiers

	rejectMarker   = "You are not white-listed on this server!"
	disconnectWord = "Disconnecting "
	identityMarker = "UUID of player "
)

// Request is a player who was turned away by the whitelist.
type Request struct {
	Name     string    `json:"name"`
	UUID     string    `json:"uuid"`
	Detected time.Time `json:"detected"`
}

// rejectedName extracts the player name from a rejection line.  Both the
// plain form and the older GameProfile form are understood:
//
//	Disconnecting Steve (/10.0.0.2:51234): You are not white-listed ...
//	Disconnecting com.mojang.authlib.GameProfile@1f[id=<null>,name=Steve,...
func rejectedName(line string) string {
	i := strings.Index(line, disconnectWord)
	if i < 0 {
		return ""
	}
	fields := strings.Fields(line[i+len(disconnectWord):])
	if len(fields) == 0 {
		return ""
	}
	name := fields[0]
	if j := strings.Index(name, "name="); j >= 0 {
		name = name[j+len("name="):]
		if k := strings.IndexAny(name, ",]"); k >= 0 {
			name = name[:k]
		}
	}
	return strings.TrimRight(name, ":")
}

// identityOf returns the identifier in a "UUID of player <name> is <id>"
// line, or "" if the line is about someone else.
func identityOf(line, name string) string {
	i := strings.Index(line, identityMarker+name+" is ")
	if i < 0 {
		return ""
	}
	fields := strings.Fields(line[i+len(identityMarker)+len(name)+len(" is "):])
	if len(fields) == 0 {
		return ""
	}
	id, e := canonicalUUID(fields[0])
	if e != nil {
		return ""
	}
	return id
}

// ScanRequests finds whitelist rejections among the newest RejectWindow
// lines, and pairs each with the nearest preceding identifier line
// within the newest IdentityWindow lines.  A rejection without an
// identifier is not a request.  Each name is reported once, in the
// order first seen.  Detected is left zero.
func ScanRequests(lines []string) []Request {
	var reqs []Request
	seen := map[string]bool{}
	first := len(lines) - RejectWindow
	if first < 0 {
		first = 0
	}
	floor := len(lines) - IdentityWindow
	if floor < 0 {
		floor = 0
	}
	for i := first; i < len(lines); i++ {
		line := lines[i]
		if !strings.Contains(line, rejectMarker) {
			continue
		}
		name := rejectedName(line)
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		for j := i; j >= floor; j-- {
			if id := identityOf(lines[j], name); id != "" {
				seen[strings.ToLower(name)] = true
				reqs = append(reqs, Request{Name: name, UUID: id})
				break
			}
		}
	}
	return reqs
}

// RequestTracker holds the pending requests in memory.  Names that were
// approved or rejected are not picked up again from the same log; Forget
// clears them when the log is reset.
type RequestTracker struct {
	pending map[string]Request
	handled map[string]bool
	now     func() time.Time
	mx      sync.Mutex
}

func NewRequestTracker() *RequestTracker {
	return &RequestTracker{
		pending: map[string]Request{},
		handled: map[string]bool{},
		now:     time.Now,
	}
}

// Scan records the requests found in lines that are not already
// pending, and returns those.
func (t *RequestTracker) Scan(lines []string) []Request {
	var added []Request
	now := t.now()
	t.mx.Lock()
	defer t.mx.Unlock()
	for _, r := range ScanRequests(lines) {
		key := strings.ToLower(r.Name)
		if _, ok := t.pending[key]; ok || t.handled[key] {
			continue
		}
		r.Detected = now
		t.pending[key] = r
		added = append(added, r)
	}
	return added
}

// Pending returns the pending requests, oldest first.
func (t *RequestTracker) Pending() []Request {
	t.mx.Lock()
	reqs := make([]Request, 0, len(t.pending))
	for _, r := range t.pending {
		reqs = append(reqs, r)
	}
	t.mx.Unlock()
	sort.Slice(reqs, func(i, j int) bool {
		if !reqs[i].Detected.Equal(reqs[j].Detected) {
			return reqs[i].Detected.Before(reqs[j].Detected)
		}
		return reqs[i].Name < reqs[j].Name
	})
	return reqs
}

// Take removes and returns the pending request for name.
func (t *RequestTracker) Take(name string) (Request, error) {
	t.mx.Lock()
	defer t.mx.Unlock()
	key := strings.ToLower(name)
	r, ok := t.pending[key]
	if !ok {
		return Request{}, ErrRequestNotFound
	}
	delete(t.pending, key)
	t.handled[key] = true
	return r, nil
}

// Put reinstates a request, such as one whose approval failed.
func (t *RequestTracker) Put(r Request) {
	t.mx.Lock()
	key := strings.ToLower(r.Name)
	t.pending[key] = r
	delete(t.handled, key)
	t.mx.Unlock()
}

// Forget lets every handled name be reported again.
func (t *RequestTracker) Forget() {
	t.mx.Lock()
	t.handled = map[string]bool{}
	t.mx.Unlock()
}

// Reject discards the pending request for name.
func (t *RequestTracker) Reject(name string) error {
	_, e := t.Take(name)
	return e
}
