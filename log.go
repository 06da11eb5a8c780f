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
	"sync"
	"time"
)

const (
	MaxLogRecords = 200
)

type LogRecord struct {
	Id   int64     `json:"id,string"`
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// Log is a fixed capacity ring of server output lines.  Every line is
// given an id that is strictly larger than any id handed out before,
// including across Clear, so that ids can be used as marks by readers.
type Log struct {
	records    []LogRecord
	numRecords int
	maxRecords int
	id         int64
	cvs        map[*sync.Cond]bool
	mx         sync.Mutex
}

func (log *Log) lock() {
	log.mx.Lock()
}

func (log *Log) unlock() {
	log.mx.Unlock()
}

// append stores one line.  Call with lock held.
func (log *Log) append(line string, now time.Time) {
	idx := log.numRecords % log.maxRecords
	log.id++
	log.records[idx] = LogRecord{Id: log.id, Time: now, Text: line}
	// NB: numRecords may actually be more than maxRecords.
	// In that case, we've looped, but we use this really to
	// track the next index.
	log.numRecords++
}

// Append adds a single line.  Empty lines are dropped.
func (log *Log) Append(line string) {
	if line == "" {
		return
	}
	log.lock()
	log.append(line, time.Now())
	log.wakeUp()
	log.unlock()
}

func (log *Log) wakeUp() {
	for cv := range log.cvs {
		cv.Broadcast()
	}
}

func (log *Log) Clear() {
	log.lock()
	log.numRecords = 0
	// We presume that we cannot add new records more quickly than
	// once every nanosecond.
	if now := time.Now().UnixNano(); now > log.id {
		log.id = now
	}
	log.wakeUp()
	log.unlock()
}

// retained returns the records currently held, oldest first.  Call with
// lock held.
func (log *Log) retained() []LogRecord {
	cnt := log.numRecords
	if cnt > log.maxRecords {
		cnt = log.maxRecords
	}
	recs := make([]LogRecord, 0, cnt)
	index := log.numRecords - cnt
	for j := 0; j < cnt; j++ {
		recs = append(recs, log.records[index%log.maxRecords])
		index++
	}
	return recs
}

// Since returns only the records newer than mark, and the mark to use
// on the next call.  Records evicted before the caller got to them are
// simply gone; the caller never sees a record twice.
func (log *Log) Since(mark int64) ([]LogRecord, int64) {
	log.lock()
	defer log.unlock()
	if log.id == mark {
		return nil, mark
	}
	var recs []LogRecord
	for _, r := range log.retained() {
		if r.Id > mark {
			recs = append(recs, r)
		}
	}
	return recs, log.id
}

// Lines returns a snapshot of the retained text, oldest first.
func (log *Log) Lines() []string {
	log.lock()
	recs := log.retained()
	log.unlock()
	lines := make([]string, 0, len(recs))
	for _, r := range recs {
		lines = append(lines, r.Text)
	}
	return lines
}

// Tail returns at most n of the newest lines, oldest first.
func (log *Log) Tail(n int) []string {
	lines := log.Lines()
	if n >= 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

// Mark returns the current id, which a new subscriber can use to skip
// everything already in the ring.
func (log *Log) Mark() int64 {
	log.lock()
	defer log.unlock()
	return log.id
}

// Watch blocks until the log changes past last, or expire elapses.  It
// returns the current id.
func (log *Log) Watch(last int64, expire time.Duration) int64 {
	expired := false
	var timer *time.Timer
	cv := sync.NewCond(&log.mx)
	if expire > 0 {
		timer = time.AfterFunc(expire, func() {
			log.lock()
			expired = true
			cv.Broadcast()
			log.unlock()
		})
	} else {
		expired = true
	}

	log.lock()
	log.cvs[cv] = true
	for {
		if log.id != last || expired {
			break
		}
		cv.Wait()
	}
	delete(log.cvs, cv)
	last = log.id
	log.unlock()
	if timer != nil {
		timer.Stop()
	}
	return last
}

// NewLog returns a Log instance holding at most max lines.  A max of
// zero selects MaxLogRecords.
func NewLog(max int) *Log {
	if max <= 0 {
		max = MaxLogRecords
	}
	log := &Log{
		maxRecords: max,
		records:    make([]LogRecord, max),
		id:         time.Now().UnixNano(),
		cvs:        make(map[*sync.Cond]bool),
	}
	return log
}

// Subscription is one reader's position in a Log.
type Subscription struct {
	log  *Log
	mark int64
}

// Subscribe returns a Subscription positioned at the current end of the
// log when fromStart is false, or before every retained line otherwise.
func (log *Log) Subscribe(fromStart bool) *Subscription {
	s := &Subscription{log: log}
	if !fromStart {
		s.mark = log.Mark()
	}
	return s
}

// Poll returns the lines appended since the previous Poll.
func (s *Subscription) Poll() []string {
	recs, mark := s.log.Since(s.mark)
	s.mark = mark
	if len(recs) == 0 {
		return nil
	}
	lines := make([]string, 0, len(recs))
	for _, r := range recs {
		lines = append(lines, r.Text)
	}
	return lines
}
