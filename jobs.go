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
	"io/ioutil"
	"log"
	"sync"
	"time"
)

type job struct {
	name  string
	every time.Duration
	fn    func() error
}

// Jobs calls registered functions periodically, each on its own
// goroutine.  A run that outlasts its interval delays the next run
// rather than overlapping it.
type Jobs struct {
	jobs    []job
	logger  *log.Logger
	stop    chan struct{}
	running bool
	wg      sync.WaitGroup
	mx      sync.Mutex
}

func NewJobs(logger *log.Logger) *Jobs {
	if logger == nil {
		logger = log.New(ioutil.Discard, "", 0)
	}
	return &Jobs{logger: logger}
}

// Add registers fn to be called every interval.  Jobs added while
// running start immediately.  A non-positive interval disables the job.
func (j *Jobs) Add(name string, every time.Duration, fn func() error) {
	if every <= 0 {
		j.logger.Printf("Job %s disabled", name)
		return
	}
	jb := job{name: name, every: every, fn: fn}
	j.mx.Lock()
	defer j.mx.Unlock()
	j.jobs = append(j.jobs, jb)
	if j.running {
		j.launch(jb)
	}
}

// Names returns the registered jobs.
func (j *Jobs) Names() []string {
	j.mx.Lock()
	defer j.mx.Unlock()
	names := make([]string, 0, len(j.jobs))
	for _, jb := range j.jobs {
		names = append(names, jb.name)
	}
	return names
}

// launch starts one job goroutine.  Call with lock held.
func (j *Jobs) launch(jb job) {
	stop := j.stop
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(jb.every)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
			if e := jb.fn(); e != nil {
				j.logger.Printf("Job %s failed: %v", jb.name, e)
			}
		}
	}()
}

func (j *Jobs) Start() {
	j.mx.Lock()
	defer j.mx.Unlock()
	if j.running {
		return
	}
	j.running = true
	j.stop = make(chan struct{})
	for _, jb := range j.jobs {
		j.launch(jb)
	}
	j.logger.Printf("Started %d jobs", len(j.jobs))
}

// Stop ends every job, waiting for runs in progress to return.
func (j *Jobs) Stop() {
	j.mx.Lock()
	if !j.running {
		j.mx.Unlock()
		return
	}
	j.running = false
	close(j.stop)
	j.mx.Unlock()
	j.wg.Wait()
}
