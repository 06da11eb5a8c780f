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
	"errors"
	"log"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestJobs(t *testing.T) {
	Convey("Given a job runner", t, func() {
		j := NewJobs(log.New(&testLog{t: t}, "", 0))
		var runs, fails int32
		j.Add("tick", 5*time.Millisecond, func() error {
			atomic.AddInt32(&runs, 1)
			return nil
		})
		j.Add("fail", 5*time.Millisecond, func() error {
			atomic.AddInt32(&fails, 1)
			return errors.New("injected")
		})
		j.Add("never", 0, func() error { panic("disabled job ran") })
		So(j.Names(), ShouldResemble, []string{"tick", "fail"})

		j.Start()
		So(waitFor(5*time.Second, func() bool {
			return atomic.LoadInt32(&runs) >= 3 && atomic.LoadInt32(&fails) >= 3
		}), ShouldBeTrue)
		j.Stop()

		n := atomic.LoadInt32(&runs)
		time.Sleep(30 * time.Millisecond)
		So(atomic.LoadInt32(&runs), ShouldEqual, n)

		Convey("Jobs added while running start at once", func() {
			var late int32
			j.Start()
			j.Add("late", 5*time.Millisecond, func() error {
				atomic.AddInt32(&late, 1)
				return nil
			})
			So(waitFor(5*time.Second, func() bool { return atomic.LoadInt32(&late) > 0 }), ShouldBeTrue)
			j.Stop()
		})
	})
}
