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

package mojang

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/gdamore/mcvisor"
)

func profileServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/users/profiles/minecraft/")
		switch strings.ToLower(name) {
		case "notch":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"069a79f444e94726a5befca90e38aaf5","name":"Notch"}`))
		case "ghost":
			w.WriteHeader(http.StatusNoContent)
		case "busy":
			w.WriteHeader(http.StatusTooManyRequests)
		case "garbled":
			w.Write([]byte(`{"id":"not-a-uuid","name":"Garbled"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestLookup(t *testing.T) {
	Convey("Given a profile service", t, func() {
		srv := profileServer()
		Reset(srv.Close)
		c := NewClient(srv.Client(), 60000)
		c.SetBaseURL(srv.URL + "/users/profiles/minecraft")
		ctx := context.Background()

		Convey("Names resolve to dashed identifiers", func() {
			p, e := c.Lookup(ctx, "notch")
			So(e, ShouldBeNil)
			So(p, ShouldResemble, mcvisor.Player{
				UUID: "069a79f4-44e9-4726-a5be-fca90e38aaf5",
				Name: "Notch",
			})
		})

		Convey("Unknown players are not found", func() {
			_, e := c.Lookup(ctx, "ghost")
			So(e, ShouldEqual, mcvisor.ErrPlayerNotFound)
			_, e = c.Lookup(ctx, "nobody")
			So(e, ShouldEqual, mcvisor.ErrPlayerNotFound)
		})

		Convey("Service trouble is a lookup failure", func() {
			for _, name := range []string{"busy", "garbled"} {
				_, e := c.Lookup(ctx, name)
				var le *mcvisor.LookupError
				So(errors.As(e, &le), ShouldBeTrue)
				So(le.Name, ShouldEqual, name)
				So(mcvisor.KindOf(e), ShouldEqual, mcvisor.KindLookupFailure)
			}
		})
	})

	Convey("Lookups are throttled", t, func() {
		srv := profileServer()
		Reset(srv.Close)
		c := NewClient(srv.Client(), 1)
		c.SetBaseURL(srv.URL + "/users/profiles/minecraft")
		_, e := c.Lookup(context.Background(), "notch")
		So(e, ShouldBeNil)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, e = c.Lookup(ctx, "notch")
		So(mcvisor.KindOf(e), ShouldEqual, mcvisor.KindLookupFailure)
	})
}
