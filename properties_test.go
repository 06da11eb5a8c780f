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
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

const sampleProperties = `#Minecraft server properties
#Mon Jan 01 00:00:00 UTC 2024
motd=A Minecraft Server
max-players=20
white-list=false
level-name=world
`

func TestProperties(t *testing.T) {
	Convey("Given server files", t, func() {
		l := NewLayout(t.TempDir(), "")
		con := &testConsole{}
		cs := NewConfigSync(l, con)

		Convey("A missing properties file reads as empty", func() {
			props, e := cs.Properties()
			So(e, ShouldBeNil)
			So(props, ShouldBeEmpty)
		})

		Convey("Updates keep every other line as it was", func() {
			writeFile(l.PropertiesFile(), sampleProperties)
			e := cs.UpdateProperties(map[string]string{
				PropMaxPlayers: "8",
				"view-distance": "12",
				"difficulty":    "hard",
			})
			So(e, ShouldBeNil)
			So(readFile(l.PropertiesFile()), ShouldEqual, `#Minecraft server properties
#Mon Jan 01 00:00:00 UTC 2024
motd=A Minecraft Server
max-players=8
white-list=false
level-name=world
difficulty=hard
view-distance=12
`)
			props, _ := cs.Properties()
			So(props["motd"], ShouldEqual, "A Minecraft Server")
			So(props[PropMaxPlayers], ShouldEqual, "8")
		})

		Convey("Only the first of duplicate keys is rewritten", func() {
			writeFile(l.PropertiesFile(), "max-players=1\nmax-players=2")
			So(cs.UpdateProperties(map[string]string{PropMaxPlayers: "3"}), ShouldBeNil)
			So(readFile(l.PropertiesFile()), ShouldEqual, "max-players=3\nmax-players=2\n")
		})

		Convey("A missing file is created", func() {
			So(cs.UpdateProperties(map[string]string{PropWhiteList: "true"}), ShouldBeNil)
			So(readFile(l.PropertiesFile()), ShouldEqual, "white-list=true\n")
		})

		Convey("Nothing is written while the server runs", func() {
			writeFile(l.PropertiesFile(), sampleProperties)
			con.setRunning(true)
			So(cs.UpdateProperties(map[string]string{PropMaxPlayers: "8"}), ShouldEqual, ErrServerRunning)
			So(cs.Apply(DefaultWorldConfig()), ShouldEqual, ErrServerRunning)
			So(readFile(l.PropertiesFile()), ShouldEqual, sampleProperties)
		})

		Convey("Capture reads the live files", func() {
			writeFile(l.PropertiesFile(), "max-players=7\nwhite-list=true\n")
			writeFile(l.WhitelistFile(), `[{"uuid":"069a79f4-44e9-4726-a5be-fca90e38aaf5","name":"Notch"}]`)
			cfg := cs.Capture()
			So(cfg.MaxPlayers, ShouldEqual, 7)
			So(cfg.WhitelistEnabled, ShouldBeTrue)
			So(cfg.WhitelistPlayers, ShouldResemble, []Player{
				{UUID: "069a79f4-44e9-4726-a5be-fca90e38aaf5", Name: "Notch"}})
		})

		Convey("Capture falls back to defaults", func() {
			writeFile(l.PropertiesFile(), "max-players=lots\n")
			cfg := cs.Capture()
			So(cfg, ShouldResemble, DefaultWorldConfig())
		})

		Convey("Apply writes both files", func() {
			writeFile(l.PropertiesFile(), sampleProperties)
			cfg := WorldConfig{
				MaxPlayers:       5,
				WhitelistEnabled: true,
				WhitelistPlayers: []Player{{UUID: "6ab43178-89fd-4905-97f6-0f67d9d76fd9", Name: "Alex"}},
			}
			So(cs.Apply(cfg), ShouldBeNil)
			props, _ := cs.Properties()
			So(props[PropMaxPlayers], ShouldEqual, "5")
			So(props[PropWhiteList], ShouldEqual, "true")
			So(props["motd"], ShouldEqual, "A Minecraft Server")
			So(cs.Whitelist(), ShouldResemble, cfg.WhitelistPlayers)
			So(cs.Capture(), ShouldResemble, cfg)
		})
	})
}
