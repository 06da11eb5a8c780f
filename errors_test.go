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
	"os"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestErrorKinds(t *testing.T) {
	Convey("Errors map onto kinds", t, func() {
		So(KindOf(nil), ShouldEqual, KindUnknown)
		So(KindOf(ErrAlreadyRunning), ShouldEqual, KindAlreadyRunning)
		So(KindOf(ErrServerRunning), ShouldEqual, KindAlreadyRunning)
		So(KindOf(ErrNotRunning), ShouldEqual, KindNotRunning)
		So(KindOf(ErrWorldNotFound), ShouldEqual, KindNotFound)
		So(KindOf(ErrBackupNotFound), ShouldEqual, KindNotFound)
		So(KindOf(ErrWorldExists), ShouldEqual, KindAlreadyExists)
		So(KindOf(ErrBadWorldName), ShouldEqual, KindInvalidName)
		So(KindOf(ErrBackupCorrupt), ShouldEqual, KindIOFailure)
		So(KindOf(errors.New("other")), ShouldEqual, KindUnknown)
	})

	Convey("Wrapping keeps the kind", t, func() {
		e := errors.Wrap(ErrWorldNotFound, "switch")
		So(KindOf(e), ShouldEqual, KindNotFound)
		So(errors.Is(e, ErrWorldNotFound), ShouldBeTrue)

		io := ioErr("read", os.ErrPermission)
		So(KindOf(io), ShouldEqual, KindIOFailure)
		So(errors.Is(io, os.ErrPermission), ShouldBeTrue)
		So(io.Error(), ShouldStartWith, "read: ")
		So(ioErr("read", nil), ShouldBeNil)

		le := &LookupError{Name: "Notch", Err: errors.New("timeout")}
		So(KindOf(errors.WithMessage(le, "add")), ShouldEqual, KindLookupFailure)
	})

	Convey("Kinds have names", t, func() {
		So(KindLookupFailure.String(), ShouldEqual, "ExternalLookupFailure")
		So(KindNotFound.String(), ShouldEqual, "NotFound")
		So(Kind(99).String(), ShouldEqual, "Kind(99)")
	})
}
