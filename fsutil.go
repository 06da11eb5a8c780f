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
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

func exists(path string) bool {
	_, e := os.Lstat(path)
	return e == nil
}

func isDir(path string) bool {
	fi, e := os.Stat(path)
	return e == nil && fi.IsDir()
}

// writeFileAtomic replaces path with data, so that readers never see a
// partially written file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if e := os.MkdirAll(dir, 0755); e != nil {
		return e
	}
	f, e := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if e != nil {
		return e
	}
	tmp := f.Name()
	if _, e = f.Write(data); e == nil {
		e = f.Sync()
	}
	if ce := f.Close(); e == nil {
		e = ce
	}
	if e == nil {
		e = os.Chmod(tmp, perm)
	}
	if e == nil {
		e = os.Rename(tmp, path)
	}
	if e != nil {
		os.Remove(tmp)
	}
	return e
}

// sidePath returns an unused name next to path, carrying tag.
func sidePath(path, tag string) string {
	dir, base := filepath.Split(path)
	stamp := time.Now().UnixNano()
	for i := 0; ; i++ {
		p := filepath.Join(dir, "."+base+"."+tag+"-"+strconv.FormatInt(stamp, 36))
		if i > 0 {
			p += "-" + strconv.Itoa(i)
		}
		if !exists(p) {
			return p
		}
	}
}

func copyFile(src, dst string, mode fs.FileMode) error {
	in, e := os.Open(src)
	if e != nil {
		return e
	}
	defer in.Close()
	out, e := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if e != nil {
		return e
	}
	if _, e = io.Copy(out, in); e != nil {
		out.Close()
		return e
	}
	return out.Close()
}

// copyDir copies the tree at src to dst, which must not exist.  Entries
// for which skip returns true are left out; rel is slash separated and
// relative to src.  Only directories, regular files and symlinks are
// copied.
func copyDir(src, dst string, skip func(rel string) bool) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, e := filepath.Rel(src, path)
		if e != nil {
			return e
		}
		if rel != "." && skip != nil && skip(filepath.ToSlash(rel)) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, rel)
		info, e := d.Info()
		if e != nil {
			return e
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0700)
		case info.Mode().IsRegular():
			return copyFile(path, target, info.Mode())
		case info.Mode()&fs.ModeSymlink != 0:
			link, e := os.Readlink(path)
			if e != nil {
				return e
			}
			return os.Symlink(link, target)
		}
		return nil
	})
}

// moveDir renames src to dst, copying when they are on different
// filesystems.
func moveDir(src, dst string) error {
	e := os.Rename(src, dst)
	var le *os.LinkError
	if e == nil || !errors.As(e, &le) || le.Err != syscall.EXDEV {
		return e
	}
	if e = copyDir(src, dst, nil); e != nil {
		os.RemoveAll(dst)
		return e
	}
	return os.RemoveAll(src)
}
