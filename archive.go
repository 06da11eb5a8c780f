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
	"archive/tar"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
	"lukechampine.com/blake3"
)

func newHasher() *blake3.Hasher {
	return blake3.New(32, nil)
}

// packDir writes the tree at dir to dst as an lz4 compressed tar stream.
// The file is assembled under a temporary name and renamed over dst.  It
// returns the blake3 checksum of the written file.
func packDir(dir, dst string) (string, error) {
	f, e := os.CreateTemp(filepath.Dir(dst), ".pack-*")
	if e != nil {
		return "", e
	}
	tmp := f.Name()
	h := newHasher()
	zw := lz4.NewWriter(io.MultiWriter(f, h))
	tw := tar.NewWriter(zw)

	e = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil || rel == "." {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.IsDir() && !info.Mode().IsRegular() {
			return nil
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(tw, src)
		src.Close()
		return err
	})
	if e == nil {
		e = tw.Close()
	}
	if e == nil {
		e = zw.Close()
	}
	if e == nil {
		e = f.Sync()
	}
	if ce := f.Close(); e == nil {
		e = ce
	}
	if e == nil {
		e = os.Rename(tmp, dst)
	}
	if e != nil {
		os.Remove(tmp)
		return "", e
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// fileChecksum returns the blake3 checksum of a file.
func fileChecksum(path string) (string, error) {
	f, e := os.Open(path)
	if e != nil {
		return "", e
	}
	defer f.Close()
	h := newHasher()
	if _, e := io.Copy(h, f); e != nil {
		return "", e
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// unpackFile extracts an archive written by packDir into dst, which must
// not exist.  Entries that would land outside dst are refused.
func unpackFile(src, dst string) error {
	f, e := os.Open(src)
	if e != nil {
		return e
	}
	defer f.Close()

	tmp := sidePath(dst, "restore")
	if e := os.MkdirAll(tmp, 0755); e != nil {
		return e
	}
	if e := extract(tar.NewReader(lz4.NewReader(f)), tmp); e != nil {
		os.RemoveAll(tmp)
		return e
	}
	if e := os.Rename(tmp, dst); e != nil {
		os.RemoveAll(tmp)
		return e
	}
	return nil
}

func extract(tr *tar.Reader, dir string) error {
	for {
		hdr, e := tr.Next()
		if e == io.EOF {
			return nil
		} else if e != nil {
			return e
		}
		target := filepath.Join(dir, filepath.FromSlash(hdr.Name))
		rel, e := filepath.Rel(dir, target)
		if e != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return errors.Errorf("archive entry %q escapes destination", hdr.Name)
		}
		mode := fs.FileMode(hdr.Mode).Perm()
		switch hdr.Typeflag {
		case tar.TypeDir:
			if e := os.MkdirAll(target, mode|0700); e != nil {
				return e
			}
		case tar.TypeReg:
			if e := os.MkdirAll(filepath.Dir(target), 0755); e != nil {
				return e
			}
			out, e := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode|0600)
			if e != nil {
				return e
			}
			if _, e := io.Copy(out, tr); e != nil {
				out.Close()
				return e
			}
			if e := out.Close(); e != nil {
				return e
			}
		}
	}
}
