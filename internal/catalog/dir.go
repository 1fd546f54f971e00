// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package catalog

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DirSource serves the regular files directly inside a local directory.
// Subdirectories are not walked.
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (d *DirSource) List(_ context.Context) ([]string, error) {
	dirents, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}

	entries := make([]string, 0, len(dirents))
	for _, de := range dirents {
		path := filepath.Join(d.dir, de.Name())
		if de.Type().IsRegular() {
			entries = append(entries, path)
			continue
		}
		// Symlinks count when they resolve to a regular file.
		if de.Type()&os.ModeSymlink != 0 {
			if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
				entries = append(entries, path)
			}
		}
	}
	return entries, nil
}

// Open opens entry and checks that it is still a regular file.
func (d *DirSource) Open(_ context.Context, entry string) (io.ReadCloser, error) {
	f, err := os.Open(entry)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		_ = f.Close()
		return nil, fmt.Errorf("%s is not a regular file", entry)
	}
	return f, nil
}

func (d *DirSource) String() string {
	return "dir:" + d.dir
}
