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
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImages(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
}

func TestLoadDirListsRegularFiles(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, dir, map[string]string{
		"a.png":   "aaa",
		"b.jpg":   "bbb",
		".hidden": "hhh",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	writeImages(t, filepath.Join(dir, "nested"), map[string]string{"deep.png": "ddd"})

	cat, err := Load(context.Background(), NewDirSource(dir))
	require.NoError(t, err)

	assert.Equal(t, 3, cat.Len())
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, ".hidden"),
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "b.jpg"),
	}, cat.Entries())
}

func TestLoadDirFollowsFileSymlinks(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()
	writeImages(t, other, map[string]string{"target.png": "ttt"})
	require.NoError(t, os.Symlink(filepath.Join(other, "target.png"), filepath.Join(dir, "link.png")))
	require.NoError(t, os.Symlink(other, filepath.Join(dir, "linkdir")))

	cat, err := Load(context.Background(), NewDirSource(dir))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "link.png")}, cat.Entries())
}

func TestLoadMissingDirIsCatalogError(t *testing.T) {
	_, err := Load(context.Background(), NewDirSource(filepath.Join(t.TempDir(), "nope")))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCatalog)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEntriesIsACopy(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, dir, map[string]string{"a.png": "a"})

	cat, err := Load(context.Background(), NewDirSource(dir))
	require.NoError(t, err)

	entries := cat.Entries()
	entries[0] = "mutated"
	assert.Equal(t, filepath.Join(dir, "a.png"), cat.Entries()[0])
}

func TestPickEmpty(t *testing.T) {
	cat := Empty(NewDirSource(t.TempDir()))
	entry, ok := cat.Pick(nil)
	assert.False(t, ok)
	assert.Empty(t, entry)
	assert.Zero(t, cat.Len())
}

func TestPickCoversAllEntries(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, dir, map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"})

	cat, err := Load(context.Background(), NewDirSource(dir))
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(1, 2))
	counts := map[string]int{}
	for range 4000 {
		entry, ok := cat.Pick(rng)
		require.True(t, ok)
		counts[entry]++
	}

	require.Len(t, counts, 4)
	for entry, n := range counts {
		assert.InDelta(t, 1000, n, 200, "entry %s picked %d times", entry, n)
	}
}

func TestOpenReadsFileContents(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, dir, map[string]string{"a.png": "png bytes"})

	cat, err := Load(context.Background(), NewDirSource(dir))
	require.NoError(t, err)

	rc, err := cat.Open(context.Background(), filepath.Join(dir, "a.png"))
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "png bytes", string(got))
}

func TestOpenRemovedFileFails(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, dir, map[string]string{"a.png": "a"})

	cat, err := Load(context.Background(), NewDirSource(dir))
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "a.png")))

	_, err = cat.Open(context.Background(), filepath.Join(dir, "a.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenDirectoryFails(t *testing.T) {
	dir := t.TempDir()
	src := NewDirSource(dir)

	_, err := src.Open(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a regular file")
}

func TestNewSourceDefaultsToDir(t *testing.T) {
	src, err := NewSource(context.Background(), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "dir:images", src.String())
}
