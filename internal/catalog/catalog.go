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

// Package catalog holds the fixed set of images the sampler draws from.
// A Catalog is listed once from its Source and never changes afterwards;
// entries are not validated at load time, so an entry that disappears later
// only surfaces as an Open error.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
)

// ErrCatalog marks a failure to list the catalog source.
var ErrCatalog = errors.New("catalog unavailable")

// Source lists and opens catalog entries. Entries are opaque strings whose
// meaning belongs to the source: file paths for a directory, object keys
// for a bucket.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, entry string) (io.ReadCloser, error)
	String() string
}

type Catalog struct {
	source  Source
	entries []string
}

// Load lists source once. The returned error wraps ErrCatalog.
func Load(ctx context.Context, source Source) (*Catalog, error) {
	entries, err := source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %w", ErrCatalog, source, err)
	}

	slog.Info("Loaded image catalog",
		slog.String("source", source.String()),
		slog.Int("entries", len(entries)))

	return &Catalog{
		source:  source,
		entries: slices.Clone(entries),
	}, nil
}

// Empty returns a catalog with no entries that still opens through source.
func Empty(source Source) *Catalog {
	return &Catalog{source: source}
}

func (c *Catalog) Len() int {
	return len(c.entries)
}

// Entries returns a copy of the entry list.
func (c *Catalog) Entries() []string {
	return slices.Clone(c.entries)
}

// Pick returns an entry chosen uniformly at random. ok is false when the
// catalog is empty. A nil r uses the global generator.
func (c *Catalog) Pick(r *rand.Rand) (entry string, ok bool) {
	n := len(c.entries)
	if n == 0 {
		return "", false
	}
	if r == nil {
		return c.entries[rand.IntN(n)], true
	}
	return c.entries[r.IntN(n)], true
}

// Open opens entry for sequential reading.
func (c *Catalog) Open(ctx context.Context, entry string) (io.ReadCloser, error) {
	return c.source.Open(ctx, entry)
}

func (c *Catalog) String() string {
	return c.source.String()
}
