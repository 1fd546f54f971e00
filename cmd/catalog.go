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

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Z3NTL3/img-shuffle/config"
	"github.com/Z3NTL3/img-shuffle/internal/catalog"
)

func init() {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "list the entries of the configured image catalog",
		RunE: func(c *cobra.Command, _ []string) error {
			var opts *slog.HandlerOptions
			if debugEnabled() {
				opts = &slog.HandlerOptions{Level: slog.LevelDebug}
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return listCatalog(c.Context(), cfg.Catalog, c.OutOrStdout())
		},
	}

	rootCmd.AddCommand(cmd)
}

// listCatalog prints one entry per line. Unlike serve, a source that cannot
// be listed is always an error.
func listCatalog(ctx context.Context, cfg catalog.Config, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	src, err := catalog.NewSource(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create catalog source: %w", err)
	}
	cat, err := catalog.Load(ctx, src)
	if err != nil {
		return err
	}
	for _, entry := range cat.Entries() {
		if _, err := fmt.Fprintln(out, entry); err != nil {
			return err
		}
	}
	return nil
}
