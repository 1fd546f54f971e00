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

	"github.com/Z3NTL3/img-shuffle/internal/awsclient"
)

type Config struct {
	// Dir is the local image directory, relative to the working directory.
	Dir string `mapstructure:"dir"`

	// Strict makes an unlistable source fatal at startup instead of
	// falling back to an empty catalog.
	Strict bool `mapstructure:"strict"`

	S3 S3Config `mapstructure:"s3"`
}

// S3Config selects an object store source. Leaving Bucket empty keeps the
// local directory source.
type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	Role      string `mapstructure:"role"`
	PathStyle bool   `mapstructure:"path_style"`
}

func DefaultConfig() Config {
	return Config{
		Dir: "images",
	}
}

// NewSource builds the Source described by cfg.
func NewSource(ctx context.Context, cfg Config) (Source, error) {
	if cfg.S3.Bucket == "" {
		return NewDirSource(cfg.Dir), nil
	}

	mgr, err := awsclient.NewManager(ctx)
	if err != nil {
		return nil, fmt.Errorf("create AWS manager: %w", err)
	}

	var opts []awsclient.S3Option
	if cfg.S3.Role != "" {
		opts = append(opts, awsclient.WithRole(cfg.S3.Role))
	}
	if cfg.S3.Region != "" {
		opts = append(opts, awsclient.WithRegion(cfg.S3.Region))
	}
	if cfg.S3.Endpoint != "" {
		opts = append(opts, awsclient.WithEndpoint(cfg.S3.Endpoint))
	}
	if cfg.S3.PathStyle {
		opts = append(opts, awsclient.WithPathStyle())
	}

	client, err := mgr.GetS3(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}
	return NewS3Source(client, cfg.S3.Bucket, cfg.S3.Prefix), nil
}
