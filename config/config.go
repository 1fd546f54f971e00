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

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/Z3NTL3/img-shuffle/internal/apiserver"
	"github.com/Z3NTL3/img-shuffle/internal/catalog"
	"github.com/Z3NTL3/img-shuffle/internal/debugging"
	"github.com/Z3NTL3/img-shuffle/internal/healthcheck"
	"github.com/Z3NTL3/img-shuffle/internal/imagesearch"
	"github.com/Z3NTL3/img-shuffle/internal/sampler"
)

// Config aggregates configuration for the application.
// Each field is owned by its respective package.
type Config struct {
	Server  apiserver.Config   `mapstructure:"server"`
	Sampler sampler.Config     `mapstructure:"sampler"`
	Catalog catalog.Config     `mapstructure:"catalog"`
	Search  imagesearch.Config `mapstructure:"search"`
	Health  healthcheck.Config `mapstructure:"health"`

	Profiling debugging.Config `mapstructure:"profiling"`
}

func defaults() *Config {
	return &Config{
		Server:  apiserver.DefaultConfig(),
		Sampler: sampler.DefaultConfig(),
		Catalog: catalog.DefaultConfig(),
		Search:  imagesearch.DefaultConfig(),
		Health:  healthcheck.DefaultConfig(),

		Profiling: debugging.DefaultConfig(),
	}
}

// Load reads configuration from files and environment variables.
// A .env file in the working directory is merged into the process
// environment first; variables that are already set win.
// Environment variables use the prefix "IMGSHUFFLE" and the dot character
// in keys is replaced by an underscore. For example, "sampler.queue_size"
// becomes "IMGSHUFFLE_SAMPLER_QUEUE_SIZE".
func Load() (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := defaults()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("IMGSHUFFLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.BindEnv("health.port", "IMGSHUFFLE_HEALTH_PORT", "HEALTH_CHECK_PORT")
	_ = v.BindEnv("profiling.port", "IMGSHUFFLE_PROFILING_PORT", "PPROF_PORT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Sampler.Producers < 1 {
		errs = append(errs, fmt.Errorf("sampler.producers must be at least 1, got %d", c.Sampler.Producers))
	}
	if c.Sampler.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("sampler.queue_size must be at least 1, got %d", c.Sampler.QueueSize))
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if c.Catalog.S3.Bucket == "" && strings.TrimSpace(c.Catalog.Dir) == "" {
		errs = append(errs, errors.New("catalog.dir must be set when catalog.s3.bucket is empty"))
	}
	return errors.Join(errs...)
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(append([]string{}, parts...), tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
