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

package apiserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Z3NTL3/img-shuffle/internal/imagesearch"
	"github.com/Z3NTL3/img-shuffle/internal/sampler"
)

type Config struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

func DefaultConfig() Config {
	return Config{
		Addr:              "0.0.0.0:2000",
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   10 * time.Second,
	}
}

// SampleSource hands out one queued Sample per call.
type SampleSource interface {
	Receive(ctx context.Context) (*sampler.Sample, error)
}

// ImageSearcher finds and downloads categorised images.
type ImageSearcher interface {
	Search(ctx context.Context, query string) (imagesearch.Hit, error)
	Fetch(ctx context.Context, imageURL string) (*http.Response, error)
}

type Server struct {
	cfg     Config
	samples SampleSource
	search  ImageSearcher
	handler http.Handler
}

func NewServer(cfg Config, samples SampleSource, search ImageSearcher) *Server {
	s := &Server{cfg: cfg, samples: samples, search: search}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRandomImage)
	mux.HandleFunc("HEAD /{$}", handleRandomImageHead)
	mux.HandleFunc("GET /cat", s.handleCategorizedImage)
	mux.HandleFunc("/", handleFallback)

	s.handler = otelhttp.NewHandler(accessLog(mux), "img-shuffle",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}))
	return s
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run binds the listen address, calls onListening once the socket is open,
// and serves until ctx is done. A bind failure is returned immediately.
func (s *Server) Run(ctx context.Context, onListening func(net.Addr)) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	slog.Info("Starting image server", slog.String("addr", ln.Addr().String()))
	if onListening != nil {
		onListening(ln.Addr())
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down image server")
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

func handleFallback(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
