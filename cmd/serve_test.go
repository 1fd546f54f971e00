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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Z3NTL3/img-shuffle/config"
	"github.com/Z3NTL3/img-shuffle/internal/apiserver"
	"github.com/Z3NTL3/img-shuffle/internal/catalog"
	"github.com/Z3NTL3/img-shuffle/internal/healthcheck"
	"github.com/Z3NTL3/img-shuffle/internal/imagesearch"
	"github.com/Z3NTL3/img-shuffle/internal/sampler"
)

func writeImages(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}
	return dir
}

func TestLoadCatalogDegradesWhenDirMissing(t *testing.T) {
	cfg := catalog.Config{Dir: filepath.Join(t.TempDir(), "does-not-exist")}

	cat, err := loadCatalog(context.Background(), cfg)
	require.NoError(t, err)
	assert.Zero(t, cat.Len())
}

func TestLoadCatalogStrictFails(t *testing.T) {
	cfg := catalog.Config{Dir: filepath.Join(t.TempDir(), "does-not-exist"), Strict: true}

	_, err := loadCatalog(context.Background(), cfg)
	require.ErrorIs(t, err, catalog.ErrCatalog)
}

func TestLoadCatalogReadsDir(t *testing.T) {
	dir := writeImages(t, "a.png", "b.jpg")

	cat, err := loadCatalog(context.Background(), catalog.Config{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())
}

func TestListCatalog(t *testing.T) {
	dir := writeImages(t, "a.png", "b.jpg", "c.gif")

	var out bytes.Buffer
	require.NoError(t, listCatalog(context.Background(), catalog.Config{Dir: dir}, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "b.jpg"),
		filepath.Join(dir, "c.gif"),
	}, lines)
}

func TestListCatalogMissingDir(t *testing.T) {
	var out bytes.Buffer
	err := listCatalog(context.Background(), catalog.Config{Dir: filepath.Join(t.TempDir(), "nope")}, &out)
	require.ErrorIs(t, err, catalog.ErrCatalog)
	assert.Empty(t, out.String())
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func getHealth(t *testing.T, port int, path string) (int, healthcheck.Response) {
	t.Helper()
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d%s", port, path))
	if err != nil {
		return 0, healthcheck.Response{}
	}
	defer func() { _ = resp.Body.Close() }()
	var body healthcheck.Response
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body
}

func testConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	server := apiserver.DefaultConfig()
	server.Addr = "127.0.0.1:0"
	return &config.Config{
		Server:  server,
		Sampler: sampler.Config{Producers: 2, QueueSize: 2, IdleWait: 10 * time.Millisecond},
		Catalog: catalog.Config{Dir: dir},
		Search:  imagesearch.DefaultConfig(),
		Health:  healthcheck.Config{Port: freePort(t)},
	}
}

func runServe(t *testing.T, cfg *config.Config) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg) }()
	t.Cleanup(cancel)
	return cancel, done
}

func TestServeBecomesReadyWithCatalog(t *testing.T) {
	cfg := testConfig(t, writeImages(t, "a.png"))
	cancel, done := runServe(t, cfg)

	require.Eventually(t, func() bool {
		status, body := getHealth(t, cfg.Health.Port, "/readyz")
		return status == http.StatusOK && body.Conditions[conditionCatalogNonEmpty]
	}, 5*time.Second, 20*time.Millisecond)

	status, _ := getHealth(t, cfg.Health.Port, "/healthz")
	assert.Equal(t, http.StatusOK, status)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServeNotReadyWithEmptyCatalog(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "missing"))
	cancel, done := runServe(t, cfg)

	require.Eventually(t, func() bool {
		status, _ := getHealth(t, cfg.Health.Port, "/healthz")
		return status == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	status, body := getHealth(t, cfg.Health.Port, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.False(t, body.Conditions[conditionCatalogNonEmpty])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServeFailsWhenAddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	cfg := testConfig(t, writeImages(t, "a.png"))
	cfg.Server.Addr = ln.Addr().String()

	_, done := runServe(t, cfg)
	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "listen on")
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not fail on a busy address")
	}
}
