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
	"bufio"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Z3NTL3/img-shuffle/internal/imagesearch"
	"github.com/Z3NTL3/img-shuffle/internal/logctx"
	"github.com/Z3NTL3/img-shuffle/internal/sampler"
)

const sniffLen = 512

// handleRandomImage takes the next queued Sample and streams it. The queue
// guard is released inside Receive, before any bytes are written, so a slow
// client only holds up its own response.
func (s *Server) handleRandomImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logctx.FromContext(ctx)

	start := time.Now()
	sample, err := s.samples.Receive(ctx)
	if err != nil {
		if errors.Is(err, sampler.ErrQueueClosed) {
			writeError(w, r, newAppError(KindSampling, "unfortunately, failed sampling an image", err))
			return
		}
		// The client went away while waiting.
		logger.Debug("Gave up waiting for a sample", slog.Any("error", err))
		writeError(w, r, newAppError(KindSampling, "no image available", err))
		return
	}
	defer func() { _ = sample.Close() }()

	logger.Info("Sampled image",
		slog.String("sampleID", sample.ID.String()),
		slog.Duration("took", time.Since(start)))

	br := bufio.NewReaderSize(sample, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, newAppError(KindIO, "failed reading sampled image", err))
		return
	}

	w.Header().Set("Cache-Control", "must-revalidate")
	w.Header().Set("Content-Type", http.DetectContentType(head))
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, br)
	if err != nil {
		logger.Warn("Streaming sampled image failed",
			slog.String("entry", sample.Entry),
			slog.Int64("bytes", n),
			slog.Any("error", err))
		return
	}
	recordServed(ctx, routeLabel(r), n)
}

// handleRandomImageHead answers without dequeuing. The image a GET would
// receive is not known until it is taken from the queue.
func handleRandomImageHead(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "must-revalidate")
	w.WriteHeader(http.StatusOK)
}

// handleCategorizedImage proxies the first search hit for q.
func (s *Server) handleCategorizedImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logctx.FromContext(ctx)

	query, err := validateQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	hit, err := s.search.Search(ctx, query)
	if err != nil {
		if errors.Is(err, imagesearch.ErrNoResults) {
			writeError(w, r, newAppError(KindUpstream, "failed sampling image from search provider", err))
			return
		}
		writeError(w, r, newAppError(KindUpstream, "image search failed", err))
		return
	}

	resp, err := s.search.Fetch(ctx, hit.LargeImageURL)
	if err != nil {
		writeError(w, r, newAppError(KindUpstream, "fetching image failed", err))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	for _, h := range []string{"Content-Type", "Content-Length"} {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		logger.Warn("Streaming remote image failed",
			slog.String("query", query),
			slog.Int64("bytes", n),
			slog.Any("error", err))
		return
	}
	recordServed(ctx, routeLabel(r), n)
}
