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
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

type ErrorKind string

const (
	KindValidation ErrorKind = "ValidationError"
	KindSampling   ErrorKind = "SamplingError"
	KindUpstream   ErrorKind = "UpstreamError"
	KindIO         ErrorKind = "IoError"
)

// AppError is what handlers fail with. Every kind is sent to the client the
// same way; the kind only shows up in logs and metrics.
type AppError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func newAppError(kind ErrorKind, msg string, err error) *AppError {
	return &AppError{Kind: kind, Msg: msg, Err: err}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return "error: " + e.Msg + ": " + e.Err.Error()
	}
	return "error: " + e.Msg
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// message is the text sent to clients.
func (e *AppError) message() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

type errorMessage struct {
	Msg string `json:"msg"`
}

// errorBody is the wire shape: {"SomeError":{"msg":"..."}}.
type errorBody struct {
	SomeError errorMessage `json:"SomeError"`
}

// writeError sends err as a 400 JSON error body. Errors that are not
// AppErrors are reported as IoError.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = newAppError(KindIO, "request failed", err)
	}

	recordFailure(r.Context(), routeLabel(r), appErr.Kind)
	slog.Warn("Request failed",
		slog.String("path", r.URL.Path),
		slog.String("kind", string(appErr.Kind)),
		slog.Any("error", appErr))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(errorBody{SomeError: errorMessage{Msg: appErr.message()}})
}
