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

package sampler

import (
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sample is one opened image waiting to be streamed to exactly one client.
// It owns its reader; whoever holds the Sample last must Close it.
type Sample struct {
	ID       uuid.UUID
	Entry    string
	Produced time.Time

	body      io.ReadCloser
	closeOnce sync.Once
	closeErr  error
}

func NewSample(entry string, body io.ReadCloser) *Sample {
	return &Sample{
		ID:       uuid.New(),
		Entry:    entry,
		Produced: time.Now(),
		body:     body,
	}
}

func (s *Sample) Read(p []byte) (int, error) {
	return s.body.Read(p)
}

// Close releases the underlying handle. Safe to call more than once.
func (s *Sample) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}
