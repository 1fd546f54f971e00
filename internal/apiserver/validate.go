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
	"fmt"
	"net/url"
	"unicode/utf8"
)

const (
	minQueryLen = 3
	maxQueryLen = 30
)

// validateQuery extracts the search term from q. Length is counted in
// characters, not bytes.
func validateQuery(values url.Values) (string, error) {
	if !values.Has("q") {
		return "", newAppError(KindValidation, "query parameter 'q' is required", nil)
	}
	q := values.Get("q")
	n := utf8.RuneCountInString(q)
	if n < minQueryLen || n > maxQueryLen {
		return "", newAppError(KindValidation,
			fmt.Sprintf("query parameter 'q' must be between %d and %d characters, got %d", minQueryLen, maxQueryLen, n),
			nil)
	}
	return q, nil
}
