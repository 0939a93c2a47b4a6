// Cadence - Contribution and Social Activity Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package source

import (
	"errors"
	"fmt"
	"io"
)

// ErrTransport marks failures to obtain any usable response: connection
// errors, timeouts, an open circuit breaker, or an error status without an
// error payload.
var ErrTransport = errors.New("upstream transport failure")

// UpstreamError is returned when the upstream answered with an error payload.
type UpstreamError struct {
	Source  string
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s rejected request (status %d): %s", e.Source, e.Status, e.Message)
}

// UpstreamRejected reports true; it lets other packages classify the error
// without importing this one.
func (e *UpstreamError) UpstreamRejected() bool {
	return true
}

// IsUpstreamRejected reports whether err wraps an *UpstreamError.
func IsUpstreamRejected(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// maxErrorBodySize limits how much of an error response is read.
const maxErrorBodySize = 64 * 1024

// readBodyForError reads at most maxErrorBodySize bytes of r.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}
