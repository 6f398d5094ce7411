// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package coyopipe

import (
	"errors"
	"fmt"
)

// Failure kinds for per-record fetch errors.
const (
	KindNetwork = "network" // connection refused, timeout, DNS failure
	KindHTTP    = "http"    // non-2xx status
	KindContent = "content" // empty body or bytes not recognized as an image
)

// Common errors returned by the library.
var (
	// ErrNotImage is returned when a file's byte signature is not a
	// recognized image type.
	ErrNotImage = errors.New("byte signature is not an image")

	// ErrEmptyBody is returned when a response body or file is empty.
	ErrEmptyBody = errors.New("empty body")

	// ErrBadFraction is returned when the sampling fraction is outside (0, 1].
	ErrBadFraction = errors.New("sampling fraction must be in (0, 1]")

	// ErrMissingDataset is returned when no dataset is specified.
	ErrMissingDataset = errors.New("missing dataset ID")
)

// FetchError is the per-record failure produced by Fetch. It never aborts
// the batch; it is recorded in the manifest and counted in the report.
type FetchError struct {
	ID   int64
	URL  string
	Kind string // KindNetwork, KindHTTP or KindContent
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %d (%s): %s: %v", e.ID, e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// APIError represents an error response from the datasets server.
type APIError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("datasets-server error %d (%s): %s", e.StatusCode, e.Status, e.URL)
}
