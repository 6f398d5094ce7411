// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package coyopipe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"testing"
)

// newRowsServer serves a synthetic dataset of n rows through the /size and
// /rows endpoints.
func newRowsServer(t *testing.T, n int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/size", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"size":{"config":{"num_rows":%d}}}`, n)
	})
	mux.HandleFunc("/rows", func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.ParseInt(r.URL.Query().Get("offset"), 10, 64)
		length, _ := strconv.ParseInt(r.URL.Query().Get("length"), 10, 64)
		if offset+length > n {
			length = n - offset
		}
		fmt.Fprint(w, `{"rows":[`)
		for i := int64(0); i < length; i++ {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			idx := offset + i
			fmt.Fprintf(w, `{"row_idx":%d,"row":{"id":%d,"url":"https://img.example/%d.jpg","text":"row %d"}}`, idx, idx+1000, idx, idx)
		}
		fmt.Fprint(w, `]}`)
	})
	return httptest.NewServer(mux)
}

func sampleSettings(endpoint string) Settings {
	cfg := DefaultSettings()
	cfg.Dataset = "test/tiny"
	cfg.Endpoint = endpoint
	cfg.PageSize = 10
	cfg.PageWorkers = 2
	return cfg
}

func TestSample_SelectsFraction(t *testing.T) {
	srv := newRowsServer(t, 100)
	defer srv.Close()

	cfg := sampleSettings(srv.URL)
	cfg.Fraction = 0.25

	records, err := Sample(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if len(records) != 25 {
		t.Errorf("Expected 25 records, got %d", len(records))
	}
	for _, r := range records {
		if r.URL == "" || r.ID < 1000 {
			t.Errorf("Row not mapped to record: %+v", r)
		}
	}
}

func TestSample_Deterministic(t *testing.T) {
	srv := newRowsServer(t, 200)
	defer srv.Close()

	cfg := sampleSettings(srv.URL)
	cfg.Fraction = 0.2
	cfg.Seed = 7

	first, err := Sample(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	second, err := Sample(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Second sample failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("Same seed selected different rows")
	}
}

func TestSample_FractionValidation(t *testing.T) {
	for _, f := range []float64{-0.5, 1.5} {
		cfg := DefaultSettings()
		cfg.Dataset = "test/tiny"
		cfg.Fraction = f
		_, err := Sample(context.Background(), cfg, nil)
		if !errors.Is(err, ErrBadFraction) {
			t.Errorf("fraction %v: expected ErrBadFraction, got %v", f, err)
		}
	}
}

func TestSample_MissingDataset(t *testing.T) {
	cfg := DefaultSettings()
	cfg.Dataset = ""
	_, err := Sample(context.Background(), cfg, nil)
	if !errors.Is(err, ErrMissingDataset) {
		t.Fatalf("Expected ErrMissingDataset, got %v", err)
	}
}

func TestSample_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := sampleSettings(srv.URL)
	_, err := Sample(context.Background(), cfg, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", apiErr.StatusCode)
	}
}

func TestSample_AtLeastOneRow(t *testing.T) {
	srv := newRowsServer(t, 50)
	defer srv.Close()

	cfg := sampleSettings(srv.URL)
	cfg.Fraction = 0.001 // rounds down to zero rows

	records, err := Sample(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Expected 1 record, got %d", len(records))
	}
}
