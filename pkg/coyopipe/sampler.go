// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package coyopipe

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"
)

// Sample selects a random fraction of a remote dataset via the Hugging
// Face datasets-server and returns the selected rows as records.
//
// The datasets-server serves rows in fixed pages, so sampling shuffles
// page order with the configured seed and takes whole pages until the
// subset size is covered. The same seed, fraction, and dataset size
// always select the same rows.
func Sample(ctx context.Context, cfg Settings, progress ProgressFunc) ([]Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Dataset == "" {
		return nil, ErrMissingDataset
	}
	if cfg.Fraction == 0 {
		cfg.Fraction = 0.1
	}
	if cfg.Fraction <= 0 || cfg.Fraction > 1 {
		return nil, fmt.Errorf("%w (got %v)", ErrBadFraction, cfg.Fraction)
	}
	if cfg.Config == "" {
		cfg.Config = "default"
	}
	if cfg.Split == "" {
		cfg.Split = "train"
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.PageSize <= 0 || cfg.PageSize > 100 {
		cfg.PageSize = 100
	}
	if cfg.PageWorkers <= 0 {
		cfg.PageWorkers = 4
	}

	httpc := buildHTTPClient()

	emit := func(ev ProgressEvent) {
		if progress != nil {
			if ev.Time.IsZero() {
				ev.Time = time.Now().UTC()
			}
			progress(ev)
		}
	}

	emit(ProgressEvent{Event: "sample_start", Message: cfg.Dataset})

	total, err := datasetSize(ctx, httpc, cfg)
	if err != nil {
		return nil, fmt.Errorf("dataset size: %w", err)
	}

	subset := int64(float64(total) * cfg.Fraction)
	if subset < 1 {
		subset = 1
	}

	pageSize := int64(cfg.PageSize)
	numPages := (total + pageSize - 1) / pageSize
	wantPages := (subset + pageSize - 1) / pageSize

	// Deterministic page order for the given seed.
	order := rand.New(rand.NewSource(cfg.Seed)).Perm(int(numPages))[:wantPages]

	pages := make([][]Record, len(order))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.PageWorkers)

	for i, p := range order {
		i, p := i, p
		g.Go(func() error {
			offset := int64(p) * pageSize
			length := pageSize
			if offset+length > total {
				length = total - offset
			}
			resp, err := fetchRows(gctx, httpc, cfg, offset, length)
			if err != nil {
				return fmt.Errorf("rows at offset %d: %w", offset, err)
			}

			recs := make([]Record, 0, len(resp.Rows))
			for _, row := range resp.Rows {
				var r Record
				if err := json.Unmarshal(row.Row, &r); err != nil {
					return fmt.Errorf("row %d: %w", row.RowIdx, err)
				}
				if r.ID == 0 {
					r.ID = row.RowIdx
				}
				recs = append(recs, r)
			}
			pages[i] = recs
			emit(ProgressEvent{Event: "sample_page", Completed: len(recs), Total: int(subset)})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]Record, 0, subset)
	for _, page := range pages {
		records = append(records, page...)
	}
	if int64(len(records)) > subset {
		records = records[:subset]
	}

	emit(ProgressEvent{
		Event:   "sample_done",
		Total:   len(records),
		Message: fmt.Sprintf("sampled %d of %d rows", len(records), total),
	})
	return records, nil
}
