// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package coyopipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Fetch attempts to materialize every record's image into cfg.ImageDir.
//
// Each record is fetched at most once; there are no retries. A failed
// record leaves no file behind and never aborts the batch: the only fatal
// error is an unusable target directory. Outcomes are written to a
// manifest in the image directory and summarized in the returned report.
//
// Downloads run with bounded parallelism (cfg.MaxActive). Records are
// independent; each one writes a distinctly named file, so completion
// order does not matter.
func Fetch(ctx context.Context, records []Record, cfg Settings, progress ProgressFunc) (*FetchReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.ImageDir == "" {
		cfg.ImageDir = "images"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxActive <= 0 {
		cfg.MaxActive = runtime.GOMAXPROCS(0)
	}

	if err := os.MkdirAll(cfg.ImageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
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

	emit(ProgressEvent{Event: "fetch_start", Total: len(records)})

	manifest := newManifest()
	var manifestMu sync.Mutex
	report := &FetchReport{Attempted: len(records)}

	var completed atomic.Int64
	var succeeded, netErrs, httpErrs, contentErrs atomic.Int64

	// Overall concurrency limiter (ctx-aware acquisition)
	type token struct{}
	lim := make(chan token, cfg.MaxActive)

	var wg sync.WaitGroup

LOOP:
	for _, rec := range records {
		// Stop scheduling more work once canceled
		select {
		case <-ctx.Done():
			break LOOP
		default:
		}

		r := rec // capture for goroutine

		// Acquire a slot or abort if canceled
		select {
		case lim <- token{}:
		case <-ctx.Done():
			break LOOP
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-lim }()

			emit(ProgressEvent{Event: "file_start", ID: r.ID, URL: r.URL})

			name, contentType, err := fetchOne(ctx, httpc, r, cfg)
			n := int(completed.Add(1))

			manifestMu.Lock()
			if err != nil {
				var fe *FetchError
				kind, reason := KindNetwork, err.Error()
				if errors.As(err, &fe) {
					kind, reason = fe.Kind, fe.Err.Error()
				}
				manifest.Outcomes = append(manifest.Outcomes, Outcome{
					ID:     r.ID,
					Status: "failed",
					Kind:   kind,
					Reason: reason,
				})
				manifestMu.Unlock()

				switch kind {
				case KindHTTP:
					httpErrs.Add(1)
				case KindContent:
					contentErrs.Add(1)
				default:
					netErrs.Add(1)
				}
				emit(ProgressEvent{
					Level: "warn", Event: "file_failed",
					ID: r.ID, URL: r.URL, Kind: kind,
					Completed: n, Total: len(records),
					Message: reason,
				})
				return
			}

			manifest.Outcomes = append(manifest.Outcomes, Outcome{
				ID:          r.ID,
				Status:      "ok",
				Path:        name,
				ContentType: contentType,
			})
			manifestMu.Unlock()

			succeeded.Add(1)
			emit(ProgressEvent{
				Event: "file_done", ID: r.ID, URL: r.URL,
				Path: filepath.Join(cfg.ImageDir, name),
				Completed: n, Total: len(records),
			})
		}()
	}

	wg.Wait()

	report.Succeeded = int(succeeded.Load())
	report.NetworkErrors = int(netErrs.Load())
	report.HTTPErrors = int(httpErrs.Load())
	report.ContentErrors = int(contentErrs.Load())
	report.Failed = report.NetworkErrors + report.HTTPErrors + report.ContentErrors
	manifest.Report = *report

	if err := manifest.Save(cfg.ImageDir); err != nil {
		return report, fmt.Errorf("write manifest: %w", err)
	}

	if ctx.Err() != nil {
		return report, ctx.Err()
	}

	emit(ProgressEvent{
		Event:   "done",
		Total:   len(records),
		Message: fmt.Sprintf("fetched %d of %d (failed %d)", report.Succeeded, report.Attempted, report.Failed),
	})
	return report, nil
}

// fetchOne downloads a single record's image into cfg.ImageDir and returns
// the final file name and detected content type. On any error the partial
// file is removed so a failed record leaves no trace on disk.
func fetchOne(ctx context.Context, httpc *http.Client, r Record, cfg Settings) (string, string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "GET", r.URL, nil)
	if err != nil {
		return "", "", &FetchError{ID: r.ID, URL: r.URL, Kind: KindNetwork, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := httpc.Do(req)
	if err != nil {
		return "", "", &FetchError{ID: r.ID, URL: r.URL, Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", &FetchError{ID: r.ID, URL: r.URL, Kind: KindHTTP, Err: fmt.Errorf("bad status: %s", resp.Status)}
	}

	tmp := filepath.Join(cfg.ImageDir, fmt.Sprintf("%d.part", r.ID))
	out, err := os.Create(tmp)
	if err != nil {
		return "", "", &FetchError{ID: r.ID, URL: r.URL, Kind: KindContent, Err: err}
	}

	_, err = io.Copy(out, resp.Body)
	cerr := out.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return "", "", &FetchError{ID: r.ID, URL: r.URL, Kind: KindNetwork, Err: err}
	}

	// Validate the bytes actually written, not the Content-Type header.
	mt, err := sniffImage(tmp)
	if err != nil {
		os.Remove(tmp)
		return "", "", &FetchError{ID: r.ID, URL: r.URL, Kind: KindContent, Err: err}
	}

	name := imageFileName(r.ID, mt)
	if err := os.Rename(tmp, filepath.Join(cfg.ImageDir, name)); err != nil {
		os.Remove(tmp)
		return "", "", &FetchError{ID: r.ID, URL: r.URL, Kind: KindContent, Err: err}
	}
	return name, mt.String(), nil
}
