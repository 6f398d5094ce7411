// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package coyopipe

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Filter reconciles a record collection against the image directory and
// returns the subset whose image file is present, non-empty, and has a
// recognized image byte signature, in the original order.
//
// When a fetch manifest exists in dir it supplies the id-to-file mapping;
// otherwise the directory is scanned and ids are parsed from file stems.
// Either way each candidate file is re-validated from its bytes, so the
// Filter is correct against a directory populated by any earlier run.
//
// Missing or invalid files are the expected common case (dead links) and
// are excluded silently. Filter never mutates records or files.
func Filter(records []Record, dir string, progress ProgressFunc) ([]Record, *FilterReport, error) {
	paths, err := ImagePaths(dir)
	if err != nil {
		return nil, nil, err
	}

	kept := make([]Record, 0, len(records))
	for _, r := range records {
		p, ok := paths[r.ID]
		if !ok {
			continue
		}
		if !IsValidImageFile(p) {
			continue
		}
		kept = append(kept, r)
	}

	report := &FilterReport{
		Input:    len(records),
		Kept:     len(kept),
		Excluded: len(records) - len(kept),
	}
	if progress != nil {
		progress(ProgressEvent{
			Event:     "filter_done",
			Total:     report.Input,
			Completed: report.Kept,
			Message:   fmt.Sprintf("kept %d of %d records", report.Kept, report.Input),
		})
	}
	return kept, report, nil
}

// ImagePaths maps record IDs to candidate image file paths, preferring the
// manifest and falling back to a directory scan. Callers that need
// validated paths should still check each file with IsValidImageFile.
func ImagePaths(dir string) (map[int64]string, error) {
	if m, err := LoadManifest(dir); err == nil {
		out := make(map[int64]string)
		for id, o := range m.byID() {
			out[id] = filepath.Join(dir, o.Path)
		}
		return out, nil
	}
	return scanImageDir(dir)
}

// scanImageDir builds the id-to-path map from directory contents. File
// stems that do not parse as integers (the manifest, stray temp files)
// are skipped.
func scanImageDir(dir string) (map[int64]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read image directory: %w", err)
	}

	out := make(map[int64]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		stem := name
		if ext := filepath.Ext(name); ext != "" {
			if ext == ".part" {
				continue
			}
			stem = name[:len(name)-len(ext)]
		}
		id, err := strconv.ParseInt(stem, 10, 64)
		if err != nil {
			continue
		}
		out[id] = filepath.Join(dir, name)
	}
	return out, nil
}
