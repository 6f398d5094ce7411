// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package coyopipe

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, dir, name string, b []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, b, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func ids(records []Record) []int64 {
	out := make([]int64, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestFilter_KeepsValidOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "1.jpg", jpegBytes)
	writeFile(t, dir, "3.png", pngBytes)
	writeFile(t, dir, "4.jpg", htmlBytes)  // bad bytes
	writeFile(t, dir, "5.jpg", nil)        // empty
	// record 2 has no file at all

	records := []Record{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}}
	kept, report, err := Filter(records, dir, nil)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}

	if !reflect.DeepEqual(ids(kept), []int64{1, 3}) {
		t.Errorf("Expected [1 3], got %v", ids(kept))
	}
	if report.Input != 5 || report.Kept != 2 || report.Excluded != 3 {
		t.Errorf("Unexpected report: %+v", report)
	}
}

func TestFilter_OrderPreserved(t *testing.T) {
	dir := t.TempDir()
	for _, id := range []int64{10, 20, 30, 40} {
		writeFile(t, dir, fmt.Sprintf("%d.jpg", id), jpegBytes)
	}

	records := []Record{{ID: 40}, {ID: 10}, {ID: 99}, {ID: 30}, {ID: 20}}
	kept, _, err := Filter(records, dir, nil)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if !reflect.DeepEqual(ids(kept), []int64{40, 10, 30, 20}) {
		t.Errorf("Order not preserved: %v", ids(kept))
	}
}

func TestFilter_Idempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "1.jpg", jpegBytes)
	writeFile(t, dir, "2.gif", gifBytes)

	records := []Record{{ID: 1}, {ID: 2}, {ID: 3}}
	first, _, err := Filter(records, dir, nil)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	second, _, err := Filter(records, dir, nil)
	if err != nil {
		t.Fatalf("Second Filter failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Filter not idempotent: %v vs %v", ids(first), ids(second))
	}
}

func TestFilter_OutputNeverLargerThanInput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "1.jpg", jpegBytes)
	// A stray file with no matching record must not add output rows.
	writeFile(t, dir, "999.jpg", jpegBytes)

	records := []Record{{ID: 1}}
	kept, _, err := Filter(records, dir, nil)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if len(kept) > len(records) {
		t.Errorf("Output larger than input: %d > %d", len(kept), len(records))
	}
}

func TestFilter_UsesManifestWhenPresent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "1.jpg", jpegBytes)
	writeFile(t, dir, "2.jpg", jpegBytes)

	// Manifest only claims record 1; record 2's file exists but was not
	// part of the recorded run.
	m := newManifest()
	m.Outcomes = []Outcome{{ID: 1, Status: "ok", Path: "1.jpg", ContentType: "image/jpeg"}}
	if err := m.Save(dir); err != nil {
		t.Fatalf("Save manifest: %v", err)
	}

	kept, _, err := Filter([]Record{{ID: 1}, {ID: 2}}, dir, nil)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if !reflect.DeepEqual(ids(kept), []int64{1}) {
		t.Errorf("Expected manifest to drive selection, got %v", ids(kept))
	}
}

func TestFilter_ManifestEntryRevalidated(t *testing.T) {
	dir := t.TempDir()

	// Manifest claims success but the file is gone and another is junk.
	m := newManifest()
	m.Outcomes = []Outcome{
		{ID: 1, Status: "ok", Path: "1.jpg", ContentType: "image/jpeg"},
		{ID: 2, Status: "ok", Path: "2.jpg", ContentType: "image/jpeg"},
	}
	if err := m.Save(dir); err != nil {
		t.Fatalf("Save manifest: %v", err)
	}
	writeFile(t, dir, "2.jpg", htmlBytes)

	kept, _, err := Filter([]Record{{ID: 1}, {ID: 2}}, dir, nil)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if len(kept) != 0 {
		t.Errorf("Stale manifest entries must not survive revalidation, got %v", ids(kept))
	}
}

func TestFilter_DirectoryScanFallback(t *testing.T) {
	// No manifest: ids come from file stems, like a directory populated
	// by an unrelated earlier run.
	dir := t.TempDir()
	writeFile(t, dir, "7.jpeg", jpegBytes)
	writeFile(t, dir, "notes.txt", []byte("not a record file"))
	writeFile(t, dir, "8.part", jpegBytes)

	kept, _, err := Filter([]Record{{ID: 7}, {ID: 8}}, dir, nil)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if !reflect.DeepEqual(ids(kept), []int64{7}) {
		t.Errorf("Expected [7], got %v", ids(kept))
	}
}

func TestFilter_MissingDirectoryIsError(t *testing.T) {
	_, _, err := Filter([]Record{{ID: 1}}, filepath.Join(t.TempDir(), "nope"), nil)
	if err == nil {
		t.Fatal("Expected error for missing directory")
	}
}

func TestFilter_DoesNotMutateFiles(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "1.jpg", jpegBytes)

	before, _ := os.ReadFile(p)
	if _, _, err := Filter([]Record{{ID: 1}}, dir, nil); err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	after, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("File missing after filter: %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Error("Filter modified a file")
	}
}
