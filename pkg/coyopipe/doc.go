// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

/*
Package coyopipe samples image-URL datasets, downloads the images, and
filters the record set down to entries whose image landed on disk and is
structurally valid.

# Pipeline

Three library stages, each consuming the previous stage's output:

  - Sample: pick a random fraction of rows from a remote dataset via the
    Hugging Face datasets-server and return them as Records.
  - Fetch: download each Record's image into a target directory with a
    bounded worker pool, keeping only files whose byte signature is a
    recognized image type. Outcomes are persisted in a manifest.
  - Filter: reconcile the Record collection against the directory and
    return only Records with a present, valid image file, preserving
    input order.

# Quick Start

	records, err := coyopipe.LoadRecords("subset.jsonl")
	if err != nil {
		log.Fatal(err)
	}

	cfg := coyopipe.DefaultSettings()
	cfg.ImageDir = "./images"

	report, err := coyopipe.Fetch(ctx, records, cfg, nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("fetched %d of %d\n", report.Succeeded, report.Attempted)

	kept, _, err := coyopipe.Filter(records, cfg.ImageDir, nil)

# Validity

A downloaded file counts as an image only if its leading bytes carry a
known image signature. The HTTP Content-Type header is ignored for this
decision; servers routinely mislabel error pages as images. No validation
beyond the signature check is performed, so a truncated file with an
intact header still passes.

# Failure Isolation

Fetch failures are per-record: a dead link, a 404, or an HTML error page
is counted and recorded in the manifest, and the batch continues. The run
only fails outright when the target directory itself is unusable.

# Progress Events

All stages accept an optional ProgressFunc receiving ProgressEvents, the
same callback shape the CLI renders as a progress bar or JSON lines.
*/
package coyopipe
