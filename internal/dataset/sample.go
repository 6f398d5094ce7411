// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package dataset assembles validated records plus their downloaded image
// files into a local SQLite dataset store.
package dataset

import (
	"context"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"coyopipe/pkg/coyopipe"
)

// Sample is one dataset row: the image reference, derived file metadata,
// the caption fields, and the precomputed scores carried over from the
// record.
type Sample struct {
	ID            int64
	FilePath      string
	URL           string
	Caption       string
	TextLength    int
	WordCount     int
	NumTokensGPT  int
	NumTokensBERT int

	// Derived from the file at assembly time.
	Width     int
	Height    int
	SizeBytes int64
	MimeType  string

	ClipSimilarityVITB32  *float64
	ClipSimilarityVITL14  *float64
	NSFWScoreGantman      *float64
	NSFWScoreOpenNSFW2    *float64
	AestheticScoreLaionV2 *float64
	NumFaces              *int

	CreatedAt time.Time
}

// BuildSample maps a validated record and its image file to a Sample.
// Metadata that cannot be derived degrades to zero values rather than
// failing assembly: the record survived filtering, so the file is a valid
// image even if its dimensions cannot be decoded.
func BuildSample(rec coyopipe.Record, imagePath string) Sample {
	sm := Sample{
		ID:            rec.ID,
		FilePath:      imagePath,
		URL:           rec.URL,
		Caption:       rec.Text,
		TextLength:    rec.TextLength,
		WordCount:     rec.WordCount,
		NumTokensGPT:  rec.NumTokensGPT,
		NumTokensBERT: rec.NumTokensBERT,

		ClipSimilarityVITB32:  rec.ClipSimilarityVITB32,
		ClipSimilarityVITL14:  rec.ClipSimilarityVITL14,
		NSFWScoreGantman:      rec.NSFWScoreGantman,
		NSFWScoreOpenNSFW2:    rec.NSFWScoreOpenNSFW2,
		AestheticScoreLaionV2: rec.AestheticScoreLaionV2,
		NumFaces:              rec.NumFaces,

		CreatedAt: time.Now().UTC(),
	}

	if fi, err := os.Stat(imagePath); err == nil {
		sm.SizeBytes = fi.Size()
	}
	if mt, err := mimetype.DetectFile(imagePath); err == nil {
		sm.MimeType = mt.String()
	}
	if f, err := os.Open(imagePath); err == nil {
		if cfg, _, err := image.DecodeConfig(f); err == nil {
			sm.Width = cfg.Width
			sm.Height = cfg.Height
		}
		f.Close()
	}
	return sm
}

// Assemble builds a Sample for every record and bulk-inserts them into the
// store at dbPath. Records are assumed to be the Filter's output: every
// record must have an image file in imageDir, and assembly fails if one
// does not, since that breaks the contract with the filter stage.
func Assemble(ctx context.Context, records []coyopipe.Record, imageDir, dbPath string) (int, error) {
	paths, err := coyopipe.ImagePaths(imageDir)
	if err != nil {
		return 0, err
	}

	samples := make([]Sample, 0, len(records))
	for _, rec := range records {
		p, ok := paths[rec.ID]
		if !ok {
			return 0, fmt.Errorf("record %d: image file missing from %s (run filter first)", rec.ID, imageDir)
		}
		samples = append(samples, BuildSample(rec, p))
	}

	store, err := Open(dbPath)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	if err := store.InsertSamples(ctx, samples); err != nil {
		return 0, err
	}
	return len(samples), nil
}
