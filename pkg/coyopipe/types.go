// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package coyopipe

import "time"

// Record is one sampled row of the COYO dataset: an image URL, its numeric
// identifier, the caption, and the precomputed scores published with the
// dataset. The pipeline treats every field except ID and URL as opaque.
//
// Score fields are pointers because upstream rows may omit them; a nil score
// is carried through to the dataset store as NULL.
type Record struct {
	// ID is the row identifier. It names the downloaded image file
	// (<id><ext>) and the dataset sample.
	ID int64 `json:"id"`

	// URL is the source image URL.
	URL string `json:"url"`

	// Text is the caption paired with the image.
	Text string `json:"text,omitempty"`

	TextLength    int `json:"text_length,omitempty"`
	WordCount     int `json:"word_count,omitempty"`
	NumTokensGPT  int `json:"num_tokens_gpt,omitempty"`
	NumTokensBERT int `json:"num_tokens_bert,omitempty"`

	// CLIP text-image cosine similarities (ViT-B/32 and ViT-L/14).
	ClipSimilarityVITB32 *float64 `json:"clip_similarity_vitb32,omitempty"`
	ClipSimilarityVITL14 *float64 `json:"clip_similarity_vitl14,omitempty"`

	// NSFW likelihoods from the two published classifiers.
	NSFWScoreGantman   *float64 `json:"nsfw_score_gantman,omitempty"`
	NSFWScoreOpenNSFW2 *float64 `json:"nsfw_score_opennsfw2,omitempty"`

	// AestheticScoreLaionV2 is the LAION aesthetic predictor score.
	AestheticScoreLaionV2 *float64 `json:"aesthetic_score_laion_v2,omitempty"`

	// NumFaces is the SCRFD face count.
	NumFaces *int `json:"num_faces,omitempty"`
}

// Settings configures the pipeline stages.
//
// All fields have defaults; the zero value works for everything except
// sampling, which needs a Dataset. Example:
//
//	cfg := coyopipe.DefaultSettings()
//	cfg.ImageDir = "./images"
//	cfg.Fraction = 0.05
type Settings struct {
	// Dataset is the Hugging Face dataset to sample, in "owner/name" form.
	// If empty, defaults to "kakaobrain/coyo-700m".
	Dataset string

	// Config and Split select the dataset configuration and split on the
	// datasets server. Default "default" and "train".
	Config string
	Split  string

	// Fraction is the share of rows to sample, in (0, 1].
	// If 0, defaults to 0.1.
	Fraction float64

	// Seed drives the sampling shuffle so a run is reproducible.
	// If 0, defaults to 42.
	Seed int64

	// Endpoint is the datasets-server base URL. Override for mirrors or
	// tests. If empty, defaults to DefaultEndpoint.
	Endpoint string

	// Token is a Hugging Face access token for gated datasets.
	// Also read from the HF_TOKEN environment variable by the CLI.
	Token string

	// ImageDir is the target directory for downloaded images.
	// If empty, defaults to "images".
	ImageDir string

	// Timeout bounds each image request. If 0, defaults to 10s.
	Timeout time.Duration

	// MaxActive limits how many images download simultaneously.
	// If <= 0, defaults to GOMAXPROCS.
	MaxActive int

	// PageSize is the number of rows fetched per datasets-server request.
	// The server caps pages at 100. If <= 0, defaults to 100.
	PageSize int

	// PageWorkers bounds concurrent row-page requests while sampling.
	// If <= 0, defaults to 4.
	PageWorkers int
}

// DefaultSettings returns Settings with defaults filled in.
func DefaultSettings() Settings {
	return Settings{
		Dataset:     "kakaobrain/coyo-700m",
		Config:      "default",
		Split:       "train",
		Fraction:    0.1,
		Seed:        42,
		ImageDir:    "images",
		Timeout:     10 * time.Second,
		MaxActive:   8,
		PageSize:    100,
		PageWorkers: 4,
	}
}

// ProgressEvent is one update emitted while a stage runs.
//
// Event values:
//   - "sample_start", "sample_page", "sample_done" (Sampler)
//   - "fetch_start", "file_start", "file_done", "file_failed", "done" (Fetcher)
//   - "filter_done" (Filter)
//   - "error"
type ProgressEvent struct {
	// Time is when the event occurred (UTC).
	Time time.Time `json:"time"`

	// Level is "info", "warn" or "error". Empty defaults to "info".
	Level string `json:"level,omitempty"`

	// Event is the event type identifier.
	Event string `json:"event"`

	// ID is the record the event concerns, when per-record.
	ID int64 `json:"id,omitempty"`

	// URL is the record's source URL, when per-record.
	URL string `json:"url,omitempty"`

	// Path is the local file path, when one exists.
	Path string `json:"path,omitempty"`

	// Kind classifies a failure: "network", "http" or "content".
	Kind string `json:"kind,omitempty"`

	// Total is the number of records the stage will process.
	Total int `json:"total,omitempty"`

	// Completed counts records processed so far.
	Completed int `json:"completed,omitempty"`

	// Message carries additional context or error details.
	Message string `json:"message,omitempty"`
}

// ProgressFunc receives progress events. It is invoked from multiple
// goroutines and must be safe for concurrent use. A nil ProgressFunc
// disables progress reporting.
type ProgressFunc func(ProgressEvent)

// FetchReport summarizes one Fetch run so the operator can gauge yield
// from a URL set that always has natural attrition.
type FetchReport struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`

	// Failure counts by kind.
	NetworkErrors int `json:"networkErrors"`
	HTTPErrors    int `json:"httpErrors"`
	ContentErrors int `json:"contentErrors"`
}

// FilterReport summarizes one Filter pass.
type FilterReport struct {
	Input    int `json:"input"`
	Kept     int `json:"kept"`
	Excluded int `json:"excluded"`
}
