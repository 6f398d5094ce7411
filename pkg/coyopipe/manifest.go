// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package coyopipe

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ManifestName is the file Fetch writes alongside the images.
const ManifestName = "manifest.json"

// Outcome records what happened to one record during a fetch run.
type Outcome struct {
	ID int64 `json:"id"`

	// Status is "ok" or "failed".
	Status string `json:"status"`

	// Path is the image file name within the image directory, set on success.
	Path string `json:"path,omitempty"`

	// ContentType is the detected MIME type, set on success.
	ContentType string `json:"contentType,omitempty"`

	// Kind and Reason describe a failure.
	Kind   string `json:"kind,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Manifest is the structured result of a fetch run, persisted next to the
// downloaded images. The Filter consumes it as a path hint when present
// and falls back to scanning the directory when it is not.
type Manifest struct {
	RunID      string      `json:"runId"`
	StartedAt  time.Time   `json:"startedAt"`
	FinishedAt time.Time   `json:"finishedAt"`
	Report     FetchReport `json:"report"`
	Outcomes   []Outcome   `json:"outcomes"`
}

func newManifest() *Manifest {
	return &Manifest{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
}

// byID returns a lookup of successful outcomes keyed by record ID.
func (m *Manifest) byID() map[int64]Outcome {
	out := make(map[int64]Outcome, len(m.Outcomes))
	for _, o := range m.Outcomes {
		if o.Status == "ok" {
			out[o.ID] = o
		}
	}
	return out
}

// Save writes the manifest into dir atomically.
func (m *Manifest) Save(dir string) error {
	m.FinishedAt = time.Now().UTC()

	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	dst := filepath.Join(dir, ManifestName)
	tmp := dst + ".part"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

// LoadManifest reads the manifest from dir. Returns an error satisfying
// os.IsNotExist when no manifest was written there.
func LoadManifest(dir string) (*Manifest, error) {
	b, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
