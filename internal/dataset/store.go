// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS samples (
	id                       INTEGER PRIMARY KEY,
	file_path                TEXT NOT NULL,
	url                      TEXT NOT NULL,
	caption                  TEXT,
	text_length              INTEGER,
	word_count               INTEGER,
	num_tokens_gpt           INTEGER,
	num_tokens_bert          INTEGER,
	width                    INTEGER,
	height                   INTEGER,
	size_bytes               INTEGER,
	mime_type                TEXT,
	clip_similarity_vitb32   REAL,
	clip_similarity_vitl14   REAL,
	nsfw_score_gantman       REAL,
	nsfw_score_opennsfw2     REAL,
	aesthetic_score_laion_v2 REAL,
	num_faces                INTEGER,
	created_at               TIMESTAMP NOT NULL
);`

// Store persists assembled samples in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the dataset database at dbPath and
// ensures the samples schema exists. WAL mode keeps reads cheap while a
// bulk insert runs.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertSamples bulk-inserts samples in a single transaction. An existing
// sample with the same id is replaced, so re-assembling the same directory
// is idempotent.
func (s *Store) InsertSamples(ctx context.Context, samples []Sample) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO samples (
			id, file_path, url, caption, text_length, word_count,
			num_tokens_gpt, num_tokens_bert, width, height, size_bytes,
			mime_type, clip_similarity_vitb32, clip_similarity_vitl14,
			nsfw_score_gantman, nsfw_score_opennsfw2,
			aesthetic_score_laion_v2, num_faces, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, sm := range samples {
		_, err := stmt.ExecContext(ctx,
			sm.ID, sm.FilePath, sm.URL, sm.Caption, sm.TextLength, sm.WordCount,
			sm.NumTokensGPT, sm.NumTokensBERT, sm.Width, sm.Height, sm.SizeBytes,
			sm.MimeType, sm.ClipSimilarityVITB32, sm.ClipSimilarityVITL14,
			sm.NSFWScoreGantman, sm.NSFWScoreOpenNSFW2,
			sm.AestheticScoreLaionV2, sm.NumFaces, sm.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert sample %d: %w", sm.ID, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of samples in the store.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM samples").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return n, nil
}

// GetByID returns one sample by its record ID.
func (s *Store) GetByID(ctx context.Context, id int64) (*Sample, error) {
	sm := &Sample{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, file_path, url, caption, text_length, word_count,
			num_tokens_gpt, num_tokens_bert, width, height, size_bytes,
			mime_type, clip_similarity_vitb32, clip_similarity_vitl14,
			nsfw_score_gantman, nsfw_score_opennsfw2,
			aesthetic_score_laion_v2, num_faces, created_at
		 FROM samples WHERE id = ?`, id,
	).Scan(&sm.ID, &sm.FilePath, &sm.URL, &sm.Caption, &sm.TextLength, &sm.WordCount,
		&sm.NumTokensGPT, &sm.NumTokensBERT, &sm.Width, &sm.Height, &sm.SizeBytes,
		&sm.MimeType, &sm.ClipSimilarityVITB32, &sm.ClipSimilarityVITL14,
		&sm.NSFWScoreGantman, &sm.NSFWScoreOpenNSFW2,
		&sm.AestheticScoreLaionV2, &sm.NumFaces, &sm.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("sample %d: not found", id)
		}
		return nil, fmt.Errorf("get sample: %w", err)
	}
	return sm, nil
}
