// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package coyopipe

import (
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// sniffImage detects the file's MIME type from its bytes and returns it if
// it is an image type. The HTTP Content-Type header is never consulted:
// servers lie, so validity is decided by the bytes on disk.
func sniffImage(path string) (*mimetype.MIME, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.Size() == 0 {
		return nil, ErrEmptyBody
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("%w (got %s)", ErrNotImage, mt.String())
	}
	return mt, nil
}

// IsValidImageFile reports whether the file at path exists, is non-empty,
// and has a recognized image byte signature.
func IsValidImageFile(path string) bool {
	_, err := sniffImage(path)
	return err == nil
}

// imageFileName derives the local file name for a record from its ID and
// the detected MIME type. mimetype always supplies an extension for image
// types; ".bin" is a safety net for exotic subtypes without one.
func imageFileName(id int64, mt *mimetype.MIME) string {
	ext := mt.Extension()
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("%d%s", id, ext)
}
