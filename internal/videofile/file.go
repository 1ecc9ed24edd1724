// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package videofile describes user-selected video files and validates them
// before upload.
package videofile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// ErrNoContent is returned by Open when the file has no content source.
var ErrNoContent = errors.New("videofile: no content source")

// File is a candidate video: name, declared size and declared MIME type, plus
// a re-openable content source.
type File struct {
	Name        string
	Size        int64
	ContentType string

	open func() (io.ReadCloser, error)
}

// New creates a File from explicit metadata and an opener.
func New(name string, size int64, contentType string, open func() (io.ReadCloser, error)) File {
	return File{Name: name, Size: size, ContentType: contentType, open: open}
}

// FromBytes creates an in-memory File.
func FromBytes(name, contentType string, data []byte) File {
	return New(name, int64(len(data)), contentType, func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

// FromPath stats a file on disk. The content type is derived from the
// extension, which may be empty for unknown extensions.
func FromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	name := filepath.Base(path)
	ct := TypeByExtension(filepath.Ext(name))
	return New(name, info.Size(), ct, func() (io.ReadCloser, error) {
		return os.Open(path)
	}), nil
}

var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
}

// TypeByExtension returns the MIME type for ext (with leading dot), consulting
// the system tables first. Unknown extensions yield "".
func TypeByExtension(ext string) string {
	ext = strings.ToLower(ext)
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return videoTypes[ext]
}

// Open returns a fresh reader over the file content.
func (f File) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, ErrNoContent
	}
	return f.open()
}

// String renders the file for logs.
func (f File) String() string {
	ct := f.ContentType
	if ct == "" {
		ct = "unknown type"
	}
	return fmt.Sprintf("%s (%s, %s)", f.Name, FormatSize(f.Size), ct)
}

// FormatSize renders a byte count for humans, e.g. "30 MiB".
func FormatSize(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(n))
}

// Extension returns the lowercase extension of name without the dot.
func Extension(name string) string {
	ext := filepath.Ext(name)
	if ext == "" || ext == name {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsVideo reports whether the declared MIME type is a video type.
func IsVideo(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mt, "video/")
}
