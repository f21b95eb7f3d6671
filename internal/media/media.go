// Package media validates catalog images and stores them in Google Drive or an S3 bucket.
package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"nahueltrek/api/internal/apperr"
)

const DefaultMaxBytes = 5 * 1024 * 1024

var allowedTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// Image is an upload as received from the client.
type Image struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Result struct {
	URL      string `json:"url"`
	FileID   string `json:"fileId"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

type ImageStore interface {
	Upload(ctx context.Context, img Image) (Result, error)
	Delete(ctx context.Context, fileID string) error
}

// Validate rejects anything but JPG, PNG or WEBP up to maxBytes.
func Validate(img Image, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if _, ok := allowedTypes[strings.ToLower(img.ContentType)]; !ok {
		return apperr.Validation("file", "invalid file type, only JPG, PNG or WEBP")
	}
	if img.Size > maxBytes {
		return apperr.Validation("file", fmt.Sprintf("file too large, maximum %dMB", maxBytes/(1024*1024)))
	}
	if img.Size <= 0 {
		return apperr.Validation("file", "file is empty")
	}
	return nil
}

// UniqueName builds nahueltrek_<unix millis>.<ext>, keeping the client's extension when present.
func UniqueName(filename, contentType string, now time.Time) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
	if ext == "" {
		ext = allowedTypes[strings.ToLower(contentType)]
	}
	return fmt.Sprintf("nahueltrek_%d.%s", now.UnixMilli(), ext)
}

var driveIDPattern = regexp.MustCompile(`[?&]id=([^&]+)`)

// ExtractFileID returns the id query value of a Drive URL, or "" when there is none.
func ExtractFileID(url string) string {
	match := driveIDPattern.FindStringSubmatch(url)
	if match == nil {
		return ""
	}
	return match[1]
}
