// Package media stores images uploaded from the editor.
package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/oklog/ulid/v2"
)

// ErrInvalidImage is returned when the upload is not a decodable image.
var ErrInvalidImage = errors.New("invalid image")

// Default processing limits.
const (
	DefaultMaxWidth = 1600
	DefaultQuality  = 85
)

// Uploader writes uploads below Dir and serves them under URLPrefix.
type Uploader struct {
	Dir       string
	URLPrefix string
	MaxWidth  int
	Quality   int
	MaxBytes  int64
}

// NewUploader returns an Uploader with defaults for zero limits.
func NewUploader(dir string, maxWidth, quality int, maxBytes int64) *Uploader {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Uploader{
		Dir:       dir,
		URLPrefix: "/uploads",
		MaxWidth:  maxWidth,
		Quality:   quality,
		MaxBytes:  maxBytes,
	}
}

// SaveBase64 decodes a base64 payload (raw or data URL) and stores it.
func (u *Uploader) SaveBase64(filename, data string) (string, error) {
	if data == "" {
		return "", fmt.Errorf("%w: empty data", ErrInvalidImage)
	}
	if i := strings.Index(data, ";base64,"); i >= 0 && strings.HasPrefix(data, "data:") {
		data = data[i+len(";base64,"):]
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return u.Save(filename, raw)
}

// Save decodes raw, downscales it to MaxWidth and writes it under a fresh
// ULID name. PNG and GIF uploads are kept as PNG, everything else becomes JPEG.
// It returns the public URL of the stored file.
func (u *Uploader) Save(filename string, raw []byte) (string, error) {
	if u.MaxBytes > 0 && int64(len(raw)) > u.MaxBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrInvalidImage, len(raw), u.MaxBytes)
	}
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	if img.Bounds().Dx() > u.MaxWidth {
		img = imaging.Resize(img, u.MaxWidth, 0, imaging.Lanczos)
	}

	ext := ".jpg"
	outFormat := imaging.JPEG
	if format == "png" || format == "gif" {
		ext = ".png"
		outFormat = imaging.PNG
	}

	name := ulid.Make().String() + "_" + slug(filename) + ext
	if err := os.MkdirAll(u.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create uploads directory: %w", err)
	}
	path := filepath.Join(u.Dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload: %w", err)
	}
	if err := imaging.Encode(f, img, outFormat, imaging.JPEGQuality(u.Quality)); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	return strings.TrimRight(u.URLPrefix, "/") + "/" + name, nil
}

// slug reduces a client file name to a short, URL-safe stem.
func slug(filename string) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	var b strings.Builder
	for _, r := range strings.ToLower(stem) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == ' ' || r == '.':
			b.WriteByte('-')
		}
		if b.Len() >= 40 {
			break
		}
	}
	s := strings.Trim(b.String(), "-")
	if s == "" || s == "." {
		return "image"
	}
	return s
}
