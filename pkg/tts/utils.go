package tts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// VerifyAudioFile checks that a synthesized file exists and is not truncated.
func VerifyAudioFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("audio file missing: %w", err)
	}
	if info.Size() < MinAudioSize {
		return fmt.Errorf("audio file too small (%d bytes)", info.Size())
	}
	return nil
}

// WithExt appends .ext to path unless it already ends with it.
func WithExt(path, ext string) string {
	if strings.EqualFold(filepath.Ext(path), "."+ext) {
		return path
	}
	return path + "." + ext
}
