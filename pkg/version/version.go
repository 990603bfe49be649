// Package version holds the build version, overridable via -ldflags.
package version

import "fmt"

// Version is set at build time with -ldflags "-X storymap/pkg/version.Version=...".
var Version = "v0.3.1"

// UserAgent is sent with outbound provider requests.
func UserAgent() string {
	return fmt.Sprintf("StoryMap/%s (life story maps)", Version)
}
