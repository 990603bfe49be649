// Package ui embeds the browser client served at the site root.
package ui

import "embed"

// DistFS holds the built client under dist/.
//
//go:embed dist
var DistFS embed.FS
