package render

import (
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/paulmach/orb/geojson"
)

// Diff lists feature keys that changed since the previous render.
type Diff struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Updated []string `json:"updated,omitempty"`
}

// Empty reports whether nothing changed.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Updated) == 0
}

// Renderer remembers the last overlay pushed to the widget.
type Renderer struct {
	prev map[string]string
	key  string
}

// NewRenderer returns a renderer with nothing drawn.
func NewRenderer() *Renderer {
	return &Renderer{prev: map[string]string{}}
}

// Apply records o as the drawn overlay and returns what changed.
func (r *Renderer) Apply(o *Overlay) Diff {
	next := make(map[string]string)
	var order []string
	for _, fc := range []*geojson.FeatureCollection{o.Markers, o.Paths} {
		for _, f := range fc.Features {
			key, _ := f.ID.(string)
			b, err := json.Marshal(f)
			if err != nil {
				slog.Warn("Render: failed to encode feature", "key", key, "error", err)
				continue
			}
			next[key] = string(b)
			order = append(order, key)
		}
	}

	var d Diff
	for _, k := range order {
		old, ok := r.prev[k]
		switch {
		case !ok:
			d.Added = append(d.Added, k)
		case old != next[k]:
			d.Updated = append(d.Updated, k)
		}
	}
	for k := range r.prev {
		if _, ok := next[k]; !ok {
			d.Removed = append(d.Removed, k)
		}
	}
	sort.Strings(d.Removed)

	r.prev = next
	r.key = o.Key
	return d
}

// Key returns the composite key of the last applied overlay.
func (r *Renderer) Key() string {
	return r.key
}

// Reset forgets the drawn overlay, e.g. after the widget reloads.
func (r *Renderer) Reset() {
	r.prev = map[string]string{}
	r.key = ""
}
