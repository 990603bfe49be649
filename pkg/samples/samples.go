// Package samples serves the bundled example stories. Examples are read-only:
// they can be opened and presented but never saved or deleted.
package samples

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"storymap/pkg/events"
	"storymap/pkg/model"
)

//go:embed data/*.json
var embedded embed.FS

// ErrNotFound is returned for an unknown example id.
var ErrNotFound = errors.New("example story not found")

// IDPrefix marks example story ids so they never collide with user stories.
const IDPrefix = "example-"

type file struct {
	Story  model.Story   `json:"story"`
	Events []model.Event `json:"events"`
}

// Catalog is an immutable set of example stories.
type Catalog struct {
	stories []model.Story
	events  map[string][]model.Event
}

// NewEmbedded loads the examples compiled into the binary.
func NewEmbedded() (*Catalog, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, err
	}
	return NewFromFS(sub)
}

// NewFromDir loads examples from a directory of JSON files.
func NewFromDir(dir string) (*Catalog, error) {
	return NewFromFS(os.DirFS(dir))
}

// NewFromFS loads every *.json file at the root of fsys.
func NewFromFS(fsys fs.FS) (*Catalog, error) {
	names, err := fs.Glob(fsys, "*.json")
	if err != nil {
		return nil, err
	}
	c := &Catalog{events: make(map[string][]model.Event)}
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read example %s: %w", name, err)
		}
		var f file
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse example %s: %w", name, err)
		}
		if f.Story.ID == "" {
			f.Story.ID = IDPrefix + strings.TrimSuffix(path.Base(name), ".json")
		}
		if _, dup := c.events[f.Story.ID]; dup {
			return nil, fmt.Errorf("duplicate example id %q in %s", f.Story.ID, name)
		}
		if f.Events == nil {
			f.Events = events.NewBookends(f.Story.Name)
		}
		events.RepairSources(f.Events)
		f.Story.EventCount = len(f.Events)
		c.stories = append(c.stories, f.Story)
		c.events[f.Story.ID] = f.Events
	}
	sort.SliceStable(c.stories, func(i, j int) bool {
		return c.stories[i].DateCreated.Before(c.stories[j].DateCreated)
	})
	return c, nil
}

// List returns all example stories, oldest first.
func (c *Catalog) List() []model.Story {
	out := make([]model.Story, len(c.stories))
	copy(out, c.stories)
	return out
}

// Has reports whether id names an example.
func (c *Catalog) Has(id string) bool {
	if c == nil {
		return false
	}
	_, ok := c.events[id]
	return ok
}

// Story returns one example story header.
func (c *Catalog) Story(id string) (*model.Story, error) {
	for i := range c.stories {
		if c.stories[i].ID == id {
			s := c.stories[i]
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

// Events returns a copy of an example's events.
func (c *Catalog) Events(id string) ([]model.Event, error) {
	evs, ok := c.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return events.Clone(evs), nil
}
