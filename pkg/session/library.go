package session

import (
	"context"

	"storymap/pkg/model"
	"storymap/pkg/samples"
	"storymap/pkg/store"
	"storymap/pkg/view"
)

// Library serves user stories from the store and the bundled examples
// read-only. It implements view.Library.
type Library struct {
	Store   store.Store
	Samples *samples.Catalog
}

// Stories lists the user's stories. Examples are not part of the overview.
func (l *Library) Stories(ctx context.Context) ([]model.Story, error) {
	return l.Store.ListStories(ctx)
}

// Story returns a user or example story header.
func (l *Library) Story(ctx context.Context, id string) (*model.Story, error) {
	if l.Samples.Has(id) {
		return l.Samples.Story(id)
	}
	return l.Store.GetStory(ctx, id)
}

// Events returns a copy of a story's events.
func (l *Library) Events(ctx context.Context, id string) ([]model.Event, error) {
	if l.Samples.Has(id) {
		return l.Samples.Events(id)
	}
	return l.Store.GetEvents(ctx, id)
}

// SaveEvents persists a user story's events. Examples cannot be saved.
func (l *Library) SaveEvents(ctx context.Context, id string, evs []model.Event) (*model.Story, error) {
	if l.Samples.Has(id) {
		return nil, view.ErrReadOnly
	}
	return l.Store.SaveEvents(ctx, id, evs)
}

// ReadOnly reports whether id is a bundled example.
func (l *Library) ReadOnly(id string) bool {
	return l.Samples.Has(id)
}
