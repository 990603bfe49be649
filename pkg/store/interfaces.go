package store

import (
	"context"
	"errors"

	"storymap/pkg/model"
)

// DefaultStoryLimit is the number of stories a library may hold.
const DefaultStoryLimit = 5

var (
	// ErrNotFound is returned when a story does not exist.
	ErrNotFound = errors.New("story not found")
	// ErrStoryLimit is returned by CreateStory when the library is full.
	ErrStoryLimit = errors.New("story limit reached")
	// ErrEmptyName is returned when a story name is blank.
	ErrEmptyName = errors.New("story name must not be empty")
)

// StoryStore handles story headers.
type StoryStore interface {
	// ListStories returns all stories, oldest first.
	ListStories(ctx context.Context) ([]model.Story, error)
	GetStory(ctx context.Context, id string) (*model.Story, error)
	// CreateStory inserts a story with Opening and Closing bookends.
	// It fails with ErrStoryLimit once limit stories exist.
	CreateStory(ctx context.Context, name, language string, limit int) (*model.Story, error)
	UpdateStory(ctx context.Context, id string, patch model.StoryPatch) (*model.Story, error)
	DeleteStory(ctx context.Context, id string) error
}

// EventStore handles the ordered event list of a story.
type EventStore interface {
	GetEvents(ctx context.Context, storyID string) ([]model.Event, error)
	// SaveEvents replaces the full list, repairing source links and the event count.
	SaveEvents(ctx context.Context, storyID string, events []model.Event) (*model.Story, error)
}

// CacheStore handles the gzip-compressed response cache.
type CacheStore interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	HasCache(ctx context.Context, key string) (bool, error)
	SetCache(ctx context.Context, key string, val []byte) error
	ListCacheKeys(ctx context.Context, prefix string) ([]string, error)
}

// StateStore handles persistent runtime overrides.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}
