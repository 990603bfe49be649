package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"storymap/pkg/db"
	"storymap/pkg/events"
	"storymap/pkg/model"
)

// Store composes all sub-interfaces for full store access.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	StoryStore
	EventStore
	CacheStore
	StateStore

	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(d *db.DB) *SQLiteStore {
	return &SQLiteStore{db: d}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Stories ---

const storyColumns = `id, name, language, voice_id, event_count, published, date_created`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStory(r rowScanner) (*model.Story, error) {
	var st model.Story
	var language, voice sql.NullString
	var created string
	if err := r.Scan(&st.ID, &st.Name, &language, &voice, &st.EventCount, &st.Published, &created); err != nil {
		return nil, err
	}
	st.Language = language.String
	st.VoiceID = voice.String
	st.DateCreated = parseTime(created)
	return &st, nil
}

// parseTime accepts both CURRENT_TIMESTAMP and RFC3339 values.
func parseTime(v string) time.Time {
	for _, layout := range []string{db.TimeLayout, time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func (s *SQLiteStore) ListStories(ctx context.Context) ([]model.Story, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+storyColumns+` FROM stories ORDER BY date_created, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	defer rows.Close()

	out := []model.Story{}
	for rows.Next() {
		st, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan story: %w", err)
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetStory(ctx context.Context, id string) (*model.Story, error) {
	st, err := scanStory(s.db.QueryRowContext(ctx, `SELECT `+storyColumns+` FROM stories WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get story %s: %w", id, err)
	}
	return st, nil
}

func (s *SQLiteStore) CreateStory(ctx context.Context, name, language string, limit int) (*model.Story, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if limit <= 0 {
		limit = DefaultStoryLimit
	}

	st := &model.Story{
		ID:          uuid.NewString(),
		Name:        name,
		Language:    language,
		DateCreated: time.Now().UTC().Truncate(time.Second),
	}
	if lang, ok := model.LanguageByCode(language); ok {
		st.Language = lang.Code
		st.VoiceID = lang.DefaultVoice
	}

	evs := events.NewBookends(name)
	payload, err := json.Marshal(evs)
	if err != nil {
		return nil, fmt.Errorf("encode events: %w", err)
	}
	st.EventCount = len(evs)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT count(*) FROM stories").Scan(&count); err != nil {
		return nil, fmt.Errorf("count stories: %w", err)
	}
	if count >= limit {
		return nil, ErrStoryLimit
	}

	created := st.DateCreated.Format(db.TimeLayout)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO stories (id, name, language, voice_id, event_count, published, date_created) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.Name, st.Language, st.VoiceID, st.EventCount, st.Published, created); err != nil {
		return nil, fmt.Errorf("insert story: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO story_events (story_id, events, updated_at) VALUES (?, ?, ?)`,
		st.ID, string(payload), created); err != nil {
		return nil, fmt.Errorf("insert events: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *SQLiteStore) UpdateStory(ctx context.Context, id string, patch model.StoryPatch) (*model.Story, error) {
	st, err := s.GetStory(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, ErrEmptyName
		}
		st.Name = name
	}
	if patch.Language != nil {
		st.Language = *patch.Language
	}
	if patch.VoiceID != nil {
		st.VoiceID = *patch.VoiceID
	}
	if patch.Published != nil {
		st.Published = *patch.Published
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE stories SET name = ?, language = ?, voice_id = ?, published = ? WHERE id = ?`,
		st.Name, st.Language, st.VoiceID, st.Published, id)
	if err != nil {
		return nil, fmt.Errorf("update story %s: %w", id, err)
	}
	return st, nil
}

func (s *SQLiteStore) DeleteStory(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "DELETE FROM stories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete story %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM story_events WHERE story_id = ?", id); err != nil {
		return fmt.Errorf("delete events %s: %w", id, err)
	}
	return tx.Commit()
}

// --- Events ---

func (s *SQLiteStore) GetEvents(ctx context.Context, storyID string) ([]model.Event, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT events FROM story_events WHERE story_id = ?", storyID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		if _, gerr := s.GetStory(ctx, storyID); gerr != nil {
			return nil, gerr
		}
		return []model.Event{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get events %s: %w", storyID, err)
	}

	var evs []model.Event
	if err := json.Unmarshal([]byte(payload), &evs); err != nil {
		return nil, fmt.Errorf("decode events %s: %w", storyID, err)
	}
	if evs == nil {
		evs = []model.Event{}
	}
	return evs, nil
}

func (s *SQLiteStore) SaveEvents(ctx context.Context, storyID string, evs []model.Event) (*model.Story, error) {
	st, err := s.GetStory(ctx, storyID)
	if err != nil {
		return nil, err
	}

	evs = events.Clone(evs)
	if evs == nil {
		evs = []model.Event{}
	}
	events.RepairSources(evs)
	payload, err := json.Marshal(evs)
	if err != nil {
		return nil, fmt.Errorf("encode events: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO story_events (story_id, events, updated_at) VALUES (?, ?, ?)`,
		storyID, string(payload), db.Now()); err != nil {
		return nil, fmt.Errorf("save events %s: %w", storyID, err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE stories SET event_count = ? WHERE id = ?", len(evs), storyID); err != nil {
		return nil, fmt.Errorf("update event count %s: %w", storyID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	st.EventCount = len(evs)
	return st, nil
}
