package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"storymap/pkg/db"
	"storymap/pkg/store"
)

type place struct {
	Name string `json:"name"`
}

func TestFetch(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "cache_test.db"))
	if err != nil {
		t.Fatalf("Failed to init db: %v", err)
	}
	defer d.Close()
	c := store.NewSQLiteStore(d)
	ctx := context.Background()

	calls := 0
	fn := func(context.Context) (place, error) {
		calls++
		return place{Name: "Paris"}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := Fetch(ctx, c, "k", fn)
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if got.Name != "Paris" {
			t.Errorf("Fetch() = %+v", got)
		}
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestFetchErrorNotCached(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "cache_err.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	c := store.NewSQLiteStore(d)
	ctx := context.Background()

	boom := errors.New("boom")
	if _, err := Fetch(ctx, c, "k", func(context.Context) (place, error) { return place{}, boom }); !errors.Is(err, boom) {
		t.Fatalf("Fetch() error = %v, want boom", err)
	}
	if _, hit := c.GetCache(ctx, "k"); hit {
		t.Error("error result was cached")
	}
}

func TestFetchNilCacher(t *testing.T) {
	calls := 0
	for i := 0; i < 2; i++ {
		_, _ = Fetch(context.Background(), nil, "k", func(context.Context) (int, error) {
			calls++
			return 1, nil
		})
	}
	if calls != 2 {
		t.Errorf("fn called %d times, want 2", calls)
	}
}
