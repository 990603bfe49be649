package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"storymap/pkg/db"
	"storymap/pkg/events"
	"storymap/pkg/store"
)

// LastRunStateKey records when maintenance last completed.
const LastRunStateKey = "maintenance_last_run"

// CacheMaxAge is the age after which cached provider responses are dropped.
const CacheMaxAge = 30 * 24 * time.Hour

// Run executes all maintenance tasks: event repair, orphan audio cleanup and
// cache pruning. Failures are logged and never stop startup.
// It blocks until completion.
func Run(ctx context.Context, s store.Store, d *db.DB, audioDir string) error {
	slog.Info("Starting database maintenance...")

	if n, err := repairStories(ctx, s); err != nil {
		slog.Error("Story repair failed", "error", err)
	} else if n > 0 {
		slog.Info("Repaired story event lists", "stories", n)
	}

	if n, err := pruneAudio(ctx, s, audioDir); err != nil {
		slog.Error("Audio cleanup failed", "error", err)
	} else if n > 0 {
		slog.Info("Removed orphaned audio directories", "count", n)
	}

	if n, err := d.PruneCache(CacheMaxAge); err != nil {
		slog.Error("Cache pruning failed", "error", err)
	} else {
		slog.Info("Cache pruning completed", "removed", n)
	}

	if err := s.SetState(ctx, LastRunStateKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to record maintenance run: %w", err)
	}
	return nil
}

// repairStories rewrites event lists whose source links or counts drifted.
func repairStories(ctx context.Context, s store.Store) (int, error) {
	stories, err := s.ListStories(ctx)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for i := range stories {
		st := &stories[i]
		evs, err := s.GetEvents(ctx, st.ID)
		if err != nil {
			slog.Warn("Skipping unreadable story", "story", st.ID, "error", err)
			continue
		}
		changed := events.RepairSources(evs)
		if !changed && st.EventCount == len(evs) {
			continue
		}
		if _, err := s.SaveEvents(ctx, st.ID, evs); err != nil {
			return repaired, fmt.Errorf("save story %s: %w", st.ID, err)
		}
		repaired++
	}
	return repaired, nil
}

// pruneAudio removes per-story audio directories whose story no longer exists.
func pruneAudio(ctx context.Context, s store.Store, audioDir string) (int, error) {
	if audioDir == "" {
		return 0, nil
	}
	entries, err := os.ReadDir(audioDir)
	if os.IsNotExist(err) {
		return 0, nil // Nothing generated yet
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read audio dir: %w", err)
	}

	stories, err := s.ListStories(ctx)
	if err != nil {
		return 0, err
	}
	known := make(map[string]bool, len(stories))
	for i := range stories {
		known[stories[i].ID] = true
	}

	removed := 0
	for _, e := range entries {
		if !e.IsDir() || known[e.Name()] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(audioDir, e.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
