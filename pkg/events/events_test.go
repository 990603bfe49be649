package events

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storymap/pkg/model"
)

func chain(ids ...string) []model.Event {
	out := make([]model.Event, len(ids))
	for i, id := range ids {
		src := ""
		if i > 0 {
			src = ids[i-1]
		}
		out[i] = NewEmptyEvent(id, src)
	}
	return out
}

func ids(events []model.Event) []string {
	out := make([]string, len(events))
	for i := range events {
		out[i] = events[i].EventID
	}
	return out
}

func sources(events []model.Event) []*string {
	out := make([]*string, len(events))
	for i := range events {
		out[i] = events[i].Transition.SourceEventID
	}
	return out
}

func TestGenerateNextEventID(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
		want string
	}{
		{"Empty", nil, "E001"},
		{"Gap", []string{"E001", "E003"}, "E004"},
		{"Bookends ignored", []string{model.OpeningID, "E002", model.ClosingID}, "E003"},
		{"Only bookends", []string{model.OpeningID, model.ClosingID}, "E001"},
		{"Wide", []string{"E999"}, "E1000"},
		{"Malformed ignored", []string{"E12a", "X005", "e007"}, "E001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var evs []model.Event
			for _, id := range tt.ids {
				evs = append(evs, model.Event{EventID: id})
			}
			assert.Equal(t, tt.want, GenerateNextEventID(evs))
		})
	}
}

func TestInsertAfter(t *testing.T) {
	t.Run("Empty list", func(t *testing.T) {
		out := InsertAfter(nil, 0)
		require.Len(t, out, 1)
		assert.Equal(t, "E001", out[0].EventID)
		assert.Nil(t, out[0].Transition.SourceEventID)
		assert.False(t, out[0].Location.Coordinates.IsSet())
	})

	t.Run("Between", func(t *testing.T) {
		in := chain("E001", "E002")
		out := InsertAfter(in, 0)
		require.Len(t, out, 3)
		assert.Equal(t, []string{"E001", "E003", "E002"}, ids(out))
		assert.Equal(t, "E001", out[1].Transition.Source())
		assert.Equal(t, "E003", out[2].Transition.Source())
		require.NoError(t, CheckSources(out))

		// input untouched
		assert.Equal(t, "E001", in[1].Transition.Source())
		assert.Len(t, in, 2)
	})

	t.Run("At end", func(t *testing.T) {
		out := InsertAfter(chain("E001", "E002"), 1)
		assert.Equal(t, []string{"E001", "E002", "E003"}, ids(out))
		require.NoError(t, CheckSources(out))
	})

	t.Run("Out of range", func(t *testing.T) {
		out := InsertAfter(chain("E001"), 5)
		assert.Equal(t, []string{"E001"}, ids(out))
	})
}

func TestDeleteAt(t *testing.T) {
	tests := []struct {
		name  string
		index int
		want  []string
	}{
		{"Middle", 1, []string{"E001", "E003"}},
		{"First", 0, []string{"E002", "E003"}},
		{"Last", 2, []string{"E001", "E002"}},
		{"Out of range", 3, []string{"E001", "E002", "E003"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := chain("E001", "E002", "E003")
			out := DeleteAt(in, tt.index)
			assert.Equal(t, tt.want, ids(out))
			require.NoError(t, CheckSources(out))
			assert.Len(t, in, 3)
		})
	}

	t.Run("Middle repoints follower", func(t *testing.T) {
		out := DeleteAt(chain("E001", "E002", "E003"), 1)
		assert.Equal(t, "E001", out[1].Transition.Source())
	})
}

func TestReorder(t *testing.T) {
	t.Run("Front to back recomputes all sources", func(t *testing.T) {
		in := chain("E001", "E002", "E003")
		out := Reorder(in, 0, 2)
		assert.Equal(t, []string{"E002", "E003", "E001"}, ids(out))

		src := sources(out)
		assert.Nil(t, src[0])
		assert.Equal(t, "E002", *src[1])
		assert.Equal(t, "E003", *src[2])

		// E003 was not moved but its predecessor changed with it
		assert.Equal(t, "E002", in[2].Transition.Source())
	})

	t.Run("Back to front", func(t *testing.T) {
		out := Reorder(chain("E001", "E002", "E003"), 2, 0)
		assert.Equal(t, []string{"E003", "E001", "E002"}, ids(out))
		require.NoError(t, CheckSources(out))
	})

	noops := []struct {
		name     string
		from, to int
	}{
		{"Same index", 1, 1},
		{"Negative", -1, 0},
		{"Past end", 0, 3},
	}
	for _, tt := range noops {
		t.Run(tt.name, func(t *testing.T) {
			out := Reorder(chain("E001", "E002", "E003"), tt.from, tt.to)
			assert.Equal(t, []string{"E001", "E002", "E003"}, ids(out))
		})
	}
}

func TestTransitionGraphInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var evs []model.Event
	for step := 0; step < 500; step++ {
		n := len(evs)
		switch op := rng.Intn(3); {
		case op == 0 || n == 0:
			evs = InsertAfter(evs, rng.Intn(n+1)-1+boolInt(n == 0))
		case op == 1:
			evs = DeleteAt(evs, rng.Intn(n))
		default:
			evs = Reorder(evs, rng.Intn(n), rng.Intn(n))
		}
		require.NoError(t, CheckSources(evs), "step %d", step)
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func TestRepairSources(t *testing.T) {
	evs := chain("E001", "E002", "E003")
	evs[0].Transition.SourceEventID = model.StringRef("E003")
	evs[2].Transition.SourceEventID = nil

	assert.Error(t, CheckSources(evs))
	assert.True(t, RepairSources(evs))
	assert.NoError(t, CheckSources(evs))
	assert.False(t, RepairSources(evs))
}

func TestCheckSourcesDuplicate(t *testing.T) {
	evs := chain("E001", "E001")
	assert.ErrorContains(t, CheckSources(evs), "duplicate")
}

func TestUpdateField(t *testing.T) {
	t.Run("Nested value", func(t *testing.T) {
		in := chain("E001")
		out, err := UpdateField(in, 0, "location.mapView.zoom", 7.5)
		require.NoError(t, err)
		assert.Equal(t, 7.5, out[0].Location.MapView.Zoom)
		assert.Equal(t, DefaultPickZoom, in[0].Location.MapView.Zoom)
	})

	t.Run("Date start mirrors end for point events", func(t *testing.T) {
		out, err := UpdateField(chain("E001"), 0, PathDateStart, "1990-05-01")
		require.NoError(t, err)
		assert.Equal(t, "1990-05-01", out[0].Timeline.DateEnd)
	})

	t.Run("Date start leaves period end alone", func(t *testing.T) {
		in := chain("E001")
		in[0].EventType = model.EventTypePeriod
		in[0].Timeline = model.Timeline{DateStart: "1990-01-01", DateEnd: "1995-01-01"}
		out, err := UpdateField(in, 0, PathDateStart, "1991-01-01")
		require.NoError(t, err)
		assert.Equal(t, model.Timeline{DateStart: "1991-01-01", DateEnd: "1995-01-01"}, out[0].Timeline)
	})

	t.Run("Switching to Event collapses range", func(t *testing.T) {
		in := chain("E001")
		in[0].EventType = model.EventTypePeriod
		in[0].Timeline = model.Timeline{DateStart: "1990-01-01", DateEnd: "1995-01-01"}
		out, err := UpdateField(in, 0, PathEventType, "Event")
		require.NoError(t, err)
		assert.Equal(t, "1990-01-01", out[0].Timeline.DateEnd)
	})

	t.Run("Coordinates from null", func(t *testing.T) {
		out, err := UpdateField(chain("E001"), 0, "location.coordinates", map[string]any{"lng": 2.35, "lat": 48.85})
		require.NoError(t, err)
		lng, lat, ok := out[0].Location.Coordinates.LngLat()
		require.True(t, ok)
		assert.Equal(t, 2.35, lng)
		assert.Equal(t, 48.85, lat)
	})

	t.Run("Missing intermediate is created", func(t *testing.T) {
		in := chain("E001")
		in[0].Content.Media = nil
		out, err := UpdateField(in, 0, "content.imageComparison.caption", "then and now")
		require.NoError(t, err)
		assert.Equal(t, "then and now", out[0].Content.ImageComparison.Caption)
	})

	t.Run("Type mismatch", func(t *testing.T) {
		in := chain("E001")
		out, err := UpdateField(in, 0, "location.mapView.zoom", "far")
		assert.True(t, errors.Is(err, ErrInvalidValue))
		assert.Equal(t, DefaultPickZoom, out[0].Location.MapView.Zoom)
	})

	t.Run("Out of range is a no-op", func(t *testing.T) {
		out, err := UpdateField(chain("E001"), 4, "title", "x")
		require.NoError(t, err)
		assert.Equal(t, "", out[0].Title)
	})
}

func TestFirstLocated(t *testing.T) {
	evs := chain(model.OpeningID, "E001", "E002")
	evs[0].EventType = model.EventTypeOpening
	evs[2].Location.Coordinates = model.NewCoordinates(1, 1)
	assert.Equal(t, 2, FirstLocated(evs, 0))
	assert.Equal(t, -1, FirstLocated(evs, 3))
	assert.Equal(t, 1, IndexOf(evs, "E001"))
}

func TestSetLocation(t *testing.T) {
	in := chain("E001", "E002")
	out := SetLocation(in, 1, 2.35, 48.85, &model.MapView{Zoom: 9})
	lng, lat, ok := out[1].Location.Coordinates.LngLat()
	require.True(t, ok)
	assert.Equal(t, [2]float64{2.35, 48.85}, [2]float64{lng, lat})
	assert.Equal(t, 9.0, out[1].Location.MapView.Zoom)
	assert.Equal(t, DefaultMapStyle, out[1].Location.MapView.MapStyle)
	assert.False(t, in[1].Location.Coordinates.IsSet())

	named := SetLocationName(out, "E002", "Paris, France")
	assert.Equal(t, "Paris, France", named[1].Location.Name)
	assert.Equal(t, "", out[1].Location.Name)
	assert.Equal(t, ids(out), ids(SetLocationName(out, "E404", "x")))
}

func TestNewBookends(t *testing.T) {
	evs := NewBookends("Grandma Rose")
	require.Len(t, evs, 2)
	assert.Equal(t, model.EventTypeOpening, evs[0].EventType)
	assert.Equal(t, "Grandma Rose", evs[0].Title)
	assert.Nil(t, evs[0].Transition.SourceEventID)
	assert.Equal(t, model.OpeningID, evs[1].Transition.Source())
	assert.NoError(t, CheckSources(evs))

	evs = InsertAfter(evs, 0)
	assert.Equal(t, "E001", evs[1].EventID)
	assert.Equal(t, "E001", evs[2].Transition.Source())
}
