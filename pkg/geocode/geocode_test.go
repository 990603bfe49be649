package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storymap/pkg/request"
	"storymap/pkg/tracker"
)

type stubGeocoder struct {
	name   string
	result *Result
	rev    string
	err    error
	calls  int
}

func (s *stubGeocoder) Name() string { return s.name }

func (s *stubGeocoder) Search(context.Context, string) (*Result, error) {
	s.calls++
	return s.result, s.err
}

func (s *stubGeocoder) Reverse(context.Context, float64, float64) (string, error) {
	s.calls++
	return s.rev, s.err
}

func TestFailover(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	t.Run("falls through errors and empty results", func(t *testing.T) {
		a := &stubGeocoder{name: "a", err: boom}
		b := &stubGeocoder{name: "b"}
		c := &stubGeocoder{name: "c", result: &Result{PlaceName: "Paris"}, rev: "Paris, France"}
		f := NewFailover(a, nil, b, c)

		res, err := f.Search(ctx, "paris")
		require.NoError(t, err)
		assert.Equal(t, "Paris", res.PlaceName)

		name, err := f.Reverse(ctx, 2.35, 48.85)
		require.NoError(t, err)
		assert.Equal(t, "Paris, France", name)
	})

	t.Run("all failed", func(t *testing.T) {
		f := NewFailover(&stubGeocoder{name: "a", err: boom}, &stubGeocoder{name: "b", err: boom})
		_, err := f.Search(ctx, "x")
		assert.ErrorIs(t, err, boom)
		_, err = f.Reverse(ctx, 0, 0)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("one empty one failed is not an error", func(t *testing.T) {
		f := NewFailover(&stubGeocoder{name: "a", err: boom}, &stubGeocoder{name: "b"})
		res, err := f.Search(ctx, "x")
		assert.NoError(t, err)
		assert.Nil(t, res)
	})
}

func TestFormatName(t *testing.T) {
	tests := []struct {
		city, country, raw, want string
	}{
		{"Paris", "France", "raw", "Paris, France"},
		{"", "France", "raw", "France"},
		{"Paris", "", "raw", "Paris"},
		{"", "", "raw", "raw"},
		{"", "", "", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatName(tt.city, tt.country, tt.raw))
	}
}

const searchBody = `{"features":[{"id":"place.1","text":"Paris","place_name":"Paris, Île-de-France, France","place_type":["place"],"center":[2.3522,48.8566]}]}`

const reverseBody = `{"features":[
 {"id":"place.1","text":"Paris","place_name":"Paris, Île-de-France, France","place_type":["place"],"center":[2.35,48.85],
  "context":[{"id":"region.9","text":"Île-de-France"},{"id":"country.7","text":"France"}]},
 {"id":"country.7","text":"France","place_name":"France","place_type":["country"],"center":[2,46]}]}`

func newMapboxServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.URL.Query().Get("access_token") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case strings.Contains(r.URL.Path, "nowhere"):
			_, _ = w.Write([]byte(`{"features":[]}`))
		case strings.Contains(r.URL.Path, ","):
			assert.Equal(t, "place,locality,country", r.URL.Query().Get("types"))
			_, _ = w.Write([]byte(reverseBody))
		default:
			assert.Equal(t, "1", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(searchBody))
		}
	}))
}

func testClient() *request.Client {
	return request.NewWithOptions(nil, nil, request.Options{Retries: 1, BaseDelay: time.Millisecond})
}

func TestMapboxSearch(t *testing.T) {
	var hits int32
	svr := newMapboxServer(t, &hits)
	defer svr.Close()

	m := NewMapbox(testClient(), "tok", svr.URL, "en")
	res, err := m.Search(context.Background(), "Paris")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, [2]float64{2.3522, 48.8566}, res.Center)
	assert.Equal(t, "Paris, Île-de-France, France", res.PlaceName)

	res, err = m.Search(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Nil(t, res)

	res, err = m.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "blank queries never reach the network")
}

func TestMapboxReverse(t *testing.T) {
	var hits int32
	svr := newMapboxServer(t, &hits)
	defer svr.Close()

	m := NewMapbox(testClient(), "tok", svr.URL, "")
	name, err := m.Reverse(context.Background(), 2.35, 48.85)
	require.NoError(t, err)
	assert.Equal(t, "Paris, France", name)
}

func TestMapboxErrors(t *testing.T) {
	var hits int32
	svr := newMapboxServer(t, &hits)
	defer svr.Close()

	_, err := NewMapbox(testClient(), "", svr.URL, "").Search(context.Background(), "Paris")
	assert.Error(t, err, "missing token")

	_, err = NewMapbox(testClient(), "bad", svr.URL, "").Search(context.Background(), "Paris")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, request.StatusCode(err))
}

func TestReverseNamePreference(t *testing.T) {
	tests := []struct {
		name     string
		features []mapboxFeature
		want     string
	}{
		{
			name:     "country only",
			features: []mapboxFeature{{ID: "country.1", Text: "Iceland", PlaceName: "Iceland", PlaceType: []string{"country"}}},
			want:     "Iceland",
		},
		{
			name:     "city without country",
			features: []mapboxFeature{{ID: "place.1", Text: "Atlantis", PlaceName: "Atlantis", PlaceType: []string{"place"}}},
			want:     "Atlantis",
		},
		{
			name:     "raw fallback",
			features: []mapboxFeature{{ID: "poi.1", Text: "Buoy", PlaceName: "Buoy 7, North Sea"}},
			want:     "Buoy 7, North Sea",
		},
		{
			name: "empty",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reverseName(tt.features))
		})
	}
}

type mapCache map[string][]byte

func (m mapCache) GetCache(_ context.Context, key string) ([]byte, bool) {
	v, ok := m[key]
	return v, ok
}

func (m mapCache) SetCache(_ context.Context, key string, val []byte) error {
	m[key] = val
	return nil
}

func TestCached(t *testing.T) {
	ctx := context.Background()
	inner := &stubGeocoder{name: "inner", result: &Result{Center: [2]float64{2.35, 48.85}, PlaceName: "Paris"}, rev: "Paris, France"}
	c := NewCached(inner, mapCache{}, nil)

	for i := 0; i < 3; i++ {
		res, err := c.Search(ctx, " Paris ")
		require.NoError(t, err)
		assert.Equal(t, "Paris", res.PlaceName)
		assert.Equal(t, [2]float64{2.35, 48.85}, res.Center)
	}
	name, err := c.Reverse(ctx, 2.35, 48.85)
	require.NoError(t, err)
	assert.Equal(t, "Paris, France", name)
	_, _ = c.Reverse(ctx, 2.35, 48.85)
	assert.Equal(t, 2, inner.calls)

	t.Run("errors are not cached", func(t *testing.T) {
		failing := &stubGeocoder{name: "x", err: errors.New("down")}
		c := NewCached(failing, mapCache{}, nil)
		_, err := c.Search(ctx, "rome")
		require.Error(t, err)
		_, err = c.Search(ctx, "rome")
		require.Error(t, err)
		assert.Equal(t, 2, failing.calls)
	})

	t.Run("no match is counted", func(t *testing.T) {
		tr := tracker.New()
		nomatch := &stubGeocoder{name: "gazetteer"}
		c := NewCached(nomatch, mapCache{}, tr)
		res, err := c.Search(ctx, "atlantis")
		require.NoError(t, err)
		assert.Nil(t, res)
		assert.Equal(t, int64(1), tr.Snapshot()["gazetteer"].Empty)
	})

	t.Run("empty query", func(t *testing.T) {
		res, err := c.Search(ctx, "  ")
		require.NoError(t, err)
		assert.Nil(t, res)
	})
}
