package samples

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storymap/pkg/events"
)

func TestEmbedded(t *testing.T) {
	c, err := NewEmbedded()
	require.NoError(t, err)

	list := c.List()
	require.Len(t, list, 2)
	assert.Equal(t, "example-grand-tour", list[0].ID)
	assert.Equal(t, "example-emigration", list[1].ID)

	for _, s := range list {
		evs, err := c.Events(s.ID)
		require.NoError(t, err)
		assert.Equal(t, len(evs), s.EventCount)
		assert.NoError(t, events.CheckSources(evs), s.ID)
		assert.True(t, evs[0].IsBookend())
		assert.True(t, evs[len(evs)-1].IsBookend())
	}
}

func TestEventsAreCopies(t *testing.T) {
	c, err := NewEmbedded()
	require.NoError(t, err)

	evs, err := c.Events("example-grand-tour")
	require.NoError(t, err)
	evs[1].Title = "changed"

	again, err := c.Events("example-grand-tour")
	require.NoError(t, err)
	assert.Equal(t, "Leaving London", again[1].Title)
}

func TestNotFound(t *testing.T) {
	c, err := NewEmbedded()
	require.NoError(t, err)

	_, err = c.Story("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Events("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, c.Has("nope"))

	var nilCatalog *Catalog
	assert.False(t, nilCatalog.Has("example-grand-tour"))
}

func TestFromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"village.json": {Data: []byte(`{"story":{"name":"Village","language":"en"}}`)},
		"broken.txt":   {Data: []byte(`ignored`)},
	}
	c, err := NewFromFS(fsys)
	require.NoError(t, err)

	s, err := c.Story("example-village")
	require.NoError(t, err)
	assert.Equal(t, 2, s.EventCount)

	evs, err := c.Events("example-village")
	require.NoError(t, err)
	assert.Equal(t, "Village", evs[0].Title)

	_, err = NewFromFS(fstest.MapFS{"bad.json": {Data: []byte(`{`)}})
	assert.Error(t, err)
}
