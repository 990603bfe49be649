package gazetteer

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Columns: id name ascii alt lat lon class code cc cc2 a1 a2 a3 a4 pop elev dem tz mod
const citiesTSV = "2988507\tParis\tParis\t\t48.85341\t2.3488\tP\tPPLC\tFR\t\t11\t75\t\t\t2138551\t\t42\tEurope/Paris\t2024-01-01\n" +
	"4717560\tParis\tParis\t\t33.66094\t-95.55551\tP\tPPLA2\tUS\t\tTX\t277\t\t\t24782\t\t180\tAmerica/Chicago\t2024-01-01\n" +
	"2950159\tBerlin\tBerlin\t\t52.52437\t13.41053\tP\tPPLC\tDE\t\t16\t00\t\t\t3426354\t\t74\tEurope/Berlin\t2024-01-01\n" +
	"2657896\tZürich\tZurich\t\t47.36667\t8.55\tP\tPPLA\tCH\t\tZH\t112\t\t\t341730\t\t429\tEurope/Zurich\t2024-01-01\n" +
	"broken line\n"

func testIndex(t *testing.T) *Index {
	t.Helper()
	places, err := ReadGeoNames(strings.NewReader(citiesTSV))
	require.NoError(t, err)
	require.Len(t, places, 4)
	idx, err := New(places, 0, 0)
	require.NoError(t, err)
	return idx
}

func TestNearest(t *testing.T) {
	idx := testIndex(t)

	tests := []struct {
		name     string
		lat, lon float64
		want     string
	}{
		{"city centre", 48.8566, 2.3522, "Paris, France"},
		{"suburb within bound", 48.80, 2.13, "Paris, France"},
		{"texas", 33.70, -95.50, "Paris, United States"},
		{"umlaut", 47.37, 8.54, "Zürich, Switzerland"},
		{"middle of the atlantic", 30, -40, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, err := idx.Reverse(context.Background(), tt.lon, tt.lat)
			require.NoError(t, err)
			assert.Equal(t, tt.want, name)
		})
	}
}

func TestLookup(t *testing.T) {
	idx := testIndex(t)
	ctx := context.Background()

	res, err := idx.Search(ctx, "paris")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "Paris, France", res.PlaceName, "most populous wins")
	assert.InDelta(t, 2.3488, res.Center[0], 1e-9)

	res, err = idx.Search(ctx, "Paris, US")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "Paris, United States", res.PlaceName)

	res, err = idx.Search(ctx, "Paris, United States")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.InDelta(t, -95.55551, res.Center[0], 1e-9)

	res, err = idx.Search(ctx, "Atlantis")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestCountryName(t *testing.T) {
	assert.Equal(t, "Germany", CountryName("DE"))
	assert.Equal(t, "", CountryName(""))
	assert.Equal(t, "not-a-code", CountryName("not-a-code"))
}

func TestLoadShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "places.shp")
	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("NAME", 32),
		shp.StringField("ADM0NAME", 32),
		shp.StringField("ISO_A2", 2),
		shp.NumberField("POP_MAX", 10),
	}))
	rows := []struct {
		name, country, iso string
		x, y               float64
		pop                int
	}{
		{"Lisbon", "Portugal", "PT", -9.1393, 38.7223, 2812000},
		{"Porto", "Portugal", "PT", -8.6291, 41.1579, 1337000},
	}
	for _, r := range rows {
		n := int(w.Write(&shp.Point{X: r.x, Y: r.y}))
		require.NoError(t, w.WriteAttribute(n, 0, r.name))
		require.NoError(t, w.WriteAttribute(n, 1, r.country))
		require.NoError(t, w.WriteAttribute(n, 2, r.iso))
		require.NoError(t, w.WriteAttribute(n, 3, r.pop))
	}
	w.Close()

	places, err := LoadShapefile(path)
	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, "Lisbon", places[0].Name)
	assert.Equal(t, "Portugal", places[0].Country)
	assert.Equal(t, int64(2812000), places[0].Population)
	assert.InDelta(t, 38.7223, places[0].Point.Lat, 1e-6)

	idx, err := Load("", path, 0, 0)
	require.NoError(t, err)
	name, err := idx.Reverse(context.Background(), -8.61, 41.15)
	require.NoError(t, err)
	assert.Equal(t, "Porto, Portugal", name)
}

func TestLoadNothing(t *testing.T) {
	_, err := Load("", "", 0, 0)
	assert.Error(t, err)
}
