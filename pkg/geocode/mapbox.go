package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DefaultMapboxURL is the public Mapbox API root.
const DefaultMapboxURL = "https://api.mapbox.com"

// Getter is the subset of request.Client used by HTTP geocoders.
type Getter interface {
	Get(ctx context.Context, u, cacheKey string) ([]byte, error)
}

// Mapbox talks to the Mapbox Geocoding v5 API.
type Mapbox struct {
	client   Getter
	token    string
	baseURL  string
	language string
}

// NewMapbox creates a Mapbox geocoder. An empty baseURL uses DefaultMapboxURL.
func NewMapbox(client Getter, token, baseURL, language string) *Mapbox {
	if baseURL == "" {
		baseURL = DefaultMapboxURL
	}
	return &Mapbox{
		client:   client,
		token:    token,
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: language,
	}
}

func (m *Mapbox) Name() string { return "mapbox" }

type mapboxResponse struct {
	Features []mapboxFeature `json:"features"`
}

type mapboxFeature struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	PlaceName string          `json:"place_name"`
	PlaceType []string        `json:"place_type"`
	Center    []float64       `json:"center"`
	Context   []mapboxContext `json:"context"`
}

type mapboxContext struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func (f *mapboxFeature) hasType(t string) bool {
	for _, pt := range f.PlaceType {
		if pt == t {
			return true
		}
	}
	return strings.HasPrefix(f.ID, t+".")
}

// contextText returns the text of the first context entry of kind t.
func (f *mapboxFeature) contextText(t string) string {
	for _, c := range f.Context {
		if strings.HasPrefix(c.ID, t+".") {
			return c.Text
		}
	}
	return ""
}

func (m *Mapbox) endpoint(path string, params url.Values) string {
	params.Set("access_token", m.token)
	if m.language != "" {
		params.Set("language", m.language)
	}
	return fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?%s", m.baseURL, url.PathEscape(path), params.Encode())
}

func (m *Mapbox) fetch(ctx context.Context, path string, params url.Values, cacheKey string) (*mapboxResponse, error) {
	if m.token == "" {
		return nil, fmt.Errorf("mapbox: missing access token")
	}
	body, err := m.client.Get(ctx, m.endpoint(path, params), cacheKey)
	if err != nil {
		return nil, fmt.Errorf("mapbox request: %w", err)
	}
	var resp mapboxResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("mapbox decode: %w", err)
	}
	return &resp, nil
}

// Search returns the first match for the query.
func (m *Mapbox) Search(ctx context.Context, query string) (*Result, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil
	}
	params := url.Values{}
	params.Set("limit", "1")
	key := fmt.Sprintf("mapbox:search:%s:%s", m.language, strings.ToLower(q))
	resp, err := m.fetch(ctx, q, params, key)
	if err != nil {
		return nil, err
	}
	for i := range resp.Features {
		f := &resp.Features[i]
		if len(f.Center) < 2 {
			continue
		}
		return &Result{Center: [2]float64{f.Center[0], f.Center[1]}, PlaceName: f.PlaceName}, nil
	}
	return nil, nil
}

// Reverse names the place at lng/lat. The preferred form is "City, Country",
// then the country alone, then the city alone, then the raw place name.
func (m *Mapbox) Reverse(ctx context.Context, lng, lat float64) (string, error) {
	path := strconv.FormatFloat(lng, 'f', 6, 64) + "," + strconv.FormatFloat(lat, 'f', 6, 64)
	params := url.Values{}
	params.Set("types", "place,locality,country")
	key := fmt.Sprintf("mapbox:reverse:%s:%s", m.language, path)
	resp, err := m.fetch(ctx, path, params, key)
	if err != nil {
		return "", err
	}
	return reverseName(resp.Features), nil
}

func reverseName(features []mapboxFeature) string {
	var city, country, raw string
	for i := range features {
		f := &features[i]
		if raw == "" {
			raw = f.PlaceName
		}
		switch {
		case f.hasType("country"):
			if country == "" {
				country = f.Text
			}
		case f.hasType("place") || f.hasType("locality"):
			if city == "" {
				city = f.Text
			}
			if country == "" {
				country = f.contextText("country")
			}
		}
	}
	return FormatName(city, country, raw)
}

// FormatName applies the reverse-name preference shared by all geocoders.
func FormatName(city, country, raw string) string {
	switch {
	case city != "" && country != "":
		return city + ", " + country
	case country != "":
		return country
	case city != "":
		return city
	}
	return raw
}
