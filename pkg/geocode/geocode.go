// Package geocode resolves free-text places to coordinates and coordinates to
// human-readable names.
package geocode

import (
	"context"
	"errors"
	"log/slog"
)

// Result is the first match of a forward search.
type Result struct {
	Center    [2]float64 `json:"center"` // lng, lat
	PlaceName string     `json:"place_name"`
}

// Geocoder is implemented by every backend.
//
// Search returns nil and no error when nothing matches. Reverse returns an
// empty name and no error when nothing resolves.
type Geocoder interface {
	Name() string
	Search(ctx context.Context, query string) (*Result, error)
	Reverse(ctx context.Context, lng, lat float64) (string, error)
}

// Failover tries each geocoder in order until one produces an answer.
type Failover struct {
	providers []Geocoder
}

// NewFailover composes geocoders. Nil entries are skipped.
func NewFailover(providers ...Geocoder) *Failover {
	f := &Failover{}
	for _, p := range providers {
		if p != nil {
			f.providers = append(f.providers, p)
		}
	}
	return f
}

func (f *Failover) Name() string { return "failover" }

// Search returns the first non-empty result. Errors are only returned when
// every provider failed.
func (f *Failover) Search(ctx context.Context, query string) (*Result, error) {
	var errs []error
	for _, p := range f.providers {
		res, err := p.Search(ctx, query)
		if err != nil {
			slog.Warn("Geocode: search failed", "provider", p.Name(), "error", err)
			errs = append(errs, err)
			continue
		}
		if res != nil {
			return res, nil
		}
	}
	if len(errs) == len(f.providers) && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, nil
}

// Reverse returns the first non-empty name.
func (f *Failover) Reverse(ctx context.Context, lng, lat float64) (string, error) {
	var errs []error
	for _, p := range f.providers {
		name, err := p.Reverse(ctx, lng, lat)
		if err != nil {
			slog.Debug("Geocode: reverse failed", "provider", p.Name(), "error", err)
			errs = append(errs, err)
			continue
		}
		if name != "" {
			return name, nil
		}
	}
	if len(errs) == len(f.providers) && len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return "", nil
}
