package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"poolcare-platform/internal/models"
)

// Travel modes accepted by the distance provider.
const (
	ModeDriving = "driving"
	ModeWalking = "walking"
)

// DistanceResult is the travel distance and duration between two points.
type DistanceResult struct {
	DistanceMeters  int `json:"distance_meters"`
	DurationSeconds int `json:"duration_seconds"`
}

// DistanceProvider returns travel metrics between coordinates. Calls are
// keyed per organization so each org can bring its own mapping API key.
type DistanceProvider interface {
	Distance(ctx context.Context, orgID string, origin, dest models.Location, mode string) (DistanceResult, error)
	// BatchDistance returns one result per destination, in order. A failed
	// element degrades to a zero-value placeholder instead of failing the batch.
	BatchDistance(ctx context.Context, orgID string, origin models.Location, dests []models.Location, mode string) ([]DistanceResult, error)
}

// Geocoder resolves a street address to coordinates. There is no fallback:
// a provider failure here surfaces as ErrProviderUnavailable.
type Geocoder interface {
	Geocode(ctx context.Context, orgID string, address string) (models.Location, error)
}

// APIKeyStore resolves the per-organization mapping API key.
type APIKeyStore interface {
	MapsAPIKey(ctx context.Context, orgID string) (string, error)
}

// GoogleMapsProvider implements DistanceProvider and Geocoder against the
// Google Distance Matrix and Geocoding APIs.
type GoogleMapsProvider struct {
	httpClient *http.Client
	keys       APIKeyStore
	defaultKey string
	baseURL    string
}

// NewGoogleMapsProvider builds a provider with a bounded request timeout so
// route optimization stays responsive when the external API is slow.
// keys may be nil; defaultKey then applies to every organization.
func NewGoogleMapsProvider(defaultKey string, keys APIKeyStore) *GoogleMapsProvider {
	return &GoogleMapsProvider{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		keys:       keys,
		defaultKey: defaultKey,
		baseURL:    "https://maps.googleapis.com/maps/api",
	}
}

// keyFor resolves the org's API key, falling back to the system default.
// Absence of any key is a hard failure for geocoding-backed calls.
func (p *GoogleMapsProvider) keyFor(ctx context.Context, orgID string) (string, error) {
	if p.keys != nil {
		key, err := p.keys.MapsAPIKey(ctx, orgID)
		if err == nil && key != "" {
			return key, nil
		}
	}
	if p.defaultKey != "" {
		return p.defaultKey, nil
	}
	return "", models.ErrProviderUnavailable
}

func (p *GoogleMapsProvider) Distance(ctx context.Context, orgID string, origin, dest models.Location, mode string) (DistanceResult, error) {
	results, err := p.BatchDistance(ctx, orgID, origin, []models.Location{dest}, mode)
	if err != nil {
		return DistanceResult{}, err
	}
	if len(results) != 1 || results[0] == (DistanceResult{}) {
		return DistanceResult{}, fmt.Errorf("distance %v -> %v: no route data", origin, dest)
	}
	return results[0], nil
}

func (p *GoogleMapsProvider) BatchDistance(ctx context.Context, orgID string, origin models.Location, dests []models.Location, mode string) ([]DistanceResult, error) {
	if len(dests) == 0 {
		return []DistanceResult{}, nil
	}
	key, err := p.keyFor(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if mode != ModeDriving && mode != ModeWalking {
		mode = ModeDriving
	}

	destParam := ""
	for i, d := range dests {
		if i > 0 {
			destParam += "|"
		}
		destParam += fmt.Sprintf("%f,%f", d.Lat, d.Lng)
	}

	params := url.Values{}
	params.Set("origins", fmt.Sprintf("%f,%f", origin.Lat, origin.Lng))
	params.Set("destinations", destParam)
	params.Set("mode", mode)
	params.Set("key", key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/distancematrix/json?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("distance matrix request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("distance matrix status %d: %w", resp.StatusCode, models.ErrProviderUnavailable)
	}

	var out struct {
		Status string `json:"status"`
		Rows   []struct {
			Elements []struct {
				Status   string              `json:"status"`
				Distance struct{ Value int } `json:"distance"`
				Duration struct{ Value int } `json:"duration"`
			} `json:"elements"`
		} `json:"rows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode distance matrix response: %w", err)
	}
	if out.Status != "OK" || len(out.Rows) == 0 {
		return nil, fmt.Errorf("distance matrix returned %q: %w", out.Status, models.ErrProviderUnavailable)
	}

	elements := out.Rows[0].Elements
	results := make([]DistanceResult, len(dests))
	for i := range dests {
		// Zero placeholder for any element the API could not resolve.
		if i >= len(elements) || elements[i].Status != "OK" {
			continue
		}
		results[i] = DistanceResult{
			DistanceMeters:  elements[i].Distance.Value,
			DurationSeconds: elements[i].Duration.Value,
		}
	}
	return results, nil
}

// Geocode resolves an address via the Geocoding API.
func (p *GoogleMapsProvider) Geocode(ctx context.Context, orgID string, address string) (models.Location, error) {
	key, err := p.keyFor(ctx, orgID)
	if err != nil {
		return models.Location{}, err
	}

	params := url.Values{}
	params.Set("address", address)
	params.Set("key", key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/geocode/json?"+params.Encode(), nil)
	if err != nil {
		return models.Location{}, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return models.Location{}, fmt.Errorf("geocode request: %w", models.ErrProviderUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.Location{}, fmt.Errorf("geocode status %d: %w", resp.StatusCode, models.ErrProviderUnavailable)
	}

	var out struct {
		Status  string `json:"status"`
		Results []struct {
			Geometry struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.Location{}, fmt.Errorf("decode geocode response: %w", err)
	}
	if out.Status != "OK" || len(out.Results) == 0 {
		return models.Location{}, fmt.Errorf("geocode returned %q: %w", out.Status, models.ErrProviderUnavailable)
	}
	loc := out.Results[0].Geometry.Location
	return models.Location{Lat: loc.Lat, Lng: loc.Lng}, nil
}
