package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"feastly/internal/types"
)

// GeocodeService resolves free-text drop addresses via the Google Maps
// Geocoding API.
type GeocodeService struct {
	client *maps.Client
}

// NewGeocodeService creates a new GeocodeService with the given API Key.
func NewGeocodeService(apiKey string) (*GeocodeService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GeocodeService{client: client}, nil
}

// Geocode returns the coordinates of the first match for address.
func (s *GeocodeService) Geocode(ctx context.Context, address string) (types.Point, error) {
	results, err := s.client.Geocode(ctx, &maps.GeocodingRequest{
		Address: address,
		Region:  "IN", // bias results to India
	})
	if err != nil {
		return types.Point{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(results) == 0 {
		return types.Point{}, fmt.Errorf("no match for address")
	}
	loc := results[0].Geometry.Location
	return types.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
}
