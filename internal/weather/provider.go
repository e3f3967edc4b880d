package weather

import (
	"context"
)

// PageFetcher retrieves a station's dashboard page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ObservationFetcher queries the structured observations API.
type ObservationFetcher interface {
	FetchObservation(ctx context.Context, apiKey, stationID string) (Observation, error)
}

// Store is the contract the in-memory attribute store must satisfy.
type Store interface {
	// Merge applies partial on top of the station's attributes and returns the result.
	Merge(station string, partial Attributes) Attributes
	Get(station string) (Attributes, error)
}
