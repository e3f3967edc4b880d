package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/time/rate"

	"github.com/i474232898/wu-weather/internal/weather"
)

// DefaultObservationsURL is the PWS current-observations endpoint.
const DefaultObservationsURL = "https://api.weather.com/v2/pws/observations/current"

var (
	errNoAPIKey    = errors.New("observations api key is empty")
	errNoStationID = errors.New("station id is empty")
)

// ObservationClient queries the PWS observations API in metric units.
type ObservationClient struct {
	fetcher *Fetcher
	baseURL string
	limiter *rate.Limiter
}

// NewObservationClient creates a client against baseURL (DefaultObservationsURL
// when empty). rps and burst throttle outgoing requests across all stations;
// rps <= 0 disables throttling.
func NewObservationClient(fetcher *Fetcher, baseURL string, rps float64, burst int) *ObservationClient {
	if baseURL == "" {
		baseURL = DefaultObservationsURL
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &ObservationClient{
		fetcher: fetcher,
		baseURL: baseURL,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// FetchObservation returns the first current observation for stationID.
func (c *ObservationClient) FetchObservation(ctx context.Context, apiKey, stationID string) (weather.Observation, error) {
	if apiKey == "" {
		return weather.Observation{}, errNoAPIKey
	}
	if stationID == "" {
		return weather.Observation{}, errNoStationID
	}

	u := c.requestURL(apiKey, stationID)
	if err := c.limiter.Wait(ctx); err != nil {
		return weather.Observation{}, &weather.FetchError{
			URL: redactedURL(c.baseURL, stationID),
			Err: fmt.Errorf("rate limit wait canceled: %w", err),
		}
	}

	var payload weather.ObservationResponse
	if err := c.fetcher.FetchJSON(ctx, u, &payload); err != nil {
		var fe *weather.FetchError
		if errors.As(err, &fe) {
			// Keep the key out of logs and API responses.
			fe.URL = redactedURL(c.baseURL, stationID)
			var ue *url.Error
			if errors.As(fe.Err, &ue) {
				ue.URL = fe.URL
			}
		}
		return weather.Observation{}, err
	}

	if len(payload.Observations) == 0 {
		return weather.Observation{}, fmt.Errorf("station %s: %w", stationID, weather.ErrDataUnavailable)
	}
	return payload.Observations[0], nil
}

func (c *ObservationClient) requestURL(apiKey, stationID string) string {
	values := url.Values{}
	values.Set("apiKey", apiKey)
	values.Set("stationId", stationID)
	values.Set("numericPrecision", "decimal")
	values.Set("format", "json")
	values.Set("units", "m")
	return fmt.Sprintf("%s?%s", c.baseURL, values.Encode())
}

func redactedURL(baseURL, stationID string) string {
	return fmt.Sprintf("%s?stationId=%s", baseURL, url.QueryEscape(stationID))
}
