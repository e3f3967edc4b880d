package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/i474232898/wu-weather/internal/config"
	"github.com/i474232898/wu-weather/internal/store"
	"github.com/i474232898/wu-weather/internal/weather"
)

func TestFetchObservation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		want := map[string]string{
			"apiKey":           "ABC123",
			"stationId":        "KCASANFR123",
			"numericPrecision": "decimal",
			"format":           "json",
			"units":            "m",
		}
		for k, v := range want {
			if got := q.Get(k); got != v {
				t.Errorf("query %s = %q, want %q", k, got, v)
			}
		}
		_, _ = w.Write([]byte(`{"observations": [
			{"stationID": "KCASANFR123", "humidity": 70, "winddir": 200, "uv": 1,
			 "metric": {"temp": 15.5, "windSpeed": 8, "pressure": 1016.6}},
			{"stationID": "KCASANFR123", "humidity": 1}
		]}`))
	}))
	defer srv.Close()

	c := NewObservationClient(newTestFetcher(t), srv.URL+"/v2/pws/observations/current", 0, 1)
	obs, err := c.FetchObservation(context.Background(), "ABC123", "KCASANFR123")
	if err != nil {
		t.Fatalf("FetchObservation() error = %v", err)
	}
	if obs.Humidity == nil || *obs.Humidity != 70 {
		t.Errorf("expected the first observation, got humidity %v", obs.Humidity)
	}
	if obs.Metric == nil || *obs.Metric.Temp != 15.5 {
		t.Errorf("metric block not decoded: %+v", obs.Metric)
	}
}

func TestFetchObservationEmpty(t *testing.T) {
	for _, body := range []string{`{"observations": []}`, `{}`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))

		c := NewObservationClient(newTestFetcher(t), srv.URL, 0, 1)
		_, err := c.FetchObservation(context.Background(), "K", "S")
		srv.Close()

		if !errors.Is(err, weather.ErrDataUnavailable) {
			t.Errorf("body %s: expected ErrDataUnavailable, got %v", body, err)
		}
	}
}

func TestFetchObservationPreconditions(t *testing.T) {
	c := NewObservationClient(newTestFetcher(t), "http://127.0.0.1:1", 0, 1)
	if _, err := c.FetchObservation(context.Background(), "", "S"); !errors.Is(err, errNoAPIKey) {
		t.Errorf("expected errNoAPIKey, got %v", err)
	}
	if _, err := c.FetchObservation(context.Background(), "K", ""); !errors.Is(err, errNoStationID) {
		t.Errorf("expected errNoStationID, got %v", err)
	}
}

func TestFetchObservationErrorHidesKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewObservationClient(newTestFetcher(t), srv.URL, 0, 1)
	_, err := c.FetchObservation(context.Background(), "SECRETKEY", "KTEST1")

	var fe *weather.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if strings.Contains(err.Error(), "SECRETKEY") {
		t.Errorf("error leaks api key: %v", err)
	}
	if !strings.Contains(fe.URL, "KTEST1") {
		t.Errorf("FetchError.URL = %q, want station id", fe.URL)
	}
}

func TestFetchObservationRateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"observations": [{"humidity": 1}]}`))
	}))
	defer srv.Close()

	// One request per ~3 hours: the second call can't get a token in time.
	c := NewObservationClient(newTestFetcher(t), srv.URL, 0.0001, 1)
	if _, err := c.FetchObservation(context.Background(), "K", "S"); err != nil {
		t.Fatalf("first call error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.FetchObservation(ctx, "K", "S")
	var fe *weather.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError from limiter, got %v", err)
	}
}

func TestStationsShareClientWithDefaultThrottle(t *testing.T) {
	const stations = 12

	mux := http.NewServeMux()
	mux.HandleFunc("/dashboard/pws/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><script id="app-root-state">{"1": {"u": "https://api.weather.com/v3/x?apiKey=K1"}}</script></body></html>`))
	})
	mux.HandleFunc("/observations", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `{"observations": [{"stationID": %q, "humidity": 55, "metric": {"temp": 12}}]}`, r.URL.Query().Get("stationId"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	fetcher := newTestFetcher(t)
	client := NewObservationClient(fetcher, srv.URL+"/observations", config.DefaultAPIRateLimit, config.DefaultAPIRateBurst)
	service := weather.NewService(store.NewMemoryStore(), fetcher, client, zaptest.NewLogger(t))

	for i := 0; i < stations; i++ {
		cfg := weather.StationConfig{Name: fmt.Sprintf("s%d", i), URL: fmt.Sprintf("%s/dashboard/pws/S%d", srv.URL, i)}
		if _, err := service.Configure(cfg); err != nil {
			t.Fatalf("Configure(%s) error = %v", cfg.Name, err)
		}
	}

	// Every cycle goes through the API; the key is on the page.
	for cycle := 0; cycle < 2; cycle++ {
		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			failed []error
		)
		for _, st := range service.Stations() {
			wg.Add(1)
			go func(st *weather.Station) {
				defer wg.Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if _, err := st.Refresh(ctx); err != nil {
					mu.Lock()
					failed = append(failed, err)
					mu.Unlock()
				}
			}(st)
		}
		wg.Wait()

		if len(failed) != 0 {
			t.Fatalf("cycle %d: %d of %d stations failed, first: %v", cycle, len(failed), stations, failed[0])
		}
	}

	for _, st := range service.Stations() {
		if status := st.Status(); status.Source != weather.SourceObservation {
			t.Errorf("station %s source = %q, want observations", st.Name(), status.Source)
		}
	}
}
