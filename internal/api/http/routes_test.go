package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap/zaptest"

	"github.com/i474232898/wu-weather/internal/store"
	"github.com/i474232898/wu-weather/internal/weather"
)

const testPage = `<html><body><script id="app-root-state">{"1": {"b": {"summaries": [{"imperial": {"tempAvg": 68}, "humidityAvg": 50}]}}}</script></body></html>`

type stubPages struct{}

func (stubPages) Fetch(ctx context.Context, url string) ([]byte, error) {
	if strings.Contains(url, "broken") {
		return nil, &weather.FetchError{URL: url, Err: errors.New("connection refused")}
	}
	return []byte(testPage), nil
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	svc := weather.NewService(store.NewMemoryStore(), stubPages{}, nil, zaptest.NewLogger(t))
	for _, cfg := range []weather.StationConfig{
		{Name: "home", URL: "https://www.wunderground.com/dashboard/pws/KHOME1"},
		{Name: "WU Weather", URL: "https://www.wunderground.com/dashboard/pws/KWU1"},
		{Name: "down", URL: "https://broken.example/dashboard/pws/KDOWN1"},
	} {
		if _, err := svc.Configure(cfg); err != nil {
			t.Fatal(err)
		}
	}

	app := fiber.New()
	RegisterRoutes(app, svc)
	return app
}

func do(t *testing.T, app *fiber.App, method, target string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil), -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	return resp.StatusCode, body
}

func TestUnknownStationReturns404(t *testing.T) {
	app := newTestApp(t)

	if code, _ := do(t, app, http.MethodGet, "/api/v1/stations/nowhere"); code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, code)
	}
	if code, _ := do(t, app, http.MethodPost, "/api/v1/stations/nowhere/refresh"); code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, code)
	}
}

func TestStationBeforeAndAfterRefresh(t *testing.T) {
	app := newTestApp(t)

	code, body := do(t, app, http.MethodGet, "/api/v1/stations/home")
	if code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, code)
	}
	if body["available"] != false || body["state"] != nil {
		t.Errorf("unexpected body before refresh: %v", body)
	}
	if body["stationId"] != "KHOME1" {
		t.Errorf("stationId = %v", body["stationId"])
	}

	code, body = do(t, app, http.MethodPost, "/api/v1/stations/home/refresh")
	if code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, code)
	}
	if body["available"] != true || body["state"] != 20.0 {
		t.Errorf("unexpected body after refresh: %v", body)
	}
	attrs, _ := body["attributes"].(map[string]any)
	if attrs["humidity"] != 50.0 || attrs["temperature_unit"] != weather.UnitCelsius {
		t.Errorf("unexpected attributes: %v", attrs)
	}
}

func TestEscapedStationName(t *testing.T) {
	app := newTestApp(t)

	code, body := do(t, app, http.MethodGet, "/api/v1/stations/WU%20Weather")
	if code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, code)
	}
	if body["name"] != "WU Weather" {
		t.Errorf("name = %v", body["name"])
	}
}

func TestFailedRefreshReturns502(t *testing.T) {
	app := newTestApp(t)

	code, _ := do(t, app, http.MethodPost, "/api/v1/stations/down/refresh")
	if code != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, code)
	}

	_, body := do(t, app, http.MethodGet, "/api/v1/stations/down")
	status, _ := body["status"].(map[string]any)
	if status["state"] != string(weather.StateFailed) || status["lastError"] == nil {
		t.Errorf("unexpected status: %v", status)
	}
}

func TestRefreshAll(t *testing.T) {
	app := newTestApp(t)

	code, body := do(t, app, http.MethodPost, "/api/v1/refresh")
	if code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, code)
	}
	stations, _ := body["stations"].([]any)
	if len(stations) != 3 {
		t.Fatalf("expected 3 stations, got %d", len(stations))
	}

	available := 0
	for _, s := range stations {
		if m, _ := s.(map[string]any); m["available"] == true {
			available++
		}
	}
	if available != 2 {
		t.Errorf("expected 2 available stations, got %d", available)
	}
}
