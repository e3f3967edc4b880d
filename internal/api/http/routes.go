package httpapi

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/wu-weather/internal/store"
	"github.com/i474232898/wu-weather/internal/weather"
)

// refreshTimeout bounds a refresh triggered over HTTP.
const refreshTimeout = 30 * time.Second

var validate = validator.New()

// stationView is what the API exposes for a station.
type stationView struct {
	Name       string              `json:"name"`
	StationID  string              `json:"stationId,omitempty"`
	State      *float64            `json:"state"`
	Unit       string              `json:"unit"`
	Available  bool                `json:"available"`
	Attributes *weather.Attributes `json:"attributes,omitempty"`
	Status     weather.Status      `json:"status"`
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/stations", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"stations": viewsOf(service)})
	})

	v1.Get("/stations/:name", func(c *fiber.Ctx) error {
		st, err := lookupStation(c, service)
		if err != nil {
			return err
		}
		return c.JSON(viewOf(st))
	})

	v1.Post("/stations/:name/refresh", func(c *fiber.Ctx) error {
		st, err := lookupStation(c, service)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		if _, err := st.Refresh(ctx); err != nil {
			if errors.Is(err, weather.ErrCycleInProgress) {
				return fiber.NewError(fiber.StatusConflict, "a refresh is already running for this station")
			}
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return c.JSON(viewOf(st))
	})

	v1.Post("/refresh", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		service.RefreshAll(ctx)

		return c.JSON(fiber.Map{"stations": viewsOf(service)})
	})
}

// stationParam holds the path parameter identifying a station.
type stationParam struct {
	Name string `validate:"required,max=128"`
}

func lookupStation(c *fiber.Ctx, service *weather.Service) (*weather.Station, error) {
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid station name")
	}

	p := stationParam{Name: name}
	if err := validate.Struct(p); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	st, err := service.Station(p.Name)
	if err != nil {
		if errors.Is(err, weather.ErrUnknownStation) {
			return nil, fiber.NewError(fiber.StatusNotFound, "unknown station")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to look up station")
	}
	return st, nil
}

func viewsOf(service *weather.Service) []stationView {
	stations := service.Stations()
	views := make([]stationView, 0, len(stations))
	for _, st := range stations {
		views = append(views, viewOf(st))
	}
	return views
}

func viewOf(st *weather.Station) stationView {
	status := st.Status()
	view := stationView{
		Name:      st.Name(),
		StationID: st.Config().ResolvedStationID(),
		Unit:      weather.UnitCelsius,
		Available: status.Available,
		Status:    status,
	}

	attrs, err := st.Attributes()
	if err == nil {
		view.State = attrs.State()
		view.Attributes = &attrs
	} else if !errors.Is(err, store.ErrNotFound) {
		view.Status.LastError = err.Error()
	}
	return view
}
