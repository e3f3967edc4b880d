package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Service owns one Station per configured station and shares the fetchers and
// store between them. Stations never share mutable state.
type Service struct {
	store        Store
	pages        PageFetcher
	observations ObservationFetcher
	logger       *zap.Logger
	opts         []StationOption

	mu       sync.RWMutex
	stations map[string]*Station
	order    []string
}

// NewService creates a new Service.
func NewService(store Store, pages PageFetcher, observations ObservationFetcher, logger *zap.Logger, opts ...StationOption) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:        store,
		pages:        pages,
		observations: observations,
		logger:       logger,
		opts:         opts,
		stations:     make(map[string]*Station),
	}
}

// Configure registers a station. Names must be unique.
func (s *Service) Configure(cfg StationConfig) (*Station, error) {
	if cfg.Name == "" {
		return nil, errors.New("station name is required")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("station %s: current weather url is required", cfg.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.stations[cfg.Name]; exists {
		return nil, fmt.Errorf("station %s is already configured", cfg.Name)
	}

	st := NewStation(cfg, s.pages, s.observations, s.store, s.logger, s.opts...)
	s.stations[cfg.Name] = st
	s.order = append(s.order, cfg.Name)

	if st.stationID == "" {
		s.logger.Warn("could not derive a station id from url; observations api disabled",
			zap.String("station", cfg.Name), zap.String("url", cfg.URL))
	}
	return st, nil
}

// Station looks up a configured station by name.
func (s *Service) Station(name string) (*Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stations[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStation, name)
	}
	return st, nil
}

// Stations returns all stations in configuration order.
func (s *Service) Stations() []*Station {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Station, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.stations[name])
	}
	return out
}

// Refresh runs one cycle for the named station.
func (s *Service) Refresh(ctx context.Context, name string) (Attributes, error) {
	st, err := s.Station(name)
	if err != nil {
		return Attributes{}, err
	}
	return st.Refresh(ctx)
}

// RefreshAll refreshes every station concurrently. A failing station doesn't
// affect the others.
func (s *Service) RefreshAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, st := range s.Stations() {
		st := st
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Failed cycles are logged by the station itself.
			if _, err := st.Refresh(ctx); errors.Is(err, ErrCycleInProgress) {
				s.logger.Info("skipping station; previous cycle still running", zap.String("station", st.Name()))
			}
		}()
	}
	wg.Wait()
}

// Attributes returns the stored attributes of the named station.
func (s *Service) Attributes(name string) (Attributes, error) {
	st, err := s.Station(name)
	if err != nil {
		return Attributes{}, err
	}
	return st.Attributes()
}
