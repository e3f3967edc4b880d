package weather

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CycleState is the position of a station within its refresh cycle.
type CycleState string

const (
	StateIdle              CycleState = "idle"
	StateFetching          CycleState = "fetching"
	StateExtracting        CycleState = "extracting"
	StateKeyDerivation     CycleState = "key_derivation"
	StateSecondaryFetching CycleState = "secondary_fetching"
	StateNormalizing       CycleState = "normalizing"
	StateDone              CycleState = "done"
	StateFailed            CycleState = "failed"
)

// Source names where a cycle's attributes came from.
type Source string

const (
	SourceNone        Source = ""
	SourceSummary     Source = "summary"
	SourceObservation Source = "observation"
)

// Status is a point-in-time view of a station's refresh bookkeeping.
type Status struct {
	State       CycleState `json:"state"`
	Available   bool       `json:"available"`
	Source      Source     `json:"source,omitempty"`
	HasAPIKey   bool       `json:"hasApiKey"`
	LastError   string     `json:"lastError,omitempty"`
	LastSuccess *time.Time `json:"lastSuccess,omitempty"`
}

// StationOption customises a Station.
type StationOption func(*Station)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) StationOption {
	return func(s *Station) {
		s.now = now
	}
}

// Station runs the fetch → extract → (observation API) → normalize pipeline
// for one configured station and owns its cached API key.
type Station struct {
	cfg          StationConfig
	stationID    string
	pages        PageFetcher
	observations ObservationFetcher
	store        Store
	logger       *zap.Logger
	now          func() time.Time

	// cycle is held for the duration of a Refresh.
	cycle sync.Mutex

	mu     sync.RWMutex
	apiKey string
	status Status
}

// NewStation creates a Station. observations may be nil, in which case only
// the scraped summary is used.
func NewStation(
	cfg StationConfig,
	pages PageFetcher,
	observations ObservationFetcher,
	store Store,
	logger *zap.Logger,
	opts ...StationOption,
) *Station {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Station{
		cfg:          cfg,
		stationID:    cfg.ResolvedStationID(),
		pages:        pages,
		observations: observations,
		store:        store,
		logger:       logger.With(zap.String("station", cfg.Name)),
		now:          time.Now,
		status:       Status{State: StateIdle},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the configured station name.
func (s *Station) Name() string {
	return s.cfg.Name
}

// Config returns the station's configuration.
func (s *Station) Config() StationConfig {
	return s.cfg
}

// APIKey returns the cached observations API key, or "" if none was ever found.
func (s *Station) APIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiKey
}

// Status returns the current refresh status.
func (s *Station) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	st.HasAPIKey = s.apiKey != ""
	return st
}

// Attributes returns the stored attributes for this station.
func (s *Station) Attributes() (Attributes, error) {
	return s.store.Get(s.cfg.Name)
}

// Refresh runs one cycle and returns the merged attribute set. On failure the
// stored attributes are left untouched and an *UpdateFailedError is returned.
func (s *Station) Refresh(ctx context.Context) (Attributes, error) {
	if !s.cycle.TryLock() {
		return Attributes{}, ErrCycleInProgress
	}
	defer s.cycle.Unlock()

	log := s.logger.With(zap.String("cycle", uuid.NewString()))
	log.Debug("refresh started", zap.String("url", s.cfg.URL))

	partial, source, err := s.run(ctx, log)
	if err != nil {
		s.mu.Lock()
		s.status.State = StateFailed
		s.status.Available = false
		s.status.LastError = err.Error()
		s.mu.Unlock()

		log.Warn("refresh failed", zap.Error(err))
		return Attributes{}, &UpdateFailedError{Station: s.cfg.Name, Err: err}
	}

	var merged Attributes
	if partial.IsEmpty() {
		// Nothing new; the previous set (if any) stays as it is.
		merged, _ = s.store.Get(s.cfg.Name)
	} else {
		merged = s.store.Merge(s.cfg.Name, partial)
	}

	finished := s.now()
	s.mu.Lock()
	s.status.State = StateDone
	s.status.Available = true
	s.status.Source = source
	s.status.LastError = ""
	s.status.LastSuccess = &finished
	s.mu.Unlock()

	log.Info("refresh completed", zap.String("source", string(source)))
	return merged, nil
}

func (s *Station) run(ctx context.Context, log *zap.Logger) (Attributes, Source, error) {
	s.setState(StateFetching)
	page, err := s.pages.Fetch(ctx, s.cfg.URL)
	if err != nil {
		return Attributes{}, SourceNone, err
	}

	s.setState(StateExtracting)
	state, err := ExtractState(page)
	if err != nil {
		return Attributes{}, SourceNone, err
	}

	s.setState(StateKeyDerivation)
	if key, ok := FindAPIKeyHint(state); ok {
		s.mu.Lock()
		if s.apiKey != key {
			log.Info("observations api key discovered")
		}
		s.apiKey = key
		s.mu.Unlock()
	}

	if key := s.APIKey(); key != "" && s.observations != nil && s.stationID != "" {
		s.setState(StateSecondaryFetching)
		obs, err := s.observations.FetchObservation(ctx, key, s.stationID)
		if errors.Is(err, ErrDataUnavailable) {
			log.Warn("observations api returned no data; keeping previous attributes")
			return Attributes{}, SourceNone, nil
		}
		if err != nil {
			return Attributes{}, SourceNone, err
		}

		s.setState(StateNormalizing)
		attrs := NormalizeObservation(obs)
		if !attrs.IsEmpty() {
			attrs.LatestUpdate = s.now().Format(LatestUpdateLayout)
		}
		return attrs, SourceObservation, nil
	}

	s.setState(StateNormalizing)
	summary, ok := FindSummary(state)
	if !ok {
		log.Warn("page carried neither an api key nor a weather summary")
		return Attributes{}, SourceNone, nil
	}
	return NormalizeSummary(summary, s.now()), SourceSummary, nil
}

func (s *Station) setState(st CycleState) {
	s.mu.Lock()
	s.status.State = st
	s.mu.Unlock()
}
