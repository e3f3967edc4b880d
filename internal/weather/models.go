package weather

import (
	"net/url"
	"path"
	"strings"
)

// Unit labels published next to the values they describe.
const (
	UnitCelsius     = "°C"
	UnitKmh         = "km/h"
	UnitMillimeters = "mm"
)

// LatestUpdateLayout is the local wall-clock layout used for Attributes.LatestUpdate.
const LatestUpdateLayout = "01/02/2006, 15:04:05"

// StationConfig identifies one station to track.
type StationConfig struct {
	Name string `json:"name" yaml:"name" validate:"required"`
	URL  string `json:"url" yaml:"url" validate:"required,url"`
	// StationID is the PWS identifier used against the observations API.
	// Empty means "derive from URL".
	StationID string `json:"stationId,omitempty" yaml:"station_id"`
}

// ResolvedStationID returns StationID, falling back to the last path segment of URL
// (dashboard URLs look like https://www.wunderground.com/dashboard/pws/KCASANFR123).
func (c StationConfig) ResolvedStationID() string {
	if c.StationID != "" {
		return c.StationID
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return ""
	}
	seg := path.Base(strings.TrimRight(u.Path, "/"))
	if seg == "." || seg == "/" {
		return ""
	}
	return seg
}

// Attributes is the canonical, metric attribute set exposed to the host.
// Nil fields were never reported.
type Attributes struct {
	Temperature         *float64 `json:"temperature,omitempty"`
	TemperatureUnit     string   `json:"temperature_unit,omitempty"`
	ApparentTemperature *float64 `json:"apparent_temperature,omitempty"`
	DewPoint            *float64 `json:"dew_point,omitempty"`
	Humidity            *float64 `json:"humidity,omitempty"`
	Pressure            *float64 `json:"pressure,omitempty"`
	WindSpeed           *float64 `json:"wind_speed,omitempty"`
	WindSpeedUnit       string   `json:"wind_speed_unit,omitempty"`
	WindGustSpeed       *float64 `json:"wind_gust_speed,omitempty"`
	WindBearing         *float64 `json:"wind_bearing,omitempty"`
	UVIndex             *float64 `json:"uv_index,omitempty"`
	Precipitation       *float64 `json:"precipitation,omitempty"`
	PrecipitationUnit   string   `json:"precipitation_unit,omitempty"`
	LatestUpdate        string   `json:"latest_update,omitempty"`
}

// IsEmpty reports whether no measurement is set. Unit labels and LatestUpdate don't count.
func (a Attributes) IsEmpty() bool {
	for _, v := range a.measurements() {
		if *v != nil {
			return false
		}
	}
	return true
}

// Merge overwrites the fields set in partial and leaves the rest untouched.
func (a *Attributes) Merge(partial Attributes) {
	dst := a.measurements()
	for i, v := range partial.measurements() {
		if *v != nil {
			val := **v
			*dst[i] = &val
		}
	}
	if partial.TemperatureUnit != "" {
		a.TemperatureUnit = partial.TemperatureUnit
	}
	if partial.WindSpeedUnit != "" {
		a.WindSpeedUnit = partial.WindSpeedUnit
	}
	if partial.PrecipitationUnit != "" {
		a.PrecipitationUnit = partial.PrecipitationUnit
	}
	if partial.LatestUpdate != "" {
		a.LatestUpdate = partial.LatestUpdate
	}
}

// Clone returns a deep copy so callers can't mutate stored values through pointers.
func (a Attributes) Clone() Attributes {
	var out Attributes
	out.Merge(a)
	return out
}

// State returns the primary scalar value (temperature) used as the station's state.
func (a Attributes) State() *float64 {
	return a.Temperature
}

func (a *Attributes) measurements() []**float64 {
	return []**float64{
		&a.Temperature,
		&a.ApparentTemperature,
		&a.DewPoint,
		&a.Humidity,
		&a.Pressure,
		&a.WindSpeed,
		&a.WindGustSpeed,
		&a.WindBearing,
		&a.UVIndex,
		&a.Precipitation,
	}
}

// Summary is the daily summary embedded in the dashboard page, in imperial units.
type Summary struct {
	Imperial    *ImperialSummary `json:"imperial"`
	HumidityAvg *float64         `json:"humidityAvg"`
	WinddirAvg  *float64         `json:"winddirAvg"`
	UVHigh      *float64         `json:"uvHigh"`
}

// ImperialSummary holds the unit-bearing summary fields.
type ImperialSummary struct {
	TempAvg      *float64 `json:"tempAvg"`
	DewptAvg     *float64 `json:"dewptAvg"`
	WindchillAvg *float64 `json:"windchillAvg"`
	WindspeedAvg *float64 `json:"windspeedAvg"`
	WindgustAvg  *float64 `json:"windgustAvg"`
	PressureMax  *float64 `json:"pressureMax"`
	PrecipRate   *float64 `json:"precipRate"`
}

// ObservationResponse is the envelope returned by the observations API.
type ObservationResponse struct {
	Observations []Observation `json:"observations"`
}

// Observation is a single current observation, requested in metric units.
type Observation struct {
	StationID    string             `json:"stationID"`
	ObsTimeUTC   string             `json:"obsTimeUtc"`
	ObsTimeLocal string             `json:"obsTimeLocal"`
	Humidity     *float64           `json:"humidity"`
	Winddir      *float64           `json:"winddir"`
	UV           *float64           `json:"uv"`
	Metric       *MetricObservation `json:"metric"`
}

// MetricObservation holds the unit-bearing observation fields.
type MetricObservation struct {
	Temp       *float64 `json:"temp"`
	Dewpt      *float64 `json:"dewpt"`
	WindChill  *float64 `json:"windChill"`
	WindSpeed  *float64 `json:"windSpeed"`
	WindGust   *float64 `json:"windGust"`
	Pressure   *float64 `json:"pressure"`
	PrecipRate *float64 `json:"precipRate"`
}
