package weather

import "time"

// NormalizeSummary converts a scraped imperial summary into canonical metric attributes.
// Only fields present in s are set. LatestUpdate is stamped with now when anything was found.
func NormalizeSummary(s Summary, now time.Time) Attributes {
	var a Attributes

	if imp := s.Imperial; imp != nil {
		if imp.DewptAvg != nil {
			a.DewPoint = ptr(FahrenheitToCelsius(*imp.DewptAvg))
		}
		if imp.WindchillAvg != nil {
			a.ApparentTemperature = ptr(FahrenheitToCelsius(*imp.WindchillAvg))
		}
		if imp.PrecipRate != nil {
			a.Precipitation = ptr(InchToMm(*imp.PrecipRate))
			a.PrecipitationUnit = UnitMillimeters
		}
		if imp.TempAvg != nil {
			a.Temperature = ptr(FahrenheitToCelsius(*imp.TempAvg))
			a.TemperatureUnit = UnitCelsius
		}
		if imp.WindspeedAvg != nil {
			a.WindSpeed = ptr(MphToKmh(*imp.WindspeedAvg))
			a.WindSpeedUnit = UnitKmh
		}
		if imp.WindgustAvg != nil {
			a.WindGustSpeed = ptr(MphToKmh(*imp.WindgustAvg))
		}
		if imp.PressureMax != nil {
			a.Pressure = ptr(InHgToHpa(*imp.PressureMax))
		}
	}

	if s.HumidityAvg != nil {
		a.Humidity = ptr(*s.HumidityAvg)
	}
	if s.WinddirAvg != nil {
		a.WindBearing = ptr(*s.WinddirAvg)
	}
	if s.UVHigh != nil {
		a.UVIndex = ptr(*s.UVHigh)
	}

	if !a.IsEmpty() {
		a.LatestUpdate = now.Format(LatestUpdateLayout)
	}
	return a
}

// NormalizeObservation maps an API observation onto canonical attributes.
// The API is queried with metric units, so no conversion is applied.
func NormalizeObservation(o Observation) Attributes {
	var a Attributes

	if m := o.Metric; m != nil {
		if m.Dewpt != nil {
			a.DewPoint = ptr(*m.Dewpt)
		}
		if m.WindChill != nil {
			a.ApparentTemperature = ptr(*m.WindChill)
		}
		if m.PrecipRate != nil {
			a.Precipitation = ptr(*m.PrecipRate)
			a.PrecipitationUnit = UnitMillimeters
		}
		if m.Temp != nil {
			a.Temperature = ptr(*m.Temp)
			a.TemperatureUnit = UnitCelsius
		}
		if m.WindSpeed != nil {
			a.WindSpeed = ptr(*m.WindSpeed)
			a.WindSpeedUnit = UnitKmh
		}
		if m.WindGust != nil {
			a.WindGustSpeed = ptr(*m.WindGust)
		}
		if m.Pressure != nil {
			a.Pressure = ptr(*m.Pressure)
		}
	}

	if o.Humidity != nil {
		a.Humidity = ptr(*o.Humidity)
	}
	if o.Winddir != nil {
		a.WindBearing = ptr(*o.Winddir)
	}
	if o.UV != nil {
		a.UVIndex = ptr(*o.UV)
	}
	return a
}

func ptr(v float64) *float64 { return &v }
