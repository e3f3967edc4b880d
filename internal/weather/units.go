package weather

// Conversion factors. Values are returned unrounded.
const (
	kmhPerMph  = 1.60934
	hpaPerInHg = 33.86389
	mmPerInch  = 25.4
)

// FahrenheitToCelsius converts °F to °C.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// MphToKmh converts miles per hour to kilometres per hour.
func MphToKmh(v float64) float64 {
	return v * kmhPerMph
}

// InHgToHpa converts inches of mercury to hectopascals.
func InHgToHpa(v float64) float64 {
	return v * hpaPerInHg
}

// InchToMm converts inches to millimetres.
func InchToMm(v float64) float64 {
	return v * mmPerInch
}
