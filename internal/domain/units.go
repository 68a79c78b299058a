package domain

// Conversion factors from provider units to the canonical metric schema.
const (
	HPaPerInHg = 33.8638
	MSPerMph   = 0.44704
	MMPerInch  = 25.4
	KmhPerMS   = 3.6
)

// FahrenheitToCelsius converts °F to °C.
func FahrenheitToCelsius(f float64) float64 { return (f - 32) * 5 / 9 }

// InHgToHPa converts inches of mercury to hectopascals.
func InHgToHPa(inHg float64) float64 { return inHg * HPaPerInHg }

// MphToMS converts miles per hour to meters per second.
func MphToMS(mph float64) float64 { return mph * MSPerMph }

// InchesToMM converts inches to millimeters.
func InchesToMM(in float64) float64 { return in * MMPerInch }

// KmhToMS converts kilometers per hour to meters per second.
func KmhToMS(kmh float64) float64 { return kmh / KmhPerMS }
