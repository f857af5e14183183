// Package units converts station measurements from imperial to metric units.
//
// Forward conversions round to two decimals, matching what is written to the
// partition files. The inverse functions exist for the simulator and for
// checking that a stored value maps back to what the station sent.
package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	fahrenheitScale = 0.555556
	hPaPerInHg      = 33.8638816
	knotsPerMph     = 0.868976
	mmPerInch       = 25.4
)

// ErrNotNumeric is returned when a field value cannot be read as a finite number.
var ErrNotNumeric = errors.New("value is not numeric")

// Kind names the physical quantity of a field and so its conversion.
type Kind int

const (
	None Kind = iota
	Temperature
	Pressure
	Speed
	Length
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Temperature:
		return "temperature"
	case Pressure:
		return "pressure"
	case Speed:
		return "speed"
	case Length:
		return "length"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Converter parses raw field values and converts them when Metric is set.
type Converter struct {
	Metric bool
}

// Convert parses raw and, in metric mode, converts it according to kind.
// In imperial mode the parsed value is returned unchanged.
func (c Converter) Convert(kind Kind, raw string) (float64, error) {
	v, err := Parse(raw)
	if err != nil {
		return 0, err
	}
	if !c.Metric {
		return v, nil
	}
	switch kind {
	case Temperature:
		v = FahrenheitToCelsius(v)
	case Pressure:
		v = InHgToHPa(v)
	case Speed:
		v = MphToKnots(v)
	case Length:
		v = InchesToMillimeters(v)
	}
	if math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q overflows as %s", ErrNotNumeric, raw, kind)
	}
	return v, nil
}

// Parse reads any numeric-looking string ("72", " 72.50", "+1e1").
func Parse(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not finite", ErrNotNumeric, raw)
	}
	return v, nil
}

// Round rounds v to the given number of decimal places, half away from zero.
// Values too large to scale have no fractional part and are returned as is.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	if math.IsInf(v*p, 0) {
		return v
	}
	return math.Round(v*p) / p
}

func FahrenheitToCelsius(f float64) float64 {
	return Round((f-32)*fahrenheitScale, 2)
}

func CelsiusToFahrenheit(c float64) float64 {
	return c/fahrenheitScale + 32
}

func InHgToHPa(inHg float64) float64 {
	return Round(inHg*hPaPerInHg, 2)
}

func HPaToInHg(hPa float64) float64 {
	return hPa / hPaPerInHg
}

func MphToKnots(mph float64) float64 {
	return Round(mph*knotsPerMph, 2)
}

func KnotsToMph(kt float64) float64 {
	return kt / knotsPerMph
}

func InchesToMillimeters(in float64) float64 {
	return Round(in*mmPerInch, 2)
}

func MillimetersToInches(mm float64) float64 {
	return mm / mmPerInch
}
