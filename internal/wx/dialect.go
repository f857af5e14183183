package wx

import (
	"github.com/darshan-rambhia/wxlog/internal/model"
	"github.com/darshan-rambhia/wxlog/internal/units"
)

// numericField binds one input key to a Reading field and its conversion.
type numericField struct {
	key  string
	kind units.Kind
	set  func(r *model.Reading, v float64)
}

// textField binds one input key to a string Reading field, stored verbatim.
type textField struct {
	key string
	set func(r *model.Reading, v string)
}

// Dialect is a vendor upload format, recognized by a marker in the type field.
type Dialect struct {
	Name        string
	Marker      string
	Implemented bool

	numeric []numericField
	text    []textField
}

// Fields returns the input keys the dialect recognizes, in extraction order.
func (d Dialect) Fields() []string {
	keys := make([]string, 0, len(d.numeric)+len(d.text))
	for _, f := range d.numeric {
		keys = append(keys, f.key)
	}
	for _, f := range d.text {
		keys = append(keys, f.key)
	}
	return keys
}

// PWS is the Weather Underground personal weather station upload format.
var PWS = Dialect{
	Name:        "pws",
	Marker:      "updateweatherstation.php",
	Implemented: true,
	numeric: []numericField{
		{"baromin", units.Pressure, func(r *model.Reading, v float64) { r.Baro = v }},
		{"absbaromin", units.Pressure, func(r *model.Reading, v float64) { r.AbsBaro = v }},

		{"tempf", units.Temperature, func(r *model.Reading, v float64) { r.Temp = v }},
		{"dewptf", units.Temperature, func(r *model.Reading, v float64) { r.DewPoint = v }},
		{"indoortempf", units.Temperature, func(r *model.Reading, v float64) { r.InTemp = v }},
		{"windchillf", units.Temperature, func(r *model.Reading, v float64) { r.WindChill = v }},

		{"humidity", units.None, func(r *model.Reading, v float64) { r.Humidity = v }},
		{"indoorhumidity", units.None, func(r *model.Reading, v float64) { r.InHumidity = v }},

		// winddir seeds the gust direction; windgustdir must stay after it.
		{"winddir", units.None, func(r *model.Reading, v float64) { r.WindDir, r.WindGustDir = v, v }},
		{"windgustdir", units.None, func(r *model.Reading, v float64) { r.WindGustDir = v }},
		{"windspeedmph", units.Speed, func(r *model.Reading, v float64) { r.WindSpeed = v }},
		{"windgustmph", units.Speed, func(r *model.Reading, v float64) { r.WindGustSpeed = v }},

		{"rainin", units.Length, func(r *model.Reading, v float64) { r.Precip = v }},
		{"dailyrainin", units.Length, func(r *model.Reading, v float64) { r.PrecipDay = v }},
		{"weeklyrainin", units.Length, func(r *model.Reading, v float64) { r.PrecipWeek = v }},
		{"monthlyrainin", units.Length, func(r *model.Reading, v float64) { r.PrecipMonth = v }},
		{"yearlyrainin", units.Length, func(r *model.Reading, v float64) { r.PrecipYear = v }},

		{"UV", units.None, func(r *model.Reading, v float64) { r.UV = v }},
		{"solarradiation", units.None, func(r *model.Reading, v float64) { r.Solar = v }},

		{"soiltempf", units.Temperature, func(r *model.Reading, v float64) { r.SoilTemp = v }},
		{"soilmoisture", units.None, func(r *model.Reading, v float64) { r.SoilMoisture = v }},
		{"leafwetness", units.None, func(r *model.Reading, v float64) { r.LeafWetness = v }},
		{"visibility", units.None, func(r *model.Reading, v float64) { r.Visibility = v }},
	},
	text: []textField{
		{"weather", func(r *model.Reading, v string) { r.Weather = v }},
		{"clouds", func(r *model.Reading, v string) { r.Clouds = v }},
		{"rev", func(r *model.Reading, v string) { r.FirmwareRev = v }},
	},
}

// WOW is the Met Office Weather Observations Website format. It is detected
// so that its uploads can be reported, but no fields are mapped yet.
var WOW = Dialect{
	Name:   "wow",
	Marker: "automaticreading",
}

// Dialects lists the known formats in detection order.
var Dialects = []Dialect{PWS, WOW}
