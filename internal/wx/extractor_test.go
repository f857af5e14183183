package wx

import (
	"bytes"
	"errors"
	"log/slog"
	"net/url"
	"testing"

	"github.com/darshan-rambhia/wxlog/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPasskey = "mypasskey"

// newTestExtractor returns a metric-mode extractor whose log output is captured.
func newTestExtractor(t *testing.T, metric bool) (*Extractor, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(Options{Passkey: testPasskey, Metric: metric}, logger), &buf
}

// fieldsOf decodes a datagram body the way the collector does.
func fieldsOf(t *testing.T, body string) map[string]string {
	t.Helper()
	values, err := url.ParseQuery(body)
	require.NoError(t, err)
	fields := make(map[string]string, len(values))
	for k, v := range values {
		fields[k] = v[len(v)-1]
	}
	return fields
}

func TestExtract_EndToEndMetric(t *testing.T) {
	e, _ := newTestExtractor(t, true)
	body := "ID=WX1&PASSWORD=mypasskey&tempf=32&humidity=50&winddir=90&windspeedmph=10&rainin=1&action=updateweatherstation.php"

	res, err := e.Extract(fieldsOf(t, body))
	require.NoError(t, err)

	r := res.Reading
	assert.Equal(t, "pws", res.Dialect)
	assert.Empty(t, res.Malformed)
	assert.Equal(t, "WX1", r.StationID)
	assert.Equal(t, 0.0, r.Temp)
	assert.Equal(t, 50.0, r.Humidity)
	assert.Equal(t, 90.0, r.WindDir)
	assert.Equal(t, 90.0, r.WindGustDir)
	assert.Equal(t, 8.69, r.WindSpeed)
	assert.Equal(t, 25.4, r.Precip)
}

func TestExtract_Imperial(t *testing.T) {
	e, _ := newTestExtractor(t, false)
	body := "ID=WX1&PASSWORD=mypasskey&tempf=72.5&baromin=29.92&windspeedmph=10&rainin=0.12&action=updateweatherstation.php"

	res, err := e.Extract(fieldsOf(t, body))
	require.NoError(t, err)

	assert.Equal(t, 72.5, res.Reading.Temp)
	assert.Equal(t, 29.92, res.Reading.Baro)
	assert.Equal(t, 10.0, res.Reading.WindSpeed)
	assert.Equal(t, 0.12, res.Reading.Precip)
}

func TestExtract_AllFields(t *testing.T) {
	e, _ := newTestExtractor(t, true)
	fields := map[string]string{
		"passkey":        "mypasskey",
		"data":           "updateweatherstation.php?ID=ATMO7",
		"baromin":        "29.9",
		"absbaromin":     "29.5",
		"tempf":          "212",
		"dewptf":         "32",
		"indoortempf":    "68",
		"windchillf":     "-40",
		"humidity":       "55",
		"indoorhumidity": "40",
		"winddir":        "180",
		"windgustdir":    "200",
		"windspeedmph":   "5",
		"windgustmph":    "10",
		"rainin":         "0.12",
		"dailyrainin":    "1",
		"weeklyrainin":   "2",
		"monthlyrainin":  "3",
		"yearlyrainin":   "4",
		"UV":             "6",
		"solarradiation": "512.3",
		"soiltempf":      "50",
		"soilmoisture":   "21",
		"leafwetness":    "7",
		"weather":        "+RA",
		"clouds":         "OVC",
		"visibility":     "9.5",
		"rev":            "0x1a2b3c",
	}

	res, err := e.Extract(fields)
	require.NoError(t, err)

	r := res.Reading
	assert.Equal(t, "ATMO7", r.StationID)
	assert.Equal(t, "0x1a2b3c", r.FirmwareRev)
	assert.Equal(t, 1012.53, r.Baro)
	assert.Equal(t, 998.98, r.AbsBaro)
	assert.Equal(t, 100.0, r.Temp)
	assert.Equal(t, 0.0, r.DewPoint)
	assert.Equal(t, 20.0, r.InTemp)
	assert.Equal(t, -40.0, r.WindChill)
	assert.Equal(t, 55.0, r.Humidity)
	assert.Equal(t, 40.0, r.InHumidity)
	assert.Equal(t, 180.0, r.WindDir)
	assert.Equal(t, 200.0, r.WindGustDir)
	assert.Equal(t, 4.34, r.WindSpeed)
	assert.Equal(t, 8.69, r.WindGustSpeed)
	assert.Equal(t, 3.05, r.Precip)
	assert.Equal(t, 25.4, r.PrecipDay)
	assert.Equal(t, 50.8, r.PrecipWeek)
	assert.Equal(t, 76.2, r.PrecipMonth)
	assert.Equal(t, 101.6, r.PrecipYear)
	assert.Equal(t, 6.0, r.UV)
	assert.Equal(t, 512.3, r.Solar)
	assert.Equal(t, 10.0, r.SoilTemp)
	assert.Equal(t, 21.0, r.SoilMoisture)
	assert.Equal(t, 7.0, r.LeafWetness)
	assert.Equal(t, "+RA", r.Weather)
	assert.Equal(t, "OVC", r.Clouds)
	assert.Equal(t, 9.5, r.Visibility)
}

func TestExtract_OnlyTokenAndType(t *testing.T) {
	e, _ := newTestExtractor(t, true)

	res, err := e.Extract(map[string]string{
		"PASSWORD": "mypasskey",
		"action":   "updateweatherstation.php?ID=WX9",
	})
	require.NoError(t, err)

	want := model.DefaultReading()
	want.StationID = "WX9"
	assert.Equal(t, want, res.Reading)
}

func TestExtract_WindGustDirDefaultsToWindDir(t *testing.T) {
	e, _ := newTestExtractor(t, true)

	res, err := e.Extract(fieldsOf(t, "PASSWORD=mypasskey&action=updateweatherstation.php&winddir=180"))
	require.NoError(t, err)
	assert.Equal(t, 180.0, res.Reading.WindDir)
	assert.Equal(t, 180.0, res.Reading.WindGustDir)

	res, err = e.Extract(fieldsOf(t, "PASSWORD=mypasskey&action=updateweatherstation.php&winddir=180&windgustdir=200"))
	require.NoError(t, err)
	assert.Equal(t, 180.0, res.Reading.WindDir)
	assert.Equal(t, 200.0, res.Reading.WindGustDir)
}

func TestExtract_WindGustDirOrderIndependent(t *testing.T) {
	e, _ := newTestExtractor(t, true)

	// Key order in the body does not matter; the field table order does.
	res, err := e.Extract(fieldsOf(t, "windgustdir=200&winddir=180&PASSWORD=mypasskey&action=updateweatherstation.php"))
	require.NoError(t, err)
	assert.Equal(t, 200.0, res.Reading.WindGustDir)
}

func TestExtract_NoCarryOverBetweenCalls(t *testing.T) {
	e, _ := newTestExtractor(t, true)

	first, err := e.Extract(fieldsOf(t, "PASSWORD=mypasskey&action=updateweatherstation.php&ID=A&tempf=50&rev=0x000042&weather=RA"))
	require.NoError(t, err)
	assert.Equal(t, 10.0, first.Reading.Temp)

	second, err := e.Extract(fieldsOf(t, "PASSWORD=mypasskey&action=updateweatherstation.php&ID=B&humidity=10"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, second.Reading.Temp)
	assert.Equal(t, model.UnknownFirmware, second.Reading.FirmwareRev)
	assert.Equal(t, model.UnknownCondition, second.Reading.Weather)
	assert.Equal(t, 10.0, second.Reading.Humidity)
}

func TestExtract_AuthRejected(t *testing.T) {
	e, _ := newTestExtractor(t, true)

	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"no token", map[string]string{"action": "updateweatherstation.php", "ID": "WX1"}},
		{"wrong token", map[string]string{"PASSWORD": "letmein", "action": "updateweatherstation.php"}},
		{"partial token", map[string]string{"passkey": "mypass", "data": "updateweatherstation.php"}},
		{"token but no type", map[string]string{"PASSWORD": "wrong"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Extract(tt.fields)
			assert.ErrorIs(t, err, ErrAuthRejected)
			assert.Equal(t, Result{}, res)
		})
	}
}

func TestExtract_TokenAccepted(t *testing.T) {
	e, _ := newTestExtractor(t, true)

	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"substring", map[string]string{"PASSWORD": "xx-mypasskey-xx", "action": "updateweatherstation.php"}},
		{"passkey key", map[string]string{"passkey": "mypasskey", "data": "updateweatherstation.php"}},
		{"stray PASSWORD with good passkey", map[string]string{
			"PASSWORD": "wrong",
			"passkey":  "mypasskey",
			"data":     "updateweatherstation.php",
		}},
		{"good PASSWORD with stray passkey", map[string]string{
			"PASSWORD": "mypasskey",
			"passkey":  "wrong",
			"action":   "updateweatherstation.php",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Extract(tt.fields)
			assert.NoError(t, err)
		})
	}
}

func TestExtract_UnrecognizedDialect(t *testing.T) {
	e, _ := newTestExtractor(t, true)

	_, err := e.Extract(map[string]string{"PASSWORD": "mypasskey", "action": "upload.cgi"})
	assert.ErrorIs(t, err, ErrUnrecognizedDialect)

	_, err = e.Extract(map[string]string{"PASSWORD": "mypasskey", "tempf": "70"})
	assert.ErrorIs(t, err, ErrUnrecognizedDialect)
}

func TestExtract_UnimplementedDialect(t *testing.T) {
	e, _ := newTestExtractor(t, true)

	res, err := e.Extract(map[string]string{"passkey": "mypasskey", "data": "automaticreading?siteid=1"})
	assert.ErrorIs(t, err, ErrUnimplementedDialect)
	assert.False(t, errors.Is(err, ErrUnrecognizedDialect))
	assert.Equal(t, "wow", res.Dialect)
}

func TestExtract_MalformedFieldKeepsDefault(t *testing.T) {
	e, logs := newTestExtractor(t, true)

	res, err := e.Extract(fieldsOf(t, "PASSWORD=mypasskey&action=updateweatherstation.php&ID=WX1&tempf=warm&humidity=NaN&baromin=29.9"))
	require.NoError(t, err)

	assert.Equal(t, 0.0, res.Reading.Temp)
	assert.Equal(t, 0.0, res.Reading.Humidity)
	assert.Equal(t, 1012.53, res.Reading.Baro)

	require.Len(t, res.Malformed, 2)
	keys := []string{res.Malformed[0].Key, res.Malformed[1].Key}
	assert.ElementsMatch(t, []string{"tempf", "humidity"}, keys)

	var mf *MalformedFieldError
	require.True(t, errors.As(error(res.Malformed[0]), &mf))
	assert.Contains(t, mf.Error(), "tempf")
	assert.Contains(t, logs.String(), "malformed field")
}

func TestExtract_OverflowingValueIsMalformed(t *testing.T) {
	e, _ := newTestExtractor(t, true)

	res, err := e.Extract(fieldsOf(t, "PASSWORD=mypasskey&action=updateweatherstation.php&ID=WX1&baromin=1e307&tempf=70"))
	require.NoError(t, err)

	require.Len(t, res.Malformed, 1)
	assert.Equal(t, "baromin", res.Malformed[0].Key)
	assert.Equal(t, model.DefaultReading().Baro, res.Reading.Baro)
	assert.Equal(t, 21.11, res.Reading.Temp)
}

func TestExtract_UnknownKeysIgnored(t *testing.T) {
	e, _ := newTestExtractor(t, true)

	res, err := e.Extract(fieldsOf(t, "PASSWORD=mypasskey&action=updateweatherstation.php&ID=WX1&softwaretype=EasyWeather&realtime=1&rtfreq=5"))
	require.NoError(t, err)
	assert.Empty(t, res.Malformed)
	assert.Equal(t, "WX1", res.Reading.StationID)
}

func TestStationID(t *testing.T) {
	tests := []struct {
		name      string
		typeValue string
		fields    map[string]string
		want      string
	}{
		{"from type field", "updateweatherstation.php?ID=WX1", nil, "WX1"},
		{"type field wins over ID", "updateweatherstation.php?ID=WX1", map[string]string{"ID": "OTHER"}, "WX1"},
		{"stops at next equals", "updateweatherstation.php?ID=WX1=junk", nil, "WX1"},
		{"from ID key", "updateweatherstation.php", map[string]string{"ID": "KTXAUSTI12"}, "KTXAUSTI12"},
		{"empty after equals", "updateweatherstation.php?ID=", map[string]string{"ID": "WX2"}, "WX2"},
		{"unknown", "updateweatherstation.php", nil, model.UnknownStationID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stationID(tt.typeValue, tt.fields))
		})
	}
}

func TestDialectFields(t *testing.T) {
	keys := PWS.Fields()
	assert.Contains(t, keys, "tempf")
	assert.Contains(t, keys, "rev")
	assert.Empty(t, WOW.Fields())

	var windDir, gustDir int
	for i, k := range keys {
		switch k {
		case "winddir":
			windDir = i
		case "windgustdir":
			gustDir = i
		}
	}
	assert.Less(t, windDir, gustDir, "winddir must be applied before windgustdir")
}

func FuzzExtract(f *testing.F) {
	f.Add("ID=WX1&PASSWORD=mypasskey&tempf=32&action=updateweatherstation.php")
	f.Add("passkey=mypasskey&data=updateweatherstation.php?ID=A&winddir=x")
	f.Add("passkey=mypasskey&data=automaticreading")
	f.Add("")

	e := New(Options{Passkey: testPasskey, Metric: true}, slog.New(slog.DiscardHandler))
	f.Fuzz(func(t *testing.T, body string) {
		values, _ := url.ParseQuery(body)
		fields := make(map[string]string, len(values))
		for k, v := range values {
			fields[k] = v[len(v)-1]
		}
		res, err := e.Extract(fields)
		if err != nil {
			return
		}
		if res.Reading.StationID == "" {
			t.Fatalf("empty station ID for %q", body)
		}
	})
}

func BenchmarkExtract(b *testing.B) {
	e := New(Options{Passkey: testPasskey, Metric: true}, slog.New(slog.DiscardHandler))
	values, err := url.ParseQuery("ID=WX1&PASSWORD=mypasskey&tempf=72.5&dewptf=55.1&humidity=54&baromin=29.92" +
		"&winddir=225&windspeedmph=6.2&windgustmph=11&rainin=0.01&dailyrainin=0.12&UV=4&solarradiation=612.5" +
		"&weather=-RA&clouds=BKN&rev=4.2.8&action=updateweatherstation.php")
	require.NoError(b, err)
	fields := make(map[string]string, len(values))
	for k, v := range values {
		fields[k] = v[0]
	}

	for b.Loop() {
		if _, err := e.Extract(fields); err != nil {
			b.Fatal(err)
		}
	}
}
