// Package simulator fabricates weather stations that upload in the Weather
// Underground PWS format, for exercising a running collector.
package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jonboulle/clockwork"

	"github.com/darshan-rambhia/wxlog/internal/model"
	"github.com/darshan-rambhia/wxlog/internal/units"
)

// Station is a fabricated weather station.
type Station struct {
	ID        string  `fake:"skip"`
	Location  string  `fake:"{city}, {state}"`
	Firmware  string  `fake:"{appversion}"`
	Latitude  float64 `fake:"{latitude}"`
	Longitude float64 `fake:"{longitude}"`
}

// NewStation fills a Station from f. IDs follow the Weather Underground
// pattern of a letter prefix and a short number, e.g. "KTXAUSTI12".
func NewStation(f *gofakeit.Faker) (*Station, error) {
	var st Station
	if err := f.Struct(&st); err != nil {
		return nil, fmt.Errorf("fabricating station: %w", err)
	}
	st.ID = "K" + strings.ToUpper(f.LetterN(7)) + f.DigitN(2)
	return &st, nil
}

var (
	skyCover = []string{"SKC", "FEW", "SCT", "BKN", "OVC"}
	rainWx   = []string{"-RA", "RA", "+RA", "-DZ"}
)

// Generator produces a plausible series of metric readings for one station.
type Generator struct {
	station *Station
	faker   *gofakeit.Faker

	baselineTemp     float64 // °C
	baselineHumidity float64 // %
	baselinePressure float64 // hPa
	noise            float64
	pressureTrend    float64
	lastPressure     float64
	windDir          float64
	raining          bool

	rainDay   float64 // mm since local midnight
	rainMonth float64
	rainYear  float64
	lastDay   int
}

// NewGenerator seeds a generator's baselines from f.
func NewGenerator(st *Station, f *gofakeit.Faker) *Generator {
	return &Generator{
		station:          st,
		faker:            f,
		baselineTemp:     f.Float64Range(5, 25),
		baselineHumidity: f.Float64Range(45, 75),
		baselinePressure: f.Float64Range(1003, 1023),
		noise:            f.Float64Range(0, 2),
		pressureTrend:    f.Float64Range(-0.25, 0.25),
		lastPressure:     1013,
		windDir:          float64(f.Number(0, 359)),
		rainYear:         f.Float64Range(100, 600),
		lastDay:          -1,
	}
}

// Station returns the station the generator reports for.
func (g *Generator) Station() *Station { return g.station }

// Reading returns the station's reading for t, in metric units.
func (g *Generator) Reading(t time.Time) model.Reading {
	f := g.faker
	hour := float64(t.Hour()) + float64(t.Minute())/60

	// Daily cycle peaking mid-afternoon.
	temp := g.baselineTemp + 5*math.Sin((hour-9)*math.Pi/12) + (f.Float64()-0.5)*g.noise
	humidity := g.baselineHumidity - 3*math.Sin((hour-9)*math.Pi/12) - (temp-g.baselineTemp)*1.5
	humidity = math.Max(15, math.Min(100, humidity))

	// Pressure random walk with an occasional trend reversal.
	if f.Float64() < 0.1 {
		g.pressureTrend = -g.pressureTrend + (f.Float64()-0.5)*0.2
	}
	pressure := g.lastPressure + (f.Float64()-0.5)*0.5 + g.pressureTrend
	pressure = g.baselinePressure + (pressure-g.baselinePressure)*0.7
	pressure = math.Max(980, math.Min(1040, pressure))
	g.lastPressure = pressure

	g.windDir = math.Mod(g.windDir+f.Float64Range(-20, 20)+360, 360)
	wind := math.Max(0, f.Float64Range(0, 12)+(f.Float64()-0.5)*g.noise)
	gust := wind + f.Float64Range(0, 8)

	if day := t.YearDay(); day != g.lastDay {
		if t.Month() == time.January && day == 1 {
			g.rainYear = 0
		}
		if t.Day() == 1 {
			g.rainMonth = 0
		}
		g.rainDay = 0
		g.lastDay = day
	}
	// Rain starts and stops in spells; low pressure makes it likelier.
	switch {
	case g.raining && f.Float64() < 0.1:
		g.raining = false
	case !g.raining && f.Float64() < 0.02+math.Max(0, 1010-pressure)*0.005:
		g.raining = true
	}
	var rate float64
	weather := ""
	clouds := f.RandomString(skyCover[:3])
	if g.raining {
		rate = f.Float64Range(0.2, 6)
		weather = f.RandomString(rainWx)
		clouds = f.RandomString(skyCover[3:])
		g.rainDay += rate / 60
		g.rainMonth += rate / 60
		g.rainYear += rate / 60
	}

	// Solar and UV follow the sun between 06:00 and 18:00.
	sun := math.Max(0, math.Sin((hour-6)*math.Pi/12))
	if g.raining {
		sun *= 0.3
	}

	r := model.DefaultReading()
	r.StationID = g.station.ID
	r.FirmwareRev = g.station.Firmware
	r.Temp = units.Round(temp, 2)
	r.Humidity = math.Round(humidity)
	r.DewPoint = units.Round(dewPoint(temp, humidity), 2)
	r.InTemp = units.Round(21+(f.Float64()-0.5), 2)
	r.InHumidity = math.Round(f.Float64Range(35, 50))
	r.WindChill = units.Round(windChill(temp, wind), 2)
	r.Baro = units.Round(pressure, 2)
	r.AbsBaro = units.Round(pressure-12, 2)
	r.WindDir = math.Round(g.windDir)
	r.WindGustDir = math.Round(math.Mod(g.windDir+f.Float64Range(-10, 10)+360, 360))
	r.WindSpeed = units.Round(wind, 2)
	r.WindGustSpeed = units.Round(gust, 2)
	r.Precip = units.Round(rate, 2)
	r.PrecipDay = units.Round(g.rainDay, 2)
	r.PrecipMonth = units.Round(g.rainMonth, 2)
	r.PrecipYear = units.Round(g.rainYear, 2)
	r.Solar = math.Round(sun * 950)
	r.UV = math.Round(sun * 9)
	r.Weather = weather
	r.Clouds = clouds
	return r
}

// dewPoint uses the Magnus approximation.
func dewPoint(tempC, rh float64) float64 {
	const a, b = 17.62, 243.12
	gamma := math.Log(rh/100) + a*tempC/(b+tempC)
	return b * gamma / (a - gamma)
}

// windChill applies the North American formula where it is defined and
// returns the air temperature elsewhere. Wind is in knots.
func windChill(tempC, knots float64) float64 {
	kmh := knots * 1.852
	if tempC > 10 || kmh < 4.8 {
		return tempC
	}
	v := math.Pow(kmh, 0.16)
	return 13.12 + 0.6215*tempC - 11.37*v + 0.3965*tempC*v
}

// Encode renders r as an upload datagram in the imperial units stations send.
func Encode(passkey string, r model.Reading, at time.Time) []byte {
	ff := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

	q := url.Values{}
	q.Set("ID", r.StationID)
	q.Set("PASSWORD", passkey)
	q.Set("action", "updateweatherstation.php")
	q.Set("dateutc", at.UTC().Format(time.DateTime))
	q.Set("rev", r.FirmwareRev)

	q.Set("tempf", ff(units.CelsiusToFahrenheit(r.Temp)))
	q.Set("dewptf", ff(units.CelsiusToFahrenheit(r.DewPoint)))
	q.Set("indoortempf", ff(units.CelsiusToFahrenheit(r.InTemp)))
	q.Set("windchillf", ff(units.CelsiusToFahrenheit(r.WindChill)))
	q.Set("humidity", ff(r.Humidity))
	q.Set("indoorhumidity", ff(r.InHumidity))
	q.Set("baromin", ff(units.HPaToInHg(r.Baro)))
	q.Set("absbaromin", ff(units.HPaToInHg(r.AbsBaro)))
	q.Set("winddir", ff(r.WindDir))
	q.Set("windgustdir", ff(r.WindGustDir))
	q.Set("windspeedmph", ff(units.KnotsToMph(r.WindSpeed)))
	q.Set("windgustmph", ff(units.KnotsToMph(r.WindGustSpeed)))
	q.Set("rainin", ff(units.MillimetersToInches(r.Precip)))
	q.Set("dailyrainin", ff(units.MillimetersToInches(r.PrecipDay)))
	q.Set("monthlyrainin", ff(units.MillimetersToInches(r.PrecipMonth)))
	q.Set("yearlyrainin", ff(units.MillimetersToInches(r.PrecipYear)))
	q.Set("UV", ff(r.UV))
	q.Set("solarradiation", ff(r.Solar))
	if r.Weather != "" {
		q.Set("weather", r.Weather)
	}
	if r.Clouds != "" {
		q.Set("clouds", r.Clouds)
	}
	return []byte(q.Encode())
}

// Config controls a simulation run.
type Config struct {
	Target   string        // host:port of the collector
	Passkey  string        // sent as PASSWORD
	Stations int           // number of fabricated stations
	Interval time.Duration // upload period per station
	Seed     uint64        // 0 picks a random seed
}

// Simulator uploads readings from fabricated stations on a fixed interval.
type Simulator struct {
	cfg        Config
	generators []*Generator
	clock      clockwork.Clock
	logger     *slog.Logger
}

// New fabricates cfg.Stations stations.
func New(cfg Config, clock clockwork.Clock, logger *slog.Logger) (*Simulator, error) {
	if cfg.Stations < 1 {
		return nil, fmt.Errorf("stations must be >= 1")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be > 0")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}

	f := gofakeit.New(cfg.Seed)
	s := &Simulator{cfg: cfg, clock: clock, logger: logger}
	for range cfg.Stations {
		st, err := NewStation(f)
		if err != nil {
			return nil, err
		}
		s.generators = append(s.generators, NewGenerator(st, f))
	}
	return s, nil
}

// Stations returns the fabricated stations.
func (s *Simulator) Stations() []*Station {
	out := make([]*Station, len(s.generators))
	for i, g := range s.generators {
		out[i] = g.Station()
	}
	return out
}

// Run sends one datagram per station immediately and then every interval
// until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", s.cfg.Target)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", s.cfg.Target, err)
	}
	defer conn.Close()

	for _, g := range s.generators {
		s.logger.Info("simulating station", "id", g.Station().ID, "location", g.Station().Location)
	}

	ticker := s.clock.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		s.sendAll(conn)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
	}
}

func (s *Simulator) sendAll(conn net.Conn) {
	now := s.clock.Now()
	for _, g := range s.generators {
		payload := Encode(s.cfg.Passkey, g.Reading(now), now)
		if _, err := conn.Write(payload); err != nil {
			s.logger.Warn("sending datagram", "station", g.Station().ID, "error", err)
			continue
		}
		s.logger.Debug("sent datagram", "station", g.Station().ID, "bytes", len(payload))
	}
}
