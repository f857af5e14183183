// Package model defines the shared domain types for wxlog.
package model

import "time"

const (
	// UnknownStationID is stored when a datagram does not name its station.
	UnknownStationID = "unknownID"
	// UnknownFirmware is stored when a datagram carries no firmware revision.
	UnknownFirmware = "0x000000"
	// UnknownCondition is the default for the weather and cloud codes.
	UnknownCondition = "0"
)

// Reading is the canonical, fully-populated weather record. Units are metric
// (hPa, °C, knots, mm) when the collector runs in metric mode and the
// station's own imperial units otherwise.
type Reading struct {
	StationID   string `json:"station_id"`
	FirmwareRev string `json:"firmware_rev"`

	// Atmosphere
	Baro       float64 `json:"baro"`
	AbsBaro    float64 `json:"abs_baro"`
	Temp       float64 `json:"temp"`
	DewPoint   float64 `json:"dew_point"`
	InTemp     float64 `json:"in_temp"`
	WindChill  float64 `json:"wind_chill"`
	Humidity   float64 `json:"humidity"`
	InHumidity float64 `json:"in_humidity"`

	// Wind
	WindDir       float64 `json:"wind_dir"`
	WindGustDir   float64 `json:"wind_gust_dir"`
	WindSpeed     float64 `json:"wind_speed"`
	WindGustSpeed float64 `json:"wind_gust_speed"`

	// Precipitation accumulations
	Precip      float64 `json:"precip"`
	PrecipDay   float64 `json:"precip_day"`
	PrecipWeek  float64 `json:"precip_week"`
	PrecipMonth float64 `json:"precip_month"`
	PrecipYear  float64 `json:"precip_year"`

	// Environment
	UV           float64 `json:"uv"`
	Solar        float64 `json:"solar"`
	SoilTemp     float64 `json:"soil_temp"`
	SoilMoisture float64 `json:"soil_moisture"`
	LeafWetness  float64 `json:"leaf_wetness"`
	Weather      string  `json:"weather"`
	Clouds       string  `json:"clouds"`
	Visibility   float64 `json:"visibility"`
}

// DefaultReading returns a reading with every field at its default value.
// Callers get a new value each time, so nothing leaks between datagrams.
func DefaultReading() Reading {
	return Reading{
		StationID:   UnknownStationID,
		FirmwareRev: UnknownFirmware,
		Weather:     UnknownCondition,
		Clouds:      UnknownCondition,
	}
}

// StationStatus summarizes what the collector has seen from one station.
type StationStatus struct {
	StationID   string    `json:"station_id"`
	FirmwareRev string    `json:"firmware_rev"`
	RemoteAddr  string    `json:"remote_addr"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	Readings    int64     `json:"readings"`
}

// StorageHealth tracks storage outcomes for the alerter and health endpoint.
type StorageHealth struct {
	LastSuccess       time.Time `json:"last_success"`
	LastFailure       time.Time `json:"last_failure"`
	LastError         string    `json:"last_error,omitempty"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
}

// Notification is an alert payload sent to notification providers.
type Notification struct {
	AlertType string            `json:"alert_type"`
	Severity  string            `json:"severity"` // "critical", "warning", "info"
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Subject   string            `json:"subject"` // station ID or partition name
	Timestamp time.Time         `json:"timestamp"`
	Resolved  bool              `json:"resolved"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
