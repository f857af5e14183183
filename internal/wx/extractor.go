// Package wx turns decoded station uploads into canonical readings.
//
// An upload is a flat set of key/value pairs. The extractor checks the shared
// passkey, detects the upload dialect from the type field, then walks the
// dialect's field table to fill a fresh model.Reading.
package wx

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/darshan-rambhia/wxlog/internal/model"
	"github.com/darshan-rambhia/wxlog/internal/units"
)

var (
	// ErrAuthRejected means the upload carried no token or the wrong one.
	ErrAuthRejected = errors.New("access token rejected")
	// ErrUnrecognizedDialect means the type field matched no known format.
	ErrUnrecognizedDialect = errors.New("unrecognized upload dialect")
	// ErrUnimplementedDialect means the format is known but not parsed.
	ErrUnimplementedDialect = errors.New("upload dialect not implemented")
)

// tokenKeys may carry the passkey. Weather Underground firmware sends
// PASSWORD, ATMOCOM firmware sends passkey.
var tokenKeys = []string{"PASSWORD", "passkey"}

// typeKeys carry the upload endpoint, and with it the dialect marker.
var typeKeys = []string{"action", "data"}

const stationIDKey = "ID"

// MalformedFieldError reports a recognized field whose value is not numeric.
type MalformedFieldError struct {
	Key   string
	Value string
	Err   error
}

func (e *MalformedFieldError) Error() string {
	return fmt.Sprintf("field %s=%q: %v", e.Key, e.Value, e.Err)
}

func (e *MalformedFieldError) Unwrap() error { return e.Err }

// Options configures an Extractor. It is copied at construction.
type Options struct {
	Passkey string
	Metric  bool
}

// Result is one successful extraction.
type Result struct {
	Reading   model.Reading
	Dialect   string
	Malformed []*MalformedFieldError
}

// Extractor validates uploads and builds readings. It holds no per-upload
// state and is safe for concurrent use.
type Extractor struct {
	passkey  string
	conv     units.Converter
	dialects []Dialect
	logger   *slog.Logger
}

// New creates an Extractor. A nil logger uses slog.Default().
func New(opts Options, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		passkey:  opts.Passkey,
		conv:     units.Converter{Metric: opts.Metric},
		dialects: Dialects,
		logger:   logger,
	}
}

// Extract validates fields and returns the reading they describe.
//
// Authentication is checked before anything else. Malformed values do not fail
// the extraction: the field keeps its default and the problem is listed in
// Result.Malformed.
func (e *Extractor) Extract(fields map[string]string) (Result, error) {
	if !e.authorized(fields) {
		return Result{}, ErrAuthRejected
	}

	typeValue, ok := lookup(fields, typeKeys)
	if !ok {
		return Result{}, fmt.Errorf("%w: no type field", ErrUnrecognizedDialect)
	}

	d, ok := e.detect(typeValue)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnrecognizedDialect, typeValue)
	}
	if !d.Implemented {
		return Result{Dialect: d.Name}, fmt.Errorf("%w: %s", ErrUnimplementedDialect, d.Name)
	}

	res := Result{
		Reading: model.DefaultReading(),
		Dialect: d.Name,
	}
	res.Reading.StationID = stationID(typeValue, fields)

	for _, f := range d.numeric {
		raw, present := fields[f.key]
		if !present {
			continue
		}
		v, err := e.conv.Convert(f.kind, raw)
		if err != nil {
			mf := &MalformedFieldError{Key: f.key, Value: raw, Err: err}
			e.logger.Warn("malformed field", "station", res.Reading.StationID, "key", f.key, "value", raw)
			res.Malformed = append(res.Malformed, mf)
			continue
		}
		f.set(&res.Reading, v)
	}
	for _, f := range d.text {
		if raw := fields[f.key]; raw != "" {
			f.set(&res.Reading, raw)
		}
	}

	return res, nil
}

// authorized reports whether any token key contains the configured
// passkey. This is containment, not equality: any token that embeds the
// passkey passes.
func (e *Extractor) authorized(fields map[string]string) bool {
	for _, key := range tokenKeys {
		if token, ok := fields[key]; ok && strings.Contains(token, e.passkey) {
			return true
		}
	}
	return false
}

func (e *Extractor) detect(typeValue string) (Dialect, bool) {
	for _, d := range e.dialects {
		if strings.Contains(typeValue, d.Marker) {
			return d, true
		}
	}
	return Dialect{}, false
}

// stationID takes the token after the first '=' of the type field
// ("updateweatherstation.php?ID=WX1"), falling back to the ID key.
func stationID(typeValue string, fields map[string]string) string {
	if _, rest, found := strings.Cut(typeValue, "="); found {
		if end := strings.IndexAny(rest, "=&"); end >= 0 {
			rest = rest[:end]
		}
		if rest != "" {
			return rest
		}
	}
	if id := fields[stationIDKey]; id != "" {
		return id
	}
	return model.UnknownStationID
}

func lookup(fields map[string]string, keys []string) (string, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			return v, true
		}
	}
	return "", false
}
