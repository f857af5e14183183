// Package store persists readings into monthly SQLite partition files.
//
// Each calendar month of ingestion gets its own file, wxYYYYMM.db, inside the
// data directory. A partition is created with its table on first write and is
// only ever appended to.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"

	"github.com/darshan-rambhia/wxlog/internal/model"
	"github.com/darshan-rambhia/wxlog/internal/units"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"

	// dsnParams are appended to every partition path.
	dsnParams = "?_pragma=busy_timeout(5000)"
)

// StorageError reports a failed partition operation. Op is one of "mkdir",
// "schema" or "insert".
type StorageError struct {
	Partition string
	Op        string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Partition, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store routes readings to their monthly partition. It holds no open handles
// between calls; each Append opens and closes the partition it writes to.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New creates a Store rooted at dir. The directory is created lazily on the
// first write. A nil logger uses slog.Default().
func New(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// PartitionName returns the file name of the partition that holds readings
// ingested at the given instant.
func PartitionName(at time.Time) string {
	return "wx" + at.Format("200601") + ".db"
}

// PartitionPath returns the full path of the partition for at.
func (s *Store) PartitionPath(at time.Time) string {
	return filepath.Join(s.dir, PartitionName(at))
}

// Append writes r as one row of the partition for at. The date, time and UTC
// offset columns are derived from at in its own location.
func (s *Store) Append(ctx context.Context, r model.Reading, at time.Time) error {
	path := s.PartitionPath(at)
	name := PartitionName(at)

	created, err := s.ensurePartition(path)
	if err != nil {
		return &StorageError{Partition: name, Op: "mkdir", Err: err}
	}

	db := s.open(path)
	defer db.Close()

	if created {
		s.logger.Info("creating partition", "path", path)
		if _, err := db.ExecContext(ctx, schema); err != nil {
			return &StorageError{Partition: name, Op: "schema", Err: err}
		}
	}

	_, err = db.ExecContext(ctx, insertReading,
		r.StationID, at.Format(dateLayout), at.Format(timeLayout), UTCOffsetMinutes(at),
		r.Temp, r.DewPoint, r.Humidity, r.Baro,
		r.WindDir, r.WindSpeed, r.WindGustDir, r.WindGustSpeed,
		r.Precip, r.PrecipDay, r.UV, r.Solar,
		r.InTemp, r.InHumidity, r.SoilTemp, r.SoilMoisture,
		r.LeafWetness, r.Weather, r.Clouds, r.Visibility,
		r.PrecipWeek, r.PrecipMonth, r.PrecipYear, r.AbsBaro, r.FirmwareRev,
	)
	if err != nil {
		return &StorageError{Partition: name, Op: "insert", Err: err}
	}
	return nil
}

// UTCOffsetMinutes returns the zone offset of at in minutes, rounded to one
// decimal.
func UTCOffsetMinutes(at time.Time) float64 {
	_, offset := at.Zone()
	return units.Round(float64(offset)/60, 1)
}

// ensurePartition reports whether the partition file still needs its schema.
// An empty file left behind by a failed first write counts as new.
func (s *Store) ensurePartition(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		return info.Size() == 0, nil
	case !errors.Is(err, fs.ErrNotExist):
		return false, err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) open(path string) *sql.DB {
	connector := newLoggingConnector(&sqlite.Driver{}, path+dsnParams, s.logger)
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)
	return db
}
