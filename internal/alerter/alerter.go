// Package alerter evaluates alert rules against cached station state.
package alerter

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/darshan-rambhia/wxlog/internal/cache"
	"github.com/darshan-rambhia/wxlog/internal/model"
	"github.com/darshan-rambhia/wxlog/internal/notify"
)

const (
	AlertStationSilent  = "station_silent"
	AlertStorageFailing = "storage_failing"
)

// AlertConfig holds configuration for alert rules. A nil rule is disabled.
type AlertConfig struct {
	StationSilent  *SilenceAlert `yaml:"station_silent"`
	StorageFailing *StreakAlert  `yaml:"storage_failing"`
}

// SilenceAlert triggers when a known station stops reporting.
type SilenceAlert struct {
	After    time.Duration `yaml:"after"`
	Severity string        `yaml:"severity"`
	Cooldown time.Duration `yaml:"cooldown"`
}

// StreakAlert triggers after a run of consecutive failures.
type StreakAlert struct {
	Threshold int           `yaml:"threshold"`
	Severity  string        `yaml:"severity"`
	Cooldown  time.Duration `yaml:"cooldown"`
}

// DefaultAlertConfig returns sensible alert defaults. Stations upload every
// few seconds to a minute, so ten minutes of silence is significant.
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		StationSilent: &SilenceAlert{
			After: 10 * time.Minute, Severity: "warning", Cooldown: 1 * time.Hour,
		},
		StorageFailing: &StreakAlert{
			Threshold: 5, Severity: "critical", Cooldown: 30 * time.Minute,
		},
	}
}

// Alerter evaluates rules and sends notifications.
type Alerter struct {
	cache     *cache.Cache
	providers []notify.Provider
	config    AlertConfig
	interval  time.Duration
	clock     clockwork.Clock

	// Deduplication: maps alert key → last fired time
	lastFired map[string]time.Time

	// Alerts currently firing, so a recovery can be announced once.
	active map[string]model.Notification
}

// NewAlerter creates a new alerter.
func NewAlerter(c *cache.Cache, providers []notify.Provider, cfg AlertConfig, clock clockwork.Clock) *Alerter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Alerter{
		cache:     c,
		providers: providers,
		config:    cfg,
		interval:  30 * time.Second,
		clock:     clock,
		lastFired: make(map[string]time.Time),
		active:    make(map[string]model.Notification),
	}
}

// Run starts the alerter evaluation loop.
func (a *Alerter) Run(ctx context.Context) error {
	slog.Info("alerter started", "interval", a.interval, "providers", len(a.providers))

	ticker := a.clock.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("alerter stopped")
			return ctx.Err()
		case <-ticker.Chan():
			a.Evaluate(ctx)
		}
	}
}

// Evaluate checks every rule once against a cache snapshot.
func (a *Alerter) Evaluate(ctx context.Context) {
	snap := a.cache.Snapshot()
	now := a.clock.Now()

	if a.config.StationSilent != nil {
		for id, st := range snap.Stations {
			key := AlertStationSilent + ":" + id
			silence := now.Sub(st.LastSeen)
			if silence < a.config.StationSilent.After {
				a.resolve(ctx, now, key, fmt.Sprintf("%s is reporting again", id))
				continue
			}
			a.fire(ctx, now, key, a.config.StationSilent.Cooldown, model.Notification{
				AlertType: AlertStationSilent,
				Severity:  a.config.StationSilent.Severity,
				Title:     fmt.Sprintf("Station Silent: %s", id),
				Message:   fmt.Sprintf("[%s] no reading for %s (last from %s)", id, silence.Truncate(time.Second), st.RemoteAddr),
				Subject:   id,
				Timestamp: now,
				Metadata: map[string]string{
					"last_seen": st.LastSeen.UTC().Format(time.RFC3339),
					"firmware":  st.FirmwareRev,
				},
			})
		}
	}

	if a.config.StorageFailing != nil {
		const key = AlertStorageFailing
		streak := snap.Storage.ConsecutiveErrors
		if streak < a.config.StorageFailing.Threshold {
			a.resolve(ctx, now, key, "readings are being stored again")
		} else {
			a.fire(ctx, now, key, a.config.StorageFailing.Cooldown, model.Notification{
				AlertType: AlertStorageFailing,
				Severity:  a.config.StorageFailing.Severity,
				Title:     "Storage Failing",
				Message:   fmt.Sprintf("%d consecutive appends failed: %s", streak, snap.Storage.LastError),
				Subject:   "store",
				Timestamp: now,
				Metadata:  map[string]string{"consecutive_errors": fmt.Sprintf("%d", streak)},
			})
		}
	}
}

func (a *Alerter) fire(ctx context.Context, now time.Time, key string, cooldown time.Duration, notif model.Notification) {
	a.active[key] = notif
	if last, ok := a.lastFired[key]; ok && now.Sub(last) < cooldown {
		return // still in cooldown
	}
	a.lastFired[key] = now

	notify.SendAll(ctx, a.providers, notif)

	slog.Warn("alert fired",
		"type", notif.AlertType,
		"severity", notif.Severity,
		"subject", notif.Subject,
		"title", notif.Title,
	)
}

// resolve announces the end of an active alert and clears its cooldown.
func (a *Alerter) resolve(ctx context.Context, now time.Time, key, message string) {
	notif, ok := a.active[key]
	if !ok {
		return
	}
	delete(a.active, key)
	delete(a.lastFired, key)

	notif.Resolved = true
	notif.Message = message
	notif.Timestamp = now
	notify.SendAll(ctx, a.providers, notif)

	slog.Info("alert resolved", "type", notif.AlertType, "subject", notif.Subject)
}

// Active returns the alerts currently firing, keyed by alert key. It must not
// be called concurrently with Run.
func (a *Alerter) Active() map[string]model.Notification {
	return maps.Clone(a.active)
}
