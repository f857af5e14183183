// Package collector receives station uploads over UDP and drives them through
// extraction and storage.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/darshan-rambhia/wxlog/internal/cache"
	"github.com/darshan-rambhia/wxlog/internal/model"
	"github.com/darshan-rambhia/wxlog/internal/observability"
	"github.com/darshan-rambhia/wxlog/internal/wx"
)

// MaxDatagramSize is the largest upload the listener reads; longer datagrams
// are truncated by the socket.
const MaxDatagramSize = 4096

// Appender persists a reading ingested at the given instant.
type Appender interface {
	Append(ctx context.Context, r model.Reading, at time.Time) error
}

// Publisher republishes stored readings. It is optional.
type Publisher interface {
	Publish(ctx context.Context, r model.Reading, at time.Time) error
}

// Outcome is what happened to one datagram.
type Outcome string

const (
	OutcomeStored        Outcome = "stored"
	OutcomeRejected      Outcome = "rejected"
	OutcomeStorageFailed Outcome = "storage_failed"
)

// Config holds the listener settings.
type Config struct {
	Addr string
}

// UDPCollector reads datagrams from one socket and handles them one at a
// time, in arrival order.
type UDPCollector struct {
	cfg       Config
	extractor *wx.Extractor
	store     Appender
	publisher Publisher
	cache     *cache.Cache
	metrics   *observability.Metrics
	clock     clockwork.Clock
	logger    *slog.Logger

	bound chan net.Addr
}

// Option customizes a UDPCollector.
type Option func(*UDPCollector)

// WithPublisher republishes every stored reading through p.
func WithPublisher(p Publisher) Option {
	return func(c *UDPCollector) { c.publisher = p }
}

// WithClock replaces the wall clock used to timestamp readings.
func WithClock(clock clockwork.Clock) Option {
	return func(c *UDPCollector) { c.clock = clock }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *UDPCollector) { c.logger = l }
}

// NewUDPCollector creates a collector. The cache and metrics are required.
func NewUDPCollector(cfg Config, ex *wx.Extractor, st Appender, c *cache.Cache, m *observability.Metrics, opts ...Option) *UDPCollector {
	uc := &UDPCollector{
		cfg:       cfg,
		extractor: ex,
		store:     st,
		cache:     c,
		metrics:   m,
		clock:     clockwork.NewRealClock(),
		logger:    slog.Default(),
		bound:     make(chan net.Addr, 1),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Name identifies the collector in logs.
func (c *UDPCollector) Name() string { return "udp" }

// Bound delivers the local address once the socket is listening.
func (c *UDPCollector) Bound() <-chan net.Addr { return c.bound }

// Run binds the socket and handles datagrams until ctx is cancelled. A read
// error while ctx is live is returned; cancellation returns ctx.Err().
func (c *UDPCollector) Run(ctx context.Context) error {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", c.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", c.cfg.Addr, err)
	}
	defer conn.Close()

	c.logger.Info("collector started", "name", c.Name(), "addr", conn.LocalAddr().String())
	c.metrics.ListenerRunning.Set(1)
	defer c.metrics.ListenerRunning.Set(0)
	select {
	case c.bound <- conn.LocalAddr():
	default:
	}

	// Closing the socket unblocks ReadFrom on shutdown.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	buf := make([]byte, MaxDatagramSize)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("collector stopped", "name", c.Name())
				return ctx.Err()
			}
			return fmt.Errorf("reading datagram: %w", err)
		}
		c.HandleDatagram(ctx, buf[:n], addr.String())
	}
}

// HandleDatagram decodes, extracts and stores one upload. Failures are logged
// and counted; they never stop the listener.
func (c *UDPCollector) HandleDatagram(ctx context.Context, payload []byte, from string) Outcome {
	c.metrics.DatagramsReceived.Inc()
	c.metrics.DatagramBytes.Observe(float64(len(payload)))
	c.logger.Debug("datagram received", "from", from, "bytes", len(payload))

	fields, err := Decode(payload)
	if err != nil {
		// Partial decodes still carry the well-formed pairs.
		c.logger.Debug("datagram decoded with errors", "from", from, "error", err)
	}
	if len(fields) == 0 {
		c.reject(observability.ReasonDecode, from, "empty payload")
		return OutcomeRejected
	}

	res, err := c.extractor.Extract(fields)
	switch {
	case errors.Is(err, wx.ErrAuthRejected):
		c.reject(observability.ReasonAuth, from, "access token rejected")
		return OutcomeRejected
	case errors.Is(err, wx.ErrUnimplementedDialect):
		c.metrics.Rejections.WithLabelValues(observability.ReasonUnimplemented).Inc()
		c.cache.RecordRejection(observability.ReasonUnimplemented)
		c.logger.Warn("dialect detected but not supported", "from", from, "dialect", res.Dialect)
		return OutcomeRejected
	case errors.Is(err, wx.ErrUnrecognizedDialect):
		c.reject(observability.ReasonDialect, from, err.Error())
		return OutcomeRejected
	case err != nil:
		c.reject(observability.ReasonDecode, from, err.Error())
		return OutcomeRejected
	}

	for _, mf := range res.Malformed {
		c.metrics.MalformedFields.WithLabelValues(mf.Key).Inc()
	}

	r := res.Reading
	at := c.clock.Now()

	start := time.Now()
	err = c.store.Append(ctx, r, at)
	c.metrics.AppendDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.StorageErrors.Inc()
		c.cache.RecordStorageFailure(err, at)
		c.logger.Error("storing reading", "station", r.StationID, "error", err)
		return OutcomeStorageFailed
	}

	c.metrics.ReadingsStored.Inc()
	c.metrics.ReadingsByStation.WithLabelValues(r.StationID).Inc()
	c.cache.RecordStorageSuccess(at)
	c.cache.RecordReading(r, from, at)
	c.logger.Info("reading stored",
		"station", r.StationID,
		"dialect", res.Dialect,
		"temp", r.Temp,
		"malformed", len(res.Malformed),
	)

	if c.publisher != nil {
		if err := c.publisher.Publish(ctx, r, at); err != nil {
			c.metrics.PublishErrors.Inc()
			c.logger.Warn("publishing reading", "station", r.StationID, "error", err)
		}
	}

	return OutcomeStored
}

func (c *UDPCollector) reject(reason, from, msg string) {
	c.metrics.Rejections.WithLabelValues(reason).Inc()
	c.cache.RecordRejection(reason)
	c.logger.Info("datagram dropped", "reason", reason, "from", from, "detail", msg)
}

// Decode parses a datagram body as a URL query string. Repeated keys keep
// their last value. Pairs that fail to decode are skipped and reported in the
// returned error; the rest are still returned. Trailing line endings and NUL
// padding are ignored.
func Decode(payload []byte) (map[string]string, error) {
	values, err := url.ParseQuery(strings.TrimRight(string(payload), "\r\n\x00"))
	fields := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			fields[k] = v[len(v)-1]
		}
	}
	return fields, err
}
