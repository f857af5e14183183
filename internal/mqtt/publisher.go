// Package mqtt republishes stored readings to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/darshan-rambhia/wxlog/internal/model"
)

const (
	publishQoS     = 1
	publishTimeout = 5 * time.Second
)

var (
	ErrNotConnected = errors.New("mqtt client not connected")
	ErrStopped      = errors.New("mqtt client stopped")
)

// Config holds the broker settings.
type Config struct {
	Broker      string
	Port        int
	ClientID    string
	TopicPrefix string
}

// Message is the JSON body published for each reading.
type Message struct {
	model.Reading
	ReceivedAt time.Time `json:"received_at"`
}

// Publisher sends readings to <prefix>/<stationID>.
type Publisher struct {
	client    paho.Client
	cfg       Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewPublisher builds a Publisher with auto-reconnect. It does not connect;
// call Run or Connect.
func NewPublisher(cfg Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ paho.Client) {
		p.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.Broker, "port", cfg.Port)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = paho.NewClient(opts)
	return p
}

// newWithClient wraps an existing paho client.
func newWithClient(client paho.Client, cfg Config, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, cfg: cfg, logger: logger, stopCh: make(chan struct{})}
}

// Name identifies the publisher in logs.
func (p *Publisher) Name() string { return "mqtt" }

// Run connects and holds the connection until ctx is cancelled. A failed
// initial connect is logged and not returned, so the listener keeps running
// without republishing.
func (p *Publisher) Run(ctx context.Context) error {
	if err := p.Connect(ctx); err != nil && ctx.Err() == nil {
		p.logger.Error("mqtt connect failed; readings will not be republished", "error", err)
	}
	<-ctx.Done()
	p.Disconnect()
	return ctx.Err()
}

// Connect waits for the initial connection, honoring ctx and Disconnect.
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return ErrStopped
	default:
	}

	if p.IsConnected() {
		return nil
	}

	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			p.setConnected(true)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return ErrStopped
		default:
		}
	}
}

// Topic returns the topic a station's readings are published to.
func (p *Publisher) Topic(stationID string) string {
	return p.cfg.TopicPrefix + "/" + stationID
}

// Publish sends r as JSON with QoS 1.
func (p *Publisher) Publish(ctx context.Context, r model.Reading, at time.Time) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}

	topic := p.Topic(r.StationID)
	data, err := json.Marshal(Message{Reading: r, ReceivedAt: at})
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}

	token := p.client.Publish(topic, publishQoS, false, data)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish reading: %w", err)
	}

	p.logger.Debug("published reading", "topic", topic)
	return nil
}

// IsConnected returns whether the client is connected.
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Disconnect stops the client. It is idempotent; Connect returns ErrStopped
// afterwards.
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.client.Disconnect(250)
	p.setConnected(false)
	p.logger.Info("mqtt disconnected")
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}
