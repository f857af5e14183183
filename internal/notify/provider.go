// Package notify delivers alert notifications to external channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/darshan-rambhia/wxlog/internal/model"
)

const userAgent = "wxlog-notify"

// Provider sends notifications through a specific channel.
type Provider interface {
	Name() string
	Send(ctx context.Context, n model.Notification) error
}

// ProviderConfig describes one configured notification channel.
type ProviderConfig struct {
	Type    string
	URL     string
	Topic   string
	Method  string
	Headers map[string]string
}

// New builds the provider described by pc.
func New(pc ProviderConfig) (Provider, error) {
	switch pc.Type {
	case "ntfy":
		if pc.Topic == "" {
			return nil, errors.New("ntfy: topic is required")
		}
		return NewNtfy(pc.URL, pc.Topic), nil
	case "webhook":
		method := pc.Method
		if method == "" {
			method = http.MethodPost
		}
		return NewWebhook(pc.URL, method, pc.Headers), nil
	default:
		return nil, fmt.Errorf("unknown notification type %q", pc.Type)
	}
}

// SendAll delivers n to every provider, logging failures. It returns the
// number of providers that accepted the notification.
func SendAll(ctx context.Context, providers []Provider, n model.Notification) int {
	sent := 0
	for _, p := range providers {
		if err := p.Send(ctx, n); err != nil {
			slog.Error("sending notification", "provider", p.Name(), "alert", n.AlertType, "error", err)
			continue
		}
		sent++
	}
	return sent
}
