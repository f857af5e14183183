package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/darshan-rambhia/wxlog/internal/model"
)

// NtfyProvider publishes notifications to a topic on an ntfy server.
type NtfyProvider struct {
	url    string
	topic  string
	client *http.Client
}

// NewNtfy creates a new ntfy notification provider.
func NewNtfy(url, topic string) *NtfyProvider {
	return &NtfyProvider{
		url:    strings.TrimRight(url, "/"),
		topic:  topic,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *NtfyProvider) Name() string { return "ntfy" }

// Send posts the message text as the body; title, priority and tags travel
// as ntfy headers.
func (n *NtfyProvider) Send(ctx context.Context, notif model.Notification) error {
	endpoint := n.url + "/" + n.topic

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(notif.Message))
	if err != nil {
		return fmt.Errorf("ntfy: build request: %w", err)
	}

	title := notif.Title
	if notif.Resolved {
		title = "Resolved: " + title
	}
	req.Header.Set("Title", title)
	req.Header.Set("Priority", ntfyPriority(notif))
	req.Header.Set("Tags", ntfyTags(notif))
	req.Header.Set("User-Agent", userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("ntfy: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// ntfyPriority maps severity to ntfy's 1-5 scale. Resolutions are always low.
func ntfyPriority(n model.Notification) string {
	if n.Resolved {
		return "2"
	}
	switch n.Severity {
	case "critical":
		return "5"
	case "info":
		return "2"
	default:
		return "3"
	}
}

func ntfyTags(n model.Notification) string {
	var tags []string
	switch {
	case n.Resolved:
		tags = append(tags, "white_check_mark")
	case n.Severity == "critical":
		tags = append(tags, "rotating_light")
	case n.Severity == "warning":
		tags = append(tags, "warning")
	case n.Severity == "info":
		tags = append(tags, "information_source")
	}
	if n.AlertType != "" {
		tags = append(tags, n.AlertType)
	}
	if n.Subject != "" {
		tags = append(tags, n.Subject)
	}
	return strings.Join(tags, ",")
}
