package reminder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// WebhookNotifier delivers prompts to the presentation layer over HTTP POST.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
}

// NewWebhookNotifier creates a notifier posting to the given URL.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, p Prompt) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling prompt: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delivering prompt: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier is the terminal fallback: a system-notification stand-in that
// writes to the process log and never fails.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, p Prompt) error {
	log.Printf("Rest Alarm: on a rest page for %d minutes (threshold: %d minutes)",
		p.MinutesOnRest, p.ThresholdMinutes)
	return nil
}
