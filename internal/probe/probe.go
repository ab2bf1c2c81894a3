package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/brandflow/hookd/internal/models"
	"github.com/brandflow/hookd/internal/signing"
)

// Result classifies a single reachability check. A failed probe blocks
// persisting the URL it was run against; probes are never retried.
type Result struct {
	OK    bool
	Error string
}

type Prober struct {
	client *http.Client
}

func New() *Prober {
	return &Prober{client: &http.Client{}}
}

// Probe issues one signed POST of a synthetic webhook.test envelope to url
// and classifies the outcome. The timeout bounds the whole request.
func (p *Prober) Probe(ctx context.Context, url, secret string, timeout time.Duration) Result {
	envelope := models.Envelope{
		Event:     models.EventTest,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      map[string]any{"test": true},
	}
	payload, _ := json.Marshal(envelope)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Brandflow-Webhook/1.0")
	req.Header.Set("X-Brandflow-Signature", signing.Sign(payload, secret))
	req.Header.Set("X-Brandflow-Event", models.EventTest)

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{Error: "Request timeout"}
		}
		return Result{Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Result{OK: true}
	}
	return Result{Error: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))}
}
