package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TeamsWebhook posts adaptive card messages to an incoming webhook.
type TeamsWebhook struct {
	HTTP *http.Client
}

func NewTeamsWebhook() *TeamsWebhook {
	return &TeamsWebhook{HTTP: &http.Client{Timeout: 15 * time.Second}}
}

func (t *TeamsWebhook) Post(ctx context.Context, endpoint string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode card: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := t.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	resp, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
	if res.StatusCode >= 300 {
		return fmt.Errorf("teams webhook status %d: %s", res.StatusCode, string(resp))
	}
	return nil
}
