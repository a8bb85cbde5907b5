package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// PushSender posts messages as JSON to an HTTP push gateway.
type PushSender struct {
	endpoint  string
	serverKey string
	client    *http.Client
}

// NewPushSender creates a PushSender. serverKey is sent as a bearer token
// when non-empty.
func NewPushSender(endpoint, serverKey string) *PushSender {
	return &PushSender{
		endpoint:  endpoint,
		serverKey: serverKey,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type pushRequest struct {
	Message Message `json:"message"`
}

func (s *PushSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(pushRequest{Message: msg})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if s.serverKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.serverKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			return fmt.Errorf("%w: status %d, body: %s", ErrUnregistered, resp.StatusCode, string(b))
		}
		return fmt.Errorf("unexpected status: %d, body: %s", resp.StatusCode, string(b))
	}
	return nil
}
