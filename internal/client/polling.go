package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gatherspace/realtime-service/internal/apperr"
	"github.com/gatherspace/realtime-service/internal/event"
)

// PollingTransport emulates push delivery over stateless HTTP: a loop drains
// the server-side pending queue on a fixed interval and feeds the results to
// the Events channel. A failed drain closes the channel; retrying is the
// hook's job.
type PollingTransport struct {
	baseURL  string // http://host:port
	token    string
	interval time.Duration
	httpc    *http.Client

	mu     sync.Mutex
	events chan event.Event
	cancel context.CancelFunc
}

func NewPollingTransport(baseURL, token string, interval time.Duration) *PollingTransport {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &PollingTransport{
		baseURL:  baseURL,
		token:    token,
		interval: interval,
		httpc:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *PollingTransport) Connect(ctx context.Context) error {
	// cheap liveness probe so a dead server fails Connect, not the first poll
	if _, err := t.drainOnce(ctx); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	t.events = make(chan event.Event, 64)
	t.cancel = cancel
	t.mu.Unlock()

	go t.pollLoop(loopCtx, t.events)
	return nil
}

func (t *PollingTransport) pollLoop(ctx context.Context, events chan event.Event) {
	defer close(events)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evs, err := t.drainOnce(ctx)
			if err != nil {
				return
			}
			for _, ev := range evs {
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (t *PollingTransport) drainOnce(ctx context.Context) ([]event.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/v1/poll/events", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+t.token)
	resp, err := t.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: drain: %v", apperr.ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: drain status %d", apperr.ErrTransport, resp.StatusCode)
	}
	var body struct {
		Events []event.Event `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: drain decode: %v", apperr.ErrTransport, err)
	}
	return body.Events, nil
}

func (t *PollingTransport) post(ctx context.Context, path string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", apperr.ErrTransport, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s status %d: %s", apperr.ErrTransport, path, resp.StatusCode, msg)
	}
	return nil
}

func (t *PollingTransport) Join(ctx context.Context, conversationID string) error {
	return t.post(ctx, "/v1/poll/join", map[string]string{"conversation_id": conversationID})
}

func (t *PollingTransport) Leave(ctx context.Context, conversationID string) error {
	return t.post(ctx, "/v1/poll/leave", map[string]string{"conversation_id": conversationID})
}

func (t *PollingTransport) Send(ctx context.Context, conversationID, content string, attachments []string) error {
	return t.post(ctx, "/v1/poll/messages", map[string]any{
		"conversation_id": conversationID,
		"content":         content,
		"attachments":     attachments,
	})
}

func (t *PollingTransport) MarkRead(ctx context.Context, messageID string) error {
	return t.post(ctx, "/v1/poll/read", map[string]string{"message_id": messageID})
}

func (t *PollingTransport) Events() <-chan event.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.events
}

func (t *PollingTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	return nil
}
