package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/CeeFeS/TinyPlanvas/internal/domain/model"
	domainRepo "github.com/CeeFeS/TinyPlanvas/internal/domain/repository"
)

// SSESource subscribes to the record store's server-sent event stream. Each
// collection gets its own stream; frames carry the action as the event name
// and the full record as JSON data.
type SSESource struct {
	baseURL    string
	token      func() string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewSSESource creates an SSE-backed event source. token is read per request
// so a refreshed auth token is picked up on reconnect.
func NewSSESource(baseURL string, token func() string, logger *zap.Logger) *SSESource {
	return &SSESource{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		// No timeout: the stream stays open until the context ends.
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Subscribe opens the stream for one collection. The returned channel closes
// when the context is cancelled or the stream ends.
func (s *SSESource) Subscribe(ctx context.Context, collection model.Collection) (<-chan domainRepo.Event, error) {
	endpoint := fmt.Sprintf("%s/api/realtime?collection=%s", s.baseURL, url.QueryEscape(string(collection)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build realtime request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if token := s.token(); token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open realtime stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("realtime stream returned status %d", resp.StatusCode)
	}

	ch := make(chan domainRepo.Event)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		s.consume(ctx, collection, resp.Body, ch)
	}()
	return ch, nil
}

// consume parses `event:`/`data:` frames separated by blank lines.
func (s *SSESource) consume(ctx context.Context, collection model.Collection, body io.Reader, ch chan<- domainRepo.Event) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventName string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			s.emit(ctx, collection, eventName, data.String(), ch)
			eventName = ""
			data.Reset()
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
		// Comment lines (":keepalive") and unknown fields are skipped.
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		s.logger.Warn("realtime stream ended",
			zap.String("collection", string(collection)), zap.Error(err))
	}
	s.emit(ctx, collection, eventName, data.String(), ch)
}

func (s *SSESource) emit(ctx context.Context, collection model.Collection, eventName, data string, ch chan<- domainRepo.Event) {
	if eventName == "" || data == "" {
		return
	}
	action := domainRepo.Action(eventName)
	switch action {
	case domainRepo.ActionCreate, domainRepo.ActionUpdate, domainRepo.ActionDelete:
	default:
		s.logger.Debug("skipping unknown realtime event", zap.String("event", eventName))
		return
	}

	select {
	case ch <- domainRepo.Event{
		Collection: collection,
		Action:     action,
		Record:     json.RawMessage(data),
	}:
	case <-ctx.Done():
	}
}
