// engine/client.go
package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	logger "github.com/flowgate/api/logging"
	"github.com/flowgate/api/model"
)

// SessionContext identifies the conversation a question belongs to, so the
// engine can load prior turns on its side.
type SessionContext struct {
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id"`
}

// Client opens a streamed prediction against the execution engine.
type Client interface {
	OpenStream(ctx context.Context, chatflowID, question string, sessionCtx SessionContext) (EventStream, error)
}

// EventStream is a single-consumer iterator over framed engine output.
// Recv returns io.EOF when the upstream stream ends cleanly.
type EventStream interface {
	Recv() (model.StreamEvent, error)
	Malformed() int
	Close() error
}

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ Client = &HTTPClient{}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// OpenStream starts a prediction. The engine speaks a defined wire format:
// one JSON frame per line. There is no speculative repair of frames; a line
// that fails strict decoding is downgraded to a raw token frame and counted.
func (c *HTTPClient) OpenStream(ctx context.Context, chatflowID, question string, sessionCtx SessionContext) (EventStream, error) {
	endpoint := fmt.Sprintf("%s/chatflows/%s/predict", c.baseURL, url.PathEscape(chatflowID))
	payload, err := json.Marshal(map[string]interface{}{
		"question":   question,
		"session_id": sessionCtx.SessionID,
		"user_id":    sessionCtx.UserID,
		"stream":     true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engine request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("engine returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &ndjsonStream{body: resp.Body, scanner: scanner}, nil
}

// ndjsonStream reads newline-delimited JSON frames from the engine response.
type ndjsonStream struct {
	body      io.ReadCloser
	scanner   *bufio.Scanner
	malformed int
}

var _ EventStream = &ndjsonStream{}

// Recv returns the next frame. Blank lines are skipped; malformed lines are
// returned as raw token frames so a partially misbehaving engine still yields
// output, with the malformed count available for logging.
func (s *ndjsonStream) Recv() (model.StreamEvent, error) {
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}

		var ev model.StreamEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil || ev.Kind == "" {
			s.malformed++
			logger.Warn("Malformed engine frame, downgrading to token",
				zap.Int("malformedCount", s.malformed))
			return model.StreamEvent{Kind: model.EventToken, Data: line}, nil
		}
		return ev, nil
	}

	if err := s.scanner.Err(); err != nil {
		return model.StreamEvent{}, fmt.Errorf("engine stream read failed: %w", err)
	}
	return model.StreamEvent{}, io.EOF
}

// Malformed reports how many frames failed strict decoding so far.
func (s *ndjsonStream) Malformed() int {
	return s.malformed
}

func (s *ndjsonStream) Close() error {
	return s.body.Close()
}
