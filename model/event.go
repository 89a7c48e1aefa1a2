// model/event.go
package model

import "encoding/json"

// EventKind tags one framed unit of the assistant's streamed output.
type EventKind string

const (
	EventSession  EventKind = "session"
	EventToken    EventKind = "token"
	EventMetadata EventKind = "metadata"
	EventError    EventKind = "error"
	EventEnd      EventKind = "end"
)

// StreamEvent is one framed event on the wire between the execution engine,
// the relay, and the caller. Token events carry text in Data; metadata events
// carry an opaque JSON payload in Data.
type StreamEvent struct {
	Kind      EventKind `json:"event"`
	Data      string    `json:"data,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
}

// MergeEvents coalesces consecutive token events into one combined token
// event, keeping the position of the first of each run. Non-token events pass
// through unchanged and keep their relative order.
func MergeEvents(events []StreamEvent) []StreamEvent {
	if len(events) == 0 {
		return events
	}
	merged := make([]StreamEvent, 0, len(events))
	for _, ev := range events {
		if ev.Kind == EventToken && len(merged) > 0 && merged[len(merged)-1].Kind == EventToken {
			merged[len(merged)-1].Data += ev.Data
			continue
		}
		merged = append(merged, ev)
	}
	return merged
}

// EncodeEvents serializes an event sequence for storage as assistant content.
func EncodeEvents(events []StreamEvent) (string, error) {
	data, err := json.Marshal(events)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeEvents parses stored assistant content back into its event sequence.
func DecodeEvents(content string) ([]StreamEvent, error) {
	var events []StreamEvent
	if err := json.Unmarshal([]byte(content), &events); err != nil {
		return nil, err
	}
	return events, nil
}
