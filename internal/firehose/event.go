package firehose

import (
	"encoding/json"
	"fmt"
)

const (
	eventSubmission = "submission"
	eventHeartbeat  = "heartbeat"
)

// relayEvent is one frame pushed by the submission relay.
type relayEvent struct {
	Seq   int64           `json:"seq"`
	Kind  string          `json:"kind"`
	Thing json.RawMessage `json:"thing,omitempty"`
}

func parseEvent(data []byte) (*relayEvent, error) {
	var event relayEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	if event.Kind == eventSubmission && len(event.Thing) == 0 {
		return nil, fmt.Errorf("submission event %d without thing", event.Seq)
	}
	return &event, nil
}
