package record

import (
	"encoding/json"
	"fmt"
)

type ChangeType string

const (
	Insert ChangeType = "INSERT"
	Modify ChangeType = "MODIFY"
	Remove ChangeType = "REMOVE"
)

func ParseChangeType(s string) (ChangeType, error) {
	switch ChangeType(s) {
	case Insert, Modify, Remove:
		return ChangeType(s), nil
	default:
		return "", fmt.Errorf("unknown change type %q", s)
	}
}

// ChangeRecord is one change event captured from a change-data-capture stream.
// It is built once by the boundary adapter and treated as read-only afterwards;
// code that needs a different payload builds a new record.
type ChangeRecord struct {
	ID                   string         `json:"id"`
	OriginStreamID       string         `json:"eventSourceARN"`
	ChangeType           ChangeType     `json:"eventName"`
	Payload              map[string]any `json:"dynamodb"`
	ApproximateSizeBytes int64          `json:"sizeBytes"`
}

// Validate checks the fields every pipeline step depends on.
func (r ChangeRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("record id is required")
	}
	if r.OriginStreamID == "" {
		return fmt.Errorf("record %s: origin stream id is required", r.ID)
	}
	return nil
}

// Marshal returns the wire form sent to queues when no offload happens.
func (r ChangeRecord) Marshal() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal record %s: %w", r.ID, err)
	}
	return data, nil
}

// WithPayload returns a copy of the record carrying a different payload.
func (r ChangeRecord) WithPayload(payload map[string]any) ChangeRecord {
	r.Payload = payload
	return r
}
