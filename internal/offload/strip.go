package offload

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zhukov-alex/cdcrouter/internal/record"
	"github.com/zhukov-alex/cdcrouter/internal/routing"
)

// AttrStrippedField names the payload field removed by StripAndRoute.
const AttrStrippedField = "strippedField"

// StripAndRoute drops the heaviest payload field of an oversized record and
// sends the reduced record to the target's oversize queue.
type StripAndRoute struct {
	threshold int
}

func NewStripAndRoute(threshold int) *StripAndRoute {
	return &StripAndRoute{threshold: threshold}
}

func (s *StripAndRoute) Prepare(_ context.Context, rec record.ChangeRecord, target routing.Target, attrs map[string]string) (Message, error) {
	body, err := rec.Marshal()
	if err != nil {
		return Message{}, &Error{RecordID: rec.ID, Err: err}
	}
	if Fits(len(body), s.threshold) {
		return Message{QueueName: target.QueueName, Body: string(body), Attributes: attrs}, nil
	}
	if target.OversizeQueueName == "" {
		return Message{}, &Error{RecordID: rec.ID, Err: fmt.Errorf("%d bytes over limit and no oversize queue for %q", len(body), target.MatchToken)}
	}

	field, err := heaviestField(rec.Payload)
	if err != nil {
		return Message{}, &Error{RecordID: rec.ID, Err: err}
	}
	reduced := make(map[string]any, len(rec.Payload))
	for k, v := range rec.Payload {
		if k != field {
			reduced[k] = v
		}
	}
	body, err = rec.WithPayload(reduced).Marshal()
	if err != nil {
		return Message{}, &Error{RecordID: rec.ID, Err: err}
	}
	if !Fits(len(body), s.threshold) {
		return Message{}, &Error{RecordID: rec.ID, Err: fmt.Errorf("still %d bytes after stripping %q", len(body), field)}
	}

	out := make(map[string]string, len(attrs)+1)
	for k, v := range attrs {
		out[k] = v
	}
	out[AttrStrippedField] = field
	return Message{QueueName: target.OversizeQueueName, Body: string(body), Attributes: out}, nil
}

func heaviestField(payload map[string]any) (string, error) {
	if len(payload) == 0 {
		return "", fmt.Errorf("payload has no fields to strip")
	}
	var (
		name     string
		heaviest = -1
	)
	for k, v := range payload {
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("measure field %q: %w", k, err)
		}
		// ties broken by name so the choice does not depend on map order
		if len(data) > heaviest || (len(data) == heaviest && k < name) {
			name, heaviest = k, len(data)
		}
	}
	return name, nil
}
