package ingest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
)

// ReadEventFile loads a stream event saved as JSON, the same shape the
// Lambda runtime delivers.
func ReadEventFile(path string) (events.DynamoDBEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return events.DynamoDBEvent{}, fmt.Errorf("read event file: %w", err)
	}
	var ev events.DynamoDBEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return events.DynamoDBEvent{}, fmt.Errorf("parse event file %s: %w", path, err)
	}
	return ev, nil
}
