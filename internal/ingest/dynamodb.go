package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"

	"github.com/zhukov-alex/cdcrouter/internal/record"
)

// FromDynamoDB converts one DynamoDB stream record. The stream sequence number
// becomes the record id, since that is what the host expects back for
// partial batch failures. A missing eventSourceARN is not an error here;
// the dispatcher reports such records as failed.
func FromDynamoDB(r events.DynamoDBEventRecord) (record.ChangeRecord, error) {
	id := r.Change.SequenceNumber
	changeType, err := record.ParseChangeType(r.EventName)
	if err != nil {
		return record.ChangeRecord{ID: id}, fmt.Errorf("record %s: %w", id, err)
	}

	// attribute values only know how to encode themselves as JSON
	raw, err := json.Marshal(r.Change)
	if err != nil {
		return record.ChangeRecord{ID: id}, fmt.Errorf("record %s: encode change: %w", id, err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return record.ChangeRecord{ID: id}, fmt.Errorf("record %s: decode change: %w", id, err)
	}

	return record.ChangeRecord{
		ID:                   id,
		OriginStreamID:       r.EventSourceArn,
		ChangeType:           changeType,
		Payload:              payload,
		ApproximateSizeBytes: r.Change.SizeBytes,
	}, nil
}

// Batch converts every record of a stream event. Records that cannot be
// converted are returned by id in rejected instead of the batch.
func Batch(ev events.DynamoDBEvent) (batch []record.ChangeRecord, rejected []string, errs []error) {
	batch = make([]record.ChangeRecord, 0, len(ev.Records))
	for _, r := range ev.Records {
		rec, err := FromDynamoDB(r)
		if err != nil {
			rejected = append(rejected, rec.ID)
			errs = append(errs, err)
			continue
		}
		batch = append(batch, rec)
	}
	return batch, rejected, errs
}
