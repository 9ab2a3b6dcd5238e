package offload

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/zhukov-alex/cdcrouter/internal/record"
	"github.com/zhukov-alex/cdcrouter/internal/routing"
)

type ExternalRef struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	Location string `json:"location"`
}

// Envelope replaces the body of an offloaded message.
type Envelope struct {
	ExternalRef *ExternalRef `json:"externalRef,omitempty"`
}

// envelope written by earlier deployments
type legacyEnvelope struct {
	S3Payload *struct {
		ID       string `json:"Id"`
		Key      string `json:"Key"`
		Location string `json:"Location"`
	} `json:"S3Payload,omitempty"`
}

// ExternalStore keeps oversized payloads in object storage and sends a
// reference envelope in their place.
type ExternalStore struct {
	store     ObjectStore
	bucket    string
	prefix    string
	threshold int
}

func NewExternalStore(store ObjectStore, cfg Config) *ExternalStore {
	return &ExternalStore{
		store:     store,
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		threshold: cfg.Threshold,
	}
}

// NewKey returns a random object key, namespaced by prefix when set.
func NewKey(prefix string) (id, key string) {
	id = uuid.NewString()
	if prefix != "" {
		return id, fmt.Sprintf("%s/%s.json", prefix, id)
	}
	return id, id + ".json"
}

func (o *ExternalStore) Prepare(ctx context.Context, rec record.ChangeRecord, target routing.Target, attrs map[string]string) (Message, error) {
	body, err := rec.Marshal()
	if err != nil {
		return Message{}, &Error{RecordID: rec.ID, Err: err}
	}
	msg := Message{QueueName: target.QueueName, Attributes: attrs}
	if Fits(len(body), o.threshold) {
		msg.Body = string(body)
		return msg, nil
	}

	id, key := NewKey(o.prefix)
	// the envelope without a location is the smallest it can get
	if ref, err := envelope(id, key, ""); err != nil || !Fits(len(ref), o.threshold) {
		return Message{}, &Error{RecordID: rec.ID, Err: fmt.Errorf("reference envelope exceeds threshold %d", o.threshold)}
	}

	location, err := o.store.Put(ctx, o.bucket, key, body)
	if err != nil {
		return Message{}, &Error{RecordID: rec.ID, Err: fmt.Errorf("put %s/%s: %w", o.bucket, key, err)}
	}

	ref, err := envelope(id, key, location)
	if err != nil {
		return Message{}, &Error{RecordID: rec.ID, Err: err}
	}
	if !Fits(len(ref), o.threshold) {
		return Message{}, &Error{RecordID: rec.ID, Err: fmt.Errorf("reference envelope of %d bytes exceeds threshold %d", len(ref), o.threshold)}
	}
	msg.Body = string(ref)
	msg.Offloaded = true
	return msg, nil
}

// Resolve returns the original payload of a received message body: the stored
// object when the body is a reference envelope, the body itself otherwise.
func (o *ExternalStore) Resolve(ctx context.Context, body string) ([]byte, error) {
	key, ok := refKey(body)
	if !ok {
		return []byte(body), nil
	}
	data, err := o.store.Get(ctx, o.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", o.bucket, key, err)
	}
	return data, nil
}

func envelope(id, key, location string) ([]byte, error) {
	return json.Marshal(Envelope{ExternalRef: &ExternalRef{ID: id, Key: key, Location: location}})
}

func refKey(body string) (string, bool) {
	var env Envelope
	if err := json.Unmarshal([]byte(body), &env); err == nil && env.ExternalRef != nil && env.ExternalRef.Key != "" {
		return env.ExternalRef.Key, true
	}
	var legacy legacyEnvelope
	if err := json.Unmarshal([]byte(body), &legacy); err == nil && legacy.S3Payload != nil && legacy.S3Payload.Key != "" {
		return legacy.S3Payload.Key, true
	}
	return "", false
}
