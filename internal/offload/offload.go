package offload

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhukov-alex/cdcrouter/internal/record"
	"github.com/zhukov-alex/cdcrouter/internal/routing"
)

var ErrOffload = errors.New("offload failed")

// Error is a per-record failure to produce a message that fits the inline limit.
type Error struct {
	RecordID string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s for record %s: %v", ErrOffload, e.RecordID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrOffload }

// ObjectStore persists offloaded payloads.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, data []byte) (location string, err error)
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

// Message is what gets sent for one record: its destination and a body that
// never exceeds the configured threshold.
type Message struct {
	QueueName  string
	Body       string
	Attributes map[string]string
	Offloaded  bool
}

// Policy turns a routed record into a sendable message.
type Policy interface {
	Prepare(ctx context.Context, rec record.ChangeRecord, target routing.Target, attrs map[string]string) (Message, error)
}

// Fits reports whether a serialized body of size bytes can be sent inline.
func Fits(size, threshold int) bool {
	return size <= threshold
}

func NewPolicy(cfg Config, store ObjectStore) (Policy, error) {
	switch cfg.Policy {
	case PolicyExternal:
		if store == nil {
			return nil, fmt.Errorf("object store is required for policy=%s", PolicyExternal)
		}
		return NewExternalStore(store, cfg), nil
	case PolicyStrip:
		return NewStripAndRoute(cfg.Threshold), nil
	default:
		return nil, fmt.Errorf("unsupported offload policy: %q", cfg.Policy)
	}
}
