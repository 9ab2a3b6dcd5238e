package queue

import (
	"context"
	"fmt"
)

// Endpoint is a resolved, send-able queue.
type Endpoint struct {
	Name    string
	Address string
}

type Receipt struct {
	MessageID string
}

// Transport is a message broker the client sends through.
type Transport interface {
	ResolveEndpoint(ctx context.Context, name string) (Endpoint, error)
	Send(ctx context.Context, ep Endpoint, body string, attrs map[string]string) (Receipt, error)
	Close(ctx context.Context) error
}

type Classification int

const (
	// NonRetryable covers client-side conditions that redelivery will not fix.
	NonRetryable Classification = iota
	// Retryable covers server-side and rate-limit conditions.
	Retryable
)

func (c Classification) String() string {
	if c == Retryable {
		return "retryable"
	}
	return "non_retryable"
}

// Classifier maps a transport error to its classification.
type Classifier func(err error) Classification

type TransportError struct {
	Queue string
	Class Classification
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("queue %q (%s): %v", e.Queue, e.Class, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
