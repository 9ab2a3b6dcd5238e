package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type ackConfirmation bool

func (c ackConfirmation) WaitContext(context.Context) (bool, error) { return bool(c), nil }

// fakeChannel behaves like a broker channel in confirm mode: an unroutable
// mandatory publish is returned first and acked afterwards.
type fakeChannel struct {
	mu        sync.Mutex
	routable  map[string]bool
	returns   []chan amqp.Return
	closes    []chan *amqp.Error
	closed    bool
	published int
}

func newFakeChannel(routable ...string) *fakeChannel {
	f := &fakeChannel{routable: map[string]bool{}}
	for _, key := range routable {
		f.routable[key] = true
	}
	return f
}

func (f *fakeChannel) publish(_ context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, amqp.ErrClosed
	}
	f.published++
	if !f.routable[key] {
		for _, c := range f.returns {
			c <- amqp.Return{
				ReplyCode:  amqp.NoRoute,
				ReplyText:  "NO_ROUTE",
				Exchange:   exchange,
				RoutingKey: key,
				MessageId:  msg.MessageId,
			}
		}
	}
	return ackConfirmation(true), nil
}

func (f *fakeChannel) NotifyReturn(c chan amqp.Return) chan amqp.Return {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.returns = append(f.returns, c)
	return c
}

func (f *fakeChannel) NotifyClose(c chan *amqp.Error) chan *amqp.Error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes = append(f.closes, c)
	return c
}

func (f *fakeChannel) Close() error {
	f.shutdown(nil)
	return nil
}

// shutdown simulates a channel exception raised by the broker.
func (f *fakeChannel) shutdown(e *amqp.Error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, c := range f.closes {
		if e != nil {
			c <- e
		}
		close(c)
	}
	for _, c := range f.returns {
		close(c)
	}
}

func newTestAMQP(t *testing.T, channels ...*fakeChannel) (*AMQPTransport, *int) {
	opened := 0
	a := newAMQPTransport(zaptest.NewLogger(t), &AMQPConfig{Exchange: "cdc"}, func() (publishChannel, error) {
		if opened >= len(channels) {
			return nil, fmt.Errorf("amqp channel: %w", amqp.ErrClosed)
		}
		ch := channels[opened]
		opened++
		return ch, nil
	})
	return a, &opened
}

func TestAMQPTransport_ReturnedPublishFails(t *testing.T) {
	a, _ := newTestAMQP(t, newFakeChannel("queue-A"))

	receipt, err := a.Send(context.Background(), Endpoint{Name: "queue-A", Address: "queue-A"}, `{"id":"1"}`, map[string]string{"recordCategory": "nested"})
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.MessageID)

	_, err = a.Send(context.Background(), Endpoint{Name: "queue-B", Address: "queue-B"}, `{"id":"2"}`, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errReturned))
	assert.Contains(t, err.Error(), "NO_ROUTE")
	assert.Equal(t, NonRetryable, ClassifyAMQP(err))
}

func TestAMQPTransport_ReturnsMatchTheirPublish(t *testing.T) {
	a, _ := newTestAMQP(t, newFakeChannel("good"))

	const senders = 40
	var wg sync.WaitGroup
	errs := make([]error, senders)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "good"
			if i%2 == 1 {
				key = "bad"
			}
			_, errs[i] = a.Send(context.Background(), Endpoint{Name: key, Address: key}, "{}", nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if i%2 == 1 {
			assert.ErrorIs(t, err, errReturned, "sender %d", i)
		} else {
			assert.NoError(t, err, "sender %d", i)
		}
	}
	assert.Empty(t, a.sess.returned)
}

func TestAMQPTransport_ReturnedThroughClient(t *testing.T) {
	a, _ := newTestAMQP(t, newFakeChannel())
	c := NewClient(zaptest.NewLogger(t), a, ClassifyAMQP)
	c.endpoints.Store("queue-A", Endpoint{Name: "queue-A", Address: "queue-A"})

	_, err := c.Send(context.Background(), "queue-A", "{}", nil)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, NonRetryable, te.Class)
	assert.Equal(t, "queue-A", te.Queue)
}

func TestAMQPTransport_ReopensClosedChannel(t *testing.T) {
	first, second := newFakeChannel("queue-A"), newFakeChannel("queue-A")
	a, opened := newTestAMQP(t, first, second)

	ep := Endpoint{Name: "queue-A", Address: "queue-A"}
	_, err := a.Send(context.Background(), ep, "{}", nil)
	require.NoError(t, err)

	first.shutdown(&amqp.Error{Code: amqp.NotFound, Reason: "NOT_FOUND - no exchange 'cdc'"})

	_, err = a.Send(context.Background(), ep, "{}", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, *opened)
	assert.Equal(t, 1, second.published)
}

func TestAMQPTransport_ReopenFailure(t *testing.T) {
	first := newFakeChannel("queue-A")
	a, _ := newTestAMQP(t, first)
	ep := Endpoint{Name: "queue-A", Address: "queue-A"}

	_, err := a.Send(context.Background(), ep, "{}", nil)
	require.NoError(t, err)

	first.shutdown(nil)

	_, err = a.Send(context.Background(), ep, "{}", nil)
	require.Error(t, err)
	assert.Equal(t, Retryable, ClassifyAMQP(err))
}

func TestAMQPTransport_Close(t *testing.T) {
	ch := newFakeChannel()
	a, _ := newTestAMQP(t, ch)
	_, err := a.session()
	require.NoError(t, err)

	require.NoError(t, a.Close(context.Background()))
	assert.True(t, ch.closed)
}
