package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// amqpReturnBuffer caps publishes in flight per transport. Each publish can
// produce at most one return, so the return listener never blocks the
// connection reader.
const amqpReturnBuffer = 256

var (
	errNacked   = errors.New("broker nacked publish")
	errReturned = errors.New("broker returned unroutable publish")
)

type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// publishChannel is the part of a confirm-mode channel the transport uses.
type publishChannel interface {
	publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error)
	NotifyReturn(c chan amqp.Return) chan amqp.Return
	NotifyClose(c chan *amqp.Error) chan *amqp.Error
	Close() error
}

type confirmChannel struct {
	*amqp.Channel
}

func (c confirmChannel) publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error) {
	dc, err := c.PublishWithDeferredConfirmWithContext(ctx, exchange, key, true, false, msg)
	if err != nil {
		return nil, err
	}
	return dc, nil
}

// amqpSession is one publish channel with its return and close listeners.
type amqpSession struct {
	ch      publishChannel
	returns chan amqp.Return
	closed  chan *amqp.Error
	dead    bool

	mu       sync.Mutex
	returned map[string]amqp.Return
}

func newAMQPSession(ch publishChannel) *amqpSession {
	return &amqpSession{
		ch:       ch,
		returns:  ch.NotifyReturn(make(chan amqp.Return, amqpReturnBuffer)),
		closed:   ch.NotifyClose(make(chan *amqp.Error, 1)),
		returned: make(map[string]amqp.Return),
	}
}

// alive must be called with the transport lock held.
func (s *amqpSession) alive() bool {
	if s.dead {
		return false
	}
	select {
	case <-s.closed:
		s.dead = true
		return false
	default:
		return true
	}
}

// takeReturn reports whether the broker returned the publish with the given
// message id. The broker sends basic.return before the confirm of the same
// publish, so once the confirm is in, the return is already buffered.
func (s *amqpSession) takeReturn(id string) (amqp.Return, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
drain:
	for {
		select {
		case ret, ok := <-s.returns:
			if !ok {
				break drain
			}
			s.returned[ret.MessageId] = ret
		default:
			break drain
		}
	}
	ret, ok := s.returned[id]
	delete(s.returned, id)
	return ret, ok
}

// AMQPTransport publishes mandatory messages to queues through the configured
// exchange (the default exchange when empty) with publisher confirms. A closed
// channel or connection is reopened on the next send.
type AMQPTransport struct {
	conn     *amqp.Connection
	sess     *amqpSession
	open     func() (publishChannel, error)
	inflight chan struct{}
	mu       sync.Mutex
	cfg      *AMQPConfig
	logger   *zap.Logger
}

func newAMQPTransport(logger *zap.Logger, cfg *AMQPConfig, open func() (publishChannel, error)) *AMQPTransport {
	return &AMQPTransport{
		open:     open,
		inflight: make(chan struct{}, amqpReturnBuffer),
		cfg:      cfg,
		logger:   logger,
	}
}

func NewAMQPTransport(logger *zap.Logger, cfg *AMQPConfig) (*AMQPTransport, error) {
	a := newAMQPTransport(logger, cfg, nil)
	a.open = a.openChannel

	if _, err := a.session(); err != nil {
		if a.conn != nil {
			_ = a.conn.Close()
		}
		return nil, err
	}

	logger.Info("amqp publisher initialized", zap.String("exchange", cfg.Exchange))
	return a, nil
}

// connection must be called with the transport lock held.
func (a *AMQPTransport) connection() (*amqp.Connection, error) {
	if a.conn != nil && !a.conn.IsClosed() {
		return a.conn, nil
	}
	if a.conn != nil {
		a.logger.Warn("amqp connection closed, redialing")
	}
	conn, err := amqp.Dial(a.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	a.conn = conn
	return conn, nil
}

func (a *AMQPTransport) openChannel() (publishChannel, error) {
	conn, err := a.connection()
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("amqp confirm mode: %w", err)
	}
	return confirmChannel{ch}, nil
}

func (a *AMQPTransport) session() (*amqpSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sess != nil && a.sess.alive() {
		return a.sess, nil
	}
	if a.sess != nil {
		a.logger.Warn("amqp channel closed, reopening")
		_ = a.sess.ch.Close()
		a.sess = nil
	}

	ch, err := a.open()
	if err != nil {
		return nil, err
	}
	a.sess = newAMQPSession(ch)
	return a.sess, nil
}

// ResolveEndpoint checks the queue exists on a throwaway channel, since a
// failed passive declare closes the channel it ran on.
func (a *AMQPTransport) ResolveEndpoint(_ context.Context, name string) (Endpoint, error) {
	a.mu.Lock()
	conn, err := a.connection()
	a.mu.Unlock()
	if err != nil {
		return Endpoint{}, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return Endpoint{}, fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclarePassive(name, true, false, false, false, nil)
	if err != nil {
		return Endpoint{}, fmt.Errorf("declare passive %q: %w", name, err)
	}
	return Endpoint{Name: name, Address: q.Name}, nil
}

func (a *AMQPTransport) Send(ctx context.Context, ep Endpoint, body string, attrs map[string]string) (Receipt, error) {
	select {
	case a.inflight <- struct{}{}:
	case <-ctx.Done():
		return Receipt{}, ctx.Err()
	}
	defer func() { <-a.inflight }()

	s, err := a.session()
	if err != nil {
		return Receipt{}, err
	}

	headers := make(amqp.Table, len(attrs))
	for k, v := range attrs {
		headers[k] = v
	}
	msgID := uuid.NewString()

	a.mu.Lock()
	dc, err := s.ch.publish(ctx, a.cfg.Exchange, ep.Address, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msgID,
		Timestamp:    time.Now(),
		Headers:      headers,
		Body:         []byte(body),
	})
	a.mu.Unlock()
	if err != nil {
		return Receipt{}, fmt.Errorf("publish to %q: %w", ep.Address, err)
	}

	waitCtx := ctx
	if a.cfg.ConfirmTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, a.cfg.ConfirmTimeout)
		defer cancel()
	}
	ok, err := dc.WaitContext(waitCtx)
	ret, returned := s.takeReturn(msgID)
	if err != nil {
		return Receipt{}, fmt.Errorf("await confirm from %q: %w", ep.Address, err)
	}
	if returned {
		return Receipt{}, fmt.Errorf("%w: exchange %q key %q: %d %s", errReturned, ret.Exchange, ret.RoutingKey, ret.ReplyCode, ret.ReplyText)
	}
	if !ok {
		return Receipt{}, errNacked
	}
	return Receipt{MessageID: msgID}, nil
}

func (a *AMQPTransport) Close(_ context.Context) error {
	a.logger.Info("amqp publisher shutting down...")
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sess != nil {
		if err := a.sess.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			a.logger.Warn("error while closing amqp channel", zap.Error(err))
		}
		a.sess = nil
	}
	if a.conn == nil {
		return nil
	}
	if err := a.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return nil
}

// ClassifyAMQP treats unroutable publishes and missing or forbidden resources
// as permanent and connection level failures as transient.
func ClassifyAMQP(err error) Classification {
	if errors.Is(err, errReturned) {
		return NonRetryable
	}
	var e *amqp.Error
	if errors.As(err, &e) {
		switch e.Code {
		case amqp.NotFound, amqp.AccessRefused, amqp.PreconditionFailed, amqp.ContentTooLarge:
			return NonRetryable
		default:
			return Retryable
		}
	}
	if errors.Is(err, errNacked) ||
		errors.Is(err, amqp.ErrClosed) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return Retryable
	}
	return NonRetryable
}
