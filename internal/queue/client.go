package queue

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Client sends message bodies to queues by name. Endpoint resolution is done
// once per name for the lifetime of the client; concurrent first lookups of
// the same name share one transport call.
type Client struct {
	transport Transport
	classify  Classifier
	endpoints sync.Map
	group     singleflight.Group
	logger    *zap.Logger
}

func NewClient(logger *zap.Logger, t Transport, classify Classifier) *Client {
	if classify == nil {
		classify = func(error) Classification { return NonRetryable }
	}
	return &Client{
		transport: t,
		classify:  classify,
		logger:    logger,
	}
}

func (c *Client) ResolveEndpoint(ctx context.Context, name string) (Endpoint, error) {
	if ep, ok := c.endpoints.Load(name); ok {
		return ep.(Endpoint), nil
	}

	v, err, shared := c.group.Do(name, func() (any, error) {
		if ep, ok := c.endpoints.Load(name); ok {
			return ep, nil
		}
		ep, err := c.transport.ResolveEndpoint(ctx, name)
		if err != nil {
			return nil, err
		}
		c.endpoints.Store(name, ep)
		c.logger.Debug("queue endpoint resolved", zap.String("queue", name), zap.String("address", ep.Address))
		return ep, nil
	})
	if err != nil {
		return Endpoint{}, c.wrap(name, err)
	}
	if shared {
		c.logger.Debug("queue endpoint resolution shared", zap.String("queue", name))
	}
	return v.(Endpoint), nil
}

func (c *Client) Send(ctx context.Context, queueName, body string, attrs map[string]string) (Receipt, error) {
	ep, err := c.ResolveEndpoint(ctx, queueName)
	if err != nil {
		return Receipt{}, err
	}
	receipt, err := c.transport.Send(ctx, ep, body, attrs)
	if err != nil {
		return Receipt{}, c.wrap(queueName, err)
	}
	return receipt, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.transport.Close(ctx)
}

func (c *Client) wrap(queueName string, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	class := c.classify(err)
	// an unfinished send is never a verdict on the message
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		class = Retryable
	}
	return &TransportError{Queue: queueName, Class: class, Err: err}
}
