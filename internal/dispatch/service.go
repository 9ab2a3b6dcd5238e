package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/zhukov-alex/cdcrouter/internal/offload"
	"github.com/zhukov-alex/cdcrouter/internal/queue"
	"github.com/zhukov-alex/cdcrouter/internal/record"
	"github.com/zhukov-alex/cdcrouter/internal/routing"
	"github.com/zhukov-alex/cdcrouter/internal/transform"
)

// Service defines the interface for the dispatch service.
type Service interface {
	Dispatch(ctx context.Context, batch []record.ChangeRecord) (BatchReport, error)
}

type Router interface {
	Resolve(origin string) (routing.Target, error)
}

type Sender interface {
	Send(ctx context.Context, queueName, body string, attrs map[string]string) (queue.Receipt, error)
}

type ServiceImpl struct {
	cfg         Config
	router      Router
	transformer *transform.Transformer
	policy      offload.Policy
	sender      Sender
	metrics     *metrics
	logger      *zap.Logger
}

// New creates a dispatcher. A nil transformer disables category gating.
func New(logger *zap.Logger, cfg Config, router Router, tr *transform.Transformer, policy offload.Policy, sender Sender, registerMetrics bool) Service {
	cfg.SetDefault()
	return &ServiceImpl{
		cfg:         cfg,
		router:      router,
		transformer: tr,
		policy:      policy,
		sender:      sender,
		metrics:     initMetrics(registerMetrics),
		logger:      logger,
	}
}

// Dispatch runs every record of the batch through its own pipeline and
// reports the ids that failed. Only an empty batch is rejected as a whole.
// When ctx ends first, records still in flight are reported as failed.
func (s *ServiceImpl) Dispatch(ctx context.Context, batch []record.ChangeRecord) (BatchReport, error) {
	if len(batch) == 0 {
		return BatchReport{}, &IntakeError{Reason: "batch has no records"}
	}
	logger := s.logger.With(zap.String("method", "Dispatch"))
	s.metrics.batchSize.Observe(float64(len(batch)))

	ids := make([]string, len(batch))
	for i := range batch {
		ids[i] = batch[i].ID
	}
	agg := newAggregator(ids)

	limit := s.cfg.Concurrency
	if limit <= 0 || limit > len(batch) {
		limit = len(batch)
	}
	sem := make(chan struct{}, limit)
	done := make(chan struct{})

	go func() {
		var wg sync.WaitGroup
		defer func() {
			wg.Wait()
			close(done)
		}()
		for i := range batch {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			wg.Add(1)
			go func(rec record.ChangeRecord) {
				defer func() {
					<-sem
					wg.Done()
				}()
				o := s.run(ctx, rec)
				if agg.record(o) {
					s.metrics.outcomes.WithLabelValues(o.State.String()).Inc()
				}
			}(batch[i])
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	if unsettled := agg.seal(); len(unsettled) > 0 {
		s.metrics.outcomes.WithLabelValues(Failed.String()).Add(float64(len(unsettled)))
		logger.Warn("batch ended before all records settled",
			zap.Int("unsettled", len(unsettled)),
			zap.Strings("record_ids", unsettled),
			zap.Error(ctx.Err()),
		)
	}

	report := agg.report()
	logger.Info("batch dispatched",
		zap.Int("records", len(batch)),
		zap.Int("failed", len(report.FailedItemIdentifiers)),
	)
	return report, nil
}

// run keeps a panicking pipeline from taking its siblings down.
func (s *ServiceImpl) run(ctx context.Context, rec record.ChangeRecord) (o Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("record pipeline panicked", zap.String("record_id", rec.ID), zap.Any("panic", r))
			o = Outcome{RecordID: rec.ID, State: Failed, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return s.process(ctx, rec)
}

func (s *ServiceImpl) process(ctx context.Context, rec record.ChangeRecord) Outcome {
	stop := s.metrics.recordTimer()
	defer stop()

	logger := s.logger.With(zap.String("method", "process"), zap.String("record_id", rec.ID))
	failed := func(msg string, err error, fields ...zap.Field) Outcome {
		logger.Error(msg, append(fields, zap.Error(err))...)
		return Outcome{RecordID: rec.ID, State: Failed, Err: err}
	}

	if err := rec.Validate(); err != nil {
		return failed("invalid record", err)
	}

	target, err := s.router.Resolve(rec.OriginStreamID)
	if err != nil {
		return failed("routing failed", err, zap.String("origin", rec.OriginStreamID))
	}
	logger.Debug("record routed", zap.String("origin", rec.OriginStreamID), zap.String("queue", target.QueueName))

	var attrs map[string]string
	if s.transformer != nil {
		if category := s.transformer.Classify(rec); category != transform.None {
			if !s.transformer.ShouldProcess(category) {
				logger.Debug("record skipped", zap.Stringer("category", category))
				return Outcome{RecordID: rec.ID, State: Skipped}
			}
			rec, attrs = s.transformer.Transform(rec, category)
		}
	}

	msg, err := s.policy.Prepare(ctx, rec, target, attrs)
	if err != nil {
		return failed("prepare message failed", err, zap.String("queue", target.QueueName))
	}
	if msg.Offloaded {
		s.metrics.offloaded.Inc()
		logger.Debug("payload offloaded", zap.String("queue", msg.QueueName))
	}

	receipt, err := s.sender.Send(ctx, msg.QueueName, msg.Body, msg.Attributes)
	if err != nil {
		class := queue.NonRetryable
		var te *queue.TransportError
		if errors.As(err, &te) {
			class = te.Class
		}
		s.metrics.transportErrors.WithLabelValues(class.String()).Inc()

		if class == queue.NonRetryable && s.cfg.FailurePolicy == PolicyDropNonRetryable {
			logger.Warn("dropping record after non-retryable send failure",
				zap.String("queue", msg.QueueName),
				zap.Error(err),
			)
			return Outcome{RecordID: rec.ID, State: Skipped, Err: err}
		}
		return failed("send failed", err, zap.String("queue", msg.QueueName), zap.Stringer("class", class))
	}

	logger.Debug("record sent", zap.String("queue", msg.QueueName), zap.String("message_id", receipt.MessageID))
	return Outcome{RecordID: rec.ID, State: Success}
}
