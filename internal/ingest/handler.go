package ingest

import (
	"context"
	"sort"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/zhukov-alex/cdcrouter/internal/dispatch"
)

// Handler feeds stream events into the dispatcher.
type Handler struct {
	dispatcher dispatch.Service
	metrics    *metrics
	logger     *zap.Logger
}

func NewHandler(logger *zap.Logger, dispatcher dispatch.Service, registerMetrics bool) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		metrics:    initMetrics(registerMetrics),
		logger:     logger,
	}
}

// Process dispatches one stream event and returns the ids to redeliver.
// Records rejected during conversion are part of the report.
func (h *Handler) Process(ctx context.Context, ev events.DynamoDBEvent) (dispatch.BatchReport, error) {
	logger := h.logger.With(zap.String("method", "Process"))
	start := time.Now()
	defer func() {
		h.metrics.batchLatency.Observe(time.Since(start).Seconds())
	}()

	batch, rejected, errs := Batch(ev)
	for _, err := range errs {
		logger.Error("record rejected", zap.Error(err))
	}
	h.metrics.rejectedRecords.Add(float64(len(rejected)))

	if len(batch) == 0 && len(rejected) > 0 {
		return dispatch.BatchReport{FailedItemIdentifiers: merge(nil, rejected)}, nil
	}

	report, err := h.dispatcher.Dispatch(ctx, batch)
	if err != nil {
		h.metrics.batchErrors.Inc()
		logger.Error("batch rejected", zap.Int("records", len(ev.Records)), zap.Error(err))
		return dispatch.BatchReport{}, err
	}
	report.FailedItemIdentifiers = merge(report.FailedItemIdentifiers, rejected)
	return report, nil
}

// Handle is the Lambda entry point for DynamoDB stream triggers with
// ReportBatchItemFailures enabled.
func (h *Handler) Handle(ctx context.Context, ev events.DynamoDBEvent) (events.DynamoDBEventResponse, error) {
	report, err := h.Process(ctx, ev)
	if err != nil {
		return events.DynamoDBEventResponse{}, err
	}

	resp := events.DynamoDBEventResponse{
		BatchItemFailures: make([]events.DynamoDBBatchItemFailure, 0, len(report.FailedItemIdentifiers)),
	}
	for _, id := range report.FailedItemIdentifiers {
		resp.BatchItemFailures = append(resp.BatchItemFailures, events.DynamoDBBatchItemFailure{ItemIdentifier: id})
	}
	return resp, nil
}

func merge(failed, rejected []string) []string {
	seen := make(map[string]struct{}, len(failed)+len(rejected))
	out := make([]string, 0, len(failed)+len(rejected))
	for _, ids := range [][]string{failed, rejected} {
		for _, id := range ids {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
