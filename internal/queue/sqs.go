package queue

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// EnvTraceID holds the X-Ray trace header of the current invocation.
const EnvTraceID = "_X_AMZN_TRACE_ID"

type SQSAPI interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type SQSTransport struct {
	client SQSAPI
	logger *zap.Logger
}

func NewSQSTransport(logger *zap.Logger, client SQSAPI) *SQSTransport {
	return &SQSTransport{
		client: client,
		logger: logger,
	}
}

func (s *SQSTransport) ResolveEndpoint(ctx context.Context, name string) (Endpoint, error) {
	out, err := s.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		return Endpoint{}, fmt.Errorf("get queue url: %w", err)
	}
	if out.QueueUrl == nil || *out.QueueUrl == "" {
		return Endpoint{}, fmt.Errorf("queue url not found for %q", name)
	}
	return Endpoint{Name: name, Address: *out.QueueUrl}, nil
}

func (s *SQSTransport) Send(ctx context.Context, ep Endpoint, body string, attrs map[string]string) (Receipt, error) {
	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(ep.Address),
		MessageBody: aws.String(body),
	}
	if len(attrs) > 0 {
		in.MessageAttributes = make(map[string]types.MessageAttributeValue, len(attrs))
		for k, v := range attrs {
			in.MessageAttributes[k] = types.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(v),
			}
		}
	}
	if trace := os.Getenv(EnvTraceID); trace != "" {
		in.MessageSystemAttributes = map[string]types.MessageSystemAttributeValue{
			"AWSTraceHeader": {
				DataType:    aws.String("String"),
				StringValue: aws.String(trace),
			},
		}
	}

	out, err := s.client.SendMessage(ctx, in)
	if err != nil {
		return Receipt{}, fmt.Errorf("send message: %w", err)
	}
	return Receipt{MessageID: aws.ToString(out.MessageId)}, nil
}

func (s *SQSTransport) Close(_ context.Context) error {
	return nil
}

var sqsRetryableCodes = map[string]struct{}{
	"ThrottlingException": {},
	"RequestThrottled":    {},
	"OverLimit":           {},
	"KmsThrottled":        {},
	"ServiceUnavailable":  {},
	"InternalError":       {},
}

// ClassifySQS treats 5xx, 429, server faults, throttling and network
// failures as retryable.
func ClassifySQS(err error) Classification {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		if code := re.HTTPStatusCode(); code >= http.StatusInternalServerError || code == http.StatusTooManyRequests {
			return Retryable
		}
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorFault() == smithy.FaultServer {
			return Retryable
		}
		if _, ok := sqsRetryableCodes[apiErr.ErrorCode()]; ok {
			return Retryable
		}
		return NonRetryable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Retryable
	}
	return NonRetryable
}
