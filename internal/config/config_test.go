package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukov-alex/cdcrouter/internal/config"
	"github.com/zhukov-alex/cdcrouter/internal/dispatch"
	"github.com/zhukov-alex/cdcrouter/internal/offload"
)

const sample = `
metrics_addr: ":9100"
offline: ${ROUTER_OFFLINE:false}
region: ${ROUTER_REGION:eu-west-1}

dispatch:
  concurrency: 16

routing:
  targets:
    - token: test-results
      queue_name: ${TEST_RESULTS_QUEUE:test-results-queue}
    - token: technical-records
      queue_name: tech-queue
      oversize_queue_name: tech-oversize-queue

transform:
  flattened_enabled: false
  flattened:
    token: flat-tech-records
  nested:
    token: technical-records
    drop_fields: [techRecord_hiddenInVta]
    rename_fields:
      - from: techRecord_vehicleClass
        to: vehicleClass

offload:
  bucket: ${BUCKET}
  prefix: local

queue:
  type: sqs
  sqs:
    endpoint: http://localhost:4566
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("CDC_SET", "value")

	tests := []struct {
		in   string
		want string
	}{
		{in: "a: ${CDC_SET}", want: "a: value"},
		{in: "a: ${CDC_SET:other}", want: "a: value"},
		{in: "a: ${CDC_UNSET_VAR:fallback}", want: "a: fallback"},
		{in: "a: ${CDC_UNSET_VAR}", want: "a: CDC_UNSET_VAR"},
		{in: "a: ${CDC_UNSET_VAR:}", want: "a: "},
		{in: "a: $CDC_SET", want: "a: $CDC_SET"},
		{in: "a: ${CDC_SET}-${CDC_UNSET_VAR:x}", want: "a: value-x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, string(config.ExpandEnv([]byte(tt.in))), tt.in)
	}
}

func TestNew(t *testing.T) {
	t.Setenv("TEST_RESULTS_QUEUE", "tr-queue")
	t.Setenv("BUCKET", "payloads")

	v := viper.New()
	require.NoError(t, config.Load(v, writeConfig(t, sample)))

	cfg, err := config.New(v)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.MetricsAddr)
	assert.False(t, cfg.Offline)
	assert.Equal(t, "eu-west-1", cfg.Region)

	assert.Equal(t, 16, cfg.Dispatch.Concurrency)
	assert.Equal(t, dispatch.PolicyReportAll, cfg.Dispatch.FailurePolicy)

	require.Len(t, cfg.Routing.Targets, 2)
	assert.Equal(t, "tr-queue", cfg.Routing.Targets[0].QueueName)
	assert.Equal(t, "tech-oversize-queue", cfg.Routing.Targets[1].OversizeQueueName)

	assert.Equal(t, "technical-records", cfg.Transform.Nested.Token)
	assert.Equal(t, []string{"techRecord_hiddenInVta"}, cfg.Transform.Nested.DropFields)
	require.Len(t, cfg.Transform.Nested.RenameFields, 1)
	assert.Equal(t, "vehicleClass", cfg.Transform.Nested.RenameFields[0].To)

	assert.Equal(t, offload.PolicyExternal, cfg.Offload.Policy)
	assert.Equal(t, offload.DefaultThreshold, cfg.Offload.Threshold)
	assert.Equal(t, "payloads", cfg.Offload.Bucket)

	assert.Equal(t, "sqs", cfg.Queue.Type)
	require.NotNil(t, cfg.Queue.SQS)
	assert.Equal(t, "http://localhost:4566", cfg.Queue.SQS.Endpoint)
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "no targets",
			body: `
region: eu-west-1
offload: {policy: strip}
queue: {type: sqs}
`,
		},
		{
			name: "unknown queue type",
			body: `
region: eu-west-1
routing: {targets: [{token: a, queue_name: q}]}
offload: {policy: strip}
queue: {type: nats}
`,
		},
		{
			name: "external offload without bucket",
			body: `
region: eu-west-1
routing: {targets: [{token: a, queue_name: q}]}
queue: {type: sqs}
`,
		},
		{
			name: "bad failure policy",
			body: `
region: eu-west-1
dispatch: {failure_policy: retry}
routing: {targets: [{token: a, queue_name: q}]}
offload: {policy: strip}
queue: {type: sqs}
`,
		},
		{
			name: "sqs without region",
			body: `
routing: {targets: [{token: a, queue_name: q}]}
offload: {policy: strip}
queue: {type: sqs}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			require.NoError(t, config.Load(v, writeConfig(t, tt.body)))
			_, err := config.New(v)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	err := config.Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
