package offload_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukov-alex/cdcrouter/internal/mocks"
	"github.com/zhukov-alex/cdcrouter/internal/offload"
	"github.com/zhukov-alex/cdcrouter/internal/record"
	"github.com/zhukov-alex/cdcrouter/internal/routing"
)

var target = routing.Target{MatchToken: "test-results", QueueName: "queue-A", OversizeQueueName: "queue-A-dlq"}

func testRecord() record.ChangeRecord {
	return record.ChangeRecord{
		ID:             "1",
		OriginStreamID: "test-results",
		ChangeType:     record.Insert,
		Payload: map[string]any{
			"Keys":     map[string]any{"id": map[string]any{"S": "1"}},
			"NewImage": map[string]any{"blob": map[string]any{"S": strings.Repeat("x", 512)}},
		},
	}
}

func marshalSize(t *testing.T, rec record.ChangeRecord) int {
	t.Helper()
	data, err := rec.Marshal()
	require.NoError(t, err)
	return len(data)
}

func TestExternalStore_Prepare_AtThresholdIsInline(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockObjectStore(ctrl)
	store.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	rec := testRecord()
	size := marshalSize(t, rec)
	o := offload.NewExternalStore(store, offload.Config{Bucket: "bucket", Threshold: size})

	msg, err := o.Prepare(context.Background(), rec, target, nil)
	require.NoError(t, err)

	want, _ := rec.Marshal()
	assert.False(t, msg.Offloaded)
	assert.Equal(t, string(want), msg.Body)
	assert.Equal(t, "queue-A", msg.QueueName)
}

func TestExternalStore_Prepare_OneByteOverIsOffloaded(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	rec := testRecord()
	size := marshalSize(t, rec)

	var storedKey string
	store := mocks.NewMockObjectStore(ctrl)
	store.EXPECT().Put(gomock.Any(), "bucket", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _, key string, data []byte) (string, error) {
			storedKey = key
			assert.Len(t, data, size)
			return "https://bucket.s3.local/" + key, nil
		})

	o := offload.NewExternalStore(store, offload.Config{Bucket: "bucket", Prefix: "develop", Threshold: size - 1})

	msg, err := o.Prepare(context.Background(), rec, target, map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.True(t, msg.Offloaded)
	assert.Equal(t, "queue-A", msg.QueueName)
	assert.Equal(t, map[string]string{"k": "v"}, msg.Attributes)
	assert.NotContains(t, msg.Body, "xxxxxxxx")
	assert.LessOrEqual(t, len(msg.Body), size-1)

	var env map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(msg.Body), &env))
	require.Len(t, env, 1)
	ref := env["externalRef"]
	assert.Len(t, ref, 3)
	assert.Equal(t, storedKey, ref["key"])
	assert.Equal(t, "develop/"+ref["id"]+".json", ref["key"])
	assert.Equal(t, "https://bucket.s3.local/"+storedKey, ref["location"])
}

func TestExternalStore_Prepare_StoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockObjectStore(ctrl)
	store.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("access denied"))

	o := offload.NewExternalStore(store, offload.Config{Bucket: "bucket", Threshold: 300})

	_, err := o.Prepare(context.Background(), testRecord(), target, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, offload.ErrOffload))
	assert.ErrorContains(t, err, "access denied")
}

func TestNewKey(t *testing.T) {
	id, key := offload.NewKey("")
	assert.Equal(t, id+".json", key)

	id2, key2 := offload.NewKey("develop")
	assert.Equal(t, "develop/"+id2+".json", key2)
	assert.NotEqual(t, id, id2)
}

func TestExternalStore_Resolve(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockObjectStore(ctrl)
	store.EXPECT().Get(gomock.Any(), "bucket", "develop/abc.json").Return([]byte(`{"original":true}`), nil).Times(2)

	o := offload.NewExternalStore(store, offload.Config{Bucket: "bucket"})

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "inline body",
			body: `{"id":"1","eventSourceARN":"test-results"}`,
			want: `{"id":"1","eventSourceARN":"test-results"}`,
		},
		{
			name: "non json body",
			body: "plain text",
			want: "plain text",
		},
		{
			name: "external ref",
			body: `{"externalRef":{"id":"abc","key":"develop/abc.json","location":"https://x"}}`,
			want: `{"original":true}`,
		},
		{
			name: "legacy envelope",
			body: `{"S3Payload":{"Id":"develop/abc.json","Key":"develop/abc.json","Location":"https://x"}}`,
			want: `{"original":true}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := o.Resolve(context.Background(), tt.body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestExternalStore_RoundTrip(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	objects := map[string][]byte{}
	store := mocks.NewMockObjectStore(ctrl)
	store.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _, key string, data []byte) (string, error) {
			objects[key] = data
			return "loc", nil
		})
	store.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _, key string) ([]byte, error) {
			return objects[key], nil
		})

	o := offload.NewExternalStore(store, offload.Config{Bucket: "bucket", Threshold: 300})
	rec := testRecord()

	msg, err := o.Prepare(context.Background(), rec, target, nil)
	require.NoError(t, err)
	require.True(t, msg.Offloaded)

	got, err := o.Resolve(context.Background(), msg.Body)
	require.NoError(t, err)
	want, _ := rec.Marshal()
	assert.Equal(t, want, got)
}

func TestStripAndRoute_Prepare(t *testing.T) {
	rec := testRecord()
	size := marshalSize(t, rec)

	t.Run("fits", func(t *testing.T) {
		msg, err := offload.NewStripAndRoute(size).Prepare(context.Background(), rec, target, nil)
		require.NoError(t, err)
		assert.Equal(t, "queue-A", msg.QueueName)
		assert.NotContains(t, msg.Attributes, offload.AttrStrippedField)
	})

	t.Run("strips heaviest field to oversize queue", func(t *testing.T) {
		msg, err := offload.NewStripAndRoute(size-1).Prepare(context.Background(), rec, target, map[string]string{"k": "v"})
		require.NoError(t, err)
		assert.Equal(t, "queue-A-dlq", msg.QueueName)
		assert.Equal(t, "NewImage", msg.Attributes[offload.AttrStrippedField])
		assert.Equal(t, "v", msg.Attributes["k"])
		assert.NotContains(t, msg.Body, "xxxxxxxx")
		assert.Contains(t, msg.Body, `"Keys"`)
		// the record passed in is left as is
		assert.Contains(t, rec.Payload, "NewImage")
	})

	t.Run("no oversize queue", func(t *testing.T) {
		_, err := offload.NewStripAndRoute(size-1).Prepare(context.Background(), rec, routing.Target{QueueName: "queue-A"}, nil)
		assert.True(t, errors.Is(err, offload.ErrOffload))
	})

	t.Run("still too big", func(t *testing.T) {
		_, err := offload.NewStripAndRoute(10).Prepare(context.Background(), rec, target, nil)
		assert.True(t, errors.Is(err, offload.ErrOffload))
	})
}

func TestFits(t *testing.T) {
	assert.True(t, offload.Fits(offload.DefaultThreshold, offload.DefaultThreshold))
	assert.False(t, offload.Fits(offload.DefaultThreshold+1, offload.DefaultThreshold))
	assert.True(t, offload.Fits(0, offload.DefaultThreshold))
}

func TestConfig_Validate(t *testing.T) {
	cfg := offload.Config{Bucket: "b"}
	cfg.SetDefault()
	assert.Equal(t, offload.PolicyExternal, cfg.Policy)
	assert.Equal(t, 262144, cfg.Threshold)
	assert.NoError(t, cfg.Validate())

	noBucket := offload.Config{Policy: offload.PolicyExternal, Threshold: 1}
	assert.Error(t, noBucket.Validate())

	strip := offload.Config{Policy: offload.PolicyStrip, Threshold: 1}
	assert.NoError(t, strip.Validate())

	bad := offload.Config{Policy: "drop"}
	assert.Error(t, bad.Validate())

	tiny := offload.Config{Policy: offload.PolicyExternal, Bucket: "b", Threshold: 100}
	assert.Error(t, tiny.Validate())

	smallest := offload.Config{Policy: offload.PolicyExternal, Bucket: "b", Threshold: offload.MinExternalThreshold}
	assert.NoError(t, smallest.Validate())
}

func TestExternalStore_Prepare_EnvelopeMustFit(t *testing.T) {
	t.Run("threshold below the bare envelope", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		store := mocks.NewMockObjectStore(ctrl)
		store.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		o := offload.NewExternalStore(store, offload.Config{Bucket: "bucket", Threshold: 100})
		_, err := o.Prepare(context.Background(), testRecord(), target, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, offload.ErrOffload))
	})

	t.Run("location pushes the envelope over", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		store := mocks.NewMockObjectStore(ctrl)
		store.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return("https://bucket.s3.eu-west-1.amazonaws.com/"+strings.Repeat("p", 200), nil)

		o := offload.NewExternalStore(store, offload.Config{Bucket: "bucket", Threshold: 200})
		_, err := o.Prepare(context.Background(), testRecord(), target, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, offload.ErrOffload))
		assert.ErrorContains(t, err, "exceeds threshold 200")
	})
}
