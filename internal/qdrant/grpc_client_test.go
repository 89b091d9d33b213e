package qdrant

import (
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClientConfig_ApplyDefaults(t *testing.T) {
	cfg := &ClientConfig{}
	cfg.ApplyDefaults()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6334, cfg.Port)
	assert.Equal(t, 50*1024*1024, cfg.MaxMessageSize)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, qdrant.Distance_Cosine, cfg.Distance)
}

func TestClientConfig_ApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &ClientConfig{Host: "qdrant.internal", Port: 7334, RetryAttempts: 5}
	cfg.ApplyDefaults()

	assert.Equal(t, "qdrant.internal", cfg.Host)
	assert.Equal(t, 7334, cfg.Port)
	assert.Equal(t, 5, cfg.RetryAttempts)
}

func TestClientConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ClientConfig
		wantErr string
	}{
		{
			name: "valid",
			cfg:  ClientConfig{Host: "localhost", Port: 6334, MaxMessageSize: 1024},
		},
		{
			name:    "missing host",
			cfg:     ClientConfig{Port: 6334, MaxMessageSize: 1024},
			wantErr: "host is required",
		},
		{
			name:    "invalid port",
			cfg:     ClientConfig{Host: "localhost", Port: -1, MaxMessageSize: 1024},
			wantErr: "invalid port",
		},
		{
			name:    "invalid message size",
			cfg:     ClientConfig{Host: "localhost", Port: 6334, MaxMessageSize: 0},
			wantErr: "invalid max message size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "unavailable", err: status.Error(codes.Unavailable, "down"), want: true},
		{name: "deadline exceeded", err: status.Error(codes.DeadlineExceeded, "slow"), want: true},
		{name: "aborted", err: status.Error(codes.Aborted, "conflict"), want: true},
		{name: "resource exhausted", err: status.Error(codes.ResourceExhausted, "quota"), want: true},
		{name: "not found", err: status.Error(codes.NotFound, "missing"), want: false},
		{name: "invalid argument", err: status.Error(codes.InvalidArgument, "bad"), want: false},
		{name: "plain error", err: assert.AnError, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransientError(tt.err))
		})
	}
}

func TestConvertToQdrantValue(t *testing.T) {
	assert.Equal(t, "s", convertToQdrantValue("s").GetStringValue())
	assert.Equal(t, int64(7), convertToQdrantValue(7).GetIntegerValue())
	assert.Equal(t, int64(9), convertToQdrantValue(int64(9)).GetIntegerValue())
	assert.Equal(t, 1.5, convertToQdrantValue(1.5).GetDoubleValue())
	assert.Equal(t, true, convertToQdrantValue(true).GetBoolValue())
	// Unknown types fall back to their string representation.
	assert.Equal(t, "[1 2]", convertToQdrantValue([]int{1, 2}).GetStringValue())
}

func TestConvertToQdrantPoint_RoundTrip(t *testing.T) {
	p := &Point{
		ID:     42,
		Vector: []float32{0.1, 0.2, 0.3},
		Payload: map[string]interface{}{
			"content":     "hello",
			"chunk_index": 3,
		},
	}

	qp := convertToQdrantPoint(p)
	require.NotNil(t, qp)
	assert.Equal(t, uint64(42), qp.Id.GetNum())
	assert.Equal(t, "hello", qp.Payload["content"].GetStringValue())
	assert.Equal(t, int64(3), qp.Payload["chunk_index"].GetIntegerValue())

	back := extractPayload(qp.Payload)
	assert.Equal(t, "hello", back["content"])
	assert.Equal(t, int64(3), back["chunk_index"])
}

func TestExcludeIDFilter(t *testing.T) {
	assert.Nil(t, excludeIDFilter(nil))

	f := excludeIDFilter([]uint64{0})
	require.NotNil(t, f)
	require.Len(t, f.MustNot, 1)

	hasID := f.MustNot[0].GetHasId()
	require.NotNil(t, hasID)
	require.Len(t, hasID.HasId, 1)
	assert.Equal(t, uint64(0), hasID.HasId[0].GetNum())
}

func TestExtractPointID(t *testing.T) {
	assert.Equal(t, uint64(0), extractPointID(nil))
	assert.Equal(t, uint64(17), extractPointID(qdrant.NewIDNum(17)))
}
