package blobstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectPath(t *testing.T) {
	assert.Equal(t, "notes/originals/report.pdf", ObjectPath("notes", "report.pdf"))
	assert.Equal(t, "notes/originals/sub/doc.md", ObjectPath("notes", "sub/doc.md"))
}

func TestCollectionPrefix(t *testing.T) {
	assert.Equal(t, "notes/", CollectionPrefix("notes"))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "valid",
			cfg:  Config{Endpoint: "localhost:9000", Bucket: "documents"},
		},
		{
			name:    "missing endpoint",
			cfg:     Config{Bucket: "documents"},
			wantErr: "endpoint is required",
		},
		{
			name:    "missing bucket",
			cfg:     Config{Endpoint: "localhost:9000"},
			wantErr: "bucket is required",
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

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid blobstore config")
}
