package storage

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "empty endpoint", config: Config{Endpoint: "", Bucket: "test"}, wantErr: true},
		{name: "empty bucket", config: Config{Endpoint: "localhost:9000", Bucket: ""}, wantErr: true},
		{
			name: "valid config",
			config: Config{
				Endpoint:        "localhost:9000",
				Bucket:          "test",
				AccessKeyID:     "minioadmin",
				SecretAccessKey: "minioadmin",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.config.Bucket, c.Bucket())
		})
	}
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "uploads/abc/report.pdf", ObjectName("abc", "report.pdf"))
	assert.Equal(t, "uploads/abc/report.pdf", ObjectName("abc", "../../etc/report.pdf"))
	assert.Equal(t, "uploads/abc/report.pdf", ObjectName("abc", `C:\docs\report.pdf`))
}

func TestIntegration_ArchiveRoundTrip(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("Skipping: MINIO_ENDPOINT not set")
	}

	client, err := New(Config{
		Endpoint:        endpoint,
		Bucket:          "pdf-rag-test",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.EnsureBucket(ctx); err != nil {
		t.Skipf("Skipping: MinIO not available: %v", err)
	}

	key, err := client.Archive(ctx, "doc.pdf", []byte("%PDF-1.4 test"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "uploads/"))

	data, err := client.get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 test", string(data))
}
