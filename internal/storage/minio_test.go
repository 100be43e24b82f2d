package storage

import (
	"context"
	"testing"

	"github.com/hospitaldata/explorer/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNewExportStore_RequiresEndpointAndBucket(t *testing.T) {
	_, err := NewExportStore(context.Background(), config.MinIOConfig{Bucket: "b"})
	require.ErrorContains(t, err, "endpoint")

	_, err = NewExportStore(context.Background(), config.MinIOConfig{Endpoint: "localhost:9000"})
	require.ErrorContains(t, err, "bucket")
}

func TestAttachment(t *testing.T) {
	require.Equal(t, `attachment; filename="20260101T000000.csv"`,
		attachment("exports/Patients Collection/20260101T000000.csv"))
}
