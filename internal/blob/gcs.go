package blob

import (
	"context"

	"elncore/internal/infra/blob/gcs"
)

// GCSConfig is the Google Cloud Storage backend configuration.
type GCSConfig = gcs.Config

// NewGCS constructs a GCS-backed Store.
func NewGCS(ctx context.Context, cfg GCSConfig) (Store, error) {
	return gcs.New(ctx, cfg)
}
