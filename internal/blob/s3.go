package blob

import (
	"context"

	infraS3 "elncore/internal/infra/blob/s3"
)

// S3Config is the S3 backend configuration.
type S3Config = infraS3.Config

// NewS3 constructs an S3-backed Store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return infraS3.New(ctx, cfg)
}
