// Package aws uploads exported lake files to S3.
package aws

import "context"

// Client defines the S3 operations needed to publish the Parquet lake.
type Client interface {
	UploadFile(ctx context.Context, bucket, key, localPath string) error
	DeletePrefix(ctx context.Context, bucket, prefix string) error
}
