package aws

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
)

// LakeUploader mirrors exported table directories to S3.
type LakeUploader struct {
	client Client
	bucket string
	prefix string
}

// NewLakeUploader creates a new lake uploader.
func NewLakeUploader(client Client, bucket, prefix string) *LakeUploader {
	return &LakeUploader{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// UploadResult holds the S3 location of an uploaded table.
type UploadResult struct {
	URI   string
	Files int
}

// UploadTable replaces s3://bucket/prefix/<name>/ with the contents of
// localDir, preserving the partition directory layout.
func (u *LakeUploader) UploadTable(ctx context.Context, name, localDir string) (*UploadResult, error) {
	tablePrefix := path.Join(u.prefix, name) + "/"
	if err := u.client.DeletePrefix(ctx, u.bucket, tablePrefix); err != nil {
		return nil, fmt.Errorf("clearing previous export: %w", err)
	}

	result := &UploadResult{URI: fmt.Sprintf("s3://%s/%s", u.bucket, tablePrefix)}
	err := filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		key := path.Join(tablePrefix, filepath.ToSlash(rel))
		if err := u.client.UploadFile(ctx, u.bucket, key, p); err != nil {
			return err
		}
		result.Files++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", name, err)
	}
	return result, nil
}
