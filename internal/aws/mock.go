package aws

import (
	"context"
	"sync"
)

// MockClient is a test double for the Client interface.
type MockClient struct {
	UploadErr error
	DeleteErr error

	mu              sync.Mutex
	UploadedFiles   map[string]string // bucket/key → local path
	DeletedPrefixes []string
}

// NewMockClient creates a new MockClient.
func NewMockClient() *MockClient {
	return &MockClient{UploadedFiles: make(map[string]string)}
}

func (m *MockClient) UploadFile(_ context.Context, bucket, key, localPath string) error {
	if m.UploadErr != nil {
		return m.UploadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UploadedFiles[bucket+"/"+key] = localPath
	return nil
}

func (m *MockClient) DeletePrefix(_ context.Context, bucket, prefix string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeletedPrefixes = append(m.DeletedPrefixes, bucket+"/"+prefix)
	return nil
}
