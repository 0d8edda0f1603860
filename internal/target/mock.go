package target

import (
	"context"

	"github.com/storepulse/storepulse/internal/table"
)

// MockSink is a test double for the Sink interface.
type MockSink struct {
	SinkName   string
	ReplaceErr error
	CloseErr   error

	// Track calls
	Tables map[string]*table.Table
	Order  []string
	Closed bool
}

// NewMockSink creates a MockSink.
func NewMockSink(name string) *MockSink {
	return &MockSink{SinkName: name, Tables: make(map[string]*table.Table)}
}

func (m *MockSink) Name() string { return m.SinkName }

func (m *MockSink) ReplaceTable(_ context.Context, name string, t *table.Table) (int64, error) {
	if m.ReplaceErr != nil {
		return 0, m.ReplaceErr
	}
	m.Tables[name] = t.Clone()
	m.Order = append(m.Order, name)
	return int64(t.Len()), nil
}

func (m *MockSink) Close(_ context.Context) error {
	m.Closed = true
	return m.CloseErr
}
