package testutil

import (
	"context"
	"sync"

	"gridvault/internal/core"
)

// RecordingEmbeddingSink captures every embedding hand-off for assertions.
// Safe for concurrent use.
type RecordingEmbeddingSink struct {
	mu    sync.Mutex
	calls []EmbeddingCall

	// Err, when set, is returned by every StoreEmbeddings call.
	Err error
}

// EmbeddingCall is one recorded StoreEmbeddings invocation.
type EmbeddingCall struct {
	Records         []core.EmbeddingRecord
	ReplaceExisting bool
}

func NewRecordingEmbeddingSink() *RecordingEmbeddingSink {
	return &RecordingEmbeddingSink{}
}

func (s *RecordingEmbeddingSink) StoreEmbeddings(_ context.Context, records []core.EmbeddingRecord, replaceExisting bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.calls = append(s.calls, EmbeddingCall{
		Records:         append([]core.EmbeddingRecord{}, records...),
		ReplaceExisting: replaceExisting,
	})
	return nil
}

// Calls returns the recorded invocations in order.
func (s *RecordingEmbeddingSink) Calls() []EmbeddingCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EmbeddingCall{}, s.calls...)
}

var _ core.EmbeddingSink = (*RecordingEmbeddingSink)(nil)
