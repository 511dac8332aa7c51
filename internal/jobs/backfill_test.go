package jobs

import (
	"context"
	"errors"
	"testing"

	"feedbackd/internal/storage"
	"feedbackd/internal/vector"
)

type mockStore struct {
	missing   []*storage.FeedbackItem
	vectorIDs map[string]string
	listErr   error
}

func newMockStore(missing ...*storage.FeedbackItem) *mockStore {
	return &mockStore{missing: missing, vectorIDs: make(map[string]string)}
}

func (m *mockStore) Insert(ctx context.Context, item *storage.FeedbackItem) error { return nil }

func (m *mockStore) Get(ctx context.Context, id string) (*storage.FeedbackItem, error) {
	return nil, storage.ErrNotFound
}

func (m *mockStore) List(ctx context.Context, limit, offset int) ([]*storage.FeedbackItem, error) {
	return nil, nil
}

func (m *mockStore) GetByIDs(ctx context.Context, ids []string) (map[string]*storage.FeedbackItem, error) {
	return nil, nil
}

func (m *mockStore) SearchKeyword(ctx context.Context, query string, limit int) ([]*storage.FeedbackItem, error) {
	return nil, nil
}

func (m *mockStore) CompleteProcessing(ctx context.Context, id string, ann storage.Annotations, vectorID string) error {
	return nil
}

func (m *mockStore) MarkFailed(ctx context.Context, id string) error { return nil }

func (m *mockStore) ListMissingVectors(ctx context.Context, limit int) ([]*storage.FeedbackItem, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	if len(m.missing) > limit {
		return m.missing[:limit], nil
	}
	return m.missing, nil
}

func (m *mockStore) SetVectorID(ctx context.Context, id, vectorID string) error {
	m.vectorIDs[id] = vectorID
	return nil
}

func (m *mockStore) Close() error { return nil }

type mockIndex struct {
	upserted  map[string]vector.Metadata
	upsertErr error
}

func newMockIndex() *mockIndex {
	return &mockIndex{upserted: make(map[string]vector.Metadata)}
}

func (m *mockIndex) Upsert(ctx context.Context, id string, embedding []float32, meta vector.Metadata) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted[id] = meta
	return nil
}

func (m *mockIndex) Query(ctx context.Context, embedding []float32, topK int) ([]vector.Match, error) {
	return nil, nil
}

func (m *mockIndex) Close() error { return nil }

type mockProvider struct {
	embedErr   error
	embedCalls int
}

func (m *mockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	m.embedCalls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockProvider) Sentiment(ctx context.Context, text string) (string, error) {
	return "neutral", nil
}

func completedItem(id string) *storage.FeedbackItem {
	return &storage.FeedbackItem{
		ID:        id,
		RawText:   "Search is slow on large workspaces",
		Status:    storage.StatusCompleted,
		Sentiment: "negative",
		Category:  "Performance",
	}
}

func TestProcessBatchBackfillsVectors(t *testing.T) {
	store := newMockStore(completedItem("item-1"), completedItem("item-2"))
	index := newMockIndex()
	provider := &mockProvider{}

	processor := NewVectorBackfillProcessor(store, index, provider)
	if err := processor.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch failed: %v", err)
	}

	if provider.embedCalls != 2 {
		t.Errorf("Expected 2 embed calls, got %d", provider.embedCalls)
	}
	for _, id := range []string{"item-1", "item-2"} {
		if _, ok := index.upserted[id]; !ok {
			t.Errorf("Expected vector upsert for %s", id)
		}
		if store.vectorIDs[id] != id {
			t.Errorf("Expected vector_id %s for %s, got %q", id, id, store.vectorIDs[id])
		}
	}

	meta := index.upserted["item-1"]
	if meta.ItemID != "item-1" || meta.Category != "Performance" {
		t.Errorf("Unexpected metadata propagated: %+v", meta)
	}
}

func TestProcessBatchEmptyBacklog(t *testing.T) {
	store := newMockStore()
	provider := &mockProvider{}

	processor := NewVectorBackfillProcessor(store, newMockIndex(), provider)
	if err := processor.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch failed: %v", err)
	}

	if provider.embedCalls != 0 {
		t.Errorf("Expected no embed calls for empty backlog, got %d", provider.embedCalls)
	}
}

func TestProcessBatchEmbedFailureLeavesItemForRetry(t *testing.T) {
	store := newMockStore(completedItem("item-1"))
	provider := &mockProvider{embedErr: errors.New("provider down")}

	processor := NewVectorBackfillProcessor(store, newMockIndex(), provider)
	if err := processor.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch should absorb per-item failures, got %v", err)
	}

	if _, ok := store.vectorIDs["item-1"]; ok {
		t.Error("Expected vector_id untouched after embed failure")
	}
}

func TestProcessBatchUpsertFailureSkipsVectorID(t *testing.T) {
	store := newMockStore(completedItem("item-1"))
	index := newMockIndex()
	index.upsertErr = errors.New("index down")

	processor := NewVectorBackfillProcessor(store, index, &mockProvider{})
	if err := processor.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch should absorb per-item failures, got %v", err)
	}

	if _, ok := store.vectorIDs["item-1"]; ok {
		t.Error("Expected vector_id untouched after upsert failure")
	}
}

func TestProcessBatchListErrorPropagates(t *testing.T) {
	store := newMockStore()
	store.listErr = errors.New("db down")

	processor := NewVectorBackfillProcessor(store, newMockIndex(), &mockProvider{})
	if err := processor.processBatch(context.Background()); err == nil {
		t.Error("Expected error when listing backlog fails")
	}
}

func TestBatchSizeBounds(t *testing.T) {
	processor := NewVectorBackfillProcessor(newMockStore(), newMockIndex(), &mockProvider{})

	processor.SetBatchSize(50)
	if processor.batchSize != 50 {
		t.Errorf("Expected batch size 50, got %d", processor.batchSize)
	}

	processor.SetBatchSize(0)
	if processor.batchSize != 50 {
		t.Errorf("Expected invalid batch size rejected, got %d", processor.batchSize)
	}

	processor.SetBatchSize(5000)
	if processor.batchSize != 50 {
		t.Errorf("Expected oversized batch size rejected, got %d", processor.batchSize)
	}
}
