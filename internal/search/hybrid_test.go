package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"feedbackd/internal/storage"
	"feedbackd/internal/vector"
)

// Mock provider for query embedding
type mockProvider struct {
	embedErr error
}

func (m *mockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return make([]float32, 768), nil
}

func (m *mockProvider) Sentiment(ctx context.Context, text string) (string, error) {
	return "neutral", nil
}

// Mock vector index
type mockIndex struct {
	matches  []vector.Match
	queryErr error
}

func (m *mockIndex) Upsert(ctx context.Context, id string, embedding []float32, meta vector.Metadata) error {
	return nil
}

func (m *mockIndex) Query(ctx context.Context, embedding []float32, topK int) ([]vector.Match, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if len(m.matches) > topK {
		return m.matches[:topK], nil
	}
	return m.matches, nil
}

func (m *mockIndex) Close() error { return nil }

// Mock store: GetByIDs + SearchKeyword are all the engine touches.
type mockSearchStore struct {
	items      map[string]*storage.FeedbackItem
	keywordErr error
}

func (m *mockSearchStore) Insert(ctx context.Context, item *storage.FeedbackItem) error { return nil }

func (m *mockSearchStore) Get(ctx context.Context, id string) (*storage.FeedbackItem, error) {
	return nil, storage.ErrNotFound
}

func (m *mockSearchStore) List(ctx context.Context, limit, offset int) ([]*storage.FeedbackItem, error) {
	return nil, nil
}

func (m *mockSearchStore) GetByIDs(ctx context.Context, ids []string) (map[string]*storage.FeedbackItem, error) {
	found := make(map[string]*storage.FeedbackItem)
	for _, id := range ids {
		if item, ok := m.items[id]; ok {
			found[id] = item
		}
	}
	return found, nil
}

func (m *mockSearchStore) SearchKeyword(ctx context.Context, query string, limit int) ([]*storage.FeedbackItem, error) {
	if m.keywordErr != nil {
		return nil, m.keywordErr
	}

	// case-insensitive substring scan, newest-first like the real store
	var matched []*storage.FeedbackItem
	lowered := strings.ToLower(query)
	for _, item := range m.items {
		if strings.Contains(strings.ToLower(item.RawText), lowered) {
			matched = append(matched, item)
		}
	}
	for i := 0; i < len(matched); i++ {
		for j := i + 1; j < len(matched); j++ {
			if matched[j].CreatedAt.After(matched[i].CreatedAt) {
				matched[i], matched[j] = matched[j], matched[i]
			}
		}
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *mockSearchStore) CompleteProcessing(ctx context.Context, id string, ann storage.Annotations, vectorID string) error {
	return nil
}

func (m *mockSearchStore) MarkFailed(ctx context.Context, id string) error { return nil }

func (m *mockSearchStore) ListMissingVectors(ctx context.Context, limit int) ([]*storage.FeedbackItem, error) {
	return nil, nil
}

func (m *mockSearchStore) SetVectorID(ctx context.Context, id, vectorID string) error { return nil }

func (m *mockSearchStore) Close() error { return nil }

func itemsFixture() map[string]*storage.FeedbackItem {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return map[string]*storage.FeedbackItem{
		"a": {ID: "a", RawText: "Login has been broken for 3 days", Status: storage.StatusCompleted, CreatedAt: base.Add(2 * time.Hour)},
		"b": {ID: "b", RawText: "Would be nice to export reports", Status: storage.StatusCompleted, CreatedAt: base.Add(time.Hour)},
		"c": {ID: "c", RawText: "Login page looks odd on mobile", Status: storage.StatusProcessing, CreatedAt: base},
	}
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	engine := NewEngine(&mockProvider{}, &mockIndex{}, &mockSearchStore{items: itemsFixture()})

	for _, query := range []string{"", "   ", "\t\n"} {
		if _, err := engine.Search(context.Background(), query); !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("Search(%q) error = %v, want ErrInvalidQuery", query, err)
		}
	}
}

func TestSearch_VectorMode(t *testing.T) {
	index := &mockIndex{matches: []vector.Match{
		{ID: "a", Similarity: 0.91},
		{ID: "b", Similarity: 0.42},
	}}
	engine := NewEngine(&mockProvider{}, index, &mockSearchStore{items: itemsFixture()})

	resp, err := engine.Search(context.Background(), "login problems")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if resp.Mode != ModeVector {
		t.Errorf("Expected vector mode, got %s", resp.Mode)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(resp.Results))
	}

	// nearest-neighbor order preserved, not re-sorted by score
	if resp.Results[0].Item.ID != "a" || resp.Results[1].Item.ID != "b" {
		t.Errorf("Result order not preserved: %s, %s", resp.Results[0].Item.ID, resp.Results[1].Item.ID)
	}
	if resp.Results[0].Relevance.Score != 91 {
		t.Errorf("Expected score 91, got %d", resp.Results[0].Relevance.Score)
	}
	if !strings.Contains(resp.Results[0].Relevance.Explanation, "semantic similarity") {
		t.Errorf("Vector explanation should mention semantic similarity: %q", resp.Results[0].Relevance.Explanation)
	}
}

func TestSearch_UnknownIDsDroppedSilently(t *testing.T) {
	index := &mockIndex{matches: []vector.Match{
		{ID: "a", Similarity: 0.9},
		{ID: "deleted", Similarity: 0.8},
	}}
	engine := NewEngine(&mockProvider{}, index, &mockSearchStore{items: itemsFixture()})

	resp, err := engine.Search(context.Background(), "login")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if resp.Mode != ModeVector {
		t.Errorf("Expected vector mode, got %s", resp.Mode)
	}
	if len(resp.Results) != 1 || resp.Results[0].Item.ID != "a" {
		t.Errorf("Expected only hydratable result 'a', got %d results", len(resp.Results))
	}
}

func TestSearch_FallbackOnIndexError(t *testing.T) {
	index := &mockIndex{queryErr: vector.ErrUnavailable}
	engine := NewEngine(&mockProvider{}, index, &mockSearchStore{items: itemsFixture()})

	resp, err := engine.Search(context.Background(), "login")
	if err != nil {
		t.Fatalf("Search should fall back, got error: %v", err)
	}

	if resp.Mode != ModeKeyword {
		t.Errorf("Expected keyword mode, got %s", resp.Mode)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("Expected 2 keyword results, got %d", len(resp.Results))
	}

	// keyword results come back newest-first
	if resp.Results[0].Item.ID != "a" || resp.Results[1].Item.ID != "c" {
		t.Errorf("Expected newest-first order a, c; got %s, %s", resp.Results[0].Item.ID, resp.Results[1].Item.ID)
	}
	if !strings.Contains(resp.Results[0].Relevance.Explanation, "keyword overlap") {
		t.Errorf("Keyword explanation should mention keyword overlap: %q", resp.Results[0].Relevance.Explanation)
	}
}

func TestSearch_FallbackOnEmbedError(t *testing.T) {
	provider := &mockProvider{embedErr: errors.New("provider down")}
	engine := NewEngine(provider, &mockIndex{}, &mockSearchStore{items: itemsFixture()})

	resp, err := engine.Search(context.Background(), "login")
	if err != nil {
		t.Fatalf("Search should fall back, got error: %v", err)
	}
	if resp.Mode != ModeKeyword {
		t.Errorf("Expected keyword mode, got %s", resp.Mode)
	}
}

func TestSearch_FallbackOnZeroCandidates(t *testing.T) {
	engine := NewEngine(&mockProvider{}, &mockIndex{}, &mockSearchStore{items: itemsFixture()})

	resp, err := engine.Search(context.Background(), "export")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if resp.Mode != ModeKeyword {
		t.Errorf("Expected keyword fallback on empty index, got %s", resp.Mode)
	}
	if len(resp.Results) != 1 || resp.Results[0].Item.ID != "b" {
		t.Errorf("Expected item 'b' from keyword scan, got %d results", len(resp.Results))
	}
}

func TestSearch_ProcessingItemsVisibleToKeywordMode(t *testing.T) {
	index := &mockIndex{queryErr: vector.ErrUnavailable}
	engine := NewEngine(&mockProvider{}, index, &mockSearchStore{items: itemsFixture()})

	resp, err := engine.Search(context.Background(), "mobile")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(resp.Results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(resp.Results))
	}
	if resp.Results[0].Item.Status != storage.StatusProcessing {
		t.Errorf("Mid-pipeline item should be keyword-eligible, got status %s", resp.Results[0].Item.Status)
	}
}

func TestSearch_BothModesFailing(t *testing.T) {
	index := &mockIndex{queryErr: vector.ErrUnavailable}
	store := &mockSearchStore{items: itemsFixture(), keywordErr: errors.New("db down")}
	engine := NewEngine(&mockProvider{}, index, store)

	_, err := engine.Search(context.Background(), "login")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable when both modes fail, got %v", err)
	}
}

func TestSearch_Diagnostics(t *testing.T) {
	index := &mockIndex{matches: []vector.Match{{ID: "a", Similarity: 0.9}}}
	engine := NewEngine(&mockProvider{}, index, &mockSearchStore{items: itemsFixture()})

	resp, err := engine.Search(context.Background(), "login")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	expectedSteps := []string{"validate query", "embed query", "query vector index", "hydrate matched items", "score results"}
	if len(resp.Diagnostics.Steps) != len(expectedSteps) {
		t.Fatalf("Diagnostics steps = %v, want %v", resp.Diagnostics.Steps, expectedSteps)
	}
	for i, step := range expectedSteps {
		if resp.Diagnostics.Steps[i] != step {
			t.Errorf("Step[%d] = %q, want %q", i, resp.Diagnostics.Steps[i], step)
		}
	}
	if resp.Diagnostics.Mode != ModeVector {
		t.Errorf("Diagnostics mode = %s, want vector", resp.Diagnostics.Mode)
	}
	if !strings.Contains(resp.Diagnostics.Summary, "1 result") {
		t.Errorf("Summary should mention result count: %q", resp.Diagnostics.Summary)
	}
}
