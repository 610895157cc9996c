package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/maildeskhq/maildesk/pkg/models"
)

// MemoryStore keeps items in memory. It is the default backend for demos
// and tests; all reads and writes operate on deep copies so callers can
// never alias store-internal state.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*models.Item
}

// NewMemoryStore returns an empty in-memory item store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*models.Item),
	}
}

// Get returns an item by id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	return cloneItem(item), nil
}

// List returns items newest first.
func (s *MemoryStore) List(ctx context.Context, limit, offset int) ([]*models.Item, error) {
	s.mu.RLock()
	all := make([]*models.Item, 0, len(s.items))
	for _, item := range s.items {
		all = append(all, cloneItem(item))
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].ReceivedAt.Equal(all[j].ReceivedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].ReceivedAt.After(all[j].ReceivedAt)
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

// ListUnprocessed returns up to limit unprocessed items, oldest first.
func (s *MemoryStore) ListUnprocessed(ctx context.Context, limit int) ([]*models.Item, error) {
	s.mu.RLock()
	candidates := make([]*models.Item, 0, len(s.items))
	for _, item := range s.items {
		if item.AIProcessedAt == nil {
			candidates = append(candidates, cloneItem(item))
		}
	}
	s.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].ReceivedAt.Equal(candidates[j].ReceivedAt) {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].ReceivedAt.Before(candidates[j].ReceivedAt)
	})

	if limit > 0 && limit < len(candidates) {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// Upsert inserts or replaces an item.
func (s *MemoryStore) Upsert(ctx context.Context, item *models.Item) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = cloneItem(item)
	return nil
}

// SetProcessing flips the transient in-flight marker.
func (s *MemoryStore) SetProcessing(ctx context.Context, id string, processing bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.items[id]; ok {
		item.AIProcessing = processing
	}
	return nil
}

// UpdateAI persists AI-derived fields and stamps the processed time.
func (s *MemoryStore) UpdateAI(ctx context.Context, item *models.Item) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.items[item.ID]
	if !ok {
		return nil
	}
	now := time.Now()
	stored.AIProcessing = false
	stored.AIProcessedAt = &now
	stored.Summary = item.Summary
	stored.Tags = append([]string(nil), item.Tags...)
	stored.Facts = append([]models.Fact(nil), item.Facts...)
	stored.SuggestedReply = item.SuggestedReply
	stored.SuggestedSubject = item.SuggestedSubject
	stored.CustomerPhone = item.CustomerPhone
	return nil
}

// ResetAI clears the AI-derived fields of one item.
func (s *MemoryStore) ResetAI(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.items[id]; ok {
		item.ResetAI()
	}
	return nil
}

// ResetAllAI clears the AI-derived fields of every processed item.
func (s *MemoryStore) ResetAllAI(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var reset int64
	for _, item := range s.items {
		if item.AIProcessedAt != nil || item.AIProcessing {
			item.ResetAI()
			reset++
		}
	}
	return reset, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

func cloneItem(item *models.Item) *models.Item {
	if item == nil {
		return nil
	}
	clone := *item
	clone.Attachments = append([]models.Attachment(nil), item.Attachments...)
	clone.Tags = append([]string(nil), item.Tags...)
	clone.Facts = append([]models.Fact(nil), item.Facts...)
	if item.AIProcessedAt != nil {
		at := *item.AIProcessedAt
		clone.AIProcessedAt = &at
	}
	return &clone
}
