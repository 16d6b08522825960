package contacts

import (
	"context"
	"strings"
	"sync"

	"github.com/hivecrm/journey/pkg/models"
)

// MemoryStore is an in-memory contact store for tests and local
// development. It implements both FactsProvider and TagWriter.
type MemoryStore struct {
	mu       sync.RWMutex
	contacts map[string]*models.ContactFacts
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{contacts: make(map[string]*models.ContactFacts)}
}

func (s *MemoryStore) key(accountID, contactID string) string {
	return accountID + "/" + contactID
}

// Put stores or replaces a contact's facts.
func (s *MemoryStore) Put(facts *models.ContactFacts) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.contacts[s.key(facts.AccountID, facts.ContactID)] = facts
}

func (s *MemoryStore) Facts(ctx context.Context, accountID, contactID string) (*models.ContactFacts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	facts, ok := s.contacts[s.key(accountID, contactID)]
	if !ok {
		return nil, ErrContactNotFound
	}

	clone := *facts
	clone.Fields = copyMap(facts.Fields)
	clone.Tags = append([]string(nil), facts.Tags...)
	clone.Stages = copyStringMap(facts.Stages)
	clone.Opened = append([]string(nil), facts.Opened...)
	clone.Clicked = append([]string(nil), facts.Clicked...)

	return &clone, nil
}

func (s *MemoryStore) AddTag(ctx context.Context, accountID, contactID, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	facts, ok := s.contacts[s.key(accountID, contactID)]
	if !ok {
		return ErrContactNotFound
	}

	for _, existing := range facts.Tags {
		if strings.EqualFold(existing, tag) {
			return nil
		}
	}

	facts.Tags = append(facts.Tags, tag)

	return nil
}

func (s *MemoryStore) RemoveTag(ctx context.Context, accountID, contactID, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	facts, ok := s.contacts[s.key(accountID, contactID)]
	if !ok {
		return ErrContactNotFound
	}

	kept := facts.Tags[:0]

	for _, existing := range facts.Tags {
		if !strings.EqualFold(existing, tag) {
			kept = append(kept, existing)
		}
	}

	facts.Tags = kept

	return nil
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}

func copyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}

	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}
