package catalog

import (
	"sort"
	"strings"
	"sync"
)

// Store is a concurrency-safe, replaceable model catalog.
type Store struct {
	mu     sync.RWMutex
	order  []string
	models map[string]Model
}

// NewStore constructs a Store seeded with models.
func NewStore(models []Model) *Store {
	s := &Store{}
	s.Replace(models)
	return s
}

// Replace swaps the whole catalog. Entries with an empty id are skipped; the
// first entry wins on duplicate ids.
func (s *Store) Replace(models []Model) {
	if s == nil {
		return
	}
	next := make(map[string]Model, len(models))
	order := make([]string, 0, len(models))
	for _, m := range models {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			continue
		}
		if _, exists := next[id]; exists {
			continue
		}
		cloned := m.clone()
		cloned.ID = id
		next[id] = cloned
		order = append(order, id)
	}

	s.mu.Lock()
	s.models = next
	s.order = order
	s.mu.Unlock()
}

// Lookup returns a copy of the model with the exact id.
func (s *Store) Lookup(id string) (Model, bool) {
	if s == nil {
		return Model{}, false
	}
	s.mu.RLock()
	m, ok := s.models[strings.TrimSpace(id)]
	s.mu.RUnlock()
	if !ok {
		return Model{}, false
	}
	return m.clone(), true
}

// Len returns the number of models.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.models)
}

// Listing is the public model list grouped the way clients render it.
type Listing struct {
	Premier    []Model `json:"premier"`
	OpenSource []Model `json:"openSource"`
}

// List returns all models in catalog order, grouped by listing.
func (s *Store) List() Listing {
	out := Listing{Premier: []Model{}, OpenSource: []Model{}}
	if s == nil {
		return out
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		m := s.models[id].clone()
		if listingOf(m) == TierPremier {
			out.Premier = append(out.Premier, m)
			continue
		}
		out.OpenSource = append(out.OpenSource, m)
	}
	return out
}

// IDs returns the sorted model ids.
func (s *Store) IDs() []string {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	ids := make([]string, 0, len(s.models))
	for id := range s.models {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func listingOf(m Model) Tier {
	if m.Listing != TierUnclassified {
		return m.Listing
	}
	if m.Tier == TierPremier {
		return TierPremier
	}
	return TierOpenSource
}
