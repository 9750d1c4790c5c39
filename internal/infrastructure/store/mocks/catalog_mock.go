package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/example/plant-store/internal/domain/plant"
)

// MockCatalog is an in-memory plant catalog
type MockCatalog struct {
	mu     sync.RWMutex
	plants map[string]*plant.Plant

	ResolveCalls     []string
	ResolveManyCalls [][]string

	ResolveErr error
	SearchErr  error
}

// NewMockCatalog creates a catalog holding the given plants
func NewMockCatalog(plants ...*plant.Plant) *MockCatalog {
	m := &MockCatalog{plants: make(map[string]*plant.Plant)}
	for _, p := range plants {
		m.Put(p)
	}
	return m
}

func (m *MockCatalog) Put(p *plant.Plant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.plants[p.ID] = &cp
}

func (m *MockCatalog) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.plants, id)
}

func (m *MockCatalog) Resolve(ctx context.Context, id string) (*plant.Plant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ResolveCalls = append(m.ResolveCalls, id)
	if m.ResolveErr != nil {
		return nil, m.ResolveErr
	}
	p, ok := m.plants[id]
	if !ok {
		return nil, plant.ErrPlantNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockCatalog) ResolveMany(ctx context.Context, ids []string) (map[string]*plant.Plant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ResolveManyCalls = append(m.ResolveManyCalls, append([]string(nil), ids...))
	if m.ResolveErr != nil {
		return nil, m.ResolveErr
	}
	out := make(map[string]*plant.Plant, len(ids))
	for _, id := range ids {
		if p, ok := m.plants[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

// Search applies the same filters as the Mongo catalog over the in-memory set
func (m *MockCatalog) Search(ctx context.Context, params plant.SearchParams) ([]*plant.Plant, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.SearchErr != nil {
		return nil, 0, m.SearchErr
	}

	term := strings.ToLower(params.Search)
	matched := make([]*plant.Plant, 0, len(m.plants))
	for _, p := range m.plants {
		if params.OnlyAvailable && !p.IsAvailable {
			continue
		}
		if params.Category != "" && !hasCategory(p, params.Category) {
			continue
		}
		if term != "" && !matchesTerm(p, term) {
			continue
		}
		cp := *p
		matched = append(matched, &cp)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var less bool
		switch params.SortBy {
		case plant.SortByPrice:
			less = a.Price.LessThan(b.Price)
		case plant.SortByName:
			less = a.Name < b.Name
		case plant.SortByPopularity:
			less = a.Popularity < b.Popularity
		default:
			less = a.CreatedAt.Before(b.CreatedAt)
		}
		if params.Ascending {
			return less
		}
		return !less && !equalKey(a, b, params.SortBy)
	})

	total := int64(len(matched))
	start := params.Skip()
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if params.Limit > 0 && start+params.Limit < end {
		end = start + params.Limit
	}
	return matched[start:end], total, nil
}

func (m *MockCatalog) Categories(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	seen := make(map[string]struct{})
	for _, p := range m.plants {
		for _, c := range p.Categories {
			seen[string(c)] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func matchesTerm(p *plant.Plant, term string) bool {
	if strings.Contains(strings.ToLower(p.Name), term) ||
		strings.Contains(strings.ToLower(p.Description), term) ||
		strings.Contains(strings.ToLower(p.ScientificName), term) {
		return true
	}
	for _, c := range p.Categories {
		if strings.Contains(strings.ToLower(string(c)), term) {
			return true
		}
	}
	return false
}

func hasCategory(p *plant.Plant, category string) bool {
	for _, c := range p.Categories {
		if string(c) == category {
			return true
		}
	}
	return false
}

func equalKey(a, b *plant.Plant, sortBy string) bool {
	switch sortBy {
	case plant.SortByPrice:
		return a.Price.Equal(b.Price)
	case plant.SortByName:
		return a.Name == b.Name
	case plant.SortByPopularity:
		return a.Popularity == b.Popularity
	default:
		return a.CreatedAt.Equal(b.CreatedAt)
	}
}
