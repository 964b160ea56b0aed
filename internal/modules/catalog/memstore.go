// README: In-memory catalog repository with the schema's unique keys.
package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"workshop/internal/types"
)

type MemStore struct {
	mu        sync.Mutex
	seq       types.ID
	analyses  map[types.ID]AnalysisTemplate
	items     map[types.ID]EstimationItem
	templates map[types.ID]WhatsappTemplate
}

func NewMemStore() *MemStore {
	return &MemStore{
		analyses:  make(map[types.ID]AnalysisTemplate),
		items:     make(map[types.ID]EstimationItem),
		templates: make(map[types.ID]WhatsappTemplate),
	}
}

func (m *MemStore) stamp() (types.ID, time.Time) {
	m.seq++
	return m.seq, time.Now()
}

func (m *MemStore) CreateAnalysisTemplate(_ context.Context, t *AnalysisTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.analyses {
		if cur.Name == t.Name {
			return types.Conflict("analysis_template", "name")
		}
	}
	var now time.Time
	t.ID, now = m.stamp()
	t.CreatedAt, t.UpdatedAt = now, now
	m.analyses[t.ID] = *t
	return nil
}

func (m *MemStore) GetAnalysisTemplate(_ context.Context, id types.ID) (*AnalysisTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.analyses[id]
	if !ok {
		return nil, types.NotFound("analysis_template", id)
	}
	t.ChecklistItems = append([]string(nil), t.ChecklistItems...)
	return &t, nil
}

func (m *MemStore) ListAnalysisTemplates(_ context.Context, includeInactive bool) ([]*AnalysisTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*AnalysisTemplate
	for _, t := range m.analyses {
		if includeInactive || t.IsActive {
			t := t
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *MemStore) UpdateAnalysisTemplate(_ context.Context, t *AnalysisTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.analyses[t.ID]; !ok {
		return types.NotFound("analysis_template", t.ID)
	}
	for id, cur := range m.analyses {
		if id != t.ID && cur.Name == t.Name {
			return types.Conflict("analysis_template", "name")
		}
	}
	t.UpdatedAt = time.Now()
	m.analyses[t.ID] = *t
	return nil
}

func (m *MemStore) CreateEstimationItem(_ context.Context, e *EstimationItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.items {
		if cur.ServiceType == e.ServiceType && cur.Name == e.Name {
			return types.Conflict("estimation_item", "name")
		}
	}
	var now time.Time
	e.ID, now = m.stamp()
	e.CreatedAt, e.UpdatedAt = now, now
	m.items[e.ID] = *e
	return nil
}

func (m *MemStore) GetEstimationItem(_ context.Context, id types.ID) (*EstimationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[id]
	if !ok {
		return nil, types.NotFound("estimation_item", id)
	}
	return &e, nil
}

func (m *MemStore) ListEstimationItems(_ context.Context, serviceType string, includeInactive bool) ([]*EstimationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*EstimationItem
	for _, e := range m.items {
		if (serviceType == "" || e.ServiceType == serviceType) && (includeInactive || e.IsActive) {
			e := e
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ServiceType != out[j].ServiceType {
			return out[i].ServiceType < out[j].ServiceType
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *MemStore) UpdateEstimationItem(_ context.Context, e *EstimationItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[e.ID]; !ok {
		return types.NotFound("estimation_item", e.ID)
	}
	for id, cur := range m.items {
		if id != e.ID && cur.ServiceType == e.ServiceType && cur.Name == e.Name {
			return types.Conflict("estimation_item", "name")
		}
	}
	e.UpdatedAt = time.Now()
	m.items[e.ID] = *e
	return nil
}

func (m *MemStore) CreateWhatsappTemplate(_ context.Context, w *WhatsappTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.templates {
		if cur.Name == w.Name {
			return types.Conflict("whatsapp_template", "name")
		}
	}
	var now time.Time
	w.ID, now = m.stamp()
	w.CreatedAt, w.UpdatedAt = now, now
	m.templates[w.ID] = *w
	return nil
}

func (m *MemStore) GetWhatsappTemplate(_ context.Context, id types.ID) (*WhatsappTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.templates[id]
	if !ok {
		return nil, types.NotFound("whatsapp_template", id)
	}
	return &w, nil
}

func (m *MemStore) ListWhatsappTemplates(_ context.Context, includeInactive bool) ([]*WhatsappTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*WhatsappTemplate
	for _, w := range m.templates {
		if includeInactive || w.IsActive {
			w := w
			out = append(out, &w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EventKind != out[j].EventKind {
			return out[i].EventKind < out[j].EventKind
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *MemStore) UpdateWhatsappTemplate(_ context.Context, w *WhatsappTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[w.ID]; !ok {
		return types.NotFound("whatsapp_template", w.ID)
	}
	for id, cur := range m.templates {
		if id != w.ID && cur.Name == w.Name {
			return types.Conflict("whatsapp_template", "name")
		}
	}
	w.UpdatedAt = time.Now()
	m.templates[w.ID] = *w
	return nil
}

func (m *MemStore) ActiveWhatsappTemplate(_ context.Context, kind string) (*WhatsappTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *WhatsappTemplate
	for _, w := range m.templates {
		if w.EventKind != kind || !w.IsActive {
			continue
		}
		if best == nil || w.ID > best.ID {
			w := w
			best = &w
		}
	}
	if best == nil {
		return nil, &types.NotFoundError{Entity: "whatsapp_template"}
	}
	return best, nil
}
