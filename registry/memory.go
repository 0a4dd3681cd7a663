package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/distill-go/distill/core"
)

// MemoryRegistry is an in-memory registry for corpora (testing and single-process use).
type MemoryRegistry struct {
	mu         sync.RWMutex
	corpora    map[string]map[string]*core.Corpus // id -> version -> corpus
	production map[string]string                  // id -> version
	stages     map[string]map[string]Stage        // id -> version -> stage
	tags       map[string][]string                // id:version -> tags
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		corpora:    make(map[string]map[string]*core.Corpus),
		production: make(map[string]string),
		stages:     make(map[string]map[string]Stage),
		tags:       make(map[string][]string),
	}
}

func (m *MemoryRegistry) key(id, version string) string {
	return id + ":" + version
}

// Store saves a corpus. Overwrites if id+version already exists.
func (m *MemoryRegistry) Store(ctx context.Context, corpus *core.Corpus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if corpus == nil {
		return fmt.Errorf("corpus is nil")
	}
	if corpus.ID == "" || corpus.Version == "" {
		return fmt.Errorf("corpus id and version are required")
	}
	if m.corpora[corpus.ID] == nil {
		m.corpora[corpus.ID] = make(map[string]*core.Corpus)
	}
	// Copy so caller cannot mutate stored corpus
	m.corpora[corpus.ID][corpus.Version] = corpus.Copy()
	if m.stages[corpus.ID] == nil {
		m.stages[corpus.ID] = make(map[string]Stage)
	}
	if _, ok := m.stages[corpus.ID][corpus.Version]; !ok {
		m.stages[corpus.ID][corpus.Version] = StageDev
	}
	return nil
}

// Get returns a corpus by id and version.
func (m *MemoryRegistry) Get(ctx context.Context, id, version string) (*core.Corpus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions, ok := m.corpora[id]
	if !ok {
		return nil, core.ErrCorpusNotFound
	}
	c, ok := versions[version]
	if !ok {
		return nil, core.ErrCorpusNotFound
	}
	return c.Copy(), nil
}

// GetProduction returns the corpus currently promoted to production for the id.
func (m *MemoryRegistry) GetProduction(ctx context.Context, id string) (*core.Corpus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	version, ok := m.production[id]
	if !ok {
		return nil, core.ErrCorpusNotFound
	}
	versions, ok := m.corpora[id]
	if !ok {
		return nil, core.ErrCorpusNotFound
	}
	c, ok := versions[version]
	if !ok {
		return nil, core.ErrCorpusNotFound
	}
	return c.Copy(), nil
}

// List returns corpora matching the filter.
func (m *MemoryRegistry) List(ctx context.Context, filter Filter) ([]*core.Corpus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*core.Corpus
	offset := filter.Offset
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	for id, versions := range m.corpora {
		if len(filter.IDs) > 0 && !contains(filter.IDs, id) {
			continue
		}
		for _, c := range versions {
			if filter.Stage != "" {
				st := m.stages[id]
				if st == nil || st[c.Version] != filter.Stage {
					continue
				}
			}
			if len(filter.Tags) > 0 {
				k := m.key(id, c.Version)
				if !hasAll(m.tags[k], filter.Tags) {
					continue
				}
			}
			if offset > 0 {
				offset--
				continue
			}
			out = append(out, c.Copy())
			if len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// ListVersions returns version info for an id.
func (m *MemoryRegistry) ListVersions(ctx context.Context, id string) ([]VersionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions, ok := m.corpora[id]
	if !ok {
		return nil, nil
	}
	var infos []VersionInfo
	for v, c := range versions {
		st := StageDev
		if s, ok := m.stages[id]; ok {
			st = s[v]
		}
		tags := m.tags[m.key(id, v)]
		infos = append(infos, VersionInfo{
			ID:        id,
			Version:   v,
			Stage:     st,
			Tags:      append([]string(nil), tags...),
			Pairs:     len(c.Source),
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		})
	}
	return infos, nil
}

// Promote sets the stage for a given id+version.
func (m *MemoryRegistry) Promote(ctx context.Context, id, version string, stage Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions, ok := m.corpora[id]
	if !ok {
		return core.ErrCorpusNotFound
	}
	if _, ok := versions[version]; !ok {
		return core.ErrCorpusNotFound
	}
	if m.stages[id] == nil {
		m.stages[id] = make(map[string]Stage)
	}
	m.stages[id][version] = stage
	if stage == StageProduction {
		m.production[id] = version
	}
	return nil
}

// Delete removes a corpus version.
func (m *MemoryRegistry) Delete(ctx context.Context, id, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions, ok := m.corpora[id]
	if !ok {
		return core.ErrCorpusNotFound
	}
	if _, ok := versions[version]; !ok {
		return core.ErrCorpusNotFound
	}
	delete(versions, version)
	if m.production[id] == version {
		delete(m.production, id)
	}
	if m.stages[id] != nil {
		delete(m.stages[id], version)
	}
	delete(m.tags, m.key(id, version))
	return nil
}

// Tag sets tags for a corpus version.
func (m *MemoryRegistry) Tag(ctx context.Context, id, version string, tags []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions, ok := m.corpora[id]
	if !ok {
		return core.ErrCorpusNotFound
	}
	if _, ok := versions[version]; !ok {
		return core.ErrCorpusNotFound
	}
	m.tags[m.key(id, version)] = append([]string(nil), tags...)
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

func hasAll(have, need []string) bool {
	for _, n := range need {
		found := false
		for _, h := range have {
			if h == n {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
