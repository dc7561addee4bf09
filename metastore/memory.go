package metastore

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/hupe1980/ccvec/model"
)

// ErrEmptyID is returned when storing metadata without an id.
var ErrEmptyID = errors.New("metastore: empty record id")

// Memory is an in-memory metadata store.
type Memory struct {
	mu   sync.RWMutex
	data map[model.RecordID]model.Metadata
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[model.RecordID]model.Metadata)}
}

// Get returns the metadata stored for id.
func (m *Memory) Get(_ context.Context, id model.RecordID) (model.Metadata, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	md, ok := m.data[id]
	if !ok {
		return model.Metadata{}, false, nil
	}
	md.Fields = maps.Clone(md.Fields)
	return md, true, nil
}

// Put inserts or replaces the metadata of md.ID.
func (m *Memory) Put(_ context.Context, md model.Metadata) error {
	if md.ID == "" {
		return ErrEmptyID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	md.Fields = maps.Clone(md.Fields)
	m.data[md.ID] = md
	return nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
