package app

import (
	"sort"
	"sync"

	"sheetflow/domain/core"
	"sheetflow/internal/errors"
	"sheetflow/ports"
)

// WorkspaceManager holds the live import workspaces
type WorkspaceManager struct {
	mu         sync.RWMutex
	workspaces map[string]*Workspace
	source     ports.SheetSource
	store      ports.DatasetStore
	pipeline   *Pipeline
}

// NewWorkspaceManager creates an empty manager
func NewWorkspaceManager(source ports.SheetSource, store ports.DatasetStore, pipeline *Pipeline) *WorkspaceManager {
	return &WorkspaceManager{
		workspaces: make(map[string]*Workspace),
		source:     source,
		store:      store,
		pipeline:   pipeline,
	}
}

// Create starts a new idle workspace
func (m *WorkspaceManager) Create() *Workspace {
	ws := NewWorkspace(core.NewID().String(), m.source, m.store, m.pipeline)
	m.mu.Lock()
	m.workspaces[ws.ID()] = ws
	m.mu.Unlock()
	return ws
}

// Get returns a workspace by id
func (m *WorkspaceManager) Get(id string) (*Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ws, ok := m.workspaces[id]
	if !ok {
		return nil, errors.NotFound("workspace " + id)
	}
	return ws, nil
}

// Delete drops a workspace
func (m *WorkspaceManager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workspaces[id]; !ok {
		return errors.NotFound("workspace " + id)
	}
	delete(m.workspaces, id)
	return nil
}

// List returns the ids of all workspaces, oldest first
func (m *WorkspaceManager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.workspaces))
	for id := range m.workspaces {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Source returns the sheet source workspaces read from
func (m *WorkspaceManager) Source() ports.SheetSource {
	return m.source
}
