// Package permissions resolves whether an agent may perform an operation
// against a scoped resource, using the most specific permission row that
// applies and denying by default when nothing matches.
package permissions

import (
	"context"
	"fmt"
)

// Row is one granted permission: an agent may exercise Permission against
// resources matching the (possibly empty) ScopeType/ScopeID/EntryType/EntryID
// fields it carries. An empty field acts as a wildcard at that level.
type Row struct {
	AgentID    string
	ScopeType  string
	ScopeID    string
	EntryType  string
	EntryID    string
	Permission string
}

// Resource identifies what a Check is being asked about.
type Resource struct {
	ScopeType string
	ScopeID   string
	EntryType string
	EntryID   string
}

// DeniedError reports that no permission row authorized the operation.
type DeniedError struct {
	AgentID    string
	Resource   Resource
	Permission string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("permissions: agent %q denied %q on %+v", e.AgentID, e.Permission, e.Resource)
}

// Store loads every permission row granted to an agent, backed in production
// by a SQLite table keyed on (agentId, scopeType, scopeId, entryType,
// entryId, permission).
type Store interface {
	RowsForAgent(ctx context.Context, agentID string) ([]Row, error)
}

// Checker resolves permission checks against a Store.
type Checker struct {
	store Store
}

// New builds a Checker.
func New(store Store) *Checker {
	return &Checker{store: store}
}

// candidateKeys returns the four specificity levels to probe, from the most
// specific (exact entry) to the least (wildcard):
// exact entry > entry-type-within-scope > scope-only > wildcard.
func candidateKeys(r Resource) []rowKey {
	return []rowKey{
		{scopeType: r.ScopeType, scopeID: r.ScopeID, entryType: r.EntryType, entryID: r.EntryID},
		{scopeType: r.ScopeType, scopeID: r.ScopeID, entryType: r.EntryType},
		{scopeType: r.ScopeType, scopeID: r.ScopeID},
		{},
	}
}

type rowKey struct {
	scopeType string
	scopeID   string
	entryType string
	entryID   string
}

func rowToKey(row Row) rowKey {
	return rowKey{scopeType: row.ScopeType, scopeID: row.ScopeID, entryType: row.EntryType, entryID: row.EntryID}
}

// Check resolves whether agentID may exercise permission against resource.
func (c *Checker) Check(ctx context.Context, agentID string, resource Resource, permission string) error {
	rows, err := c.store.RowsForAgent(ctx, agentID)
	if err != nil {
		return fmt.Errorf("permissions: load rows for %q: %w", agentID, err)
	}
	if allowed(rows, resource, permission) {
		return nil
	}
	return &DeniedError{AgentID: agentID, Resource: resource, Permission: permission}
}

func allowed(rows []Row, resource Resource, permission string) bool {
	index := make(map[rowKey]bool, len(rows))
	for _, row := range rows {
		if row.Permission != permission {
			continue
		}
		index[rowToKey(row)] = true
	}
	for _, key := range candidateKeys(resource) {
		if index[key] {
			return true
		}
	}
	return false
}

// CheckBatch resolves permission for every resource in one call, loading the
// agent's rows only once regardless of how many resources are checked.
func (c *Checker) CheckBatch(ctx context.Context, agentID string, resources []Resource, permission string) (map[int]error, error) {
	rows, err := c.store.RowsForAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("permissions: load rows for %q: %w", agentID, err)
	}

	results := make(map[int]error, len(resources))
	for i, resource := range resources {
		if !allowed(rows, resource, permission) {
			results[i] = &DeniedError{AgentID: agentID, Resource: resource, Permission: permission}
		}
	}
	return results, nil
}
