// Package context resolves the implicit (project, session, agentId) scope
// an MCP tool call runs under, from explicit parameters, environment
// variables, the working directory, and the active session for a project,
// in that precedence order.
package context

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

const defaultAgentEnvVar = "MEMORYD_AGENT_ID"

// ProjectLookup resolves a filesystem path to a known project ID, backed in
// production by a project repository keyed on working directory.
type ProjectLookup interface {
	ProjectIDForPath(ctx context.Context, path string) (projectID string, err error)
}

// SessionLookup resolves the currently active session for a project.
type SessionLookup interface {
	ActiveSessionForProject(ctx context.Context, projectID string) (sessionID string, ok bool, err error)
}

// Result is the outcome of a scope resolution.
type Result struct {
	ProjectID string
	Source    string // "explicit", "session", "path", "default"
	SessionID string
	Warning   string
}

// Resolver resolves agent/project scope with an explicit-parameter-bypassed
// TTL cache over path->project lookups.
type Resolver struct {
	defaultAgentID string
	cacheTTL       time.Duration
	projects       ProjectLookup
	sessions       SessionLookup

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	result    Result
	expiresAt time.Time
}

// New constructs a Resolver.
func New(defaultAgentID string, cacheTTL time.Duration, projects ProjectLookup, sessions SessionLookup) *Resolver {
	return &Resolver{
		defaultAgentID: defaultAgentID,
		cacheTTL:       cacheTTL,
		projects:       projects,
		sessions:       sessions,
		cache:          make(map[string]cacheEntry),
	}
}

// ResolveAgentID applies explicit param -> MEMORYD_AGENT_ID env -> the
// configured default, in that order.
func (r *Resolver) ResolveAgentID(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(defaultAgentEnvVar); env != "" {
		return env
	}
	return r.defaultAgentID
}

// ResolveProjectScope resolves a project/session scope for workingDir. An
// explicit scopeID bypasses both the cache and the path lookup; if it
// disagrees with the active session's project, a non-fatal Warning is
// attached rather than failing the resolution.
func (r *Resolver) ResolveProjectScope(ctx context.Context, workingDir string, explicitScopeID string) (Result, error) {
	if explicitScopeID != "" {
		result := Result{ProjectID: explicitScopeID, Source: "explicit"}
		if r.sessions != nil {
			if sessionID, ok, err := r.sessions.ActiveSessionForProject(ctx, explicitScopeID); err == nil && ok {
				result.SessionID = sessionID
			}
		}
		if r.projects != nil && workingDir != "" {
			if pathProjectID, err := r.projectForPath(ctx, workingDir); err == nil && pathProjectID != "" && pathProjectID != explicitScopeID {
				result.Warning = fmt.Sprintf("explicit scope %q disagrees with working directory's project %q", explicitScopeID, pathProjectID)
			}
		}
		return result, nil
	}

	if cached, ok := r.cached(workingDir); ok {
		return cached, nil
	}

	projectID, err := r.projectForPath(ctx, workingDir)
	if err != nil {
		return Result{}, err
	}

	result := Result{ProjectID: projectID, Source: "path"}
	if r.sessions != nil && projectID != "" {
		sessionID, ok, serr := r.sessions.ActiveSessionForProject(ctx, projectID)
		if serr == nil && ok {
			result.SessionID = sessionID
			result.Source = "session"
		}
	}

	r.store(workingDir, result)
	return result, nil
}

func (r *Resolver) projectForPath(ctx context.Context, workingDir string) (string, error) {
	if r.projects == nil {
		return "", nil
	}
	projectID, err := r.projects.ProjectIDForPath(ctx, workingDir)
	if err != nil {
		return "", err
	}
	return projectID, nil
}

func (r *Resolver) cached(key string) (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.cache[key]
	if !ok {
		return Result{}, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(r.cache, key)
		return Result{}, false
	}
	return entry.result, true
}

func (r *Resolver) store(key string, result Result) {
	if r.cacheTTL <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[key] = cacheEntry{result: result, expiresAt: time.Now().Add(r.cacheTTL)}
}
