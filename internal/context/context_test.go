package context

import (
	"context"
	"os"
	"testing"
	"time"
)

type fakeProjects struct {
	byPath map[string]string
	calls  int
}

func (f *fakeProjects) ProjectIDForPath(ctx context.Context, path string) (string, error) {
	f.calls++
	return f.byPath[path], nil
}

type fakeSessions struct {
	byProject map[string]string
}

func (f *fakeSessions) ActiveSessionForProject(ctx context.Context, projectID string) (string, bool, error) {
	s, ok := f.byProject[projectID]
	return s, ok, nil
}

func TestResolveAgentIDPrefersExplicitParam(t *testing.T) {
	r := New("default-agent", time.Minute, nil, nil)
	if got := r.ResolveAgentID("explicit-agent"); got != "explicit-agent" {
		t.Fatalf("ResolveAgentID() = %q, want explicit value", got)
	}
}

func TestResolveAgentIDFallsBackToEnvThenDefault(t *testing.T) {
	r := New("default-agent", time.Minute, nil, nil)

	os.Setenv("MEMORYD_AGENT_ID", "env-agent")
	defer os.Unsetenv("MEMORYD_AGENT_ID")

	if got := r.ResolveAgentID(""); got != "env-agent" {
		t.Fatalf("ResolveAgentID() = %q, want env value", got)
	}

	os.Unsetenv("MEMORYD_AGENT_ID")
	if got := r.ResolveAgentID(""); got != "default-agent" {
		t.Fatalf("ResolveAgentID() = %q, want configured default", got)
	}
}

func TestResolveProjectScopeExplicitBypassesLookup(t *testing.T) {
	projects := &fakeProjects{byPath: map[string]string{}}
	sessions := &fakeSessions{byProject: map[string]string{"proj-1": "sess-1"}}
	r := New("", time.Minute, projects, sessions)

	result, err := r.ResolveProjectScope(context.Background(), "/some/path", "proj-1")
	if err != nil {
		t.Fatalf("ResolveProjectScope() error = %v", err)
	}
	if result.ProjectID != "proj-1" || result.Source != "explicit" {
		t.Fatalf("result = %+v, want explicit proj-1", result)
	}
	if result.SessionID != "sess-1" {
		t.Fatalf("expected explicit scope to still attach the active session, got %+v", result)
	}
	if result.Warning != "" {
		t.Fatalf("expected no warning when the path lookup finds nothing, got %q", result.Warning)
	}
}

func TestResolveProjectScopeExplicitWarnsOnDisagreement(t *testing.T) {
	projects := &fakeProjects{byPath: map[string]string{"/some/path": "proj-other"}}
	r := New("", time.Minute, projects, nil)

	result, err := r.ResolveProjectScope(context.Background(), "/some/path", "proj-1")
	if err != nil {
		t.Fatalf("ResolveProjectScope() error = %v", err)
	}
	if result.ProjectID != "proj-1" || result.Source != "explicit" {
		t.Fatalf("result = %+v, want explicit proj-1", result)
	}
	if result.Warning == "" {
		t.Fatalf("expected a warning when the explicit scope disagrees with the path-resolved project")
	}
}

func TestResolveProjectScopeResolvesViaPathAndSession(t *testing.T) {
	projects := &fakeProjects{byPath: map[string]string{"/work/repo": "proj-2"}}
	sessions := &fakeSessions{byProject: map[string]string{"proj-2": "sess-2"}}
	r := New("", time.Minute, projects, sessions)

	result, err := r.ResolveProjectScope(context.Background(), "/work/repo", "")
	if err != nil {
		t.Fatalf("ResolveProjectScope() error = %v", err)
	}
	if result.ProjectID != "proj-2" || result.SessionID != "sess-2" || result.Source != "session" {
		t.Fatalf("result = %+v, want proj-2/sess-2 via session", result)
	}
}

func TestResolveProjectScopeCachesPathLookup(t *testing.T) {
	projects := &fakeProjects{byPath: map[string]string{"/work/repo": "proj-3"}}
	r := New("", time.Minute, projects, nil)

	if _, err := r.ResolveProjectScope(context.Background(), "/work/repo", ""); err != nil {
		t.Fatalf("ResolveProjectScope() error = %v", err)
	}
	if _, err := r.ResolveProjectScope(context.Background(), "/work/repo", ""); err != nil {
		t.Fatalf("ResolveProjectScope() error = %v", err)
	}

	if projects.calls != 1 {
		t.Fatalf("expected second call to hit the TTL cache, got %d lookups", projects.calls)
	}
}
