// Package store owns the single SQLite connection memoryd uses for every
// artifact kind, the vector index, interaction traces, and the audit log. No
// other package opens the database file directly.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"memoryd/internal/logging"
)

// Adapter is the storage engine's single entry point. It owns the *sql.DB,
// the prepared-statement cache, and the cache-invalidation event bus.
// Repositories hold a borrowed reference to an Adapter and never close it.
type Adapter struct {
	db         *sql.DB
	path       string
	mu         sync.RWMutex
	vectorExt  bool
	requireVec bool

	stmtMu sync.Mutex
	stmts  map[string]*sql.Stmt

	bus *EventBus
}

// Options configures adapter construction.
type Options struct {
	Path          string
	BusyTimeoutMS int
	RequireVec    bool
}

// Open creates the database file's directory if needed, opens the SQLite
// connection with the pragmas memoryd requires, runs migrations, and probes
// for the sqlite-vec extension.
func Open(opts Options) (*Adapter, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("store: database path required")
	}
	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("store: create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busyTimeout := opts.BusyTimeoutMS
	if busyTimeout <= 0 {
		busyTimeout = 5000
	}
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: apply pragma %q: %w", p, err)
		}
	}

	a := &Adapter{
		db:         db,
		path:       opts.Path,
		requireVec: opts.RequireVec,
		stmts:      make(map[string]*sql.Stmt),
		bus:        NewEventBus(),
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: run migrations: %w", err)
	}

	a.vectorExt = a.detectVecExtension()
	if a.requireVec && !a.vectorExt {
		db.Close()
		return nil, fmt.Errorf("store: sqlite-vec extension required but unavailable")
	}

	logging.Get(logging.CategoryStore).Info("opened database %s (vec=%v)", opts.Path, a.vectorExt)
	return a, nil
}

// DB returns the underlying connection for packages within internal/store
// that need raw access (vector store, duplicate service). Never exported
// outside this module's store package.
func (a *Adapter) DB() *sql.DB { return a.db }

// Bus returns the cache-invalidation event bus.
func (a *Adapter) Bus() *EventBus { return a.bus }

// HasVectorExtension reports whether ANN search via sqlite-vec is available.
func (a *Adapter) HasVectorExtension() bool { return a.vectorExt }

// Close releases the database handle. Safe to call once.
func (a *Adapter) Close() error {
	a.stmtMu.Lock()
	for _, stmt := range a.stmts {
		stmt.Close()
	}
	a.stmts = make(map[string]*sql.Stmt)
	a.stmtMu.Unlock()
	return a.db.Close()
}

// prepared returns a cached prepared statement for query, compiling it on
// first use. Call InvalidateStatementCache after any DDL change.
func (a *Adapter) prepared(ctx context.Context, query string) (*sql.Stmt, error) {
	a.stmtMu.Lock()
	defer a.stmtMu.Unlock()
	if stmt, ok := a.stmts[query]; ok {
		return stmt, nil
	}
	stmt, err := a.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	a.stmts[query] = stmt
	return stmt, nil
}

// InvalidateStatementCache drops every cached prepared statement. Must be
// called after any migration that alters table shape.
func (a *Adapter) InvalidateStatementCache() {
	a.stmtMu.Lock()
	defer a.stmtMu.Unlock()
	for _, stmt := range a.stmts {
		stmt.Close()
	}
	a.stmts = make(map[string]*sql.Stmt)
}

func (a *Adapter) detectVecExtension() bool {
	_, err := a.db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS vec_probe USING vec0(embedding float[4])")
	if err != nil {
		return false
	}
	a.db.Exec("DROP TABLE IF EXISTS vec_probe")
	return true
}

// Stats reports row counts for every table memoryd maintains, tolerating
// tables that do not exist yet (e.g. before the first migration run).
func (a *Adapter) Stats() map[string]int {
	tables := []string{
		"guidelines", "tools", "knowledge_entries", "experiences",
		"guideline_versions", "tool_versions", "knowledge_versions", "experience_versions",
		"vectors", "interaction_traces", "pattern_confidence", "pattern_feedback_log",
		"permissions", "audit_log", "librarian_jobs", "librarian_recommendations",
	}
	out := make(map[string]int, len(tables))
	for _, t := range tables {
		var n int
		row := a.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", t))
		if err := row.Scan(&n); err == nil {
			out[t] = n
		}
	}
	return out
}
