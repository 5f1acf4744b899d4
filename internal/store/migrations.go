// This file implements the versioned schema that backs every artifact kind,
// the vector index, interaction traces, and the supporting lookup tables.
package store

import (
	"database/sql"
	"fmt"

	"memoryd/internal/logging"
)

// CurrentSchemaVersion tracks the highest migration number applied by this
// build. Bump it whenever a migration is appended below.
const CurrentSchemaVersion = 1

var baseTables = []string{
	`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	// --- Guideline envelope ---
	`CREATE TABLE IF NOT EXISTS guidelines (
		id TEXT PRIMARY KEY,
		scope_type TEXT NOT NULL,
		scope_id TEXT,
		current_version_id TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		access_count INTEGER NOT NULL DEFAULT 0,
		last_accessed_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS guideline_versions (
		id TEXT PRIMARY KEY,
		entry_id TEXT NOT NULL REFERENCES guidelines(id),
		version INTEGER NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		red_flags TEXT DEFAULT '[]',
		content_hash TEXT NOT NULL,
		created_by TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	// --- Tool envelope ---
	`CREATE TABLE IF NOT EXISTS tools (
		id TEXT PRIMARY KEY,
		scope_type TEXT NOT NULL,
		scope_id TEXT,
		current_version_id TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		access_count INTEGER NOT NULL DEFAULT 0,
		last_accessed_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS tool_versions (
		id TEXT PRIMARY KEY,
		entry_id TEXT NOT NULL REFERENCES tools(id),
		version INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		input_schema TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		created_by TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	// --- Knowledge envelope ---
	`CREATE TABLE IF NOT EXISTS knowledge_entries (
		id TEXT PRIMARY KEY,
		scope_type TEXT NOT NULL,
		scope_id TEXT,
		current_version_id TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		access_count INTEGER NOT NULL DEFAULT 0,
		last_accessed_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS knowledge_versions (
		id TEXT PRIMARY KEY,
		entry_id TEXT NOT NULL REFERENCES knowledge_entries(id),
		version INTEGER NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		source TEXT DEFAULT '',
		content_hash TEXT NOT NULL,
		created_by TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	// --- Experience envelope (trajectory-bearing) ---
	`CREATE TABLE IF NOT EXISTS experiences (
		id TEXT PRIMARY KEY,
		scope_type TEXT NOT NULL,
		scope_id TEXT,
		current_version_id TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		access_count INTEGER NOT NULL DEFAULT 0,
		last_accessed_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS experience_versions (
		id TEXT PRIMARY KEY,
		entry_id TEXT NOT NULL REFERENCES experiences(id),
		version INTEGER NOT NULL,
		title TEXT NOT NULL,
		trajectory TEXT NOT NULL DEFAULT '[]',
		outcome TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 0,
		rationale TEXT DEFAULT '',
		content_hash TEXT NOT NULL,
		created_by TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS entry_tags (
		entry_type TEXT NOT NULL,
		entry_id TEXT NOT NULL,
		tag_name TEXT NOT NULL,
		PRIMARY KEY (entry_type, entry_id, tag_name)
	)`,

	// --- Vector storage (JSON fallback; vec_index virtual table added separately) ---
	`CREATE TABLE IF NOT EXISTS vectors (
		entry_type TEXT NOT NULL,
		entry_id TEXT NOT NULL,
		version_id TEXT NOT NULL,
		model TEXT NOT NULL,
		dim INTEGER NOT NULL,
		embedding TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (entry_type, entry_id)
	)`,

	// --- Raw interaction traces, independent of whether an Experience was created ---
	`CREATE TABLE IF NOT EXISTS interaction_traces (
		id TEXT PRIMARY KEY,
		session_id TEXT,
		agent_id TEXT NOT NULL,
		tool_name TEXT,
		action TEXT,
		observation TEXT,
		reasoning TEXT,
		quality_score REAL DEFAULT 0,
		learning_notes TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	// --- Classification feedback ---
	`CREATE TABLE IF NOT EXISTS pattern_confidence (
		pattern_id TEXT PRIMARY KEY,
		feedback_multiplier REAL NOT NULL DEFAULT 1.0,
		positive_count INTEGER NOT NULL DEFAULT 0,
		negative_count INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	// Per-correction feedback history backing the decaying multiplier: each
	// recordCorrection call appends a row here instead of only touching the
	// aggregate above, so feedback older than feedbackDecayDays can be
	// excluded when the multiplier is recomputed.
	`CREATE TABLE IF NOT EXISTS pattern_feedback_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pattern_id TEXT NOT NULL,
		positive INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pattern_feedback_log_pattern ON pattern_feedback_log(pattern_id, created_at)`,

	// --- Permissions ---
	`CREATE TABLE IF NOT EXISTS permissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agent_id TEXT NOT NULL,
		scope_type TEXT,
		scope_id TEXT,
		entry_type TEXT,
		entry_id TEXT,
		permission TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	// --- Audit log ---
	`CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts DATETIME DEFAULT CURRENT_TIMESTAMP,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		entry_type TEXT,
		entry_id TEXT,
		result TEXT NOT NULL,
		detail TEXT DEFAULT ''
	)`,

	// --- Librarian ---
	`CREATE TABLE IF NOT EXISTS librarian_jobs (
		id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		steps TEXT NOT NULL DEFAULT '[]',
		started_at DATETIME,
		completed_at DATETIME,
		error TEXT DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS librarian_recommendations (
		id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL REFERENCES librarian_jobs(id),
		kind TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'pending',
		payload TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		decided_at DATETIME
	)`,

	// --- Archival shadow tables ---
	`CREATE TABLE IF NOT EXISTS archived_entries (
		entry_type TEXT NOT NULL,
		entry_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		archived_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (entry_type, entry_id)
	)`,
}

var indexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_guideline_versions_entry ON guideline_versions(entry_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tool_versions_entry ON tool_versions(entry_id)`,
	`CREATE INDEX IF NOT EXISTS idx_knowledge_versions_entry ON knowledge_versions(entry_id)`,
	`CREATE INDEX IF NOT EXISTS idx_experience_versions_entry ON experience_versions(entry_id)`,
	`CREATE INDEX IF NOT EXISTS idx_guidelines_scope ON guidelines(scope_type, scope_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tools_scope ON tools(scope_type, scope_id)`,
	`CREATE INDEX IF NOT EXISTS idx_knowledge_scope ON knowledge_entries(scope_type, scope_id)`,
	`CREATE INDEX IF NOT EXISTS idx_experiences_scope ON experiences(scope_type, scope_id)`,
	`CREATE INDEX IF NOT EXISTS idx_entry_tags_tag ON entry_tags(tag_name)`,
	`CREATE INDEX IF NOT EXISTS idx_traces_agent ON interaction_traces(agent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_traces_session ON interaction_traces(session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_permissions_agent ON permissions(agent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_entry ON audit_log(entry_type, entry_id)`,
}

// ftsSetup creates the FTS5 virtual tables and sync triggers the duplicate
// service queries against. FTS5 is compiled into mattn/go-sqlite3, so this
// needs no extra dependency.
var ftsSetup = []string{
	`CREATE VIRTUAL TABLE IF NOT EXISTS guidelines_fts USING fts5(entry_id UNINDEXED, title, body)`,
	`CREATE VIRTUAL TABLE IF NOT EXISTS tools_fts USING fts5(entry_id UNINDEXED, name, description)`,
	`CREATE VIRTUAL TABLE IF NOT EXISTS knowledge_fts USING fts5(entry_id UNINDEXED, title, content)`,
	`CREATE VIRTUAL TABLE IF NOT EXISTS experiences_fts USING fts5(entry_id UNINDEXED, title, outcome)`,
}

// RunMigrations applies the base schema, indexes, and FTS5 setup. Index and
// FTS creation failures are logged and tolerated, matching the
// posture that a missing optional index should not prevent boot.
func RunMigrations(db *sql.DB) error {
	log := logging.Get(logging.CategoryStore)

	for _, stmt := range baseTables {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: create base table: %w", err)
		}
	}

	for _, stmt := range ftsSetup {
		if _, err := db.Exec(stmt); err != nil {
			log.Warn("fts5 setup statement failed (continuing): %v", err)
		}
	}

	for _, stmt := range indexStatements {
		if _, err := db.Exec(stmt); err != nil {
			log.Warn("index creation failed (continuing): %v", err)
		}
	}

	if _, err := db.Exec(
		`INSERT OR IGNORE INTO schema_migrations (version) VALUES (?)`, CurrentSchemaVersion,
	); err != nil {
		log.Warn("failed to record schema version: %v", err)
	}

	log.Info("migrations complete, schema version %d", CurrentSchemaVersion)
	return nil
}

func tableExists(db *sql.DB, name string) bool {
	var got string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&got)
	return err == nil
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
