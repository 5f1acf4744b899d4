package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ScopeType is the closed set of levels artifacts can be scoped to.
type ScopeType string

const (
	ScopeGlobal  ScopeType = "global"
	ScopeOrg     ScopeType = "org"
	ScopeProject ScopeType = "project"
	ScopeAgent   ScopeType = "agent"
	ScopeSession ScopeType = "session"
)

// scopeRank orders scopes from broadest to narrowest, used when walking the
// scope chain to resolve the nearest applicable artifact.
var scopeRank = map[ScopeType]int{
	ScopeGlobal:  0,
	ScopeOrg:     1,
	ScopeProject: 2,
	ScopeAgent:   3,
	ScopeSession: 4,
}

// Scope pairs a scope type with its (possibly empty, for global) identifier.
type Scope struct {
	Type ScopeType
	ID   string
}

// EnvelopeMeta is the shared, kind-independent portion of every artifact.
type EnvelopeMeta struct {
	ID               string
	Scope            Scope
	CurrentVersionID string
	IsActive         bool
	AccessCount      int64
	LastAccessedAt   *time.Time
	CreatedAt        time.Time
}

// Envelope couples EnvelopeMeta with the kind-specific payload carried by its
// current version.
type Envelope[P any] struct {
	EnvelopeMeta
	Version int
	Payload P
}

// versionSpec describes the table pair and column layout a kind's envelope
// operations run against. Each repository (guideline, tool, knowledge,
// experience) supplies one of these plus payload marshal/unmarshal funcs.
type versionSpec[P any] struct {
	EntryTable   string
	VersionTable string
	EntryType    string
	Marshal      func(p P) (columns []string, values []interface{})
	ContentHash  func(p P) string

	// selectColumns lists the version-table columns (excluding id/entry_id/
	// version) to read back when loading a version; scanRowInto reads a row
	// produced by that select list plus a leading "version" column.
	selectColumns func() []string
	scanRowInto   func(row *sql.Row, version *int) (P, error)
}

// envelopeStore implements the shared envelope CRUD once, generically, so
// GuidelineRepo/ToolRepo/KnowledgeRepo/ExperienceRepo each add only their own
// kind-specific extras on top of it.
type envelopeStore[P any] struct {
	adapter *Adapter
	spec    versionSpec[P]
}

func newEnvelopeStore[P any](adapter *Adapter, spec versionSpec[P]) *envelopeStore[P] {
	return &envelopeStore[P]{adapter: adapter, spec: spec}
}

func hashPayload(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Create inserts a new artifact with its first version, inside a single
// transaction, and publishes a cache-invalidation event on success.
func (s *envelopeStore[P]) Create(ctx context.Context, scope Scope, payload P, createdBy string) (*Envelope[P], error) {
	entryID := uuid.NewString()
	versionID := uuid.NewString()
	now := time.Now().UTC()

	_, err := s.adapter.Transaction(ctx, func(ctx context.Context, tx *Tx) (interface{}, error) {
		if _, err := tx.Exec(ctx,
			fmt.Sprintf(`INSERT INTO %s (id, scope_type, scope_id, current_version_id, is_active, access_count, created_at)
				VALUES (?, ?, ?, ?, 1, 0, ?)`, s.spec.EntryTable),
			entryID, string(scope.Type), nullableScopeID(scope), versionID, now,
		); err != nil {
			return nil, fmt.Errorf("store: insert %s: %w", s.spec.EntryType, err)
		}

		if err := s.insertVersion(ctx, tx, entryID, versionID, 1, payload, createdBy, now); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	s.adapter.Bus().Publish(InvalidationEvent{EntryType: s.spec.EntryType, EntryID: entryID, Reason: "created"})

	return &Envelope[P]{
		EnvelopeMeta: EnvelopeMeta{
			ID: entryID, Scope: scope, CurrentVersionID: versionID,
			IsActive: true, CreatedAt: now,
		},
		Version: 1,
		Payload: payload,
	}, nil
}

func (s *envelopeStore[P]) insertVersion(ctx context.Context, tx *Tx, entryID, versionID string, version int, payload P, createdBy string, now time.Time) error {
	cols, vals := s.spec.Marshal(payload)
	hash := s.spec.ContentHash(payload)

	allCols := append([]string{"id", "entry_id", "version"}, cols...)
	allCols = append(allCols, "content_hash", "created_by", "created_at")
	placeholders := make([]string, len(allCols))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	allVals := append([]interface{}{versionID, entryID, version}, vals...)
	allVals = append(allVals, hash, createdBy, now)

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.spec.VersionTable, joinCols(allCols), joinPlaceholders(placeholders))
	if _, err := tx.Exec(ctx, query, allVals...); err != nil {
		return fmt.Errorf("store: insert %s version: %w", s.spec.EntryType, err)
	}
	return nil
}

// Update appends a new version and swaps the entry's head pointer to it,
// inside one transaction — the prior version row is never modified, keeping
// the version chain immutable.
func (s *envelopeStore[P]) Update(ctx context.Context, entryID string, payload P, updatedBy string) (*Envelope[P], error) {
	now := time.Now().UTC()
	versionID := uuid.NewString()

	result, err := s.adapter.Transaction(ctx, func(ctx context.Context, tx *Tx) (interface{}, error) {
		var currentVersion int
		row := tx.QueryRow(ctx,
			fmt.Sprintf(`SELECT COALESCE(MAX(version), 0) FROM %s WHERE entry_id = ?`, s.spec.VersionTable), entryID)
		if err := row.Scan(&currentVersion); err != nil {
			return nil, fmt.Errorf("store: read current version: %w", err)
		}
		if currentVersion == 0 {
			return nil, sql.ErrNoRows
		}
		nextVersion := currentVersion + 1

		if err := s.insertVersion(ctx, tx, entryID, versionID, nextVersion, payload, updatedBy, now); err != nil {
			return nil, err
		}

		res, err := tx.Exec(ctx,
			fmt.Sprintf(`UPDATE %s SET current_version_id = ? WHERE id = ?`, s.spec.EntryTable),
			versionID, entryID)
		if err != nil {
			return nil, fmt.Errorf("store: update head pointer: %w", err)
		}
		affected, _ := res.RowsAffected()
		if affected == 0 {
			return nil, sql.ErrNoRows
		}
		return nextVersion, nil
	})
	if err != nil {
		return nil, err
	}

	s.adapter.Bus().Publish(InvalidationEvent{EntryType: s.spec.EntryType, EntryID: entryID, Reason: "updated"})

	env, getErr := s.GetByID(ctx, entryID)
	if getErr != nil {
		return nil, getErr
	}
	_ = result
	return env, nil
}

// GetByID fetches an entry and its current version payload, bumping the
// access counter through the buffered channel a caller registered via
// RecordAccess (never inline, so reads never block on a write).
func (s *envelopeStore[P]) GetByID(ctx context.Context, entryID string) (*Envelope[P], error) {
	row := s.adapter.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, scope_type, scope_id, current_version_id, is_active, access_count, last_accessed_at, created_at
			FROM %s WHERE id = ?`, s.spec.EntryTable), entryID)

	meta, err := scanMeta(row)
	if err != nil {
		return nil, err
	}

	payload, version, err := s.loadVersion(ctx, meta.CurrentVersionID)
	if err != nil {
		return nil, err
	}

	return &Envelope[P]{EnvelopeMeta: *meta, Version: version, Payload: payload}, nil
}

func (s *envelopeStore[P]) loadVersion(ctx context.Context, versionID string) (P, int, error) {
	var zero P
	selectCols, err := s.spec.versionSelectColumns()
	if err != nil {
		return zero, 0, err
	}
	query := fmt.Sprintf("SELECT version, %s FROM %s WHERE id = ?", joinCols(selectCols), s.spec.VersionTable)
	row := s.adapter.db.QueryRowContext(ctx, query, versionID)

	var version int
	payload, err := s.spec.scanVersionRow(row, &version)
	if err != nil {
		return zero, 0, err
	}
	return payload, version, nil
}

// GetHistory returns every version of an artifact, oldest first.
func (s *envelopeStore[P]) GetHistory(ctx context.Context, entryID string) ([]int, error) {
	rows, err := s.adapter.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT version FROM %s WHERE entry_id = ? ORDER BY version ASC`, s.spec.VersionTable), entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// SetActive flips is_active and publishes an invalidation event.
func (s *envelopeStore[P]) SetActive(ctx context.Context, entryID string, active bool) error {
	res, err := s.adapter.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET is_active = ? WHERE id = ?`, s.spec.EntryTable), boolToInt(active), entryID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	reason := "deactivated"
	if active {
		reason = "reactivated"
	}
	s.adapter.Bus().Publish(InvalidationEvent{EntryType: s.spec.EntryType, EntryID: entryID, Reason: reason})
	return nil
}

// Delete removes an entry and its full version chain. Used only by the
// export/migration admin path; ordinary deletions should deactivate instead.
func (s *envelopeStore[P]) Delete(ctx context.Context, entryID string) error {
	_, err := s.adapter.Transaction(ctx, func(ctx context.Context, tx *Tx) (interface{}, error) {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE entry_id = ?`, s.spec.VersionTable), entryID); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.spec.EntryTable), entryID); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return err
	}
	s.adapter.Bus().Publish(InvalidationEvent{EntryType: s.spec.EntryType, EntryID: entryID, Reason: "deleted"})
	return nil
}

// RecordAccess increments access_count and last_accessed_at without blocking
// the caller; it is fire-and-forget so access bookkeeping never gates a read.
func (s *envelopeStore[P]) RecordAccess(entryID string) {
	go func() {
		s.adapter.db.Exec(
			fmt.Sprintf(`UPDATE %s SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?`, s.spec.EntryTable),
			time.Now().UTC(), entryID,
		)
	}()
}

func scanMeta(row *sql.Row) (*EnvelopeMeta, error) {
	var m EnvelopeMeta
	var scopeID sql.NullString
	var currentVersionID sql.NullString
	var isActive int
	var lastAccessed sql.NullTime
	var scopeType string

	if err := row.Scan(&m.ID, &scopeType, &scopeID, &currentVersionID, &isActive, &m.AccessCount, &lastAccessed, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Scope = Scope{Type: ScopeType(scopeType), ID: scopeID.String}
	m.CurrentVersionID = currentVersionID.String
	m.IsActive = isActive != 0
	if lastAccessed.Valid {
		t := lastAccessed.Time
		m.LastAccessedAt = &t
	}
	return &m, nil
}

func nullableScopeID(scope Scope) interface{} {
	if scope.Type == ScopeGlobal || scope.ID == "" {
		return nil
	}
	return scope.ID
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func joinCols(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

func joinPlaceholders(ph []string) string {
	out := ""
	for i, p := range ph {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

// versionSelectColumns and scanVersionRow are implemented per-kind in the
// repository files (guideline_repo.go etc.) by attaching methods to
// versionSpec[P] via the marshal/scan closures supplied at construction;
// kept here as small helpers shared by every kind's loadVersion call.
func (spec versionSpec[P]) versionSelectColumns() ([]string, error) {
	if spec.selectColumns == nil {
		return nil, fmt.Errorf("store: versionSpec missing selectColumns for %s", spec.EntryType)
	}
	return spec.selectColumns(), nil
}

func (spec versionSpec[P]) scanVersionRow(row *sql.Row, version *int) (P, error) {
	if spec.scanRowInto == nil {
		var zero P
		return zero, fmt.Errorf("store: versionSpec missing scanRowInto for %s", spec.EntryType)
	}
	return spec.scanRowInto(row, version)
}

