package export

import (
	"context"
	"fmt"
	"time"
)

// ArchivalCandidate is one envelope eligible for archival consideration:
// it has not been accessed recently and its access count is low enough that
// keeping it in the hot tables is not worth the space.
type ArchivalCandidate struct {
	EntryType      string
	EntryID        string
	AccessCount    int64
	LastAccessedAt *time.Time
	CreatedAt      time.Time
}

// ArchivalConfig mirrors the ArchiveOlderThanDays/MaxAccessCount
// knobs, sourced from config.MemoryConfig.
type ArchivalConfig struct {
	ArchiveAfterDays   int
	MinAccessToArchive int
}

// StaleLister finds envelopes across every kind that haven't been touched
// recently enough to stay active.
type StaleLister interface {
	ListStaleCandidates(ctx context.Context, olderThan time.Time, maxAccessCount int64) ([]ArchivalCandidate, error)
}

// ArchiveStore records that an entry was archived and when, separate from
// the live envelope tables, mirroring a separate archived_facts shadow
// table.
type ArchiveStore interface {
	RecordArchived(ctx context.Context, entryType, entryID string, archivedAt time.Time) error
}

// Deactivator flips an entry's is_active flag without deleting its version
// history.
type Deactivator interface {
	SetActive(ctx context.Context, entryType, entryID string, active bool) error
}

// ArchivalStats reports the outcome of one sweep.
type ArchivalStats struct {
	Considered int
	Archived   int
	Failed     int
}

// ArchiveStale moves every envelope that hasn't been accessed in
// cfg.ArchiveAfterDays, and whose access count is at or below
// cfg.MinAccessToArchive, into the archived shadow table and deactivates it
// in its live table. One failure does not abort the sweep.
func ArchiveStale(ctx context.Context, lister StaleLister, archives ArchiveStore, deactivator Deactivator, cfg ArchivalConfig, now time.Time) (ArchivalStats, error) {
	if cfg.ArchiveAfterDays <= 0 {
		cfg.ArchiveAfterDays = 180
	}
	cutoff := now.AddDate(0, 0, -cfg.ArchiveAfterDays)

	candidates, err := lister.ListStaleCandidates(ctx, cutoff, int64(cfg.MinAccessToArchive))
	if err != nil {
		return ArchivalStats{}, fmt.Errorf("export: list stale candidates: %w", err)
	}

	stats := ArchivalStats{Considered: len(candidates)}
	for _, candidate := range candidates {
		if err := archives.RecordArchived(ctx, candidate.EntryType, candidate.EntryID, now); err != nil {
			stats.Failed++
			continue
		}
		if err := deactivator.SetActive(ctx, candidate.EntryType, candidate.EntryID, false); err != nil {
			stats.Failed++
			continue
		}
		stats.Archived++
	}
	return stats, nil
}
