package session

import (
	"fmt"
	"os"
)

// CleanupStats is the outcome of one cleanup pass over the non-current
// session set. SessionsRemoved + SessionsKept + SkippedErrors == SessionsFound
// always holds; a failed removal counts toward neither removed nor kept and is
// reported distinctly in SkippedErrors.
type CleanupStats struct {
	SessionsFound   int      `json:"sessions_found"`
	SessionsRemoved int      `json:"sessions_removed"`
	SessionsKept    int      `json:"sessions_kept"`
	SkippedErrors   int      `json:"skipped_errors"`
	SpaceFreedMB    float64  `json:"space_freed_mb"`
	Reasons         []string `json:"cleanup_reason"`
}

// Cleanup applies the retention policy under baseDir.
//
// The session identified by currentID is excluded unconditionally before any
// inspection; it is never a removal candidate regardless of age or rank. Of
// the remaining sessions, one is removed when its age strictly exceeds
// maxAgeHours (a session of exactly the boundary age is kept), or when its
// recency rank exceeds maxSessions-1. The -1 reserves a slot for the current
// session, which is implicitly kept but not counted in the found/removed/kept
// totals.
//
// Removal failures are logged per session and reported as skipped; the pass
// continues. Concurrent runs are safe as long as each passes its own live
// session id: every cleanup then only ever deletes sessions owned by no
// running caller or by callers that will themselves skip it.
func (m *Manager) Cleanup(baseDir, currentID string, maxSessions int, maxAgeHours float64) (*CleanupStats, error) {
	stats := &CleanupStats{}

	all, err := m.List(baseDir)
	if err != nil {
		return stats, err
	}

	// Exclusion is keyed on the live run's identifier, not a directory
	// snapshot, so a session can never evaluate itself.
	var candidates []*Session
	for _, s := range all {
		if s.ID == currentID {
			continue
		}
		candidates = append(candidates, s)
	}
	stats.SessionsFound = len(candidates)

	now := m.now()
	maxRank := maxSessions - 1

	// List returns most recently modified first, so the slice index gives
	// the recency rank directly (rank 1 = index 0).
	for i, s := range candidates {
		ageHours := now.Sub(s.CreatedAt).Hours()
		rank := i + 1

		var reason string
		switch {
		case ageHours > maxAgeHours:
			reason = fmt.Sprintf("aged_%dh", int(ageHours))
		case rank > maxRank:
			reason = "excess_count"
		default:
			stats.SessionsKept++
			continue
		}

		size := DirSizeMB(s.Dir)
		if err := os.RemoveAll(s.Dir); err != nil {
			m.log.Warn("failed to remove session, skipping", "id", s.ID, "error", err)
			stats.SkippedErrors++
			continue
		}

		stats.SessionsRemoved++
		stats.SpaceFreedMB += size
		stats.Reasons = append(stats.Reasons, fmt.Sprintf("%s: %s (%.3f MB)", s.ID, reason, size))
		m.log.Info("session removed", "id", s.ID, "reason", reason, "size_mb", fmt.Sprintf("%.3f", size))
	}

	return stats, nil
}
