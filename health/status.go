// Package health models the rolled-up health of the data layer: the
// substrate connection, the migration state, and per-table statistics
// combine into a single healthy/warning/critical verdict.
package health

import "time"

// Level grades a status. Ordering matters: the rollup takes the worst
// level across all checks.
type Level string

// Health levels, best to worst.
const (
	LevelHealthy  Level = "healthy"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// severity maps a level to its rollup rank.
func severity(l Level) int {
	switch l {
	case LevelHealthy:
		return 0
	case LevelWarning:
		return 1
	case LevelCritical:
		return 2
	default:
		return 2
	}
}

// Worst returns the more severe of two levels. Unknown levels clamp to
// critical so a malformed check can never mask a real problem.
func Worst(a, b Level) Level {
	if severity(b) > severity(a) {
		return clamp(b)
	}
	return clamp(a)
}

func clamp(l Level) Level {
	switch l {
	case LevelHealthy, LevelWarning, LevelCritical:
		return l
	default:
		return LevelCritical
	}
}

// TableStats reports one table's record count and freshest update.
type TableStats struct {
	Table       string    `json:"table"`
	RecordCount int       `json:"record_count"`
	LastUpdated time.Time `json:"last_updated,omitempty"`
}

// Check is one named verdict contributing to the rollup.
type Check struct {
	Name    string `json:"name"`
	Level   Level  `json:"level"`
	Message string `json:"message,omitempty"`
}

// Status is the aggregate health report.
type Status struct {
	Level         Level        `json:"level"`
	Timestamp     time.Time    `json:"timestamp"`
	SchemaVersion int          `json:"schema_version"`
	Checks        []Check      `json:"checks,omitempty"`
	Tables        []TableStats `json:"tables,omitempty"`
}

// IsHealthy reports whether the status carries no degradation at all.
func (s Status) IsHealthy() bool {
	return s.Level == LevelHealthy
}

// IsCritical reports whether the status requires intervention.
func (s Status) IsCritical() bool {
	return s.Level == LevelCritical
}

// WithCheck appends a check and folds its level into the rollup.
func (s Status) WithCheck(c Check) Status {
	checks := make([]Check, len(s.Checks), len(s.Checks)+1)
	copy(checks, s.Checks)
	s.Checks = append(checks, c)
	s.Level = Worst(s.Level, c.Level)
	return s
}

// New starts a healthy status stamped with the current time.
func New(now time.Time) Status {
	return Status{Level: LevelHealthy, Timestamp: now}
}
