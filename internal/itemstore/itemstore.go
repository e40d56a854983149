// Package itemstore provides storage backends for stolen item reports and
// support tickets.
//
// It includes an in-memory store for tests and SQLite/PostgreSQL stores for
// deployment. Matching is deliberately simple: category equality plus
// case-insensitive keyword containment over the description.
package itemstore

import (
	"strings"
	"time"

	"github.com/ReclaimHQ/ReclaimBot/internal/models"
)

// DefaultQueryLimit caps result sets when a query does not specify a limit.
const DefaultQueryLimit = 10

// Store defines the persistence contract for item reports and support
// tickets.
type Store interface {
	// AddReport persists a new report. The caller assigns the ID.
	AddReport(report models.ItemReport) error
	// GetReport returns the report with the given ID.
	GetReport(id string) (models.ItemReport, error)
	// FindReports returns active reports matching the query, newest first.
	FindReports(query models.ItemQuery) ([]models.ItemReport, error)
	// UpdateReportStatus changes a report's lifecycle status.
	UpdateReportStatus(id string, status models.ItemStatus) error
	// AddTicket persists a support ticket.
	AddTicket(ticket models.SupportTicket) error
	// PurgeReports permanently removes reports in the given status whose
	// last update is older than the cutoff. Returns the number removed.
	PurgeReports(status models.ItemStatus, olderThan time.Time) (int64, error)
	// Close releases any underlying resources.
	Close() error
}

// Opts holds configuration for store constructors.
type Opts struct {
	DSN string
}

// Option configures store construction.
type Option func(*Opts)

// WithDSN sets the database connection string (a file path for SQLite).
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite3" so callers can
// pick the matching driver. Postgres DSNs use a URL scheme or key=value
// form; everything else is treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// NewStore opens the backend matching the DSN type.
func NewStore(dsn string) (Store, error) {
	if DetectDSNType(dsn) == "postgres" {
		return NewPostgresStore(WithDSN(dsn))
	}
	return NewSQLiteStore(WithDSN(dsn))
}
