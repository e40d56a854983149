// SQLite-backed item store. The DSN is a file path; the parent directory is
// created when missing.
package itemstore

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/ReclaimHQ/ReclaimBot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the permissions for created database
// directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite item store ready", "dsn", cfg.DSN)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) AddReport(report models.ItemReport) error {
	if err := report.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO item_reports (id, reporter, category, description, location, stolen_at, status, reference, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.Reporter, report.Category, report.Description,
		nilIfEmpty(report.Location), report.StolenAt, report.Status,
		nilIfEmpty(report.Reference), report.CreatedAt, report.UpdatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore AddReport failed", "error", err, "id", report.ID)
		return fmt.Errorf("failed to insert item report %s: %w", report.ID, err)
	}
	slog.Debug("SQLiteStore AddReport succeeded", "id", report.ID, "category", report.Category)
	return nil
}

func (s *SQLiteStore) GetReport(id string) (models.ItemReport, error) {
	row := s.db.QueryRow(
		`SELECT id, reporter, category, description, location, stolen_at, status, reference, created_at, updated_at
		 FROM item_reports WHERE id = ?`, id)
	report, err := scanReportRow(row)
	if err == sql.ErrNoRows {
		return models.ItemReport{}, ErrReportNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetReport failed", "error", err, "id", id)
		return models.ItemReport{}, fmt.Errorf("failed to get item report %s: %w", id, err)
	}
	return report, nil
}

func (s *SQLiteStore) FindReports(query models.ItemQuery) ([]models.ItemReport, error) {
	sqlQuery, args := buildFindQuery(query, sqlitePlaceholders)
	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		slog.Error("SQLiteStore FindReports query failed", "error", err)
		return nil, fmt.Errorf("failed to query item reports: %w", err)
	}
	defer rows.Close()

	var reports []models.ItemReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			slog.Error("SQLiteStore FindReports scan failed", "error", err)
			return nil, err
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore FindReports rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate item report rows: %w", err)
	}
	slog.Debug("SQLiteStore FindReports succeeded", "count", len(reports))
	return reports, nil
}

func (s *SQLiteStore) UpdateReportStatus(id string, status models.ItemStatus) error {
	result, err := s.db.Exec(
		`UPDATE item_reports SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id)
	if err != nil {
		slog.Error("SQLiteStore UpdateReportStatus failed", "error", err, "id", id)
		return fmt.Errorf("failed to update item report %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return ErrReportNotFound
	}
	return nil
}

func (s *SQLiteStore) AddTicket(ticket models.SupportTicket) error {
	_, err := s.db.Exec(
		`INSERT INTO support_tickets (id, user_id, message, created_at) VALUES (?, ?, ?, ?)`,
		ticket.ID, ticket.UserID, ticket.Message, ticket.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddTicket failed", "error", err, "id", ticket.ID)
		return fmt.Errorf("failed to insert support ticket %s: %w", ticket.ID, err)
	}
	slog.Debug("SQLiteStore AddTicket succeeded", "id", ticket.ID)
	return nil
}

func (s *SQLiteStore) PurgeReports(status models.ItemStatus, olderThan time.Time) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM item_reports WHERE status = ? AND updated_at < ?`,
		status, olderThan)
	if err != nil {
		slog.Error("SQLiteStore PurgeReports failed", "error", err, "status", status)
		return 0, fmt.Errorf("failed to purge item reports: %w", err)
	}
	purged, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	slog.Debug("SQLiteStore PurgeReports succeeded", "status", status, "purged", purged)
	return purged, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
