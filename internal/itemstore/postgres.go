// PostgreSQL-backed item store.
package itemstore

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/ReclaimHQ/ReclaimBot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the maximum number of open connections to the database.
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool.
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the maximum amount of time a connection may be reused.
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres item store ready")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) AddReport(report models.ItemReport) error {
	if err := report.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO item_reports (id, reporter, category, description, location, stolen_at, status, reference, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		report.ID, report.Reporter, report.Category, report.Description,
		nilIfEmpty(report.Location), report.StolenAt, report.Status,
		nilIfEmpty(report.Reference), report.CreatedAt, report.UpdatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore AddReport failed", "error", err, "id", report.ID)
		return fmt.Errorf("failed to insert item report %s: %w", report.ID, err)
	}
	slog.Debug("PostgresStore AddReport succeeded", "id", report.ID, "category", report.Category)
	return nil
}

func (s *PostgresStore) GetReport(id string) (models.ItemReport, error) {
	row := s.db.QueryRow(
		`SELECT id, reporter, category, description, location, stolen_at, status, reference, created_at, updated_at
		 FROM item_reports WHERE id = $1`, id)
	report, err := scanReportRow(row)
	if err == sql.ErrNoRows {
		return models.ItemReport{}, ErrReportNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetReport failed", "error", err, "id", id)
		return models.ItemReport{}, fmt.Errorf("failed to get item report %s: %w", id, err)
	}
	return report, nil
}

func (s *PostgresStore) FindReports(query models.ItemQuery) ([]models.ItemReport, error) {
	sqlQuery, args := buildFindQuery(query, postgresPlaceholders)
	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		slog.Error("PostgresStore FindReports query failed", "error", err)
		return nil, fmt.Errorf("failed to query item reports: %w", err)
	}
	defer rows.Close()

	var reports []models.ItemReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			slog.Error("PostgresStore FindReports scan failed", "error", err)
			return nil, err
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore FindReports rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate item report rows: %w", err)
	}
	slog.Debug("PostgresStore FindReports succeeded", "count", len(reports))
	return reports, nil
}

func (s *PostgresStore) UpdateReportStatus(id string, status models.ItemStatus) error {
	result, err := s.db.Exec(
		`UPDATE item_reports SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	if err != nil {
		slog.Error("PostgresStore UpdateReportStatus failed", "error", err, "id", id)
		return fmt.Errorf("failed to update item report %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return ErrReportNotFound
	}
	return nil
}

func (s *PostgresStore) AddTicket(ticket models.SupportTicket) error {
	_, err := s.db.Exec(
		`INSERT INTO support_tickets (id, user_id, message, created_at) VALUES ($1, $2, $3, $4)`,
		ticket.ID, ticket.UserID, ticket.Message, ticket.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddTicket failed", "error", err, "id", ticket.ID)
		return fmt.Errorf("failed to insert support ticket %s: %w", ticket.ID, err)
	}
	slog.Debug("PostgresStore AddTicket succeeded", "id", ticket.ID)
	return nil
}

func (s *PostgresStore) PurgeReports(status models.ItemStatus, olderThan time.Time) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM item_reports WHERE status = $1 AND updated_at < $2`,
		status, olderThan)
	if err != nil {
		slog.Error("PostgresStore PurgeReports failed", "error", err, "status", status)
		return 0, fmt.Errorf("failed to purge item reports: %w", err)
	}
	purged, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	slog.Debug("PostgresStore PurgeReports succeeded", "status", status, "purged", purged)
	return purged, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
