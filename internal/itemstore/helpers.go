package itemstore

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/ReclaimHQ/ReclaimBot/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanReport scans an ItemReport from sql.Rows.
func scanReport(rows *sql.Rows) (models.ItemReport, error) {
	var r models.ItemReport
	var location, reference sql.NullString
	var stolenAt sql.NullTime
	err := rows.Scan(
		&r.ID, &r.Reporter, &r.Category, &r.Description, &location,
		&stolenAt, &r.Status, &reference, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return r, fmt.Errorf("scan item report failed: %w", err)
	}
	r.Location = location.String
	r.Reference = reference.String
	if stolenAt.Valid {
		r.StolenAt = &stolenAt.Time
	}
	return r, nil
}

// scanReportRow scans an ItemReport from a single sql.Row.
func scanReportRow(row *sql.Row) (models.ItemReport, error) {
	var r models.ItemReport
	var location, reference sql.NullString
	var stolenAt sql.NullTime
	err := row.Scan(
		&r.ID, &r.Reporter, &r.Category, &r.Description, &location,
		&stolenAt, &r.Status, &reference, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return r, err
	}
	r.Location = location.String
	r.Reference = reference.String
	if stolenAt.Valid {
		r.StolenAt = &stolenAt.Time
	}
	return r, nil
}

// placeholderFunc renders the placeholder for the n-th bind argument
// (1-based). SQLite uses "?", Postgres "$n".
type placeholderFunc func(n int) string

func sqlitePlaceholders(int) string { return "?" }

func postgresPlaceholders(n int) string { return fmt.Sprintf("$%d", n) }

// buildFindQuery renders the shared report search as SQL. The filter rules
// mirror the in-memory store: searches see active reports only, a reporter
// listing their own items also sees recovered ones, and every keyword must
// appear in the description or location.
func buildFindQuery(query models.ItemQuery, placeholder placeholderFunc) (string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
	)
	next := func(arg interface{}) string {
		args = append(args, arg)
		return placeholder(len(args))
	}

	if query.Reporter != "" {
		conditions = append(conditions, "reporter = "+next(query.Reporter))
		conditions = append(conditions, "status != "+next(models.ItemStatusDeleted))
	} else {
		conditions = append(conditions, "status = "+next(models.ItemStatusActive))
	}
	if query.Category != "" {
		conditions = append(conditions, "category = "+next(query.Category))
	}
	for _, keyword := range query.Keywords {
		pattern := "%" + strings.ToLower(keyword) + "%"
		conditions = append(conditions,
			"LOWER(description || ' ' || COALESCE(location, '')) LIKE "+next(pattern))
	}

	limit := query.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	sqlQuery := `SELECT id, reporter, category, description, location, stolen_at, status, reference, created_at, updated_at
		FROM item_reports WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY created_at DESC LIMIT ` + next(limit)
	return sqlQuery, args
}
