package itemstore

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ReclaimHQ/ReclaimBot/internal/models"
)

// ErrReportNotFound is returned when no report exists for the given ID.
var ErrReportNotFound = errors.New("item report not found")

// InMemoryStore keeps reports and tickets in process memory. Used in tests
// and for ephemeral deployments.
type InMemoryStore struct {
	mu      sync.RWMutex
	reports map[string]models.ItemReport
	tickets []models.SupportTicket
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{reports: make(map[string]models.ItemReport)}
}

func (s *InMemoryStore) AddReport(report models.ItemReport) error {
	if err := report.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.ID] = report
	return nil
}

func (s *InMemoryStore) GetReport(id string) (models.ItemReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report, ok := s.reports[id]
	if !ok {
		return models.ItemReport{}, ErrReportNotFound
	}
	return report, nil
}

func (s *InMemoryStore) FindReports(query models.ItemQuery) ([]models.ItemReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.ItemReport
	for _, report := range s.reports {
		if reportMatches(report, query) {
			matched = append(matched, report)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	limit := query.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *InMemoryStore) UpdateReportStatus(id string, status models.ItemStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.reports[id]
	if !ok {
		return ErrReportNotFound
	}
	report.Status = status
	report.UpdatedAt = time.Now().UTC()
	s.reports[id] = report
	return nil
}

func (s *InMemoryStore) AddTicket(ticket models.SupportTicket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets = append(s.tickets, ticket)
	return nil
}

func (s *InMemoryStore) PurgeReports(status models.ItemStatus, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for id, report := range s.reports {
		if report.Status == status && report.UpdatedAt.Before(olderThan) {
			delete(s.reports, id)
			purged++
		}
	}
	return purged, nil
}

// Tickets returns all stored tickets (for tests).
func (s *InMemoryStore) Tickets() []models.SupportTicket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.SupportTicket, len(s.tickets))
	copy(out, s.tickets)
	return out
}

func (s *InMemoryStore) Close() error { return nil }

// reportMatches applies the shared matching rules: category must be equal
// when set, reporter must be equal when set, and every keyword must appear in
// the description or location, case-insensitively. Searches see active
// reports only; a reporter listing their own items also sees recovered ones.
func reportMatches(report models.ItemReport, query models.ItemQuery) bool {
	if report.Status == models.ItemStatusDeleted {
		return false
	}
	if query.Reporter == "" && report.Status != models.ItemStatusActive {
		return false
	}
	if query.Category != "" && report.Category != query.Category {
		return false
	}
	if query.Reporter != "" && report.Reporter != query.Reporter {
		return false
	}
	haystack := strings.ToLower(report.Description + " " + report.Location)
	for _, keyword := range query.Keywords {
		if !strings.Contains(haystack, strings.ToLower(keyword)) {
			return false
		}
	}
	return true
}
