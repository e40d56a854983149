package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ReclaimHQ/ReclaimBot/internal/itemstore"
	"github.com/ReclaimHQ/ReclaimBot/internal/models"
	"github.com/ReclaimHQ/ReclaimBot/internal/registry"
)

// FindNearbyHandler searches active reports around a named location. Matching
// is textual: the location keywords must appear in a report's location or
// description.
//
// Params: location (required), category (optional).
// Result: matches (count), summary.
type FindNearbyHandler struct {
	store itemstore.Store
}

// NewFindNearbyHandler is the registry constructor for find_nearby.
func NewFindNearbyHandler(deps map[string]any) (registry.Handler, error) {
	store, err := itemStoreDep(deps)
	if err != nil {
		return nil, err
	}
	return &FindNearbyHandler{store: store}, nil
}

func (h *FindNearbyHandler) Invoke(ctx context.Context, params map[string]string) (map[string]string, error) {
	location, err := requireParam(params, "location")
	if err != nil {
		return nil, err
	}

	query := models.ItemQuery{Keywords: descriptionKeywords(location)}
	if category := strings.TrimSpace(params["category"]); category != "" {
		query.Category = models.ItemCategory(category)
	}
	reports, err := h.store.FindReports(query)
	if err != nil {
		return nil, fmt.Errorf("failed to search item reports: %w", err)
	}

	slog.Info("FindNearbyHandler search completed", "location", location, "matches", len(reports))
	return map[string]string{
		"matches": strconv.Itoa(len(reports)),
		"summary": nearbySummary(location, reports),
	}, nil
}

func nearbySummary(location string, reports []models.ItemReport) string {
	if len(reports) == 0 {
		return fmt.Sprintf("No stolen item reports found around %s.", location)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d report(s) around %s:\n", len(reports), location)
	for i, report := range reports {
		if i == 5 {
			fmt.Fprintf(&b, "...and %d more.", len(reports)-i)
			break
		}
		fmt.Fprintf(&b, "- %s: %s\n", report.Category, report.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

// ListUserItemsHandler lists the reports a user has filed, including
// recovered ones.
//
// Params: reporter (required).
// Result: count, summary.
type ListUserItemsHandler struct {
	store itemstore.Store
}

// NewListUserItemsHandler is the registry constructor for list_user_items.
func NewListUserItemsHandler(deps map[string]any) (registry.Handler, error) {
	store, err := itemStoreDep(deps)
	if err != nil {
		return nil, err
	}
	return &ListUserItemsHandler{store: store}, nil
}

func (h *ListUserItemsHandler) Invoke(ctx context.Context, params map[string]string) (map[string]string, error) {
	reporter, err := requireParam(params, "reporter")
	if err != nil {
		return nil, err
	}

	reports, err := h.store.FindReports(models.ItemQuery{Reporter: reporter})
	if err != nil {
		return nil, fmt.Errorf("failed to list item reports: %w", err)
	}

	slog.Info("ListUserItemsHandler completed", "reporter", reporter, "count", len(reports))
	return map[string]string{
		"count":   strconv.Itoa(len(reports)),
		"summary": userItemsSummary(reports),
	}, nil
}

func userItemsSummary(reports []models.ItemReport) string {
	if len(reports) == 0 {
		return "You have no item reports on file."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Your reports (%d):\n", len(reports))
	for _, report := range reports {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", report.Status, report.Category, report.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}
