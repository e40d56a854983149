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

// checkCandidateLimit is how many reports per category are scored for
// keyword overlap.
const checkCandidateLimit = 50

// CheckItemHandler looks up active reports matching a category and a
// free-form description.
//
// Params: category (required), description (required), location (optional).
// Result: matches (count), summary (user-facing text).
type CheckItemHandler struct {
	store itemstore.Store
}

// NewCheckItemHandler is the registry constructor for check_item.
func NewCheckItemHandler(deps map[string]any) (registry.Handler, error) {
	store, err := itemStoreDep(deps)
	if err != nil {
		return nil, err
	}
	return &CheckItemHandler{store: store}, nil
}

func (h *CheckItemHandler) Invoke(ctx context.Context, params map[string]string) (map[string]string, error) {
	category, err := requireParam(params, "category")
	if err != nil {
		return nil, err
	}
	description, err := requireParam(params, "description")
	if err != nil {
		return nil, err
	}
	if !models.IsValidItemCategory(models.ItemCategory(category)) {
		return nil, fmt.Errorf("%w: unknown category %q", models.ErrInvalidCategory, category)
	}

	candidates, err := h.store.FindReports(models.ItemQuery{
		Category: models.ItemCategory(category),
		Limit:    checkCandidateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search item reports: %w", err)
	}

	keywords := descriptionKeywords(description)
	if location := strings.TrimSpace(params["location"]); location != "" {
		keywords = append(keywords, descriptionKeywords(location)...)
	}
	matches := rankByOverlap(candidates, keywords)

	slog.Info("CheckItemHandler search completed", "category", category,
		"candidates", len(candidates), "matches", len(matches))
	return map[string]string{
		"matches": strconv.Itoa(len(matches)),
		"summary": checkSummary(matches),
	}, nil
}

// rankByOverlap keeps reports sharing at least one keyword with the query,
// ordered by how many keywords they share. With no keywords every candidate
// is kept.
func rankByOverlap(reports []models.ItemReport, keywords []string) []models.ItemReport {
	if len(keywords) == 0 {
		return reports
	}
	type scored struct {
		report models.ItemReport
		score  int
	}
	var kept []scored
	for _, report := range reports {
		haystack := strings.ToLower(report.Description + " " + report.Location)
		score := 0
		for _, keyword := range keywords {
			if strings.Contains(haystack, strings.ToLower(keyword)) {
				score++
			}
		}
		if score > 0 {
			kept = append(kept, scored{report, score})
		}
	}
	// Insertion sort by score; candidate lists are small.
	for i := 1; i < len(kept); i++ {
		for j := i; j > 0 && kept[j].score > kept[j-1].score; j-- {
			kept[j], kept[j-1] = kept[j-1], kept[j]
		}
	}
	out := make([]models.ItemReport, len(kept))
	for i, s := range kept {
		out[i] = s.report
	}
	return out
}

func checkSummary(matches []models.ItemReport) string {
	if len(matches) == 0 {
		return "Good news - no matching stolen item reports were found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Warning: %d matching report(s) found:\n", len(matches))
	for i, report := range matches {
		if i == 3 {
			fmt.Fprintf(&b, "...and %d more.", len(matches)-i)
			break
		}
		fmt.Fprintf(&b, "- %s (%s)", report.Description, report.Category)
		if report.Location != "" {
			fmt.Fprintf(&b, " near %s", report.Location)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
