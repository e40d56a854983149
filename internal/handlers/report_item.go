package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ReclaimHQ/ReclaimBot/internal/itemstore"
	"github.com/ReclaimHQ/ReclaimBot/internal/models"
	"github.com/ReclaimHQ/ReclaimBot/internal/registry"
	"github.com/ReclaimHQ/ReclaimBot/internal/util"
)

// stolenAtLayouts are the accepted date formats for the stolen_at parameter.
var stolenAtLayouts = []string{"2006-01-02", "02/01/2006", "2006-01-02 15:04"}

// ReportItemHandler files a new stolen item report.
//
// Params: reporter (required), category (required), description (required),
// location (optional), stolen_at (optional date), reference (optional police
// reference). Result: report_id.
type ReportItemHandler struct {
	store itemstore.Store
}

// NewReportItemHandler is the registry constructor for report_item.
func NewReportItemHandler(deps map[string]any) (registry.Handler, error) {
	store, err := itemStoreDep(deps)
	if err != nil {
		return nil, err
	}
	return &ReportItemHandler{store: store}, nil
}

func (h *ReportItemHandler) Invoke(ctx context.Context, params map[string]string) (map[string]string, error) {
	reporter, err := requireParam(params, "reporter")
	if err != nil {
		return nil, err
	}
	category, err := requireParam(params, "category")
	if err != nil {
		return nil, err
	}
	description, err := requireParam(params, "description")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	report := models.ItemReport{
		ID:          util.GenerateReportID(),
		Reporter:    reporter,
		Category:    models.ItemCategory(category),
		Description: description,
		Location:    params["location"],
		Reference:   params["reference"],
		Status:      models.ItemStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if raw := params["stolen_at"]; raw != "" {
		stolenAt, err := parseStolenAt(raw)
		if err != nil {
			return nil, err
		}
		report.StolenAt = &stolenAt
	}
	if err := report.Validate(); err != nil {
		return nil, err
	}

	if err := h.store.AddReport(report); err != nil {
		return nil, fmt.Errorf("failed to file item report: %w", err)
	}
	slog.Info("ReportItemHandler filed report", "id", report.ID, "category", report.Category, "reporter", reporter)
	return map[string]string{"report_id": report.ID}, nil
}

func parseStolenAt(raw string) (time.Time, error) {
	for _, layout := range stolenAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q, expected YYYY-MM-DD", raw)
}
