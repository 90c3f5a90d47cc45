package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"time"

	"github.com/stadtportal/be-mm-reports/internal/repository"
)

// ExportRow is one flattened report for data export. Optional fields are
// empty strings so both CSV and JSON renderings stay uniform.
type ExportRow struct {
	TicketCode    string `json:"ticket_code"`
	Category      string `json:"category"`
	CategoryLabel string `json:"category_label"`
	Status        string `json:"status"`
	StatusLabel   string `json:"status_label"`
	Urgency       string `json:"urgency"`
	Address       string `json:"address"`
	District      string `json:"district"`
	Comment       string `json:"comment"`
	ForwardedTo   string `json:"forwarded_to"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// ExportReports flattens all reports matching the filter into export rows.
// Pagination is ignored: an export always covers the full filtered set.
func (s *ReportService) ExportReports(ctx context.Context, filter repository.ReportFilter) ([]ExportRow, error) {
	filter.Limit = 0
	filter.Offset = 0

	reports, _, err := s.reports.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	rows := make([]ExportRow, 0, len(reports))
	for _, r := range reports {
		row := ExportRow{
			TicketCode:    r.TicketCode,
			Category:      string(r.Category),
			CategoryLabel: r.Category.Label(),
			Status:        string(r.Status),
			StatusLabel:   r.Status.Label(),
			Urgency:       string(r.Urgency),
			Comment:       r.Comment,
			CreatedAt:     r.CreatedAt.Format(time.RFC3339),
			UpdatedAt:     r.UpdatedAt.Format(time.RFC3339),
		}
		if r.Address != nil {
			row.Address = *r.Address
		}
		if r.District != nil {
			row.District = *r.District
		}

		entry, err := s.audit.LastOf(ctx, r.ID, repository.ActionForwarded)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			if name, ok := entry.Details["recipient_name"].(string); ok {
				row.ForwardedTo = name
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

var exportHeader = []string{
	"ticket_code", "category", "category_label", "status", "status_label",
	"urgency", "address", "district", "comment", "forwarded_to",
	"created_at", "updated_at",
}

// RenderCSV writes export rows as CSV with a header line.
func RenderCSV(rows []ExportRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, row := range rows {
		record := []string{
			row.TicketCode, row.Category, row.CategoryLabel, row.Status, row.StatusLabel,
			row.Urgency, row.Address, row.District, row.Comment, row.ForwardedTo,
			row.CreatedAt, row.UpdatedAt,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
