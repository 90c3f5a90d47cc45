package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/stadtportal/be-mm-reports/internal/platform/apperrors"
	"github.com/stadtportal/be-mm-reports/internal/platform/database"
)

// ActorSystem is the performer recorded for actions not driven by an admin.
const ActorSystem = "system"

// AuditRepository appends and reads the immutable per-report audit log.
// Entries are never updated or deleted; the table is the compliance trail.
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts one audit entry. This is the only mutation exposed.
func (r *AuditRepository) Append(ctx context.Context, reportID string, action AuditAction, details map[string]any, performedBy string) (*AuditEntry, error) {
	if performedBy == "" {
		performedBy = ActorSystem
	}
	if details == nil {
		details = map[string]any{}
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to marshal audit details")
	}

	entry := &AuditEntry{
		ReportID:    reportID,
		Action:      action,
		Details:     details,
		PerformedBy: performedBy,
	}

	query := `
		INSERT INTO audit_log (report_id, action, details, performed_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, timestamp
	`

	err = r.db.QueryRow(ctx, query,
		reportID,
		string(action),
		detailsJSON,
		performedBy,
	).Scan(&entry.ID, &entry.Timestamp)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to append audit entry")
	}
	return entry, nil
}

// ListByReportID returns the audit trail for a report, newest first. The id
// tiebreak makes the order deterministic when two entries share a timestamp;
// with random UUID ids it says nothing about which was written first.
func (r *AuditRepository) ListByReportID(ctx context.Context, reportID string) ([]*AuditEntry, error) {
	query := `
		SELECT id, report_id, action, details, performed_by, timestamp
		FROM audit_log
		WHERE report_id = $1
		ORDER BY timestamp DESC, id DESC
	`

	rows, err := r.db.Query(ctx, query, reportID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list audit entries")
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan audit entry")
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// LastOf returns the most recent entry with the given action for a report,
// or nil when none exists.
func (r *AuditRepository) LastOf(ctx context.Context, reportID string, action AuditAction) (*AuditEntry, error) {
	query := `
		SELECT id, report_id, action, details, performed_by, timestamp
		FROM audit_log
		WHERE report_id = $1 AND action = $2
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`

	entry, err := scanAuditEntry(r.db.QueryRow(ctx, query, reportID, string(action)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get last audit entry")
	}
	return entry, nil
}

func scanAuditEntry(sc rowScanner) (*AuditEntry, error) {
	entry := &AuditEntry{}
	var detailsJSON []byte

	err := sc.Scan(
		&entry.ID,
		&entry.ReportID,
		&entry.Action,
		&detailsJSON,
		&entry.PerformedBy,
		&entry.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	// A corrupt details payload must not take the whole trail down; the
	// entry survives with empty details.
	entry.Details = map[string]any{}
	if len(detailsJSON) > 0 {
		var details map[string]any
		if err := json.Unmarshal(detailsJSON, &details); err == nil && details != nil {
			entry.Details = details
		}
	}
	return entry, nil
}
