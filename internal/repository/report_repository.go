package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stadtportal/be-mm-reports/internal/platform/apperrors"
	"github.com/stadtportal/be-mm-reports/internal/platform/database"
)

// pgUniqueViolation is the Postgres error code for unique constraint hits.
const pgUniqueViolation = "23505"

// ReportRepository handles report and photo data operations.
type ReportRepository struct {
	db *database.DB
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(db *database.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a report and its photos in one transaction. A ticket code
// collision surfaces as a Conflict error so the caller can regenerate and
// retry; uniqueness is enforced by the database, not an in-process lock,
// because multiple instances generate codes concurrently.
func (r *ReportRepository) Create(ctx context.Context, report *Report) error {
	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO reports (ticket_code, category, latitude, longitude,
			                     address, district, comment, urgency,
			                     contact_email, device_id, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id, created_at, updated_at
		`

		err := tx.QueryRow(ctx, query,
			report.TicketCode,
			string(report.Category),
			report.Latitude,
			report.Longitude,
			report.Address,
			report.District,
			report.Comment,
			string(report.Urgency),
			report.ContactEmail,
			report.DeviceID,
			string(report.Status),
		).Scan(&report.ID, &report.CreatedAt, &report.UpdatedAt)
		if err != nil {
			return err
		}

		photoQuery := `
			INSERT INTO photos (report_id, filename, storage_path, mime_type, size)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`

		for _, photo := range report.Photos {
			photo.ReportID = report.ID
			err := tx.QueryRow(ctx, photoQuery,
				photo.ReportID,
				photo.Filename,
				photo.StoragePath,
				photo.MimeType,
				photo.Size,
			).Scan(&photo.ID, &photo.CreatedAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperrors.Conflict(fmt.Sprintf("ticket code %q already exists", report.TicketCode))
		}
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create report")
	}
	return nil
}

// GetByID retrieves a report with its photos by internal ID.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*Report, error) {
	return r.getOne(ctx, "id", id)
}

// GetByTicketCode retrieves a report with its photos by public ticket code.
func (r *ReportRepository) GetByTicketCode(ctx context.Context, ticketCode string) (*Report, error) {
	return r.getOne(ctx, "ticket_code", ticketCode)
}

func (r *ReportRepository) getOne(ctx context.Context, column, value string) (*Report, error) {
	query := fmt.Sprintf(`
		SELECT id, ticket_code, category, latitude, longitude,
		       address, district, comment, urgency,
		       contact_email, device_id, status, created_at, updated_at
		FROM reports
		WHERE %s = $1
	`, column)

	report, err := scanReport(r.db.QueryRow(ctx, query, value))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("report", value)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get report")
	}

	photos, err := r.getPhotos(ctx, report.ID)
	if err != nil {
		return nil, err
	}
	report.Photos = photos
	return report, nil
}

func (r *ReportRepository) getPhotos(ctx context.Context, reportID string) ([]*Photo, error) {
	query := `
		SELECT id, report_id, filename, storage_path, mime_type, size, created_at
		FROM photos
		WHERE report_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.Query(ctx, query, reportID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get photos")
	}
	defer rows.Close()

	photos := make([]*Photo, 0)
	for rows.Next() {
		photo := &Photo{}
		err := rows.Scan(
			&photo.ID,
			&photo.ReportID,
			&photo.Filename,
			&photo.StoragePath,
			&photo.MimeType,
			&photo.Size,
			&photo.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan photo")
		}
		photos = append(photos, photo)
	}
	return photos, rows.Err()
}

// List retrieves reports matching the filter, newest first, with the total
// count for pagination. Photos are not loaded on the list path.
func (r *ReportRepository) List(ctx context.Context, filter ReportFilter) ([]*Report, int64, error) {
	query := `
		SELECT id, ticket_code, category, latitude, longitude,
		       address, district, comment, urgency,
		       contact_email, device_id, status, created_at, updated_at
		FROM reports
		WHERE 1=1
	`
	countQuery := `SELECT COUNT(*) FROM reports WHERE 1=1`

	args := []any{}
	argCount := 1

	addFilter := func(clause string, value any) {
		cond := fmt.Sprintf(clause, argCount)
		query += cond
		countQuery += cond
		args = append(args, value)
		argCount++
	}

	if filter.Status != nil {
		addFilter(" AND status = $%d", string(*filter.Status))
	}
	if filter.Category != nil {
		addFilter(" AND category = $%d", string(*filter.Category))
	}
	if filter.District != nil {
		addFilter(" AND district = $%d", *filter.District)
	}
	if filter.From != nil {
		addFilter(" AND created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		addFilter(" AND created_at <= $%d", *filter.To)
	}

	query += " ORDER BY created_at DESC, id DESC"

	queryArgs := args
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1)
		queryArgs = append(append([]any{}, args...), filter.Limit, filter.Offset)
	}

	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to count reports")
	}

	rows, err := r.db.Query(ctx, query, queryArgs...)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list reports")
	}
	defer rows.Close()

	reports := make([]*Report, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, 0, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan report")
		}
		reports = append(reports, report)
	}
	return reports, total, rows.Err()
}

// UpdateStatus sets a report's status. Any enumerated value is a valid
// target; progression is not enforced here.
func (r *ReportRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	query := `
		UPDATE reports
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, string(status)).Scan(&returnedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("report", id)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to update report status")
	}
	return nil
}

// CountByDeviceSince counts reports a device submitted after the given
// instant. Backs the submission rate limit.
func (r *ReportRepository) CountByDeviceSince(ctx context.Context, deviceID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM reports WHERE device_id = $1 AND created_at >= $2`,
		deviceID, since,
	).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to count reports for device")
	}
	return count, nil
}

// DeleteOldCompleted removes DONE reports last updated before the cutoff.
// Photos and audit entries cascade with the report.
func (r *ReportRepository) DeleteOldCompleted(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM reports WHERE status = $1 AND updated_at < $2`,
		string(StatusDone), cutoff,
	)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to delete old reports")
	}
	return tag.RowsAffected(), nil
}

func scanReport(sc rowScanner) (*Report, error) {
	report := &Report{}
	err := sc.Scan(
		&report.ID,
		&report.TicketCode,
		&report.Category,
		&report.Latitude,
		&report.Longitude,
		&report.Address,
		&report.District,
		&report.Comment,
		&report.Urgency,
		&report.ContactEmail,
		&report.DeviceID,
		&report.Status,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return report, nil
}
