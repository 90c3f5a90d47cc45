package service

import (
	"context"
	"time"

	"github.com/stadtportal/be-mm-reports/internal/metrics"
	"github.com/stadtportal/be-mm-reports/internal/platform/apperrors"
	"github.com/stadtportal/be-mm-reports/internal/platform/logger"
	"github.com/stadtportal/be-mm-reports/internal/repository"
	"github.com/stadtportal/be-mm-reports/internal/ticket"
)

// ReportStore is the persistence surface for reports and photos.
type ReportStore interface {
	Create(ctx context.Context, report *repository.Report) error
	GetByID(ctx context.Context, id string) (*repository.Report, error)
	GetByTicketCode(ctx context.Context, ticketCode string) (*repository.Report, error)
	List(ctx context.Context, filter repository.ReportFilter) ([]*repository.Report, int64, error)
	UpdateStatus(ctx context.Context, id string, status repository.Status) error
	CountByDeviceSince(ctx context.Context, deviceID string, since time.Time) (int64, error)
	DeleteOldCompleted(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditStore is the append-only audit trail.
type AuditStore interface {
	Append(ctx context.Context, reportID string, action repository.AuditAction, details map[string]any, performedBy string) (*repository.AuditEntry, error)
	ListByReportID(ctx context.Context, reportID string) ([]*repository.AuditEntry, error)
	LastOf(ctx context.Context, reportID string, action repository.AuditAction) (*repository.AuditEntry, error)
}

// Notifier is the outbound notification collaborator. Delivery IDs starting
// with "demo-" mark simulated deliveries; both are valid outcomes.
type Notifier interface {
	SendReportNotification(ctx context.Context, report *repository.Report, recipientName, recipientEmail string) (deliveryID string, err error)
	SendStatusNotification(ctx context.Context, report *repository.Report, newStatus repository.Status) (deliveryID string, err error)
}

// maxTicketAttempts bounds regeneration retries on a ticket code collision.
const maxTicketAttempts = 3

// manualDeliveryID is recorded when a forward carries no email notification.
const manualDeliveryID = "manual"

// ReportService is the report lifecycle engine: the only component that
// mutates report status, and the writer of every audit entry.
type ReportService struct {
	reports  ReportStore
	routing  *RoutingService
	audit    AuditStore
	notifier Notifier
	log      *logger.Logger
}

// NewReportService creates a new ReportService.
func NewReportService(
	reports ReportStore,
	routing *RoutingService,
	audit AuditStore,
	notifier Notifier,
	log *logger.Logger,
) *ReportService {
	return &ReportService{
		reports:  reports,
		routing:  routing,
		audit:    audit,
		notifier: notifier,
		log:      log,
	}
}

// PhotoInput is the stored metadata for one uploaded photo.
type PhotoInput struct {
	Filename    string `json:"filename"`
	StoragePath string `json:"storage_path"`
	MimeType    string `json:"mime_type"`
	Size        int64  `json:"size"`
}

// CreateReportInput carries a new submission.
type CreateReportInput struct {
	Category     string
	Latitude     float64
	Longitude    float64
	Address      *string
	District     *string
	Comment      string
	Urgency      string
	ContactEmail *string
	DeviceID     string
	Photos       []PhotoInput
}

// ── Creation ─────────────────────────────────────────────────────────────────

// Create persists a new report with status SUBMITTED, appends the CREATED
// audit entry and kicks off automatic forwarding in the background. The
// submission succeeds regardless of whether forwarding does: delivery is
// fire-and-forget so submission latency never depends on the notification
// channel.
func (s *ReportService) Create(ctx context.Context, in *CreateReportInput) (*repository.Report, error) {
	category := repository.Category(in.Category)
	if !category.Valid() {
		return nil, apperrors.InvalidInput("category", "unknown category")
	}

	urgency := repository.Urgency(in.Urgency)
	if in.Urgency == "" {
		urgency = repository.UrgencyMedium
	} else if !urgency.Valid() {
		return nil, apperrors.InvalidInput("urgency", "unknown urgency")
	}

	if in.Comment == "" {
		return nil, apperrors.InvalidInput("comment", "comment is required")
	}
	if in.DeviceID == "" {
		return nil, apperrors.InvalidInput("device_id", "device ID is required")
	}

	report := &repository.Report{
		TicketCode:   ticket.Generate(category),
		Category:     category,
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		Address:      in.Address,
		District:     in.District,
		Comment:      in.Comment,
		Urgency:      urgency,
		ContactEmail: in.ContactEmail,
		DeviceID:     in.DeviceID,
		Status:       repository.StatusSubmitted,
	}
	for _, p := range in.Photos {
		report.Photos = append(report.Photos, &repository.Photo{
			Filename:    p.Filename,
			StoragePath: p.StoragePath,
			MimeType:    p.MimeType,
			Size:        p.Size,
		})
	}

	// Ticket uniqueness is a database constraint; a collision is retryable
	// by regenerating the random segment.
	for attempt := 1; ; attempt++ {
		err := s.reports.Create(ctx, report)
		if err == nil {
			break
		}
		if apperrors.Is(err, apperrors.ErrCodeConflict) && attempt < maxTicketAttempts {
			s.log.Warn().
				Str("ticket_code", report.TicketCode).
				Int("attempt", attempt).
				Msg("Ticket code collision, regenerating")
			report.TicketCode = ticket.Generate(category)
			continue
		}
		return nil, err
	}

	metrics.ReportsCreated.WithLabelValues(string(category)).Inc()

	if _, err := s.audit.Append(ctx, report.ID, repository.ActionCreated, map[string]any{
		"category":    string(category),
		"ticket_code": report.TicketCode,
	}, repository.ActorSystem); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("report_id", report.ID).
		Str("ticket_code", report.TicketCode).
		Str("category", string(category)).
		Str("urgency", string(urgency)).
		Int("photo_count", len(report.Photos)).
		Msg("Report created")

	// Snapshot before the forward starts so the caller always sees the
	// report as SUBMITTED.
	created, err := s.reports.GetByID(ctx, report.ID)
	if err != nil {
		return nil, err
	}

	// Forward in the background on a detached context so neither the
	// caller's deadline nor its cancellation reaches the forward path.
	bgCtx := context.WithoutCancel(ctx)
	go func() {
		if err := s.AutoForward(bgCtx, report.ID); err != nil {
			s.log.Error().Err(err).
				Str("ticket_code", report.TicketCode).
				Msg("Background forward failed")
		}
	}()

	return created, nil
}

// ── Forwarding ───────────────────────────────────────────────────────────────

// AutoForward resolves the routing rule for a report and forwards it. When no
// rule matches the report stays SUBMITTED and forwarding can be retried later;
// that is not an error. A notification failure aborts the forward with the
// status unchanged.
func (s *ReportService) AutoForward(ctx context.Context, reportID string) error {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return err
	}

	rule, err := s.routing.Resolve(ctx, report.Category, report.District)
	if err != nil {
		metrics.ForwardAttempts.WithLabelValues("error").Inc()
		return err
	}
	if rule == nil {
		metrics.ForwardAttempts.WithLabelValues("no_rule").Inc()
		s.log.Warn().
			Str("ticket_code", report.TicketCode).
			Str("category", string(report.Category)).
			Msg("No routing rule found, report stays SUBMITTED")
		return nil
	}

	deliveryID, err := s.notifier.SendReportNotification(ctx, report, rule.RecipientName, rule.RecipientEmail)
	if err != nil {
		metrics.ForwardAttempts.WithLabelValues("error").Inc()
		metrics.NotificationFailures.Inc()
		return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "report notification failed")
	}

	if err := s.reports.UpdateStatus(ctx, report.ID, repository.StatusForwarded); err != nil {
		return err
	}

	if _, err := s.audit.Append(ctx, report.ID, repository.ActionForwarded, map[string]any{
		"recipient_name":  rule.RecipientName,
		"recipient_email": rule.RecipientEmail,
		"delivery_id":     deliveryID,
	}, repository.ActorSystem); err != nil {
		return err
	}

	metrics.ForwardAttempts.WithLabelValues("forwarded").Inc()
	s.log.Info().
		Str("ticket_code", report.TicketCode).
		Str("recipient", rule.RecipientName).
		Str("delivery_id", deliveryID).
		Msg("Report forwarded")
	return nil
}

// ForwardManually forwards a report to an explicitly named authority,
// bypassing rule resolution. The authority name is required; an email
// address is optional and only triggers a notification when present.
func (s *ReportService) ForwardManually(ctx context.Context, reportID, authorityName, authorityEmail, comment, actor string) error {
	if authorityName == "" {
		return apperrors.InvalidInput("authority_name", "authority name is required")
	}

	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return err
	}

	deliveryID := manualDeliveryID
	if authorityEmail != "" {
		deliveryID, err = s.notifier.SendReportNotification(ctx, report, authorityName, authorityEmail)
		if err != nil {
			metrics.NotificationFailures.Inc()
			return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "report notification failed")
		}
	}

	if err := s.reports.UpdateStatus(ctx, report.ID, repository.StatusForwarded); err != nil {
		return err
	}

	if _, err := s.audit.Append(ctx, report.ID, repository.ActionForwarded, map[string]any{
		"recipient_name":  authorityName,
		"recipient_email": authorityEmail,
		"comment":         comment,
		"delivery_id":     deliveryID,
	}, actor); err != nil {
		return err
	}

	s.log.Info().
		Str("ticket_code", report.TicketCode).
		Str("recipient", authorityName).
		Str("actor", actor).
		Msg("Report forwarded manually")
	return nil
}

// Reforward sends a report to an authority again, resolving the routing rule
// when none is named. It records the re-forward fact in the audit trail but
// never touches the report status, so a report that already progressed past
// FORWARDED is not regressed.
func (s *ReportService) Reforward(ctx context.Context, reportID, reason, authorityName, authorityEmail, actor string) error {
	if reason == "" {
		return apperrors.InvalidInput("reason", "reforward reason is required")
	}

	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return err
	}

	recipientName := authorityName
	recipientEmail := authorityEmail
	if recipientName == "" {
		rule, err := s.routing.Resolve(ctx, report.Category, report.District)
		if err != nil {
			return err
		}
		if rule == nil {
			district := ""
			if report.District != nil {
				district = *report.District
			}
			return apperrors.NoRoutingRule(string(report.Category), district)
		}
		recipientName = rule.RecipientName
		recipientEmail = rule.RecipientEmail
	}

	deliveryID := manualDeliveryID
	if recipientEmail != "" {
		deliveryID, err = s.notifier.SendReportNotification(ctx, report, recipientName, recipientEmail)
		if err != nil {
			metrics.NotificationFailures.Inc()
			return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "report notification failed")
		}
	}

	if _, err := s.audit.Append(ctx, report.ID, repository.ActionReforwarded, map[string]any{
		"reason":          reason,
		"recipient_name":  recipientName,
		"recipient_email": recipientEmail,
		"delivery_id":     deliveryID,
	}, actor); err != nil {
		return err
	}

	s.log.Info().
		Str("ticket_code", report.TicketCode).
		Str("recipient", recipientName).
		Str("actor", actor).
		Msg("Report re-forwarded")
	return nil
}

// ── Status ───────────────────────────────────────────────────────────────────

// ChangeStatus sets a report to any of the enumerated statuses. Backwards
// transitions are allowed so admins can correct mistakes. When the report has
// a contact email and the status actually changed, the submitter is notified
// best-effort; delivery failures are logged, never propagated.
func (s *ReportService) ChangeStatus(ctx context.Context, reportID, newStatus, actor string) (*repository.Report, error) {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}

	status := repository.Status(newStatus)
	if !status.Valid() {
		return nil, apperrors.InvalidInput("status", "unknown status")
	}

	oldStatus := report.Status

	if err := s.reports.UpdateStatus(ctx, report.ID, status); err != nil {
		return nil, err
	}

	if _, err := s.audit.Append(ctx, report.ID, repository.ActionStatusChanged, map[string]any{
		"old_status": string(oldStatus),
		"new_status": string(status),
	}, actor); err != nil {
		return nil, err
	}

	metrics.StatusChanges.WithLabelValues(string(status)).Inc()
	s.log.Info().
		Str("ticket_code", report.TicketCode).
		Str("old_status", string(oldStatus)).
		Str("new_status", string(status)).
		Str("actor", actor).
		Msg("Report status changed")

	if report.ContactEmail != nil && oldStatus != status {
		bgCtx := context.WithoutCancel(ctx)
		go func() {
			if _, err := s.notifier.SendStatusNotification(bgCtx, report, status); err != nil {
				metrics.NotificationFailures.Inc()
				s.log.Error().Err(err).
					Str("ticket_code", report.TicketCode).
					Msg("Status notification failed")
			}
		}()
	}

	return s.reports.GetByID(ctx, report.ID)
}

// ── Reads ────────────────────────────────────────────────────────────────────

// PublicStatusView is the redacted view served to unauthenticated callers.
// It carries no internal identifiers and no audit detail.
type PublicStatusView struct {
	TicketCode    string    `json:"ticket_code"`
	Category      string    `json:"category"`
	CategoryLabel string    `json:"category_label"`
	Status        string    `json:"status"`
	StatusLabel   string    `json:"status_label"`
	ForwardedTo   *string   `json:"forwarded_to,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PublicStatus looks a report up by ticket code and returns the redacted
// public view, including the recipient name from the last forward, if any.
func (s *ReportService) PublicStatus(ctx context.Context, ticketCode string) (*PublicStatusView, error) {
	report, err := s.reports.GetByTicketCode(ctx, ticketCode)
	if err != nil {
		return nil, err
	}

	view := &PublicStatusView{
		TicketCode:    report.TicketCode,
		Category:      string(report.Category),
		CategoryLabel: report.Category.Label(),
		Status:        string(report.Status),
		StatusLabel:   report.Status.Label(),
		CreatedAt:     report.CreatedAt,
		UpdatedAt:     report.UpdatedAt,
	}

	entry, err := s.audit.LastOf(ctx, report.ID, repository.ActionForwarded)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		if name, ok := entry.Details["recipient_name"].(string); ok && name != "" {
			view.ForwardedTo = &name
		}
	}
	return view, nil
}

// GetReportDetails returns a report with photos and its full audit trail,
// newest entry first. Admin-only.
func (s *ReportService) GetReportDetails(ctx context.Context, reportID string) (*repository.Report, []*repository.AuditEntry, error) {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, nil, err
	}
	entries, err := s.audit.ListByReportID(ctx, report.ID)
	if err != nil {
		return nil, nil, err
	}
	return report, entries, nil
}

// ListReports returns reports matching the filter plus the total count.
func (s *ReportService) ListReports(ctx context.Context, filter repository.ReportFilter) ([]*repository.Report, int64, error) {
	return s.reports.List(ctx, filter)
}

// CountByDeviceSince backs the submission rate limit enforced at the HTTP
// boundary.
func (s *ReportService) CountByDeviceSince(ctx context.Context, deviceID string, since time.Time) (int64, error) {
	return s.reports.CountByDeviceSince(ctx, deviceID, since)
}

// ── Retention ────────────────────────────────────────────────────────────────

// SweepOldReports deletes DONE reports untouched for more than the given
// number of days. Photos and audit entries cascade with each report.
func (s *ReportService) SweepOldReports(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted, err := s.reports.DeleteOldCompleted(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.log.Info().
			Int64("deleted", deleted).
			Time("cutoff", cutoff).
			Msg("Retention sweep removed completed reports")
	}
	return deleted, nil
}
