package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/stadtportal/be-mm-reports/internal/repository"
)

// Notifier publishes report events for the downstream notification service,
// which renders and delivers the actual emails.
//
// Subject convention: notifications.mm.<event_type>
// Event types: report_forwarded, status_changed
//
// Without a NATS connection the notifier runs in simulated mode: deliveries
// are logged and acknowledged with a demo delivery ID. Demo mode is a normal
// operating mode, not an error path.
type Notifier struct {
	nc      *nats.Conn
	timeout time.Duration
	log     zerolog.Logger
}

// NewNotifier creates a notifier. A nil connection enables simulated mode.
func NewNotifier(nc *nats.Conn, timeout time.Duration, log zerolog.Logger) *Notifier {
	return &Notifier{
		nc:      nc,
		timeout: timeout,
		log:     log.With().Str("client", "notifier").Logger(),
	}
}

// reportEvent is the JSON payload for a forwarded report.
type reportEvent struct {
	DeliveryID     string  `json:"delivery_id"`
	TicketCode     string  `json:"ticket_code"`
	Category       string  `json:"category"`
	CategoryLabel  string  `json:"category_label"`
	Urgency        string  `json:"urgency"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Address        *string `json:"address,omitempty"`
	District       *string `json:"district,omitempty"`
	Comment        string  `json:"comment"`
	PhotoCount     int     `json:"photo_count"`
	ContactEmail   *string `json:"contact_email,omitempty"`
	RecipientName  string  `json:"recipient_name"`
	RecipientEmail string  `json:"recipient_email"`
	MapsURL        string  `json:"maps_url"`
	CreatedAt      string  `json:"created_at"`
}

// statusEvent is the JSON payload for a status update to the submitter.
type statusEvent struct {
	DeliveryID   string `json:"delivery_id"`
	TicketCode   string `json:"ticket_code"`
	NewStatus    string `json:"new_status"`
	StatusLabel  string `json:"status_label"`
	ContactEmail string `json:"contact_email"`
}

// SendReportNotification hands a forwarded report off to the notification
// channel and returns the delivery identifier recorded in the audit trail.
func (n *Notifier) SendReportNotification(ctx context.Context, report *repository.Report, recipientName, recipientEmail string) (string, error) {
	if n.nc == nil {
		n.log.Info().
			Str("ticket_code", report.TicketCode).
			Str("recipient", recipientEmail).
			Msg("Report notification simulated")
		return demoDeliveryID(), nil
	}

	event := reportEvent{
		DeliveryID:     uuid.NewString(),
		TicketCode:     report.TicketCode,
		Category:       string(report.Category),
		CategoryLabel:  report.Category.Label(),
		Urgency:        string(report.Urgency),
		Latitude:       report.Latitude,
		Longitude:      report.Longitude,
		Address:        report.Address,
		District:       report.District,
		Comment:        report.Comment,
		PhotoCount:     len(report.Photos),
		ContactEmail:   report.ContactEmail,
		RecipientName:  recipientName,
		RecipientEmail: recipientEmail,
		MapsURL:        fmt.Sprintf("https://www.google.com/maps?q=%f,%f", report.Latitude, report.Longitude),
		CreatedAt:      report.CreatedAt.Format(time.RFC3339),
	}

	if err := n.publish(ctx, "notifications.mm.report_forwarded", event); err != nil {
		return "", err
	}

	n.log.Debug().
		Str("ticket_code", report.TicketCode).
		Str("recipient", recipientEmail).
		Str("delivery_id", event.DeliveryID).
		Msg("Report notification published")
	return event.DeliveryID, nil
}

// SendStatusNotification notifies the submitter about a status change.
// Reports without a contact email are silently skipped.
func (n *Notifier) SendStatusNotification(ctx context.Context, report *repository.Report, newStatus repository.Status) (string, error) {
	if report.ContactEmail == nil || *report.ContactEmail == "" {
		return "", nil
	}

	if n.nc == nil {
		n.log.Info().
			Str("ticket_code", report.TicketCode).
			Str("new_status", string(newStatus)).
			Msg("Status notification simulated")
		return demoDeliveryID(), nil
	}

	event := statusEvent{
		DeliveryID:   uuid.NewString(),
		TicketCode:   report.TicketCode,
		NewStatus:    string(newStatus),
		StatusLabel:  newStatus.Label(),
		ContactEmail: *report.ContactEmail,
	}

	if err := n.publish(ctx, "notifications.mm.status_changed", event); err != nil {
		return "", err
	}
	return event.DeliveryID, nil
}

// publish marshals and publishes an event, flushing within the notifier's
// timeout so delivery time is bounded.
func (n *Notifier) publish(ctx context.Context, subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if err := n.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}
	return nil
}

func demoDeliveryID() string {
	return fmt.Sprintf("demo-%d", time.Now().UnixMilli())
}
