package repository

import "time"

// ── Domain types for citizen reports ─────────────────────────────────────────

// Category classifies a report.
type Category string

const (
	CategoryTrash     Category = "TRASH"
	CategoryDamage    Category = "DAMAGE"
	CategoryVandalism Category = "VANDALISM"
	CategoryOther     Category = "OTHER"
)

// Categories lists all valid categories.
var Categories = []Category{CategoryTrash, CategoryDamage, CategoryVandalism, CategoryOther}

// Valid reports whether c is one of the enumerated categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryTrash, CategoryDamage, CategoryVandalism, CategoryOther:
		return true
	}
	return false
}

// Label returns the German display label used in public views and emails.
func (c Category) Label() string {
	switch c {
	case CategoryTrash:
		return "Müll"
	case CategoryDamage:
		return "Schäden an Infrastruktur"
	case CategoryVandalism:
		return "Vandalismus"
	case CategoryOther:
		return "Sonstiges"
	}
	return string(c)
}

// Status is the report lifecycle state.
type Status string

const (
	StatusSubmitted  Status = "SUBMITTED"
	StatusForwarded  Status = "FORWARDED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// Statuses lists all valid statuses.
var Statuses = []Status{StatusSubmitted, StatusForwarded, StatusInProgress, StatusDone}

// Valid reports whether s is one of the enumerated statuses. Any valid value
// is an acceptable transition target; forward progression is not enforced so
// admins can correct mistakes.
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusForwarded, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Label returns the German display label.
func (s Status) Label() string {
	switch s {
	case StatusSubmitted:
		return "Eingereicht"
	case StatusForwarded:
		return "Weitergeleitet"
	case StatusInProgress:
		return "In Bearbeitung"
	case StatusDone:
		return "Erledigt"
	}
	return string(s)
}

// Urgency is the submitter-declared urgency.
type Urgency string

const (
	UrgencyLow    Urgency = "LOW"
	UrgencyMedium Urgency = "MEDIUM"
	UrgencyHigh   Urgency = "HIGH"
)

// Valid reports whether u is one of the enumerated urgencies.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	}
	return false
}

// Report is one citizen submission.
type Report struct {
	ID           string    `json:"id"`
	TicketCode   string    `json:"ticket_code"` // public identifier, unique, immutable
	Category     Category  `json:"category"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Address      *string   `json:"address"` // filled by reverse geocoding, nil when unknown
	District     *string   `json:"district"`
	Comment      string    `json:"comment"`
	Urgency      Urgency   `json:"urgency"`
	ContactEmail *string   `json:"contact_email"`
	DeviceID     string    `json:"-"` // device identifiers never leave the service
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Photos       []*Photo  `json:"photos"`
}

// Photo is stored metadata for one attached photo. The binary itself lives in
// external storage; this service only tracks the reference.
type Photo struct {
	ID          string    `json:"id"`
	ReportID    string    `json:"report_id"`
	Filename    string    `json:"filename"`
	StoragePath string    `json:"storage_path"`
	MimeType    string    `json:"mime_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// ReportFilter narrows List queries. Nil fields are not applied.
// Limit <= 0 disables pagination (used by the export path).
type ReportFilter struct {
	Status   *Status
	Category *Category
	District *string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// RoutingRule is a dispatch instruction mapping (category, district) to a
// recipient authority. Matcher fields hold a concrete value or the wildcard.
type RoutingRule struct {
	ID             string    `json:"id"`
	Category       string    `json:"category"` // Category value or Wildcard
	District       string    `json:"district"` // district name or Wildcard
	RecipientName  string    `json:"recipient_name"`
	RecipientEmail string    `json:"recipient_email"`
	Priority       int       `json:"priority"` // higher wins
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AuditAction tags one kind of lifecycle event.
type AuditAction string

const (
	ActionCreated       AuditAction = "CREATED"
	ActionForwarded     AuditAction = "FORWARDED"
	ActionReforwarded   AuditAction = "REFORWARDED"
	ActionStatusChanged AuditAction = "STATUS_CHANGED"
)

// AuditEntry is one immutable record in a report's audit trail.
type AuditEntry struct {
	ID          string         `json:"id"`
	ReportID    string         `json:"report_id"`
	Action      AuditAction    `json:"action"`
	Details     map[string]any `json:"details"` // action-specific payload, stored as JSONB
	PerformedBy string         `json:"performed_by"`
	Timestamp   time.Time      `json:"timestamp"`
}
