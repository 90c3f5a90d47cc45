package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/stadtportal/be-mm-reports/internal/platform/apperrors"
	"github.com/stadtportal/be-mm-reports/internal/platform/database"
)

// RoutingRuleRepository handles CRUD and matching for routing_rules.
type RoutingRuleRepository struct {
	db *database.DB
}

// NewRoutingRuleRepository creates a new RoutingRuleRepository.
func NewRoutingRuleRepository(db *database.DB) *RoutingRuleRepository {
	return &RoutingRuleRepository{db: db}
}

// defaultRules is the seed set installed on first start. The category-specific
// rules outrank the OTHER rule, and the wildcard/wildcard Zentrale rule is the
// last-resort fallback.
var defaultRules = []*RoutingRule{
	{Category: "TRASH", District: Wildcard, RecipientName: "Müllabfuhr", RecipientEmail: "muell@stadt.example.de", Priority: 10, IsActive: true},
	{Category: "DAMAGE", District: Wildcard, RecipientName: "Straßenbauamt", RecipientEmail: "strassenbau@stadt.example.de", Priority: 10, IsActive: true},
	{Category: "VANDALISM", District: Wildcard, RecipientName: "Ordnungsamt", RecipientEmail: "ordnung@stadt.example.de", Priority: 10, IsActive: true},
	{Category: "OTHER", District: Wildcard, RecipientName: "Bürgerbüro", RecipientEmail: "buergerbuero@stadt.example.de", Priority: 5, IsActive: true},
	{Category: Wildcard, District: Wildcard, RecipientName: "Zentrale", RecipientEmail: "zentrale@stadt.example.de", Priority: 0, IsActive: true},
}

// Create inserts a new routing rule.
func (r *RoutingRuleRepository) Create(ctx context.Context, rule *RoutingRule) error {
	query := `
		INSERT INTO routing_rules
		    (category, district, recipient_name, recipient_email, priority, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		rule.Category,
		rule.District,
		rule.RecipientName,
		rule.RecipientEmail,
		rule.Priority,
		rule.IsActive,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create routing rule")
	}
	return nil
}

// GetByID retrieves a rule by primary key.
func (r *RoutingRuleRepository) GetByID(ctx context.Context, id string) (*RoutingRule, error) {
	query := `
		SELECT id, category, district, recipient_name, recipient_email,
		       priority, is_active, created_at, updated_at
		FROM routing_rules
		WHERE id = $1
	`

	rule, err := scanRule(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("routing_rule", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get routing rule")
	}
	return rule, nil
}

// List returns all rules, optionally filtered to active only, ordered by
// priority (highest first) then category and district.
func (r *RoutingRuleRepository) List(ctx context.Context, activeOnly bool) ([]*RoutingRule, error) {
	query := `
		SELECT id, category, district, recipient_name, recipient_email,
		       priority, is_active, created_at, updated_at
		FROM routing_rules
	`
	if activeOnly {
		query += " WHERE is_active = TRUE"
	}
	query += " ORDER BY priority DESC, category ASC, district ASC"

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list routing rules")
	}
	defer rows.Close()

	var rules []*RoutingRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan routing rule")
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// FindMatching loads the active rule set and selects the best match for the
// given category and district. Returns nil (no error) when nothing matches;
// callers treat that as "no forwarding possible".
func (r *RoutingRuleRepository) FindMatching(ctx context.Context, category Category, district *string) (*RoutingRule, error) {
	// Load all active rules and evaluate in Go to keep SQL simple.
	rules, err := r.List(ctx, true)
	if err != nil {
		return nil, err
	}
	return BestMatch(rules, category, district), nil
}

// Update persists changes to an existing rule.
func (r *RoutingRuleRepository) Update(ctx context.Context, rule *RoutingRule) error {
	query := `
		UPDATE routing_rules
		SET category        = $2,
		    district        = $3,
		    recipient_name  = $4,
		    recipient_email = $5,
		    priority        = $6,
		    is_active       = $7,
		    updated_at      = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query,
		rule.ID,
		rule.Category,
		rule.District,
		rule.RecipientName,
		rule.RecipientEmail,
		rule.Priority,
		rule.IsActive,
	).Scan(&rule.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("routing_rule", rule.ID)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to update routing rule")
	}
	return nil
}

// Delete removes a routing rule. Historical audit entries keep the recipient
// by value, so deleting a rule never rewrites history.
func (r *RoutingRuleRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM routing_rules WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to delete routing rule")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("routing_rule", id)
	}
	return nil
}

// Count returns the total number of rules, active or not.
func (r *RoutingRuleRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM routing_rules`).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to count routing rules")
	}
	return count, nil
}

// SeedDefaults installs the default rule set when no rules exist yet.
// Returns true when seeding actually ran.
func (r *RoutingRuleRepository) SeedDefaults(ctx context.Context) (bool, error) {
	count, err := r.Count(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	for _, rule := range defaultRules {
		seeded := *rule
		if err := r.Create(ctx, &seeded); err != nil {
			return false, err
		}
	}
	return true, nil
}

// ── scan helpers ─────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*RoutingRule, error) {
	rule := &RoutingRule{}
	err := row.Scan(
		&rule.ID,
		&rule.Category,
		&rule.District,
		&rule.RecipientName,
		&rule.RecipientEmail,
		&rule.Priority,
		&rule.IsActive,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rule, nil
}
