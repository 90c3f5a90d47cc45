package service

import (
	"context"

	"github.com/stadtportal/be-mm-reports/internal/platform/apperrors"
	"github.com/stadtportal/be-mm-reports/internal/platform/logger"
	"github.com/stadtportal/be-mm-reports/internal/repository"
)

// RuleStore is the persistence surface for routing rules. The pgx-backed
// repository is the real implementation; tests use an in-memory one.
type RuleStore interface {
	FindMatching(ctx context.Context, category repository.Category, district *string) (*repository.RoutingRule, error)
	List(ctx context.Context, activeOnly bool) ([]*repository.RoutingRule, error)
	GetByID(ctx context.Context, id string) (*repository.RoutingRule, error)
	Create(ctx context.Context, rule *repository.RoutingRule) error
	Update(ctx context.Context, rule *repository.RoutingRule) error
	Delete(ctx context.Context, id string) error
	SeedDefaults(ctx context.Context) (bool, error)
}

// RoutingService resolves forwarding targets and manages the rule set.
type RoutingService struct {
	rules RuleStore
	log   *logger.Logger
}

// NewRoutingService creates a new RoutingService.
func NewRoutingService(rules RuleStore, log *logger.Logger) *RoutingService {
	return &RoutingService{rules: rules, log: log}
}

// Resolve selects the best matching active rule for a category and district.
// Returns nil when no rule matches; that is a valid outcome, not an error.
func (s *RoutingService) Resolve(ctx context.Context, category repository.Category, district *string) (*repository.RoutingRule, error) {
	rule, err := s.rules.FindMatching(ctx, category, district)
	if err != nil {
		return nil, err
	}

	districtLabel := "unknown"
	if district != nil {
		districtLabel = *district
	}
	if rule != nil {
		s.log.Debug().
			Str("category", string(category)).
			Str("district", districtLabel).
			Str("recipient", rule.RecipientName).
			Msg("Routing rule resolved")
	} else {
		s.log.Debug().
			Str("category", string(category)).
			Str("district", districtLabel).
			Msg("No routing rule matched")
	}
	return rule, nil
}

// ListRules returns the rule set, optionally restricted to active rules.
func (s *RoutingService) ListRules(ctx context.Context, activeOnly bool) ([]*repository.RoutingRule, error) {
	return s.rules.List(ctx, activeOnly)
}

// RuleInput carries the admin-editable fields of a routing rule.
type RuleInput struct {
	Category       string `json:"category"`
	District       string `json:"district"`
	RecipientName  string `json:"recipient_name"`
	RecipientEmail string `json:"recipient_email"`
	Priority       int    `json:"priority"`
	IsActive       *bool  `json:"is_active"`
}

func (in *RuleInput) validate() error {
	if in.Category != repository.Wildcard && !repository.Category(in.Category).Valid() {
		return apperrors.InvalidInput("category", "must be a known category or the wildcard")
	}
	if in.District == "" {
		return apperrors.InvalidInput("district", "must be a district name or the wildcard")
	}
	if in.RecipientName == "" {
		return apperrors.InvalidInput("recipient_name", "recipient name is required")
	}
	if in.RecipientEmail == "" {
		return apperrors.InvalidInput("recipient_email", "recipient address is required")
	}
	return nil
}

// CreateRule validates and persists a new routing rule.
func (s *RoutingService) CreateRule(ctx context.Context, in *RuleInput) (*repository.RoutingRule, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	rule := &repository.RoutingRule{
		Category:       in.Category,
		District:       in.District,
		RecipientName:  in.RecipientName,
		RecipientEmail: in.RecipientEmail,
		Priority:       in.Priority,
		IsActive:       in.IsActive == nil || *in.IsActive,
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("rule_id", rule.ID).
		Str("category", rule.Category).
		Str("district", rule.District).
		Str("recipient", rule.RecipientName).
		Int("priority", rule.Priority).
		Msg("Routing rule created")
	return rule, nil
}

// UpdateRule validates and applies changes to an existing rule. Historical
// forwards are unaffected; audit entries hold the recipient by value.
func (s *RoutingService) UpdateRule(ctx context.Context, id string, in *RuleInput) (*repository.RoutingRule, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	rule.Category = in.Category
	rule.District = in.District
	rule.RecipientName = in.RecipientName
	rule.RecipientEmail = in.RecipientEmail
	rule.Priority = in.Priority
	if in.IsActive != nil {
		rule.IsActive = *in.IsActive
	}

	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, err
	}

	s.log.Info().Str("rule_id", rule.ID).Msg("Routing rule updated")
	return rule, nil
}

// DeleteRule removes a rule.
func (s *RoutingService) DeleteRule(ctx context.Context, id string) error {
	if err := s.rules.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("rule_id", id).Msg("Routing rule deleted")
	return nil
}

// SeedDefaults installs the default rule set on first start; a no-op when
// any rule already exists.
func (s *RoutingService) SeedDefaults(ctx context.Context) error {
	seeded, err := s.rules.SeedDefaults(ctx)
	if err != nil {
		return err
	}
	if seeded {
		s.log.Info().Msg("Seeded default routing rules")
	}
	return nil
}
