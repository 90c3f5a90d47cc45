package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stadtportal/be-mm-reports/internal/platform/apperrors"
	"github.com/stadtportal/be-mm-reports/internal/platform/logger"
	"github.com/stadtportal/be-mm-reports/internal/repository"
)

func newRoutingFixture(rules ...*repository.RoutingRule) (*RoutingService, *fakeRuleStore) {
	store := &fakeRuleStore{rules: rules}
	return NewRoutingService(store, logger.New(logger.Config{Level: "disabled"})), store
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("picks the category rule over the catch-all", func(t *testing.T) {
		svc, _ := newRoutingFixture(defaultRules()...)

		rule, err := svc.Resolve(ctx, repository.CategoryTrash, nil)
		require.NoError(t, err)
		require.NotNil(t, rule)
		assert.Equal(t, "Müllabfuhr", rule.RecipientName)
	})

	t.Run("falls back to the catch-all for unmatched categories", func(t *testing.T) {
		svc, _ := newRoutingFixture(
			&repository.RoutingRule{ID: "r1", Category: "TRASH", District: "*", RecipientName: "Müllabfuhr", RecipientEmail: "m@s.de", Priority: 10, IsActive: true},
			&repository.RoutingRule{ID: "r2", Category: "*", District: "*", RecipientName: "Zentrale", RecipientEmail: "z@s.de", Priority: 0, IsActive: true},
		)

		rule, err := svc.Resolve(ctx, repository.CategoryVandalism, nil)
		require.NoError(t, err)
		require.NotNil(t, rule)
		assert.Equal(t, "Zentrale", rule.RecipientName)
	})

	t.Run("returns nil without error when nothing matches", func(t *testing.T) {
		svc, _ := newRoutingFixture()

		rule, err := svc.Resolve(ctx, repository.CategoryTrash, nil)
		require.NoError(t, err)
		assert.Nil(t, rule)
	})
}

func TestRuleAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an active rule by default", func(t *testing.T) {
		svc, store := newRoutingFixture()

		rule, err := svc.CreateRule(ctx, &RuleInput{
			Category:       "TRASH",
			District:       "Mitte",
			RecipientName:  "Müllabfuhr Mitte",
			RecipientEmail: "muell-mitte@stadt.example.de",
			Priority:       20,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, rule.ID)
		assert.True(t, rule.IsActive)
		assert.Len(t, store.rules, 1)
	})

	t.Run("validates rule input", func(t *testing.T) {
		svc, _ := newRoutingFixture()

		cases := []struct {
			name string
			in   RuleInput
		}{
			{"unknown category", RuleInput{Category: "NOISE", District: "*", RecipientName: "x", RecipientEmail: "x@s.de"}},
			{"empty district", RuleInput{Category: "*", District: "", RecipientName: "x", RecipientEmail: "x@s.de"}},
			{"empty recipient name", RuleInput{Category: "*", District: "*", RecipientEmail: "x@s.de"}},
			{"empty recipient email", RuleInput{Category: "*", District: "*", RecipientName: "x"}},
		}
		for _, tc := range cases {
			_, err := svc.CreateRule(ctx, &tc.in)
			assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidInput), tc.name)
		}
	})

	t.Run("accepts the wildcard category", func(t *testing.T) {
		svc, _ := newRoutingFixture()

		rule, err := svc.CreateRule(ctx, &RuleInput{
			Category:       "*",
			District:       "*",
			RecipientName:  "Zentrale",
			RecipientEmail: "zentrale@stadt.example.de",
		})
		require.NoError(t, err)
		assert.Equal(t, repository.Wildcard, rule.Category)
	})

	t.Run("updates change resolution immediately", func(t *testing.T) {
		svc, _ := newRoutingFixture(defaultRules()...)

		inactive := false
		_, err := svc.UpdateRule(ctx, "rule-001", &RuleInput{
			Category:       "TRASH",
			District:       "*",
			RecipientName:  "Müllabfuhr",
			RecipientEmail: "muell@stadt.example.de",
			Priority:       10,
			IsActive:       &inactive,
		})
		require.NoError(t, err)

		rule, err := svc.Resolve(ctx, repository.CategoryTrash, nil)
		require.NoError(t, err)
		require.NotNil(t, rule)
		assert.Equal(t, "Zentrale", rule.RecipientName)
	})

	t.Run("update of a missing rule returns NotFound", func(t *testing.T) {
		svc, _ := newRoutingFixture()

		_, err := svc.UpdateRule(ctx, "missing", &RuleInput{
			Category: "*", District: "*", RecipientName: "x", RecipientEmail: "x@s.de",
		})
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
	})

	t.Run("deleted rules stop matching", func(t *testing.T) {
		svc, _ := newRoutingFixture(
			&repository.RoutingRule{ID: "r1", Category: "TRASH", District: "*", RecipientName: "Müllabfuhr", RecipientEmail: "m@s.de", Priority: 10, IsActive: true},
		)

		require.NoError(t, svc.DeleteRule(ctx, "r1"))

		rule, err := svc.Resolve(ctx, repository.CategoryTrash, nil)
		require.NoError(t, err)
		assert.Nil(t, rule)
	})
}
