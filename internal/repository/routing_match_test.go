package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rule(id string, category, district string, priority int) *RoutingRule {
	return &RoutingRule{
		ID:             id,
		Category:       category,
		District:       district,
		RecipientName:  "Amt " + id,
		RecipientEmail: id + "@stadt.example.de",
		Priority:       priority,
		IsActive:       true,
	}
}

func ptr(s string) *string { return &s }

func TestRoutingRuleMatches(t *testing.T) {
	t.Run("exact category and district", func(t *testing.T) {
		r := rule("a", "TRASH", "Mitte", 0)
		assert.True(t, r.Matches(CategoryTrash, ptr("Mitte")))
		assert.False(t, r.Matches(CategoryTrash, ptr("Nord")))
		assert.False(t, r.Matches(CategoryDamage, ptr("Mitte")))
	})

	t.Run("wildcards match anything", func(t *testing.T) {
		r := rule("a", Wildcard, Wildcard, 0)
		assert.True(t, r.Matches(CategoryTrash, ptr("Mitte")))
		assert.True(t, r.Matches(CategoryOther, nil))
	})

	t.Run("nil district only satisfies a wildcard matcher", func(t *testing.T) {
		concrete := rule("a", "TRASH", "Mitte", 0)
		wildcard := rule("b", "TRASH", Wildcard, 0)
		assert.False(t, concrete.Matches(CategoryTrash, nil))
		assert.True(t, wildcard.Matches(CategoryTrash, nil))
	})
}

func TestSpecificity(t *testing.T) {
	assert.Equal(t, 3, rule("a", "TRASH", "Mitte", 0).Specificity())
	assert.Equal(t, 2, rule("b", "TRASH", Wildcard, 0).Specificity())
	assert.Equal(t, 1, rule("c", Wildcard, "Mitte", 0).Specificity())
	assert.Equal(t, 0, rule("d", Wildcard, Wildcard, 0).Specificity())
}

func TestBestMatch(t *testing.T) {
	t.Run("highest priority wins", func(t *testing.T) {
		rules := []*RoutingRule{
			rule("low", "TRASH", Wildcard, 1),
			rule("high", "TRASH", Wildcard, 10),
		}
		best := BestMatch(rules, CategoryTrash, nil)
		require.NotNil(t, best)
		assert.Equal(t, "high", best.ID)
	})

	t.Run("specificity breaks priority ties", func(t *testing.T) {
		rules := []*RoutingRule{
			rule("generic", Wildcard, Wildcard, 5),
			rule("specific", "TRASH", "Mitte", 5),
		}
		best := BestMatch(rules, CategoryTrash, ptr("Mitte"))
		require.NotNil(t, best)
		assert.Equal(t, "specific", best.ID)
	})

	t.Run("lowest ID breaks full ties deterministically", func(t *testing.T) {
		a := rule("aaa", "TRASH", Wildcard, 5)
		b := rule("bbb", "TRASH", Wildcard, 5)

		best := BestMatch([]*RoutingRule{a, b}, CategoryTrash, nil)
		require.NotNil(t, best)
		assert.Equal(t, "aaa", best.ID)

		// Input order must not change the winner.
		best = BestMatch([]*RoutingRule{b, a}, CategoryTrash, nil)
		require.NotNil(t, best)
		assert.Equal(t, "aaa", best.ID)
	})

	t.Run("inactive rules are skipped", func(t *testing.T) {
		inactive := rule("inactive", "TRASH", Wildcard, 10)
		inactive.IsActive = false
		fallback := rule("fallback", Wildcard, Wildcard, 0)

		best := BestMatch([]*RoutingRule{inactive, fallback}, CategoryTrash, nil)
		require.NotNil(t, best)
		assert.Equal(t, "fallback", best.ID)
	})

	t.Run("returns nil when nothing matches", func(t *testing.T) {
		rules := []*RoutingRule{rule("a", "TRASH", "Mitte", 10)}
		assert.Nil(t, BestMatch(rules, CategoryVandalism, ptr("Nord")))
		assert.Nil(t, BestMatch(nil, CategoryTrash, nil))
	})

	t.Run("default rule set routes by category with a catch-all", func(t *testing.T) {
		rules := []*RoutingRule{
			rule("1", "TRASH", Wildcard, 10),
			rule("2", "DAMAGE", Wildcard, 10),
			rule("3", "VANDALISM", Wildcard, 10),
			rule("4", "OTHER", Wildcard, 5),
			rule("5", Wildcard, Wildcard, 0),
		}

		best := BestMatch(rules, CategoryDamage, ptr("Mitte"))
		require.NotNil(t, best)
		assert.Equal(t, "2", best.ID)

		best = BestMatch(rules, CategoryOther, nil)
		require.NotNil(t, best)
		assert.Equal(t, "4", best.ID)
	})

	t.Run("district rule outranks category-wide rule of equal priority", func(t *testing.T) {
		rules := []*RoutingRule{
			rule("city", "DAMAGE", Wildcard, 10),
			rule("district", "DAMAGE", "Altstadt", 10),
		}

		best := BestMatch(rules, CategoryDamage, ptr("Altstadt"))
		require.NotNil(t, best)
		assert.Equal(t, "district", best.ID)

		// Outside the district the city-wide rule still applies.
		best = BestMatch(rules, CategoryDamage, ptr("Hafen"))
		require.NotNil(t, best)
		assert.Equal(t, "city", best.ID)
	})
}
