package repository

// Wildcard matches any value in a rule's category or district field.
const Wildcard = "*"

// Matches reports whether the rule applies to the given category and
// district. An unknown district (nil) only satisfies a wildcard matcher.
func (r *RoutingRule) Matches(category Category, district *string) bool {
	if r.Category != Wildcard && r.Category != string(category) {
		return false
	}
	if r.District != Wildcard {
		if district == nil || *district != r.District {
			return false
		}
	}
	return true
}

// Specificity scores how concrete a rule's matchers are: 2 points for a
// non-wildcard category, 1 for a non-wildcard district.
func (r *RoutingRule) Specificity() int {
	score := 0
	if r.Category != Wildcard {
		score += 2
	}
	if r.District != Wildcard {
		score += 1
	}
	return score
}

// BestMatch selects the matching rule from a candidate set: highest priority
// first, then highest specificity, then lowest ID. The ID tiebreak makes
// resolution deterministic for a fixed rule set regardless of input order.
// Inactive rules are skipped. Returns nil when nothing matches.
func BestMatch(rules []*RoutingRule, category Category, district *string) *RoutingRule {
	var best *RoutingRule
	for _, rule := range rules {
		if !rule.IsActive || !rule.Matches(category, district) {
			continue
		}
		if best == nil || betterRule(rule, best) {
			best = rule
		}
	}
	return best
}

func betterRule(a, b *RoutingRule) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if sa, sb := a.Specificity(), b.Specificity(); sa != sb {
		return sa > sb
	}
	return a.ID < b.ID
}
