package rule

import (
	"errors"
	"sort"
)

// ErrNoMatchingRule is returned when no active rule covers the expense.
// The caller decides the fallback policy; the matcher never invents a rule.
var ErrNoMatchingRule = errors.New("no matching approval rule")

// SelectRule picks the single applicable rule for an expense. Among active
// rules whose conditions all hold, the lowest priority value wins; ties are
// broken by earliest creation time, then by rule ID ascending, so the result
// is deterministic for a fixed rule set and expense snapshot.
func SelectRule(expense Expense, rules []ApprovalRule) (*ApprovalRule, error) {
	matches := make([]ApprovalRule, 0, len(rules))
	for _, r := range rules {
		if r.Active && Matches(r.Conditions, expense) {
			matches = append(matches, r)
		}
	}
	if len(matches) == 0 {
		return nil, ErrNoMatchingRule
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	selected := matches[0]
	return &selected, nil
}

// Matches reports whether every condition holds for the expense. The amount
// range has an inclusive minimum and an inclusive maximum when present; an
// absent maximum is unbounded. Empty category/department/role sets match all
// expenses, and an empty submitter set imposes no restriction.
func Matches(c Conditions, e Expense) bool {
	if e.Amount < c.MinAmount {
		return false
	}
	if c.MaxAmount != nil && e.Amount > *c.MaxAmount {
		return false
	}
	if len(c.Categories) > 0 && !contains(c.Categories, e.Category) {
		return false
	}
	if len(c.Departments) > 0 && !contains(c.Departments, e.Department) {
		return false
	}
	if len(c.Roles) > 0 && !contains(c.Roles, e.SubmitterRole) {
		return false
	}
	if len(c.Submitters) > 0 && !contains(c.Submitters, e.SubmitterID) {
		return false
	}
	return true
}
