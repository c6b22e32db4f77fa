// Package rules resolves merchants and categories for extracted statement rows.
//
// The engine never reads the rule store directly. Callers load alias rules,
// category rules and overrides once, build an immutable Snapshot, and hand it
// to the resolver for the duration of a pass. Newly learned rules come back as
// return values; persisting them is the caller's job.
package rules

import (
	"regexp"
	"strings"

	"statement-ledger/internal/models"
	"statement-ledger/pkg/logger"
)

type compiledAlias struct {
	rule    models.AliasRule
	pattern string
	re      *regexp.Regexp
}

func (a compiledAlias) matches(lowerDescriptor string) bool {
	switch a.rule.Mode {
	case models.AliasStartsWith:
		return strings.HasPrefix(lowerDescriptor, a.pattern)
	case models.AliasRegex:
		return a.re.MatchString(lowerDescriptor)
	default:
		return strings.Contains(lowerDescriptor, a.pattern)
	}
}

// Snapshot is a read-only view of the rule store for one pass
type Snapshot struct {
	aliases       []compiledAlias
	categoryRules map[string]models.CategoryRule
	overrides     map[models.OverrideKey]string

	// Pruned lists the weak token rules discarded while loading
	Pruned []models.CategoryRule
	// Rejected lists alias rules that failed validation or did not compile
	Rejected []models.AliasRule
}

// NewSnapshot builds a snapshot. Weak token rules are pruned and broken alias
// rules skipped rather than failing the pass. When a key appears more than
// once the later rule wins.
func NewSnapshot(aliases []models.AliasRule, categoryRules []models.CategoryRule, overrides []models.Override) *Snapshot {
	log := logger.WithComponent("rules")
	s := &Snapshot{
		categoryRules: make(map[string]models.CategoryRule, len(categoryRules)),
		overrides:     make(map[models.OverrideKey]string, len(overrides)),
	}

	for _, rule := range aliases {
		if err := rule.Validate(); err != nil {
			log.WithError(err).WithField("pattern", rule.Pattern).Warn("Skipping invalid alias rule")
			s.Rejected = append(s.Rejected, rule)
			continue
		}
		compiled := compiledAlias{rule: rule, pattern: strings.ToLower(rule.Pattern)}
		if rule.Mode == models.AliasRegex {
			re, err := regexp.Compile("(?i)" + rule.Pattern)
			if err != nil {
				log.WithError(err).WithField("pattern", rule.Pattern).Warn("Skipping alias rule with bad regex")
				s.Rejected = append(s.Rejected, rule)
				continue
			}
			compiled.re = re
		}
		s.aliases = append(s.aliases, compiled)
	}

	for _, rule := range categoryRules {
		if IsWeakKey(rule.Key) {
			s.Pruned = append(s.Pruned, rule)
			continue
		}
		if strings.TrimSpace(rule.Category) == "" {
			continue
		}
		s.categoryRules[rule.Key] = rule
	}

	for _, o := range overrides {
		s.overrides[o.OverrideKey] = o.Category
	}

	log.WithFields(logger.Fields{
		"aliases":   len(s.aliases),
		"rules":     len(s.categoryRules),
		"overrides": len(s.overrides),
		"pruned":    len(s.Pruned),
	}).Debug("Loaded rule snapshot")

	return s
}

// WithRules returns a new snapshot that also contains the given category rules
func (s *Snapshot) WithRules(rules []models.CategoryRule) *Snapshot {
	next := s.clone()
	for _, rule := range rules {
		if IsWeakKey(rule.Key) {
			continue
		}
		next.categoryRules[rule.Key] = rule
	}
	return next
}

// WithOverride returns a new snapshot that also contains the override
func (s *Snapshot) WithOverride(o models.Override) *Snapshot {
	next := s.clone()
	next.overrides[o.OverrideKey] = o.Category
	return next
}

func (s *Snapshot) clone() *Snapshot {
	next := &Snapshot{
		aliases:       s.aliases,
		categoryRules: make(map[string]models.CategoryRule, len(s.categoryRules)),
		overrides:     make(map[models.OverrideKey]string, len(s.overrides)),
		Pruned:        s.Pruned,
		Rejected:      s.Rejected,
	}
	for k, v := range s.categoryRules {
		next.categoryRules[k] = v
	}
	for k, v := range s.overrides {
		next.overrides[k] = v
	}
	return next
}

// CategoryRules returns the live category rules in no particular order
func (s *Snapshot) CategoryRules() []models.CategoryRule {
	out := make([]models.CategoryRule, 0, len(s.categoryRules))
	for _, r := range s.categoryRules {
		out = append(out, r)
	}
	return out
}

// Override looks up a user category override
func (s *Snapshot) Override(key models.OverrideKey) (string, bool) {
	c, ok := s.overrides[key]
	return c, ok
}

// MergeCategoryRules returns existing with learned rules replacing any rule
// that has the same key. Order of first appearance is kept.
func MergeCategoryRules(existing, learned []models.CategoryRule) []models.CategoryRule {
	index := make(map[string]int, len(existing))
	out := make([]models.CategoryRule, 0, len(existing)+len(learned))
	for _, r := range existing {
		if i, ok := index[r.Key]; ok {
			out[i] = r
			continue
		}
		index[r.Key] = len(out)
		out = append(out, r)
	}
	for _, r := range learned {
		if i, ok := index[r.Key]; ok {
			out[i] = r
			continue
		}
		index[r.Key] = len(out)
		out = append(out, r)
	}
	return out
}

// MergeOverrides returns existing with o added or replacing the same key
func MergeOverrides(existing []models.Override, o models.Override) []models.Override {
	out := make([]models.Override, 0, len(existing)+1)
	replaced := false
	for _, e := range existing {
		if e.OverrideKey == o.OverrideKey {
			out = append(out, o)
			replaced = true
			continue
		}
		out = append(out, e)
	}
	if !replaced {
		out = append(out, o)
	}
	return out
}
