package metrics

import (
	"strings"

	"call-insights/internal/calls"
	"call-insights/internal/config"
)

// EffectiveFilter is the normalized, order-independent filter applied to every
// metric query. OnlyAgent and ExcludeAgents are mutually exclusive: a request
// that names an agent overrides the global exclusion list entirely, so that
// agent's calls are included even when globally excluded.
type EffectiveFilter struct {
	OnlyAgent     string
	ExcludeAgents map[string]struct{}
	TagTerms      []string
}

// ResolveFilter merges request-level overrides with the process-wide filter
// configuration.
//
// Precedence:
//   - onlyAgent set: exact-agent inclusion, global exclusions dropped.
//   - onlyAgent empty: every agent in cfg.ExcludeAgents is excluded.
//   - onlyTags set (comma- or pipe-separated): replaces cfg.DefaultOnlyTags.
//   - neither tags source present: no tag filtering.
//
// Absent or empty inputs resolve to "no restriction"; there are no error cases.
func ResolveFilter(onlyAgent, onlyTags string, cfg config.FilterConfig) EffectiveFilter {
	f := EffectiveFilter{OnlyAgent: strings.TrimSpace(onlyAgent)}

	if f.OnlyAgent == "" && len(cfg.ExcludeAgents) > 0 {
		f.ExcludeAgents = make(map[string]struct{}, len(cfg.ExcludeAgents))
		for _, a := range cfg.ExcludeAgents {
			a = strings.ToLower(strings.TrimSpace(a))
			if a != "" {
				f.ExcludeAgents[a] = struct{}{}
			}
		}
	}

	terms := splitTagTerms(onlyTags)
	if len(terms) == 0 {
		terms = normalizeTerms(cfg.DefaultOnlyTags)
	}
	f.TagTerms = terms

	return f
}

// Matches reports whether a call survives the filter.
//
// Agent comparison is case-insensitive. Calls with no agent name survive
// exclusion (they belong to no excluded agent) but never match an inclusion.
// Tag terms are OR-matched as case-insensitive substrings of the serialized
// tag text.
func (f EffectiveFilter) Matches(c calls.CallRecord) bool {
	if f.OnlyAgent != "" {
		if !strings.EqualFold(strings.TrimSpace(c.AgentName), f.OnlyAgent) {
			return false
		}
	} else if len(f.ExcludeAgents) > 0 && c.AgentName != "" {
		if _, excluded := f.ExcludeAgents[strings.ToLower(strings.TrimSpace(c.AgentName))]; excluded {
			return false
		}
	}

	if len(f.TagTerms) > 0 {
		tags := strings.ToLower(c.Tags)
		matched := false
		for _, term := range f.TagTerms {
			if strings.Contains(tags, term) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	return true
}

func splitTagTerms(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	raw = strings.ReplaceAll(raw, "|", ",")
	return normalizeTerms(strings.Split(raw, ","))
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := map[string]struct{}{}
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
