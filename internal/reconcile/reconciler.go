package reconcile

import (
	"sort"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/presets"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/rules"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/services"
)

// Reconciler decides which stored rule entries belong to the operator and which
// may be rewritten from presets.
type Reconciler struct {
	catalog *presets.Catalog
}

// New creates a Reconciler backed by catalog. A nil catalog uses the embedded one.
func New(catalog *presets.Catalog) *Reconciler {
	if catalog == nil {
		catalog = presets.Default()
	}
	return &Reconciler{catalog: catalog}
}

// Catalog returns the preset catalog in use.
func (r *Reconciler) Catalog() *presets.Catalog {
	return r.catalog
}

// Defaults builds the preset-derived rule set for categories.
func (r *Reconciler) Defaults(categories []string, detected []services.Service) rules.RuleSet {
	return BuildDefaults(categories, detected, r.catalog)
}

// SanitizePayload normalizes a full submission of rules for every language and
// category against the previously stored rules.
//
// An explicit managed flag in the submission wins. Without one, an entry stays
// managed only when it was managed before and its lists are unchanged; any edit
// hands the entry to the operator. A pair missing from the submission is stored empty.
func (r *Reconciler) SanitizePayload(raw map[string]map[string]rules.RawEntry, languages, categories []string, previous rules.Scripts) rules.Scripts {
	out := make(rules.Scripts, len(languages))
	for _, lang := range languages {
		set := make(rules.RuleSet, len(categories))
		for _, cat := range categories {
			submitted := raw[lang][cat]
			entry := rules.Normalize(submitted)
			prev := previous[lang][cat].Normalized()

			if flag, ok := rules.ManagedFlag(submitted); ok {
				entry.Managed = flag
			} else {
				entry.Managed = prev.Managed && rules.Equal(entry, prev)
			}
			set[cat] = entry
		}
		out[lang] = set
	}
	return out
}

// Prime folds the presets of detected services into every stored entry that is
// not an operator customization. It returns the full updated rules and true, or
// nil and false when no entry changed.
//
// Languages without a category list fall back to the categories already stored for them.
func (r *Reconciler) Prime(detected []services.Service, languages []string, existing rules.Scripts, categoriesPerLanguage map[string][]string) (rules.Scripts, bool) {
	out := existing.Clone()
	changed := false

	for _, lang := range languages {
		cats := categoriesPerLanguage[lang]
		if len(cats) == 0 {
			cats = storedCategories(existing[lang])
		}
		defaults := r.Defaults(cats, detected)

		set := out[lang]
		if set == nil {
			set = make(rules.RuleSet, len(cats))
		}
		for _, cat := range cats {
			current, stored := set[cat]
			if rules.HasCustomRules(current) {
				continue
			}
			current = current.Normalized()
			merged := rules.MergeWithDefaults(current, defaults[cat])
			if stored && rules.Equal(merged, current) && merged.Managed == current.Managed {
				continue
			}
			if !stored && !rules.HasValues(merged) && !merged.Managed {
				continue
			}
			set[cat] = merged
			out[lang] = set
			changed = true
		}
	}

	if !changed {
		return nil, false
	}
	return out, true
}

// Effective layers stored rules over defaults for one language. A customized
// stored entry replaces the default outright; a stored entry that only carries
// managed values is union-merged into the default; otherwise the default applies.
func Effective(categories []string, stored, defaults rules.RuleSet) rules.RuleSet {
	out := make(rules.RuleSet, len(categories))
	for _, cat := range categories {
		def, ok := defaults[cat]
		if !ok {
			def = rules.Empty()
		}
		s, ok := stored[cat]
		switch {
		case ok && rules.HasCustomRules(s):
			out[cat] = s.Clone()
		case ok && rules.HasValues(s):
			merged := rules.UnionMerge(def, s)
			merged.Managed = def.Managed || s.Managed
			out[cat] = merged
		default:
			out[cat] = def.Clone()
		}
	}
	return out
}

// EffectiveRules computes the defaults for lang from detected and layers the
// stored rules of lang over them.
func (r *Reconciler) EffectiveRules(lang string, categories []string, stored rules.Scripts, detected []services.Service) rules.RuleSet {
	return Effective(categories, stored[lang], r.Defaults(categories, detected))
}

func storedCategories(set rules.RuleSet) []string {
	out := make([]string, 0, len(set))
	for cat := range set {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}
