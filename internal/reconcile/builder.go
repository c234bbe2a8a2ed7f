package reconcile

import (
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/presets"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/rules"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/services"
)

// BuildDefaults folds the presets of every detected service into its category.
//
// A service without a category takes the category of its preset. Services that
// are not currently detected, or have no preset, contribute nothing. The result
// has an entry for every category, empty when nothing matched.
func BuildDefaults(categories []string, detected []services.Service, catalog *presets.Catalog) rules.RuleSet {
	out := make(rules.RuleSet, len(categories))
	for _, cat := range categories {
		out[cat] = rules.Empty()
	}

	for _, s := range detected {
		if !s.Detected {
			continue
		}
		preset, ok := catalog.Lookup(rules.SanitizeKey(s.Slug))
		if !ok {
			continue
		}
		cat := rules.SanitizeKey(s.Category)
		if cat == "" {
			cat = rules.SanitizeKey(preset.Category)
		}
		current, ok := out[cat]
		if !ok {
			continue
		}
		out[cat] = rules.MergeWithDefaults(current, preset.Rules)
	}
	return out
}
