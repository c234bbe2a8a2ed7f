package ops

import (
	"context"
	"sort"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/errors"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/rules"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/services"
)

// SaveRulesInput contains parameters for the SaveRules operation.
type SaveRulesInput struct {
	// Rules maps language -> category -> submitted entry.
	Rules map[string]map[string]rules.RawEntry `json:"rules"`
}

// SaveRulesOutput contains the result of the SaveRules operation.
type SaveRulesOutput struct {
	Languages []string      `json:"languages"`
	Managed   int           `json:"managed"`
	Custom    int           `json:"custom"`
	Rules     rules.Scripts `json:"rules"`
}

// SaveRules sanitizes an operator submission and stores it.
//
// Every submitted language must be active. Languages absent from the submission
// keep their stored rules; within a submitted language every category is
// rewritten and missing categories become empty entries.
func SaveRules(ctx context.Context, env *Env, input SaveRulesInput) (*SaveRulesOutput, error) {
	if len(input.Rules) == 0 {
		return nil, errors.NewInvalidRequest("rules is required")
	}

	submitted := make([]string, 0, len(input.Rules))
	payload := make(map[string]map[string]rules.RawEntry, len(input.Rules))
	for raw, set := range input.Rules {
		lang, err := env.requireLanguage(ctx, raw)
		if err != nil {
			return nil, err
		}
		if _, dup := payload[lang]; !dup {
			submitted = append(submitted, lang)
		}
		payload[lang] = sanitizeCategoryKeys(set)
	}
	sort.Strings(submitted)

	cats, err := env.Store.Categories(ctx)
	if err != nil {
		return nil, err
	}
	slugs := services.CategorySlugs(cats)

	var saved rules.Scripts
	_, err = env.Store.UpdateScripts(ctx, func(current rules.Scripts) (rules.Scripts, bool) {
		next := current.Clone()
		for lang, set := range env.Reconciler.SanitizePayload(payload, submitted, slugs, current) {
			next[lang] = set
		}
		saved = next
		return next, true
	})
	if err != nil {
		return nil, err
	}
	env.Metrics.RuleSaved()

	out := &SaveRulesOutput{Languages: submitted, Rules: saved}
	for _, lang := range submitted {
		for _, e := range saved[lang] {
			if e.Managed {
				out.Managed++
			} else if rules.HasValues(e) {
				out.Custom++
			}
		}
	}
	env.Logger.Info("rules saved", "languages", submitted, "managed", out.Managed, "custom", out.Custom)
	return out, nil
}

func sanitizeCategoryKeys(set map[string]rules.RawEntry) map[string]rules.RawEntry {
	out := make(map[string]rules.RawEntry, len(set))
	for cat, e := range set {
		if key := rules.SanitizeKey(cat); key != "" {
			out[key] = e
		}
	}
	return out
}

// PrimeRulesInput contains parameters for the PrimeRules operation.
type PrimeRulesInput struct {
	Force bool `json:"force"`
}

// PrimeRulesOutput contains the result of the PrimeRules operation.
type PrimeRulesOutput struct {
	Changed  bool `json:"changed"`
	Detected int  `json:"detected"`
}

// PrimeRules folds the presets of currently detected services into every
// stored entry the operator has not customized.
func PrimeRules(ctx context.Context, env *Env, input PrimeRulesInput) (*PrimeRulesOutput, error) {
	detected, err := env.detectServices(ctx, input.Force)
	if err != nil {
		return nil, err
	}
	changed, err := env.Store.PrimeRules(ctx, env.Reconciler, detected)
	if err != nil {
		return nil, err
	}
	if changed {
		env.Metrics.RulesPrimed()
	}
	return &PrimeRulesOutput{Changed: changed, Detected: len(detected)}, nil
}

// EffectiveRulesInput contains parameters for the EffectiveRules operation.
type EffectiveRulesInput struct {
	Language string `json:"language"`
	Force    bool   `json:"force"`
}

// EffectiveRulesOutput contains the result of the EffectiveRules operation.
type EffectiveRulesOutput struct {
	Language string        `json:"language"`
	Rules    rules.RuleSet `json:"rules"`
}

// EffectiveRules returns the rule set the blocking runtime enforces for a
// language: stored rules reconciled with the defaults of detected services.
func EffectiveRules(ctx context.Context, env *Env, input EffectiveRulesInput) (*EffectiveRulesOutput, error) {
	lang, err := env.requireLanguage(ctx, input.Language)
	if err != nil {
		return nil, err
	}
	detected, err := env.detectServices(ctx, input.Force)
	if err != nil {
		return nil, err
	}
	cats, err := env.Store.Categories(ctx)
	if err != nil {
		return nil, err
	}
	stored, err := env.Store.Scripts(ctx)
	if err != nil {
		return nil, err
	}

	effective := env.Reconciler.EffectiveRules(lang, services.CategorySlugs(cats), stored, detected)
	env.Metrics.RulesServed(lang)
	return &EffectiveRulesOutput{Language: lang, Rules: effective}, nil
}
