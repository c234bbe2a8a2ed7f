package ops

import (
	"context"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/errors"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/presets"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/rules"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/services"
)

// GroupServicesInput contains parameters for the GroupServices operation.
type GroupServicesInput struct {
	Language string `json:"language"`
	Force    bool   `json:"force"`
}

// GroupServicesOutput contains the result of the GroupServices operation.
type GroupServicesOutput struct {
	Language   string              `json:"language"`
	Categories []services.Category `json:"categories"`
}

// GroupServices returns the consent categories of a language with their
// detected and manually declared services.
func GroupServices(ctx context.Context, env *Env, input GroupServicesInput) (*GroupServicesOutput, error) {
	lang, err := env.requireLanguage(ctx, input.Language)
	if err != nil {
		return nil, err
	}
	cats, err := env.Store.Categories(ctx)
	if err != nil {
		return nil, err
	}

	grouper := services.NewGrouper(services.DetectorFunc(func(ctx context.Context, force bool) ([]services.Service, error) {
		return env.detectServices(ctx, force)
	}), cats, services.WithCategoryFallback(env.Reconciler.Catalog().Category))
	resolved, err := grouper.Categories(ctx, input.Force, lang)
	if err != nil {
		return nil, err
	}
	return &GroupServicesOutput{Language: lang, Categories: resolved}, nil
}

// PresetsInput contains parameters for the Presets operation.
type PresetsInput struct {
	Slug string `json:"slug,omitempty"` // optional, single preset
}

// PresetsOutput contains the result of the Presets operation.
type PresetsOutput struct {
	Presets []presets.Preset `json:"presets"`
}

// Presets lists the preset catalog, or one preset by slug.
func Presets(_ context.Context, env *Env, input PresetsInput) (*PresetsOutput, error) {
	catalog := env.Reconciler.Catalog()
	if input.Slug == "" {
		return &PresetsOutput{Presets: catalog.All()}, nil
	}
	p, ok := catalog.Lookup(rules.SanitizeKey(input.Slug))
	if !ok {
		return nil, errors.NewNotFound("preset " + input.Slug)
	}
	return &PresetsOutput{Presets: []presets.Preset{p}}, nil
}
