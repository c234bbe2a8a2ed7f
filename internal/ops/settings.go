package ops

import (
	"context"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/services"
)

// SetLanguagesInput contains parameters for the SetLanguages operation.
type SetLanguagesInput struct {
	Languages []string `json:"languages"`
}

// LanguagesOutput lists the active languages.
type LanguagesOutput struct {
	Languages []string `json:"languages"`
}

// Languages returns the active languages.
func Languages(ctx context.Context, env *Env) (*LanguagesOutput, error) {
	langs, err := env.Store.Languages(ctx)
	if err != nil {
		return nil, err
	}
	return &LanguagesOutput{Languages: langs}, nil
}

// SetLanguages replaces the active languages.
func SetLanguages(ctx context.Context, env *Env, input SetLanguagesInput) (*LanguagesOutput, error) {
	langs, err := env.Store.SetLanguages(ctx, input.Languages)
	if err != nil {
		return nil, err
	}
	env.Logger.Info("languages updated", "languages", langs)
	return &LanguagesOutput{Languages: langs}, nil
}

// SetCategoriesInput contains parameters for the SetCategories operation.
type SetCategoriesInput struct {
	Categories []services.CategoryMeta `json:"categories"`
}

// CategoriesOutput lists the stored category metadata.
type CategoriesOutput struct {
	Categories []services.CategoryMeta `json:"categories"`
}

// Categories returns the stored category metadata.
func Categories(ctx context.Context, env *Env) (*CategoriesOutput, error) {
	cats, err := env.Store.Categories(ctx)
	if err != nil {
		return nil, err
	}
	return &CategoriesOutput{Categories: cats}, nil
}

// SetCategories replaces the category metadata, including manual services.
func SetCategories(ctx context.Context, env *Env, input SetCategoriesInput) (*CategoriesOutput, error) {
	cats, err := env.Store.SetCategories(ctx, input.Categories)
	if err != nil {
		return nil, err
	}
	env.Logger.Info("categories updated", "count", len(cats))
	return &CategoriesOutput{Categories: cats}, nil
}
