package services

import (
	"context"
	"sort"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/rules"
)

type groupKey struct {
	force bool
	lang  string
}

// Grouper merges detection output with manually configured services into
// category-keyed groups. A Grouper is meant to live for one request or run:
// results are cached per (force, language) for its lifetime.
type Grouper struct {
	detector   Detector
	categories []CategoryMeta
	fallback   func(slug string) string
	cache      map[groupKey]map[string][]Service
}

// GrouperOption configures a Grouper.
type GrouperOption func(*Grouper)

// WithCategoryFallback sets the category lookup used for detected services
// that report no category of their own.
func WithCategoryFallback(fn func(slug string) string) GrouperOption {
	return func(g *Grouper) { g.fallback = fn }
}

// NewGrouper creates a Grouper over the given detector and stored category metadata.
func NewGrouper(detector Detector, categories []CategoryMeta, opts ...GrouperOption) *Grouper {
	g := &Grouper{
		detector:   detector,
		categories: categories,
		cache:      make(map[groupKey]map[string][]Service),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IdentityKey returns the grouping key of s: the sanitized slug, or the slugified name.
func IdentityKey(s Service) string {
	if slug := rules.SanitizeKey(s.Slug); slug != "" {
		return slug
	}
	return Slugify(s.Name)
}

// Group returns services keyed by category for lang.
//
// Only detection entries flagged Detected are kept; within a category the first
// occurrence of a key wins. Manual services from the category metadata are added
// afterwards and skipped when their key was already seen from detection in any
// category, so a manual entry never shadows a live detection.
func (g *Grouper) Group(ctx context.Context, force bool, lang string) (map[string][]Service, error) {
	key := groupKey{force: force, lang: lang}
	if cached, ok := g.cache[key]; ok {
		return cloneGroups(cached), nil
	}

	detected, err := g.detector.DetectServices(ctx, force)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]Service)
	seenInCategory := make(map[string]map[string]bool)
	seenDetected := make(map[string]bool)

	mark := func(cat, id string) bool {
		if seenInCategory[cat] == nil {
			seenInCategory[cat] = make(map[string]bool)
		}
		if seenInCategory[cat][id] {
			return false
		}
		seenInCategory[cat][id] = true
		return true
	}

	for _, s := range detected {
		if !s.Detected {
			continue
		}
		id := IdentityKey(s)
		cat := rules.SanitizeKey(s.Category)
		if cat == "" && g.fallback != nil && id != "" {
			cat = rules.SanitizeKey(g.fallback(id))
		}
		if cat == "" || id == "" {
			continue
		}
		if !mark(cat, id) {
			continue
		}
		seenDetected[id] = true
		s.Slug = id
		s.Category = cat
		groups[cat] = append(groups[cat], s)
	}

	for _, meta := range g.categories {
		cat := rules.SanitizeKey(meta.Slug)
		if cat == "" {
			continue
		}
		for _, manual := range meta.Services[lang] {
			s, ok := NormalizeManual(manual, cat)
			if !ok {
				continue
			}
			id := IdentityKey(s)
			if seenDetected[id] || !mark(cat, id) {
				continue
			}
			groups[cat] = append(groups[cat], s)
		}
	}

	g.cache[key] = groups
	return cloneGroups(groups), nil
}

// Categories resolves the stored categories for lang with grouped services attached.
// Categories that only appear in detection output follow the stored ones, sorted by slug.
func (g *Grouper) Categories(ctx context.Context, force bool, lang string) ([]Category, error) {
	groups, err := g.Group(ctx, force, lang)
	if err != nil {
		return nil, err
	}

	out := make([]Category, 0, len(g.categories))
	known := make(map[string]bool, len(g.categories))
	for _, meta := range g.categories {
		cat := rules.SanitizeKey(meta.Slug)
		if cat == "" || known[cat] {
			continue
		}
		known[cat] = true
		out = append(out, Category{
			Slug:        cat,
			Label:       meta.Label(lang),
			Description: meta.Description(lang),
			Locked:      meta.Locked,
			Services:    nonNil(groups[cat]),
		})
	}

	var extra []string
	for cat := range groups {
		if !known[cat] {
			extra = append(extra, cat)
		}
	}
	sort.Strings(extra)
	for _, cat := range extra {
		out = append(out, Category{Slug: cat, Label: cat, Services: groups[cat]})
	}
	return out, nil
}

// CategorySlugs returns the sanitized slugs of the stored categories in order.
func CategorySlugs(categories []CategoryMeta) []string {
	out := make([]string, 0, len(categories))
	seen := make(map[string]bool, len(categories))
	for _, meta := range categories {
		cat := rules.SanitizeKey(meta.Slug)
		if cat == "" || seen[cat] {
			continue
		}
		seen[cat] = true
		out = append(out, cat)
	}
	return out
}

func cloneGroups(in map[string][]Service) map[string][]Service {
	out := make(map[string][]Service, len(in))
	for cat, list := range in {
		out[cat] = append([]Service(nil), list...)
	}
	return out
}

func nonNil(list []Service) []Service {
	if list == nil {
		return []Service{}
	}
	return list
}
