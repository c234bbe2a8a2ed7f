package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDetector struct {
	calls    int
	services []Service
	err      error
}

func (d *countingDetector) DetectServices(_ context.Context, _ bool) ([]Service, error) {
	d.calls++
	return d.services, d.err
}

func testCategories() []CategoryMeta {
	return []CategoryMeta{
		{
			Slug:   "necessary",
			Locked: true,
			Labels: map[string]string{"en": "Strictly necessary", "it": "Necessari"},
		},
		{
			Slug:   "marketing",
			Labels: map[string]string{"en": "Marketing"},
			Services: map[string][]ManualService{
				"en": {
					{Key: "ga4", Name: "Shadowing GA4"},
					{Name: "Newsletter Pixel", Provider: "Acme"},
					{Name: "Newsletter Pixel", Provider: "Duplicate"},
					{Name: ""},
				},
				"it": {
					{Name: "Pixel Italiano"},
				},
			},
		},
	}
}

func TestGroup_DetectionAndManual(t *testing.T) {
	det := &countingDetector{services: []Service{
		{Slug: "ga4", Name: "Google Analytics 4", Category: "marketing", Detected: true},
		{Slug: "ga4", Name: "GA4 duplicate", Category: "marketing", Detected: true},
		{Slug: "hotjar", Name: "Hotjar", Category: "statistics", Detected: false},
		{Name: "Recaptcha", Category: "necessary", Detected: true},
		{Slug: "orphan", Detected: true},
	}}
	g := NewGrouper(det, testCategories())

	groups, err := g.Group(context.Background(), false, "en")
	require.NoError(t, err)

	require.Len(t, groups["marketing"], 2)
	assert.Equal(t, "Google Analytics 4", groups["marketing"][0].Name, "first detection wins, manual never shadows")
	assert.Equal(t, "newsletter-pixel", groups["marketing"][1].Slug)
	assert.Equal(t, "Acme", groups["marketing"][1].Provider)

	require.Len(t, groups["necessary"], 1)
	assert.Equal(t, "Recaptcha", groups["necessary"][0].Name)

	_, hasStats := groups["statistics"]
	assert.False(t, hasStats, "undetected services are dropped")
}

func TestGroup_ManualPerLanguage(t *testing.T) {
	g := NewGrouper(&countingDetector{}, testCategories())

	groups, err := g.Group(context.Background(), false, "it")
	require.NoError(t, err)
	require.Len(t, groups["marketing"], 1)
	assert.Equal(t, "pixel-italiano", groups["marketing"][0].Slug)
}

func TestGroup_CachedPerForceAndLanguage(t *testing.T) {
	det := &countingDetector{}
	g := NewGrouper(det, testCategories())
	ctx := context.Background()

	_, _ = g.Group(ctx, false, "en")
	_, _ = g.Group(ctx, false, "en")
	assert.Equal(t, 1, det.calls)

	_, _ = g.Group(ctx, true, "en")
	_, _ = g.Group(ctx, false, "it")
	assert.Equal(t, 3, det.calls)
}

func TestGroup_ResultIsACopy(t *testing.T) {
	det := &countingDetector{services: []Service{{Slug: "ga4", Name: "GA4", Category: "marketing", Detected: true}}}
	g := NewGrouper(det, nil)

	first, err := g.Group(context.Background(), false, "en")
	require.NoError(t, err)
	first["marketing"][0].Name = "mutated"

	second, err := g.Group(context.Background(), false, "en")
	require.NoError(t, err)
	assert.Equal(t, "GA4", second["marketing"][0].Name)
}

func TestGroup_DetectorError(t *testing.T) {
	g := NewGrouper(&countingDetector{err: errors.New("boom")}, nil)
	_, err := g.Group(context.Background(), false, "en")
	assert.Error(t, err)
}

func TestCategories_Resolved(t *testing.T) {
	det := &countingDetector{services: []Service{
		{Slug: "matomo", Name: "Matomo", Category: "statistics", Detected: true},
	}}
	g := NewGrouper(det, testCategories())

	cats, err := g.Categories(context.Background(), false, "it")
	require.NoError(t, err)
	require.Len(t, cats, 3)

	assert.Equal(t, "necessary", cats[0].Slug)
	assert.Equal(t, "Necessari", cats[0].Label)
	assert.True(t, cats[0].Locked)
	assert.NotNil(t, cats[0].Services)

	assert.Equal(t, "marketing", cats[1].Slug)
	assert.Equal(t, "marketing", cats[1].Label, "missing label falls back to slug")

	assert.Equal(t, "statistics", cats[2].Slug, "detection-only category appended")
}

func TestCategorySlugs(t *testing.T) {
	got := CategorySlugs([]CategoryMeta{{Slug: "Necessary"}, {Slug: "necessary"}, {Slug: ""}, {Slug: "marketing"}})
	assert.Equal(t, []string{"necessary", "marketing"}, got)
}

func TestGroup_MixedCaseSlugDedupsManual(t *testing.T) {
	det := &countingDetector{services: []Service{
		{Slug: "GA4", Name: "Google Analytics 4", Category: "statistics", Detected: true},
	}}
	cats := []CategoryMeta{{
		Slug:     "statistics",
		Services: map[string][]ManualService{"en": {{Key: "ga4", Name: "GA manual"}}},
	}}
	g := NewGrouper(det, cats)

	groups, err := g.Group(context.Background(), false, "en")
	require.NoError(t, err)
	require.Len(t, groups["statistics"], 1)
	assert.Equal(t, "ga4", groups["statistics"][0].Slug)
	assert.True(t, groups["statistics"][0].Detected)
}

func TestGroup_CategoryFallback(t *testing.T) {
	det := &countingDetector{services: []Service{
		{Slug: "hotjar", Name: "Hotjar", Detected: true},
		{Slug: "unknown", Name: "Unknown", Detected: true},
	}}
	fallback := func(slug string) string {
		if slug == "hotjar" {
			return "Statistics"
		}
		return ""
	}
	g := NewGrouper(det, nil, WithCategoryFallback(fallback))

	groups, err := g.Group(context.Background(), false, "en")
	require.NoError(t, err)
	require.Len(t, groups["statistics"], 1)
	assert.Equal(t, "hotjar", groups["statistics"][0].Slug)
	assert.Equal(t, "statistics", groups["statistics"][0].Category)
	assert.Len(t, groups, 1, "services with no category anywhere are dropped")
}
