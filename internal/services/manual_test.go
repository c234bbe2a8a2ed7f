package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeManual_KeyAndName(t *testing.T) {
	tests := []struct {
		name     string
		input    ManualService
		wantOK   bool
		wantSlug string
		wantName string
	}{
		{"key wins", ManualService{Key: "Acme_Chat", Name: "Acme Chat Widget"}, true, "acme_chat", "Acme Chat Widget"},
		{"slug from name", ManualService{Name: "Acme Chat Widget"}, true, "acme-chat-widget", "Acme Chat Widget"},
		{"name falls back to slug", ManualService{Key: "pixel"}, true, "pixel", "pixel"},
		{"nothing usable", ManualService{Key: "!!!", Name: "  "}, false, "", ""},
		{"markup only name", ManualService{Name: "<b></b>"}, false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeManual(tt.input, "Marketing")
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantSlug, got.Slug)
			assert.Equal(t, tt.wantName, got.Name)
			assert.Equal(t, "marketing", got.Category)
			assert.False(t, got.Detected)
		})
	}
}

func TestParseSignals_Map(t *testing.T) {
	got := ParseSignals(map[string]any{
		"analytics_storage":  "1",
		"ad_storage":         false,
		"ad_user_data":       map[string]any{"eu": false, "us": "yes"},
		"ad_personalization": []any{0, "0"},
		"made_up_signal":     true,
	})
	assert.Equal(t, []string{"ad_user_data", "analytics_storage"}, got)
}

func TestParseSignals_List(t *testing.T) {
	got := ParseSignals([]any{"ad_storage", "AD_STORAGE", "nope", 7, "security_storage"})
	assert.Equal(t, []string{"ad_storage", "security_storage"}, got)

	assert.Equal(t, []string{"analytics_storage", "functionality_storage"},
		ParseSignals("functionality_storage, analytics_storage"))
	assert.Empty(t, ParseSignals(42))
}

func TestParseCookies(t *testing.T) {
	t.Run("delimited string", func(t *testing.T) {
		got := ParseCookies("_ga|.example.com|2 years|Distinguishes users\n\n|nameless|x|y\n_gid")
		require.Len(t, got, 2)
		assert.Equal(t, CookieDescriptor{Name: "_ga", Domain: ".example.com", Duration: "2 years", Description: "Distinguishes users"}, got[0])
		assert.Equal(t, "_gid", got[1].Name)
		assert.Empty(t, got[1].Domain)
	})

	t.Run("list of objects", func(t *testing.T) {
		got := ParseCookies([]any{
			map[string]any{"name": "_fbp", "domain": ".example.com", "duration": "3 months"},
			map[string]any{"domain": "missing-name"},
			"_hjid|.example.com|1 year|Hotjar id",
		})
		require.Len(t, got, 2)
		assert.Equal(t, "_fbp", got[0].Name)
		assert.Equal(t, "Hotjar id", got[1].Description)
	})

	t.Run("unsupported shape", func(t *testing.T) {
		assert.Empty(t, ParseCookies(12))
	})
}
