package services

import (
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/rules"
)

// KnownSignals is the allow-list of consent signal identifiers.
var KnownSignals = []string{
	"ad_storage",
	"analytics_storage",
	"functionality_storage",
	"personalization_storage",
	"security_storage",
	"ad_user_data",
	"ad_personalization",
}

var knownSignalSet = func() map[string]bool {
	m := make(map[string]bool, len(KnownSignals))
	for _, s := range KnownSignals {
		m[s] = true
	}
	return m
}()

// ManualService is a service record typed in by an operator.
// Cookies and ConsentSignals accept more than one input shape; see NormalizeManual.
type ManualService struct {
	Key            string `json:"key,omitempty"`
	Name           string `json:"name,omitempty"`
	Provider       string `json:"provider,omitempty"`
	Purpose        string `json:"purpose,omitempty"`
	PolicyURL      string `json:"policy_url,omitempty"`
	Retention      string `json:"retention,omitempty"`
	LegalBasis     string `json:"legal_basis,omitempty"`
	DataCollected  string `json:"data_collected,omitempty"`
	DataTransfer   string `json:"data_transfer,omitempty"`
	Cookies        any    `json:"cookies,omitempty"`
	ConsentSignals any    `json:"consent_signals,omitempty"`
}

// NormalizeManual maps an operator-entered record onto the canonical Service shape.
// It returns false when neither the key nor the name yields a usable slug.
//
// Cookies may be a newline separated string with one "name|domain|duration|description"
// per line, or a list of objects with those fields. Consent signals may be a map of
// signal → flag (nested maps or lists count as enabled when any sub-value is truthy)
// or a flat list of names; both are filtered to KnownSignals.
func NormalizeManual(m ManualService, category string) (Service, bool) {
	name := rules.SafeText(m.Name)
	slug := rules.SanitizeKey(m.Key)
	if slug == "" {
		slug = Slugify(name)
	}
	if slug == "" {
		return Service{}, false
	}
	if name == "" {
		name = slug
	}

	return Service{
		Slug:           slug,
		Name:           name,
		Provider:       rules.SafeText(m.Provider),
		Category:       rules.SanitizeKey(category),
		Purpose:        rules.SafeText(m.Purpose),
		PolicyURL:      rules.SafeText(m.PolicyURL),
		Retention:      rules.SafeText(m.Retention),
		LegalBasis:     rules.SafeText(m.LegalBasis),
		DataCollected:  rules.SafeText(m.DataCollected),
		DataTransfer:   rules.SafeText(m.DataTransfer),
		ConsentSignals: ParseSignals(m.ConsentSignals),
		Cookies:        ParseCookies(m.Cookies),
		Detected:       false,
	}, true
}

// Slugify lowercases s, turns whitespace into dashes and drops other punctuation.
func Slugify(s string) string {
	s = strings.Join(strings.Fields(strings.ToLower(s)), "-")
	return rules.SanitizeKey(s)
}

// ParseSignals extracts allow-listed consent signals from a map or list shape.
// The result is sorted and deduplicated.
func ParseSignals(v any) []string {
	var names []string
	switch t := v.(type) {
	case map[string]any:
		for k, flag := range t {
			if truthy(flag) {
				names = append(names, k)
			}
		}
	case map[string]bool:
		for k, flag := range t {
			if flag {
				names = append(names, k)
			}
		}
	case []string:
		names = t
	case []any:
		for _, el := range t {
			if s, ok := el.(string); ok {
				names = append(names, s)
			}
		}
	case string:
		names = strings.FieldsFunc(t, func(r rune) bool { return r == ',' || r == '\n' || r == '\r' })
	}

	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		key := rules.SanitizeKey(n)
		if !knownSignalSet[key] || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// truthy treats nested containers as enabled when any sub-value is truthy.
func truthy(v any) bool {
	switch t := v.(type) {
	case map[string]any:
		for _, sub := range t {
			if truthy(sub) {
				return true
			}
		}
		return false
	case []any:
		for _, sub := range t {
			if truthy(sub) {
				return true
			}
		}
		return false
	default:
		return rules.ParseBool(v)
	}
}

// ParseCookies reads cookie descriptors from a delimited string or a list of objects.
// Entries without a name are dropped.
func ParseCookies(v any) []CookieDescriptor {
	var out []CookieDescriptor
	add := func(c CookieDescriptor) {
		c.Name = rules.SafeText(c.Name)
		if c.Name == "" {
			return
		}
		c.Domain = rules.SafeText(c.Domain)
		c.Duration = rules.SafeText(c.Duration)
		c.Description = rules.SafeText(c.Description)
		out = append(out, c)
	}

	switch t := v.(type) {
	case string:
		for _, line := range strings.Split(t, "\n") {
			add(cookieFromLine(line))
		}
	case []CookieDescriptor:
		for _, c := range t {
			add(c)
		}
	case []any:
		for _, el := range t {
			switch c := el.(type) {
			case string:
				add(cookieFromLine(c))
			case map[string]any:
				add(CookieDescriptor{
					Name:        cast.ToString(c["name"]),
					Domain:      cast.ToString(c["domain"]),
					Duration:    cast.ToString(c["duration"]),
					Description: cast.ToString(c["description"]),
				})
			}
		}
	}
	return out
}

func cookieFromLine(line string) CookieDescriptor {
	parts := strings.SplitN(strings.TrimRight(line, "\r"), "|", 4)
	for len(parts) < 4 {
		parts = append(parts, "")
	}
	return CookieDescriptor{
		Name:        parts[0],
		Domain:      parts[1],
		Duration:    parts[2],
		Description: parts[3],
	}
}
