package rules

import (
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/spf13/cast"
)

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// keyRegex matches characters outside the key charset
var keyRegex = regexp.MustCompile(`[^a-z0-9_\-]`)

var stripPolicy = bluemonday.StrictPolicy()

// maxTextPasses bounds the markup-stripping loop in SafeText.
const maxTextPasses = 16

// Normalize turns an arbitrary raw submission into a clean Entry.
// Handle lists are split on newlines and commas, pattern and iframe lists on
// newlines only. Nothing here returns an error: unusable input becomes an empty list.
func Normalize(raw RawEntry) Entry {
	return Entry{
		ScriptHandles: normalizeHandles(items(raw[FieldScriptHandles], "\n,")),
		StyleHandles:  normalizeHandles(items(raw[FieldStyleHandles], "\n,")),
		Patterns:      normalizeTexts(items(raw[FieldPatterns], "\n")),
		Iframes:       normalizeTexts(items(raw[FieldIframes], "\n")),
		Managed:       ParseBool(raw[FieldManaged]),
	}
}

// Normalized re-applies normalization to an already typed entry, e.g. one read
// back from storage that may predate the current rules.
func (e Entry) Normalized() Entry {
	return Entry{
		ScriptHandles: normalizeHandles(e.ScriptHandles),
		StyleHandles:  normalizeHandles(e.StyleHandles),
		Patterns:      normalizeTexts(e.Patterns),
		Iframes:       normalizeTexts(e.Iframes),
		Managed:       e.Managed,
	}
}

// ManagedFlag reports the submitted managed flag and whether one was supplied at all.
// A nil or blank value counts as not supplied.
func ManagedFlag(raw RawEntry) (value, present bool) {
	v, ok := raw[FieldManaged]
	if !ok || v == nil {
		return false, false
	}
	if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
		return false, false
	}
	return ParseBool(v), true
}

// ParseBool is a permissive boolean parser for form values:
// "1", "true", "yes" and "on" are true, numbers are true when non-zero.
func ParseBool(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "on":
			return true
		default:
			return false
		}
	default:
		b, err := cast.ToBoolE(v)
		if err != nil {
			return false
		}
		return b
	}
}

// SanitizeKey lowercases s and drops everything outside [a-z0-9_-].
func SanitizeKey(s string) string {
	return keyRegex.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "")
}

// SafeText strips markup, decodes entities and collapses whitespace.
// It repeats until the value is stable so that SafeText(SafeText(s)) == SafeText(s).
func SafeText(s string) string {
	cur := s
	for range maxTextPasses {
		next := safeTextPass(cur)
		if next == cur {
			return next
		}
		cur = next
	}
	// Pathologically nested entities: drop the characters that keep unfolding.
	cur = strings.NewReplacer("<", "", ">", "", "&", "").Replace(cur)
	for range maxTextPasses {
		next := safeTextPass(cur)
		if next == cur {
			break
		}
		cur = next
	}
	return cur
}

func safeTextPass(s string) string {
	s = html.UnescapeString(stripPolicy.Sanitize(s))
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func normalizeHandles(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, item := range in {
		key := SanitizeKey(item)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

func normalizeTexts(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, item := range in {
		text := SafeText(item)
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		out = append(out, text)
	}
	return out
}

// items flattens a raw field into candidate strings. Strings are split on any of seps;
// lists contribute their scalar elements; objects contribute values in key order.
func items(v any, seps string) []string {
	switch t := v.(type) {
	case string:
		return strings.FieldsFunc(t, func(r rune) bool {
			return strings.ContainsRune(seps, r) || r == '\r'
		})
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, el := range t {
			if s, ok := scalarString(el); ok {
				out = append(out, s)
			}
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sortKeys(keys)
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			if s, ok := scalarString(t[k]); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func scalarString(v any) (string, bool) {
	switch v.(type) {
	case nil, bool, []any, map[string]any:
		return "", false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	return s, true
}

// sortKeys orders object keys numerically when they are all integers (JSON-decoded
// PHP-style lists), lexically otherwise.
func sortKeys(keys []string) {
	numeric := true
	for _, k := range keys {
		if _, err := strconv.Atoi(k); err != nil {
			numeric = false
			break
		}
	}
	if !numeric {
		sort.Strings(keys)
		return
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.Atoi(keys[i])
		b, _ := strconv.Atoi(keys[j])
		return a < b
	})
}
