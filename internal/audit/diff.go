package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/gowebpki/jcs"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/rules"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/services"
)

// IdentityKey returns the key a service is diffed under: its sanitized slug,
// else the sanitized name and provider, else a hash of the canonical JSON of
// the record.
func IdentityKey(s services.Service) string {
	if slug := rules.SanitizeKey(s.Slug); slug != "" {
		return slug
	}
	if key := rules.SanitizeKey(s.Name + "-" + s.Provider); strings.Trim(key, "-") != "" {
		return key
	}
	return "hash:" + contentHash(s)
}

// contentHash hashes the RFC 8785 form of s so key order in the source record
// never changes the result. Consent signals are a set and are sorted first.
func contentHash(s services.Service) string {
	s.ConsentSignals = append([]string(nil), s.ConsentSignals...)
	sort.Strings(s.ConsentSignals)

	data, err := json.Marshal(s)
	if err == nil {
		if canonical, cerr := jcs.Transform(data); cerr == nil {
			data = canonical
		}
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Diff reports services present in current but not previous (added) and the
// reverse (removed). Output order follows the input lists.
func Diff(previous, current []services.Service) (added, removed []services.Summary) {
	prevKeys := make(map[string]bool, len(previous))
	for _, s := range previous {
		prevKeys[IdentityKey(s)] = true
	}
	currKeys := make(map[string]bool, len(current))
	for _, s := range current {
		currKeys[IdentityKey(s)] = true
	}

	added = []services.Summary{}
	seen := make(map[string]bool)
	for _, s := range current {
		key := IdentityKey(s)
		if prevKeys[key] || seen[key] {
			continue
		}
		seen[key] = true
		added = append(added, s.Summary())
	}

	removed = []services.Summary{}
	seen = make(map[string]bool)
	for _, s := range previous {
		key := IdentityKey(s)
		if currKeys[key] || seen[key] {
			continue
		}
		seen[key] = true
		removed = append(removed, s.Summary())
	}
	return added, removed
}
