package rules

// UnionMerge appends preset values that current does not already contain.
// Current order is kept; Managed is copied from current.
func UnionMerge(current, preset Entry) Entry {
	return Entry{
		ScriptHandles: union(current.ScriptHandles, preset.ScriptHandles),
		StyleHandles:  union(current.StyleHandles, preset.StyleHandles),
		Patterns:      union(current.Patterns, preset.Patterns),
		Iframes:       union(current.Iframes, preset.Iframes),
		Managed:       current.Managed,
	}
}

// HasValues reports whether any of the four lists is non-empty.
func HasValues(e Entry) bool {
	return len(e.ScriptHandles) > 0 || len(e.StyleHandles) > 0 ||
		len(e.Patterns) > 0 || len(e.Iframes) > 0
}

// HasCustomRules reports whether the entry is an operator override. Automatic
// reconciliation never touches an entry for which this is true.
func HasCustomRules(e Entry) bool {
	return !e.Managed && HasValues(e)
}

// Equal compares the four lists and ignores Managed.
func Equal(a, b Entry) bool {
	return equalList(a.ScriptHandles, b.ScriptHandles) &&
		equalList(a.StyleHandles, b.StyleHandles) &&
		equalList(a.Patterns, b.Patterns) &&
		equalList(a.Iframes, b.Iframes)
}

// MergeWithDefaults folds a preset into current. The result stays managed when
// current was already managed with values, and becomes managed when current was
// empty and the preset brings values. Anything else resolves to unmanaged.
// Callers must not pass an entry for which HasCustomRules is true.
func MergeWithDefaults(current, preset Entry) Entry {
	merged := UnionMerge(current, preset)
	currentHasValues := HasValues(current)
	merged.Managed = (current.Managed && currentHasValues) ||
		(!currentHasValues && HasValues(preset))
	return merged
}

func union(current, extra []string) []string {
	out := make([]string, 0, len(current)+len(extra))
	seen := make(map[string]bool, len(current)+len(extra))
	for _, list := range [][]string{current, extra} {
		for _, v := range list {
			if seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func equalList(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
