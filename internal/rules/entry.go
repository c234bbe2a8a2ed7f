package rules

// Field names accepted in a raw rule submission.
const (
	FieldScriptHandles = "script_handles"
	FieldStyleHandles  = "style_handles"
	FieldPatterns      = "patterns"
	FieldIframes       = "iframes"
	FieldManaged       = "managed"
)

// Entry is the blocking rule set for one (language, category) pair.
// All four lists are deduplicated and keep first-seen order.
type Entry struct {
	// ScriptHandles are registered script identifiers to pause until consent
	ScriptHandles []string `json:"script_handles" yaml:"script_handles"`

	// StyleHandles are registered stylesheet identifiers to pause until consent
	StyleHandles []string `json:"style_handles" yaml:"style_handles"`

	// Patterns are URL substrings matched against script/style sources
	Patterns []string `json:"patterns" yaml:"patterns"`

	// Iframes are URL substrings matched against iframe sources
	Iframes []string `json:"iframes" yaml:"iframes"`

	// Managed marks an entry derived entirely from presets and safe to overwrite.
	// Managed=false with values is an operator customization.
	Managed bool `json:"managed" yaml:"-"`
}

// RawEntry is an unvalidated rule submission as decoded from a form or JSON body.
// Each list field may be a delimited string or a list.
type RawEntry map[string]any

// RuleSet maps category slugs to their entry for a single language.
type RuleSet map[string]Entry

// Scripts maps language codes to their rule set. This is the persisted shape.
type Scripts map[string]RuleSet

// Empty returns a normalized entry with no values and Managed=false.
func Empty() Entry {
	return Entry{
		ScriptHandles: []string{},
		StyleHandles:  []string{},
		Patterns:      []string{},
		Iframes:       []string{},
	}
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	return Entry{
		ScriptHandles: cloneList(e.ScriptHandles),
		StyleHandles:  cloneList(e.StyleHandles),
		Patterns:      cloneList(e.Patterns),
		Iframes:       cloneList(e.Iframes),
		Managed:       e.Managed,
	}
}

// Clone returns a deep copy of the rule set.
func (rs RuleSet) Clone() RuleSet {
	out := make(RuleSet, len(rs))
	for cat, e := range rs {
		out[cat] = e.Clone()
	}
	return out
}

// Clone returns a deep copy of every language rule set.
func (s Scripts) Clone() Scripts {
	out := make(Scripts, len(s))
	for lang, rs := range s {
		out[lang] = rs.Clone()
	}
	return out
}

func cloneList(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Raw converts the entry back into submission form.
func (e Entry) Raw() RawEntry {
	return RawEntry{
		FieldScriptHandles: cloneList(e.ScriptHandles),
		FieldStyleHandles:  cloneList(e.StyleHandles),
		FieldPatterns:      cloneList(e.Patterns),
		FieldIframes:       cloneList(e.Iframes),
		FieldManaged:       e.Managed,
	}
}
