package rules

import (
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestNormalizeIdempotent verifies Normalize(Normalize(x)) == Normalize(x).
func TestNormalizeIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("normalization is idempotent", prop.ForAll(
		func(handles string, patterns []string, iframes string, managed bool) bool {
			raw := RawEntry{
				FieldScriptHandles: handles,
				FieldStyleHandles:  strings.Split(handles, " "),
				FieldPatterns:      anyList(patterns),
				FieldIframes:       iframes,
				FieldManaged:       managed,
			}
			once := Normalize(raw)
			twice := Normalize(once.Raw())
			return reflect.DeepEqual(once, twice)
		},
		gen.AnyString(),
		gen.SliceOf(gen.AnyString()),
		gen.AnyString(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// TestPresetFoldCommutative verifies folding presets in any order yields the same content.
func TestPresetFoldCommutative(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("preset fold order does not change the set of values", prop.ForAll(
		func(a, b, c []string) bool {
			presets := []Entry{
				Normalize(RawEntry{FieldPatterns: anyList(a)}),
				Normalize(RawEntry{FieldPatterns: anyList(b), FieldScriptHandles: anyList(c)}),
				Normalize(RawEntry{FieldIframes: anyList(c)}),
			}

			forward := Empty()
			for _, p := range presets {
				forward = MergeWithDefaults(forward, p)
			}
			backward := Empty()
			for i := len(presets) - 1; i >= 0; i-- {
				backward = MergeWithDefaults(backward, presets[i])
			}

			return sameSet(forward.Patterns, backward.Patterns) &&
				sameSet(forward.ScriptHandles, backward.ScriptHandles) &&
				sameSet(forward.Iframes, backward.Iframes) &&
				forward.Managed == backward.Managed
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func anyList(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func sameSet(a, b []string) bool {
	x := append([]string{}, a...)
	y := append([]string{}, b...)
	sort.Strings(x)
	sort.Strings(y)
	return reflect.DeepEqual(x, y)
}
