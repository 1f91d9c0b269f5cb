// Package names compares submitter name lists between two bills.
package names

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/cases"
)

// Options tunes how names are matched.
type Options struct {
	// FuzzyThreshold enables Jaro-Winkler matching when > 0. A previous name whose
	// similarity to any current name reaches the threshold counts as present.
	FuzzyThreshold float64
}

// Collapse trims the name and squeezes internal whitespace runs to a single space.
func Collapse(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// Normalize returns the comparison key for a name.
func Normalize(name string) string {
	return cases.Fold().String(Collapse(name))
}

// Diff returns the names in previous that do not appear in current.
func Diff(previous, current []string, opts Options) []string {
	present := make(map[string]struct{}, len(current))
	keys := make([]string, 0, len(current))
	for _, name := range current {
		key := Normalize(name)
		if _, ok := present[key]; ok {
			continue
		}
		present[key] = struct{}{}
		keys = append(keys, key)
	}

	var out []string
	for _, name := range previous {
		key := Normalize(name)
		if _, ok := present[key]; ok {
			continue
		}
		if opts.FuzzyThreshold > 0 && fuzzyMatch(key, keys, opts.FuzzyThreshold) {
			continue
		}
		out = append(out, name)
	}
	return out
}

// Missing lists the people in previous who have not appeared in current, sorted by
// last name and de-duplicated.
func Missing(previous, current []string, opts Options) []string {
	diff := Diff(previous, current, opts)
	sort.SliceStable(diff, func(i, j int) bool {
		return lastNameKey(diff[i]) < lastNameKey(diff[j])
	})

	seen := make(map[string]struct{}, len(diff))
	out := make([]string, 0, len(diff))
	for _, name := range diff {
		name = Collapse(name)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func lastNameKey(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[len(fields)-1])
}

func fuzzyMatch(key string, candidates []string, threshold float64) bool {
	for _, candidate := range candidates {
		if matchr.JaroWinkler(key, candidate, false) >= threshold {
			return true
		}
	}
	return false
}
