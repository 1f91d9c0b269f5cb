package names

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trims", "  Ada Lovelace ", "ada lovelace"},
		{"collapses whitespace", "Ada \t  Lovelace", "ada lovelace"},
		{"folds case", "GRACE Hopper", "grace hopper"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestDiffExact(t *testing.T) {
	t.Parallel()

	previous := []string{"Ada Lovelace", "Alan Turing", "grace  HOPPER"}
	current := []string{"Grace Hopper", "ada lovelace"}

	require.Equal(t, []string{"Alan Turing"}, Diff(previous, current, Options{}))
}

func TestDiffFuzzy(t *testing.T) {
	t.Parallel()

	previous := []string{"Katherine Johnson", "Alan Turing"}
	current := []string{"Katharine Johnson"}

	require.Equal(t, []string{"Katherine Johnson", "Alan Turing"}, Diff(previous, current, Options{}))
	require.Equal(t, []string{"Alan Turing"}, Diff(previous, current, Options{FuzzyThreshold: 0.9}))
}

func TestMissingSortsByLastNameAndDeduplicates(t *testing.T) {
	t.Parallel()

	previous := []string{
		"Alan  Turing",
		"Ada Lovelace",
		"Charles Babbage",
		"Alan Turing",
		"Edsger Dijkstra",
	}
	current := []string{"Edsger Dijkstra"}

	got := Missing(previous, current, Options{})
	require.Equal(t, []string{"Charles Babbage", "Ada Lovelace", "Alan Turing"}, got)
}

func TestMissingEmpty(t *testing.T) {
	t.Parallel()

	require.Empty(t, Missing(nil, []string{"Ada Lovelace"}, Options{}))
}
