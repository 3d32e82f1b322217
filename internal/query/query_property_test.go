package query

import (
	"testing"

	"github.com/zulandar/opsdeck/internal/tasktree"
	"pgregory.net/rapid"
)

// Feature: opsdeck, Property: a search shorter than two characters filters nothing
func TestProperty_ShortSearchIsUnfiltered(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		q := rapid.StringN(0, 1, -1).Draw(t, "q")
		pad := rapid.StringMatching(`[ \t]{0,3}`).Draw(t, "pad")

		tree := fixture()
		got, err := Run(tree, FilterSpec{Search: pad + q + pad}, SortSpec{}, testEnv())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(got) != len(tree) {
			t.Fatalf("search %q kept %d of %d roots", q, len(got), len(tree))
		}
	})
}

// Feature: opsdeck, Property: filtering is a subset and sorting a permutation
func TestProperty_ApplyIsSubsetPermutation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tree := fixture()
		statuses := rapid.SliceOfDistinct(rapid.SampledFrom(tasktree.Statuses), func(s tasktree.Status) tasktree.Status { return s }).Draw(t, "statuses")
		field := rapid.SampledFrom(SortFields).Draw(t, "field")
		dir := rapid.SampledFrom([]Direction{Asc, Desc}).Draw(t, "dir")

		got, err := Run(tree, FilterSpec{Statuses: statuses}, SortSpec{Field: field, Direction: dir}, testEnv())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}

		seen := make(map[string]bool)
		for _, r := range got {
			if seen[r.ID] {
				t.Fatalf("duplicate root %s", r.ID)
			}
			seen[r.ID] = true
		}
		want := 0
		for _, r := range tree {
			if len(statuses) == 0 {
				want++
				continue
			}
			for _, s := range statuses {
				if r.Status == s {
					want++
					break
				}
			}
		}
		if len(got) != want {
			t.Fatalf("got %d roots, want %d", len(got), want)
		}
	})
}
