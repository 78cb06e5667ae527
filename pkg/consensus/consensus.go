// Package consensus reconciles several noisy transcriptions of the same field
// into one string by edit-distance median.
package consensus

import (
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/menta2k/xray-deid/pkg/types"
)

// maxRounds bounds the refinement loop. Each accepted round strictly lowers
// the total distance so the loop ends on its own well before this.
const maxRounds = 64

// Median returns the uppercased string minimizing the summed Levenshtein
// distance to all inputs.
//
// The search starts from the best input string and then applies single
// character edits drawn from the input alphabet while they strictly lower the
// total. Ties are broken by the lexicographically smallest candidate, which
// makes the result independent of input order. Median of no strings is "".
func Median(strs []string) string {
	if len(strs) == 0 {
		return ""
	}
	upper := make([]string, len(strs))
	for i, s := range strs {
		upper[i] = strings.ToUpper(s)
	}

	best, bestCost := "", -1
	for _, s := range upper {
		c := Cost(s, upper)
		if bestCost < 0 || c < bestCost || (c == bestCost && s < best) {
			best, bestCost = s, c
		}
	}

	alphabet := alphabetOf(upper)
	for round := 0; round < maxRounds && bestCost > 0; round++ {
		next, nextCost := best, bestCost
		for _, cand := range neighbours(best, alphabet) {
			c := Cost(cand, upper)
			if c < nextCost || (c == nextCost && c < bestCost && cand < next) {
				next, nextCost = cand, c
			}
		}
		if nextCost >= bestCost {
			break
		}
		best, bestCost = next, nextCost
	}
	return best
}

// Cost is the summed edit distance from s to every string in set
func Cost(s string, set []string) int {
	total := 0
	for _, t := range set {
		total += levenshtein.ComputeDistance(s, t)
	}
	return total
}

// Fields votes each field of the given transcriptions independently.
// Gender is normalized to M, F or U after voting.
func Fields(sets []types.RawFieldSet) types.RawFieldSet {
	pick := func(get func(types.RawFieldSet) string) string {
		vals := make([]string, len(sets))
		for i, s := range sets {
			vals[i] = get(s)
		}
		return Median(vals)
	}

	return types.RawFieldSet{
		Name:     pick(func(s types.RawFieldSet) string { return s.Name }),
		Birth:    pick(func(s types.RawFieldSet) string { return s.Birth }),
		DateTime: pick(func(s types.RawFieldSet) string { return s.DateTime }),
		Gender:   types.NormalizeGender(pick(func(s types.RawFieldSet) string { return s.Gender })),
	}
}

func alphabetOf(strs []string) []rune {
	seen := map[rune]struct{}{}
	for _, s := range strs {
		for _, r := range s {
			seen[r] = struct{}{}
		}
	}
	out := make([]rune, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

// neighbours lists every string one deletion, substitution or insertion away from s
func neighbours(s string, alphabet []rune) []string {
	rs := []rune(s)
	out := make([]string, 0, len(rs)*(2*len(alphabet)+1)+len(alphabet))

	for i := range rs {
		out = append(out, string(rs[:i])+string(rs[i+1:]))
		for _, a := range alphabet {
			if a != rs[i] {
				out = append(out, string(rs[:i])+string(a)+string(rs[i+1:]))
			}
		}
	}
	for i := 0; i <= len(rs); i++ {
		for _, a := range alphabet {
			out = append(out, string(rs[:i])+string(a)+string(rs[i:]))
		}
	}
	return out
}
