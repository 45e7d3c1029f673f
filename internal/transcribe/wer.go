package transcribe

import (
	"strings"
	"unicode"
)

// WERResult breaks a word error rate down by edit type.
type WERResult struct {
	WER           float64
	Substitutions int
	Insertions    int
	Deletions     int
	RefWords      int
}

// edits is the cheapest alignment found so far for a prefix pair.
type edits struct {
	subs, ins, dels int
}

func (e edits) total() int { return e.subs + e.ins + e.dels }

// ComputeWER compares hypothesis against reference after lowercasing,
// stripping punctuation and collapsing whitespace. An empty reference
// yields a zero result.
func ComputeWER(reference, hypothesis string) WERResult {
	ref := normalizeWords(reference)
	hyp := normalizeWords(hypothesis)
	if len(ref) == 0 {
		return WERResult{}
	}

	// Two rows of the Levenshtein table, each cell carrying its edit mix.
	prev := make([]edits, len(hyp)+1)
	cur := make([]edits, len(hyp)+1)
	for j := range prev {
		prev[j] = edits{ins: j}
	}

	for i := 1; i <= len(ref); i++ {
		cur[0] = edits{dels: i}
		for j := 1; j <= len(hyp); j++ {
			diag := prev[j-1]
			if ref[i-1] != hyp[j-1] {
				diag.subs++
			}
			best := diag

			up := prev[j]
			up.dels++
			if up.total() < best.total() {
				best = up
			}

			left := cur[j-1]
			left.ins++
			if left.total() < best.total() {
				best = left
			}
			cur[j] = best
		}
		prev, cur = cur, prev
	}

	e := prev[len(hyp)]
	return WERResult{
		WER:           float64(e.total()) / float64(len(ref)),
		Substitutions: e.subs,
		Insertions:    e.ins,
		Deletions:     e.dels,
		RefWords:      len(ref),
	}
}

func normalizeWords(s string) []string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Fields(s)
}
