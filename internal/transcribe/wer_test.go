package transcribe

import (
	"math"
	"testing"
)

func TestComputeWER(t *testing.T) {
	tests := []struct {
		name     string
		ref, hyp string
		want     float64
		subs     int
		ins      int
		dels     int
		refWords int
	}{
		{name: "identical", ref: "hello world today", hyp: "hello world today", refWords: 3},
		{name: "case and punctuation", ref: "Hello, World!", hyp: "hello world", refWords: 2},
		{name: "extra whitespace", ref: "  hello   world ", hyp: "hello world", refWords: 2},
		{name: "tail revised", ref: "the quick brown fox", hyp: "the quick red fox", want: 0.25, subs: 1, refWords: 4},
		{name: "word appended", ref: "the quick brown", hyp: "the quick brown fox", want: 1.0 / 3.0, ins: 1, refWords: 3},
		{name: "word dropped", ref: "ask not what your country can do", hyp: "ask what your country can do", want: 1.0 / 7.0, dels: 1, refWords: 7},
		{name: "nothing recognised", ref: "some words", hyp: "", want: 1, dels: 2, refWords: 2},
		{name: "all wrong", ref: "one two three", hyp: "four five six", want: 1, subs: 3, refWords: 3},
		{name: "empty reference", ref: "", hyp: "anything at all"},
		{
			name: "mixed",
			ref:  "the quick brown fox jumps over the lazy dog",
			hyp:  "a quick brown cat jumps the lazy dog",
			want: 3.0 / 9.0, subs: 2, dels: 1, refWords: 9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeWER(tt.ref, tt.hyp)

			if math.Abs(got.WER-tt.want) > 1e-9 {
				t.Errorf("WER = %f, want %f", got.WER, tt.want)
			}
			if got.Substitutions != tt.subs || got.Insertions != tt.ins || got.Deletions != tt.dels {
				t.Errorf("edits = (sub %d, ins %d, del %d), want (sub %d, ins %d, del %d)",
					got.Substitutions, got.Insertions, got.Deletions, tt.subs, tt.ins, tt.dels)
			}
			if got.RefWords != tt.refWords {
				t.Errorf("RefWords = %d, want %d", got.RefWords, tt.refWords)
			}
		})
	}
}
