package inject

import "strings"

// Edit turns the previously typed transcript into a new one: delete
// DeleteWords words before the cursor, then insert Insert.
type Edit struct {
	DeleteWords int
	Insert      string
}

// IsZero reports whether the edit changes nothing.
func (e Edit) IsZero() bool {
	return e.DeleteWords == 0 && e.Insert == ""
}

// ComputeEdit diffs two transcripts word by word. Only the longest common
// prefix is kept; everything after it in prev is deleted and the rest of next
// is inserted. Insert starts with a space whenever it follows a kept word,
// so the word sequence round-trips through ApplyEdit.
//
// Revisions in the middle of a transcript therefore retype the whole tail,
// which is correct but not minimal. Insert describes words, not the screen:
// Engine drops its leading space when a deletion left the separator behind.
func ComputeEdit(prev, next string) Edit {
	o := strings.Fields(prev)
	n := strings.Fields(next)

	c := 0
	for c < len(o) && c < len(n) && o[c] == n[c] {
		c++
	}

	e := Edit{
		DeleteWords: len(o) - c,
		Insert:      strings.Join(n[c:], " "),
	}
	if c > 0 && e.Insert != "" {
		e.Insert = " " + e.Insert
	}
	return e
}

// ApplyEdit applies e to a word sequence the way a target application would
// see it. The input slice is not modified.
func ApplyEdit(words []string, e Edit) []string {
	keep := max(len(words)-e.DeleteWords, 0)
	out := make([]string, 0, keep+len(strings.Fields(e.Insert)))
	out = append(out, words[:keep]...)
	return append(out, strings.Fields(e.Insert)...)
}
