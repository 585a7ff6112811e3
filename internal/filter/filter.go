// Package filter blocks message bodies that contain a banned phrase as a whole
// space-delimited token.
package filter

import "strings"

type Filter struct {
	phrases []string
}

// New lower-cases and trims the phrases, dropping empty entries. Order is kept.
func New(phrases []string) *Filter {
	f := &Filter{phrases: make([]string, 0, len(phrases))}
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			f.phrases = append(f.phrases, p)
		}
	}
	return f
}

// Phrases returns a copy of the normalized phrase list.
func (f *Filter) Phrases() []string {
	if f == nil {
		return nil
	}
	return append([]string(nil), f.phrases...)
}

// ContainsBanned reports whether body holds any phrase bounded by the start or
// end of the body or by spaces. "spam" matches "buy spam now" but not "spammer".
func (f *Filter) ContainsBanned(body string) bool {
	if f == nil || len(f.phrases) == 0 {
		return false
	}
	lower := strings.ToLower(body)
	for _, p := range f.phrases {
		if lower == p ||
			strings.HasPrefix(lower, p+" ") ||
			strings.HasSuffix(lower, " "+p) ||
			strings.Contains(lower, " "+p+" ") {
			return true
		}
	}
	return false
}
