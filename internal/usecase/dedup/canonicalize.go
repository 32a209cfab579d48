// Package dedup promotes an exact duplicate of the user's input to the front
// of a result list so the caller can present it as "this already exists".
package dedup

import "strings"

// Result is the outcome of canonicalization. ExactMatch is nil when no
// statement text normalizes to the user's input.
type Result[T any] struct {
	Matches    []T
	ExactMatch *T
}

// Canonicalize finds the first element of matches whose text is a
// case/whitespace-insensitive duplicate of userInput and moves it to index 0.
// Nothing is removed and relative order of the rest is preserved; running it
// twice yields the same ordering. Pure function, the input slice is not
// mutated.
func Canonicalize[T any](matches []T, userInput string, textOf func(T) string) Result[T] {
	out := make([]T, len(matches))
	copy(out, matches)

	want := Normalize(userInput)
	if want == "" {
		return Result[T]{Matches: out}
	}

	for i := range out {
		if Normalize(textOf(out[i])) != want {
			continue
		}
		hit := out[i]
		copy(out[1:i+1], out[:i])
		out[0] = hit
		return Result[T]{Matches: out, ExactMatch: &out[0]}
	}

	return Result[T]{Matches: out}
}

// Normalize lowercases and collapses all whitespace runs to single spaces.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
