// Package enums holds the closed value sets shared by models, services and
// the event registry.
package enums

import (
	"fmt"
	"slices"
)

// closedSet lists the legal values of a string enum in declaration order.
type closedSet[T ~string] []T

func (s closedSet[T]) has(v T) bool {
	return slices.Contains(s, v)
}

func (s closedSet[T]) parse(kind, raw string) (T, error) {
	if v := T(raw); s.has(v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}

// lifecycle maps a state to its legal successors. A state with no entry is
// terminal.
type lifecycle[T ~string] map[T][]T

func (l lifecycle[T]) allows(from, to T) bool {
	return slices.Contains(l[from], to)
}

func (l lifecycle[T]) next(from T) []T {
	return slices.Clone(l[from])
}
