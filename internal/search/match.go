package search

import (
	"github.com/kartikbazzad/bunbase/bunsearch/internal/coerce"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/schema"
)

// Matches reports whether a row satisfies every filter under the engine's
// typed comparison rules. Families whose native matching is weaker than the
// canonical semantics re-verify returned rows with it: the full-text index
// compares terms lexically, so a numeric range can surface false positives
// that a typed comparison rejects.
func Matches(table *schema.Table, f *SearchFilters, row map[string]any) bool {
	field := func(col string) (schema.Field, any) {
		fd, _ := table.Field(col)
		return fd, row[col]
	}

	for col, want := range f.Equal {
		fd, v := field(col)
		if coerce.IsAbsent(v) || !coerce.Equal(fd, v, want) {
			return false
		}
	}
	for col, want := range f.NotEqual {
		fd, v := field(col)
		if coerce.IsAbsent(v) || coerce.Equal(fd, v, want) {
			return false
		}
	}
	for col, wants := range f.OneOf {
		fd, v := field(col)
		if coerce.IsAbsent(v) {
			return false
		}
		hit := false
		for _, want := range wants {
			if coerce.Equal(fd, v, want) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	for col, r := range f.Range {
		fd, v := field(col)
		if coerce.IsAbsent(v) {
			return false
		}
		if r.Low != nil {
			cmp, err := coerce.Compare(fd, v, r.Low)
			if err != nil || cmp < 0 {
				return false
			}
		}
		if r.High != nil {
			cmp, err := coerce.Compare(fd, v, r.High)
			if err != nil || cmp > 0 {
				return false
			}
		}
	}
	for col, sub := range f.Fuzzy {
		_, v := field(col)
		if coerce.IsAbsent(v) || !coerce.Fuzzy(v, coerce.ToString(sub)) {
			return false
		}
	}
	for col := range f.Empty {
		if _, v := field(col); !coerce.IsAbsent(v) {
			return false
		}
	}
	for col := range f.NotEmpty {
		if _, v := field(col); coerce.IsAbsent(v) {
			return false
		}
	}
	for col, needles := range f.Contains {
		fd, v := field(col)
		if !coerce.ContainsAll(fd, v, needles) {
			return false
		}
	}
	for col, needles := range f.NotContains {
		// With no values listed the operator is an identity, same as the
		// compiled predicates.
		if len(needles) == 0 {
			continue
		}
		fd, v := field(col)
		if coerce.IsAbsent(v) || coerce.ContainsAll(fd, v, needles) {
			return false
		}
	}
	for col, needles := range f.ContainsAny {
		fd, v := field(col)
		if !coerce.ContainsAny(fd, v, needles) {
			return false
		}
	}
	return true
}
