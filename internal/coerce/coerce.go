// Package coerce defines per-field-type comparison and normalization rules.
// Every adapter and the in-process evaluation paths go through these so that
// equality, ordering, fuzzy matching and reference shaping behave identically
// regardless of which backend produced the values.
package coerce

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kartikbazzad/bunbase/bunsearch/internal/schema"
)

// IsAbsent reports whether a field value counts as null-or-absent. Absence is
// governed solely by the empty/notEmpty operators; comparison operators only
// ever see present rows.
func IsAbsent(v any) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	}
	return false
}

// ParseBigint parses a bigint column value. Bigints travel as strings so they
// stay exact beyond float64's safe-integer magnitude; comparison is int64,
// never floating point.
func ParseBigint(v any) (int64, error) {
	switch t := v.(type) {
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid bigint %q: %w", t, err)
		}
		return n, nil
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case float64:
		// JSON decoding can hand us a float for small literals. Reject
		// anything with a fractional part rather than rounding.
		n := int64(t)
		if float64(n) != t {
			return 0, fmt.Errorf("invalid bigint %v: not an integer", t)
		}
		return n, nil
	}
	return 0, fmt.Errorf("invalid bigint value of type %T", v)
}

// ToNumber converts a number column value to float64.
func ToNumber(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q: %w", t, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("invalid number value of type %T", v)
}

// ToDatetime converts a datetime column value to its canonical RFC 3339 UTC
// string. Canonical datetimes order lexicographically.
func ToDatetime(v any) (string, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano), nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			parsed, err = time.Parse(time.RFC3339, t)
		}
		if err != nil {
			return "", fmt.Errorf("invalid datetime %q: %w", t, err)
		}
		return parsed.UTC().Format(time.RFC3339Nano), nil
	}
	return "", fmt.Errorf("invalid datetime value of type %T", v)
}

// ToTime converts a datetime column value to time.Time for drivers that bind
// timestamps natively.
func ToTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			parsed, err = time.Parse(time.RFC3339, t)
		}
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid datetime %q: %w", t, err)
		}
		return parsed.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid datetime value of type %T", v)
}

// ToString renders a scalar the way filters compare strings.
func ToString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// RefID extracts the identifier from a reference value. References compare by
// _id only; any enriched fields on the object are ignored.
func RefID(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return "", false
		}
		return t, true
	case map[string]any:
		id, ok := t["_id"].(string)
		return id, ok && id != ""
	}
	return "", false
}

// NormalizeRefs shapes a link field value as an ordered []map{_id}. The
// deprecated legacy representation stores even single references wrapped in a
// one-element array; callers never see that distinction.
func NormalizeRefs(v any) []map[string]any {
	var out []map[string]any
	appendRef := func(item any) {
		if id, ok := RefID(item); ok {
			out = append(out, map[string]any{"_id": id})
		}
	}
	switch t := v.(type) {
	case nil:
		return []map[string]any{}
	case []any:
		for _, item := range t {
			appendRef(item)
		}
	default:
		appendRef(t)
	}
	if out == nil {
		out = []map[string]any{}
	}
	return out
}

// Compare orders two present values of the same column. Returns <0, 0, >0.
func Compare(f schema.Field, a, b any) (int, error) {
	switch f.Type {
	case schema.FieldNumber, schema.FieldAutonumber:
		fa, err := ToNumber(a)
		if err != nil {
			return 0, err
		}
		fb, err := ToNumber(b)
		if err != nil {
			return 0, err
		}
		switch {
		case fa < fb:
			return -1, nil
		case fa > fb:
			return 1, nil
		}
		return 0, nil
	case schema.FieldBigint:
		ia, err := ParseBigint(a)
		if err != nil {
			return 0, err
		}
		ib, err := ParseBigint(b)
		if err != nil {
			return 0, err
		}
		switch {
		case ia < ib:
			return -1, nil
		case ia > ib:
			return 1, nil
		}
		return 0, nil
	case schema.FieldDatetime:
		da, err := ToDatetime(a)
		if err != nil {
			return 0, err
		}
		db, err := ToDatetime(b)
		if err != nil {
			return 0, err
		}
		return strings.Compare(da, db), nil
	case schema.FieldBoolean:
		ba, err := ToBool(a)
		if err != nil {
			return 0, err
		}
		bb, err := ToBool(b)
		if err != nil {
			return 0, err
		}
		switch {
		case !ba && bb:
			return -1, nil
		case ba && !bb:
			return 1, nil
		}
		return 0, nil
	}
	return strings.Compare(ToString(a), ToString(b)), nil
}

// ToBool converts a boolean column value.
func ToBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1":
			return true, nil
		case "false", "0", "":
			return false, nil
		}
		return false, fmt.Errorf("invalid boolean %q", t)
	case float64:
		return t != 0, nil
	case int:
		return t != 0, nil
	case int64:
		return t != 0, nil
	}
	return false, fmt.Errorf("invalid boolean value of type %T", v)
}

// Equal reports type-aware equality for present values.
func Equal(f schema.Field, a, b any) bool {
	if f.Type == schema.FieldLink {
		ida, oka := RefID(a)
		idb, okb := RefID(b)
		return oka && okb && ida == idb
	}
	c, err := Compare(f, a, b)
	if err != nil {
		// Uncomparable values fall back to string identity so a bad row
		// never aborts a scan.
		return ToString(a) == ToString(b)
	}
	return c == 0
}

// LikePattern escapes SQL LIKE metacharacters (backslash escape convention)
// and wraps the term for substring matching.
func LikePattern(sub string) string {
	sub = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(sub)
	return "%" + sub + "%"
}

// Fuzzy reports case-insensitive substring containment. Only meaningful for
// string/longform columns; other types match on their string rendering.
func Fuzzy(v any, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(ToString(v)), strings.ToLower(substr))
}

// members renders a multi-valued field as the set of its member keys.
func members(f schema.Field, v any) map[string]struct{} {
	set := make(map[string]struct{})
	add := func(item any) {
		if f.Type == schema.FieldLink {
			if id, ok := RefID(item); ok {
				set[id] = struct{}{}
			}
			return
		}
		set[ToString(item)] = struct{}{}
	}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			add(item)
		}
	case nil:
	default:
		add(t)
	}
	return set
}

// ContainsAll reports whether a multi-valued field holds every needle. An
// empty needle list matches every row; that identity is part of the filter
// contract, not a degenerate case.
func ContainsAll(f schema.Field, fieldVal any, needles []any) bool {
	if len(needles) == 0 {
		return true
	}
	set := members(f, fieldVal)
	for _, n := range needles {
		key := ToString(n)
		if f.Type == schema.FieldLink {
			id, ok := RefID(n)
			if !ok {
				return false
			}
			key = id
		}
		if _, ok := set[key]; !ok {
			return false
		}
	}
	return true
}

// ContainsAny reports whether a multi-valued field holds at least one needle.
// An empty needle list matches every row.
func ContainsAny(f schema.Field, fieldVal any, needles []any) bool {
	if len(needles) == 0 {
		return true
	}
	set := members(f, fieldVal)
	for _, n := range needles {
		key := ToString(n)
		if f.Type == schema.FieldLink {
			if id, ok := RefID(n); ok {
				key = id
			}
		}
		if _, ok := set[key]; ok {
			return true
		}
	}
	return false
}

// ValidateValue checks a resolved filter value against the column type. This
// runs after binding resolution so template output gets the same checking as
// literal values.
func ValidateValue(f schema.Field, v any) error {
	if v == nil {
		return nil
	}
	switch f.Type {
	case schema.FieldNumber, schema.FieldAutonumber:
		_, err := ToNumber(v)
		return err
	case schema.FieldBigint:
		_, err := ParseBigint(v)
		return err
	case schema.FieldDatetime:
		_, err := ToDatetime(v)
		return err
	case schema.FieldBoolean:
		_, err := ToBool(v)
		return err
	case schema.FieldLink:
		if _, ok := RefID(v); !ok {
			return fmt.Errorf("invalid reference value %v", v)
		}
	}
	return nil
}

// SortKind is the comparison family used when ordering rows on a column.
type SortKind string

const (
	SortString SortKind = "string"
	SortNumber SortKind = "number"
)

// DefaultSortKind infers the sort kind from the column type.
func DefaultSortKind(f schema.Field) SortKind {
	switch f.Type {
	case schema.FieldNumber, schema.FieldBigint, schema.FieldAutonumber:
		return SortNumber
	}
	return SortString
}
