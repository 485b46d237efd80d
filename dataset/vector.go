package dataset

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatVector renders v as a bracketed list, "[0.1, -2, 3.5]". An empty
// vector renders as an empty cell.
func FormatVector[T float32 | float64](v []T, bitSize int) string {
	if len(v) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'g', -1, bitSize))
	}
	b.WriteByte(']')
	return b.String()
}

// ParseVector reverses FormatVector. Blank input yields a nil vector.
func ParseVector[T float32 | float64](s string, bitSize int) ([]T, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "[]" {
		return nil, nil
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")

	fields := strings.Split(s, ",")
	v := make([]T, len(fields))
	for i, field := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(field), bitSize)
		if err != nil {
			return nil, fmt.Errorf("invalid vector element %d: %w", i, err)
		}
		v[i] = T(x)
	}
	return v, nil
}
