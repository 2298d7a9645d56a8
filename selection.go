package elmo

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

var rangePattern = regexp.MustCompile(`^(\d+)\s*-\s*(\d+)$`)

// ParseSelection parses a list such as "1, 3-5; 8" into a sorted list of
// unique numbers between 1 and limit. Reversed ranges are accepted.
// An empty selection is an error.
func ParseSelection(value string, limit int) ([]int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSelection)
	}

	seen := map[int]bool{}
	var result []int
	add := func(n int) {
		if seen[n] {
			return
		}
		seen[n] = true
		result = append(result, n)
	}

	for _, part := range strings.Split(strings.ReplaceAll(value, ";", ","), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if m := rangePattern.FindStringSubmatch(part); m != nil {
			start, _ := strconv.Atoi(m[1])
			end, _ := strconv.Atoi(m[2])
			lo, hi := min(start, end), max(start, end)
			if lo < 1 || hi > limit {
				return nil, fmt.Errorf("%w: %q out of range 1-%d", ErrInvalidSelection, part, limit)
			}
			for n := lo; n <= hi; n++ {
				add(n)
			}
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSelection, part)
		}
		if n < 1 || n > limit {
			return nil, fmt.Errorf("%w: %d out of range 1-%d", ErrInvalidSelection, n, limit)
		}
		add(n)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSelection)
	}
	slices.Sort(result)
	return result, nil
}

// FormatSelection is the inverse of ParseSelection, compacting consecutive
// numbers into ranges.
func FormatSelection(values []int) string {
	if len(values) == 0 {
		return ""
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	var parts []string
	start, prev := sorted[0], sorted[0]
	flush := func() {
		if start == prev {
			parts = append(parts, strconv.Itoa(start))
			return
		}
		parts = append(parts, fmt.Sprintf("%d-%d", start, prev))
	}
	for _, v := range sorted[1:] {
		if v == prev+1 {
			prev = v
			continue
		}
		flush()
		start, prev = v, v
	}
	flush()
	return strings.Join(parts, ", ")
}

// NormalizeSelection keeps the numbers between 1 and limit, sorted and
// without duplicates.
func NormalizeSelection(values []int, limit int) []int {
	var result []int
	for _, v := range values {
		if v < 1 || v > limit || slices.Contains(result, v) {
			continue
		}
		result = append(result, v)
	}
	slices.Sort(result)
	return result
}

// FirstN returns 1..n, clamped to limit.
func FirstN(n, limit int) []int {
	n = clamp(n, 1, limit)
	result := make([]int, n)
	for i := range result {
		result[i] = i + 1
	}
	return result
}
