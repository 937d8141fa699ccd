// Package env converts between environment assignment lists and maps and
// parses boolean environment values.
package env

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/samber/lo"
)

const keyValueParts = 2 // Number of parts in a key=value pair.

// ToMap turns KEY=VALUE assignments into a map. Entries without '=' are dropped.
func ToMap(assignments []string) map[string]string {
	return lo.FromPairs(lo.FilterMap(assignments, func(item string, _ int) (lo.Entry[string, string], bool) {
		parts := strings.SplitN(item, "=", keyValueParts)
		if len(parts) != keyValueParts {
			return lo.Entry[string, string]{}, false
		}

		return lo.Entry[string, string]{Key: parts[0], Value: parts[1]}, true
	}))
}

// ToAssignments turns a map into sorted KEY=VALUE assignments.
func ToAssignments(envMap map[string]string) []string {
	out := lo.MapToSlice(envMap, func(k, v string) string {
		return k + "=" + v
	})
	sort.Strings(out)
	return out
}

// Merge returns the process environment with overlay applied on top.
func Merge(overlay map[string]string) []string {
	merged := ToMap(os.Environ())
	for k, v := range overlay {
		merged[k] = v
	}
	return ToAssignments(merged)
}

// ErrInvalidBool is returned when a string cannot be parsed as a boolean.
var ErrInvalidBool = errors.New("invalid boolean value")

// ParseBool interprets a string as a boolean.
//
// Accepted values (case-insensitive, after trimming):
//   - "true", "yes", "1"  -> true
//   - "false", "no", "0"  -> false
//   - "" (empty)          -> false, nil error
//   - any other non-empty -> false, ErrInvalidBool
func ParseBool(value string) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return false, nil
	}

	switch strings.ToLower(value) {
	case "true", "yes", "1":
		return true, nil
	case "false", "no", "0":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidBool, value)
	}
}
