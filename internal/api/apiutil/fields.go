package apiutil

import (
	"fmt"
	"strconv"
	"strings"
)

func ParsePositiveIntField(raw string, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", field)
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", field)
	}
	return value, nil
}

// ParseDayOfWeek parses a 0=Sunday..6=Saturday index.
func ParseDayOfWeek(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("day_of_week is required")
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 || value > 6 {
		return 0, fmt.Errorf("day_of_week must be between 0 and 6")
	}
	return value, nil
}

func FirstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// NullableString returns nil for blank strings so JSON omits them.
func NullableString(value string, valid bool) *string {
	if !valid || strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
