package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Defaults and limits for the query shapes
const (
	DefaultPage        = 1
	DefaultPageSize    = 5
	DefaultRecentLimit = 10
	MaxPageSize        = 100
)

// ParseDeviceID parses a device id path segment
func ParseDeviceID(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, invalidArgument("Device ID is required")
	}
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, invalidArgument("Invalid Device ID format")
	}
	return id, nil
}

// ParsePositiveInt parses an optional positive query parameter.
// An empty value yields def.
func ParsePositiveInt(name, s string, def int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, invalidArgument(fmt.Sprintf("%s must be a positive integer", name))
	}
	return n, nil
}
