package todopage

import (
	"errors"
	"fmt"
	"strings"
)

// FilterMode selects which items the app shows.
type FilterMode string

const (
	FilterAll       FilterMode = "all"
	FilterActive    FilterMode = "active"
	FilterCompleted FilterMode = "completed"
)

var ErrUnknownFilter = errors.New("unknown filter mode")

// ParseFilterMode accepts the mode names in any case.
func ParseFilterMode(s string) (FilterMode, error) {
	switch m := FilterMode(strings.ToLower(strings.TrimSpace(s))); m {
	case FilterAll, FilterActive, FilterCompleted:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFilter, s)
}
