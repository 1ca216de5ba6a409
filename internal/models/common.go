package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// MinuteOfDay converts an "HH:MM" clock string to minutes since midnight.
// Returns -1 for malformed input.
func MinuteOfDay(clock string) int {
	parts := strings.SplitN(strings.TrimSpace(clock), ":", 2)
	if len(parts) != 2 {
		return -1
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return -1
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return -1
	}
	return hour*60 + minute
}

// ClockString renders minutes since midnight as "HH:MM".
func ClockString(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Overlaps reports whether two half-open minute ranges intersect. Ranges that
// only touch at a boundary do not overlap.
func Overlaps(startA, endA, startB, endB int) bool {
	return startA < endB && startB < endA
}
