package solver

import (
	"time"

	"github.com/edusched/timetable-api/internal/models"
	"github.com/edusched/timetable-api/pkg/config"
)

// GenerateSlots expands institution opening hours into the candidate slot
// domain for a date window. Non-teaching weekdays and holidays are skipped;
// each slot spans one lesson block, separated by the policy interval.
func GenerateSlots(from, to time.Time, holidays []time.Time, policy config.PolicyConfig) []Slot {
	opening := models.MinuteOfDay(policy.OpeningTime)
	closing := models.MinuteOfDay(policy.ClosingTime)
	block := policy.LessonBlockMinutes
	interval := policy.IntervalMinutes
	if opening < 0 || closing <= opening || block <= 0 {
		return nil
	}

	teaching := make(map[int]bool, len(policy.TeachingDays))
	for _, day := range policy.TeachingDays {
		teaching[day] = true
	}
	skip := make(map[string]bool, len(holidays))
	for _, h := range holidays {
		skip[h.Format("2006-01-02")] = true
	}

	var slots []Slot
	for date := truncateDate(from); !date.After(truncateDate(to)); date = date.AddDate(0, 0, 1) {
		if !teaching[isoWeekday(date)] || skip[date.Format("2006-01-02")] {
			continue
		}
		for start := opening; start+block <= closing; start += block + interval {
			slots = append(slots, Slot{Date: date, Start: start, End: start + block})
		}
	}
	return slots
}

// isoWeekday maps time.Weekday to 1=Monday..7=Sunday.
func isoWeekday(date time.Time) int {
	wd := int(date.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func truncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
