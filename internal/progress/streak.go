package progress

import (
	"sort"
	"time"
)

// Streak counts consecutive calendar days with at least one completion,
// anchored at today or yesterday. A user who has not read yet today keeps
// their streak; the walk stops at the first gap. Calendar days are taken on a
// fixed UTC basis so the result is deterministic across devices.
func Streak(records []Record, today time.Time) int {
	if len(records) == 0 {
		return 0
	}

	uniqueDays := make(map[int64]struct{}, len(records))
	for _, record := range records {
		day := truncateToDay(time.Unix(record.CompletedAtSeconds, 0))
		uniqueDays[day.Unix()] = struct{}{}
	}

	days := make([]int64, 0, len(uniqueDays))
	for day := range uniqueDays {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] > days[j] })

	cursor := truncateToDay(today)
	if _, readToday := uniqueDays[cursor.Unix()]; !readToday {
		cursor = cursor.AddDate(0, 0, -1)
	}

	streak := 0
	for _, day := range days {
		if day != cursor.Unix() {
			break
		}
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return streak
}

func truncateToDay(value time.Time) time.Time {
	utc := value.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}
