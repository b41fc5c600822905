package clock

import (
	"fmt"
	"time"
)

const (
	hoursPerDay = 24
	daysPerWeek = 7
)

// Label buckets the time elapsed between createdAt and now into a short
// Korean phrase. Clock skew (now before createdAt) counts as no time elapsed.
// Posts older than a week get an absolute date in now's location.
func Label(createdAt, now time.Time) string {
	elapsed := now.Sub(createdAt)
	if elapsed < 0 {
		elapsed = 0
	}

	minutes := int64(elapsed / time.Minute)
	if minutes < 1 {
		return "방금 전"
	}
	if minutes < 60 {
		return fmt.Sprintf("%d분 전", minutes)
	}

	hours := int64(elapsed / time.Hour)
	if hours < hoursPerDay {
		return fmt.Sprintf("%d시간 전", hours)
	}

	days := hours / hoursPerDay
	if days < daysPerWeek {
		return fmt.Sprintf("%d일 전", days)
	}

	return ShortDate(createdAt.In(now.Location()))
}

// ShortDate formats t the way ko-KR renders a numeric date, e.g. "2026. 3. 1.".
func ShortDate(t time.Time) string {
	return fmt.Sprintf("%d. %d. %d.", t.Year(), int(t.Month()), t.Day())
}
