package leads

import "time"

// Urgency is the bucket describing how soon the move happens.
type Urgency string

const (
	UrgencyPastDate Urgency = "Past Date"
	UrgencyUrgent   Urgency = "Urgent"
	UrgencyModerate Urgency = "Urgent Moderate"
	UrgencyLow      Urgency = "Urgent Low"
)

// Bucket boundaries in whole days, inclusive.
const (
	UrgentMaxDays   = 7
	ModerateMaxDays = 21
)

// ClassifyTimeline buckets the move by the number of calendar days between today
// and movingDate. Both values are read as calendar dates in their own location, so
// callers pass today already converted to the business time zone.
func ClassifyTimeline(movingDate, today time.Time) Urgency {
	return classifyDays(DaysUntil(movingDate, today))
}

// DaysUntil returns the whole calendar days from today to target.
func DaysUntil(target, today time.Time) int {
	t := civilDate(target)
	n := civilDate(today)
	return int(t.Sub(n).Hours() / 24)
}

func classifyDays(days int) Urgency {
	switch {
	case days < 0:
		return UrgencyPastDate
	case days <= UrgentMaxDays:
		return UrgencyUrgent
	case days <= ModerateMaxDays:
		return UrgencyModerate
	default:
		return UrgencyLow
	}
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// rank orders buckets from least to most urgent.
func (u Urgency) rank() int {
	switch u {
	case UrgencyLow:
		return 0
	case UrgencyModerate:
		return 1
	case UrgencyUrgent:
		return 2
	case UrgencyPastDate:
		return 3
	}
	return -1
}
