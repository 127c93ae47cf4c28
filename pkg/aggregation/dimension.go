package aggregation

import (
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/eventlens/pkg/events"
)

const bucketPrefix = "@"

// Time bucket dimensions. Timestamps are read as milliseconds since the
// epoch and bucketed in UTC.
const (
	BucketHour    = "@hour"
	BucketDay     = "@day"
	BucketWeek    = "@week"
	BucketMonth   = "@month"
	BucketWeekday = "@weekday"
	BucketDaypart = "@daypart"
)

var buckets = map[string]func(time.Time) string{
	BucketHour:  func(t time.Time) string { return t.Format("2006-01-02T15") },
	BucketDay:   func(t time.Time) string { return t.Format(time.DateOnly) },
	BucketMonth: func(t time.Time) string { return t.Format("2006-01") },
	BucketWeek: func(t time.Time) string {
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	},
	BucketWeekday: func(t time.Time) string { return strings.ToLower(t.Weekday().String()) },
	BucketDaypart: daypart,
}

func daypart(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return "morning"
	case h >= 12 && h < 17:
		return "afternoon"
	case h >= 17 && h < 22:
		return "evening"
	default:
		return "night"
	}
}

// accessor extracts a field or dimension value from an event. Absent
// properties read as null with ok=false.
type accessor func(ev events.Event) (events.Value, bool)

func accessorFor(name string) accessor {
	switch name {
	case events.FieldSubjectID:
		return func(ev events.Event) (events.Value, bool) { return events.String(ev.SubjectID()), true }
	case events.FieldEventName:
		return func(ev events.Event) (events.Value, bool) { return events.String(ev.Name()), true }
	case events.FieldTimestamp:
		return func(ev events.Event) (events.Value, bool) { return events.Number(float64(ev.Timestamp())), true }
	}

	if bucket, ok := buckets[name]; ok {
		return func(ev events.Event) (events.Value, bool) {
			return events.String(bucket(time.UnixMilli(ev.Timestamp()).UTC())), true
		}
	}

	return func(ev events.Event) (events.Value, bool) {
		return ev.Property(name)
	}
}
