package models

import "time"

// TimestampLayout is the fixed-width ISO-8601 form saved_on is stored in.
// The offset is always numeric (+00:00, never Z) and is the offset of the
// bucket zone at save time, so the stored text names its own bucket date.
const TimestampLayout = "2006-01-02T15:04:05.000000-07:00"

// BucketLayout names a bucket after a calendar date, e.g. 20240131.
const BucketLayout = "20060102"

// ImageRecord is one row of the inbox table.
type ImageRecord struct {
	ID        int64
	PackID    string
	ImageName string
	SavedOn   time.Time
}

// FormatTimestamp keeps t in its own location. Callers convert to the bucket
// zone first.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}

// BucketName returns the bucket for a pack whose first image was saved at t,
// read as a calendar date in t's own location.
func BucketName(t time.Time) string {
	return t.Format(BucketLayout)
}

// Earliest returns the earliest instant in ts, keeping its recorded offset.
// The second result is false when ts is empty.
func Earliest(ts []time.Time) (time.Time, bool) {
	if len(ts) == 0 {
		return time.Time{}, false
	}
	first := ts[0]
	for _, t := range ts[1:] {
		if t.Before(first) {
			first = t
		}
	}
	return first, true
}
