package ingest

import "time"

// DayFormat is the storage date format. Summaries, watermarks, and span
// boundaries all collapse to calendar days in this form.
const DayFormat = "2006-01-02"

// DefaultStartDate is the since watermark for full LOAD events: early enough
// to fetch everything the source still has.
const DefaultStartDate = "2000-01-01"

// DayStamp formats a time as a storage day.
func DayStamp(t time.Time) string {
	return t.UTC().Format(DayFormat)
}

// DayArray expands [start, end) into consecutive day stamps. The end day is
// excluded: a span that changed status on a day no longer counts on that day.
// Unparseable or inverted bounds yield an empty slice.
func DayArray(start, end string) []string {
	from, err := parseDay(start)
	if err != nil {
		return nil
	}
	to, err := parseDay(end)
	if err != nil {
		return nil
	}

	var days []string
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DayFormat))
	}
	return days
}

// parseDay reads the calendar-day prefix of a date string, tolerating full
// timestamps the way source systems deliver them.
func parseDay(value string) (time.Time, error) {
	if len(value) > len(DayFormat) {
		value = value[:len(DayFormat)]
	}
	return time.Parse(DayFormat, value)
}
