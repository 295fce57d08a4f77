package ingest

import "sort"

// StatusSpan is one stretch of a work item's history: the item held
// StatusValue from StartDate until ChangeDate. A nil ChangeDate means the
// span is still open and gets closed with the instructions end date during
// summarization.
type StatusSpan struct {
	StatusValue string  `json:"statusValue"`
	StartDate   string  `json:"startDate"`
	ChangeDate  *string `json:"changeDate"`
}

// UnifiedRecord is the cross-source common format for demand and defect
// items: the source id plus the full status history.
type UnifiedRecord struct {
	ID      string       `json:"id"`
	URI     string       `json:"uri,omitempty"`
	History []StatusSpan `json:"history"`
}

// DailySummary counts how many items sat in each status on one project day.
type DailySummary struct {
	ProjectDate string         `json:"projectDate"`
	Status      map[string]int `json:"status"`
}

// EffortRecord is the common format for time-tracking data: hours booked by
// one role on one day.
type EffortRecord struct {
	ID     string  `json:"id"`
	Day    string  `json:"day"`
	Role   string  `json:"role"`
	Effort float64 `json:"effort"`
}

// EffortSummary totals booked hours per role for one project day.
type EffortSummary struct {
	ProjectDate string             `json:"projectDate"`
	Activity    map[string]float64 `json:"activity"`
}

// SummarizeByDay buckets unified histories into per-day status counts. Each
// span contributes one count to its status for every day in
// [startDate, changeDate); open spans are closed with endDate.
func SummarizeByDay(records []UnifiedRecord, endDate string) []DailySummary {
	dated := map[string]map[string]int{}

	for _, record := range records {
		for _, span := range record.History {
			end := endDate
			if span.ChangeDate != nil {
				end = *span.ChangeDate
			}
			for _, day := range DayArray(span.StartDate, end) {
				counts, ok := dated[day]
				if !ok {
					counts = map[string]int{}
					dated[day] = counts
				}
				counts[span.StatusValue]++
			}
		}
	}

	days := make([]string, 0, len(dated))
	for day := range dated {
		days = append(days, day)
	}
	sort.Strings(days)

	summaries := make([]DailySummary, 0, len(days))
	for _, day := range days {
		summaries = append(summaries, DailySummary{ProjectDate: day, Status: dated[day]})
	}
	return summaries
}

// SummarizeEffort totals effort records into per-day, per-role hour counts.
func SummarizeEffort(records []EffortRecord) []EffortSummary {
	dated := map[string]map[string]float64{}

	for _, record := range records {
		activity, ok := dated[record.Day]
		if !ok {
			activity = map[string]float64{}
			dated[record.Day] = activity
		}
		activity[record.Role] += record.Effort
	}

	days := make([]string, 0, len(dated))
	for day := range dated {
		days = append(days, day)
	}
	sort.Strings(days)

	summaries := make([]EffortSummary, 0, len(days))
	for _, day := range days {
		summaries = append(summaries, EffortSummary{ProjectDate: day, Activity: dated[day]})
	}
	return summaries
}
