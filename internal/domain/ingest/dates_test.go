package ingest_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/felixgeelhaar/pulse/internal/domain/ingest"
)

func TestDayArray(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
		want  []string
	}{
		{
			name:  "consecutive days excluding the end",
			start: "2016-01-01",
			end:   "2016-01-04",
			want:  []string{"2016-01-01", "2016-01-02", "2016-01-03"},
		},
		{
			name:  "leap year february",
			start: "2016-02-28",
			end:   "2016-03-01",
			want:  []string{"2016-02-28", "2016-02-29"},
		},
		{
			name:  "equal bounds yield nothing",
			start: "2016-01-01",
			end:   "2016-01-01",
			want:  nil,
		},
		{
			name:  "inverted bounds yield nothing",
			start: "2016-01-05",
			end:   "2016-01-01",
			want:  nil,
		},
		{
			name:  "unparseable start yields nothing",
			start: "not a date",
			end:   "2016-01-01",
			want:  nil,
		},
		{
			name:  "timestamps collapse to days",
			start: "2016-01-01T08:30:00Z",
			end:   "2016-01-03T23:59:59Z",
			want:  []string{"2016-01-01", "2016-01-02"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ingest.DayArray(tt.start, tt.end)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DayArray(%q, %q) = %v, want %v", tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestDayStamp(t *testing.T) {
	moment := time.Date(2016, 3, 15, 23, 30, 0, 0, time.UTC)
	if got := ingest.DayStamp(moment); got != "2016-03-15" {
		t.Errorf("DayStamp() = %q, want 2016-03-15", got)
	}
}
