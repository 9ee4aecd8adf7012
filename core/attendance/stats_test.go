package attendance

import (
	"reflect"
	"testing"
	"time"
)

func day(s string) time.Time {
	d, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return d
}

func record(date string, students ...StudentAttendance) Record {
	return Record{
		ID:       "rec-" + date,
		ClassID:  "class-1",
		Date:     day(date),
		Type:     TypeDate,
		Students: students,
		Version:  1,
	}
}

func mark(id string, status Status) StudentAttendance {
	return StudentAttendance{StudentID: id, Status: status}
}

func TestAggregateClass(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
		want    Summary
	}{
		{name: "no records", want: Summary{}},
		{
			// 10 students: 8 present, 1 late, 1 absent -> 90.00
			name: "late counts as attended",
			records: []Record{record("2024-01-01",
				mark("s1", StatusPresent), mark("s2", StatusPresent), mark("s3", StatusPresent),
				mark("s4", StatusPresent), mark("s5", StatusPresent), mark("s6", StatusPresent),
				mark("s7", StatusPresent), mark("s8", StatusPresent),
				mark("s9", StatusLate), mark("s10", StatusAbsent),
			)},
			want: Summary{Total: 10, Present: 8, Absent: 1, Late: 1, Rate: 90.00},
		},
		{
			name: "sums across records",
			records: []Record{
				record("2024-01-01", mark("s1", StatusPresent), mark("s2", StatusExcused)),
				record("2024-01-02", mark("s1", StatusAbsent), mark("s2", StatusPresent)),
			},
			want: Summary{Total: 4, Present: 2, Absent: 1, Excused: 1, Rate: 50.00},
		},
		{
			name: "rate is rounded to 2 decimals",
			records: []Record{record("2024-01-01",
				mark("s1", StatusPresent), mark("s2", StatusPresent), mark("s3", StatusAbsent),
			)},
			want: Summary{Total: 3, Present: 2, Absent: 1, Rate: 66.67},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AggregateClass(tt.records); got != tt.want {
				t.Errorf("AggregateClass() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAggregatePerStudent(t *testing.T) {
	// 5 days: present 3, absent 1, late 1 -> 60.00 (late excluded)
	records := []Record{
		record("2024-01-01", mark("s1", StatusPresent), mark("s2", StatusAbsent)),
		record("2024-01-02", mark("s1", StatusPresent)),
		record("2024-01-03", mark("s1", StatusAbsent), mark("s2", StatusPresent)),
		record("2024-01-04", mark("s1", StatusLate)),
		record("2024-01-05", mark("s1", StatusPresent)),
	}

	got := AggregatePerStudent(records, "s1")
	want := Summary{Total: 5, Present: 3, Absent: 1, Late: 1, Rate: 60.00}
	if got != want {
		t.Errorf("AggregatePerStudent(s1) = %+v, want %+v", got, want)
	}

	// s2 appears in 2 of the 5 records only
	got = AggregatePerStudent(records, "s2")
	want = Summary{Total: 2, Present: 1, Absent: 1, Rate: 50.00}
	if got != want {
		t.Errorf("AggregatePerStudent(s2) = %+v, want %+v", got, want)
	}

	if got := AggregatePerStudent(records, "unknown"); got != (Summary{}) {
		t.Errorf("AggregatePerStudent(unknown) = %+v, want zero summary", got)
	}
}

func TestRateTrend(t *testing.T) {
	tests := []struct {
		name             string
		recent, previous float64
		want             Trend
	}{
		{"higher is improving", 80, 60, TrendImproving},
		{"lower is declining", 60, 80, TrendDeclining},
		{"equal is stable", 75, 75, TrendStable},
		{"tiny increase is improving", 75.01, 75, TrendImproving},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RateTrend(tt.recent, tt.previous); got != tt.want {
				t.Errorf("RateTrend(%v, %v) = %v, want %v", tt.recent, tt.previous, got, tt.want)
			}
		})
	}
}

func TestDailyBreakdown(t *testing.T) {
	records := []Record{
		record("2024-01-02", mark("s1", StatusPresent), mark("s2", StatusLate)),
		record("2024-01-01", mark("s1", StatusAbsent)),
		record("2024-01-02", mark("s3", StatusExcused)), // same day, lecture record
	}

	got := DailyBreakdown(records)
	want := []DailyCount{
		{Date: day("2024-01-02"), Present: 1, Late: 1, Excused: 1},
		{Date: day("2024-01-01"), Absent: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DailyBreakdown() = %+v, want %+v", got, want)
	}
}

func TestComputeStatisticsDeterminism(t *testing.T) {
	records := []Record{
		record("2024-01-01", mark("s1", StatusAbsent), mark("s2", StatusPresent)),
		record("2024-01-02", mark("s1", StatusPresent), mark("s2", StatusPresent)),
		record("2024-01-03", mark("s1", StatusPresent), mark("s2", StatusAbsent)),
		record("2024-01-04", mark("s1", StatusPresent), mark("s2", StatusAbsent)),
	}

	first := ComputeStatistics(records)
	for i := 0; i < 5; i++ {
		if got := ComputeStatistics(records); !reflect.DeepEqual(got, first) {
			t.Fatalf("ComputeStatistics() not deterministic: %+v != %+v", got, first)
		}
	}

	// s1: earlier half 50%, later half 100% -> improving; s2 the reverse
	byID := make(map[string]StudentStatistics)
	for _, st := range first.Students {
		byID[st.StudentID] = st
	}
	if got := byID["s1"].Trend; got != TrendImproving {
		t.Errorf("s1 trend = %v, want %v", got, TrendImproving)
	}
	if got := byID["s2"].Trend; got != TrendDeclining {
		t.Errorf("s2 trend = %v, want %v", got, TrendDeclining)
	}
}
