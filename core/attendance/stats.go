package attendance

import (
	"sort"
	"time"

	"github.com/wazoefu/mahudhurio/core"
)

// Trend classifies the change of a student's attendance rate between two
// periods.
const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

type Trend string

type (
	// Summary holds status counts over a set of records plus the derived
	// attendance rate in percent, rounded to 2 decimals.
	Summary struct {
		Total   int     `json:"total"`
		Present int     `json:"present"`
		Absent  int     `json:"absent"`
		Late    int     `json:"late"`
		Excused int     `json:"excused"`
		Rate    float64 `json:"attendance_rate"`
		Trend   Trend   `json:"trend,omitempty"`
	}

	StudentStatistics struct {
		StudentID string `json:"student_id"`
		Summary
	}

	DailyCount struct {
		Date    time.Time `json:"date"`
		Present int       `json:"present"`
		Absent  int       `json:"absent"`
		Late    int       `json:"late"`
		Excused int       `json:"excused"`
	}

	// Statistics is the full derived view for a class over a period.
	Statistics struct {
		Overall  Summary             `json:"overall"`
		Students []StudentStatistics `json:"students"`
		Daily    []DailyCount        `json:"daily"`
	}
)

// AggregateClass sums status counts across every student entry in every
// record. The rate counts late arrivals as attended:
// (present+late)/total*100. Total is the number of student entries, not
// the roster size; absent students appear as explicit entries.
func AggregateClass(records []Record) Summary {
	var s Summary
	for i := range records {
		for _, sa := range records[i].Students {
			s.count(sa.Status)
		}
	}
	if s.Total > 0 {
		s.Rate = core.Round2(float64(s.Present+s.Late) / float64(s.Total) * 100)
	}
	return s
}

// AggregatePerStudent restricts the aggregation to one student. Total is
// the number of records containing the student; the rate counts only
// present days: present/total*100. Note late days do not count toward a
// student's own rate, unlike the class-wide rate.
func AggregatePerStudent(records []Record, studentID string) Summary {
	var s Summary
	for i := range records {
		if sa := records[i].Student(studentID); sa != nil {
			s.count(sa.Status)
		}
	}
	if s.Total > 0 {
		s.Rate = core.Round2(float64(s.Present) / float64(s.Total) * 100)
	}
	return s
}

// RateTrend compares two periods' rates; equal rates are stable.
func RateTrend(recentRate, previousRate float64) Trend {
	switch {
	case recentRate > previousRate:
		return TrendImproving
	case recentRate < previousRate:
		return TrendDeclining
	}
	return TrendStable
}

// DailyBreakdown returns one entry per distinct date present in the
// input, in order of first appearance. Chronological ordering is the
// caller's concern.
func DailyBreakdown(records []Record) []DailyCount {
	idx := make(map[string]int)
	out := make([]DailyCount, 0, len(records))
	for i := range records {
		day := core.DateOnly(records[i].Date)
		k := day.Format("2006-01-02")
		j, ok := idx[k]
		if !ok {
			j = len(out)
			idx[k] = j
			out = append(out, DailyCount{Date: day})
		}
		for _, sa := range records[i].Students {
			switch sa.Status {
			case StatusPresent:
				out[j].Present++
			case StatusAbsent:
				out[j].Absent++
			case StatusLate:
				out[j].Late++
			case StatusExcused:
				out[j].Excused++
			}
		}
	}
	return out
}

// ComputeStatistics derives the full class view from a record set.
// Per-student trends compare the later half of the period against the
// earlier half. Pure and deterministic: identical input yields identical
// output.
func ComputeStatistics(records []Record) Statistics {
	earlier, later := splitByDate(records)

	ids := studentIDs(records)
	students := make([]StudentStatistics, 0, len(ids))
	for _, id := range ids {
		sum := AggregatePerStudent(records, id)
		sum.Trend = RateTrend(
			AggregatePerStudent(later, id).Rate,
			AggregatePerStudent(earlier, id).Rate,
		)
		students = append(students, StudentStatistics{StudentID: id, Summary: sum})
	}

	return Statistics{
		Overall:  AggregateClass(records),
		Students: students,
		Daily:    DailyBreakdown(records),
	}
}

// splitByDate halves the record set on its distinct dates.
func splitByDate(records []Record) (earlier, later []Record) {
	if len(records) == 0 {
		return nil, nil
	}
	dates := make([]string, 0, len(records))
	seen := make(map[string]bool)
	for i := range records {
		k := core.DateOnly(records[i].Date).Format("2006-01-02")
		if !seen[k] {
			seen[k] = true
			dates = append(dates, k)
		}
	}
	sort.Strings(dates)
	pivot := dates[len(dates)/2]
	for i := range records {
		if core.DateOnly(records[i].Date).Format("2006-01-02") < pivot {
			earlier = append(earlier, records[i])
		} else {
			later = append(later, records[i])
		}
	}
	return earlier, later
}

func studentIDs(records []Record) []string {
	seen := make(map[string]bool)
	ids := make([]string, 0)
	for i := range records {
		for _, sa := range records[i].Students {
			if !seen[sa.StudentID] {
				seen[sa.StudentID] = true
				ids = append(ids, sa.StudentID)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *Summary) count(status Status) {
	s.Total++
	switch status {
	case StatusPresent:
		s.Present++
	case StatusAbsent:
		s.Absent++
	case StatusLate:
		s.Late++
	case StatusExcused:
		s.Excused++
	}
}
