package stepseq

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Unit is the calendar unit of a step interval.
type Unit byte

const (
	Day   Unit = 'D'
	Week  Unit = 'W'
	Month Unit = 'M'
	Year  Unit = 'Y'
)

// Interval is a calendar step length such as 1M or 5D.
type Interval struct {
	N    int
	Unit Unit
}

// ParseInterval parses "<n><unit>" with unit D, W, M or Y (case-insensitive); n defaults to 1.
func ParseInterval(s string) (Interval, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Interval{}, fmt.Errorf("empty interval")
	}
	unit := Unit(s[len(s)-1])
	switch unit {
	case Day, Week, Month, Year:
	default:
		return Interval{}, fmt.Errorf("interval %q: unit must be one of D, W, M, Y", s)
	}
	n := 1
	if digits := s[:len(s)-1]; digits != "" {
		v, err := strconv.Atoi(digits)
		if err != nil || v <= 0 {
			return Interval{}, fmt.Errorf("interval %q: count must be a positive integer", s)
		}
		n = v
	}
	return Interval{N: n, Unit: unit}, nil
}

func (i Interval) String() string {
	return fmt.Sprintf("%d%c", i.N, i.Unit)
}

// nameLayout is the layout of step identifiers: months and years are named by month, shorter steps by day.
func (i Interval) nameLayout() string {
	if i.Unit == Month || i.Unit == Year {
		return "2006-01"
	}
	return "2006-01-02"
}

// boundary returns the k-th window boundary counted from anchor. Month arithmetic clamps to the
// month end; under noLeap February always ends on the 28th.
func (i Interval) boundary(anchor time.Time, k int, noLeap bool) time.Time {
	switch i.Unit {
	case Day:
		return anchor.AddDate(0, 0, k*i.N)
	case Week:
		return anchor.AddDate(0, 0, 7*k*i.N)
	case Month:
		return addMonthsClamped(anchor, k*i.N, noLeap)
	default:
		return addMonthsClamped(anchor, 12*k*i.N, noLeap)
	}
}

func addMonthsClamped(t time.Time, months int, noLeap bool) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), 0, t.Location())
	day := t.Day()
	if last := daysIn(first.Year(), first.Month(), noLeap); day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}

func daysIn(year int, month time.Month, noLeap bool) int {
	if noLeap && month == time.February {
		return 28
	}
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// skipLeapDay moves a Feb 29 boundary to Mar 1 for no-leap calendars.
func skipLeapDay(t time.Time) time.Time {
	if t.Month() == time.February && t.Day() == 29 {
		return time.Date(t.Year(), time.March, 1, t.Hour(), t.Minute(), t.Second(), 0, t.Location())
	}
	return t
}
