package matching

import (
	"strconv"
	"strings"

	"github.com/cuongbtq/partimer-be/internal/matching/domain"
)

// ParseClock converts an "HH:MM" string to minutes since midnight.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, &domain.ValidationError{Field: "time", Msg: "expected HH:MM, got " + strconv.Quote(s)}
	}

	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, &domain.ValidationError{Field: "time", Msg: "invalid hour in " + strconv.Quote(s)}
	}

	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, &domain.ValidationError{Field: "time", Msg: "invalid minute in " + strconv.Quote(s)}
	}

	return hour*60 + minute, nil
}

// DayMatches reports whether day is one of the comma-separated jobWorkDays.
// An empty list places no restriction on the day.
func DayMatches(jobWorkDays string, day domain.DayOfWeek) bool {
	if strings.TrimSpace(jobWorkDays) == "" {
		return true
	}

	want := strings.ToLower(string(day))
	for _, d := range strings.Split(jobWorkDays, ",") {
		if strings.ToLower(strings.TrimSpace(d)) == want {
			return true
		}
	}
	return false
}

// TimeOverlaps reports whether the half-open windows [startA, endA) and
// [startB, endB) overlap. Windows crossing midnight are rejected.
func TimeOverlaps(startA, endA, startB, endB string) (bool, error) {
	a0, a1, err := parseWindow(startA, endA)
	if err != nil {
		return false, err
	}
	b0, b1, err := parseWindow(startB, endB)
	if err != nil {
		return false, err
	}

	return !(a1 <= b0 || b1 <= a0), nil
}

// IsAvailable reports whether at least one active slot falls on one of the
// job's work days and overlaps its work hours.
func IsAvailable(job *domain.Job, slots []domain.Availability) (bool, error) {
	for _, slot := range slots {
		if !slot.IsActive || !DayMatches(job.WorkDays, slot.DayOfWeek) {
			continue
		}

		ok, err := TimeOverlaps(job.WorkHoursStart, job.WorkHoursEnd, slot.StartTime, slot.EndTime)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func parseWindow(start, end string) (int, int, error) {
	s, err := ParseClock(start)
	if err != nil {
		return 0, 0, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return 0, 0, err
	}
	if e < s {
		return 0, 0, &domain.ValidationError{
			Field: "time",
			Msg:   "window " + start + "-" + end + " crosses midnight",
		}
	}
	return s, e, nil
}
