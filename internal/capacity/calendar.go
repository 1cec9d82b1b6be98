package capacity

import (
	"fmt"
	"strings"
	"time"

	"github.com/adanyl0v/go-planner/internal/models"
)

// Calendar decides which calendar days carry any capacity at all.
type Calendar struct {
	workdays [7]bool
	holidays map[time.Time]struct{}
}

func NewCalendar(workdays []time.Weekday, holidays []time.Time) Calendar {
	c := Calendar{holidays: make(map[time.Time]struct{}, len(holidays))}
	for _, wd := range workdays {
		c.workdays[wd] = true
	}
	for _, h := range holidays {
		c.holidays[models.Day(h)] = struct{}{}
	}
	return c
}

// DefaultCalendar works Monday to Friday without holidays.
func DefaultCalendar() Calendar {
	return NewCalendar([]time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
	}, nil)
}

// WorkingDaysPerWeek is the divisor of the weekly capacity.
func (c Calendar) WorkingDaysPerWeek() int {
	n := 0
	for _, ok := range c.workdays {
		if ok {
			n++
		}
	}
	return n
}

func (c Calendar) IsWorkingDay(day time.Time) bool {
	day = models.Day(day)
	if !c.workdays[day.Weekday()] {
		return false
	}
	_, holiday := c.holidays[day]
	return !holiday
}

func (c Calendar) DailyShare(weeklyHours float64) float64 {
	n := c.WorkingDaysPerWeek()
	if n == 0 || weeklyHours <= 0 {
		return 0
	}
	return weeklyHours / float64(n)
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// ParseWeekdays parses a list such as "mon,tue,wed,thu,fri".
func ParseWeekdays(s string) ([]time.Weekday, error) {
	var out []time.Weekday
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if len(part) > 3 {
			part = part[:3]
		}
		wd, ok := weekdayNames[part]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		out = append(out, wd)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no working days in %q", s)
	}
	return out, nil
}
