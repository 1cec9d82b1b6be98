package models

import "time"

const DefaultWeeklyCapacityHours = 40

type User struct {
	ID                  string
	Email               string
	Password            string
	WeeklyCapacityHours float64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type TimeOff struct {
	ID       string
	UserID   string
	DateFrom time.Time
	DateTo   time.Time
	Type     string
}

// Covers reports whether the interval touches the given calendar day.
func (t TimeOff) Covers(day time.Time) bool {
	day = Day(day)
	return !day.Before(Day(t.DateFrom)) && !day.After(Day(t.DateTo))
}
