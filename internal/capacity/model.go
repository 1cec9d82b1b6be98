// Package capacity models how many hours each worker can still absorb
// on each calendar day.
//
// A worker's daily share is the weekly capacity divided by the number of
// working weekdays in the calendar. Non-working days, holidays and any day
// touched by time off carry no capacity. Committed hours are tracked per
// worker and day, so a scheduling run sees its own tentative assignments.
package capacity

import (
	"math"
	"sort"
	"time"

	"github.com/adanyl0v/go-planner/internal/models"
)

// epsilon absorbs float noise when comparing hour totals.
const epsilon = 1e-9

// maxSpreadDays stops Spread from walking forever on a calendar that
// has no working days left in reach.
const maxSpreadDays = 3660

type Worker struct {
	ID             string
	WeeklyCapacity float64
	TimeOff        []models.TimeOff
}

type Allocation struct {
	TaskID   string
	WorkerID string
	Day      time.Time
	Hours    float64
}

type DayCapacity struct {
	Date  time.Time
	Hours float64
}

type Model struct {
	calendar      Calendar
	defaultWeekly float64
	workers       map[string]*Worker
	committed     map[string]map[time.Time]float64
}

func NewModel(calendar Calendar, defaultWeekly float64, workers ...Worker) *Model {
	m := &Model{
		calendar:      calendar,
		defaultWeekly: math.Max(defaultWeekly, 0),
		workers:       make(map[string]*Worker, len(workers)),
		committed:     make(map[string]map[time.Time]float64),
	}
	for _, w := range workers {
		m.AddWorker(w)
	}
	return m
}

func (m *Model) Calendar() Calendar {
	return m.calendar
}

func (m *Model) AddWorker(w Worker) {
	w.WeeklyCapacity = math.Max(w.WeeklyCapacity, 0)
	m.workers[w.ID] = &w
}

func (m *Model) HasWorker(workerID string) bool {
	_, ok := m.workers[workerID]
	return ok
}

// Workers returns the known worker ids in a stable order.
func (m *Model) Workers() []string {
	ids := make([]string, 0, len(m.workers))
	for id := range m.workers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DailyShare is the worker's capacity on a regular working day. Unknown
// workers, such as the empty assignee, get the default weekly capacity.
func (m *Model) DailyShare(workerID string) float64 {
	w, ok := m.workers[workerID]
	if !ok {
		return m.calendar.DailyShare(m.defaultWeekly)
	}
	return m.calendar.DailyShare(w.WeeklyCapacity)
}

func (m *Model) OnTimeOff(workerID string, day time.Time) bool {
	w, ok := m.workers[workerID]
	if !ok {
		return false
	}
	for _, off := range w.TimeOff {
		if off.Covers(day) {
			return true
		}
	}
	return false
}

// Capacity is the gross capacity of a day before commitments.
func (m *Model) Capacity(workerID string, day time.Time) float64 {
	if !m.calendar.IsWorkingDay(day) || m.OnTimeOff(workerID, day) {
		return 0
	}
	return m.DailyShare(workerID)
}

func (m *Model) Committed(workerID string, day time.Time) float64 {
	return m.committed[workerID][models.Day(day)]
}

func (m *Model) Available(workerID string, day time.Time) float64 {
	return math.Max(m.Capacity(workerID, day)-m.Committed(workerID, day), 0)
}

// Availability lists the remaining hours for every calendar day in
// [from, to], both ends inclusive.
func (m *Model) Availability(workerID string, from, to time.Time) []DayCapacity {
	from, to = models.Day(from), models.Day(to)
	if to.Before(from) {
		return nil
	}
	out := make([]DayCapacity, 0, models.DaysBetween(from, to)+1)
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		out = append(out, DayCapacity{Date: day, Hours: m.Available(workerID, day)})
	}
	return out
}

// Utilization is the committed share of a day's capacity. Days without
// capacity report zero.
func (m *Model) Utilization(workerID string, day time.Time) float64 {
	c := m.Capacity(workerID, day)
	if c <= 0 {
		return 0
	}
	return m.Committed(workerID, day) / c
}

// Spread lays hours over consecutive working days starting at the first
// working day on or after start, taking at most one daily share per day.
// Time off is not skipped: a span that crosses it fails Fits.
func (m *Model) Spread(taskID, workerID string, start time.Time, hours float64) []Allocation {
	day := models.Day(start)
	share := m.DailyShare(workerID)
	if m.calendar.WorkingDaysPerWeek() == 0 || share <= 0 {
		return []Allocation{{TaskID: taskID, WorkerID: workerID, Day: day, Hours: math.Max(hours, 0)}}
	}

	for i := 0; !m.calendar.IsWorkingDay(day) && i < maxSpreadDays; i++ {
		day = day.AddDate(0, 0, 1)
	}
	if hours <= epsilon {
		return []Allocation{{TaskID: taskID, WorkerID: workerID, Day: day}}
	}

	var out []Allocation
	remaining := hours
	for i := 0; remaining > epsilon && i < maxSpreadDays; i++ {
		if m.calendar.IsWorkingDay(day) {
			chunk := math.Min(remaining, share)
			out = append(out, Allocation{TaskID: taskID, WorkerID: workerID, Day: day, Hours: chunk})
			remaining -= chunk
		}
		day = day.AddDate(0, 0, 1)
	}
	return out
}

// Fits reports whether every allocation fits into its day. With override
// set, existing commitments are ignored but days without capacity still
// reject the allocation.
func (m *Model) Fits(allocs []Allocation, override bool) bool {
	if len(allocs) == 0 {
		return false
	}
	for _, a := range allocs {
		c := m.Capacity(a.WorkerID, a.Day)
		if c <= 0 {
			return false
		}
		avail := c
		if !override {
			avail = m.Available(a.WorkerID, a.Day)
		}
		if a.Hours > avail+epsilon {
			return false
		}
	}
	return true
}

func (m *Model) Commit(allocs ...Allocation) {
	for _, a := range allocs {
		days := m.committed[a.WorkerID]
		if days == nil {
			days = make(map[time.Time]float64)
			m.committed[a.WorkerID] = days
		}
		days[models.Day(a.Day)] += a.Hours
	}
}

// Completion returns the first day on which work depending on the given
// allocations may start.
func Completion(allocs []Allocation) time.Time {
	var last time.Time
	for _, a := range allocs {
		if a.Day.After(last) {
			last = a.Day
		}
	}
	return last.AddDate(0, 0, 1)
}
