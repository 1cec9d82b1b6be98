// Package planning lays already scheduled tasks out on calendar days.
// It never moves a task: a task shows up on the day its start date falls
// on, or in the unscheduled lane when it has none.
package planning

import (
	"sort"
	"time"

	"github.com/adanyl0v/go-planner/internal/models"
)

type Options struct {
	IncludeUnscheduled bool
}

type Day struct {
	Date  time.Time      `json:"date"`
	Tasks []*models.Task `json:"tasks"`
}

type View struct {
	From        time.Time      `json:"from"`
	To          time.Time      `json:"to"`
	Days        []Day          `json:"days"`
	Unscheduled []*models.Task `json:"unscheduled,omitempty"`
}

// Week returns the ISO week (Monday to Sunday) containing anchor.
func Week(anchor time.Time, tasks []*models.Task, opts Options) *View {
	from, to := WeekBounds(anchor)
	return Compose(from, to, tasks, opts)
}

// Month returns the calendar month containing anchor.
func Month(anchor time.Time, tasks []*models.Task, opts Options) *View {
	from, to := MonthBounds(anchor)
	return Compose(from, to, tasks, opts)
}

func WeekBounds(anchor time.Time) (time.Time, time.Time) {
	day := models.Day(anchor)
	offset := (int(day.Weekday()) + 6) % 7
	from := day.AddDate(0, 0, -offset)
	return from, from.AddDate(0, 0, 6)
}

func MonthBounds(anchor time.Time) (time.Time, time.Time) {
	day := models.Day(anchor)
	from := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, -1)
}

// Compose buckets tasks by start date into one Day per calendar day of
// [from, to]. Tasks starting outside the range are left out.
func Compose(from, to time.Time, tasks []*models.Task, opts Options) *View {
	from, to = models.Day(from), models.Day(to)
	view := &View{From: from, To: to}

	index := make(map[time.Time]int)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		index[d] = len(view.Days)
		view.Days = append(view.Days, Day{Date: d, Tasks: []*models.Task{}})
	}

	for _, t := range tasks {
		if !t.Scheduled() {
			if opts.IncludeUnscheduled {
				view.Unscheduled = append(view.Unscheduled, t)
			}
			continue
		}
		if i, ok := index[models.Day(*t.StartDate)]; ok {
			view.Days[i].Tasks = append(view.Days[i].Tasks, t)
		}
	}

	for i := range view.Days {
		sortTasks(view.Days[i].Tasks)
	}
	if opts.IncludeUnscheduled {
		if view.Unscheduled == nil {
			view.Unscheduled = []*models.Task{}
		}
		sortTasks(view.Unscheduled)
	}
	return view
}

// sortTasks orders by priority (high first), then backlog position.
func sortTasks(tasks []*models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.ID < b.ID
	})
}
