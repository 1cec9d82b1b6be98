package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/adanyl0v/go-planner/internal/models"
	"github.com/adanyl0v/go-planner/internal/planning"
	"github.com/adanyl0v/go-planner/internal/scheduler"
)

func init() {
	color.NoColor = true
}

func TestPrintSchedule(t *testing.T) {
	mon := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	res := &scheduler.Result{
		Strategy:  scheduler.Greedy,
		StartDate: mon,
		EndDate:   mon.AddDate(0, 0, 4),
		DryRun:    true,
		Scheduled: []scheduler.Placement{
			{TaskID: "a", Date: mon, LastDay: mon.AddDate(0, 0, 1), Hours: 12},
			{TaskID: "b", Date: mon.AddDate(0, 0, 2), LastDay: mon.AddDate(0, 0, 2), Hours: 4},
		},
		Skipped: []scheduler.Skip{{TaskID: "c", Reason: scheduler.SkipNoCapacity}},
	}

	var buf bytes.Buffer
	PrintSchedule(&buf, res, map[string]string{"a": "Design schema"})
	out := buf.String()

	for _, want := range []string{
		"2025-03-03..2025-03-07",
		"(dry run)",
		"SCHEDULED 2",
		"2025-03-03..2025-03-04 Design schema 12h",
		"2025-03-05 b 4h",
		"SKIPPED 1",
		"c NO_CAPACITY",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q\n%s", want, out)
		}
	}
}

func TestPrintSchedule_NoSkips(t *testing.T) {
	mon := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	PrintSchedule(&buf, &scheduler.Result{Strategy: scheduler.Balanced, StartDate: mon, EndDate: mon}, nil)

	if strings.Contains(buf.String(), "SKIPPED") {
		t.Errorf("expected no skipped section\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "(applied)") {
		t.Errorf("expected applied mode\n%s", buf.String())
	}
}

func TestPrintPlan(t *testing.T) {
	wed := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	tasks := []*models.Task{
		{ID: "a", Title: "Write migration", Priority: models.PriorityHigh, Status: models.StatusPlanned, StartDate: &wed},
		{ID: "b", Title: "Triage inbox", Priority: models.PriorityLow, Status: models.StatusBacklog},
	}
	view := planning.Week(wed, tasks, planning.Options{IncludeUnscheduled: true})

	var buf bytes.Buffer
	PrintPlan(&buf, view)
	out := buf.String()

	for _, want := range []string{
		"Plan 2025-03-03..2025-03-09",
		"Wed 05 Mar (1)",
		"HIGH Write migration PLANNED",
		"Unscheduled (1)",
		"LOW Triage inbox",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q\n%s", want, out)
		}
	}
	if got := strings.Count(out, "(0)"); got != 6 {
		t.Errorf("expected 6 empty days, got %d\n%s", got, out)
	}
}
