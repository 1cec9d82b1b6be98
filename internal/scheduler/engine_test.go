package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-planner/internal/capacity"
	"github.com/adanyl0v/go-planner/internal/graph"
	"github.com/adanyl0v/go-planner/internal/models"
)

const ws = "ws-1"

// 2025-03-03 is a Monday.
func day(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T {
	return &v
}

func newTestEngine(s *memStore, mutate ...func(*Config)) *Engine {
	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	return NewEngine(zerolog.Nop(), s, s, s, s, cfg)
}

func week(strategy Strategy) Request {
	return Request{WorkspaceID: ws, StartDate: day(3), EndDate: day(7), Strategy: strategy}
}

func task(id, assignee string, hours float64, p models.Priority) *models.Task {
	t := &models.Task{
		ID:             id,
		WorkspaceID:    ws,
		Title:          id,
		EstimatedHours: hours,
		Priority:       p,
		Source:         models.SourceManual,
		CreatedAt:      day(1),
	}
	if assignee != "" {
		t.AssigneeID = ptr(assignee)
	}
	return t
}

func mustSchedule(t *testing.T, e *Engine, req Request) *Result {
	t.Helper()
	res, err := e.AutoSchedule(context.Background(), req)
	if err != nil {
		t.Fatalf("auto schedule: %v", err)
	}
	return res
}

func placementOf(t *testing.T, res *Result, taskID string) Placement {
	t.Helper()
	for _, p := range res.Scheduled {
		if p.TaskID == taskID {
			return p
		}
	}
	t.Fatalf("task %s was not scheduled: %+v", taskID, res)
	return Placement{}
}

func skipOf(res *Result, taskID string) SkipReason {
	for _, s := range res.Skipped {
		if s.TaskID == taskID {
			return s.Reason
		}
	}
	return ""
}

func assertDay(t *testing.T, what string, got, want time.Time) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("%s: expected %s, got %s", what, want.Format(time.DateOnly), got.Format(time.DateOnly))
	}
}

func TestAutoSchedule_SingleTaskOnMonday(t *testing.T) {
	s := newMemStore()
	s.weekly["u1"] = 40
	s.addTask(task("t1", "u1", 8, models.PriorityHigh))

	res := mustSchedule(t, newTestEngine(s), week(Greedy))

	assertDay(t, "t1 start", placementOf(t, res, "t1").Date, day(3))
	if got := s.startDate("t1"); got == nil || !got.Equal(day(3)) {
		t.Errorf("expected t1 start date to be persisted, got %v", got)
	}
}

func TestAutoSchedule_DependentWaitsForMultiDayPrerequisite(t *testing.T) {
	s := newMemStore()
	s.weekly["u1"] = 20 // 4h per day
	s.addTask(task("t1", "u1", 8, models.PriorityLow))
	s.addTask(task("t2", "u1", 4, models.PriorityHigh))
	s.addEdge("t2", "t1")

	res := mustSchedule(t, newTestEngine(s), week(Greedy))

	t1 := placementOf(t, res, "t1")
	assertDay(t, "t1 start", t1.Date, day(3))
	assertDay(t, "t1 last day", t1.LastDay, day(4))
	assertDay(t, "t2 start", placementOf(t, res, "t2").Date, day(5))
}

func TestAutoSchedule_LastDayCompetition(t *testing.T) {
	s := newMemStore()
	s.weekly["u1"] = 40
	a := s.addTask(task("a", "u1", 8, models.PriorityHigh))
	b := s.addTask(task("b", "u1", 8, models.PriorityHigh))
	a.Position, b.Position = 2, 1

	req := Request{WorkspaceID: ws, StartDate: day(7), EndDate: day(7)}
	res := mustSchedule(t, newTestEngine(s), req)

	assertDay(t, "b start", placementOf(t, res, "b").Date, day(7))
	if got := skipOf(res, "a"); got != SkipNoCapacity {
		t.Errorf("expected a to be skipped with NO_CAPACITY, got %q", got)
	}
	if s.startDate("a") != nil {
		t.Error("expected skipped task to stay unscheduled")
	}
}

func TestAutoSchedule_PriorityOrdersCompetingTasks(t *testing.T) {
	s := newMemStore()
	s.weekly["u1"] = 40
	s.addTask(task("low", "u1", 8, models.PriorityLow))
	s.addTask(task("high", "u1", 8, models.PriorityHigh))
	s.addTask(task("med", "u1", 8, models.PriorityMed))

	res := mustSchedule(t, newTestEngine(s), week(Greedy))

	assertDay(t, "high", placementOf(t, res, "high").Date, day(3))
	assertDay(t, "med", placementOf(t, res, "med").Date, day(4))
	assertDay(t, "low", placementOf(t, res, "low").Date, day(5))
}

func TestAutoSchedule_SkipReasons(t *testing.T) {
	s := newMemStore()
	s.addTask(task("unassigned", "", 4, models.PriorityHigh))
	s.addTask(task("after-unassigned", "u1", 4, models.PriorityHigh))
	s.addTask(task("no-estimate", "u1", 0, models.PriorityHigh))
	s.addTask(task("too-big", "u1", 80, models.PriorityHigh))
	s.addEdge("after-unassigned", "unassigned")

	res := mustSchedule(t, newTestEngine(s), week(Greedy))

	want := map[string]SkipReason{
		"unassigned":       SkipNoAssignee,
		"after-unassigned": SkipBlocked,
		"no-estimate":      SkipMissingEstimate,
		"too-big":          SkipNoCapacity,
	}
	for id, reason := range want {
		if got := skipOf(res, id); got != reason {
			t.Errorf("%s: expected %s, got %q", id, reason, got)
		}
	}
	if len(res.Scheduled) != 0 {
		t.Errorf("expected nothing scheduled, got %+v", res.Scheduled)
	}
}

func TestAutoSchedule_PrerequisiteStates(t *testing.T) {
	s := newMemStore()
	s.weekly["u1"] = 40
	s.weekly["u2"] = 40
	done := s.addTask(task("done", "u2", 40, models.PriorityLow))
	done.Status = models.StatusDone
	fixed := s.addTask(task("fixed", "u2", 16, models.PriorityLow))
	fixed.StartDate = ptr(day(3))
	s.addTask(task("after-done", "u1", 4, models.PriorityHigh))
	s.addTask(task("after-fixed", "u1", 4, models.PriorityHigh))
	s.addEdge("after-done", "done")
	s.addEdge("after-fixed", "fixed")

	res := mustSchedule(t, newTestEngine(s), week(Greedy))

	assertDay(t, "after-done", placementOf(t, res, "after-done").Date, day(3))
	// fixed spans mon+tue, so wednesday is the first permissible day.
	assertDay(t, "after-fixed", placementOf(t, res, "after-fixed").Date, day(5))
}

func TestAutoSchedule_FixedTasksAndTimeOffConsumeCapacity(t *testing.T) {
	s := newMemStore()
	s.weekly["u1"] = 40
	s.timeOff["u1"] = []models.TimeOff{{UserID: "u1", DateFrom: day(4), DateTo: day(4), Type: "vacation"}}
	fixed := s.addTask(task("fixed", "u1", 8, models.PriorityLow))
	fixed.StartDate = ptr(day(3))
	s.addTask(task("new", "u1", 8, models.PriorityHigh))

	res := mustSchedule(t, newTestEngine(s), week(Greedy))

	assertDay(t, "new", placementOf(t, res, "new").Date, day(5))
}

func TestAutoSchedule_LongRunningFixedTaskReachesIntoWindow(t *testing.T) {
	s := newMemStore()
	s.weekly["u1"] = 40
	// 85 working days from 2024-11-04 to 2025-02-28 take 680h, leaving 8h
	// for monday 2025-03-03.
	old := s.addTask(task("old", "u1", 688, models.PriorityLow))
	old.StartDate = ptr(day(3).AddDate(0, 0, -120))
	s.addTask(task("new", "u1", 8, models.PriorityHigh))

	res := mustSchedule(t, newTestEngine(s), week(Greedy))

	assertDay(t, "new", placementOf(t, res, "new").Date, day(4))
}

func TestAutoSchedule_SpanSkipsWeekend(t *testing.T) {
	s := newMemStore()
	s.weekly["u1"] = 40
	s.addTask(task("t1", "u1", 16, models.PriorityMed))

	req := Request{WorkspaceID: ws, StartDate: day(7), EndDate: day(10)}
	res := mustSchedule(t, newTestEngine(s), req)

	p := placementOf(t, res, "t1")
	assertDay(t, "start", p.Date, day(7))
	assertDay(t, "last day", p.LastDay, day(10))
}

func TestAutoSchedule_SpanMustEndInsideWindow(t *testing.T) {
	s := newMemStore()
	s.weekly["u1"] = 40
	s.addTask(task("t1", "u1", 16, models.PriorityMed))

	req := Request{WorkspaceID: ws, StartDate: day(7), EndDate: day(9)}
	res := mustSchedule(t, newTestEngine(s), req)

	if got := skipOf(res, "t1"); got != SkipNoCapacity {
		t.Errorf("expected NO_CAPACITY, got %q", got)
	}
}

func TestAutoSchedule_BalancedLevelsLoad(t *testing.T) {
	newStore := func() *memStore {
		s := newMemStore()
		s.weekly["u1"] = 40
		s.weekly["u2"] = 40
		busy := s.addTask(task("busy", "u1", 8, models.PriorityLow))
		busy.StartDate = ptr(day(3))
		s.addTask(task("t", "u2", 4, models.PriorityMed))
		return s
	}

	greedy := mustSchedule(t, newTestEngine(newStore()), week(Greedy))
	assertDay(t, "greedy", placementOf(t, greedy, "t").Date, day(3))

	balanced := mustSchedule(t, newTestEngine(newStore()), week(Balanced))
	assertDay(t, "balanced", placementOf(t, balanced, "t").Date, day(4))
}

func TestAutoSchedule_BalancedSpreadsOwnWork(t *testing.T) {
	s := newMemStore()
	s.weekly["u1"] = 40
	for i := 0; i < 3; i++ {
		s.addTask(task(fmt.Sprintf("t%d", i), "u1", 4, models.PriorityMed))
	}

	res := mustSchedule(t, newTestEngine(s), week(Balanced))

	for i, want := range []time.Time{day(3), day(4), day(5)} {
		assertDay(t, fmt.Sprintf("t%d", i), placementOf(t, res, fmt.Sprintf("t%d", i)).Date, want)
	}
}

func TestAutoSchedule_Overallocation(t *testing.T) {
	s := newMemStore()
	s.weekly["u1"] = 40
	busy := s.addTask(task("busy", "u1", 8, models.PriorityLow))
	busy.StartDate = ptr(day(3))
	s.addTask(task("t", "u1", 8, models.PriorityMed))

	req := week(Greedy)
	req.AllowOverallocation = true
	res := mustSchedule(t, newTestEngine(s), req)

	assertDay(t, "t", placementOf(t, res, "t").Date, day(3))
}

func TestAutoSchedule_InvalidWindow(t *testing.T) {
	s := newMemStore()
	s.addTask(task("t1", "u1", 8, models.PriorityHigh))
	e := newTestEngine(s, func(c *Config) { c.MaxWindowDays = 30 })

	cases := map[string]Request{
		"reversed": {WorkspaceID: ws, StartDate: day(7), EndDate: day(3)},
		"too long": {WorkspaceID: ws, StartDate: day(1), EndDate: day(1).AddDate(0, 0, 30)},
	}
	for name, req := range cases {
		_, err := e.AutoSchedule(context.Background(), req)
		if !errors.Is(err, ErrInvalidWindow) {
			t.Errorf("%s: expected ErrInvalidWindow, got %v", name, err)
		}
		if Code(err) != "INVALID_WINDOW" {
			t.Errorf("%s: unexpected code %q", name, Code(err))
		}
	}
	if s.commits != 0 || s.setCalls != 0 {
		t.Errorf("expected no unit of work, got %d commits and %d writes", s.commits, s.setCalls)
	}
}

func TestAutoSchedule_InvalidStrategy(t *testing.T) {
	_, err := newTestEngine(newMemStore()).AutoSchedule(context.Background(), week("fastest"))
	if !errors.Is(err, ErrInvalidStrategy) {
		t.Fatalf("expected ErrInvalidStrategy, got %v", err)
	}
}

func TestAutoSchedule_StoredCycleAbortsRun(t *testing.T) {
	s := newMemStore()
	s.addTask(task("a", "u1", 4, models.PriorityHigh))
	s.addTask(task("b", "u1", 4, models.PriorityHigh))
	s.addTask(task("c", "u1", 4, models.PriorityHigh))
	s.addEdge("a", "b")
	s.addEdge("b", "a")

	_, err := newTestEngine(s).AutoSchedule(context.Background(), week(Greedy))
	if !errors.Is(err, graph.ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
	if s.startDate("c") != nil {
		t.Error("expected no writes after a fatal error")
	}
}

func TestAutoSchedule_WritesAreAllOrNothing(t *testing.T) {
	s := newMemStore()
	s.addTask(task("a", "u1", 4, models.PriorityHigh))
	s.addTask(task("b", "u1", 4, models.PriorityLow))
	s.failOn = "b"

	if _, err := newTestEngine(s).AutoSchedule(context.Background(), week(Greedy)); err == nil {
		t.Fatal("expected the failing write to fail the run")
	}
	if s.startDate("a") != nil {
		t.Error("expected the successful write to be rolled back")
	}
}

func TestAutoSchedule_DryRun(t *testing.T) {
	s := newMemStore()
	s.addTask(task("t1", "u1", 8, models.PriorityHigh))

	req := week(Greedy)
	req.DryRun = true
	res := mustSchedule(t, newTestEngine(s), req)

	assertDay(t, "t1", placementOf(t, res, "t1").Date, day(3))
	if s.setCalls != 0 || s.startDate("t1") != nil {
		t.Error("expected dry run not to write")
	}
}

func TestAutoSchedule_IterationBudget(t *testing.T) {
	s := newMemStore()
	for i := 0; i < 3; i++ {
		s.addTask(task(fmt.Sprintf("t%d", i), "u1", 8, models.PriorityHigh))
	}
	e := newTestEngine(s, func(c *Config) { c.MaxIterations = 2 })

	_, err := e.AutoSchedule(context.Background(), week(Greedy))
	if !errors.Is(err, ErrRunBudgetExceeded) {
		t.Fatalf("expected ErrRunBudgetExceeded, got %v", err)
	}
}

func TestAutoSchedule_Idempotent(t *testing.T) {
	s := newMemStore()
	s.weekly["u1"] = 20
	s.weekly["u2"] = 40
	s.addTask(task("a", "u1", 12, models.PriorityHigh))
	s.addTask(task("b", "u1", 12, models.PriorityMed))
	s.addTask(task("c", "u1", 8, models.PriorityLow))
	s.addTask(task("d", "u2", 30, models.PriorityMed))
	s.addTask(task("e", "u2", 16, models.PriorityHigh))
	s.addEdge("b", "a")
	s.addEdge("e", "d")

	e := newTestEngine(s)
	first := mustSchedule(t, e, week(Greedy))
	if len(first.Skipped) == 0 {
		t.Fatal("expected the first run to skip something")
	}
	writes := s.setCalls

	second := mustSchedule(t, e, week(Greedy))
	if len(second.Scheduled) != 0 {
		t.Errorf("expected no new placements, got %+v", second.Scheduled)
	}
	if s.setCalls != writes {
		t.Errorf("expected no further writes, got %d", s.setCalls-writes)
	}
	if len(second.Skipped) != len(first.Skipped) {
		t.Fatalf("expected %d skipped, got %+v", len(first.Skipped), second.Skipped)
	}
	for _, sk := range first.Skipped {
		if got := skipOf(second, sk.TaskID); got != sk.Reason {
			t.Errorf("%s: expected %s on rerun, got %q", sk.TaskID, sk.Reason, got)
		}
	}
}

// No worker ends up with more hours on a day than that day offers, and
// every task starts on or after its prerequisites' completion.
func TestAutoSchedule_Invariants(t *testing.T) {
	for _, strategy := range []Strategy{Greedy, Balanced} {
		s := newMemStore()
		s.weekly["u1"] = 40
		s.weekly["u2"] = 30
		s.timeOff["u2"] = []models.TimeOff{{UserID: "u2", DateFrom: day(12), DateTo: day(13)}}
		hours := []float64{3, 8, 5, 12, 2, 6, 9, 4, 7, 1, 10, 6}
		for i, h := range hours {
			worker := "u1"
			if i%3 == 0 {
				worker = "u2"
			}
			tk := s.addTask(task(fmt.Sprintf("t%02d", i), worker, h, models.PriorityMed))
			tk.Position = len(hours) - i
			if i > 1 && i%2 == 0 {
				s.addEdge(tk.ID, fmt.Sprintf("t%02d", i-2))
			}
		}

		req := Request{WorkspaceID: ws, StartDate: day(3), EndDate: day(21), Strategy: strategy}
		res := mustSchedule(t, newTestEngine(s), req)

		model := capacity.NewModel(capacity.DefaultCalendar(), 40,
			capacity.Worker{ID: "u1", WeeklyCapacity: 40},
			capacity.Worker{ID: "u2", WeeklyCapacity: 30, TimeOff: s.timeOff["u2"]})
		finish := make(map[string]time.Time)
		for _, p := range res.Scheduled {
			allocs := model.Spread(p.TaskID, p.AssigneeID, p.Date, p.Hours)
			if !model.Fits(allocs, false) {
				t.Errorf("%s: %s does not fit on %s", strategy, p.TaskID, p.Date.Format(time.DateOnly))
			}
			model.Commit(allocs...)
			finish[p.TaskID] = capacity.Completion(allocs)
		}
		for _, p := range res.Scheduled {
			for _, edge := range s.edges {
				if edge.TaskID != p.TaskID {
					continue
				}
				if done, ok := finish[edge.DependsOnTaskID]; !ok || p.Date.Before(done) {
					t.Errorf("%s: %s starts %s before %s completes", strategy, p.TaskID,
						p.Date.Format(time.DateOnly), edge.DependsOnTaskID)
				}
			}
		}
		if len(res.Scheduled)+len(res.Skipped) != len(hours) {
			t.Errorf("%s: expected every task to have an outcome, got %+v", strategy, res)
		}
	}
}

func TestAutoSchedule_ConcurrentRunsAreSerialized(t *testing.T) {
	s := newMemStore()
	s.weekly["u1"] = 40
	for i := 0; i < 5; i++ {
		s.addTask(task(fmt.Sprintf("t%d", i), "u1", 8, models.PriorityMed))
	}
	e := newTestEngine(s)

	var wg sync.WaitGroup
	results := make([]*Result, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := e.AutoSchedule(context.Background(), week(Greedy))
			if err != nil {
				t.Errorf("run %d: %v", i, err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	total := 0
	for _, res := range results {
		if res != nil {
			total += len(res.Scheduled)
		}
	}
	if total != 5 {
		t.Errorf("expected each task to be placed exactly once across runs, got %d placements", total)
	}
	seen := make(map[time.Time]string)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("t%d", i)
		d := s.startDate(id)
		if d == nil {
			t.Fatalf("%s was not scheduled", id)
		}
		if other, dup := seen[*d]; dup {
			t.Errorf("%s and %s share %s", id, other, d.Format(time.DateOnly))
		}
		seen[*d] = id
	}
}

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]Strategy{"": Greedy, "GREEDY": Greedy, " balanced ": Balanced} {
		got, err := ParseStrategy(in)
		if err != nil || got != want {
			t.Errorf("ParseStrategy(%q) = %q, %v; expected %q", in, got, err, want)
		}
	}
	if _, err := ParseStrategy("random"); !errors.Is(err, ErrInvalidStrategy) {
		t.Errorf("expected ErrInvalidStrategy, got %v", err)
	}
}
