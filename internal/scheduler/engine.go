// Package scheduler assigns start dates to unscheduled tasks of a
// workspace so that no worker is over-allocated on any day and no task
// starts before its prerequisites finish.
//
// Both strategies share one walk: tasks are visited in readiness order,
// every working day from the task's earliest permissible date is a
// candidate, and the strategy only decides which fitting candidate wins.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-planner/internal/capacity"
	"github.com/adanyl0v/go-planner/internal/graph"
	"github.com/adanyl0v/go-planner/internal/models"
)

type Config struct {
	MaxWindowDays         int
	DefaultWeeklyCapacity float64
	Calendar              capacity.Calendar
	MaxChainDepth         int
	RunTimeout            time.Duration
	MaxIterations         int
}

func DefaultConfig() Config {
	return Config{
		MaxWindowDays:         366,
		DefaultWeeklyCapacity: models.DefaultWeeklyCapacityHours,
		Calendar:              capacity.DefaultCalendar(),
		MaxChainDepth:         graph.DefaultMaxDepth,
		RunTimeout:            30 * time.Second,
		MaxIterations:         1_000_000,
	}
}

type Engine struct {
	logger zerolog.Logger
	tasks  TaskStore
	deps   DependencyStore
	roster RosterProvider
	tx     Transactor
	cfg    Config
	locks  *keyedMutex
}

func NewEngine(
	logger zerolog.Logger,
	tasks TaskStore,
	deps DependencyStore,
	roster RosterProvider,
	tx Transactor,
	cfg Config,
) *Engine {
	return &Engine{
		logger: logger,
		tasks:  tasks,
		deps:   deps,
		roster: roster,
		tx:     tx,
		cfg:    cfg,
		locks:  newKeyedMutex(),
	}
}

// AutoSchedule places the unscheduled tasks of a workspace inside
// [StartDate, EndDate].
//
// Tasks that cannot be placed are reported in Result.Skipped and the run
// carries on. An invalid window, a broken dependency graph or an exhausted
// run budget fail the whole call before anything is written, and all
// writes of a run are committed together.
func (e *Engine) AutoSchedule(ctx context.Context, req Request) (*Result, error) {
	req.StartDate, req.EndDate = models.Day(req.StartDate), models.Day(req.EndDate)
	if err := e.validate(&req); err != nil {
		e.logger.Error().
			Err(err).
			Str("workspace_id", req.WorkspaceID).
			Msg("rejected scheduling request")
		return nil, err
	}

	unlock := e.locks.Lock(req.WorkspaceID)
	defer unlock()

	if e.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RunTimeout)
		defer cancel()
	}

	var result *Result
	err := e.tx.WithinWorkspace(ctx, req.WorkspaceID, func(ctx context.Context) error {
		var err error
		result, err = e.plan(ctx, req)
		if err != nil {
			return err
		}
		if req.DryRun {
			return nil
		}
		return e.persist(ctx, result)
	})
	if err != nil {
		e.logger.Error().
			Err(err).
			Str("workspace_id", req.WorkspaceID).
			Msg("failed to auto schedule")
		return nil, err
	}

	e.logger.Info().
		Str("workspace_id", req.WorkspaceID).
		Str("strategy", string(req.Strategy)).
		Bool("dry_run", req.DryRun).
		Int("scheduled", len(result.Scheduled)).
		Int("skipped", len(result.Skipped)).
		Msg("auto scheduled workspace")
	return result, nil
}

func (e *Engine) validate(req *Request) error {
	if req.Strategy == "" {
		req.Strategy = Greedy
	}
	if _, err := ParseStrategy(string(req.Strategy)); err != nil {
		return err
	}
	if req.StartDate.After(req.EndDate) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidWindow,
			req.StartDate.Format(models.DateLayout), req.EndDate.Format(models.DateLayout))
	}
	if days := models.DaysBetween(req.StartDate, req.EndDate) + 1; e.cfg.MaxWindowDays > 0 && days > e.cfg.MaxWindowDays {
		return fmt.Errorf("%w: %d days exceeds the maximum of %d", ErrInvalidWindow, days, e.cfg.MaxWindowDays)
	}
	return nil
}

func (e *Engine) persist(ctx context.Context, result *Result) error {
	for _, p := range result.Scheduled {
		if _, err := e.tasks.SetSchedule(ctx, p.TaskID, p.Date); err != nil {
			return fmt.Errorf("set schedule of task %s: %w", p.TaskID, err)
		}
		e.logger.Debug().
			Str("task_id", p.TaskID).
			Time("start_date", p.Date).
			Msg("persisted task schedule")
	}
	return nil
}

// run is the state of one planning pass.
type run struct {
	req       Request
	model     *capacity.Model
	graph     *graph.Graph
	tasks     map[string]*models.Task
	finish    map[string]time.Time
	skipped   map[string]bool
	budget    int
	maxBudget int
}

func (e *Engine) plan(ctx context.Context, req Request) (*Result, error) {
	r, unscheduled, err := e.load(ctx, req)
	if err != nil {
		return nil, err
	}

	nodes := make([]graph.Node, 0, len(unscheduled))
	for _, t := range unscheduled {
		nodes = append(nodes, graph.Node{
			ID:        t.ID,
			Priority:  t.Priority,
			Position:  t.Position,
			CreatedAt: t.CreatedAt,
		})
	}
	readiness, err := r.graph.ReadinessOrder(nodes, r.resolved)
	if err != nil {
		return nil, err
	}

	result := &Result{
		WorkspaceID: req.WorkspaceID,
		Strategy:    req.Strategy,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		DryRun:      req.DryRun,
		Scheduled:   []Placement{},
		Skipped:     []Skip{},
	}
	skip := func(taskID string, reason SkipReason) {
		r.skipped[taskID] = true
		result.Skipped = append(result.Skipped, Skip{TaskID: taskID, Reason: reason})
		e.logger.Debug().
			Str("task_id", taskID).
			Str("reason", string(reason)).
			Msg("skipped task")
	}

	for _, id := range readiness.Blocked {
		skip(id, SkipBlocked)
	}

	for _, id := range readiness.Order {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRunBudgetExceeded, err)
		}
		task := r.tasks[id]

		earliest, ready := r.earliestStart(id)
		switch {
		case !ready:
			skip(id, SkipBlocked)
			continue
		case task.Assignee() == "":
			skip(id, SkipNoAssignee)
			continue
		case task.EstimatedHours <= 0:
			skip(id, SkipMissingEstimate)
			continue
		}

		allocs, err := r.place(task, earliest)
		if err != nil {
			return nil, err
		}
		if allocs == nil {
			skip(id, SkipNoCapacity)
			continue
		}

		r.model.Commit(allocs...)
		r.finish[id] = capacity.Completion(allocs)
		result.Scheduled = append(result.Scheduled, Placement{
			TaskID:     id,
			AssigneeID: task.Assignee(),
			Date:       allocs[0].Day,
			LastDay:    allocs[len(allocs)-1].Day,
			Hours:      task.EstimatedHours,
		})
	}
	return result, nil
}

// load reads everything one run needs and seeds the capacity model with
// the tasks that already have a start date.
func (e *Engine) load(ctx context.Context, req Request) (*run, []*models.Task, error) {
	unscheduled, err := e.tasks.ListUnscheduled(ctx, req.WorkspaceID)
	if err != nil {
		return nil, nil, fmt.Errorf("list unscheduled tasks: %w", err)
	}
	fixed, err := e.tasks.ListFixed(ctx, req.WorkspaceID, req.EndDate)
	if err != nil {
		return nil, nil, fmt.Errorf("list fixed tasks: %w", err)
	}
	edges, err := e.deps.EdgesForWorkspace(ctx, req.WorkspaceID)
	if err != nil {
		return nil, nil, fmt.Errorf("list dependencies: %w", err)
	}

	r := &run{
		req:       req,
		graph:     graph.FromDependencies(edges, graph.WithMaxDepth(e.cfg.MaxChainDepth)),
		tasks:     make(map[string]*models.Task, len(unscheduled)+len(fixed)),
		finish:    make(map[string]time.Time),
		skipped:   make(map[string]bool),
		maxBudget: e.cfg.MaxIterations,
	}

	pending := unscheduled[:0:0]
	for _, t := range unscheduled {
		if t.Status == models.StatusDone || t.Scheduled() {
			continue
		}
		r.tasks[t.ID] = t
		pending = append(pending, t)
	}
	for _, t := range fixed {
		r.tasks[t.ID] = t
	}

	var missing []string
	seen := make(map[string]bool)
	for _, t := range pending {
		for _, pre := range r.graph.Prerequisites(t.ID) {
			if _, ok := r.tasks[pre]; !ok && !seen[pre] {
				seen[pre] = true
				missing = append(missing, pre)
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		external, err := e.tasks.GetByIDs(ctx, req.WorkspaceID, missing)
		if err != nil {
			return nil, nil, fmt.Errorf("get prerequisite tasks: %w", err)
		}
		for _, t := range external {
			r.tasks[t.ID] = t
		}
	}

	r.model, err = e.loadRoster(ctx, req, r.tasks)
	if err != nil {
		return nil, nil, err
	}

	for _, id := range sortedTaskIDs(r.tasks) {
		t := r.tasks[id]
		if !t.Scheduled() || t.Status == models.StatusDone {
			continue
		}
		allocs := r.model.Spread(t.ID, t.Assignee(), *t.StartDate, t.EstimatedHours)
		if t.Assignee() != "" {
			r.model.Commit(allocs...)
		}
		r.finish[t.ID] = capacity.Completion(allocs)
	}

	e.logger.Debug().
		Str("workspace_id", req.WorkspaceID).
		Int("unscheduled", len(pending)).
		Int("fixed", len(fixed)).
		Int("edges", r.graph.Len()).
		Msg("loaded scheduling inputs")
	return r, pending, nil
}

func (e *Engine) loadRoster(ctx context.Context, req Request, tasks map[string]*models.Task) (*capacity.Model, error) {
	model := capacity.NewModel(e.cfg.Calendar, e.cfg.DefaultWeeklyCapacity)
	for _, id := range sortedTaskIDs(tasks) {
		userID := tasks[id].Assignee()
		if userID == "" || model.HasWorker(userID) {
			continue
		}
		weekly, err := e.roster.WeeklyCapacity(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("weekly capacity of user %s: %w", userID, err)
		}
		timeOff, err := e.roster.TimeOff(ctx, userID, req.StartDate, req.EndDate)
		if err != nil {
			return nil, fmt.Errorf("time off of user %s: %w", userID, err)
		}
		model.AddWorker(capacity.Worker{ID: userID, WeeklyCapacity: weekly, TimeOff: timeOff})
	}
	return model, nil
}

// resolved reports whether a prerequisite outside the unscheduled set no
// longer holds its dependents back. Unknown ids belong to deleted tasks.
func (r *run) resolved(taskID string) bool {
	t, ok := r.tasks[taskID]
	if !ok {
		return true
	}
	return t.Status == models.StatusDone || t.Scheduled()
}

// earliestStart is the window start or the latest prerequisite
// completion, whichever is later. ready is false when a prerequisite was
// skipped earlier in this run.
func (r *run) earliestStart(taskID string) (time.Time, bool) {
	earliest := r.req.StartDate
	for _, pre := range r.graph.Prerequisites(taskID) {
		if r.skipped[pre] {
			return time.Time{}, false
		}
		if t, ok := r.tasks[pre]; ok && t.Status == models.StatusDone {
			continue
		}
		if done, ok := r.finish[pre]; ok && done.After(earliest) {
			earliest = done
		}
	}
	return earliest, true
}

// place enumerates candidate start days from earliest to the window end
// and returns the allocations of the winning candidate, or nil if the
// task fits nowhere.
func (r *run) place(task *models.Task, earliest time.Time) ([]capacity.Allocation, error) {
	worker := task.Assignee()
	var best []capacity.Allocation
	var bestScore float64

	for day := earliest; !day.After(r.req.EndDate); day = day.AddDate(0, 0, 1) {
		if err := r.tick(); err != nil {
			return nil, err
		}
		if r.model.Capacity(worker, day) <= 0 {
			continue
		}
		allocs := r.model.Spread(task.ID, worker, day, task.EstimatedHours)
		if allocs[len(allocs)-1].Day.After(r.req.EndDate) {
			// Later starts only end later.
			break
		}
		if !r.model.Fits(allocs, r.req.AllowOverallocation) {
			continue
		}
		if r.req.Strategy != Balanced {
			return allocs, nil
		}
		if score := r.peakUtilization(allocs); best == nil || score < bestScore-1e-9 {
			best, bestScore = allocs, score
		}
	}
	return best, nil
}

// peakUtilization is the highest load of any worker on any day of the
// candidate span, counting the candidate itself.
func (r *run) peakUtilization(allocs []capacity.Allocation) float64 {
	peak := 0.0
	for _, a := range allocs {
		for _, w := range r.model.Workers() {
			c := r.model.Capacity(w, a.Day)
			if c <= 0 {
				continue
			}
			load := r.model.Committed(w, a.Day)
			if w == a.WorkerID {
				load += a.Hours
			}
			if u := load / c; u > peak {
				peak = u
			}
		}
	}
	return peak
}

func (r *run) tick() error {
	r.budget++
	if r.maxBudget > 0 && r.budget > r.maxBudget {
		return fmt.Errorf("%w: more than %d candidate days evaluated", ErrRunBudgetExceeded, r.maxBudget)
	}
	return nil
}

func sortedTaskIDs(tasks map[string]*models.Task) []string {
	ids := make([]string, 0, len(tasks))
	for id := range tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
