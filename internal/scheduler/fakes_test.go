package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/adanyl0v/go-planner/internal/models"
)

// memStore is an in-memory implementation of every collaborator the
// engine needs. Writes made inside WithinWorkspace are staged and only
// applied when the unit of work succeeds.
type memStore struct {
	mu       sync.Mutex
	tasks    map[string]*models.Task
	edges    []models.Dependency
	weekly   map[string]float64
	timeOff  map[string][]models.TimeOff
	staged   map[string]time.Time
	failOn   string
	setCalls int
	commits  int
}

func newMemStore() *memStore {
	return &memStore{
		tasks:   make(map[string]*models.Task),
		weekly:  make(map[string]float64),
		timeOff: make(map[string][]models.TimeOff),
	}
}

func (s *memStore) addTask(t *models.Task) *models.Task {
	if t.Status == "" {
		t.Status = models.StatusPlanned
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMed
	}
	s.tasks[t.ID] = t
	return t
}

func (s *memStore) addEdge(taskID, dependsOn string) {
	s.edges = append(s.edges, models.Dependency{
		ID:              taskID + "->" + dependsOn,
		TaskID:          taskID,
		DependsOnTaskID: dependsOn,
		Type:            models.DependencyFinishToStart,
	})
}

func (s *memStore) startDate(id string) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id].StartDate
}

func clone(t *models.Task) *models.Task {
	c := *t
	return &c
}

func (s *memStore) ListUnscheduled(_ context.Context, workspaceID string) ([]*models.Task, error) {
	var out []*models.Task
	for _, t := range s.sorted() {
		if t.WorkspaceID == workspaceID && t.StartDate == nil && t.Status != models.StatusDone {
			out = append(out, clone(t))
		}
	}
	return out, nil
}

func (s *memStore) ListFixed(_ context.Context, workspaceID string, to time.Time) ([]*models.Task, error) {
	var out []*models.Task
	for _, t := range s.sorted() {
		if t.WorkspaceID != workspaceID || t.StartDate == nil || t.Status == models.StatusDone {
			continue
		}
		if t.StartDate.After(to) {
			continue
		}
		out = append(out, clone(t))
	}
	return out, nil
}

func (s *memStore) GetByIDs(_ context.Context, workspaceID string, ids []string) ([]*models.Task, error) {
	var out []*models.Task
	for _, id := range ids {
		if t, ok := s.tasks[id]; ok && t.WorkspaceID == workspaceID {
			out = append(out, clone(t))
		}
	}
	return out, nil
}

func (s *memStore) SetSchedule(_ context.Context, taskID string, startDate time.Time) (*models.Task, error) {
	s.setCalls++
	if taskID == s.failOn {
		return nil, errors.New("write failed")
	}
	s.staged[taskID] = startDate
	t := clone(s.tasks[taskID])
	t.StartDate = &startDate
	return t, nil
}

func (s *memStore) EdgesForWorkspace(context.Context, string) ([]models.Dependency, error) {
	return s.edges, nil
}

func (s *memStore) WeeklyCapacity(_ context.Context, userID string) (float64, error) {
	if w, ok := s.weekly[userID]; ok {
		return w, nil
	}
	return models.DefaultWeeklyCapacityHours, nil
}

func (s *memStore) TimeOff(_ context.Context, userID string, _, _ time.Time) ([]models.TimeOff, error) {
	return s.timeOff[userID], nil
}

func (s *memStore) WithinWorkspace(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.staged = make(map[string]time.Time)
	if err := fn(ctx); err != nil {
		s.staged = nil
		return err
	}
	for id, d := range s.staged {
		d := d
		s.tasks[id].StartDate = &d
	}
	s.staged = nil
	s.commits++
	return nil
}

func (s *memStore) sorted() []*models.Task {
	out := make([]*models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
