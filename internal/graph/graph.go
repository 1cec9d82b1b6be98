// Package graph keeps the finish-to-start dependency edges of a workspace
// and guards them against cycles.
//
// An edge "A depends on B" is stored as B being a prerequisite of A.
// Traversals walk the prerequisite adjacency with an explicit bounded
// breadth-first search instead of recursion.
package graph

import (
	"sort"

	"github.com/google/uuid"

	"github.com/adanyl0v/go-planner/internal/models"
)

// DefaultMaxDepth bounds how many edges a cycle check may walk.
const DefaultMaxDepth = 100

type Edge struct {
	ID        string
	TaskID    string
	DependsOn string
}

type Graph struct {
	maxDepth int
	newID    func() (string, error)

	edges         map[string]Edge
	prerequisites map[string]map[string]string // task -> depends on -> edge id
	dependents    map[string]map[string]string // depends on -> task -> edge id
}

type Option func(*Graph)

func WithMaxDepth(depth int) Option {
	return func(g *Graph) {
		if depth > 0 {
			g.maxDepth = depth
		}
	}
}

func WithIDGenerator(fn func() (string, error)) Option {
	return func(g *Graph) {
		g.newID = fn
	}
}

func New(opts ...Option) *Graph {
	g := &Graph{
		maxDepth:      DefaultMaxDepth,
		newID:         newEdgeID,
		edges:         make(map[string]Edge),
		prerequisites: make(map[string]map[string]string),
		dependents:    make(map[string]map[string]string),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FromDependencies loads already persisted edges without re-validating
// them; the store only ever accepted edges that passed ValidateNewEdge.
func FromDependencies(deps []models.Dependency, opts ...Option) *Graph {
	g := New(opts...)
	for _, d := range deps {
		g.insert(Edge{ID: d.ID, TaskID: d.TaskID, DependsOn: d.DependsOnTaskID})
	}
	return g
}

func newEdgeID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (g *Graph) Len() int {
	return len(g.edges)
}

// ValidateNewEdge reports whether taskID may start depending on dependsOnID.
//
// It returns ErrSelfDependency for a self-loop, ErrCircularDependency if
// dependsOnID already depends on taskID directly or transitively, and
// ErrChainTooDeep if the walk exceeds the configured depth before either
// finding a cycle or exhausting the prerequisite chain.
func (g *Graph) ValidateNewEdge(taskID, dependsOnID string) error {
	if taskID == dependsOnID {
		return newError(ErrSelfDependency, "%s", taskID)
	}

	parent := map[string]string{dependsOnID: ""}
	frontier := []string{dependsOnID}
	for depth := 1; len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for _, pre := range sortedKeys(g.prerequisites[id]) {
				if depth > g.maxDepth {
					return newError(ErrChainTooDeep, "more than %d levels below %s", g.maxDepth, dependsOnID)
				}
				if pre == taskID {
					parent[pre] = id
					return pathError(ErrCircularDependency, cyclePath(parent, taskID))
				}
				if _, seen := parent[pre]; seen {
					continue
				}
				parent[pre] = id
				next = append(next, pre)
			}
		}
		frontier = next
	}
	return nil
}

// cyclePath renders the cycle the rejected edge would close, starting and
// ending at the task that asked for the new prerequisite.
func cyclePath(parent map[string]string, taskID string) []string {
	var chain []string
	for cur := taskID; cur != ""; cur = parent[cur] {
		chain = append(chain, cur)
	}
	// chain runs from taskID up through its dependents to dependsOnID.
	// Reversed and prefixed with taskID it reads as "depends on" links.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return append([]string{taskID}, chain...)
}

// AddEdge records that taskID depends on dependsOnID and returns the new
// edge id. The graph is left unchanged when the edge is rejected.
func (g *Graph) AddEdge(taskID, dependsOnID string) (string, error) {
	if err := g.ValidateNewEdge(taskID, dependsOnID); err != nil {
		return "", err
	}
	if id, ok := g.prerequisites[taskID][dependsOnID]; ok {
		return "", newError(ErrDuplicateDependency, "%s (%s depends on %s)", id, taskID, dependsOnID)
	}

	id, err := g.newID()
	if err != nil {
		return "", err
	}
	g.insert(Edge{ID: id, TaskID: taskID, DependsOn: dependsOnID})
	return id, nil
}

func (g *Graph) RemoveEdge(edgeID string) error {
	e, ok := g.edges[edgeID]
	if !ok {
		return newError(ErrEdgeNotFound, "%s", edgeID)
	}
	delete(g.edges, edgeID)
	delete(g.prerequisites[e.TaskID], e.DependsOn)
	if len(g.prerequisites[e.TaskID]) == 0 {
		delete(g.prerequisites, e.TaskID)
	}
	delete(g.dependents[e.DependsOn], e.TaskID)
	if len(g.dependents[e.DependsOn]) == 0 {
		delete(g.dependents, e.DependsOn)
	}
	return nil
}

func (g *Graph) Edge(edgeID string) (Edge, bool) {
	e, ok := g.edges[edgeID]
	return e, ok
}

// DependenciesOf returns the edges through which taskID depends on other
// tasks. Only immediate edges are returned.
func (g *Graph) DependenciesOf(taskID string) []Edge {
	out := make([]Edge, 0, len(g.prerequisites[taskID]))
	for _, pre := range sortedKeys(g.prerequisites[taskID]) {
		out = append(out, g.edges[g.prerequisites[taskID][pre]])
	}
	return out
}

// DependentsOf returns the edges of tasks that directly depend on taskID.
func (g *Graph) DependentsOf(taskID string) []Edge {
	out := make([]Edge, 0, len(g.dependents[taskID]))
	for _, dep := range sortedKeys(g.dependents[taskID]) {
		out = append(out, g.edges[g.dependents[taskID][dep]])
	}
	return out
}

func (g *Graph) Prerequisites(taskID string) []string {
	return sortedKeys(g.prerequisites[taskID])
}

func (g *Graph) insert(e Edge) {
	g.edges[e.ID] = e
	if g.prerequisites[e.TaskID] == nil {
		g.prerequisites[e.TaskID] = make(map[string]string)
	}
	g.prerequisites[e.TaskID][e.DependsOn] = e.ID
	if g.dependents[e.DependsOn] == nil {
		g.dependents[e.DependsOn] = make(map[string]string)
	}
	g.dependents[e.DependsOn][e.TaskID] = e.ID
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
