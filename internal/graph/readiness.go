package graph

import (
	"container/heap"
	"sort"
	"time"

	"github.com/adanyl0v/go-planner/internal/models"
)

// Node is a task taking part in a readiness ordering.
type Node struct {
	ID        string
	Priority  models.Priority
	Position  int
	CreatedAt time.Time
}

// Less orders ready nodes: higher priority first, then lower backlog
// position, then earlier creation, then id.
func (n Node) Less(o Node) bool {
	if n.Priority.Rank() != o.Priority.Rank() {
		return n.Priority.Rank() > o.Priority.Rank()
	}
	if n.Position != o.Position {
		return n.Position < o.Position
	}
	if !n.CreatedAt.Equal(o.CreatedAt) {
		return n.CreatedAt.Before(o.CreatedAt)
	}
	return n.ID < o.ID
}

type Readiness struct {
	// Order lists node ids so that every prerequisite precedes its dependents.
	Order []string
	// Blocked lists nodes that wait on an unresolved prerequisite outside
	// the subset, directly or through another blocked node.
	Blocked []string
}

// ReadinessOrder topologically sorts the given subset of tasks.
//
// Prerequisites outside the subset are checked with resolved; a false
// answer blocks the task and everything in the subset that depends on it.
// ErrCycleDetected is returned if the subset is not acyclic, blocked
// nodes included.
func (g *Graph) ReadinessOrder(nodes []Node, resolved func(taskID string) bool) (*Readiness, error) {
	byID := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	blocked := make(map[string]bool)
	var queue []string
	for _, n := range nodes {
		for _, pre := range g.Prerequisites(n.ID) {
			if _, in := byID[pre]; in {
				continue
			}
			if resolved == nil || !resolved(pre) {
				blocked[n.ID] = true
				queue = append(queue, n.ID)
				break
			}
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, dep := range sortedKeys(g.dependents[id]) {
			if _, in := byID[dep]; !in || blocked[dep] {
				continue
			}
			blocked[dep] = true
			queue = append(queue, dep)
		}
	}

	// Blocked nodes take part in the Kahn pass so that a stored cycle is
	// reported even when every node on it is blocked. Only unblocked nodes
	// make it into Order; they never wait on a blocked one.
	inDegree := make(map[string]int, len(nodes))
	ready := &nodeHeap{}
	for _, n := range nodes {
		for _, pre := range g.Prerequisites(n.ID) {
			if _, in := byID[pre]; in {
				inDegree[n.ID]++
			}
		}
		if inDegree[n.ID] == 0 {
			heap.Push(ready, n)
		}
	}

	result := &Readiness{Order: make([]string, 0, len(nodes))}
	visited := 0
	for ready.Len() > 0 {
		n := heap.Pop(ready).(Node)
		visited++
		if !blocked[n.ID] {
			result.Order = append(result.Order, n.ID)
		}
		for _, dep := range sortedKeys(g.dependents[n.ID]) {
			if _, in := byID[dep]; !in {
				continue
			}
			inDegree[dep]--
			if inDegree[dep] == 0 {
				heap.Push(ready, byID[dep])
			}
		}
	}

	if visited != len(byID) {
		var stuck []string
		for _, n := range nodes {
			if inDegree[n.ID] > 0 {
				stuck = append(stuck, n.ID)
			}
		}
		sort.Strings(stuck)
		return nil, newError(ErrCycleDetected, "%d of %d tasks ordered, unresolved: %v",
			len(result.Order), len(byID), stuck)
	}

	for id := range blocked {
		result.Blocked = append(result.Blocked, id)
	}
	sort.Strings(result.Blocked)
	return result, nil
}

type nodeHeap []Node

func (h nodeHeap) Len() int           { return len(h) }
func (h nodeHeap) Less(i, j int) bool { return h[i].Less(h[j]) }
func (h nodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x any)        { *h = append(*h, x.(Node)) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}
