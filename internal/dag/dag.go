// SPDX-License-Identifier: MPL-2.0

// Package dag orders nodes of a directed acyclic graph. The build pipeline
// uses it to turn step prerequisites into an application order.
package dag

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrCycle is wrapped by CycleError.
var ErrCycle = errors.New("dependency cycle")

type (
	// CycleError reports the nodes left over when no ordering exists.
	CycleError[K comparable] struct {
		Nodes []K
	}

	// Graph is a directed graph whose edge A -> B means A comes before B.
	// Insertion order is remembered so orderings are reproducible.
	Graph[K comparable] struct {
		succ  map[K][]K
		pred  map[K][]K
		order []K
	}
)

func (e *CycleError[K]) Error() string {
	parts := make([]string, len(e.Nodes))
	for i, n := range e.Nodes {
		parts[i] = fmt.Sprint(n)
	}
	return fmt.Sprintf("dependency cycle between %s", strings.Join(parts, ", "))
}

func (e *CycleError[K]) Unwrap() error { return ErrCycle }

// New returns an empty graph.
func New[K comparable]() *Graph[K] {
	return &Graph[K]{
		succ: make(map[K][]K),
		pred: make(map[K][]K),
	}
}

// AddNode inserts n. Adding an existing node does nothing.
func (g *Graph[K]) AddNode(n K) {
	if g.Has(n) {
		return
	}
	g.succ[n] = nil
	g.order = append(g.order, n)
}

// AddEdge records that from comes before to, adding both nodes if needed.
func (g *Graph[K]) AddEdge(from, to K) {
	g.AddNode(from)
	g.AddNode(to)
	g.succ[from] = append(g.succ[from], to)
	g.pred[to] = append(g.pred[to], from)
}

// Has reports whether n is in the graph.
func (g *Graph[K]) Has(n K) bool {
	_, ok := g.succ[n]
	return ok
}

// Len is the number of nodes.
func (g *Graph[K]) Len() int { return len(g.order) }

// Predecessors returns the nodes with an edge into n, in edge order.
func (g *Graph[K]) Predecessors(n K) []K { return g.pred[n] }

// Sort returns a topological order (Kahn's algorithm). Whenever several
// nodes are ready, the one inserted earliest is emitted first, so a graph
// built in the preferred order sorts back to that order when edges allow.
func (g *Graph[K]) Sort() ([]K, error) {
	if len(g.order) == 0 {
		return nil, nil
	}

	pos := make(map[K]int, len(g.order))
	indeg := make(map[K]int, len(g.order))
	var ready []int
	for i, n := range g.order {
		pos[n] = i
		indeg[n] = len(g.pred[n])
		if indeg[n] == 0 {
			ready = append(ready, i)
		}
	}

	sorted := make([]K, 0, len(g.order))
	for len(ready) > 0 {
		n := g.order[ready[0]]
		ready = ready[1:]
		sorted = append(sorted, n)
		for _, s := range g.succ[n] {
			indeg[s]--
			if indeg[s] == 0 {
				i, _ := slices.BinarySearch(ready, pos[s])
				ready = slices.Insert(ready, i, pos[s])
			}
		}
	}

	if len(sorted) < len(g.order) {
		var stuck []K
		for _, n := range g.order {
			if indeg[n] > 0 {
				stuck = append(stuck, n)
			}
		}
		return nil, &CycleError[K]{Nodes: stuck}
	}
	return sorted, nil
}
