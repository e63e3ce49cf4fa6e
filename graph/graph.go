// Package graph builds the dependency DAG over a parsed schema and
// provides topological sort, cycle detection, and layered parallel
// grouping. Hard and soft reference edges are tracked separately;
// only hard edges participate in ordering and cycle checks.
package graph

import (
	"eve.evalgo.org/schema"
)

// Edge is one schema-declared reference between two entity types.
type Edge struct {
	From      string
	To        string
	Operator  schema.Operator
	FieldName string
	IsArray   bool
}

// TypeNode captures the dependency classification for one entity type.
type TypeNode struct {
	Type          string
	DependsOn     map[string]bool
	SoftDependsOn map[string]bool
	DependedOnBy  map[string]bool
}

// Graph is the full per-schema dependency graph, built once from a
// parsed schema.Schema.
type Graph struct {
	Nodes map[string]*TypeNode
	Edges []Edge
	order []string // schema entity declaration order, for tie-breaks
}

// Build constructs the dependency graph from a parsed schema:
// primitives contribute no edges; required "->" is a
// hard dependency; optional "->", and any "~>"/"<~", are soft; "<-"
// contributes no forward dependency.
func Build(s *schema.Schema) *Graph {
	g := &Graph{Nodes: make(map[string]*TypeNode), order: append([]string{}, s.EntityOrder...)}
	node := func(t string) *TypeNode {
		n, ok := g.Nodes[t]
		if !ok {
			n = &TypeNode{Type: t, DependsOn: map[string]bool{}, SoftDependsOn: map[string]bool{}, DependedOnBy: map[string]bool{}}
			g.Nodes[t] = n
		}
		return n
	}
	for _, tname := range s.EntityOrder {
		node(tname)
	}
	for _, tname := range s.EntityOrder {
		entity := s.Entities[tname]
		if entity == nil {
			continue
		}
		from := node(tname)
		for _, fname := range entity.FieldOrder {
			f := entity.Fields[fname]
			if !f.IsReference() {
				continue
			}
			targets := f.UnionTypes
			if len(targets) == 0 && f.TargetType != "" {
				targets = []string{f.TargetType}
			}
			for _, target := range targets {
				to := node(target)
				g.Edges = append(g.Edges, Edge{From: tname, To: target, Operator: f.Operator, FieldName: fname, IsArray: f.IsArray})
				switch {
				case f.Operator == schema.OpBackwardExact:
					// reverse back-ref: no forward dependency edge.
				case f.IsHardDependency():
					from.DependsOn[target] = true
					to.DependedOnBy[tname] = true
				case f.IsSoftDependency():
					from.SoftDependsOn[target] = true
				}
			}
		}
	}
	return g
}

// TopologicalSort returns types reachable from root in an order where
// every hard dependency precedes its dependent.
// ignoreOptional=true skips soft edges during traversal (they never
// raise cycles); root's hard-dependency closure is visited via DFS
// with a visiting set, and a back-edge on a hard dependency raises
// CIRCULAR_DEPENDENCY with the cycle path.
func (g *Graph) TopologicalSort(root string, ignoreOptional bool) ([]string, error) {
	visited := map[string]bool{}
	visiting := map[string]bool{}
	var order []string
	var path []string

	var visit func(t string) error
	visit = func(t string) error {
		if visited[t] {
			return nil
		}
		if visiting[t] {
			cycle := append(append([]string{}, path...), t)
			return schema.WithCycle(schema.KindCircularDependency, "circular dependency detected", cycle)
		}
		visiting[t] = true
		path = append(path, t)

		n := g.Nodes[t]
		if n != nil {
			for _, dep := range sortedKeys(n.DependsOn, g.order) {
				if err := visit(dep); err != nil {
					return err
				}
			}
			if !ignoreOptional {
				for _, dep := range sortedKeys(n.SoftDependsOn, g.order) {
					if err := visit(dep); err != nil {
						return err
					}
				}
			}
		}

		visiting[t] = false
		path = path[:len(path)-1]
		visited[t] = true
		order = append(order, t)
		return nil
	}

	if err := visit(root); err != nil {
		return nil, err
	}
	return order, nil
}

// DetectCycles walks hard edges depth-first and reports one cycle per
// back edge it meets; returns an empty slice for a DAG. Nodes already
// finished are not walked again, so a cycle that only passes through
// such a node is not listed: the result is non-empty exactly when a
// cycle exists, but it is not every simple cycle.
func (g *Graph) DetectCycles() [][]string {
	var cycles [][]string
	visited := map[string]bool{}
	visiting := map[string]bool{}
	var path []string

	var visit func(t string)
	visit = func(t string) {
		if visited[t] {
			return
		}
		if visiting[t] {
			start := 0
			for i, p := range path {
				if p == t {
					start = i
					break
				}
			}
			cycle := append(append([]string{}, path[start:]...), t)
			cycles = append(cycles, cycle)
			return
		}
		visiting[t] = true
		path = append(path, t)
		if n := g.Nodes[t]; n != nil {
			for _, dep := range sortedKeys(n.DependsOn, g.order) {
				visit(dep)
			}
		}
		visiting[t] = false
		path = path[:len(path)-1]
		visited[t] = true
	}

	for _, t := range g.order {
		visit(t)
	}
	return cycles
}

// GetParallelGroups returns a layered ordering reachable from root:
// layer 0 is hard-dependency-free reachable types, and each later
// layer contains types whose hard dependencies all lie in earlier
// layers. Ties within a layer break by schema declaration order.
func (g *Graph) GetParallelGroups(root string) ([][]string, error) {
	order, err := g.TopologicalSort(root, true)
	if err != nil {
		return nil, err
	}
	reachable := map[string]bool{}
	for _, t := range order {
		reachable[t] = true
	}

	layer := map[string]int{}
	for _, t := range order {
		maxDepLayer := -1
		if n := g.Nodes[t]; n != nil {
			for dep := range n.DependsOn {
				if !reachable[dep] {
					continue
				}
				if l, ok := layer[dep]; ok && l > maxDepLayer {
					maxDepLayer = l
				}
			}
		}
		layer[t] = maxDepLayer + 1
	}

	maxLayer := -1
	for _, l := range layer {
		if l > maxLayer {
			maxLayer = l
		}
	}
	groups := make([][]string, maxLayer+1)
	for _, t := range g.order {
		if !reachable[t] {
			continue
		}
		groups[layer[t]] = append(groups[layer[t]], t)
	}
	return groups, nil
}

// sortedKeys returns the keys of m ordered by their position in
// declOrder (the schema's insertion order) so traversal is
// deterministic.
func sortedKeys(m map[string]bool, declOrder []string) []string {
	out := make([]string, 0, len(m))
	for _, t := range declOrder {
		if m[t] {
			out = append(out, t)
		}
	}
	for t := range m {
		found := false
		for _, o := range out {
			if o == t {
				found = true
				break
			}
		}
		if !found {
			out = append(out, t)
		}
	}
	return out
}
