// internal/graph/graph.go
package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fawad-mazhar/runweave/internal/models"
)

// CycleError reports that a workflow definition contains a dependency cycle.
// Nodes lists the ids that could not be topologically ordered.
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("workflow contains a dependency cycle involving: %s", strings.Join(e.Nodes, ", "))
}

// Graph is a validated DAG of task specs after matrix expansion. It is
// immutable once built and safe for concurrent reads.
type Graph struct {
	nodes      map[string]models.TaskSpec
	dependents map[string][]string // node id -> ids that depend on it
	topoIndex  map[string]int      // position in a deterministic topological order
	order      []string
}

// Build expands matrix tasks, validates dependencies and conditions, and
// runs cycle detection. No partial graph is returned on error.
func Build(tasks []models.TaskSpec) (*Graph, error) {
	expanded, err := expand(tasks)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		nodes:      make(map[string]models.TaskSpec, len(expanded)),
		dependents: make(map[string][]string),
		topoIndex:  make(map[string]int, len(expanded)),
	}

	for _, spec := range expanded {
		if _, exists := g.nodes[spec.ID]; exists {
			return nil, fmt.Errorf("duplicate task id %q", spec.ID)
		}
		g.nodes[spec.ID] = spec
	}

	for _, spec := range expanded {
		depSet := make(map[string]bool, len(spec.DependsOn))
		for _, dep := range spec.DependsOn {
			if dep == spec.ID {
				return nil, fmt.Errorf("task %q depends on itself", spec.ID)
			}
			if _, exists := g.nodes[dep]; !exists {
				return nil, fmt.Errorf("task %q depends on unknown task %q", spec.ID, dep)
			}
			if depSet[dep] {
				return nil, fmt.Errorf("task %q declares dependency %q twice", spec.ID, dep)
			}
			depSet[dep] = true
			g.dependents[dep] = append(g.dependents[dep], spec.ID)
		}
		if spec.Condition != nil {
			if err := spec.Condition.Validate(depSet); err != nil {
				return nil, fmt.Errorf("task %q: %w", spec.ID, err)
			}
		}
	}

	if err := g.buildOrder(); err != nil {
		return nil, err
	}
	return g, nil
}

// expand performs matrix fan-out: a spec with a matrix of count N becomes N
// independent nodes "id[i]", each carrying an index environment variable.
// Dependency edges (and condition references) pointing at an expanded task
// are re-pointed at every instance.
func expand(tasks []models.TaskSpec) ([]models.TaskSpec, error) {
	instances := make(map[string][]string) // original id -> expanded ids

	var out []models.TaskSpec
	for _, spec := range tasks {
		if spec.Matrix == nil {
			out = append(out, spec.Clone())
			continue
		}
		if spec.Matrix.Count < 1 {
			return nil, fmt.Errorf("task %q has matrix count %d, must be at least 1", spec.ID, spec.Matrix.Count)
		}

		indexEnv := spec.Matrix.IndexEnv
		if indexEnv == "" {
			indexEnv = models.DefaultMatrixIndexEnv
		}

		ids := make([]string, 0, spec.Matrix.Count)
		for i := 0; i < spec.Matrix.Count; i++ {
			inst := spec.Clone()
			inst.ID = fmt.Sprintf("%s[%d]", spec.ID, i)
			inst.Matrix = nil
			if inst.Env == nil {
				inst.Env = make(map[string]string, 1)
			}
			inst.Env[indexEnv] = strconv.Itoa(i)
			ids = append(ids, inst.ID)
			out = append(out, inst)
		}
		instances[spec.ID] = ids
	}

	// Re-point edges and condition references at expanded instances.
	for i := range out {
		var deps []string
		for _, dep := range out[i].DependsOn {
			if expandedIDs, ok := instances[dep]; ok {
				deps = append(deps, expandedIDs...)
			} else {
				deps = append(deps, dep)
			}
		}
		out[i].DependsOn = deps
		if out[i].Condition != nil {
			cond := rewriteCondition(*out[i].Condition, instances)
			out[i].Condition = &cond
		}
	}

	return out, nil
}

// rewriteCondition replaces a comparison against a matrix-expanded task with
// a conjunction over all of its instances.
func rewriteCondition(c models.Condition, instances map[string][]string) models.Condition {
	switch {
	case c.All != nil:
		for i := range c.All {
			c.All[i] = rewriteCondition(c.All[i], instances)
		}
		return c
	case c.Any != nil:
		for i := range c.Any {
			c.Any[i] = rewriteCondition(c.Any[i], instances)
		}
		return c
	case c.Not != nil:
		inner := rewriteCondition(*c.Not, instances)
		c.Not = &inner
		return c
	}

	expandedIDs, ok := instances[c.Task]
	if !ok {
		return c
	}
	all := make([]models.Condition, 0, len(expandedIDs))
	for _, id := range expandedIDs {
		inst := c
		inst.Task = id
		all = append(all, inst)
	}
	return models.Condition{All: all}
}

// buildOrder runs Kahn's algorithm over in-degrees. Any node left with a
// nonzero in-degree is part of a cycle and fails construction.
func (g *Graph) buildOrder() error {
	inDegree := make(map[string]int, len(g.nodes))
	for id, spec := range g.nodes {
		inDegree[id] = len(spec.DependsOn)
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		g.topoIndex[id] = len(g.order)
		g.order = append(g.order, id)

		next := append([]string(nil), g.dependents[id]...)
		sort.Strings(next)
		for _, dep := range next {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(g.order) != len(g.nodes) {
		var stuck []string
		for id := range g.nodes {
			if _, placed := g.topoIndex[id]; !placed {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return &CycleError{Nodes: stuck}
	}
	return nil
}

// Len returns the number of nodes after matrix expansion.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// NodeIDs returns all node ids in topological order.
func (g *Graph) NodeIDs() []string {
	return append([]string(nil), g.order...)
}

// Spec returns the expanded spec for a node id.
func (g *Graph) Spec(id string) (models.TaskSpec, bool) {
	spec, ok := g.nodes[id]
	return spec, ok
}

// Dependencies returns the direct dependency ids of a node.
func (g *Graph) Dependencies(id string) []string {
	spec, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return append([]string(nil), spec.DependsOn...)
}

// Eligibility partitions the not-yet-terminal nodes whose dependencies have
// all reached a terminal state into those that may run and those that must
// be skipped.
type Eligibility struct {
	Ready   []string
	Skipped []string
}

// Eligible computes the ready and skip sets given the terminal results
// collected so far. Policy: a node whose dependencies all succeeded is ready
// (subject to its condition); runAlways widens eligibility past failed
// dependencies; a condition may also widen it by referencing a failed
// dependency's result, and always narrows: evaluating false means skipped.
// Nodes already present in terminal are never returned.
func (g *Graph) Eligible(terminal map[string]models.DependencyResult) Eligibility {
	var out Eligibility

	for _, id := range g.order {
		if _, done := terminal[id]; done {
			continue
		}

		spec := g.nodes[id]
		depsTerminal := true
		depsSucceeded := true
		for _, dep := range spec.DependsOn {
			res, done := terminal[dep]
			if !done {
				depsTerminal = false
				break
			}
			if !res.Status.IsSuccess() {
				depsSucceeded = false
			}
		}
		if !depsTerminal {
			continue
		}

		eligible := depsSucceeded || spec.RunAlways || spec.Condition != nil
		if eligible && spec.Condition != nil {
			ok, err := spec.Condition.Evaluate(terminal)
			if err != nil || !ok {
				eligible = false
			}
		}

		if eligible {
			out.Ready = append(out.Ready, id)
		} else {
			out.Skipped = append(out.Skipped, id)
		}
	}

	return out
}
