// internal/models/condition.go
package models

import (
	"fmt"
	"strconv"
)

// ConditionField names a terminal-result field of a dependency that a
// condition can reference.
type ConditionField string

const (
	ConditionFieldExitCode ConditionField = "exit_code"
	ConditionFieldStatus   ConditionField = "status"
)

// ConditionOp is a comparison operator
type ConditionOp string

const (
	OpEq ConditionOp = "eq"
	OpNe ConditionOp = "ne"
	OpGt ConditionOp = "gt"
	OpGe ConditionOp = "ge"
	OpLt ConditionOp = "lt"
	OpLe ConditionOp = "le"
)

// DependencyResult is the terminal outcome of a dependency as seen by
// condition evaluation.
type DependencyResult struct {
	Status   TaskStatus
	ExitCode int
}

// Condition is a typed predicate over the terminal results of a task's
// dependencies. Exactly one of All, Any, Not, or the comparison fields
// (Task/Field/Op/Value) must be populated.
type Condition struct {
	All []Condition `json:"all,omitempty" yaml:"all,omitempty"`
	Any []Condition `json:"any,omitempty" yaml:"any,omitempty"`
	Not *Condition  `json:"not,omitempty" yaml:"not,omitempty"`

	Task  string         `json:"task,omitempty" yaml:"task,omitempty"`
	Field ConditionField `json:"field,omitempty" yaml:"field,omitempty"`
	Op    ConditionOp    `json:"op,omitempty" yaml:"op,omitempty"`
	Value string         `json:"value,omitempty" yaml:"value,omitempty"`
}

// Clone returns a deep copy of the predicate tree. Graph construction
// rewrites condition references during matrix expansion and must never write
// through the author's nodes.
func (c *Condition) Clone() *Condition {
	if c == nil {
		return nil
	}
	out := *c
	if c.All != nil {
		out.All = make([]Condition, len(c.All))
		for i := range c.All {
			out.All[i] = *c.All[i].Clone()
		}
	}
	if c.Any != nil {
		out.Any = make([]Condition, len(c.Any))
		for i := range c.Any {
			out.Any[i] = *c.Any[i].Clone()
		}
	}
	if c.Not != nil {
		out.Not = c.Not.Clone()
	}
	return &out
}

// Validate checks the predicate tree for structural errors before any
// execution starts. deps is the set of task ids the owning task depends on.
func (c *Condition) Validate(deps map[string]bool) error {
	switch {
	case c.All != nil:
		for i := range c.All {
			if err := c.All[i].Validate(deps); err != nil {
				return err
			}
		}
		return nil
	case c.Any != nil:
		for i := range c.Any {
			if err := c.Any[i].Validate(deps); err != nil {
				return err
			}
		}
		return nil
	case c.Not != nil:
		return c.Not.Validate(deps)
	}

	if c.Task == "" {
		return fmt.Errorf("condition comparison is missing a task reference")
	}
	if !deps[c.Task] {
		return fmt.Errorf("condition references %q which is not a declared dependency", c.Task)
	}
	switch c.Field {
	case ConditionFieldExitCode:
		if _, err := strconv.Atoi(c.Value); err != nil {
			return fmt.Errorf("condition on %s requires a numeric value, got %q", c.Field, c.Value)
		}
	case ConditionFieldStatus:
		if c.Op != OpEq && c.Op != OpNe {
			return fmt.Errorf("condition on %s supports only eq/ne, got %q", c.Field, c.Op)
		}
	default:
		return fmt.Errorf("unknown condition field %q", c.Field)
	}
	switch c.Op {
	case OpEq, OpNe, OpGt, OpGe, OpLt, OpLe:
		return nil
	default:
		return fmt.Errorf("unknown condition operator %q", c.Op)
	}
}

// Evaluate applies the predicate against the terminal results of the owning
// task's dependencies. Evaluation is total for a validated condition whose
// referenced dependencies are all terminal.
func (c *Condition) Evaluate(results map[string]DependencyResult) (bool, error) {
	switch {
	case c.All != nil:
		for i := range c.All {
			ok, err := c.All[i].Evaluate(results)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case c.Any != nil:
		for i := range c.Any {
			ok, err := c.Any[i].Evaluate(results)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case c.Not != nil:
		ok, err := c.Not.Evaluate(results)
		return !ok, err
	}

	res, exists := results[c.Task]
	if !exists {
		return false, fmt.Errorf("no terminal result for dependency %q", c.Task)
	}

	switch c.Field {
	case ConditionFieldExitCode:
		want, err := strconv.Atoi(c.Value)
		if err != nil {
			return false, fmt.Errorf("condition value %q is not numeric: %w", c.Value, err)
		}
		return compareInt(res.ExitCode, c.Op, want)
	case ConditionFieldStatus:
		match := string(res.Status) == c.Value
		if c.Op == OpNe {
			return !match, nil
		}
		return match, nil
	default:
		return false, fmt.Errorf("unknown condition field %q", c.Field)
	}
}

func compareInt(got int, op ConditionOp, want int) (bool, error) {
	switch op {
	case OpEq:
		return got == want, nil
	case OpNe:
		return got != want, nil
	case OpGt:
		return got > want, nil
	case OpGe:
		return got >= want, nil
	case OpLt:
		return got < want, nil
	case OpLe:
		return got <= want, nil
	default:
		return false, fmt.Errorf("unknown condition operator %q", op)
	}
}
