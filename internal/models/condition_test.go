// internal/models/condition_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionValidate(t *testing.T) {
	deps := map[string]bool{"build": true, "lint": true}

	valid := &Condition{Task: "build", Field: ConditionFieldExitCode, Op: OpNe, Value: "0"}
	assert.NoError(t, valid.Validate(deps))

	unknownDep := &Condition{Task: "deploy", Field: ConditionFieldExitCode, Op: OpEq, Value: "0"}
	assert.Error(t, unknownDep.Validate(deps))

	badValue := &Condition{Task: "build", Field: ConditionFieldExitCode, Op: OpEq, Value: "zero"}
	assert.Error(t, badValue.Validate(deps))

	badStatusOp := &Condition{Task: "build", Field: ConditionFieldStatus, Op: OpGt, Value: "SUCCEEDED"}
	assert.Error(t, badStatusOp.Validate(deps))

	nested := &Condition{All: []Condition{
		{Task: "build", Field: ConditionFieldStatus, Op: OpEq, Value: "SUCCEEDED"},
		{Not: &Condition{Task: "lint", Field: ConditionFieldExitCode, Op: OpEq, Value: "2"}},
	}}
	assert.NoError(t, nested.Validate(deps))
}

func TestConditionEvaluateComparison(t *testing.T) {
	results := map[string]DependencyResult{
		"build": {Status: TaskStatusFailed, ExitCode: 2},
		"lint":  {Status: TaskStatusSucceeded, ExitCode: 0},
	}

	failedExit := &Condition{Task: "build", Field: ConditionFieldExitCode, Op: OpNe, Value: "0"}
	ok, err := failedExit.Evaluate(results)
	require.NoError(t, err)
	assert.True(t, ok)

	exactExit := &Condition{Task: "build", Field: ConditionFieldExitCode, Op: OpEq, Value: "2"}
	ok, err = exactExit.Evaluate(results)
	require.NoError(t, err)
	assert.True(t, ok)

	statusEq := &Condition{Task: "lint", Field: ConditionFieldStatus, Op: OpEq, Value: "SUCCEEDED"}
	ok, err = statusEq.Evaluate(results)
	require.NoError(t, err)
	assert.True(t, ok)

	statusNe := &Condition{Task: "build", Field: ConditionFieldStatus, Op: OpNe, Value: "SUCCEEDED"}
	ok, err = statusNe.Evaluate(results)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConditionEvaluateCombinators(t *testing.T) {
	results := map[string]DependencyResult{
		"a": {Status: TaskStatusSucceeded, ExitCode: 0},
		"b": {Status: TaskStatusFailed, ExitCode: 1},
	}

	and := &Condition{All: []Condition{
		{Task: "a", Field: ConditionFieldExitCode, Op: OpEq, Value: "0"},
		{Task: "b", Field: ConditionFieldExitCode, Op: OpEq, Value: "1"},
	}}
	ok, err := and.Evaluate(results)
	require.NoError(t, err)
	assert.True(t, ok)

	or := &Condition{Any: []Condition{
		{Task: "a", Field: ConditionFieldExitCode, Op: OpEq, Value: "9"},
		{Task: "b", Field: ConditionFieldExitCode, Op: OpEq, Value: "1"},
	}}
	ok, err = or.Evaluate(results)
	require.NoError(t, err)
	assert.True(t, ok)

	not := &Condition{Not: &Condition{Task: "a", Field: ConditionFieldStatus, Op: OpEq, Value: "FAILED"}}
	ok, err = not.Evaluate(results)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTaskSpecCloneDeepCopiesCondition(t *testing.T) {
	original := TaskSpec{
		ID:        "publish",
		DependsOn: []string{"work"},
		Condition: &Condition{All: []Condition{
			{Task: "work", Field: ConditionFieldExitCode, Op: OpEq, Value: "0"},
			{Not: &Condition{Task: "work", Field: ConditionFieldStatus, Op: OpEq, Value: "SKIPPED"}},
		}},
		Matrix: &Matrix{Count: 3},
	}

	clone := original.Clone()
	clone.Condition.All[0].Task = "work[0]"
	clone.Condition.All[1].Not.Value = "CANCELLED"
	clone.Matrix.Count = 1

	assert.Equal(t, "work", original.Condition.All[0].Task)
	assert.Equal(t, "SKIPPED", original.Condition.All[1].Not.Value)
	assert.Equal(t, 3, original.Matrix.Count)
}

func TestConditionEvaluateMissingResult(t *testing.T) {
	cond := &Condition{Task: "ghost", Field: ConditionFieldExitCode, Op: OpEq, Value: "0"}
	_, err := cond.Evaluate(map[string]DependencyResult{})
	assert.Error(t, err)
}
