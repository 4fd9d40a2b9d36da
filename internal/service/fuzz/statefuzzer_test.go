package fuzz

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scanmodel "chainscan/internal/model/scan"
)

func TestFuzzFindsInvariantViolation(t *testing.T) {
	// 每次drain扣60，第二次后balance为负
	model := &StateModel{
		InitialStorage:  map[string]float64{"balance": 100},
		InitialBalances: map[string]float64{},
		Actions: []StateAction{
			{
				Name: "drain",
				StateUpdates: []StateUpdate{
					{Target: "balance", Op: "sub", Value: float64(60)},
				},
			},
		},
		Invariants: []StateInvariant{
			{Name: "non-negative-balance", Expression: "balance >= 0"},
		},
	}

	fuzzer := NewStateAwareFuzzer(model, 3, 4, 1)
	outcome, err := fuzzer.Fuzz()
	require.NoError(t, err)

	require.Len(t, outcome.Violations, 1)
	violation := outcome.Violations[0]
	assert.Equal(t, "non-negative-balance", violation.Invariant)
	// 描述缺省回退到表达式本身，严重级别缺省为HIGH
	assert.Equal(t, "balance >= 0", violation.Description)
	assert.Equal(t, scanmodel.SeverityHigh, violation.Severity)
	assert.Len(t, violation.Trace, 2)
	assert.Equal(t, "drain", violation.Trace[0].Action)
	assert.Equal(t, float64(-20), violation.Snapshot["balance"])
}

func TestFuzzNoViolationWhenInvariantHolds(t *testing.T) {
	model := &StateModel{
		InitialStorage: map[string]float64{"counter": 0},
		Actions: []StateAction{
			{
				Name: "increment",
				StateUpdates: []StateUpdate{
					{Target: "counter", Op: "add", Value: float64(1)},
				},
			},
		},
		Invariants: []StateInvariant{
			{Name: "bounded", Expression: "counter <= 100"},
		},
	}

	fuzzer := NewStateAwareFuzzer(model, 3, 4, 1)
	outcome, err := fuzzer.Fuzz()
	require.NoError(t, err)

	assert.Empty(t, outcome.Violations)
	// counter取值0..3，每个深度一个新状态
	assert.Equal(t, 4, outcome.UniqueStates)
	assert.Len(t, outcome.Coverage, 4)
	assert.Equal(t, 3, outcome.ExploredTraces)
}

func TestFuzzRespectsPrecondition(t *testing.T) {
	// 前置条件永不满足，探索止步于初始状态
	model := &StateModel{
		InitialStorage: map[string]float64{"flag": 0, "value": 0},
		Actions: []StateAction{
			{
				Name:         "guarded",
				Precondition: "flag == 1",
				StateUpdates: []StateUpdate{
					{Target: "value", Value: float64(999)},
				},
			},
		},
	}

	fuzzer := NewStateAwareFuzzer(model, 5, 4, 1)
	outcome, err := fuzzer.Fuzz()
	require.NoError(t, err)

	assert.Equal(t, 0, outcome.ExploredTraces)
	assert.Equal(t, 1, outcome.UniqueStates)
}

func TestFuzzSamplesInputsWithinRange(t *testing.T) {
	// [5,5]区间采样恒为5，通过违反快照验证参数流入状态更新
	model := &StateModel{
		InitialStorage: map[string]float64{"balance": 100},
		Actions: []StateAction{
			{
				Name: "deposit",
				Inputs: map[string]json.RawMessage{
					"amount": json.RawMessage(`[5, 5]`),
				},
				StateUpdates: []StateUpdate{
					{Target: "balance", Op: "add", ValueFrom: "amount"},
				},
			},
		},
		Invariants: []StateInvariant{
			{Name: "capped", Expression: "balance <= 100", Severity: "MEDIUM"},
		},
	}

	fuzzer := NewStateAwareFuzzer(model, 2, 4, 1)
	outcome, err := fuzzer.Fuzz()
	require.NoError(t, err)

	require.Len(t, outcome.Violations, 1)
	violation := outcome.Violations[0]
	assert.Equal(t, scanmodel.SeverityMedium, violation.Severity)
	assert.Equal(t, float64(105), violation.Snapshot["balance"])
	require.Len(t, violation.Trace, 1)
	assert.Equal(t, float64(5), violation.Trace[0].Parameters["amount"])
}

func TestFuzzConditionalUpdate(t *testing.T) {
	// 条件不满足的更新被跳过
	model := &StateModel{
		InitialStorage: map[string]float64{"paused": 1, "value": 0},
		Actions: []StateAction{
			{
				Name: "write",
				StateUpdates: []StateUpdate{
					{Target: "value", Value: float64(42), Condition: "paused == 0"},
				},
			},
		},
		Invariants: []StateInvariant{
			{Name: "untouched", Expression: "value == 0"},
		},
	}

	fuzzer := NewStateAwareFuzzer(model, 2, 4, 1)
	outcome, err := fuzzer.Fuzz()
	require.NoError(t, err)
	assert.Empty(t, outcome.Violations)
}

func TestFuzzInvalidInputRange(t *testing.T) {
	model := &StateModel{
		InitialStorage: map[string]float64{},
		Actions: []StateAction{
			{
				Name: "bad",
				Inputs: map[string]json.RawMessage{
					"amount": json.RawMessage(`[10, 1]`),
				},
			},
		},
	}

	fuzzer := NewStateAwareFuzzer(model, 2, 4, 1)
	_, err := fuzzer.Fuzz()
	assert.Error(t, err)
}

func TestStateViolationToNormalized(t *testing.T) {
	violation := &StateViolation{
		Invariant:   "solvency",
		Description: "vault must stay solvent",
		Severity:    scanmodel.SeverityCritical,
		Trace: []ActionStep{
			{Action: "withdraw", Parameters: map[string]float64{"amount": 10}},
		},
		Snapshot: map[string]float64{"balance": -10},
	}

	finding := violation.ToNormalized()
	assert.Equal(t, "state-fuzzer", finding.Tool)
	assert.Equal(t, "Invariant violated: solvency", finding.Title)
	assert.Equal(t, scanmodel.SeverityCritical, finding.Severity)
	assert.Equal(t, "state-invariant", finding.Category)
	assert.Contains(t, finding.Raw, "trace")
	assert.Contains(t, finding.Raw, "snapshot")
}

func TestContractStateSignature(t *testing.T) {
	a := &ContractState{
		Storage:  map[string]float64{"x": 1, "y": 2},
		Balances: map[string]float64{"owner": 100},
	}
	b := &ContractState{
		Storage:  map[string]float64{"y": 2, "x": 1},
		Balances: map[string]float64{"owner": 100},
	}
	// 键序无关，内容相同签名必须一致
	assert.Equal(t, a.Signature(), b.Signature())

	c := a.Clone()
	c.Storage["x"] = 3
	assert.NotEqual(t, a.Signature(), c.Signature())
	// Clone不共享底层map
	assert.Equal(t, float64(1), a.Storage["x"])
}

func TestLoadStateModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	content := `{
		"actions": [{"name": "noop"}],
		"invariants": [{"name": "always", "expression": "1 == 1"}]
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	model, err := LoadStateModel(path)
	require.NoError(t, err)
	// 缺省字段初始化为空map
	assert.NotNil(t, model.InitialStorage)
	assert.NotNil(t, model.InitialBalances)
	assert.Len(t, model.Actions, 1)

	_, err = LoadStateModel(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
