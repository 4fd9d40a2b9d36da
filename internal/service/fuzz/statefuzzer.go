/**
 * 服务:状态感知模糊测试引擎
 * @author: sun977
 * @date: 2025.08.29
 * @description: 基于JSON状态模型的进程内模糊测试引擎，
 *               深度优先探索动作序列并检查状态不变量
 * @func: StateAwareFuzzer、状态模型加载
 */
package fuzz

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"

	scanmodel "chainscan/internal/model/scan"
	"chainscan/internal/pkg/utils"
)

// ContractState 链上合约状态的最小表示
type ContractState struct {
	Storage  map[string]float64
	Balances map[string]float64
}

// Clone 深拷贝状态
func (s *ContractState) Clone() *ContractState {
	clone := &ContractState{
		Storage:  make(map[string]float64, len(s.Storage)),
		Balances: make(map[string]float64, len(s.Balances)),
	}
	for k, v := range s.Storage {
		clone.Storage[k] = v
	}
	for k, v := range s.Balances {
		clone.Balances[k] = v
	}
	return clone
}

// vars 合并存储和余额作为表达式变量表
func (s *ContractState) vars() map[string]float64 {
	vars := make(map[string]float64, len(s.Storage)+len(s.Balances))
	for k, v := range s.Storage {
		vars[k] = v
	}
	for k, v := range s.Balances {
		vars[k] = v
	}
	return vars
}

// Signature 计算状态签名
// 存储和余额按键排序后序列化，SHA-1摘要作为visited集合和覆盖率的键
func (s *ContractState) Signature() string {
	serialize := func(m map[string]float64) []interface{} {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]interface{}, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, []interface{}{k, m[k]})
		}
		return pairs
	}

	data, _ := json.Marshal(map[string]interface{}{
		"storage":  serialize(s.Storage),
		"balances": serialize(s.Balances),
	})
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// StateUpdate 动作对状态的单条修改
type StateUpdate struct {
	Target    string      `json:"target"`               // 目标存储槽
	Op        string      `json:"op"`                   // set/add/sub，缺省set
	Value     interface{} `json:"value"`                // 字面值
	ValueFrom string      `json:"value_from,omitempty"` // 从动作参数取值
	Condition string      `json:"condition,omitempty"`  // 生效条件表达式
}

// StateAction 状态模型中的一个动作
type StateAction struct {
	Name         string                     `json:"name"`
	Inputs       map[string]json.RawMessage `json:"inputs,omitempty"`       // 参数名 -> [min,max]区间或字面值
	Precondition string                     `json:"precondition,omitempty"` // 前置条件表达式
	StateUpdates []StateUpdate              `json:"state_updates,omitempty"`
}

// StateInvariant 状态不变量
type StateInvariant struct {
	Name        string `json:"name"`
	Expression  string `json:"expression"`
	Description string `json:"description,omitempty"`
	Severity    string `json:"severity,omitempty"`
}

// StateModel 完整的状态模型定义
type StateModel struct {
	InitialStorage  map[string]float64 `json:"initial_storage"`
	InitialBalances map[string]float64 `json:"initial_balances"`
	Actions         []StateAction      `json:"actions"`
	Invariants      []StateInvariant   `json:"invariants"`
}

// LoadStateModel 从JSON文件加载状态模型
func LoadStateModel(path string) (*StateModel, error) {
	var model StateModel
	if err := utils.ReadJSONFile(path, &model); err != nil {
		return nil, fmt.Errorf("load state model: %w", err)
	}
	if model.InitialStorage == nil {
		model.InitialStorage = map[string]float64{}
	}
	if model.InitialBalances == nil {
		model.InitialBalances = map[string]float64{}
	}
	return &model, nil
}

// ActionStep 动作执行轨迹中的一步
type ActionStep struct {
	Action     string             `json:"action"`
	Parameters map[string]float64 `json:"parameters,omitempty"`
	Note       string             `json:"note,omitempty"`
	Storage    map[string]float64 `json:"state"`
}

// StateViolation 不变量违反记录
type StateViolation struct {
	Invariant   string
	Description string
	Severity    scanmodel.Severity
	Trace       []ActionStep
	Snapshot    map[string]float64
}

// ToNormalized 转换为归一化发现
func (v *StateViolation) ToNormalized() scanmodel.NormalizedFinding {
	trace := make([]interface{}, 0, len(v.Trace))
	for _, step := range v.Trace {
		trace = append(trace, map[string]interface{}{
			"action":     step.Action,
			"parameters": step.Parameters,
			"note":       step.Note,
			"state":      step.Storage,
		})
	}
	return scanmodel.NormalizedFinding{
		Tool:        "state-fuzzer",
		Title:       fmt.Sprintf("Invariant violated: %s", v.Invariant),
		Description: v.Description,
		Severity:    v.Severity,
		Category:    "state-invariant",
		Raw: map[string]interface{}{
			"trace":    trace,
			"snapshot": v.Snapshot,
		},
	}
}

// FuzzOutcome 一次模糊测试的汇总结果
type FuzzOutcome struct {
	Violations     []StateViolation
	ExploredTraces int
	UniqueStates   int
	Coverage       []string
}

// StateAwareFuzzer 状态感知模糊测试器
// 深度优先探索动作序列，每个到达的状态检查全部不变量；
// 命中违反的轨迹不再继续展开
type StateAwareFuzzer struct {
	model       *StateModel
	maxDepth    int
	maxBranches int
	rng         *rand.Rand
}

// NewStateAwareFuzzer 创建模糊测试器
func NewStateAwareFuzzer(model *StateModel, maxDepth, maxBranches int, seed int64) *StateAwareFuzzer {
	if maxDepth <= 0 {
		maxDepth = 4
	}
	if maxBranches <= 0 {
		maxBranches = 6
	}
	return &StateAwareFuzzer{
		model:       model,
		maxDepth:    maxDepth,
		maxBranches: maxBranches,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

type fuzzFrame struct {
	depth int
	state *ContractState
	trace []ActionStep
}

// Fuzz 执行一轮完整的状态空间探索
func (f *StateAwareFuzzer) Fuzz() (*FuzzOutcome, error) {
	initial := &ContractState{
		Storage:  f.model.InitialStorage,
		Balances: f.model.InitialBalances,
	}

	outcome := &FuzzOutcome{}
	visited := make(map[string]bool)
	stack := []fuzzFrame{{depth: 0, state: initial.Clone()}}

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		signature := frame.state.Signature()
		if !visited[signature] {
			visited[signature] = true
			outcome.Coverage = append(outcome.Coverage, signature)
		}

		violation, err := f.checkInvariants(frame.state, frame.trace)
		if err != nil {
			return nil, err
		}
		if violation != nil {
			outcome.Violations = append(outcome.Violations, *violation)
			continue
		}

		if frame.depth >= f.maxDepth {
			continue
		}

		actions, err := f.availableActions(frame.state)
		if err != nil {
			return nil, err
		}
		f.rng.Shuffle(len(actions), func(i, j int) {
			actions[i], actions[j] = actions[j], actions[i]
		})
		if len(actions) > f.maxBranches {
			actions = actions[:f.maxBranches]
		}

		for _, action := range actions {
			step, nextState, err := f.runAction(action, frame.state)
			if err != nil {
				return nil, err
			}
			nextTrace := make([]ActionStep, len(frame.trace), len(frame.trace)+1)
			copy(nextTrace, frame.trace)
			nextTrace = append(nextTrace, step)
			stack = append(stack, fuzzFrame{depth: frame.depth + 1, state: nextState, trace: nextTrace})
			outcome.ExploredTraces++
		}
	}

	outcome.UniqueStates = len(visited)
	return outcome, nil
}

// availableActions 筛选前置条件满足的动作
func (f *StateAwareFuzzer) availableActions(state *ContractState) ([]StateAction, error) {
	var actions []StateAction
	for _, action := range f.model.Actions {
		if action.Precondition != "" {
			ok, err := EvalExpr(action.Precondition, state.vars())
			if err != nil {
				return nil, fmt.Errorf("action %s precondition: %w", action.Name, err)
			}
			if !ok {
				continue
			}
		}
		actions = append(actions, action)
	}
	return actions, nil
}

// runAction 生成参数并应用状态更新
func (f *StateAwareFuzzer) runAction(action StateAction, state *ContractState) (ActionStep, *ContractState, error) {
	params, err := f.sampleInputs(action)
	if err != nil {
		return ActionStep{}, nil, err
	}

	next := state.Clone()
	var notes []string
	for _, update := range action.StateUpdates {
		if update.Condition != "" {
			vars := next.vars()
			for k, v := range params {
				vars[k] = v
			}
			ok, err := EvalExpr(update.Condition, vars)
			if err != nil {
				return ActionStep{}, nil, fmt.Errorf("action %s update condition: %w", action.Name, err)
			}
			if !ok {
				continue
			}
		}

		var value float64
		if update.ValueFrom != "" {
			value = params[update.ValueFrom]
		} else if v, ok := update.Value.(float64); ok {
			value = v
		}

		current := next.Storage[update.Target]
		switch update.Op {
		case "add":
			next.Storage[update.Target] = current + value
		case "sub":
			next.Storage[update.Target] = current - value
		default:
			next.Storage[update.Target] = value
		}
		notes = append(notes, fmt.Sprintf("%s=%v", update.Target, next.Storage[update.Target]))
	}

	step := ActionStep{
		Action:     action.Name,
		Parameters: params,
		Storage:    next.Storage,
	}
	if len(notes) > 0 {
		step.Note = joinNotes(notes)
	}
	return step, next, nil
}

// sampleInputs 按输入规格采样参数
// [min,max]数值区间随机取整数，其他规格按字面值处理
func (f *StateAwareFuzzer) sampleInputs(action StateAction) (map[string]float64, error) {
	params := make(map[string]float64, len(action.Inputs))
	for key, spec := range action.Inputs {
		var bounds []float64
		if err := json.Unmarshal(spec, &bounds); err == nil && len(bounds) == 2 {
			lo, hi := int64(bounds[0]), int64(bounds[1])
			if hi < lo {
				return nil, fmt.Errorf("action %s input %s: invalid range [%d,%d]", action.Name, key, lo, hi)
			}
			params[key] = float64(lo + f.rng.Int63n(hi-lo+1))
			continue
		}
		var literal float64
		if err := json.Unmarshal(spec, &literal); err == nil {
			params[key] = literal
		}
	}
	return params, nil
}

// checkInvariants 按定义顺序检查不变量，返回第一条违反
func (f *StateAwareFuzzer) checkInvariants(state *ContractState, trace []ActionStep) (*StateViolation, error) {
	for _, invariant := range f.model.Invariants {
		ok, err := EvalExpr(invariant.Expression, state.vars())
		if err != nil {
			return nil, fmt.Errorf("invariant %s: %w", invariant.Name, err)
		}
		if ok {
			continue
		}

		description := invariant.Description
		if description == "" {
			description = invariant.Expression
		}
		severity := scanmodel.NormalizeSeverity(invariant.Severity)
		if invariant.Severity == "" {
			severity = scanmodel.SeverityHigh
		}
		return &StateViolation{
			Invariant:   invariant.Name,
			Description: description,
			Severity:    severity,
			Trace:       trace,
			Snapshot:    state.Clone().Storage,
		}, nil
	}
	return nil, nil
}

func joinNotes(notes []string) string {
	result := ""
	for i, note := range notes {
		if i > 0 {
			result += ", "
		}
		result += note
	}
	return result
}
