package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chainscan/internal/config"
	"chainscan/internal/model/scan"
	"chainscan/internal/model/system"
	fuzzservice "chainscan/internal/service/fuzz"
)

// StateFuzzerAdapter 进程内状态感知模糊测试适配器
// 不启动外部进程：target是JSON状态模型文件，
// 引擎在本进程内做深度优先探索，违反的不变量作为发现输出
type StateFuzzerAdapter struct {
	fuzzerCfg *config.FuzzerConfig
}

// NewStateFuzzerAdapter 创建状态模糊测试适配器
func NewStateFuzzerAdapter(fuzzerCfg *config.FuzzerConfig) *StateFuzzerAdapter {
	return &StateFuzzerAdapter{fuzzerCfg: fuzzerCfg}
}

// Name 返回工具名称
func (a *StateFuzzerAdapter) Name() string {
	return "state-fuzzer"
}

// stateFuzzerOutput 引擎结果的标准输出编码
// 与外部工具保持同一条Execute/Parse路径
type stateFuzzerOutput struct {
	ExploredTraces int                      `json:"explored_traces"`
	UniqueStates   int                      `json:"unique_states"`
	Coverage       []string                 `json:"coverage"`
	Findings       []scan.NormalizedFinding `json:"findings"`
}

// Execute 加载状态模型并执行一轮探索
func (a *StateFuzzerAdapter) Execute(ctx context.Context, target string, cfg config.ToolConfig) (*ExecResult, error) {
	start := time.Now()

	model, err := fuzzservice.LoadStateModel(target)
	if err != nil {
		return &ExecResult{
			ExitCode: 1,
			Stderr:   fmt.Sprintf("state model not found at %s: %v", target, err),
			Duration: time.Since(start),
		}, nil
	}

	maxDepth, maxBranches := 4, 6
	if a.fuzzerCfg != nil {
		maxDepth = a.fuzzerCfg.MaxDepth
		maxBranches = a.fuzzerCfg.MaxBranches
	}

	fuzzer := fuzzservice.NewStateAwareFuzzer(model, maxDepth, maxBranches, time.Now().UnixNano())
	outcome, err := fuzzer.Fuzz()
	if err != nil {
		return &ExecResult{
			ExitCode: 1,
			Stderr:   err.Error(),
			Duration: time.Since(start),
		}, nil
	}

	findings := make([]scan.NormalizedFinding, 0, len(outcome.Violations))
	for _, v := range outcome.Violations {
		findings = append(findings, v.ToNormalized())
	}

	out := stateFuzzerOutput{
		ExploredTraces: outcome.ExploredTraces,
		UniqueStates:   outcome.UniqueStates,
		Coverage:       outcome.Coverage,
		Findings:       findings,
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode fuzz outcome: %w", err)
	}

	return &ExecResult{
		ExitCode: 0,
		Stdout:   string(data),
		Duration: time.Since(start),
	}, nil
}

// Parse 解码Execute写入标准输出的结果
func (a *StateFuzzerAdapter) Parse(raw string) ([]scan.NormalizedFinding, error) {
	var out stateFuzzerOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%w: state-fuzzer: %v", system.ErrUnparsableOutput, err)
	}
	return out.Findings, nil
}
