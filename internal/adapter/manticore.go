package adapter

import (
	"context"

	"chainscan/internal/config"
	"chainscan/internal/model/scan"
)

// ManticoreAdapter Manticore符号执行适配器
// Manticore把发现写入工作区而非标准输出，成功执行不产出归一化发现；
// 执行失败本身作为一条发现记录
type ManticoreAdapter struct{}

// NewManticoreAdapter 创建Manticore适配器
func NewManticoreAdapter() *ManticoreAdapter {
	return &ManticoreAdapter{}
}

// Name 返回工具名称
func (a *ManticoreAdapter) Name() string {
	return "manticore"
}

// Execute 执行一次Manticore分析
func (a *ManticoreAdapter) Execute(ctx context.Context, target string, cfg config.ToolConfig) (*ExecResult, error) {
	return runCommand(ctx, cfg.Timeout, cfg.Path, []string{target}, cfg.Env)
}

// Parse Manticore的标准输出不携带结构化发现，始终返回空集
func (a *ManticoreAdapter) Parse(raw string) ([]scan.NormalizedFinding, error) {
	return nil, nil
}
