/**
 * 工具适配器:统一契约与注册表
 * @author: sun977
 * @date: 2025.08.29
 * @description: 扫描工具的统一执行与解析契约，注册表负责工具名到适配器的映射
 * @func: ToolAdapter接口、ExecResult、Registry
 */
package adapter

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"chainscan/internal/config"
	"chainscan/internal/model/scan"
	"chainscan/internal/model/system"
)

// ExecResult 单次工具执行的结果
type ExecResult struct {
	ExitCode int           // 进程退出码，超时约定为124
	Stdout   string        // 标准输出
	Stderr   string        // 标准错误
	Duration time.Duration // 执行耗时
	Timeout  bool          // 是否因超时被终止
}

// Success 判断本次执行是否成功
func (r *ExecResult) Success() bool {
	return !r.Timeout && r.ExitCode == 0
}

// ToolAdapter 扫描工具适配器契约
// 适配器无状态，每次Execute都发起全新的工具进程；
// Parse失败与非零退出码是两类不同的失败，前者包装ErrUnparsableOutput
type ToolAdapter interface {
	// Name 返回工具名称，作为注册表键
	Name() string
	// Execute 对目标执行一次工具，受ctx和cfg.Timeout约束
	Execute(ctx context.Context, target string, cfg config.ToolConfig) (*ExecResult, error)
	// Parse 将工具标准输出解析为归一化发现列表
	Parse(raw string) ([]scan.NormalizedFinding, error)
}

// Registry 工具适配器注册表
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]ToolAdapter
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]ToolAdapter),
	}
}

// NewDefaultRegistry 创建并注册全部内置适配器
func NewDefaultRegistry(fuzzerCfg *config.FuzzerConfig) *Registry {
	r := NewRegistry()
	r.Register(NewSlitherAdapter())
	r.Register(NewMythrilAdapter())
	r.Register(NewEchidnaAdapter(fuzzerCfg))
	r.Register(NewManticoreAdapter())
	r.Register(NewFoundryAdapter())
	r.Register(NewStateFuzzerAdapter(fuzzerCfg))
	return r
}

// Register 注册适配器，同名覆盖
func (r *Registry) Register(a ToolAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get 获取指定工具的适配器
func (r *Registry) Get(tool string) (ToolAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[tool]
	if !ok {
		return nil, fmt.Errorf("%w: %s", system.ErrUnknownTool, tool)
	}
	return a, nil
}

// Has 判断工具是否已注册
func (r *Registry) Has(tool string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[tool]
	return ok
}

// Names 返回所有已注册工具名，按字典序
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateTools 校验请求的工具集非空且全部已注册
func (r *Registry) ValidateTools(tools []string) error {
	if len(tools) == 0 {
		return system.NewFieldValidationError("tools", "工具列表不能为空")
	}
	seen := make(map[string]bool, len(tools))
	for _, tool := range tools {
		if seen[tool] {
			return system.NewFieldValidationError("tools", fmt.Sprintf("工具重复: %s", tool))
		}
		seen[tool] = true
		if !r.Has(tool) {
			return system.NewFieldValidationError("tools", fmt.Sprintf("未注册的工具: %s", tool))
		}
	}
	return nil
}
