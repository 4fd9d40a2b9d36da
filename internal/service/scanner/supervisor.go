/**
 * 服务:工具执行重试监督器
 * @author: sun977
 * @date: 2025.08.29
 * @description: 驱动单个ToolRun走完 PENDING->RUNNING->(SUCCESS|FAILED) 生命周期，
 *               失败时指数退避重试，无论成败都恰好发出一次完成事件
 * @func: Supervisor
 */
package scanner

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"chainscan/internal/adapter"
	"chainscan/internal/config"
	scanmodel "chainscan/internal/model/scan"
	"chainscan/internal/model/system"
	"chainscan/internal/pkg/logger"
)

// CompletionEvent 工具执行完成事件
// 每个ToolRun无论经历多少次尝试或被取消，都恰好产生一个事件
type CompletionEvent struct {
	ScanID    uint64
	ToolRunID uint64
	Tool      string
	Status    scanmodel.ToolRunStatus
	Findings  []scanmodel.NormalizedFinding
}

// Supervisor 重试监督器
// 每次Execute都是全新的工具进程；退避等待和执行本身都响应ctx取消
type Supervisor struct {
	registry *adapter.Registry
	store    ScanStore
	cfg      *config.ScannerConfig

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewSupervisor 创建重试监督器
func NewSupervisor(registry *adapter.Registry, store ScanStore, cfg *config.ScannerConfig) *Supervisor {
	return &Supervisor{
		registry: registry,
		store:    store,
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run 驱动一个ToolRun直到终态，完成事件写入events
// 在独立goroutine中运行；events由调度器收取
func (sv *Supervisor) Run(ctx context.Context, run *scanmodel.ToolRun, target string, events chan<- CompletionEvent) {
	event := CompletionEvent{
		ScanID:    run.ScanID,
		ToolRunID: run.ID,
		Tool:      run.Tool,
		Status:    scanmodel.ToolRunStatusFailed,
	}
	// 唯一的事件出口
	defer func() {
		if r := recover(); r != nil {
			logger.LogError(fmt.Errorf("supervisor panic: %v", r), "supervise_tool_run", map[string]interface{}{
				"layer":   "SERVICE",
				"scan_id": run.ScanID,
				"tool":    run.Tool,
			})
			event.Status = scanmodel.ToolRunStatusFailed
		}
		events <- event
	}()

	ad, err := sv.registry.Get(run.Tool)
	if err != nil {
		run.Status = scanmodel.ToolRunStatusFailed
		run.Error = err.Error()
		sv.persist(ctx, run)
		return
	}

	toolCfg := sv.cfg.GetToolConfig(run.Tool)
	maxAttempts := toolCfg.MaxAttempts

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		run.Status = scanmodel.ToolRunStatusRunning
		run.Attempts = attempt
		sv.persist(ctx, run)

		logger.LogScanEvent(run.ScanID, run.Tool, "attempt_start", "tool attempt started", map[string]interface{}{
			"attempt": attempt,
		})

		findings, execErr := sv.attempt(ctx, ad, run, target, toolCfg, attempt)
		if execErr == nil {
			run.Status = scanmodel.ToolRunStatusSuccess
			run.Error = ""
			sv.persist(ctx, run)
			logger.LogScanEvent(run.ScanID, run.Tool, "success", "tool run succeeded", map[string]interface{}{
				"attempts": attempt,
			})
			event.Status = scanmodel.ToolRunStatusSuccess
			event.Findings = findings
			return
		}

		// 调用方取消：立即终止，不再计入重试
		if errors.Is(execErr, context.Canceled) {
			run.Status = scanmodel.ToolRunStatusFailed
			run.Error = system.ErrScanCancelled.Error()
			sv.persist(context.Background(), run)
			logger.LogScanEvent(run.ScanID, run.Tool, "cancelled", "tool run cancelled", nil)
			return
		}

		lastErr = execErr
		logger.LogScanEvent(run.ScanID, run.Tool, "attempt_failed", execErr.Error(), map[string]interface{}{
			"attempt": attempt,
		})

		if attempt < maxAttempts {
			if !sv.backoff(ctx, attempt) {
				run.Status = scanmodel.ToolRunStatusFailed
				run.Error = system.ErrScanCancelled.Error()
				sv.persist(context.Background(), run)
				return
			}
		}
	}

	run.Status = scanmodel.ToolRunStatusFailed
	run.Error = fmt.Errorf("%w: %v", system.ErrAttemptsExhausted, lastErr).Error()
	sv.persist(ctx, run)
	logger.LogScanEvent(run.ScanID, run.Tool, "failed", "tool run failed after all attempts", map[string]interface{}{
		"attempts": maxAttempts,
	})
}

// attempt 执行一次工具并解析输出
// 非零退出、超时和解析失败都作为失败的尝试返回error
func (sv *Supervisor) attempt(ctx context.Context, ad adapter.ToolAdapter, run *scanmodel.ToolRun, target string, toolCfg config.ToolConfig, attempt int) ([]scanmodel.NormalizedFinding, error) {
	result, err := ad.Execute(ctx, target, toolCfg)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		// 进程未能启动
		_ = run.AppendArtifact(scanmodel.AttemptArtifact{
			Attempt:  attempt,
			ExitCode: -1,
			Error:    err.Error(),
		})
		return nil, &system.ToolExecutionError{
			Tool:     run.Tool,
			Attempt:  attempt,
			ExitCode: -1,
			Cause:    err,
		}
	}

	exitCode := result.ExitCode
	run.ExitCode = &exitCode
	run.Output = result.Stdout
	run.AddDuration(result.Duration)

	artifact := scanmodel.AttemptArtifact{
		Attempt:    attempt,
		ExitCode:   result.ExitCode,
		Timeout:    result.Timeout,
		DurationMs: result.Duration.Milliseconds(),
	}

	if !result.Success() {
		execErr := &system.ToolExecutionError{
			Tool:     run.Tool,
			Attempt:  attempt,
			ExitCode: result.ExitCode,
			Timeout:  result.Timeout,
			Stderr:   result.Stderr,
		}
		artifact.Error = execErr.Error()
		_ = run.AppendArtifact(artifact)
		return nil, execErr
	}

	findings, parseErr := ad.Parse(result.Stdout)
	if parseErr != nil {
		// 解析失败与非零退出是两类失败，但同样消耗一次尝试
		artifact.Error = parseErr.Error()
		_ = run.AppendArtifact(artifact)
		return nil, parseErr
	}

	_ = run.AppendArtifact(artifact)
	return findings, nil
}

// backoff 指数退避等待，带抖动
// 返回false表示等待期间ctx被取消
func (sv *Supervisor) backoff(ctx context.Context, attempt int) bool {
	delay := sv.cfg.BackoffBase << (attempt - 1)
	if delay > sv.cfg.BackoffMax {
		delay = sv.cfg.BackoffMax
	}

	// 抖动最多增加50%，避免同一扫描的工具同时重试
	sv.rngMu.Lock()
	jitter := time.Duration(sv.rng.Int63n(int64(delay)/2 + 1))
	sv.rngMu.Unlock()
	delay += jitter

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// persist 保存ToolRun当前状态，存储失败只记日志不中断监督
func (sv *Supervisor) persist(ctx context.Context, run *scanmodel.ToolRun) {
	if err := sv.store.UpdateToolRun(ctx, run); err != nil {
		logger.LogError(err, "persist_tool_run", map[string]interface{}{
			"layer":   "SERVICE",
			"scan_id": run.ScanID,
			"tool":    run.Tool,
		})
	}
}
