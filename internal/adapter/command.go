package adapter

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// timeoutExitCode 超时终止的约定退出码，与GNU timeout保持一致
const timeoutExitCode = 124

// runCommand 执行一条工具命令并收集输出
// ctx取消和timeout都会终止进程；超时不作为error返回，
// 而是在ExecResult中以Timeout=true和退出码124体现
func runCommand(ctx context.Context, timeout time.Duration, name string, args []string, env []string) (*ExecResult, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, name, args...)
	if len(env) > 0 {
		cmd.Env = append(cmd.Environ(), env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := &ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}

	// 超时终止：上层把它当作一次失败的尝试
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.Timeout = true
		result.ExitCode = timeoutExitCode
		return result, nil
	}

	// 调用方取消：原样上抛，监督器据此中止重试
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil, ctx.Err()
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		// 进程未能启动（可执行文件缺失等）
		return nil, err
	}

	result.ExitCode = 0
	return result, nil
}
