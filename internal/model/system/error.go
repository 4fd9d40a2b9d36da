/**
 * 模型:错误定义
 * @author: sun977
 * @date: 2025.08.29
 * @description: 系统错误常量和错误类型定义
 * @func: 各种错误常量和错误结构体
 */
package system

import (
	"errors"
	"fmt"
)

// 业务逻辑错误
var (
	ErrProjectAlreadyExists = errors.New("项目已存在")
	ErrProjectNotFound      = errors.New("项目不存在")
	ErrScanNotFound         = errors.New("扫描不存在")
	ErrCampaignNotFound     = errors.New("活动不存在")
	ErrToolRunNotFound      = errors.New("工具执行记录不存在")

	// 工具执行错误
	ErrUnknownTool       = errors.New("未注册的扫描工具")
	ErrExecutionTimeout  = errors.New("工具执行超时")
	ErrUnparsableOutput  = errors.New("工具输出无法解析")
	ErrAttemptsExhausted = errors.New("重试次数已用尽")

	// 扫描调度错误
	ErrScanAlreadyFinished = errors.New("扫描已结束")
	ErrScanCancelled       = errors.New("扫描已取消")
)

// ValidationError 验证错误结构体
// 请求未通过前置校验，不触发任何状态变更，对应HTTP 400
type ValidationError struct {
	Field   string `json:"field,omitempty"` // 字段名
	Message string `json:"message"`         // 错误消息
}

// NewValidationError 创建验证错误
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		Message: message,
	}
}

// NewFieldValidationError 创建带字段名的验证错误
func NewFieldValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error 实现error接口
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFoundError 资源不存在错误，对应HTTP 404
type NotFoundError struct {
	Resource string `json:"resource"` // 资源类型
	ID       uint64 `json:"id"`       // 资源ID
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(resource string, id uint64) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// Error 实现error接口
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// IsNotFoundError 检查是否为资源不存在错误
func IsNotFoundError(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// AggregateStateConflictError 聚合状态冲突错误
// 操作与聚合当前状态不兼容（如向PAUSED活动注入覆盖率），对应HTTP 409
type AggregateStateConflictError struct {
	Resource  string `json:"resource"`  // 聚合类型
	ID        uint64 `json:"id"`        // 聚合ID
	State     string `json:"state"`     // 当前状态
	Operation string `json:"operation"` // 被拒绝的操作
}

// NewAggregateStateConflictError 创建聚合状态冲突错误
func NewAggregateStateConflictError(resource string, id uint64, state, operation string) *AggregateStateConflictError {
	return &AggregateStateConflictError{
		Resource:  resource,
		ID:        id,
		State:     state,
		Operation: operation,
	}
}

// Error 实现error接口
func (e *AggregateStateConflictError) Error() string {
	return fmt.Sprintf("%s %d in state %s rejects operation %s", e.Resource, e.ID, e.State, e.Operation)
}

// IsAggregateStateConflictError 检查是否为聚合状态冲突错误
func IsAggregateStateConflictError(err error) bool {
	var ce *AggregateStateConflictError
	return errors.As(err, &ce)
}

// ToolExecutionError 工具执行错误
// 单次工具执行失败的结构化描述，重试耗尽后写入ToolRun的终态错误字段
type ToolExecutionError struct {
	Tool     string `json:"tool"`      // 工具名称
	Attempt  int    `json:"attempt"`   // 第几次尝试
	ExitCode int    `json:"exit_code"` // 退出码，超时约定为124
	Timeout  bool   `json:"timeout"`   // 是否超时
	Stderr   string `json:"stderr"`    // 标准错误输出摘要
	Cause    error  `json:"-"`         // 底层错误
}

// Error 实现error接口
func (e *ToolExecutionError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("tool %s attempt %d timed out", e.Tool, e.Attempt)
	}
	return fmt.Sprintf("tool %s attempt %d failed with exit code %d", e.Tool, e.Attempt, e.ExitCode)
}

// Unwrap 返回底层错误
func (e *ToolExecutionError) Unwrap() error {
	return e.Cause
}

// IsToolExecutionError 检查是否为工具执行错误
func IsToolExecutionError(err error) bool {
	var te *ToolExecutionError
	return errors.As(err, &te)
}
