// 日志分类与结构化输出
// 不同类型的日志通过 type 字段路由到不同的日志文件 [internal/pkg/logger/hooks.go]
package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LogType 日志类型
type LogType string

const (
	// LogTypeAccess 访问日志：HTTP请求记录
	LogTypeAccess LogType = "access"
	// LogTypeBusiness 业务日志：扫描调度、活动管理等业务操作
	LogTypeBusiness LogType = "business"
	// LogTypeError 错误日志
	LogTypeError LogType = "error"
	// LogTypeSystem 系统日志：启动、关闭、配置重载等
	LogTypeSystem LogType = "system"
	// LogTypeScan 扫描日志：工具执行的每一次尝试
	LogTypeScan LogType = "scan"
	// LogTypeDebug 调试日志
	LogTypeDebug LogType = "debug"
)

// AccessLogEntry 访问日志条目
type AccessLogEntry struct {
	Type       LogType       `json:"type"`
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	Query      string        `json:"query,omitempty"`
	ClientIP   string        `json:"client_ip"`
	StatusCode int           `json:"status_code"`
	Duration   time.Duration `json:"duration"`
	RequestID  string        `json:"request_id,omitempty"`
	UserAgent  string        `json:"user_agent,omitempty"`
}

// BusinessLogEntry 业务日志条目
type BusinessLogEntry struct {
	Type      LogType                `json:"type"`
	Operation string                 `json:"operation"`
	Result    string                 `json:"result"`
	Message   string                 `json:"message"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

// ScanLogEntry 扫描日志条目
// 记录单次工具执行尝试的关键信息
type ScanLogEntry struct {
	Type     LogType                `json:"type"`
	ScanID   uint64                 `json:"scan_id"`
	Tool     string                 `json:"tool"`
	Event    string                 `json:"event"`
	Message  string                 `json:"message"`
	Attempt  int                    `json:"attempt,omitempty"`
	ExitCode int                    `json:"exit_code,omitempty"`
	Extra    map[string]interface{} `json:"extra,omitempty"`
}

// LogAccessRequest 记录HTTP访问日志
// 在gin中间件中调用，记录请求方法、路径、状态码和耗时
func LogAccessRequest(c *gin.Context, statusCode int, duration time.Duration, requestID string) {
	if LoggerInstance == nil {
		return
	}

	entry := AccessLogEntry{
		Type:       LogTypeAccess,
		Method:     c.Request.Method,
		Path:       c.Request.URL.Path,
		Query:      c.Request.URL.RawQuery,
		ClientIP:   c.ClientIP(),
		StatusCode: statusCode,
		Duration:   duration,
		RequestID:  requestID,
		UserAgent:  c.Request.UserAgent(),
	}

	LoggerInstance.logger.WithFields(logrus.Fields{
		"type":        entry.Type,
		"method":      entry.Method,
		"path":        entry.Path,
		"query":       entry.Query,
		"client_ip":   entry.ClientIP,
		"status_code": entry.StatusCode,
		"duration_ms": entry.Duration.Milliseconds(),
		"request_id":  entry.RequestID,
		"user_agent":  entry.UserAgent,
	}).Info("http request")
}

// LogBusinessOperation 记录业务操作日志
// operation: 操作名称，如 start_scan / cancel_scan / campaign_transition
// result: success / failed
func LogBusinessOperation(operation, result, message string, extraFields map[string]interface{}) {
	if LoggerInstance == nil {
		return
	}

	fields := logrus.Fields{
		"type":      LogTypeBusiness,
		"operation": operation,
		"result":    result,
	}
	for k, v := range extraFields {
		fields[k] = v
	}

	entry := LoggerInstance.logger.WithFields(fields)
	if result == "failed" {
		entry.Warn(message)
	} else {
		entry.Info(message)
	}
}

// LogError 记录错误日志
// operation: 出错的操作名称；extraFields 携带上下文（scan_id、tool、attempt等）
func LogError(err error, operation string, extraFields map[string]interface{}) {
	if LoggerInstance == nil || err == nil {
		return
	}

	fields := logrus.Fields{
		"type":      LogTypeError,
		"operation": operation,
		"error":     err.Error(),
	}
	for k, v := range extraFields {
		fields[k] = v
	}

	LoggerInstance.logger.WithFields(fields).Error(err.Error())
}

// LogSystemEvent 记录系统事件日志
// component: 组件名称，如 database / scheduler / config
// event: 事件名称，如 startup / shutdown / reload
func LogSystemEvent(component, event, message string, level logrus.Level, extraFields map[string]interface{}) {
	if LoggerInstance == nil {
		return
	}

	fields := logrus.Fields{
		"type":      LogTypeSystem,
		"component": component,
		"event":     event,
	}
	for k, v := range extraFields {
		fields[k] = v
	}

	LoggerInstance.logger.WithFields(fields).Log(level, message)
}

// LogScanEvent 记录扫描执行日志
// 每次工具尝试的开始、重试和结束都走这里，便于按扫描ID聚合排查
func LogScanEvent(scanID uint64, tool, event, message string, extraFields map[string]interface{}) {
	if LoggerInstance == nil {
		return
	}

	fields := logrus.Fields{
		"type":    LogTypeScan,
		"scan_id": scanID,
		"tool":    tool,
		"event":   event,
	}
	for k, v := range extraFields {
		fields[k] = v
	}

	LoggerInstance.logger.WithFields(fields).Info(message)
}
