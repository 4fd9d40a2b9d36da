package scan

import (
	"encoding/json"
	"time"

	"chainscan/internal/model/basemodel"
)

// ToolRunStatus 工具执行状态
type ToolRunStatus string

const (
	// ToolRunStatusPending 已创建，等待执行
	ToolRunStatusPending ToolRunStatus = "PENDING"
	// ToolRunStatusRunning 正在执行
	ToolRunStatusRunning ToolRunStatus = "RUNNING"
	// ToolRunStatusSuccess 执行成功
	ToolRunStatusSuccess ToolRunStatus = "SUCCESS"
	// ToolRunStatusFailed 重试耗尽后仍失败
	ToolRunStatusFailed ToolRunStatus = "FAILED"
)

// IsTerminal 判断是否为终态
func (s ToolRunStatus) IsTerminal() bool {
	return s == ToolRunStatusSuccess || s == ToolRunStatusFailed
}

// ToolRun 单个工具在一次扫描中的执行记录
// 由重试监督器驱动，Attempts记录实际执行次数
type ToolRun struct {
	basemodel.BaseModel

	ScanID     uint64        `json:"scan_id" gorm:"index;not null;comment:所属扫描ID"`
	Tool       string        `json:"tool" gorm:"size:50;not null;comment:工具名称"`
	Status     ToolRunStatus `json:"status" gorm:"size:20;default:'PENDING';comment:执行状态"`
	Attempts   int           `json:"attempts" gorm:"default:0;comment:已尝试次数"`
	ExitCode   *int          `json:"exit_code" gorm:"comment:最后一次执行退出码"`
	Output     string        `json:"output" gorm:"type:mediumtext;comment:标准输出"`
	Error      string        `json:"error" gorm:"type:text;comment:终态错误描述"`
	DurationMs int64         `json:"duration_ms" gorm:"default:0;comment:累计执行耗时(毫秒)"`
	Artifacts  string        `json:"-" gorm:"type:json;comment:逐次尝试的产物记录(JSON)"`
}

// TableName 定义数据库表名
func (ToolRun) TableName() string {
	return "tool_runs"
}

// AttemptArtifact 单次尝试的产物记录
type AttemptArtifact struct {
	Attempt    int    `json:"attempt"`     // 第几次尝试
	ExitCode   int    `json:"exit_code"`   // 退出码
	Timeout    bool   `json:"timeout"`     // 是否超时
	DurationMs int64  `json:"duration_ms"` // 本次耗时
	Error      string `json:"error,omitempty"`
}

// GetArtifacts 解析逐次尝试的产物记录
func (t *ToolRun) GetArtifacts() []AttemptArtifact {
	if t.Artifacts == "" {
		return nil
	}
	var artifacts []AttemptArtifact
	if err := json.Unmarshal([]byte(t.Artifacts), &artifacts); err != nil {
		return nil
	}
	return artifacts
}

// AppendArtifact 追加一条尝试记录
func (t *ToolRun) AppendArtifact(a AttemptArtifact) error {
	artifacts := append(t.GetArtifacts(), a)
	data, err := json.Marshal(artifacts)
	if err != nil {
		return err
	}
	t.Artifacts = string(data)
	return nil
}

// AddDuration 累计执行耗时
func (t *ToolRun) AddDuration(d time.Duration) {
	t.DurationMs += d.Milliseconds()
}
