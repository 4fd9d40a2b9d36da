/**
 * 模型:扫描任务
 * @author: sun977
 * @date: 2025.08.29
 * @description: 扫描任务聚合根及其状态机定义
 * @func: Scan结构体与状态常量
 */
package scan

import (
	"encoding/json"
	"time"

	"chainscan/internal/model/basemodel"
)

// ScanStatus 扫描状态
type ScanStatus string

const (
	// ScanStatusQueued 已入队，工具执行尚未开始
	ScanStatusQueued ScanStatus = "QUEUED"
	// ScanStatusRunning 至少一个工具正在执行
	ScanStatusRunning ScanStatus = "RUNNING"
	// ScanStatusSuccess 所有工具执行成功
	ScanStatusSuccess ScanStatus = "SUCCESS"
	// ScanStatusFailed 至少一个工具重试耗尽后仍失败
	ScanStatusFailed ScanStatus = "FAILED"
)

// IsTerminal 判断是否为终态
func (s ScanStatus) IsTerminal() bool {
	return s == ScanStatusSuccess || s == ScanStatusFailed
}

// Scan 扫描任务主表
// 一次扫描针对单个目标并行运行一组工具；
// 终态规则：全部工具成功为SUCCESS，任一工具耗尽重试为FAILED
type Scan struct {
	basemodel.BaseModel

	ProjectID  uint64     `json:"project_id" gorm:"index;not null;comment:所属项目ID"`
	Target     string     `json:"target" gorm:"size:500;not null;comment:扫描目标(文件或目录)"`
	Tools      string     `json:"-" gorm:"type:json;not null;comment:工具名列表(JSON)"`
	Status     ScanStatus `json:"status" gorm:"size:20;index;default:'QUEUED';comment:扫描状态"`
	StartedAt  time.Time  `json:"started_at" gorm:"comment:开始时间"`
	FinishedAt *time.Time `json:"finished_at" gorm:"comment:结束时间"`
	Logs       string     `json:"logs" gorm:"type:text;comment:执行过程日志摘要"`
	Telemetry  string     `json:"-" gorm:"type:json;comment:执行遥测(JSON)"`
}

// TableName 定义数据库表名
func (Scan) TableName() string {
	return "scans"
}

// GetTools 解析工具名列表
func (s *Scan) GetTools() []string {
	if s.Tools == "" {
		return nil
	}
	var tools []string
	if err := json.Unmarshal([]byte(s.Tools), &tools); err != nil {
		return nil
	}
	return tools
}

// SetTools 序列化并写入工具名列表
func (s *Scan) SetTools(tools []string) error {
	data, err := json.Marshal(tools)
	if err != nil {
		return err
	}
	s.Tools = string(data)
	return nil
}

// GetTelemetry 解析遥测数据
func (s *Scan) GetTelemetry() map[string]interface{} {
	if s.Telemetry == "" {
		return map[string]interface{}{}
	}
	var t map[string]interface{}
	if err := json.Unmarshal([]byte(s.Telemetry), &t); err != nil {
		return map[string]interface{}{}
	}
	return t
}

// SetTelemetry 序列化并写入遥测数据
func (s *Scan) SetTelemetry(t map[string]interface{}) error {
	if t == nil {
		s.Telemetry = ""
		return nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	s.Telemetry = string(data)
	return nil
}
