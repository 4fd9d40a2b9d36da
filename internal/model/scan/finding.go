/**
 * 模型:安全发现
 * @author: sun977
 * @date: 2025.08.29
 * @description: 安全发现及严重级别定义，发现集合只追加不修改
 * @func: Finding结构体、Severity全序、NormalizedFinding中间结构
 */
package scan

import (
	"strings"

	"chainscan/internal/model/basemodel"
)

// Severity 安全发现严重级别，全序：CRITICAL > HIGH > MEDIUM > LOW > INFO
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// severityRanks 严重级别排序权重，数值越大越严重
var severityRanks = map[Severity]int{
	SeverityCritical: 5,
	SeverityHigh:     4,
	SeverityMedium:   3,
	SeverityLow:      2,
	SeverityInfo:     1,
}

// Rank 返回严重级别的排序权重，未知级别返回0
func (s Severity) Rank() int {
	return severityRanks[s]
}

// IsValid 判断是否为合法严重级别
func (s Severity) IsValid() bool {
	_, ok := severityRanks[s]
	return ok
}

// NormalizeSeverity 归一化工具输出的严重级别描述
// 未知描述一律归为INFO
func NormalizeSeverity(raw string) Severity {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "CRITICAL":
		return SeverityCritical
	case "HIGH":
		return SeverityHigh
	case "MEDIUM", "MED":
		return SeverityMedium
	case "LOW":
		return SeverityLow
	case "INFO", "INFORMATIONAL", "OPTIMIZATION":
		return SeverityInfo
	default:
		return SeverityInfo
	}
}

// AllSeverities 按从高到低返回所有严重级别
func AllSeverities() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}
}

// Finding 安全发现表
// 归一化后的工具发现，写入后不再修改
type Finding struct {
	basemodel.BaseModel

	ScanID      uint64   `json:"scan_id" gorm:"index;not null;comment:所属扫描ID"`
	Tool        string   `json:"tool" gorm:"size:50;not null;comment:来源工具"`
	Title       string   `json:"title" gorm:"size:300;not null;comment:发现标题"`
	Description string   `json:"description" gorm:"type:text;comment:发现描述"`
	Severity    Severity `json:"severity" gorm:"size:20;index;not null;comment:严重级别"`
	Category    string   `json:"category" gorm:"size:100;comment:漏洞分类"`
	FilePath    string   `json:"file_path" gorm:"size:500;comment:源文件路径"`
	LineNumber  int      `json:"line_number" gorm:"default:0;comment:行号"`
	Function    string   `json:"function" gorm:"size:200;comment:函数名"`
	Raw         string   `json:"-" gorm:"type:json;comment:工具原始输出片段(JSON)"`
}

// TableName 定义数据库表名
func (Finding) TableName() string {
	return "findings"
}

// NormalizedFinding 适配器解析产出的中间结构
// 由聚合器落库为Finding
type NormalizedFinding struct {
	Tool        string                 `json:"tool"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Severity    Severity               `json:"severity"`
	Category    string                 `json:"category,omitempty"`
	FilePath    string                 `json:"file_path,omitempty"`
	LineNumber  int                    `json:"line_number,omitempty"`
	Function    string                 `json:"function,omitempty"`
	Raw         map[string]interface{} `json:"raw,omitempty"`
}

// SeveritySummary 按严重级别统计的发现数量
type SeveritySummary map[Severity]int64

// Total 返回发现总数
func (s SeveritySummary) Total() int64 {
	var total int64
	for _, n := range s {
		total += n
	}
	return total
}
