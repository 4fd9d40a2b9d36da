package fuzz

import (
	"chainscan/internal/model/basemodel"
)

// CrashStatus 崩溃报告分诊状态
type CrashStatus string

const (
	CrashStatusUntriaged     CrashStatus = "UNTRIAGED"
	CrashStatusConfirmed     CrashStatus = "CONFIRMED"
	CrashStatusFalsePositive CrashStatus = "FALSE_POSITIVE"
	CrashStatusFixed         CrashStatus = "FIXED"
)

// IsValid 判断是否为合法分诊状态
func (s CrashStatus) IsValid() bool {
	switch s {
	case CrashStatusUntriaged, CrashStatusConfirmed, CrashStatusFalsePositive, CrashStatusFixed:
		return true
	}
	return false
}

// CrashReport 崩溃报告表
// 归属于活动或扫描（二选一）；同一归属下Signature相同的崩溃
// 只保留一条记录，重复出现时更新Occurrences和证据字段
type CrashReport struct {
	basemodel.BaseModel

	CampaignID     *uint64     `json:"campaign_id" gorm:"index;comment:所属活动ID"`
	ScanID         *uint64     `json:"scan_id" gorm:"index;comment:所属扫描ID"`
	Signature      string      `json:"signature" gorm:"size:128;index;not null;comment:崩溃签名(去重键)"`
	Status         CrashStatus `json:"status" gorm:"size:20;default:'UNTRIAGED';comment:分诊状态"`
	InputReference string      `json:"input_reference" gorm:"size:500;comment:触发输入引用"`
	Stacktrace     string      `json:"stacktrace" gorm:"type:text;comment:调用栈"`
	Occurrences    int64       `json:"occurrences" gorm:"default:1;comment:出现次数"`
}

// TableName 定义数据库表名
func (CrashReport) TableName() string {
	return "crash_reports"
}
