package fuzz

import (
	"chainscan/internal/model/basemodel"
)

// CoverageSignal 覆盖率信号表，只追加
// 活动指标中记录的每运行实例最大覆盖边数单调不减，
// 乱序到达的较小值照常落库但不回退指标
type CoverageSignal struct {
	basemodel.BaseModel

	CampaignID    uint64 `json:"campaign_id" gorm:"index;not null;comment:所属活动ID"`
	RunIdentifier string `json:"run_identifier" gorm:"size:100;comment:运行实例标识"`
	CoveredEdges  int64  `json:"covered_edges" gorm:"not null;comment:覆盖边数"`
}

// TableName 定义数据库表名
func (CoverageSignal) TableName() string {
	return "fuzz_coverage_signals"
}
