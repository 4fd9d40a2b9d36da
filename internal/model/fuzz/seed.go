package fuzz

import (
	"chainscan/internal/model/basemodel"
)

// Seed 模糊测试语料种子
// DedupeKey相同的种子在同一活动内只保留一条
type Seed struct {
	basemodel.BaseModel

	CampaignID uint64 `json:"campaign_id" gorm:"index;not null;comment:所属活动ID"`
	Source     string `json:"source" gorm:"size:100;comment:种子来源(manual/scan/mutation)"`
	CorpusPath string `json:"corpus_path" gorm:"size:500;comment:语料文件路径"`
	DedupeKey  string `json:"dedupe_key" gorm:"size:128;index;comment:去重键"`
}

// TableName 定义数据库表名
func (Seed) TableName() string {
	return "fuzz_seeds"
}
