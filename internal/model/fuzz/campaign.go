/**
 * 模型:模糊测试活动
 * @author: sun977
 * @date: 2025.08.29
 * @description: 模糊测试活动聚合根及状态机定义
 * @func: Campaign结构体、状态常量与转换规则
 */
package fuzz

import (
	"encoding/json"

	"chainscan/internal/model/basemodel"
)

// CampaignStatus 活动状态
type CampaignStatus string

const (
	// CampaignStatusPending 已创建，尚未开始
	CampaignStatusPending CampaignStatus = "PENDING"
	// CampaignStatusRunning 运行中，接受种子、覆盖率和崩溃注入
	CampaignStatusRunning CampaignStatus = "RUNNING"
	// CampaignStatusPaused 已暂停，拒绝注入但可恢复
	CampaignStatusPaused CampaignStatus = "PAUSED"
	// CampaignStatusStopped 已停止，终态
	CampaignStatusStopped CampaignStatus = "STOPPED"
	// CampaignStatusCompleted 已完成，终态，仅显式标记
	CampaignStatusCompleted CampaignStatus = "COMPLETED"
)

// IsTerminal 判断是否为终态
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusStopped || s == CampaignStatusCompleted
}

// AcceptsIngestion 判断当前状态是否接受数据注入
func (s CampaignStatus) AcceptsIngestion() bool {
	return s == CampaignStatusRunning
}

// campaignTransitions 合法状态转换表
var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignStatusPending: {CampaignStatusRunning, CampaignStatusStopped},
	CampaignStatusRunning: {CampaignStatusPaused, CampaignStatusStopped, CampaignStatusCompleted},
	CampaignStatusPaused:  {CampaignStatusRunning, CampaignStatusStopped},
}

// CanTransitionTo 判断是否允许转换到目标状态
func (s CampaignStatus) CanTransitionTo(target CampaignStatus) bool {
	for _, allowed := range campaignTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Campaign 模糊测试活动主表
// 长期运行的模糊测试过程，聚合种子、覆盖率信号和崩溃报告
type Campaign struct {
	basemodel.BaseModel

	Name     string         `json:"name" gorm:"size:200;not null;comment:活动名称"`
	Target   string         `json:"target" gorm:"size:500;not null;comment:模糊测试目标"`
	Status   CampaignStatus `json:"status" gorm:"size:20;index;default:'PENDING';comment:活动状态"`
	Strategy string         `json:"strategy" gorm:"size:50;comment:模糊测试策略"`
	Metrics  string         `json:"-" gorm:"type:json;comment:活动指标(JSON)"`
}

// TableName 定义数据库表名
func (Campaign) TableName() string {
	return "fuzz_campaigns"
}

// CampaignMetrics 活动运行指标
type CampaignMetrics struct {
	Crashes      int64            `json:"crashes"`       // 去重后的崩溃数量
	CoveredEdges map[string]int64 `json:"covered_edges"` // 每个运行实例的最大覆盖边数
	Seeds        int64            `json:"seeds"`         // 语料库种子数量
}

// GetMetrics 解析活动指标
func (c *Campaign) GetMetrics() CampaignMetrics {
	m := CampaignMetrics{CoveredEdges: map[string]int64{}}
	if c.Metrics == "" {
		return m
	}
	if err := json.Unmarshal([]byte(c.Metrics), &m); err != nil {
		return CampaignMetrics{CoveredEdges: map[string]int64{}}
	}
	if m.CoveredEdges == nil {
		m.CoveredEdges = map[string]int64{}
	}
	return m
}

// SetMetrics 序列化并写入活动指标
func (c *Campaign) SetMetrics(m CampaignMetrics) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	c.Metrics = string(data)
	return nil
}
