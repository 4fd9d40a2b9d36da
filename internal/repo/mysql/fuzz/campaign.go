/**
 * 仓库:模糊测试活动数据访问
 * @author: sun977
 * @date: 2025.08.29
 * @description: Campaign及其种子、覆盖率信号、崩溃报告的数据访问
 * @func: CampaignRepository
 */
package fuzz

import (
	"context"
	"errors"

	"gorm.io/gorm"

	fuzzmodel "chainscan/internal/model/fuzz"
	"chainscan/internal/pkg/logger"
)

// CampaignRepository 模糊测试活动仓库
type CampaignRepository struct {
	db *gorm.DB
}

// NewCampaignRepository 创建 CampaignRepository 实例
func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// CreateCampaign 创建活动
func (r *CampaignRepository) CreateCampaign(ctx context.Context, c *fuzzmodel.Campaign) error {
	if c == nil {
		return errors.New("campaign is nil")
	}
	err := r.db.WithContext(ctx).Create(c).Error
	if err != nil {
		logger.LogError(err, "create_campaign", map[string]interface{}{
			"layer": "REPO",
			"name":  c.Name,
		})
		return err
	}
	return nil
}

// GetCampaignByID 根据ID获取活动，不存在时返回 nil, nil
func (r *CampaignRepository) GetCampaignByID(ctx context.Context, id uint64) (*fuzzmodel.Campaign, error) {
	var c fuzzmodel.Campaign
	err := r.db.WithContext(ctx).First(&c, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.LogError(err, "get_campaign_by_id", map[string]interface{}{
			"layer": "REPO",
			"id":    id,
		})
		return nil, err
	}
	return &c, nil
}

// GetCampaignByName 根据名称获取活动，不存在时返回 nil, nil
func (r *CampaignRepository) GetCampaignByName(ctx context.Context, name string) (*fuzzmodel.Campaign, error) {
	var c fuzzmodel.Campaign
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.LogError(err, "get_campaign_by_name", map[string]interface{}{
			"layer": "REPO",
			"name":  name,
		})
		return nil, err
	}
	return &c, nil
}

// UpdateCampaign 保存活动的全部字段
func (r *CampaignRepository) UpdateCampaign(ctx context.Context, c *fuzzmodel.Campaign) error {
	if c == nil || c.ID == 0 {
		return errors.New("invalid campaign or id")
	}
	err := r.db.WithContext(ctx).Save(c).Error
	if err != nil {
		logger.LogError(err, "update_campaign", map[string]interface{}{
			"layer": "REPO",
			"id":    c.ID,
		})
		return err
	}
	return nil
}

// ListCampaigns 获取活动列表 (分页 + 状态筛选)
func (r *CampaignRepository) ListCampaigns(ctx context.Context, page, pageSize int, status string) ([]*fuzzmodel.Campaign, int64, error) {
	var campaigns []*fuzzmodel.Campaign
	var total int64

	query := r.db.WithContext(ctx).Model(&fuzzmodel.Campaign{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	err := query.Count(&total).Error
	if err != nil {
		logger.LogError(err, "list_campaigns_count", map[string]interface{}{"layer": "REPO"})
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err = query.Offset(offset).Limit(pageSize).Order("id desc").Find(&campaigns).Error
	if err != nil {
		logger.LogError(err, "list_campaigns_find", map[string]interface{}{"layer": "REPO"})
		return nil, 0, err
	}

	return campaigns, total, nil
}

// CreateSeed 写入语料种子
func (r *CampaignRepository) CreateSeed(ctx context.Context, seed *fuzzmodel.Seed) error {
	if seed == nil {
		return errors.New("seed is nil")
	}
	err := r.db.WithContext(ctx).Create(seed).Error
	if err != nil {
		logger.LogError(err, "create_seed", map[string]interface{}{
			"layer":       "REPO",
			"campaign_id": seed.CampaignID,
		})
		return err
	}
	return nil
}

// GetSeedByDedupeKey 按去重键查找种子，不存在时返回 nil, nil
func (r *CampaignRepository) GetSeedByDedupeKey(ctx context.Context, campaignID uint64, dedupeKey string) (*fuzzmodel.Seed, error) {
	var seed fuzzmodel.Seed
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND dedupe_key = ?", campaignID, dedupeKey).
		First(&seed).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.LogError(err, "get_seed_by_dedupe_key", map[string]interface{}{
			"layer":       "REPO",
			"campaign_id": campaignID,
		})
		return nil, err
	}
	return &seed, nil
}

// ListSeedsByCampaignID 获取活动的全部种子
func (r *CampaignRepository) ListSeedsByCampaignID(ctx context.Context, campaignID uint64) ([]*fuzzmodel.Seed, error) {
	var seeds []*fuzzmodel.Seed
	err := r.db.WithContext(ctx).Where("campaign_id = ?", campaignID).Order("id asc").Find(&seeds).Error
	if err != nil {
		logger.LogError(err, "list_seeds_by_campaign_id", map[string]interface{}{
			"layer":       "REPO",
			"campaign_id": campaignID,
		})
		return nil, err
	}
	return seeds, nil
}

// CreateCoverageSignal 追加覆盖率信号
// 信号表只追加，乱序到达的较小值同样落库
func (r *CampaignRepository) CreateCoverageSignal(ctx context.Context, signal *fuzzmodel.CoverageSignal) error {
	if signal == nil {
		return errors.New("coverage signal is nil")
	}
	err := r.db.WithContext(ctx).Create(signal).Error
	if err != nil {
		logger.LogError(err, "create_coverage_signal", map[string]interface{}{
			"layer":       "REPO",
			"campaign_id": signal.CampaignID,
		})
		return err
	}
	return nil
}

// ListCoverageByCampaignID 获取活动的全部覆盖率信号
func (r *CampaignRepository) ListCoverageByCampaignID(ctx context.Context, campaignID uint64) ([]*fuzzmodel.CoverageSignal, error) {
	var signals []*fuzzmodel.CoverageSignal
	err := r.db.WithContext(ctx).Where("campaign_id = ?", campaignID).Order("id asc").Find(&signals).Error
	if err != nil {
		logger.LogError(err, "list_coverage_by_campaign_id", map[string]interface{}{
			"layer":       "REPO",
			"campaign_id": campaignID,
		})
		return nil, err
	}
	return signals, nil
}
