package fuzz

import (
	"context"
	"errors"

	"gorm.io/gorm"

	fuzzmodel "chainscan/internal/model/fuzz"
	"chainscan/internal/pkg/logger"
)

// CrashRepository 崩溃报告仓库
// 同一归属(活动或扫描)下Signature唯一，重复崩溃只更新现有行
type CrashRepository struct {
	db *gorm.DB
}

// NewCrashRepository 创建 CrashRepository 实例
func NewCrashRepository(db *gorm.DB) *CrashRepository {
	return &CrashRepository{db: db}
}

// GetByCampaignAndSignature 按活动和签名查找崩溃，不存在时返回 nil, nil
func (r *CrashRepository) GetByCampaignAndSignature(ctx context.Context, campaignID uint64, signature string) (*fuzzmodel.CrashReport, error) {
	var crash fuzzmodel.CrashReport
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND signature = ?", campaignID, signature).
		First(&crash).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.LogError(err, "get_crash_by_campaign_and_signature", map[string]interface{}{
			"layer":       "REPO",
			"campaign_id": campaignID,
		})
		return nil, err
	}
	return &crash, nil
}

// GetByScanAndSignature 按扫描和签名查找崩溃，不存在时返回 nil, nil
func (r *CrashRepository) GetByScanAndSignature(ctx context.Context, scanID uint64, signature string) (*fuzzmodel.CrashReport, error) {
	var crash fuzzmodel.CrashReport
	err := r.db.WithContext(ctx).
		Where("scan_id = ? AND signature = ?", scanID, signature).
		First(&crash).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.LogError(err, "get_crash_by_scan_and_signature", map[string]interface{}{
			"layer":   "REPO",
			"scan_id": scanID,
		})
		return nil, err
	}
	return &crash, nil
}

// CreateCrash 写入新的崩溃报告
func (r *CrashRepository) CreateCrash(ctx context.Context, crash *fuzzmodel.CrashReport) error {
	if crash == nil {
		return errors.New("crash report is nil")
	}
	err := r.db.WithContext(ctx).Create(crash).Error
	if err != nil {
		logger.LogError(err, "create_crash", map[string]interface{}{
			"layer":     "REPO",
			"signature": crash.Signature,
		})
		return err
	}
	return nil
}

// UpdateCrash 保存崩溃报告的全部字段
func (r *CrashRepository) UpdateCrash(ctx context.Context, crash *fuzzmodel.CrashReport) error {
	if crash == nil || crash.ID == 0 {
		return errors.New("invalid crash report or id")
	}
	err := r.db.WithContext(ctx).Save(crash).Error
	if err != nil {
		logger.LogError(err, "update_crash", map[string]interface{}{
			"layer": "REPO",
			"id":    crash.ID,
		})
		return err
	}
	return nil
}

// ListByCampaignID 获取活动的全部崩溃报告
func (r *CrashRepository) ListByCampaignID(ctx context.Context, campaignID uint64) ([]*fuzzmodel.CrashReport, error) {
	var crashes []*fuzzmodel.CrashReport
	err := r.db.WithContext(ctx).Where("campaign_id = ?", campaignID).Order("id asc").Find(&crashes).Error
	if err != nil {
		logger.LogError(err, "list_crashes_by_campaign_id", map[string]interface{}{
			"layer":       "REPO",
			"campaign_id": campaignID,
		})
		return nil, err
	}
	return crashes, nil
}

// ListByScanID 获取扫描的全部崩溃报告
func (r *CrashRepository) ListByScanID(ctx context.Context, scanID uint64) ([]*fuzzmodel.CrashReport, error) {
	var crashes []*fuzzmodel.CrashReport
	err := r.db.WithContext(ctx).Where("scan_id = ?", scanID).Order("id asc").Find(&crashes).Error
	if err != nil {
		logger.LogError(err, "list_crashes_by_scan_id", map[string]interface{}{
			"layer":   "REPO",
			"scan_id": scanID,
		})
		return nil, err
	}
	return crashes, nil
}
