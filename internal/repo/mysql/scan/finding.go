package scan

import (
	"context"
	"errors"

	"gorm.io/gorm"

	scanmodel "chainscan/internal/model/scan"
	"chainscan/internal/pkg/logger"
)

// FindingRepository 安全发现仓库
// 发现集合只追加，没有更新和删除入口
type FindingRepository struct {
	db *gorm.DB
}

// NewFindingRepository 创建 FindingRepository 实例
func NewFindingRepository(db *gorm.DB) *FindingRepository {
	return &FindingRepository{db: db}
}

// CreateFindings 批量写入发现
func (r *FindingRepository) CreateFindings(ctx context.Context, findings []*scanmodel.Finding) error {
	if len(findings) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Create(findings).Error
	if err != nil {
		logger.LogError(err, "create_findings", map[string]interface{}{
			"layer":   "REPO",
			"scan_id": findings[0].ScanID,
			"count":   len(findings),
		})
		return err
	}
	return nil
}

// ListFindingsByScanID 获取扫描的全部发现
func (r *FindingRepository) ListFindingsByScanID(ctx context.Context, scanID uint64) ([]*scanmodel.Finding, error) {
	var findings []*scanmodel.Finding
	err := r.db.WithContext(ctx).Where("scan_id = ?", scanID).Order("id asc").Find(&findings).Error
	if err != nil {
		logger.LogError(err, "list_findings_by_scan_id", map[string]interface{}{
			"layer":   "REPO",
			"scan_id": scanID,
		})
		return nil, err
	}
	return findings, nil
}

// CountBySeverity 按严重级别重新统计发现数量
// 缓存失效时的权威数据源
func (r *FindingRepository) CountBySeverity(ctx context.Context, scanID uint64) (scanmodel.SeveritySummary, error) {
	type severityCount struct {
		Severity scanmodel.Severity
		Count    int64
	}
	var rows []severityCount
	err := r.db.WithContext(ctx).Model(&scanmodel.Finding{}).
		Select("severity, count(*) as count").
		Where("scan_id = ?", scanID).
		Group("severity").
		Scan(&rows).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return scanmodel.SeveritySummary{}, nil
		}
		logger.LogError(err, "count_by_severity", map[string]interface{}{
			"layer":   "REPO",
			"scan_id": scanID,
		})
		return nil, err
	}

	summary := scanmodel.SeveritySummary{}
	for _, row := range rows {
		summary[row.Severity] = row.Count
	}
	return summary, nil
}
