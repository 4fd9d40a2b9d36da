/**
 * 仓库:扫描任务数据访问
 * @author: sun977
 * @date: 2025.08.29
 * @description: Scan与ToolRun的数据访问，扫描创建在单个事务内完成
 * @func: ScanRepository
 */
package scan

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	scanmodel "chainscan/internal/model/scan"
	"chainscan/internal/pkg/logger"
)

// ScanRepository 扫描任务仓库
type ScanRepository struct {
	db *gorm.DB
}

// NewScanRepository 创建 ScanRepository 实例
func NewScanRepository(db *gorm.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

// CreateScanWithRuns 在单个事务内创建扫描及其全部工具执行记录
// 事务失败时不留下部分状态
func (r *ScanRepository) CreateScanWithRuns(ctx context.Context, s *scanmodel.Scan, runs []*scanmodel.ToolRun) error {
	if s == nil {
		return errors.New("scan is nil")
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(s).Error; err != nil {
			return err
		}
		for _, run := range runs {
			run.ScanID = s.ID
			if err := tx.Create(run).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.LogError(err, "create_scan_with_runs", map[string]interface{}{
			"layer":      "REPO",
			"project_id": s.ProjectID,
		})
		return err
	}
	return nil
}

// GetScanByID 根据ID获取扫描，不存在时返回 nil, nil
func (r *ScanRepository) GetScanByID(ctx context.Context, id uint64) (*scanmodel.Scan, error) {
	var s scanmodel.Scan
	err := r.db.WithContext(ctx).First(&s, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.LogError(err, "get_scan_by_id", map[string]interface{}{
			"layer": "REPO",
			"id":    id,
		})
		return nil, err
	}
	return &s, nil
}

// UpdateScanStatus 更新扫描状态
func (r *ScanRepository) UpdateScanStatus(ctx context.Context, id uint64, status scanmodel.ScanStatus) error {
	err := r.db.WithContext(ctx).Model(&scanmodel.Scan{}).Where("id = ?", id).
		Update("status", status).Error
	if err != nil {
		logger.LogError(err, "update_scan_status", map[string]interface{}{
			"layer":  "REPO",
			"id":     id,
			"status": status,
		})
		return err
	}
	return nil
}

// FinalizeScan 写入扫描终态、结束时间和汇总信息
func (r *ScanRepository) FinalizeScan(ctx context.Context, id uint64, status scanmodel.ScanStatus, finishedAt time.Time, logs, telemetry string) error {
	updates := map[string]interface{}{
		"status":      status,
		"finished_at": finishedAt,
		"logs":        logs,
		"telemetry":   telemetry,
	}
	err := r.db.WithContext(ctx).Model(&scanmodel.Scan{}).Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		logger.LogError(err, "finalize_scan", map[string]interface{}{
			"layer":  "REPO",
			"id":     id,
			"status": status,
		})
		return err
	}
	return nil
}

// ListScans 获取扫描列表 (分页 + 筛选)
func (r *ScanRepository) ListScans(ctx context.Context, page, pageSize int, projectID uint64, status string) ([]*scanmodel.Scan, int64, error) {
	var scans []*scanmodel.Scan
	var total int64

	query := r.db.WithContext(ctx).Model(&scanmodel.Scan{})
	if projectID > 0 {
		query = query.Where("project_id = ?", projectID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	err := query.Count(&total).Error
	if err != nil {
		logger.LogError(err, "list_scans_count", map[string]interface{}{"layer": "REPO"})
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err = query.Offset(offset).Limit(pageSize).Order("id desc").Find(&scans).Error
	if err != nil {
		logger.LogError(err, "list_scans_find", map[string]interface{}{"layer": "REPO"})
		return nil, 0, err
	}

	return scans, total, nil
}

// GetToolRunsByScanID 获取扫描的全部工具执行记录
func (r *ScanRepository) GetToolRunsByScanID(ctx context.Context, scanID uint64) ([]*scanmodel.ToolRun, error) {
	var runs []*scanmodel.ToolRun
	err := r.db.WithContext(ctx).Where("scan_id = ?", scanID).Order("id asc").Find(&runs).Error
	if err != nil {
		logger.LogError(err, "get_tool_runs_by_scan_id", map[string]interface{}{
			"layer":   "REPO",
			"scan_id": scanID,
		})
		return nil, err
	}
	return runs, nil
}

// GetToolRunByID 根据ID获取工具执行记录，不存在时返回 nil, nil
func (r *ScanRepository) GetToolRunByID(ctx context.Context, id uint64) (*scanmodel.ToolRun, error) {
	var run scanmodel.ToolRun
	err := r.db.WithContext(ctx).First(&run, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.LogError(err, "get_tool_run_by_id", map[string]interface{}{
			"layer": "REPO",
			"id":    id,
		})
		return nil, err
	}
	return &run, nil
}

// UpdateToolRun 保存工具执行记录的全部字段
func (r *ScanRepository) UpdateToolRun(ctx context.Context, run *scanmodel.ToolRun) error {
	if run == nil || run.ID == 0 {
		return errors.New("invalid tool run or id")
	}
	err := r.db.WithContext(ctx).Save(run).Error
	if err != nil {
		logger.LogError(err, "update_tool_run", map[string]interface{}{
			"layer": "REPO",
			"id":    run.ID,
			"tool":  run.Tool,
		})
		return err
	}
	return nil
}
