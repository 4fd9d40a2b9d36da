package scan

import (
	"context"
	"errors"

	"gorm.io/gorm"

	scanmodel "chainscan/internal/model/scan"
	"chainscan/internal/pkg/logger"
)

// ProjectRepository 项目仓库
// 负责 Project 的数据访问
type ProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository 创建 ProjectRepository 实例
func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// CreateProject 创建项目
func (r *ProjectRepository) CreateProject(ctx context.Context, project *scanmodel.Project) error {
	if project == nil {
		return errors.New("project is nil")
	}
	err := r.db.WithContext(ctx).Create(project).Error
	if err != nil {
		logger.LogError(err, "create_project", map[string]interface{}{
			"layer": "REPO",
			"name":  project.Name,
		})
		return err
	}
	return nil
}

// GetProjectByID 根据ID获取项目，不存在时返回 nil, nil
func (r *ProjectRepository) GetProjectByID(ctx context.Context, id uint64) (*scanmodel.Project, error) {
	var project scanmodel.Project
	err := r.db.WithContext(ctx).First(&project, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.LogError(err, "get_project_by_id", map[string]interface{}{
			"layer": "REPO",
			"id":    id,
		})
		return nil, err
	}
	return &project, nil
}

// GetProjectByName 根据名称获取项目，不存在时返回 nil, nil
func (r *ProjectRepository) GetProjectByName(ctx context.Context, name string) (*scanmodel.Project, error) {
	var project scanmodel.Project
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.LogError(err, "get_project_by_name", map[string]interface{}{
			"layer": "REPO",
			"name":  name,
		})
		return nil, err
	}
	return &project, nil
}

// UpdateProjectMeta 更新项目元数据
// 项目的其他字段创建后不可变
func (r *ProjectRepository) UpdateProjectMeta(ctx context.Context, id uint64, meta string) error {
	err := r.db.WithContext(ctx).Model(&scanmodel.Project{}).Where("id = ?", id).
		Update("meta", meta).Error
	if err != nil {
		logger.LogError(err, "update_project_meta", map[string]interface{}{
			"layer": "REPO",
			"id":    id,
		})
		return err
	}
	return nil
}

// DeleteProject 删除项目
func (r *ProjectRepository) DeleteProject(ctx context.Context, id uint64) error {
	err := r.db.WithContext(ctx).Delete(&scanmodel.Project{}, id).Error
	if err != nil {
		logger.LogError(err, "delete_project", map[string]interface{}{
			"layer": "REPO",
			"id":    id,
		})
		return err
	}
	return nil
}

// ListProjects 获取项目列表 (分页)
func (r *ProjectRepository) ListProjects(ctx context.Context, page, pageSize int) ([]*scanmodel.Project, int64, error) {
	var projects []*scanmodel.Project
	var total int64

	query := r.db.WithContext(ctx).Model(&scanmodel.Project{})

	err := query.Count(&total).Error
	if err != nil {
		logger.LogError(err, "list_projects_count", map[string]interface{}{"layer": "REPO"})
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err = query.Offset(offset).Limit(pageSize).Order("id desc").Find(&projects).Error
	if err != nil {
		logger.LogError(err, "list_projects_find", map[string]interface{}{"layer": "REPO"})
		return nil, 0, err
	}

	return projects, total, nil
}
