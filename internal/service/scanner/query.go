/**
 * 服务:扫描查询
 * @author: sun977
 * @date: 2025.08.29
 * @description: 项目和扫描的读路径，组装详情响应
 * @func: Query
 */
package scanner

import (
	"context"
	"encoding/json"

	fuzzmodel "chainscan/internal/model/fuzz"
	scanmodel "chainscan/internal/model/scan"
	"chainscan/internal/model/system"
	"chainscan/internal/pkg/logger"
)

// Query 扫描读路径服务
type Query struct {
	projects   ProjectStore
	scans      ScanStore
	findings   FindingStore
	crashes    CrashStore
	aggregator *Aggregator
}

// NewQuery 创建扫描查询服务
func NewQuery(projects ProjectStore, scans ScanStore, findings FindingStore, crashes CrashStore, aggregator *Aggregator) *Query {
	return &Query{
		projects:   projects,
		scans:      scans,
		findings:   findings,
		crashes:    crashes,
		aggregator: aggregator,
	}
}

// CreateProject 创建项目
func (q *Query) CreateProject(ctx context.Context, req *scanmodel.CreateProjectRequest) (*scanmodel.Project, error) {
	existing, err := q.projects.GetProjectByName(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, system.ErrProjectAlreadyExists
	}

	project := &scanmodel.Project{
		Name: req.Name,
		Path: req.Path,
	}
	if err := project.SetMeta(req.Meta); err != nil {
		return nil, err
	}
	if err := q.projects.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// GetProject 按ID读取项目
func (q *Query) GetProject(ctx context.Context, id uint64) (*scanmodel.Project, error) {
	project, err := q.projects.GetProjectByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, system.NewNotFoundError("project", id)
	}
	return project, nil
}

// DeleteProject 删除项目
// 已产生的扫描和发现保留，仅移除项目本身
func (q *Query) DeleteProject(ctx context.Context, id uint64) error {
	project, err := q.projects.GetProjectByID(ctx, id)
	if err != nil {
		return err
	}
	if project == nil {
		return system.NewNotFoundError("project", id)
	}
	if err := q.projects.DeleteProject(ctx, id); err != nil {
		return err
	}

	logger.LogBusinessOperation("delete_project", "success", "project deleted", map[string]interface{}{
		"project_id": id,
		"name":       project.Name,
	})
	return nil
}

// ListProjects 分页列出项目
func (q *Query) ListProjects(ctx context.Context, page, pageSize int) ([]*scanmodel.ProjectInfo, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	projects, total, err := q.projects.ListProjects(ctx, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	infos := make([]*scanmodel.ProjectInfo, 0, len(projects))
	for _, p := range projects {
		infos = append(infos, scanmodel.NewProjectInfo(p))
	}
	return infos, total, nil
}

// ListScans 分页列出扫描，支持按项目和状态过滤
func (q *Query) ListScans(ctx context.Context, req *scanmodel.ListScansRequest) ([]*scanmodel.ScanInfo, int64, error) {
	page, pageSize := normalizePage(req.Page, req.PageSize)
	scans, total, err := q.scans.ListScans(ctx, page, pageSize, req.ProjectID, req.Status)
	if err != nil {
		return nil, 0, err
	}

	infos := make([]*scanmodel.ScanInfo, 0, len(scans))
	for _, s := range scans {
		infos = append(infos, scanmodel.NewScanInfo(s))
	}
	return infos, total, nil
}

// GetScanDetail 组装扫描详情
// 包含全部工具执行记录、发现、严重级别统计和遥测；对进行中的扫描同样可用
func (q *Query) GetScanDetail(ctx context.Context, scanID uint64) (*scanmodel.ScanDetailResponse, error) {
	scanRecord, err := q.scans.GetScanByID(ctx, scanID)
	if err != nil {
		return nil, err
	}
	if scanRecord == nil {
		return nil, system.NewNotFoundError("scan", scanID)
	}

	runs, err := q.scans.GetToolRunsByScanID(ctx, scanID)
	if err != nil {
		return nil, err
	}
	runInfos := make([]*scanmodel.ToolRunInfo, 0, len(runs))
	for _, run := range runs {
		runInfos = append(runInfos, scanmodel.NewToolRunInfo(run))
	}

	findings, err := q.findings.ListFindingsByScanID(ctx, scanID)
	if err != nil {
		return nil, err
	}

	crashes, err := q.crashes.ListByScanID(ctx, scanID)
	if err != nil {
		return nil, err
	}
	crashReports := make([]fuzzmodel.CrashReport, 0, len(crashes))
	for _, crash := range crashes {
		crashReports = append(crashReports, *crash)
	}

	summary, err := q.aggregator.GetSummary(ctx, scanID)
	if err != nil {
		return nil, err
	}

	var telemetry map[string]interface{}
	if scanRecord.Telemetry != "" {
		_ = json.Unmarshal([]byte(scanRecord.Telemetry), &telemetry)
	}

	return &scanmodel.ScanDetailResponse{
		Scan:         scanmodel.NewScanInfo(scanRecord),
		ToolRuns:     runInfos,
		Findings:     findings,
		CrashReports: crashReports,
		Summary:      summary,
		Telemetry:    telemetry,
		Logs:         scanRecord.Logs,
	}, nil
}

// normalizePage 分页参数兜底
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
