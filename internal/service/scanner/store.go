package scanner

import (
	"context"
	"time"

	fuzzmodel "chainscan/internal/model/fuzz"
	scanmodel "chainscan/internal/model/scan"
)

// ProjectStore 项目数据访问契约
type ProjectStore interface {
	CreateProject(ctx context.Context, project *scanmodel.Project) error
	GetProjectByID(ctx context.Context, id uint64) (*scanmodel.Project, error)
	GetProjectByName(ctx context.Context, name string) (*scanmodel.Project, error)
	UpdateProjectMeta(ctx context.Context, id uint64, meta string) error
	DeleteProject(ctx context.Context, id uint64) error
	ListProjects(ctx context.Context, page, pageSize int) ([]*scanmodel.Project, int64, error)
}

// ScanStore 扫描任务数据访问契约
type ScanStore interface {
	CreateScanWithRuns(ctx context.Context, s *scanmodel.Scan, runs []*scanmodel.ToolRun) error
	GetScanByID(ctx context.Context, id uint64) (*scanmodel.Scan, error)
	UpdateScanStatus(ctx context.Context, id uint64, status scanmodel.ScanStatus) error
	FinalizeScan(ctx context.Context, id uint64, status scanmodel.ScanStatus, finishedAt time.Time, logs, telemetry string) error
	ListScans(ctx context.Context, page, pageSize int, projectID uint64, status string) ([]*scanmodel.Scan, int64, error)
	GetToolRunsByScanID(ctx context.Context, scanID uint64) ([]*scanmodel.ToolRun, error)
	UpdateToolRun(ctx context.Context, run *scanmodel.ToolRun) error
}

// FindingStore 安全发现数据访问契约
type FindingStore interface {
	CreateFindings(ctx context.Context, findings []*scanmodel.Finding) error
	ListFindingsByScanID(ctx context.Context, scanID uint64) ([]*scanmodel.Finding, error)
	CountBySeverity(ctx context.Context, scanID uint64) (scanmodel.SeveritySummary, error)
}

// CrashStore 崩溃报告数据访问契约(按扫描归属)
type CrashStore interface {
	GetByScanAndSignature(ctx context.Context, scanID uint64, signature string) (*fuzzmodel.CrashReport, error)
	CreateCrash(ctx context.Context, crash *fuzzmodel.CrashReport) error
	UpdateCrash(ctx context.Context, crash *fuzzmodel.CrashReport) error
	ListByScanID(ctx context.Context, scanID uint64) ([]*fuzzmodel.CrashReport, error)
}

// SummaryCache 严重级别统计缓存契约
// 实现必须容忍缓存不可用：统计始终能从FindingStore重建
type SummaryCache interface {
	GetSummary(ctx context.Context, scanID uint64) (scanmodel.SeveritySummary, error)
	SetSummary(ctx context.Context, scanID uint64, summary scanmodel.SeveritySummary) error
	IncrSeverity(ctx context.Context, scanID uint64, severity scanmodel.Severity, delta int64) error
	DeleteSummary(ctx context.Context, scanID uint64) error
}
