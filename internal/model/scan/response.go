package scan

import (
	fuzzmodel "chainscan/internal/model/fuzz"
)

// ProjectInfo 项目信息响应结构
type ProjectInfo struct {
	ID        uint64                 `json:"id"`
	Name      string                 `json:"name"`
	Path      string                 `json:"path"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
	CreatedAt string                 `json:"created_at"`
}

// NewProjectInfo 从项目模型构建响应结构
func NewProjectInfo(p *Project) *ProjectInfo {
	return &ProjectInfo{
		ID:        p.ID,
		Name:      p.Name,
		Path:      p.Path,
		Meta:      p.GetMeta(),
		CreatedAt: p.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// ScanInfo 扫描摘要响应结构
type ScanInfo struct {
	ID         uint64     `json:"id"`
	ProjectID  uint64     `json:"project_id"`
	Target     string     `json:"target"`
	Tools      []string   `json:"tools"`
	Status     ScanStatus `json:"status"`
	StartedAt  string     `json:"started_at"`
	FinishedAt string     `json:"finished_at,omitempty"`
}

// NewScanInfo 从扫描模型构建响应结构
func NewScanInfo(s *Scan) *ScanInfo {
	info := &ScanInfo{
		ID:        s.ID,
		ProjectID: s.ProjectID,
		Target:    s.Target,
		Tools:     s.GetTools(),
		Status:    s.Status,
		StartedAt: s.StartedAt.Format("2006-01-02 15:04:05"),
	}
	if s.FinishedAt != nil {
		info.FinishedAt = s.FinishedAt.Format("2006-01-02 15:04:05")
	}
	return info
}

// ToolRunInfo 工具执行详情响应结构
type ToolRunInfo struct {
	ID         uint64            `json:"id"`
	Tool       string            `json:"tool"`
	Status     ToolRunStatus     `json:"status"`
	Attempts   int               `json:"attempts"`
	ExitCode   *int              `json:"exit_code,omitempty"`
	Error      string            `json:"error,omitempty"`
	DurationMs int64             `json:"duration_ms"`
	Artifacts  []AttemptArtifact `json:"artifacts,omitempty"`
}

// NewToolRunInfo 从工具执行模型构建响应结构
func NewToolRunInfo(t *ToolRun) *ToolRunInfo {
	return &ToolRunInfo{
		ID:         t.ID,
		Tool:       t.Tool,
		Status:     t.Status,
		Attempts:   t.Attempts,
		ExitCode:   t.ExitCode,
		Error:      t.Error,
		DurationMs: t.DurationMs,
		Artifacts:  t.GetArtifacts(),
	}
}

// ScanDetailResponse 扫描详情响应结构
// 扫描进行中也可查询，返回当时的部分状态
type ScanDetailResponse struct {
	Scan         *ScanInfo               `json:"scan"`
	ToolRuns     []*ToolRunInfo          `json:"tool_runs"`
	Findings     []*Finding              `json:"findings"`
	CrashReports []fuzzmodel.CrashReport `json:"crash_reports"`
	Summary      SeveritySummary         `json:"summary"`
	Telemetry    map[string]interface{}  `json:"telemetry,omitempty"`
	Logs         string                  `json:"logs,omitempty"`
}

// QuickScanResponse 快速扫描响应结构
type QuickScanResponse struct {
	ProjectID uint64 `json:"project_id"`
	ScanID    uint64 `json:"scan_id"`
}

// ContractGenerationResponse 演示合约生成并扫描的响应结构
type ContractGenerationResponse struct {
	ContractName string       `json:"contract_name"`
	ContractPath string       `json:"contract_path"`
	Project      *ProjectInfo `json:"project"`
	Scan         *ScanInfo    `json:"scan"`
}
