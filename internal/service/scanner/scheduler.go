/**
 * 服务:扫描调度器
 * @author: sun977
 * @date: 2025.08.29
 * @description: 扫描任务的准入、并行工具派发、完成计数与终态落定；
 *               每个扫描一个跟踪器，收齐全部完成事件后定稿
 * @func: Scheduler
 */
package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"chainscan/internal/adapter"
	"chainscan/internal/config"
	scanmodel "chainscan/internal/model/scan"
	"chainscan/internal/model/system"
	"chainscan/internal/pkg/logger"
)

// Notifier 扫描定稿通知契约
// 实现为best-effort，失败不影响扫描终态
type Notifier interface {
	NotifyScanFinished(scanID uint64)
}

// scanTracker 单个扫描的运行期跟踪器
type scanTracker struct {
	cancel   context.CancelFunc
	total    int
	events   chan CompletionEvent
	started  time.Time
	finished chan struct{}
}

// Scheduler 扫描调度器
type Scheduler struct {
	registry   *adapter.Registry
	projects   ProjectStore
	scans      ScanStore
	aggregator *Aggregator
	supervisor *Supervisor
	notifier   Notifier
	cfg        *config.ScannerConfig

	mu       sync.Mutex
	trackers map[uint64]*scanTracker
}

// NewScheduler 创建扫描调度器
// notifier可为nil，此时定稿后不发通知
func NewScheduler(registry *adapter.Registry, projects ProjectStore, scans ScanStore, aggregator *Aggregator, supervisor *Supervisor, notifier Notifier, cfg *config.ScannerConfig) *Scheduler {
	return &Scheduler{
		registry:   registry,
		projects:   projects,
		scans:      scans,
		aggregator: aggregator,
		supervisor: supervisor,
		notifier:   notifier,
		cfg:        cfg,
		trackers:   make(map[uint64]*scanTracker),
	}
}

// StartScan 准入并启动一次扫描
// 校验失败不留任何状态；扫描和全部ToolRun在单个事务内创建，
// 随后每个工具一个监督器goroutine并行执行
func (s *Scheduler) StartScan(ctx context.Context, projectID uint64, target string, tools []string) (*scanmodel.Scan, error) {
	if strings.TrimSpace(target) == "" {
		return nil, system.NewFieldValidationError("target", "扫描目标不能为空")
	}
	if err := s.registry.ValidateTools(tools); err != nil {
		return nil, err
	}

	project, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, system.NewNotFoundError("project", projectID)
	}

	now := time.Now()
	scanRecord := &scanmodel.Scan{
		ProjectID: projectID,
		Target:    target,
		Status:    scanmodel.ScanStatusQueued,
		StartedAt: now,
	}
	if err := scanRecord.SetTools(tools); err != nil {
		return nil, err
	}

	runs := make([]*scanmodel.ToolRun, 0, len(tools))
	for _, tool := range tools {
		runs = append(runs, &scanmodel.ToolRun{
			Tool:   tool,
			Status: scanmodel.ToolRunStatusPending,
		})
	}

	if err := s.scans.CreateScanWithRuns(ctx, scanRecord, runs); err != nil {
		return nil, err
	}

	s.launch(scanRecord, runs)

	logger.LogBusinessOperation("start_scan", "success", "scan admitted", map[string]interface{}{
		"scan_id":    scanRecord.ID,
		"project_id": projectID,
		"tools":      tools,
	})
	return scanRecord, nil
}

// launch 创建跟踪器并派发监督器goroutine
// 扫描上下文从Background派生，不随HTTP请求结束而取消
func (s *Scheduler) launch(scanRecord *scanmodel.Scan, runs []*scanmodel.ToolRun) {
	scanCtx, cancel := context.WithCancel(context.Background())
	tracker := &scanTracker{
		cancel:   cancel,
		total:    len(runs),
		events:   make(chan CompletionEvent, len(runs)),
		started:  time.Now(),
		finished: make(chan struct{}),
	}

	s.mu.Lock()
	s.trackers[scanRecord.ID] = tracker
	s.mu.Unlock()

	if err := s.scans.UpdateScanStatus(scanCtx, scanRecord.ID, scanmodel.ScanStatusRunning); err == nil {
		scanRecord.Status = scanmodel.ScanStatusRunning
	}

	for _, run := range runs {
		go s.supervisor.Run(scanCtx, run, scanRecord.Target, tracker.events)
	}
	go s.collect(scanCtx, scanRecord.ID, tracker)
}

// collect 收取完成事件并在收齐后定稿
// 成功工具的发现在这里进入聚合器；取消的扫描同样会收齐事件后落定
func (s *Scheduler) collect(ctx context.Context, scanID uint64, tracker *scanTracker) {
	defer close(tracker.finished)

	// 取消只中止在途尝试；与取消并发成功的工具，其发现照常落库
	ingestCtx := context.Background()

	succeeded := 0
	for i := 0; i < tracker.total; i++ {
		event := <-tracker.events

		if event.Status == scanmodel.ToolRunStatusSuccess {
			succeeded++
			if err := s.aggregator.IngestFindings(ingestCtx, scanID, event.Findings); err != nil {
				logger.LogError(err, "ingest_scan_findings", map[string]interface{}{
					"layer":   "SERVICE",
					"scan_id": scanID,
					"tool":    event.Tool,
				})
			}
		}
	}

	status := scanmodel.ScanStatusFailed
	if succeeded == tracker.total {
		status = scanmodel.ScanStatusSuccess
	}
	s.finalize(scanID, tracker, status, succeeded)
}

// finalize 写入扫描终态、日志摘要和遥测
func (s *Scheduler) finalize(scanID uint64, tracker *scanTracker, status scanmodel.ScanStatus, succeeded int) {
	finishedAt := time.Now()

	// 终态写入不使用可能已取消的扫描上下文
	ctx := context.Background()

	runs, err := s.scans.GetToolRunsByScanID(ctx, scanID)
	if err != nil {
		logger.LogError(err, "finalize_load_runs", map[string]interface{}{
			"layer":   "SERVICE",
			"scan_id": scanID,
		})
	}

	var logLines []string
	toolAttempts := make(map[string]interface{}, len(runs))
	for _, run := range runs {
		logLines = append(logLines, fmt.Sprintf("[%s] %s attempts=%d", run.Status, run.Tool, run.Attempts))
		toolAttempts[run.Tool] = run.Attempts
	}

	telemetry, _ := json.Marshal(map[string]interface{}{
		"duration_ms":   finishedAt.Sub(tracker.started).Milliseconds(),
		"tools_total":   tracker.total,
		"tools_success": succeeded,
		"attempts":      toolAttempts,
	})

	if err := s.scans.FinalizeScan(ctx, scanID, status, finishedAt, strings.Join(logLines, "\n"), string(telemetry)); err != nil {
		logger.LogError(err, "finalize_scan", map[string]interface{}{
			"layer":   "SERVICE",
			"scan_id": scanID,
			"status":  status,
		})
	}

	s.mu.Lock()
	delete(s.trackers, scanID)
	s.mu.Unlock()
	s.aggregator.ReleaseScan(scanID)

	logger.LogBusinessOperation("finalize_scan", "success", "scan settled", map[string]interface{}{
		"scan_id": scanID,
		"status":  status,
	})

	if s.notifier != nil {
		go s.notifier.NotifyScanFinished(scanID)
	}
}

// CancelScan 取消进行中的扫描
// 监督器中止在途尝试并照常发出完成事件，扫描随后落定为FAILED
func (s *Scheduler) CancelScan(ctx context.Context, scanID uint64) error {
	s.mu.Lock()
	tracker, ok := s.trackers[scanID]
	s.mu.Unlock()

	if ok {
		tracker.cancel()
		logger.LogBusinessOperation("cancel_scan", "success", "scan cancellation requested", map[string]interface{}{
			"scan_id": scanID,
		})
		return nil
	}

	scanRecord, err := s.scans.GetScanByID(ctx, scanID)
	if err != nil {
		return err
	}
	if scanRecord == nil {
		return system.NewNotFoundError("scan", scanID)
	}
	if scanRecord.Status.IsTerminal() {
		return system.NewAggregateStateConflictError("scan", scanID, string(scanRecord.Status), "cancel")
	}
	// 进程重启后遗留的RUNNING扫描：没有在途goroutine，直接落定
	return s.scans.FinalizeScan(ctx, scanID, scanmodel.ScanStatusFailed, time.Now(), system.ErrScanCancelled.Error(), "")
}

// QuickScan 一次调用完成项目创建和扫描准入
// 准入失败时项目保留，错误信息指明失败的步骤
func (s *Scheduler) QuickScan(ctx context.Context, req *scanmodel.QuickScanRequest) (*scanmodel.Project, *scanmodel.Scan, error) {
	existing, err := s.projects.GetProjectByName(ctx, req.Project.Name)
	if err != nil {
		return nil, nil, fmt.Errorf("project step: %w", err)
	}
	if existing != nil {
		return nil, nil, system.NewFieldValidationError("project.name", fmt.Sprintf("项目已存在: %s", req.Project.Name))
	}

	project := &scanmodel.Project{
		Name: req.Project.Name,
		Path: req.Project.Path,
	}
	if err := project.SetMeta(req.Project.Meta); err != nil {
		return nil, nil, fmt.Errorf("project step: %w", err)
	}
	if err := s.projects.CreateProject(ctx, project); err != nil {
		return nil, nil, fmt.Errorf("project step: %w", err)
	}

	target := req.Target
	if target == "" {
		target = req.Project.Path
	}
	tools := req.Tools
	if len(tools) == 0 {
		tools = scanmodel.DefaultTools()
	}

	scanRecord, err := s.StartScan(ctx, project.ID, target, tools)
	if err != nil {
		// 项目已创建成功并保留
		return project, nil, fmt.Errorf("scan step: %w", err)
	}
	return project, scanRecord, nil
}

// WaitForScan 等待扫描落定，测试和优雅关闭使用
// 返回false表示超时或扫描不在本实例跟踪
func (s *Scheduler) WaitForScan(scanID uint64, timeout time.Duration) bool {
	s.mu.Lock()
	tracker, ok := s.trackers[scanID]
	s.mu.Unlock()
	if !ok {
		return true
	}

	select {
	case <-tracker.finished:
		return true
	case <-time.After(timeout):
		return false
	}
}

// ActiveScans 返回当前在本实例跟踪的扫描数
func (s *Scheduler) ActiveScans() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trackers)
}
