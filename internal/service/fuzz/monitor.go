/**
 * 服务:模糊测试活动监控器
 * @author: sun977
 * @date: 2025.08.29
 * @description: 活动生命周期状态机、种子去重、覆盖率单调聚合与崩溃去重登记
 * @func: Monitor
 */
package fuzz

import (
	"context"
	"fmt"
	"sync"

	fuzzmodel "chainscan/internal/model/fuzz"
	scanmodel "chainscan/internal/model/scan"
	"chainscan/internal/model/system"
	"chainscan/internal/pkg/logger"
)

// ScanReader 扫描读取契约
// 仅用于从已有扫描引导活动，避免对扫描服务的反向依赖
type ScanReader interface {
	GetScanByID(ctx context.Context, id uint64) (*scanmodel.Scan, error)
}

// Monitor 活动监控器
// 同一活动的写操作由per-campaign互斥锁串行化
type Monitor struct {
	campaigns CampaignStore
	crashes   CrashStore
	scans     ScanReader

	mu    sync.Mutex
	locks map[uint64]*sync.Mutex
}

// NewMonitor 创建活动监控器
// scans可为nil，此时不支持从扫描引导活动
func NewMonitor(campaigns CampaignStore, crashes CrashStore, scans ScanReader) *Monitor {
	return &Monitor{
		campaigns: campaigns,
		crashes:   crashes,
		scans:     scans,
		locks:     make(map[uint64]*sync.Mutex),
	}
}

// campaignLock 获取指定活动的互斥锁
func (m *Monitor) campaignLock(campaignID uint64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[campaignID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[campaignID] = lock
	}
	return lock
}

// CreateCampaign 创建活动，初始状态PENDING
func (m *Monitor) CreateCampaign(ctx context.Context, req *fuzzmodel.CreateCampaignRequest) (*fuzzmodel.Campaign, error) {
	existing, err := m.campaigns.GetCampaignByName(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, system.NewFieldValidationError("name", fmt.Sprintf("活动已存在: %s", req.Name))
	}

	campaign := &fuzzmodel.Campaign{
		Name:     req.Name,
		Target:   req.Target,
		Status:   fuzzmodel.CampaignStatusPending,
		Strategy: req.Strategy,
	}
	if err := campaign.SetMetrics(fuzzmodel.CampaignMetrics{CoveredEdges: map[string]int64{}}); err != nil {
		return nil, err
	}
	if err := m.campaigns.CreateCampaign(ctx, campaign); err != nil {
		return nil, err
	}

	logger.LogBusinessOperation("create_campaign", "success", "campaign created", map[string]interface{}{
		"campaign_id": campaign.ID,
		"name":        campaign.Name,
	})
	return campaign, nil
}

// BootstrapFromScan 从一次已有扫描引导活动
// 活动目标继承扫描目标；扫描发现的崩溃不自动迁移，后续通过ReportCrash注入
func (m *Monitor) BootstrapFromScan(ctx context.Context, scanID uint64, name string) (*fuzzmodel.Campaign, error) {
	if m.scans == nil {
		return nil, system.NewFieldValidationError("scan_id", "从扫描引导活动未启用")
	}

	scanRecord, err := m.scans.GetScanByID(ctx, scanID)
	if err != nil {
		return nil, err
	}
	if scanRecord == nil {
		return nil, system.NewNotFoundError("scan", scanID)
	}

	if name == "" {
		name = fmt.Sprintf("scan-%d-campaign", scanID)
	}
	return m.CreateCampaign(ctx, &fuzzmodel.CreateCampaignRequest{
		Name:     name,
		Target:   scanRecord.Target,
		Strategy: "coverage-guided",
	})
}

// Transition 推进活动状态机
// 非法转换返回状态冲突错误，终态活动不再接受任何转换
func (m *Monitor) Transition(ctx context.Context, campaignID uint64, target fuzzmodel.CampaignStatus) (*fuzzmodel.Campaign, error) {
	lock := m.campaignLock(campaignID)
	lock.Lock()
	defer lock.Unlock()

	campaign, err := m.loadCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	if !campaign.Status.CanTransitionTo(target) {
		return nil, system.NewAggregateStateConflictError("campaign", campaignID, string(campaign.Status), fmt.Sprintf("transition to %s", target))
	}

	campaign.Status = target
	if err := m.campaigns.UpdateCampaign(ctx, campaign); err != nil {
		return nil, err
	}

	logger.LogBusinessOperation("transition_campaign", "success", "campaign status changed", map[string]interface{}{
		"campaign_id": campaignID,
		"status":      target,
	})
	return campaign, nil
}

// AddSeed 向活动语料库添加种子
// 仅RUNNING状态接受注入；相同去重键的种子幂等返回已有记录
func (m *Monitor) AddSeed(ctx context.Context, campaignID uint64, req *fuzzmodel.AddSeedRequest) (*fuzzmodel.Seed, error) {
	lock := m.campaignLock(campaignID)
	lock.Lock()
	defer lock.Unlock()

	campaign, err := m.loadCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.Status.AcceptsIngestion() {
		return nil, system.NewAggregateStateConflictError("campaign", campaignID, string(campaign.Status), "add seed")
	}

	existing, err := m.campaigns.GetSeedByDedupeKey(ctx, campaignID, req.DedupeKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	seed := &fuzzmodel.Seed{
		CampaignID: campaignID,
		Source:     req.Source,
		CorpusPath: req.CorpusPath,
		DedupeKey:  req.DedupeKey,
	}
	if err := m.campaigns.CreateSeed(ctx, seed); err != nil {
		return nil, err
	}

	metrics := campaign.GetMetrics()
	metrics.Seeds++
	if err := m.saveMetrics(ctx, campaign, metrics); err != nil {
		return nil, err
	}
	return seed, nil
}

// AddCoverage 注入一条覆盖率信号
// 信号本身只追加保留；指标中每个运行实例只记录历史最大值，单调不减
func (m *Monitor) AddCoverage(ctx context.Context, campaignID uint64, req *fuzzmodel.AddCoverageRequest) (*fuzzmodel.Campaign, error) {
	lock := m.campaignLock(campaignID)
	lock.Lock()
	defer lock.Unlock()

	campaign, err := m.loadCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.Status.AcceptsIngestion() {
		return nil, system.NewAggregateStateConflictError("campaign", campaignID, string(campaign.Status), "add coverage")
	}

	runID := req.RunIdentifier
	if runID == "" {
		runID = "default"
	}

	if err := m.campaigns.CreateCoverageSignal(ctx, &fuzzmodel.CoverageSignal{
		CampaignID:    campaignID,
		RunIdentifier: runID,
		CoveredEdges:  req.CoveredEdges,
	}); err != nil {
		return nil, err
	}

	metrics := campaign.GetMetrics()
	if req.CoveredEdges > metrics.CoveredEdges[runID] {
		metrics.CoveredEdges[runID] = req.CoveredEdges
	}
	if err := m.saveMetrics(ctx, campaign, metrics); err != nil {
		return nil, err
	}
	return campaign, nil
}

// ReportCrash 登记一条崩溃报告
// 相同(活动,签名)只保留一行，重复出现时累加计数并更新证据字段
func (m *Monitor) ReportCrash(ctx context.Context, campaignID uint64, req *fuzzmodel.ReportCrashRequest) (*fuzzmodel.CrashReport, error) {
	lock := m.campaignLock(campaignID)
	lock.Lock()
	defer lock.Unlock()

	campaign, err := m.loadCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.Status.AcceptsIngestion() {
		return nil, system.NewAggregateStateConflictError("campaign", campaignID, string(campaign.Status), "report crash")
	}

	existing, err := m.crashes.GetByCampaignAndSignature(ctx, campaignID, req.Signature)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		existing.Occurrences++
		if req.InputReference != "" {
			existing.InputReference = req.InputReference
		}
		if req.Stacktrace != "" {
			existing.Stacktrace = req.Stacktrace
		}
		if err := m.crashes.UpdateCrash(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	cid := campaignID
	crash := &fuzzmodel.CrashReport{
		CampaignID:     &cid,
		Signature:      req.Signature,
		Status:         fuzzmodel.CrashStatusUntriaged,
		InputReference: req.InputReference,
		Stacktrace:     req.Stacktrace,
		Occurrences:    1,
	}
	if err := m.crashes.CreateCrash(ctx, crash); err != nil {
		return nil, err
	}

	metrics := campaign.GetMetrics()
	metrics.Crashes++
	if err := m.saveMetrics(ctx, campaign, metrics); err != nil {
		return nil, err
	}

	logger.LogBusinessOperation("report_crash", "success", "new crash registered", map[string]interface{}{
		"campaign_id": campaignID,
		"signature":   req.Signature,
	})
	return crash, nil
}

// GetCampaignDetail 组装活动详情
func (m *Monitor) GetCampaignDetail(ctx context.Context, campaignID uint64) (*fuzzmodel.CampaignDetailResponse, error) {
	campaign, err := m.loadCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	seeds, err := m.campaigns.ListSeedsByCampaignID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	coverage, err := m.campaigns.ListCoverageByCampaignID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	crashes, err := m.crashes.ListByCampaignID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	detail := &fuzzmodel.CampaignDetailResponse{
		Campaign: campaign,
		Metrics:  campaign.GetMetrics(),
	}
	for _, s := range seeds {
		detail.Seeds = append(detail.Seeds, *s)
	}
	for _, c := range coverage {
		detail.Coverage = append(detail.Coverage, *c)
	}
	for _, c := range crashes {
		detail.Crashes = append(detail.Crashes, *c)
	}
	return detail, nil
}

// ListCampaigns 分页列出活动，status非空时按状态过滤
func (m *Monitor) ListCampaigns(ctx context.Context, page, pageSize int, status string) ([]*fuzzmodel.Campaign, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return m.campaigns.ListCampaigns(ctx, page, pageSize, status)
}

// loadCampaign 按ID读取活动，不存在时返回NotFound
func (m *Monitor) loadCampaign(ctx context.Context, campaignID uint64) (*fuzzmodel.Campaign, error) {
	campaign, err := m.campaigns.GetCampaignByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, system.NewNotFoundError("campaign", campaignID)
	}
	return campaign, nil
}

// saveMetrics 写回活动指标
func (m *Monitor) saveMetrics(ctx context.Context, campaign *fuzzmodel.Campaign, metrics fuzzmodel.CampaignMetrics) error {
	if err := campaign.SetMetrics(metrics); err != nil {
		return err
	}
	return m.campaigns.UpdateCampaign(ctx, campaign)
}
