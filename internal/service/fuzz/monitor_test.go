package fuzz

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fuzzmodel "chainscan/internal/model/fuzz"
	scanmodel "chainscan/internal/model/scan"
	"chainscan/internal/model/system"
)

// mockCampaignStore 内存实现的活动存储，用于单元测试
type mockCampaignStore struct {
	nextID    uint64
	campaigns map[uint64]*fuzzmodel.Campaign
	seeds     []*fuzzmodel.Seed
	coverage  []*fuzzmodel.CoverageSignal
}

func newMockCampaignStore() *mockCampaignStore {
	return &mockCampaignStore{campaigns: make(map[uint64]*fuzzmodel.Campaign)}
}

func (m *mockCampaignStore) CreateCampaign(ctx context.Context, campaign *fuzzmodel.Campaign) error {
	m.nextID++
	campaign.ID = m.nextID
	copied := *campaign
	m.campaigns[campaign.ID] = &copied
	return nil
}

func (m *mockCampaignStore) GetCampaignByID(ctx context.Context, id uint64) (*fuzzmodel.Campaign, error) {
	campaign, ok := m.campaigns[id]
	if !ok {
		return nil, nil
	}
	copied := *campaign
	return &copied, nil
}

func (m *mockCampaignStore) GetCampaignByName(ctx context.Context, name string) (*fuzzmodel.Campaign, error) {
	for _, campaign := range m.campaigns {
		if campaign.Name == name {
			copied := *campaign
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockCampaignStore) UpdateCampaign(ctx context.Context, campaign *fuzzmodel.Campaign) error {
	if _, ok := m.campaigns[campaign.ID]; !ok {
		return fmt.Errorf("campaign %d not found", campaign.ID)
	}
	copied := *campaign
	m.campaigns[campaign.ID] = &copied
	return nil
}

func (m *mockCampaignStore) ListCampaigns(ctx context.Context, page, pageSize int, status string) ([]*fuzzmodel.Campaign, int64, error) {
	var result []*fuzzmodel.Campaign
	for _, campaign := range m.campaigns {
		if status != "" && string(campaign.Status) != status {
			continue
		}
		copied := *campaign
		result = append(result, &copied)
	}
	return result, int64(len(result)), nil
}

func (m *mockCampaignStore) CreateSeed(ctx context.Context, seed *fuzzmodel.Seed) error {
	seed.ID = uint64(len(m.seeds) + 1)
	m.seeds = append(m.seeds, seed)
	return nil
}

func (m *mockCampaignStore) GetSeedByDedupeKey(ctx context.Context, campaignID uint64, dedupeKey string) (*fuzzmodel.Seed, error) {
	for _, seed := range m.seeds {
		if seed.CampaignID == campaignID && seed.DedupeKey == dedupeKey {
			return seed, nil
		}
	}
	return nil, nil
}

func (m *mockCampaignStore) ListSeedsByCampaignID(ctx context.Context, campaignID uint64) ([]*fuzzmodel.Seed, error) {
	var result []*fuzzmodel.Seed
	for _, seed := range m.seeds {
		if seed.CampaignID == campaignID {
			result = append(result, seed)
		}
	}
	return result, nil
}

func (m *mockCampaignStore) CreateCoverageSignal(ctx context.Context, signal *fuzzmodel.CoverageSignal) error {
	signal.ID = uint64(len(m.coverage) + 1)
	m.coverage = append(m.coverage, signal)
	return nil
}

func (m *mockCampaignStore) ListCoverageByCampaignID(ctx context.Context, campaignID uint64) ([]*fuzzmodel.CoverageSignal, error) {
	var result []*fuzzmodel.CoverageSignal
	for _, signal := range m.coverage {
		if signal.CampaignID == campaignID {
			result = append(result, signal)
		}
	}
	return result, nil
}

// mockCrashStore 内存实现的崩溃存储
type mockCrashStore struct {
	crashes []*fuzzmodel.CrashReport
}

func (m *mockCrashStore) GetByCampaignAndSignature(ctx context.Context, campaignID uint64, signature string) (*fuzzmodel.CrashReport, error) {
	for _, crash := range m.crashes {
		if crash.CampaignID != nil && *crash.CampaignID == campaignID && crash.Signature == signature {
			return crash, nil
		}
	}
	return nil, nil
}

func (m *mockCrashStore) CreateCrash(ctx context.Context, crash *fuzzmodel.CrashReport) error {
	crash.ID = uint64(len(m.crashes) + 1)
	m.crashes = append(m.crashes, crash)
	return nil
}

func (m *mockCrashStore) UpdateCrash(ctx context.Context, crash *fuzzmodel.CrashReport) error {
	for i, existing := range m.crashes {
		if existing.ID == crash.ID {
			m.crashes[i] = crash
			return nil
		}
	}
	return fmt.Errorf("crash %d not found", crash.ID)
}

func (m *mockCrashStore) ListByCampaignID(ctx context.Context, campaignID uint64) ([]*fuzzmodel.CrashReport, error) {
	var result []*fuzzmodel.CrashReport
	for _, crash := range m.crashes {
		if crash.CampaignID != nil && *crash.CampaignID == campaignID {
			result = append(result, crash)
		}
	}
	return result, nil
}

// mockScanReader 按固定映射返回扫描记录
type mockScanReader struct {
	scans map[uint64]*scanmodel.Scan
}

func (m *mockScanReader) GetScanByID(ctx context.Context, id uint64) (*scanmodel.Scan, error) {
	return m.scans[id], nil
}

func newTestMonitor() (*Monitor, *mockCampaignStore, *mockCrashStore) {
	campaigns := newMockCampaignStore()
	crashes := &mockCrashStore{}
	return NewMonitor(campaigns, crashes, nil), campaigns, crashes
}

func newRunningCampaign(t *testing.T, monitor *Monitor) *fuzzmodel.Campaign {
	t.Helper()
	ctx := context.Background()
	campaign, err := monitor.CreateCampaign(ctx, &fuzzmodel.CreateCampaignRequest{
		Name:     "vault-fuzz",
		Target:   "contracts/Vault.sol",
		Strategy: "coverage-guided",
	})
	require.NoError(t, err)
	campaign, err = monitor.Transition(ctx, campaign.ID, fuzzmodel.CampaignStatusRunning)
	require.NoError(t, err)
	return campaign
}

func TestCreateCampaign(t *testing.T) {
	monitor, _, _ := newTestMonitor()
	ctx := context.Background()

	campaign, err := monitor.CreateCampaign(ctx, &fuzzmodel.CreateCampaignRequest{
		Name:   "vault-fuzz",
		Target: "contracts/Vault.sol",
	})
	require.NoError(t, err)
	assert.Equal(t, fuzzmodel.CampaignStatusPending, campaign.Status)
	metrics := campaign.GetMetrics()
	assert.Zero(t, metrics.Crashes)
	assert.Zero(t, metrics.Seeds)
	assert.NotNil(t, metrics.CoveredEdges)

	// 重名拒绝
	_, err = monitor.CreateCampaign(ctx, &fuzzmodel.CreateCampaignRequest{
		Name:   "vault-fuzz",
		Target: "contracts/Other.sol",
	})
	assert.True(t, system.IsValidationError(err))
}

func TestBootstrapFromScan(t *testing.T) {
	campaigns := newMockCampaignStore()
	crashes := &mockCrashStore{}
	scans := &mockScanReader{scans: map[uint64]*scanmodel.Scan{
		42: {ProjectID: 1, Target: "contracts/Token.sol", Status: scanmodel.ScanStatusSuccess},
	}}
	monitor := NewMonitor(campaigns, crashes, scans)
	ctx := context.Background()

	campaign, err := monitor.BootstrapFromScan(ctx, 42, "")
	require.NoError(t, err)
	assert.Equal(t, "scan-42-campaign", campaign.Name)
	assert.Equal(t, "contracts/Token.sol", campaign.Target)
	assert.Equal(t, "coverage-guided", campaign.Strategy)

	// 扫描不存在
	_, err = monitor.BootstrapFromScan(ctx, 99, "")
	assert.True(t, system.IsNotFoundError(err))

	// 未注入扫描读取器时拒绝
	detached := NewMonitor(campaigns, crashes, nil)
	_, err = detached.BootstrapFromScan(ctx, 42, "")
	assert.True(t, system.IsValidationError(err))
}

func TestCampaignTransitions(t *testing.T) {
	monitor, _, _ := newTestMonitor()
	ctx := context.Background()

	campaign, err := monitor.CreateCampaign(ctx, &fuzzmodel.CreateCampaignRequest{
		Name:   "lifecycle",
		Target: "contracts/Vault.sol",
	})
	require.NoError(t, err)

	// PENDING -> RUNNING -> PAUSED -> RUNNING -> COMPLETED 合法路径
	for _, target := range []fuzzmodel.CampaignStatus{
		fuzzmodel.CampaignStatusRunning,
		fuzzmodel.CampaignStatusPaused,
		fuzzmodel.CampaignStatusRunning,
		fuzzmodel.CampaignStatusCompleted,
	} {
		campaign, err = monitor.Transition(ctx, campaign.ID, target)
		require.NoError(t, err)
		assert.Equal(t, target, campaign.Status)
	}

	// 终态不再接受任何转换
	_, err = monitor.Transition(ctx, campaign.ID, fuzzmodel.CampaignStatusRunning)
	assert.True(t, system.IsAggregateStateConflictError(err))
}

func TestTransitionRejectsIllegalJump(t *testing.T) {
	monitor, _, _ := newTestMonitor()
	ctx := context.Background()

	campaign, err := monitor.CreateCampaign(ctx, &fuzzmodel.CreateCampaignRequest{
		Name:   "illegal",
		Target: "contracts/Vault.sol",
	})
	require.NoError(t, err)

	// PENDING不能直接COMPLETED
	_, err = monitor.Transition(ctx, campaign.ID, fuzzmodel.CampaignStatusCompleted)
	assert.True(t, system.IsAggregateStateConflictError(err))

	// 不存在的活动
	_, err = monitor.Transition(ctx, 999, fuzzmodel.CampaignStatusRunning)
	assert.True(t, system.IsNotFoundError(err))
}

func TestAddSeedDeduplication(t *testing.T) {
	monitor, campaigns, _ := newTestMonitor()
	ctx := context.Background()
	campaign := newRunningCampaign(t, monitor)

	first, err := monitor.AddSeed(ctx, campaign.ID, &fuzzmodel.AddSeedRequest{
		Source:    "manual",
		DedupeKey: "sha1:abc",
	})
	require.NoError(t, err)

	// 相同去重键幂等返回已有记录，种子计数不变
	second, err := monitor.AddSeed(ctx, campaign.ID, &fuzzmodel.AddSeedRequest{
		Source:    "honggfuzz",
		DedupeKey: "sha1:abc",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, campaigns.seeds, 1)

	stored, err := campaigns.GetCampaignByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.GetMetrics().Seeds)
}

func TestAddSeedRejectedWhenNotRunning(t *testing.T) {
	monitor, _, _ := newTestMonitor()
	ctx := context.Background()
	campaign := newRunningCampaign(t, monitor)

	_, err := monitor.Transition(ctx, campaign.ID, fuzzmodel.CampaignStatusPaused)
	require.NoError(t, err)

	_, err = monitor.AddSeed(ctx, campaign.ID, &fuzzmodel.AddSeedRequest{DedupeKey: "sha1:xyz"})
	assert.True(t, system.IsAggregateStateConflictError(err))
}

func TestAddCoverageMonotonic(t *testing.T) {
	monitor, campaigns, _ := newTestMonitor()
	ctx := context.Background()
	campaign := newRunningCampaign(t, monitor)

	// 覆盖率指标只记录历史最大值，回落不生效
	for _, edges := range []int64{10, 7, 15} {
		_, err := monitor.AddCoverage(ctx, campaign.ID, &fuzzmodel.AddCoverageRequest{
			RunIdentifier: "run-1",
			CoveredEdges:  edges,
		})
		require.NoError(t, err)
	}

	stored, err := campaigns.GetCampaignByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15), stored.GetMetrics().CoveredEdges["run-1"])

	// 原始信号全部保留
	signals, err := campaigns.ListCoverageByCampaignID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Len(t, signals, 3)

	// 运行实例标识缺省为default
	_, err = monitor.AddCoverage(ctx, campaign.ID, &fuzzmodel.AddCoverageRequest{CoveredEdges: 3})
	require.NoError(t, err)
	stored, err = campaigns.GetCampaignByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.GetMetrics().CoveredEdges["default"])
}

func TestReportCrashDeduplication(t *testing.T) {
	monitor, campaigns, crashes := newTestMonitor()
	ctx := context.Background()
	campaign := newRunningCampaign(t, monitor)

	first, err := monitor.ReportCrash(ctx, campaign.ID, &fuzzmodel.ReportCrashRequest{
		Signature:      "assert-failure-0x01",
		InputReference: "corpus/input-1",
	})
	require.NoError(t, err)
	assert.Equal(t, fuzzmodel.CrashStatusUntriaged, first.Status)
	assert.Equal(t, int64(1), first.Occurrences)

	// 相同签名累加计数并更新证据字段
	second, err := monitor.ReportCrash(ctx, campaign.ID, &fuzzmodel.ReportCrashRequest{
		Signature:  "assert-failure-0x01",
		Stacktrace: "at Vault.withdraw",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(2), second.Occurrences)
	assert.Equal(t, "corpus/input-1", second.InputReference)
	assert.Equal(t, "at Vault.withdraw", second.Stacktrace)
	assert.Len(t, crashes.crashes, 1)

	// 指标中的崩溃数为去重后数量
	stored, err := campaigns.GetCampaignByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.GetMetrics().Crashes)

	// 不同签名独立登记
	_, err = monitor.ReportCrash(ctx, campaign.ID, &fuzzmodel.ReportCrashRequest{
		Signature: "overflow-0x02",
	})
	require.NoError(t, err)
	assert.Len(t, crashes.crashes, 2)
}

func TestGetCampaignDetail(t *testing.T) {
	monitor, _, _ := newTestMonitor()
	ctx := context.Background()
	campaign := newRunningCampaign(t, monitor)

	_, err := monitor.AddSeed(ctx, campaign.ID, &fuzzmodel.AddSeedRequest{DedupeKey: "sha1:seed"})
	require.NoError(t, err)
	_, err = monitor.AddCoverage(ctx, campaign.ID, &fuzzmodel.AddCoverageRequest{CoveredEdges: 8})
	require.NoError(t, err)
	_, err = monitor.ReportCrash(ctx, campaign.ID, &fuzzmodel.ReportCrashRequest{Signature: "sig-1"})
	require.NoError(t, err)

	detail, err := monitor.GetCampaignDetail(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, campaign.ID, detail.Campaign.ID)
	assert.Len(t, detail.Seeds, 1)
	assert.Len(t, detail.Coverage, 1)
	assert.Len(t, detail.Crashes, 1)
	assert.Equal(t, int64(1), detail.Metrics.Seeds)
	assert.Equal(t, int64(8), detail.Metrics.CoveredEdges["default"])

	_, err = monitor.GetCampaignDetail(ctx, 777)
	assert.True(t, system.IsNotFoundError(err))
}

func TestListCampaignsFiltersByStatus(t *testing.T) {
	monitor, _, _ := newTestMonitor()
	ctx := context.Background()

	pending, err := monitor.CreateCampaign(ctx, &fuzzmodel.CreateCampaignRequest{
		Name:   "pending-one",
		Target: "contracts/Vault.sol",
	})
	require.NoError(t, err)

	running, err := monitor.CreateCampaign(ctx, &fuzzmodel.CreateCampaignRequest{
		Name:   "running-one",
		Target: "contracts/Token.sol",
	})
	require.NoError(t, err)
	_, err = monitor.Transition(ctx, running.ID, fuzzmodel.CampaignStatusRunning)
	require.NoError(t, err)

	// 不过滤时返回全部
	all, total, err := monitor.ListCampaigns(ctx, 1, 20, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	// 按状态过滤只返回匹配的活动
	filtered, total, err := monitor.ListCampaigns(ctx, 1, 20, string(fuzzmodel.CampaignStatusPending))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, filtered, 1)
	assert.Equal(t, pending.ID, filtered[0].ID)

	// 非法分页参数回落到默认值
	_, _, err = monitor.ListCampaigns(ctx, 0, 0, "")
	require.NoError(t, err)
}
