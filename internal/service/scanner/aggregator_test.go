package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fuzzmodel "chainscan/internal/model/fuzz"
	scanmodel "chainscan/internal/model/scan"
)

// mockFindingStore 内存实现的发现存储
type mockFindingStore struct {
	mu       sync.Mutex
	findings []*scanmodel.Finding
}

func (m *mockFindingStore) CreateFindings(ctx context.Context, findings []*scanmodel.Finding) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range findings {
		f.ID = uint64(len(m.findings) + 1)
		m.findings = append(m.findings, f)
	}
	return nil
}

func (m *mockFindingStore) ListFindingsByScanID(ctx context.Context, scanID uint64) ([]*scanmodel.Finding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*scanmodel.Finding
	for _, f := range m.findings {
		if f.ScanID == scanID {
			result = append(result, f)
		}
	}
	return result, nil
}

func (m *mockFindingStore) CountBySeverity(ctx context.Context, scanID uint64) (scanmodel.SeveritySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	summary := scanmodel.SeveritySummary{}
	for _, f := range m.findings {
		if f.ScanID == scanID {
			summary[f.Severity]++
		}
	}
	return summary, nil
}

// mockScanCrashStore 内存实现的扫描侧崩溃存储
type mockScanCrashStore struct {
	mu      sync.Mutex
	crashes []*fuzzmodel.CrashReport
}

func (m *mockScanCrashStore) GetByScanAndSignature(ctx context.Context, scanID uint64, signature string) (*fuzzmodel.CrashReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, crash := range m.crashes {
		if crash.ScanID != nil && *crash.ScanID == scanID && crash.Signature == signature {
			return crash, nil
		}
	}
	return nil, nil
}

func (m *mockScanCrashStore) CreateCrash(ctx context.Context, crash *fuzzmodel.CrashReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	crash.ID = uint64(len(m.crashes) + 1)
	m.crashes = append(m.crashes, crash)
	return nil
}

func (m *mockScanCrashStore) UpdateCrash(ctx context.Context, crash *fuzzmodel.CrashReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.crashes {
		if existing.ID == crash.ID {
			m.crashes[i] = crash
			return nil
		}
	}
	return errors.New("crash not found")
}

func (m *mockScanCrashStore) ListByScanID(ctx context.Context, scanID uint64) ([]*fuzzmodel.CrashReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*fuzzmodel.CrashReport
	for _, crash := range m.crashes {
		if crash.ScanID != nil && *crash.ScanID == scanID {
			result = append(result, crash)
		}
	}
	return result, nil
}

func (m *mockScanCrashStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.crashes)
}

// mockSummaryCache 内存实现的统计缓存，可注入故障
type mockSummaryCache struct {
	mu        sync.Mutex
	summaries map[uint64]scanmodel.SeveritySummary
	fail      bool
	getCalls  int
	setCalls  int
	incrCalls int
}

func newMockSummaryCache() *mockSummaryCache {
	return &mockSummaryCache{summaries: make(map[uint64]scanmodel.SeveritySummary)}
}

func (m *mockSummaryCache) GetSummary(ctx context.Context, scanID uint64) (scanmodel.SeveritySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.fail {
		return nil, errors.New("cache unavailable")
	}
	summary, ok := m.summaries[scanID]
	if !ok {
		return nil, nil
	}
	copied := scanmodel.SeveritySummary{}
	for k, v := range summary {
		copied[k] = v
	}
	return copied, nil
}

func (m *mockSummaryCache) SetSummary(ctx context.Context, scanID uint64, summary scanmodel.SeveritySummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	if m.fail {
		return errors.New("cache unavailable")
	}
	m.summaries[scanID] = summary
	return nil
}

func (m *mockSummaryCache) IncrSeverity(ctx context.Context, scanID uint64, severity scanmodel.Severity, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrCalls++
	if m.fail {
		return errors.New("cache unavailable")
	}
	// 与Redis实现一致：统计键不存在时增量不落，等待读取回源重建
	summary, ok := m.summaries[scanID]
	if !ok {
		return nil
	}
	summary[severity] += delta
	return nil
}

func (m *mockSummaryCache) DeleteSummary(ctx context.Context, scanID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.summaries, scanID)
	return nil
}

func TestIngestFindingsNormalizesSeverity(t *testing.T) {
	findings := &mockFindingStore{}
	crashes := &mockScanCrashStore{}
	agg := NewAggregator(findings, crashes, nil)
	ctx := context.Background()

	err := agg.IngestFindings(ctx, 1, []scanmodel.NormalizedFinding{
		{Tool: "slither", Title: "reentrancy", Severity: scanmodel.SeverityHigh},
		{Tool: "slither", Title: "weird", Severity: scanmodel.Severity("BOGUS")},
	})
	require.NoError(t, err)

	rows, err := findings.ListFindingsByScanID(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// 非法严重级别落库前归为INFO
	assert.Equal(t, scanmodel.SeverityHigh, rows[0].Severity)
	assert.Equal(t, scanmodel.SeverityInfo, rows[1].Severity)
}

func TestIngestFindingsWritesThroughCache(t *testing.T) {
	findings := &mockFindingStore{}
	crashes := &mockScanCrashStore{}
	cache := newMockSummaryCache()
	agg := NewAggregator(findings, crashes, cache)
	ctx := context.Background()

	err := agg.IngestFindings(ctx, 7, []scanmodel.NormalizedFinding{
		{Tool: "slither", Title: "a", Severity: scanmodel.SeverityHigh},
		{Tool: "slither", Title: "b", Severity: scanmodel.SeverityHigh},
		{Tool: "mythril", Title: "c", Severity: scanmodel.SeverityLow},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, cache.incrCalls)

	// 首次读取回源重新统计并回填缓存
	summary, err := agg.GetSummary(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary[scanmodel.SeverityHigh])
	assert.Equal(t, int64(1), summary[scanmodel.SeverityLow])
	assert.Equal(t, int64(3), summary.Total())
	assert.Equal(t, 1, cache.setCalls)

	// 缓存键已存在，后续落库增量写穿，读取命中缓存不再回源
	require.NoError(t, agg.IngestFindings(ctx, 7, []scanmodel.NormalizedFinding{
		{Tool: "echidna", Title: "d", Severity: scanmodel.SeverityHigh},
	}))
	summary, err = agg.GetSummary(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary[scanmodel.SeverityHigh])
	assert.Equal(t, int64(4), summary.Total())
	assert.Equal(t, 1, cache.setCalls)
}

func TestSummaryExpiryDoesNotServePartialCounts(t *testing.T) {
	findings := &mockFindingStore{}
	crashes := &mockScanCrashStore{}
	cache := newMockSummaryCache()
	agg := NewAggregator(findings, crashes, cache)
	ctx := context.Background()

	require.NoError(t, agg.IngestFindings(ctx, 9, []scanmodel.NormalizedFinding{
		{Tool: "slither", Title: "a", Severity: scanmodel.SeverityHigh},
		{Tool: "slither", Title: "b", Severity: scanmodel.SeverityMedium},
	}))
	_, err := agg.GetSummary(ctx, 9)
	require.NoError(t, err)

	// 统计键过期后，后续增量不得重建出只含增量的残缺统计
	require.NoError(t, cache.DeleteSummary(ctx, 9))
	require.NoError(t, agg.IngestFindings(ctx, 9, []scanmodel.NormalizedFinding{
		{Tool: "mythril", Title: "c", Severity: scanmodel.SeverityHigh},
	}))

	summary, err := agg.GetSummary(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary[scanmodel.SeverityHigh])
	assert.Equal(t, int64(1), summary[scanmodel.SeverityMedium])
	assert.Equal(t, int64(3), summary.Total())
}

func TestGetSummaryRecountsOnCacheMiss(t *testing.T) {
	findings := &mockFindingStore{}
	crashes := &mockScanCrashStore{}
	cache := newMockSummaryCache()
	agg := NewAggregator(findings, crashes, cache)
	ctx := context.Background()

	require.NoError(t, findings.CreateFindings(ctx, []*scanmodel.Finding{
		{ScanID: 3, Tool: "slither", Title: "a", Severity: scanmodel.SeverityCritical},
		{ScanID: 3, Tool: "slither", Title: "b", Severity: scanmodel.SeverityInfo},
		{ScanID: 99, Tool: "slither", Title: "other", Severity: scanmodel.SeverityHigh},
	}))

	summary, err := agg.GetSummary(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary[scanmodel.SeverityCritical])
	assert.Equal(t, int64(1), summary[scanmodel.SeverityInfo])
	assert.Equal(t, int64(2), summary.Total())
	// 回源后回填缓存
	assert.Equal(t, 1, cache.setCalls)

	// 第二次读取命中缓存
	_, err = agg.GetSummary(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.setCalls)
}

func TestGetSummarySurvivesCacheOutage(t *testing.T) {
	findings := &mockFindingStore{}
	crashes := &mockScanCrashStore{}
	cache := newMockSummaryCache()
	cache.fail = true
	agg := NewAggregator(findings, crashes, cache)
	ctx := context.Background()

	require.NoError(t, findings.CreateFindings(ctx, []*scanmodel.Finding{
		{ScanID: 5, Tool: "slither", Title: "a", Severity: scanmodel.SeverityMedium},
	}))

	// 缓存不可用时统计仍可从发现表重建
	summary, err := agg.GetSummary(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary[scanmodel.SeverityMedium])
}

func TestIngestCrashCategoriesDeduplicated(t *testing.T) {
	findings := &mockFindingStore{}
	crashes := &mockScanCrashStore{}
	agg := NewAggregator(findings, crashes, nil)
	ctx := context.Background()

	violation := scanmodel.NormalizedFinding{
		Tool:        "state-fuzzer",
		Title:       "Invariant violated: solvency",
		Description: "vault drained",
		Severity:    scanmodel.SeverityHigh,
		Category:    "state-invariant",
	}
	plain := scanmodel.NormalizedFinding{
		Tool:     "slither",
		Title:    "naming convention",
		Severity: scanmodel.SeverityInfo,
		Category: "style",
	}

	require.NoError(t, agg.IngestFindings(ctx, 2, []scanmodel.NormalizedFinding{violation, plain}))
	// 只有崩溃类分类登记为崩溃
	assert.Equal(t, 1, crashes.count())

	// 同一(扫描,签名)重复出现累加计数
	require.NoError(t, agg.IngestFindings(ctx, 2, []scanmodel.NormalizedFinding{violation}))
	assert.Equal(t, 1, crashes.count())

	stored, err := crashes.GetByScanAndSignature(ctx, 2, CrashSignature(violation.Tool, violation.Title, violation.Function))
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, int64(2), stored.Occurrences)
	assert.Equal(t, fuzzmodel.CrashStatusUntriaged, stored.Status)

	// 不同扫描的相同签名互不影响
	require.NoError(t, agg.IngestFindings(ctx, 8, []scanmodel.NormalizedFinding{violation}))
	assert.Equal(t, 2, crashes.count())
}

func TestCrashSignatureStable(t *testing.T) {
	a := CrashSignature("echidna", "property violated: balance", "withdraw")
	b := CrashSignature("echidna", "property violated: balance", "withdraw")
	c := CrashSignature("echidna", "property violated: balance", "deposit")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestIngestFindingsEmptyIsNoop(t *testing.T) {
	findings := &mockFindingStore{}
	agg := NewAggregator(findings, &mockScanCrashStore{}, nil)
	require.NoError(t, agg.IngestFindings(context.Background(), 1, nil))
	assert.Empty(t, findings.findings)
}
