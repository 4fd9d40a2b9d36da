package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scanmodel "chainscan/internal/model/scan"
	"chainscan/internal/model/system"
)

func newTestQuery() (*Query, *mockProjectStore, *mockScanStore, *mockFindingStore, *mockScanCrashStore) {
	projects := newMockProjectStore()
	scans := newMockScanStore()
	findings := &mockFindingStore{}
	crashes := &mockScanCrashStore{}
	aggregator := NewAggregator(findings, crashes, nil)
	return NewQuery(projects, scans, findings, crashes, aggregator), projects, scans, findings, crashes
}

func TestCreateProjectRejectsDuplicateName(t *testing.T) {
	query, _, _, _, _ := newTestQuery()
	ctx := context.Background()

	project, err := query.CreateProject(ctx, &scanmodel.CreateProjectRequest{
		Name: "vault",
		Path: "contracts/Vault.sol",
		Meta: map[string]interface{}{"network": "testnet"},
	})
	require.NoError(t, err)
	assert.NotZero(t, project.ID)
	assert.Equal(t, "testnet", project.GetMeta()["network"])

	_, err = query.CreateProject(ctx, &scanmodel.CreateProjectRequest{
		Name: "vault",
		Path: "contracts/Other.sol",
	})
	assert.ErrorIs(t, err, system.ErrProjectAlreadyExists)
}

func TestDeleteProject(t *testing.T) {
	query, projects, _, _, _ := newTestQuery()
	ctx := context.Background()

	project := &scanmodel.Project{Name: "vault", Path: "contracts/Vault.sol"}
	require.NoError(t, projects.CreateProject(ctx, project))

	require.NoError(t, query.DeleteProject(ctx, project.ID))
	stored, err := projects.GetProjectByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	// 已删除的项目再删报404
	err = query.DeleteProject(ctx, project.ID)
	assert.True(t, system.IsNotFoundError(err))
}

func TestGetScanDetail(t *testing.T) {
	query, _, scans, findings, crashes := newTestQuery()
	ctx := context.Background()

	scanRecord := &scanmodel.Scan{
		ProjectID: 1,
		Target:    "contracts/Vault.sol",
		Status:    scanmodel.ScanStatusSuccess,
		StartedAt: time.Now(),
	}
	require.NoError(t, scanRecord.SetTools([]string{"slither", "echidna"}))
	require.NoError(t, scanRecord.SetTelemetry(map[string]interface{}{"tools_total": 2}))
	runs := []*scanmodel.ToolRun{
		{Tool: "slither", Status: scanmodel.ToolRunStatusSuccess, Attempts: 1},
		{Tool: "echidna", Status: scanmodel.ToolRunStatusSuccess, Attempts: 2},
	}
	require.NoError(t, scans.CreateScanWithRuns(ctx, scanRecord, runs))

	aggregator := NewAggregator(findings, crashes, nil)
	require.NoError(t, aggregator.IngestFindings(ctx, scanRecord.ID, []scanmodel.NormalizedFinding{
		{Tool: "slither", Title: "reentrancy", Severity: scanmodel.SeverityHigh},
		{
			Tool:     "echidna",
			Title:    "Property violated: solvency",
			Severity: scanmodel.SeverityHigh,
			Category: "property-violation",
		},
	}))

	detail, err := query.GetScanDetail(ctx, scanRecord.ID)
	require.NoError(t, err)
	assert.Equal(t, scanRecord.ID, detail.Scan.ID)
	assert.Equal(t, []string{"slither", "echidna"}, detail.Scan.Tools)
	assert.Len(t, detail.ToolRuns, 2)
	assert.Len(t, detail.Findings, 2)
	// 崩溃类发现随详情一并返回
	require.Len(t, detail.CrashReports, 1)
	assert.Equal(t, int64(1), detail.CrashReports[0].Occurrences)
	assert.Equal(t, int64(2), detail.Summary.Total())
	assert.Equal(t, float64(2), detail.Telemetry["tools_total"])

	_, err = query.GetScanDetail(ctx, 999)
	assert.True(t, system.IsNotFoundError(err))
}

func TestListScansFilters(t *testing.T) {
	query, _, scans, _, _ := newTestQuery()
	ctx := context.Background()

	for i, status := range []scanmodel.ScanStatus{scanmodel.ScanStatusSuccess, scanmodel.ScanStatusFailed} {
		scanRecord := &scanmodel.Scan{ProjectID: uint64(i + 1), Target: "contracts/Vault.sol", Status: status, StartedAt: time.Now()}
		require.NoError(t, scans.CreateScanWithRuns(ctx, scanRecord, nil))
	}

	all, total, err := query.ListScans(ctx, &scanmodel.ListScansRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, int64(2), total)

	failed, _, err := query.ListScans(ctx, &scanmodel.ListScansRequest{Status: string(scanmodel.ScanStatusFailed)})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, scanmodel.ScanStatusFailed, failed[0].Status)

	byProject, _, err := query.ListScans(ctx, &scanmodel.ListScansRequest{ProjectID: 1})
	require.NoError(t, err)
	assert.Len(t, byProject, 1)
}

func TestNormalizePage(t *testing.T) {
	page, pageSize := normalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, pageSize)

	page, pageSize = normalizePage(3, 500)
	assert.Equal(t, 3, page)
	assert.Equal(t, 20, pageSize)

	page, pageSize = normalizePage(2, 50)
	assert.Equal(t, 2, page)
	assert.Equal(t, 50, pageSize)
}
