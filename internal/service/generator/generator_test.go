package generator

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scanmodel "chainscan/internal/model/scan"
)

// mockQuickScanner 记录收到的快速扫描请求
type mockQuickScanner struct {
	req *scanmodel.QuickScanRequest
	err error
}

func (m *mockQuickScanner) QuickScan(ctx context.Context, req *scanmodel.QuickScanRequest) (*scanmodel.Project, *scanmodel.Scan, error) {
	m.req = req
	if m.err != nil {
		return nil, nil, m.err
	}
	project := &scanmodel.Project{Name: req.Project.Name, Path: req.Project.Path}
	project.ID = 11
	scanRecord := &scanmodel.Scan{ProjectID: project.ID, Target: req.Target, Status: scanmodel.ScanStatusQueued}
	scanRecord.ID = 21
	return project, scanRecord, nil
}

func TestGenerateContract(t *testing.T) {
	svc := NewService(&mockQuickScanner{}, t.TempDir())

	contract, err := svc.GenerateContract()
	require.NoError(t, err)

	// 合约名为主题名加8位随机后缀
	known := false
	for _, theme := range themes {
		if strings.HasPrefix(contract.Name, theme.contract) {
			known = true
			assert.Len(t, contract.Name, len(theme.contract)+8)
		}
	}
	assert.True(t, known)

	// 产物落盘且内容完整
	data, err := os.ReadFile(contract.Path)
	require.NoError(t, err)
	assert.Equal(t, contract.Content, string(data))
	assert.Contains(t, contract.Content, "pragma solidity ^0.8.20;")
	assert.Contains(t, contract.Content, "contract "+contract.Name+" {")

	// 重复生成不重名
	other, err := svc.GenerateContract()
	require.NoError(t, err)
	assert.NotEqual(t, contract.Name, other.Name)
}

func TestGenerateAndScan(t *testing.T) {
	scanner := &mockQuickScanner{}
	svc := NewService(scanner, t.TempDir())

	result, err := svc.GenerateAndScan(context.Background())
	require.NoError(t, err)

	// 项目名带Generated前缀并标记生成来源
	require.NotNil(t, scanner.req)
	assert.Equal(t, "Generated "+result.ContractName, scanner.req.Project.Name)
	assert.Equal(t, result.ContractPath, scanner.req.Project.Path)
	assert.Equal(t, result.ContractPath, scanner.req.Target)
	assert.Equal(t, true, scanner.req.Project.Meta["generated"])
	// 工具未指定，由调度器回落到默认工具集
	assert.Empty(t, scanner.req.Tools)

	assert.Equal(t, uint64(11), result.Project.ID)
	assert.Equal(t, uint64(21), result.Scan.ID)
}

func TestGenerateAndScanPropagatesAdmissionError(t *testing.T) {
	scanner := &mockQuickScanner{err: errors.New("scan step: tools invalid")}
	svc := NewService(scanner, t.TempDir())

	_, err := svc.GenerateAndScan(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan step:")
}
