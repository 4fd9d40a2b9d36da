package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainscan/internal/adapter"
	"chainscan/internal/config"
	scanmodel "chainscan/internal/model/scan"
	"chainscan/internal/model/system"
)

// mockScanStore 内存实现的扫描存储，并发安全
type mockScanStore struct {
	mu     sync.Mutex
	nextID uint64
	scans  map[uint64]*scanmodel.Scan
	runs   map[uint64]*scanmodel.ToolRun
}

func newMockScanStore() *mockScanStore {
	return &mockScanStore{
		scans: make(map[uint64]*scanmodel.Scan),
		runs:  make(map[uint64]*scanmodel.ToolRun),
	}
}

func (m *mockScanStore) CreateScanWithRuns(ctx context.Context, s *scanmodel.Scan, runs []*scanmodel.ToolRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	copied := *s
	m.scans[s.ID] = &copied
	for _, run := range runs {
		m.nextID++
		run.ID = m.nextID
		run.ScanID = s.ID
		copiedRun := *run
		m.runs[run.ID] = &copiedRun
	}
	return nil
}

func (m *mockScanStore) GetScanByID(ctx context.Context, id uint64) (*scanmodel.Scan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scans[id]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (m *mockScanStore) UpdateScanStatus(ctx context.Context, id uint64, status scanmodel.ScanStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scans[id]
	if !ok {
		return fmt.Errorf("scan %d not found", id)
	}
	s.Status = status
	return nil
}

func (m *mockScanStore) FinalizeScan(ctx context.Context, id uint64, status scanmodel.ScanStatus, finishedAt time.Time, logs, telemetry string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scans[id]
	if !ok {
		return fmt.Errorf("scan %d not found", id)
	}
	s.Status = status
	s.FinishedAt = &finishedAt
	s.Logs = logs
	s.Telemetry = telemetry
	return nil
}

func (m *mockScanStore) ListScans(ctx context.Context, page, pageSize int, projectID uint64, status string) ([]*scanmodel.Scan, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*scanmodel.Scan
	for _, s := range m.scans {
		if projectID != 0 && s.ProjectID != projectID {
			continue
		}
		if status != "" && string(s.Status) != status {
			continue
		}
		copied := *s
		result = append(result, &copied)
	}
	return result, int64(len(result)), nil
}

func (m *mockScanStore) GetToolRunsByScanID(ctx context.Context, scanID uint64) ([]*scanmodel.ToolRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*scanmodel.ToolRun
	for _, run := range m.runs {
		if run.ScanID == scanID {
			copied := *run
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *mockScanStore) UpdateToolRun(ctx context.Context, run *scanmodel.ToolRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *run
	m.runs[run.ID] = &copied
	return nil
}

func (m *mockScanStore) getRun(id uint64) *scanmodel.ToolRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *m.runs[id]
	return &copied
}

// fakeAdapter 按调用次数脚本化返回执行结果
type fakeAdapter struct {
	name    string
	mu      sync.Mutex
	calls   int
	execute func(ctx context.Context, call int) (*adapter.ExecResult, error)
	parse   func(raw string) ([]scanmodel.NormalizedFinding, error)
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Execute(ctx context.Context, target string, cfg config.ToolConfig) (*adapter.ExecResult, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.execute(ctx, call)
}

func (f *fakeAdapter) Parse(raw string) ([]scanmodel.NormalizedFinding, error) {
	if f.parse != nil {
		return f.parse(raw)
	}
	return nil, nil
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func okResult() (*adapter.ExecResult, error) {
	return &adapter.ExecResult{ExitCode: 0, Stdout: "{}", Duration: time.Millisecond}, nil
}

func failResult() (*adapter.ExecResult, error) {
	return &adapter.ExecResult{ExitCode: 1, Stderr: "boom", Duration: time.Millisecond}, nil
}

func testScannerConfig() *config.ScannerConfig {
	return &config.ScannerConfig{
		MaxAttempts:    3,
		DefaultTimeout: time.Second,
		BackoffBase:    time.Millisecond,
		BackoffMax:     2 * time.Millisecond,
	}
}

func newSupervisorEnv(adapters ...adapter.ToolAdapter) (*Supervisor, *mockScanStore, *adapter.Registry) {
	registry := adapter.NewRegistry()
	for _, a := range adapters {
		registry.Register(a)
	}
	store := newMockScanStore()
	return NewSupervisor(registry, store, testScannerConfig()), store, registry
}

func seedRun(t *testing.T, store *mockScanStore, tool string) *scanmodel.ToolRun {
	t.Helper()
	scanRecord := &scanmodel.Scan{ProjectID: 1, Target: "contracts/Vault.sol", Status: scanmodel.ScanStatusRunning}
	run := &scanmodel.ToolRun{Tool: tool, Status: scanmodel.ToolRunStatusPending}
	require.NoError(t, store.CreateScanWithRuns(context.Background(), scanRecord, []*scanmodel.ToolRun{run}))
	return run
}

func TestSupervisorFirstAttemptSuccess(t *testing.T) {
	tool := &fakeAdapter{
		name:    "slither",
		execute: func(ctx context.Context, call int) (*adapter.ExecResult, error) { return okResult() },
		parse: func(raw string) ([]scanmodel.NormalizedFinding, error) {
			return []scanmodel.NormalizedFinding{
				{Tool: "slither", Title: "reentrancy", Severity: scanmodel.SeverityHigh},
			}, nil
		},
	}
	sv, store, _ := newSupervisorEnv(tool)
	run := seedRun(t, store, "slither")

	events := make(chan CompletionEvent, 1)
	sv.Run(context.Background(), run, "contracts/Vault.sol", events)

	event := <-events
	assert.Equal(t, scanmodel.ToolRunStatusSuccess, event.Status)
	assert.Len(t, event.Findings, 1)
	assert.Equal(t, 1, tool.callCount())

	stored := store.getRun(run.ID)
	assert.Equal(t, scanmodel.ToolRunStatusSuccess, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.Empty(t, stored.Error)
	assert.Len(t, stored.GetArtifacts(), 1)
}

func TestSupervisorRetriesThenSucceeds(t *testing.T) {
	tool := &fakeAdapter{
		name: "mythril",
		execute: func(ctx context.Context, call int) (*adapter.ExecResult, error) {
			if call == 1 {
				return failResult()
			}
			return okResult()
		},
	}
	sv, store, _ := newSupervisorEnv(tool)
	run := seedRun(t, store, "mythril")

	events := make(chan CompletionEvent, 1)
	sv.Run(context.Background(), run, "contracts/Vault.sol", events)

	event := <-events
	assert.Equal(t, scanmodel.ToolRunStatusSuccess, event.Status)
	assert.Equal(t, 2, tool.callCount())

	stored := store.getRun(run.ID)
	assert.Equal(t, 2, stored.Attempts)
	assert.Len(t, stored.GetArtifacts(), 2)
}

func TestSupervisorAttemptsExhausted(t *testing.T) {
	tool := &fakeAdapter{
		name:    "slither",
		execute: func(ctx context.Context, call int) (*adapter.ExecResult, error) { return failResult() },
	}
	sv, store, _ := newSupervisorEnv(tool)
	run := seedRun(t, store, "slither")

	events := make(chan CompletionEvent, 1)
	sv.Run(context.Background(), run, "contracts/Vault.sol", events)

	event := <-events
	assert.Equal(t, scanmodel.ToolRunStatusFailed, event.Status)
	assert.Equal(t, 3, tool.callCount())

	stored := store.getRun(run.ID)
	assert.Equal(t, scanmodel.ToolRunStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, system.ErrAttemptsExhausted.Error())
}

func TestSupervisorPerToolMaxAttempts(t *testing.T) {
	tool := &fakeAdapter{
		name:    "manticore",
		execute: func(ctx context.Context, call int) (*adapter.ExecResult, error) { return failResult() },
	}
	registry := adapter.NewRegistry()
	registry.Register(tool)
	store := newMockScanStore()
	cfg := testScannerConfig()
	cfg.Tools = map[string]config.ToolConfig{
		"manticore": {MaxAttempts: 2},
	}
	sv := NewSupervisor(registry, store, cfg)
	run := seedRun(t, store, "manticore")

	events := make(chan CompletionEvent, 1)
	sv.Run(context.Background(), run, "contracts/Vault.sol", events)

	<-events
	// 工具级配置覆盖全局重试次数
	assert.Equal(t, 2, tool.callCount())
}

func TestSupervisorParseFailureConsumesAttempt(t *testing.T) {
	tool := &fakeAdapter{
		name:    "slither",
		execute: func(ctx context.Context, call int) (*adapter.ExecResult, error) { return okResult() },
		parse: func(raw string) ([]scanmodel.NormalizedFinding, error) {
			return nil, fmt.Errorf("%w: bad json", system.ErrUnparsableOutput)
		},
	}
	sv, store, _ := newSupervisorEnv(tool)
	run := seedRun(t, store, "slither")

	events := make(chan CompletionEvent, 1)
	sv.Run(context.Background(), run, "contracts/Vault.sol", events)

	event := <-events
	assert.Equal(t, scanmodel.ToolRunStatusFailed, event.Status)
	// 解析失败与非零退出同样消耗尝试次数
	assert.Equal(t, 3, tool.callCount())

	stored := store.getRun(run.ID)
	assert.Contains(t, stored.Error, system.ErrUnparsableOutput.Error())
}

func TestSupervisorUnknownTool(t *testing.T) {
	sv, store, _ := newSupervisorEnv()
	run := seedRun(t, store, "nonexistent")

	events := make(chan CompletionEvent, 1)
	sv.Run(context.Background(), run, "contracts/Vault.sol", events)

	event := <-events
	assert.Equal(t, scanmodel.ToolRunStatusFailed, event.Status)

	stored := store.getRun(run.ID)
	assert.True(t, strings.Contains(stored.Error, system.ErrUnknownTool.Error()))
}

func TestSupervisorCancellation(t *testing.T) {
	started := make(chan struct{})
	tool := &fakeAdapter{
		name: "echidna",
		execute: func(ctx context.Context, call int) (*adapter.ExecResult, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	sv, store, _ := newSupervisorEnv(tool)
	run := seedRun(t, store, "echidna")

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan CompletionEvent, 1)
	go sv.Run(ctx, run, "contracts/Vault.sol", events)

	<-started
	cancel()

	select {
	case event := <-events:
		assert.Equal(t, scanmodel.ToolRunStatusFailed, event.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("no completion event after cancellation")
	}

	// 取消立即终止，不再重试
	assert.Equal(t, 1, tool.callCount())
	stored := store.getRun(run.ID)
	assert.Equal(t, system.ErrScanCancelled.Error(), stored.Error)
}

func TestSupervisorExecuteErrorWrapped(t *testing.T) {
	tool := &fakeAdapter{
		name: "foundry",
		execute: func(ctx context.Context, call int) (*adapter.ExecResult, error) {
			return nil, errors.New("executable not found")
		},
	}
	sv, store, _ := newSupervisorEnv(tool)
	run := seedRun(t, store, "foundry")

	events := make(chan CompletionEvent, 1)
	sv.Run(context.Background(), run, "contracts/Vault.sol", events)

	event := <-events
	assert.Equal(t, scanmodel.ToolRunStatusFailed, event.Status)

	stored := store.getRun(run.ID)
	artifacts := stored.GetArtifacts()
	require.NotEmpty(t, artifacts)
	assert.Equal(t, -1, artifacts[0].ExitCode)
	assert.Contains(t, artifacts[0].Error, "executable not found")
}
