/**
 * 服务:发现聚合器
 * @author: sun977
 * @date: 2025.08.29
 * @description: 工具发现的只追加聚合，维护严重级别统计缓存和崩溃去重
 * @func: Aggregator
 */
package scanner

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	fuzzmodel "chainscan/internal/model/fuzz"
	scanmodel "chainscan/internal/model/scan"
	"chainscan/internal/pkg/logger"
)

// crashCategories 产生崩溃报告的发现分类
// 模糊测试类工具的属性违反和不变量违反同时登记为崩溃
var crashCategories = map[string]bool{
	"property-violation": true,
	"state-invariant":    true,
}

// Aggregator 发现聚合器
// 同一扫描的发现写入由per-scan互斥锁串行化，读取使用快照
type Aggregator struct {
	findings FindingStore
	crashes  CrashStore
	summary  SummaryCache

	mu    sync.Mutex
	locks map[uint64]*sync.Mutex
}

// NewAggregator 创建发现聚合器
// summary可为nil，此时统计直接回源重新统计
func NewAggregator(findings FindingStore, crashes CrashStore, summary SummaryCache) *Aggregator {
	return &Aggregator{
		findings: findings,
		crashes:  crashes,
		summary:  summary,
		locks:    make(map[uint64]*sync.Mutex),
	}
}

// scanLock 获取指定扫描的互斥锁
func (a *Aggregator) scanLock(scanID uint64) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	lock, ok := a.locks[scanID]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[scanID] = lock
	}
	return lock
}

// ReleaseScan 扫描结束后释放锁表条目
func (a *Aggregator) ReleaseScan(scanID uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.locks, scanID)
}

// IngestFindings 落库一个成功工具的归一化发现
// 只追加；统计增量更新并写穿缓存；崩溃类发现同时做去重登记
func (a *Aggregator) IngestFindings(ctx context.Context, scanID uint64, normalized []scanmodel.NormalizedFinding) error {
	if len(normalized) == 0 {
		return nil
	}

	lock := a.scanLock(scanID)
	lock.Lock()
	defer lock.Unlock()

	rows := make([]*scanmodel.Finding, 0, len(normalized))
	for _, nf := range normalized {
		severity := nf.Severity
		if !severity.IsValid() {
			severity = scanmodel.SeverityInfo
		}
		raw := ""
		if nf.Raw != nil {
			if data, err := json.Marshal(nf.Raw); err == nil {
				raw = string(data)
			}
		}
		rows = append(rows, &scanmodel.Finding{
			ScanID:      scanID,
			Tool:        nf.Tool,
			Title:       nf.Title,
			Description: nf.Description,
			Severity:    severity,
			Category:    nf.Category,
			FilePath:    nf.FilePath,
			LineNumber:  nf.LineNumber,
			Function:    nf.Function,
			Raw:         raw,
		})
	}

	if err := a.findings.CreateFindings(ctx, rows); err != nil {
		return fmt.Errorf("ingest findings: %w", err)
	}

	// 统计增量写穿，缓存失败不影响已落库的发现
	if a.summary != nil {
		for _, row := range rows {
			if err := a.summary.IncrSeverity(ctx, scanID, row.Severity, 1); err != nil {
				logger.LogError(err, "incr_severity_cache", map[string]interface{}{
					"layer":   "SERVICE",
					"scan_id": scanID,
				})
				break
			}
		}
	}

	// 崩溃类发现去重登记
	for _, nf := range normalized {
		if !crashCategories[nf.Category] {
			continue
		}
		if err := a.ingestCrashLocked(ctx, scanID, nf); err != nil {
			logger.LogError(err, "ingest_crash", map[string]interface{}{
				"layer":   "SERVICE",
				"scan_id": scanID,
				"tool":    nf.Tool,
			})
		}
	}

	return nil
}

// CrashSignature 计算崩溃签名
// 工具、标题和函数名的组合决定同一性
func CrashSignature(tool, title, function string) string {
	sum := sha1.Sum([]byte(tool + "|" + title + "|" + function))
	return hex.EncodeToString(sum[:])
}

// ingestCrashLocked 登记一条崩溃，调用方必须持有扫描锁
// 相同(扫描,签名)只保留一行，重复出现时更新计数和证据字段
func (a *Aggregator) ingestCrashLocked(ctx context.Context, scanID uint64, nf scanmodel.NormalizedFinding) error {
	signature := CrashSignature(nf.Tool, nf.Title, nf.Function)

	existing, err := a.crashes.GetByScanAndSignature(ctx, scanID, signature)
	if err != nil {
		return err
	}
	if existing != nil {
		existing.Occurrences++
		if nf.Description != "" {
			existing.Stacktrace = nf.Description
		}
		return a.crashes.UpdateCrash(ctx, existing)
	}

	sid := scanID
	return a.crashes.CreateCrash(ctx, &fuzzmodel.CrashReport{
		ScanID:      &sid,
		Signature:   signature,
		Status:      fuzzmodel.CrashStatusUntriaged,
		Stacktrace:  nf.Description,
		Occurrences: 1,
	})
}

// GetSummary 读取扫描的严重级别统计
// 缓存命中直接返回；未命中或缓存不可用时回源重新统计并回填
func (a *Aggregator) GetSummary(ctx context.Context, scanID uint64) (scanmodel.SeveritySummary, error) {
	if a.summary != nil {
		cached, err := a.summary.GetSummary(ctx, scanID)
		if err != nil {
			logger.LogError(err, "get_summary_cache", map[string]interface{}{
				"layer":   "SERVICE",
				"scan_id": scanID,
			})
		} else if cached != nil {
			return cached, nil
		}
	}

	summary, err := a.findings.CountBySeverity(ctx, scanID)
	if err != nil {
		return nil, fmt.Errorf("recount severity summary: %w", err)
	}

	if a.summary != nil {
		if err := a.summary.SetSummary(ctx, scanID, summary); err != nil {
			logger.LogError(err, "set_summary_cache", map[string]interface{}{
				"layer":   "SERVICE",
				"scan_id": scanID,
			})
		}
	}
	return summary, nil
}
