/**
 * 服务:报告导出器
 * @author: sun977
 * @date: 2025.08.29
 * @description: 扫描结果的JSON和SARIF 2.1.0导出，活动结果的JSON导出；
 *               进行中的扫描同样可导出当时的部分结果
 * @func: Exporter
 */
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	fuzzmodel "chainscan/internal/model/fuzz"
	scanmodel "chainscan/internal/model/scan"
	"chainscan/internal/model/system"
)

const (
	sarifVersion   = "2.1.0"
	sarifSchemaURI = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	driverName     = "chainscan"
	driverVersion  = "1.0.0"
)

// ScanSource 扫描数据读取契约
type ScanSource interface {
	GetScanByID(ctx context.Context, id uint64) (*scanmodel.Scan, error)
	GetToolRunsByScanID(ctx context.Context, scanID uint64) ([]*scanmodel.ToolRun, error)
}

// FindingSource 发现数据读取契约
type FindingSource interface {
	ListFindingsByScanID(ctx context.Context, scanID uint64) ([]*scanmodel.Finding, error)
	CountBySeverity(ctx context.Context, scanID uint64) (scanmodel.SeveritySummary, error)
}

// CampaignSource 活动数据读取契约
type CampaignSource interface {
	GetCampaignDetail(ctx context.Context, campaignID uint64) (*fuzzmodel.CampaignDetailResponse, error)
}

// Exporter 报告导出器
type Exporter struct {
	scans     ScanSource
	findings  FindingSource
	campaigns CampaignSource
}

// NewExporter 创建报告导出器
// campaigns可为nil，此时不支持活动导出
func NewExporter(scans ScanSource, findings FindingSource, campaigns CampaignSource) *Exporter {
	return &Exporter{
		scans:     scans,
		findings:  findings,
		campaigns: campaigns,
	}
}

// ScanReport 扫描JSON报告结构
type ScanReport struct {
	ScanID      uint64                    `json:"scan_id"`
	ProjectID   uint64                    `json:"project_id"`
	Target      string                    `json:"target"`
	Status      scanmodel.ScanStatus      `json:"status"`
	StartedAt   string                    `json:"started_at"`
	FinishedAt  string                    `json:"finished_at,omitempty"`
	Tools       []ToolReport              `json:"tools"`
	Findings    []*scanmodel.Finding      `json:"findings"`
	Summary     scanmodel.SeveritySummary `json:"summary"`
	GeneratedAt string                    `json:"generated_at"`
}

// ToolReport 单个工具的执行摘要
type ToolReport struct {
	Tool       string                  `json:"tool"`
	Status     scanmodel.ToolRunStatus `json:"status"`
	Attempts   int                     `json:"attempts"`
	ExitCode   *int                    `json:"exit_code,omitempty"`
	DurationMs int64                   `json:"duration_ms"`
	Error      string                  `json:"error,omitempty"`
}

// ExportScanJSON 导出扫描的JSON报告
func (e *Exporter) ExportScanJSON(ctx context.Context, scanID uint64) (*ScanReport, error) {
	scanRecord, runs, findings, summary, err := e.loadScan(ctx, scanID)
	if err != nil {
		return nil, err
	}

	report := &ScanReport{
		ScanID:      scanRecord.ID,
		ProjectID:   scanRecord.ProjectID,
		Target:      scanRecord.Target,
		Status:      scanRecord.Status,
		StartedAt:   scanRecord.StartedAt.Format(time.RFC3339),
		Findings:    findings,
		Summary:     summary,
		GeneratedAt: time.Now().Format(time.RFC3339),
	}
	if scanRecord.FinishedAt != nil {
		report.FinishedAt = scanRecord.FinishedAt.Format(time.RFC3339)
	}
	for _, run := range runs {
		report.Tools = append(report.Tools, ToolReport{
			Tool:       run.Tool,
			Status:     run.Status,
			Attempts:   run.Attempts,
			ExitCode:   run.ExitCode,
			DurationMs: run.DurationMs,
			Error:      run.Error,
		})
	}
	return report, nil
}

// SARIF 2.1.0 文档结构，仅覆盖导出所需的字段
type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool         `json:"tool"`
	Invocations []sarifInvocation `json:"invocations"`
	Results     []sarifResult     `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri,omitempty"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string            `json:"id"`
	Name             string            `json:"name,omitempty"`
	ShortDescription *sarifMessage     `json:"shortDescription,omitempty"`
	Properties       map[string]string `json:"properties,omitempty"`
}

type sarifInvocation struct {
	ExecutionSuccessful bool   `json:"executionSuccessful"`
	EndTimeUTC          string `json:"endTimeUtc,omitempty"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

// sarifLevel 严重级别到SARIF level的映射
func sarifLevel(severity scanmodel.Severity) string {
	switch severity {
	case scanmodel.SeverityCritical, scanmodel.SeverityHigh:
		return "error"
	case scanmodel.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}

// ExportScanSARIF 导出扫描的SARIF 2.1.0报告，返回序列化后的JSON
// 每条发现产出一个result，规则表按工具归组去重
func (e *Exporter) ExportScanSARIF(ctx context.Context, scanID uint64) ([]byte, error) {
	scanRecord, runs, findings, _, err := e.loadScan(ctx, scanID)
	if err != nil {
		return nil, err
	}

	rules := make([]sarifRule, 0)
	ruleIndex := make(map[string]bool)
	results := make([]sarifResult, 0, len(findings))

	for _, f := range findings {
		ruleID := f.Tool + "/" + f.Category
		if f.Category == "" {
			ruleID = f.Tool + "/finding"
		}
		if !ruleIndex[ruleID] {
			ruleIndex[ruleID] = true
			rules = append(rules, sarifRule{
				ID:   ruleID,
				Name: f.Category,
				Properties: map[string]string{
					"tool": f.Tool,
				},
			})
		}

		message := f.Title
		if f.Description != "" {
			message = fmt.Sprintf("%s: %s", f.Title, f.Description)
		}
		result := sarifResult{
			RuleID:  ruleID,
			Level:   sarifLevel(f.Severity),
			Message: sarifMessage{Text: message},
		}
		if f.FilePath != "" {
			loc := sarifLocation{
				PhysicalLocation: sarifPhysicalLocation{
					ArtifactLocation: sarifArtifactLocation{URI: f.FilePath},
				},
			}
			if f.LineNumber > 0 {
				loc.PhysicalLocation.Region = &sarifRegion{StartLine: f.LineNumber}
			}
			result.Locations = []sarifLocation{loc}
		}
		results = append(results, result)
	}

	invocation := sarifInvocation{
		ExecutionSuccessful: scanRecord.Status == scanmodel.ScanStatusSuccess,
	}
	if scanRecord.FinishedAt != nil {
		invocation.EndTimeUTC = scanRecord.FinishedAt.UTC().Format(time.RFC3339)
	}

	// 规则表补充本次扫描配置的所有工具，包括没有产出发现的
	for _, run := range runs {
		ruleID := run.Tool + "/finding"
		if !ruleIndex[ruleID] {
			ruleIndex[ruleID] = true
			rules = append(rules, sarifRule{
				ID: ruleID,
				Properties: map[string]string{
					"tool": run.Tool,
				},
			})
		}
	}

	doc := &sarifLog{
		Version: sarifVersion,
		Schema:  sarifSchemaURI,
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:    driverName,
						Version: driverVersion,
						Rules:   rules,
					},
				},
				Invocations: []sarifInvocation{invocation},
				Results:     results,
			},
		},
	}
	return json.MarshalIndent(doc, "", "  ")
}

// CampaignReport 活动JSON报告结构
type CampaignReport struct {
	CampaignID  uint64                    `json:"campaign_id"`
	Name        string                    `json:"name"`
	Target      string                    `json:"target"`
	Status      fuzzmodel.CampaignStatus  `json:"status"`
	Metrics     fuzzmodel.CampaignMetrics `json:"metrics"`
	Crashes     []fuzzmodel.CrashReport   `json:"crashes"`
	GeneratedAt string                    `json:"generated_at"`
}

// ExportCampaignJSON 导出活动的JSON报告
func (e *Exporter) ExportCampaignJSON(ctx context.Context, campaignID uint64) (*CampaignReport, error) {
	if e.campaigns == nil {
		return nil, system.NewNotFoundError("campaign", campaignID)
	}
	detail, err := e.campaigns.GetCampaignDetail(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	return &CampaignReport{
		CampaignID:  detail.Campaign.ID,
		Name:        detail.Campaign.Name,
		Target:      detail.Campaign.Target,
		Status:      detail.Campaign.Status,
		Metrics:     detail.Metrics,
		Crashes:     detail.Crashes,
		GeneratedAt: time.Now().Format(time.RFC3339),
	}, nil
}

// loadScan 读取导出所需的扫描数据
func (e *Exporter) loadScan(ctx context.Context, scanID uint64) (*scanmodel.Scan, []*scanmodel.ToolRun, []*scanmodel.Finding, scanmodel.SeveritySummary, error) {
	scanRecord, err := e.scans.GetScanByID(ctx, scanID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if scanRecord == nil {
		return nil, nil, nil, nil, system.NewNotFoundError("scan", scanID)
	}

	runs, err := e.scans.GetToolRunsByScanID(ctx, scanID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	findings, err := e.findings.ListFindingsByScanID(ctx, scanID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	summary, err := e.findings.CountBySeverity(ctx, scanID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return scanRecord, runs, findings, summary, nil
}
