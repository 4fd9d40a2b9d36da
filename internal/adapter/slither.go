package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"chainscan/internal/config"
	"chainscan/internal/model/scan"
	"chainscan/internal/model/system"
)

// SlitherAdapter Slither静态分析适配器
// 命令: slither <target> --json -
type SlitherAdapter struct{}

// NewSlitherAdapter 创建Slither适配器
func NewSlitherAdapter() *SlitherAdapter {
	return &SlitherAdapter{}
}

// Name 返回工具名称
func (a *SlitherAdapter) Name() string {
	return "slither"
}

// Execute 执行一次Slither分析
func (a *SlitherAdapter) Execute(ctx context.Context, target string, cfg config.ToolConfig) (*ExecResult, error) {
	args := []string{target, "--json", "-"}
	return runCommand(ctx, cfg.Timeout, cfg.Path, args, cfg.Env)
}

// slitherOutput Slither JSON输出结构
type slitherOutput struct {
	Success bool `json:"success"`
	Results struct {
		Detectors []slitherDetector `json:"detectors"`
	} `json:"results"`
}

type slitherDetector struct {
	Check       string                   `json:"check"`
	Impact      string                   `json:"impact"`
	Confidence  string                   `json:"confidence"`
	Description string                   `json:"description"`
	Elements    []map[string]interface{} `json:"elements"`
}

// Parse 解析Slither输出，results.detectors逐条归一化
func (a *SlitherAdapter) Parse(raw string) ([]scan.NormalizedFinding, error) {
	var out slitherOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%w: slither: %v", system.ErrUnparsableOutput, err)
	}

	findings := make([]scan.NormalizedFinding, 0, len(out.Results.Detectors))
	for _, d := range out.Results.Detectors {
		title := d.Check
		if title == "" {
			title = "slither finding"
		}
		f := scan.NormalizedFinding{
			Tool:        a.Name(),
			Title:       title,
			Description: d.Description,
			Severity:    scan.NormalizeSeverity(d.Impact),
			Category:    d.Check,
			Raw: map[string]interface{}{
				"check":      d.Check,
				"impact":     d.Impact,
				"confidence": d.Confidence,
			},
		}
		// 第一个element携带源码定位信息
		if len(d.Elements) > 0 {
			elem := d.Elements[0]
			if fn, ok := elem["name"].(string); ok {
				f.Function = fn
			}
			if sm, ok := elem["source_mapping"].(map[string]interface{}); ok {
				if path, ok := sm["filename_relative"].(string); ok {
					f.FilePath = path
				}
				if lines, ok := sm["lines"].([]interface{}); ok && len(lines) > 0 {
					if line, ok := lines[0].(float64); ok {
						f.LineNumber = int(line)
					}
				}
			}
		}
		findings = append(findings, f)
	}
	return findings, nil
}
