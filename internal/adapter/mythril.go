package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"chainscan/internal/config"
	"chainscan/internal/model/scan"
	"chainscan/internal/model/system"
)

// MythrilAdapter Mythril符号执行适配器
// 命令: myth analyze <target> -o json
type MythrilAdapter struct{}

// NewMythrilAdapter 创建Mythril适配器
func NewMythrilAdapter() *MythrilAdapter {
	return &MythrilAdapter{}
}

// Name 返回工具名称
func (a *MythrilAdapter) Name() string {
	return "mythril"
}

// Execute 执行一次Mythril分析
func (a *MythrilAdapter) Execute(ctx context.Context, target string, cfg config.ToolConfig) (*ExecResult, error) {
	path := cfg.Path
	if path == "mythril" {
		path = "myth"
	}
	args := []string{"analyze", target, "-o", "json"}
	return runCommand(ctx, cfg.Timeout, path, args, cfg.Env)
}

// mythrilOutput Mythril JSON输出结构
type mythrilOutput struct {
	Success bool           `json:"success"`
	Error   *string        `json:"error"`
	Issues  []mythrilIssue `json:"issues"`
}

type mythrilIssue struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	SwcID       string `json:"swcID"`
	Filename    string `json:"filename"`
	Lineno      int    `json:"lineno"`
	Function    string `json:"function"`
}

// Parse 解析Mythril输出，issues逐条归一化
func (a *MythrilAdapter) Parse(raw string) ([]scan.NormalizedFinding, error) {
	var out mythrilOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%w: mythril: %v", system.ErrUnparsableOutput, err)
	}

	findings := make([]scan.NormalizedFinding, 0, len(out.Issues))
	for _, issue := range out.Issues {
		title := issue.Title
		if title == "" {
			title = "mythril finding"
		}
		findings = append(findings, scan.NormalizedFinding{
			Tool:        a.Name(),
			Title:       title,
			Description: issue.Description,
			Severity:    scan.NormalizeSeverity(issue.Severity),
			Category:    issue.SwcID,
			FilePath:    issue.Filename,
			LineNumber:  issue.Lineno,
			Function:    issue.Function,
			Raw: map[string]interface{}{
				"title":    issue.Title,
				"severity": issue.Severity,
				"swcID":    issue.SwcID,
			},
		})
	}
	return findings, nil
}
