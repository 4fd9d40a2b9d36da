package adapter

import (
	"bufio"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"

	"chainscan/internal/config"
	"chainscan/internal/model/scan"
)

// FoundryAdapter Foundry测试套件适配器
// 命令: forge test --json --root <dir> [--match-path <file>]
// 输出为逐行JSON，失败的测试归一化为HIGH发现
type FoundryAdapter struct{}

// NewFoundryAdapter 创建Foundry适配器
func NewFoundryAdapter() *FoundryAdapter {
	return &FoundryAdapter{}
}

// Name 返回工具名称
func (a *FoundryAdapter) Name() string {
	return "foundry"
}

// Execute 执行一次Foundry测试
func (a *FoundryAdapter) Execute(ctx context.Context, target string, cfg config.ToolConfig) (*ExecResult, error) {
	path := cfg.Path
	if path == "foundry" {
		path = "forge"
	}

	root := filepath.Dir(target)
	args := []string{"test", "--json", "--root", root}
	if filepath.Ext(target) != "" {
		args = append(args, "--match-path", target)
	}

	return runCommand(ctx, cfg.Timeout, path, args, cfg.Env)
}

// failureStatuses 判定测试失败的状态描述
var failureStatuses = map[string]bool{
	"fail": true, "failed": true, "failure": true, "error": true, "panic": true,
}

// Parse 解析Foundry逐行JSON输出，提取失败的测试
// 无法解析的行直接跳过，Foundry会把编译日志混入标准输出
func (a *FoundryAdapter) Parse(raw string) ([]scan.NormalizedFinding, error) {
	var findings []scan.NormalizedFinding

	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var payload interface{}
		if err := json.Unmarshal([]byte(line), &payload); err != nil {
			continue
		}
		findings = append(findings, a.extractFailures(payload)...)
	}
	return findings, nil
}

// extractFailures 递归遍历JSON结构，收集失败的测试条目
func (a *FoundryAdapter) extractFailures(payload interface{}) []scan.NormalizedFinding {
	var findings []scan.NormalizedFinding

	switch v := payload.(type) {
	case map[string]interface{}:
		if f, ok := a.failureFromEntry(v); ok {
			findings = append(findings, f)
		}
		for _, value := range v {
			findings = append(findings, a.extractFailures(value)...)
		}
	case []interface{}:
		for _, item := range v {
			findings = append(findings, a.extractFailures(item)...)
		}
	}
	return findings
}

// failureFromEntry 判断单个条目是否为失败的测试并归一化
func (a *FoundryAdapter) failureFromEntry(entry map[string]interface{}) (scan.NormalizedFinding, bool) {
	status, _ := entry["status"].(string)
	success, hasSuccess := entry["success"].(bool)

	isFailure := failureStatuses[strings.ToLower(status)] || (hasSuccess && !success)
	if !isFailure {
		return scan.NormalizedFinding{}, false
	}

	name := stringField(entry, "name", "test")
	if name == "" {
		name = "Foundry test failure"
	}
	description := stringField(entry, "reason", "error_message", "stdout")
	if description == "" {
		description = "Foundry reported a failing test"
	}

	f := scan.NormalizedFinding{
		Tool:        a.Name(),
		Title:       name,
		Description: description,
		Severity:    scan.SeverityHigh,
		Category:    "test_failure",
		FilePath:    stringField(entry, "file", "source", "path"),
		Function:    stringField(entry, "contract", "test_contract", "function"),
		Raw:         entry,
	}
	if kind, ok := entry["kind"].(string); ok && kind != "" {
		f.Category = kind
	}
	if line, ok := entry["line"].(float64); ok {
		f.LineNumber = int(line)
	}
	return f, true
}

// stringField 按优先级返回第一个非空字符串字段
func stringField(entry map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := entry[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
