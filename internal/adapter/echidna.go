package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"

	"chainscan/internal/config"
	"chainscan/internal/model/scan"
	"chainscan/internal/model/system"
)

// EchidnaAdapter Echidna属性模糊测试适配器
// 宿主机不安装Echidna，通过官方Docker镜像执行:
// docker run --rm -v <target>:<target> trailofbits/echidna echidna-test <target> --format json
type EchidnaAdapter struct {
	fuzzerCfg *config.FuzzerConfig
}

// NewEchidnaAdapter 创建Echidna适配器
func NewEchidnaAdapter(fuzzerCfg *config.FuzzerConfig) *EchidnaAdapter {
	return &EchidnaAdapter{fuzzerCfg: fuzzerCfg}
}

// Name 返回工具名称
func (a *EchidnaAdapter) Name() string {
	return "echidna"
}

// Execute 通过Docker执行一次Echidna模糊测试
func (a *EchidnaAdapter) Execute(ctx context.Context, target string, cfg config.ToolConfig) (*ExecResult, error) {
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("resolve target path: %w", err)
	}

	image := "trailofbits/echidna"
	if a.fuzzerCfg != nil && a.fuzzerCfg.EchidnaDocker != "" {
		image = a.fuzzerCfg.EchidnaDocker
	}

	args := []string{
		"run", "--rm",
		"-v", fmt.Sprintf("%s:%s", absTarget, absTarget),
		image,
		"echidna-test", absTarget,
		"--format", "json",
	}
	if a.fuzzerCfg != nil && a.fuzzerCfg.FuzzDuration > 0 {
		args = append(args, "--test-duration", strconv.Itoa(int(a.fuzzerCfg.FuzzDuration.Seconds())))
	}

	return runCommand(ctx, cfg.Timeout, "docker", args, cfg.Env)
}

// echidnaOutput Echidna JSON输出结构
type echidnaOutput struct {
	Errors []echidnaError `json:"errors"`
}

type echidnaError struct {
	Test     string `json:"test"`
	Message  string `json:"message"`
	Contract string `json:"contract"`
	Line     int    `json:"line"`
	Property string `json:"property"`
	Seed     string `json:"seed"`
}

// Parse 解析Echidna输出
// Echidna不标注严重级别，属性违反一律记为HIGH
func (a *EchidnaAdapter) Parse(raw string) ([]scan.NormalizedFinding, error) {
	var out echidnaOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%w: echidna: %v", system.ErrUnparsableOutput, err)
	}

	findings := make([]scan.NormalizedFinding, 0, len(out.Errors))
	for _, e := range out.Errors {
		title := e.Test
		if title == "" {
			title = "Echidna issue"
		}
		findings = append(findings, scan.NormalizedFinding{
			Tool:        a.Name(),
			Title:       title,
			Description: e.Message,
			Severity:    scan.SeverityHigh,
			Category:    "property-violation",
			FilePath:    e.Contract,
			LineNumber:  e.Line,
			Function:    e.Property,
			Raw: map[string]interface{}{
				"test":     e.Test,
				"property": e.Property,
				"seed":     e.Seed,
			},
		})
	}
	return findings, nil
}
