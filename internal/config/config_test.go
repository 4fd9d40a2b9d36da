package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetToolConfig(t *testing.T) {
	cfg := &ScannerConfig{
		MaxAttempts:    3,
		DefaultTimeout: 10 * time.Minute,
		Tools: map[string]ToolConfig{
			"mythril": {Path: "myth", Timeout: 15 * time.Minute},
			"manticore": {
				Timeout:     30 * time.Minute,
				MaxAttempts: 2,
			},
		},
	}

	// 未配置的工具全部回落默认值，Path缺省为工具名
	unknown := cfg.GetToolConfig("slither")
	assert.Equal(t, "slither", unknown.Path)
	assert.Equal(t, 10*time.Minute, unknown.Timeout)
	assert.Equal(t, 3, unknown.MaxAttempts)

	// 部分配置的字段逐个回落
	mythril := cfg.GetToolConfig("mythril")
	assert.Equal(t, "myth", mythril.Path)
	assert.Equal(t, 15*time.Minute, mythril.Timeout)
	assert.Equal(t, 3, mythril.MaxAttempts)

	manticore := cfg.GetToolConfig("manticore")
	assert.Equal(t, "manticore", manticore.Path)
	assert.Equal(t, 2, manticore.MaxAttempts)
}

func TestGetServerAddress(t *testing.T) {
	cfg := &ServerConfig{Host: "0.0.0.0", Port: 8123}
	assert.Equal(t, "0.0.0.0:8123", cfg.GetAddress())
}
