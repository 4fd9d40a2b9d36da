package fuzz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalExpr(t *testing.T) {
	vars := map[string]float64{
		"total_supply": 1000,
		"balance_a":    600,
		"balance_b":    400,
		"paused":       0,
	}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"简单比较", "total_supply > 0", true},
		{"相等比较", "balance_a + balance_b == total_supply", true},
		{"不等比较", "balance_a != balance_b", true},
		{"加减混合", "total_supply - balance_a - balance_b == 0", true},
		{"and组合", "total_supply > 0 and paused == 0", true},
		{"and短路为假", "total_supply > 0 and paused == 1", false},
		{"or组合", "paused == 1 or balance_a >= 600", true},
		{"括号分组", "(balance_a > 700 or balance_b > 300) and total_supply == 1000", true},
		{"链式比较成立", "0 < balance_b < balance_a", true},
		{"链式比较不成立", "0 < balance_a < balance_b", false},
		{"缺失变量按0", "unknown_slot == 0", true},
		{"缺失变量参与运算", "balance_a + unknown_slot == 600", true},
		{"小数常量", "balance_a >= 599.5", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvalExpr(tt.expr, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalExprErrors(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"单个等号", "a = 1"},
		{"非法字符", "a # 1"},
		{"缺右括号", "(a > 1"},
		{"表达式截断", "a >"},
		{"多余token", "a > 1 b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EvalExpr(tt.expr, map[string]float64{"a": 1})
			assert.Error(t, err)
		})
	}
}
