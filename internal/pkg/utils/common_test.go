package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIP(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"空输入", "", ""},
		{"纯IPv4", "192.0.2.10", "192.0.2.10"},
		{"IPv4带端口", "192.0.2.10:52433", "192.0.2.10"},
		{"XFF列表取第一个", "203.0.113.7, 198.51.100.1", "203.0.113.7"},
		{"IPv4-mapped IPv6", "::ffff:192.0.2.1", "192.0.2.1"},
		{"IPv6带端口", "[2001:db8::1]:8080", "2001:db8::1"},
		{"纯IPv6", "2001:db8::1", "2001:db8::1"},
		{"无法解析原样返回", "not-an-ip", "not-an-ip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeIP(tt.input))
		})
	}
}

func TestGetClientIPFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), ContextKeyClientIP, "192.0.2.10")
	assert.Equal(t, "192.0.2.10", GetClientIPFromContext(ctx))

	// 未写入或类型不匹配时返回空
	assert.Empty(t, GetClientIPFromContext(context.Background()))
	bad := context.WithValue(context.Background(), ContextKeyClientIP, 42)
	assert.Empty(t, GetClientIPFromContext(bad))
}

func TestNewRequestID(t *testing.T) {
	a := NewRequestID()
	b := NewRequestID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
