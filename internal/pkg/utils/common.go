// 通用的工具包
package utils

import (
	"context"
	"net"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKey 类型用于标准上下文键的定义，避免使用裸字符串造成键冲突
type ContextKey string

// ContextKeyClientIP 标准上下文中存储客户端IP的统一键
const ContextKeyClientIP ContextKey = "client_ip"

// ContextKeyRequestID 标准上下文中存储请求ID的统一键
const ContextKeyRequestID ContextKey = "request_id"

// NewRequestID 生成请求ID
func NewRequestID() string {
	return uuid.NewString()
}

// GetClientIP 提取并标准化客户端IP
// 在logging中间件中调用，结果写入Gin上下文和标准上下文
func GetClientIP(c *gin.Context) string {
	return NormalizeIP(c.ClientIP())
}

// NormalizeIP 标准化IP地址
// 支持带端口的地址、X-Forwarded-For列表和IPv4-mapped IPv6，
// 无法解析的输入原样返回
func NormalizeIP(input string) string {
	if input == "" {
		return ""
	}

	// X-Forwarded-For 可能是逗号分隔的列表，取最靠近客户端的第一个
	ip := strings.TrimSpace(strings.Split(input, ",")[0])

	if h, _, err := net.SplitHostPort(ip); err == nil {
		ip = h
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ip
	}
	if v4 := parsed.To4(); v4 != nil {
		return v4.String()
	}
	return parsed.String()
}

// GetRequestIDFromGinContext 从 Gin 上下文中提取请求ID
// 请求ID由logging中间件写入，如果不存在则返回空字符串
func GetRequestIDFromGinContext(c *gin.Context) string {
	if v, ok := c.Get(string(ContextKeyRequestID)); ok {
		if id, ok2 := v.(string); ok2 {
			return id
		}
	}
	return ""
}

// GetClientIPFromContext 从标准上下文读取客户端IP（统一键）
// 适用范围：service 层以下获取当前 clientIP 使用
// 说明：
// - 使用 ContextKeyClientIP 作为唯一键，保证读写一致，跨包可用
// - 如果不存在或类型不匹配，返回空字符串
func GetClientIPFromContext(ctx context.Context) string {
	v := ctx.Value(ContextKeyClientIP)
	if ip, ok := v.(string); ok {
		return ip
	}
	return ""
}
