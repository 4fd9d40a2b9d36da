/**
 * 中间件:HTTP中间件管理器
 * @author: sun977
 * @date: 2025.08.29
 * @description: 请求日志、异常恢复、CORS、安全头与基于IP的限流中间件
 * @func: MiddlewareManager
 */
package master

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"chainscan/internal/config"
	"chainscan/internal/model"
	"chainscan/internal/pkg/logger"
	"chainscan/internal/pkg/utils"
)

// MiddlewareManager 中间件管理器
type MiddlewareManager struct {
	cfg *config.SecurityConfig

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// NewMiddlewareManager 创建中间件管理器
func NewMiddlewareManager(cfg *config.SecurityConfig) *MiddlewareManager {
	return &MiddlewareManager{
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

// GinLoggingMiddleware 请求日志中间件
// 生成请求ID并写入Gin上下文和标准上下文，记录访问日志
func (m *MiddlewareManager) GinLoggingMiddleware() gin.HandlerFunc {
	skip := make(map[string]bool, len(m.cfg.Logging.SkipPaths))
	for _, p := range m.cfg.Logging.SkipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = utils.NewRequestID()
		}
		c.Set(string(utils.ContextKeyRequestID), requestID)
		c.Header("X-Request-ID", requestID)

		// 标准化客户端IP并同时写入Gin上下文和标准上下文
		// handler以下的逻辑使用标准上下文，需在此处透传
		clientIP := utils.GetClientIP(c)
		c.Set(string(utils.ContextKeyClientIP), clientIP)
		ctx := context.WithValue(c.Request.Context(), utils.ContextKeyClientIP, clientIP)
		ctx = context.WithValue(ctx, utils.ContextKeyRequestID, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if skip[c.Request.URL.Path] {
			return
		}
		if !m.cfg.Logging.EnableRequestLog {
			return
		}

		duration := time.Since(start)
		logger.LogAccessRequest(c, c.Writer.Status(), duration, requestID)

		// 慢请求单独告警
		if m.cfg.Logging.SlowRequestThreshold > 0 && duration > m.cfg.Logging.SlowRequestThreshold {
			logger.WithFields(map[string]interface{}{
				"type":        logger.LogTypeSystem,
				"path":        c.Request.URL.Path,
				"duration_ms": duration.Milliseconds(),
				"request_id":  requestID,
			}).Warn("slow request")
		}
	}
}

// GinRecoveryMiddleware 异常恢复中间件
// panic转为500响应并记录错误日志，不中断进程
func (m *MiddlewareManager) GinRecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.WithFields(map[string]interface{}{
			"type":   logger.LogTypeError,
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"panic":  recovered,
		}).Error("panic recovered")

		c.AbortWithStatusJSON(http.StatusInternalServerError, model.APIResponse{
			Code:    http.StatusInternalServerError,
			Status:  "failed",
			Message: "Internal server error",
		})
	})
}

// GinCORSMiddleware CORS中间件
func (m *MiddlewareManager) GinCORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.cfg.CORS.Enabled {
			c.Next()
			return
		}

		origin := "*"
		if !m.cfg.CORS.AllowAllOrigins && len(m.cfg.CORS.AllowOrigins) > 0 {
			origin = m.cfg.CORS.AllowOrigins[0]
			for _, allowed := range m.cfg.CORS.AllowOrigins {
				if allowed == c.GetHeader("Origin") {
					origin = allowed
					break
				}
			}
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		if m.cfg.CORS.AllowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// GinSecurityHeadersMiddleware 安全头中间件
func (m *MiddlewareManager) GinSecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// GinRateLimitMiddleware 基于客户端IP的限流中间件
// 每个IP一个令牌桶，速率和容量来自配置
func (m *MiddlewareManager) GinRateLimitMiddleware() gin.HandlerFunc {
	skip := make(map[string]bool, len(m.cfg.RateLimit.SkipPaths))
	for _, p := range m.cfg.RateLimit.SkipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		if !m.cfg.RateLimit.Enabled || skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		if !m.limiterFor(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, model.APIResponse{
				Code:    http.StatusTooManyRequests,
				Status:  "failed",
				Message: "Too many requests",
			})
			return
		}
		c.Next()
	}
}

// limiterFor 获取指定IP的限流器
func (m *MiddlewareManager) limiterFor(ip string) *rate.Limiter {
	m.limiterMu.Lock()
	defer m.limiterMu.Unlock()

	limiter, ok := m.limiters[ip]
	if !ok {
		rps := m.cfg.RateLimit.RequestsPerSecond
		if rps <= 0 {
			rps = 100
		}
		burst := m.cfg.RateLimit.BurstSize
		if burst <= 0 {
			burst = rps
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
		m.limiters[ip] = limiter
	}
	return limiter
}
