/**
 * 服务:Webhook通知
 * @author: sun977
 * @date: 2025.08.29
 * @description: 扫描定稿后向外部地址推送JSON报告，best-effort语义
 * @func: WebhookNotifier
 */
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"chainscan/internal/config"
	"chainscan/internal/pkg/logger"
)

// WebhookNotifier 扫描完成通知器
// 推送失败只记日志，不重试也不影响扫描终态
type WebhookNotifier struct {
	cfg      *config.WebhookConfig
	exporter *Exporter
	client   *http.Client
}

// NewWebhookNotifier 创建Webhook通知器
func NewWebhookNotifier(cfg *config.WebhookConfig, exporter *Exporter) *WebhookNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		cfg:      cfg,
		exporter: exporter,
		client:   &http.Client{Timeout: timeout},
	}
}

// NotifyScanFinished 推送扫描完成通知
// 在独立goroutine中调用，内部带超时上下文
func (n *WebhookNotifier) NotifyScanFinished(scanID uint64) {
	if !n.cfg.Enabled || n.cfg.URL == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.client.Timeout)
	defer cancel()

	report, err := n.exporter.ExportScanJSON(ctx, scanID)
	if err != nil {
		logger.LogError(err, "webhook_build_report", map[string]interface{}{
			"layer":   "SERVICE",
			"scan_id": scanID,
		})
		return
	}

	payload, err := json.Marshal(report)
	if err != nil {
		logger.LogError(err, "webhook_marshal_report", map[string]interface{}{
			"layer":   "SERVICE",
			"scan_id": scanID,
		})
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		logger.LogError(err, "webhook_build_request", map[string]interface{}{
			"layer":   "SERVICE",
			"scan_id": scanID,
		})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "chainscan-webhook/1.0")

	resp, err := n.client.Do(req)
	if err != nil {
		logger.LogError(err, "webhook_post", map[string]interface{}{
			"layer":   "SERVICE",
			"scan_id": scanID,
			"url":     n.cfg.URL,
		})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		logger.LogError(fmt.Errorf("webhook returned status %d", resp.StatusCode), "webhook_post", map[string]interface{}{
			"layer":   "SERVICE",
			"scan_id": scanID,
			"url":     n.cfg.URL,
		})
		return
	}

	logger.LogBusinessOperation("webhook_notify", "success", "scan report delivered", map[string]interface{}{
		"scan_id": scanID,
		"status":  resp.StatusCode,
	})
}
