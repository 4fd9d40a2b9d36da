/**
 * 处理器:报告导出
 * @author: sun977
 * @date: 2025.08.29
 * @description: 扫描与活动报告的JSON和SARIF导出接口
 * @func: ReportHandler
 */
package report

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chainscan/internal/model"
	"chainscan/internal/model/system"
	"chainscan/internal/pkg/logger"
	reportservice "chainscan/internal/service/report"
)

// ReportHandler 报告处理器
type ReportHandler struct {
	exporter *reportservice.Exporter
}

// NewReportHandler 创建 ReportHandler 实例
func NewReportHandler(exporter *reportservice.Exporter) *ReportHandler {
	return &ReportHandler{
		exporter: exporter,
	}
}

// respondError 按错误类型映射HTTP状态码并输出统一响应
func respondError(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	var nfe *system.NotFoundError
	if errors.As(err, &nfe) {
		status = http.StatusNotFound
	}
	c.JSON(status, model.APIResponse{
		Code:    status,
		Status:  "failed",
		Message: message,
		Error:   err.Error(),
	})
}

// parseID 解析路径中的数字ID
func parseID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:    http.StatusBadRequest,
			Status:  "failed",
			Message: "Invalid ID",
			Error:   err.Error(),
		})
		return 0, false
	}
	return id, true
}

// ExportScanJSON 导出扫描JSON报告
func (h *ReportHandler) ExportScanJSON(c *gin.Context) {
	scanID, ok := parseID(c, "scan_id")
	if !ok {
		return
	}

	report, err := h.exporter.ExportScanJSON(c.Request.Context(), scanID)
	if err != nil {
		logger.LogError(err, "export_scan_json", map[string]interface{}{
			"layer":   "HANDLER",
			"scan_id": scanID,
		})
		respondError(c, err, "Failed to export scan report")
		return
	}
	c.JSON(http.StatusOK, report)
}

// ExportScanSARIF 导出扫描SARIF报告
func (h *ReportHandler) ExportScanSARIF(c *gin.Context) {
	scanID, ok := parseID(c, "scan_id")
	if !ok {
		return
	}

	data, err := h.exporter.ExportScanSARIF(c.Request.Context(), scanID)
	if err != nil {
		logger.LogError(err, "export_scan_sarif", map[string]interface{}{
			"layer":   "HANDLER",
			"scan_id": scanID,
		})
		respondError(c, err, "Failed to export SARIF report")
		return
	}
	c.Data(http.StatusOK, "application/sarif+json", data)
}

// ExportCampaignJSON 导出活动JSON报告
func (h *ReportHandler) ExportCampaignJSON(c *gin.Context) {
	campaignID, ok := parseID(c, "campaign_id")
	if !ok {
		return
	}

	report, err := h.exporter.ExportCampaignJSON(c.Request.Context(), campaignID)
	if err != nil {
		logger.LogError(err, "export_campaign_json", map[string]interface{}{
			"layer":       "HANDLER",
			"campaign_id": campaignID,
		})
		respondError(c, err, "Failed to export campaign report")
		return
	}
	c.JSON(http.StatusOK, report)
}
