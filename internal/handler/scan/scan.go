/**
 * 处理器:扫描任务
 * @author: sun977
 * @date: 2025.08.29
 * @description: 扫描的发起、查询、取消和快速扫描接口
 * @func: ScanHandler
 */
package scan

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chainscan/internal/model"
	scanmodel "chainscan/internal/model/scan"
	"chainscan/internal/pkg/logger"
	scannerservice "chainscan/internal/service/scanner"
)

// ScanHandler 扫描处理器
type ScanHandler struct {
	scheduler *scannerservice.Scheduler
	query     *scannerservice.Query
}

// NewScanHandler 创建 ScanHandler 实例
func NewScanHandler(scheduler *scannerservice.Scheduler, query *scannerservice.Query) *ScanHandler {
	return &ScanHandler{
		scheduler: scheduler,
		query:     query,
	}
}

// StartScan 发起扫描
func (h *ScanHandler) StartScan(c *gin.Context) {
	var req scanmodel.StartScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:    http.StatusBadRequest,
			Status:  "failed",
			Message: "Invalid request body",
			Error:   err.Error(),
		})
		return
	}

	tools := req.Tools
	if len(tools) == 0 {
		tools = scanmodel.DefaultTools()
	}

	scanRecord, err := h.scheduler.StartScan(c.Request.Context(), req.ProjectID, req.Target, tools)
	if err != nil {
		logger.LogError(err, "start_scan", map[string]interface{}{
			"layer":      "HANDLER",
			"project_id": req.ProjectID,
		})
		respondError(c, err, "Failed to start scan")
		return
	}
	respondOK(c, http.StatusAccepted, "Scan started successfully", scanmodel.NewScanInfo(scanRecord))
}

// QuickScan 快速扫描,一次调用完成项目创建和扫描发起
func (h *ScanHandler) QuickScan(c *gin.Context) {
	var req scanmodel.QuickScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:    http.StatusBadRequest,
			Status:  "failed",
			Message: "Invalid request body",
			Error:   err.Error(),
		})
		return
	}

	project, scanRecord, err := h.scheduler.QuickScan(c.Request.Context(), &req)
	if err != nil {
		logger.LogError(err, "quick_scan", map[string]interface{}{
			"layer":        "HANDLER",
			"project_name": req.Project.Name,
		})
		respondError(c, err, "Failed to run quick scan")
		return
	}
	respondOK(c, http.StatusAccepted, "Quick scan started successfully", scanmodel.QuickScanResponse{
		ProjectID: project.ID,
		ScanID:    scanRecord.ID,
	})
}

// GetScan 获取扫描详情
// 进行中的扫描返回当时的部分状态
func (h *ScanHandler) GetScan(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:    http.StatusBadRequest,
			Status:  "failed",
			Message: "Invalid ID",
			Error:   err.Error(),
		})
		return
	}

	detail, err := h.query.GetScanDetail(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to get scan")
		return
	}
	respondOK(c, http.StatusOK, "Scan retrieved successfully", detail)
}

// ListScans 分页获取扫描列表
func (h *ScanHandler) ListScans(c *gin.Context) {
	var req scanmodel.ListScansRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:    http.StatusBadRequest,
			Status:  "failed",
			Message: "Invalid query parameters",
			Error:   err.Error(),
		})
		return
	}

	scans, total, err := h.query.ListScans(c.Request.Context(), &req)
	if err != nil {
		logger.LogError(err, "list_scans", map[string]interface{}{
			"layer": "HANDLER",
		})
		respondError(c, err, "Failed to list scans")
		return
	}
	respondOK(c, http.StatusOK, "Scans retrieved successfully", model.NewPaginationResponse(total, req.Page, req.PageSize, scans))
}

// CancelScan 取消进行中的扫描
func (h *ScanHandler) CancelScan(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:    http.StatusBadRequest,
			Status:  "failed",
			Message: "Invalid ID",
			Error:   err.Error(),
		})
		return
	}

	if err := h.scheduler.CancelScan(c.Request.Context(), id); err != nil {
		logger.LogError(err, "cancel_scan", map[string]interface{}{
			"layer":   "HANDLER",
			"scan_id": id,
		})
		respondError(c, err, "Failed to cancel scan")
		return
	}
	respondOK(c, http.StatusOK, "Scan cancellation requested", nil)
}
