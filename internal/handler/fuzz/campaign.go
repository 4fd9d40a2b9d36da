/**
 * 处理器:模糊测试活动
 * @author: sun977
 * @date: 2025.08.29
 * @description: 活动生命周期管理与种子、覆盖率、崩溃注入接口
 * @func: CampaignHandler
 */
package fuzz

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chainscan/internal/model"
	fuzzmodel "chainscan/internal/model/fuzz"
	"chainscan/internal/model/system"
	"chainscan/internal/pkg/logger"
	fuzzservice "chainscan/internal/service/fuzz"
)

// CampaignHandler 活动处理器
type CampaignHandler struct {
	monitor *fuzzservice.Monitor
}

// NewCampaignHandler 创建 CampaignHandler 实例
func NewCampaignHandler(monitor *fuzzservice.Monitor) *CampaignHandler {
	return &CampaignHandler{
		monitor: monitor,
	}
}

// respondError 按错误类型映射HTTP状态码并输出统一响应
func respondError(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	resp := model.APIResponse{
		Status:  "failed",
		Message: message,
		Error:   err.Error(),
	}

	var ve *system.ValidationError
	var nfe *system.NotFoundError
	var ce *system.AggregateStateConflictError
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
		resp.Errors = []system.ValidationError{*ve}
	case errors.As(err, &nfe):
		status = http.StatusNotFound
	case errors.As(err, &ce):
		status = http.StatusConflict
	}

	resp.Code = status
	c.JSON(status, resp)
}

// respondOK 输出成功响应
func respondOK(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, model.APIResponse{
		Code:    status,
		Status:  "success",
		Message: message,
		Data:    data,
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

// bindJSON 绑定请求体
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:    http.StatusBadRequest,
			Status:  "failed",
			Message: "Invalid request body",
			Error:   err.Error(),
		})
		return false
	}
	return true
}

// CreateCampaign 创建活动
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req fuzzmodel.CreateCampaignRequest
	if !bindJSON(c, &req) {
		return
	}

	campaign, err := h.monitor.CreateCampaign(c.Request.Context(), &req)
	if err != nil {
		logger.LogError(err, "create_campaign", map[string]interface{}{
			"layer": "HANDLER",
			"name":  req.Name,
		})
		respondError(c, err, "Failed to create campaign")
		return
	}
	respondOK(c, http.StatusCreated, "Campaign created successfully", campaign)
}

// BootstrapFromScan 从已有扫描引导活动
func (h *CampaignHandler) BootstrapFromScan(c *gin.Context) {
	scanID, ok := parseID(c, "scan_id")
	if !ok {
		return
	}

	campaign, err := h.monitor.BootstrapFromScan(c.Request.Context(), scanID, c.Query("name"))
	if err != nil {
		logger.LogError(err, "bootstrap_campaign", map[string]interface{}{
			"layer":   "HANDLER",
			"scan_id": scanID,
		})
		respondError(c, err, "Failed to bootstrap campaign")
		return
	}
	respondOK(c, http.StatusCreated, "Campaign bootstrapped successfully", campaign)
}

// TransitionCampaign 推进活动状态机
func (h *CampaignHandler) TransitionCampaign(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req fuzzmodel.TransitionCampaignRequest
	if !bindJSON(c, &req) {
		return
	}

	campaign, err := h.monitor.Transition(c.Request.Context(), id, req.Status)
	if err != nil {
		logger.LogError(err, "transition_campaign", map[string]interface{}{
			"layer":       "HANDLER",
			"campaign_id": id,
			"target":      req.Status,
		})
		respondError(c, err, "Failed to transition campaign")
		return
	}
	respondOK(c, http.StatusOK, "Campaign status updated", campaign)
}

// GetCampaign 获取活动详情
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	detail, err := h.monitor.GetCampaignDetail(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to get campaign")
		return
	}
	respondOK(c, http.StatusOK, "Campaign retrieved successfully", detail)
}

// ListCampaigns 分页获取活动列表，支持status查询参数过滤
func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	status := c.Query("status")

	campaigns, total, err := h.monitor.ListCampaigns(c.Request.Context(), page, pageSize, status)
	if err != nil {
		logger.LogError(err, "list_campaigns", map[string]interface{}{
			"layer": "HANDLER",
		})
		respondError(c, err, "Failed to list campaigns")
		return
	}
	respondOK(c, http.StatusOK, "Campaigns retrieved successfully", model.NewPaginationResponse(total, page, pageSize, campaigns))
}

// AddSeed 添加种子
func (h *CampaignHandler) AddSeed(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req fuzzmodel.AddSeedRequest
	if !bindJSON(c, &req) {
		return
	}

	seed, err := h.monitor.AddSeed(c.Request.Context(), id, &req)
	if err != nil {
		logger.LogError(err, "add_seed", map[string]interface{}{
			"layer":       "HANDLER",
			"campaign_id": id,
		})
		respondError(c, err, "Failed to add seed")
		return
	}
	respondOK(c, http.StatusCreated, "Seed added successfully", seed)
}

// AddCoverage 注入覆盖率信号
func (h *CampaignHandler) AddCoverage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req fuzzmodel.AddCoverageRequest
	if !bindJSON(c, &req) {
		return
	}

	campaign, err := h.monitor.AddCoverage(c.Request.Context(), id, &req)
	if err != nil {
		logger.LogError(err, "add_coverage", map[string]interface{}{
			"layer":       "HANDLER",
			"campaign_id": id,
		})
		respondError(c, err, "Failed to add coverage")
		return
	}
	respondOK(c, http.StatusOK, "Coverage recorded successfully", campaign.GetMetrics())
}

// ReportCrash 登记崩溃报告
func (h *CampaignHandler) ReportCrash(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req fuzzmodel.ReportCrashRequest
	if !bindJSON(c, &req) {
		return
	}

	crash, err := h.monitor.ReportCrash(c.Request.Context(), id, &req)
	if err != nil {
		logger.LogError(err, "report_crash", map[string]interface{}{
			"layer":       "HANDLER",
			"campaign_id": id,
		})
		respondError(c, err, "Failed to report crash")
		return
	}
	respondOK(c, http.StatusCreated, "Crash recorded successfully", crash)
}
