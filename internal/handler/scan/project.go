/**
 * 处理器:项目管理
 * @author: sun977
 * @date: 2025.08.29
 * @description: 合约项目的创建、查询与删除接口
 * @func: ProjectHandler
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

// ProjectHandler 项目处理器
type ProjectHandler struct {
	query *scannerservice.Query
}

// NewProjectHandler 创建 ProjectHandler 实例
func NewProjectHandler(query *scannerservice.Query) *ProjectHandler {
	return &ProjectHandler{
		query: query,
	}
}

// CreateProject 创建项目
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req scanmodel.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:    http.StatusBadRequest,
			Status:  "failed",
			Message: "Invalid request body",
			Error:   err.Error(),
		})
		return
	}

	project, err := h.query.CreateProject(c.Request.Context(), &req)
	if err != nil {
		logger.LogError(err, "create_project", map[string]interface{}{
			"layer": "HANDLER",
			"name":  req.Name,
		})
		respondError(c, err, "Failed to create project")
		return
	}

	logger.LogBusinessOperation("create_project", "success", "Project created successfully", map[string]interface{}{
		"project_id": project.ID,
		"name":       project.Name,
	})
	respondOK(c, http.StatusCreated, "Project created successfully", scanmodel.NewProjectInfo(project))
}

// GetProject 获取项目详情
func (h *ProjectHandler) GetProject(c *gin.Context) {
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

	project, err := h.query.GetProject(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to get project")
		return
	}
	respondOK(c, http.StatusOK, "Project retrieved successfully", scanmodel.NewProjectInfo(project))
}

// DeleteProject 删除项目
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
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

	if err := h.query.DeleteProject(c.Request.Context(), id); err != nil {
		respondError(c, err, "Failed to delete project")
		return
	}
	respondOK(c, http.StatusOK, "Project deleted successfully", nil)
}

// ListProjects 分页获取项目列表
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	projects, total, err := h.query.ListProjects(c.Request.Context(), page, pageSize)
	if err != nil {
		logger.LogError(err, "list_projects", map[string]interface{}{
			"layer": "HANDLER",
		})
		respondError(c, err, "Failed to list projects")
		return
	}
	respondOK(c, http.StatusOK, "Projects retrieved successfully", model.NewPaginationResponse(total, page, pageSize, projects))
}
