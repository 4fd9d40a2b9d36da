/**
 * 模型:响应模型
 * @author: sun977
 * @date: 2025.08.29
 * @description: API响应数据模型
 * @func: 通用响应结构体定义
 */
package model

import (
	"chainscan/internal/model/system"
)

// APIResponse 通用API响应结构
type APIResponse struct {
	Code    int                      `json:"code,omitempty"`   // 响应状态码，可选
	Status  string                   `json:"status"`           // 响应状态："success" 或 "error"
	Message string                   `json:"message"`          // 响应消息
	Data    interface{}              `json:"data,omitempty"`   // 响应数据，可选
	Error   string                   `json:"error,omitempty"`  // 错误信息，可选
	Errors  []system.ValidationError `json:"errors,omitempty"` // 验证错误列表，可选
}

// PaginationResponse 分页响应结构
type PaginationResponse struct {
	Total       int64       `json:"total"`        // 总记录数
	Page        int         `json:"page"`         // 当前页码
	PageSize    int         `json:"page_size"`    // 每页大小
	TotalPages  int         `json:"total_pages"`  // 总页数
	HasNext     bool        `json:"has_next"`     // 是否有下一页
	HasPrevious bool        `json:"has_previous"` // 是否有上一页
	Data        interface{} `json:"data"`         // 分页数据
}

// NewPaginationResponse 构建分页响应
func NewPaginationResponse(total int64, page, pageSize int, data interface{}) *PaginationResponse {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &PaginationResponse{
		Total:       total,
		Page:        page,
		PageSize:    pageSize,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
		Data:        data,
	}
}
