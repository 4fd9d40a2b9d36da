package scan

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chainscan/internal/model"
	"chainscan/internal/model/system"
)

// respondError 按错误类型映射HTTP状态码并输出统一响应
// 验证错误400，资源不存在404，状态冲突409，其余500
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
	case errors.Is(err, system.ErrProjectAlreadyExists):
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
