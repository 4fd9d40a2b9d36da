/**
 * 处理器:演示合约生成
 * @author: sun977
 * @date: 2025.08.29
 * @description: 生成演示合约并立即发起扫描的接口
 * @func: GeneratorHandler
 */
package scan

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chainscan/internal/pkg/logger"
	generatorservice "chainscan/internal/service/generator"
)

// GeneratorHandler 演示合约生成处理器
type GeneratorHandler struct {
	generator *generatorservice.Service
}

// NewGeneratorHandler 创建 GeneratorHandler 实例
func NewGeneratorHandler(generator *generatorservice.Service) *GeneratorHandler {
	return &GeneratorHandler{
		generator: generator,
	}
}

// GenerateAndScan 生成演示合约、创建项目并发起扫描
func (h *GeneratorHandler) GenerateAndScan(c *gin.Context) {
	result, err := h.generator.GenerateAndScan(c.Request.Context())
	if err != nil {
		logger.LogError(err, "generate_and_scan", map[string]interface{}{
			"layer": "HANDLER",
		})
		respondError(c, err, "Failed to generate and scan contract")
		return
	}
	respondOK(c, http.StatusCreated, "Contract generated and scan started", result)
}
