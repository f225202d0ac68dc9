package handler

import (
	"github.com/gin-gonic/gin"

	"aida-engine/internal/application/execution"
	"aida-engine/internal/interfaces/http/dto"
)

// ModelHandler 模型目录处理器
type ModelHandler struct {
	catalog *execution.Catalog
}

// NewModelHandler 创建模型目录处理器
func NewModelHandler(catalog *execution.Catalog) *ModelHandler {
	return &ModelHandler{catalog: catalog}
}

// ListModels 列出可用模型
// @Summary 列出模型目录
// @Tags Models
// @Produce json
// @Success 200 {object} dto.Response[dto.ModelListResponse]
// @Router /v1/models [get]
func (h *ModelHandler) ListModels(c *gin.Context) {
	dto.Success(c, dto.ToModelListResponse(h.catalog.Models()))
}
