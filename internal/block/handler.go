package block

import (
	"net/http"

	"collaborative-workspace/internal/utils"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// ShowDocumentBlocks lists the persisted blocks of a document.
func (h *Handler) ShowDocumentBlocks(c *gin.Context) {
	page, pageSize := utils.GetPaginationParams(c)
	result, err := h.service.ListBlocks(c.Request.Context(), c.Param("workspaceId"), c.Param("documentId"), page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) ShowBlock(c *gin.Context) {
	b, err := h.service.GetBlock(c.Request.Context(), c.Param("workspaceId"), c.Param("documentId"), c.Param("blockId"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, b)
}
