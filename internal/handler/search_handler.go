package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/service"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/pkg/response"
)

// SearchHandler 网页搜索请求处理器
type SearchHandler struct {
	searchService *service.SearchService
}

// NewSearchHandler 创建 SearchHandler 实例
func NewSearchHandler(searchService *service.SearchService) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
	}
}

// searchRequest 搜索请求
type searchRequest struct {
	Query string `json:"query" binding:"required"` // 搜索查询
}

// Search 执行网页搜索
// @Summary 网页搜索
// @Description 调用搜索接口返回网页结果，供前端的搜索工具使用
// @Tags 搜索
// @Security Bearer
// @Accept json
// @Produce json
// @Param body body searchRequest true "搜索查询"
// @Success 200 {object} response.Response{data=service.SearchResponse}
// @Router /api/v1/search [post]
func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "无效的请求参数")
		return
	}

	resp, err := h.searchService.Search(c.Request.Context(), req.Query)
	if err != nil {
		if errors.Is(err, service.ErrSearchNotConfigured) {
			response.Error(c, http.StatusNotImplemented, "搜索服务未配置")
		} else {
			response.InternalError(c, "搜索失败")
		}
		return
	}

	response.Success(c, resp)
}
