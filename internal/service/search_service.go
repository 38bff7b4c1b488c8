package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/config"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/resilience"
)

// ErrSearchNotConfigured 未配置搜索 API Key
var ErrSearchNotConfigured = errors.New("搜索服务未配置")

// SearchService 网页搜索服务
// 调用 Tavily 兼容的搜索接口，供 Agent 的 web_search 工具使用
type SearchService struct {
	endpoint string        // 搜索接口地址
	apiKey   string        // API Key
	client   *http.Client  // HTTP 客户端
	retryCfg resilience.RetryConfig
}

// NewSearchService 创建 SearchService 实例
func NewSearchService(cfg *config.Config) *SearchService {
	return &SearchService{
		endpoint: cfg.Search.Endpoint,
		apiKey:   cfg.Search.APIKey,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		retryCfg: resilience.DefaultRetryConfig(),
	}
}

// SearchResult 单条搜索结果
type SearchResult struct {
	Title   string  `json:"title"`   // 标题
	URL     string  `json:"url"`     // 链接
	Content string  `json:"content"` // 摘要
	Score   float64 `json:"score"`   // 相关性得分
}

// SearchResponse 搜索响应
type SearchResponse struct {
	Query   string         `json:"query"`            // 原始查询
	Answer  string         `json:"answer,omitempty"` // 搜索引擎给出的摘要回答
	Results []SearchResult `json:"results"`          // 结果列表
}

// searchRequest 搜索接口的请求体
type searchRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// Search 执行网页搜索
// 网络错误和服务端 5xx 会自动重试
// 参数:
//   - ctx: 上下文
//   - query: 搜索查询
//
// 返回:
//   - *SearchResponse: 搜索结果
//   - error: 未配置或请求失败返回错误
func (s *SearchService) Search(ctx context.Context, query string) (*SearchResponse, error) {
	if s.apiKey == "" {
		return nil, ErrSearchNotConfigured
	}

	var resp *SearchResponse
	err := resilience.Retry(ctx, s.retryCfg, func(ctx context.Context) error {
		var err error
		resp, err = s.doSearch(ctx, query)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// doSearch 执行单次搜索请求
func (s *SearchService) doSearch(ctx context.Context, query string) (*SearchResponse, error) {
	body, err := json.Marshal(searchRequest{
		APIKey:     s.apiKey,
		Query:      query,
		MaxResults: 5,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		// 状态码写入错误文本，重试判定依赖它识别 5xx
		data, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("search failed with status %d: %s", httpResp.StatusCode, string(data))
	}

	var result SearchResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	result.Query = query
	return &result, nil
}
