package service

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/config"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/model"
)

// AIService AI 对话服务
// 封装 OpenAI 兼容接口的流式调用
type AIService struct {
	client openai.Client // OpenAI 客户端
	model  string        // 模型名称
}

// NewAIService 创建 AIService 实例
// 参数:
//   - cfg: 应用配置（包含 AI 接口地址、密钥和模型）
//
// 返回:
//   - *AIService: AI 服务实例
//   - error: API Key 缺失时返回错误
func NewAIService(cfg *config.Config) (*AIService, error) {
	if cfg.AI.APIKey == "" {
		return nil, fmt.Errorf("AI API key is required")
	}

	client := openai.NewClient(
		option.WithBaseURL(cfg.AI.BaseURL),
		option.WithAPIKey(cfg.AI.APIKey),
	)

	return &AIService{
		client: client,
		model:  cfg.AI.Model,
	}, nil
}

// Model 返回当前使用的模型名称
func (s *AIService) Model() string {
	return s.model
}

// ChatResult 一次对话调用的结果
type ChatResult struct {
	Content      string // 完整回复内容
	Model        string // 实际使用的模型
	FinishReason string // 结束原因
}

// Chat 流式调用大模型
// 每收到一段增量内容就调用 onDelta，整个回复结束后返回完整内容
// 参数:
//   - ctx: 上下文，超时和取消由调用方控制
//   - messages: 对话历史（包含 system 提示词）
//   - onDelta: 增量回调，可为 nil
//
// 返回:
//   - *ChatResult: 完整回复
//   - error: 调用失败返回错误
func (s *AIService) Chat(ctx context.Context, messages []*model.Message, onDelta func(delta string)) (*ChatResult, error) {
	params := openai.ChatCompletionNewParams{
		Messages: convertMessages(messages),
		Model:    openai.ChatModel(s.model),
	}

	stream := s.client.Chat.Completions.NewStreaming(ctx, params)
	acc := openai.ChatCompletionAccumulator{}

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			if onDelta != nil {
				onDelta(chunk.Choices[0].Delta.Content)
			}
		}
	}

	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("ai streaming error: %w", err)
	}

	result := &ChatResult{
		Model: s.model,
	}
	if len(acc.Choices) > 0 {
		result.Content = acc.Choices[0].Message.Content
		result.FinishReason = string(acc.Choices[0].FinishReason)
	}
	return result, nil
}

// convertMessages 将内部消息转换为 OpenAI 消息格式
func convertMessages(messages []*model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.MessageRoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case model.MessageRoleAssistant:
			result = append(result, openai.AssistantMessage(msg.Content))
		default:
			// user 和未知角色都按用户消息处理
			result = append(result, openai.UserMessage(msg.Content))
		}
	}
	return result
}
