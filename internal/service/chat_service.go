package service

import (
	"context"
	"log"
	"time"

	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/model"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/resilience"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/storage"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/pkg/tokenizer"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/pkg/util"
)

// defaultSystemPrompt 默认系统提示词
const defaultSystemPrompt = "You are a helpful assistant. Answer concisely and accurately."

// maxTitleLength 从首条消息生成会话标题时的最大长度
const maxTitleLength = 30

// ChatNotifier 聊天事件通知接口
// WebSocket Hub 实现该接口，把事件实时推送给用户的所有连接
// 所有方法都不允许阻塞调用方
type ChatNotifier interface {
	// PushDelta 推送流式增量内容
	PushDelta(userID, conversationID, messageID, delta string)

	// PushMessage 推送完整消息（AI 回复完成时）
	PushMessage(userID string, msg *model.Message)

	// PushConversationUpdated 推送会话变更（标题、统计信息更新）
	PushConversationUpdated(userID string, conv *model.Conversation)
}

// ChatService 聊天服务
// 封装会话和消息的管理，以及发送消息的完整流程:
// 保存用户消息 -> 调用大模型（熔断 + 重试 + 超时保护）-> 保存 AI 回复
type ChatService struct {
	store     storage.ChatStorage        // 聊天历史存储
	ai        *AIService                 // AI 对话服务
	counter   *tokenizer.Counter         // Token 计数器，可为 nil（编码文件加载失败时降级）
	notifier  ChatNotifier               // 事件通知器，可为 nil
	breaker   *resilience.CircuitBreaker // 熔断器，保护 AI 接口
	retryCfg  resilience.RetryConfig     // 重试配置
	aiTimeout time.Duration              // 单次 AI 调用的超时时间
}

// NewChatService 创建 ChatService 实例
// 参数:
//   - store: 聊天历史存储（本地或远程适配器）
//   - ai: AI 对话服务
//   - notifier: 事件通知器，可为 nil
func NewChatService(store storage.ChatStorage, ai *AIService, notifier ChatNotifier) *ChatService {
	counter, err := tokenizer.GetCounter()
	if err != nil {
		// 编码文件加载失败时降级为不统计 Token，不影响对话功能
		log.Printf("chat service: token counter unavailable: %v", err)
	}

	return &ChatService{
		store:     store,
		ai:        ai,
		counter:   counter,
		notifier:  notifier,
		breaker:   resilience.NewCircuitBreaker(5, 30*time.Second),
		retryCfg:  resilience.DefaultRetryConfig(),
		aiTimeout: 60 * time.Second,
	}
}

// scoped 返回绑定了用户身份的存储视图
func (s *ChatService) scoped(userID string) storage.ChatStorage {
	return s.store.WithUser(userID)
}

// countTokens 统计文本的 Token 数量，计数器不可用时返回 0
func (s *ChatService) countTokens(text string) int {
	if s.counter == nil {
		return 0
	}
	return s.counter.CountTokens(text)
}

// ==================== 会话管理 ====================

// ListConversations 获取用户的会话列表，按最近活跃排序
func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	return s.scoped(userID).ListConversations(ctx)
}

// GetConversation 获取单个会话（含消息）
// 会话不存在返回 storage.ErrConversationNotFound
func (s *ChatService) GetConversation(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	conv, err := s.scoped(userID).GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, storage.ErrConversationNotFound
	}
	return conv, nil
}

// CreateConversation 创建新会话
// title 为空时使用占位标题
func (s *ChatService) CreateConversation(ctx context.Context, userID, title string) (*model.Conversation, error) {
	return s.scoped(userID).CreateConversation(ctx, title)
}

// RenameConversation 重命名会话
func (s *ChatService) RenameConversation(ctx context.Context, userID, conversationID, title string) error {
	return s.scoped(userID).UpdateConversation(ctx, conversationID, &storage.ConversationUpdate{
		Title: util.StringPtr(title),
	})
}

// DeleteConversation 删除会话及其全部消息
func (s *ChatService) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	return s.scoped(userID).DeleteConversation(ctx, conversationID)
}

// ClearConversations 清空用户的所有会话
func (s *ChatService) ClearConversations(ctx context.Context, userID string) error {
	return s.scoped(userID).ClearAll(ctx)
}

// ==================== 消息管理 ====================

// GetMessages 获取会话的全部消息，按创建时间正序
func (s *ChatService) GetMessages(ctx context.Context, userID, conversationID string) ([]model.Message, error) {
	return s.scoped(userID).GetMessages(ctx, conversationID)
}

// DeleteMessage 删除指定消息
func (s *ChatService) DeleteMessage(ctx context.Context, userID, messageID string) error {
	return s.scoped(userID).DeleteMessage(ctx, messageID)
}

// UpdateMessageContent 更新消息内容
func (s *ChatService) UpdateMessageContent(ctx context.Context, userID, messageID, content string) error {
	return s.scoped(userID).UpdateMessage(ctx, messageID, &storage.MessageUpdate{
		Content: util.StringPtr(content),
	})
}

// ==================== 发送消息 ====================

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	ConversationID string `json:"conversation_id"`            // 会话ID，为空时自动创建新会话
	Content        string `json:"content" binding:"required"` // 消息内容
}

// SendMessageResponse 发送消息响应
type SendMessageResponse struct {
	ConversationID string         `json:"conversation_id"` // 会话ID（新建会话时返回）
	UserMessage    *model.Message `json:"user_message"`    // 已保存的用户消息
	Reply          *model.Message `json:"reply"`           // AI 回复（失败时 metadata.error 有值）
}

// SendMessage 发送消息并获取 AI 回复
// 完整流程:
//  1. 会话不存在时创建新会话，标题取自消息内容
//  2. 保存用户消息（统计 Token）
//  3. 带上完整历史调用大模型，增量内容实时推送
//  4. 保存 AI 回复；调用失败时把错误文本写入回复的 metadata
//
// AI 调用受熔断器保护，网络类错误自动重试，单次调用有超时上限
func (s *ChatService) SendMessage(ctx context.Context, userID string, req *SendMessageRequest) (*SendMessageResponse, error) {
	store := s.scoped(userID)

	// 1. 确定目标会话
	conversationID := req.ConversationID
	if conversationID == "" {
		conv, err := store.CreateConversation(ctx, util.TruncateString(req.Content, maxTitleLength))
		if err != nil {
			return nil, err
		}
		conversationID = conv.ID
	} else if conv, err := store.GetConversation(ctx, conversationID); err == nil && conv != nil &&
		conv.Title == model.DefaultConversationTitle && conv.Metadata.MessageCount == 0 {
		// 先建会话后发首条消息的场景: 用首条消息替换占位标题
		update := &storage.ConversationUpdate{Title: util.StringPtr(util.TruncateString(req.Content, maxTitleLength))}
		if err := store.UpdateConversation(ctx, conversationID, update); err != nil {
			log.Printf("chat service: rename conversation from first message failed: %v", err)
		}
	}

	// 2. 保存用户消息
	userMsg := &model.Message{
		Role:    model.MessageRoleUser,
		Content: req.Content,
		Metadata: model.MessageMetadata{
			Tokens: s.countTokens(req.Content),
		},
	}
	if err := store.SaveMessage(ctx, conversationID, userMsg); err != nil {
		return nil, err
	}

	// 3. 读取完整历史，拼上系统提示词
	history, err := store.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	prompt := make([]*model.Message, 0, len(history)+1)
	prompt = append(prompt, &model.Message{
		Role:    model.MessageRoleSystem,
		Content: defaultSystemPrompt,
	})
	for i := range history {
		prompt = append(prompt, &history[i])
	}

	// 回复消息的 ID 提前生成，流式推送时前端用它对齐增量
	replyID := util.GenerateUUID()

	// 4. 调用大模型
	// 熔断器在最外层: 服务持续故障时快速失败，不再发起重试
	// 重试在中间: 网络抖动和 5xx 自动重试
	// 超时在最内层: 每次尝试独立计时
	var result *ChatResult
	callErr := s.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.Retry(ctx, s.retryCfg, func(ctx context.Context) error {
			return resilience.WithTimeout(ctx, s.aiTimeout, func(ctx context.Context) error {
				var err error
				result, err = s.ai.Chat(ctx, prompt, func(delta string) {
					if s.notifier != nil {
						s.notifier.PushDelta(userID, conversationID, replyID, delta)
					}
				})
				return err
			})
		})
	})

	// 5. 保存 AI 回复
	reply := &model.Message{
		ID:   replyID,
		Role: model.MessageRoleAssistant,
	}
	if callErr != nil {
		// 失败也落一条回复，错误文本进 metadata，前端据此渲染错误气泡
		log.Printf("chat service: ai call failed: %v", callErr)
		reply.Content = "抱歉，AI 服务暂时不可用，请稍后重试。"
		reply.Metadata = model.MessageMetadata{
			Error: callErr.Error(),
		}
	} else {
		reply.Content = result.Content
		reply.Metadata = model.MessageMetadata{
			Tokens: s.countTokens(result.Content),
			Model:  result.Model,
		}
	}

	if err := store.SaveMessage(ctx, conversationID, reply); err != nil {
		return nil, err
	}

	// 6. 推送完成事件
	if s.notifier != nil {
		s.notifier.PushMessage(userID, reply)
		if conv, err := store.GetConversation(ctx, conversationID); err == nil && conv != nil {
			s.notifier.PushConversationUpdated(userID, conv)
		}
	}

	return &SendMessageResponse{
		ConversationID: conversationID,
		UserMessage:    userMsg,
		Reply:          reply,
	}, nil
}
