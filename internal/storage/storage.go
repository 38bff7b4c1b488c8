// Package storage 提供聊天历史的持久化抽象
// 定义统一的存储契约 ChatStorage，由本地适配器（单文档 KV 存储）
// 和远程适配器（MySQL）两种实现，消费方通过工厂获得其中之一，
// 不感知具体后端
package storage

import (
	"context"
	"errors"

	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/model"
)

// 存储层错误
// 使用 errors.Is 判断，适配器不吞掉任何写失败
var (
	ErrConversationNotFound = errors.New("会话不存在")
	ErrMessageNotFound      = errors.New("消息不存在")

	// ErrUserNotBound 多用户模式下的操作需要绑定用户身份但未绑定
	// 防止在没有身份的情况下误清空整表
	ErrUserNotBound = errors.New("未绑定用户身份")
)

// MessageUpdate 消息的部分更新
// 只合并提供的字段，nil 字段保持原值；Metadata 与已有元数据合并而非替换
type MessageUpdate struct {
	Content  *string
	Metadata *model.MessageMetadata
}

// ConversationUpdate 会话的部分更新
type ConversationUpdate struct {
	Title    *string
	Metadata *model.ConversationMetadata
}

// ChatStorage 聊天历史存储契约
// 所有持久化后端都必须实现的接口；方法名、签名和"缺失即错误"
// 语义是 UI 层依赖的对外契约，实现之间可以互相替换
type ChatStorage interface {
	// SaveMessage 向已存在的会话追加一条消息
	// 副作用: 刷新会话 UpdatedAt，重算 metadata 中的 totalTokens/messageCount
	// 会话不存在时返回 ErrConversationNotFound（不会隐式创建）
	SaveMessage(ctx context.Context, conversationID string, msg *model.Message) error

	// GetMessages 返回会话的全部消息，按创建时间正序
	// 会话存在但没有消息时返回空切片而不是错误；
	// 会话不存在时返回 ErrConversationNotFound
	GetMessages(ctx context.Context, conversationID string) ([]model.Message, error)

	// DeleteMessage 在当前 scope 的所有会话中查找并删除指定消息
	// 删除保持其余消息的相对顺序；未找到返回 ErrMessageNotFound
	DeleteMessage(ctx context.Context, messageID string) error

	// UpdateMessage 合并更新消息的 Content / Metadata
	// 未找到返回 ErrMessageNotFound
	UpdateMessage(ctx context.Context, messageID string, update *MessageUpdate) error

	// ListConversations 返回当前 scope 可见的全部会话（含消息），
	// 按 UpdatedAt 倒序（最近活跃的在前）
	ListConversations(ctx context.Context) ([]model.Conversation, error)

	// GetConversation 获取单个会话（含消息）
	// 不存在返回 (nil, nil)，缺失不是错误
	GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error)

	// CreateConversation 创建新会话
	// title 为空时使用占位标题；两个时间戳同时置为当前时间，元数据归零
	CreateConversation(ctx context.Context, title string) (*model.Conversation, error)

	// UpdateConversation 合并更新会话的 Title / Metadata，并刷新 UpdatedAt
	// 不存在返回 ErrConversationNotFound
	UpdateConversation(ctx context.Context, conversationID string, update *ConversationUpdate) error

	// DeleteConversation 删除会话并级联删除其全部消息
	// 不存在返回 ErrConversationNotFound
	DeleteConversation(ctx context.Context, conversationID string) error

	// ClearAll 删除当前 scope 可见的所有会话和消息
	// 远程多用户模式下必须已绑定用户身份，否则返回 ErrUserNotBound
	ClearAll(ctx context.Context) error

	// WithUser 返回绑定了用户身份的存储视图
	// 远程适配器按 userID 做行级隔离；本地适配器是单用户存储，原样返回自身
	WithUser(userID string) ChatStorage
}
