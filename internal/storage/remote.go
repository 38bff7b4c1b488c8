// Package storage 提供聊天历史的持久化抽象
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/model"
)

// RemoteStore 远程存储适配器
// 基于 GORM/MySQL 实现存储契约，按可选的绑定用户做行级隔离。
// userID 为空时 ListConversations 不加过滤（整表可见，运维/管理用途），
// 但 ClearAll 会拒绝执行——无范围删除的影响面太大。
// 并发控制完全交给数据库，客户端不加锁
type RemoteStore struct {
	db     *gorm.DB
	userID string
}

// NewRemoteStore 创建远程存储适配器
// userID 可以为空（未绑定身份），之后可用 WithUser 绑定
func NewRemoteStore(db *gorm.DB, userID string) *RemoteStore {
	return &RemoteStore{db: db, userID: userID}
}

// WithUser 返回绑定了用户身份的存储视图
func (s *RemoteStore) WithUser(userID string) ChatStorage {
	return &RemoteStore{db: s.db, userID: userID}
}

// CreateConversation 创建新会话
func (s *RemoteStore) CreateConversation(ctx context.Context, title string) (*model.Conversation, error) {
	if title == "" {
		title = model.DefaultConversationTitle
	}

	now := time.Now()
	conv := &model.Conversation{
		ID:        uuid.New().String(),
		Title:     title,
		UserID:    s.userID,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  model.ConversationMetadata{UserID: s.userID},
		Messages:  []model.Message{},
	}

	if err := s.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// GetConversation 获取单个会话及其消息
// "记录未找到"翻译为 (nil, nil)，与本地适配器的"缺失不是错误"策略一致
func (s *RemoteStore) GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ?", conversationID).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if s.userID != "" && conv.UserID != s.userID {
		// 其他用户的会话在当前 scope 内视作不存在
		return nil, nil
	}
	if conv.Messages == nil {
		conv.Messages = []model.Message{}
	}
	return &conv, nil
}

// ListConversations 返回当前 scope 的会话列表（含消息）
// 排序交给数据库（会话按 updated_at 倒序，消息按 created_at 正序），
// 批量取回的消息在客户端再做一次防御性排序
func (s *RemoteStore) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	query := s.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Order("updated_at DESC")
	if s.userID != "" {
		query = query.Where("user_id = ?", s.userID)
	}

	var conversations []model.Conversation
	if err := query.Find(&conversations).Error; err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	for i := range conversations {
		if conversations[i].Messages == nil {
			conversations[i].Messages = []model.Message{}
			continue
		}
		msgs := conversations[i].Messages
		sort.SliceStable(msgs, func(a, b int) bool {
			return msgs[a].CreatedAt.Before(msgs[b].CreatedAt)
		})
	}
	return conversations, nil
}

// UpdateConversation 合并更新会话的标题和元数据，刷新 updated_at
func (s *RemoteStore) UpdateConversation(ctx context.Context, conversationID string, update *ConversationUpdate) error {
	conv, err := s.findConversation(ctx, conversationID)
	if err != nil {
		return err
	}

	fields := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if update != nil {
		if update.Title != nil {
			fields["title"] = *update.Title
		}
		if update.Metadata != nil {
			merged := conv.Metadata
			merged.Merge(update.Metadata)
			fields["metadata"] = merged
		}
	}

	err = s.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Updates(fields).Error
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	return nil
}

// DeleteConversation 删除会话并级联删除其全部消息
func (s *RemoteStore) DeleteConversation(ctx context.Context, conversationID string) error {
	if _, err := s.findConversation(ctx, conversationID); err != nil {
		return err
	}

	// 先删子表再删主表，不假设数据库层面配置了级联
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&model.Message{}).Error
	if err != nil {
		return fmt.Errorf("delete conversation messages: %w", err)
	}

	err = s.db.WithContext(ctx).
		Where("id = ?", conversationID).
		Delete(&model.Conversation{}).Error
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

// SaveMessage 向已存在的会话追加消息
// 两步操作：先插入消息行，再刷新父会话的 updated_at 与统计。
// 第二步失败时消息已经落库，只是列表排序短暂失真——
// 不做跨行事务回滚，这是接受的不一致窗口
func (s *RemoteStore) SaveMessage(ctx context.Context, conversationID string, msg *model.Message) error {
	if _, err := s.findConversation(ctx, conversationID); err != nil {
		return err
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.ConversationID = conversationID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("save message: %w", err)
	}

	return s.touchConversation(ctx, conversationID)
}

// GetMessages 返回会话的全部消息，按创建时间正序
func (s *RemoteStore) GetMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	if _, err := s.findConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	var messages []model.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	if messages == nil {
		messages = []model.Message{}
	}
	return messages, nil
}

// DeleteMessage 删除当前 scope 内的指定消息
func (s *RemoteStore) DeleteMessage(ctx context.Context, messageID string) error {
	msg, err := s.findMessage(ctx, messageID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).
		Where("id = ?", messageID).
		Delete(&model.Message{}).Error
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	return s.touchConversation(ctx, msg.ConversationID)
}

// UpdateMessage 合并更新消息的内容和元数据
func (s *RemoteStore) UpdateMessage(ctx context.Context, messageID string, update *MessageUpdate) error {
	msg, err := s.findMessage(ctx, messageID)
	if err != nil {
		return err
	}

	fields := map[string]interface{}{}
	if update != nil {
		if update.Content != nil {
			fields["content"] = *update.Content
		}
		if update.Metadata != nil {
			merged := msg.Metadata
			merged.Merge(update.Metadata)
			fields["metadata"] = merged
		}
	}
	if len(fields) > 0 {
		err = s.db.WithContext(ctx).
			Model(&model.Message{}).
			Where("id = ?", messageID).
			Updates(fields).Error
		if err != nil {
			return fmt.Errorf("update message: %w", err)
		}
	}

	return s.touchConversation(ctx, msg.ConversationID)
}

// ClearAll 删除当前用户的所有会话和消息
// 未绑定用户身份时拒绝执行：列表的无范围模式可以容忍，
// 无范围的删除不行
func (s *RemoteStore) ClearAll(ctx context.Context) error {
	if s.userID == "" {
		return ErrUserNotBound
	}

	sub := s.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Select("id").
		Where("user_id = ?", s.userID)

	err := s.db.WithContext(ctx).
		Where("conversation_id IN (?)", sub).
		Delete(&model.Message{}).Error
	if err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}

	err = s.db.WithContext(ctx).
		Where("user_id = ?", s.userID).
		Delete(&model.Conversation{}).Error
	if err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}
	return nil
}

// findConversation 查找 scope 内的会话（不带消息）
// 不存在或不属于当前用户时返回 ErrConversationNotFound
func (s *RemoteStore) findConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).
		Where("id = ?", conversationID).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	if s.userID != "" && conv.UserID != s.userID {
		// 其他用户的会话在当前 scope 内视作不存在
		return nil, ErrConversationNotFound
	}
	return &conv, nil
}

// findMessage 查找 scope 内的消息
func (s *RemoteStore) findMessage(ctx context.Context, messageID string) (*model.Message, error) {
	var msg model.Message
	err := s.db.WithContext(ctx).
		Where("id = ?", messageID).
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("find message: %w", err)
	}

	if s.userID != "" {
		if _, err := s.findConversation(ctx, msg.ConversationID); err != nil {
			return nil, ErrMessageNotFound
		}
	}
	return &msg, nil
}

// touchConversation 刷新会话的 updated_at 并重算反规范化统计
func (s *RemoteStore) touchConversation(ctx context.Context, conversationID string) error {
	var conv model.Conversation
	err := s.db.WithContext(ctx).
		Where("id = ?", conversationID).
		First(&conv).Error
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}

	var messages []model.Message
	err = s.db.WithContext(ctx).
		Select("metadata").
		Where("conversation_id = ?", conversationID).
		Find(&messages).Error
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}

	metadata := conv.Metadata
	metadata.TotalTokens = 0
	metadata.MessageCount = len(messages)
	for _, m := range messages {
		metadata.TotalTokens += m.Metadata.Tokens
	}

	err = s.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"updated_at": time.Now(),
			"metadata":   metadata,
		}).Error
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}
