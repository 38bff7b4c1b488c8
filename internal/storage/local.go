// Package storage 提供聊天历史的持久化抽象
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/model"
)

// DefaultStorageKey 本地适配器默认使用的存储 key
const DefaultStorageKey = "chat-conversations"

// document 本地适配器的持久化文档
// 整个存储就是一个会话ID到会话的映射，JSON 序列化后存在单个 key 下，
// 日期字段以 RFC 3339 字符串往返（JSON 没有原生日期类型）
type document struct {
	Conversations map[string]*model.Conversation `json:"conversations"`
}

// newDocument 创建空文档
func newDocument() *document {
	return &document{Conversations: make(map[string]*model.Conversation)}
}

// LocalStore 本地存储适配器
// 每个操作都遵循"读整个文档 → 内存中修改 → 写回整个文档"的模式，
// 没有部分读写。并发写是 last-write-wins，单用户开发存储接受这一点；
// 进程内用互斥锁串行化读改写周期，避免同进程内的交错丢更新
type LocalStore struct {
	kv  KeyValueStore
	key string
	mu  sync.Mutex
}

// NewLocalStore 创建本地存储适配器
// key 作为命名资源显式传入（而不是隐式全局单例），测试可用不同 key 隔离
func NewLocalStore(kv KeyValueStore, key string) *LocalStore {
	if key == "" {
		key = DefaultStorageKey
	}
	return &LocalStore{kv: kv, key: key}
}

// WithUser 本地适配器是单用户存储，忽略用户绑定
func (s *LocalStore) WithUser(string) ChatStorage {
	return s
}

// load 读取并反序列化整个文档
// 读失败（首次运行、key 缺失、数据损坏）降级为空文档并记录日志：
// 空会话列表是安全且可恢复的默认值
func (s *LocalStore) load(ctx context.Context) *document {
	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		log.Printf("local storage: read failed, starting from empty document: %v", err)
		return newDocument()
	}
	if len(data) == 0 {
		return newDocument()
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Printf("local storage: corrupt document, starting from empty: %v", err)
		return newDocument()
	}
	if doc.Conversations == nil {
		doc.Conversations = make(map[string]*model.Conversation)
	}
	return &doc
}

// save 序列化整个文档并写回
// 写失败必须上浮给调用方，静默丢写比报错更糟
func (s *LocalStore) save(ctx context.Context, doc *document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("local storage: marshal document: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		log.Printf("local storage: write failed: %v", err)
		return fmt.Errorf("local storage: write document: %w", err)
	}
	return nil
}

// CreateConversation 创建新会话
func (s *LocalStore) CreateConversation(ctx context.Context, title string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if title == "" {
		title = model.DefaultConversationTitle
	}

	now := time.Now()
	conv := &model.Conversation{
		ID:        uuid.New().String(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []model.Message{},
	}

	doc := s.load(ctx)
	doc.Conversations[conv.ID] = conv
	if err := s.save(ctx, doc); err != nil {
		return nil, err
	}
	return conv, nil
}

// GetConversation 获取单个会话，不存在返回 (nil, nil)
func (s *LocalStore) GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load(ctx)
	conv, ok := doc.Conversations[conversationID]
	if !ok {
		return nil, nil
	}
	return conv, nil
}

// ListConversations 返回全部会话，按 UpdatedAt 倒序
func (s *LocalStore) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load(ctx)
	result := make([]model.Conversation, 0, len(doc.Conversations))
	for _, conv := range doc.Conversations {
		result = append(result, *conv)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

// UpdateConversation 合并更新会话的标题和元数据
func (s *LocalStore) UpdateConversation(ctx context.Context, conversationID string, update *ConversationUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load(ctx)
	conv, ok := doc.Conversations[conversationID]
	if !ok {
		return ErrConversationNotFound
	}

	if update != nil {
		if update.Title != nil {
			conv.Title = *update.Title
		}
		conv.Metadata.Merge(update.Metadata)
	}
	conv.UpdatedAt = time.Now()

	return s.save(ctx, doc)
}

// DeleteConversation 删除会话，消息随文档一并消失（级联）
func (s *LocalStore) DeleteConversation(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load(ctx)
	if _, ok := doc.Conversations[conversationID]; !ok {
		return ErrConversationNotFound
	}
	delete(doc.Conversations, conversationID)
	return s.save(ctx, doc)
}

// SaveMessage 向已存在的会话追加消息
func (s *LocalStore) SaveMessage(ctx context.Context, conversationID string, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load(ctx)
	conv, ok := doc.Conversations[conversationID]
	if !ok {
		return ErrConversationNotFound
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.ConversationID = conversationID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	conv.Messages = append(conv.Messages, *msg)
	conv.RecountMetadata()
	conv.UpdatedAt = time.Now()

	return s.save(ctx, doc)
}

// GetMessages 返回会话的全部消息，按时间正序
func (s *LocalStore) GetMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load(ctx)
	conv, ok := doc.Conversations[conversationID]
	if !ok {
		return nil, ErrConversationNotFound
	}

	messages := make([]model.Message, len(conv.Messages))
	copy(messages, conv.Messages)
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

// DeleteMessage 在所有会话中查找并删除消息，保持其余消息的相对顺序
func (s *LocalStore) DeleteMessage(ctx context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load(ctx)
	for _, conv := range doc.Conversations {
		for i, msg := range conv.Messages {
			if msg.ID != messageID {
				continue
			}
			conv.Messages = append(conv.Messages[:i], conv.Messages[i+1:]...)
			conv.RecountMetadata()
			conv.UpdatedAt = time.Now()
			return s.save(ctx, doc)
		}
	}
	return ErrMessageNotFound
}

// UpdateMessage 合并更新消息的内容和元数据
func (s *LocalStore) UpdateMessage(ctx context.Context, messageID string, update *MessageUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load(ctx)
	for _, conv := range doc.Conversations {
		for i := range conv.Messages {
			if conv.Messages[i].ID != messageID {
				continue
			}
			if update != nil {
				if update.Content != nil {
					conv.Messages[i].Content = *update.Content
				}
				conv.Messages[i].Metadata.Merge(update.Metadata)
			}
			conv.RecountMetadata() // Token 数可能被更新
			conv.UpdatedAt = time.Now()
			return s.save(ctx, doc)
		}
	}
	return ErrMessageNotFound
}

// ClearAll 清空整个文档
// 本地存储是单用户的，scope 即全部数据，无需绑定身份
func (s *LocalStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.save(ctx, newDocument())
}
