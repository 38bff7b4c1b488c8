// Package model 定义了与数据库表对应的数据结构
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// DefaultConversationTitle 创建会话时未提供标题使用的占位标题
const DefaultConversationTitle = "新对话"

// ConversationMetadata 会话元数据
// TotalTokens 和 MessageCount 是对 Messages 的反规范化缓存，
// 每次成功的写操作之后必须与消息列表重新对齐
type ConversationMetadata struct {
	// TotalTokens 所有消息 Token 数的累计和
	TotalTokens int `json:"totalTokens"`

	// MessageCount 消息数量，与 len(Messages) 保持一致
	MessageCount int `json:"messageCount"`

	// UserID 所属用户，仅远程多用户模式下有值
	UserID string `json:"userId,omitempty"`
}

// Merge 将 other 中提供的字段合并进当前元数据
// 零值视为"未提供"，无法通过 Merge 把字段清回零值
func (m *ConversationMetadata) Merge(other *ConversationMetadata) {
	if other == nil {
		return
	}
	if other.TotalTokens != 0 {
		m.TotalTokens = other.TotalTokens
	}
	if other.MessageCount != 0 {
		m.MessageCount = other.MessageCount
	}
	if other.UserID != "" {
		m.UserID = other.UserID
	}
}

// Value 实现 driver.Valuer
func (m ConversationMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan 实现 sql.Scanner
func (m *ConversationMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = ConversationMetadata{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return errors.New("unsupported type for ConversationMetadata")
	}
}

// Conversation 会话模型
// 对应数据库表 conversations
// 表示用户与 AI 的一次对话，消息按追加顺序排列
type Conversation struct {
	// ID 会话唯一标识（UUID），创建时生成，不可变
	ID string `gorm:"primaryKey;size:36" json:"id"`

	// Title 会话标题，创建时未提供则使用占位标题
	Title string `gorm:"size:255;not null" json:"title"`

	// UserID 所属用户ID，多用户模式下用于行级隔离
	// 本地单用户模式下为空
	UserID string `gorm:"size:36;index" json:"user_id,omitempty"`

	// CreatedAt 创建时间，不可变
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt 会话或其任何消息每次变更时刷新
	// 会话列表按此字段倒序排列
	UpdatedAt time.Time `gorm:"index" json:"updatedAt"`

	// Metadata 会话元数据（Token 累计、消息数、归属）
	Metadata ConversationMetadata `gorm:"type:json" json:"metadata"`

	// Messages 会话中的所有消息（一对多关系），按创建时间正序
	Messages []Message `gorm:"foreignKey:ConversationID" json:"messages"`
}

// TableName 指定表名
func (Conversation) TableName() string {
	return "conversations"
}

// RecountMetadata 根据当前消息列表重算反规范化缓存
// 任何改变消息列表的操作之后调用
func (c *Conversation) RecountMetadata() {
	total := 0
	for _, m := range c.Messages {
		total += m.Metadata.Tokens
	}
	c.Metadata.TotalTokens = total
	c.Metadata.MessageCount = len(c.Messages)
}
