// Package model 定义了与数据库表对应的数据结构
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// MessageRole 消息角色常量
const (
	MessageRoleUser      = "user"      // 用户消息
	MessageRoleAssistant = "assistant" // AI 助手响应
	MessageRoleSystem    = "system"    // 系统消息
)

// ToolCall 一次工具调用记录
// 按调用顺序追加到消息的 metadata 中
type ToolCall struct {
	// Tool 工具名称，如 "web_search"、"create_task"
	Tool string `json:"tool"`

	// Input 工具入参（原始 JSON）
	Input json.RawMessage `json:"input,omitempty"`

	// Output 工具输出（原始 JSON）
	Output json.RawMessage `json:"output,omitempty"`
}

// MessageMetadata 消息元数据
// 本地适配器直接随消息 JSON 序列化；
// 远程适配器存储在 messages.metadata JSON 列中
type MessageMetadata struct {
	// Tokens 消息消耗的 Token 数量（非负）
	Tokens int `json:"tokens,omitempty"`

	// Model 生成该消息的模型标识（仅 assistant 消息有值）
	Model string `json:"model,omitempty"`

	// ToolCalls 工具调用序列，插入顺序即调用顺序
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`

	// Error 生成失败时的错误文本
	Error string `json:"error,omitempty"`
}

// IsZero 判断元数据是否为空
func (m MessageMetadata) IsZero() bool {
	return m.Tokens == 0 && m.Model == "" && len(m.ToolCalls) == 0 && m.Error == ""
}

// Merge 将 other 中提供的字段合并进当前元数据
// 部分更新只覆盖提供的字段，不整体替换；
// 零值视为"未提供"，无法通过 Merge 把字段清回零值
func (m *MessageMetadata) Merge(other *MessageMetadata) {
	if other == nil {
		return
	}
	if other.Tokens != 0 {
		m.Tokens = other.Tokens
	}
	if other.Model != "" {
		m.Model = other.Model
	}
	if len(other.ToolCalls) > 0 {
		m.ToolCalls = other.ToolCalls
	}
	if other.Error != "" {
		m.Error = other.Error
	}
}

// Value 实现 driver.Valuer，将元数据序列化为 JSON 存入数据库
func (m MessageMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan 实现 sql.Scanner，从数据库 JSON 列还原元数据
func (m *MessageMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = MessageMetadata{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return errors.New("unsupported type for MessageMetadata")
	}
}

// Message 消息模型
// 对应数据库表 messages
// 一条消息终生只属于一个会话，不会在会话之间移动
type Message struct {
	// ID 消息唯一标识（UUID），创建时生成，此后不可变
	ID string `gorm:"primaryKey;size:36" json:"id"`

	// ConversationID 所属会话ID，外键关联 conversations.id
	ConversationID string `gorm:"size:36;index;not null" json:"conversation_id"`

	// Role 消息角色: user / assistant / system，不可变
	Role string `gorm:"size:20;not null" json:"role"`

	// Content 消息内容，可通过显式更新修改
	Content string `gorm:"type:text;not null" json:"content"`

	// CreatedAt 消息创建时间，不可变
	CreatedAt time.Time `gorm:"index" json:"timestamp"`

	// Metadata 消息元数据（Token 数、模型、工具调用、错误）
	Metadata MessageMetadata `gorm:"type:json" json:"metadata,omitempty"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "messages"
}
