// Package websocket 提供 WebSocket 通信功能
// 把聊天事件实时推送给用户打开的所有浏览器标签页
package websocket

import (
	"time"

	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/model"
)

// MessageType 消息类型常量
const (
	// 客户端 → 服务端
	TypeHeartbeat = "heartbeat" // 心跳

	// 服务端 → 客户端
	TypeChatDelta           = "chat:delta"           // AI 流式增量
	TypeChatMessage         = "chat:message"         // AI 完整回复
	TypeConversationUpdated = "conversation:updated" // 会话变更（标题、统计）

	// 通用
	TypeError = "error" // 错误消息
	TypePong  = "pong"  // 心跳响应
)

// Message WebSocket 消息结构
// 所有消息都使用这个统一的结构
type Message struct {
	Type      string      `json:"type"`      // 消息类型
	Payload   interface{} `json:"payload"`   // 消息内容
	Timestamp int64       `json:"timestamp"` // 时间戳（毫秒）
}

// NewMessage 创建新消息
func NewMessage(msgType string, payload interface{}) *Message {
	return &Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}

// ==================== Payload 类型定义 ====================

// ChatDeltaPayload AI 流式增量 Payload
type ChatDeltaPayload struct {
	ConversationID string `json:"conversation_id"` // 会话ID
	MessageID      string `json:"message_id"`      // 回复消息ID，前端用它拼接增量
	Delta          string `json:"delta"`           // 增量内容
}

// ChatMessagePayload AI 完整回复 Payload
type ChatMessagePayload struct {
	Message *model.Message `json:"message"` // 完整消息
}

// ConversationUpdatedPayload 会话变更 Payload
type ConversationUpdatedPayload struct {
	Conversation *model.Conversation `json:"conversation"` // 变更后的会话
}

// ErrorPayload 错误消息 Payload
type ErrorPayload struct {
	Message string `json:"message"` // 错误描述
}
