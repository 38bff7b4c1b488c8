package websocket

import (
	"context"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/cache"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/model"
)

// Hub 是 WebSocket 连接的中心管理器
// 负责:
// 1. 管理所有客户端连接（按用户分组）
// 2. 把聊天事件推送给用户的全部连接
// 3. 配置了 Redis 时通过 Pub/Sub 做多实例广播
type Hub struct {
	// 客户端映射: userID -> []*Client
	// 一个用户可能有多个连接（多标签页、多设备）
	clients map[string][]*Client

	// 每个在线用户的 Redis 订阅: userID -> *redis.PubSub
	subs map[string]*redis.PubSub

	// 注册通道
	register chan *Client

	// 注销通道
	unregister chan *Client

	// 互斥锁，保护并发访问
	mu sync.RWMutex

	// Redis 缓存，可为 nil（单实例零配置模式，事件只投递本地连接）
	cache *cache.RedisCache
}

// NewHub 创建 Hub 实例
func NewHub(cache *cache.RedisCache) *Hub {
	return &Hub{
		clients:    make(map[string][]*Client),
		subs:       make(map[string]*redis.PubSub),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		cache:      cache,
	}
}

// Run 启动 Hub 的主循环
// 应该在单独的 goroutine 中运行
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

// Register 注册客户端连接
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// registerClient 注册客户端
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	first := len(h.clients[client.userID]) == 0
	h.clients[client.userID] = append(h.clients[client.userID], client)
	log.Printf("WebSocket client registered: userID=%s", client.userID)

	// 用户的第一个连接上线时建立 Redis 订阅
	// 其他实例上产生的事件通过该订阅转发到本地连接
	if first && h.cache != nil {
		pubsub := h.cache.SubscribeUserEvents(context.Background(), client.userID)
		h.subs[client.userID] = pubsub
		go h.forwardEvents(client.userID, pubsub)
	}
}

// unregisterClient 注销客户端
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[client.userID]
	for i, c := range clients {
		if c == client {
			h.clients[client.userID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}

	// 用户的最后一个连接下线时清理
	if len(h.clients[client.userID]) == 0 {
		delete(h.clients, client.userID)
		if pubsub, ok := h.subs[client.userID]; ok {
			pubsub.Close()
			delete(h.subs, client.userID)
		}
	}
	log.Printf("WebSocket client unregistered: userID=%s", client.userID)

	client.Close()
}

// forwardEvents 把 Redis 订阅收到的事件转发给本地连接
// 订阅被关闭时 goroutine 退出
func (h *Hub) forwardEvents(userID string, pubsub *redis.PubSub) {
	for msg := range pubsub.Channel() {
		h.deliverLocal(userID, []byte(msg.Payload))
	}
}

// deliverLocal 把已序列化的消息投递给用户的本地连接
func (h *Hub) deliverLocal(userID string, data []byte) {
	h.mu.RLock()
	clients := make([]*Client, len(h.clients[userID]))
	copy(clients, h.clients[userID])
	h.mu.RUnlock()

	for _, c := range clients {
		c.sendBytes(data)
	}
}

// dispatch 分发事件
// 配置了 Redis 时走 Pub/Sub（本实例的订阅也会收到，统一投递路径）；
// 否则直接投递本地连接
func (h *Hub) dispatch(userID string, msg *Message) {
	if h.cache != nil {
		if err := h.cache.PublishUserEvent(context.Background(), userID, msg); err != nil {
			log.Printf("Failed to publish user event: %v", err)
		}
		return
	}

	h.mu.RLock()
	clients := make([]*Client, len(h.clients[userID]))
	copy(clients, h.clients[userID])
	h.mu.RUnlock()

	for _, c := range clients {
		c.SendMessage(msg)
	}
}

// ==================== ChatNotifier 实现 ====================

// PushDelta 推送 AI 回复的流式增量
func (h *Hub) PushDelta(userID, conversationID, messageID, delta string) {
	h.dispatch(userID, NewMessage(TypeChatDelta, &ChatDeltaPayload{
		ConversationID: conversationID,
		MessageID:      messageID,
		Delta:          delta,
	}))
}

// PushMessage 推送完整的 AI 回复
func (h *Hub) PushMessage(userID string, msg *model.Message) {
	h.dispatch(userID, NewMessage(TypeChatMessage, &ChatMessagePayload{
		Message: msg,
	}))
}

// PushConversationUpdated 推送会话变更
func (h *Hub) PushConversationUpdated(userID string, conv *model.Conversation) {
	h.dispatch(userID, NewMessage(TypeConversationUpdated, &ConversationUpdatedPayload{
		Conversation: conv,
	}))
}

// OnlineUsers 返回当前有连接的用户数，用于健康检查
func (h *Hub) OnlineUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
