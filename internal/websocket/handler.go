package websocket

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	pkgJwt "github.com/TheAgenticWeb/agentic-web-starter-kit/pkg/jwt"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/pkg/response"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 检查来源（生产环境应该验证）
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler 处理 WebSocket 连接
type Handler struct {
	hub       *Hub
	jwtSecret string
}

// NewHandler 创建 WebSocket Handler
func NewHandler(hub *Hub, jwtSecret string) *Handler {
	return &Handler{
		hub:       hub,
		jwtSecret: jwtSecret,
	}
}

// HandleWS 处理浏览器端 WebSocket 连接
// 路由: GET /ws
// 参数: token (query parameter) - JWT token
// 浏览器的 WebSocket API 无法设置请求头，所以 token 放在 query 中
func (h *Handler) HandleWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Unauthorized(c, "需要认证 token")
		return
	}

	// 验证 JWT token
	claims, err := pkgJwt.ParseUserToken(token, h.jwtSecret)
	if err != nil {
		response.Unauthorized(c, "无效的 token")
		return
	}

	// 升级 HTTP 连接为 WebSocket
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	// 创建并注册客户端
	client := NewClient(h.hub, conn, claims.UserID)
	h.hub.Register(client)

	// 启动读写协程
	go client.WritePump()
	go client.ReadPump()

	log.Printf("WebSocket connected: userID=%s", claims.UserID)
}

// RegisterRoutes 注册 WebSocket 路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// WebSocket 路由不走认证中间件（token 在 query 中验证）
	r.GET("/ws", h.HandleWS)
}
