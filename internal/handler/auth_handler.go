// Package handler 提供 HTTP 请求处理器
package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/middleware"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/service"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/pkg/response"
)

// AuthHandler 认证请求处理器
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler 创建 AuthHandler 实例
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Register 用户注册
// @Summary 用户注册
// @Description 使用用户名和密码注册新用户
// @Tags 认证
// @Accept json
// @Produce json
// @Param body body service.RegisterRequest true "注册信息"
// @Success 200 {object} response.Response{data=service.RegisterResponse}
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "无效的请求参数")
		return
	}

	resp, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserExists):
			response.UserExists(c)
		default:
			response.InternalError(c, "注册失败")
		}
		return
	}

	response.Success(c, resp)
}

// Login 用户登录
// @Summary 用户登录
// @Description 使用用户名和密码登录，返回 Access Token 和 Refresh Token
// @Tags 认证
// @Accept json
// @Produce json
// @Param body body service.LoginRequest true "登录信息"
// @Success 200 {object} response.Response{data=service.LoginResponse}
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "无效的请求参数")
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			response.UserNotFound(c)
		case errors.Is(err, service.ErrPasswordWrong):
			response.PasswordWrong(c)
		case errors.Is(err, service.ErrUserDisabled):
			response.Forbidden(c, "账号已被禁用")
		default:
			response.InternalError(c, "登录失败")
		}
		return
	}

	response.Success(c, resp)
}

// Logout 用户登出
// @Summary 用户登出
// @Description 将当前 Token 加入黑名单
// @Tags 认证
// @Security Bearer
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	// 认证中间件已把原始 Token 及其过期时间存入上下文
	token := c.GetString("token")
	expVal, exists := c.Get("token_exp")
	if token == "" || !exists {
		response.Unauthorized(c, "请先登录")
		return
	}

	var expireAt time.Time
	if exp, ok := expVal.(*jwt.NumericDate); ok && exp != nil {
		expireAt = exp.Time
	}

	if err := h.authService.Logout(c.Request.Context(), middleware.HashToken(token), expireAt); err != nil {
		response.InternalError(c, "登出失败")
		return
	}

	response.SuccessWithMessage(c, "已登出", nil)
}

// refreshTokenRequest 刷新 Token 请求
type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RefreshToken 刷新 Access Token
// @Summary 刷新 Token
// @Description 使用 Refresh Token 换取新的 Access Token
// @Tags 认证
// @Accept json
// @Produce json
// @Success 200 {object} response.Response{data=service.RefreshTokenResponse}
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req refreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "无效的请求参数")
		return
	}

	resp, err := h.authService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.Unauthorized(c, "Refresh Token 无效或已过期")
		return
	}

	response.Success(c, resp)
}
