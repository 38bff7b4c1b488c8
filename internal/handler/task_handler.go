package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/middleware"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/service"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/pkg/response"
)

// TaskHandler 任务请求处理器
type TaskHandler struct {
	taskService *service.TaskService
}

// NewTaskHandler 创建 TaskHandler 实例
func NewTaskHandler(taskService *service.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// ListTasks 获取任务列表
// @Summary 获取任务列表
// @Description 返回当前用户的所有看板任务，按状态和位置排序
// @Tags 任务
// @Security Bearer
// @Produce json
// @Success 200 {object} response.Response{data=[]model.Task}
// @Router /api/v1/tasks [get]
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID := middleware.GetUserID(c)

	tasks, err := h.taskService.ListTasks(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c, "获取任务列表失败")
		return
	}

	response.Success(c, tasks)
}

// CreateTask 创建任务
// @Summary 创建任务
// @Tags 任务
// @Security Bearer
// @Accept json
// @Produce json
// @Param body body service.CreateTaskRequest true "任务内容"
// @Success 201 {object} response.Response{data=model.Task}
// @Router /api/v1/tasks [post]
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req service.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "无效的请求参数")
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidTaskStatus) {
			response.BadRequest(c, "无效的任务状态")
		} else {
			response.InternalError(c, "创建任务失败")
		}
		return
	}

	response.Created(c, task)
}

// UpdateTask 更新任务
// @Summary 更新任务
// @Description 更新任务的标题、描述、状态或位置；状态变更即看板列流转
// @Tags 任务
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path string true "任务ID"
// @Param body body service.UpdateTaskRequest true "更新内容"
// @Success 200 {object} response.Response{data=model.Task}
// @Router /api/v1/tasks/{id} [put]
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID := middleware.GetUserID(c)
	taskID := c.Param("id")

	var req service.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "无效的请求参数")
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), userID, taskID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTaskNotFound):
			response.TaskNotFound(c)
		case errors.Is(err, service.ErrInvalidTaskStatus):
			response.BadRequest(c, "无效的任务状态")
		default:
			response.InternalError(c, "更新任务失败")
		}
		return
	}

	response.Success(c, task)
}

// DeleteTask 删除任务
// @Summary 删除任务
// @Tags 任务
// @Security Bearer
// @Produce json
// @Param id path string true "任务ID"
// @Success 204
// @Router /api/v1/tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID := middleware.GetUserID(c)
	taskID := c.Param("id")

	if err := h.taskService.DeleteTask(c.Request.Context(), userID, taskID); err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			response.TaskNotFound(c)
		} else {
			response.InternalError(c, "删除任务失败")
		}
		return
	}

	response.NoContent(c)
}
