package service

import (
	"context"
	"errors"

	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/model"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/pkg/util"
)

// 任务服务相关错误
var (
	ErrTaskNotFound      = errors.New("任务不存在")
	ErrInvalidTaskStatus = errors.New("无效的任务状态")
)

// TaskStore 任务数据访问接口
// 由 repository.TaskRepository 实现，测试中可用内存实现替换
type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	GetByID(ctx context.Context, id string) (*model.Task, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Task, error)
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, id string) error
	MaxPosition(ctx context.Context, userID string, status string) (int, error)
}

// TaskService 任务服务
// 处理看板任务的增删改查，同时供 HTTP 接口和 Agent 工具调用
type TaskService struct {
	taskRepo TaskStore // 任务数据访问层
}

// NewTaskService 创建 TaskService 实例
func NewTaskService(taskRepo TaskStore) *TaskService {
	return &TaskService{
		taskRepo: taskRepo,
	}
}

// validTaskStatus 检查状态是否合法
func validTaskStatus(status string) bool {
	switch status {
	case model.TaskStatusTodo, model.TaskStatusDoing, model.TaskStatusDone:
		return true
	}
	return false
}

// CreateTaskRequest 创建任务请求
type CreateTaskRequest struct {
	Title       string `json:"title" binding:"required,max=255"` // 任务标题
	Description string `json:"description"`                      // 任务描述（可选）
	Status      string `json:"status"`                           // 初始状态，默认 todo
}

// CreateTask 创建任务
// 新任务追加到对应状态列的末尾
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//   - req: 创建请求
//
// 返回:
//   - *model.Task: 创建的任务
//   - error: 操作错误
func (s *TaskService) CreateTask(ctx context.Context, userID string, req *CreateTaskRequest) (*model.Task, error) {
	status := req.Status
	if status == "" {
		status = model.TaskStatusTodo
	}
	if !validTaskStatus(status) {
		return nil, ErrInvalidTaskStatus
	}

	// 追加到列尾
	max, err := s.taskRepo.MaxPosition(ctx, userID, status)
	if err != nil {
		return nil, err
	}

	task := &model.Task{
		ID:          util.GenerateUUID(),
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		Position:    max + 1,
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks 获取用户的任务列表
func (s *TaskService) ListTasks(ctx context.Context, userID string) ([]*model.Task, error) {
	return s.taskRepo.ListByUser(ctx, userID)
}

// UpdateTaskRequest 更新任务请求
// 所有字段可选，只更新提供的字段
type UpdateTaskRequest struct {
	Title       *string `json:"title"`       // 新标题
	Description *string `json:"description"` // 新描述
	Status      *string `json:"status"`      // 新状态（看板列流转）
	Position    *int    `json:"position"`    // 新位置
}

// UpdateTask 更新任务
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID（校验任务归属）
//   - taskID: 任务ID
//   - req: 更新请求
//
// 返回:
//   - *model.Task: 更新后的任务
//   - error: 任务不存在或不属于该用户返回 ErrTaskNotFound
func (s *TaskService) UpdateTask(ctx context.Context, userID, taskID string, req *UpdateTaskRequest) (*model.Task, error) {
	task, err := s.getOwnedTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Status != nil {
		if !validTaskStatus(*req.Status) {
			return nil, ErrInvalidTaskStatus
		}
		fields["status"] = *req.Status
		// 状态变更且未指定位置时，移到目标列的末尾
		if req.Position == nil && *req.Status != task.Status {
			max, err := s.taskRepo.MaxPosition(ctx, userID, *req.Status)
			if err != nil {
				return nil, err
			}
			fields["position"] = max + 1
		}
	}
	if req.Position != nil {
		fields["position"] = *req.Position
	}

	if len(fields) == 0 {
		return task, nil
	}

	if err := s.taskRepo.UpdateFields(ctx, taskID, fields); err != nil {
		return nil, err
	}
	return s.taskRepo.GetByID(ctx, taskID)
}

// DeleteTask 删除任务
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID（校验任务归属）
//   - taskID: 任务ID
//
// 返回:
//   - error: 任务不存在返回 ErrTaskNotFound
func (s *TaskService) DeleteTask(ctx context.Context, userID, taskID string) error {
	if _, err := s.getOwnedTask(ctx, userID, taskID); err != nil {
		return err
	}
	return s.taskRepo.Delete(ctx, taskID)
}

// getOwnedTask 获取任务并校验归属
// 任务不存在或属于其他用户都返回 ErrTaskNotFound，避免泄露他人任务的存在性
func (s *TaskService) getOwnedTask(ctx context.Context, userID, taskID string) (*model.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil || task.UserID != userID {
		return nil, ErrTaskNotFound
	}
	return task, nil
}
