package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/model"
	"github.com/TheAgenticWeb/agentic-web-starter-kit/pkg/util"
)

// memTaskStore 内存实现的 TaskStore，测试专用
type memTaskStore struct {
	tasks map[string]*model.Task
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: make(map[string]*model.Task)}
}

func (s *memTaskStore) Create(_ context.Context, task *model.Task) error {
	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

func (s *memTaskStore) GetByID(_ context.Context, id string) (*model.Task, error) {
	task, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	cp := *task
	return &cp, nil
}

func (s *memTaskStore) ListByUser(_ context.Context, userID string) ([]*model.Task, error) {
	var out []*model.Task
	for _, task := range s.tasks {
		if task.UserID == userID {
			cp := *task
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memTaskStore) UpdateFields(_ context.Context, id string, fields map[string]interface{}) error {
	task, ok := s.tasks[id]
	if !ok {
		return nil
	}
	for k, v := range fields {
		switch k {
		case "title":
			task.Title = v.(string)
		case "description":
			task.Description = v.(string)
		case "status":
			task.Status = v.(string)
		case "position":
			task.Position = v.(int)
		}
	}
	return nil
}

func (s *memTaskStore) Delete(_ context.Context, id string) error {
	delete(s.tasks, id)
	return nil
}

func (s *memTaskStore) MaxPosition(_ context.Context, userID string, status string) (int, error) {
	max := 0
	for _, task := range s.tasks {
		if task.UserID == userID && task.Status == status && task.Position > max {
			max = task.Position
		}
	}
	return max, nil
}

func TestTaskService_CreateTask(t *testing.T) {
	svc := NewTaskService(newMemTaskStore())
	ctx := context.Background()

	t.Run("默认状态为待办", func(t *testing.T) {
		task, err := svc.CreateTask(ctx, "user-1", &CreateTaskRequest{Title: "写周报"})
		require.NoError(t, err)
		assert.NotEmpty(t, task.ID)
		assert.Equal(t, model.TaskStatusTodo, task.Status)
		assert.Equal(t, 1, task.Position)
	})

	t.Run("追加到列尾", func(t *testing.T) {
		task, err := svc.CreateTask(ctx, "user-1", &CreateTaskRequest{Title: "修 bug"})
		require.NoError(t, err)
		assert.Equal(t, 2, task.Position)
	})

	t.Run("非法状态", func(t *testing.T) {
		_, err := svc.CreateTask(ctx, "user-1", &CreateTaskRequest{Title: "x", Status: "blocked"})
		assert.ErrorIs(t, err, ErrInvalidTaskStatus)
	})
}

func TestTaskService_UpdateTask(t *testing.T) {
	svc := NewTaskService(newMemTaskStore())
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, "user-1", &CreateTaskRequest{Title: "旧标题"})
	require.NoError(t, err)

	t.Run("更新标题", func(t *testing.T) {
		updated, err := svc.UpdateTask(ctx, "user-1", task.ID, &UpdateTaskRequest{
			Title: util.StringPtr("新标题"),
		})
		require.NoError(t, err)
		assert.Equal(t, "新标题", updated.Title)
		assert.Equal(t, model.TaskStatusTodo, updated.Status)
	})

	t.Run("状态流转移到目标列末尾", func(t *testing.T) {
		// doing 列已有一个任务占位
		existing, err := svc.CreateTask(ctx, "user-1", &CreateTaskRequest{Title: "进行中", Status: model.TaskStatusDoing})
		require.NoError(t, err)
		require.Equal(t, 1, existing.Position)

		updated, err := svc.UpdateTask(ctx, "user-1", task.ID, &UpdateTaskRequest{
			Status: util.StringPtr(model.TaskStatusDoing),
		})
		require.NoError(t, err)
		assert.Equal(t, model.TaskStatusDoing, updated.Status)
		assert.Equal(t, 2, updated.Position)
	})

	t.Run("非法状态", func(t *testing.T) {
		_, err := svc.UpdateTask(ctx, "user-1", task.ID, &UpdateTaskRequest{
			Status: util.StringPtr("archived"),
		})
		assert.ErrorIs(t, err, ErrInvalidTaskStatus)
	})

	t.Run("他人的任务视作不存在", func(t *testing.T) {
		_, err := svc.UpdateTask(ctx, "user-2", task.ID, &UpdateTaskRequest{
			Title: util.StringPtr("偷改"),
		})
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	t.Run("任务不存在", func(t *testing.T) {
		_, err := svc.UpdateTask(ctx, "user-1", "missing", &UpdateTaskRequest{
			Title: util.StringPtr("x"),
		})
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}

func TestTaskService_DeleteTask(t *testing.T) {
	svc := NewTaskService(newMemTaskStore())
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, "user-1", &CreateTaskRequest{Title: "待删除"})
	require.NoError(t, err)

	// 归属校验在先
	assert.ErrorIs(t, svc.DeleteTask(ctx, "user-2", task.ID), ErrTaskNotFound)

	require.NoError(t, svc.DeleteTask(ctx, "user-1", task.ID))
	assert.ErrorIs(t, svc.DeleteTask(ctx, "user-1", task.ID), ErrTaskNotFound)
}

func TestTaskService_ListTasks(t *testing.T) {
	svc := NewTaskService(newMemTaskStore())
	ctx := context.Background()

	for _, title := range []string{"一", "二"} {
		_, err := svc.CreateTask(ctx, "user-1", &CreateTaskRequest{Title: title})
		require.NoError(t, err)
	}
	_, err := svc.CreateTask(ctx, "user-2", &CreateTaskRequest{Title: "别人的"})
	require.NoError(t, err)

	tasks, err := svc.ListTasks(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}
