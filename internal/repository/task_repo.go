package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/model"
)

// TaskRepository 任务数据访问层
// 负责看板任务相关的所有数据库操作
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建 TaskRepository 实例
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create 创建新任务
// 参数:
//   - ctx: 上下文
//   - task: 任务对象
//
// 返回:
//   - error: 数据库错误
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// GetByID 根据 ID 获取任务
// 参数:
//   - ctx: 上下文
//   - id: 任务ID
//
// 返回:
//   - *model.Task: 任务对象，如果未找到返回 nil
//   - error: 数据库错误（不包括记录未找到）
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

// ListByUser 获取用户的任务列表
// 按状态和位置排序，方便前端按看板列渲染
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//
// 返回:
//   - []*model.Task: 任务列表
//   - error: 数据库错误
func (r *TaskRepository) ListByUser(ctx context.Context, userID string) ([]*model.Task, error) {
	var tasks []*model.Task
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("status ASC, position ASC").
		Find(&tasks).Error
	return tasks, err
}

// UpdateFields 更新任务的指定字段
// 参数:
//   - ctx: 上下文
//   - id: 任务ID
//   - fields: 要更新的字段映射
//
// 返回:
//   - error: 数据库错误
func (r *TaskRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", id).Updates(fields).Error
}

// Delete 删除任务
// 参数:
//   - ctx: 上下文
//   - id: 任务ID
//
// 返回:
//   - error: 数据库错误
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Task{}).Error
}

// MaxPosition 获取用户某一状态列中的最大位置
// 新任务追加到列尾时使用
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//   - status: 任务状态
//
// 返回:
//   - int: 最大位置，列为空时返回 0
//   - error: 数据库错误
func (r *TaskRepository) MaxPosition(ctx context.Context, userID string, status string) (int, error) {
	var max int
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND status = ?", userID, status).
		Select("COALESCE(MAX(position), 0)").
		Scan(&max).Error
	return max, err
}
