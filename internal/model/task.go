// Package model 定义了与数据库表对应的数据结构
package model

import (
	"time"
)

// TaskStatus 任务状态常量，对应看板的三列
const (
	TaskStatusTodo  = "todo"  // 待办
	TaskStatusDoing = "doing" // 进行中
	TaskStatusDone  = "done"  // 已完成
)

// Task 任务模型
// 对应数据库表 tasks
// 看板任务，由用户或 Agent 工具（task CRUD）创建和流转
type Task struct {
	// ID 任务唯一标识（UUID）
	ID string `gorm:"primaryKey;size:36" json:"id"`

	// UserID 所属用户ID
	UserID string `gorm:"size:36;index;not null" json:"user_id"`

	// Title 任务标题
	Title string `gorm:"size:255;not null" json:"title"`

	// Description 任务描述，可选
	Description string `gorm:"type:text" json:"description,omitempty"`

	// Status 任务状态: todo / doing / done
	Status string `gorm:"size:20;default:todo;index" json:"status"`

	// Position 同一列内的排序位置，越小越靠前
	Position int `gorm:"default:0" json:"position"`

	// CreatedAt 创建时间
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// UpdatedAt 更新时间
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Task) TableName() string {
	return "tasks"
}
