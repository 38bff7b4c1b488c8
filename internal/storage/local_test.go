package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheAgenticWeb/agentic-web-starter-kit/internal/model"
)

// newTestStore 在临时目录上创建一个文件后端的本地存储
func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	kv, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return NewLocalStore(kv, "test-conversations")
}

func TestLocalStore_CreateConversation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, "项目讨论")
	require.NoError(t, err)
	require.NotNil(t, conv)

	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, "项目讨论", conv.Title)
	assert.False(t, conv.CreatedAt.IsZero())
	// 新建会话两个时间戳一致
	assert.True(t, conv.CreatedAt.Equal(conv.UpdatedAt))
	assert.Equal(t, 0, conv.Metadata.MessageCount)
	assert.Equal(t, 0, conv.Metadata.TotalTokens)
	assert.Empty(t, conv.Messages)

	// 重新读取应与创建返回一致
	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, conv.ID, got.ID)
	assert.Equal(t, conv.Title, got.Title)
}

func TestLocalStore_CreateConversation_EmptyTitle(t *testing.T) {
	store := newTestStore(t)

	conv, err := store.CreateConversation(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConversationTitle, conv.Title, "空标题应使用占位标题")
}

func TestLocalStore_GetConversation_NotFound(t *testing.T) {
	store := newTestStore(t)

	// 缺失不是错误
	conv, err := store.GetConversation(context.Background(), "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, conv)
}

func TestLocalStore_SaveMessage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, "聊天")
	require.NoError(t, err)

	msg := &model.Message{
		Role:     model.MessageRoleUser,
		Content:  "你好",
		Metadata: model.MessageMetadata{Tokens: 3},
	}
	require.NoError(t, store.SaveMessage(ctx, conv.ID, msg))

	// 保存时补全 ID 和归属
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, conv.ID, msg.ConversationID)
	assert.False(t, msg.CreatedAt.IsZero())

	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "你好", got.Messages[0].Content)
	assert.Equal(t, 1, got.Metadata.MessageCount)
	assert.Equal(t, 3, got.Metadata.TotalTokens)
	// 追加消息刷新会话 UpdatedAt
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestLocalStore_SaveMessage_ConversationNotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveMessage(context.Background(), "missing", &model.Message{
		Role:    model.MessageRoleUser,
		Content: "hi",
	})
	assert.ErrorIs(t, err, ErrConversationNotFound, "不应隐式创建会话")
}

func TestLocalStore_GetMessages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, "对话")
	require.NoError(t, err)

	t.Run("空会话返回空切片", func(t *testing.T) {
		msgs, err := store.GetMessages(ctx, conv.ID)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("按创建时间正序", func(t *testing.T) {
		base := time.Now().Add(-time.Hour)
		// 乱序写入，读取应按时间排好
		for i, offset := range []time.Duration{2 * time.Minute, 0, time.Minute} {
			require.NoError(t, store.SaveMessage(ctx, conv.ID, &model.Message{
				Role:      model.MessageRoleUser,
				Content:   []string{"third", "first", "second"}[i],
				CreatedAt: base.Add(offset),
			}))
		}

		msgs, err := store.GetMessages(ctx, conv.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, "first", msgs[0].Content)
		assert.Equal(t, "second", msgs[1].Content)
		assert.Equal(t, "third", msgs[2].Content)
	})

	t.Run("会话不存在", func(t *testing.T) {
		_, err := store.GetMessages(ctx, "missing")
		assert.ErrorIs(t, err, ErrConversationNotFound)
	})
}

func TestLocalStore_DeleteMessage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, "对话")
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	var ids []string
	for i, content := range []string{"a", "b", "c"} {
		msg := &model.Message{
			Role:      model.MessageRoleUser,
			Content:   content,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Metadata:  model.MessageMetadata{Tokens: 1},
		}
		require.NoError(t, store.SaveMessage(ctx, conv.ID, msg))
		ids = append(ids, msg.ID)
	}

	// 删除中间一条，其余保持相对顺序
	require.NoError(t, store.DeleteMessage(ctx, ids[1]))

	msgs, err := store.GetMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].Content)
	assert.Equal(t, "c", msgs[1].Content)

	// 删除后元数据重算
	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Metadata.MessageCount)
	assert.Equal(t, 2, got.Metadata.TotalTokens)

	assert.ErrorIs(t, store.DeleteMessage(ctx, "missing"), ErrMessageNotFound)
}

func TestLocalStore_UpdateMessage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, "对话")
	require.NoError(t, err)

	msg := &model.Message{
		Role:     model.MessageRoleAssistant,
		Content:  "原始内容",
		Metadata: model.MessageMetadata{Tokens: 5, Model: "gpt-4o"},
	}
	require.NoError(t, store.SaveMessage(ctx, conv.ID, msg))

	t.Run("只更新内容", func(t *testing.T) {
		content := "修改后的内容"
		require.NoError(t, store.UpdateMessage(ctx, msg.ID, &MessageUpdate{Content: &content}))

		msgs, err := store.GetMessages(ctx, conv.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "修改后的内容", msgs[0].Content)
		// 未提供的元数据字段保持原值
		assert.Equal(t, 5, msgs[0].Metadata.Tokens)
		assert.Equal(t, "gpt-4o", msgs[0].Metadata.Model)
	})

	t.Run("合并元数据", func(t *testing.T) {
		require.NoError(t, store.UpdateMessage(ctx, msg.ID, &MessageUpdate{
			Metadata: &model.MessageMetadata{Tokens: 8},
		}))

		msgs, err := store.GetMessages(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, 8, msgs[0].Metadata.Tokens)
		assert.Equal(t, "gpt-4o", msgs[0].Metadata.Model, "合并不应清掉未提供的字段")

		// Token 数变化后会话缓存跟着重算
		got, err := store.GetConversation(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, 8, got.Metadata.TotalTokens)
	})

	t.Run("消息不存在", func(t *testing.T) {
		content := "x"
		err := store.UpdateMessage(ctx, "missing", &MessageUpdate{Content: &content})
		assert.ErrorIs(t, err, ErrMessageNotFound)
	})
}

func TestLocalStore_ListConversations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("空存储返回空列表", func(t *testing.T) {
		convs, err := store.ListConversations(ctx)
		require.NoError(t, err)
		assert.Empty(t, convs)
	})

	t.Run("按最近活跃倒序", func(t *testing.T) {
		first, err := store.CreateConversation(ctx, "最早")
		require.NoError(t, err)
		second, err := store.CreateConversation(ctx, "中间")
		require.NoError(t, err)
		third, err := store.CreateConversation(ctx, "最新")
		require.NoError(t, err)

		// 给最早的会话追加消息，它应该升到最前面
		time.Sleep(5 * time.Millisecond)
		require.NoError(t, store.SaveMessage(ctx, first.ID, &model.Message{
			Role:    model.MessageRoleUser,
			Content: "唤醒",
		}))

		convs, err := store.ListConversations(ctx)
		require.NoError(t, err)
		require.Len(t, convs, 3)
		assert.Equal(t, first.ID, convs[0].ID)
		assert.Contains(t, []string{second.ID, third.ID}, convs[1].ID)
		assert.Contains(t, []string{second.ID, third.ID}, convs[2].ID)
	})
}

func TestLocalStore_UpdateConversation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, "旧标题")
	require.NoError(t, err)

	title := "新标题"
	require.NoError(t, store.UpdateConversation(ctx, conv.ID, &ConversationUpdate{Title: &title}))

	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "新标题", got.Title)
	assert.False(t, got.UpdatedAt.Before(conv.UpdatedAt))

	err = store.UpdateConversation(ctx, "missing", &ConversationUpdate{Title: &title})
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestLocalStore_DeleteConversation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, "待删除")
	require.NoError(t, err)
	msg := &model.Message{Role: model.MessageRoleUser, Content: "hi"}
	require.NoError(t, store.SaveMessage(ctx, conv.ID, msg))

	require.NoError(t, store.DeleteConversation(ctx, conv.ID))

	// 会话和消息一起消失
	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, store.DeleteMessage(ctx, msg.ID), ErrMessageNotFound)

	assert.ErrorIs(t, store.DeleteConversation(ctx, conv.ID), ErrConversationNotFound)
}

func TestLocalStore_ClearAll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, title := range []string{"一", "二", "三"} {
		_, err := store.CreateConversation(ctx, title)
		require.NoError(t, err)
	}

	require.NoError(t, store.ClearAll(ctx))

	convs, err := store.ListConversations(ctx)
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestLocalStore_WithUser(t *testing.T) {
	store := newTestStore(t)

	// 本地适配器是单用户存储，绑定用户直接返回自身
	assert.Same(t, ChatStorage(store), store.WithUser("user-1"))
}

func TestLocalStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	kv, err := NewFileStore(dir)
	require.NoError(t, err)
	store := NewLocalStore(kv, "test-conversations")

	conv, err := store.CreateConversation(ctx, "持久化")
	require.NoError(t, err)
	require.NoError(t, store.SaveMessage(ctx, conv.ID, &model.Message{
		Role:    model.MessageRoleUser,
		Content: "还在吗",
	}))

	// 同一目录上的新实例能读到之前的数据
	kv2, err := NewFileStore(dir)
	require.NoError(t, err)
	reopened := NewLocalStore(kv2, "test-conversations")

	got, err := reopened.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "持久化", got.Title)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "还在吗", got.Messages[0].Content)
}

func TestLocalStore_DocumentRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	kv, err := NewFileStore(dir)
	require.NoError(t, err)
	store := NewLocalStore(kv, "test-conversations")

	// 0 条、1 条、多条消息的会话各一个
	base := time.Now().Add(-time.Hour)
	created := make(map[string]*model.Conversation)
	for name, count := range map[string]int{"空会话": 0, "单条消息": 1, "多条消息": 3} {
		conv, err := store.CreateConversation(ctx, name)
		require.NoError(t, err)
		for i := 0; i < count; i++ {
			role := model.MessageRoleUser
			if i%2 == 1 {
				role = model.MessageRoleAssistant
			}
			require.NoError(t, store.SaveMessage(ctx, conv.ID, &model.Message{
				Role:      role,
				Content:   fmt.Sprintf("message %d", i),
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
				Metadata:  model.MessageMetadata{Tokens: i + 1},
			}))
		}
		latest, err := store.GetConversation(ctx, conv.ID)
		require.NoError(t, err)
		created[conv.ID] = latest
	}

	// 新实例从文件重新加载，所有字段必须原样还原
	kv2, err := NewFileStore(dir)
	require.NoError(t, err)
	reopened := NewLocalStore(kv2, "test-conversations")

	for id, want := range created {
		got, err := reopened.GetConversation(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)

		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Title, got.Title)
		// 日期字段经 JSON 往返后丢失单调时钟，用 Equal 按墙钟比较
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "CreatedAt 应往返不变")
		assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt), "UpdatedAt 应往返不变")
		assert.Equal(t, want.Metadata.MessageCount, got.Metadata.MessageCount)
		assert.Equal(t, want.Metadata.TotalTokens, got.Metadata.TotalTokens)

		require.Len(t, got.Messages, len(want.Messages))
		for i := range want.Messages {
			assert.Equal(t, want.Messages[i].ID, got.Messages[i].ID)
			assert.Equal(t, want.Messages[i].ConversationID, got.Messages[i].ConversationID)
			assert.Equal(t, want.Messages[i].Role, got.Messages[i].Role)
			assert.Equal(t, want.Messages[i].Content, got.Messages[i].Content)
			assert.True(t, want.Messages[i].CreatedAt.Equal(got.Messages[i].CreatedAt), "消息时间戳应往返不变")
			assert.Equal(t, want.Messages[i].Metadata.Tokens, got.Messages[i].Metadata.Tokens)
		}
	}
}

func TestLocalStore_MetadataTotals(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// 一问一答的典型行程规划对话
	conv, err := store.CreateConversation(ctx, "Trip Planning")
	require.NoError(t, err)

	require.NoError(t, store.SaveMessage(ctx, conv.ID, &model.Message{
		Role:     model.MessageRoleUser,
		Content:  "I want to plan a trip to Kyoto",
		Metadata: model.MessageMetadata{Tokens: 12},
	}))
	require.NoError(t, store.SaveMessage(ctx, conv.ID, &model.Message{
		Role:     model.MessageRoleAssistant,
		Content:  "Kyoto is beautiful! When are you planning to go?",
		Metadata: model.MessageMetadata{Tokens: 30, Model: "gpt-4o-mini"},
	}))

	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 42, got.Metadata.TotalTokens)
	assert.Equal(t, 2, got.Metadata.MessageCount)
}

func TestLocalStore_CorruptDocumentDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	kv, err := NewFileStore(dir)
	require.NoError(t, err)

	// 手工写坏存储文件
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test-conversations.json"), []byte("{not json"), 0600))

	store := NewLocalStore(kv, "test-conversations")

	// 损坏的文档降级为空存储而不是报错
	convs, err := store.ListConversations(ctx)
	require.NoError(t, err)
	assert.Empty(t, convs)

	// 之后的写入正常工作
	conv, err := store.CreateConversation(ctx, "恢复")
	require.NoError(t, err)
	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
}
