package model

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/fachebot/oneline/internal/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestHistoryModel_CreateAndGet(t *testing.T) {
	m := NewHistoryModel(openTestDB(t))
	ctx := context.Background()

	data := &timeline.Data{
		Summary: "测试总结",
		Events: []timeline.Event{
			{ID: "event-0", Date: "2024-01-15", Title: "测试事件", People: []timeline.Person{{Name: "张三", Role: "官员", Color: "#ff0000"}}, Source: "新华网", SourceURL: "https://www.xinhuanet.com/test"},
		},
	}
	created, err := m.Create(ctx, "俄乌冲突", data, true)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 1, created.EventCount)

	got, err := m.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "俄乌冲突", got.Query)
	assert.Equal(t, "测试总结", got.Summary)
	assert.True(t, got.Searched)
	assert.Equal(t, data.Events, got.Events)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
}

func TestHistoryModel_EmptyEvents(t *testing.T) {
	m := NewHistoryModel(openTestDB(t))
	created, err := m.Create(context.Background(), "q", &timeline.Data{}, false)
	require.NoError(t, err)

	got, err := m.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.Events)
	assert.Empty(t, got.Events)
	assert.False(t, got.Searched)
}

func TestHistoryModel_GetNotFound(t *testing.T) {
	m := NewHistoryModel(openTestDB(t))
	_, err := m.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistoryModel_ListOrderAndLimit(t *testing.T) {
	m := NewHistoryModel(openTestDB(t))
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, q := range []string{"第一", "第二", "第三"} {
		at := base.Add(time.Duration(i) * time.Hour)
		m.now = func() time.Time { return at }
		_, err := m.Create(ctx, q, &timeline.Data{}, false)
		require.NoError(t, err)
	}

	list, err := m.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "第三", list[0].Query)
	assert.Equal(t, "第二", list[1].Query)

	all, err := m.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestHistoryModel_Delete(t *testing.T) {
	m := NewHistoryModel(openTestDB(t))
	ctx := context.Background()

	created, err := m.Create(ctx, "q", &timeline.Data{}, false)
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, created.ID))
	assert.ErrorIs(t, m.Delete(ctx, created.ID), ErrNotFound)
	_, err = m.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistoryModel_DeleteBefore(t *testing.T) {
	m := NewHistoryModel(openTestDB(t))
	ctx := context.Background()

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	m.now = func() time.Time { return old }
	_, err := m.Create(ctx, "旧记录", &timeline.Data{}, false)
	require.NoError(t, err)
	m.now = func() time.Time { return recent }
	_, err = m.Create(ctx, "新记录", &timeline.Data{}, false)
	require.NoError(t, err)

	deleted, err := m.DeleteBefore(ctx, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	list, err := m.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "新记录", list[0].Query)
}

func TestJobRunModel(t *testing.T) {
	m := NewJobRunModel(openTestDB(t))
	ctx := context.Background()

	_, err := m.Last(ctx, "hotlist")
	assert.ErrorIs(t, err, ErrNotFound)

	id, err := m.Start(ctx, "hotlist")
	require.NoError(t, err)
	require.NoError(t, m.MarkCompleted(ctx, id))

	run, err := m.Last(ctx, "hotlist")
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, run.Status)
	assert.False(t, run.FinishedAt.IsZero())

	id, err = m.Start(ctx, "hotlist")
	require.NoError(t, err)
	require.NoError(t, m.MarkFailed(ctx, id, "网络错误"))
	run, err = m.Last(ctx, "hotlist")
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, run.Status)
	assert.Equal(t, "网络错误", run.ErrorMessage)

	_, err = m.Start(ctx, "cleanup")
	require.NoError(t, err)
	n, err := m.FailIncomplete(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	run, err = m.Last(ctx, "cleanup")
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, run.Status)
}
