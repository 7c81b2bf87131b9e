package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fachebot/oneline/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockHotList 用于测试的 hotListRefresher mock
type mockHotList struct {
	mu    sync.Mutex
	calls int
	errs  []error
}

func (m *mockHotList) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return err
	}
	return nil
}

func (m *mockHotList) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockHistory 用于测试的 historyPruner mock
type mockHistory struct {
	before time.Time
	err    error
}

func (m *mockHistory) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	m.before = before
	if m.err != nil {
		return 0, m.err
	}
	return 2, nil
}

// mockJobRuns 用于测试的 jobRecorder mock
type mockJobRuns struct {
	mu         sync.Mutex
	nextID     int64
	started    []string
	completed  []int64
	failed     map[int64]string
	incomplete int
}

func newMockJobRuns() *mockJobRuns {
	return &mockJobRuns{failed: make(map[int64]string)}
}

func (m *mockJobRuns) Start(ctx context.Context, job string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.started = append(m.started, job)
	return m.nextID, nil
}

func (m *mockJobRuns) MarkCompleted(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = append(m.completed, id)
	return nil
}

func (m *mockJobRuns) MarkFailed(ctx context.Context, id int64, errorMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[id] = errorMsg
	return nil
}

func (m *mockJobRuns) FailIncomplete(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incomplete++
	return 1, nil
}

func newTestScheduler(hot *mockHotList, history *mockHistory, jobs *mockJobRuns, retentionDays int) *Scheduler {
	s := NewScheduler(hot, history, jobs,
		&config.HotList{Cron: "*/10 * * * *"},
		&config.History{CleanupCron: "0 3 * * *", RetentionDays: retentionDays},
	)
	s.retryInterval = time.Millisecond
	return s
}

func TestRunHotListRefresh(t *testing.T) {
	t.Run("重试后成功", func(t *testing.T) {
		hot := &mockHotList{errs: []error{errors.New("超时")}}
		jobs := newMockJobRuns()
		s := newTestScheduler(hot, &mockHistory{}, jobs, 30)

		s.runHotListRefresh()
		assert.Equal(t, 2, hot.callCount())
		assert.Equal(t, []string{JobHotList}, jobs.started)
		assert.Equal(t, []int64{1}, jobs.completed)
		assert.Empty(t, jobs.failed)
	})

	t.Run("重试次数用尽", func(t *testing.T) {
		hot := &mockHotList{errs: []error{errors.New("a"), errors.New("b"), errors.New("c")}}
		jobs := newMockJobRuns()
		s := newTestScheduler(hot, &mockHistory{}, jobs, 30)

		s.runHotListRefresh()
		assert.Equal(t, 3, hot.callCount())
		assert.Empty(t, jobs.completed)
		assert.Contains(t, jobs.failed[1], "已重试 3 次")
	})
}

func TestRunHistoryCleanup(t *testing.T) {
	history := &mockHistory{}
	jobs := newMockJobRuns()
	s := newTestScheduler(&mockHotList{}, history, jobs, 30)
	s.now = func() time.Time { return time.Date(2024, 6, 30, 15, 4, 5, 0, time.UTC) }

	s.runHistoryCleanup()
	assert.Equal(t, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), history.before)
	assert.Equal(t, []string{JobHistoryCleanup}, jobs.started)
	assert.Equal(t, []int64{1}, jobs.completed)
}

func TestStartAndStop(t *testing.T) {
	hot := &mockHotList{}
	jobs := newMockJobRuns()
	s := newTestScheduler(hot, &mockHistory{}, jobs, 0)

	require.NoError(t, s.Start())
	assert.Eventually(t, func() bool { return hot.callCount() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()

	assert.Equal(t, 1, jobs.incomplete)
	assert.Len(t, s.cron.Entries(), 1)
}

func TestStart_InvalidCron(t *testing.T) {
	s := NewScheduler(&mockHotList{}, &mockHistory{}, newMockJobRuns(),
		&config.HotList{Cron: "invalid"},
		&config.History{CleanupCron: "0 3 * * *"},
	)
	assert.Error(t, s.Start())
}

func TestRunJob_Cancelled(t *testing.T) {
	hot := &mockHotList{}
	jobs := newMockJobRuns()
	s := newTestScheduler(hot, &mockHistory{}, jobs, 0)

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cancel()

	s.runHotListRefresh()
	assert.Equal(t, 0, hot.callCount())
	assert.Empty(t, jobs.started)
}
