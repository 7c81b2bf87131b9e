package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fachebot/oneline/internal/config"
	"github.com/fachebot/oneline/internal/logger"
	"github.com/robfig/cron/v3"
)

const (
	JobHotList        = "hotlist"
	JobHistoryCleanup = "history_cleanup"
)

// hotListRefresher 刷新热榜（便于测试注入 mock）
type hotListRefresher interface {
	Refresh(ctx context.Context) error
}

// historyPruner 清理过期历史记录（便于测试注入 mock）
type historyPruner interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// jobRecorder 记录任务执行状态（便于测试注入 mock）
type jobRecorder interface {
	Start(ctx context.Context, job string) (int64, error)
	MarkCompleted(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errorMsg string) error
	FailIncomplete(ctx context.Context) (int64, error)
}

type Scheduler struct {
	cron          *cron.Cron
	hotList       hotListRefresher
	history       historyPruner
	jobRuns       jobRecorder
	hotListCfg    *config.HotList
	historyCfg    *config.History
	retryTimes    int
	retryInterval time.Duration
	now           func() time.Time
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	mu            sync.Mutex
}

// locUTC UTC 标准时间（UTC）
var locUTC = time.UTC

func NewScheduler(
	hotList hotListRefresher,
	history historyPruner,
	jobRuns jobRecorder,
	hotListCfg *config.HotList,
	historyCfg *config.History,
) *Scheduler {
	return &Scheduler{
		cron:          cron.New(cron.WithLocation(locUTC)),
		hotList:       hotList,
		history:       history,
		jobRuns:       jobRuns,
		hotListCfg:    hotListCfg,
		historyCfg:    historyCfg,
		retryTimes:    3,
		retryInterval: 30 * time.Second,
		now:           time.Now,
	}
}

// Start 启动调度器
func (s *Scheduler) Start() error {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	ctx := s.ctx
	s.mu.Unlock()

	// 注册热榜刷新任务
	if _, err := s.cron.AddFunc(s.hotListCfg.Cron, s.runHotListRefresh); err != nil {
		return fmt.Errorf("注册热榜刷新任务失败: %w", err)
	}

	// 注册历史清理任务
	if s.historyCfg.RetentionDays > 0 {
		if _, err := s.cron.AddFunc(s.historyCfg.CleanupCron, s.runHistoryCleanup); err != nil {
			return fmt.Errorf("注册历史清理任务失败: %w", err)
		}
	}

	// 上次退出时仍在执行的任务标记为失败
	if n, err := s.jobRuns.FailIncomplete(ctx); err != nil {
		logger.Errorf("[Scheduler] 更新未完成任务失败: %v", err)
	} else if n > 0 {
		logger.Warnf("[Scheduler] 已将 %d 个未完成任务标记为失败", n)
	}

	s.cron.Start()
	logger.Infof("[Scheduler] 调度器已启动，热榜刷新: %s，历史清理: %s (保留 %d 天)",
		s.hotListCfg.Cron, s.historyCfg.CleanupCron, s.historyCfg.RetentionDays)

	// 启动时预热热榜
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runHotListRefresh()
	}()

	return nil
}

// Stop 停止调度器
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.wg.Wait()
	logger.Infof("[Scheduler] 调度器已停止")
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

// runHotListRefresh 刷新热榜（cron 触发）
func (s *Scheduler) runHotListRefresh() {
	s.runJob(JobHotList, func(ctx context.Context) error {
		return s.hotList.Refresh(ctx)
	})
}

// runHistoryCleanup 清理过期历史记录（cron 触发）
func (s *Scheduler) runHistoryCleanup() {
	s.runJob(JobHistoryCleanup, func(ctx context.Context) error {
		cutoff := s.now().In(locUTC).AddDate(0, 0, -s.historyCfg.RetentionDays)
		cutoff = time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, locUTC)

		logger.Infof("[Scheduler] 开始清理 %s 之前的历史记录", cutoff.Format("2006-01-02"))
		deleted, err := s.history.DeleteBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		logger.Infof("[Scheduler] 已清理 %d 条历史记录", deleted)
		return nil
	})
}

// runJob 记录执行状态并按配置重试
func (s *Scheduler) runJob(job string, fn func(ctx context.Context) error) {
	ctx := s.context()
	select {
	case <-ctx.Done():
		logger.Infof("[Scheduler] 任务已取消，退出")
		return
	default:
	}

	id, err := s.jobRuns.Start(ctx, job)
	if err != nil {
		logger.Errorf("[Scheduler] 创建任务记录失败 (%s): %v", job, err)
		return
	}

	if err := s.withRetry(ctx, job, fn); err != nil {
		logger.Errorf("[Scheduler] 任务执行失败 (%s): %v", job, err)
		_ = s.jobRuns.MarkFailed(context.WithoutCancel(ctx), id, err.Error())
		return
	}
	_ = s.jobRuns.MarkCompleted(ctx, id)
	logger.Debugf("[Scheduler] 任务完成 (%s)", job)
}

func (s *Scheduler) withRetry(ctx context.Context, job string, fn func(ctx context.Context) error) error {
	retryTimes := s.retryTimes
	if retryTimes <= 0 {
		retryTimes = 1
	}

	var err error
	for attempt := 1; attempt <= retryTimes; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("任务已取消")
		default:
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}

		logger.Warnf("[Scheduler] %s 执行失败 (第 %d/%d 次): %v", job, attempt, retryTimes, err)
		if attempt < retryTimes {
			select {
			case <-ctx.Done():
				return fmt.Errorf("任务已取消")
			case <-time.After(s.retryInterval):
			}
		}
	}
	return fmt.Errorf("已重试 %d 次: %w", retryTimes, err)
}
