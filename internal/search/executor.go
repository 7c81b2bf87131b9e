package search

import (
	"context"
	"fmt"
	"time"

	"github.com/fachebot/oneline/internal/logger"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ExecutorConfig 批量搜索参数
type ExecutorConfig struct {
	BatchSize       int           // 每批最多查询数
	MaxAttempts     int           // 每个查询最多尝试次数（含首次）
	InitialTimeout  time.Duration // 首次请求超时
	TimeoutStep     time.Duration // 每次重试增加的超时
	RetryWait       time.Duration // 重试前等待时间
	ResultsPerQuery int           // 每个子查询请求的结果数
	Concurrency     int           // 批次内并发数，1 表示顺序执行
	RateLimit       float64       // 每秒请求数上限，0 表示不限制
}

// DefaultExecutorConfig 默认参数：每批 5 个，顺序执行，超时 15s/20s/25s，重试间隔 1s
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		BatchSize:       5,
		MaxAttempts:     3,
		InitialTimeout:  15 * time.Second,
		TimeoutStep:     5 * time.Second,
		RetryWait:       time.Second,
		ResultsPerQuery: 5,
		Concurrency:     1,
	}
}

type Executor struct {
	searcher Searcher
	config   ExecutorConfig
	limiter  *rate.Limiter
}

func NewExecutor(searcher Searcher, cfg ExecutorConfig) *Executor {
	defaults := DefaultExecutorConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.InitialTimeout <= 0 {
		cfg.InitialTimeout = defaults.InitialTimeout
	}
	if cfg.TimeoutStep < 0 {
		cfg.TimeoutStep = defaults.TimeoutStep
	}
	if cfg.RetryWait < 0 {
		cfg.RetryWait = defaults.RetryWait
	}
	if cfg.ResultsPerQuery <= 0 {
		cfg.ResultsPerQuery = defaults.ResultsPerQuery
	}
	cfg.Concurrency = min(max(cfg.Concurrency, 1), cfg.BatchSize)

	e := &Executor{
		searcher: searcher,
		config:   cfg,
	}
	if cfg.RateLimit > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return e
}

// ExecuteAll 分批执行所有查询，返回非空的结果集。
// 单个查询失败只会减少结果数量，仅在没有查询或 ctx 被取消时返回错误。
func (e *Executor) ExecuteAll(ctx context.Context, queries []string, opts Options, progress ProgressFunc) ([]ResultSet, error) {
	if len(queries) == 0 {
		return nil, ErrNoQueries
	}

	opts = opts.withDefaults()
	batches := splitBatches(queries, e.config.BatchSize)
	progress.Emit(StatusPending, "开始并行搜索，共 %d 个查询", len(queries))

	sets := make([]ResultSet, 0, len(queries))
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return sets, err
		}
		progress.Emit(StatusPending, "处理搜索批次 %d/%d，包含 %d 个查询", i+1, len(batches), len(batch))
		logger.Debugf("[Search] 处理搜索批次 %d/%d，包含 %d 个查询", i+1, len(batches), len(batch))

		for _, set := range e.runBatch(ctx, batch, opts, progress) {
			if set != nil && len(set.Items) > 0 {
				sets = append(sets, *set)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return sets, err
	}
	return sets, nil
}

// runBatch 执行一个批次，结果按查询顺序返回
func (e *Executor) runBatch(ctx context.Context, batch []string, opts Options, progress ProgressFunc) []*ResultSet {
	outcomes := make([]*ResultSet, len(batch))
	if e.config.Concurrency <= 1 {
		for i, query := range batch {
			outcomes[i] = e.executeQuery(ctx, query, opts, progress)
		}
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(e.config.Concurrency)
	for i, query := range batch {
		g.Go(func() error {
			outcomes[i] = e.executeQuery(ctx, query, opts, progress)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// executeQuery 执行单个查询，失败时按递增超时重试
func (e *Executor) executeQuery(ctx context.Context, query string, opts Options, progress ProgressFunc) *ResultSet {
	engines := SelectEngines(query, opts.Engines)
	maxAttempts := e.config.MaxAttempts

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil
		}

		if attempt == 0 {
			progress.Emit(StatusPending, "执行查询: \"%s\"", shortQuery(query))
		} else {
			progress.Emit(StatusPending, "重试查询: \"%s\" (尝试 %d/%d)", shortQuery(query), attempt+1, maxAttempts)
		}

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil
			}
		}

		timeout := e.config.InitialTimeout + time.Duration(attempt)*e.config.TimeoutStep
		resp, err := e.searchOnce(ctx, query, engines, opts, timeout)
		if err == nil {
			progress.Emit(StatusCompleted, "查询 \"%s\" 成功，获取到 %d 条结果", shortQuery(query), len(resp.Results))
			items := make([]Item, len(resp.Results))
			for i, item := range resp.Results {
				item.FromQuery = query
				items[i] = item
			}
			return &ResultSet{Query: query, Items: items}
		}

		last := attempt == maxAttempts-1
		status := StatusPending
		if last {
			status = StatusFailed
		}
		progress.Emit(status, "查询 \"%s\" 失败: %v", shortQuery(query), err)
		logger.Warnf("[Search] 查询 %q 失败 (第 %d/%d 次): %v", query, attempt+1, maxAttempts, err)
		if last {
			break
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(e.config.RetryWait):
		}
	}

	logger.Errorf("[Search] 查询 %q 已重试 %d 次仍失败，放弃", query, maxAttempts)
	return nil
}

func (e *Executor) searchOnce(ctx context.Context, query string, engines []string, opts Options, timeout time.Duration) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	safesearch := 0
	resp, err := e.searcher.Search(ctx, &Request{
		Query:      query,
		SearxngURL: opts.URL,
		Categories: opts.Categories,
		Language:   opts.Language,
		TimeRange:  opts.TimeRange,
		Engines:    engines,
		NumResults: e.config.ResultsPerQuery,
		Safesearch: &safesearch,
		Timeout:    int(timeout.Milliseconds()),
	})
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Results == nil {
		return nil, fmt.Errorf("返回格式不正确")
	}
	return resp, nil
}

func splitBatches(queries []string, size int) [][]string {
	batches := make([][]string, 0, (len(queries)+size-1)/size)
	for i := 0; i < len(queries); i += size {
		batches = append(batches, queries[i:min(i+size, len(queries))])
	}
	return batches
}
