package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fachebot/oneline/internal/logger"
)

// Cache 聚合结果缓存
type Cache interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any)
}

// Engine 组合查询拆分、批量搜索和结果合并
type Engine struct {
	searcher Searcher
	executor *Executor
	ranker   *Ranker
	cache    Cache
	options  Options
	enabled  bool
}

func NewEngine(searcher Searcher, executor *Executor, ranker *Ranker, opts Options, enabled bool) *Engine {
	return &Engine{
		searcher: searcher,
		executor: executor,
		ranker:   ranker,
		options:  opts.withDefaults(),
		enabled:  enabled && opts.URL != "",
	}
}

// WithCache 设置结果缓存
func (e *Engine) WithCache(cache Cache) *Engine {
	e.cache = cache
	return e
}

// Enabled 是否启用了搜索
func (e *Engine) Enabled() bool {
	return e.enabled
}

// EnhancedSearch 拆分查询、分批搜索并合并排序结果。
// 全部子查询失败时返回空结果而非错误。
func (e *Engine) EnhancedSearch(ctx context.Context, query string, progress ProgressFunc) (*Result, error) {
	if !e.enabled {
		return nil, ErrDisabled
	}

	queries := Expand(query)
	if len(queries) == 0 {
		return nil, ErrNoQueries
	}

	key := e.cacheKey("enhanced", query)
	if e.cache != nil {
		var cached Result
		if e.cache.Get(ctx, key, &cached) {
			logger.Debugf("[Search] 命中缓存: %s", query)
			progress.Emit(StatusCompleted, "使用缓存的搜索结果，共 %d 条", len(cached.Results))
			return &cached, nil
		}
	}

	progress.Emit(StatusPending, "搜索查询已拆分为 %d 个子查询以获取更全面的结果", len(queries))
	sets, err := e.executor.ExecuteAll(ctx, queries, e.options, progress)
	if err != nil && len(sets) == 0 {
		return nil, err
	}

	if len(sets) == 0 {
		progress.Emit(StatusCompleted, "所有查询均未返回有效结果")
		return &Result{Query: queries[0], Results: []Item{}}, nil
	}

	progress.Emit(StatusPending, "搜索完成，正在合并 %d 个有效结果", len(sets))
	result := e.ranker.Merge(sets, queries[0])
	progress.Emit(StatusCompleted, "结果合并完成，最终获取到 %d 条结果", len(result.Results))

	if e.cache != nil && err == nil && len(result.Results) > 0 {
		e.cache.Set(ctx, key, result)
	}
	return result, nil
}

// SimpleSearch 直接执行一次原始查询，作为增强搜索失败时的后备方案
func (e *Engine) SimpleSearch(ctx context.Context, query string, progress ProgressFunc) (*Result, error) {
	if !e.enabled {
		return nil, ErrDisabled
	}

	progress.Emit(StatusPending, "使用简单搜索模式查询：%s", query)
	resp, err := e.searcher.Search(ctx, &Request{
		Query:      query,
		SearxngURL: e.options.URL,
		Categories: e.options.Categories,
		Language:   e.options.Language,
		TimeRange:  e.options.TimeRange,
		Engines:    e.options.Engines,
		NumResults: e.options.NumResults,
	})
	if err != nil {
		progress.Emit(StatusFailed, "简单搜索也失败了：%v", err)
		return nil, fmt.Errorf("简单搜索失败: %w", err)
	}
	progress.Emit(StatusCompleted, "简单搜索完成")

	items := make([]Item, 0, len(resp.Results))
	for _, item := range resp.Results {
		item.FromQuery = query
		items = append(items, item)
	}
	return &Result{Query: query, Results: items, NumberOfResults: len(items)}, nil
}

// Search 优先使用增强搜索，失败时回退到简单搜索。未启用搜索时返回 nil, nil
func (e *Engine) Search(ctx context.Context, query string, progress ProgressFunc) (*Result, error) {
	if !e.enabled {
		progress.Emit(StatusCompleted, "SearXNG搜索未启用，跳过搜索步骤")
		return nil, nil
	}

	progress.Emit(StatusPending, "正在使用搜索引擎查询：%s", query)
	result, err := e.EnhancedSearch(ctx, query, progress)
	if err == nil {
		progress.Emit(StatusCompleted, "搜索完成，获取到 %d 条结果", len(result.Results))
		return result, nil
	}
	if errors.Is(err, context.Canceled) {
		return nil, err
	}

	logger.Warnf("[Search] 增强搜索失败, %v", err)
	progress.Emit(StatusFailed, "搜索失败：%v", err)
	progress.Emit(StatusPending, "尝试使用简单搜索作为备选方案")
	return e.SimpleSearch(ctx, query, progress)
}

// Relay 转发一次原始元搜索请求，未填写的参数使用配置默认值
func (e *Engine) Relay(ctx context.Context, req *Request) (*Response, error) {
	if req.SearxngURL == "" {
		if !e.enabled {
			return nil, ErrDisabled
		}
		req.SearxngURL = e.options.URL
	}
	if req.Categories == "" {
		req.Categories = e.options.Categories
	}
	if req.Language == "" {
		req.Language = e.options.Language
	}
	if req.TimeRange == "" {
		req.TimeRange = e.options.TimeRange
	}
	return e.searcher.Search(ctx, req)
}

func (e *Engine) cacheKey(kind, query string) string {
	return strings.Join([]string{
		kind, e.options.URL, e.options.Categories, e.options.Language, e.options.TimeRange,
		strings.Join(e.options.Engines, ","), strings.TrimSpace(query),
	}, "|")
}
