package search

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNoQueries = errors.New("没有可执行的搜索查询")
	ErrDisabled  = errors.New("SearXNG 搜索未启用或 URL 未配置")
)

// Item 单条搜索结果，URL 作为唯一标识
type Item struct {
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Content       string   `json:"content"`
	Engine        string   `json:"engine,omitempty"`
	Engines       []string `json:"engines,omitempty"`
	PublishedDate string   `json:"publishedDate,omitempty"`
	Category      string   `json:"category,omitempty"`
	Score         float64  `json:"score,omitempty"`
	FromQuery     string   `json:"fromQuery,omitempty"`
}

// Request 元搜索请求
type Request struct {
	Query      string   `json:"query"`
	SearxngURL string   `json:"searxngUrl,omitempty"`
	Categories string   `json:"categories,omitempty"`
	Language   string   `json:"language,omitempty"`
	TimeRange  string   `json:"timeRange,omitempty"`
	Engines    []string `json:"engines"`
	NumResults int      `json:"numResults,omitempty"`
	Safesearch *int     `json:"safesearch,omitempty"`
	Timeout    int      `json:"timeout,omitempty"` // 毫秒
}

// Response 元搜索响应
type Response struct {
	Query           string `json:"query"`
	Results         []Item `json:"results"`
	NumberOfResults int    `json:"number_of_results"`
	Message         string `json:"message,omitempty"`
}

// ResultSet 单个子查询返回的结果集
type ResultSet struct {
	Query string
	Items []Item
}

// Result 合并、去重、排序后的搜索结果
type Result struct {
	Query           string `json:"query"`
	Results         []Item `json:"results"`
	NumberOfResults int    `json:"number_of_results"`
}

// Searcher 元搜索服务
type Searcher interface {
	Search(ctx context.Context, req *Request) (*Response, error)
}

// Options 搜索配置
type Options struct {
	URL        string
	Categories string
	Language   string
	TimeRange  string
	Engines    []string
	NumResults int
}

func (o Options) withDefaults() Options {
	if o.Categories == "" {
		o.Categories = "general"
	}
	if o.Language == "" {
		o.Language = "zh"
	}
	if o.TimeRange == "" {
		o.TimeRange = "year"
	}
	if o.NumResults <= 0 {
		o.NumResults = 10
	}
	return o
}

// ProgressStatus 进度状态
type ProgressStatus string

const (
	StatusPending   ProgressStatus = "pending"
	StatusCompleted ProgressStatus = "completed"
	StatusFailed    ProgressStatus = "error"
)

// ProgressEvent 搜索与生成过程中的进度事件
type ProgressEvent struct {
	Message string         `json:"message"`
	Status  ProgressStatus `json:"status"`
}

// ProgressFunc 进度观察者，可为 nil
type ProgressFunc func(ProgressEvent)

// Emit 发送一条进度事件
func (f ProgressFunc) Emit(status ProgressStatus, format string, args ...any) {
	if f == nil {
		return
	}
	f(ProgressEvent{Message: fmt.Sprintf(format, args...), Status: status})
}

// shortQuery 截断过长的查询用于展示
func shortQuery(query string) string {
	runes := []rune(query)
	if len(runes) > 30 {
		return string(runes[:30]) + "..."
	}
	return query
}
