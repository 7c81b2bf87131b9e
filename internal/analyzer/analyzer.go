package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fachebot/oneline/internal/llm"
	"github.com/fachebot/oneline/internal/logger"
	"github.com/fachebot/oneline/internal/model"
	"github.com/fachebot/oneline/internal/search"
	"github.com/fachebot/oneline/internal/timeline"
)

// searchEngine 获取搜索上下文（便于测试注入 mock）
type searchEngine interface {
	Search(ctx context.Context, query string, progress search.ProgressFunc) (*search.Result, error)
}

// chatClient 调用大模型（便于测试注入 mock）
type chatClient interface {
	Model() string
	Chat(ctx context.Context, messages []llm.Message, temperature float32) (string, error)
	ChatStream(ctx context.Context, messages []llm.Message, temperature float32, onChunk func(string) error) (string, error)
}

// historyRecorder 保存生成记录（便于测试注入 mock）
type historyRecorder interface {
	Create(ctx context.Context, query string, data *timeline.Data, searched bool) (*model.History, error)
}

// ChunkFunc 接收流式输出的增量文本，为 nil 时使用非流式调用
type ChunkFunc func(chunk string) error

// Analysis 事件详情或影响评估结果
type Analysis struct {
	Content  string             `json:"content"`
	Sections []timeline.Section `json:"sections"`
}

type Analyzer struct {
	searcher       searchEngine
	llmClient      chatClient
	history        historyRecorder
	searchDeadline time.Duration // 搜索阶段的超时，0 表示不单独限制
}

func NewAnalyzer(searcher *search.Engine, llmClient *llm.Client, history *model.HistoryModel, searchDeadline time.Duration) *Analyzer {
	a := &Analyzer{
		searcher:       searcher,
		llmClient:      llmClient,
		searchDeadline: searchDeadline,
	}
	if history != nil {
		a.history = history
	}
	return a
}

// searchContext 搜索失败或超时不影响生成，只返回空上下文
func (a *Analyzer) searchContext(ctx context.Context, query string, progress search.ProgressFunc) (string, bool, error) {
	searchCtx := ctx
	if a.searchDeadline > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, a.searchDeadline)
		defer cancel()
	}

	result, err := a.searcher.Search(searchCtx, query, progress)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", false, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", false, ctxErr
		}
		logger.Warnf("[Analyzer] 搜索失败，继续使用模型自身知识, query: %s, %v", query, err)
		progress.Emit(search.StatusFailed, "搜索失败：%v，将仅使用AI模型知识", err)
		return "", false, nil
	}
	if result == nil {
		return "", false, nil
	}
	return search.FormatForPrompt(result), true, nil
}

func (a *Analyzer) complete(ctx context.Context, messages []llm.Message, onChunk ChunkFunc) (string, error) {
	if onChunk == nil {
		return a.llmClient.Chat(ctx, messages, 0)
	}
	return a.llmClient.ChatStream(ctx, messages, 0, onChunk)
}

// GenerateTimeline 搜索、调用大模型并解析为时间轴
func (a *Analyzer) GenerateTimeline(ctx context.Context, query string, progress search.ProgressFunc, onChunk ChunkFunc) (*timeline.Data, error) {
	logger.Infof("[Analyzer] 开始生成时间轴, query: %s", query)
	progress.Emit(search.StatusPending, "开始处理关键词：%s", query)

	searchContext, searched, err := a.searchContext(ctx, query, progress)
	if err != nil {
		return nil, err
	}

	progress.Emit(search.StatusPending, "正在使用AI助手生成时间轴，模型：%s", a.llmClient.Model())
	content, err := a.complete(ctx, llm.TimelineMessages(query, searchContext), onChunk)
	if err != nil {
		progress.Emit(search.StatusFailed, "生成时间轴失败：%v", err)
		return nil, fmt.Errorf("生成时间轴失败: %w", err)
	}

	progress.Emit(search.StatusPending, "AI助手已生成时间轴数据，正在处理结果")
	data := timeline.Parse(content)
	if len(data.Events) == 0 && data.Summary == "" {
		logger.Warnf("[Analyzer] 无法解析模型返回的时间轴, query: %s", query)
		logger.Debugf("[Analyzer] 模型原始返回: %s", content)
	}
	progress.Emit(search.StatusCompleted, "生成完成，共包含 %d 个事件", len(data.Events))
	logger.Infof("[Analyzer] 时间轴生成完成, query: %s, 事件数: %d", query, len(data.Events))

	if a.history != nil {
		if _, err := a.history.Create(ctx, query, &data, searched); err != nil {
			logger.Errorf("[Analyzer] 保存历史记录失败, query: %s, %v", query, err)
		}
	}
	return &data, nil
}

// EventDetails 分析事件的背景、过程、参与方和影响
func (a *Analyzer) EventDetails(ctx context.Context, query string, progress search.ProgressFunc, onChunk ChunkFunc) (*Analysis, error) {
	progress.Emit(search.StatusPending, "正在获取事件【%s】的详细信息", query)

	searchContext, _, err := a.searchContext(ctx, query, progress)
	if err != nil {
		return nil, err
	}

	content, err := a.complete(ctx, llm.EventDetailsMessages(query, searchContext), onChunk)
	if err != nil {
		progress.Emit(search.StatusFailed, "获取事件详情失败：%v", err)
		return nil, fmt.Errorf("获取事件详情失败: %w", err)
	}

	progress.Emit(search.StatusCompleted, "事件详情分析完成")
	return &Analysis{Content: content, Sections: timeline.ParseSections(content)}, nil
}

// ImpactAssessment 评估事件的经济、社会和地缘政治影响
func (a *Analyzer) ImpactAssessment(ctx context.Context, query string, progress search.ProgressFunc, onChunk ChunkFunc) (*Analysis, error) {
	searchContext, _, err := a.searchContext(ctx, query, progress)
	if err != nil {
		return nil, err
	}

	progress.Emit(search.StatusPending, "正在使用AI助手分析事件影响")
	content, err := a.complete(ctx, llm.ImpactAssessmentMessages(query, searchContext), onChunk)
	if err != nil {
		progress.Emit(search.StatusFailed, "影响评估失败：%v", err)
		return nil, fmt.Errorf("影响评估失败: %w", err)
	}

	progress.Emit(search.StatusCompleted, "影响评估分析完成")
	return &Analysis{Content: content, Sections: timeline.ParseSections(content)}, nil
}
